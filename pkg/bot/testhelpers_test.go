// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/matrix-bookbot/pkg/goodreads"
)

// mockUpload records one media upload.
type mockUpload struct {
	data     []byte
	mimeType string
}

// mockSend records one outbound message, image or text.
type mockSend struct {
	kind     string // "image" or "text"
	roomID   id.RoomID
	body     string // caption for images, text otherwise
	uri      id.ContentURI
	mimeType string
	size     int
}

// mockSession is an in-memory session that records transport calls for
// assertions.
type mockSession struct {
	mu sync.Mutex

	userID    id.UserID
	joined    []id.RoomID
	joinedErr error
	joinErr   error
	uploadErr error
	sendErr   error
	uploadURI id.ContentURI

	joinedRoomsCalls int
	joinCalls        []id.RoomID
	uploads          []mockUpload
	sends            []mockSend

	// syncErr feeds Sync: the next value ends the sync loop with that
	// error. Sync also ends when its context is cancelled.
	syncErr chan error
}

var _ session = (*mockSession)(nil)

func newMockSession(userID id.UserID) *mockSession {
	return &mockSession{
		userID:    userID,
		uploadURI: id.ContentURI{Homeserver: "example.com", FileID: "uploaded-file"},
		syncErr:   make(chan error, 1),
	}
}

func (m *mockSession) UserID() id.UserID { return m.userID }

func (m *mockSession) JoinedRooms(_ context.Context) ([]id.RoomID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joinedRoomsCalls++
	if m.joinedErr != nil {
		return nil, m.joinedErr
	}
	return m.joined, nil
}

func (m *mockSession) JoinRoom(_ context.Context, roomID id.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joinCalls = append(m.joinCalls, roomID)
	return m.joinErr
}

func (m *mockSession) UploadMedia(_ context.Context, data []byte, mimeType string) (id.ContentURI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return id.ContentURI{}, m.uploadErr
	}
	m.uploads = append(m.uploads, mockUpload{data: data, mimeType: mimeType})
	return m.uploadURI, nil
}

func (m *mockSession) SendImage(_ context.Context, roomID id.RoomID, caption string, uri id.ContentURI, mimeType string, size int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sends = append(m.sends, mockSend{kind: "image", roomID: roomID, body: caption, uri: uri, mimeType: mimeType, size: size})
	return nil
}

func (m *mockSession) SendText(_ context.Context, roomID id.RoomID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sends = append(m.sends, mockSend{kind: "text", roomID: roomID, body: text})
	return nil
}

func (m *mockSession) Sync(ctx context.Context) error {
	select {
	case err := <-m.syncErr:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mockSession) Close() {}

func (m *mockSession) Sends() []mockSend {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]mockSend, len(m.sends))
	copy(cp, m.sends)
	return cp
}

func (m *mockSession) Uploads() []mockUpload {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]mockUpload, len(m.uploads))
	copy(cp, m.uploads)
	return cp
}

func (m *mockSession) JoinCalls() []id.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]id.RoomID, len(m.joinCalls))
	copy(cp, m.joinCalls)
	return cp
}

// mockLookup is a canned Lookup implementation recording resolve queries.
type mockLookup struct {
	mu sync.Mutex

	resolveURL string
	resolveErr error
	detail     goodreads.Detail
	detailErr  error
	image      []byte
	imageMime  string
	imageErr   error

	resolveQueries []string
}

var _ Lookup = (*mockLookup)(nil)

func (m *mockLookup) Resolve(_ context.Context, query string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveQueries = append(m.resolveQueries, query)
	return m.resolveURL, m.resolveErr
}

func (m *mockLookup) FetchDetail(_ context.Context, _ string) (goodreads.Detail, error) {
	return m.detail, m.detailErr
}

func (m *mockLookup) FetchImage(_ context.Context, _ string) ([]byte, string, error) {
	return m.image, m.imageMime, m.imageErr
}

func (m *mockLookup) ResolveQueries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(m.resolveQueries))
	copy(cp, m.resolveQueries)
	return cp
}

func testConfig() *Config {
	cfg := defaultConfig()
	cfg.Username = "bookbot"
	cfg.Password = "hunter2"
	cfg.Homeserver = "http://localhost"
	cfg.ReconnectDelay = time.Millisecond
	return &cfg
}

// newTestBot creates a bot with a mock lookup and the given session
// already installed in the connection cell.
func newTestBot(sess session, lookup Lookup) *Bot {
	b := New(testConfig(), lookup, zerolog.Nop())
	b.setSession(sess)
	return b
}

func messageEvent(sender id.UserID, roomID id.RoomID, body string) *event.Event {
	return &event.Event{
		Type:   event.EventMessage,
		Sender: sender,
		RoomID: roomID,
		Content: event.Content{
			Parsed: &event.MessageEventContent{
				MsgType: event.MsgText,
				Body:    body,
			},
		},
	}
}

func inviteEvent(inviter, target id.UserID, roomID id.RoomID) *event.Event {
	stateKey := string(target)
	return &event.Event{
		Type:     event.StateMember,
		Sender:   inviter,
		RoomID:   roomID,
		StateKey: &stateKey,
		Content: event.Content{
			Parsed: &event.MemberEventContent{
				Membership: event.MembershipInvite,
			},
		},
	}
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
