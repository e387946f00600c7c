// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bot

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// session is the narrow surface of an authenticated Matrix connection the
// bot depends on. Production code wraps *mautrix.Client; tests inject a
// mock.
type session interface {
	UserID() id.UserID
	JoinedRooms(ctx context.Context) ([]id.RoomID, error)
	JoinRoom(ctx context.Context, roomID id.RoomID) error
	UploadMedia(ctx context.Context, data []byte, mimeType string) (id.ContentURI, error)
	SendImage(ctx context.Context, roomID id.RoomID, caption string, uri id.ContentURI, mimeType string, size int) error
	SendText(ctx context.Context, roomID id.RoomID, text string) error
	// Sync blocks, delivering events to the handlers attached at dial
	// time, until it faults or ctx is cancelled.
	Sync(ctx context.Context) error
	Close()
}

// eventHandlers are the callbacks a dialer attaches to the new session's
// event stream. Attaching happens once per dial, so a reconnect can never
// accumulate duplicate subscriptions.
type eventHandlers struct {
	onMessage mautrix.EventHandler
	onInvite  mautrix.EventHandler
}

// dialer opens a fresh authenticated session with the given handlers
// attached. Injectable for tests.
type dialer func(ctx context.Context, cfg *Config, handlers eventHandlers, log zerolog.Logger) (session, error)

// matrixSession adapts *mautrix.Client to the session interface.
type matrixSession struct {
	client *mautrix.Client
}

var _ session = (*matrixSession)(nil)

// dialMatrix logs into the homeserver with the configured credentials and
// wires the bot's handlers into the client's syncer. Events from before
// the login are ignored so the bot does not replay backlog on startup.
func dialMatrix(ctx context.Context, cfg *Config, handlers eventHandlers, log zerolog.Logger) (session, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, "", "")
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	client.Log = log.With().Str("component", "mautrix").Logger()

	_, err = client.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: cfg.Username,
		},
		Password:                 cfg.Password,
		InitialDeviceDisplayName: "matrix-bookbot",
		StoreCredentials:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	syncer := client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, handlers.onMessage)
	syncer.OnEventType(event.StateMember, handlers.onInvite)
	syncer.OnSync(client.DontProcessOldEvents)

	return &matrixSession{client: client}, nil
}

func (s *matrixSession) UserID() id.UserID {
	return s.client.UserID
}

func (s *matrixSession) JoinedRooms(ctx context.Context) ([]id.RoomID, error) {
	resp, err := s.client.JoinedRooms(ctx)
	if err != nil {
		return nil, err
	}
	return resp.JoinedRooms, nil
}

func (s *matrixSession) JoinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := s.client.JoinRoomByID(ctx, roomID)
	return err
}

func (s *matrixSession) UploadMedia(ctx context.Context, data []byte, mimeType string) (id.ContentURI, error) {
	resp, err := s.client.UploadBytes(ctx, data, mimeType)
	if err != nil {
		return id.ContentURI{}, err
	}
	return resp.ContentURI, nil
}

func (s *matrixSession) SendImage(ctx context.Context, roomID id.RoomID, caption string, uri id.ContentURI, mimeType string, size int) error {
	_, err := s.client.SendMessageEvent(ctx, roomID, event.EventMessage, &event.MessageEventContent{
		MsgType: event.MsgImage,
		Body:    caption,
		URL:     uri.CUString(),
		Info: &event.FileInfo{
			MimeType: mimeType,
			Size:     size,
		},
	})
	return err
}

func (s *matrixSession) SendText(ctx context.Context, roomID id.RoomID, text string) error {
	_, err := s.client.SendText(ctx, roomID, text)
	return err
}

func (s *matrixSession) Sync(ctx context.Context) error {
	return s.client.SyncWithContext(ctx)
}

func (s *matrixSession) Close() {
	s.client.StopSync()
}
