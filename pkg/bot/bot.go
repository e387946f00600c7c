// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/matrix-bookbot/pkg/goodreads"
)

// ErrTooManyReconnects is returned by Run when MaxReconnects consecutive
// connection attempts have failed.
var ErrTooManyReconnects = errors.New("bot: reconnect attempt ceiling reached")

// Lookup is the external book-lookup boundary: query resolution, detail
// scrape, and cover download.
type Lookup interface {
	Resolve(ctx context.Context, query string) (string, error)
	FetchDetail(ctx context.Context, bookURL string) (goodreads.Detail, error)
	FetchImage(ctx context.Context, imageURL string) ([]byte, string, error)
}

var _ Lookup = (*goodreads.Client)(nil)

// Bot owns the Matrix connection lifecycle and routes room events to the
// lookup-and-reply action.
type Bot struct {
	cfg    *Config
	lookup Lookup
	log    zerolog.Logger
	dial   dialer

	selfPrefix string

	sessMu sync.Mutex
	sess   session

	roomMu sync.Mutex
	rooms  map[id.RoomID]struct{}

	lookupSem chan struct{}
	workers   sync.WaitGroup
}

// New creates a bot from validated configuration.
func New(cfg *Config, lookup Lookup, log zerolog.Logger) *Bot {
	maxLookups := cfg.MaxConcurrentLookups
	if maxLookups <= 0 {
		maxLookups = 1
	}
	return &Bot{
		cfg:        cfg,
		lookup:     lookup,
		log:        log,
		dial:       dialMatrix,
		selfPrefix: cfg.SelfPrefix(),
		rooms:      make(map[id.RoomID]struct{}),
		lookupSem:  make(chan struct{}, maxLookups),
	}
}

// Run connects to the homeserver and processes events until ctx is
// cancelled. Connection failures and listener faults are retried after a
// fixed delay, forever unless MaxReconnects is set. Each successful dial
// attaches the event handlers to the fresh session exactly once and
// rebuilds the tracked room set from the server's joined-rooms listing.
func (b *Bot) Run(ctx context.Context) error {
	defer b.workers.Wait()

	handlers := eventHandlers{
		onMessage: b.handleMessage,
		onInvite:  b.handleInvite,
	}

	failures := 0
	for {
		sess, err := b.dial(ctx, b.cfg, handlers, b.log)
		if err == nil {
			if rerr := b.rebuildRooms(ctx, sess); rerr != nil {
				sess.Close()
				err = fmt.Errorf("list joined rooms: %w", rerr)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			b.log.Warn().Err(err).Int("attempt", failures).Msg("Connection failed")
			if b.cfg.MaxReconnects > 0 && failures >= b.cfg.MaxReconnects {
				return fmt.Errorf("%w after %d attempts: %v", ErrTooManyReconnects, failures, err)
			}
			if serr := sleepCtx(ctx, b.cfg.ReconnectDelay); serr != nil {
				return serr
			}
			continue
		}
		failures = 0
		b.setSession(sess)
		b.log.Info().Stringer("user_id", sess.UserID()).Msg("Connected")

		err = sess.Sync(ctx)
		b.setSession(nil)
		sess.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.log.Warn().Err(err).Msg("Sync loop faulted, reconnecting")
		if serr := sleepCtx(ctx, b.cfg.ReconnectDelay); serr != nil {
			return serr
		}
	}
}

func (b *Bot) setSession(s session) {
	b.sessMu.Lock()
	b.sess = s
	b.sessMu.Unlock()
}

// currentSession returns the live session, or nil while disconnected.
// Handlers and workers call this at use time instead of capturing a
// session, so they never act on a connection replaced by a reconnect.
func (b *Bot) currentSession() session {
	b.sessMu.Lock()
	defer b.sessMu.Unlock()
	return b.sess
}

// rebuildRooms replaces the tracked room set with the homeserver's
// current joined-rooms listing.
func (b *Bot) rebuildRooms(ctx context.Context, sess session) error {
	roomIDs, err := sess.JoinedRooms(ctx)
	if err != nil {
		return err
	}
	b.roomMu.Lock()
	b.rooms = make(map[id.RoomID]struct{}, len(roomIDs))
	for _, roomID := range roomIDs {
		b.rooms[roomID] = struct{}{}
	}
	b.roomMu.Unlock()
	b.log.Info().Int("count", len(roomIDs)).Msg("Watching joined rooms")
	return nil
}

// trackRoom adds roomID to the room set, reporting whether it was new.
// Rooms are never removed; leave and kick events are not handled.
func (b *Bot) trackRoom(roomID id.RoomID) bool {
	b.roomMu.Lock()
	defer b.roomMu.Unlock()
	if _, ok := b.rooms[roomID]; ok {
		return false
	}
	b.rooms[roomID] = struct{}{}
	return true
}

// Rooms returns a snapshot of the tracked room set.
func (b *Bot) Rooms() []id.RoomID {
	b.roomMu.Lock()
	defer b.roomMu.Unlock()
	rooms := make([]id.RoomID, 0, len(b.rooms))
	for roomID := range b.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
