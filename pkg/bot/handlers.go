// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bot

import (
	"context"
	"errors"
	"strings"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/matrix-bookbot/pkg/goodreads"
)

// handleInvite auto-accepts room invites addressed to the bot. Any invite
// is accepted; there is no inviter filtering. A failed join is logged and
// dropped without a user-visible diagnostic.
func (b *Bot) handleInvite(ctx context.Context, evt *event.Event) {
	content := evt.Content.AsMember()
	if content == nil || content.Membership != event.MembershipInvite {
		return
	}
	sess := b.currentSession()
	if sess == nil {
		return
	}
	if id.UserID(evt.GetStateKey()) != sess.UserID() {
		return
	}

	log := b.log.With().
		Stringer("room_id", evt.RoomID).
		Stringer("inviter", evt.Sender).
		Logger()
	log.Info().Msg("Received room invite, joining")
	if err := sess.JoinRoom(ctx, evt.RoomID); err != nil {
		log.Warn().Err(err).Msg("Failed to join room")
		return
	}
	b.trackRoom(evt.RoomID)
	log.Info().Msg("Joined room")
}

// handleMessage filters room messages for the lookup trigger and hands
// matching ones to a bounded worker, keeping the event-delivery loop free
// of slow network calls.
func (b *Bot) handleMessage(ctx context.Context, evt *event.Event) {
	// Anti-loop guard. Deliberately a prefix match on the full sender ID:
	// the bot never answers itself, at the cost of also ignoring any
	// other user whose ID shares the prefix.
	if strings.HasPrefix(evt.Sender.String(), b.selfPrefix) {
		return
	}
	content := evt.Content.AsMessage()
	if content == nil || !goodreads.ContainsTrigger(content.Body) {
		return
	}
	b.trackRoom(evt.RoomID)

	select {
	case b.lookupSem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	b.workers.Add(1)
	go func() {
		defer b.workers.Done()
		defer func() { <-b.lookupSem }()
		b.lookupAndReply(ctx, evt.RoomID, content.Body)
	}()
}

// lookupAndReply performs the search, scrape, upload, and the two reply
// sends for one triggering message. Every failure mode is logged and
// dropped; no error is ever reported into the room.
func (b *Bot) lookupAndReply(ctx context.Context, roomID id.RoomID, body string) {
	log := b.log.With().Stringer("room_id", roomID).Logger()

	query := goodreads.BuildQuery(body)
	bookURL, err := b.lookup.Resolve(ctx, query)
	if errors.Is(err, goodreads.ErrNoResults) {
		log.Debug().Str("query", query).Msg("No search results")
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("Book search failed")
		return
	}
	log.Info().Str("book_url", bookURL).Msg("Resolved book")

	detail, err := b.lookup.FetchDetail(ctx, bookURL)
	if err != nil {
		log.Warn().Err(err).Str("book_url", bookURL).Msg("Detail fetch failed")
		return
	}
	data, mimeType, err := b.lookup.FetchImage(ctx, detail.ImageURL)
	if err != nil {
		log.Warn().Err(err).Str("image_url", detail.ImageURL).Msg("Cover fetch failed")
		return
	}

	sess := b.currentSession()
	if sess == nil {
		log.Warn().Msg("Disconnected mid-lookup, dropping reply")
		return
	}
	uri, err := sess.UploadMedia(ctx, data, mimeType)
	if err != nil {
		log.Warn().Err(err).Msg("Media upload failed")
		return
	}
	if err := sess.SendImage(ctx, roomID, detail.Title, uri, mimeType, len(data)); err != nil {
		log.Warn().Err(err).Msg("Cover send failed")
		return
	}
	if err := sess.SendText(ctx, roomID, bookURL); err != nil {
		log.Warn().Err(err).Msg("Link send failed")
		return
	}
	log.Info().Str("title", detail.Title).Msg("Replied with book")
}
