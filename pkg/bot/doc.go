// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package bot implements the Matrix book bot orchestrator: the connection
// lifecycle, the reconnect loop, room-membership tracking, and the routing
// of room events to the lookup-and-reply action.
//
// # Core Types
//
// [Bot] owns a single mutable "current session" cell. Event handlers and
// lookup workers dereference the cell at call time instead of capturing a
// connection, so a reconnect never leaves them bound to a dead transport.
//
// [Config] is the explicit process configuration, loaded from an optional
// YAML file with environment-variable overrides and validated up front.
// A missing required field fails fast with a [MissingFieldError] before
// any network activity.
//
// # Event Flow
//
// Run dials the homeserver, rebuilds the tracked room set from the
// server's joined-rooms listing, and blocks in the sync loop. Room invites
// are always accepted. Messages containing the #book trigger are handed to
// a bounded pool of lookup workers so a slow Goodreads fetch cannot stall
// event delivery. Every lookup failure mode is logged and dropped; the bot
// never posts an error message into a room.
package bot
