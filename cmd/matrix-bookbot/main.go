// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command matrix-bookbot is a Matrix chat bot that watches its rooms for
// messages containing the #book trigger, looks the book up on Goodreads,
// and replies with the cover image followed by a link to the book page.
// It auto-accepts room invites and reconnects forever on failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"go.mau.fi/util/exzerolog"
	"go.mau.fi/zeroconfig"

	"github.com/aiku/matrix-bookbot/pkg/bot"
	"github.com/aiku/matrix-bookbot/pkg/goodreads"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (environment variables override it)")
	version := flag.Bool("version", false, "print the version and exit")
	flag.Parse()
	if *version {
		fmt.Printf("matrix-bookbot %s (%s, built %s)\n", Tag, Commit, BuildTime)
		return
	}

	cfg, err := bot.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := makeLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}

	lookup := goodreads.NewClient(
		cfg.SearchBaseURL,
		cfg.BookBaseURL,
		&http.Client{Timeout: cfg.HTTPTimeout},
		log.With().Str("component", "goodreads").Logger(),
	)
	b := bot.New(cfg, lookup, *log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("homeserver", cfg.Homeserver).
		Str("username", cfg.Username).
		Str("version", Tag).
		Msg("Starting matrix-bookbot")
	if err := b.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Bot stopped")
	}
	log.Info().Msg("Shut down")
}

// makeLogger compiles the zeroconfig logging block, defaulting to a
// pretty-colored stdout writer when none is configured.
func makeLogger(cfg *zeroconfig.Config) (*zerolog.Logger, error) {
	if len(cfg.Writers) == 0 {
		cfg.Writers = []zeroconfig.WriterConfig{{
			Type:   zeroconfig.WriterTypeStdout,
			Format: zeroconfig.LogFormatPrettyColored,
		}}
	}
	log, err := cfg.Compile()
	if err != nil {
		return nil, err
	}
	exzerolog.SetupDefaults(log)
	return log, nil
}
