// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bot

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"github.com/aiku/matrix-bookbot/pkg/goodreads"
)

// MissingFieldError is returned by Config.Validate when a required
// configuration value is absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required config field %q", e.Field)
}

// Config holds the bot's process configuration. Values come from an
// optional YAML file, with environment variables taking precedence.
type Config struct {
	// Username is the Matrix localpart or full user ID to log in as.
	Username string `yaml:"username" env:"MATRIX_USERNAME"`
	// Password is the account password.
	Password string `yaml:"password" env:"MATRIX_PASSWORD"`
	// Homeserver is the base URL of the Matrix homeserver.
	Homeserver string `yaml:"homeserver" env:"MATRIX_SERVER"`

	// ReconnectDelay is the fixed delay between connection attempts.
	ReconnectDelay time.Duration `yaml:"reconnect_delay" env:"RECONNECT_DELAY"`
	// MaxReconnects caps consecutive failed connection attempts.
	// Zero means retry forever.
	MaxReconnects int `yaml:"max_reconnects" env:"MAX_RECONNECTS"`
	// MaxConcurrentLookups bounds in-flight lookup-and-reply workers.
	MaxConcurrentLookups int `yaml:"max_concurrent_lookups" env:"MAX_CONCURRENT_LOOKUPS"`
	// HTTPTimeout applies to each Goodreads HTTP request.
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT"`

	// SearchBaseURL is the host search queries are sent to.
	SearchBaseURL string `yaml:"search_base_url" env:"SEARCH_BASE_URL"`
	// BookBaseURL is the host prefixed onto resolved book paths.
	BookBaseURL string `yaml:"book_base_url" env:"BOOK_BASE_URL"`

	// Logging configures the process logger. Defaults to a pretty-colored
	// stdout writer when no writers are configured.
	Logging zeroconfig.Config `yaml:"logging"`
}

// defaultConfig returns a Config with every optional field at its default.
func defaultConfig() Config {
	return Config{
		ReconnectDelay:       5 * time.Second,
		MaxConcurrentLookups: 4,
		HTTPTimeout:          30 * time.Second,
		SearchBaseURL:        goodreads.DefaultSearchBaseURL,
		BookBaseURL:          goodreads.DefaultBookBaseURL,
	}
}

// LoadConfig builds the configuration: defaults, then the optional YAML
// file at path (if non-empty), then environment overrides, then
// validation. The returned error is a *MissingFieldError when a required
// value is absent.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that all required fields are present.
func (c *Config) Validate() error {
	switch {
	case c.Username == "":
		return &MissingFieldError{Field: "username"}
	case c.Password == "":
		return &MissingFieldError{Field: "password"}
	case c.Homeserver == "":
		return &MissingFieldError{Field: "homeserver"}
	}
	return nil
}

// SelfPrefix returns the sender-ID prefix used by the anti-loop guard:
// the configured username with a leading "@" ensured.
func (c *Config) SelfPrefix() string {
	if strings.HasPrefix(c.Username, "@") {
		return c.Username
	}
	return "@" + c.Username
}
