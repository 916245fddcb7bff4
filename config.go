// config.go: configuration for the preferences facade
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Config configures a Store. The zero value is usable: WithDefaults fills
// in conventional paths under the user's config directory.
type Config struct {
	// Prefix is the dotted root under which all schemas live,
	// e.g. "org.gnucash". May also be set later via SetPrefix.
	Prefix string

	// SchemaDir holds the YAML schema declarations, one file per fully
	// qualified schema id. Default: <PkgDataDir>/schemas.
	SchemaDir string

	// StorePath is the SQLite settings database.
	// Default: <user config dir>/gnucash/preferences.db.
	StorePath string

	// Provider overrides the default SQLite provider. Tests use
	// NewMemoryProvider here.
	Provider SettingsProvider

	// PkgDataDir holds installed read-only data: the migration manifest,
	// the stylesheet and the schema directory.
	// Default: $GNC_DATADIR or /usr/share/gnucash.
	PkgDataDir string

	// LegacyRoot is the root of the legacy hierarchical configuration
	// tree consumed by the one-shot migration. Default: $HOME/.gconf.
	LegacyRoot string

	// PollInterval is how often StartWatch checks the settings database
	// for out-of-process changes. Default: 2 seconds.
	PollInterval time.Duration

	// CompatDetach restores the historical detach behavior where
	// RemoveCbByFunc drops every handler on the schema instead of
	// matching (detail, func, user-data) exactly. Off by default.
	CompatDetach bool

	// Audit configures the write audit trail.
	Audit AuditConfig

	// Logger receives structured logs. Default: zerolog to stderr.
	Logger *zerolog.Logger

	// ErrorHandler is invoked after any locally recovered error.
	ErrorHandler ErrorHandler
}

// WithDefaults applies sensible defaults to the configuration.
func (c *Config) WithDefaults() *Config {
	config := *c

	if config.PkgDataDir == "" {
		if dir := os.Getenv("GNC_DATADIR"); dir != "" {
			config.PkgDataDir = dir
		} else {
			config.PkgDataDir = "/usr/share/gnucash"
		}
	}

	if config.SchemaDir == "" {
		config.SchemaDir = filepath.Join(config.PkgDataDir, "schemas")
	}

	if config.StorePath == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = os.TempDir()
		}
		config.StorePath = filepath.Join(base, "gnucash", "preferences.db")
	}

	if config.LegacyRoot == "" {
		config.LegacyRoot = filepath.Join(os.Getenv("HOME"), ".gconf")
	}

	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}

	if config.Audit == (AuditConfig{}) {
		config.Audit = DefaultAuditConfig()
	}

	return &config
}

// logger returns the configured logger or the stderr default.
func (c *Config) logger() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}
	return zerolog.New(os.Stderr).With().Timestamp().Str("component", "prefs").Logger()
}
