// prefs.go: schema-scoped preferences facade
//
// The Store is the process-wide context: the dotted prefix, the schema
// catalog, the settings provider and the audit trail. Consumers normally go
// through the Backend interface returned by LoadBackend; tests build private
// Stores to avoid cross-test interference.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/agilira/go-errors"
	"github.com/rs/zerolog"
)

// Error codes for preferences operations.
const (
	ErrCodePrefixMissing      = "PREFS_PREFIX_MISSING"
	ErrCodeUnknownSchema      = "PREFS_UNKNOWN_SCHEMA"
	ErrCodeInvalidKey         = "PREFS_INVALID_KEY"
	ErrCodeTypeMismatch       = "PREFS_TYPE_MISMATCH"
	ErrCodeWriteRefused       = "PREFS_WRITE_REFUSED"
	ErrCodeProviderRead       = "PREFS_PROVIDER_READ_FAILED"
	ErrCodeMigrationInput     = "PREFS_MIGRATION_INPUT_MISSING"
	ErrCodeMigrationTransform = "PREFS_MIGRATION_TRANSFORM_FAILED"
	ErrCodeBadSchemaFile      = "PREFS_BAD_SCHEMA_FILE"
	ErrCodeInvalidConfig      = "PREFS_INVALID_CONFIG"
)

// ErrorHandler is called for every locally recovered error, after it has
// been logged. Useful for wiring metrics without parsing log output.
type ErrorHandler func(err error, schema, key string)

// Store holds the process-wide preferences state.
type Store struct {
	cfg      Config
	log      zerolog.Logger
	provider SettingsProvider
	audit    *AuditLogger

	mu      sync.RWMutex
	prefix  string
	schemas map[string]*Schema

	handlerSeq atomic.Uint64
	watcher    *storeWatcher
}

// NewStore builds a Store from the given configuration. With no explicit
// Provider the SQLite provider is opened at cfg.StorePath using schema
// declarations from cfg.SchemaDir.
func NewStore(config Config) (*Store, error) {
	cfg := config.WithDefaults()

	provider := cfg.Provider
	if provider == nil {
		p, err := NewSQLiteProvider(cfg.SchemaDir, cfg.StorePath)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeInvalidConfig, "cannot open settings provider")
		}
		provider = p
	}

	audit, err := NewAuditLogger(cfg.Audit)
	if err != nil {
		// Audit must never prevent startup; fall back to disabled.
		audit, _ = NewAuditLogger(AuditConfig{Enabled: false})
	}

	s := &Store{
		cfg:      *cfg,
		log:      cfg.logger(),
		provider: provider,
		audit:    audit,
		prefix:   cfg.Prefix,
		schemas:  make(map[string]*Schema),
	}
	return s, nil
}

// Close stops the external-change watcher, flushes the audit trail and
// releases the provider.
func (s *Store) Close() error {
	s.StopWatch()
	if s.audit != nil {
		_ = s.audit.Close()
	}
	if s.provider != nil {
		return s.provider.Close()
	}
	return nil
}

// SetPrefix establishes the process-wide dotted prefix. The prefix is
// write-once: later calls with a different value are ignored with a warning.
func (s *Store) SetPrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefix != "" && s.prefix != prefix {
		s.log.Warn().Str("prefix", s.prefix).Str("ignored", prefix).
			Msg("prefix is already set, ignoring new value")
		return
	}
	s.prefix = prefix
}

// Prefix returns the configured prefix, or "" when none has been set yet.
func (s *Store) Prefix() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefix
}

// NormalizeSchemaName resolves a short schema name against the prefix:
// an empty name yields the prefix itself, an already qualified name passes
// through unchanged, anything else is joined with ".". With no prefix
// configured the absent value ("") is returned.
func (s *Store) NormalizeSchemaName(name string) string {
	prefix := s.Prefix()
	if prefix == "" {
		return ""
	}
	if name == "" {
		return prefix
	}
	if strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + "." + name
}

// Resolve normalizes name and returns the cached schema handle, requesting
// it from the provider on first use. Unknown schemas are logged and yield
// nil; the miss is not cached, so later lookups retry.
func (s *Store) Resolve(name string) *Schema {
	full := s.NormalizeSchemaName(name)
	if full == "" {
		s.reportErr(errors.New(ErrCodePrefixMissing,
			"no prefix configured, cannot resolve schema "+name), name, "")
		return nil
	}

	s.mu.RLock()
	sch := s.schemas[full]
	s.mu.RUnlock()
	if sch != nil {
		return sch
	}

	loaded, err := s.provider.LoadSchema(full)
	if err != nil || loaded == nil {
		s.log.Warn().Str("schema", full).Err(err).
			Msg("ignoring attempt to access unknown settings schema")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another resolve may have won the race; the first inserted handle
	// stays authoritative so identity is stable for the process life.
	if existing := s.schemas[full]; existing != nil {
		return existing
	}
	s.schemas[full] = loaded
	s.log.Debug().Str("schema", full).Msg("cached schema handle")
	return loaded
}

// lookupCached returns the cached handle for a fully qualified id without
// consulting the provider.
func (s *Store) lookupCached(id string) *Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schemas[id]
}

// cachedSchemas snapshots the catalog for the external-change watcher.
func (s *Store) cachedSchemas() []*Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Schema, 0, len(s.schemas))
	for _, sch := range s.schemas {
		out = append(out, sch)
	}
	return out
}

// reportErr logs a recovered error at error severity and notifies the
// optional handler. All §7-class failures funnel through here.
func (s *Store) reportErr(err error, schema, key string) {
	ev := s.log.Error().Str("schema", schema)
	if key != "" {
		ev = ev.Str("key", key)
	}
	ev.Msg(err.Error())
	if s.cfg.ErrorHandler != nil {
		s.cfg.ErrorHandler(err, schema, key)
	}
}

// invalidKeyErr builds the canonical invalid-key error.
func invalidKeyErr(schema, key string) error {
	return errors.New(ErrCodeInvalidKey, fmt.Sprintf("Invalid key %s for schema %s", key, schema))
}

// Process-wide backend, populated exactly once by LoadBackend.
var (
	backendOnce  sync.Once
	processStore *Store
	processErr   error
)

// LoadBackend constructs the process-wide backend from config. The first
// call wins; later calls return the same backend regardless of config, so
// population is idempotent. Consumers should depend on the Backend
// interface, not on *Store, so alternate providers can be substituted.
func LoadBackend(config Config) (Backend, error) {
	backendOnce.Do(func() {
		processStore, processErr = NewStore(config)
	})
	if processErr != nil {
		return nil, processErr
	}
	return processStore, nil
}

// DefaultBackend returns the backend populated by LoadBackend, or nil when
// LoadBackend has not run yet.
func DefaultBackend() Backend {
	if processStore == nil {
		return nil
	}
	return processStore
}
