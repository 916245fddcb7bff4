// audit_backend.go: pluggable storage for the audit trail
//
// Two backends: SQLite (preferred, queryable, WAL) and JSONL (append-only
// text, always available). Selection is automatic: an .jsonl output file
// forces JSONL, otherwise SQLite is attempted first and JSONL next to it
// serves as the fallback when the database cannot be opened.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// auditBackend persists batches of audit events.
type auditBackend interface {
	Write(events []AuditEvent) error
	Flush() error
	Close() error
}

// newAuditBackend selects and opens the storage for config.
func newAuditBackend(config AuditConfig) (auditBackend, error) {
	path := config.OutputFile
	if path == "" {
		path = defaultAuditPath()
	}

	if strings.HasSuffix(path, ".jsonl") {
		return newJSONLAuditBackend(path)
	}

	backend, err := newSQLiteAuditBackend(path)
	if err == nil {
		return backend, nil
	}

	// SQLite can fail on exotic filesystems; degrade to JSONL beside it.
	fallback := strings.TrimSuffix(path, filepath.Ext(path)) + ".jsonl"
	jb, jerr := newJSONLAuditBackend(fallback)
	if jerr != nil {
		return nil, fmt.Errorf("audit backends unavailable: sqlite: %v, jsonl: %w", err, jerr)
	}
	return jb, nil
}

// sqliteAuditBackend stores events in a dedicated audit table.
type sqliteAuditBackend struct {
	db *sql.DB
	mu sync.Mutex
}

func newSQLiteAuditBackend(path string) (*sqliteAuditBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	db, err := sql.Open("sqlite3",
		fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	const createSQL = `
	CREATE TABLE IF NOT EXISTS audit_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp  DATETIME NOT NULL,
		level      TEXT NOT NULL,
		event      TEXT NOT NULL,
		schema_id  TEXT,
		key        TEXT,
		old_value  TEXT,
		new_value  TEXT,
		process_id INTEGER NOT NULL,
		checksum   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_schema ON audit_events(schema_id, key);`
	if _, err := db.Exec(createSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create audit table: %w", err)
	}

	return &sqliteAuditBackend{db: db}, nil
}

// Write inserts a batch in one transaction.
func (b *sqliteAuditBackend) Write(events []AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO audit_events
			(timestamp, level, event, schema_id, key, old_value, new_value, process_id, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.Exec(
			ev.Timestamp, ev.Level.String(), ev.Event, ev.SchemaID, ev.Key,
			ev.OldValue, ev.NewValue, ev.ProcessID, ev.Checksum); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
	}
	return tx.Commit()
}

// Flush is a no-op, batches commit on Write.
func (b *sqliteAuditBackend) Flush() error { return nil }

func (b *sqliteAuditBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db.Close()
}

// jsonlAuditBackend appends one JSON document per line.
type jsonlAuditBackend struct {
	file *os.File
	mu   sync.Mutex
}

func newJSONLAuditBackend(path string) (*jsonlAuditBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	return &jsonlAuditBackend{file: f}, nil
}

func (b *jsonlAuditBackend) Write(events []AuditEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	enc := json.NewEncoder(b.file)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("failed to append audit event: %w", err)
		}
	}
	return nil
}

func (b *jsonlAuditBackend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Sync()
}

func (b *jsonlAuditBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.file.Sync(); err != nil {
		_ = b.file.Close()
		return err
	}
	return b.file.Close()
}
