// provider_sqlite.go: SQLite-backed settings provider
//
// Values live in a single table keyed by (schema, key); schema declarations
// come from YAML files in the schema directory, one file per fully
// qualified id. WAL mode keeps concurrent readers (the external-change
// watcher, other processes) from blocking writes.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/agilira/go-errors"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// SQLiteProvider implements SettingsProvider over a SQLite database.
type SQLiteProvider struct {
	schemaDir string
	dbPath    string
	db        *sql.DB

	mu     sync.Mutex
	closed bool
}

// NewSQLiteProvider opens (creating if needed) the settings database at
// dbPath and serves schemas from schemaDir.
func NewSQLiteProvider(schemaDir, dbPath string) (*SQLiteProvider, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create settings database directory: %w", err)
	}

	db, err := sql.Open("sqlite3",
		fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping settings database: %w", err)
	}

	p := &SQLiteProvider{schemaDir: schemaDir, dbPath: dbPath, db: db}
	if err := p.initializeSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// initializeSchema creates the value table on first open.
func (p *SQLiteProvider) initializeSchema() error {
	const createSQL = `
	CREATE TABLE IF NOT EXISTS preferences (
		schema_id  TEXT NOT NULL,
		key        TEXT NOT NULL,
		kind       INTEGER NOT NULL,
		value      TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (schema_id, key)
	);`
	if _, err := p.db.Exec(createSQL); err != nil {
		return fmt.Errorf("failed to create preferences table: %w", err)
	}
	return nil
}

// Path returns the backing database file, used by the external-change
// watcher to detect out-of-process writes.
func (p *SQLiteProvider) Path() string { return p.dbPath }

// LoadSchema reads <schemaDir>/<id>.yaml and verifies the declared id.
func (p *SQLiteProvider) LoadSchema(id string) (*Schema, error) {
	path := filepath.Join(p.schemaDir, id+".yaml")
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, ErrCodeUnknownSchema, "no schema file for "+id)
	}
	sch, err := loadSchemaFile(path)
	if err != nil {
		return nil, err
	}
	if sch.ID() != id {
		return nil, errors.New(ErrCodeBadSchemaFile,
			fmt.Sprintf("schema file %s declares id %s", path, sch.ID())).
			WithContext("path", path)
	}
	return sch, nil
}

// Read returns the stored value for key, if any.
func (p *SQLiteProvider) Read(sch *Schema, key string) (Value, bool, error) {
	var kind int
	var payload string
	err := p.db.QueryRow(
		"SELECT kind, value FROM preferences WHERE schema_id = ? AND key = ?",
		sch.ID(), key).Scan(&kind, &payload)
	if err == sql.ErrNoRows {
		return Value{}, false, nil
	}
	if err != nil {
		return Value{}, false, fmt.Errorf("failed to read preference: %w", err)
	}

	v, err := decodeValue(kind, payload)
	if err != nil {
		// A corrupt row behaves like an unset key; the schema default
		// applies and the next write repairs the row.
		return Value{}, false, nil
	}
	return v, true, nil
}

// Write persists a value after schema validation.
func (p *SQLiteProvider) Write(sch *Schema, key string, value Value) error {
	if err := checkWrite(sch, key, value); err != nil {
		return err
	}

	kind, payload := value.encode()
	_, err := p.db.Exec(`
		INSERT INTO preferences (schema_id, key, kind, value, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(schema_id, key) DO UPDATE
		SET kind = excluded.kind, value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		sch.ID(), key, kind, payload)
	if err != nil {
		return fmt.Errorf("failed to write preference: %w", err)
	}
	return nil
}

// Delete removes the stored value so reads fall back to the default.
func (p *SQLiteProvider) Delete(sch *Schema, key string) error {
	_, err := p.db.Exec(
		"DELETE FROM preferences WHERE schema_id = ? AND key = ?", sch.ID(), key)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (p *SQLiteProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}
