// audit.go: audit trail for preference changes
//
// Every successful write, reset and migration event is recorded through a
// buffered logger with pluggable storage: SQLite when available, JSONL as
// the fallback. Events carry a SHA-256 checksum for tamper detection.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
)

// AuditLevel represents the severity of audit events.
type AuditLevel int

const (
	AuditInfo AuditLevel = iota
	AuditWarn
	AuditCritical
)

func (al AuditLevel) String() string {
	switch al {
	case AuditInfo:
		return "INFO"
	case AuditWarn:
		return "WARN"
	case AuditCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// AuditEvent is a single recorded preference event.
type AuditEvent struct {
	Timestamp time.Time  `json:"timestamp"`
	Level     AuditLevel `json:"level"`
	Event     string     `json:"event"`
	SchemaID  string     `json:"schema,omitempty"`
	Key       string     `json:"key,omitempty"`
	OldValue  string     `json:"old_value,omitempty"`
	NewValue  string     `json:"new_value,omitempty"`
	ProcessID int        `json:"process_id"`
	Checksum  string     `json:"checksum"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	Enabled       bool          `json:"enabled"`
	OutputFile    string        `json:"output_file"` // .jsonl forces the JSONL backend
	MinLevel      AuditLevel    `json:"min_level"`
	BufferSize    int           `json:"buffer_size"`
	FlushInterval time.Duration `json:"flush_interval"`
}

// DefaultAuditConfig enables auditing into the per-user SQLite database.
// An empty OutputFile selects the SQLite backend at its default path.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:       true,
		OutputFile:    "",
		MinLevel:      AuditInfo,
		BufferSize:    256,
		FlushInterval: 5 * time.Second,
	}
}

// defaultAuditPath is used when no OutputFile is configured.
func defaultAuditPath() string {
	return filepath.Join(os.TempDir(), "gnucash", "prefs-audit.db")
}

// AuditLogger buffers events and flushes them to the configured backend in
// the background. A nil logger is safe to call.
type AuditLogger struct {
	config      AuditConfig
	backend     auditBackend
	buffer      []AuditEvent
	bufferMu    sync.Mutex
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
	processID   int
}

// NewAuditLogger creates an audit logger, preferring the SQLite backend
// and falling back to JSONL. A disabled config yields an inert logger.
func NewAuditLogger(config AuditConfig) (*AuditLogger, error) {
	var backend auditBackend
	if config.Enabled {
		b, err := newAuditBackend(config)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize audit backend: %w", err)
		}
		backend = b
	}

	logger := &AuditLogger{
		config:    config,
		backend:   backend,
		buffer:    make([]AuditEvent, 0, config.BufferSize),
		stopCh:    make(chan struct{}),
		processID: os.Getpid(),
	}

	if config.Enabled && config.FlushInterval > 0 {
		logger.flushTicker = time.NewTicker(config.FlushInterval)
		go logger.flushLoop()
	}

	return logger, nil
}

// Log records one event. Cheap no-op when disabled or below MinLevel.
func (al *AuditLogger) Log(level AuditLevel, event, schemaID, key, oldVal, newVal string) {
	if al == nil || al.backend == nil || !al.config.Enabled || level < al.config.MinLevel {
		return
	}

	ev := AuditEvent{
		Timestamp: timecache.CachedTime(),
		Level:     level,
		Event:     event,
		SchemaID:  schemaID,
		Key:       key,
		OldValue:  oldVal,
		NewValue:  newVal,
		ProcessID: al.processID,
	}
	ev.Checksum = auditChecksum(ev)

	al.bufferMu.Lock()
	al.buffer = append(al.buffer, ev)
	if len(al.buffer) >= al.config.BufferSize {
		_ = al.flushBufferLocked()
	}
	al.bufferMu.Unlock()
}

// LogPrefChange records a successful write or reset.
func (al *AuditLogger) LogPrefChange(schemaID, key, oldVal, newVal string) {
	al.Log(AuditCritical, "pref_change", schemaID, key, oldVal, newVal)
}

// LogMigration records migration pipeline milestones.
func (al *AuditLogger) LogMigration(event, detail string) {
	al.Log(AuditInfo, event, "", "", "", detail)
}

// Flush writes all buffered events immediately.
func (al *AuditLogger) Flush() error {
	if al == nil || al.backend == nil {
		return nil
	}
	al.bufferMu.Lock()
	defer al.bufferMu.Unlock()
	return al.flushBufferLocked()
}

// Close flushes and releases the backend. Safe to call more than once.
func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}
	var err error
	al.closeOnce.Do(func() {
		close(al.stopCh)
		if al.flushTicker != nil {
			al.flushTicker.Stop()
		}
		if ferr := al.Flush(); ferr != nil {
			err = fmt.Errorf("failed to flush audit logger during close: %w", ferr)
			return
		}
		if al.backend != nil {
			err = al.backend.Close()
		}
	})
	return err
}

func (al *AuditLogger) flushLoop() {
	for {
		select {
		case <-al.flushTicker.C:
			_ = al.Flush()
		case <-al.stopCh:
			return
		}
	}
}

// flushBufferLocked writes the buffer to the backend. Caller holds bufferMu.
func (al *AuditLogger) flushBufferLocked() error {
	if len(al.buffer) == 0 {
		return nil
	}
	if err := al.backend.Write(al.buffer); err != nil {
		return fmt.Errorf("failed to write audit events: %w", err)
	}
	al.buffer = al.buffer[:0]
	return nil
}

// auditChecksum computes the tamper-detection hash for one event.
func auditChecksum(ev AuditEvent) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		ev.Timestamp.Format(time.RFC3339Nano),
		ev.Event, ev.SchemaID, ev.Key, ev.OldValue, ev.NewValue)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
