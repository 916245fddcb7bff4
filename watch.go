// watch.go: external-change detection for the settings database
//
// Other processes write the same settings database. The watcher polls the
// backing file and, when it changed, re-reads every key of every cached
// schema and emits change notifications for the keys whose values differ
// from the last snapshot. Polling is the portable choice: it survives
// editors that replace files, network filesystems and missed events.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"os"
	"sync"
	"time"
)

// pathedProvider is implemented by providers backed by a single file; the
// watcher uses the path as a cheap change gate before rescanning values.
type pathedProvider interface {
	Path() string
}

// fileState is the polled fingerprint of the backing file.
type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

// storeWatcher polls for out-of-process writes.
type storeWatcher struct {
	store    *Store
	interval time.Duration

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	lastStat fileState
	snapshot map[string]map[string]Value
}

// StartWatch begins polling the settings database for external changes.
// Handlers registered via RegisterCb fire for keys modified by other
// processes exactly as they do for local writes. Idempotent.
func (s *Store) StartWatch() {
	s.mu.Lock()
	if s.watcher == nil {
		s.watcher = &storeWatcher{
			store:    s,
			interval: s.cfg.PollInterval,
			snapshot: make(map[string]map[string]Value),
		}
	}
	w := s.watcher
	s.mu.Unlock()
	w.start()
}

// StopWatch halts the poll loop and waits for it to exit. Idempotent.
func (s *Store) StopWatch() {
	s.mu.RLock()
	w := s.watcher
	s.mu.RUnlock()
	if w != nil {
		w.stop()
	}
}

func (w *storeWatcher) start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	// Seed the baseline so startup state does not fire as a change.
	w.lastStat = w.statFile()
	w.snapshot = w.scanValues()

	go w.watchLoop(w.stopCh, w.doneCh)
	w.store.log.Debug().Dur("interval", w.interval).Msg("external-change watcher started")
}

func (w *storeWatcher) stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stop, done := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stop)
	<-done
	w.store.log.Debug().Msg("external-change watcher stopped")
}

func (w *storeWatcher) watchLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.poll()
		case <-stopCh:
			return
		}
	}
}

// poll checks the backing file fingerprint and rescans on change. Schemas
// cached after the last poll are scanned too, so their keys join the
// baseline without firing.
func (w *storeWatcher) poll() {
	cur := w.statFile()

	w.mu.Lock()
	unchanged := cur == w.lastStat
	w.mu.Unlock()
	if unchanged {
		return
	}

	fresh := w.scanValues()

	w.mu.Lock()
	w.lastStat = cur
	prev := w.snapshot
	w.snapshot = fresh
	w.mu.Unlock()

	for schemaID, keys := range fresh {
		sch := w.store.lookupCached(schemaID)
		if sch == nil {
			continue
		}
		before := prev[schemaID]
		if before == nil {
			continue // newly cached schema, baseline only
		}
		for key, val := range keys {
			if old, ok := before[key]; !ok || !old.Equal(val) {
				w.store.log.Debug().Str("schema", schemaID).Str("key", key).
					Msg("external change detected")
				w.store.emit(sch, key)
			}
		}
	}
}

// statFile fingerprints the provider's backing file. Providers without a
// single backing file always report a changed state, forcing a value scan
// on every poll.
func (w *storeWatcher) statFile() fileState {
	pp, ok := w.store.provider.(pathedProvider)
	if !ok {
		return fileState{exists: true, modTime: time.Now()}
	}
	info, err := os.Stat(pp.Path())
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}
}

// scanValues reads the effective value of every key of every cached schema.
func (w *storeWatcher) scanValues() map[string]map[string]Value {
	out := make(map[string]map[string]Value)
	for _, sch := range w.store.cachedSchemas() {
		keys := make(map[string]Value, len(sch.Keys()))
		for _, key := range sch.Keys() {
			keys[key] = w.store.currentValue(sch, key)
		}
		out[sch.ID()] = keys
	}
	return out
}
