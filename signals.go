// signals.go: change-notification registry
//
// A registration is scoped by a signal detail: "changed" fires for every
// key of the schema, "changed::<key>" only for that key. Registrations are
// owned by the schema handle and identified either by the numeric id
// returned at registration or by their (detail, function, user-data)
// triple.
//
// The registry holds only a logical reference to (fn, user): callers must
// deregister before the user data becomes invalid, or use Subscribe and let
// the returned token manage the lifetime.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"reflect"
	"sort"
)

const (
	signalChanged    = "changed"
	signalChangedKey = "changed::"
)

// matchFlag selects which criteria RemoveCbByFunc compares. The flags
// combine as a bitmask; the historical implementation collapsed them with a
// logical OR, which CompatDetach reproduces by clearing all of them.
type matchFlag uint8

const (
	matchDetail matchFlag = 1 << iota
	matchFunc
	matchData
)

// handlerReg is one registration held by a schema handle.
type handlerReg struct {
	id     uint64
	detail string
	fn     ChangeFunc
	fnPtr  uintptr // function identity for RemoveCbByFunc
	user   any
}

// signalDetail builds the detail string for key, validating the narrowed
// form against the schema. ok is false when the narrowed form is requested
// for an undeclared key.
func signalDetail(sch *Schema, key string) (string, bool) {
	if key == "" {
		return signalChanged, true
	}
	if !sch.HasKey(key) {
		return "", false
	}
	return signalChangedKey + key, true
}

// RegisterCb attaches fn to the schema's change event, optionally narrowed
// to key. It returns a non-zero handler id, or 0 when the schema cannot be
// resolved, fn is nil, or key is not declared.
func (s *Store) RegisterCb(schema, key string, fn ChangeFunc, user any) uint64 {
	sch := s.Resolve(schema)
	if sch == nil || fn == nil {
		return 0
	}
	detail, ok := signalDetail(sch, key)
	if !ok {
		s.reportErr(invalidKeyErr(schema, key), schema, key)
		return 0
	}

	id := s.handlerSeq.Add(1)
	s.mu.Lock()
	sch.handlers[id] = &handlerReg{
		id:     id,
		detail: detail,
		fn:     fn,
		fnPtr:  reflect.ValueOf(fn).Pointer(),
		user:   user,
	}
	s.mu.Unlock()

	s.log.Debug().Str("schema", sch.ID()).Str("signal", detail).Uint64("id", id).
		Msg("registered change handler")
	return id
}

// RemoveCbByID disconnects one registration. Unknown ids are a no-op.
func (s *Store) RemoveCbByID(schema string, id uint64) {
	sch := s.Resolve(schema)
	if sch == nil {
		return
	}
	s.mu.Lock()
	delete(sch.handlers, id)
	s.mu.Unlock()
}

// RemoveCbByFunc detaches every registration matching the built detail, the
// callback function and the user data. With CompatDetach set the three
// criteria collapse (the historical logical-OR bug) and every handler on
// the schema is detached regardless of function and data.
func (s *Store) RemoveCbByFunc(schema, key string, fn ChangeFunc, user any) {
	sch := s.Resolve(schema)
	if sch == nil || fn == nil {
		return
	}
	detail, ok := signalDetail(sch, key)
	if !ok {
		s.reportErr(invalidKeyErr(schema, key), schema, key)
		return
	}

	flags := matchDetail | matchFunc | matchData
	if s.cfg.CompatDetach {
		flags = 0
	}

	matched := s.removeMatched(sch, flags, detail, reflect.ValueOf(fn).Pointer(), user)
	s.log.Debug().Int("matched", matched).Str("signal", detail).Str("schema", schema).
		Msg("removed change handlers")
}

// removeMatched drops every handler satisfying the selected criteria and
// returns how many were removed. An empty flag set matches everything.
func (s *Store) removeMatched(sch *Schema, flags matchFlag, detail string, fnPtr uintptr, user any) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := 0
	for id, h := range sch.handlers {
		if flags&matchDetail != 0 && h.detail != detail {
			continue
		}
		if flags&matchFunc != 0 && h.fnPtr != fnPtr {
			continue
		}
		if flags&matchData != 0 && !sameUserData(h.user, user) {
			continue
		}
		delete(sch.handlers, id)
		matched++
	}
	return matched
}

// sameUserData compares registered user data with a removal argument.
// User data is opaque, so it may be of a non-comparable type; such values
// never match and their registrations are removed by id instead.
func sameUserData(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}

// RegisterGroupCb attaches fn to every change in the schema.
func (s *Store) RegisterGroupCb(schema string, fn ChangeFunc, user any) uint64 {
	return s.RegisterCb(schema, "", fn, user)
}

// RemoveGroupCbByFunc is the bulk counterpart of RegisterGroupCb.
func (s *Store) RemoveGroupCbByFunc(schema string, fn ChangeFunc, user any) {
	s.RemoveCbByFunc(schema, "", fn, user)
}

// emit delivers change notifications for a completed write. Handlers run
// synchronously in registration order; a narrowed registration fires only
// for its own key, so each write invokes each matching handler exactly
// once.
func (s *Store) emit(sch *Schema, key string) {
	s.mu.RLock()
	snapshot := make([]*handlerReg, 0, len(sch.handlers))
	for _, h := range sch.handlers {
		snapshot = append(snapshot, h)
	}
	s.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].id < snapshot[j].id })

	narrowed := signalChangedKey + key
	for _, h := range snapshot {
		if h.detail == signalChanged || h.detail == narrowed {
			h.fn(sch, key, h.user)
		}
	}
}

// Registration is a scoped handle for one callback registration. Closing it
// detaches the handler, tying the registration lifetime to its owner.
type Registration struct {
	store  *Store
	schema string
	id     uint64
}

// Subscribe registers fn like RegisterCb and wraps the id in a Registration
// token. Returns nil when registration fails.
func (s *Store) Subscribe(schema, key string, fn ChangeFunc, user any) *Registration {
	id := s.RegisterCb(schema, key, fn, user)
	if id == 0 {
		return nil
	}
	return &Registration{store: s, schema: schema, id: id}
}

// Close detaches the registration. Safe to call more than once.
func (r *Registration) Close() {
	if r == nil || r.id == 0 {
		return
	}
	r.store.RemoveCbByID(r.schema, r.id)
	r.id = 0
}
