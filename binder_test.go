// binder_test.go: key-to-field binding behavior
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import "testing"

type windowPrefs struct {
	SaveGeometry bool
	Interval     int
	Separator    string
	Zoom         float64
	Currency     int
}

func TestBindSeedsFieldFromSettings(t *testing.T) {
	s := newTestStore(t)
	s.SetInt("general", "autosave-interval-minutes", 7)

	var obj windowPrefs
	b := s.Bind("general", "autosave-interval-minutes", &obj, "Interval")
	if b == nil {
		t.Fatal("Bind returned nil")
	}
	defer b.Release()

	if obj.Interval != 7 {
		t.Errorf("bound field = %d, want seeded 7", obj.Interval)
	}
}

func TestBindFollowsSettingsChanges(t *testing.T) {
	s := newTestStore(t)

	var obj windowPrefs
	b := s.Bind("general", "save-window-geometry", &obj, "SaveGeometry")
	if b == nil {
		t.Fatal("Bind returned nil")
	}
	defer b.Release()

	if !obj.SaveGeometry {
		t.Fatal("field should seed to the declared default true")
	}

	s.SetBool("general", "save-window-geometry", false)
	if obj.SaveGeometry {
		t.Error("field did not follow the settings write")
	}
}

func TestBindingSetWritesThroughSettings(t *testing.T) {
	s := newTestStore(t)

	var obj windowPrefs
	b := s.Bind("general", "account-separator", &obj, "Separator")
	if b == nil {
		t.Fatal("Bind returned nil")
	}
	defer b.Release()

	if !b.SetString("dash") {
		t.Fatal("binding SetString failed")
	}
	if got := s.GetString("general", "account-separator"); got != "dash" {
		t.Errorf("settings = %q after binding write, want dash", got)
	}
	if obj.Separator != "dash" {
		t.Errorf("field = %q after binding write, want dash", obj.Separator)
	}
}

func TestBindingPushStoresFieldValue(t *testing.T) {
	s := newTestStore(t)

	var obj windowPrefs
	b := s.Bind("general", "default-zoom", &obj, "Zoom")
	if b == nil {
		t.Fatal("Bind returned nil")
	}
	defer b.Release()

	obj.Zoom = 2.5
	if !b.Push() {
		t.Fatal("Push failed")
	}
	if got := s.GetFloat("general", "default-zoom"); got != 2.5 {
		t.Errorf("settings = %v after Push, want 2.5", got)
	}
}

func TestBindEnumToIntField(t *testing.T) {
	s := newTestStore(t)

	var obj windowPrefs
	b := s.Bind("general", "currency-choice", &obj, "Currency")
	if b == nil {
		t.Fatal("enum keys should bind to int fields")
	}
	defer b.Release()

	s.SetEnum("general", "currency-choice", 1)
	if obj.Currency != 1 {
		t.Errorf("enum field = %d, want 1", obj.Currency)
	}

	// Round-trip through Push keeps the enum kind, so the write passes the
	// provider's kind check.
	obj.Currency = 0
	if !b.Push() {
		t.Error("Push of an enum-bound field failed")
	}
	if got := s.GetEnum("general", "currency-choice"); got != 0 {
		t.Errorf("enum after Push = %d, want 0", got)
	}
}

func TestBindRejectsMismatchedField(t *testing.T) {
	var errs []error
	s := newTestStoreWithConfig(t, Config{
		ErrorHandler: func(err error, schema, key string) { errs = append(errs, err) },
	})

	var obj windowPrefs
	if b := s.Bind("general", "autosave-interval-minutes", &obj, "Separator"); b != nil {
		t.Error("Bind should refuse an int key on a string field")
	}
	if b := s.Bind("general", "autosave-interval-minutes", &obj, "NoSuchField"); b != nil {
		t.Error("Bind should refuse an unknown field")
	}
	if b := s.Bind("general", "bogus-key", &obj, "Interval"); b != nil {
		t.Error("Bind should refuse an undeclared key")
	}
	if b := s.Bind("general", "autosave-interval-minutes", obj, "Interval"); b != nil {
		t.Error("Bind should refuse a non-pointer object")
	}
	if len(errs) != 4 {
		t.Errorf("expected 4 reported errors, got %d", len(errs))
	}
}

func TestBindVar(t *testing.T) {
	s := newTestStore(t)

	var interval int
	b := s.BindVar("general", "autosave-interval-minutes", &interval)
	if b == nil {
		t.Fatal("BindVar returned nil")
	}
	defer b.Release()

	if interval != 3 {
		t.Errorf("seeded var = %d, want declared default 3", interval)
	}
	s.SetInt("general", "autosave-interval-minutes", 9)
	if interval != 9 {
		t.Errorf("var = %d after write, want 9", interval)
	}

	if bad := s.BindVar("general", "autosave-interval-minutes", new(string)); bad != nil {
		t.Error("BindVar should refuse a mismatched pointer type")
	}
}

func TestReleaseDetachesBinding(t *testing.T) {
	s := newTestStore(t)

	var obj windowPrefs
	b := s.Bind("general", "autosave-interval-minutes", &obj, "Interval")
	if b == nil {
		t.Fatal("Bind returned nil")
	}

	b.Release()
	b.Release() // idempotent

	s.SetInt("general", "autosave-interval-minutes", 11)
	if obj.Interval == 11 {
		t.Error("released binding still follows settings")
	}
	if b.SetInt(12) {
		t.Error("released binding should refuse writes")
	}
}
