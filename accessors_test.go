// accessors_test.go: typed accessor behavior
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"fmt"
	"testing"

	"github.com/agilira/go-errors"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if !s.SetBool("general", "save-window-geometry", false) {
		t.Fatal("SetBool failed")
	}
	if got := s.GetBool("general", "save-window-geometry"); got {
		t.Error("GetBool should return the stored false")
	}

	if !s.SetInt("general", "autosave-interval-minutes", 10) {
		t.Fatal("SetInt failed")
	}
	if got := s.GetInt("general", "autosave-interval-minutes"); got != 10 {
		t.Errorf("GetInt = %d, want 10", got)
	}

	if !s.SetFloat("general", "default-zoom", 1.5) {
		t.Fatal("SetFloat failed")
	}
	if got := s.GetFloat("general", "default-zoom"); got != 1.5 {
		t.Errorf("GetFloat = %v, want 1.5", got)
	}

	if !s.SetString("general", "account-separator", "dash") {
		t.Fatal("SetString failed")
	}
	if got := s.GetString("general", "account-separator"); got != "dash" {
		t.Errorf("GetString = %q, want dash", got)
	}

	if !s.SetEnum("general", "currency-choice", 1) {
		t.Fatal("SetEnum failed")
	}
	if got := s.GetEnum("general", "currency-choice"); got != 1 {
		t.Errorf("GetEnum = %d, want 1", got)
	}
}

func TestGetFallsBackToDefault(t *testing.T) {
	s := newTestStore(t)

	if got := s.GetBool("general", "save-window-geometry"); !got {
		t.Error("unset bool key should report the declared default true")
	}
	if got := s.GetInt("general", "autosave-interval-minutes"); got != 3 {
		t.Errorf("unset int key = %d, want declared default 3", got)
	}
	if got := s.GetString("general", "account-separator"); got != "colon" {
		t.Errorf("unset string key = %q, want declared default colon", got)
	}
}

func TestInvalidKeyIsRecoverable(t *testing.T) {
	var errs []error
	s := newTestStoreWithConfig(t, Config{
		ErrorHandler: func(err error, schema, key string) { errs = append(errs, err) },
	})

	if got := s.GetInt("general", "bogus-key"); got != 0 {
		t.Errorf("GetInt on invalid key = %d, want 0", got)
	}
	if ok := s.SetInt("general", "bogus-key", 1); ok {
		t.Error("SetInt on invalid key should return false")
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 reported errors, got %d", len(errs))
	}
	want := "Invalid key bogus-key for schema general"
	if errs[0].Error() != want {
		t.Errorf("error message = %q, want %q", errs[0].Error(), want)
	}
}

func TestTypeMismatchIsRecoverable(t *testing.T) {
	var errs []error
	s := newTestStoreWithConfig(t, Config{
		ErrorHandler: func(err error, schema, key string) { errs = append(errs, err) },
	})

	// Reading a bool key through the int accessor yields the zero, not the
	// stored value reinterpreted.
	s.SetBool("general", "save-window-geometry", true)
	if got := s.GetInt("general", "save-window-geometry"); got != 0 {
		t.Errorf("GetInt on bool key = %d, want 0", got)
	}

	// Writing the wrong kind is refused by the provider and persists nothing.
	if ok := s.SetValue("general", "save-window-geometry", IntValue(7)); ok {
		t.Error("mismatched SetValue should return false")
	}
	if got := s.GetBool("general", "save-window-geometry"); !got {
		t.Error("refused write must not clobber the stored value")
	}
	if len(errs) == 0 {
		t.Error("mismatches should be reported to the error handler")
	}
}

func TestEnumRangeIsEnforced(t *testing.T) {
	s := newTestStore(t)

	if ok := s.SetEnum("general", "currency-choice", 5); ok {
		t.Error("out-of-range enum ordinal should be refused")
	}
	if got := s.GetEnum("general", "currency-choice"); got != 0 {
		t.Errorf("enum after refused write = %d, want declared default 0", got)
	}
}

func TestResetRestoresDefault(t *testing.T) {
	s := newTestStore(t)

	s.SetInt("general", "autosave-interval-minutes", 42)
	s.Reset("general", "autosave-interval-minutes")
	if got := s.GetInt("general", "autosave-interval-minutes"); got != 3 {
		t.Errorf("after Reset = %d, want declared default 3", got)
	}
}

func TestResetGroupRestoresEveryKey(t *testing.T) {
	s := newTestStore(t)

	s.SetBool("general", "save-window-geometry", false)
	s.SetInt("general", "autosave-interval-minutes", 42)
	s.SetString("general", "account-separator", "dash")

	s.ResetGroup("general")

	if !s.GetBool("general", "save-window-geometry") {
		t.Error("bool key not restored")
	}
	if s.GetInt("general", "autosave-interval-minutes") != 3 {
		t.Error("int key not restored")
	}
	if s.GetString("general", "account-separator") != "colon" {
		t.Error("string key not restored")
	}
}

// brokenReadProvider fails every Read to exercise the provider error path.
type brokenReadProvider struct {
	*MemoryProvider
}

func (p *brokenReadProvider) Read(sch *Schema, key string) (Value, bool, error) {
	return Value{}, false, fmt.Errorf("disk gone")
}

func TestProviderReadFailureReportsOwnCode(t *testing.T) {
	var reported []error
	s := newTestStoreWithConfig(t, Config{
		Provider: &brokenReadProvider{NewMemoryProvider(testSchemas()...)},
		ErrorHandler: func(err error, schema, key string) {
			reported = append(reported, err)
		},
	})

	// A failed read falls back to the declared default.
	if got := s.GetInt("general", "autosave-interval-minutes"); got != 3 {
		t.Errorf("GetInt with failing provider = %d, want declared default 3", got)
	}
	if len(reported) != 1 {
		t.Fatalf("expected 1 reported error, got %d", len(reported))
	}

	// Read failures carry their own code, not the refused-write one.
	coder, ok := reported[0].(errors.ErrorCoder)
	if !ok {
		t.Fatalf("reported error %T does not expose a code", reported[0])
	}
	if string(coder.ErrorCode()) != ErrCodeProviderRead {
		t.Errorf("error code = %s, want %s", coder.ErrorCode(), ErrCodeProviderRead)
	}
}

func TestGetValueGenericAccess(t *testing.T) {
	s := newTestStore(t)

	v := s.GetValue("general", "autosave-interval-minutes")
	if v.Kind() != TypeInt || v.Int() != 3 {
		t.Errorf("GetValue = %v (%s), want int 3", v, v.Kind())
	}
	if v := s.GetValue("general", "bogus"); v.IsValid() {
		t.Error("GetValue on invalid key should be the absent value")
	}
}
