// prefs_test.go: store, prefix and schema resolution tests
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"testing"

	"github.com/rs/zerolog"
)

// testSchemas builds the schema set used across the test suite.
func testSchemas() []*Schema {
	base := NewSchema("org.gnucash", map[string]KeyInfo{
		"migration-done": {Type: TypeBool, Default: BoolValue(false)},
	})
	general := NewSchema("org.gnucash.general", map[string]KeyInfo{
		"save-window-geometry":      {Type: TypeBool, Default: BoolValue(true)},
		"autosave-interval-minutes": {Type: TypeInt, Default: IntValue(3)},
		"account-separator":         {Type: TypeString, Default: StringValue("colon")},
		"default-zoom":              {Type: TypeFloat, Default: FloatValue(1.0)},
		"currency-choice": {
			Type: TypeEnum, Default: EnumValue(0), Choices: []string{"locale", "other"},
		},
	})
	history := NewSchema("org.gnucash.history", map[string]KeyInfo{
		"maxfiles": {Type: TypeInt, Default: IntValue(4)},
		"file0":    {Type: TypeString, Default: StringValue("")},
	})
	return []*Schema{base, general, history}
}

// newTestStore builds a store over the in-memory provider with quiet logs.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreWithConfig(t, Config{})
}

func newTestStoreWithConfig(t *testing.T, cfg Config) *Store {
	t.Helper()
	nop := zerolog.Nop()
	if cfg.Prefix == "" {
		cfg.Prefix = "org.gnucash"
	}
	if cfg.Provider == nil {
		cfg.Provider = NewMemoryProvider(testSchemas()...)
	}
	if cfg.Logger == nil {
		cfg.Logger = &nop
	}
	// Non-zero disabled config so defaults do not re-enable auditing.
	if cfg.Audit == (AuditConfig{}) {
		cfg.Audit = AuditConfig{Enabled: false, BufferSize: 1}
	}
	s, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNormalizeSchemaName(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		in   string
		want string
	}{
		{"", "org.gnucash"},
		{"general", "org.gnucash.general"},
		{"org.gnucash.general", "org.gnucash.general"},
		{"org.gnucash", "org.gnucash"},
	}
	for _, tc := range tests {
		if got := s.NormalizeSchemaName(tc.in); got != tc.want {
			t.Errorf("NormalizeSchemaName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	// Normalization is idempotent.
	for _, tc := range tests {
		once := s.NormalizeSchemaName(tc.in)
		if twice := s.NormalizeSchemaName(once); twice != once {
			t.Errorf("NormalizeSchemaName not idempotent: %q -> %q -> %q", tc.in, once, twice)
		}
	}
}

func TestNormalizeWithoutPrefix(t *testing.T) {
	s := newTestStoreWithConfig(t, Config{Prefix: "unset"})
	s.prefix = "" // simulate pre-SetPrefix state

	if got := s.NormalizeSchemaName("general"); got != "" {
		t.Errorf("expected absent name without prefix, got %q", got)
	}
	if sch := s.Resolve("general"); sch != nil {
		t.Error("Resolve should fail without a prefix")
	}
}

func TestSetPrefixIsWriteOnce(t *testing.T) {
	s := newTestStore(t)

	s.SetPrefix("org.example")
	if got := s.Prefix(); got != "org.gnucash" {
		t.Errorf("prefix changed to %q, want original org.gnucash", got)
	}

	// Re-setting the same value is allowed.
	s.SetPrefix("org.gnucash")
	if got := s.Prefix(); got != "org.gnucash" {
		t.Errorf("prefix = %q after idempotent set", got)
	}
}

func TestResolveReturnsStableHandle(t *testing.T) {
	s := newTestStore(t)

	a := s.Resolve("general")
	if a == nil {
		t.Fatal("Resolve returned nil for a known schema")
	}
	b := s.Resolve("org.gnucash.general")
	if a != b {
		t.Error("short and full name resolved to different handles")
	}
	if c := s.Resolve("general"); c != a {
		t.Error("repeated resolve returned a different handle")
	}
}

func TestUnknownSchemaIsRecoverable(t *testing.T) {
	var reported []error
	s := newTestStoreWithConfig(t, Config{
		ErrorHandler: func(err error, schema, key string) { reported = append(reported, err) },
	})

	if sch := s.Resolve("no-such-schema"); sch != nil {
		t.Fatal("Resolve returned a handle for an unknown schema")
	}

	// Reads answer the zero value, writes report failure; nothing panics.
	if got := s.GetBool("no-such-schema", "anything"); got {
		t.Error("GetBool on unknown schema should return false")
	}
	if got := s.GetString("no-such-schema", "anything"); got != "" {
		t.Errorf("GetString on unknown schema = %q, want empty", got)
	}
	if ok := s.SetInt("no-such-schema", "anything", 7); ok {
		t.Error("SetInt on unknown schema should return false")
	}

	// The miss is not cached: a schema added later resolves.
	mp := s.provider.(*MemoryProvider)
	mp.mu.Lock()
	mp.schemas["org.gnucash.late"] = NewSchema("org.gnucash.late", map[string]KeyInfo{
		"k": {Type: TypeInt, Default: IntValue(1)},
	})
	mp.mu.Unlock()
	if sch := s.Resolve("late"); sch == nil {
		t.Error("schema registered after a failed resolve should now resolve")
	}
}

func TestErrorHandlerReceivesInvalidKey(t *testing.T) {
	var schemas, keys []string
	s := newTestStoreWithConfig(t, Config{
		ErrorHandler: func(err error, schema, key string) {
			schemas = append(schemas, schema)
			keys = append(keys, key)
		},
	})

	s.GetBool("general", "no-such-key")
	if len(keys) != 1 || keys[0] != "no-such-key" || schemas[0] != "general" {
		t.Errorf("error handler got schemas=%v keys=%v", schemas, keys)
	}
}

func TestStoreCloseIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	s.StartWatch()

	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	// The test cleanup closes a third time; both repeats must be no-ops.
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestLoadBackendIsIdempotent(t *testing.T) {
	// LoadBackend state is process-global; drive the same path privately.
	nop := zerolog.Nop()
	cfg := Config{
		Prefix:   "org.gnucash",
		Provider: NewMemoryProvider(testSchemas()...),
		Logger:   &nop,
		Audit:    AuditConfig{Enabled: false, BufferSize: 1},
	}
	b1, err := LoadBackend(cfg)
	if err != nil {
		t.Fatalf("LoadBackend: %v", err)
	}
	b2, err := LoadBackend(Config{Prefix: "org.other"})
	if err != nil {
		t.Fatalf("second LoadBackend: %v", err)
	}
	if b1 != b2 {
		t.Error("LoadBackend returned different backends")
	}
	if DefaultBackend() != b1 {
		t.Error("DefaultBackend does not match the loaded backend")
	}
}
