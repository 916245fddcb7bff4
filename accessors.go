// accessors.go: typed get/set/reset operations
//
// Check ordering is fixed and observable in error reporting:
// schema resolution, then key validity, then type match, then the provider
// call. Getters fall back to the type's zero on any failure; setters return
// false. Nothing here panics or propagates errors to the caller.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"fmt"

	"github.com/agilira/go-errors"
)

// lookup runs the resolve/key/type check chain for a read. A want of
// TypeInvalid skips the type check (generic Value access).
func (s *Store) lookup(schema, key string, want KeyType) *Schema {
	sch := s.Resolve(schema)
	if sch == nil {
		return nil
	}
	if !sch.HasKey(key) {
		s.reportErr(invalidKeyErr(schema, key), schema, key)
		return nil
	}
	if want != TypeInvalid && sch.KeyType(key) != want {
		s.reportErr(errors.New(ErrCodeTypeMismatch,
			fmt.Sprintf("key %s in schema %s is declared %s, not %s",
				key, schema, sch.KeyType(key), want)), schema, key)
		return nil
	}
	return sch
}

// currentValue reads a key through the provider, falling back to the
// schema-declared default when no explicit value is stored.
func (s *Store) currentValue(sch *Schema, key string) Value {
	v, ok, err := s.provider.Read(sch, key)
	if err != nil {
		s.reportErr(errors.Wrap(err, ErrCodeProviderRead, "provider read failed"), sch.ID(), key)
		return sch.Default(key)
	}
	if !ok {
		return sch.Default(key)
	}
	return v
}

// setValue runs the resolve/key checks, hands the write to the provider and
// dispatches change notifications on success. Refused writes return false
// and persist nothing.
func (s *Store) setValue(schema, key string, value Value) bool {
	sch := s.Resolve(schema)
	if sch == nil {
		return false
	}
	if !sch.HasKey(key) {
		s.reportErr(invalidKeyErr(schema, key), schema, key)
		return false
	}

	old := s.currentValue(sch, key)
	if err := s.provider.Write(sch, key, value); err != nil {
		s.reportErr(errors.Wrap(err, ErrCodeWriteRefused,
			fmt.Sprintf("Unable to set value for key %s in schema %s", key, schema)), schema, key)
		return false
	}

	s.audit.LogPrefChange(sch.ID(), key, old.String(), value.String())
	s.emit(sch, key)
	return true
}

// GetBool returns the boolean value of key, or false on any failure.
func (s *Store) GetBool(schema, key string) bool {
	sch := s.lookup(schema, key, TypeBool)
	if sch == nil {
		return false
	}
	return s.currentValue(sch, key).Bool()
}

// SetBool stores a boolean value and reports success.
func (s *Store) SetBool(schema, key string, value bool) bool {
	return s.setValue(schema, key, BoolValue(value))
}

// GetInt returns the integer value of key, or 0 on any failure.
func (s *Store) GetInt(schema, key string) int {
	sch := s.lookup(schema, key, TypeInt)
	if sch == nil {
		return 0
	}
	return s.currentValue(sch, key).Int()
}

// SetInt stores an integer value and reports success.
func (s *Store) SetInt(schema, key string, value int) bool {
	return s.setValue(schema, key, IntValue(value))
}

// GetFloat returns the floating-point value of key, or 0 on any failure.
func (s *Store) GetFloat(schema, key string) float64 {
	sch := s.lookup(schema, key, TypeFloat)
	if sch == nil {
		return 0
	}
	return s.currentValue(sch, key).Float()
}

// SetFloat stores a floating-point value and reports success.
func (s *Store) SetFloat(schema, key string, value float64) bool {
	return s.setValue(schema, key, FloatValue(value))
}

// GetString returns the string value of key, or "" on any failure.
func (s *Store) GetString(schema, key string) string {
	sch := s.lookup(schema, key, TypeString)
	if sch == nil {
		return ""
	}
	return s.currentValue(sch, key).Str()
}

// SetString stores a string value and reports success.
func (s *Store) SetString(schema, key string, value string) bool {
	return s.setValue(schema, key, StringValue(value))
}

// GetEnum returns the enum ordinal of key, or 0 on any failure.
func (s *Store) GetEnum(schema, key string) int {
	sch := s.lookup(schema, key, TypeEnum)
	if sch == nil {
		return 0
	}
	return s.currentValue(sch, key).Enum()
}

// SetEnum stores an enum ordinal. Ordinals outside the schema-declared
// choice list are refused by the provider and reported here.
func (s *Store) SetEnum(schema, key string, value int) bool {
	return s.setValue(schema, key, EnumValue(value))
}

// GetValue returns the opaque variant held by key, or the absent Value on
// any failure. No type check is applied beyond key validity.
func (s *Store) GetValue(schema, key string) Value {
	sch := s.lookup(schema, key, TypeInvalid)
	if sch == nil {
		return Value{}
	}
	return s.currentValue(sch, key)
}

// SetValue stores an opaque variant and reports success.
func (s *Store) SetValue(schema, key string, value Value) bool {
	return s.setValue(schema, key, value)
}

// Reset restores the schema-declared default for key.
func (s *Store) Reset(schema, key string) {
	sch := s.Resolve(schema)
	if sch == nil {
		return
	}
	if !sch.HasKey(key) {
		s.reportErr(invalidKeyErr(schema, key), schema, key)
		return
	}

	old := s.currentValue(sch, key)
	if err := s.provider.Delete(sch, key); err != nil {
		s.reportErr(errors.Wrap(err, ErrCodeWriteRefused,
			fmt.Sprintf("Unable to reset key %s in schema %s", key, schema)), schema, key)
		return
	}

	s.audit.LogPrefChange(sch.ID(), key, old.String(), sch.Default(key).String())
	s.emit(sch, key)
}

// ResetGroup restores the default for every declared key of the schema.
// A schema with no keys is a no-op.
func (s *Store) ResetGroup(schema string) {
	sch := s.Resolve(schema)
	if sch == nil {
		return
	}
	for _, key := range sch.Keys() {
		s.Reset(schema, key)
	}
}
