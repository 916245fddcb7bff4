// provider.go: the settings provider abstraction
//
// The on-disk format of the settings database is the provider's business;
// the Store only validates and dispatches. The SQLite provider is the
// production implementation, the memory provider serves tests and embedded
// use.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"fmt"
	"sync"

	"github.com/agilira/go-errors"
)

// SettingsProvider persists preference values and supplies schema
// declarations. Read reports ok=false when no explicit value is stored for
// the key, in which case the caller falls back to the schema default.
// Write must refuse values that violate the schema declaration.
type SettingsProvider interface {
	LoadSchema(id string) (*Schema, error)
	Read(sch *Schema, key string) (Value, bool, error)
	Write(sch *Schema, key string, value Value) error
	Delete(sch *Schema, key string) error
	Close() error
}

// checkWrite enforces the schema declaration on a write: the value kind
// must match the declared type and enum ordinals must index the declared
// choice list. Shared by every provider.
func checkWrite(sch *Schema, key string, value Value) error {
	declared := sch.KeyType(key)
	if value.Kind() != declared {
		return errors.New(ErrCodeWriteRefused,
			fmt.Sprintf("value of kind %s refused for %s key %s", value.Kind(), declared, key))
	}
	if declared == TypeEnum {
		if n := len(sch.Choices(key)); value.Enum() < 0 || value.Enum() >= n {
			return errors.New(ErrCodeWriteRefused,
				fmt.Sprintf("enum ordinal %d out of range for key %s", value.Enum(), key))
		}
	}
	return nil
}

// MemoryProvider keeps values in process memory over a fixed schema set.
type MemoryProvider struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
	values  map[string]map[string]Value
}

// NewMemoryProvider builds a provider serving exactly the given schemas.
func NewMemoryProvider(schemas ...*Schema) *MemoryProvider {
	byID := make(map[string]*Schema, len(schemas))
	for _, sch := range schemas {
		byID[sch.ID()] = sch
	}
	return &MemoryProvider{
		schemas: byID,
		values:  make(map[string]map[string]Value),
	}
}

// LoadSchema returns the registered schema or an unknown-schema error.
func (p *MemoryProvider) LoadSchema(id string) (*Schema, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sch, ok := p.schemas[id]
	if !ok {
		return nil, errors.New(ErrCodeUnknownSchema, "unknown schema "+id)
	}
	return sch, nil
}

// Read returns the stored value for key, if any.
func (p *MemoryProvider) Read(sch *Schema, key string) (Value, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[sch.ID()][key]
	return v, ok, nil
}

// Write stores a value after schema validation.
func (p *MemoryProvider) Write(sch *Schema, key string, value Value) error {
	if err := checkWrite(sch, key, value); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.values[sch.ID()] == nil {
		p.values[sch.ID()] = make(map[string]Value)
	}
	p.values[sch.ID()][key] = value
	return nil
}

// Delete drops the stored value so reads fall back to the default.
func (p *MemoryProvider) Delete(sch *Schema, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values[sch.ID()], key)
	return nil
}

// Close is a no-op for the memory provider.
func (p *MemoryProvider) Close() error { return nil }
