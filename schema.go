// schema.go: schema handles and the YAML schema file loader
//
// A schema is a named, declared set of typed keys with defaults. Handles are
// cached process-wide by the Store; callback registrations are owned by the
// handle they were attached to.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"fmt"
	"os"
	"sort"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// KeyInfo describes one declared key of a schema.
type KeyInfo struct {
	Type    KeyType
	Default Value
	Choices []string // enum keys only
}

// Schema is the handle returned by Store.Resolve. The same handle is
// returned for every lookup of the same normalized name until process exit.
type Schema struct {
	id   string
	keys map[string]KeyInfo

	// Registrations attached to this handle, keyed by handler id.
	// Guarded by the owning Store's mutex.
	handlers map[uint64]*handlerReg
}

// NewSchema builds a schema handle from explicit declarations. Mostly useful
// with the in-memory provider; production schemas come from YAML files.
func NewSchema(id string, keys map[string]KeyInfo) *Schema {
	ks := make(map[string]KeyInfo, len(keys))
	for name, info := range keys {
		if name == "" {
			continue
		}
		ks[name] = info
	}
	return &Schema{
		id:       id,
		keys:     ks,
		handlers: make(map[uint64]*handlerReg),
	}
}

// ID returns the fully qualified schema name.
func (s *Schema) ID() string { return s.id }

// HasKey reports whether key is declared in the schema. Comparison is
// byte-wise; the empty key is never valid. Pure and side-effect free.
func (s *Schema) HasKey(key string) bool {
	if s == nil || key == "" {
		return false
	}
	for declared := range s.keys {
		if declared == key {
			return true
		}
	}
	return false
}

// Keys enumerates the declared key set in stable order.
func (s *Schema) Keys() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.keys))
	for name := range s.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KeyType returns the declared type of key, or TypeInvalid if undeclared.
func (s *Schema) KeyType(key string) KeyType {
	if s == nil {
		return TypeInvalid
	}
	return s.keys[key].Type
}

// Default returns the schema-declared default value of key.
func (s *Schema) Default(key string) Value {
	if s == nil {
		return Value{}
	}
	return s.keys[key].Default
}

// Choices returns the declared choice list of an enum key.
func (s *Schema) Choices(key string) []string {
	if s == nil {
		return nil
	}
	return s.keys[key].Choices
}

// Schema file format, one document per fully qualified schema id:
//
//	id: org.gnucash.general
//	keys:
//	  window-width:
//	    type: int
//	    default: 800
//	  currency-choice:
//	    type: enum
//	    choices: [locale, other]
//	    default: locale
type schemaFile struct {
	ID   string                   `yaml:"id"`
	Keys map[string]schemaFileKey `yaml:"keys"`
}

type schemaFileKey struct {
	Type    string   `yaml:"type"`
	Default any      `yaml:"default"`
	Choices []string `yaml:"choices"`
}

// loadSchemaFile parses a YAML schema declaration into a Schema handle.
func loadSchemaFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- schema dir is operator-controlled
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeUnknownSchema, "schema file unreadable").
			WithContext("path", path)
	}

	var doc schemaFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, ErrCodeBadSchemaFile, "malformed schema file").
			WithContext("path", path)
	}
	if doc.ID == "" {
		return nil, errors.New(ErrCodeBadSchemaFile, "schema file missing id").
			WithContext("path", path)
	}

	keys := make(map[string]KeyInfo, len(doc.Keys))
	for name, decl := range doc.Keys {
		if name == "" {
			return nil, errors.New(ErrCodeBadSchemaFile, "schema declares an empty key name").
				WithContext("path", path)
		}
		info, err := decl.keyInfo()
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeBadSchemaFile,
				fmt.Sprintf("bad declaration for key %s", name)).
				WithContext("path", path)
		}
		keys[name] = info
	}

	return NewSchema(doc.ID, keys), nil
}

// keyInfo validates a single key declaration and resolves its default.
func (d schemaFileKey) keyInfo() (KeyInfo, error) {
	t := ParseKeyType(d.Type)
	if t == TypeInvalid {
		return KeyInfo{}, errors.New(ErrCodeBadSchemaFile, "unknown key type "+d.Type)
	}
	if t == TypeEnum && len(d.Choices) == 0 {
		return KeyInfo{}, errors.New(ErrCodeBadSchemaFile, "enum key declares no choices")
	}

	def, err := defaultFromYAML(d.Default, t, d.Choices)
	if err != nil {
		return KeyInfo{}, err
	}
	return KeyInfo{Type: t, Default: def, Choices: d.Choices}, nil
}

// defaultFromYAML converts the YAML default node to a typed Value.
// A missing default resolves to the type's zero.
func defaultFromYAML(raw any, t KeyType, choices []string) (Value, error) {
	if raw == nil {
		switch t {
		case TypeBool:
			return BoolValue(false), nil
		case TypeInt:
			return IntValue(0), nil
		case TypeFloat:
			return FloatValue(0), nil
		case TypeString:
			return StringValue(""), nil
		case TypeEnum:
			return EnumValue(0), nil
		}
	}

	switch t {
	case TypeBool:
		if b, ok := raw.(bool); ok {
			return BoolValue(b), nil
		}
	case TypeInt:
		if i, ok := raw.(int); ok {
			return IntValue(i), nil
		}
	case TypeFloat:
		switch v := raw.(type) {
		case float64:
			return FloatValue(v), nil
		case int:
			return FloatValue(float64(v)), nil
		}
	case TypeString:
		if s, ok := raw.(string); ok {
			return StringValue(s), nil
		}
	case TypeEnum:
		switch v := raw.(type) {
		case string:
			for i, c := range choices {
				if c == v {
					return EnumValue(i), nil
				}
			}
			return Value{}, errors.New(ErrCodeBadSchemaFile, "enum default not in choices: "+v)
		case int:
			if v < 0 || v >= len(choices) {
				return Value{}, errors.New(ErrCodeBadSchemaFile, "enum default ordinal out of range")
			}
			return EnumValue(v), nil
		}
	}
	return Value{}, errors.New(ErrCodeBadSchemaFile,
		fmt.Sprintf("default %v does not match declared type %s", raw, t))
}
