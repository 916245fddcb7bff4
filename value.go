// value.go: typed preference values
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"fmt"
	"strconv"

	"github.com/agilira/go-errors"
)

// KeyType identifies the declared type of a preference key.
type KeyType int

const (
	TypeInvalid KeyType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeEnum
)

func (t KeyType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeEnum:
		return "enum"
	default:
		return "invalid"
	}
}

// ParseKeyType maps a schema file type name to a KeyType.
// Unknown names return TypeInvalid.
func ParseKeyType(name string) KeyType {
	switch name {
	case "bool", "boolean":
		return TypeBool
	case "int", "integer":
		return TypeInt
	case "float", "double":
		return TypeFloat
	case "string":
		return TypeString
	case "enum":
		return TypeEnum
	default:
		return TypeInvalid
	}
}

// Value is the opaque variant carried by the generic accessors. The zero
// Value is the absent variant: Kind() reports TypeInvalid and every typed
// accessor returns its zero.
type Value struct {
	kind KeyType
	b    bool
	i    int64
	f    float64
	s    string
}

// BoolValue wraps a boolean in a Value.
func BoolValue(v bool) Value { return Value{kind: TypeBool, b: v} }

// IntValue wraps an integer in a Value.
func IntValue(v int) Value { return Value{kind: TypeInt, i: int64(v)} }

// FloatValue wraps a float in a Value.
func FloatValue(v float64) Value { return Value{kind: TypeFloat, f: v} }

// StringValue wraps a string in a Value.
func StringValue(v string) Value { return Value{kind: TypeString, s: v} }

// EnumValue wraps an enum ordinal in a Value. The ordinal indexes the
// schema-declared choice list; range checking happens at write time.
func EnumValue(v int) Value { return Value{kind: TypeEnum, i: int64(v)} }

// Kind reports the type of the wrapped value.
func (v Value) Kind() KeyType { return v.kind }

// IsValid reports whether v carries a value at all.
func (v Value) IsValid() bool { return v.kind != TypeInvalid }

// Bool returns the boolean payload, or false for any other kind.
func (v Value) Bool() bool { return v.kind == TypeBool && v.b }

// Int returns the integer payload. Enum values also report their ordinal.
func (v Value) Int() int {
	if v.kind == TypeInt || v.kind == TypeEnum {
		return int(v.i)
	}
	return 0
}

// Float returns the float payload, or 0 for any other kind.
func (v Value) Float() float64 {
	if v.kind == TypeFloat {
		return v.f
	}
	return 0
}

// Str returns the string payload, or "" for any other kind.
func (v Value) Str() string {
	if v.kind == TypeString {
		return v.s
	}
	return ""
}

// Enum returns the enum ordinal, or 0 for any other kind.
func (v Value) Enum() int {
	if v.kind == TypeEnum {
		return int(v.i)
	}
	return 0
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case TypeBool:
		return v.b == o.b
	case TypeInt, TypeEnum:
		return v.i == o.i
	case TypeFloat:
		return v.f == o.f
	case TypeString:
		return v.s == o.s
	default:
		return true
	}
}

// String renders the value for logs and the CLI.
func (v Value) String() string {
	switch v.kind {
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeInt, TypeEnum:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case TypeString:
		return v.s
	default:
		return "<absent>"
	}
}

// encode serializes a Value for the SQLite provider. The payload is the
// String() rendering; kind disambiguates on the way back.
func (v Value) encode() (int, string) {
	return int(v.kind), v.String()
}

// decodeValue rebuilds a Value from its stored (kind, payload) pair.
func decodeValue(kind int, payload string) (Value, error) {
	switch KeyType(kind) {
	case TypeBool:
		b, err := strconv.ParseBool(payload)
		if err != nil {
			return Value{}, errors.Wrap(err, ErrCodeBadSchemaFile, "corrupt stored bool value")
		}
		return BoolValue(b), nil
	case TypeInt:
		i, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return Value{}, errors.Wrap(err, ErrCodeBadSchemaFile, "corrupt stored int value")
		}
		return IntValue(int(i)), nil
	case TypeEnum:
		i, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return Value{}, errors.Wrap(err, ErrCodeBadSchemaFile, "corrupt stored enum value")
		}
		return EnumValue(int(i)), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return Value{}, errors.Wrap(err, ErrCodeBadSchemaFile, "corrupt stored float value")
		}
		return FloatValue(f), nil
	case TypeString:
		return StringValue(payload), nil
	default:
		return Value{}, errors.New(ErrCodeBadSchemaFile, fmt.Sprintf("corrupt stored value kind %d", kind))
	}
}

// CoerceValue converts a raw textual value (a legacy store export, a CLI
// argument) to the wanted type. Used by the migration interpreter for its
// optional type coercion and by prefstool set.
func CoerceValue(raw string, want KeyType, choices []string) (Value, error) {
	switch want {
	case TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, errors.Wrap(err, ErrCodeTypeMismatch, "cannot coerce to bool: "+raw)
		}
		return BoolValue(b), nil
	case TypeInt:
		// Legacy stores occasionally hold integers rendered as floats.
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return IntValue(int(i)), nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, errors.Wrap(err, ErrCodeTypeMismatch, "cannot coerce to int: "+raw)
		}
		return IntValue(int(f)), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, errors.Wrap(err, ErrCodeTypeMismatch, "cannot coerce to float: "+raw)
		}
		return FloatValue(f), nil
	case TypeString:
		return StringValue(raw), nil
	case TypeEnum:
		// Accept either the choice name or a bare ordinal.
		for i, c := range choices {
			if c == raw {
				return EnumValue(i), nil
			}
		}
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return EnumValue(int(i)), nil
		}
		return Value{}, errors.New(ErrCodeTypeMismatch, "cannot coerce to enum: "+raw)
	default:
		return Value{}, errors.New(ErrCodeTypeMismatch, "cannot coerce to invalid type")
	}
}
