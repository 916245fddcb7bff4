// binder.go: two-way binding between settings keys and object fields
//
// The binding machinery avoids per-update reflection: the field is located
// once at bind time, then updates go through a raw pointer with a
// compile-time kind discriminator. Only the Bind call itself reflects.
//
// Go has no property-change notification, so the settings-to-field
// direction is automatic while field-to-settings writes go through the
// binding (Set* or Push). Both directions keep the two sides equal.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/agilira/go-errors"
)

// bindKind discriminates the target type for fast updates.
type bindKind uint8

const (
	bindBool bindKind = iota
	bindInt
	bindFloat
	bindString
)

// Binding is a live link between a (schema, key) pair and one field of an
// object. It stays active until Release is called or the Store is closed.
type Binding struct {
	store    *Store
	schema   string
	key      string
	target   unsafe.Pointer
	kind     bindKind
	regID    uint64
	released bool
}

// Bind establishes a two-way synchronization between a settings key and a
// named field of object (a pointer to struct). The field takes its initial
// value from settings. On an invalid key or a field/type mismatch the error
// is logged and nil is returned.
func (s *Store) Bind(schema, key string, object any, property string) *Binding {
	sch := s.Resolve(schema)
	if sch == nil {
		return nil
	}
	if !sch.HasKey(key) {
		s.reportErr(invalidKeyErr(schema, key), schema, key)
		return nil
	}

	target, kind, err := fieldTarget(object, property, sch.KeyType(key))
	if err != nil {
		s.reportErr(err, schema, key)
		return nil
	}
	return s.newBinding(sch, schema, key, target, kind)
}

// BindVar is the pointer form of Bind for callers without a struct: target
// must be *bool, *int, *float64 or *string matching the declared key type
// (enum keys bind to *int).
func (s *Store) BindVar(schema, key string, target any) *Binding {
	sch := s.Resolve(schema)
	if sch == nil {
		return nil
	}
	if !sch.HasKey(key) {
		s.reportErr(invalidKeyErr(schema, key), schema, key)
		return nil
	}

	ptr, kind, err := pointerTarget(target, sch.KeyType(key))
	if err != nil {
		s.reportErr(err, schema, key)
		return nil
	}
	return s.newBinding(sch, schema, key, ptr, kind)
}

// newBinding seeds the target from settings and hooks the change signal.
func (s *Store) newBinding(sch *Schema, schema, key string, target unsafe.Pointer, kind bindKind) *Binding {
	b := &Binding{
		store:  s,
		schema: schema,
		key:    key,
		target: target,
		kind:   kind,
	}
	b.apply(s.currentValue(sch, key))
	b.regID = s.RegisterCb(schema, key, b.onChange, nil)
	return b
}

// onChange is the settings-to-field direction.
func (b *Binding) onChange(sch *Schema, key string, _ any) {
	if b.released {
		return
	}
	b.apply(b.store.currentValue(sch, key))
}

// apply writes a settings value into the bound field.
func (b *Binding) apply(v Value) {
	switch b.kind {
	case bindBool:
		*(*bool)(b.target) = v.Bool() // #nosec G103 -- pointer originates from a checked field in Bind
	case bindInt:
		*(*int)(b.target) = v.Int() // #nosec G103
	case bindFloat:
		*(*float64)(b.target) = v.Float() // #nosec G103
	case bindString:
		*(*string)(b.target) = v.Str() // #nosec G103
	}
}

// current reads the bound field back as a Value, honoring the declared key
// type so enum fields round-trip as enums.
func (b *Binding) current() Value {
	sch := b.store.Resolve(b.schema)
	declared := sch.KeyType(b.key)
	switch b.kind {
	case bindBool:
		return BoolValue(*(*bool)(b.target)) // #nosec G103
	case bindInt:
		if declared == TypeEnum {
			return EnumValue(*(*int)(b.target)) // #nosec G103
		}
		return IntValue(*(*int)(b.target)) // #nosec G103
	case bindFloat:
		return FloatValue(*(*float64)(b.target)) // #nosec G103
	case bindString:
		return StringValue(*(*string)(b.target)) // #nosec G103
	}
	return Value{}
}

// Set writes a value through the binding: it lands in settings first and
// flows back into the field via the change signal, so a refused write
// leaves the field untouched.
func (b *Binding) Set(v Value) bool {
	if b == nil || b.released {
		return false
	}
	return b.store.SetValue(b.schema, b.key, v)
}

// SetBool is the boolean convenience form of Set.
func (b *Binding) SetBool(v bool) bool { return b.Set(BoolValue(v)) }

// SetInt is the integer convenience form of Set.
func (b *Binding) SetInt(v int) bool { return b.Set(IntValue(v)) }

// SetFloat is the float convenience form of Set.
func (b *Binding) SetFloat(v float64) bool { return b.Set(FloatValue(v)) }

// SetString is the string convenience form of Set.
func (b *Binding) SetString(v string) bool { return b.Set(StringValue(v)) }

// Push stores the field's current value into settings. For callers that
// mutated the bound field directly instead of going through Set.
func (b *Binding) Push() bool {
	if b == nil || b.released {
		return false
	}
	return b.store.SetValue(b.schema, b.key, b.current())
}

// Release detaches the binding. Safe to call more than once.
func (b *Binding) Release() {
	if b == nil || b.released {
		return
	}
	b.released = true
	b.store.RemoveCbByID(b.schema, b.regID)
}

// fieldTarget locates property on object and checks it against the
// declared key type.
func fieldTarget(object any, property string, declared KeyType) (unsafe.Pointer, bindKind, error) {
	rv := reflect.ValueOf(object)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, 0, errors.New(ErrCodeInvalidConfig, "bind target must be a non-nil pointer to struct")
	}
	field := rv.Elem().FieldByName(property)
	if !field.IsValid() {
		return nil, 0, errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("bind target has no property %s", property))
	}
	if !field.CanSet() {
		return nil, 0, errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("property %s is not settable", property))
	}

	kind, ok := kindFor(declared, field.Kind())
	if !ok {
		return nil, 0, errors.New(ErrCodeTypeMismatch,
			fmt.Sprintf("property %s (%s) does not match declared type %s",
				property, field.Kind(), declared))
	}
	return field.Addr().UnsafePointer(), kind, nil
}

// pointerTarget classifies a bare pointer target.
func pointerTarget(target any, declared KeyType) (unsafe.Pointer, bindKind, error) {
	switch p := target.(type) {
	case *bool:
		if declared == TypeBool {
			return unsafe.Pointer(p), bindBool, nil // #nosec G103
		}
	case *int:
		if declared == TypeInt || declared == TypeEnum {
			return unsafe.Pointer(p), bindInt, nil // #nosec G103
		}
	case *float64:
		if declared == TypeFloat {
			return unsafe.Pointer(p), bindFloat, nil // #nosec G103
		}
	case *string:
		if declared == TypeString {
			return unsafe.Pointer(p), bindString, nil // #nosec G103
		}
	default:
		return nil, 0, errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported bind target %T", target))
	}
	return nil, 0, errors.New(ErrCodeTypeMismatch,
		fmt.Sprintf("bind target %T does not match declared type %s", target, declared))
}

// kindFor maps a declared key type and a reflect kind to a bindKind.
func kindFor(declared KeyType, fk reflect.Kind) (bindKind, bool) {
	switch declared {
	case TypeBool:
		if fk == reflect.Bool {
			return bindBool, true
		}
	case TypeInt, TypeEnum:
		if fk == reflect.Int {
			return bindInt, true
		}
	case TypeFloat:
		if fk == reflect.Float64 {
			return bindFloat, true
		}
	case TypeString:
		if fk == reflect.String {
			return bindString, true
		}
	}
	return 0, false
}
