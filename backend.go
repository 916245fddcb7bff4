// backend.go: provider-neutral dispatch interface
//
// The original design exposed a process-wide record of function pointers
// populated at startup. Here that record is an interface: LoadBackend hands
// out one concrete implementation, and consumers never touch *Store
// directly, so alternate providers can be substituted for testing.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

// ChangeFunc is a change-notification callback. It receives the schema
// handle the registration was attached to, the key that changed, and the
// caller-supplied user data.
type ChangeFunc func(sch *Schema, key string, user any)

// Backend is the complete dispatch surface of the preferences facade:
// typed accessors, the callback registry and property binding. Every slot
// of the historical function table has a counterpart here.
type Backend interface {
	// Callback registry
	RegisterCb(schema, key string, fn ChangeFunc, user any) uint64
	RemoveCbByFunc(schema, key string, fn ChangeFunc, user any)
	RemoveCbByID(schema string, id uint64)
	RegisterGroupCb(schema string, fn ChangeFunc, user any) uint64
	RemoveGroupCbByFunc(schema string, fn ChangeFunc, user any)

	// Property binding
	Bind(schema, key string, object any, property string) *Binding

	// Typed accessors
	GetBool(schema, key string) bool
	GetInt(schema, key string) int
	GetFloat(schema, key string) float64
	GetString(schema, key string) string
	GetEnum(schema, key string) int
	GetValue(schema, key string) Value

	SetBool(schema, key string, value bool) bool
	SetInt(schema, key string, value int) bool
	SetFloat(schema, key string, value float64) bool
	SetString(schema, key string, value string) bool
	SetEnum(schema, key string, value int) bool
	SetValue(schema, key string, value Value) bool

	Reset(schema, key string)
	ResetGroup(schema string)
}

// Store implements the full dispatch surface.
var _ Backend = (*Store)(nil)
