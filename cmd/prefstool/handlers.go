// handlers.go: prefstool command handlers
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"

	prefs "github.com/DamianMcNulty/gnucash"
	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/rs/zerolog"
)

// quietLogger drops everything below warning for interactive use.
func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
}

// manager routes prefstool commands to the backend.
type manager struct {
	app     *orpheus.App
	backend prefs.Backend
	store   *prefs.Store
}

func newManager(backend prefs.Backend, store *prefs.Store) *manager {
	app := orpheus.New("prefstool").
		SetDescription("Inspect and edit the preferences database").
		SetVersion("1.0.0")

	m := &manager{app: app, backend: backend, store: store}

	getCmd := orpheus.NewCommand("get", "Print the value of a key")
	getCmd.SetHandler(m.handleGet)
	app.AddCommand(getCmd)

	setCmd := orpheus.NewCommand("set", "Set the value of a key")
	setCmd.SetHandler(m.handleSet)
	app.AddCommand(setCmd)

	resetCmd := orpheus.NewCommand("reset", "Restore a key, or a whole schema, to defaults")
	resetCmd.SetHandler(m.handleReset)
	app.AddCommand(resetCmd)

	listCmd := orpheus.NewCommand("list", "List the keys of a schema with their values")
	listCmd.SetHandler(m.handleList)
	app.AddCommand(listCmd)

	migrateCmd := orpheus.NewCommand("migrate", "Run the one-shot legacy migration")
	migrateCmd.SetHandler(m.handleMigrate)
	app.AddCommand(migrateCmd)

	return m
}

func (m *manager) Run(args []string) error {
	return m.app.Run(args)
}

// handleGet prints the effective value: prefstool get <schema> <key>
func (m *manager) handleGet(ctx *orpheus.Context) error {
	schema, key := ctx.GetArg(0), ctx.GetArg(1)
	if schema == "" || key == "" {
		return errors.New(prefs.ErrCodeInvalidKey, "usage: get <schema> <key>")
	}

	v := m.backend.GetValue(schema, key)
	if !v.IsValid() {
		return errors.New(prefs.ErrCodeInvalidKey,
			fmt.Sprintf("no value for key %s in schema %s", key, schema))
	}
	fmt.Println(v.String())
	return nil
}

// handleSet coerces the raw argument to the declared type and stores it:
// prefstool set <schema> <key> <value>
func (m *manager) handleSet(ctx *orpheus.Context) error {
	schema, key, raw := ctx.GetArg(0), ctx.GetArg(1), ctx.GetArg(2)
	if schema == "" || key == "" || raw == "" {
		return errors.New(prefs.ErrCodeInvalidKey, "usage: set <schema> <key> <value>")
	}

	sch := m.store.Resolve(schema)
	if sch == nil {
		return errors.New(prefs.ErrCodeUnknownSchema, "unknown schema "+schema)
	}
	if !sch.HasKey(key) {
		return errors.New(prefs.ErrCodeInvalidKey,
			fmt.Sprintf("Invalid key %s for schema %s", key, schema))
	}

	v, err := prefs.CoerceValue(raw, sch.KeyType(key), sch.Choices(key))
	if err != nil {
		return err
	}
	if !m.backend.SetValue(schema, key, v) {
		return errors.New(prefs.ErrCodeWriteRefused,
			fmt.Sprintf("Unable to set value for key %s in schema %s", key, schema))
	}
	fmt.Printf("%s %s = %s\n", schema, key, v.String())
	return nil
}

// handleReset restores defaults: prefstool reset <schema> [<key>]
func (m *manager) handleReset(ctx *orpheus.Context) error {
	schema, key := ctx.GetArg(0), ctx.GetArg(1)
	if schema == "" {
		return errors.New(prefs.ErrCodeInvalidKey, "usage: reset <schema> [<key>]")
	}
	if key == "" {
		m.backend.ResetGroup(schema)
		fmt.Printf("reset all keys of %s\n", schema)
		return nil
	}
	m.backend.Reset(schema, key)
	fmt.Printf("reset %s %s\n", schema, key)
	return nil
}

// handleList prints every key of a schema: prefstool list <schema>
func (m *manager) handleList(ctx *orpheus.Context) error {
	schema := ctx.GetArg(0)
	if schema == "" {
		return errors.New(prefs.ErrCodeInvalidKey, "usage: list <schema>")
	}
	sch := m.store.Resolve(schema)
	if sch == nil {
		return errors.New(prefs.ErrCodeUnknownSchema, "unknown schema "+schema)
	}

	for _, key := range sch.Keys() {
		fmt.Printf("%-40s %-8s %s\n", key, sch.KeyType(key), m.backend.GetValue(schema, key))
	}
	return nil
}

// handleMigrate runs the one-shot legacy migration.
func (m *manager) handleMigrate(_ *orpheus.Context) error {
	return prefs.NewMigrator(m.store).Migrate()
}
