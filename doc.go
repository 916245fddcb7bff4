// doc.go: package documentation
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

// Package prefs is a schema-scoped preferences facade.
//
// Preferences are organized in schemas, flat groups of typed keys
// identified by a dotted id under a process-wide prefix. Consumers address
// schemas by short name ("general" rather than "org.gnucash.general"),
// read and write through typed accessors, subscribe to change
// notifications and bind keys directly to struct fields.
//
// Basic usage:
//
//	backend, err := prefs.LoadBackend(prefs.Config{Prefix: "org.gnucash"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	autosave := backend.GetBool("general", "autosave-show-explanation")
//	backend.SetInt("general", "autosave-interval-minutes", 5)
//
//	reg := backend.RegisterCb("general", "autosave-interval-minutes",
//	    func(sch *prefs.Schema, key string, user any) {
//	        // react to the change
//	    }, nil)
//	defer backend.RemoveCbByID("general", reg)
//
// Getters never fail loudly: an unknown schema, an undeclared key or a type
// mismatch is logged, reported to the configured ErrorHandler and answered
// with the type's zero value. Setters return false in the same cases and
// persist nothing.
//
// Values live in a SQLite database; schema declarations come from YAML
// files installed next to the application data. StartWatch polls the
// database for out-of-process writes and fires the same change
// notifications as local ones.
//
// A one-shot Migrator imports values from a legacy hierarchical
// configuration tree, driven by an installed manifest and stylesheet, and
// records a marker so the import never repeats.
package prefs
