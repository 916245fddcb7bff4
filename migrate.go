// migrate.go: one-shot migration from the legacy configuration tree
//
// The pipeline: check the marker, export the legacy tree into a scratch
// directory, transform the installed manifest through the installed
// stylesheet into a migration program, run the program against the backend,
// set the marker, clean up. Every stage is checked; a failed stage leaves
// the scratch directory behind for inspection and reports which stage broke.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/agilira/go-errors"
	"github.com/beevik/etree"
)

const (
	migrationManifest   = "migratable-prefs.xml"
	migrationStylesheet = "make-prefs-migration-script.xsl"
	migrationScratchDir = ".gnc-migration-tmp"
	migrationScriptName = "migrate-prefs-user.mig"
	legacyExportName    = "legacy-values.xml"

	// MigrationDoneKey is the marker key in the base prefix schema. Once
	// true, Migrate is a no-op for the rest of the user's life.
	MigrationDoneKey = "migration-done"
)

// manifestResolver maps an include href to the file to load. The migration
// installs a scratch-aware resolver for the duration of the run; everything
// else sees the default.
type manifestResolver func(baseDir, href string) (string, error)

var (
	resolverMu     sync.Mutex
	activeResolver manifestResolver = defaultManifestResolver
)

// defaultManifestResolver resolves hrefs relative to the including file.
func defaultManifestResolver(baseDir, href string) (string, error) {
	path := href
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, href)
	}
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// installResolver swaps the active resolver and returns a restore func.
// Callers must run the restore on every exit path.
func installResolver(r manifestResolver) func() {
	resolverMu.Lock()
	prev := activeResolver
	activeResolver = r
	resolverMu.Unlock()
	return func() {
		resolverMu.Lock()
		activeResolver = prev
		resolverMu.Unlock()
	}
}

func resolveManifestHref(baseDir, href string) (string, error) {
	resolverMu.Lock()
	r := activeResolver
	resolverMu.Unlock()
	return r(baseDir, href)
}

// Migrator drives the one-shot legacy migration for one Store.
type Migrator struct {
	store *Store
}

// NewMigrator builds a migrator over the store's configured paths.
func NewMigrator(store *Store) *Migrator {
	return &Migrator{store: store}
}

// Migrate runs the legacy migration if it has not run before. It returns
// nil both after a successful run and when there is nothing to do (marker
// already set, or no legacy tree to migrate from).
func (m *Migrator) Migrate() error {
	cfg := m.store.cfg
	log := m.store.log

	home := os.Getenv("HOME")
	if home == "" {
		return errors.New(ErrCodeMigrationInput, "cannot migrate: no home directory")
	}

	// Marker short-circuit: the marker lives in the base prefix schema.
	if m.store.GetBool("", MigrationDoneKey) {
		log.Debug().Msg("preferences migration already done")
		return nil
	}

	entries, err := ReadLegacyTree(cfg.LegacyRoot)
	if err != nil {
		// No legacy tree means a fresh install: mark done and move on.
		log.Info().Str("root", cfg.LegacyRoot).Msg("no legacy preferences to migrate")
		m.store.SetBool("", MigrationDoneKey, true)
		return nil
	}
	m.store.audit.LogMigration("migration_started",
		fmt.Sprintf("%d legacy entries from %s", len(entries), cfg.LegacyRoot))

	scratch := filepath.Join(home, migrationScratchDir)
	if err := os.MkdirAll(scratch, 0700); err != nil {
		return errors.Wrap(err, ErrCodeMigrationTransform, "cannot create migration scratch directory")
	}

	if err := ExportLegacyValues(entries, filepath.Join(scratch, legacyExportName)); err != nil {
		return m.fail("export", err)
	}

	// Includes missing from the install tree may have been staged in the
	// scratch directory; retry there before giving up.
	restore := installResolver(func(baseDir, href string) (string, error) {
		path, err := defaultManifestResolver(baseDir, href)
		if err == nil {
			return path, nil
		}
		fallback := filepath.Join(scratch, filepath.Base(href))
		if _, serr := os.Stat(fallback); serr != nil {
			return "", err
		}
		log.Warn().Str("href", href).Str("fallback", fallback).
			Msg("manifest include resolved from scratch directory")
		return fallback, nil
	})
	defer restore()

	manifest, err := loadManifest(filepath.Join(cfg.PkgDataDir, migrationManifest))
	if err != nil {
		return m.fail("manifest", err)
	}

	sheet, err := ParseStylesheetFile(filepath.Join(cfg.PkgDataDir, migrationStylesheet))
	if err != nil {
		return m.fail("stylesheet", err)
	}

	script, err := sheet.Apply(manifest)
	if err != nil {
		return m.fail("transform", err)
	}

	scriptPath := filepath.Join(scratch, migrationScriptName)
	if err := os.WriteFile(scriptPath, []byte(script), 0600); err != nil {
		return m.fail("write-script", errors.Wrap(err, ErrCodeMigrationTransform, "cannot write migration program"))
	}

	prog, err := parseMigrationScript(scriptPath)
	if err != nil {
		return m.fail("parse-script", err)
	}

	legacy, err := LoadLegacyValues(filepath.Join(scratch, legacyExportName))
	if err != nil {
		return m.fail("load-export", err)
	}

	res := prog.run(m.store, legacy)
	m.store.SetBool("", MigrationDoneKey, true)
	m.store.audit.LogMigration("migration_finished",
		fmt.Sprintf("applied=%d skipped=%d refused=%d", res.applied, res.skipped, res.refused))
	log.Info().Int("applied", res.applied).Int("skipped", res.skipped).
		Int("refused", res.refused).Msg("preferences migration finished")

	// Scratch is removed only after a full run; failures keep it.
	if err := os.RemoveAll(scratch); err != nil {
		log.Warn().Err(err).Str("dir", scratch).Msg("could not remove migration scratch directory")
	}
	return nil
}

// fail records a stage failure and returns the wrapped error.
func (m *Migrator) fail(stage string, err error) error {
	m.store.audit.LogMigration("migration_failed", stage+": "+err.Error())
	m.store.log.Error().Err(err).Str("stage", stage).Msg("preferences migration failed")
	return errors.Wrap(err, ErrCodeMigrationTransform, "migration failed at stage "+stage)
}

// loadManifest reads the migration manifest and expands include elements
// in place through the active resolver.
func loadManifest(path string) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, errors.Wrap(err, ErrCodeMigrationInput, "cannot read migration manifest "+path)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New(ErrCodeMigrationInput, "empty migration manifest "+path)
	}

	baseDir := filepath.Dir(path)
	for _, inc := range root.SelectElements("include") {
		href := inc.SelectAttrValue("href", "")
		if href == "" {
			root.RemoveChild(inc)
			continue
		}
		incPath, err := resolveManifestHref(baseDir, href)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeMigrationInput, "cannot resolve manifest include "+href)
		}
		incDoc := etree.NewDocument()
		if err := incDoc.ReadFromFile(incPath); err != nil {
			return nil, errors.Wrap(err, ErrCodeMigrationInput, "cannot read manifest include "+incPath)
		}
		if incRoot := incDoc.Root(); incRoot != nil {
			for _, el := range incRoot.ChildElements() {
				root.AddChild(el.Copy())
			}
		}
		root.RemoveChild(inc)
	}
	return doc, nil
}
