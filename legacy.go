// legacy.go: legacy hierarchical configuration tree access
//
// The legacy store is a directory tree where each directory holds a
// %gconf.xml file listing its entries. Migration first exports the whole
// tree into a single flat document in the scratch directory; the migration
// interpreter then resolves legacy paths against that export instead of
// touching the live tree again.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agilira/go-errors"
	"github.com/beevik/etree"
)

const legacyEntryFile = "%gconf.xml"

// LegacyEntry is one key read from the legacy tree.
type LegacyEntry struct {
	Path  string // slash-separated, e.g. /apps/gnucash/general/save_window_geometry
	Type  string // bool, int, float, string
	Value string
}

// ReadLegacyTree walks the legacy root and collects every entry. A missing
// root is an input error so the caller can skip migration cleanly.
func ReadLegacyTree(root string) ([]LegacyEntry, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, errors.Wrap(err, ErrCodeMigrationInput, "legacy configuration tree not found at "+root)
	}

	var entries []LegacyEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != legacyEntryFile {
			return nil
		}

		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return err
		}
		dirPath := "/" + filepath.ToSlash(rel)
		if rel == "." {
			dirPath = "/"
		}

		dirEntries, err := readLegacyEntryFile(path, dirPath)
		if err != nil {
			return err
		}
		entries = append(entries, dirEntries...)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeMigrationInput, "cannot read legacy configuration tree")
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// readLegacyEntryFile parses one %gconf.xml. Entries carry their value
// either in a value attribute or, for strings, in a stringvalue child.
func readLegacyEntryFile(path, dirPath string) ([]LegacyEntry, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, errors.Wrap(err, ErrCodeMigrationInput, "corrupt legacy entry file "+path)
	}
	root := doc.Root()
	if root == nil {
		return nil, nil
	}

	var entries []LegacyEntry
	for _, el := range root.SelectElements("entry") {
		name := el.SelectAttrValue("name", "")
		if name == "" {
			continue
		}
		value := el.SelectAttrValue("value", "")
		if sv := el.SelectElement("stringvalue"); sv != nil {
			value = sv.Text()
		}
		entries = append(entries, LegacyEntry{
			Path:  strings.TrimSuffix(dirPath, "/") + "/" + name,
			Type:  el.SelectAttrValue("type", "string"),
			Value: value,
		})
	}
	return entries, nil
}

// ExportLegacyValues writes the collected entries as a single document the
// migration interpreter resolves paths against.
func ExportLegacyValues(entries []LegacyEntry, outPath string) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("legacy-values")
	for _, e := range entries {
		el := root.CreateElement("entry")
		el.CreateAttr("path", e.Path)
		el.CreateAttr("type", e.Type)
		el.CreateAttr("value", e.Value)
	}
	doc.Indent(2)
	if err := doc.WriteToFile(outPath); err != nil {
		return errors.Wrap(err, ErrCodeMigrationTransform, "cannot write legacy value export")
	}
	return nil
}

// LegacyValues is the loaded export, indexed by path.
type LegacyValues struct {
	byPath map[string]LegacyEntry
}

// LoadLegacyValues reads an export written by ExportLegacyValues.
func LoadLegacyValues(path string) (*LegacyValues, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, errors.Wrap(err, ErrCodeMigrationInput, "cannot read legacy value export")
	}
	root := doc.Root()
	if root == nil || root.Tag != "legacy-values" {
		return nil, errors.New(ErrCodeMigrationInput, "malformed legacy value export")
	}

	lv := &LegacyValues{byPath: make(map[string]LegacyEntry)}
	for _, el := range root.SelectElements("entry") {
		e := LegacyEntry{
			Path:  el.SelectAttrValue("path", ""),
			Type:  el.SelectAttrValue("type", "string"),
			Value: el.SelectAttrValue("value", ""),
		}
		if e.Path != "" {
			lv.byPath[e.Path] = e
		}
	}
	return lv, nil
}

// Lookup returns the legacy entry stored at path.
func (lv *LegacyValues) Lookup(path string) (LegacyEntry, bool) {
	e, ok := lv.byPath[path]
	return e, ok
}

// Len reports how many entries the export holds.
func (lv *LegacyValues) Len() int { return len(lv.byPath) }
