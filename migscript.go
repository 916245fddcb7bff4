// migscript.go: the migration program format and its interpreter
//
// The stylesheet emits a plain-text program, one directive per line:
//
//	migration 1
//	set <schema> <key> <type> <legacy-path>
//	marker <schema> <key>
//
// Blank lines and lines starting with # are ignored. The interpreter
// resolves each legacy path against the exported legacy values, coerces the
// raw text to the declared type and writes through the backend. A legacy
// path with no exported value is skipped, not an error: absent legacy keys
// keep their schema defaults.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package prefs

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/agilira/go-errors"
)

// migrationFormatVersion is the only program version this interpreter runs.
const migrationFormatVersion = "1"

// migDirective is one parsed program line.
type migDirective struct {
	op         string // "set" or "marker"
	schema     string
	key        string
	keyType    KeyType
	legacyPath string
	line       int
}

// migProgram is a parsed migration program.
type migProgram struct {
	directives []migDirective
}

// parseMigrationScript reads a program from path.
func parseMigrationScript(path string) (*migProgram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeMigrationTransform, "cannot open migration program")
	}
	defer f.Close()

	prog := &migProgram{}
	versionSeen := false
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "migration":
			if len(fields) != 2 || fields[1] != migrationFormatVersion {
				return nil, migParseErr(lineNo, "unsupported migration version %q", line)
			}
			versionSeen = true

		case "set":
			if len(fields) != 5 {
				return nil, migParseErr(lineNo, "malformed set directive %q", line)
			}
			kt := ParseKeyType(fields[3])
			if kt == TypeInvalid {
				return nil, migParseErr(lineNo, "unknown type %q", fields[3])
			}
			prog.directives = append(prog.directives, migDirective{
				op: "set", schema: fields[1], key: fields[2],
				keyType: kt, legacyPath: fields[4], line: lineNo,
			})

		case "marker":
			if len(fields) != 3 {
				return nil, migParseErr(lineNo, "malformed marker directive %q", line)
			}
			prog.directives = append(prog.directives, migDirective{
				op: "marker", schema: fields[1], key: fields[2], line: lineNo,
			})

		default:
			return nil, migParseErr(lineNo, "unknown directive %q", fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, ErrCodeMigrationTransform, "cannot read migration program")
	}
	if !versionSeen {
		return nil, errors.New(ErrCodeMigrationTransform, "migration program has no version header")
	}
	return prog, nil
}

func migParseErr(line int, format string, args ...any) error {
	return errors.New(ErrCodeMigrationTransform,
		fmt.Sprintf("migration program line %d: %s", line, fmt.Sprintf(format, args...)))
}

// migResult summarizes an interpreter run.
type migResult struct {
	applied int
	skipped int
	refused int
}

// run executes the program against backend, resolving legacy paths through
// legacy. Marker directives set the done flag so the migration never runs
// again.
func (p *migProgram) run(backend Backend, legacy *LegacyValues) migResult {
	var res migResult
	for _, d := range p.directives {
		switch d.op {
		case "set":
			entry, ok := legacy.Lookup(d.legacyPath)
			if !ok {
				res.skipped++
				continue
			}
			sch := backendSchema(backend, d.schema)
			v, err := CoerceValue(entry.Value, d.keyType, schemaChoices(sch, d.key))
			if err != nil {
				res.refused++
				continue
			}
			if backend.SetValue(d.schema, d.key, v) {
				res.applied++
			} else {
				res.refused++
			}
		case "marker":
			backend.SetBool(d.schema, d.key, true)
		}
	}
	return res
}

// backendSchema resolves a schema handle when the backend is a *Store.
// Foreign Backend implementations just lose enum-name coercion.
func backendSchema(backend Backend, schema string) *Schema {
	if s, ok := backend.(*Store); ok {
		return s.Resolve(schema)
	}
	return nil
}

func schemaChoices(sch *Schema, key string) []string {
	if sch == nil {
		return nil
	}
	return sch.Choices(key)
}
