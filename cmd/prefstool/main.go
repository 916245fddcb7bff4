// main.go: prefstool entry point
//
// prefstool inspects and edits the preferences database from the command
// line and drives the one-shot legacy migration. Global flags (also
// settable through PREFSTOOL_* environment variables) come before the
// command; everything after is routed to the command handlers.
//
// Copyright (c) 2026 Damian McNulty
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"
	"strings"

	prefs "github.com/DamianMcNulty/gnucash"
	flashflags "github.com/agilira/flash-flags"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "prefstool: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flashflags.New("prefstool")
	flags.SetDescription("Preferences database tool")
	flags.String("prefix", "org.gnucash", "Schema prefix")
	flags.String("store", "", "Settings database path (default: user config dir)")
	flags.String("schema-dir", "", "Schema declaration directory")
	flags.String("data-dir", "", "Installed data directory (manifest, stylesheet)")
	flags.String("legacy-root", "", "Legacy configuration tree for migrate")
	flags.Bool("verbose", false, "Debug logging")
	flags.SetEnvPrefix("PREFSTOOL")

	globals, rest := splitGlobalFlags(args)
	if err := flags.Parse(globals); err != nil {
		flags.PrintHelp()
		return err
	}

	backend, store, err := openBackend(flags)
	if err != nil {
		return err
	}
	defer store.Close()

	m := newManager(backend, store)
	return m.Run(rest)
}

// openBackend builds the store from the parsed global flags.
func openBackend(flags *flashflags.FlagSet) (prefs.Backend, *prefs.Store, error) {
	cfg := prefs.Config{
		Prefix:     flags.GetString("prefix"),
		StorePath:  flags.GetString("store"),
		SchemaDir:  flags.GetString("schema-dir"),
		PkgDataDir: flags.GetString("data-dir"),
		LegacyRoot: flags.GetString("legacy-root"),
	}
	if !flags.GetBool("verbose") {
		logger := quietLogger()
		cfg.Logger = &logger
	}

	store, err := prefs.NewStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

// globalBoolFlags take no value argument.
var globalBoolFlags = map[string]bool{"verbose": true}

// splitGlobalFlags peels leading --flag[=value] tokens off args so the
// globals go to flash-flags and the remainder to the command router.
func splitGlobalFlags(args []string) (globals, rest []string) {
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			break
		}
		globals = append(globals, arg)
		i++
		name := strings.TrimPrefix(arg, "--")
		if eq := strings.Index(name, "="); eq >= 0 {
			continue
		}
		if globalBoolFlags[name] {
			continue
		}
		if i < len(args) {
			globals = append(globals, args[i])
			i++
		}
	}
	return globals, args[i:]
}
