// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/tracegraph/flowtrace/internal/config"
	"github.com/tracegraph/flowtrace/internal/ui"
	"github.com/tracegraph/flowtrace/pkg/callsites"
	"github.com/tracegraph/flowtrace/pkg/ident"
)

func runCallsites(args []string, g GlobalFlags) error {
	fs := flag.NewFlagSet("callsites", flag.ExitOnError)
	target := fs.String("target", "", "Canonical id to find call sites for")
	repoRoot := fs.String("repo-root", ".", "Repository root")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *target == "" {
		return fmt.Errorf("callsites: --target is required")
	}

	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *repoRoot != "." || cfg.RepoRoot == "" {
		cfg.RepoRoot = *repoRoot
	}

	id, err := ident.Parse(*target)
	if err != nil {
		return fmt.Errorf("parsing --target: %w", err)
	}

	loc := callsites.New(cfg.RepoRoot, cfg.Exclude, nil)
	sites, err := loc.Find(id)
	if err != nil {
		return fmt.Errorf("finding call sites: %w", err)
	}

	if g.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sites)
	}

	fmt.Println(ui.OK("%d call site(s) for %s", len(sites), id))
	for _, s := range sites {
		fn := "<unknown>"
		if s.EnclosingFunction != nil {
			fn = *s.EnclosingFunction
		}
		fmt.Printf("  %s:%d:%d  in %s\n      %s\n", s.File, s.Line, s.Column, fn, s.RawLine)
	}
	return nil
}
