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
	"github.com/tracegraph/flowtrace/pkg/ident"
	"github.com/tracegraph/flowtrace/pkg/staticindex"
	"github.com/tracegraph/flowtrace/pkg/tracer"
)

func runSignature(args []string, g GlobalFlags) error {
	fs := flag.NewFlagSet("signature", flag.ExitOnError)
	entry := fs.String("entry", "", "Canonical id of the function to inspect")
	repoRoot := fs.String("repo-root", ".", "Repository root")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *entry == "" {
		return fmt.Errorf("signature: --entry is required")
	}

	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *repoRoot != "." || cfg.RepoRoot == "" {
		cfg.RepoRoot = *repoRoot
	}

	id, err := ident.Parse(*entry)
	if err != nil {
		return fmt.Errorf("parsing --entry: %w", err)
	}

	idx := staticindex.New(cfg.RepoRoot, nil)
	sig, err := tracer.Signature(idx, id)
	if err != nil {
		return fmt.Errorf("resolving signature: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sig)
}
