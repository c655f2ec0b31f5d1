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
	"context"
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/tracegraph/flowtrace/internal/config"
	"github.com/tracegraph/flowtrace/internal/ui"
	"github.com/tracegraph/flowtrace/pkg/changeset"
)

func runChangeset(args []string, g GlobalFlags) error {
	fs := flag.NewFlagSet("changeset", flag.ExitOnError)
	repoRoot := fs.String("repo-root", ".", "Repository root")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *repoRoot != "." || cfg.RepoRoot == "" {
		cfg.RepoRoot = *repoRoot
	}

	git, err := changeset.NewGitExecutor(cfg.RepoRoot)
	if err != nil {
		return fmt.Errorf("locating git repository: %w", err)
	}

	analyser := changeset.New(git.RepoPath(), git, cfg.Exclude, nil)
	logInfo(g, "analysing change set in %s", git.RepoPath())

	result, err := analyser.Analyse(context.Background())
	if err != nil {
		return fmt.Errorf("running change-set analysis: %w", err)
	}

	if err := changeset.WriteArtifacts(".", result.Functions, result.Graph); err != nil {
		return fmt.Errorf("writing artifacts: %w", err)
	}

	roots := result.Graph.Roots()

	if g.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"functions": len(result.Functions),
			"roots":     roots,
		})
	}

	fmt.Println(ui.OK("%d changed function(s) across the call graph", len(result.Functions)))
	fmt.Println(ui.Bold.Sprint("Roots:"))
	for _, r := range roots {
		fmt.Printf("  %s\n", r)
	}
	return nil
}
