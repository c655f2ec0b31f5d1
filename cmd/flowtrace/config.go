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

	"github.com/tracegraph/flowtrace/internal/config"
	"github.com/tracegraph/flowtrace/internal/ui"
)

func runConfig(args []string, g GlobalFlags) error {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if g.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	fmt.Printf("%s\n", ui.Bold.Sprint("FlowTrace configuration"))
	fmt.Printf("  repo_root: %s\n", cfg.RepoRoot)
	fmt.Printf("  exclude:   %v\n", cfg.Exclude)
	fmt.Printf("  artifacts.functions:        %s\n", cfg.Artifacts.Functions)
	fmt.Printf("  artifacts.call_graph:       %s\n", cfg.Artifacts.CallGraph)
	fmt.Printf("  artifacts.parent_functions: %s\n", cfg.Artifacts.ParentFunctions)
	return nil
}
