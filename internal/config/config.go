// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads .flowtrace/project.yaml: repo-relative defaults for
// the repository root, scan exclusions, and the CSA artefact output paths.
// CLI flags always take precedence over values loaded here.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDir  = ".flowtrace"
	DefaultFile = "project.yaml"
	fileVersion = "1"
)

// Artifacts names the three durable CSA output files (spec.md §6 / SPEC_FULL.md §8).
type Artifacts struct {
	Functions       string `yaml:"functions"`
	CallGraph       string `yaml:"call_graph"`
	ParentFunctions string `yaml:"parent_functions"`
}

// Config is the parsed .flowtrace/project.yaml.
type Config struct {
	Version   string    `yaml:"version"`
	RepoRoot  string    `yaml:"repo_root,omitempty"`
	Exclude   []string  `yaml:"exclude,omitempty"`
	Artifacts Artifacts `yaml:"artifacts"`
}

// DefaultExclude is the scan exclusion set shared by SI, CSA, and CSL
// (SPEC_FULL.md §8): VCS/build-cache directories that are never walked.
var DefaultExclude = []string{".git", "__pycache__", ".venv", "venv", "env", "node_modules", "vendor", "bin", "dist"}

// Default returns a Config with the baseline exclusion set and artefact
// paths used when no project.yaml is present.
func Default() *Config {
	return &Config{
		Version: fileVersion,
		Exclude: append([]string(nil), DefaultExclude...),
		Artifacts: Artifacts{
			Functions:       "functions.json",
			CallGraph:       "call_graph.json",
			ParentFunctions: "parent_functions.json",
		},
	}
}

// Load reads path, or discovers .flowtrace/project.yaml by walking upward
// from the current directory when path is empty. A missing file is not an
// error: Default() is returned instead, matching the CLI's "works with zero
// configuration" expectation.
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := discover(".")
		if err != nil {
			return withModuleRoot(Default(), "."), nil
		}
		path = found
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return withModuleRoot(Default(), filepath.Dir(path)), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(cfg.Exclude) == 0 {
		cfg.Exclude = append([]string(nil), DefaultExclude...)
	}
	return withModuleRoot(cfg, filepath.Dir(path)), nil
}

// withModuleRoot fills in cfg.RepoRoot from the nearest enclosing go.mod,
// rooted at searchFrom, when cfg doesn't already name one explicitly.
func withModuleRoot(cfg *Config, searchFrom string) *Config {
	if cfg.RepoRoot == "" {
		cfg.RepoRoot = moduleRoot(searchFrom)
	}
	return cfg
}

// moduleRoot walks upward from start looking for a go.mod, and returns the
// directory containing it. Targets traced by FlowTrace are Go source, so the
// enclosing Go module is the natural repo-root default when project.yaml
// doesn't name one explicitly. Returns "." when no go.mod is found.
func moduleRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "."
	}
	for {
		candidate := filepath.Join(dir, "go.mod")
		if data, err := os.ReadFile(candidate); err == nil {
			if modfile.ModulePath(data) != "" {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}

// Save writes cfg as YAML to path, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir for %s: %w", path, err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func discover(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, DefaultDir, DefaultFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("config: no %s found", filepath.Join(DefaultDir, DefaultFile))
		}
		dir = parent
	}
}
