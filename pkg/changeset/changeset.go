// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package changeset implements the Change-Set Analyser: it diffs the
// working tree against HEAD (and the index), classifies hunks as material
// or cosmetic, infers which functions changed, extracts and call-qualifies
// their bodies, and builds the resulting call graph.
package changeset

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"github.com/tracegraph/flowtrace/internal/metrics"
	"github.com/tracegraph/flowtrace/pkg/staticindex"
)

// Analyser runs a single change-set analysis pass over a repository.
type Analyser struct {
	repoRoot string
	git      GitRunner
	logger   *slog.Logger
	exclude  []string
}

// New constructs an Analyser. A nil logger defaults to slog.Default().
func New(repoRoot string, git GitRunner, exclude []string, logger *slog.Logger) *Analyser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyser{repoRoot: repoRoot, git: git, logger: logger, exclude: exclude}
}

// Result is the outcome of Analyse: the function bodies touched by the
// current change set and the call graph built from them.
type Result struct {
	Functions map[string]FunctionRecord
	Graph     Graph
}

// Analyse runs the full CSA pipeline: diff (working tree + staged),
// untracked files, hunk classification, changed-function inference,
// call-qualified extraction, and call-graph construction.
func (a *Analyser) Analyse(ctx context.Context) (*Result, error) {
	changed := make(map[string]map[string]bool)

	for _, cached := range []bool{false, true} {
		raw, err := Diff(ctx, a.git, cached)
		if err != nil {
			a.logger.Debug("changeset.diff.error", "cached", cached, "err", err)
			continue
		}
		if raw == "" {
			continue
		}
		parsed := ParseDiff(raw)
		files := FilterImportant(parsed)
		total, material := 0, 0
		for _, f := range parsed {
			total += len(f.Hunks)
		}
		for _, f := range files {
			material += len(f.Hunks)
		}
		metrics.HunksClassified.WithLabelValues("material").Add(float64(material))
		metrics.HunksClassified.WithLabelValues("cosmetic").Add(float64(total - material))
		for path, names := range ChangedFunctions(files) {
			if existing, ok := changed[path]; ok {
				for n := range names {
					existing[n] = true
				}
			} else {
				changed[path] = names
			}
		}
	}

	porcelain, err := Status(ctx, a.git)
	if err == nil {
		for path := range NewFiles(a.repoRoot, porcelain) {
			if _, ok := changed[path]; !ok {
				changed[path] = nil // nil means "every function in this file"
			}
		}
	}

	if len(changed) == 0 {
		return &Result{Functions: map[string]FunctionRecord{}, Graph: Graph{}}, nil
	}

	bar := progressbar.Default(int64(len(changed)), "extracting changed functions")
	nameIndex, err := staticindex.BuildNameIndex(a.repoRoot, a.exclude, nil)
	if err != nil {
		return nil, err
	}

	allFunctions := make(map[string]FunctionRecord)
	for relPath, names := range changed {
		absPath := filepath.Join(a.repoRoot, relPath)
		extracted, err := ExtractFunctions(a.repoRoot, absPath, names, nameIndex)
		if err != nil {
			a.logger.Debug("changeset.extract.error", "file", relPath, "err", err)
			_ = bar.Add(1)
			continue
		}
		for id, rec := range extracted {
			allFunctions[id] = rec
		}
		_ = bar.Add(1)
	}

	graph := BuildGraph(allFunctions)

	return &Result{Functions: allFunctions, Graph: graph}, nil
}
