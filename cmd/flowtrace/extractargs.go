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
	"go/token"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/tracegraph/flowtrace/internal/config"
	"github.com/tracegraph/flowtrace/pkg/ident"
	"github.com/tracegraph/flowtrace/pkg/interp"
	"github.com/tracegraph/flowtrace/pkg/staticindex"
	"github.com/tracegraph/flowtrace/pkg/tracer"
)

func runExtractArgs(args []string, g GlobalFlags) error {
	fs := flag.NewFlagSet("extract-args", flag.ExitOnError)
	entry := fs.String("entry", "", "Canonical id of the callee (used to look up its parameter count)")
	callee := fs.String("callee", "", "Name of the callee as it appears at the call site")
	callLine := fs.String("call-line", "", "The raw source line containing the call")
	localsJSON := fs.String("locals", "{}", "JSON object of local variable bindings (static mode)")
	globalsJSON := fs.String("globals", "{}", "JSON object of global variable bindings (static mode)")
	callingEntry := fs.String("calling-entry", "", "Canonical id of the caller (runtime mode)")
	callingArgsJSON := fs.String("calling-args", "[]", "JSON array of the caller's own arguments (runtime mode)")
	callLineNo := fs.Int("call-line-number", 0, "Line number of the call within the caller (runtime mode)")
	repoRoot := fs.String("repo-root", ".", "Repository root")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *callee == "" || *callLine == "" {
		return fmt.Errorf("extract-args: --callee and --call-line are required")
	}

	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *repoRoot != "." || cfg.RepoRoot == "" {
		cfg.RepoRoot = *repoRoot
	}

	idx := staticindex.New(cfg.RepoRoot, nil)
	paramCount := 0
	if *entry != "" {
		id, err := ident.Parse(*entry)
		if err != nil {
			return fmt.Errorf("parsing --entry: %w", err)
		}
		sig, err := tracer.Signature(idx, id)
		if err != nil {
			return fmt.Errorf("resolving callee signature: %w", err)
		}
		paramCount = len(sig.Params)
	}

	var result []interp.Value
	if *callingEntry != "" {
		callerID, err := ident.Parse(*callingEntry)
		if err != nil {
			return fmt.Errorf("parsing --calling-entry: %w", err)
		}
		var callerArgsRaw []any
		if err := json.Unmarshal([]byte(*callingArgsJSON), &callerArgsRaw); err != nil {
			return fmt.Errorf("parsing --calling-args: %w", err)
		}
		callerArgs := make([]interp.Value, len(callerArgsRaw))
		for i, a := range callerArgsRaw {
			callerArgs[i] = jsonArgToValue(a)
		}

		files, _, fset, err := idx.PackageFiles(callerID.Path)
		if err != nil {
			return fmt.Errorf("loading caller package: %w", err)
		}
		decl, err := staticindex.ResolveAcrossFiles(files, callerID.Names)
		if err != nil {
			return fmt.Errorf("resolving --calling-entry: %w", err)
		}
		it, err := interp.New(fset, files...)
		if err != nil {
			return fmt.Errorf("building interpreter for caller: %w", err)
		}

		result, err = tracer.ExtractArgsRuntime(idx, it, decl, callerArgs, *callLineNo, *callLine, *callee, paramCount)
		if err != nil {
			return fmt.Errorf("extracting args (runtime mode): %w", err)
		}
	} else {
		var locals, globals map[string]any
		if err := json.Unmarshal([]byte(*localsJSON), &locals); err != nil {
			return fmt.Errorf("parsing --locals: %w", err)
		}
		if err := json.Unmarshal([]byte(*globalsJSON), &globals); err != nil {
			return fmt.Errorf("parsing --globals: %w", err)
		}
		result, err = tracer.ExtractArgsStatic(token.NewFileSet(), *callLine, *callee, locals, globals, paramCount)
		if err != nil {
			return fmt.Errorf("extracting args (static mode): %w", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	out := make([]any, len(result))
	for i, v := range result {
		out[i] = v
	}
	return enc.Encode(out)
}

func jsonArgToValue(v any) interp.Value {
	switch t := v.(type) {
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	default:
		return t
	}
}
