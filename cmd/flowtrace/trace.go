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
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/tracegraph/flowtrace/internal/config"
	"github.com/tracegraph/flowtrace/pkg/ident"
	"github.com/tracegraph/flowtrace/pkg/interp"
	"github.com/tracegraph/flowtrace/pkg/staticindex"
	"github.com/tracegraph/flowtrace/pkg/tracer"
)

// runTrace opens one interactive tracer session and serves stepping
// requests read from stdin until an end-of-session line, writing each
// response as a JSON line to stderr (§8). A step that answers with an
// error (timeout, worker error, finished worker) ends the session, and
// runTrace returns that error.
func runTrace(args []string, g GlobalFlags) error {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	entryFlag := fs.String("entry", "", "Canonical id of the entry point (or a <top-level>/<module> sentinel)")
	argsJSON := fs.String("args", "[]", "JSON array of the entry point's positional arguments")
	flowName := fs.String("flow-name", "", "Name recorded on the flow (defaults to --entry)")
	repoRoot := fs.String("repo-root", ".", "Repository root")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *entryFlag == "" {
		return fmt.Errorf("trace: --entry is required")
	}

	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *repoRoot != "." || cfg.RepoRoot == "" {
		cfg.RepoRoot = *repoRoot
	}

	id, err := ident.Parse(*entryFlag)
	if err != nil {
		return fmt.Errorf("parsing --entry: %w", err)
	}

	var rawArgs []any
	if err := json.Unmarshal([]byte(*argsJSON), &rawArgs); err != nil {
		return fmt.Errorf("parsing --args: %w", err)
	}
	entryArgs := make([]interp.Value, len(rawArgs))
	for i, a := range rawArgs {
		entryArgs[i] = jsonArgToValue(a)
	}

	name := *flowName
	if name == "" {
		name = id.String()
	}

	idx := staticindex.New(cfg.RepoRoot, nil)
	sess, err := tracer.OpenSession(cfg.RepoRoot, idx, id, entryArgs, name, nil)
	if err != nil {
		return fmt.Errorf("opening trace session: %w", err)
	}

	proto := tracer.NewProtocol(os.Stdin, os.Stdout, os.Stderr)
	for {
		line, ok := proto.ReadLine()
		if !ok {
			sess.End()
			return nil
		}

		if tracer.IsEnd(line) {
			sess.End()
			return nil
		}

		target, err := tracer.ParseRequest(line, sess.EntryFunction())
		if err != nil {
			msg := err.Error()
			_ = proto.WriteResponse(tracer.Response{Error: &msg})
			continue
		}
		if target.File != nil {
			abs := filepath.Join(cfg.RepoRoot, ident.TrimLeadingSlash(*target.File))
			target.File = &abs
		}

		resp := sess.Step(target)
		if err := proto.WriteResponse(resp); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
		if resp.Error != nil {
			sess.End()
			return fmt.Errorf("trace session ended: %s", *resp.Error)
		}
	}
}
