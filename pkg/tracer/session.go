// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package tracer

import (
	"fmt"
	"go/ast"
	"log/slog"
	"time"

	"github.com/tracegraph/flowtrace/internal/metrics"
	"github.com/tracegraph/flowtrace/pkg/ident"
	"github.com/tracegraph/flowtrace/pkg/interp"
	"github.com/tracegraph/flowtrace/pkg/staticindex"
)

// stepTimeout is the maximum time the controller goroutine waits for the
// worker to reach the next requested location before giving up and
// reporting a timeout event (§7, §9: Timeout is a terminal condition, the
// session ends rather than retrying).
const stepTimeout = 30 * time.Second

// Session owns one interactive-mode run: the entry point, its interpreter,
// its Debugger, and the Flow the two of them are recording into.
type Session struct {
	logger *slog.Logger
	idx    *staticindex.Index

	entryFunction string
	flow          *Flow
	dbg           *Debugger
	ended         bool
}

// OpenSession resolves entry under repoRoot, starts its worker goroutine
// (paused, awaiting the first ContinueUntil), and returns a Session ready
// to serve stepping requests.
func OpenSession(repoRoot string, idx *staticindex.Index, entry ident.ID, args []interp.Value, flowName string, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var it *interp.Interpreter
	var decl *ast.FuncDecl
	var err error

	if entry.IsTopLevel() {
		it, decl, err = LoadModuleEntry(idx, entry.Path)
	} else {
		it, decl, err = loadFunctionEntry(idx, entry)
	}
	if err != nil {
		return nil, err
	}

	entryFile := it.Fset.Position(decl.Pos()).Filename
	flow := NewFlow(flowName, entry.String(), argsKey(args))
	dbg := NewDebugger(flow, entryFile)

	logger.Debug("tracer.session_open", "entry", entry.String(), "flow", flowName)
	metrics.EventsRecorded.WithLabelValues("session_open").Inc()

	dbg.RunFunctionOnce(it, decl, args)

	return &Session{logger: logger, idx: idx, entryFunction: decl.Name.Name, flow: flow, dbg: dbg}, nil
}

// EntryFunction returns the function name the session was opened on: the
// named entry's own name, or "<module>" for a <top-level>/<module> sentinel
// entry. The control stream's bare-integer and "<top-level>:N" location
// forms both resolve against this name (§6).
func (s *Session) EntryFunction() string {
	return s.entryFunction
}

func loadFunctionEntry(idx *staticindex.Index, entry ident.ID) (*interp.Interpreter, *ast.FuncDecl, error) {
	files, _, fset, err := idx.PackageFiles(entry.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("tracer: loading package for %s: %w", entry, err)
	}
	decl, err := staticindex.ResolveAcrossFiles(files, entry.Names)
	if err != nil {
		return nil, nil, fmt.Errorf("tracer: resolving entry %s: %w", entry, err)
	}
	it, err := interp.New(fset, files...)
	if err != nil {
		return nil, nil, fmt.Errorf("tracer: building interpreter for %s: %w", entry, err)
	}
	return it, decl, nil
}

// Step advances the session to target, waiting up to stepTimeout for the
// worker to reach it. It returns the payload of every event recorded from
// the start of the flow up to the matched one (§6.4.7), or an error
// response if the worker timed out, raised, or already finished.
func (s *Session) Step(target Target) Response {
	if s.dbg.Finished() {
		errEvent := "tracer: session already ended"
		return Response{Error: &errEvent}
	}

	s.dbg.ContinueUntil(target)

	if !s.dbg.WaitForEvent(stepTimeout) {
		metrics.WorkerTimeouts.Inc()
		msg := fmt.Sprintf("tracer: timed out waiting for %s", target.Label())
		s.flow.Record(Event{Kind: EventError, Err: &msg})
		metrics.EventsRecorded.WithLabelValues("timeout").Inc()
		return Response{Error: &msg}
	}

	if err := s.dbg.ThreadException(); err != nil {
		msg := err.Error()
		return Response{Error: &msg}
	}

	payload := BuildPayload(s.flow, target)
	metrics.EventsRecorded.WithLabelValues("step").Inc()
	return Response{Payload: &payload}
}

// End marks the session over without closing the worker's step channel:
// the worker goroutine is left blocked forever and leaks until process
// exit. This is a deliberate acceptance carried from spec.md's
// Cancellation section, not an oversight — a session's worker never
// receives a cancellation signal because the target program has no
// equivalent of a Python generator's close().
func (s *Session) End() {
	s.ended = true
}

func argsKey(args []interp.Value) string {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = safeJSON(a)
	}
	return fmt.Sprintf("%v", out)
}
