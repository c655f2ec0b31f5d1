// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tracer implements the Interactive Tracer: it steps a target
// Go-source function through pkg/interp's tree-walking interpreter one
// line at a time, recording each stop as an append-only Flow of Events,
// and serves requests for "the next event at or after line N in function
// F" over a line-delimited stdin/stderr protocol.
package tracer

import (
	"strconv"
	"sync"
)

// EventKind identifies what happened at a recorded step.
type EventKind string

const (
	EventLine   EventKind = "line"
	EventReturn EventKind = "return"
	EventError  EventKind = "error"
)

// Event is one recorded step of a traced execution. Locals and Globals are
// already projected through safeJSON — see Debugger.lineHook.
type Event struct {
	Kind        EventKind      `json:"event"`
	File        string         `json:"filename"`
	Function    string         `json:"function"`
	Line        int            `json:"line"`
	Locals      map[string]any `json:"locals,omitempty"`
	Globals     map[string]any `json:"globals,omitempty"`
	ReturnValue any            `json:"return_value,omitempty"`
	Err         *string        `json:"error,omitempty"`
	Traceback   *string        `json:"traceback,omitempty"`

	linearIndex int
}

// Flow is one traced call's append-only event journal: a linear history
// recorded in execution order, with a monotone cursor tracking how much of
// it has already been served to the controller.
type Flow struct {
	Name       string
	EntryID    string
	ArgsKey    string

	mu              sync.Mutex
	events          []Event
	lastServedIndex int
}

// NewFlow constructs an empty Flow.
func NewFlow(name, entryID, argsKey string) *Flow {
	return &Flow{Name: name, EntryID: entryID, ArgsKey: argsKey, lastServedIndex: -1}
}

// Record appends raw to the journal, assigning it the next linear index.
// The caller has already projected its Locals and Globals through
// safeJSON, which builds fresh containers.
func (f *Flow) Record(raw Event) Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw.linearIndex = len(f.events)
	f.events = append(f.events, raw)
	return raw
}

// LatestIndex returns the index of the most recently recorded event, or -1
// if none have been recorded yet.
func (f *Flow) LatestIndex() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events) - 1
}

// LastServedIndex returns the cursor: the highest index already handed to
// the controller. It only ever increases (MarkServed enforces this).
func (f *Flow) LastServedIndex() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastServedIndex
}

// MarkServed advances the cursor to idx, refusing to move it backward.
func (f *Flow) MarkServed(idx int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx > f.lastServedIndex {
		f.lastServedIndex = idx
	}
}

// matchEvent reports whether ev satisfies a request for function/line
// (and, if file is non-empty, that file too), at or after index after.
func matchEvent(ev Event, function string, line int, after int, file string) bool {
	if ev.linearIndex < after {
		return false
	}
	if function != "" && ev.Function != function {
		return false
	}
	if file != "" && ev.File != file {
		return false
	}
	return ev.Line >= line
}

// FindIndex returns the index of the first event at or after `after` that
// matches function/line(/file), searching forward. If allowWrap is true and
// no match is found forward, it retries from the beginning of the journal
// (the "replay earlier history" phase of flow payload construction).
func (f *Flow) FindIndex(function string, line int, after int, file string, allowWrap bool) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := after; i < len(f.events); i++ {
		if matchEvent(f.events[i], function, line, after, file) {
			return i, true
		}
	}
	if !allowWrap {
		return -1, false
	}
	for i := 0; i < after && i < len(f.events); i++ {
		if matchEvent(f.events[i], function, line, 0, file) {
			return i, true
		}
	}
	return -1, false
}

// SliceToIndex returns a copy of every event from the start of the
// journal up to and including idx. Events are copied by value, so changing
// a returned event's fields leaves the journal unchanged; the Locals and
// Globals maps are shared with the journal.
func (f *Flow) SliceToIndex(idx int) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx < 0 || idx >= len(f.events) {
		return nil
	}
	out := make([]Event, idx+1)
	copy(out, f.events[:idx+1])
	return out
}

// Target names a requested stopping location: a function and a line, and
// optionally the specific file it must occur in (cross-file disambiguation,
// see the file-pinning rules).
type Target struct {
	Function string
	Line     int
	File     *string
}

// Label renders a human-readable location string for logging/payloads.
func (t Target) Label() string {
	if t.File != nil {
		return *t.File + ":" + strconv.Itoa(t.Line) + " in " + t.Function
	}
	return strconv.Itoa(t.Line) + " in " + t.Function
}
