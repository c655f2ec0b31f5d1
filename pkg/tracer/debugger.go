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
	"sync"
	"time"

	"github.com/tracegraph/flowtrace/pkg/interp"
)

// Debugger drives one interpreted call through pkg/interp's line hook,
// recording every stop into a Flow and pausing at each one until the
// controller asks it to continue. One worker goroutine runs the
// interpreted call; the controller goroutine communicates with it over
// ready/step, a channel pair standing in for a threading.Event pair.
type Debugger struct {
	Flow *Flow

	mu             sync.Mutex
	targetFunction string
	targetLine     int
	targetFile     string // always set: starts at entryFile, migrates while unpinned (§6.4.5.1)
	pinned         bool

	lastEvent      *Event
	lastRawLocals  map[string]interp.Value
	lastRawGlobals map[string]interp.Value
	threadErr      error
	finished       bool

	ready chan struct{}
	step  chan struct{}
}

// NewDebugger constructs a Debugger over flow, tracking entryFile (the file
// of the function the session opened on) as its initial, unpinned target
// file.
func NewDebugger(flow *Flow, entryFile string) *Debugger {
	return &Debugger{
		Flow:       flow,
		targetFile: entryFile,
		ready:      make(chan struct{}, 1),
		step:       make(chan struct{}, 1),
	}
}

// PinToFile restricts which file's lines are eligible to match a pending
// target: set whenever the controller asks to stop in a specific file
// while execution may pass through others on the way there (§6.4.5.1).
func (d *Debugger) PinToFile(file string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targetFile = file
	d.pinned = true
}

// ContinueUntil releases the worker to run until it reaches target,
// replacing any previous pending function/line. A target.File override
// pins the debugger to that file, per the §6.4.5.1 pinning rule; once
// pinned, a later request that omits File leaves the pin in place — the
// state machine has no pinned-to-unpinned transition.
func (d *Debugger) ContinueUntil(target Target) {
	d.mu.Lock()
	d.targetFunction = target.Function
	d.targetLine = target.Line
	if target.File != nil {
		d.targetFile = *target.File
		d.pinned = true
	}
	d.mu.Unlock()

	select {
	case d.step <- struct{}{}:
	default:
	}
}

// WaitForEvent blocks until the worker reports a new stop (or finishes, or
// panics), or timeout elapses first. It reports whether an event arrived.
func (d *Debugger) WaitForEvent(timeout time.Duration) bool {
	select {
	case <-d.ready:
		return true
	case <-time.After(timeout):
		return false
	}
}

// LastEvent returns the most recently recorded stop, or nil before the
// first one.
func (d *Debugger) LastEvent() *Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastEvent
}

// LastRawLocals/LastRawGlobals return the unprojected bindings captured at
// the last stop, used by extract-args runtime mode to evaluate argument
// expressions against live interpreter values rather than JSON.
func (d *Debugger) LastRawLocals() map[string]interp.Value {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRawLocals
}

func (d *Debugger) LastRawGlobals() map[string]interp.Value {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRawGlobals
}

// ThreadException reports a panic or interpreter error recovered from the
// worker goroutine, if any. Once set, the session cannot be resumed.
func (d *Debugger) ThreadException() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threadErr
}

// Finished reports whether the worker has returned (normally or via
// error/panic) and will never stop again.
func (d *Debugger) Finished() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finished
}

// stopWanted reports whether frame satisfies the currently pending target,
// applying the full §6.4.5.1 file-pinning state machine. Must be called
// with d.mu held: the unpinned branch mutates d.targetFile when execution
// follows the target function across a file boundary.
//
//	pinned,   frame.File == targetFile  -> record, maybe stop
//	pinned,   frame.File != targetFile  -> ignore
//	unpinned, frame.File == targetFile  -> record, maybe stop
//	unpinned, frame.File != targetFile,
//	          in target function        -> migrate targetFile, record, maybe stop
//	unpinned, frame.File != targetFile,
//	          not in target function    -> ignore
func (d *Debugger) stopWanted(frame *interp.Frame) bool {
	if frame.File != d.targetFile {
		if d.pinned {
			return false
		}
		if d.targetFunction != "" && frame.Function != d.targetFunction {
			return false
		}
		d.targetFile = frame.File
	}
	if d.targetFunction != "" && frame.Function != d.targetFunction {
		return false
	}
	return frame.Line >= d.targetLine
}

// lineHook is the interp.LineHook installed on the interpreter running the
// session: the Go analogue of the original debugger's user_line. It
// records every executed line as an Event, and when the current target is
// satisfied, hands control back to the controller goroutine and blocks
// until told to continue.
func (d *Debugger) lineHook(frame *interp.Frame) error {
	d.mu.Lock()
	locals := frame.Env.NamesUpTo(frame.Globals)
	globals := frame.Globals.Names()
	event := Event{
		Kind:     EventLine,
		File:     frame.File,
		Function: frame.Function,
		Line:     frame.Line,
		Locals:   safeJSONMap(locals),
		Globals:  filterGlobals(globals),
	}
	stop := d.stopWanted(frame)
	d.mu.Unlock()

	// Every line callback is recorded, even ones stopWanted's pinning rule
	// would otherwise have the state machine "ignore": S4 requires the
	// journal to contain every intervening line crossed on the way to a
	// pinned stop, not just the ones that satisfied it.
	recorded := d.Flow.Record(event)

	if !stop {
		return nil
	}

	d.mu.Lock()
	d.lastEvent = &recorded
	d.lastRawLocals = cloneValueMap(locals)
	d.lastRawGlobals = cloneValueMap(globals)
	d.mu.Unlock()

	d.signalReady()
	<-d.step
	return nil
}

func (d *Debugger) signalReady() {
	select {
	case d.ready <- struct{}{}:
	default:
	}
}

// RunFunctionOnce spawns the worker goroutine that runs decl(args) under
// it, with this Debugger's lineHook wired in. The worker waits for the
// first ContinueUntil before executing a single statement, matching the
// original debugger's "armed but paused" startup state. A panic inside the
// interpreter (or a *interp.RuntimeError/*interp.ResolutionError it
// returns) is recorded as the thread exception and reported as a single
// error event; the worker never lets a panic escape into the controller.
func (d *Debugger) RunFunctionOnce(it *interp.Interpreter, decl *ast.FuncDecl, args []interp.Value) {
	it.Hook = d.lineHook

	go func() {
		<-d.step

		defer func() {
			if r := recover(); r != nil {
				errEvent := errEventFromPanic(r)
				recorded := d.Flow.Record(errEvent)
				d.mu.Lock()
				d.threadErr = fmt.Errorf("tracer: worker panic: %v", r)
				d.lastEvent = &recorded
				d.finished = true
				d.mu.Unlock()
				d.signalReady()
			}
		}()

		ret, err := it.Run(decl, args)

		d.mu.Lock()
		if err != nil {
			d.threadErr = err
			msg := err.Error()
			d.mu.Unlock()
			recorded := d.Flow.Record(Event{Kind: EventError, Function: decl.Name.Name, Err: &msg})
			d.mu.Lock()
			d.lastEvent = &recorded
			d.finished = true
			d.mu.Unlock()
			d.signalReady()
			return
		}
		d.mu.Unlock()

		recorded := d.Flow.Record(Event{
			Kind:        EventReturn,
			Function:    decl.Name.Name,
			ReturnValue: safeJSON(ret),
		})
		d.mu.Lock()
		d.lastEvent = &recorded
		d.finished = true
		d.mu.Unlock()
		d.signalReady()
	}()
}

func safeJSONMap(m map[string]interp.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = safeJSON(v)
	}
	return out
}

func cloneValueMap(m map[string]interp.Value) map[string]interp.Value {
	out := make(map[string]interp.Value, len(m))
	for k, v := range m {
		out[k] = interp.CloneValue(v)
	}
	return out
}

func errEventFromPanic(r any) Event {
	msg := fmt.Sprintf("%v", r)
	return Event{Kind: EventError, Err: &msg}
}
