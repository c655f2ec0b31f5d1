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
	"go/ast"
	"go/parser"
	"go/token"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracegraph/flowtrace/pkg/interp"
)

func parseSrc(t *testing.T, src string) (*interp.Interpreter, *ast.File) {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "sample.go", src, parser.ParseComments)
	require.NoError(t, err)
	it, err := interp.New(fset, file)
	require.NoError(t, err)
	return it, file
}

func findFunc(file *ast.File, name string) *ast.FuncDecl {
	for _, d := range file.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok && fn.Name.Name == name {
			return fn
		}
	}
	return nil
}

const sumSrc = `package sample

func Sum(n int) int {
	total := 0
	for i := 0; i < n; i++ {
		total += i
	}
	return total
}
`

func TestDebuggerStepsLineByLineInOrder(t *testing.T) {
	it, file := parseSrc(t, sumSrc)
	decl := findFunc(file, "Sum")
	entryFile := it.Fset.Position(decl.Pos()).Filename

	flow := NewFlow("sum", "/sample.go::Sum", "[3]")
	dbg := NewDebugger(flow, entryFile)
	dbg.RunFunctionOnce(it, decl, []interp.Value{int64(3)})

	dbg.ContinueUntil(Target{Function: "Sum", Line: 0})
	require.True(t, dbg.WaitForEvent(2*time.Second))
	first := dbg.LastEvent()
	require.NotNil(t, first)
	assert.Equal(t, "Sum", first.Function)

	dbg.ContinueUntil(Target{Function: "Sum", Line: first.Line + 1})
	require.True(t, dbg.WaitForEvent(2*time.Second))
	second := dbg.LastEvent()
	require.NotNil(t, second)
	assert.Greater(t, second.linearIndex, first.linearIndex)
	assert.GreaterOrEqual(t, second.Line, first.Line+1)
}

func TestDebuggerRunsToCompletion(t *testing.T) {
	it, file := parseSrc(t, sumSrc)
	decl := findFunc(file, "Sum")
	entryFile := it.Fset.Position(decl.Pos()).Filename

	flow := NewFlow("sum", "/sample.go::Sum", "[3]")
	dbg := NewDebugger(flow, entryFile)
	dbg.RunFunctionOnce(it, decl, []interp.Value{int64(3)})

	// Ask for a line far beyond the function's body: the worker should run
	// to completion and report a return event instead of hanging forever.
	dbg.ContinueUntil(Target{Function: "Sum", Line: 10_000})
	require.True(t, dbg.WaitForEvent(2*time.Second))

	require.True(t, dbg.Finished())
	ret := dbg.LastEvent()
	require.NotNil(t, ret)
	assert.Equal(t, EventReturn, ret.Kind)
	assert.Equal(t, int64(0+1+2), ret.ReturnValue)
	assert.NoError(t, dbg.ThreadException())
}

func TestDebuggerRecordsPanicAsErrorEvent(t *testing.T) {
	it, file := parseSrc(t, `package sample

func Divide(a int, b int) int {
	return a / b
}
`)
	decl := findFunc(file, "Divide")
	entryFile := it.Fset.Position(decl.Pos()).Filename

	flow := NewFlow("divide", "/sample.go::Divide", "[1,0]")
	dbg := NewDebugger(flow, entryFile)
	dbg.RunFunctionOnce(it, decl, []interp.Value{int64(1), int64(0)})

	dbg.ContinueUntil(Target{Function: "Divide", Line: 10_000})
	require.True(t, dbg.WaitForEvent(2*time.Second))

	require.True(t, dbg.Finished())
	assert.Error(t, dbg.ThreadException())
	ev := dbg.LastEvent()
	require.NotNil(t, ev)
	assert.Equal(t, EventError, ev.Kind)
}

func TestDebuggerFilePinningVetoesOtherFileStops(t *testing.T) {
	it, file := parseSrc(t, sumSrc)
	decl := findFunc(file, "Sum")
	entryFile := it.Fset.Position(decl.Pos()).Filename

	flow := NewFlow("sum", "/sample.go::Sum", "[3]")
	dbg := NewDebugger(flow, entryFile)
	dbg.PinToFile("/somewhere/else.go")
	dbg.RunFunctionOnce(it, decl, []interp.Value{int64(3)})

	dbg.ContinueUntil(Target{Function: "Sum", Line: 0})
	require.True(t, dbg.WaitForEvent(2*time.Second))

	// The worker must run to completion: every line event is in entryFile,
	// and the pin rejects all of them, so only the terminal return event
	// ever unblocks WaitForEvent.
	require.True(t, dbg.Finished())
	ev := dbg.LastEvent()
	require.NotNil(t, ev)
	assert.Equal(t, EventReturn, ev.Kind)
}
