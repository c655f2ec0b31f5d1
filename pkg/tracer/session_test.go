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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracegraph/flowtrace/pkg/ident"
	"github.com/tracegraph/flowtrace/pkg/interp"
	"github.com/tracegraph/flowtrace/pkg/staticindex"
)

func writeRepoFile(t *testing.T, repoRoot, relPath, src string) {
	t.Helper()
	abs := filepath.Join(repoRoot, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(src), 0o644))
}

func TestOpenSessionAndStepFunctionEntry(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "sample.go", `package sample

func Sum(n int) int {
	total := 0
	for i := 0; i < n; i++ {
		total += i
	}
	return total
}
`)
	idx := staticindex.New(root, nil)
	entry := ident.New("/sample.go", "Sum")

	sess, err := OpenSession(root, idx, entry, []interp.Value{int64(3)}, "sum-flow", nil)
	require.NoError(t, err)

	resp := sess.Step(Target{Function: "Sum", Line: 0})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Payload)
	assert.Equal(t, "sum-flow", resp.Payload.Flow)
	assert.Equal(t, entry.String(), resp.Payload.EntryID)
	assert.NotEmpty(t, resp.Payload.Events)

	resp2 := sess.Step(Target{Function: "Sum", Line: 10_000})
	require.Nil(t, resp2.Error)
	require.NotNil(t, resp2.Payload)
	last := resp2.Payload.Events[len(resp2.Payload.Events)-1]
	assert.Equal(t, EventReturn, last.Kind)
	assert.Equal(t, int64(0+1+2), last.ReturnValue)

	sess.End()
}

func TestSessionStepAfterFinishedReportsError(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "sample.go", `package sample

func Zero() int {
	return 0
}
`)
	idx := staticindex.New(root, nil)
	entry := ident.New("/sample.go", "Zero")

	sess, err := OpenSession(root, idx, entry, nil, "zero-flow", nil)
	require.NoError(t, err)

	resp := sess.Step(Target{Function: "Zero", Line: 10_000})
	require.NotNil(t, resp.Payload)

	again := sess.Step(Target{Function: "Zero", Line: 0})
	require.NotNil(t, again.Error)
	sess.End()
}

func TestSessionStepsAcrossFilesWithinSamePackage(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "a.go", `package sample

func H(n int) int {
	x := 1
	y := K(n)
	return x + y
}
`)
	writeRepoFile(t, root, "b.go", `package sample

func K(n int) int {
	total := 0
	total += n
	return total
}
`)
	idx := staticindex.New(root, nil)
	entry := ident.New("/a.go", "H")

	sess, err := OpenSession(root, idx, entry, []interp.Value{int64(3)}, "cross-file-flow", nil)
	require.NoError(t, err)

	first := sess.Step(Target{Line: 4})
	require.Nil(t, first.Error)
	require.NotNil(t, first.Payload)
	lastFirst := first.Payload.Events[len(first.Payload.Events)-1]
	assert.Equal(t, "H", lastFirst.Function)
	assert.GreaterOrEqual(t, lastFirst.Line, 4)

	bFile := filepath.Join(root, "b.go")
	second := sess.Step(Target{Function: "K", Line: 3, File: &bFile})
	require.Nil(t, second.Error)
	require.NotNil(t, second.Payload)
	lastSecond := second.Payload.Events[len(second.Payload.Events)-1]
	assert.Equal(t, "K", lastSecond.Function)
	assert.Equal(t, bFile, lastSecond.File)
	assert.GreaterOrEqual(t, lastSecond.Line, 3)

	var sawK bool
	for _, ev := range second.Payload.Events {
		if ev.Function == "K" {
			sawK = true
		}
	}
	assert.True(t, sawK, "journal should contain the entry into K")

	sess.End()
}

func TestOpenSessionModuleEntryRunsInitsInOrder(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "mod.go", `package sample

var seen = ""

func init() {
	seen = seen + "a"
}

func init() {
	seen = seen + "b"
}
`)
	idx := staticindex.New(root, nil)
	entry := ident.New("/mod.go", "<top-level>")

	sess, err := OpenSession(root, idx, entry, nil, "module-flow", nil)
	require.NoError(t, err)

	resp := sess.Step(Target{Line: 10_000})
	require.NotNil(t, resp.Payload)
	require.NotEmpty(t, resp.Payload.Events)
	last := resp.Payload.Events[len(resp.Payload.Events)-1]
	assert.Equal(t, EventReturn, last.Kind)

	var lines []int
	for _, ev := range resp.Payload.Events {
		if ev.Kind == EventLine {
			lines = append(lines, ev.Line)
		}
	}
	assert.Equal(t, []int{6, 10}, lines, "init bodies run in source order")
	sess.End()
}
