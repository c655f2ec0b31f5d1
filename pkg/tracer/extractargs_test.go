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
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracegraph/flowtrace/pkg/interp"
	"github.com/tracegraph/flowtrace/pkg/staticindex"
)

func TestExtractArgsStaticEvaluatesAgainstSnapshot(t *testing.T) {
	fset := token.NewFileSet()
	locals := map[string]any{"x": float64(4)}
	globals := map[string]any{"offset": float64(10)}

	args, err := ExtractArgsStatic(fset, "result := Compute(x, offset)", "Compute", locals, globals, 2)
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, int64(4), args[0])
	assert.Equal(t, int64(10), args[1])
}

func TestExtractArgsStaticPadsShortCalls(t *testing.T) {
	fset := token.NewFileSet()
	args, err := ExtractArgsStatic(fset, "Compute(1)", "Compute", nil, nil, 3)
	require.NoError(t, err)
	require.Len(t, args, 3)
	assert.Equal(t, int64(1), args[0])
	assert.Nil(t, args[1])
	assert.Nil(t, args[2])
}

func TestExtractArgsStaticMissingCallIsError(t *testing.T) {
	fset := token.NewFileSet()
	_, err := ExtractArgsStatic(fset, "Other(1, 2)", "Compute", nil, nil, 2)
	assert.Error(t, err)
}

func TestExtractArgsRuntimeCapturesCallerLiveLocals(t *testing.T) {
	root := t.TempDir()
	src := `package sample

func Compute(x int, y int) int {
	return x + y
}

func Caller(n int) int {
	base := n * 2
	return Compute(base, n)
}
`
	abs := filepath.Join(root, "sample.go")
	require.NoError(t, os.WriteFile(abs, []byte(src), 0o644))

	idx := staticindex.New(root, nil)
	it, file := parseSrc(t, src)

	decl := findFunc(file, "Caller")
	args, err := ExtractArgsRuntime(idx, it, decl, []interp.Value{int64(5)}, 9, "return Compute(base, n)", "Compute", 2)
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, int64(10), args[0])
	assert.Equal(t, int64(5), args[1])
}
