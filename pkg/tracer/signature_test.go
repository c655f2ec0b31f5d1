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
	"github.com/tracegraph/flowtrace/pkg/staticindex"
)

func TestSignatureReturnsParamsFromStaticIndex(t *testing.T) {
	root := t.TempDir()
	abs := filepath.Join(root, "sample.go")
	require.NoError(t, os.WriteFile(abs, []byte(`package sample

func Compute(x int, y int) int {
	return x + y
}
`), 0o644))

	idx := staticindex.New(root, nil)
	sig, err := Signature(idx, ident.New("/sample.go", "Compute"))
	require.NoError(t, err)
	require.Len(t, sig.Params, 2)
	assert.Equal(t, "x", sig.Params[0].Name)
	assert.Equal(t, "y", sig.Params[1].Name)
}

func TestSignatureTopLevelIsEmpty(t *testing.T) {
	root := t.TempDir()
	idx := staticindex.New(root, nil)
	sig, err := Signature(idx, ident.New("/sample.go", "<top-level>"))
	require.NoError(t, err)
	assert.Empty(t, sig.Params)
}

func TestSignatureUnknownEntryIsError(t *testing.T) {
	root := t.TempDir()
	abs := filepath.Join(root, "sample.go")
	require.NoError(t, os.WriteFile(abs, []byte("package sample\n"), 0o644))

	idx := staticindex.New(root, nil)
	_, err := Signature(idx, ident.New("/sample.go", "Missing"))
	assert.Error(t, err)
}
