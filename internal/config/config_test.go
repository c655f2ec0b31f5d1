// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileDefaultsRepoRootToEnclosingModule(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/target\n\ngo 1.24\n"), 0o644))
	sub := filepath.Join(root, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	cfg, err := Load(filepath.Join(sub, "project.yaml"))
	require.NoError(t, err)
	assert.Equal(t, root, cfg.RepoRoot)
	assert.Equal(t, DefaultExclude, cfg.Exclude)
}

func TestLoadExplicitRepoRootIsNotOverridden(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/target\n\ngo 1.24\n"), 0o644))
	path := filepath.Join(root, DefaultDir, DefaultFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("version: \"1\"\nrepo_root: /explicit/root\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/explicit/root", cfg.RepoRoot)
}

func TestModuleRootWalksUpwardToNearestGoMod(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/target\n\ngo 1.24\n"), 0o644))
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, moduleRoot(deep))
}

func TestModuleRootDefaultsToDotWhenNoGoModFound(t *testing.T) {
	root := t.TempDir()
	assert.Equal(t, ".", moduleRoot(root))
}

func TestDiscoverFindsNearestProjectYAML(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, DefaultDir, DefaultFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("version: \"1\"\n"), 0o644))
	deep := filepath.Join(root, "x", "y")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	found, err := discover(deep)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, DefaultDir, DefaultFile)
	cfg := Default()
	cfg.RepoRoot = "/fixed/root"

	require.NoError(t, Save(cfg, path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.RepoRoot, loaded.RepoRoot)
	assert.Equal(t, cfg.Artifacts, loaded.Artifacts)
}
