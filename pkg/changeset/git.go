// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package changeset

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitRunner is the interface for executing git commands, allowing mocking
// in tests.
type GitRunner interface {
	Run(ctx context.Context, args ...string) (string, error)
	RepoPath() string
}

// GitExecutor handles git command execution against a discovered repo root.
type GitExecutor struct {
	repoPath string
}

// NewGitExecutor discovers the repo root from startPath via
// `git rev-parse --show-toplevel`.
func NewGitExecutor(startPath string) (*GitExecutor, error) {
	if startPath == "" {
		return nil, fmt.Errorf("changeset: startPath cannot be empty")
	}
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return nil, fmt.Errorf("changeset: resolve absolute path: %w", err)
	}

	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = absPath
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("changeset: not a git repository: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("changeset: git not found or not installed: %w", err)
	}

	repoPath := strings.TrimSpace(string(output))
	if repoPath == "" {
		return nil, fmt.Errorf("changeset: could not determine git repository root")
	}
	return &GitExecutor{repoPath: repoPath}, nil
}

// RepoPath returns the absolute path to the git repository root.
func (g *GitExecutor) RepoPath() string {
	return g.repoPath
}

// Run executes a git command with the given arguments in the repo root.
func (g *GitExecutor) Run(ctx context.Context, args ...string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("changeset: no git command specified")
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("changeset: git command timed out or canceled: %w", ctx.Err())
		}
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", fmt.Errorf("changeset: git %s failed: %s", args[0], stderrStr)
		}
		return "", fmt.Errorf("changeset: git %s failed: %w", args[0], err)
	}
	return stdout.String(), nil
}

// Diff runs `git diff` (working tree) or `git diff --cached` (staged),
// tolerating a clean tree (exit 0, empty output) as "no changes".
func Diff(ctx context.Context, g GitRunner, cached bool, paths ...string) (string, error) {
	args := []string{"diff", "--relative", "--ignore-space-at-eol", "-b", "-w", "--ignore-blank-lines"}
	if cached {
		args = append(args, "--cached")
	}
	args = append(args, paths...)
	return g.Run(ctx, args...)
}

// Status runs `git status --porcelain` to enumerate untracked/added files.
func Status(ctx context.Context, g GitRunner) (string, error) {
	return g.Run(ctx, "status", "--porcelain")
}
