// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package callsites implements the Call-Site Locator: given a function's
// canonical id, it walks the repository and reports every expression that
// calls it, with enclosing-function context.
package callsites

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/tracegraph/flowtrace/pkg/ident"
)

// CallSite is one located call expression.
type CallSite struct {
	File              string // repo-relative
	Line              int
	Column            int
	RawLine           string
	ContextLines      []string
	EnclosingFunction *string
	EnclosingID       *ident.ID
}

// Locator finds call sites for a target function across a repository.
type Locator struct {
	repoRoot string
	exclude  map[string]bool
	logger   *slog.Logger
}

// New constructs a Locator. A nil logger defaults to slog.Default().
func New(repoRoot string, exclude []string, logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	excl := make(map[string]bool, len(exclude))
	for _, d := range exclude {
		excl[d] = true
	}
	return &Locator{repoRoot: repoRoot, exclude: excl, logger: logger}
}

// Find walks the repository (skipping the target's own file and every
// excluded directory) and returns every call site for target.
func (l *Locator) Find(target ident.ID) ([]CallSite, error) {
	if !strings.Contains(target.String(), "::") {
		return nil, fmt.Errorf("callsites: malformed target %s", target)
	}
	targetName := target.Name()
	targetAbs := filepath.Join(l.repoRoot, ident.TrimLeadingSlash(target.Path))

	var sites []CallSite
	err := filepath.WalkDir(l.repoRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if l.exclude[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		if samePath(path, targetAbs) {
			return nil
		}
		found, ferr := l.findInFile(path, targetName, target.Path)
		if ferr != nil {
			l.logger.Debug("callsites.parse.skip", "file", path, "err", ferr)
			return nil
		}
		sites = append(sites, found...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("callsites: walk %s: %w", l.repoRoot, err)
	}
	return sites, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// findInFile parses path and collects every call site matching targetName,
// qualified either as a bare identifier or via a dot-import exposing it, or
// as the .Sel of a selector expression (pkg.Name(...) or recv.Name(...) —
// disambiguating the two is left to the caller, matching the original's
// permissive match-by-attribute-name behaviour).
func (l *Locator) findInFile(path, targetName string, targetFilePath string) ([]CallSite, error) {
	fset := token.NewFileSet()
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	file, err := parser.ParseFile(fset, path, src, 0)
	if err != nil {
		return nil, err
	}

	samePackage := filepath.Dir(path) == filepath.Dir(filepath.Join(l.repoRoot, ident.TrimLeadingSlash(targetFilePath)))
	bareCallable := samePackage || hasDotImport(file)
	lines := strings.Split(string(src), "\n")
	relPath, err := filepath.Rel(l.repoRoot, path)
	if err != nil {
		relPath = path
	}
	relPath = filepath.ToSlash(relPath)

	var sites []CallSite

	ast.Inspect(file, func(n ast.Node) bool {
		node, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		matched := false
		switch fn := node.Fun.(type) {
		case *ast.Ident:
			matched = fn.Name == targetName && bareCallable
		case *ast.SelectorExpr:
			matched = fn.Sel.Name == targetName
		}
		if !matched {
			return true
		}
		pos := fset.Position(node.Pos())
		enclosing, enclosingID := enclosingFunction(file, node, relPath)
		sites = append(sites, CallSite{
			File:              relPath,
			Line:              pos.Line,
			Column:            pos.Column,
			RawLine:           strings.TrimSpace(lineAt(lines, pos.Line)),
			ContextLines:      contextWindow(lines, pos.Line, 2),
			EnclosingFunction: enclosing,
			EnclosingID:       enclosingID,
		})
		return true
	})
	return sites, nil
}

// enclosingFunction walks the AST path from file down to call (computed via
// astutil.PathEnclosingInterval) and reports the nearest *ast.FuncDecl or
// *ast.FuncLit containing it, if any.
func enclosingFunction(file *ast.File, call *ast.CallExpr, relPath string) (*string, *ident.ID) {
	path, _ := astutil.PathEnclosingInterval(file, call.Pos(), call.Pos())
	for _, n := range path {
		switch fn := n.(type) {
		case *ast.FuncDecl:
			name := fn.Name.Name
			id := ident.New(relPath, name)
			return &name, &id
		case *ast.FuncLit:
			name := "<anonymous>"
			id := ident.New(relPath, name)
			return &name, &id
		}
	}
	return nil, nil
}

// hasDotImport reports whether file imports any package with the blank-dot
// alias, which brings that package's exported names into scope unqualified.
func hasDotImport(file *ast.File) bool {
	for _, imp := range file.Imports {
		if imp.Name != nil && imp.Name.Name == "." {
			return true
		}
	}
	return false
}

func lineAt(lines []string, n int) string {
	if n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}

func contextWindow(lines []string, center, radius int) []string {
	start := center - radius - 1
	if start < 0 {
		start = 0
	}
	end := center + radius
	if end > len(lines) {
		end = len(lines)
	}
	return append([]string(nil), lines[start:end]...)
}
