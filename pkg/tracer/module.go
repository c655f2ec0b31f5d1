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

	"github.com/tracegraph/flowtrace/pkg/interp"
	"github.com/tracegraph/flowtrace/pkg/staticindex"
)

// moduleFuncName is the reported function name for every event recorded
// while running the <top-level>/<module> synthetic entry point.
const moduleFuncName = "<module>"

// LoadModuleEntry builds the synthetic callable for a file's <top-level>
// (equivalently <module>) entry: its body is every init() func of relPath's
// file, in source order. The package-level var initializers are evaluated
// when the interpreter is built, before the callable runs, and record no
// line events. Go has no free top-level statements, so this is the
// interpreter's stand-in for "run the module body" (§6.4.1). The
// interpreter is built across the whole package, not just relPath's file,
// so init() bodies that call a sibling-file helper can still step into it.
func LoadModuleEntry(idx *staticindex.Index, relPath string) (*interp.Interpreter, *ast.FuncDecl, error) {
	files, file, fset, err := idx.PackageFiles(relPath)
	if err != nil {
		return nil, nil, fmt.Errorf("tracer: loading package for %s: %w", relPath, err)
	}
	it, err := interp.New(fset, files...)
	if err != nil {
		return nil, nil, fmt.Errorf("tracer: build module entry for %s: %w", relPath, err)
	}
	absPath := fset.Position(file.Pos()).Filename
	for k, v := range moduleDunders(absPath, file) {
		it.Globals.Set(k, v)
	}

	var inits []*ast.FuncDecl
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Recv == nil && fn.Name.Name == "init" {
			inits = append(inits, fn)
		}
	}

	body := &ast.BlockStmt{}
	for _, fn := range inits {
		body.List = append(body.List, fn.Body.List...)
	}
	synthetic := &ast.FuncDecl{
		Name: ast.NewIdent(moduleFuncName),
		Type: &ast.FuncType{Params: &ast.FieldList{}},
		Body: body,
	}
	return it, synthetic, nil
}

// moduleDunders returns the interpreter-internal bindings the session
// exposes alongside a module's real package-level vars: __file__ and
// __package__ describe the running file, matching spec.md's module
// dunders. LoadModuleEntry binds them in the interpreter's global scope,
// and filterGlobals drops them from every globals snapshot (§6.4.1).
func moduleDunders(absPath string, file *ast.File) map[string]any {
	return map[string]any{
		"__file__":    absPath,
		"__package__": file.Name.Name,
	}
}
