// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package interp

import (
	"go/ast"
	"go/token"
)

// Check walks decl's body and returns a *ResolutionError for the first
// construct outside the executable-target subset: goroutines, channel
// operations, select, generics, and type switches. It inspects decl alone,
// not the functions decl calls; Run calls it before executing each
// declared function, so an unsupported construct in a callee is reported
// when that callee is first called. Closures invoked through a Callable
// are not checked.
func Check(decl *ast.FuncDecl, fset *token.FileSet) error {
	if decl.Type.TypeParams != nil && len(decl.Type.TypeParams.List) > 0 {
		return &ResolutionError{Construct: "generic type parameters", Line: fset.Position(decl.Pos()).Line}
	}
	if decl.Body == nil {
		return nil
	}
	var found error
	ast.Inspect(decl.Body, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		switch node := n.(type) {
		case *ast.GoStmt:
			found = &ResolutionError{Construct: "go statement", Line: fset.Position(node.Pos()).Line}
		case *ast.SelectStmt:
			found = &ResolutionError{Construct: "select statement", Line: fset.Position(node.Pos()).Line}
		case *ast.SendStmt:
			found = &ResolutionError{Construct: "channel send", Line: fset.Position(node.Pos()).Line}
		case *ast.ChanType:
			found = &ResolutionError{Construct: "channel type", Line: fset.Position(node.Pos()).Line}
		case *ast.TypeSwitchStmt:
			found = &ResolutionError{Construct: "type switch", Line: fset.Position(node.Pos()).Line}
		case *ast.FuncLit:
			if node.Type.TypeParams != nil && len(node.Type.TypeParams.List) > 0 {
				found = &ResolutionError{Construct: "generic closure", Line: fset.Position(node.Pos()).Line}
			}
		}
		return found == nil
	})
	return found
}
