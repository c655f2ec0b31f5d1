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
	"go/parser"
	"go/token"
	"strings"

	"github.com/tracegraph/flowtrace/pkg/interp"
	"github.com/tracegraph/flowtrace/pkg/staticindex"
)

// ExtractArgsStatic implements IT's static extract-args submode (§6.4.4):
// given the raw source line containing the call, the callee's name, JSON
// locals/globals snapshots from the controller, and the callee's known
// parameter count, it evaluates each argument expression in the call and
// returns the filtered positional values.
func ExtractArgsStatic(fset *token.FileSet, callLine string, calleeName string, locals, globals map[string]any, paramCount int) ([]interp.Value, error) {
	call, err := findCallInLine(fset, callLine, calleeName)
	if err != nil {
		return nil, err
	}

	env := interp.NewEnv()
	for k, v := range globals {
		env.Define(k, jsonToValue(v))
	}
	child := env.Child()
	for k, v := range locals {
		child.Define(k, jsonToValue(v))
	}

	it := &interp.Interpreter{Fset: fset, Globals: env}
	args := make([]interp.Value, 0, len(call.Args))
	for _, a := range call.Args {
		v, err := it.EvalExpr(child, a)
		if err != nil {
			return nil, fmt.Errorf("tracer: evaluating call argument: %w", err)
		}
		args = append(args, v)
	}
	return interp.FilterArgs(args, paramCount), nil
}

// findCallInLine parses line as a standalone expression and locates the
// *ast.CallExpr whose callee's final name segment equals calleeName. When
// the line is not a bare expression (an assignment, e.g. `x := f(y)`), it
// falls back to wrapping it in a synthetic function body and parsing that
// — the Go analogue of spec.md's eval-then-exec fallback.
func findCallInLine(fset *token.FileSet, line, calleeName string) (*ast.CallExpr, error) {
	trimmed := strings.TrimSpace(line)
	if expr, err := parser.ParseExprFrom(fset, "", trimmed, 0); err == nil {
		if call := findCallByName(expr, calleeName); call != nil {
			return call, nil
		}
	}

	wrapped := "package p\nfunc __wrap() {\n" + trimmed + "\n}\n"
	file, err := parser.ParseFile(fset, "", wrapped, 0)
	if err != nil {
		return nil, fmt.Errorf("tracer: cannot parse call line %q: %w", line, err)
	}
	var found *ast.CallExpr
	ast.Inspect(file, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		if call, ok := n.(*ast.CallExpr); ok {
			if calleeNameOf(call) == calleeName {
				found = call
				return false
			}
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("tracer: no call to %s found in line %q", calleeName, line)
	}
	return found, nil
}

func findCallByName(expr ast.Expr, calleeName string) *ast.CallExpr {
	var found *ast.CallExpr
	ast.Inspect(expr, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		if call, ok := n.(*ast.CallExpr); ok && calleeNameOf(call) == calleeName {
			found = call
			return false
		}
		return true
	})
	return found
}

func calleeNameOf(call *ast.CallExpr) string {
	switch fn := call.Fun.(type) {
	case *ast.Ident:
		return fn.Name
	case *ast.SelectorExpr:
		return fn.Sel.Name
	default:
		return ""
	}
}

// jsonToValue converts a decoded JSON value (as produced by
// encoding/json.Unmarshal into any) into the interpreter's boxed Value
// representation, the inverse of safeJSON for the subset JSON can express.
func jsonToValue(v any) interp.Value {
	switch t := v.(type) {
	case nil:
		return nil
	case bool, string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	case []any:
		out := make([]interp.Value, len(t))
		for i, e := range t {
			out[i] = jsonToValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]interp.Value, len(t))
		for k, e := range t {
			out[k] = jsonToValue(e)
		}
		return out
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ExtractArgsRuntime implements IT's runtime extract-args submode
// (§6.4.4): the controller supplies a caller and its own arguments instead
// of snapshots. IT pins the debugger to the caller's file, steps until the
// call line, captures the live (non-JSON) locals/globals, and re-enters
// static-mode evaluation against them.
func ExtractArgsRuntime(
	idx *staticindex.Index,
	it *interp.Interpreter,
	callerDecl *ast.FuncDecl,
	callerArgs []interp.Value,
	callLine int,
	callLineText string,
	calleeName string,
	paramCount int,
) ([]interp.Value, error) {
	flow := NewFlow("extract-args-runtime", "", "")
	dbg := NewDebugger(flow, it.Fset.Position(callerDecl.Pos()).Filename)
	file := it.Fset.Position(callerDecl.Pos()).Filename
	dbg.PinToFile(file)
	dbg.RunFunctionOnce(it, callerDecl, callerArgs)
	dbg.ContinueUntil(Target{Function: callerDecl.Name.Name, Line: callLine, File: &file})

	if !dbg.WaitForEvent(stepTimeout) {
		return nil, fmt.Errorf("tracer: timed out reaching call line %d in %s", callLine, callerDecl.Name.Name)
	}
	if err := dbg.ThreadException(); err != nil {
		return nil, fmt.Errorf("tracer: caller raised before reaching call line: %w", err)
	}

	rawLocals := dbg.LastRawLocals()
	rawGlobals := dbg.LastRawGlobals()

	call, err := findCallInLine(it.Fset, callLineText, calleeName)
	if err != nil {
		return nil, err
	}
	env := interp.NewEnv()
	for k, v := range rawGlobals {
		env.Define(k, v)
	}
	child := env.Child()
	for k, v := range rawLocals {
		child.Define(k, v)
	}
	liveIt := &interp.Interpreter{Fset: it.Fset, Globals: env}
	args := make([]interp.Value, 0, len(call.Args))
	for _, a := range call.Args {
		v, err := liveIt.EvalExpr(child, a)
		if err != nil {
			return nil, fmt.Errorf("tracer: evaluating call argument: %w", err)
		}
		args = append(args, v)
	}
	return interp.FilterArgs(args, paramCount), nil
}
