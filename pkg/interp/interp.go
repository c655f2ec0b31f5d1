// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package interp is a tree-walking interpreter for the bounded, executable
// subset of Go source that the Interactive Tracer steps through: variable
// declarations and assignment, arithmetic/comparison/logical expressions,
// if/for/range control flow, struct/slice/map values, and calls to
// package-level functions. It exists so line-level execution tracing has a
// real interpreter loop to hook into rather than needing a foreign debug
// protocol; goroutines, channels, generics, and select are out of scope and
// rejected by Check before the function containing them starts executing.
package interp

import (
	"go/ast"
	"go/token"
	"strconv"
)

// LineHook is invoked before every statement that carries a source line
// number. Implementations that want to pause execution (the interactive
// tracer's scheduler) block inside the hook itself; a non-nil return
// aborts the run with that error.
type LineHook func(frame *Frame) error

// control signals unwind exec* calls the way return/break/continue unwind
// a real Go call stack, without needing panics for ordinary control flow.
type control int

const (
	ctrlNone control = iota
	ctrlReturn
	ctrlBreak
	ctrlContinue
)

// Interpreter executes one package's declarations, merged across every file
// it was built from: top-level vars become the global Env, and func
// declarations from any of those files become callable entries resolvable
// by name. Building from every file of a package (rather than just the
// entry's own file) is what lets evalCall step into a sibling-file callee.
type Interpreter struct {
	Fset    *token.FileSet
	Globals *Env
	Funcs   map[string]*ast.FuncDecl
	Hook    LineHook
}

// New builds an Interpreter over files, evaluating top-level var/const
// initializers into Globals and registering every top-level func, across
// all of them. Every file must share fset: that's what keeps a callee's
// Frame.File/Line correct once execution crosses into another file.
func New(fset *token.FileSet, files ...*ast.File) (*Interpreter, error) {
	it := &Interpreter{
		Fset:    fset,
		Globals: NewEnv(),
		Funcs:   make(map[string]*ast.FuncDecl),
	}
	for _, file := range files {
		for _, decl := range file.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				if d.Recv == nil {
					it.Funcs[d.Name.Name] = d
				}
			case *ast.GenDecl:
				if d.Tok == token.VAR || d.Tok == token.CONST {
					if err := it.evalGenDecl(d, it.Globals); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return it, nil
}

// Run executes decl as a call with the given positional arguments,
// truncated or nil-padded to decl's parameter count (Go has no optional
// or keyword parameters, so filtering here degenerates to length
// matching — still exercised uniformly with extract-args' shared path).
func (it *Interpreter) Run(decl *ast.FuncDecl, args []Value) (Value, error) {
	if err := Check(decl, it.Fset); err != nil {
		return nil, err
	}
	params := paramNames(decl)
	filtered := filterArgs(args, len(params))

	env := it.Globals.Child()
	for i, p := range params {
		if p == "" {
			continue
		}
		env.Define(p, filtered[i])
	}
	frame := &Frame{Function: decl.Name.Name, File: it.Fset.Position(decl.Pos()).Filename, Env: env, Globals: it.Globals}

	ctrl, ret, err := it.execBlock(frame, decl.Body)
	if err != nil {
		return nil, err
	}
	if ctrl == ctrlReturn {
		return ret, nil
	}
	return nil, nil
}

// EvalExpr evaluates a single expression against env, exposed for
// extract-args mode, which needs argument values without running a whole
// statement or call.
func (it *Interpreter) EvalExpr(env *Env, expr ast.Expr) (Value, error) {
	frame := &Frame{Env: env, Globals: it.Globals}
	return it.evalExpr(frame, expr)
}

// FilterArgs truncates or nil-pads args to exactly n entries, exported so
// extract-args mode shares the same rule Run and invokeCallable apply.
func FilterArgs(args []Value, n int) []Value {
	return filterArgs(args, n)
}

// filterArgs truncates or nil-pads args to exactly n entries.
func filterArgs(args []Value, n int) []Value {
	out := make([]Value, n)
	for i := 0; i < n; i++ {
		if i < len(args) {
			out[i] = args[i]
		}
	}
	return out
}

func paramNames(decl *ast.FuncDecl) []string {
	var names []string
	if decl.Type.Params == nil {
		return names
	}
	for _, field := range decl.Type.Params.List {
		if len(field.Names) == 0 {
			names = append(names, "")
			continue
		}
		for _, n := range field.Names {
			names = append(names, n.Name)
		}
	}
	return names
}

func (it *Interpreter) evalGenDecl(d *ast.GenDecl, env *Env) error {
	for _, spec := range d.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		for i, name := range vs.Names {
			var val Value
			if i < len(vs.Values) {
				v, err := it.evalExpr(&Frame{Env: env, Globals: it.Globals}, vs.Values[i])
				if err != nil {
					return err
				}
				val = v
			}
			env.Define(name.Name, val)
		}
	}
	return nil
}

// execBlock runs stmts in a child scope of frame.Env.
func (it *Interpreter) execBlock(frame *Frame, block *ast.BlockStmt) (control, Value, error) {
	inner := &Frame{Function: frame.Function, File: frame.File, Env: frame.Env.Child(), Globals: frame.Globals}
	for _, stmt := range block.List {
		ctrl, val, err := it.execStmt(inner, stmt)
		if err != nil || ctrl != ctrlNone {
			return ctrl, val, err
		}
	}
	return ctrlNone, nil, nil
}

func (it *Interpreter) lineAt(frame *Frame, pos token.Pos) error {
	frame.Line = it.Fset.Position(pos).Line
	if frame.File == "" {
		frame.File = it.Fset.Position(pos).Filename
	}
	if it.Hook != nil {
		return it.Hook(frame)
	}
	return nil
}

func (it *Interpreter) execStmt(frame *Frame, stmt ast.Stmt) (control, Value, error) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		if err := it.lineAt(frame, s.Pos()); err != nil {
			return ctrlNone, nil, err
		}
		_, err := it.evalExpr(frame, s.X)
		return ctrlNone, nil, err

	case *ast.AssignStmt:
		if err := it.lineAt(frame, s.Pos()); err != nil {
			return ctrlNone, nil, err
		}
		return ctrlNone, nil, it.execAssign(frame, s)

	case *ast.IncDecStmt:
		if err := it.lineAt(frame, s.Pos()); err != nil {
			return ctrlNone, nil, err
		}
		cur, err := it.evalExpr(frame, s.X)
		if err != nil {
			return ctrlNone, nil, err
		}
		delta := int64(1)
		if s.Tok == token.DEC {
			delta = -1
		}
		return ctrlNone, nil, it.assignTo(frame, s.X, addNumeric(cur, delta))

	case *ast.ReturnStmt:
		if err := it.lineAt(frame, s.Pos()); err != nil {
			return ctrlNone, nil, err
		}
		if len(s.Results) == 0 {
			return ctrlReturn, nil, nil
		}
		if len(s.Results) == 1 {
			v, err := it.evalExpr(frame, s.Results[0])
			return ctrlReturn, v, err
		}
		var vals []Value
		for _, r := range s.Results {
			v, err := it.evalExpr(frame, r)
			if err != nil {
				return ctrlNone, nil, err
			}
			vals = append(vals, v)
		}
		return ctrlReturn, vals, nil

	case *ast.IfStmt:
		if err := it.lineAt(frame, s.Pos()); err != nil {
			return ctrlNone, nil, err
		}
		ifFrame := frame
		if s.Init != nil {
			ifFrame = &Frame{Function: frame.Function, File: frame.File, Env: frame.Env.Child(), Globals: frame.Globals}
			if _, _, err := it.execStmt(ifFrame, s.Init); err != nil {
				return ctrlNone, nil, err
			}
		}
		cond, err := it.evalExpr(ifFrame, s.Cond)
		if err != nil {
			return ctrlNone, nil, err
		}
		if truthy(cond) {
			return it.execBlock(ifFrame, s.Body)
		}
		if s.Else != nil {
			return it.execStmt(ifFrame, s.Else)
		}
		return ctrlNone, nil, nil

	case *ast.BlockStmt:
		return it.execBlock(frame, s)

	case *ast.ForStmt:
		return it.execFor(frame, s)

	case *ast.RangeStmt:
		return it.execRange(frame, s)

	case *ast.BranchStmt:
		if s.Tok == token.BREAK {
			return ctrlBreak, nil, nil
		}
		if s.Tok == token.CONTINUE {
			return ctrlContinue, nil, nil
		}
		return ctrlNone, nil, nil

	case *ast.DeclStmt:
		gd, ok := s.Decl.(*ast.GenDecl)
		if !ok {
			return ctrlNone, nil, nil
		}
		return ctrlNone, nil, it.evalGenDecl(gd, frame.Env)

	default:
		return ctrlNone, nil, nil
	}
}

func (it *Interpreter) execAssign(frame *Frame, s *ast.AssignStmt) error {
	if s.Tok == token.DEFINE || s.Tok == token.ASSIGN {
		values := make([]Value, len(s.Rhs))
		if len(s.Rhs) == 1 && len(s.Lhs) > 1 {
			v, err := it.evalExpr(frame, s.Rhs[0])
			if err != nil {
				return err
			}
			if multi, ok := v.([]Value); ok {
				for i, lhs := range s.Lhs {
					var val Value
					if i < len(multi) {
						val = multi[i]
					}
					if err := it.bindLhs(frame, lhs, val, s.Tok); err != nil {
						return err
					}
				}
				return nil
			}
			values[0] = v
		} else {
			for i, rhs := range s.Rhs {
				v, err := it.evalExpr(frame, rhs)
				if err != nil {
					return err
				}
				values[i] = v
			}
		}
		for i, lhs := range s.Lhs {
			var val Value
			if i < len(values) {
				val = values[i]
			}
			if err := it.bindLhs(frame, lhs, val, s.Tok); err != nil {
				return err
			}
		}
		return nil
	}

	// Compound assignment: x += y, etc.
	cur, err := it.evalExpr(frame, s.Lhs[0])
	if err != nil {
		return err
	}
	rhs, err := it.evalExpr(frame, s.Rhs[0])
	if err != nil {
		return err
	}
	var result Value
	switch s.Tok {
	case token.ADD_ASSIGN:
		result = binaryOp(token.ADD, cur, rhs)
	case token.SUB_ASSIGN:
		result = binaryOp(token.SUB, cur, rhs)
	case token.MUL_ASSIGN:
		result = binaryOp(token.MUL, cur, rhs)
	case token.QUO_ASSIGN:
		result = binaryOp(token.QUO, cur, rhs)
	case token.REM_ASSIGN:
		result = binaryOp(token.REM, cur, rhs)
	default:
		result = rhs
	}
	return it.assignTo(frame, s.Lhs[0], result)
}

func (it *Interpreter) bindLhs(frame *Frame, lhs ast.Expr, val Value, tok token.Token) error {
	if ident, ok := lhs.(*ast.Ident); ok && ident.Name == "_" {
		return nil
	}
	if tok == token.DEFINE {
		if ident, ok := lhs.(*ast.Ident); ok {
			frame.Env.Define(ident.Name, val)
			return nil
		}
	}
	return it.assignTo(frame, lhs, val)
}

func (it *Interpreter) assignTo(frame *Frame, lhs ast.Expr, val Value) error {
	switch t := lhs.(type) {
	case *ast.Ident:
		frame.Env.Set(t.Name, val)
		return nil
	case *ast.SelectorExpr:
		recv, err := it.evalExpr(frame, t.X)
		if err != nil {
			return err
		}
		sv, err := derefStruct(recv)
		if err != nil {
			return err
		}
		sv.Fields[t.Sel.Name] = val
		return nil
	case *ast.IndexExpr:
		container, err := it.evalExpr(frame, t.X)
		if err != nil {
			return err
		}
		idx, err := it.evalExpr(frame, t.Index)
		if err != nil {
			return err
		}
		switch c := container.(type) {
		case []Value:
			i, ok := asInt(idx)
			if !ok || i < 0 || i >= len(c) {
				return runtimeErrorf(it.Fset.Position(t.Pos()).Line, "index out of range")
			}
			c[i] = val
			return nil
		case map[string]Value:
			c[toMapKey(idx)] = val
			return nil
		}
		return runtimeErrorf(it.Fset.Position(t.Pos()).Line, "cannot index value of type %T", container)
	case *ast.StarExpr:
		ptrVal, err := it.evalExpr(frame, t.X)
		if err != nil {
			return err
		}
		ptr, ok := ptrVal.(*PtrVal)
		if !ok {
			return runtimeErrorf(it.Fset.Position(t.Pos()).Line, "cannot dereference non-pointer")
		}
		*ptr.Target = val
		return nil
	default:
		return runtimeErrorf(it.Fset.Position(lhs.Pos()).Line, "unsupported assignment target")
	}
}

func (it *Interpreter) execFor(frame *Frame, s *ast.ForStmt) (control, Value, error) {
	loopFrame := &Frame{Function: frame.Function, File: frame.File, Env: frame.Env.Child(), Globals: frame.Globals}
	if s.Init != nil {
		if _, _, err := it.execStmt(loopFrame, s.Init); err != nil {
			return ctrlNone, nil, err
		}
	}
	for {
		if s.Cond != nil {
			if err := it.lineAt(loopFrame, s.Cond.Pos()); err != nil {
				return ctrlNone, nil, err
			}
			cond, err := it.evalExpr(loopFrame, s.Cond)
			if err != nil {
				return ctrlNone, nil, err
			}
			if !truthy(cond) {
				return ctrlNone, nil, nil
			}
		}
		ctrl, val, err := it.execBlock(loopFrame, s.Body)
		if err != nil {
			return ctrlNone, nil, err
		}
		if ctrl == ctrlReturn {
			return ctrl, val, nil
		}
		if ctrl == ctrlBreak {
			return ctrlNone, nil, nil
		}
		if s.Post != nil {
			if _, _, err := it.execStmt(loopFrame, s.Post); err != nil {
				return ctrlNone, nil, err
			}
		}
	}
}

func (it *Interpreter) execRange(frame *Frame, s *ast.RangeStmt) (control, Value, error) {
	loopFrame := &Frame{Function: frame.Function, File: frame.File, Env: frame.Env.Child(), Globals: frame.Globals}
	container, err := it.evalExpr(loopFrame, s.X)
	if err != nil {
		return ctrlNone, nil, err
	}

	rangeBody := func(key, val Value) (control, Value, error) {
		if s.Key != nil {
			if id, ok := s.Key.(*ast.Ident); ok && id.Name != "_" {
				loopFrame.Env.Define(id.Name, key)
			}
		}
		if s.Value != nil {
			if id, ok := s.Value.(*ast.Ident); ok && id.Name != "_" {
				loopFrame.Env.Define(id.Name, val)
			}
		}
		if err := it.lineAt(loopFrame, s.Pos()); err != nil {
			return ctrlNone, nil, err
		}
		return it.execBlock(loopFrame, s.Body)
	}

	switch c := container.(type) {
	case []Value:
		for i, v := range c {
			ctrl, val, err := rangeBody(int64(i), v)
			if err != nil {
				return ctrlNone, nil, err
			}
			if ctrl == ctrlReturn {
				return ctrl, val, nil
			}
			if ctrl == ctrlBreak {
				break
			}
		}
	case map[string]Value:
		for k, v := range c {
			ctrl, val, err := rangeBody(k, v)
			if err != nil {
				return ctrlNone, nil, err
			}
			if ctrl == ctrlReturn {
				return ctrl, val, nil
			}
			if ctrl == ctrlBreak {
				break
			}
		}
	case string:
		for i, r := range c {
			ctrl, val, err := rangeBody(int64(i), int64(r))
			if err != nil {
				return ctrlNone, nil, err
			}
			if ctrl == ctrlReturn {
				return ctrl, val, nil
			}
			if ctrl == ctrlBreak {
				break
			}
		}
	}
	return ctrlNone, nil, nil
}

func (it *Interpreter) evalExpr(frame *Frame, expr ast.Expr) (Value, error) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		return literalValue(e)

	case *ast.Ident:
		switch e.Name {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "nil":
			return nil, nil
		}
		if v, ok := frame.Env.Get(e.Name); ok {
			return v, nil
		}
		if fn, ok := it.Funcs[e.Name]; ok {
			return &Callable{Name: e.Name, Params: paramNames(fn), Body: fn.Body}, nil
		}
		return nil, runtimeErrorf(it.Fset.Position(e.Pos()).Line, "undefined: %s", e.Name)

	case *ast.ParenExpr:
		return it.evalExpr(frame, e.X)

	case *ast.UnaryExpr:
		return it.evalUnary(frame, e)

	case *ast.BinaryExpr:
		l, err := it.evalExpr(frame, e.X)
		if err != nil {
			return nil, err
		}
		if e.Op == token.LAND && !truthy(l) {
			return false, nil
		}
		if e.Op == token.LOR && truthy(l) {
			return true, nil
		}
		r, err := it.evalExpr(frame, e.Y)
		if err != nil {
			return nil, err
		}
		if e.Op == token.QUO || e.Op == token.REM {
			_, lInt := l.(int64)
			if ri, rInt := r.(int64); lInt && rInt && ri == 0 {
				return nil, runtimeErrorf(it.Fset.Position(e.Pos()).Line, "integer divide by zero")
			}
		}
		return binaryOp(e.Op, l, r), nil

	case *ast.CallExpr:
		return it.evalCall(frame, e)

	case *ast.SelectorExpr:
		recv, err := it.evalExpr(frame, e.X)
		if err != nil {
			return nil, err
		}
		sv, err := derefStruct(recv)
		if err != nil {
			return nil, err
		}
		return sv.Fields[e.Sel.Name], nil

	case *ast.IndexExpr:
		container, err := it.evalExpr(frame, e.X)
		if err != nil {
			return nil, err
		}
		idx, err := it.evalExpr(frame, e.Index)
		if err != nil {
			return nil, err
		}
		switch c := container.(type) {
		case []Value:
			i, ok := asInt(idx)
			if !ok || i < 0 || i >= len(c) {
				return nil, runtimeErrorf(it.Fset.Position(e.Pos()).Line, "index out of range")
			}
			return c[i], nil
		case map[string]Value:
			return c[toMapKey(idx)], nil
		case string:
			i, ok := asInt(idx)
			if !ok || i < 0 || i >= len(c) {
				return nil, runtimeErrorf(it.Fset.Position(e.Pos()).Line, "index out of range")
			}
			return int64(c[i]), nil
		}
		return nil, runtimeErrorf(it.Fset.Position(e.Pos()).Line, "cannot index value of type %T", container)

	case *ast.CompositeLit:
		return it.evalComposite(frame, e)

	case *ast.StarExpr:
		v, err := it.evalExpr(frame, e.X)
		if err != nil {
			return nil, err
		}
		ptr, ok := v.(*PtrVal)
		if !ok {
			return nil, runtimeErrorf(it.Fset.Position(e.Pos()).Line, "cannot dereference non-pointer")
		}
		return *ptr.Target, nil

	default:
		return nil, nil
	}
}

func (it *Interpreter) evalUnary(frame *Frame, e *ast.UnaryExpr) (Value, error) {
	if e.Op == token.AND {
		v, err := it.evalExpr(frame, e.X)
		if err != nil {
			return nil, err
		}
		return &PtrVal{Target: &v}, nil
	}
	v, err := it.evalExpr(frame, e.X)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case token.SUB:
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
	case token.NOT:
		return !truthy(v), nil
	}
	return v, nil
}

func (it *Interpreter) evalComposite(frame *Frame, e *ast.CompositeLit) (Value, error) {
	switch t := e.Type.(type) {
	case *ast.ArrayType:
		vals := make([]Value, 0, len(e.Elts))
		for _, elt := range e.Elts {
			v, err := it.evalExpr(frame, elt)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return vals, nil
	case *ast.MapType:
		out := make(map[string]Value, len(e.Elts))
		for _, elt := range e.Elts {
			kv, ok := elt.(*ast.KeyValueExpr)
			if !ok {
				continue
			}
			k, err := it.evalExpr(frame, kv.Key)
			if err != nil {
				return nil, err
			}
			v, err := it.evalExpr(frame, kv.Value)
			if err != nil {
				return nil, err
			}
			out[toMapKey(k)] = v
		}
		return out, nil
	case *ast.Ident:
		return it.evalStructLit(frame, t.Name, e.Elts)
	default:
		fields := make(map[string]Value)
		for _, elt := range e.Elts {
			if kv, ok := elt.(*ast.KeyValueExpr); ok {
				if id, ok := kv.Key.(*ast.Ident); ok {
					v, err := it.evalExpr(frame, kv.Value)
					if err != nil {
						return nil, err
					}
					fields[id.Name] = v
				}
			}
		}
		return &StructVal{TypeName: "anonymous", Fields: fields}, nil
	}
}

func (it *Interpreter) evalStructLit(frame *Frame, typeName string, elts []ast.Expr) (Value, error) {
	fields := make(map[string]Value)
	for i, elt := range elts {
		if kv, ok := elt.(*ast.KeyValueExpr); ok {
			id, ok := kv.Key.(*ast.Ident)
			if !ok {
				continue
			}
			v, err := it.evalExpr(frame, kv.Value)
			if err != nil {
				return nil, err
			}
			fields[id.Name] = v
		} else {
			v, err := it.evalExpr(frame, elt)
			if err != nil {
				return nil, err
			}
			fields[strconv.Itoa(i)] = v
		}
	}
	return &StructVal{TypeName: typeName, Fields: fields}, nil
}

func (it *Interpreter) evalCall(frame *Frame, call *ast.CallExpr) (Value, error) {
	var args []Value
	for _, a := range call.Args {
		v, err := it.evalExpr(frame, a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	if ident, ok := call.Fun.(*ast.Ident); ok {
		if v, handled, err := callBuiltin(ident.Name, args); handled {
			return v, err
		}
		if fn, ok := it.Funcs[ident.Name]; ok {
			return it.Run(fn, args)
		}
		if v, ok := frame.Env.Get(ident.Name); ok {
			if callable, ok := v.(*Callable); ok {
				return it.invokeCallable(callable, args)
			}
		}
		return nil, runtimeErrorf(it.Fset.Position(call.Pos()).Line, "call to undefined function %s", ident.Name)
	}

	fnVal, err := it.evalExpr(frame, call.Fun)
	if err != nil {
		return nil, err
	}
	callable, ok := fnVal.(*Callable)
	if !ok {
		return nil, runtimeErrorf(it.Fset.Position(call.Pos()).Line, "cannot call non-function value")
	}
	return it.invokeCallable(callable, args)
}

func (it *Interpreter) invokeCallable(c *Callable, args []Value) (Value, error) {
	base := c.Closure
	if base == nil {
		base = it.Globals
	}
	env := base.Child()
	filtered := filterArgs(args, len(c.Params))
	for i, p := range c.Params {
		if p != "" {
			env.Define(p, filtered[i])
		}
	}
	frame := &Frame{Function: c.Name, Env: env, Globals: it.Globals}
	ctrl, ret, err := it.execBlock(frame, c.Body)
	if err != nil {
		return nil, err
	}
	if ctrl == ctrlReturn {
		return ret, nil
	}
	return nil, nil
}
