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
	"fmt"
	"go/ast"
	"go/token"
	"strconv"
	"strings"
)

func literalValue(lit *ast.BasicLit) (Value, error) {
	switch lit.Kind {
	case token.INT:
		n, err := strconv.ParseInt(lit.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("interp: bad int literal %q: %w", lit.Value, err)
		}
		return n, nil
	case token.FLOAT:
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("interp: bad float literal %q: %w", lit.Value, err)
		}
		return f, nil
	case token.STRING:
		s, err := strconv.Unquote(lit.Value)
		if err != nil {
			return lit.Value, nil
		}
		return s, nil
	case token.CHAR:
		s, err := strconv.Unquote(lit.Value)
		if err != nil || len(s) == 0 {
			return int64(0), nil
		}
		return int64([]rune(s)[0]), nil
	default:
		return nil, fmt.Errorf("interp: unsupported literal kind %v", lit.Kind)
	}
}

func truthy(v Value) bool {
	b, ok := v.(bool)
	return ok && b
}

func asInt(v Value) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func addNumeric(v Value, delta int64) Value {
	switch n := v.(type) {
	case int64:
		return n + delta
	case float64:
		return n + float64(delta)
	default:
		return v
	}
}

// toMapKey renders v as a string so the interpreter's value-level maps
// (always map[string]Value) can key on any comparable Go value.
func toMapKey(v Value) string {
	switch k := v.(type) {
	case string:
		return k
	case int64:
		return strconv.FormatInt(k, 10)
	case float64:
		return strconv.FormatFloat(k, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(k)
	default:
		return fmt.Sprintf("%v", k)
	}
}

func derefStruct(v Value) (*StructVal, error) {
	switch t := v.(type) {
	case *StructVal:
		return t, nil
	case *PtrVal:
		return derefStruct(*t.Target)
	default:
		return nil, fmt.Errorf("interp: cannot access field of non-struct value %T", v)
	}
}

// binaryOp evaluates +,-,*,/,%,comparisons over the interpreter's boxed
// numeric/string/bool values. Division and modulo by zero yield a zero
// result here rather than panicking; evalExpr checks a binary expression
// for integer division or modulo by zero before calling binaryOp and
// reports it as a RuntimeError. Other callers get the zero result.
func binaryOp(op token.Token, l, r Value) Value {
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return stringOp(op, ls, rs)
		}
	}
	if lb, ok := l.(bool); ok {
		if rb, ok := r.(bool); ok {
			return boolOp(op, lb, rb)
		}
	}
	li, lIsInt := l.(int64)
	ri, rIsInt := r.(int64)
	if lIsInt && rIsInt {
		return intOp(op, li, ri)
	}
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if lok && rok {
		return floatOp(op, lf, rf)
	}
	switch op {
	case token.EQL:
		return l == r
	case token.NEQ:
		return l != r
	default:
		return nil
	}
}

func stringOp(op token.Token, l, r string) Value {
	switch op {
	case token.ADD:
		return l + r
	case token.EQL:
		return l == r
	case token.NEQ:
		return l != r
	case token.LSS:
		return l < r
	case token.LEQ:
		return l <= r
	case token.GTR:
		return l > r
	case token.GEQ:
		return l >= r
	default:
		return strings.Compare(l, r) == 0
	}
}

func boolOp(op token.Token, l, r bool) Value {
	switch op {
	case token.LAND:
		return l && r
	case token.LOR:
		return l || r
	case token.EQL:
		return l == r
	case token.NEQ:
		return l != r
	default:
		return false
	}
}

func intOp(op token.Token, l, r int64) Value {
	switch op {
	case token.ADD:
		return l + r
	case token.SUB:
		return l - r
	case token.MUL:
		return l * r
	case token.QUO:
		if r == 0 {
			return int64(0)
		}
		return l / r
	case token.REM:
		if r == 0 {
			return int64(0)
		}
		return l % r
	case token.EQL:
		return l == r
	case token.NEQ:
		return l != r
	case token.LSS:
		return l < r
	case token.LEQ:
		return l <= r
	case token.GTR:
		return l > r
	case token.GEQ:
		return l >= r
	default:
		return nil
	}
}

func floatOp(op token.Token, l, r float64) Value {
	switch op {
	case token.ADD:
		return l + r
	case token.SUB:
		return l - r
	case token.MUL:
		return l * r
	case token.QUO:
		if r == 0 {
			return float64(0)
		}
		return l / r
	case token.EQL:
		return l == r
	case token.NEQ:
		return l != r
	case token.LSS:
		return l < r
	case token.LEQ:
		return l <= r
	case token.GTR:
		return l > r
	case token.GEQ:
		return l >= r
	default:
		return nil
	}
}

// callBuiltin implements the handful of predeclared functions interpreted
// programs can call: len, append, and println/print, which accept and
// discard their arguments.
// handled reports whether name was a builtin at all, so the caller can
// fall through to user-defined function lookup otherwise.
func callBuiltin(name string, args []Value) (Value, bool, error) {
	switch name {
	case "len":
		if len(args) != 1 {
			return nil, true, fmt.Errorf("interp: len expects 1 argument")
		}
		switch v := args[0].(type) {
		case string:
			return int64(len(v)), true, nil
		case []Value:
			return int64(len(v)), true, nil
		case map[string]Value:
			return int64(len(v)), true, nil
		default:
			return int64(0), true, nil
		}
	case "append":
		if len(args) == 0 {
			return nil, true, fmt.Errorf("interp: append expects at least 1 argument")
		}
		base, _ := args[0].([]Value)
		out := append([]Value(nil), base...)
		out = append(out, args[1:]...)
		return out, true, nil
	case "println", "print":
		return nil, true, nil
	default:
		return nil, false, nil
	}
}
