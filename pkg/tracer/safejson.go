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

	"github.com/tracegraph/flowtrace/pkg/interp"
)

// safeJSON projects an interpreter Value into something encoding/json can
// always marshal: primitives pass through, slices/maps/structs recurse,
// pointers are dereferenced, a *interp.Callable becomes the "<Callable>"
// placeholder, and anything else is rendered with %v. A panic during projection (the interpreter
// analogue of an unrepresentable Python object) is recovered into
// "<unserializable Typename>" rather than aborting the whole snapshot.
func safeJSON(v interp.Value) (result any) {
	defer func() {
		if r := recover(); r != nil {
			result = fmt.Sprintf("<unserializable %T>", v)
		}
	}()

	switch t := v.(type) {
	case nil, bool, string, int64, float64:
		return t
	case []interp.Value:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = safeJSON(e)
		}
		return out
	case map[string]interp.Value:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = safeJSON(e)
		}
		return out
	case *interp.StructVal:
		out := make(map[string]any, len(t.Fields))
		for k, e := range t.Fields {
			out[k] = safeJSON(e)
		}
		return out
	case *interp.PtrVal:
		return safeJSON(*t.Target)
	case *interp.Callable:
		return "<Callable>"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// buildInternalNames lists the synthetic bindings the module-loading
// synthetic <module> entry point would otherwise leak into a globals
// snapshot; real Go code never references them directly (§6.4.1), they
// exist only for the tracer's own bookkeeping.
var buildInternalNames = map[string]bool{
	"__file__": true, "__package__": true, "__name__": true,
}

// filterGlobals keeps only user package-level var bindings: it drops
// functions, types, and the interpreter's internal dunder-equivalents,
// leaving exactly the data a traced program declared at package scope.
func filterGlobals(names map[string]interp.Value) map[string]any {
	out := make(map[string]any)
	for k, v := range names {
		if buildInternalNames[k] {
			continue
		}
		switch v.(type) {
		case *interp.Callable:
			continue
		}
		out[k] = safeJSON(v)
	}
	return out
}
