// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ident implements FlowTrace's canonical function identifier:
//
//	/<repo-relative-path>::<name>[::<name>...]
//
// Names nest left to right (file scope -> receiver type or enclosing
// closure -> inner closure). The two reserved sentinel names <top-level>
// and <module> denote a file's synthetic top-level entry point (package
// var initializers followed by init funcs, see pkg/tracer).
package ident

import (
	"fmt"
	"strings"
)

// TopLevelSentinels are the reserved names denoting a file's module-scope
// entry point. Either spelling is accepted on parse; String emits whichever
// spelling the ID holds.
var TopLevelSentinels = map[string]bool{
	"<top-level>": true,
	"<module>":    true,
}

// ID is a parsed canonical identifier.
type ID struct {
	Path  string   // repo-relative, always has a leading "/"
	Names []string // at least one element
}

// IsTopLevel reports whether id names the module-scope sentinel entry.
func (id ID) IsTopLevel() bool {
	return len(id.Names) == 1 && IsTopLevelName(id.Names[0])
}

// IsTopLevelName reports whether name is one of the reserved sentinels,
// case-insensitively and ignoring surrounding whitespace.
func IsTopLevelName(name string) bool {
	return TopLevelSentinels[strings.ToLower(strings.TrimSpace(name))]
}

// Parse parses a canonical ID string. The path must be non-empty and be
// followed by "::" and at least one name segment; a path without a leading
// "/" is given one.
func Parse(s string) (ID, error) {
	if !strings.Contains(s, "::") {
		return ID{}, fmt.Errorf("ident: malformed canonical id %q: missing \"::\"", s)
	}
	parts := strings.Split(s, "::")
	path := parts[0]
	if path == "" {
		return ID{}, fmt.Errorf("ident: malformed canonical id %q: empty path", s)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	names := parts[1:]
	if len(names) == 0 {
		return ID{}, fmt.Errorf("ident: malformed canonical id %q: no name segment", s)
	}
	for _, n := range names {
		if n == "" {
			return ID{}, fmt.Errorf("ident: malformed canonical id %q: empty name segment", s)
		}
	}
	return ID{Path: path, Names: names}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// literal ids constructed from trusted static strings.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// New builds an ID from a repo-relative path (leading "/" optional) and one
// or more nested names.
func New(relPath string, names ...string) ID {
	if !strings.HasPrefix(relPath, "/") {
		relPath = "/" + relPath
	}
	return ID{Path: relPath, Names: append([]string(nil), names...)}
}

// String renders the canonical form, always leading with "/".
func (id ID) String() string {
	var b strings.Builder
	b.WriteString(id.Path)
	for _, n := range id.Names {
		b.WriteString("::")
		b.WriteString(n)
	}
	return b.String()
}

// Name returns the final (innermost) name segment.
func (id ID) Name() string {
	return id.Names[len(id.Names)-1]
}

// WithPath returns a copy of id with its path replaced.
func (id ID) WithPath(path string) ID {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	id.Path = path
	return id
}

// TrimLeadingSlash returns the path without its leading "/", suitable for
// joining onto a repository root with filepath.Join.
func TrimLeadingSlash(path string) string {
	return strings.TrimPrefix(path, "/")
}
