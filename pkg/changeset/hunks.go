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
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/tracegraph/flowtrace/pkg/sigparse"
)

// goFuncDef matches a Go function or method declaration's first line,
// capturing the function/method name.
var goFuncDef = regexp.MustCompile(`^func\s*(?:\([^)]*\)\s*)?([A-Za-z_]\w*)\s*\(`)

// goCallExpr matches a bare identifier or selector immediately followed by
// "(", the Go analogue of the original's CALL_RE.
var goCallExpr = regexp.MustCompile(`\b[A-Za-z_]\w*(?:\.[A-Za-z_]\w*)?\s*\(`)

// FileDiff is one file's hunks from a parsed unified diff.
type FileDiff struct {
	Path  string
	Hunks []Hunk
}

// Hunk is one "@@ ... @@" region: its header plus the diff lines following
// it, up to the next hunk or file boundary.
type Hunk struct {
	Header string
	Lines  []string
}

// ParseDiff splits unified diff text (as produced by `git diff`) into
// per-file hunks.
func ParseDiff(diffText string) []FileDiff {
	var files []FileDiff
	var current *FileDiff

	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git"):
			if current != nil {
				files = append(files, *current)
			}
			current = &FileDiff{}
		case strings.HasPrefix(line, "+++ b/"):
			if current != nil {
				current.Path = strings.TrimSpace(strings.TrimPrefix(line, "+++ b/"))
			}
		case strings.HasPrefix(line, "@@"):
			if current == nil {
				continue
			}
			current.Hunks = append(current.Hunks, Hunk{Header: line})
		default:
			if current != nil && len(current.Hunks) > 0 {
				last := &current.Hunks[len(current.Hunks)-1]
				last.Lines = append(last.Lines, line)
			}
		}
	}
	if current != nil {
		files = append(files, *current)
	}
	return files
}

// FilterImportant keeps only files that have at least one important hunk,
// restricting each file's Hunks to just those.
func FilterImportant(files []FileDiff) []FileDiff {
	var out []FileDiff
	for _, f := range files {
		var important []Hunk
		for _, h := range f.Hunks {
			if IsImportantHunk(h.Lines) {
				important = append(important, h)
			}
		}
		if len(important) > 0 {
			f.Hunks = important
			out = append(out, f)
		}
	}
	return out
}

// IsImportantHunk decides whether hunkLines represents a material change.
// A single changed line that is a bare function signature is cosmetic; a
// single changed line containing a call expression is material. For larger
// hunks: if every added/removed function-signature pair is a trivial
// rewording (LCS ratio >= 0.85) and no other substantive line was added,
// the hunk is cosmetic; otherwise it is material.
func IsImportantHunk(hunkLines []string) bool {
	var added, removed []string
	for _, l := range hunkLines {
		switch {
		case strings.HasPrefix(l, "+++"):
		case strings.HasPrefix(l, "+"):
			added = append(added, l[1:])
		case strings.HasPrefix(l, "---"):
		case strings.HasPrefix(l, "-"):
			removed = append(removed, l[1:])
		}
	}
	if len(added) == 0 && len(removed) == 0 {
		return false
	}

	if len(added)+len(removed) == 1 {
		var line string
		if len(added) == 1 {
			line = added[0]
		} else {
			line = removed[0]
		}
		if goFuncDef.MatchString(line) {
			return false
		}
		return goCallExpr.MatchString(line)
	}

	trivialPairs := 0
	defPairsChecked := 0
	for _, r := range removed {
		rMatch := goFuncDef.FindStringSubmatch(r)
		if rMatch == nil {
			continue
		}
		for _, a := range added {
			aMatch := goFuncDef.FindStringSubmatch(a)
			if aMatch == nil || aMatch[1] != rMatch[1] {
				continue
			}
			defPairsChecked++
			if defLineChangeIsTrivial(r, a) {
				trivialPairs++
			}
		}
	}

	var nonDefAdded []string
	for _, a := range added {
		line := strings.TrimSpace(a)
		if line == "" {
			continue
		}
		if goFuncDef.MatchString(line) {
			continue
		}
		if strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "//") {
			continue
		}
		nonDefAdded = append(nonDefAdded, line)
	}

	if defPairsChecked > 0 && defPairsChecked == trivialPairs && len(nonDefAdded) == 0 {
		return false
	}

	for _, a := range added {
		if goCallExpr.MatchString(a) {
			return true
		}
	}
	return true
}

// defLineChangeIsTrivial reports whether removed and added (both raw
// function-signature lines) differ only in parameter type annotations or
// trivially in punctuation, per a normalized-text LCS ratio.
func defLineChangeIsTrivial(removed, added string) bool {
	normRemoved := normalizeDefLine(removed)
	normAdded := normalizeDefLine(added)
	if normRemoved == "" || normAdded == "" {
		return false
	}
	if normRemoved == normAdded {
		return true
	}
	ratio := difflib.NewMatcher(splitChars(normRemoved), splitChars(normAdded)).Ratio()
	return ratio >= 0.85
}

// normalizeDefLine strips parameter type annotations from a Go func
// signature line, leaving just the name and parameter names, so that
// "func F(a int, b string)" and "func F(a, b)" compare as identical shape.
// Parameter parsing is delegated to sigparse, which already handles
// grouped params, qualified/pointer/slice/variadic types, and receivers.
func normalizeDefLine(line string) string {
	m := goFuncDef.FindStringSubmatchIndex(line)
	if m == nil {
		return ""
	}
	name := line[m[2]:m[3]]
	if !strings.Contains(line, "(") || !strings.Contains(line, ")") {
		return ""
	}
	params := sigparse.ParseGoParams(line)
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return "func " + name + "(" + strings.Join(names, " ") + ")"
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
