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
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/mod/modfile"
)

// ChangedFunctions scans each file's important hunks for added or
// context lines that are Go function signatures, returning the set of
// touched function names per file. A nil set for a file (see Status)
// means "every function in the file changed" (new/untracked file).
func ChangedFunctions(files []FileDiff) map[string]map[string]bool {
	changed := make(map[string]map[string]bool)
	for _, f := range files {
		names := make(map[string]bool)
		for _, h := range f.Hunks {
			for _, line := range h.Lines {
				if !strings.HasPrefix(line, "+") && !strings.HasPrefix(line, " ") {
					continue
				}
				stripped := line[1:]
				if m := goFuncDef.FindStringSubmatch(stripped); m != nil {
					names[m[1]] = true
				}
			}
		}
		if len(names) > 0 {
			changed[f.Path] = names
		}
	}
	return changed
}

// untrackedOrAdded reports whether a porcelain status code denotes an
// untracked ("??") or added ("A" in either column) entry.
func untrackedOrAdded(code string) bool {
	return code == "??" || strings.Contains(code, "A")
}

// NewFiles parses `git status --porcelain` output and returns the
// repo-relative paths of every new or added .go file, expanding untracked
// directories recursively.
func NewFiles(repoRoot, porcelain string) map[string]bool {
	out := make(map[string]bool)
	for _, line := range strings.Split(porcelain, "\n") {
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		path := strings.TrimSpace(line[3:])
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+len(" -> "):]
		}
		path = filepath.ToSlash(path)
		if !untrackedOrAdded(code) {
			continue
		}
		collectGoPaths(repoRoot, path, out)
	}
	return out
}

func collectGoPaths(repoRoot, relPath string, out map[string]bool) {
	absPath := filepath.Join(repoRoot, relPath)
	info, err := os.Stat(absPath)
	if err != nil {
		return
	}
	if info.IsDir() {
		_ = filepath.WalkDir(absPath, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if strings.HasSuffix(path, ".go") {
				rel, rerr := filepath.Rel(repoRoot, path)
				if rerr == nil {
					out[filepath.ToSlash(rel)] = true
				}
			}
			return nil
		})
		return
	}
	if strings.HasSuffix(relPath, ".go") {
		out[relPath] = true
	}
}

// FunctionRecord is one extracted, call-qualified function body.
type FunctionRecord struct {
	ID        string // canonical id, "/path::name"
	Body      string
	StartLine int
	FilePath  string // absolute path
}

var bareCallOrSelector = regexp.MustCompile(`\b([A-Za-z_]\w*)(\.([A-Za-z_]\w*))?\s*\(`)

// ExtractFunctions parses file, and for every top-level func declaration
// whose name is in names (or every declaration, when names is nil — the
// new-file case), builds a FunctionRecord whose Body has call sites
// rewritten to canonical ids wherever they can be resolved: local same-file
// functions first, then the import map, then the repo-wide name index as a
// last resort.
func ExtractFunctions(repoRoot, absPath string, names map[string]bool, nameIndex map[string][]string) (map[string]FunctionRecord, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, absPath, nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	relPath, err := filepath.Rel(repoRoot, absPath)
	if err != nil {
		relPath = absPath
	}
	relPath = "/" + filepath.ToSlash(relPath)

	localFuncs := make(map[string]bool)
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			localFuncs[fn.Name.Name] = true
		}
	}
	importMap := parseImportMap(file, modulePrefix(repoRoot))

	src, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	results := make(map[string]FunctionRecord)
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if names != nil && !names[fn.Name.Name] {
			continue
		}
		start := fset.Position(fn.Pos())
		end := fset.Position(fn.End())
		raw := extractSource(src, start.Offset, end.Offset)
		body := qualifyCalls(raw, importMap, localFuncs, relPath, nameIndex)
		id := relPath + "::" + fn.Name.Name
		results[id] = FunctionRecord{
			ID:        id,
			Body:      body,
			StartLine: start.Line,
			FilePath:  absPath,
		}
	}
	return results, nil
}

func extractSource(src []byte, start, end int) string {
	if start < 0 || end > len(src) || start > end {
		return ""
	}
	return string(src[start:end])
}

// parseImportMap maps a local package identifier (explicit alias, or the
// import path's last segment) to its import path, keeping only imports that
// belong to the target repo's own module: stdlib and third-party imports
// can never resolve to a canonical id in nameIndex, so admitting them here
// would let an unrelated same-named local function (e.g. a local "Marshal")
// shadow calls like "json.Marshal".
func parseImportMap(file *ast.File, modulePrefix string) map[string]string {
	out := make(map[string]string)
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		if modulePrefix == "" || (path != modulePrefix && !strings.HasPrefix(path, modulePrefix+"/")) {
			continue
		}
		alias := path[strings.LastIndex(path, "/")+1:]
		if imp.Name != nil {
			alias = imp.Name.Name
		}
		out[alias] = path
	}
	return out
}

// modulePrefix reads repoRoot/go.mod and returns the module's declared
// import path, or "" if none is found.
func modulePrefix(repoRoot string) string {
	data, err := os.ReadFile(filepath.Join(repoRoot, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

// qualifyCalls rewrites bare-name and pkg-selector call expressions in body
// to canonical-id-prefixed call expressions wherever a resolution exists.
func qualifyCalls(body string, importMap map[string]string, localFuncs map[string]bool, currentFile string, nameIndex map[string][]string) string {
	return bareCallOrSelector.ReplaceAllStringFunc(body, func(match string) string {
		sub := bareCallOrSelector.FindStringSubmatch(match)
		first, selName := sub[1], sub[3]

		if selName != "" {
			if _, known := importMap[first]; known {
				if candidates := nameIndex[selName]; len(candidates) == 1 {
					return "/" + filepath.ToSlash(candidates[0]) + "::" + selName + "("
				}
			}
			return match
		}

		if localFuncs[first] {
			return currentFile + "::" + first + "("
		}
		if candidates := nameIndex[first]; len(candidates) == 1 {
			return "/" + filepath.ToSlash(candidates[0]) + "::" + first + "("
		}
		return match
	})
}
