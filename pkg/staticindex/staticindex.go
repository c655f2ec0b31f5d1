// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package staticindex implements the Static Index: parsing a repository's Go
// source with go/parser, resolving canonical ids to their declaring
// *ast.FuncDecl or *ast.FuncLit, extracting signatures, and building the
// name -> file fallback index CSA uses when an import-based resolution
// fails.
package staticindex

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/tracegraph/flowtrace/internal/metrics"
	"github.com/tracegraph/flowtrace/pkg/ident"
)

// ErrNotFound is returned when a canonical id cannot be resolved to a
// declaration within its file.
var ErrNotFound = errors.New("staticindex: identifier not found")

// Param is one entry of a Signature, in declaration order.
type Param struct {
	Name     string
	Type     *string
	Default  *string // always nil for Go: no default-argument syntax
	Required bool    // always true for Go
}

// Signature is a function's extracted parameter list.
type Signature struct {
	Params []Param
}

// parsedFile caches one file's AST alongside the FileSet needed to resolve
// token.Pos values into line/column pairs.
type parsedFile struct {
	fset *token.FileSet
	file *ast.File
}

// Index parses and caches Go source files under a repository root, and
// resolves canonical ids against them.
type Index struct {
	repoRoot string
	logger   *slog.Logger

	mu    sync.Mutex
	files map[string]*parsedFile // absolute path -> parsed file
}

// New constructs an Index rooted at repoRoot. A nil logger defaults to
// slog.Default(), matching the teacher's NewX(logger) convention.
func New(repoRoot string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		repoRoot: repoRoot,
		logger:   logger,
		files:    make(map[string]*parsedFile),
	}
}

// parseFile returns the cached AST for absPath, parsing and caching it on
// first access.
func (x *Index) parseFile(absPath string) (*parsedFile, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if pf, ok := x.files[absPath]; ok {
		return pf, nil
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, absPath, nil, parser.ParseComments)
	if err != nil {
		// Retry with AllErrors so the returned error lists every syntax
		// error; a file that does not parse is still reported as an error.
		file, err = parser.ParseFile(fset, absPath, nil, parser.AllErrors)
		if err != nil {
			return nil, fmt.Errorf("staticindex: parse %s: %w", absPath, err)
		}
	}
	pf := &parsedFile{fset: fset, file: file}
	x.files[absPath] = pf
	metrics.FilesIndexed.Inc()
	return pf, nil
}

// Resolve locates the declaration named by id: the file at id.Path under the
// repository root, descended through id.Names per the nested lookup rules
// (receiver methods and func-literal locals, method-first on ambiguity).
// Length-1 sentinel names (<top-level>, <module>) are handled by the tracer,
// not here, since they have no corresponding ast.Decl.
func (x *Index) Resolve(id ident.ID) (*ast.FuncDecl, *token.FileSet, error) {
	if id.IsTopLevel() {
		return nil, nil, fmt.Errorf("staticindex: %s is a synthetic entry, not an ast.FuncDecl", id)
	}
	absPath := filepath.Join(x.repoRoot, ident.TrimLeadingSlash(id.Path))
	pf, err := x.parseFile(absPath)
	if err != nil {
		return nil, nil, err
	}
	decl, err := resolveNames(pf.file, id.Names)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return decl, pf.fset, nil
}

// FileFor returns the parsed *ast.File backing id's declaring file, paired
// with the same *token.FileSet Resolve would return for it.
func (x *Index) FileFor(id ident.ID) (*ast.File, *token.FileSet, error) {
	absPath := filepath.Join(x.repoRoot, ident.TrimLeadingSlash(id.Path))
	pf, err := x.parseFile(absPath)
	if err != nil {
		return nil, nil, err
	}
	return pf.file, pf.fset, nil
}

// PackageFiles parses every non-test .go file sitting alongside relPath's
// declaring file into one shared *token.FileSet, and returns them together
// with the one file that declares relPath itself. A single shared FileSet
// is what lets an interp.Interpreter resolve calls that cross from one file
// of the package into another (§6.4.5): token.Pos values are only
// meaningful relative to the FileSet that produced them, so stepping across
// files requires all of them to have been parsed into the same one. This
// bypasses Index's per-file parse cache, which assigns each file its own
// FileSet.
func (x *Index) PackageFiles(relPath string) (files []*ast.File, entryFile *ast.File, fset *token.FileSet, err error) {
	absPath := filepath.Join(x.repoRoot, ident.TrimLeadingSlash(relPath))
	dir := filepath.Dir(absPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("staticindex: reading package dir %s: %w", dir, err)
	}
	fset = token.NewFileSet()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".go") || strings.HasSuffix(e.Name(), "_test.go") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		file, perr := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if perr != nil {
			continue // best-effort: a broken sibling shouldn't block tracing this one
		}
		files = append(files, file)
		if path == absPath {
			entryFile = file
		}
	}
	if entryFile == nil {
		return nil, nil, nil, fmt.Errorf("staticindex: %s not found while loading its package", absPath)
	}
	return files, entryFile, fset, nil
}

// ResolveAcrossFiles finds the declaration named by names within files, the
// multi-file analogue of resolveNames for an Interpreter built by
// PackageFiles: it tries each file in turn, since the caller's target may be
// declared in a sibling file rather than the one used to locate the
// package.
func ResolveAcrossFiles(files []*ast.File, names []string) (*ast.FuncDecl, error) {
	for _, f := range files {
		if decl, err := resolveNames(f, names); err == nil {
			return decl, nil
		}
	}
	return nil, ErrNotFound
}

// resolveNames descends names through file's top-level declarations.
func resolveNames(file *ast.File, names []string) (*ast.FuncDecl, error) {
	if len(names) == 1 {
		return findTopLevel(file, names[0])
	}
	// Two-segment and deeper: first name selects either a receiver type
	// (method-first) or a package-level function whose body contains a
	// func-literal local bound to the next name.
	recv := findMethod(file, names[0], names[1])
	if recv != nil {
		if len(names) == 2 {
			return recv, nil
		}
		return descendLiteralChain(recv.Body, names[2:])
	}
	outer := findTopLevel(file, names[0])
	if outer != nil {
		decl, err := descendLiteralChain(outer.Body, names[1:])
		if err == nil {
			return decl, nil
		}
	}
	return nil, ErrNotFound
}

func findTopLevel(file *ast.File, name string) *ast.FuncDecl {
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}
		if fn.Name.Name == name {
			return fn
		}
	}
	return nil
}

func findMethod(file *ast.File, typeName, methodName string) *ast.FuncDecl {
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 {
			continue
		}
		if receiverTypeName(fn.Recv.List[0].Type) == typeName && fn.Name.Name == methodName {
			return fn
		}
	}
	return nil
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	default:
		return ""
	}
}

// descendLiteralChain finds a `name := func(...) {...}`-shaped local inside
// body matching names[0], recursing for further segments. This is Go's
// structural analogue of Python's lexically nested function definitions.
func descendLiteralChain(body *ast.BlockStmt, names []string) (*ast.FuncDecl, error) {
	if body == nil {
		return nil, ErrNotFound
	}
	lit := findFuncLit(body, names[0])
	if lit == nil {
		return nil, ErrNotFound
	}
	if len(names) == 1 {
		return &ast.FuncDecl{Name: ast.NewIdent(names[0]), Type: lit.Type, Body: lit.Body}, nil
	}
	return descendLiteralChain(lit.Body, names[1:])
}

// findFuncLit searches body for an assignment/declaration that binds name to
// a *ast.FuncLit, at any nesting depth within the block.
func findFuncLit(body *ast.BlockStmt, name string) *ast.FuncLit {
	var found *ast.FuncLit
	ast.Inspect(body, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		assign, ok := n.(*ast.AssignStmt)
		if !ok {
			return true
		}
		for i, lhs := range assign.Lhs {
			id, ok := lhs.(*ast.Ident)
			if !ok || id.Name != name || i >= len(assign.Rhs) {
				continue
			}
			if lit, ok := assign.Rhs[i].(*ast.FuncLit); ok {
				found = lit
			}
		}
		return true
	})
	return found
}

// ExtractSignature extracts decl's parameter list in declaration order.
func ExtractSignature(decl *ast.FuncDecl) Signature {
	var sig Signature
	if decl.Type == nil || decl.Type.Params == nil {
		return sig
	}
	for _, field := range decl.Type.Params.List {
		typeStr := exprString(field.Type)
		names := field.Names
		if len(names) == 0 {
			// Unnamed parameter, e.g. an interface method stub.
			sig.Params = append(sig.Params, Param{Name: "", Type: &typeStr, Required: true})
			continue
		}
		for _, n := range names {
			t := typeStr
			sig.Params = append(sig.Params, Param{Name: n.Name, Type: &t, Required: true})
		}
	}
	return sig
}

// exprString renders a structural, go/types-free approximation of a type
// expression: enough to present to a caller, not enough to round-trip.
func exprString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	case *ast.StarExpr:
		return "*" + exprString(t.X)
	case *ast.Ellipsis:
		return "..." + exprString(t.Elt)
	case *ast.ArrayType:
		return "[]" + exprString(t.Elt)
	case *ast.MapType:
		return "map"
	case *ast.ChanType:
		return "chan"
	case *ast.FuncType:
		return "func"
	case *ast.InterfaceType:
		return "interface"
	case *ast.IndexExpr:
		return exprString(t.X)
	case *ast.IndexListExpr:
		return exprString(t.X)
	default:
		return "any"
	}
}

// BuildNameIndex walks the repository root (skipping excludeDirs) recording
// every top-level func declaration's name to the file that declares it. It
// is the CSA resolver's last-resort fallback when neither local scope nor
// the import map can qualify a call. bar, if non-nil, is advanced once per
// visited file.
func BuildNameIndex(repoRoot string, excludeDirs []string, bar *progressbar.ProgressBar) (map[string][]string, error) {
	excluded := make(map[string]bool, len(excludeDirs))
	for _, d := range excludeDirs {
		excluded[d] = true
	}
	index := make(map[string][]string)
	err := filepath.WalkDir(repoRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if excluded[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		if bar != nil {
			_ = bar.Add(1)
		}
		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			return nil // skip unparsable files, non-fatal
		}
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			index[fn.Name.Name] = append(index[fn.Name.Name], path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("staticindex: build name index: %w", err)
	}
	return index, nil
}
