package staticindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracegraph/flowtrace/pkg/ident"
)

const fixture = `package sample

type Server struct{}

func (s *Server) Handle(req string, count int) bool {
	helper := func(x int) int {
		return x * 2
	}
	return helper(count) > 0
}

func TopFunc(a string, b *int) string {
	return a
}
`

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.go")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))
	return dir
}

func TestResolveTopLevelFunc(t *testing.T) {
	root := writeFixture(t)
	idx := New(root, nil)

	decl, _, err := idx.Resolve(ident.New("sample.go", "TopFunc"))
	require.NoError(t, err)
	assert.Equal(t, "TopFunc", decl.Name.Name)

	sig := ExtractSignature(decl)
	require.Len(t, sig.Params, 2)
	assert.Equal(t, "a", sig.Params[0].Name)
	assert.Equal(t, "string", *sig.Params[0].Type)
	assert.True(t, sig.Params[0].Required)
	assert.Nil(t, sig.Params[0].Default)
}

func TestResolveMethod(t *testing.T) {
	root := writeFixture(t)
	idx := New(root, nil)

	decl, _, err := idx.Resolve(ident.New("sample.go", "Server", "Handle"))
	require.NoError(t, err)
	assert.Equal(t, "Handle", decl.Name.Name)

	sig := ExtractSignature(decl)
	require.Len(t, sig.Params, 2)
	assert.Equal(t, "req", sig.Params[0].Name)
	assert.Equal(t, "count", sig.Params[1].Name)
}

func TestResolveNestedFuncLiteral(t *testing.T) {
	root := writeFixture(t)
	idx := New(root, nil)

	decl, _, err := idx.Resolve(ident.New("sample.go", "Server", "Handle", "helper"))
	require.NoError(t, err)
	assert.Equal(t, "helper", decl.Name.Name)
}

func TestResolveNotFound(t *testing.T) {
	root := writeFixture(t)
	idx := New(root, nil)

	_, _, err := idx.Resolve(ident.New("sample.go", "DoesNotExist"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPackageFilesParsesSiblingsIntoOneFileSet(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte(`package sample

func H() int {
	return K()
}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte(`package sample

func K() int {
	return 1
}
`), 0o644))

	idx := New(root, nil)
	files, entryFile, fset, err := idx.PackageFiles("a.go")
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, "sample", entryFile.Name.Name)

	decl, err := ResolveAcrossFiles(files, []string{"K"})
	require.NoError(t, err)
	assert.Equal(t, "K", decl.Name.Name)
	assert.Equal(t, filepath.Join(root, "b.go"), fset.Position(decl.Pos()).Filename)
}

func TestBuildNameIndex(t *testing.T) {
	root := writeFixture(t)
	index, err := BuildNameIndex(root, []string{".git"}, nil)
	require.NoError(t, err)
	assert.Contains(t, index, "TopFunc")
	assert.Contains(t, index, "Handle")
}
