package callsites

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracegraph/flowtrace/pkg/ident"
)

const targetSrc = `package sample

func Compute(x int) int {
	return x * 2
}
`

const callerSrc = `package sample

func Caller(x int) int {
	return Compute(x) + 1
}

type Widget struct{}

func (w *Widget) Run(x int) int {
	return Compute(x)
}
`

func setupRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target.go"), []byte(targetSrc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "caller.go"), []byte(callerSrc), 0o644))
	return dir
}

func TestFindCallSites(t *testing.T) {
	dir := setupRepo(t)
	loc := New(dir, []string{".git"}, nil)

	sites, err := loc.Find(ident.New("target.go", "Compute"))
	require.NoError(t, err)
	require.Len(t, sites, 2)

	names := make([]string, 0, 2)
	for _, s := range sites {
		require.NotNil(t, s.EnclosingFunction)
		names = append(names, *s.EnclosingFunction)
		assert.Equal(t, "caller.go", s.File)
		assert.Contains(t, s.RawLine, "Compute(x)")
	}
	assert.ElementsMatch(t, []string{"Caller", "Run"}, names)
}

func TestFindCallSitesSkipsDefiningFile(t *testing.T) {
	dir := setupRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target.go"), []byte(targetSrc+"\nfunc Self() { Compute(1) }\n"), 0o644))

	loc := New(dir, nil, nil)
	sites, err := loc.Find(ident.New("target.go", "Compute"))
	require.NoError(t, err)
	for _, s := range sites {
		assert.NotEqual(t, "target.go", s.File)
	}
}
