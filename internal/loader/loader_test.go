package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinovyatkin/cribo/internal/ciboerr"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_ParsesAndCaches(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "mod.src", "def f():\n    return 1\n")

	l := New()
	u1, err := l.Load(path, "mod")
	require.NoError(t, err)
	assert.Equal(t, "mod", u1.DottedName)
	require.Len(t, u1.File.Body, 1)

	// Second load under a different dotted name returns the same unit.
	u2, err := l.Load(path, "pkg.mod")
	require.NoError(t, err)
	assert.Same(t, u1, u2)
	assert.Equal(t, "mod", u2.DottedName, "dotted name is fixed at first load")
}

func TestLoad_IoErrorOnMissingFile(t *testing.T) {
	l := New()
	_, err := l.Load(filepath.Join(t.TempDir(), "missing.src"), "missing")
	require.Error(t, err)
	rep, ok := ciboerr.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, ciboerr.IO001, rep.Code)
}

func TestLoad_ParseErrorOnBadSyntax(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "bad.src", "def (:\n")

	l := New()
	_, err := l.Load(path, "bad")
	require.Error(t, err)
	rep, ok := ciboerr.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, ciboerr.PAR001, rep.Code)
}

func TestNormalizeContent_StripsBOMAndCRLF(t *testing.T) {
	bom := []byte{0xEF, 0xBB, 0xBF}
	content := append(bom, []byte("a = 1\r\nb = 2\r")...)
	out := NormalizeContent(content)
	assert.Equal(t, "a = 1\nb = 2\n", string(out))
}

func TestCanonicalPath_ResolvesSymlinks(t *testing.T) {
	dir := t.TempDir()
	real := writeTemp(t, dir, "real.src", "x = 1\n")
	link := filepath.Join(dir, "link.src")
	require.NoError(t, os.Symlink(real, link))

	canonReal, err := CanonicalPath(real)
	require.NoError(t, err)
	canonLink, err := CanonicalPath(link)
	require.NoError(t, err)
	assert.Equal(t, canonReal, canonLink)
}
