package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinovyatkin/cribo/internal/ciboerr"
)

func mkTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestResolve_AbsoluteModuleFile(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{"utils/helpers.src": "x = 1\n"})
	r := New([]string{root}, ".src")

	rt, err := r.Resolve("entry", ImportSpec{Kind: ImportModule, Module: "utils.helpers"})
	require.NoError(t, err)
	assert.Equal(t, "utils.helpers", rt.DottedName)
	assert.False(t, rt.IsNamespace)
}

func TestResolve_NamespacePackage(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{"pkg/sub/file.src": "x = 1\n"})
	r := New([]string{root}, ".src")

	rt, err := r.Resolve("entry", ImportSpec{Kind: ImportModule, Module: "pkg"})
	require.NoError(t, err)
	assert.True(t, rt.IsNamespace)
}

func TestResolve_NotFoundYieldsRES001(t *testing.T) {
	root := t.TempDir()
	r := New([]string{root}, ".src")

	_, err := r.Resolve("entry", ImportSpec{Kind: ImportModule, Module: "missing"})
	require.Error(t, err)
	rep, ok := ciboerr.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, ciboerr.RES001, rep.Code)
}

func TestResolve_NotFoundSuggestsNearestKnownModule(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{"helpers.src": "x = 1\n"})
	r := New([]string{root}, ".src")

	_, err := r.Resolve("entry", ImportSpec{Kind: ImportModule, Module: "helper"})
	require.Error(t, err)
	rep, ok := ciboerr.AsReport(err)
	require.True(t, ok)
	require.NotNil(t, rep.Fix)
	assert.Equal(t, "helpers", rep.Fix.Suggestion)
}

func TestResolve_RelativeBeyondTopLevelYieldsRES002(t *testing.T) {
	root := t.TempDir()
	r := New([]string{root}, ".src")

	_, err := r.Resolve("pkg.mod", ImportSpec{Kind: RelativeFromImport, Level: 5, Names: []string{"x"}})
	require.Error(t, err)
	rep, ok := ciboerr.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, ciboerr.RES002, rep.Code)
}

func TestResolve_FromImportSubmoduleTakesPrecedence(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"pkg/__init__.src": "name = 1\n",
		"pkg/name.src":     "x = 1\n",
	})
	r := New([]string{root}, ".src")

	rt, err := r.Resolve("entry", ImportSpec{Kind: FromImport, Module: "pkg", Names: []string{"name"}})
	require.NoError(t, err)
	assert.Equal(t, OriginSubmodule, rt.NameOrigins["name"])
}

func TestResolve_RelativeImportFromSibling(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"pkg/__init__.src": "",
		"pkg/sibling.src":  "y = 1\n",
	})
	r := New([]string{root}, ".src")

	rt, err := r.Resolve("pkg.mod", ImportSpec{Kind: RelativeFromImport, Level: 1, Names: []string{"sibling"}})
	require.NoError(t, err)
	assert.Equal(t, "pkg", rt.DottedName)
	assert.Equal(t, OriginSubmodule, rt.NameOrigins["sibling"])
}
