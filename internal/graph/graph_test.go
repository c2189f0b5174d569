package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinovyatkin/cribo/internal/classify"
	"github.com/tinovyatkin/cribo/internal/loader"
	"github.com/tinovyatkin/cribo/internal/resolve"
)

func writeSrc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newBuilder(t *testing.T, root string) *Builder {
	t.Helper()
	rs := resolve.New([]string{root}, ".src")
	cl := classify.New(classify.DefaultStdlib(""), nil, rs)
	return NewBuilder(loader.New(), cl, rs)
}

func TestBuild_DiscoversImportModuleEdge(t *testing.T) {
	dir := t.TempDir()
	writeSrc(t, dir, "entry.src", "import helpers\n\nhelpers.run()\n")
	writeSrc(t, dir, "helpers.src", "def run():\n    pass\n")

	b := newBuilder(t, dir)
	g, err := b.Build(filepath.Join(dir, "entry.src"), "entry")
	require.NoError(t, err)

	require.Len(t, g.Modules, 2)
	assert.Equal(t, "entry", g.Modules[0].DottedName)
	assert.Equal(t, "helpers", g.Modules[1].DottedName)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, ImportModuleEdge, g.Edges[0].Kind)
	assert.Equal(t, ModuleId(0), g.Edges[0].From)
	assert.Equal(t, ModuleId(1), g.Edges[0].To)
}

func TestBuild_ThirdPartyImportRecordedWithoutUnit(t *testing.T) {
	dir := t.TempDir()
	writeSrc(t, dir, "entry.src", "import requests\n")

	b := newBuilder(t, dir)
	g, err := b.Build(filepath.Join(dir, "entry.src"), "entry")
	require.NoError(t, err)

	require.Len(t, g.Modules, 2)
	assert.Nil(t, g.Modules[1].Unit)
	assert.Equal(t, classify.ThirdParty, g.Modules[1].Classification)
}

func TestBuild_DeterministicModuleIdsAcrossIdenticalRuns(t *testing.T) {
	dir := t.TempDir()
	writeSrc(t, dir, "entry.src", "import a\nimport b\n")
	writeSrc(t, dir, "a.src", "x = 1\n")
	writeSrc(t, dir, "b.src", "import a\ny = 2\n")

	var orders [][]string
	for i := 0; i < 2; i++ {
		b := newBuilder(t, dir)
		g, err := b.Build(filepath.Join(dir, "entry.src"), "entry")
		require.NoError(t, err)
		var names []string
		for _, m := range g.Modules {
			names = append(names, m.DottedName)
		}
		orders = append(orders, names)
	}
	assert.Equal(t, orders[0], orders[1])
}

func TestBuild_FunctionLevelImportScopedCorrectly(t *testing.T) {
	dir := t.TempDir()
	writeSrc(t, dir, "entry.src", "def lazy():\n    import helpers\n    helpers.run()\n")
	writeSrc(t, dir, "helpers.src", "def run():\n    pass\n")

	b := newBuilder(t, dir)
	g, err := b.Build(filepath.Join(dir, "entry.src"), "entry")
	require.NoError(t, err)

	require.Len(t, g.Edges, 1)
	assert.Equal(t, 1, int(g.Edges[0].Scope))
}

func TestBuild_DynamicImportWithNonLiteralArgumentIsReported(t *testing.T) {
	dir := t.TempDir()
	writeSrc(t, dir, "entry.src", "import importlib\n\ndef load(name):\n    return importlib.import_module(name)\n")

	b := newBuilder(t, dir)
	_, err := b.Build(filepath.Join(dir, "entry.src"), "entry")
	require.NoError(t, err)

	reports := b.Diagnostics().Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, "DYN001", reports[0].Code)
}

func TestBuild_DynamicImportWithLiteralArgumentIsNotReported(t *testing.T) {
	dir := t.TempDir()
	writeSrc(t, dir, "entry.src", "import importlib\n\nimportlib.import_module(\"os\")\n")

	b := newBuilder(t, dir)
	_, err := b.Build(filepath.Join(dir, "entry.src"), "entry")
	require.NoError(t, err)
	assert.Empty(t, b.Diagnostics().Reports())
}

func TestTopoOrder_LeavesFirst(t *testing.T) {
	dir := t.TempDir()
	writeSrc(t, dir, "entry.src", "import a\n")
	writeSrc(t, dir, "a.src", "import b\n")
	writeSrc(t, dir, "b.src", "z = 1\n")

	b := newBuilder(t, dir)
	g, err := b.Build(filepath.Join(dir, "entry.src"), "entry")
	require.NoError(t, err)

	order := TopoOrder(g, func(ModuleId) bool { return true })
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[g.Modules[id].DottedName] = i
	}
	assert.Less(t, pos["b"], pos["a"])
	assert.Less(t, pos["a"], pos["entry"])
}
