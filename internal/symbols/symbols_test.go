package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinovyatkin/cribo/internal/lexer"
	"github.com/tinovyatkin/cribo/internal/parser"
)

func collectSrc(t *testing.T, src string) *Table {
	t.Helper()
	l := lexer.New(src, "test.src")
	p := parser.New(l)
	f := p.ParseFile()
	require.Empty(t, p.Errors())
	tbl, _ := Collect("m", f)
	return tbl
}

func TestCollect_OrderedBindings(t *testing.T) {
	tbl := collectSrc(t, "def f():\n    pass\nclass C:\n    pass\nx = 1\n")
	assert.Equal(t, []string{"f", "C", "x"}, tbl.Order)
	b, ok := tbl.Lookup("f")
	require.True(t, ok)
	assert.Equal(t, Function, b.Kind)
}

func TestCollect_TupleAssignTarget(t *testing.T) {
	tbl := collectSrc(t, "a, b = 1, 2\n")
	assert.Contains(t, tbl.Order, "a")
	assert.Contains(t, tbl.Order, "b")
}

func TestCollect_StaticAllList(t *testing.T) {
	tbl := collectSrc(t, "def public_func():\n    pass\nCONSTANT = 1\ndef _private_func():\n    pass\n__all__ = [\"public_func\", \"CONSTANT\"]\n")
	require.True(t, tbl.HasAll)
	assert.False(t, tbl.AllDynamic)
	assert.Equal(t, []string{"public_func", "CONSTANT"}, tbl.ExportedNames())
}

func TestCollect_DynamicAllFallsBackToNonUnderscoreNames(t *testing.T) {
	tbl := collectSrc(t, "def public_func():\n    pass\ndef _private_func():\n    pass\n__all__ = compute_all()\n")
	require.True(t, tbl.HasAll)
	assert.True(t, tbl.AllDynamic)
	names := tbl.ExportedNames()
	assert.Contains(t, names, "public_func")
	assert.NotContains(t, names, "_private_func")
}

func TestCollect_InvalidAllReportsDiagnostic(t *testing.T) {
	l := lexer.New("__all__ = [\"missing\"]\n", "test.src")
	p := parser.New(l)
	f := p.ParseFile()
	require.Empty(t, p.Errors())
	_, diags := Collect("m", f)
	require.False(t, diags.Empty())
	assert.Equal(t, "ALL001", diags.Reports()[0].Code)
}

func TestCollect_ImportBindingUsesAlias(t *testing.T) {
	tbl := collectSrc(t, "from pkg import thing as alias\n")
	_, ok := tbl.Lookup("alias")
	assert.True(t, ok)
}
