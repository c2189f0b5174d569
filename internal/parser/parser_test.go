package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinovyatkin/cribo/internal/ast"
	"github.com/tinovyatkin/cribo/internal/lexer"
	"github.com/tinovyatkin/cribo/internal/unparse"
)

func parseSrc(t *testing.T, src string) *ast.File {
	t.Helper()
	l := lexer.New(src, "test.py")
	p := New(l)
	f := p.ParseFile()
	require.Empty(t, p.Errors(), "unexpected parse errors: %v", p.Errors())
	return f
}

func TestParseFile_ImportForms(t *testing.T) {
	src := "import os\n" +
		"import a.b.c as abc\n" +
		"from . import sibling\n" +
		"from ..pkg import thing as alias, other\n" +
		"from pkg import *\n"
	f := parseSrc(t, src)
	require.Len(t, f.Body, 5)

	imp, ok := f.Body[0].(*ast.Import)
	require.True(t, ok)
	assert.Equal(t, "os", imp.Names[0].Name)

	imp2 := f.Body[1].(*ast.Import)
	assert.Equal(t, "a.b.c", imp2.Names[0].Name)
	assert.Equal(t, "abc", imp2.Names[0].AsName)

	from1 := f.Body[2].(*ast.ImportFrom)
	assert.Equal(t, 1, from1.Level)
	assert.Equal(t, "", from1.Module)
	assert.Equal(t, "sibling", from1.Names[0].Name)

	from2 := f.Body[3].(*ast.ImportFrom)
	assert.Equal(t, 2, from2.Level)
	assert.Equal(t, "pkg", from2.Module)
	require.Len(t, from2.Names, 2)
	assert.Equal(t, "alias", from2.Names[0].AsName)

	from3 := f.Body[4].(*ast.ImportFrom)
	assert.True(t, from3.Star)
}

func TestParseFile_FunctionDefAndAssign(t *testing.T) {
	src := "def greet(name, *, loud=False):\n" +
		"    message = \"hi \" + name\n" +
		"    return message\n"
	f := parseSrc(t, src)
	require.Len(t, f.Body, 1)
	fn, ok := f.Body[0].(*ast.FunctionDef)
	require.True(t, ok)
	assert.Equal(t, "greet", fn.Name)
	require.Len(t, fn.Params, 3)
	assert.Equal(t, "loud", fn.Params[2].Name)
	require.Len(t, fn.Body, 2)

	assign, ok := fn.Body[0].(*ast.Assign)
	require.True(t, ok)
	assert.Equal(t, "message", assign.Targets[0].(*ast.Name).Id)

	ret, ok := fn.Body[1].(*ast.Return)
	require.True(t, ok)
	assert.NotNil(t, ret.Value)
}

func TestParseFile_ClassWithDecorator(t *testing.T) {
	src := "@dataclass\n" +
		"class Point(Base):\n" +
		"    \"\"\"A point.\"\"\"\n" +
		"    x = 0\n" +
		"    y = 0\n"
	f := parseSrc(t, src)
	require.Len(t, f.Body, 1)
	cls, ok := f.Body[0].(*ast.ClassDef)
	require.True(t, ok)
	assert.Equal(t, "Point", cls.Name)
	require.Len(t, cls.Decorators, 1)
	assert.Equal(t, "A point.", cls.Docstring)
	require.Len(t, cls.Bases, 1)
}

func TestParseFile_IfElifElse(t *testing.T) {
	src := "if a:\n    x = 1\nelif b:\n    x = 2\nelse:\n    x = 3\n"
	f := parseSrc(t, src)
	ifNode := f.Body[0].(*ast.If)
	require.Len(t, ifNode.Orelse, 1)
	elif := ifNode.Orelse[0].(*ast.If)
	require.Len(t, elif.Orelse, 1)
	_, ok := elif.Orelse[0].(*ast.Assign)
	assert.True(t, ok)
}

func TestParseFile_ForWithElseAndTupleTarget(t *testing.T) {
	src := "for k, v in pairs:\n    use(k, v)\nelse:\n    done()\n"
	f := parseSrc(t, src)
	forNode := f.Body[0].(*ast.For)
	tup, ok := forNode.Target.(*ast.Tuple)
	require.True(t, ok)
	assert.Len(t, tup.Elts, 2)
	assert.Len(t, forNode.Orelse, 1)
}

func TestParseFile_TryExceptFinally(t *testing.T) {
	src := "try:\n    risky()\nexcept ValueError as e:\n    handle(e)\nexcept (TypeError, KeyError):\n    pass\nfinally:\n    cleanup()\n"
	f := parseSrc(t, src)
	tryNode := f.Body[0].(*ast.Try)
	require.Len(t, tryNode.Handlers, 2)
	assert.Equal(t, "e", tryNode.Handlers[0].Name)
	require.Len(t, tryNode.Finally, 1)
}

func TestParseFile_WithStatement(t *testing.T) {
	src := "with open(path) as f, lock:\n    read(f)\n"
	f := parseSrc(t, src)
	w := f.Body[0].(*ast.With)
	require.Len(t, w.Items, 2)
	assert.NotNil(t, w.Items[0].OptionalVar)
	assert.Nil(t, w.Items[1].OptionalVar)
}

func TestParseExpr_Precedence(t *testing.T) {
	src := "x = 1 + 2 * 3 ** 2\n"
	f := parseSrc(t, src)
	assign := f.Body[0].(*ast.Assign)
	bin := assign.Value.(*ast.BinOp)
	assert.Equal(t, "+", bin.Op.String())
	right := bin.Right.(*ast.BinOp)
	assert.Equal(t, "*", right.Op.String())
	pow := right.Right.(*ast.BinOp)
	assert.Equal(t, "**", pow.Op.String())
}

func TestParseExpr_ComparisonChainAndNotIn(t *testing.T) {
	src := "x = a < b <= c\ny = a not in b\nz = a is not b\n"
	f := parseSrc(t, src)
	cmp := f.Body[0].(*ast.Assign).Value.(*ast.Compare)
	require.Len(t, cmp.Ops, 2)

	notin := f.Body[1].(*ast.Assign).Value.(*ast.Compare)
	assert.Equal(t, "not in", notin.Ops[0].String())

	isnot := f.Body[2].(*ast.Assign).Value.(*ast.Compare)
	assert.Equal(t, "is not", isnot.Ops[0].String())
}

func TestParseExpr_Comprehensions(t *testing.T) {
	src := "xs = [y * 2 for y in values if y > 0]\n" +
		"s = {y for y in values}\n" +
		"d = {k: v for k, v in items}\n" +
		"g = (y for y in values)\n"
	f := parseSrc(t, src)

	listComp := f.Body[0].(*ast.Assign).Value.(*ast.Comp)
	assert.Equal(t, ast.CompList, listComp.Kind)
	require.Len(t, listComp.Generators, 1)
	require.Len(t, listComp.Generators[0].Ifs, 1)

	setComp := f.Body[1].(*ast.Assign).Value.(*ast.Comp)
	assert.Equal(t, ast.CompSet, setComp.Kind)

	dictComp := f.Body[2].(*ast.Assign).Value.(*ast.Comp)
	assert.Equal(t, ast.CompDict, dictComp.Kind)
	assert.NotNil(t, dictComp.ValueElt)

	genComp := f.Body[3].(*ast.Assign).Value.(*ast.Comp)
	assert.Equal(t, ast.CompGenerator, genComp.Kind)
}

func TestParseExpr_LambdaAndTernary(t *testing.T) {
	src := "f = lambda x, y=1: x + y\nr = a if cond else b\n"
	f := parseSrc(t, src)
	lam := f.Body[0].(*ast.Assign).Value.(*ast.Lambda)
	require.Len(t, lam.Params, 2)
	assert.NotNil(t, lam.Params[1].Default)

	ternary := f.Body[1].(*ast.Assign).Value.(*ast.IfExp)
	assert.NotNil(t, ternary.Test)
}

func TestParseExpr_FStringInterpolation(t *testing.T) {
	src := "msg = f\"hello {name!s}, total={price:.2f}\"\n"
	f := parseSrc(t, src)
	joined := f.Body[0].(*ast.Assign).Value.(*ast.JoinedStr)
	var fvCount int
	for _, v := range joined.Values {
		if fv, ok := v.(*ast.FormattedValue); ok {
			fvCount++
			if fv.Spec != "" {
				assert.Equal(t, ".2f", fv.Spec)
			}
		}
	}
	assert.Equal(t, 2, fvCount)
}

func TestParseExpr_CallWithArgsKwargsStarred(t *testing.T) {
	src := "result = fn(1, *rest, key=value, **extra)\n"
	f := parseSrc(t, src)
	call := f.Body[0].(*ast.Assign).Value.(*ast.Call)
	require.Len(t, call.Args, 2)
	_, ok := call.Args[1].(*ast.Starred)
	assert.True(t, ok)
	require.Len(t, call.Keywords, 2)
	assert.Equal(t, "key", call.Keywords[0].Name)
	assert.Equal(t, "", call.Keywords[1].Name)
}

func TestParseExpr_Subscript(t *testing.T) {
	src := "a = items[0]\nb = items[1:2:3]\nc = matrix[i, j]\n"
	f := parseSrc(t, src)
	sub1 := f.Body[0].(*ast.Assign).Value.(*ast.Subscript)
	_, plainIndex := sub1.Index.(*ast.Constant)
	assert.True(t, plainIndex)

	sub2 := f.Body[1].(*ast.Assign).Value.(*ast.Subscript)
	sliceCall, ok := sub2.Index.(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "__slice__", sliceCall.Func.(*ast.Name).Id)

	sub3 := f.Body[2].(*ast.Assign).Value.(*ast.Subscript)
	_, tupleIndex := sub3.Index.(*ast.Tuple)
	assert.True(t, tupleIndex)
}

func TestParseFile_AugAssignAndAnnAssign(t *testing.T) {
	src := "count += 1\ntotal: int = 0\n"
	f := parseSrc(t, src)
	aug := f.Body[0].(*ast.AugAssign)
	assert.Equal(t, "count", aug.Target.(*ast.Name).Id)

	ann := f.Body[1].(*ast.AnnAssign)
	assert.Equal(t, "total", ann.Target.(*ast.Name).Id)
	assert.NotNil(t, ann.Value)
}

func TestParseFile_MultipleSimpleStatementsOnOneLine(t *testing.T) {
	src := "x = 1; y = 2; print(x, y)\n"
	f := parseSrc(t, src)
	require.Len(t, f.Body, 1)
	flat := Flatten(f.Body)
	require.Len(t, flat, 3)
}

func TestParseFile_GlobalNonlocalDel(t *testing.T) {
	src := "def f():\n    global a, b\n    def g():\n        nonlocal c\n    del a, b\n"
	f := parseSrc(t, src)
	fn := f.Body[0].(*ast.FunctionDef)
	g := fn.Body[0].(*ast.Global)
	assert.Equal(t, []string{"a", "b"}, g.Names)
	inner := fn.Body[1].(*ast.FunctionDef)
	nl := inner.Body[0].(*ast.Nonlocal)
	assert.Equal(t, []string{"c"}, nl.Names)
	del := fn.Body[2].(*ast.Delete)
	assert.Len(t, del.Targets, 2)
}

func TestParseFile_RoundTripsThroughUnparser(t *testing.T) {
	src := "def add(a, b):\n    return a + b\n\n\nclass Box:\n    def __init__(self, value):\n        self.value = value\n"
	f := parseSrc(t, src)
	out := unparse.File(f)
	assert.Contains(t, out, "def add(a, b):")
	assert.Contains(t, out, "class Box:")

	reparsed := parseSrc(t, out)
	assert.Len(t, reparsed.Body, len(f.Body))
}
