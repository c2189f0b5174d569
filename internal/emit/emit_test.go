package emit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinovyatkin/cribo/internal/ast"
)

func nameExpr(id string) ast.Expr { return &ast.Name{Id: id} }

func TestRender_OrdersSectionsPerSpec(t *testing.T) {
	a := &Artifact{
		HoistedImports: []ast.Stmt{&ast.Import{Names: []ast.Alias{{Name: "os"}}}},
		Inlined: []InlinedModule{
			{DottedName: "utils", Body: []ast.Stmt{&ast.FunctionDef{Name: "format_message", Body: []ast.Stmt{&ast.Pass{}}}}},
		},
		EntryBody: []ast.Stmt{&ast.ExprStmt{Value: &ast.Call{Func: nameExpr("format_message")}}},
	}
	out := Render(a)

	importIdx := indexOf(out, "import os")
	funcIdx := indexOf(out, "def format_message")
	entryIdx := indexOf(out, "format_message()")

	assert.True(t, importIdx < funcIdx)
	assert.True(t, funcIdx < entryIdx)
}

func TestRender_WrappedModuleEmitsInitFunctionAndRegistry(t *testing.T) {
	a := &Artifact{
		Wrapped: []WrappedModule{
			{Handle: "__module_config", DottedName: "config", InitBody: []ast.Stmt{
				&ast.Assign{Targets: []ast.Expr{nameExpr("DEBUG")}, Value: &ast.Constant{Kind: ast.ConstBool, Value: "False"}},
			}},
		},
	}
	out := Render(a)
	assert.Contains(t, out, "def __init___module_config():")
	assert.Contains(t, out, "__cribo_modules__ = {}")
	assert.Contains(t, out, "__cribo_init_table__")
	assert.Contains(t, out, "__cribo_import_hook__")
}

func TestRenderInitFunction_ForwardsExportsOntoHandle(t *testing.T) {
	a := &Artifact{
		Wrapped: []WrappedModule{
			{
				Handle:     "__module_config",
				DottedName: "config",
				InitBody: []ast.Stmt{
					&ast.Assign{Targets: []ast.Expr{nameExpr("DEBUG")}, Value: &ast.Constant{Kind: ast.ConstBool, Value: "False"}},
				},
				Exports: []string{"DEBUG"},
			},
		},
	}
	out := Render(a)
	assert.Contains(t, out, "__module_config.DEBUG = DEBUG")
	assert.True(t, indexOf(out, "__module_config.DEBUG = DEBUG") < indexOf(out, "return __module_config"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
