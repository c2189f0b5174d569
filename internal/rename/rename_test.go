package rename

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinovyatkin/cribo/internal/ast"
	"github.com/tinovyatkin/cribo/internal/graph"
	"github.com/tinovyatkin/cribo/internal/symbols"
)

func tableWith(mod string, names ...string) *symbols.Table {
	tbl, _ := symbols.Collect(mod, &ast.File{})
	for _, n := range names {
		tbl.Order = append(tbl.Order, n)
	}
	return tbl
}

func TestCompute_EntryBindingsKeepOriginalNames(t *testing.T) {
	entry := graph.ModuleId(0)
	tables := map[graph.ModuleId]*symbols.Table{entry: tableWith("entry", "main", "User")}
	dotted := map[graph.ModuleId]string{entry: "entry"}

	p := Compute(entry, nil, nil, tables, dotted)
	assert.Equal(t, "main", p.EmittedName(entry, "main"))
	assert.Equal(t, "User", p.EmittedName(entry, "User"))
}

func TestCompute_CollisionGetsModuleSlugSuffix(t *testing.T) {
	entry := graph.ModuleId(0)
	modA := graph.ModuleId(1)
	modB := graph.ModuleId(2)
	tables := map[graph.ModuleId]*symbols.Table{
		entry: tableWith("entry"),
		modA:  tableWith("models", "User", "Product"),
		modB:  tableWith("entities", "User", "Product"),
	}
	dotted := map[graph.ModuleId]string{entry: "entry", modA: "models", modB: "entities"}

	p := Compute(entry, []graph.ModuleId{modA, modB}, nil, tables, dotted)

	userA := p.EmittedName(modA, "User")
	userB := p.EmittedName(modB, "User")
	assert.NotEqual(t, userA, userB)
	assert.Contains(t, userB, "User_")
}

func TestCompute_NoCollisionIsIdentity(t *testing.T) {
	entry := graph.ModuleId(0)
	modA := graph.ModuleId(1)
	tables := map[graph.ModuleId]*symbols.Table{
		entry: tableWith("entry"),
		modA:  tableWith("utils", "format_message"),
	}
	dotted := map[graph.ModuleId]string{entry: "entry", modA: "utils"}

	p := Compute(entry, []graph.ModuleId{modA}, nil, tables, dotted)
	assert.Equal(t, "format_message", p.EmittedName(modA, "format_message"))
}

func TestCompute_WrapModuleGetsHandle(t *testing.T) {
	entry := graph.ModuleId(0)
	wrapMod := graph.ModuleId(1)
	tables := map[graph.ModuleId]*symbols.Table{entry: tableWith("entry")}
	dotted := map[graph.ModuleId]string{entry: "entry", wrapMod: "config"}

	p := Compute(entry, nil, []graph.ModuleId{wrapMod}, tables, dotted)
	assert.Equal(t, "__module_config", p.Handle(wrapMod))
}
