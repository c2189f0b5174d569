// Package symbols implements component F: a single pass over each reached
// module's top-level statements, building an ordered symbol table and
// resolving __all__ (spec §4.F).
package symbols

import (
	"strings"

	"github.com/tinovyatkin/cribo/internal/ast"
	"github.com/tinovyatkin/cribo/internal/ciboerr"
	"github.com/tinovyatkin/cribo/internal/token"
)

func zeroPos() token.Pos { return token.Pos{} }

// Kind is one of the binding kinds the spec's SymbolKind enumerates.
type Kind int

const (
	Function Kind = iota
	Class
	Variable
	ImportBinding
	AllList
)

// Binding is one top-level name with the statement it came from, so later
// stages (rename, transform) can locate and rewrite the defining occurrence.
type Binding struct {
	Name string
	Kind Kind
	Node ast.Stmt
}

// Table is a reached module's ordered top-level symbol table. "Ordered"
// because emission must preserve original declaration order inside a module
// (spec §3).
type Table struct {
	ModuleName string
	Order      []string
	byName     map[string]*Binding

	// All is the module's explicit export set, if __all__ was a literal
	// list/tuple of string literals. AllDynamic is true when __all__ exists
	// but isn't statically enumerable (spec §4.F).
	All        []string
	HasAll     bool
	AllDynamic bool
}

func newTable(moduleName string) *Table {
	return &Table{ModuleName: moduleName, byName: make(map[string]*Binding)}
}

// Lookup returns the binding for name, if any.
func (t *Table) Lookup(name string) (*Binding, bool) {
	b, ok := t.byName[name]
	return b, ok
}

func (t *Table) add(name string, kind Kind, node ast.Stmt) {
	if _, exists := t.byName[name]; !exists {
		t.Order = append(t.Order, name)
	}
	t.byName[name] = &Binding{Name: name, Kind: kind, Node: node}
}

// ExportedNames returns the effective export set for `from m import *`: the
// explicit __all__ list if static, otherwise every non-underscore-prefixed
// top-level binding (spec §4.F's dynamic-__all__ fallback).
func (t *Table) ExportedNames() []string {
	if t.HasAll && !t.AllDynamic {
		return t.All
	}
	var names []string
	for _, n := range t.Order {
		if !strings.HasPrefix(n, "_") {
			names = append(names, n)
		}
	}
	return names
}

// Collect builds the symbol table for a single module's file.
func Collect(moduleName string, file *ast.File) (*Table, *ciboerr.Diagnostics) {
	t := newTable(moduleName)
	diags := &ciboerr.Diagnostics{}

	for _, s := range file.Body {
		switch n := s.(type) {
		case *ast.FunctionDef:
			t.add(n.Name, Function, n)
		case *ast.ClassDef:
			t.add(n.Name, Class, n)
		case *ast.Assign:
			if isAllTarget(n) {
				t.HasAll = true
				if names, ok := assignAllList(n); ok {
					t.All = names
				} else {
					t.AllDynamic = true
				}
				continue
			}
			for _, target := range n.Targets {
				for _, name := range assignTargetNames(target) {
					t.add(name, Variable, n)
				}
			}
		case *ast.AnnAssign:
			if name, ok := n.Target.(*ast.Name); ok {
				t.add(name.Id, Variable, n)
			}
		case *ast.ImportFrom:
			for _, alias := range n.Names {
				local := alias.AsName
				if local == "" {
					local = alias.Name
				}
				t.add(local, ImportBinding, n)
			}
		case *ast.Import:
			for _, alias := range n.Names {
				local := alias.AsName
				if local == "" {
					local = topSegment(alias.Name)
				}
				t.add(local, ImportBinding, n)
			}
		}
	}

	if t.HasAll {
		validateAll(t, diags)
	}

	return t, diags
}

// isAllTarget reports whether n assigns the single name __all__.
func isAllTarget(n *ast.Assign) bool {
	if len(n.Targets) != 1 {
		return false
	}
	name, ok := n.Targets[0].(*ast.Name)
	return ok && name.Id == "__all__"
}

// assignAllList recognizes `__all__ = [...]`/`(...)` with literal string
// elements, returning the literal names. A non-literal or mixed-type RHS
// marks the table as dynamic instead (spec §4.F). Caller has already
// confirmed n assigns __all__.
func assignAllList(n *ast.Assign) ([]string, bool) {
	var elts []ast.Expr
	switch v := n.Value.(type) {
	case *ast.List:
		elts = v.Elts
	case *ast.Tuple:
		elts = v.Elts
	default:
		return nil, false // dynamic; caller sets AllDynamic via fallthrough path below
	}

	names := make([]string, 0, len(elts))
	for _, e := range elts {
		c, ok := e.(*ast.Constant)
		if !ok || c.Kind != ast.ConstStr {
			return nil, false
		}
		names = append(names, c.Value)
	}
	return names, true
}

// assignTargetNames flattens a single assignment target into the plain
// names it binds: a bare Name, or every Name inside a Tuple/List target
// (`a, b = ...`).
func assignTargetNames(target ast.Expr) []string {
	switch t := target.(type) {
	case *ast.Name:
		return []string{t.Id}
	case *ast.Tuple:
		var names []string
		for _, e := range t.Elts {
			names = append(names, assignTargetNames(e)...)
		}
		return names
	case *ast.List:
		var names []string
		for _, e := range t.Elts {
			names = append(names, assignTargetNames(e)...)
		}
		return names
	case *ast.Starred:
		return assignTargetNames(t.Value)
	default:
		return nil
	}
}

func topSegment(dotted string) string {
	if i := strings.IndexByte(dotted, '.'); i >= 0 {
		return dotted[:i]
	}
	return dotted
}

// validateAll reports ALL001 for every __all__ entry that names nothing
// bound at module level. A name brought in by `from m import name` counts as
// bound: Collect records it in t.byName as an ImportBinding, so re-exporting
// an imported name via __all__ (spec §9) is accepted here without a second
// pass once the import table is known.
func validateAll(t *Table, diags *ciboerr.Diagnostics) {
	for _, name := range t.All {
		if _, ok := t.byName[name]; !ok {
			diags.Add(ciboerr.InvalidAll(t.ModuleName, name, zeroPos()))
		}
	}
}
