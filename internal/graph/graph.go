// Package graph implements component D: a breadth-first worklist that
// discovers every first-party module reachable from an entry point and
// records the import edges between them, using small integer ModuleIds as
// the sole handles so no part of the pipeline stores pointer cycles.
package graph

import (
	"github.com/tinovyatkin/cribo/internal/ast"
	"github.com/tinovyatkin/cribo/internal/ciboerr"
	"github.com/tinovyatkin/cribo/internal/classify"
	"github.com/tinovyatkin/cribo/internal/loader"
	"github.com/tinovyatkin/cribo/internal/resolve"
	"github.com/tinovyatkin/cribo/internal/token"
)

// ModuleId is a small integer assigned in discovery order. The dotted name
// is a display attribute recovered from the module table, never the handle
// itself (spec §3).
type ModuleId int

// EdgeKind mirrors the import forms the grammar distinguishes.
type EdgeKind int

const (
	ImportModuleEdge EdgeKind = iota
	FromImportEdge
	StarImportEdge
	RelativeFromImportEdge
)

// Edge is a directed import edge tagged with everything the later stages
// need without re-walking the AST.
type Edge struct {
	From, To ModuleId
	Kind     EdgeKind
	Names    []string // imported symbol names, for From/RelativeFrom edges
	Alias    string    // local alias, if any (single-name imports only)
	Scope    ast.Scope // ModuleLevel or FunctionLevel
}

// ModuleEntry is the per-ModuleId row of the module table: the loaded unit
// and its classification. A module's disposition is kept separately, in the
// cycle analyzer's Result.
type ModuleEntry struct {
	ID             ModuleId
	DottedName     string
	Unit           *loader.SourceUnit // nil for third-party/stdlib modules
	Classification classify.Kind
}

// Graph is the discovered module table plus edge list.
type Graph struct {
	Modules []*ModuleEntry // indexed by ModuleId
	Edges   []Edge

	byDotted map[string]ModuleId
	byPath   map[string]ModuleId
}

func newGraph() *Graph {
	return &Graph{byDotted: make(map[string]ModuleId), byPath: make(map[string]ModuleId)}
}

// Builder drives the worklist using a Loader, Classifier, and Resolver.
type Builder struct {
	loader   *loader.Loader
	classify *classify.Classifier
	resolve  *resolve.Resolver
	diags    *ciboerr.Diagnostics
}

// NewBuilder wires the three discovery collaborators together.
func NewBuilder(ld *loader.Loader, cl *classify.Classifier, rs *resolve.Resolver) *Builder {
	return &Builder{loader: ld, classify: cl, resolve: rs, diags: &ciboerr.Diagnostics{}}
}

// Diagnostics returns non-fatal reports accumulated during Build (e.g. a
// dynamic import that could not be statically resolved).
func (b *Builder) Diagnostics() *ciboerr.Diagnostics { return b.diags }

// Build discovers every module reachable from entryPath (whose dotted name
// is entryDotted), returning the populated Graph. The worklist is a plain
// FIFO queue seeded with the entry so module IDs are assigned in insertion
// order — two runs over identical inputs produce identical IDs.
func (b *Builder) Build(entryPath, entryDotted string) (*Graph, error) {
	g := newGraph()

	entryUnit, err := b.loader.Load(entryPath, entryDotted)
	if err != nil {
		return nil, err
	}
	entryID := g.addModule(entryDotted, entryUnit, classify.FirstParty)
	entryUnit.Classification = loader.EntryScript

	queue := []ModuleId{entryID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		entry := g.Modules[id]
		if entry.Unit == nil {
			continue // third-party/stdlib: recorded by name only, never scanned
		}

		specs := scanImports(entry.Unit.File)
		for _, sp := range specs {
			newIDs, err := b.resolveAndRecord(g, id, entry.DottedName, sp)
			if err != nil {
				return nil, err
			}
			queue = append(queue, newIDs...)
		}

		for _, pos := range scanDynamicImports(entry.Unit.File) {
			b.diags.Add(ciboerr.DynamicImport(entry.DottedName, pos))
		}
	}

	return g, nil
}

// dynamicImportCallee reports whether callee is a name the source language
// resolves an import by string through at runtime: the builtin `__import__`
// or `importlib.import_module`/`importlib.__import__`.
func dynamicImportCallee(callee ast.Expr) bool {
	switch fn := callee.(type) {
	case *ast.Name:
		return fn.Id == "__import__"
	case *ast.Attribute:
		if fn.Attr != "import_module" && fn.Attr != "__import__" {
			return false
		}
		name, ok := fn.Value.(*ast.Name)
		return ok && name.Id == "importlib"
	default:
		return false
	}
}

// scanDynamicImports walks f's whole statement/expression tree (any nesting
// depth — a dynamic import call is not restricted to statement position) and
// returns the position of every call to a dynamic-import builtin whose
// target argument is not a literal string, which the resolver has no way to
// follow statically (spec §6/§7 DYN001: "dynamic import with non-literal
// argument").  A call whose argument is a plain string literal is left
// alone — that case is exactly as resolvable as an ordinary import and not
// what this diagnostic is for.
func scanDynamicImports(f *ast.File) []token.Pos {
	var out []token.Pos
	visit := func(c *ast.Call) {
		if !dynamicImportCallee(c.Func) {
			return
		}
		if len(c.Args) == 0 {
			return
		}
		if lit, ok := c.Args[0].(*ast.Constant); ok && lit.Kind == ast.ConstStr {
			return
		}
		out = append(out, c.Position())
	}
	walkExprsInStmts(f.Body, visit)
	return out
}

// walkExprsInStmts recurses through every statement and expression reachable
// from stmts, invoking visit on each *ast.Call node encountered (at any
// nesting depth, inside any expression position).
func walkExprsInStmts(stmts []ast.Stmt, visit func(*ast.Call)) {
	var walkExpr func(e ast.Expr)
	walkExpr = func(e ast.Expr) {
		if e == nil {
			return
		}
		switch n := e.(type) {
		case *ast.Call:
			visit(n)
			walkExpr(n.Func)
			for _, a := range n.Args {
				walkExpr(a)
			}
			for _, k := range n.Keywords {
				walkExpr(k.Value)
			}
		case *ast.Attribute:
			walkExpr(n.Value)
		case *ast.Subscript:
			walkExpr(n.Value)
			walkExpr(n.Index)
		case *ast.FormattedValue:
			walkExpr(n.Value)
		case *ast.JoinedStr:
			for _, v := range n.Values {
				walkExpr(v)
			}
		case *ast.List:
			for _, el := range n.Elts {
				walkExpr(el)
			}
		case *ast.Tuple:
			for _, el := range n.Elts {
				walkExpr(el)
			}
		case *ast.Set:
			for _, el := range n.Elts {
				walkExpr(el)
			}
		case *ast.Dict:
			for _, entry := range n.Entries {
				walkExpr(entry.Key)
				walkExpr(entry.Value)
			}
		case *ast.Starred:
			walkExpr(n.Value)
		case *ast.BinOp:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.BoolOp:
			for _, v := range n.Values {
				walkExpr(v)
			}
		case *ast.UnaryOp:
			walkExpr(n.Operand)
		case *ast.Compare:
			walkExpr(n.Left)
			for _, v := range n.Comps {
				walkExpr(v)
			}
		case *ast.IfExp:
			walkExpr(n.Test)
			walkExpr(n.Body)
			walkExpr(n.Orelse)
		case *ast.Lambda:
			walkExpr(n.Body)
		case *ast.Comp:
			walkExpr(n.Elt)
			walkExpr(n.ValueElt)
			for _, g := range n.Generators {
				walkExpr(g.Iter)
				for _, cond := range g.Ifs {
					walkExpr(cond)
				}
			}
		}
	}

	var walkBlock func(body []ast.Stmt)
	walkBlock = func(body []ast.Stmt) {
		for _, s := range body {
			switch n := s.(type) {
			case *ast.FunctionDef:
				for _, d := range n.Decorators {
					walkExpr(d)
				}
				walkBlock(n.Body)
			case *ast.ClassDef:
				for _, b := range n.Bases {
					walkExpr(b)
				}
				for _, d := range n.Decorators {
					walkExpr(d)
				}
				walkBlock(n.Body)
			case *ast.If:
				walkExpr(n.Test)
				walkBlock(n.Body)
				walkBlock(n.Orelse)
			case *ast.For:
				walkExpr(n.Target)
				walkExpr(n.Iter)
				walkBlock(n.Body)
				walkBlock(n.Orelse)
			case *ast.While:
				walkExpr(n.Test)
				walkBlock(n.Body)
				walkBlock(n.Orelse)
			case *ast.With:
				for _, it := range n.Items {
					walkExpr(it.ContextExpr)
					walkExpr(it.OptionalVar)
				}
				walkBlock(n.Body)
			case *ast.Try:
				walkBlock(n.Body)
				for _, h := range n.Handlers {
					walkExpr(h.Type)
					walkBlock(h.Body)
				}
				walkBlock(n.Orelse)
				walkBlock(n.Finally)
			case *ast.Assign:
				for _, t := range n.Targets {
					walkExpr(t)
				}
				walkExpr(n.Value)
			case *ast.AnnAssign:
				walkExpr(n.Target)
				walkExpr(n.Value)
			case *ast.AugAssign:
				walkExpr(n.Target)
				walkExpr(n.Value)
			case *ast.Delete:
				for _, t := range n.Targets {
					walkExpr(t)
				}
			case *ast.Return:
				walkExpr(n.Value)
			case *ast.ExprStmt:
				walkExpr(n.Value)
			case *ast.Raise:
				walkExpr(n.Exc)
				walkExpr(n.Cause)
			}
		}
	}
	walkBlock(stmts)
}

func (g *Graph) addModule(dotted string, unit *loader.SourceUnit, kind classify.Kind) ModuleId {
	if unit != nil {
		if id, ok := g.byPath[unit.Path]; ok {
			return id
		}
	} else if id, ok := g.byDotted[dotted]; ok {
		return id
	}

	id := ModuleId(len(g.Modules))
	g.Modules = append(g.Modules, &ModuleEntry{ID: id, DottedName: dotted, Unit: unit, Classification: kind})
	g.byDotted[dotted] = id
	if unit != nil {
		g.byPath[unit.Path] = id
		unit.Classification = toLoaderClassification(kind)
	}
	return id
}

func toLoaderClassification(k classify.Kind) loader.Classification {
	switch k {
	case classify.FirstParty:
		return loader.FirstParty
	case classify.Stdlib:
		return loader.Stdlib
	default:
		return loader.ThirdParty
	}
}

// importSpec pairs a resolve.ImportSpec with the graph-level metadata
// (syntactic scope, the edge kind, local alias) that scanImports already has
// in hand from the AST but resolve.ImportSpec has no room for.
type importSpec struct {
	resolve.ImportSpec
	scope ast.Scope
	edge  EdgeKind
	alias string
}

// scanImports walks f's top-level and nested statements once, collecting
// every Import/ImportFrom with its syntactic scope (spec §4.D: "scan its AST
// once for Import, ImportFrom, and string-literal __all__ definitions").
func scanImports(f *ast.File) []importSpec {
	var out []importSpec
	var walkBlock func(stmts []ast.Stmt, scope ast.Scope)
	walkBlock = func(stmts []ast.Stmt, scope ast.Scope) {
		for _, s := range stmts {
			switch n := s.(type) {
			case *ast.Import:
				for _, alias := range n.Names {
					out = append(out, importSpec{
						ImportSpec: resolve.ImportSpec{Kind: resolve.ImportModule, Module: alias.Name},
						scope:      scope, edge: ImportModuleEdge, alias: alias.AsName,
					})
				}
			case *ast.ImportFrom:
				kind := resolve.FromImport
				edge := FromImportEdge
				if n.Level > 0 {
					kind = resolve.RelativeFromImport
					edge = RelativeFromImportEdge
				}
				if n.Star {
					out = append(out, importSpec{
						ImportSpec: resolve.ImportSpec{Kind: resolve.StarImport, Module: n.Module, Level: n.Level, Star: true},
						scope:      scope, edge: StarImportEdge,
					})
					continue
				}
				names := make([]string, len(n.Names))
				for i, a := range n.Names {
					names[i] = a.Name
				}
				out = append(out, importSpec{
					ImportSpec: resolve.ImportSpec{Kind: kind, Module: n.Module, Level: n.Level, Names: names},
					scope:      scope, edge: edge,
				})
			case *ast.FunctionDef:
				walkBlock(n.Body, ast.FunctionLevel)
			case *ast.ClassDef:
				walkBlock(n.Body, scope)
			case *ast.If:
				walkBlock(n.Body, scope)
				walkBlock(n.Orelse, scope)
			case *ast.For:
				walkBlock(n.Body, scope)
				walkBlock(n.Orelse, scope)
			case *ast.While:
				walkBlock(n.Body, scope)
				walkBlock(n.Orelse, scope)
			case *ast.With:
				walkBlock(n.Body, scope)
			case *ast.Try:
				walkBlock(n.Body, scope)
				for _, h := range n.Handlers {
					walkBlock(h.Body, scope)
				}
				walkBlock(n.Orelse, scope)
				walkBlock(n.Finally, scope)
			}
		}
	}
	walkBlock(f.Body, ast.ModuleLevel)
	return out
}

// resolveAndRecord resolves one import spec against the classifier/resolver,
// records the edge(s) it produces, and returns every newly-discovered
// module's ID so the caller can enqueue it.
func (b *Builder) resolveAndRecord(g *Graph, fromID ModuleId, importerDotted string, sp importSpec) ([]ModuleId, error) {
	kind := b.classify.Classify(firstNonEmpty(sp.Module, importerDotted))
	if kind != classify.FirstParty {
		targetID := g.addModule(sp.Module, nil, kind)
		g.Edges = append(g.Edges, Edge{From: fromID, To: targetID, Kind: sp.edge, Names: sp.Names, Alias: sp.alias, Scope: sp.scope})
		return nil, nil
	}

	rt, err := b.resolve.Resolve(importerDotted, sp.ImportSpec)
	if err != nil {
		return nil, err
	}

	targetID, isNew, err := b.loadAndAddModule(rt.DottedName, rt.Path, rt.IsNamespace, g)
	if err != nil {
		return nil, err
	}
	g.Edges = append(g.Edges, Edge{From: fromID, To: targetID, Kind: sp.edge, Names: sp.Names, Alias: sp.alias, Scope: sp.scope})

	var enqueued []ModuleId
	if isNew {
		enqueued = append(enqueued, targetID)
	}

	// Submodules take precedence over init-level attributes (spec §4.C): a
	// name that resolve.Resolve flagged OriginSubmodule binds to its own
	// source file, not to something read out of rt's own module, so it needs
	// its own discovery and its own edge — otherwise it's a reference to a
	// module that was never loaded or inlined.
	for _, name := range sp.Names {
		if rt.NameOrigins[name] != resolve.OriginSubmodule {
			continue
		}
		subRT, err := b.resolve.Resolve(importerDotted, resolve.ImportSpec{Kind: resolve.ImportModule, Module: rt.DottedName + "." + name})
		if err != nil {
			return nil, err
		}
		subID, subIsNew, err := b.loadAndAddModule(subRT.DottedName, subRT.Path, subRT.IsNamespace, g)
		if err != nil {
			return nil, err
		}
		g.Edges = append(g.Edges, Edge{From: fromID, To: subID, Kind: sp.edge, Names: []string{name}, Scope: sp.scope})
		if subIsNew {
			enqueued = append(enqueued, subID)
		}
	}

	return enqueued, nil
}

// loadAndAddModule loads dottedName's source unit (unless it's a namespace
// package, which has no file of its own) and records it in g, returning
// whether this is the first time it was added.
func (b *Builder) loadAndAddModule(dottedName, path string, isNamespace bool, g *Graph) (ModuleId, bool, error) {
	var unit *loader.SourceUnit
	if !isNamespace {
		u, err := b.loader.Load(path, dottedName)
		if err != nil {
			return 0, false, err
		}
		unit = u
	}
	_, alreadySeen := g.byDotted[dottedName]
	id := g.addModule(dottedName, unit, classify.FirstParty)
	return id, !alreadySeen, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// TopoOrder returns the ModuleIds for which include returns true, ordered
// leaves-first: a module appears only after every module it imports (that
// also satisfies include). Traversal starts from ModuleId 0 (the entry) and
// visits edges in insertion order, so two runs over identical inputs
// produce an identical order (spec §4.G/§4.I both require this).
func TopoOrder(g *Graph, include func(ModuleId) bool) []ModuleId {
	visited := make(map[ModuleId]bool, len(g.Modules))
	var order []ModuleId

	adj := make(map[ModuleId][]ModuleId, len(g.Modules))
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}

	var visit func(id ModuleId)
	visit = func(id ModuleId) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, to := range adj[id] {
			if include(to) {
				visit(to)
			}
		}
		if include(id) {
			order = append(order, id)
		}
	}

	for i := range g.Modules {
		visit(ModuleId(i))
	}
	return order
}
