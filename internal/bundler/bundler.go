// Package bundler orchestrates components A through I into the single
// `Bundle` operation the CLI calls: load the entry, discover the module
// graph, classify cycles, collect symbols, plan renames, rewrite every
// module, and emit one output artifact.
package bundler

import (
	"path/filepath"
	"strings"

	"github.com/tinovyatkin/cribo/internal/ast"
	"github.com/tinovyatkin/cribo/internal/ciboerr"
	"github.com/tinovyatkin/cribo/internal/classify"
	"github.com/tinovyatkin/cribo/internal/cycle"
	"github.com/tinovyatkin/cribo/internal/emit"
	"github.com/tinovyatkin/cribo/internal/graph"
	"github.com/tinovyatkin/cribo/internal/loader"
	"github.com/tinovyatkin/cribo/internal/rename"
	"github.com/tinovyatkin/cribo/internal/resolve"
	"github.com/tinovyatkin/cribo/internal/symbols"
	"github.com/tinovyatkin/cribo/internal/transform"
)

// Options are the external inputs spec §6 names.
type Options struct {
	EntryPath       string
	FirstPartyRoots []string
	ForceThirdParty []string
	TargetVersion   string
	SourceExt       string // file suffix for first-party modules; ".src" if empty
}

// Result is the bundler's successful output plus any non-fatal diagnostics
// collected along the way (spec §7: "non-fatal diagnostics ... are reported
// but do not abort").
type Result struct {
	Output      string
	Diagnostics []*ciboerr.Report
}

// discovery is the shared result of running components A through E:
// everything both Bundle and Check need before they diverge (Bundle keeps
// going through rename/transform/emit; Check stops here).
type discovery struct {
	graph  *graph.Graph
	tables map[graph.ModuleId]*symbols.Table
	dotted map[graph.ModuleId]string
	cycle  *cycle.Result
	diags  *ciboerr.Diagnostics
}

func discover(opts Options) (*discovery, error) {
	ext := opts.SourceExt
	if ext == "" {
		ext = ".src"
	}

	ld := loader.New()
	rs := resolve.New(opts.FirstPartyRoots, ext)
	cl := classify.New(classify.DefaultStdlib(opts.TargetVersion), opts.ForceThirdParty, rs)

	entryDotted := entryDottedName(opts.EntryPath, opts.FirstPartyRoots, ext)

	gb := graph.NewBuilder(ld, cl, rs)
	g, err := gb.Build(opts.EntryPath, entryDotted)
	if err != nil {
		return nil, err
	}

	diags := &ciboerr.Diagnostics{}
	for _, r := range gb.Diagnostics().Reports() {
		diags.Add(r)
	}

	tables := make(map[graph.ModuleId]*symbols.Table)
	dotted := make(map[graph.ModuleId]string)
	for _, m := range g.Modules {
		dotted[m.ID] = m.DottedName
		if m.Unit == nil {
			continue
		}
		t, tdiags := symbols.Collect(m.DottedName, m.Unit.File)
		tables[m.ID] = t
		for _, r := range tdiags.Reports() {
			diags.Add(r)
		}
	}

	cycleResult, err := cycle.Analyze(g, temporalParadoxChecker(g, tables))
	if err != nil {
		return nil, err
	}

	return &discovery{graph: g, tables: tables, dotted: dotted, cycle: cycleResult, diags: diags}, nil
}

// CheckResult is Check's verdict: whether the module tree is bundle-able,
// plus every diagnostic collected while finding out.
type CheckResult struct {
	Diagnostics []*ciboerr.Report
	SCCs        [][]graph.ModuleId
}

// Check runs discovery and cycle analysis only (spec §6: "cribo check ...
// reports diagnostics without emitting, exit code only"). A fatal error
// (unresolved import, unresolvable cycle, parse failure) is returned as-is;
// callers should recover the structured diagnostic via ciboerr.AsReport.
func Check(opts Options) (*CheckResult, error) {
	d, err := discover(opts)
	if err != nil {
		return nil, err
	}
	return &CheckResult{Diagnostics: d.diags.Reports(), SCCs: d.cycle.SCCs}, nil
}

// GraphEdge is one textual edge line for `cribo graph`'s dot-like output.
type GraphEdge struct {
	From, To    string
	Kind        string
	Disposition string
}

// Graph runs discovery only and returns every module's dotted name plus its
// edges, for `cribo graph`'s debugging output (spec §6: "prints the module
// graph ... a thin consumer of component D, not part of the core").
func Graph(opts Options) ([]string, []GraphEdge, error) {
	d, err := discover(opts)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, len(d.graph.Modules))
	for i, m := range d.graph.Modules {
		names[i] = m.DottedName
	}
	edges := make([]GraphEdge, 0, len(d.graph.Edges))
	for _, e := range d.graph.Edges {
		disp := "n/a"
		if d.graph.Modules[e.To].Unit != nil {
			disp = d.cycle.Disposition[e.To].String()
		}
		edges = append(edges, GraphEdge{
			From:        d.graph.Modules[e.From].DottedName,
			To:          d.graph.Modules[e.To].DottedName,
			Kind:        edgeKindString(e.Kind),
			Disposition: disp,
		})
	}
	return names, edges, nil
}

func edgeKindString(k graph.EdgeKind) string {
	switch k {
	case graph.ImportModuleEdge:
		return "import"
	case graph.FromImportEdge:
		return "from-import"
	case graph.StarImportEdge:
		return "star-import"
	case graph.RelativeFromImportEdge:
		return "relative-from-import"
	default:
		return "unknown"
	}
}

// Bundle runs the full pipeline. The first fatal error aborts and is
// returned as a *ciboerr.ReportError; callers should use ciboerr.AsReport to
// recover the structured diagnostic for CLI rendering.
func Bundle(opts Options) (*Result, error) {
	d, err := discover(opts)
	if err != nil {
		return nil, err
	}
	g, tables, dotted, cycleResult, diags := d.graph, d.tables, d.dotted, d.cycle, d.diags

	entryID := graph.ModuleId(0)
	isInline := func(id graph.ModuleId) bool {
		if g.Modules[id].Unit == nil {
			return false
		}
		return cycleResult.Disposition[id] == cycle.Inline
	}
	inlineOrder := graph.TopoOrder(g, isInline)

	var wrapOrder []graph.ModuleId
	for _, m := range g.Modules {
		if m.Unit != nil && cycleResult.Disposition[m.ID] == cycle.Wrap {
			wrapOrder = append(wrapOrder, m.ID)
		}
	}

	plan := rename.Compute(entryID, withoutEntry(inlineOrder, entryID), wrapOrder, tables, dotted)

	resolutions := buildImportResolutions(g, cycleResult, plan, tables)

	var future []ast.Stmt

	var inlined []emit.InlinedModule
	for _, id := range inlineOrder {
		if id == entryID {
			continue
		}
		m := g.Modules[id]
		body := transform.Rewrite(id, m.Unit.File, plan, tables[id], resolutions[id])
		modFuture, rest := splitFutureImports(body)
		future = append(future, modFuture...)
		inlined = append(inlined, emit.InlinedModule{DottedName: m.DottedName, Body: rest})
	}

	var wrapped []emit.WrappedModule
	for _, id := range wrapOrder {
		m := g.Modules[id]
		body := transform.Rewrite(id, m.Unit.File, plan, tables[id], resolutions[id])
		modFuture, rest := splitFutureImports(body)
		future = append(future, modFuture...)
		wrapped = append(wrapped, emit.WrappedModule{
			Handle:     plan.Handle(id),
			DottedName: m.DottedName,
			InitBody:   rest,
			Exports:    tables[id].ExportedNames(),
		})
	}

	entryModule := g.Modules[entryID]
	entryBody := transform.Rewrite(entryID, entryModule.Unit.File, plan, tables[entryID], resolutions[entryID])
	entryFuture, rest := splitFutureImports(entryBody)
	future = append(future, entryFuture...)

	hoistedFuture, hoisted := splitFutureImports(collectHoistedImports(g, resolutions))
	artifact := &emit.Artifact{
		FutureImports:  append(hoistedFuture, future...),
		HoistedImports: hoisted,
		Wrapped:        wrapped,
		Inlined:        inlined,
		EntryBody:      rest,
	}

	return &Result{Output: emit.Render(artifact), Diagnostics: diags.Reports()}, nil
}

func withoutEntry(order []graph.ModuleId, entry graph.ModuleId) []graph.ModuleId {
	out := make([]graph.ModuleId, 0, len(order))
	for _, id := range order {
		if id != entry {
			out = append(out, id)
		}
	}
	return out
}

// entryDottedName derives a dotted module name for the entry script from
// its path relative to the first first-party root that contains it,
// falling back to its base filename (the entry is "reached" under this
// name but, per spec §4.G step 1, its bindings are never renamed anyway).
func entryDottedName(path string, roots []string, ext string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, root := range roots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(rootAbs, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = strings.TrimSuffix(rel, ext)
		return strings.ReplaceAll(rel, string(filepath.Separator), ".")
	}
	base := filepath.Base(abs)
	return strings.TrimSuffix(base, ext)
}

// temporalParadoxChecker implements the spec's "temporal paradox" test: a
// wrap-required SCC is unresolvable if some intra-SCC edge binds a Class or
// module-level Variable whose value is computed immediately at import time
// from the other side — as opposed to a Function, whose body isn't
// evaluated until called, so forward references through it are safe.
func temporalParadoxChecker(g *graph.Graph, tables map[graph.ModuleId]*symbols.Table) func([]graph.ModuleId) bool {
	return func(members []graph.ModuleId) bool {
		memberSet := make(map[graph.ModuleId]bool, len(members))
		for _, m := range members {
			memberSet[m] = true
		}
		for _, e := range g.Edges {
			if e.Scope != ast.ModuleLevel || !memberSet[e.From] || !memberSet[e.To] {
				continue
			}
			if e.Kind != graph.FromImportEdge && e.Kind != graph.RelativeFromImportEdge {
				continue
			}
			targetTable, ok := tables[e.To]
			if !ok {
				continue
			}
			for _, name := range e.Names {
				b, ok := targetTable.Lookup(name)
				if ok && (b.Kind == symbols.Class || b.Kind == symbols.Variable) {
					return true
				}
			}
		}
		return false
	}
}

// buildImportResolutions decides, for every Import/ImportFrom statement in
// every reached first-party module, what the transformer should do with it:
// pass through (stdlib/third-party), delete (first-party Inline), or
// replace with an init call (first-party Wrap) — and which final name each
// locally-imported identifier now resolves through (spec §4.G/§4.H.2).
func buildImportResolutions(g *graph.Graph, cr *cycle.Result, plan *rename.Plan, tables map[graph.ModuleId]*symbols.Table) map[graph.ModuleId]map[ast.Stmt]*transform.ImportResolution {
	out := make(map[graph.ModuleId]map[ast.Stmt]*transform.ImportResolution)
	for _, m := range g.Modules {
		if m.Unit == nil {
			continue
		}
		out[m.ID] = resolveModuleImports(m, g, cr, plan, tables)
	}
	return out
}

// resolveModuleImports walks m's own AST (the one copy of truth for which
// import statements exist) and, for each one, looks up the corresponding
// target module by dotted name to decide its ImportAction and bindings.
func resolveModuleImports(m *graph.ModuleEntry, g *graph.Graph, cr *cycle.Result, plan *rename.Plan, tables map[graph.ModuleId]*symbols.Table) map[ast.Stmt]*transform.ImportResolution {
	out := make(map[ast.Stmt]*transform.ImportResolution)

	targetsByDotted := make(map[string]graph.ModuleId, len(g.Modules))
	for _, e := range g.Modules {
		targetsByDotted[e.DottedName] = e.ID
	}

	var walk func(stmts []ast.Stmt)
	walk = func(stmts []ast.Stmt) {
		for _, s := range stmts {
			switch n := s.(type) {
			case *ast.Import:
				for _, alias := range n.Names {
					local := alias.AsName
					if local == "" {
						local = topSegment(alias.Name)
					}
					// "" marks a whole-module bind (`import m`, not `from m
					// import x`): the local name refers to the entire
					// target, not one of its attributes.
					resolveOne(out, s, alias.Name, map[string]string{local: ""}, targetsByDotted, g, cr, plan)
				}
			case *ast.ImportFrom:
				if n.Star {
					// Each exported name of the target resolves under its own
					// name, same as `from m import name` written out for
					// every name in m's ExportedNames set (spec §4.H.5).
					names := map[string]string{}
					if id, ok := targetsByDotted[n.Module]; ok {
						if t, ok := tables[id]; ok {
							for _, name := range t.ExportedNames() {
								names[name] = name
							}
						}
					}
					resolveOne(out, s, n.Module, names, targetsByDotted, g, cr, plan)
					continue
				}
				names := make(map[string]string, len(n.Names))
				for _, alias := range n.Names {
					local := alias.AsName
					if local == "" {
						local = alias.Name
					}
					// Submodules take precedence over init-level attributes
					// (spec §4.C): if graph discovery found alias.Name as its
					// own module under n.Module, local binds to that whole
					// submodule, not to an attribute read out of n.Module's
					// own source.
					if _, ok := targetsByDotted[n.Module+"."+alias.Name]; ok {
						resolveOne(out, s, n.Module+"."+alias.Name, map[string]string{local: ""}, targetsByDotted, g, cr, plan)
						continue
					}
					names[local] = alias.Name
				}
				// Only resolve against the parent package itself if some name
				// in this statement still needs it — otherwise every name was
				// a submodule and the calls above already recorded the
				// statement's one Action; resolving an empty names map
				// against n.Module here would overwrite that with pkg's own
				// disposition instead of leaving it alone.
				if len(names) > 0 {
					resolveOne(out, s, n.Module, names, targetsByDotted, g, cr, plan)
				}
			case *ast.FunctionDef:
				walk(n.Body)
			case *ast.ClassDef:
				walk(n.Body)
			case *ast.If:
				walk(n.Body)
				walk(n.Orelse)
			case *ast.For:
				walk(n.Body)
				walk(n.Orelse)
			case *ast.While:
				walk(n.Body)
				walk(n.Orelse)
			case *ast.With:
				walk(n.Body)
			case *ast.Try:
				walk(n.Body)
				for _, h := range n.Handlers {
					walk(h.Body)
				}
				walk(n.Orelse)
				walk(n.Finally)
			}
		}
	}
	walk(m.Unit.File.Body)
	return out
}

// topSegment returns the leading dotted component of a module path: `import
// a.b.c` binds the local name `a`, per spec's "top segment" note in §4.E.
func topSegment(dotted string) string {
	if i := strings.IndexByte(dotted, '.'); i >= 0 {
		return dotted[:i]
	}
	return dotted
}

// resolveOne decides one import statement's disposition and records, for
// each of its locally-bound names, what that name should resolve through:
//   - PassThrough (stdlib/third-party): no bindings, the statement survives.
//   - Delete (first-party Inline): each name whose original export is known
//     (not a whole-module bind) resolves to the target's renamed binding.
//   - ReplaceWithInit (first-party Wrap): each name resolves through the
//     module handle — the whole handle itself for a whole-module bind, or
//     handle.<original name> for a specific import.
//
// Calling this more than once for the same statement (`import a, b` naming
// two different targets) merges bindings into the existing resolution
// rather than overwriting it; only one Action/Target/Handle can be recorded
// per statement, so a later call wins there.
func resolveOne(out map[ast.Stmt]*transform.ImportResolution, s ast.Stmt, dotted string, names map[string]string, targetsByDotted map[string]graph.ModuleId, g *graph.Graph, cr *cycle.Result, plan *rename.Plan) {
	res := out[s]
	if res == nil {
		res = &transform.ImportResolution{Stmt: s, Bindings: map[string]string{}}
		out[s] = res
	}

	id, ok := targetsByDotted[dotted]
	if !ok || g.Modules[id].Unit == nil {
		return // stdlib/third-party: res.Action stays at its PassThrough zero value
	}

	if cr.Disposition[id] == cycle.Wrap {
		res.Action = transform.ReplaceWithInit
		res.Target = id
		res.Handle = plan.Handle(id)
		for local, orig := range names {
			res.Bindings[local] = orig // "" (whole module) or the original attribute name
		}
		return
	}

	res.Action = transform.Delete
	res.Target = id
	for local, orig := range names {
		if orig == "" {
			continue // whole-module bind of an inlined target has no single emitted name
		}
		res.Bindings[local] = plan.EmittedName(id, orig)
	}
}

// collectHoistedImports gathers every pass-through (stdlib/third-party)
// import statement across all reached modules, in module-discovery then
// source order, deduplicated by rendered text.
func collectHoistedImports(g *graph.Graph, resolutions map[graph.ModuleId]map[ast.Stmt]*transform.ImportResolution) []ast.Stmt {
	seen := make(map[string]bool)
	var out []ast.Stmt
	for _, m := range g.Modules {
		if m.Unit == nil {
			continue
		}
		res := resolutions[m.ID]
		for _, s := range m.Unit.File.Body {
			imp, ok := s.(*ast.Import)
			if ok {
				if r, ok := res[s]; ok && r.Action == transform.PassThrough {
					addHoisted(seen, &out, imp)
				}
				continue
			}
			if impFrom, ok := s.(*ast.ImportFrom); ok {
				if r, ok := res[s]; ok && r.Action == transform.PassThrough {
					addHoistedFrom(seen, &out, impFrom)
				}
			}
		}
	}
	return out
}

func addHoisted(seen map[string]bool, out *[]ast.Stmt, imp *ast.Import) {
	key := "import:" + imp.String()
	if seen[key] {
		return
	}
	seen[key] = true
	*out = append(*out, imp)
}

func addHoistedFrom(seen map[string]bool, out *[]ast.Stmt, imp *ast.ImportFrom) {
	key := "from:" + imp.String()
	if seen[key] {
		return
	}
	seen[key] = true
	*out = append(*out, imp)
}

// splitFutureImports pulls any `from __future__ import ...` statements out of
// body, matching spec §4.H's edge case that they must appear first in the
// output regardless of which reached module they originated in. Bundle calls
// this once per module body (entry, inlined, and wrapped alike) and once on
// the hoisted pass-through imports, where a module's top-level `__future__`
// imports end up, and collects the results into Artifact.FutureImports.
func splitFutureImports(body []ast.Stmt) (future, rest []ast.Stmt) {
	for _, s := range body {
		if imp, ok := s.(*ast.ImportFrom); ok && imp.Module == "__future__" {
			future = append(future, s)
			continue
		}
		rest = append(rest, s)
	}
	return
}
