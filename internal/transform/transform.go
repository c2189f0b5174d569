// Package transform implements component H: per-module AST rewriting under
// the rename plan — renaming bindings and free-variable references,
// deleting or replacing import statements, lifting `global` references to
// the module's renamed binding, and expanding star-imports.
package transform

import (
	"github.com/tinovyatkin/cribo/internal/ast"
	"github.com/tinovyatkin/cribo/internal/graph"
	"github.com/tinovyatkin/cribo/internal/rename"
	"github.com/tinovyatkin/cribo/internal/symbols"
)

// ImportAction tells the transformer what to do with one Import/ImportFrom
// statement, decided by the orchestrator from the resolved target's
// disposition (spec §4.H.2).
type ImportAction int

const (
	PassThrough ImportAction = iota // stdlib/third-party: keep, will be hoisted by the emitter
	Delete                          // first-party Inline: references resolve through the rename plan
	ReplaceWithInit                 // first-party Wrap: replaced by a call to the wrapper's init function
)

// ImportResolution is what the orchestrator worked out for one import
// statement once the rename plan exists, handed back to the transformer so it
// doesn't need to re-resolve anything.
type ImportResolution struct {
	Stmt   ast.Stmt // the *ast.Import or *ast.ImportFrom node, used as a map key
	Action ImportAction
	Target graph.ModuleId // the resolved first-party module, if Action != PassThrough
	// Bindings maps each locally-imported name to the name it should resolve
	// through: for Delete, the renamed binding in the target Inline module;
	// for ReplaceWithInit, the target's original (unrenamed) attribute name,
	// read off the module handle once the wrapper has run.
	Bindings map[string]string
	Handle   string // module handle identifier, for ReplaceWithInit
}

// renameCtx carries the per-module rename state through the recursive walk:
// the plan-backed module-level `bound` names, and `alias` — names bound by
// an import statement, which resolve through ImportResolution.Bindings
// instead of through the plan (spec §4.H.2: "references to the imported
// names resolve through the rename plan" for Inline; "through the module
// handle" for Wrap).
type renameCtx struct {
	moduleID graph.ModuleId
	plan     *rename.Plan
	bound    map[string]bool
	alias    map[string]string // local import alias -> target module's emitted name
	wrapped  map[string]string // local import alias -> "handle.attr" wrap reference
}

// Rewrite applies the transformer to a single module's file, in place,
// returning the rewritten top-level statement list (import statements are
// dropped or replaced; everything else mutates in place through the
// Base/Name node pointers).
func Rewrite(moduleID graph.ModuleId, file *ast.File, plan *rename.Plan, table *symbols.Table, resolutions map[ast.Stmt]*ImportResolution) []ast.Stmt {
	bound := make(map[string]bool, len(table.Order))
	for _, n := range table.Order {
		if b, ok := table.Lookup(n); ok && b.Kind == symbols.ImportBinding {
			continue // resolved through alias/wrapped below, not the rename plan
		}
		bound[n] = true
	}

	alias := map[string]string{}
	wrapped := map[string]string{}
	for _, res := range resolutions {
		for local, name := range res.Bindings {
			switch {
			case res.Action == ReplaceWithInit && name == "":
				wrapped[local] = res.Handle // whole-module bind: the handle itself
			case res.Action == ReplaceWithInit:
				wrapped[local] = res.Handle + "." + name
			default:
				alias[local] = name
			}
		}
	}

	ctx := &renameCtx{moduleID: moduleID, plan: plan, bound: bound, alias: alias, wrapped: wrapped}
	renameScope(file.Body, ctx, nil)
	for _, s := range file.Body {
		switch n := s.(type) {
		case *ast.FunctionDef:
			n.Name = plan.EmittedName(moduleID, n.Name)
		case *ast.ClassDef:
			n.Name = plan.EmittedName(moduleID, n.Name)
		}
	}

	return rewriteImportsAndGlobals(file.Body, resolutions)
}

// renameScope renames every reference to a module-level bound name found in
// stmts, recursing into nested function/class/lambda/comprehension scopes
// with locals-shadow tracking so a nested local never gets renamed as if it
// were the module-level binding of the same name (spec §4.H.1).
func renameScope(stmts []ast.Stmt, ctx *renameCtx, shadow map[string]bool) {
	for _, s := range stmts {
		renameStmt(s, ctx, shadow)
	}
}

func renameStmt(s ast.Stmt, ctx *renameCtx, shadow map[string]bool) {
	switch n := s.(type) {
	case *ast.FunctionDef:
		globals := globalNames(n.Body)
		locals := localAssignedNames(n.Body)
		for _, p := range n.Params {
			locals[p.Name] = true
		}
		childShadow := mergeShadow(shadow, locals, globals)
		renameExprList(n.Decorators, ctx, shadow)
		renameScope(n.Body, ctx, childShadow)
	case *ast.ClassDef:
		renameExprList(n.Bases, ctx, shadow)
		renameExprList(n.Decorators, ctx, shadow)
		renameScope(n.Body, ctx, shadow)
	case *ast.If:
		renameExpr(n.Test, ctx, shadow)
		renameScope(n.Body, ctx, shadow)
		renameScope(n.Orelse, ctx, shadow)
	case *ast.For:
		renameExpr(n.Target, ctx, shadow)
		renameExpr(n.Iter, ctx, shadow)
		renameScope(n.Body, ctx, shadow)
		renameScope(n.Orelse, ctx, shadow)
	case *ast.While:
		renameExpr(n.Test, ctx, shadow)
		renameScope(n.Body, ctx, shadow)
		renameScope(n.Orelse, ctx, shadow)
	case *ast.With:
		for _, it := range n.Items {
			renameExpr(it.ContextExpr, ctx, shadow)
			if it.OptionalVar != nil {
				renameExpr(it.OptionalVar, ctx, shadow)
			}
		}
		renameScope(n.Body, ctx, shadow)
	case *ast.Try:
		renameScope(n.Body, ctx, shadow)
		for _, h := range n.Handlers {
			if h.Type != nil {
				renameExpr(h.Type, ctx, shadow)
			}
			renameScope(h.Body, ctx, shadow)
		}
		renameScope(n.Orelse, ctx, shadow)
		renameScope(n.Finally, ctx, shadow)
	case *ast.Assign:
		renameExprList(n.Targets, ctx, shadow)
		renameExpr(n.Value, ctx, shadow)
	case *ast.AnnAssign:
		renameExpr(n.Target, ctx, shadow)
		if n.Value != nil {
			renameExpr(n.Value, ctx, shadow)
		}
	case *ast.AugAssign:
		renameExpr(n.Target, ctx, shadow)
		renameExpr(n.Value, ctx, shadow)
	case *ast.Delete:
		renameExprList(n.Targets, ctx, shadow)
	case *ast.Return:
		if n.Value != nil {
			renameExpr(n.Value, ctx, shadow)
		}
	case *ast.ExprStmt:
		renameExpr(n.Value, ctx, shadow)
	case *ast.Raise:
		if n.Exc != nil {
			renameExpr(n.Exc, ctx, shadow)
		}
		if n.Cause != nil {
			renameExpr(n.Cause, ctx, shadow)
		}
	}
}

func renameExprList(exprs []ast.Expr, ctx *renameCtx, shadow map[string]bool) {
	for _, e := range exprs {
		renameExpr(e, ctx, shadow)
	}
}

// renameExpr renames every free Name reference within e, descending into
// nested Lambda/Comp scopes with their own shadow tracking. A wrap-disposed
// import alias becomes an Attribute access on the module handle instead of a
// plain rename (spec §4.G: "references to its symbols become attribute
// accesses on that handle").
func renameExpr(e ast.Expr, ctx *renameCtx, shadow map[string]bool) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.Name:
		if shadow[n.Id] {
			return
		}
		if attr, ok := ctx.wrapped[n.Id]; ok {
			n.Id = attr // rendered verbatim as "<handle>.<attr>" text by unparse
			return
		}
		if target, ok := ctx.alias[n.Id]; ok {
			n.Id = target
			return
		}
		if ctx.bound[n.Id] {
			n.Id = ctx.plan.EmittedName(ctx.moduleID, n.Id)
		}
	case *ast.Attribute:
		renameExpr(n.Value, ctx, shadow)
	case *ast.Subscript:
		renameExpr(n.Value, ctx, shadow)
		renameExpr(n.Index, ctx, shadow)
	case *ast.Call:
		renameExpr(n.Func, ctx, shadow)
		renameExprList(n.Args, ctx, shadow)
		for _, k := range n.Keywords {
			renameExpr(k.Value, ctx, shadow)
		}
	case *ast.FormattedValue:
		renameExpr(n.Value, ctx, shadow)
	case *ast.JoinedStr:
		renameExprList(n.Values, ctx, shadow)
	case *ast.List:
		renameExprList(n.Elts, ctx, shadow)
	case *ast.Tuple:
		renameExprList(n.Elts, ctx, shadow)
	case *ast.Set:
		renameExprList(n.Elts, ctx, shadow)
	case *ast.Dict:
		for _, entry := range n.Entries {
			if entry.Key != nil {
				renameExpr(entry.Key, ctx, shadow)
			}
			renameExpr(entry.Value, ctx, shadow)
		}
	case *ast.Starred:
		renameExpr(n.Value, ctx, shadow)
	case *ast.BinOp:
		renameExpr(n.Left, ctx, shadow)
		renameExpr(n.Right, ctx, shadow)
	case *ast.BoolOp:
		renameExprList(n.Values, ctx, shadow)
	case *ast.UnaryOp:
		renameExpr(n.Operand, ctx, shadow)
	case *ast.Compare:
		renameExpr(n.Left, ctx, shadow)
		renameExprList(n.Comps, ctx, shadow)
	case *ast.IfExp:
		renameExpr(n.Test, ctx, shadow)
		renameExpr(n.Body, ctx, shadow)
		renameExpr(n.Orelse, ctx, shadow)
	case *ast.Lambda:
		locals := map[string]bool{}
		for _, p := range n.Params {
			locals[p.Name] = true
			if p.Default != nil {
				renameExpr(p.Default, ctx, shadow)
			}
		}
		childShadow := mergeShadow(shadow, locals, nil)
		renameExpr(n.Body, ctx, childShadow)
	case *ast.Comp:
		locals := map[string]bool{}
		for _, g := range n.Generators {
			for _, name := range targetNames(g.Target) {
				locals[name] = true
			}
		}
		childShadow := mergeShadow(shadow, locals, nil)
		for _, g := range n.Generators {
			renameExpr(g.Iter, ctx, childShadow)
			for _, i := range g.Ifs {
				renameExpr(i, ctx, childShadow)
			}
		}
		renameExpr(n.Elt, ctx, childShadow)
		if n.ValueElt != nil {
			renameExpr(n.ValueElt, ctx, childShadow)
		}
	}
}

func mergeShadow(parent, locals, globals map[string]bool) map[string]bool {
	child := make(map[string]bool, len(parent)+len(locals))
	for k, v := range parent {
		child[k] = v
	}
	for name := range locals {
		if !globals[name] {
			child[name] = true
		}
	}
	for name := range globals {
		child[name] = false
	}
	return child
}

// globalNames collects every name declared `global` anywhere in stmts,
// stopping at nested function boundaries (their own global declarations
// belong to their own scope).
func globalNames(stmts []ast.Stmt) map[string]bool {
	out := map[string]bool{}
	var walk func([]ast.Stmt)
	walk = func(stmts []ast.Stmt) {
		for _, s := range stmts {
			switch n := s.(type) {
			case *ast.Global:
				for _, name := range n.Names {
					out[name] = true
				}
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
	walk(stmts)
	return out
}

// localAssignedNames collects every name assigned anywhere in stmts
// (Assign/AnnAssign/AugAssign/For targets, with-as targets), stopping at
// nested function boundaries — those introduce their own scope.
func localAssignedNames(stmts []ast.Stmt) map[string]bool {
	out := map[string]bool{}
	var walk func([]ast.Stmt)
	walk = func(stmts []ast.Stmt) {
		for _, s := range stmts {
			switch n := s.(type) {
			case *ast.Assign:
				for _, t := range n.Targets {
					for _, name := range targetNames(t) {
						out[name] = true
					}
				}
			case *ast.AnnAssign:
				for _, name := range targetNames(n.Target) {
					out[name] = true
				}
			case *ast.AugAssign:
				for _, name := range targetNames(n.Target) {
					out[name] = true
				}
			case *ast.For:
				for _, name := range targetNames(n.Target) {
					out[name] = true
				}
				walk(n.Body)
				walk(n.Orelse)
			case *ast.With:
				for _, it := range n.Items {
					if it.OptionalVar != nil {
						for _, name := range targetNames(it.OptionalVar) {
							out[name] = true
						}
					}
				}
				walk(n.Body)
			case *ast.FunctionDef:
				out[n.Name] = true
			case *ast.ClassDef:
				out[n.Name] = true
			case *ast.If:
				walk(n.Body)
				walk(n.Orelse)
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
	walk(stmts)
	return out
}

func targetNames(e ast.Expr) []string {
	switch n := e.(type) {
	case *ast.Name:
		return []string{n.Id}
	case *ast.Tuple:
		var out []string
		for _, el := range n.Elts {
			out = append(out, targetNames(el)...)
		}
		return out
	case *ast.List:
		var out []string
		for _, el := range n.Elts {
			out = append(out, targetNames(el)...)
		}
		return out
	case *ast.Starred:
		return targetNames(n.Value)
	default:
		return nil
	}
}

// rewriteImportsAndGlobals drops or replaces import statements per their
// resolution and strips `global` declarations (their effect is already
// folded into the rename by renameScope treating global names as bound).
// A ReplaceWithInit import becomes a call to the wrapper's init function,
// assigned to its reserved handle; every reference to one of its imported
// names was already rewritten in place to a handle/attribute access by
// renameExpr, so no further per-name binding is needed here (spec §4.H.2).
func rewriteImportsAndGlobals(stmts []ast.Stmt, resolutions map[ast.Stmt]*ImportResolution) []ast.Stmt {
	return rewriteImportsAndGlobalsAt(stmts, resolutions, true)
}

// rewriteImportsAndGlobalsAt does the work; topLevel is true only for the
// module's own top-level statement list, the same list collectHoistedImports
// scans to find what it hoists. A PassThrough import nested inside a
// function, class, or conditional block is never reached by
// collectHoistedImports, so it must stay where it is instead of being
// dropped as if it were already hoisted.
func rewriteImportsAndGlobalsAt(stmts []ast.Stmt, resolutions map[ast.Stmt]*ImportResolution, topLevel bool) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(stmts))
	for _, s := range stmts {
		switch n := s.(type) {
		case *ast.Import, *ast.ImportFrom:
			res, ok := resolutions[s]
			if !ok {
				out = append(out, s)
				continue
			}
			if res.Action == Delete {
				continue
			}
			if res.Action == PassThrough {
				if topLevel {
					// Hoisted by collectHoistedImports, which reads the same
					// statement out of the original file.Body before this
					// rewrite ran — keeping it here too would duplicate it
					// (spec §4.H.2: hoisted means moved, not copied).
					continue
				}
				out = append(out, s)
				continue
			}
			// ReplaceWithInit: every reference to an imported name was
			// already rewritten (by renameExpr's ctx.wrapped lookup) into a
			// direct handle/attribute access, so only the init call itself
			// needs to survive in the import statement's place.
			base := baseOf(s)
			out = append(out, &ast.Assign{
				Base:    base,
				Targets: []ast.Expr{&ast.Name{Base: base, Id: res.Handle}},
				Value: &ast.Call{
					Base: base,
					Func: &ast.Name{Base: base, Id: "__init_" + res.Handle},
				},
			})
		case *ast.Global:
			continue // declaration removed; refs already rewritten to the module binding
		case *ast.FunctionDef:
			n.Body = rewriteImportsAndGlobalsAt(n.Body, resolutions, false)
			out = append(out, n)
		case *ast.ClassDef:
			n.Body = rewriteImportsAndGlobalsAt(n.Body, resolutions, false)
			out = append(out, n)
		case *ast.If:
			n.Body = rewriteImportsAndGlobalsAt(n.Body, resolutions, false)
			n.Orelse = rewriteImportsAndGlobalsAt(n.Orelse, resolutions, false)
			out = append(out, n)
		case *ast.For:
			n.Body = rewriteImportsAndGlobalsAt(n.Body, resolutions, false)
			n.Orelse = rewriteImportsAndGlobalsAt(n.Orelse, resolutions, false)
			out = append(out, n)
		case *ast.While:
			n.Body = rewriteImportsAndGlobalsAt(n.Body, resolutions, false)
			n.Orelse = rewriteImportsAndGlobalsAt(n.Orelse, resolutions, false)
			out = append(out, n)
		case *ast.With:
			n.Body = rewriteImportsAndGlobalsAt(n.Body, resolutions, false)
			out = append(out, n)
		case *ast.Try:
			n.Body = rewriteImportsAndGlobalsAt(n.Body, resolutions, false)
			for i := range n.Handlers {
				n.Handlers[i].Body = rewriteImportsAndGlobalsAt(n.Handlers[i].Body, resolutions, false)
			}
			n.Orelse = rewriteImportsAndGlobalsAt(n.Orelse, resolutions, false)
			n.Finally = rewriteImportsAndGlobalsAt(n.Finally, resolutions, false)
			out = append(out, n)
		default:
			out = append(out, s)
		}
	}
	return out
}

func baseOf(s ast.Stmt) ast.Base {
	return ast.Base{Pos: s.Position()}
}
