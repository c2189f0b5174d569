// Package rename implements component G: computing a total, collision-free
// mapping from (module, original name) to emitted name, plus one synthetic
// module-handle identifier per Wrap module (spec §4.G).
package rename

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tinovyatkin/cribo/internal/graph"
	"github.com/tinovyatkin/cribo/internal/symbols"
)

// key identifies one row of the plan: a module and the name it binds there.
type key struct {
	Module graph.ModuleId
	Name   string
}

// Plan is the computed RenamePlan: total over every top-level binding of
// every reached first-party Inline module, plus a handle name per Wrap
// module. An identity entry (emitted == original) means "no rename".
type Plan struct {
	emitted map[key]string
	used    map[string]key // emitted name -> the (module, name) that claimed it first
	handles map[graph.ModuleId]string
}

// EmittedName returns the name m's binding of name should use in output.
// A key the plan has no row for (an import-bound name, a Wrap module's
// binding, or a module Compute never saw) maps to name itself.
func (p *Plan) EmittedName(m graph.ModuleId, name string) string {
	if n, ok := p.emitted[key{m, name}]; ok {
		return n
	}
	return name
}

// Handle returns the module-object identifier reserved for a Wrap module.
func (p *Plan) Handle(m graph.ModuleId) string {
	return p.handles[m]
}

// ModuleSlug exposes the short deterministic hash used to disambiguate a
// colliding name, for callers (e.g. tests, diagnostics) that want to predict
// an emitted name without re-running Compute.
func ModuleSlug(dottedName string) string {
	sum := sha1.Sum([]byte(dottedName))
	return hex.EncodeToString(sum[:])[:6]
}

// Compute builds the plan. order is the leaves-first Inline module order
// from graph.TopoOrder, NOT including entryID (the entry is handled first,
// separately, since its bindings are never renamed). wrapOrder is every
// Wrap module's ID, in any deterministic order (insertion order is fine —
// only a handle name is reserved, no collision plan needed beyond the
// names already used).
func Compute(entryID graph.ModuleId, order []graph.ModuleId, wrapOrder []graph.ModuleId, tables map[graph.ModuleId]*symbols.Table, dotted map[graph.ModuleId]string) *Plan {
	p := &Plan{
		emitted: make(map[key]string),
		used:    make(map[string]key),
		handles: make(map[graph.ModuleId]string),
	}

	if t, ok := tables[entryID]; ok {
		for _, name := range t.Order {
			p.claim(entryID, name, name, true)
		}
	}

	for _, m := range order {
		if m == entryID {
			continue
		}
		t, ok := tables[m]
		if !ok {
			continue
		}
		for _, name := range t.Order {
			// Import-bound names (`from x import y as z`) aren't a binding
			// of their own to rename: every reference resolves straight
			// through to the exporting module's own emitted name (or the
			// Wrap module's handle), computed in internal/bundler once this
			// plan is available. Assigning them an independent slot here
			// would let an alias and its real definition diverge into two
			// different identifiers whenever either module needs a
			// collision suffix.
			if b, ok := t.Lookup(name); ok && b.Kind == symbols.ImportBinding {
				continue
			}
			p.assign(m, name, dotted[m])
		}
	}

	for _, m := range wrapOrder {
		p.handles[m] = reserveHandle(p, m, dotted[m])
	}

	return p
}

// assign picks name's emitted form for module m, resolving a collision with
// an earlier module's binding of a *different* origin by appending a
// deterministic module-slug suffix, rehashing (lengthening the slug) on
// repeated collision (spec §4.G step 3).
func (p *Plan) assign(m graph.ModuleId, name, dottedName string) {
	candidate := name
	if owner, taken := p.used[candidate]; taken && !(owner.Module == m && owner.Name == name) {
		sum := sha1.Sum([]byte(dottedName))
		suffix := hex.EncodeToString(sum[:])
		slugLen := 6
		for {
			candidate = fmt.Sprintf("%s_%s", name, suffix[:slugLen])
			if owner, taken := p.used[candidate]; !taken || (owner.Module == m && owner.Name == name) {
				break
			}
			slugLen++
			if slugLen > 40 { // sha1 hex length; exhausted, fall back to module id
				candidate = fmt.Sprintf("%s_m%d", name, m)
				break
			}
		}
	}
	p.claim(m, name, candidate, false)
}

func (p *Plan) claim(m graph.ModuleId, name, emitted string, identity bool) {
	p.emitted[key{m, name}] = emitted
	p.used[emitted] = key{m, name}
}

func reserveHandle(p *Plan, m graph.ModuleId, dottedName string) string {
	base := "__module_" + strings.ReplaceAll(dottedName, ".", "_")
	candidate := base
	for {
		if owner, taken := p.used[candidate]; !taken || owner.Module == m {
			p.used[candidate] = key{Module: m, Name: "<handle>"}
			return candidate
		}
		candidate = base + "_" + ModuleSlug(dottedName+candidate)
	}
}
