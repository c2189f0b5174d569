// Package cycle implements component E: Tarjan's algorithm over the
// module-level import graph, then decides per strongly-connected component
// whether its members can be inlined or must be wrapped (spec §4.E).
package cycle

import (
	"github.com/tinovyatkin/cribo/internal/ast"
	"github.com/tinovyatkin/cribo/internal/ciboerr"
	"github.com/tinovyatkin/cribo/internal/graph"
)

// Disposition is how the emitter must place a module in the output.
type Disposition int

const (
	Inline Disposition = iota
	Wrap
)

func (d Disposition) String() string {
	if d == Wrap {
		return "Wrap"
	}
	return "Inline"
}

// Result is the per-ModuleId disposition decided by Analyze, plus the
// discovered SCCs for diagnostics and for the graph-closure invariant check.
type Result struct {
	Disposition map[graph.ModuleId]Disposition
	SCCs        [][]graph.ModuleId
}

// Analyze computes SCCs over g's module-level edges only — function-level
// edges never participate in cycles because they're lazily evaluated at
// runtime (spec §4.E) — and marks every member of a non-inlinable SCC Wrap.
// temporalParadox reports, for a given SCC's member IDs, whether any
// intra-SCC edge binds a class or module-level constant computed from the
// other side; when it does, Analyze returns an UnresolvableCycle error.
func Analyze(g *graph.Graph, temporalParadox func(members []graph.ModuleId) bool) (*Result, error) {
	adj := moduleLevelAdjacency(g)
	sccs := tarjan(len(g.Modules), adj)

	res := &Result{Disposition: make(map[graph.ModuleId]Disposition, len(g.Modules))}
	for _, scc := range sccs {
		res.SCCs = append(res.SCCs, scc)

		if len(scc) == 1 && !selfLoop(adj, scc[0]) {
			res.Disposition[scc[0]] = Inline
			continue
		}

		if inlinable(g, scc) {
			for _, m := range scc {
				res.Disposition[m] = Inline
			}
			continue
		}

		if temporalParadox != nil && temporalParadox(scc) {
			names := make([]string, len(scc))
			for i, m := range scc {
				names[i] = g.Modules[m].DottedName
			}
			return nil, ciboerr.Wrap(ciboerr.UnresolvableCycle(names))
		}

		for _, m := range scc {
			res.Disposition[m] = Wrap
		}
	}
	return res, nil
}

func selfLoop(adj map[graph.ModuleId][]graph.ModuleId, m graph.ModuleId) bool {
	for _, to := range adj[m] {
		if to == m {
			return true
		}
	}
	return false
}

// inlinable reports whether every intra-SCC edge is a bare ImportModule (no
// from-import of a symbol) — the SCC can then be topologically flattened in
// discovery order without side effects crossing (spec §4.E).
func inlinable(g *graph.Graph, scc []graph.ModuleId) bool {
	members := make(map[graph.ModuleId]bool, len(scc))
	for _, m := range scc {
		members[m] = true
	}
	for _, e := range g.Edges {
		if e.Scope != ast.ModuleLevel {
			continue
		}
		if !members[e.From] || !members[e.To] {
			continue
		}
		if e.Kind != graph.ImportModuleEdge {
			return false
		}
	}
	return true
}

func moduleLevelAdjacency(g *graph.Graph) map[graph.ModuleId][]graph.ModuleId {
	adj := make(map[graph.ModuleId][]graph.ModuleId, len(g.Modules))
	for _, e := range g.Edges {
		if e.Scope == ast.ModuleLevel {
			adj[e.From] = append(adj[e.From], e.To)
		}
	}
	return adj
}

// tarjan computes SCCs over n nodes (0..n-1) given an adjacency map, in a
// deterministic order: nodes are visited 0..n-1, and each SCC's members are
// returned in the order Tarjan's stack unwinds them.
func tarjan(n int, adj map[graph.ModuleId][]graph.ModuleId) [][]graph.ModuleId {
	index := 0
	var stack []graph.ModuleId
	indices := make(map[graph.ModuleId]int)
	lowlink := make(map[graph.ModuleId]int)
	onStack := make(map[graph.ModuleId]bool)
	var sccs [][]graph.ModuleId

	var strongconnect func(v graph.ModuleId)
	strongconnect = func(v graph.ModuleId) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, visited := indices[w]; !visited {
				strongconnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []graph.ModuleId
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for i := 0; i < n; i++ {
		v := graph.ModuleId(i)
		if _, visited := indices[v]; !visited {
			strongconnect(v)
		}
	}
	return sccs
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
