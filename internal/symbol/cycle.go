package symbol

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/stigc/internal/diag"
)

// CycleWarning describes a group of definitions that reference each other.
//
// Recursion already fails typing with ErrRecursive at the reference that
// closed the loop; the warning adds the whole path for the reader.
type CycleWarning struct {
	Path    []string  `json:"path"`    // ["a", "b", "a"]
	Message string    `json:"message"` // Human-readable description
	Span    diag.Span `json:"span"`    // First definition of the path
}

// AnalyzeCycles finds strongly connected components of the reference graph
// between the table's functions.
//
// The graph has an edge from each function to every definition it bound a
// reference to. Each component with more than one member, or a single member
// that references itself, becomes one warning. Functions are visited in
// declaration order, so the output is deterministic. A graph without cycles
// yields an empty list.
func AnalyzeCycles(t *Table) []CycleWarning {
	var nodes []DefID
	graph := make(depGraph)
	for _, d := range t.Defs() {
		if d.kind != KindFunc {
			continue
		}
		nodes = append(nodes, d.id)
		var out []DefID
		for _, p := range d.preds {
			if pd := t.Def(p); pd != nil && pd.kind == KindFunc {
				out = append(out, p)
			}
		}
		graph[d.id] = out
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(nodes, graph) {
		if len(scc) > 1 || graph.hasSelfLoop(scc[0]) {
			warnings = append(warnings, sccToWarning(t, scc, graph))
		}
	}
	return warnings
}

// depGraph maps a function to the functions it references.
type depGraph map[DefID][]DefID

func (g depGraph) hasSelfLoop(node DefID) bool {
	return slices.Contains(g[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(nodes []DefID, graph depGraph) [][]DefID {
	var (
		index   = 0
		stack   []DefID
		indices = make(map[DefID]int)
		lowlink = make(map[DefID]int)
		onStack = make(map[DefID]bool)
		sccs    [][]DefID
	)

	var strongConnect func(DefID)
	strongConnect = func(v DefID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is the root of a component: pop it.
		if lowlink[v] == indices[v] {
			var scc []DefID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToWarning(t *Table, scc []DefID, graph depGraph) CycleWarning {
	path := cyclePath(scc, graph)
	names := make([]string, len(path))
	for i, id := range path {
		names[i] = t.defs[id].name
	}
	msg := fmt.Sprintf("recursive definitions: %s", strings.Join(names, " -> "))
	if len(scc) == 1 {
		msg = fmt.Sprintf("%s references itself", names[0])
	}
	return CycleWarning{Path: names, Message: msg, Span: t.defs[path[0]].span}
}

// cyclePath walks edges inside the component from its first member until it
// returns there.
func cyclePath(scc []DefID, graph depGraph) []DefID {
	start := scc[0]
	if len(scc) == 1 {
		return []DefID{start, start}
	}
	member := make(map[DefID]bool, len(scc))
	for _, id := range scc {
		member[id] = true
	}
	path := []DefID{start}
	visited := map[DefID]bool{}
	for current := start; ; {
		visited[current] = true
		next := DefID(0)
		for _, w := range graph[current] {
			if member[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == 0 {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		current = next
	}
}
