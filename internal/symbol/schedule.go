package symbol

import (
	"github.com/roach88/stigc/internal/diag"
)

// DefaultMaxPasses is the largest number of passes any definition kind needs.
const DefaultMaxPasses = 3

// Builder is an item driven by Schedule.
type Builder interface {
	// Build performs the work of one pass and reports whether the item has
	// finished. A finished item is never built again.
	Build(pass int) bool
	Label() string
	Span() diag.Span
}

// Stats summarizes a Schedule run.
type Stats struct {
	Passes      int `json:"passes"`
	Invocations int `json:"invocations"`
	Unfinished  int `json:"unfinished"`
}

// Schedule drives every item through pass 1, then every unfinished item
// through pass 2, and so on, until all items finish or maxPasses passes have
// run. Work done by any item in pass n is therefore visible to every item in
// pass n+1 regardless of declaration order.
//
// For N items the scheduler makes at most N*maxPasses Build calls. Each item
// still unfinished at the end is reported as ErrNotConverged.
func Schedule(items []Builder, maxPasses int, report func(error)) Stats {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	var st Stats
	done := make([]bool, len(items))
	pending := len(items)
	for pass := 1; pass <= maxPasses && pending > 0; pass++ {
		st.Passes = pass
		for i, it := range items {
			if done[i] {
				continue
			}
			st.Invocations++
			if it.Build(pass) {
				done[i] = true
				pending--
			}
		}
	}
	st.Unfinished = pending
	for i, it := range items {
		if !done[i] && report != nil {
			report(diag.Errorf(diag.KindConvergence, diag.ErrNotConverged, it.Span(),
				"%s did not finish within %d passes", it.Label(), maxPasses))
		}
	}
	return st
}

// Build schedules every live user definition of the table.
func (t *Table) Build(maxPasses int) Stats {
	defs := t.Defs()
	items := make([]Builder, len(defs))
	for i, d := range defs {
		items[i] = d
	}
	return Schedule(items, maxPasses, t.report)
}
