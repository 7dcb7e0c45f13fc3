package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator returns predetermined build ids for testing.
//
// This enables golden comparison of registry output: the same sequence of
// registrations with the same generator produces identical rows.
//
// Thread-safety: FixedIDGenerator is safe for concurrent use via internal mutex.
type FixedIDGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDGenerator creates a generator that returns ids in order. With no
// ids it numbers builds "build-1", "build-2", ... forever.
//
// Example:
//
//	gen := NewFixedIDGenerator("b1", "b2")
//	gen.Generate() // "b1"
//	gen.Generate() // "b2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	return &FixedIDGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, to catch a test that registered more
// builds than it expected.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.idx++
	if len(g.ids) == 0 {
		return fmt.Sprintf("build-%d", g.idx)
	}
	if g.idx > len(g.ids) {
		panic("FixedIDGenerator: all ids exhausted")
	}
	return g.ids[g.idx-1]
}

// Count returns how many ids have been generated.
func (g *FixedIDGenerator) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.idx
}
