package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFixedIDGenerator_Sequence tests ids are returned in order.
func TestFixedIDGenerator_Sequence(t *testing.T) {
	gen := NewFixedIDGenerator("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.Equal(t, 2, gen.Count())
	assert.PanicsWithValue(t, "FixedIDGenerator: all ids exhausted", func() { gen.Generate() })
}

// TestFixedIDGenerator_Numbered tests the default numbering.
func TestFixedIDGenerator_Numbered(t *testing.T) {
	gen := NewFixedIDGenerator()
	assert.Equal(t, "build-1", gen.Generate())
	assert.Equal(t, "build-2", gen.Generate())
}

// TestFixedIDGenerator_Concurrent tests that concurrent callers never see the
// same id.
func TestFixedIDGenerator_Concurrent(t *testing.T) {
	gen := NewFixedIDGenerator()
	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := gen.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
	assert.Equal(t, n, gen.Count())
}
