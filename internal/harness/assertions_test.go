package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sharedSrc = `package: demo
defs:
  - name: sq
    body:
      where:
        body: {mult: [y, y]}
        defs:
          - name: x
            body: {given: int}
          - name: y
            body: {add: [x, 1]}
`

func TestAssertSourceContains(t *testing.T) {
	src := "package demo\n\nfunc a() {}\n"
	assert.NoError(t, assertSourceContains(src, Assertion{Type: AssertSourceContains, Text: "func a()"}))

	err := assertSourceContains(src, Assertion{Type: AssertSourceContains, Text: "func b()"})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertSourceContains, ae.Type)
	assert.Equal(t, "not found", ae.Actual)
}

func TestAssertSourceExcludes(t *testing.T) {
	src := "t0 := x\nt0 := y\n"
	assert.NoError(t, assertSourceExcludes(src, Assertion{Type: AssertSourceExcludes, Text: "t1"}))

	err := assertSourceExcludes(src, Assertion{Type: AssertSourceExcludes, Text: "t0"})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "found 2 time(s)", ae.Actual)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertFunctionCount,
		Expected: "2 function(s)",
		Actual:   "1 function(s)",
		Source:   "package demo\n\nfunc a() {}\n",
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: function_count\n")
	assert.Contains(t, msg, "  Expected: 2 function(s)\n")
	assert.Contains(t, msg, "  Actual: 1 function(s)\n")
	assert.Contains(t, msg, "    1  package demo\n")
	assert.Contains(t, msg, "    3  func a() {}\n")
	assert.NotContains(t, msg, "  4  ")
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "shared",
		Description: "d",
		Source:      sharedSrc,
		Assertions: []Assertion{
			{Type: AssertFunctionCount, Count: 1},
			{Type: AssertSharedCount, Count: 1},
			{Type: AssertSourceContains, Text: "t0 := x + int64(1)"},
			{Type: AssertSourceExcludes, Text: "func y("},
			{Type: AssertRebuildStable},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "shared",
		Description: "d",
		Source:      sharedSrc,
		Assertions: []Assertion{
			{Type: AssertFunctionCount, Count: 1},
			{Type: AssertSharedCount, Count: 3},
			{Type: AssertSourceContains, Text: "nowhere"},
		},
	})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Expected: 3 shared value(s)")
	assert.Contains(t, result.Errors[0], "Actual: 1 shared value(s)")
	assert.Contains(t, result.Errors[1], `source containing "nowhere"`)
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	s := &Scenario{Name: "one", Description: "d", Source: constSrc}
	result, err := Run(s)
	require.NoError(t, err)

	h := &Harness{}
	s.Assertions = []Assertion{{Type: "final_state"}}
	errs := h.EvaluateAssertions(context.Background(), s, result)
	require.Len(t, errs, 1)
	assert.Equal(t, `assertion[0]: unknown assertion type "final_state"`, errs[0])
}

// TestRebuildStable_ChangedDocument tests that the rebuild check notices a
// document that changes between compiles.
func TestRebuildStable_ChangedDocument(t *testing.T) {
	s := &Scenario{Name: "one", Description: "d", Source: constSrc}
	result, err := Run(s)
	require.NoError(t, err)

	h, err := newHarness()
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	first, err := h.compile(context.Background(), s)
	require.NoError(t, err)
	result.Package = first

	s.Source = constSrc + "  - name: two\n    body: 2\n"
	err = h.assertRebuildStable(context.Background(), s, result)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Actual, "source differs")
	assert.Contains(t, ae.Actual, "registered as p@v2, first build was p@v1")
	assert.Contains(t, ae.Actual, "registry created a new version")
	assert.Contains(t, ae.Actual, "1 build id(s) allocated")
}
