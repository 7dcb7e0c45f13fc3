package symbol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/expr"
)

// stepper finishes after a fixed number of passes and records the passes it
// was built in.
type stepper struct {
	name   string
	needs  int
	passes []int
}

func (s *stepper) Build(pass int) bool {
	if len(s.passes) == s.needs {
		panic(fmt.Sprintf("%s built after finishing", s.name))
	}
	s.passes = append(s.passes, pass)
	return len(s.passes) == s.needs
}

func (s *stepper) Label() string   { return s.name }
func (s *stepper) Span() diag.Span { return diag.At("s.stig", s.needs, 1) }

// TestSchedule_Termination tests that N items needing at most K passes take
// at most N*K invocations and are never built after finishing.
func TestSchedule_Termination(t *testing.T) {
	items := []*stepper{
		{name: "a", needs: 1},
		{name: "b", needs: 3},
		{name: "c", needs: 2},
		{name: "d", needs: 1},
	}
	builders := make([]Builder, len(items))
	for i, it := range items {
		builders[i] = it
	}

	var errs diag.List
	st := Schedule(builders, 3, errs.Add)

	require.NoError(t, errs.Err())
	assert.Equal(t, 3, st.Passes)
	assert.Equal(t, 1+3+2+1, st.Invocations)
	assert.LessOrEqual(t, st.Invocations, len(items)*3)
	assert.Equal(t, 0, st.Unfinished)
	assert.Equal(t, []int{1, 2, 3}, items[1].passes, "passes run in order")
	assert.Equal(t, []int{1}, items[3].passes)
}

// TestSchedule_StopsEarly tests that no pass runs once everything finished.
func TestSchedule_StopsEarly(t *testing.T) {
	a := &stepper{name: "a", needs: 1}
	st := Schedule([]Builder{a}, 10, nil)
	assert.Equal(t, 1, st.Passes)
	assert.Equal(t, 1, st.Invocations)
}

// TestSchedule_NotConverged tests the max-pass guard.
func TestSchedule_NotConverged(t *testing.T) {
	stuck := &stepper{name: "stuck", needs: 100}
	ok := &stepper{name: "ok", needs: 2}

	var errs diag.List
	st := Schedule([]Builder{stuck, ok}, 3, errs.Add)

	assert.Equal(t, 3, st.Passes)
	assert.Equal(t, 3+2, st.Invocations)
	assert.Equal(t, 1, st.Unfinished)
	require.Equal(t, 1, errs.Len())
	e := errs.Errors()[0]
	assert.Equal(t, diag.KindConvergence, e.Kind)
	assert.Equal(t, diag.ErrNotConverged, e.Code)
	assert.Equal(t, "stuck did not finish within 3 passes", e.Message)
}

// TestSchedule_DefStates tests the function state machine under the
// scheduler.
func TestSchedule_DefStates(t *testing.T) {
	f := newFixture(t)
	d := f.fn("d", 1, func(*Def) expr.Expr { return expr.NewInt(at(1), 1) })

	assert.False(t, d.Build(1))
	assert.Equal(t, Bound, d.State())
	assert.Nil(t, d.Result())
	assert.False(t, d.Build(2))
	assert.Equal(t, Typed, d.State())
	assert.Same(t, f.eng.Int(), d.Result())
	assert.True(t, d.Build(3))
	assert.Equal(t, Finished, d.State())
	assert.True(t, d.Build(4))

	f2 := newFixture(t)
	f2.fn("a", 1, func(*Def) expr.Expr { return expr.NewInt(at(1), 1) })
	f2.fn("b", 2, func(*Def) expr.Expr { return expr.NewInt(at(2), 2) })
	st := f2.tab.Build(DefaultMaxPasses)
	assert.Equal(t, Stats{Passes: 3, Invocations: 6}, st)
}
