package synth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stigc/internal/cst"
	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/expr"
	"github.com/roach88/stigc/internal/symbol"
	"github.com/roach88/stigc/internal/types"
)

type unit struct {
	t     *testing.T
	pkg   *cst.Package
	tab   *symbol.Table
	syn   *Synthesizer
	scope symbol.ScopeID
	errs  *diag.List
}

func synthesize(t *testing.T, src string) *unit {
	t.Helper()
	pkg, err := cst.LoadYAML("s.yaml", []byte(src))
	require.NoError(t, err)
	errs := &diag.List{}
	tab := symbol.NewTable(types.NewEngine(), errs.Add)
	syn := New(tab, errs.Add)
	scope := syn.Package(pkg)
	tab.Build(symbol.DefaultMaxPasses)
	return &unit{t: t, pkg: pkg, tab: tab, syn: syn, scope: scope, errs: errs}
}

func (u *unit) def(name string) *symbol.Def {
	id, ok := u.tab.Lookup(u.scope, name)
	require.True(u.t, ok, "no definition %s", name)
	return u.tab.Def(id)
}

func (u *unit) typeOf(name string) string {
	return u.def(name).Result().String()
}

// TestWhereGiven tests the parameter-through-where scenario:
// foo = (x) where { x = given::(int); }.
func TestWhereGiven(t *testing.T) {
	u := synthesize(t, `package: demo
defs:
  - name: foo
    body:
      where:
        body: x
        defs:
          - name: x
            body: {given: int}
`)
	require.NoError(t, u.errs.Err())

	foo := u.def("foo")
	where, ok := foo.Body().(*expr.Where)
	require.True(t, ok)
	ref, ok := where.Body.(*expr.Ref)
	require.True(t, ok)

	eng := u.tab.Engine()
	typer := u.tab.Typer()
	assert.Same(t, eng.Int(), typer.TypeOf(ref))
	assert.Same(t, eng.Int(), typer.TypeOf(where))

	require.Len(t, where.Defs, 1)
	x := u.tab.Def(where.Defs[0])
	assert.Equal(t, symbol.KindGiven, x.Kind())
	assert.Equal(t, []expr.DefID{x.ID()}, foo.Params())

	sig, err := u.tab.Signature(foo.ID())
	require.NoError(t, err)
	assert.Equal(t, []types.Field{{Name: "x", Type: eng.Int()}}, sig.Params)
}

// TestBindingErrors tests that binder leaves outside their construct abort
// only their own definition.
func TestBindingErrors(t *testing.T) {
	u := synthesize(t, `package: p
defs:
  - name: a
    body: {add: [{that: ~}, 1]}
  - name: b
    body: {lt: [{lhs: ~}, 2]}
  - name: c
    body: {start: 0}
  - name: d
    body: {given: int}
  - name: ok
    body: {map: {seq: {range: [0, 3]}, body: {mult: [{that: ~}, 2]}}}
`)
	errs := u.errs.Errors()
	require.Len(t, errs, 4)
	wantCodes := []string{diag.ErrThatOutside, diag.ErrSortOutside, diag.ErrStartOutside, diag.ErrGivenOutside}
	for i, e := range errs {
		assert.Equal(t, diag.KindBinding, e.Kind)
		assert.Equal(t, wantCodes[i], e.Code)
	}
	for _, name := range []string{"a", "b", "c", "d"} {
		assert.Nil(t, u.def(name).Body(), name)
	}
	assert.Equal(t, "int*", u.typeOf("ok"))
}

// TestErrorAccumulation tests that independent name errors are all reported
// in source order.
func TestErrorAccumulation(t *testing.T) {
	u := synthesize(t, `package: p
defs:
  - name: a
    body: {add: [missing1, 1]}
  - name: fine
    body: 1
  - name: b
    body:
      where:
        body: {add: [1, missing2]}
        defs: []
`)
	errs := u.errs.Errors()
	require.Len(t, errs, 2)
	assert.Equal(t, diag.KindName, errs[0].Kind)
	assert.Contains(t, errs[0].Message, "missing1")
	assert.Equal(t, 4, errs[0].Span.Start.Line)
	assert.Contains(t, errs[1].Message, "missing2")
	assert.Equal(t, 10, errs[1].Span.Start.Line)
	assert.Equal(t, "int", u.typeOf("fine"))
}

// TestBuild_Idempotent tests that rebuilding returns the same IR and binds
// nothing new.
func TestBuild_Idempotent(t *testing.T) {
	u := synthesize(t, `package: p
defs:
  - name: bar
    body: 42
  - name: foo
    body: {add: [bar, bar]}
`)
	require.NoError(t, u.errs.Err())
	bar, foo := u.def("bar"), u.def("foo")
	defs := len(u.tab.Defs())
	body := foo.Body()

	assert.Equal(t, u.scope, u.syn.Package(u.pkg))
	assert.Same(t, foo, u.syn.Def(u.pkg.Defs[1], Context{Scope: u.scope}))
	assert.Same(t, body, u.syn.Build(u.pkg.Defs[1].Body, Context{Scope: u.scope, Owner: foo}))
	assert.Len(t, u.tab.Defs(), defs)
	assert.Equal(t, []expr.DefID{foo.ID()}, bar.Referrers())
	assert.Equal(t, []expr.DefID{bar.ID()}, foo.Preds())
	assert.Equal(t, "int", u.typeOf("foo"))
}

// TestConstructs tests typing of the sequence constructs and local
// functions.
func TestConstructs(t *testing.T) {
	u := synthesize(t, `package: p
defs:
  - name: total
    body: {reduce: {seq: {range: [0, 5]}, body: {add: [{start: 0}, {that: ~}]}}}
  - name: ordered
    body: {sort: {seq: {list: [3, 1, 2]}, less: {lt: [{lhs: ~}, {rhs: ~}]}}}
  - name: checked
    body: {assert: {value: 2.5, pred: {gt: [{that: ~}, 0]}}}
  - name: sq9
    body:
      where:
        body: {call: {fn: sq, args: {v: 3}}}
        defs:
          - name: sq
            body:
              where:
                body: {mult: [v, v]}
                defs:
                  - name: v
                    body: {given: real}
  - name: pts
    body: {obj: {x: {range: [0, 2]}, y: {str: a}}}
  - name: empty
    body: {dict: {key: str, val: {list: int}}}
  - name: stored
    body: {read: {addr: {addr: [{str: k}, {desc: 1}]}, type: Pt}}
  - name: Pt
    type: {obj: {n: str}}
  - name: fx
    body:
      effects:
        stmts: [{write: {addr: {addr: [1]}, value: {str: v}}}, {delete: {addr: [2]}}]
        result: {is_known: stored}
`)
	require.NoError(t, u.errs.Err())
	assert.Equal(t, "int", u.typeOf("total"))
	assert.Equal(t, "int*", u.typeOf("ordered"))
	assert.Equal(t, "real", u.typeOf("checked"))
	assert.Equal(t, "real", u.typeOf("sq9"))
	assert.Equal(t, "<{.x: int, .y: str}>*", u.typeOf("pts"))
	assert.Equal(t, "{str: [int]}", u.typeOf("empty"))
	assert.Equal(t, "<{.n: str}>?", u.typeOf("stored"))
	assert.Equal(t, "bool", u.typeOf("fx"))
}

// TestLiterals tests literal parsing, including malformed literals.
func TestLiterals(t *testing.T) {
	u := synthesize(t, `package: p
defs:
  - name: i
    body: {id: 0191A3C0-0000-7000-8000-000000000001}
  - name: when
    body: {time_pnt: "2024-05-01T12:00:00+02:00"}
  - name: dur
    body: {time_diff: 1h30m}
  - name: hex
    body: {int: "0x1f"}
  - name: bad
    body: {int: twelve}
`)
	errs := u.errs.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, diag.ErrBadLiteral, errs[0].Code)

	id := u.def("i").Body().(*expr.Lit)
	assert.Equal(t, "0191a3c0-0000-7000-8000-000000000001", id.Value)
	when := u.def("when").Body().(*expr.Lit)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), when.Value)
	assert.Equal(t, 90*time.Minute, u.def("dur").Body().(*expr.Lit).Value)
	assert.Equal(t, int64(31), u.def("hex").Body().(*expr.Lit).Value)
	assert.Equal(t, "time_pnt", u.typeOf("when"))
}

// TestDuplicates tests duplicate local names and object fields.
func TestDuplicates(t *testing.T) {
	u := synthesize(t, `package: p
defs:
  - name: w
    body:
      where:
        body: a
        defs:
          - name: a
            body: 1
          - name: a
            body: 2
  - name: o
    body: {obj: {x: 1}}
`)
	errs := u.errs.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, diag.ErrDuplicateName, errs[0].Code)
	assert.Equal(t, "int", u.typeOf("w"))
	assert.Len(t, u.def("w").Body().(*expr.Where).Defs, 1)
}
