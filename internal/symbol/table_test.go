package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/expr"
	"github.com/roach88/stigc/internal/types"
)

func at(line int) diag.Span { return diag.At("t.stig", line, 1) }

type fixture struct {
	t    *testing.T
	tab  *Table
	eng  *types.Engine
	pkg  ScopeID
	errs *diag.List
}

func newFixture(t *testing.T) *fixture {
	errs := &diag.List{}
	eng := types.NewEngine()
	tab := NewTable(eng, errs.Add)
	return &fixture{t: t, tab: tab, eng: eng, pkg: tab.NewScope(tab.Universe(), expr.NoDef), errs: errs}
}

// fn declares a top-level function whose body is built by body.
func (f *fixture) fn(name string, line int, body func(d *Def) expr.Expr) *Def {
	d, err := f.tab.Declare(f.pkg, KindFunc, name, at(line), expr.NoDef)
	require.NoError(f.t, err)
	d.SetBody(body(d))
	return d
}

func (f *fixture) ref(scope ScopeID, from *Def, name string, line int) expr.Expr {
	return expr.NewRef(at(line), f.tab.NewRef(scope, from.ID(), name, at(line)))
}

// TestReferenceRoundTrip tests that a reference resolves in either
// declaration order.
func TestReferenceRoundTrip(t *testing.T) {
	for _, barFirst := range []bool{true, false} {
		f := newFixture(t)
		mkBar := func() *Def {
			return f.fn("bar", 1, func(*Def) expr.Expr { return expr.NewInt(at(1), 42) })
		}
		mkFoo := func() *Def {
			return f.fn("foo", 2, func(d *Def) expr.Expr { return f.ref(f.pkg, d, "bar", 2) })
		}
		var bar, foo *Def
		if barFirst {
			bar, foo = mkBar(), mkFoo()
		} else {
			foo, bar = mkFoo(), mkBar()
		}

		st := f.tab.Build(DefaultMaxPasses)
		require.NoError(t, f.errs.Err())
		assert.Equal(t, 0, st.Unfinished)
		assert.Same(t, f.eng.Int(), foo.Result())
		assert.Same(t, bar.Result(), foo.Result())
		assert.Equal(t, []DefID{bar.ID()}, foo.Preds())
		assert.Equal(t, []DefID{foo.ID()}, bar.Referrers())
		assert.Equal(t, Finished, foo.State())
		assert.Equal(t, Finished, bar.State())
	}
}

// TestGivenParams tests that givens become parameters of their function.
func TestGivenParams(t *testing.T) {
	f := newFixture(t)
	foo, err := f.tab.Declare(f.pkg, KindFunc, "foo", at(1), expr.NoDef)
	require.NoError(t, err)
	local := f.tab.NewScope(f.pkg, foo.ID())
	x, err := f.tab.Declare(local, KindGiven, "x", at(1), foo.ID())
	require.NoError(t, err)
	x.SetSpec(f.tab.AtomSpec(types.Int, at(1)))
	body := f.ref(local, foo, "x", 1)
	foo.SetBody(expr.NewWhere(at(1), body, []DefID{x.ID()}))

	caller := f.fn("caller", 2, func(d *Def) expr.Expr {
		link := f.tab.NewRef(f.pkg, d.ID(), "foo", at(2))
		return expr.NewCall(at(2), link, []string{"x"}, []expr.Expr{expr.NewInt(at(2), 7)})
	})

	f.tab.Build(DefaultMaxPasses)
	require.NoError(t, f.errs.Err())

	sig, err := f.tab.Signature(foo.ID())
	require.NoError(t, err)
	assert.Equal(t, []types.Field{{Name: "x", Type: f.eng.Int()}}, sig.Params)
	assert.Same(t, f.eng.Int(), sig.Result)
	assert.Same(t, f.eng.Int(), f.tab.Typer().TypeOf(body))
	assert.Same(t, f.eng.Int(), caller.Result())
	assert.Equal(t, []DefID{x.ID()}, foo.Params())
}

// TestUnresolved tests that an unknown name is reported once.
func TestUnresolved(t *testing.T) {
	f := newFixture(t)
	foo := f.fn("foo", 3, func(d *Def) expr.Expr {
		return expr.NewBinary(at(3), types.OpAdd, f.ref(f.pkg, d, "nope", 3), expr.NewInt(at(3), 1))
	})
	f.tab.Build(DefaultMaxPasses)

	require.Equal(t, 1, f.errs.Len())
	e := f.errs.Errors()[0]
	assert.Equal(t, diag.KindName, e.Kind)
	assert.Equal(t, diag.ErrUnresolved, e.Code)
	assert.Contains(t, e.Message, "nope")
	assert.True(t, foo.Result().IsUnknown())
}

// TestRecursion tests that self and mutual recursion fail typing and are
// reported as cycles.
func TestRecursion(t *testing.T) {
	f := newFixture(t)
	f.fn("self", 1, func(d *Def) expr.Expr {
		return expr.NewBinary(at(1), types.OpAdd, f.ref(f.pkg, d, "self", 1), expr.NewInt(at(1), 1))
	})
	f.fn("a", 2, func(d *Def) expr.Expr { return f.ref(f.pkg, d, "b", 2) })
	f.fn("b", 3, func(d *Def) expr.Expr { return f.ref(f.pkg, d, "a", 3) })
	f.fn("leaf", 4, func(*Def) expr.Expr { return expr.NewInt(at(4), 1) })

	f.tab.Build(DefaultMaxPasses)
	require.Equal(t, 2, f.errs.Len())
	for _, e := range f.errs.Errors() {
		assert.Equal(t, diag.ErrRecursive, e.Code)
	}

	warnings := AnalyzeCycles(f.tab)
	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"self", "self"}, warnings[0].Path)
	assert.Equal(t, "self references itself", warnings[0].Message)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[1].Path)
	assert.Equal(t, "recursive definitions: a -> b -> a", warnings[1].Message)
}

// TestAnalyzeCycles_Acyclic tests that a DAG yields no warnings.
func TestAnalyzeCycles_Acyclic(t *testing.T) {
	f := newFixture(t)
	f.fn("a", 1, func(d *Def) expr.Expr { return f.ref(f.pkg, d, "b", 1) })
	f.fn("b", 2, func(*Def) expr.Expr { return expr.NewInt(at(2), 1) })
	f.tab.Build(DefaultMaxPasses)

	assert.Empty(t, AnalyzeCycles(f.tab))
	assert.NotNil(t, AnalyzeCycles(f.tab))
}

// TestRemove tests that removal deregisters symmetrically and that bound
// references fail afterwards.
func TestRemove(t *testing.T) {
	f := newFixture(t)
	bar := f.fn("bar", 1, func(*Def) expr.Expr { return expr.NewInt(at(1), 1) })
	baz := f.fn("baz", 2, func(*Def) expr.Expr { return expr.NewInt(at(2), 2) })
	foo := f.fn("foo", 3, func(d *Def) expr.Expr {
		return expr.NewBinary(at(3), types.OpAdd, f.ref(f.pkg, d, "bar", 3), f.ref(f.pkg, d, "baz", 3))
	})
	for _, d := range []*Def{bar, baz, foo} {
		d.Build(1)
	}
	require.Equal(t, []DefID{foo.ID()}, bar.Referrers())

	f.tab.Remove(foo.ID())
	assert.Empty(t, bar.Referrers())
	assert.Empty(t, baz.Referrers())
	assert.Nil(t, f.tab.Def(foo.ID()))
	_, found := f.tab.Lookup(f.pkg, "foo")
	assert.False(t, found)

	f.tab.Remove(bar.ID())
	_, err := f.tab.Signature(bar.ID())
	assert.Error(t, err)
	assert.NotContains(t, f.tab.Scope(f.pkg).Defs(), bar.ID())
}

// TestRemoveScope tests that removing a where scope removes its givens from
// the function's parameters.
func TestRemoveScope(t *testing.T) {
	f := newFixture(t)
	fn := f.fn("fn", 1, func(*Def) expr.Expr { return expr.NewInt(at(1), 0) })
	local := f.tab.NewScope(f.pkg, fn.ID())
	x, err := f.tab.Declare(local, KindGiven, "x", at(1), fn.ID())
	require.NoError(t, err)
	x.SetSpec(f.tab.AtomSpec(types.Str, at(1)))
	inner := f.tab.NewScope(local, fn.ID())
	y, err := f.tab.Declare(inner, KindFunc, "y", at(2), fn.ID())
	require.NoError(t, err)

	x.Build(1)
	require.Equal(t, []DefID{x.ID()}, fn.Params())

	f.tab.RemoveScope(local)
	assert.Empty(t, fn.Params())
	assert.Nil(t, f.tab.Def(y.ID()))
	assert.Nil(t, f.tab.Scope(inner))
	assert.Empty(t, f.tab.Scope(f.pkg).Children())
}

// TestDeclare_Duplicate tests NFC-normalized duplicate detection.
func TestDeclare_Duplicate(t *testing.T) {
	f := newFixture(t)
	_, err := f.tab.Declare(f.pkg, KindFunc, "caf\u00e9", at(1), expr.NoDef)
	require.NoError(t, err)

	_, err = f.tab.Declare(f.pkg, KindFunc, "cafe\u0301", at(2), expr.NoDef)
	var de *diag.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, diag.ErrDuplicateName, de.Code)

	inner := f.tab.NewScope(f.pkg, expr.NoDef)
	_, err = f.tab.Declare(inner, KindFunc, "caf\u00e9", at(3), expr.NoDef)
	assert.NoError(t, err, "shadowing an outer name is allowed")
}

// TestTypeAlias tests forward references to type aliases.
func TestTypeAlias(t *testing.T) {
	f := newFixture(t)
	fn := f.fn("fn", 1, func(*Def) expr.Expr { return expr.NewInt(at(1), 0) })
	local := f.tab.NewScope(f.pkg, fn.ID())
	p, err := f.tab.Declare(local, KindGiven, "p", at(1), fn.ID())
	require.NoError(t, err)
	p.SetSpec(f.tab.CompositeSpec(types.List, []*TypeSpec{f.tab.NamedSpec(local, p.ID(), "Pt", at(1))}, nil, nil, at(1)))

	pt, err := f.tab.Declare(f.pkg, KindTypeAlias, "Pt", at(2), expr.NoDef)
	require.NoError(t, err)
	pt.SetSpec(f.tab.CompositeSpec(types.Obj,
		[]*TypeSpec{f.tab.AtomSpec(types.Int, at(2)), f.tab.AtomSpec(types.Int, at(2))},
		[]string{"y", "x"}, nil, at(2)))

	f.tab.Build(DefaultMaxPasses)
	require.NoError(t, f.errs.Err())

	sig, err := f.tab.Signature(fn.ID())
	require.NoError(t, err)
	require.Len(t, sig.Params, 1)
	assert.Equal(t, "[<{.x: int, .y: int}>]", sig.Params[0].Type.String())

	var preds []string
	p.ForEachPred(1, func(d *Def) { preds = append(preds, d.Name()) })
	assert.Equal(t, []string{"Pt"}, preds)

	aliasSig, err := f.tab.Signature(pt.ID())
	require.NoError(t, err)
	assert.False(t, aliasSig.IsValue)
}

// TestTypeAlias_NotAType tests that naming a function as a type fails.
func TestTypeAlias_NotAType(t *testing.T) {
	f := newFixture(t)
	f.fn("n", 1, func(*Def) expr.Expr { return expr.NewInt(at(1), 0) })
	alias, err := f.tab.Declare(f.pkg, KindTypeAlias, "T", at(2), expr.NoDef)
	require.NoError(t, err)
	alias.SetSpec(f.tab.NamedSpec(f.pkg, alias.ID(), "n", at(2)))
	self, err := f.tab.Declare(f.pkg, KindTypeAlias, "S", at(3), expr.NoDef)
	require.NoError(t, err)
	self.SetSpec(f.tab.CompositeSpec(types.Opt, []*TypeSpec{f.tab.NamedSpec(f.pkg, self.ID(), "S", at(3))}, nil, nil, at(3)))

	f.tab.Build(DefaultMaxPasses)
	errs := f.errs.Errors()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Message, "n is not a type")
	assert.Equal(t, diag.ErrRecursive, errs[1].Code)
}

// TestBuiltins tests that built-ins are visible from every scope.
func TestBuiltins(t *testing.T) {
	f := newFixture(t)
	r := f.fn("r", 1, func(d *Def) expr.Expr {
		link := f.tab.NewRef(f.pkg, d.ID(), "random_int", at(1))
		return expr.NewCall(at(1), link, []string{"lo", "hi"}, []expr.Expr{expr.NewInt(at(1), 1), expr.NewInt(at(1), 6)})
	})
	n := f.fn("n", 2, func(d *Def) expr.Expr {
		link := f.tab.NewRef(f.pkg, d.ID(), "len", at(2))
		return expr.NewCall(at(2), link, []string{"s"}, []expr.Expr{expr.NewStr(at(2), "abc")})
	})
	now := f.fn("t", 3, func(d *Def) expr.Expr { return f.ref(f.pkg, d, "now", 3) })

	f.tab.Build(DefaultMaxPasses)
	require.NoError(t, f.errs.Err())
	assert.Same(t, f.eng.Int(), r.Result())
	assert.Same(t, f.eng.Int(), n.Result())
	assert.Same(t, f.eng.TimePnt(), now.Result())

	b, ok := LookupBuiltin("replace")
	require.True(t, ok)
	assert.Equal(t, "Replace", b.Go)
	_, ok = LookupBuiltin("nope")
	assert.False(t, ok)
	assert.Len(t, f.tab.Defs(), 3, "built-ins are not user definitions")
}

// TestSetBody_Once tests that a body cannot be replaced.
func TestSetBody_Once(t *testing.T) {
	f := newFixture(t)
	d := f.fn("d", 1, func(*Def) expr.Expr { return expr.NewInt(at(1), 0) })
	assert.Panics(t, func() { d.SetBody(expr.NewInt(at(1), 1)) })
}
