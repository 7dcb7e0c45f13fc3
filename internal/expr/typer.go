package expr

import (
	"fmt"

	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/types"
)

// Signature describes what a definition offers to the expressions that
// reference it. Params is empty for values; a definition that is not a value
// (a type alias) cannot be referenced from an expression.
type Signature struct {
	Name    string
	Params  []types.Field
	Result  *types.Type
	IsValue bool
}

// Defs gives the typer access to the definitions that references resolve to.
// The symbol layer implements it; Signature may compute a definition's type
// on demand.
type Defs interface {
	Signature(id DefID) (*Signature, error)
}

// Typer computes and memoizes expression types.
//
// A node whose rule rejects its operands is reported once through Report and
// memoized as unknown, which is absorbing, so a single mistake is reported
// once rather than at every enclosing node.
type Typer struct {
	Engine *types.Engine
	Defs   Defs
	Report func(error)
}

// TypeOf returns the type of e, computing it on first use.
func (t *Typer) TypeOf(e Expr) *types.Type {
	b := e.base()
	switch b.state {
	case typed:
		return b.typ
	case typing:
		t.report(diag.Errorf(diag.KindType, diag.ErrRecursive, e.Span(), "expression type depends on itself"))
		return t.Engine.Unknown()
	}
	b.state = typing
	typ, err := t.compute(e)
	if err != nil {
		t.report(err)
		typ = t.Engine.Unknown()
	}
	b.typ = typ
	b.state = typed
	return typ
}

func (t *Typer) report(err error) {
	if t.Report != nil {
		t.Report(err)
	}
}

func constructErr(span diag.Span, format string, args ...any) error {
	return diag.Errorf(diag.KindType, diag.ErrConstruct, span, format, args...)
}

func (t *Typer) compute(e Expr) (*types.Type, error) {
	eng := t.Engine
	switch n := e.(type) {
	case *Lit:
		return t.atom(n.Kind), nil

	case *Ref:
		sig, err := t.signature(n.Link, n.Span())
		if err != nil {
			return nil, err
		}
		if len(sig.Params) > 0 {
			return nil, diag.Errorf(diag.KindType, diag.ErrBadArgs, n.Span(), "%s takes arguments and must be called", sig.Name)
		}
		return sig.Result, nil

	case *That:
		src := t.TypeOf(n.Binder.Source)
		if !n.Binder.Each {
			return src, nil
		}
		return t.elemOf(src, n.Span(), "that")

	case *SortArg:
		return t.elemOf(t.TypeOf(n.Binder.Source), n.Span(), n.Side.String())

	case *Start:
		return t.TypeOf(n.Init), nil

	case *Unary:
		return eng.ResolveUnary(n.Op, t.TypeOf(n.Operand), n.Span())

	case *Binary:
		return eng.ResolveBinary(n.Op, t.TypeOf(n.Lhs), t.TypeOf(n.Rhs), n.Span())

	case *If:
		then, els := t.TypeOf(n.Then), t.TypeOf(n.Else)
		if err := t.wantBool(n.Cond, "if condition"); err != nil {
			return nil, err
		}
		return eng.Join("if/else branches", then, els, n.Span())

	case *Filter:
		elem, err := t.elemOf(t.TypeOf(n.Seq), n.Seq.Span(), "filter")
		if err != nil {
			return nil, err
		}
		if err := t.wantBool(n.Pred, "filter predicate"); err != nil {
			return nil, err
		}
		return eng.Seq(elem), nil

	case *Map:
		if _, err := t.elemOf(t.TypeOf(n.Seq), n.Seq.Span(), "map"); err != nil {
			return nil, err
		}
		return eng.Seq(t.TypeOf(n.Body)), nil

	case *Reduce:
		if _, err := t.elemOf(t.TypeOf(n.Seq), n.Seq.Span(), "reduce"); err != nil {
			return nil, err
		}
		body := t.TypeOf(n.Body)
		if n.Starts.Start == nil {
			return nil, constructErr(n.Span(), "reduce body has no start")
		}
		init := t.TypeOf(n.Starts.Start)
		if !eng.Accepts(body, init) {
			return nil, &types.MismatchError{What: "reduce start and body", Lhs: init, Rhs: body, Span: n.Span()}
		}
		return body, nil

	case *Sort:
		elem, err := t.elemOf(t.TypeOf(n.Seq), n.Seq.Span(), "sort")
		if err != nil {
			return nil, err
		}
		if err := t.wantBool(n.Less, "sort comparison"); err != nil {
			return nil, err
		}
		return eng.Seq(elem), nil

	case *Assert:
		v := t.TypeOf(n.Value)
		if err := t.wantBool(n.Pred, "assert predicate"); err != nil {
			return nil, err
		}
		return v, nil

	case *Ctor:
		return t.ctor(n)

	case *Member:
		return t.member(n)

	case *Call:
		return t.call(n)

	case *Range:
		for _, bound := range []Expr{n.Lo, n.Hi} {
			bt := t.TypeOf(bound)
			if bt.Kind() != types.Int && !bt.IsUnknown() {
				return nil, constructErr(bound.Span(), "range bound must be int, not %s", bt)
			}
		}
		return eng.Seq(eng.Int()), nil

	case *Where:
		return t.TypeOf(n.Body), nil

	case *Read:
		if err := t.wantAddr(n.Addr); err != nil {
			return nil, err
		}
		val, err := n.Val.Type()
		if err != nil {
			return nil, err
		}
		return eng.Opt(val), nil

	case *Write:
		if err := t.wantAddr(n.Addr); err != nil {
			return nil, err
		}
		t.TypeOf(n.Value)
		return eng.Bool(), nil

	case *Delete:
		if err := t.wantAddr(n.Addr); err != nil {
			return nil, err
		}
		return eng.Bool(), nil

	case *Effects:
		for _, s := range n.Stmts {
			t.TypeOf(s)
		}
		return t.TypeOf(n.Result), nil
	}
	diag.Internalf(e.Span(), "unhandled expression %T", e)
	return nil, nil
}

func (t *Typer) atom(k types.Kind) *types.Type {
	eng := t.Engine
	switch k {
	case types.Bool:
		return eng.Bool()
	case types.Int:
		return eng.Int()
	case types.Real:
		return eng.Real()
	case types.Str:
		return eng.Str()
	case types.ID:
		return eng.ID()
	case types.TimePnt:
		return eng.TimePnt()
	case types.TimeDiff:
		return eng.TimeDiff()
	}
	diag.Internalf(diag.Span{}, "literal of kind %s", k)
	return nil
}

func (t *Typer) signature(link Link, span diag.Span) (*Signature, error) {
	id, err := link.Resolve()
	if err != nil {
		return nil, err
	}
	if t.Defs == nil {
		diag.Internalf(span, "typer has no definitions to resolve %q", link.Name())
	}
	sig, err := t.Defs.Signature(id)
	if err != nil {
		return nil, err
	}
	if !sig.IsValue {
		return nil, constructErr(span, "%s is a type, not a value", sig.Name)
	}
	return sig, nil
}

// elemOf returns the element type of a sequence, list or set.
func (t *Typer) elemOf(src *types.Type, span diag.Span, what string) (*types.Type, error) {
	switch src.Kind() {
	case types.Unknown:
		return src, nil
	case types.Seq, types.List, types.Set:
		return src.Elem(), nil
	}
	return nil, constructErr(span, "%s needs a sequence, not %s", what, src)
}

func (t *Typer) wantBool(e Expr, what string) error {
	bt := t.TypeOf(e)
	if bt.IsUnknown() || bt.Kind() == types.Bool {
		return nil
	}
	return constructErr(e.Span(), "%s must be bool, not %s", what, bt)
}

func (t *Typer) wantAddr(e Expr) error {
	at := t.TypeOf(e)
	if at.IsUnknown() || at.Kind() == types.Addr {
		return nil
	}
	return constructErr(e.Span(), "database key must be an address, not %s", at)
}

func (t *Typer) ctor(n *Ctor) (*types.Type, error) {
	eng := t.Engine
	elems := make([]*types.Type, len(n.Elems))
	for i, el := range n.Elems {
		elems[i] = t.TypeOf(el)
	}
	var hint *types.Type
	if n.Hint != nil {
		h, err := n.Hint.Type()
		if err != nil {
			return nil, err
		}
		hint = h
	}
	switch n.Kind {
	case CtorObj:
		fields := make([]types.Field, len(elems))
		for i, et := range elems {
			fields[i] = types.Field{Name: n.Names[i], Type: et}
		}
		return eng.ObjOf(fields), nil
	case CtorAddr:
		members := make([]types.Member, len(elems))
		for i, et := range elems {
			members[i] = types.Member{Dir: n.Dirs[i], Type: et}
		}
		return eng.AddrOf(members), nil
	case CtorList:
		return eng.ListOf(elems, hint, n.Span())
	case CtorSet:
		return eng.SetOf(elems, hint, n.Span())
	case CtorDict:
		var keys, vals []*types.Type
		for i := 0; i+1 < len(elems); i += 2 {
			keys = append(keys, elems[i])
			vals = append(vals, elems[i+1])
		}
		var key, val *types.Type
		if hint != nil {
			if hint.Kind() != types.Dict {
				return nil, constructErr(n.Span(), "dict annotation must be a dict type, not %s", hint)
			}
			key, val = hint.Key(), hint.Val()
		}
		return eng.DictOf(keys, vals, key, val, n.Span())
	}
	diag.Internalf(n.Span(), "constructor kind %d", n.Kind)
	return nil, nil
}

// member reads a field through any number of opt and one seq wrapper; the
// wrappers are reapplied to the field type.
func (t *Typer) member(n *Member) (*types.Type, error) {
	eng := t.Engine
	ot := t.TypeOf(n.Obj)
	if ot.IsUnknown() {
		return ot, nil
	}
	base, isSeq, isOpt := ot, false, false
	if base.IsSequence() {
		base, isSeq = base.Elem(), true
	}
	if base.IsOptional() {
		base, isOpt = base.Elem(), true
	}
	ft, ok := base.Field(n.Field)
	if !ok {
		return nil, constructErr(n.Span(), "%s has no field %q", ot, n.Field)
	}
	if isOpt {
		ft = eng.Opt(ft)
	}
	if isSeq {
		ft = eng.Seq(ft)
	}
	return ft, nil
}

func (t *Typer) call(n *Call) (*types.Type, error) {
	sig, err := t.signature(n.Link, n.Span())
	if err != nil {
		return nil, err
	}
	given := make(map[string]Expr, len(n.Args))
	for i, name := range n.Names {
		if _, dup := given[name]; dup {
			return nil, diag.Errorf(diag.KindType, diag.ErrBadArgs, n.Args[i].Span(), "argument .%s given twice", name)
		}
		given[name] = n.Args[i]
	}
	var errs []string
	for _, p := range sig.Params {
		arg, ok := given[p.Name]
		if !ok {
			errs = append(errs, fmt.Sprintf("missing .%s", p.Name))
			continue
		}
		delete(given, p.Name)
		at := t.TypeOf(arg)
		if !t.Engine.Accepts(p.Type, at) {
			errs = append(errs, fmt.Sprintf(".%s wants %s, got %s", p.Name, p.Type, at))
		}
	}
	for _, name := range n.Names {
		if _, extra := given[name]; extra {
			errs = append(errs, fmt.Sprintf("unexpected .%s", name))
		}
	}
	if len(errs) > 0 {
		return nil, diag.Errorf(diag.KindType, diag.ErrBadArgs, n.Span(), "bad arguments to %s: %v", sig.Name, errs)
	}
	return sig.Result, nil
}
