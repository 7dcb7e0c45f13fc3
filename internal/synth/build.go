package synth

import (
	"github.com/roach88/stigc/internal/cst"
	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/expr"
	"github.com/roach88/stigc/internal/symbol"
	"github.com/roach88/stigc/internal/types"
)

var unaryOps = map[string]types.Op{
	"neg": types.OpNeg, "not": types.OpNot, "seq_of": types.OpSeqOf, "is_known": types.OpIsKnown,
}

var binaryOps = map[string]types.Op{
	"add": types.OpAdd, "sub": types.OpSub, "mult": types.OpMult, "div": types.OpDiv,
	"mod": types.OpMod, "exp": types.OpExp,
	"eq": types.OpEq, "neq": types.OpNeq, "lt": types.OpLt, "le": types.OpLe,
	"gt": types.OpGt, "ge": types.OpGe, "and": types.OpAnd, "or": types.OpOr,
}

// Build synthesizes the expression for n. It must run inside a definition
// (ctx.Owner set); Def and Package arrange that.
func (s *Synthesizer) Build(n cst.Node, ctx Context) expr.Expr {
	if n == nil {
		span := diag.Span{}
		if ctx.Owner != nil {
			span = ctx.Owner.Span()
		}
		s.fail(diag.KindSyntax, diag.ErrMalformedSyntax, span, "missing expression")
	}
	if e, ok := s.exprs[n]; ok {
		return e
	}
	if ctx.Owner == nil {
		diag.Internalf(n.Span(), "expression synthesized outside a definition")
	}
	e := s.build(n, ctx)
	s.exprs[n] = e
	return e
}

func (s *Synthesizer) build(n cst.Node, ctx Context) expr.Expr {
	span := n.Span()
	switch n := n.(type) {
	case *cst.Lit:
		e, err := parseLit(n)
		if err != nil {
			s.fail(diag.KindSyntax, diag.ErrBadLiteral, span, "bad %s literal %q: %v", n.Kind, n.Text, err)
		}
		return e

	case *cst.Ident:
		return expr.NewRef(span, s.tab.NewRef(ctx.Scope, ctx.Owner.ID(), n.Name, span))

	case *cst.That:
		if ctx.That == nil {
			s.fail(diag.KindBinding, diag.ErrThatOutside, span, "that outside filter, map, reduce or assert")
		}
		return expr.NewThat(span, ctx.That)

	case *cst.Lhs:
		return s.sortArg(span, expr.LeftSide, ctx)

	case *cst.Rhs:
		return s.sortArg(span, expr.RightSide, ctx)

	case *cst.Start:
		if ctx.Start == nil {
			s.fail(diag.KindBinding, diag.ErrStartOutside, span, "start outside reduce")
		}
		if ctx.Start.Start != nil {
			s.fail(diag.KindBinding, diag.ErrStartOutside, span, "reduce already has a start at %s", ctx.Start.Start.Span())
		}
		binder := ctx.Start
		inner := ctx
		inner.Start = nil
		return expr.NewStart(span, s.Build(n.Init, inner), binder)

	case *cst.Given:
		s.fail(diag.KindBinding, diag.ErrGivenOutside, span, "given must be the whole body of a where definition")

	case *cst.Unary:
		op, ok := unaryOps[n.Op]
		if !ok {
			s.fail(diag.KindSyntax, diag.ErrMalformedSyntax, span, "unknown unary operator %q", n.Op)
		}
		return expr.NewUnary(span, op, s.Build(n.Operand, ctx))

	case *cst.Binary:
		op, ok := binaryOps[n.Op]
		if !ok {
			s.fail(diag.KindSyntax, diag.ErrMalformedSyntax, span, "unknown binary operator %q", n.Op)
		}
		return expr.NewBinary(span, op, s.Build(n.Lhs, ctx), s.Build(n.Rhs, ctx))

	case *cst.If:
		return expr.NewIf(span, s.Build(n.Cond, ctx), s.Build(n.Then, ctx), s.Build(n.Else, ctx))

	case *cst.Filter:
		seq := s.Build(n.Seq, ctx)
		b := &expr.ThatBinder{Source: seq, Each: true}
		return expr.NewFilter(span, seq, s.Build(n.Pred, withThat(ctx, b)), b)

	case *cst.Map:
		seq := s.Build(n.Seq, ctx)
		b := &expr.ThatBinder{Source: seq, Each: true}
		return expr.NewMap(span, seq, s.Build(n.Body, withThat(ctx, b)), b)

	case *cst.Reduce:
		seq := s.Build(n.Seq, ctx)
		b := &expr.ThatBinder{Source: seq, Each: true}
		starts := &expr.StartBinder{}
		inner := withThat(ctx, b)
		inner.Start = starts
		body := s.Build(n.Body, inner)
		if starts.Start == nil {
			s.fail(diag.KindBinding, diag.ErrStartOutside, span, "reduce body has no start")
		}
		return expr.NewReduce(span, seq, body, b, starts)

	case *cst.Sort:
		seq := s.Build(n.Seq, ctx)
		b := &expr.SortBinder{Source: seq}
		inner := ctx
		inner.Sort = b
		return expr.NewSort(span, seq, s.Build(n.Less, inner), b)

	case *cst.Assert:
		value := s.Build(n.Value, ctx)
		b := &expr.ThatBinder{Source: value}
		return expr.NewAssert(span, value, s.Build(n.Pred, withThat(ctx, b)), b)

	case *cst.Obj:
		elems := make([]expr.Expr, len(n.Fields))
		names := make([]string, len(n.Fields))
		seen := make(map[string]bool, len(n.Fields))
		for i, f := range n.Fields {
			if seen[f.Name] {
				s.fail(diag.KindType, diag.ErrConstruct, span, "field .%s given twice", f.Name)
			}
			seen[f.Name] = true
			elems[i], names[i] = s.Build(f.Value, ctx), f.Name
		}
		return expr.NewCtor(span, expr.CtorObj, elems, names, nil, nil)

	case *cst.Addr:
		elems := make([]expr.Expr, len(n.Members))
		dirs := make([]types.Dir, len(n.Members))
		for i, m := range n.Members {
			elems[i], dirs[i] = s.Build(m.Value, ctx), direction(m.Desc)
		}
		return expr.NewCtor(span, expr.CtorAddr, elems, nil, dirs, nil)

	case *cst.List:
		return expr.NewCtor(span, expr.CtorList, s.buildAll(n.Elems, ctx), nil, nil, s.hint(n.Elem, ctx))

	case *cst.Set:
		return expr.NewCtor(span, expr.CtorSet, s.buildAll(n.Elems, ctx), nil, nil, s.hint(n.Elem, ctx))

	case *cst.Dict:
		elems := make([]expr.Expr, 0, 2*len(n.Entries))
		for _, e := range n.Entries {
			elems = append(elems, s.Build(e.Key, ctx), s.Build(e.Value, ctx))
		}
		var hint expr.TypeLink
		if n.Key != nil && n.Val != nil {
			hint = s.tab.CompositeSpec(types.Dict, []*symbol.TypeSpec{
				s.typeSpec(n.Key, ctx.Scope, ctx.Owner),
				s.typeSpec(n.Val, ctx.Scope, ctx.Owner),
			}, nil, nil, span)
		}
		return expr.NewCtor(span, expr.CtorDict, elems, nil, nil, hint)

	case *cst.Member:
		return expr.NewMember(span, s.Build(n.Obj, ctx), n.Field)

	case *cst.Call:
		link := s.tab.NewRef(ctx.Scope, ctx.Owner.ID(), n.Fn, span)
		names := make([]string, len(n.Args))
		args := make([]expr.Expr, len(n.Args))
		for i, a := range n.Args {
			names[i], args[i] = a.Name, s.Build(a.Value, ctx)
		}
		return expr.NewCall(span, link, names, args)

	case *cst.Range:
		return expr.NewRange(span, s.Build(n.Lo, ctx), s.Build(n.Hi, ctx))

	case *cst.Where:
		return s.where(n, ctx)

	case *cst.Read:
		return expr.NewRead(span, s.Build(n.Addr, ctx), s.typeSpec(n.Type, ctx.Scope, ctx.Owner))

	case *cst.Write:
		return expr.NewWrite(span, s.Build(n.Addr, ctx), s.Build(n.Value, ctx))

	case *cst.Delete:
		return expr.NewDelete(span, s.Build(n.Addr, ctx))

	case *cst.Effects:
		return expr.NewEffects(span, s.buildAll(n.Stmts, ctx), s.Build(n.Result, ctx))
	}
	diag.Internalf(n.Span(), "unhandled CST node %T", n)
	return nil
}

func withThat(ctx Context, b *expr.ThatBinder) Context {
	ctx.That = b
	return ctx
}

func (s *Synthesizer) sortArg(span diag.Span, side expr.Side, ctx Context) expr.Expr {
	if ctx.Sort == nil {
		s.fail(diag.KindBinding, diag.ErrSortOutside, span, "%s outside sort", side)
	}
	return expr.NewSortArg(span, side, ctx.Sort)
}

func (s *Synthesizer) buildAll(nodes []cst.Node, ctx Context) []expr.Expr {
	out := make([]expr.Expr, len(nodes))
	for i, n := range nodes {
		out[i] = s.Build(n, ctx)
	}
	return out
}

func (s *Synthesizer) hint(t cst.Type, ctx Context) expr.TypeLink {
	if t == nil {
		return nil
	}
	return s.typeSpec(t, ctx.Scope, ctx.Owner)
}

// where pushes a scope owned by the current definition, declares the local
// definitions, synthesizes them and then the body. Givens become parameters
// of the owner.
func (s *Synthesizer) where(n *cst.Where, ctx Context) expr.Expr {
	inner := ctx
	inner.Scope = s.tab.NewScope(ctx.Scope, ctx.Owner.ID())
	s.declareAll(n.Defs, inner)

	ids := make([]expr.DefID, 0, len(n.Defs))
	for _, d := range n.Defs {
		if def := s.Def(d, inner); def != nil {
			ids = append(ids, def.ID())
		}
	}
	return expr.NewWhere(n.Span(), s.Build(n.Body, inner), ids)
}
