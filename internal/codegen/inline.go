// Package codegen lowers typed expression IR into Go source.
//
// Lowering builds a graph with one Inline per distinct expression node.
// An Inline reached more than once from a function body is bound to a
// generated identifier in the innermost scope enclosing all of its uses,
// the first time it is emitted, and referenced by that identifier
// afterwards. The output grows with the number of distinct nodes rather
// than the number of paths to them.
package codegen

import (
	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/expr"
	"github.com/roach88/stigc/internal/symbol"
	"github.com/roach88/stigc/internal/types"
)

type inlineKind uint8

const (
	inlineExpr   inlineKind = iota // an expression node
	inlineParam                    // a given of an enclosing function
	inlineVar                      // a binder variable: that, lhs, rhs or start
	inlineGlobal                   // a top-level value read
	inlineFunc                     // a local function, emitted as a closure
)

// Inline is the lowered form of an expression node. Several nodes may share
// one Inline: every reference to a local value definition lowers onto the
// Inline of the definition's body.
type Inline struct {
	Expr expr.Expr
	Type *types.Type

	kind inlineKind
	def  *symbol.Def
	fn   *Function

	// deps are operands evaluated in the same scope, in evaluation order.
	deps []*Inline
	// scopes are bodies evaluated in a nested scope: lambda bodies, if
	// branches, where bodies and closure bodies.
	scopes []*InlineScope
}

// AppendDependsOn appends the Inlines in depends on to set: its operands,
// followed by the bodies of its nested scopes. The result depends only on
// the expression node, so repeated calls append the same Inlines.
func (in *Inline) AppendDependsOn(set []*Inline) []*Inline {
	set = append(set, in.deps...)
	for _, s := range in.scopes {
		set = append(set, s.Body)
	}
	return set
}

// shareable reports whether in may be bound to a generated identifier.
// Parameters and binder variables are already names.
func (in *Inline) shareable() bool {
	return in.kind != inlineParam && in.kind != inlineVar
}

// InlineScope is a body with its own identifier namespace.
type InlineScope struct {
	Body *Inline
}

func newScope(body *Inline) *InlineScope {
	return &InlineScope{Body: body}
}

// Graph maps expression nodes to Inlines. Lowering is memoized per node and
// local functions are memoized per definition.
type Graph struct {
	tab   *symbol.Table
	nodes map[expr.Expr]*Inline
	funcs map[expr.DefID]*Function
}

// NewGraph creates an empty graph over the definitions of tab.
func NewGraph(tab *symbol.Table) *Graph {
	return &Graph{
		tab:   tab,
		nodes: make(map[expr.Expr]*Inline),
		funcs: make(map[expr.DefID]*Function),
	}
}

// Lower returns the Inline for e, lowering everything reachable from it.
// Lowering a node whose type is not known is an internal error: code is
// only generated for programs that type-checked.
func (g *Graph) Lower(e expr.Expr) *Inline {
	if in, ok := g.nodes[e]; ok {
		return in
	}
	t, ok := expr.Typed(e)
	if !ok || t.IsUnknown() {
		diag.Internalf(e.Span(), "lowering %T whose type did not resolve", e)
	}
	in := g.lower(e, t)
	g.nodes[e] = in
	return in
}

// Len returns the number of expression nodes lowered so far.
func (g *Graph) Len() int {
	return len(g.nodes)
}

func (g *Graph) lower(e expr.Expr, t *types.Type) *Inline {
	in := &Inline{Expr: e, Type: t}
	switch n := e.(type) {
	case *expr.Lit:

	case *expr.Ref:
		def := g.target(n.Link, n.Span())
		switch {
		case def.Kind() == symbol.KindGiven:
			in.kind, in.def = inlineParam, def
		case def.Kind() == symbol.KindResult, def.IsTopLevel():
			in.kind, in.def = inlineGlobal, def
		default:
			return g.Lower(g.body(def))
		}

	case *expr.That, *expr.SortArg, *expr.Start:
		in.kind = inlineVar

	case *expr.Unary:
		in.deps = g.lowerAll(n.Operand)

	case *expr.Binary:
		in.deps = g.lowerAll(n.Lhs, n.Rhs)

	case *expr.If:
		in.deps = g.lowerAll(n.Cond)
		in.scopes = g.scopes(n.Then, n.Else)

	case *expr.Filter:
		in.deps = g.lowerAll(n.Seq)
		in.scopes = g.scopes(n.Pred)

	case *expr.Map:
		in.deps = g.lowerAll(n.Seq)
		in.scopes = g.scopes(n.Body)

	case *expr.Reduce:
		if n.Starts.Start == nil {
			diag.Internalf(n.Span(), "reduce without start")
		}
		in.deps = g.lowerAll(n.Seq, n.Starts.Start.Init)
		in.scopes = g.scopes(n.Body)

	case *expr.Sort:
		in.deps = g.lowerAll(n.Seq)
		in.scopes = g.scopes(n.Less)

	case *expr.Assert:
		in.deps = g.lowerAll(n.Value)
		in.scopes = g.scopes(n.Pred)

	case *expr.Ctor:
		in.deps = g.lowerAll(n.Elems...)

	case *expr.Member:
		in.deps = g.lowerAll(n.Obj)

	case *expr.Call:
		return g.call(n, in)

	case *expr.Range:
		in.deps = g.lowerAll(n.Lo, n.Hi)

	case *expr.Where:
		in.scopes = g.scopes(n.Body)

	case *expr.Read:
		in.deps = g.lowerAll(n.Addr)

	case *expr.Write:
		in.deps = g.lowerAll(n.Addr, n.Value)

	case *expr.Delete:
		in.deps = g.lowerAll(n.Addr)

	case *expr.Effects:
		in.deps = g.lowerAll(append(append([]expr.Expr{}, n.Stmts...), n.Result)...)

	default:
		diag.Internalf(e.Span(), "unhandled expression %T", e)
	}
	return in
}

// call lowers a call. Arguments are put in parameter order; a call to a
// local function also depends on the function itself. A local function
// without parameters is its body.
func (g *Graph) call(n *expr.Call, in *Inline) *Inline {
	def := g.target(n.Link, n.Span())
	sig, err := g.tab.Signature(def.ID())
	if err != nil {
		diag.Internalf(n.Span(), "signature of %s: %v", def.Label(), err)
	}
	if len(sig.Params) == 0 && def.Kind() == symbol.KindFunc && !def.IsTopLevel() {
		return g.Lower(g.body(def))
	}
	byName := make(map[string]expr.Expr, len(n.Args))
	for i, name := range n.Names {
		byName[name] = n.Args[i]
	}
	in.def = def
	for _, p := range sig.Params {
		arg, ok := byName[p.Name]
		if !ok {
			diag.Internalf(n.Span(), "call to %s has no argument .%s", def.Name(), p.Name)
		}
		in.deps = append(in.deps, g.Lower(arg))
	}
	if def.Kind() == symbol.KindFunc && !def.IsTopLevel() {
		in.deps = append(in.deps, g.function(def))
	}
	return in
}

// function returns the closure Inline of a local function.
func (g *Graph) function(def *symbol.Def) *Inline {
	f, ok := g.funcs[def.ID()]
	if !ok {
		f = newFunction(g, def)
		g.funcs[def.ID()] = f
	}
	if f.inline == nil {
		f.inline = &Inline{Type: f.Result, kind: inlineFunc, def: def, fn: f, scopes: []*InlineScope{f.Scope}}
	}
	return f.inline
}

func (g *Graph) target(link expr.Link, span diag.Span) *symbol.Def {
	id, err := link.Resolve()
	if err != nil {
		diag.Internalf(span, "lowering unresolved reference %s: %v", link.Name(), err)
	}
	def := g.tab.Def(id)
	if def == nil {
		diag.Internalf(span, "reference %s to a removed definition", link.Name())
	}
	return def
}

func (g *Graph) body(def *symbol.Def) expr.Expr {
	if def.Body() == nil {
		diag.Internalf(def.Span(), "%s has no body", def.Label())
	}
	return def.Body()
}

func (g *Graph) lowerAll(es ...expr.Expr) []*Inline {
	out := make([]*Inline, len(es))
	for i, e := range es {
		out[i] = g.Lower(e)
	}
	return out
}

func (g *Graph) scopes(es ...expr.Expr) []*InlineScope {
	out := make([]*InlineScope, len(es))
	for i, e := range es {
		out[i] = newScope(g.Lower(e))
	}
	return out
}
