package codegen

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/expr"
	"github.com/roach88/stigc/internal/symbol"
	"github.com/roach88/stigc/internal/types"
)

// emitter renders the Inlines of one scope. Shared Inlines are bound to
// identifiers written to p ahead of the statement that uses them. An Inline
// placed in an enclosing scope is bound by that scope's emitter.
type emitter struct {
	g      *Generator
	p      *TextPrinter
	ids    *IDScope
	plan   *plan
	scope  *InlineScope
	parent *emitter
}

// body writes the statements of s followed by a return of its value. A body
// that is a where is written in place instead of as a nested function.
func (g *Generator) body(p *TextPrinter, s *InlineScope, ids *IDScope, want *types.Type, pl *plan, parent *emitter) {
	for pl.flat[s.Body] {
		s = s.Body.scopes[0]
	}
	em := &emitter{g: g, p: p, ids: ids, plan: pl, scope: pl.scope(s), parent: parent}
	p.Line("return " + em.convert(s.Body, em.use(s.Body), want))
}

// use returns the Go expression for in, binding it to an identifier when
// it is reached more than once.
func (em *emitter) use(in *Inline) string {
	if id, ok := em.ids.Lookup(in); ok {
		return id
	}
	home, shared := em.plan.home[in]
	if !shared {
		return em.render(in)
	}
	owner := em
	for owner.scope != home {
		owner = owner.parent
		if owner == nil {
			diag.Internalf(spanOf(in), "binding scope of %T is not enclosing", in.Expr)
		}
	}
	text := owner.render(in)
	id := owner.ids.Assign(in)
	owner.p.Line(id + " := " + text)
	return id
}

// operand is use with parentheses around operator expressions.
func (em *emitter) operand(in *Inline) string {
	text := em.use(in)
	if _, bound := em.ids.Lookup(in); bound {
		return text
	}
	switch in.Expr.(type) {
	case *expr.Binary, *expr.Unary:
		if strings.HasPrefix(text, "rt.") {
			return text
		}
		return "(" + text + ")"
	}
	return text
}

// closure renders a function literal whose body is s.
func (em *emitter) closure(params []string, result *types.Type, s *InlineScope) string {
	var p TextPrinter
	p.Line("func(" + strings.Join(params, ", ") + ") " + em.g.goType(result) + " {")
	p.Indent()
	em.g.body(&p, s, em.ids.Child(), result, em.plan, em)
	p.Dedent()
	p.Write("}")
	return p.String()
}

// convert adapts a value of in's type to want: ints widen to reals and
// plain values become present optionals.
func (em *emitter) convert(in *Inline, text string, want *types.Type) string {
	have := in.Type
	if want == nil || have == want || want.Kind() == types.Any {
		return text
	}
	if want.IsOptional() && !have.IsOptional() {
		return em.g.rt("Some") + "(" + em.convert(in, text, want.Elem()) + ")"
	}
	if want.Kind() == types.Real && have.Kind() == types.Int {
		if lit, ok := in.Expr.(*expr.Lit); ok {
			if _, bound := em.ids.Lookup(in); !bound {
				return "float64(" + strconv.FormatInt(lit.Value.(int64), 10) + ")"
			}
		}
		return "float64(" + text + ")"
	}
	return text
}

func (em *emitter) render(in *Inline) string {
	g := em.g
	switch in.kind {
	case inlineParam:
		return goIdent(in.def.Name())
	case inlineGlobal:
		if b := in.def.Builtin(); b != nil {
			return "ctx." + b.Go + "()"
		}
		return goIdent(in.def.Name()) + "(ctx)"
	case inlineFunc:
		return em.closure(g.params(in.fn), in.fn.Result, in.fn.Scope)
	case inlineVar:
		return em.variable(in)
	}

	switch n := in.Expr.(type) {
	case *expr.Lit:
		return em.lit(n)
	case *expr.Unary:
		return em.unary(n, in)
	case *expr.Binary:
		return em.binary(n, in)
	case *expr.If:
		return em.cond(in)
	case *expr.Filter:
		return g.rt("Filter") + "(" + em.use(in.deps[0]) + ", " +
			em.closure([]string{g.binder(n.Binder, "that") + " " + em.elemType(in.deps[0])}, g.tab.Engine().Bool(), in.scopes[0]) + ")"
	case *expr.Map:
		return g.rt("Map") + "(" + em.use(in.deps[0]) + ", " +
			em.closure([]string{g.binder(n.Binder, "that") + " " + em.elemType(in.deps[0])}, in.scopes[0].Body.Type, in.scopes[0]) + ")"
	case *expr.Reduce:
		acc := g.binder(n.Starts, "acc") + " " + g.goType(in.Type)
		that := g.binder(n.Binder, "that") + " " + em.elemType(in.deps[0])
		return g.rt("Reduce") + "(" + em.use(in.deps[0]) + ", " + em.convert(in.deps[1], em.use(in.deps[1]), in.Type) + ", " +
			em.closure([]string{acc, that}, in.Type, in.scopes[0]) + ")"
	case *expr.Sort:
		lhs, rhs := em.sortNames(n.Binder)
		return g.rt("Sort") + "(" + em.use(in.deps[0]) + ", " +
			em.closure([]string{lhs + ", " + rhs + " " + em.elemType(in.deps[0])}, g.tab.Engine().Bool(), in.scopes[0]) + ")"
	case *expr.Assert:
		that := g.binder(n.Binder, "that") + " " + g.goType(in.deps[0].Type)
		return g.rt("Assert") + "(" + em.use(in.deps[0]) + ", " +
			em.closure([]string{that}, g.tab.Engine().Bool(), in.scopes[0]) + ")"
	case *expr.Ctor:
		return em.ctor(n, in)
	case *expr.Member:
		return em.member(n, in)
	case *expr.Call:
		return em.call(in)
	case *expr.Range:
		return g.rt("Range") + "(" + em.use(in.deps[0]) + ", " + em.use(in.deps[1]) + ")"
	case *expr.Where:
		return em.closure(nil, in.Type, in.scopes[0]) + "()"
	case *expr.Read:
		return g.rt("Read") + "[" + g.goType(in.Type.Elem()) + "](ctx, " + em.use(in.deps[0]) + ")"
	case *expr.Write:
		return "ctx.Write(" + em.use(in.deps[0]) + ", " + em.use(in.deps[1]) + ")"
	case *expr.Delete:
		return "ctx.Delete(" + em.use(in.deps[0]) + ")"
	case *expr.Effects:
		stmts := in.deps[:len(in.deps)-1]
		for _, s := range stmts {
			em.p.Line("_ = " + em.use(s))
		}
		return em.use(in.deps[len(in.deps)-1])
	}
	diag.Internalf(in.Expr.Span(), "no emission for %T", in.Expr)
	return ""
}

func (em *emitter) variable(in *Inline) string {
	switch n := in.Expr.(type) {
	case *expr.That:
		return em.g.binder(n.Binder, "that")
	case *expr.SortArg:
		lhs, rhs := em.sortNames(n.Binder)
		if n.Side == expr.RightSide {
			return rhs
		}
		return lhs
	case *expr.Start:
		return em.g.binder(n.Binder, "acc")
	}
	diag.Internalf(in.Expr.Span(), "%T is not a variable", in.Expr)
	return ""
}

func (em *emitter) sortNames(b *expr.SortBinder) (string, string) {
	lhs := em.g.binder(b, "lhs")
	return lhs, "rhs" + strings.TrimPrefix(lhs, "lhs")
}

func (em *emitter) elemType(seq *Inline) string {
	return em.g.goType(seq.Type.Elem())
}

func (em *emitter) lit(n *expr.Lit) string {
	g := em.g
	switch v := n.Value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return "int64(" + strconv.FormatInt(v, 10) + ")"
	case float64:
		return "float64(" + strconv.FormatFloat(v, 'g', -1, 64) + ")"
	case time.Time:
		return g.rt("MustTimePnt") + "(" + strconv.Quote(v.Format(time.RFC3339Nano)) + ")"
	case time.Duration:
		return g.rt("TimeDiff") + "(" + strconv.FormatInt(int64(v), 10) + ")"
	case string:
		if n.Kind == types.ID {
			return g.rt("MustID") + "(" + strconv.Quote(v) + ")"
		}
		return strconv.Quote(v)
	}
	diag.Internalf(n.Span(), "literal value %T", n.Value)
	return ""
}

func (em *emitter) unary(n *expr.Unary, in *Inline) string {
	g := em.g
	arg := in.deps[0]
	switch n.Op {
	case types.OpIsKnown:
		return g.rt("IsKnown") + "(" + em.use(arg) + ")"
	case types.OpSeqOf:
		return g.rt("SeqOf") + "(" + em.use(arg) + ")"
	}
	if arg.Type.IsOptional() {
		elem := arg.Type.Elem()
		fn := "func(v " + g.goType(elem) + ") " + g.goType(in.Type.Elem()) + " { return " + em.prefix(n.Op, "v", elem) + " }"
		return g.rt("Lift1") + "(" + em.use(arg) + ", " + fn + ")"
	}
	return em.prefix(n.Op, em.operand(arg), arg.Type)
}

func (em *emitter) prefix(op types.Op, x string, t *types.Type) string {
	switch {
	case op == types.OpNot:
		return "!" + x
	case op == types.OpNeg && t.IsNumeric():
		return "-" + x
	}
	return em.g.rt(opFuncs[op]) + "(" + x + ")"
}

// opFuncs name the runtime helpers for operators Go cannot express on the
// operand types directly.
var opFuncs = map[types.Op]string{
	types.OpAdd: "Add", types.OpSub: "Sub", types.OpMult: "Mult", types.OpDiv: "Div",
	types.OpMod: "Mod", types.OpExp: "Pow", types.OpNeg: "Neg",
	types.OpLt: "Less", types.OpLe: "LessEq", types.OpGt: "Less", types.OpGe: "LessEq",
}

func (em *emitter) binary(n *expr.Binary, in *Inline) string {
	g := em.g
	l, r := in.deps[0], in.deps[1]
	if n.Op == types.OpEq || n.Op == types.OpNeq {
		return em.equal(n.Op, l, r)
	}
	if l.Type.IsOptional() || r.Type.IsOptional() {
		lt, rt, res := l.Type.Unwrap(), r.Type.Unwrap(), in.Type.Unwrap()
		fn := fmt.Sprintf("func(l %s, r %s) %s { return %s }", g.goType(lt), g.goType(rt), g.goType(res),
			em.infix(n.Op, "l", lt, "r", rt, res))
		return g.rt("Lift2") + "(" + em.optional(l) + ", " + em.optional(r) + ", " + fn + ")"
	}
	ls, rs, lt, rt := em.numeric(l, r)
	return em.infix(n.Op, ls, lt, rs, rt, in.Type)
}

// numeric renders both operands, widening an int to real when the other
// operand is real.
func (em *emitter) numeric(l, r *Inline) (string, string, *types.Type, *types.Type) {
	ls, rs := em.operand(l), em.operand(r)
	lt, rt := l.Type, r.Type
	if lt.IsNumeric() && rt.IsNumeric() && lt != rt {
		realT := em.g.tab.Engine().Real()
		return em.convert(l, ls, realT), em.convert(r, rs, realT), realT, realT
	}
	return ls, rs, lt, rt
}

func (em *emitter) optional(in *Inline) string {
	if in.Type.IsOptional() {
		return em.use(in)
	}
	return em.g.rt("Some") + "(" + em.use(in) + ")"
}

func (em *emitter) equal(op types.Op, l, r *Inline) string {
	if basic(l.Type) && basic(r.Type) {
		ls, rs, _, _ := em.numeric(l, r)
		if op == types.OpNeq {
			return ls + " != " + rs
		}
		return ls + " == " + rs
	}
	eq := em.g.rt("Equal") + "(" + em.use(l) + ", " + em.use(r) + ")"
	if op == types.OpNeq {
		return "!" + eq
	}
	return eq
}

func (em *emitter) widen(x string, t *types.Type) string {
	if t.Kind() == types.Int {
		return "float64(" + x + ")"
	}
	return x
}

var goOps = map[types.Op]string{
	types.OpAdd: "+", types.OpSub: "-", types.OpMult: "*", types.OpDiv: "/",
	types.OpLt: "<", types.OpLe: "<=", types.OpGt: ">", types.OpGe: ">=",
	types.OpAnd: "&&", types.OpOr: "||",
}

// infix renders a binary operator on plain operands.
func (em *emitter) infix(op types.Op, l string, lt *types.Type, r string, rt *types.Type, res *types.Type) string {
	switch {
	case op.IsLogical():
		return l + " " + goOps[op] + " " + r
	case lt.IsNumeric() && rt.IsNumeric():
		if lt.Kind() != rt.Kind() {
			l, r = em.widen(l, lt), em.widen(r, rt)
		}
		switch op {
		case types.OpExp:
			return em.g.rt("Pow") + "(" + l + ", " + r + ")"
		case types.OpMod:
			if res.Kind() == types.Int {
				return l + " % " + r
			}
			return em.g.rt("Mod") + "(" + l + ", " + r + ")"
		}
		return l + " " + goOps[op] + " " + r
	case lt.Kind() == types.Str && rt.Kind() == types.Str:
		return l + " " + goOps[op] + " " + r
	}
	switch op {
	case types.OpGt, types.OpGe:
		l, r = r, l
	}
	return em.g.rt(opFuncs[op]) + "(" + l + ", " + r + ")"
}

func (em *emitter) cond(in *Inline) string {
	var p TextPrinter
	p.Line("func() " + em.g.goType(in.Type) + " {")
	p.Indent()
	p.Line("if " + em.use(in.deps[0]) + " {")
	p.Indent()
	em.g.body(&p, in.scopes[0], em.ids.Child(), in.Type, em.plan, em)
	p.Dedent()
	p.Line("}")
	em.g.body(&p, in.scopes[1], em.ids.Child(), in.Type, em.plan, em)
	p.Dedent()
	p.Write("}()")
	return p.String()
}

func (em *emitter) ctor(n *expr.Ctor, in *Inline) string {
	g := em.g
	if in.Type.IsSequence() {
		return em.zip(n, in)
	}
	args := make([]string, len(in.deps))
	switch n.Kind {
	case expr.CtorObj:
		for i, d := range in.deps {
			ft, _ := in.Type.Field(n.Names[i])
			args[i] = fieldName(n.Names[i]) + ": " + em.convert(d, em.use(d), ft)
		}
		return g.goType(in.Type) + "{" + strings.Join(args, ", ") + "}"
	case expr.CtorAddr:
		for i, d := range in.deps {
			args[i] = em.use(d)
			if n.Dirs[i] == types.DirDesc {
				args[i] = g.rt("Desc") + "(" + args[i] + ")"
			}
		}
		return g.rt("Key") + "(" + strings.Join(args, ", ") + ")"
	case expr.CtorList, expr.CtorSet:
		elem := in.Type.Elem()
		for i, d := range in.deps {
			args[i] = em.convert(d, em.use(d), elem)
		}
		if n.Kind == expr.CtorSet {
			return g.rt("SetOf") + "[" + g.goType(elem) + "](" + strings.Join(args, ", ") + ")"
		}
		return g.goType(in.Type) + "{" + strings.Join(args, ", ") + "}"
	case expr.CtorDict:
		pairs := make([]string, 0, len(in.deps)/2)
		for i := 0; i+1 < len(in.deps); i += 2 {
			k, v := in.deps[i], in.deps[i+1]
			pairs = append(pairs, em.convert(k, em.use(k), in.Type.Key())+": "+em.convert(v, em.use(v), in.Type.Val()))
		}
		return g.goType(in.Type) + "{" + strings.Join(pairs, ", ") + "}"
	}
	diag.Internalf(n.Span(), "constructor kind %s", n.Kind)
	return ""
}

// zip renders a constructor with sequence members: the runtime zips the
// sequences, repeating plain members, and builds one value per position.
func (em *emitter) zip(n *expr.Ctor, in *Inline) string {
	g := em.g
	params := make([]string, len(in.deps))
	names := make([]string, len(in.deps))
	args := make([]string, len(in.deps))
	for i, d := range in.deps {
		names[i] = "x" + strconv.Itoa(i)
		t := d.Type
		args[i] = em.use(d)
		if t.IsSequence() {
			t = t.Elem()
		} else {
			args[i] = g.rt("Repeat") + "(" + args[i] + ")"
		}
		params[i] = names[i] + " " + g.goType(t)
	}
	elem := in.Type.Elem()
	var value string
	switch n.Kind {
	case expr.CtorObj:
		fields := make([]string, len(names))
		for i, name := range names {
			fields[i] = fieldName(n.Names[i]) + ": " + name
		}
		value = g.goType(elem) + "{" + strings.Join(fields, ", ") + "}"
	case expr.CtorAddr:
		keys := make([]string, len(names))
		for i, name := range names {
			keys[i] = name
			if n.Dirs[i] == types.DirDesc {
				keys[i] = g.rt("Desc") + "(" + name + ")"
			}
		}
		value = g.rt("Key") + "(" + strings.Join(keys, ", ") + ")"
	case expr.CtorList:
		value = g.goType(elem) + "{" + strings.Join(names, ", ") + "}"
	case expr.CtorSet:
		value = g.rt("SetOf") + "[" + g.goType(elem.Elem()) + "](" + strings.Join(names, ", ") + ")"
	case expr.CtorDict:
		pairs := make([]string, 0, len(names)/2)
		for i := 0; i+1 < len(names); i += 2 {
			pairs = append(pairs, names[i]+": "+names[i+1])
		}
		value = g.goType(elem) + "{" + strings.Join(pairs, ", ") + "}"
	}
	fn := "func(" + strings.Join(params, ", ") + ") " + g.goType(elem) + " { return " + value + " }"
	return g.rt("Zip") + "(" + fn + ", " + strings.Join(args, ", ") + ")"
}

// member reads a field through the opt and seq wrappers the typer allows.
func (em *emitter) member(n *expr.Member, in *Inline) string {
	g := em.g
	obj := in.deps[0]
	field := fieldName(n.Field)
	t := obj.Type
	isSeq := t.IsSequence()
	if isSeq {
		t = t.Elem()
	}
	isOpt := t.IsOptional()
	if isOpt {
		t = t.Elem()
	}
	if !isSeq && !isOpt {
		return em.operand(obj) + "." + field
	}
	ft, _ := t.Field(n.Field)
	get := "func(o " + g.goType(t) + ") " + g.goType(ft) + " { return o." + field + " }"
	if isOpt {
		if !isSeq {
			return g.rt("Lift1") + "(" + em.use(obj) + ", " + get + ")"
		}
		get = "func(o " + g.goType(obj.Type.Elem()) + ") " + g.goType(in.Type.Elem()) + " { return " +
			g.rt("Lift1") + "(o, " + get + ") }"
	}
	return g.rt("Map") + "(" + em.use(obj) + ", " + get + ")"
}

func (em *emitter) call(in *Inline) string {
	g := em.g
	def := in.def
	args := make([]string, 0, len(in.deps)+1)
	if b := def.Builtin(); b != nil {
		for i, p := range b.Params {
			args = append(args, em.convert(in.deps[i], em.use(in.deps[i]), atom(g, p.Kind)))
		}
		return "ctx." + b.Go + "(" + strings.Join(args, ", ") + ")"
	}
	sig, err := g.tab.Signature(def.ID())
	if err != nil {
		diag.Internalf(in.Expr.Span(), "signature of %s: %v", def.Label(), err)
	}
	for i, p := range sig.Params {
		args = append(args, em.convert(in.deps[i], em.use(in.deps[i]), p.Type))
	}
	if def.Kind() == symbol.KindFunc && !def.IsTopLevel() {
		fn := em.use(in.deps[len(in.deps)-1])
		if _, bound := em.ids.Lookup(in.deps[len(in.deps)-1]); !bound {
			fn = "(" + fn + ")"
		}
		return fn + "(" + strings.Join(args, ", ") + ")"
	}
	return goIdent(def.Name()) + "(" + strings.Join(append([]string{"ctx"}, args...), ", ") + ")"
}

func atom(g *Generator, k types.Kind) *types.Type {
	return g.tab.Engine().Intern(types.Desc{Kind: k})
}
