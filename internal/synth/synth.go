// Package synth translates CST nodes into expression IR and definitions.
//
// Synthesis threads an ambient Context through the walk: the scope names are
// looked up in, the definition that owns the expression being built, and the
// binders that give meaning to that, lhs/rhs and start. Using one of those
// leaves outside its construct is a binding error: synthesis of the
// innermost enclosing definition stops, its body stays empty, and its
// siblings are still synthesized.
package synth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/stigc/internal/cst"
	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/expr"
	"github.com/roach88/stigc/internal/symbol"
	"github.com/roach88/stigc/internal/types"
)

// Context is the ambient synthesis state.
type Context struct {
	Scope symbol.ScopeID
	Owner *symbol.Def
	That  *expr.ThatBinder
	Sort  *expr.SortBinder
	Start *expr.StartBinder
}

// Synthesizer builds IR for one compiled unit. Build and Def are memoized
// per CST node: building a node again returns the first result and declares
// or binds nothing new.
type Synthesizer struct {
	tab    *symbol.Table
	report func(error)

	exprs map[cst.Node]expr.Expr
	defs  map[*cst.Def]*symbol.Def
	pkgs  map[*cst.Package]symbol.ScopeID
}

// New creates a synthesizer declaring into tab. Recoverable errors are
// passed to report.
func New(tab *symbol.Table, report func(error)) *Synthesizer {
	if report == nil {
		report = func(error) {}
	}
	return &Synthesizer{
		tab:    tab,
		report: report,
		exprs:  make(map[cst.Node]expr.Expr),
		defs:   make(map[*cst.Def]*symbol.Def),
		pkgs:   make(map[*cst.Package]symbol.ScopeID),
	}
}

// bailout aborts synthesis of the current definition.
type bailout struct {
	err *diag.Error
}

func (s *Synthesizer) fail(kind diag.Kind, code string, span diag.Span, format string, args ...any) {
	panic(bailout{diag.Errorf(kind, code, span, format, args...)})
}

// Package declares every top-level definition of pkg in a new package scope,
// then synthesizes their bodies. It returns the package scope.
func (s *Synthesizer) Package(pkg *cst.Package) symbol.ScopeID {
	if scope, ok := s.pkgs[pkg]; ok {
		return scope
	}
	scope := s.tab.NewScope(s.tab.Universe(), expr.NoDef)
	s.pkgs[pkg] = scope
	s.declareAll(pkg.Defs, Context{Scope: scope})
	for _, d := range pkg.Defs {
		s.Def(d, Context{Scope: scope})
	}
	return scope
}

// declareAll declares the definitions of one scope before any body is
// built, so bodies and annotations may name later siblings.
func (s *Synthesizer) declareAll(defs []*cst.Def, ctx Context) {
	for _, d := range defs {
		s.declare(d, ctx)
	}
}

func (s *Synthesizer) declare(d *cst.Def, ctx Context) *symbol.Def {
	if def, ok := s.defs[d]; ok {
		return def
	}
	kind := symbol.KindFunc
	fn := expr.NoDef
	if ctx.Owner != nil {
		fn = ctx.Owner.ID()
	}
	switch {
	case d.Type != nil:
		kind = symbol.KindTypeAlias
	case isGiven(d.Body):
		if ctx.Owner == nil {
			s.report(diag.Errorf(diag.KindBinding, diag.ErrGivenOutside, d.Body.Span(),
				"given outside a function: %s is a top-level definition", d.Name))
		} else {
			kind = symbol.KindGiven
		}
	}
	def, err := s.tab.Declare(ctx.Scope, kind, d.Name, d.Span(), fn)
	if err != nil {
		s.report(err)
		s.defs[d] = nil
		return nil
	}
	s.defs[d] = def
	return def
}

func isGiven(n cst.Node) bool {
	_, ok := n.(*cst.Given)
	return ok
}

// Def declares d in ctx.Scope if needed and synthesizes its body or type.
// It returns nil when the name could not be declared.
func (s *Synthesizer) Def(d *cst.Def, ctx Context) *symbol.Def {
	def, built := s.defs[d]
	if !built {
		def = s.declare(d, ctx)
	}
	if def == nil || def.Body() != nil || def.Spec() != nil || def.State() != symbol.Unbuilt {
		return def
	}
	switch def.Kind() {
	case symbol.KindTypeAlias:
		s.guard(func() { def.SetSpec(s.typeSpec(d.Type, ctx.Scope, def)) })
	case symbol.KindGiven:
		s.guard(func() { def.SetSpec(s.typeSpec(d.Body.(*cst.Given).Type, ctx.Scope, def)) })
	case symbol.KindFunc:
		if isGiven(d.Body) {
			// reported by declare
			return def
		}
		inner := ctx
		inner.Owner = def
		s.guard(func() { def.SetBody(s.Build(d.Body, inner)) })
	}
	return def
}

// guard runs fn, turning a bailout into a reported error.
func (s *Synthesizer) guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			s.report(b.err)
		}
	}()
	fn()
}

var atoms = map[string]types.Kind{
	"bool": types.Bool, "int": types.Int, "real": types.Real, "str": types.Str,
	"id": types.ID, "time_pnt": types.TimePnt, "time_diff": types.TimeDiff, "any": types.Any,
}

var wrapKinds = map[string]types.Kind{
	"opt": types.Opt, "seq": types.Seq, "list": types.List, "set": types.Set,
}

// typeSpec converts an annotation; alias names are looked up from scope on
// behalf of from.
func (s *Synthesizer) typeSpec(t cst.Type, scope symbol.ScopeID, from *symbol.Def) *symbol.TypeSpec {
	if t == nil {
		s.fail(diag.KindSyntax, diag.ErrMalformedSyntax, from.Span(), "%s has no type", from.Name())
	}
	sub := func(t cst.Type) *symbol.TypeSpec { return s.typeSpec(t, scope, from) }
	switch t := t.(type) {
	case *cst.NamedType:
		if k, ok := atoms[t.Name]; ok {
			return s.tab.AtomSpec(k, t.Span())
		}
		return s.tab.NamedSpec(scope, from.ID(), t.Name, t.Span())
	case *cst.WrapType:
		k, ok := wrapKinds[t.Kind]
		if !ok {
			s.fail(diag.KindSyntax, diag.ErrMalformedSyntax, t.Span(), "unknown type wrapper %q", t.Kind)
		}
		return s.tab.CompositeSpec(k, []*symbol.TypeSpec{sub(t.Elem)}, nil, nil, t.Span())
	case *cst.DictType:
		return s.tab.CompositeSpec(types.Dict, []*symbol.TypeSpec{sub(t.Key), sub(t.Val)}, nil, nil, t.Span())
	case *cst.ObjType:
		elems := make([]*symbol.TypeSpec, len(t.Fields))
		names := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			elems[i], names[i] = sub(f.Type), f.Name
		}
		return s.tab.CompositeSpec(types.Obj, elems, names, nil, t.Span())
	case *cst.AddrType:
		elems := make([]*symbol.TypeSpec, len(t.Members))
		dirs := make([]types.Dir, len(t.Members))
		for i, m := range t.Members {
			elems[i], dirs[i] = sub(m.Type), direction(m.Desc)
		}
		return s.tab.CompositeSpec(types.Addr, elems, nil, dirs, t.Span())
	}
	diag.Internalf(t.Span(), "unhandled type node %T", t)
	return nil
}

func direction(desc bool) types.Dir {
	if desc {
		return types.DirDesc
	}
	return types.DirAsc
}

// parseLit converts literal text according to its kind.
func parseLit(n *cst.Lit) (expr.Expr, error) {
	span := n.Span()
	switch n.Kind {
	case cst.LitBool:
		v, err := strconv.ParseBool(n.Text)
		if err != nil {
			return nil, err
		}
		return expr.NewBool(span, v), nil
	case cst.LitInt:
		v, err := strconv.ParseInt(n.Text, 0, 64)
		if err != nil {
			return nil, err
		}
		return expr.NewInt(span, v), nil
	case cst.LitReal:
		v, err := strconv.ParseFloat(n.Text, 64)
		if err != nil {
			return nil, err
		}
		return expr.NewReal(span, v), nil
	case cst.LitStr:
		return expr.NewStr(span, n.Text), nil
	case cst.LitID:
		v, err := uuid.Parse(n.Text)
		if err != nil {
			return nil, err
		}
		return expr.NewID(span, v.String()), nil
	case cst.LitTimePnt:
		v, err := time.Parse(time.RFC3339Nano, n.Text)
		if err != nil {
			return nil, err
		}
		return expr.NewTimePnt(span, v.UTC()), nil
	case cst.LitTimeDiff:
		v, err := time.ParseDuration(n.Text)
		if err != nil {
			return nil, err
		}
		return expr.NewTimeDiff(span, v), nil
	}
	return nil, fmt.Errorf("unknown literal kind %d", n.Kind)
}
