package symbol

import (
	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/expr"
	"github.com/roach88/stigc/internal/types"
)

// Ref is a lazily resolved, name-based link to a definition. The first call
// to Resolve looks the name up in the scope chain, registers the referring
// definition with the target, and caches the outcome; later calls return the
// cached outcome and register nothing.
type Ref struct {
	table *Table
	scope ScopeID
	from  DefID
	name  string
	span  diag.Span

	done bool
	id   DefID
	err  error
}

var _ expr.Link = (*Ref)(nil)

// Name returns the referenced name.
func (r *Ref) Name() string { return r.name }

// Span returns where the reference appears.
func (r *Ref) Span() diag.Span { return r.span }

// Resolve implements expr.Link.
func (r *Ref) Resolve() (DefID, error) {
	if r.done {
		return r.id, r.err
	}
	r.done = true
	id, ok := r.table.Lookup(r.scope, r.name)
	if !ok {
		r.err = diag.Errorf(diag.KindName, diag.ErrUnresolved, r.span, "%s is not defined", r.name)
		return expr.NoDef, r.err
	}
	r.id = id
	if from := r.table.Def(r.from); from != nil {
		r.table.defs[id].referrers[r.from]++
		from.addPred(id)
	}
	return id, nil
}

type specState uint8

const (
	specNew specState = iota
	specResolving
	specDone
)

// TypeSpec is a type annotation whose named parts are resolved on demand,
// so an annotation may name an alias declared later in the package.
type TypeSpec struct {
	table *Table
	kind  types.Kind
	ref   *Ref
	elems []*TypeSpec
	names []string
	dirs  []types.Dir
	span  diag.Span

	state specState
	typ   *types.Type
	err   error
}

var _ expr.TypeLink = (*TypeSpec)(nil)

// AtomSpec annotates a built-in atomic type such as int or any.
func (t *Table) AtomSpec(kind types.Kind, span diag.Span) *TypeSpec {
	return &TypeSpec{table: t, kind: kind, span: span}
}

// NamedSpec annotates a type alias by name, looked up from scope.
func (t *Table) NamedSpec(scope ScopeID, from DefID, name string, span diag.Span) *TypeSpec {
	return &TypeSpec{table: t, kind: types.Unknown, ref: t.NewRef(scope, from, name, span), span: span}
}

// CompositeSpec annotates a composite type. elems are the component
// annotations in the order types.Desc expects them; names are field names
// of an object and dirs the directions of an address.
func (t *Table) CompositeSpec(kind types.Kind, elems []*TypeSpec, names []string, dirs []types.Dir, span diag.Span) *TypeSpec {
	return &TypeSpec{table: t, kind: kind, elems: elems, names: names, dirs: dirs, span: span}
}

// Span returns where the annotation appears.
func (s *TypeSpec) Span() diag.Span { return s.span }

// Type implements expr.TypeLink. The outcome is cached, so a failing
// annotation yields the same error value to every caller.
func (s *TypeSpec) Type() (*types.Type, error) {
	switch s.state {
	case specDone:
		return s.typ, s.err
	case specResolving:
		return nil, diag.Errorf(diag.KindType, diag.ErrRecursive, s.span, "type refers to itself")
	}
	s.state = specResolving
	s.typ, s.err = s.resolve()
	s.state = specDone
	return s.typ, s.err
}

func (s *TypeSpec) resolve() (*types.Type, error) {
	eng := s.table.eng
	if s.ref != nil {
		id, err := s.ref.Resolve()
		if err != nil {
			return nil, err
		}
		d := s.table.Def(id)
		if d == nil || d.kind != KindTypeAlias {
			return nil, diag.Errorf(diag.KindName, diag.ErrUnresolved, s.span, "%s is not a type", s.ref.name)
		}
		if d.spec == nil {
			diag.Internalf(d.span, "%s has no type", d.Label())
		}
		return d.spec.Type()
	}
	switch s.kind {
	case types.Bool:
		return eng.Bool(), nil
	case types.Int:
		return eng.Int(), nil
	case types.Real:
		return eng.Real(), nil
	case types.Str:
		return eng.Str(), nil
	case types.ID:
		return eng.ID(), nil
	case types.TimePnt:
		return eng.TimePnt(), nil
	case types.TimeDiff:
		return eng.TimeDiff(), nil
	case types.Any:
		return eng.Any(), nil
	}
	elems := make([]*types.Type, len(s.elems))
	for i, e := range s.elems {
		t, err := e.Type()
		if err != nil {
			return nil, err
		}
		elems[i] = t
	}
	switch s.kind {
	case types.Obj:
		if len(s.names) != len(elems) {
			diag.Internalf(s.span, "object annotation with %d names for %d fields", len(s.names), len(elems))
		}
		fields := make([]types.Field, len(elems))
		for i, t := range elems {
			fields[i] = types.Field{Name: s.names[i], Type: t}
		}
		for i := 1; i < len(fields); i++ {
			for j := 0; j < i; j++ {
				if fields[i].Name == fields[j].Name {
					return nil, diag.Errorf(diag.KindType, diag.ErrConstruct, s.span, "field .%s declared twice", fields[i].Name)
				}
			}
		}
		return eng.Obj(fields...), nil
	case types.Addr:
		members := make([]types.Member, len(elems))
		for i, t := range elems {
			members[i] = types.Member{Dir: s.dirs[i], Type: t}
		}
		return eng.Addr(members...), nil
	case types.Opt:
		return eng.Opt(elems[0]), nil
	case types.Seq:
		return eng.Seq(elems[0]), nil
	}
	return eng.Intern(types.Desc{Kind: s.kind, Elems: elems}), nil
}

func (s *TypeSpec) forEachRef(fn func(*Ref)) {
	if s.ref != nil {
		fn(s.ref)
	}
	for _, e := range s.elems {
		e.forEachRef(fn)
	}
}
