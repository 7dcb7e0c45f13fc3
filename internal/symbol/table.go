package symbol

import (
	"slices"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/expr"
	"github.com/roach88/stigc/internal/types"
)

// ScopeID addresses a scope in a Table. Zero is invalid.
type ScopeID uint32

// Scope is a set of uniquely named definitions plus nested scopes.
type Scope struct {
	id       ScopeID
	parent   ScopeID
	fn       DefID
	names    map[string]DefID
	defs     []DefID
	children []ScopeID
	removed  bool
}

func (s *Scope) ID() ScopeID         { return s.id }
func (s *Scope) Parent() ScopeID     { return s.parent }
func (s *Scope) Fn() DefID           { return s.fn }
func (s *Scope) Defs() []DefID       { return slices.Clone(s.defs) }
func (s *Scope) Children() []ScopeID { return slices.Clone(s.children) }

// Table owns the definition arena and scope tree of one compiled unit. It is
// not safe for concurrent use; independent units use independent tables.
type Table struct {
	eng    *types.Engine
	defs   []*Def
	scopes []*Scope
	typer  *expr.Typer
	report func(error)
}

// NewTable creates a table whose universe scope holds the built-in
// functions. Recoverable errors found while resolving are passed to report.
func NewTable(eng *types.Engine, report func(error)) *Table {
	if report == nil {
		report = func(error) {}
	}
	t := &Table{
		eng:    eng,
		defs:   []*Def{nil},
		scopes: []*Scope{nil},
		report: report,
	}
	t.typer = &expr.Typer{Engine: eng, Defs: t, Report: report}
	universe := t.NewScope(0, expr.NoDef)
	for _, b := range Builtins() {
		d, err := t.Declare(universe, KindResult, b.Name, diag.Span{}, expr.NoDef)
		if err != nil {
			diag.Internalf(diag.Span{}, "builtin registry: %v", err)
		}
		d.builtin = b
		d.state = Finished
	}
	return t
}

// Universe is the outermost scope, holding the built-ins.
func (t *Table) Universe() ScopeID { return 1 }

// Engine returns the type engine the table interns into.
func (t *Table) Engine() *types.Engine { return t.eng }

// Typer returns the expression typer bound to this table.
func (t *Table) Typer() *expr.Typer { return t.typer }

// NewScope creates a scope nested in parent. fn is the function whose body
// the scope belongs to, or NoDef for a package scope.
func (t *Table) NewScope(parent ScopeID, fn DefID) ScopeID {
	id := ScopeID(len(t.scopes))
	t.scopes = append(t.scopes, &Scope{id: id, parent: parent, fn: fn, names: make(map[string]DefID)})
	if parent != 0 {
		p := t.scope(parent)
		p.children = append(p.children, id)
	}
	return id
}

// Scope returns the scope with the given id, or nil when it was removed.
func (t *Table) Scope(id ScopeID) *Scope {
	if int(id) <= 0 || int(id) >= len(t.scopes) || t.scopes[id].removed {
		return nil
	}
	return t.scopes[id]
}

func (t *Table) scope(id ScopeID) *Scope {
	s := t.Scope(id)
	if s == nil {
		diag.Internalf(diag.Span{}, "no scope %d", id)
	}
	return s
}

// Declare creates a definition named name in scope. fn is the function the
// definition belongs to: the function a given is a parameter of, or the
// function enclosing a local definition. Redeclaring a name in the same scope
// fails; shadowing a name of an outer scope is allowed.
func (t *Table) Declare(scope ScopeID, kind Kind, name string, span diag.Span, fn DefID) (*Def, error) {
	s := t.scope(scope)
	name = norm.NFC.String(name)
	if prev, dup := s.names[name]; dup {
		return nil, diag.Errorf(diag.KindName, diag.ErrDuplicateName, span,
			"%s is already defined at %s", name, t.defs[prev].span)
	}
	d := &Def{
		table:     t,
		id:        DefID(len(t.defs)),
		name:      name,
		kind:      kind,
		span:      span,
		scope:     scope,
		fn:        fn,
		referrers: make(map[DefID]int),
	}
	t.defs = append(t.defs, d)
	s.names[name] = d.id
	s.defs = append(s.defs, d.id)
	return d, nil
}

// Def returns the live definition with the given id, or nil when the id is
// invalid or the definition was removed.
func (t *Table) Def(id DefID) *Def {
	if !id.IsValid() || int(id) >= len(t.defs) || t.defs[id].removed {
		return nil
	}
	return t.defs[id]
}

// Defs returns the live user definitions (everything but built-ins) in
// declaration order.
func (t *Table) Defs() []*Def {
	var out []*Def
	for _, d := range t.defs[1:] {
		if !d.removed && d.kind != KindResult {
			out = append(out, d)
		}
	}
	return out
}

// Lookup finds name in scope or the nearest enclosing scope.
func (t *Table) Lookup(scope ScopeID, name string) (DefID, bool) {
	name = norm.NFC.String(name)
	for id := scope; id != 0; {
		s := t.scope(id)
		if d, ok := s.names[name]; ok {
			return d, true
		}
		id = s.parent
	}
	return expr.NoDef, false
}

// NewRef creates an unresolved reference to name, looked up from scope on
// behalf of the definition from.
func (t *Table) NewRef(scope ScopeID, from DefID, name string, span diag.Span) *Ref {
	return &Ref{table: t, scope: scope, from: from, name: norm.NFC.String(name), span: span}
}

// Remove destroys a definition. It deregisters from every definition it
// referenced and from its function's parameters, and its name leaves its
// scope. References already bound to it fail on their next lookup.
func (t *Table) Remove(id DefID) {
	d := t.Def(id)
	if d == nil {
		return
	}
	for _, p := range d.preds {
		delete(t.defs[p].referrers, id)
	}
	if d.kind == KindGiven {
		if fn := t.Def(d.fn); fn != nil {
			fn.RemoveParam(id)
		}
	}
	if s := t.Scope(d.scope); s != nil {
		if s.names[d.name] == id {
			delete(s.names, d.name)
		}
		s.defs = slices.DeleteFunc(s.defs, func(x DefID) bool { return x == id })
	}
	d.removed = true
}

// RemoveScope removes a scope, its nested scopes and every definition they
// hold.
func (t *Table) RemoveScope(id ScopeID) {
	s := t.Scope(id)
	if s == nil {
		return
	}
	for _, c := range s.Children() {
		t.RemoveScope(c)
	}
	for _, d := range s.Defs() {
		t.Remove(d)
	}
	if p := t.Scope(s.parent); p != nil {
		p.children = slices.DeleteFunc(p.children, func(x ScopeID) bool { return x == id })
	}
	s.removed = true
}

// Signature implements expr.Defs. A function's type is computed on first
// use from its parameters and body; a function whose type depends on itself
// is an error.
func (t *Table) Signature(id DefID) (*expr.Signature, error) {
	if int(id) <= 0 || int(id) >= len(t.defs) {
		diag.Internalf(diag.Span{}, "signature of invalid definition %d", id)
	}
	d := t.defs[id]
	if d.removed {
		return nil, diag.Errorf(diag.KindName, diag.ErrUnresolved, d.span, "%s was removed", d.Label())
	}
	if d.sig != nil {
		return d.sig, nil
	}
	switch d.kind {
	case KindResult:
		d.sig = d.builtin.signature(t.eng)
	case KindGiven:
		d.sig = &expr.Signature{Name: d.name, Result: t.specType(d), IsValue: true}
	case KindTypeAlias:
		d.sig = &expr.Signature{Name: d.name, Result: t.specType(d)}
	case KindFunc:
		if d.typing {
			return nil, diag.Errorf(diag.KindType, diag.ErrRecursive, d.span,
				"type of %s depends on itself", d.name)
		}
		d.typing = true
		params := make([]types.Field, 0, len(d.params))
		for _, p := range d.params {
			g := t.defs[p]
			params = append(params, types.Field{Name: g.name, Type: t.specType(g)})
		}
		result := t.eng.Unknown()
		if d.body != nil {
			result = t.typer.TypeOf(d.body)
		}
		d.typing = false
		d.sig = &expr.Signature{Name: d.name, Params: params, Result: result, IsValue: true}
	}
	return d.sig, nil
}

// specType resolves a definition's annotation, reporting failure and
// falling back to unknown.
func (t *Table) specType(d *Def) *types.Type {
	if d.spec == nil {
		return t.eng.Unknown()
	}
	typ, err := d.spec.Type()
	if err != nil {
		t.report(err)
		return t.eng.Unknown()
	}
	return typ
}
