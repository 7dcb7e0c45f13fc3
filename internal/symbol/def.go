// Package symbol manages named definitions, the scopes that hold them, and
// the pass-major scheduler that drives them to completion.
//
// Definitions live in an arena owned by a Table and are addressed by DefID.
// Nothing outside the arena holds a pointer to a Def across passes: removing
// a definition marks its arena slot, and later lookups of the id fail.
package symbol

import (
	"fmt"
	"slices"

	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/expr"
	"github.com/roach88/stigc/internal/types"
)

// DefID addresses a definition in a Table.
type DefID = expr.DefID

// Kind is the kind of a definition.
type Kind uint8

const (
	// KindFunc is a user definition with a body; it takes parameters when its
	// body declares givens.
	KindFunc Kind = iota + 1

	// KindGiven is a parameter of the enclosing function.
	KindGiven

	// KindResult is a built-in function from the registry.
	KindResult

	// KindTypeAlias names a type.
	KindTypeAlias
)

func (k Kind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindGiven:
		return "given"
	case KindResult:
		return "builtin"
	case KindTypeAlias:
		return "type"
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// State is a step in a definition's build state machine.
//
//	Result, Given, TypeAlias: Unbuilt -> Finished
//	Func:                     Unbuilt -> Bound -> Typed -> Finished
type State uint8

const (
	Unbuilt State = iota
	Bound
	Typed
	Finished
)

var stateNames = [...]string{"unbuilt", "bound", "typed", "finished"}

func (s State) String() string { return stateNames[s] }

// Def is a named, referenceable definition.
type Def struct {
	table *Table
	id    DefID
	name  string
	kind  Kind
	span  diag.Span
	scope ScopeID
	fn    DefID

	body    expr.Expr
	spec    *TypeSpec
	builtin *Builtin

	params    []DefID
	preds     []DefID
	referrers map[DefID]int

	state   State
	removed bool
	typing  bool
	sig     *expr.Signature
}

func (d *Def) ID() DefID         { return d.id }
func (d *Def) Name() string      { return d.name }
func (d *Def) Kind() Kind        { return d.kind }
func (d *Def) Span() diag.Span   { return d.span }
func (d *Def) Scope() ScopeID    { return d.scope }
func (d *Def) State() State      { return d.state }
func (d *Def) Removed() bool     { return d.removed }
func (d *Def) Body() expr.Expr   { return d.body }
func (d *Def) Spec() *TypeSpec   { return d.spec }
func (d *Def) Builtin() *Builtin { return d.builtin }
func (d *Def) Label() string     { return d.kind.String() + " " + d.name }
func (d *Def) Params() []DefID   { return slices.Clone(d.params) }
func (d *Def) Preds() []DefID    { return slices.Clone(d.preds) }
func (d *Def) IsTopLevel() bool  { return d.fn == expr.NoDef }
func (d *Def) Fn() DefID         { return d.fn }
func (d *Def) String() string    { return d.Label() }

// Referrers returns the definitions whose bodies bind a reference to d, in
// id order.
func (d *Def) Referrers() []DefID {
	out := make([]DefID, 0, len(d.referrers))
	for id := range d.referrers {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// SetBody attaches the synthesized body. A body is set at most once.
func (d *Def) SetBody(body expr.Expr) {
	if d.body != nil {
		diag.Internalf(d.span, "%s already has a body", d.Label())
	}
	if d.kind != KindFunc {
		diag.Internalf(d.span, "%s cannot have a body", d.Label())
	}
	d.body = body
}

// SetSpec attaches the type annotation of a given or type alias.
func (d *Def) SetSpec(spec *TypeSpec) {
	if d.spec != nil {
		diag.Internalf(d.span, "%s already has a type", d.Label())
	}
	d.spec = spec
}

// AddParam registers a given as a parameter of d. Adding the same given
// twice is a no-op.
func (d *Def) AddParam(given DefID) {
	if d.kind != KindFunc {
		diag.Internalf(d.span, "%s cannot take parameters", d.Label())
	}
	if !slices.Contains(d.params, given) {
		d.params = append(d.params, given)
	}
}

// RemoveParam is the inverse of AddParam.
func (d *Def) RemoveParam(given DefID) {
	d.params = slices.DeleteFunc(d.params, func(id DefID) bool { return id == given })
}

// Result returns the computed result type, or nil before typing.
func (d *Def) Result() *types.Type {
	if d.sig == nil {
		return nil
	}
	return d.sig.Result
}

// Build advances d by one step of its state machine and reports whether it
// has finished. It implements Builder.
func (d *Def) Build(pass int) bool {
	if d.removed || d.state == Finished {
		return true
	}
	t := d.table
	switch d.kind {
	case KindResult:
		d.state = Finished
		return true

	case KindTypeAlias:
		if d.spec == nil {
			diag.Internalf(d.span, "%s has no type", d.Label())
		}
		if _, err := d.spec.Type(); err != nil {
			t.report(err)
		}
		d.state = Finished
		return true

	case KindGiven:
		fn := t.Def(d.fn)
		if fn == nil {
			diag.Internalf(d.span, "%s has no enclosing function", d.Label())
		}
		fn.AddParam(d.id)
		if d.spec != nil {
			if _, err := d.spec.Type(); err != nil {
				t.report(err)
			}
		}
		d.state = Finished
		return true
	}

	switch d.state {
	case Unbuilt:
		if d.body != nil {
			for _, link := range expr.Refs(d.body) {
				if _, err := link.Resolve(); err != nil {
					t.report(err)
				}
			}
		}
		d.state = Bound
		return false

	case Bound:
		if pass < 2 {
			diag.Internalf(d.span, "%s typed in pass %d", d.Label(), pass)
		}
		if _, err := t.Signature(d.id); err != nil {
			t.report(err)
		}
		d.state = Typed
		return false

	case Typed:
		for _, id := range d.preds {
			p := t.defs[id]
			if p.removed {
				continue
			}
			if p.state < Typed {
				diag.Internalf(d.span, "%s finished before its predecessor %s (%s)", d.Label(), p.Label(), p.state)
			}
		}
		d.state = Finished
		return true
	}
	diag.Internalf(d.span, "%s in state %s", d.Label(), d.state)
	return false
}

// ForEachPred calls fn for each definition d depends on at the given pass.
// Before binding (pass 1) a function has no known predecessors; afterwards
// they are its bound references followed by its parameters. Givens and type
// aliases depend on the aliases their annotation names.
func (d *Def) ForEachPred(pass int, fn func(*Def)) {
	t := d.table
	switch d.kind {
	case KindFunc:
		if pass < 2 && d.state < Bound {
			return
		}
		for _, id := range d.preds {
			if p := t.Def(id); p != nil {
				fn(p)
			}
		}
		for _, id := range d.params {
			if p := t.Def(id); p != nil {
				fn(p)
			}
		}
	case KindGiven, KindTypeAlias:
		if d.spec == nil {
			return
		}
		d.spec.forEachRef(func(r *Ref) {
			if id, err := r.Resolve(); err == nil {
				if p := t.Def(id); p != nil {
					fn(p)
				}
			}
		})
	}
}

func (d *Def) addPred(id DefID) {
	if !slices.Contains(d.preds, id) {
		d.preds = append(d.preds, id)
	}
}
