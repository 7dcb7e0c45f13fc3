package types

import (
	"fmt"

	"github.com/roach88/stigc/internal/diag"
)

// MismatchError reports two types that a construct needed to agree on.
type MismatchError struct {
	What string
	Lhs  *Type
	Rhs  *Type
	Span diag.Span
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %s: %s and %s do not agree", e.Span, e.What, e.Lhs, e.Rhs)
}

// ErrSpan implements diag.Spanned.
func (e *MismatchError) ErrSpan() diag.Span {
	return e.Span
}

// ErrCode implements diag.Coded.
func (e *MismatchError) ErrCode() string {
	return diag.ErrConstruct
}

// Join returns the smallest type both a and b convert to: int and real join
// to real, T and T? join to T?. Unknown is absorbing.
func (e *Engine) Join(what string, a, b *Type, span diag.Span) (*Type, error) {
	t, ok := e.join(a, b)
	if !ok {
		return nil, &MismatchError{What: what, Lhs: a, Rhs: b, Span: span}
	}
	return t, nil
}

func (e *Engine) join(a, b *Type) (*Type, bool) {
	switch {
	case a == b:
		return a, true
	case a.IsUnknown() || b.IsUnknown():
		return e.unknown, true
	case a.IsOptional() || b.IsOptional():
		t, ok := e.join(a.Unwrap(), b.Unwrap())
		if !ok {
			return nil, false
		}
		return e.Opt(t), true
	case a.IsNumeric() && b.IsNumeric():
		return e.realT, true
	case a.kind == b.kind && (a.kind == List || a.kind == Set || a.kind == Seq):
		t, ok := e.join(a.Elem(), b.Elem())
		if !ok {
			return nil, false
		}
		return e.Intern(Desc{Kind: a.kind, Elems: []*Type{t}}), true
	case a.kind == Dict && b.kind == Dict:
		k, ok := e.join(a.Key(), b.Key())
		if !ok {
			return nil, false
		}
		v, ok := e.join(a.Val(), b.Val())
		if !ok {
			return nil, false
		}
		return e.Dict(k, v), true
	}
	return nil, false
}

// Accepts reports whether a value of type from may be passed where want is
// expected: equal types, int to real, and T to T?.
func (e *Engine) Accepts(want, from *Type) bool {
	if want == from || from.IsUnknown() || want.kind == Any {
		return true
	}
	if want.kind == Real && from.kind == Int {
		return true
	}
	if want.IsOptional() {
		return e.Accepts(want.Elem(), from.Unwrap())
	}
	return false
}

// unseq strips a sequence wrapper and records whether one was present.
func unseq(t *Type, seen *bool) *Type {
	if t.IsSequence() {
		*seen = true
		return t.Elem()
	}
	return t
}

// ObjOf returns the type of an object constructor. If any field is a
// sequence, the result is a sequence of objects built from the element types.
func (e *Engine) ObjOf(fields []Field) *Type {
	var isSeq bool
	plain := make([]Field, len(fields))
	for i, f := range fields {
		plain[i] = Field{Name: f.Name, Type: unseq(f.Type, &isSeq)}
	}
	t := e.Obj(plain...)
	if isSeq {
		return e.Seq(t)
	}
	return t
}

// AddrOf returns the type of an address constructor, with the same sequence
// propagation as ObjOf.
func (e *Engine) AddrOf(members []Member) *Type {
	var isSeq bool
	plain := make([]Member, len(members))
	for i, m := range members {
		plain[i] = Member{Dir: m.Dir, Type: unseq(m.Type, &isSeq)}
	}
	t := e.Addr(plain...)
	if isSeq {
		return e.Seq(t)
	}
	return t
}

// ListOf returns the type of a list constructor. Element types are joined;
// an explicit elem type is used when the list is empty and checked otherwise.
func (e *Engine) ListOf(elems []*Type, elem *Type, span diag.Span) (*Type, error) {
	return e.collectionOf(List, elems, elem, span)
}

// SetOf returns the type of a set constructor.
func (e *Engine) SetOf(elems []*Type, elem *Type, span diag.Span) (*Type, error) {
	return e.collectionOf(Set, elems, elem, span)
}

func (e *Engine) collectionOf(kind Kind, elems []*Type, elem *Type, span diag.Span) (*Type, error) {
	var isSeq bool
	what := kind.String() + " element"
	t := elem
	for _, el := range elems {
		el = unseq(el, &isSeq)
		if elem != nil {
			if err := e.accept(what, elem, el, span); err != nil {
				return nil, err
			}
			continue
		}
		if t == nil {
			t = el
			continue
		}
		j, err := e.Join(what, t, el, span)
		if err != nil {
			return nil, err
		}
		t = j
	}
	if t == nil {
		return nil, &MismatchError{What: "empty " + kind.String() + " needs an element type", Lhs: e.unknown, Rhs: e.unknown, Span: span}
	}
	res := e.Intern(Desc{Kind: kind, Elems: []*Type{t}})
	if isSeq {
		return e.Seq(res), nil
	}
	return res, nil
}

// accept checks an element against an explicit annotation.
func (e *Engine) accept(what string, want, from *Type, span diag.Span) error {
	if e.Accepts(want, from) {
		return nil
	}
	return &MismatchError{What: what, Lhs: want, Rhs: from, Span: span}
}

// DictOf returns the type of a dict constructor from its key and value types.
// Explicit key and val types are checked against every entry.
func (e *Engine) DictOf(keys, vals []*Type, key, val *Type, span diag.Span) (*Type, error) {
	var isSeq bool
	k, v := key, val
	for i := range keys {
		kt, vt := unseq(keys[i], &isSeq), unseq(vals[i], &isSeq)
		if key != nil && val != nil {
			if err := e.accept("dict key", key, kt, span); err != nil {
				return nil, err
			}
			if err := e.accept("dict value", val, vt, span); err != nil {
				return nil, err
			}
			continue
		}
		if k == nil {
			k, v = kt, vt
			continue
		}
		var err error
		if k, err = e.Join("dict key", k, kt, span); err != nil {
			return nil, err
		}
		if v, err = e.Join("dict value", v, vt, span); err != nil {
			return nil, err
		}
	}
	if k == nil || v == nil {
		return nil, &MismatchError{What: "empty dict needs key and value types", Lhs: e.unknown, Rhs: e.unknown, Span: span}
	}
	res := e.Dict(k, v)
	if isSeq {
		return e.Seq(res), nil
	}
	return res, nil
}
