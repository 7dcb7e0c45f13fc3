// Package types is the Type Engine: structurally interned type values and the
// per-operator resolution rules that compute result types.
//
// Every compiled unit owns a private Engine. Two types built by the same
// Engine with identical structure are the same *Type, so equality is pointer
// equality. Types are never mutated after interning.
package types

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies the shape of a type.
type Kind uint8

const (
	Unknown Kind = iota
	Any
	Err
	Bool
	Int
	Real
	Str
	ID
	TimePnt
	TimeDiff
	Opt
	Seq
	List
	Set
	Dict
	Obj
	Addr
	Func
)

var kindNames = [...]string{
	Unknown:  "unknown",
	Any:      "any",
	Err:      "error",
	Bool:     "bool",
	Int:      "int",
	Real:     "real",
	Str:      "str",
	ID:       "id",
	TimePnt:  "time_pnt",
	TimeDiff: "time_diff",
	Opt:      "opt",
	Seq:      "seq",
	List:     "list",
	Set:      "set",
	Dict:     "dict",
	Obj:      "obj",
	Addr:     "addr",
	Func:     "func",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Dir is the sort direction of an address member.
type Dir uint8

const (
	DirAsc Dir = iota
	DirDesc
)

func (d Dir) String() string {
	if d == DirDesc {
		return "desc"
	}
	return "asc"
}

// Field is a named member of an object type.
type Field struct {
	Name string
	Type *Type
}

// Member is a member of an address tuple with its sort direction.
type Member struct {
	Dir  Dir
	Type *Type
}

// Type is an interned type value. Obtain types only from an Engine.
type Type struct {
	id    uint32
	kind  Kind
	elems []*Type
	names []string
	dirs  []Dir
	str   string
}

// Kind returns the kind of t.
func (t *Type) Kind() Kind { return t.kind }

// ID returns the engine-local interning id of t.
func (t *Type) ID() uint32 { return t.id }

// IsSequence reports whether t is a sequence.
func (t *Type) IsSequence() bool { return t.kind == Seq }

// IsOptional reports whether t is an optional.
func (t *Type) IsOptional() bool { return t.kind == Opt }

// IsNumeric reports whether t is int or real.
func (t *Type) IsNumeric() bool { return t.kind == Int || t.kind == Real }

// IsUnknown reports whether t is the unknown type.
func (t *Type) IsUnknown() bool { return t.kind == Unknown }

// Elem returns the element type of opt, seq, list and set types.
func (t *Type) Elem() *Type {
	switch t.kind {
	case Opt, Seq, List, Set:
		return t.elems[0]
	}
	return nil
}

// Key returns the key type of a dict.
func (t *Type) Key() *Type {
	if t.kind != Dict {
		return nil
	}
	return t.elems[0]
}

// Val returns the value type of a dict.
func (t *Type) Val() *Type {
	if t.kind != Dict {
		return nil
	}
	return t.elems[1]
}

// Param returns the parameter type of a function.
func (t *Type) Param() *Type {
	if t.kind != Func {
		return nil
	}
	return t.elems[0]
}

// Result returns the result type of a function.
func (t *Type) Result() *Type {
	if t.kind != Func {
		return nil
	}
	return t.elems[1]
}

// Fields returns the fields of an object type, sorted by name.
func (t *Type) Fields() []Field {
	if t.kind != Obj {
		return nil
	}
	out := make([]Field, len(t.names))
	for i, name := range t.names {
		out[i] = Field{Name: name, Type: t.elems[i]}
	}
	return out
}

// Field returns the type of the named field of an object type.
func (t *Type) Field(name string) (*Type, bool) {
	if t.kind != Obj {
		return nil, false
	}
	i, ok := slices.BinarySearch(t.names, name)
	if !ok {
		return nil, false
	}
	return t.elems[i], true
}

// Members returns the members of an address type.
func (t *Type) Members() []Member {
	if t.kind != Addr {
		return nil
	}
	out := make([]Member, len(t.elems))
	for i, e := range t.elems {
		out[i] = Member{Dir: t.dirs[i], Type: e}
	}
	return out
}

// Unwrap strips one level of opt, returning t itself otherwise.
func (t *Type) Unwrap() *Type {
	if t.kind == Opt {
		return t.elems[0]
	}
	return t
}

func (t *Type) String() string {
	return t.str
}

// Desc is the structural description of a type. It is the canonicalization
// key for interning.
type Desc struct {
	Kind  Kind
	Elems []*Type
	Names []string
	Dirs  []Dir
}

func (d Desc) key() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(d.Kind)))
	b.WriteByte('(')
	for i, e := range d.Elems {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(e.id), 10))
	}
	b.WriteByte(';')
	for i, n := range d.Names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(n))
	}
	b.WriteByte(';')
	for _, dir := range d.Dirs {
		b.WriteByte('0' + byte(dir))
	}
	b.WriteByte(')')
	return b.String()
}

func (d Desc) render() string {
	switch d.Kind {
	case Opt:
		return d.Elems[0].str + "?"
	case Seq:
		return d.Elems[0].str + "*"
	case List:
		return "[" + d.Elems[0].str + "]"
	case Set:
		return "{" + d.Elems[0].str + "}"
	case Dict:
		return "{" + d.Elems[0].str + ": " + d.Elems[1].str + "}"
	case Obj:
		parts := make([]string, len(d.Names))
		for i, n := range d.Names {
			parts[i] = "." + n + ": " + d.Elems[i].str
		}
		return "<{" + strings.Join(parts, ", ") + "}>"
	case Addr:
		parts := make([]string, len(d.Elems))
		for i, e := range d.Elems {
			parts[i] = e.str
			if d.Dirs[i] == DirDesc {
				parts[i] += " desc"
			}
		}
		return "<[" + strings.Join(parts, ", ") + "]>"
	case Func:
		return d.Elems[0].str + " -> " + d.Elems[1].str
	}
	return d.Kind.String()
}

// Engine interns types for one compiled unit. It is not safe for concurrent
// use; independent units use independent engines.
type Engine struct {
	table map[string]*Type
	next  uint32

	unknown, anyT, errT                     *Type
	boolT, intT, realT, strT, idT           *Type
	timePnt, timeDiff, emptyObj, emptyAddrT *Type
}

// NewEngine creates an Engine with the atomic types pre-interned.
func NewEngine() *Engine {
	e := &Engine{table: make(map[string]*Type)}
	e.unknown = e.Intern(Desc{Kind: Unknown})
	e.anyT = e.Intern(Desc{Kind: Any})
	e.errT = e.Intern(Desc{Kind: Err})
	e.boolT = e.Intern(Desc{Kind: Bool})
	e.intT = e.Intern(Desc{Kind: Int})
	e.realT = e.Intern(Desc{Kind: Real})
	e.strT = e.Intern(Desc{Kind: Str})
	e.idT = e.Intern(Desc{Kind: ID})
	e.timePnt = e.Intern(Desc{Kind: TimePnt})
	e.timeDiff = e.Intern(Desc{Kind: TimeDiff})
	e.emptyObj = e.Intern(Desc{Kind: Obj})
	e.emptyAddrT = e.Intern(Desc{Kind: Addr})
	return e
}

// Intern returns the canonical handle for d. The description's slices are
// copied; callers may reuse them.
func (e *Engine) Intern(d Desc) *Type {
	e.check(d)
	key := d.key()
	if t, ok := e.table[key]; ok {
		return t
	}
	e.next++
	t := &Type{
		id:    e.next,
		kind:  d.Kind,
		elems: slices.Clone(d.Elems),
		names: slices.Clone(d.Names),
		dirs:  slices.Clone(d.Dirs),
		str:   d.render(),
	}
	e.table[key] = t
	return t
}

// Len returns the number of interned types.
func (e *Engine) Len() int {
	return len(e.table)
}

func (e *Engine) check(d Desc) {
	want := -1
	switch d.Kind {
	case Opt, Seq, List, Set:
		want = 1
	case Dict, Func:
		want = 2
	case Obj:
		if len(d.Names) != len(d.Elems) {
			panic(fmt.Sprintf("types: object with %d names and %d fields", len(d.Names), len(d.Elems)))
		}
	case Addr:
		if len(d.Dirs) != len(d.Elems) {
			panic(fmt.Sprintf("types: address with %d dirs and %d members", len(d.Dirs), len(d.Elems)))
		}
	default:
		want = 0
	}
	if want >= 0 && len(d.Elems) != want {
		panic(fmt.Sprintf("types: %s takes %d component types, got %d", d.Kind, want, len(d.Elems)))
	}
	for _, el := range d.Elems {
		if el == nil {
			panic(fmt.Sprintf("types: nil component in %s", d.Kind))
		}
	}
}

func (e *Engine) Unknown() *Type  { return e.unknown }
func (e *Engine) Any() *Type      { return e.anyT }
func (e *Engine) Err() *Type      { return e.errT }
func (e *Engine) Bool() *Type     { return e.boolT }
func (e *Engine) Int() *Type      { return e.intT }
func (e *Engine) Real() *Type     { return e.realT }
func (e *Engine) Str() *Type      { return e.strT }
func (e *Engine) ID() *Type       { return e.idT }
func (e *Engine) TimePnt() *Type  { return e.timePnt }
func (e *Engine) TimeDiff() *Type { return e.timeDiff }

// Opt returns elem?, collapsing nested optionals.
func (e *Engine) Opt(elem *Type) *Type {
	if elem.kind == Opt || elem.kind == Unknown {
		return elem
	}
	return e.Intern(Desc{Kind: Opt, Elems: []*Type{elem}})
}

// Seq returns elem*, collapsing nested sequences.
func (e *Engine) Seq(elem *Type) *Type {
	if elem.kind == Seq || elem.kind == Unknown {
		return elem
	}
	return e.Intern(Desc{Kind: Seq, Elems: []*Type{elem}})
}

// List returns [elem].
func (e *Engine) List(elem *Type) *Type {
	return e.Intern(Desc{Kind: List, Elems: []*Type{elem}})
}

// Set returns {elem}.
func (e *Engine) Set(elem *Type) *Type {
	return e.Intern(Desc{Kind: Set, Elems: []*Type{elem}})
}

// Dict returns {key: val}.
func (e *Engine) Dict(key, val *Type) *Type {
	return e.Intern(Desc{Kind: Dict, Elems: []*Type{key, val}})
}

// Func returns param -> result.
func (e *Engine) Func(param, result *Type) *Type {
	return e.Intern(Desc{Kind: Func, Elems: []*Type{param, result}})
}

// Obj returns the object type with the given fields. Field order does not
// matter; duplicate names panic, callers reject them first.
func (e *Engine) Obj(fields ...Field) *Type {
	if len(fields) == 0 {
		return e.emptyObj
	}
	sorted := slices.Clone(fields)
	slices.SortFunc(sorted, func(a, b Field) int { return strings.Compare(a.Name, b.Name) })
	d := Desc{Kind: Obj}
	for i, f := range sorted {
		if i > 0 && sorted[i-1].Name == f.Name {
			panic("types: duplicate object field " + f.Name)
		}
		d.Names = append(d.Names, f.Name)
		d.Elems = append(d.Elems, f.Type)
	}
	return e.Intern(d)
}

// Addr returns the address type with the given members in order.
func (e *Engine) Addr(members ...Member) *Type {
	if len(members) == 0 {
		return e.emptyAddrT
	}
	d := Desc{Kind: Addr}
	for _, m := range members {
		d.Elems = append(d.Elems, m.Type)
		d.Dirs = append(d.Dirs, m.Dir)
	}
	return e.Intern(d)
}
