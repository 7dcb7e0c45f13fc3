// Package cst defines the concrete syntax tree consumed by synthesis and
// loads it from YAML, JSON or CUE documents.
//
// Node and Type are closed: only the types in this package implement them.
// Every node carries the source span it was read from.
package cst

import "github.com/roach88/stigc/internal/diag"

// Node is an expression or definition node.
type Node interface {
	Span() diag.Span
	isNode()
}

// Type is a type annotation node.
type Type interface {
	Span() diag.Span
	isType()
}

type pos struct {
	span diag.Span
}

func (p pos) Span() diag.Span { return p.span }
func (pos) isNode()           {}

type typePos struct {
	span diag.Span
}

func (p typePos) Span() diag.Span { return p.span }
func (typePos) isType()           {}

// Package is a compiled unit: a dotted name and its top-level definitions.
type Package struct {
	pos
	Name []string
	Defs []*Def
}

// Def binds Name to either an expression Body or, for a type alias, a Type.
type Def struct {
	pos
	Name string
	Body Node
	Type Type
}

// LitKind selects the literal syntax.
type LitKind uint8

const (
	LitBool LitKind = iota
	LitInt
	LitReal
	LitStr
	LitID
	LitTimePnt
	LitTimeDiff
)

var litNames = [...]string{"bool", "int", "real", "str", "id", "time_pnt", "time_diff"}

func (k LitKind) String() string { return litNames[k] }

// Lit is a literal in source text form; synthesis parses it.
type Lit struct {
	pos
	Kind LitKind
	Text string
}

// Ident names a definition.
type Ident struct {
	pos
	Name string
}

// That is the current element of a filter, map, reduce or assert.
type That struct{ pos }

// Lhs and Rhs are the elements compared by a sort.
type Lhs struct{ pos }
type Rhs struct{ pos }

// Start is the initial value of a reduce accumulator.
type Start struct {
	pos
	Init Node
}

// Given declares a parameter of the enclosing function.
type Given struct {
	pos
	Type Type
}

// Unary applies Op ("neg", "not", "seq_of", "is_known").
type Unary struct {
	pos
	Op      string
	Operand Node
}

// Binary applies Op ("add", "sub", ..., "eq", "lt", ..., "and", "or").
type Binary struct {
	pos
	Op       string
	Lhs, Rhs Node
}

type If struct {
	pos
	Cond, Then, Else Node
}

type Filter struct {
	pos
	Seq, Pred Node
}

type Map struct {
	pos
	Seq, Body Node
}

type Reduce struct {
	pos
	Seq, Body Node
}

type Sort struct {
	pos
	Seq, Less Node
}

type Assert struct {
	pos
	Value, Pred Node
}

// Field is a named member of an object constructor or call.
type Field struct {
	Name  string
	Value Node
}

type Obj struct {
	pos
	Fields []Field
}

// AddrMember is one component of an address; Desc sorts it descending.
type AddrMember struct {
	Desc  bool
	Value Node
}

type Addr struct {
	pos
	Members []AddrMember
}

// List and Set take an element annotation when they may be empty.
type List struct {
	pos
	Elems []Node
	Elem  Type
}

type Set struct {
	pos
	Elems []Node
	Elem  Type
}

type Entry struct {
	Key, Value Node
}

type Dict struct {
	pos
	Entries  []Entry
	Key, Val Type
}

type Member struct {
	pos
	Obj   Node
	Field string
}

// Call invokes Fn with named arguments.
type Call struct {
	pos
	Fn   string
	Args []Field
}

type Range struct {
	pos
	Lo, Hi Node
}

// Where evaluates Body with the local definitions Defs in scope.
type Where struct {
	pos
	Body Node
	Defs []*Def
}

type Read struct {
	pos
	Addr Node
	Type Type
}

type Write struct {
	pos
	Addr, Value Node
}

type Delete struct {
	pos
	Addr Node
}

type Effects struct {
	pos
	Stmts  []Node
	Result Node
}

// NamedType is an atomic type (int, str, ...) or a type alias.
type NamedType struct {
	typePos
	Name string
}

// WrapType is opt, seq, list or set of Elem.
type WrapType struct {
	typePos
	Kind string
	Elem Type
}

type DictType struct {
	typePos
	Key, Val Type
}

type TypeField struct {
	Name string
	Type Type
}

type ObjType struct {
	typePos
	Fields []TypeField
}

type TypeMember struct {
	Desc bool
	Type Type
}

type AddrType struct {
	typePos
	Members []TypeMember
}
