// Package expr provides the typed expression intermediate representation.
//
// Expr is a sealed interface: only the node types in this package implement
// it, and every consumer dispatches with an exhaustive type switch. Nodes form
// a single-owner tree; the parent link is a non-owning back-pointer assigned
// exactly once by the parent's constructor. References to definitions are
// arena ids, never pointers into the symbol layer.
package expr

import (
	"time"

	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/types"
)

// DefID addresses a definition in the symbol arena. Zero is invalid.
type DefID uint32

// NoDef is the invalid definition id.
const NoDef DefID = 0

// IsValid reports whether id addresses a definition.
func (id DefID) IsValid() bool { return id != NoDef }

// Link is a lazily resolved reference to a definition. Resolve returns the
// same result on every call.
type Link interface {
	Name() string
	Resolve() (DefID, error)
}

// TypeLink is a lazily resolved type annotation, which may name type aliases
// that are not finished when the expression is built.
type TypeLink interface {
	Type() (*types.Type, error)
}

// Fixed is a TypeLink to an already known type.
type Fixed struct {
	T *types.Type
}

func (f Fixed) Type() (*types.Type, error) { return f.T, nil }

// Expr is a node of the expression IR.
type Expr interface {
	Span() diag.Span
	Parent() Expr
	base() *node
}

type node struct {
	span   diag.Span
	parent Expr
	typ    *types.Type
	state  typeState
}

type typeState uint8

const (
	untyped typeState = iota
	typing
	typed
)

func (n *node) Span() diag.Span { return n.span }
func (n *node) Parent() Expr    { return n.parent }
func (n *node) base() *node     { return n }

// adopt sets parent as the owner of each non-nil child. A child that already
// has an owner is a compiler bug.
func adopt(parent Expr, children ...Expr) {
	for _, c := range children {
		if c == nil {
			continue
		}
		b := c.base()
		if b.parent != nil {
			diag.Internalf(c.Span(), "expression already owned by a node at %s", b.parent.Span())
		}
		b.parent = parent
	}
}

// Detach clears the parent link of e so that another node may adopt it.
func Detach(e Expr) {
	e.base().parent = nil
}

// Typed returns the memoized type of e and whether typing has finished.
func Typed(e Expr) (*types.Type, bool) {
	b := e.base()
	return b.typ, b.state == typed
}

// Lit is a literal constant. Value holds bool, int64, float64, string,
// time.Time or time.Duration according to Kind; id literals hold their
// canonical string form.
type Lit struct {
	node
	Kind  types.Kind
	Value any
}

func NewBool(span diag.Span, v bool) *Lit       { return &Lit{node: node{span: span}, Kind: types.Bool, Value: v} }
func NewInt(span diag.Span, v int64) *Lit       { return &Lit{node: node{span: span}, Kind: types.Int, Value: v} }
func NewReal(span diag.Span, v float64) *Lit    { return &Lit{node: node{span: span}, Kind: types.Real, Value: v} }
func NewStr(span diag.Span, v string) *Lit      { return &Lit{node: node{span: span}, Kind: types.Str, Value: v} }
func NewID(span diag.Span, v string) *Lit       { return &Lit{node: node{span: span}, Kind: types.ID, Value: v} }
func NewTimePnt(span diag.Span, v time.Time) *Lit {
	return &Lit{node: node{span: span}, Kind: types.TimePnt, Value: v}
}
func NewTimeDiff(span diag.Span, v time.Duration) *Lit {
	return &Lit{node: node{span: span}, Kind: types.TimeDiff, Value: v}
}

// Ref reads the value of a named definition.
type Ref struct {
	node
	Link Link
}

// NewRef creates a reference through link.
func NewRef(span diag.Span, link Link) *Ref {
	return &Ref{node: node{span: span}, Link: link}
}

// ThatBinder connects `that` leaves with the construct that governs them.
// Each is true for filter/map/reduce, where that is one element of Source;
// for assert, that is Source itself.
type ThatBinder struct {
	Source Expr
	Each   bool
}

// That reads the current element bound by a filter, map, reduce or assert.
type That struct {
	node
	Binder *ThatBinder
}

// NewThat creates a that leaf.
func NewThat(span diag.Span, b *ThatBinder) *That {
	return &That{node: node{span: span}, Binder: b}
}

// Side selects the left or right operand of a sort comparison.
type Side uint8

const (
	LeftSide Side = iota
	RightSide
)

func (s Side) String() string {
	if s == RightSide {
		return "rhs"
	}
	return "lhs"
}

// SortBinder connects lhs/rhs leaves with the sort that governs them.
type SortBinder struct {
	Source Expr
}

// SortArg reads one of the two elements being compared by a sort.
type SortArg struct {
	node
	Side   Side
	Binder *SortBinder
}

// NewSortArg creates an lhs or rhs leaf.
func NewSortArg(span diag.Span, side Side, b *SortBinder) *SortArg {
	return &SortArg{node: node{span: span}, Side: side, Binder: b}
}

// StartBinder connects the start of a recurrence with its reduce.
type StartBinder struct {
	Start *Start
}

// Start is the initial value of a reduce accumulator; on later iterations it
// reads the accumulated value.
type Start struct {
	node
	Init   Expr
	Binder *StartBinder
}

// NewStart creates a start node and registers it with its binder.
func NewStart(span diag.Span, init Expr, b *StartBinder) *Start {
	s := &Start{node: node{span: span}, Init: init, Binder: b}
	adopt(s, init)
	b.Start = s
	return s
}

// Unary applies a unary operator.
type Unary struct {
	node
	Op      types.Op
	Operand Expr
}

// NewUnary creates a unary node.
func NewUnary(span diag.Span, op types.Op, operand Expr) *Unary {
	u := &Unary{node: node{span: span}, Op: op, Operand: operand}
	adopt(u, operand)
	return u
}

// Binary applies a binary operator.
type Binary struct {
	node
	Op  types.Op
	Lhs Expr
	Rhs Expr
}

// NewBinary creates a binary node.
func NewBinary(span diag.Span, op types.Op, lhs, rhs Expr) *Binary {
	b := &Binary{node: node{span: span}, Op: op, Lhs: lhs, Rhs: rhs}
	adopt(b, lhs, rhs)
	return b
}

// If selects Then when Cond holds and Else otherwise.
type If struct {
	node
	Cond Expr
	Then Expr
	Else Expr
}

// NewIf creates a conditional.
func NewIf(span diag.Span, cond, then, els Expr) *If {
	n := &If{node: node{span: span}, Cond: cond, Then: then, Else: els}
	adopt(n, cond, then, els)
	return n
}

// Filter keeps the elements of Seq for which Pred holds.
type Filter struct {
	node
	Seq    Expr
	Pred   Expr
	Binder *ThatBinder
}

// NewFilter creates a filter.
func NewFilter(span diag.Span, seq, pred Expr, b *ThatBinder) *Filter {
	n := &Filter{node: node{span: span}, Seq: seq, Pred: pred, Binder: b}
	adopt(n, seq, pred)
	return n
}

// Map transforms each element of Seq with Body.
type Map struct {
	node
	Seq    Expr
	Body   Expr
	Binder *ThatBinder
}

// NewMap creates a map.
func NewMap(span diag.Span, seq, body Expr, b *ThatBinder) *Map {
	n := &Map{node: node{span: span}, Seq: seq, Body: body, Binder: b}
	adopt(n, seq, body)
	return n
}

// Reduce folds Seq with Body, which must contain exactly one start.
type Reduce struct {
	node
	Seq    Expr
	Body   Expr
	Binder *ThatBinder
	Starts *StartBinder
}

// NewReduce creates a reduce.
func NewReduce(span diag.Span, seq, body Expr, b *ThatBinder, starts *StartBinder) *Reduce {
	n := &Reduce{node: node{span: span}, Seq: seq, Body: body, Binder: b, Starts: starts}
	adopt(n, seq, body)
	return n
}

// Sort orders Seq by the comparison Less over lhs and rhs.
type Sort struct {
	node
	Seq    Expr
	Less   Expr
	Binder *SortBinder
}

// NewSort creates a sort.
func NewSort(span diag.Span, seq, less Expr, b *SortBinder) *Sort {
	n := &Sort{node: node{span: span}, Seq: seq, Less: less, Binder: b}
	adopt(n, seq, less)
	return n
}

// Assert yields Value when Pred holds for it and fails at run time otherwise.
type Assert struct {
	node
	Value  Expr
	Pred   Expr
	Binder *ThatBinder
}

// NewAssert creates an assert.
func NewAssert(span diag.Span, value, pred Expr, b *ThatBinder) *Assert {
	n := &Assert{node: node{span: span}, Value: value, Pred: pred, Binder: b}
	adopt(n, value, pred)
	return n
}

// CtorKind selects the collection built by a Ctor.
type CtorKind uint8

const (
	CtorObj CtorKind = iota
	CtorAddr
	CtorList
	CtorSet
	CtorDict
)

var ctorNames = [...]string{"object", "address", "list", "set", "dict"}

func (k CtorKind) String() string { return ctorNames[k] }

// Ctor constructs an object, address, list, set or dict.
//
// Objects use Names (one per elem), addresses use Dirs (one per elem) and
// dicts interleave keys and values in Elems. Hint gives the element type of
// an empty list or set, and the dict type of an empty dict.
type Ctor struct {
	node
	Kind  CtorKind
	Elems []Expr
	Names []string
	Dirs  []types.Dir
	Hint  TypeLink
}

// NewCtor creates a constructor and adopts its elements.
func NewCtor(span diag.Span, kind CtorKind, elems []Expr, names []string, dirs []types.Dir, hint TypeLink) *Ctor {
	n := &Ctor{node: node{span: span}, Kind: kind, Elems: elems, Names: names, Dirs: dirs, Hint: hint}
	adopt(n, elems...)
	return n
}

// Member reads a field of an object.
type Member struct {
	node
	Obj   Expr
	Field string
}

// NewMember creates a member access.
func NewMember(span diag.Span, obj Expr, field string) *Member {
	n := &Member{node: node{span: span}, Obj: obj, Field: field}
	adopt(n, obj)
	return n
}

// Call invokes a function definition with named arguments.
type Call struct {
	node
	Link  Link
	Names []string
	Args  []Expr
}

// NewCall creates a call.
func NewCall(span diag.Span, link Link, names []string, args []Expr) *Call {
	n := &Call{node: node{span: span}, Link: link, Names: names, Args: args}
	adopt(n, args...)
	return n
}

// Range is the integer sequence [Lo, Hi).
type Range struct {
	node
	Lo Expr
	Hi Expr
}

// NewRange creates a range.
func NewRange(span diag.Span, lo, hi Expr) *Range {
	n := &Range{node: node{span: span}, Lo: lo, Hi: hi}
	adopt(n, lo, hi)
	return n
}

// Where evaluates Body in a nested scope holding the local definitions Defs.
type Where struct {
	node
	Body Expr
	Defs []DefID
}

// NewWhere creates a where scope.
func NewWhere(span diag.Span, body Expr, defs []DefID) *Where {
	n := &Where{node: node{span: span}, Body: body, Defs: defs}
	adopt(n, body)
	return n
}

// Read looks up the value stored at Addr; it is absent when nothing is stored.
type Read struct {
	node
	Addr Expr
	Val  TypeLink
}

// NewRead creates a database read.
func NewRead(span diag.Span, addr Expr, val TypeLink) *Read {
	n := &Read{node: node{span: span}, Addr: addr, Val: val}
	adopt(n, addr)
	return n
}

// Write stores Value at Addr.
type Write struct {
	node
	Addr  Expr
	Value Expr
}

// NewWrite creates a write statement.
func NewWrite(span diag.Span, addr, value Expr) *Write {
	n := &Write{node: node{span: span}, Addr: addr, Value: value}
	adopt(n, addr, value)
	return n
}

// Delete removes whatever is stored at Addr.
type Delete struct {
	node
	Addr Expr
}

// NewDelete creates a delete statement.
func NewDelete(span diag.Span, addr Expr) *Delete {
	n := &Delete{node: node{span: span}, Addr: addr}
	adopt(n, addr)
	return n
}

// Effects runs Stmts in order and then yields Result.
type Effects struct {
	node
	Stmts  []Expr
	Result Expr
}

// NewEffects creates an effect block.
func NewEffects(span diag.Span, stmts []Expr, result Expr) *Effects {
	n := &Effects{node: node{span: span}, Stmts: stmts, Result: result}
	adopt(n, stmts...)
	adopt(n, result)
	return n
}
