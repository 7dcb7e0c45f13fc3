package types

import (
	"fmt"

	"github.com/roach88/stigc/internal/diag"
)

// Op is a binary or unary operator.
type Op uint8

const (
	OpAdd Op = iota + 1
	OpSub
	OpMult
	OpDiv
	OpMod
	OpExp
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNeg
	OpNot
	OpSeqOf
	OpIsKnown
)

var opNames = map[Op]string{
	OpAdd: "+", OpSub: "-", OpMult: "*", OpDiv: "/", OpMod: "%", OpExp: "**",
	OpEq: "==", OpNeq: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpAnd: "and", OpOr: "or", OpNeg: "-", OpNot: "not", OpSeqOf: "seq_of",
	OpIsKnown: "is_known",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// IsUnary reports whether o takes a single operand.
func (o Op) IsUnary() bool {
	return o >= OpNeg
}

// IsArith reports whether o is an arithmetic binary operator.
func (o Op) IsArith() bool {
	return o >= OpAdd && o <= OpExp
}

// IsCompare reports whether o is a comparison.
func (o Op) IsCompare() bool {
	return o >= OpEq && o <= OpGe
}

// IsLogical reports whether o is and/or.
func (o Op) IsLogical() bool {
	return o == OpAnd || o == OpOr
}

// TypeError reports an operator or construct that rejected its operand types.
// Rhs is nil for unary operators.
type TypeError struct {
	Op   Op
	Lhs  *Type
	Rhs  *Type
	Span diag.Span
}

func (e *TypeError) Error() string {
	if e.Rhs == nil {
		return fmt.Sprintf("%s: operator %s is not defined on %s", e.Span, e.Op, e.Lhs)
	}
	return fmt.Sprintf("%s: operator %s is not defined on (%s, %s)", e.Span, e.Op, e.Lhs, e.Rhs)
}

// ErrSpan implements diag.Spanned.
func (e *TypeError) ErrSpan() diag.Span {
	return e.Span
}

// binaryRule resolves the result of an operator on operands that are neither
// unknown nor optional. It reports false when the operands are rejected.
type binaryRule func(e *Engine, lhs, rhs *Type) (*Type, bool)

var binaryRules = map[Op]binaryRule{
	OpAdd:  addRule,
	OpSub:  subRule,
	OpMult: multRule,
	OpDiv:  divRule,
	OpMod:  numericRule,
	OpExp:  numericRule,
	OpLt:   orderRule,
	OpLe:   orderRule,
	OpGt:   orderRule,
	OpGe:   orderRule,
	OpAnd:  logicalRule,
	OpOr:   logicalRule,
}

// ResolveAdd resolves lhs + rhs.
func (e *Engine) ResolveAdd(lhs, rhs *Type, span diag.Span) (*Type, error) {
	return e.ResolveBinary(OpAdd, lhs, rhs, span)
}

// ResolveSub resolves lhs - rhs.
func (e *Engine) ResolveSub(lhs, rhs *Type, span diag.Span) (*Type, error) {
	return e.ResolveBinary(OpSub, lhs, rhs, span)
}

// ResolveMult resolves lhs * rhs.
func (e *Engine) ResolveMult(lhs, rhs *Type, span diag.Span) (*Type, error) {
	return e.ResolveBinary(OpMult, lhs, rhs, span)
}

// ResolveDiv resolves lhs / rhs.
func (e *Engine) ResolveDiv(lhs, rhs *Type, span diag.Span) (*Type, error) {
	return e.ResolveBinary(OpDiv, lhs, rhs, span)
}

// ResolveMod resolves lhs % rhs.
func (e *Engine) ResolveMod(lhs, rhs *Type, span diag.Span) (*Type, error) {
	return e.ResolveBinary(OpMod, lhs, rhs, span)
}

// ResolveExp resolves lhs ** rhs.
func (e *Engine) ResolveExp(lhs, rhs *Type, span diag.Span) (*Type, error) {
	return e.ResolveBinary(OpExp, lhs, rhs, span)
}

// ResolveBinary resolves any binary operator.
//
// Unknown operands are absorbing: the result is unknown and no error is
// reported, so one failure does not cascade. An optional operand is
// unwrapped, the operator is resolved on the element types, and the result is
// wrapped in opt again. Equality is defined on any pair of joinable types and
// always yields bool.
func (e *Engine) ResolveBinary(op Op, lhs, rhs *Type, span diag.Span) (*Type, error) {
	if lhs.IsUnknown() || rhs.IsUnknown() {
		return e.unknown, nil
	}
	if op == OpEq || op == OpNeq {
		if _, ok := e.join(lhs, rhs); !ok {
			return nil, &TypeError{Op: op, Lhs: lhs, Rhs: rhs, Span: span}
		}
		return e.boolT, nil
	}
	rule, ok := binaryRules[op]
	if !ok {
		return nil, &TypeError{Op: op, Lhs: lhs, Rhs: rhs, Span: span}
	}
	optional := lhs.IsOptional() || rhs.IsOptional()
	res, ok := rule(e, lhs.Unwrap(), rhs.Unwrap())
	if !ok {
		return nil, &TypeError{Op: op, Lhs: lhs, Rhs: rhs, Span: span}
	}
	if optional {
		return e.Opt(res), nil
	}
	return res, nil
}

// ResolveUnary resolves a unary operator. Optional operands propagate like
// they do for binary operators, except for is_known which inspects them.
func (e *Engine) ResolveUnary(op Op, operand *Type, span diag.Span) (*Type, error) {
	if operand.IsUnknown() {
		return e.unknown, nil
	}
	if op == OpIsKnown {
		return e.boolT, nil
	}
	t := operand.Unwrap()
	var res *Type
	switch op {
	case OpNeg:
		if t.IsNumeric() || t.kind == TimeDiff {
			res = t
		}
	case OpNot:
		if t.kind == Bool {
			res = t
		}
	case OpSeqOf:
		switch t.kind {
		case Seq:
			res = t
		case List, Set:
			res = e.Seq(t.Elem())
		case Dict:
			res = e.Seq(e.Obj(Field{Name: "key", Type: t.Key()}, Field{Name: "val", Type: t.Val()}))
		}
		if res != nil && operand.IsOptional() {
			// an absent collection is an empty sequence
			return res, nil
		}
	}
	if res == nil {
		return nil, &TypeError{Op: op, Lhs: operand, Span: span}
	}
	if operand.IsOptional() {
		return e.Opt(res), nil
	}
	return res, nil
}

func numeric(e *Engine, lhs, rhs *Type) (*Type, bool) {
	if !lhs.IsNumeric() || !rhs.IsNumeric() {
		return nil, false
	}
	if lhs.kind == Real || rhs.kind == Real {
		return e.realT, true
	}
	return e.intT, true
}

func numericRule(e *Engine, lhs, rhs *Type) (*Type, bool) {
	return numeric(e, lhs, rhs)
}

func addRule(e *Engine, lhs, rhs *Type) (*Type, bool) {
	if t, ok := numeric(e, lhs, rhs); ok {
		return t, true
	}
	switch {
	case lhs.kind == Str && rhs.kind == Str:
		return e.strT, true
	case lhs.kind == TimePnt && rhs.kind == TimeDiff, lhs.kind == TimeDiff && rhs.kind == TimePnt:
		return e.timePnt, true
	case lhs.kind == TimeDiff && rhs.kind == TimeDiff:
		return e.timeDiff, true
	case lhs.kind == List && rhs.kind == List, lhs.kind == Seq && rhs.kind == Seq:
		if elem, ok := e.join(lhs.Elem(), rhs.Elem()); ok {
			if lhs.kind == Seq {
				return e.Seq(elem), true
			}
			return e.List(elem), true
		}
	}
	return nil, false
}

func subRule(e *Engine, lhs, rhs *Type) (*Type, bool) {
	if t, ok := numeric(e, lhs, rhs); ok {
		return t, true
	}
	switch {
	case lhs.kind == TimePnt && rhs.kind == TimePnt:
		return e.timeDiff, true
	case lhs.kind == TimePnt && rhs.kind == TimeDiff:
		return e.timePnt, true
	case lhs.kind == TimeDiff && rhs.kind == TimeDiff:
		return e.timeDiff, true
	case lhs.kind == Set && rhs.kind == Set && lhs == rhs:
		return lhs, true
	}
	return nil, false
}

func multRule(e *Engine, lhs, rhs *Type) (*Type, bool) {
	if t, ok := numeric(e, lhs, rhs); ok {
		return t, true
	}
	if lhs.kind == TimeDiff && rhs.kind == Int || lhs.kind == Int && rhs.kind == TimeDiff {
		return e.timeDiff, true
	}
	return nil, false
}

func divRule(e *Engine, lhs, rhs *Type) (*Type, bool) {
	if t, ok := numeric(e, lhs, rhs); ok {
		return t, true
	}
	if lhs.kind == TimeDiff && rhs.kind == Int {
		return e.timeDiff, true
	}
	return nil, false
}

func orderRule(e *Engine, lhs, rhs *Type) (*Type, bool) {
	if _, ok := numeric(e, lhs, rhs); ok {
		return e.boolT, true
	}
	if lhs != rhs {
		return nil, false
	}
	switch lhs.kind {
	case Str, ID, TimePnt, TimeDiff, Addr:
		return e.boolT, true
	}
	return nil, false
}

func logicalRule(e *Engine, lhs, rhs *Type) (*Type, bool) {
	if lhs.kind == Bool && rhs.kind == Bool {
		return e.boolT, true
	}
	return nil, false
}
