package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolve_NumericPromotion tests int/real promotion for every arithmetic
// operator.
func TestResolve_NumericPromotion(t *testing.T) {
	e := NewEngine()
	ops := []Op{OpAdd, OpSub, OpMult, OpDiv, OpMod, OpExp}

	for _, op := range ops {
		t.Run(op.String(), func(t *testing.T) {
			res, err := e.ResolveBinary(op, e.Int(), e.Int(), span)
			require.NoError(t, err)
			assert.Same(t, e.Int(), res)

			res, err = e.ResolveBinary(op, e.Real(), e.Int(), span)
			require.NoError(t, err)
			assert.Same(t, e.Real(), res)

			res, err = e.ResolveBinary(op, e.Int(), e.Real(), span)
			require.NoError(t, err)
			assert.Same(t, e.Real(), res)
		})
	}
}

// TestResolveAdd_Optional tests that optional operands propagate.
func TestResolveAdd_Optional(t *testing.T) {
	e := NewEngine()

	res, err := e.ResolveAdd(e.Opt(e.Int()), e.Int(), span)
	require.NoError(t, err)
	assert.Same(t, e.Opt(e.Int()), res)

	res, err = e.ResolveAdd(e.Int(), e.Opt(e.Real()), span)
	require.NoError(t, err)
	assert.Same(t, e.Opt(e.Real()), res)

	_, err = e.ResolveAdd(e.Opt(e.Bool()), e.Int(), span)
	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Same(t, e.Opt(e.Bool()), te.Lhs, "error carries the original operand types")
	assert.Equal(t, span, te.Span)
}

// TestResolve_UnknownAbsorbs tests that unknown operands do not error.
func TestResolve_UnknownAbsorbs(t *testing.T) {
	e := NewEngine()
	res, err := e.ResolveExp(e.Unknown(), e.Str(), span)
	require.NoError(t, err)
	assert.Same(t, e.Unknown(), res)
}

// TestResolve_Sequences tests operator-specific sequence handling.
func TestResolve_Sequences(t *testing.T) {
	e := NewEngine()
	s := e.Seq(e.Int())

	_, err := e.ResolveDiv(s, s, span)
	assert.Error(t, err)

	_, err = e.ResolveExp(s, s, span)
	assert.Error(t, err)

	_, err = e.ResolveMod(s, e.Int(), span)
	assert.Error(t, err)

	res, err := e.ResolveAdd(s, e.Seq(e.Real()), span)
	require.NoError(t, err)
	assert.Same(t, e.Seq(e.Real()), res, "seq + seq concatenates")

	res, err = e.ResolveDiv(e.Int(), e.Int(), span)
	require.NoError(t, err)
	assert.Same(t, e.Int(), res)
}

// TestResolve_Time tests time point and duration arithmetic.
func TestResolve_Time(t *testing.T) {
	e := NewEngine()

	res, err := e.ResolveSub(e.TimePnt(), e.TimePnt(), span)
	require.NoError(t, err)
	assert.Same(t, e.TimeDiff(), res)

	res, err = e.ResolveAdd(e.TimeDiff(), e.TimePnt(), span)
	require.NoError(t, err)
	assert.Same(t, e.TimePnt(), res)

	res, err = e.ResolveMult(e.TimeDiff(), e.Int(), span)
	require.NoError(t, err)
	assert.Same(t, e.TimeDiff(), res)

	_, err = e.ResolveAdd(e.TimePnt(), e.TimePnt(), span)
	assert.Error(t, err)
}

// TestResolve_Other tests strings, sets, lists and non-numeric rejections.
func TestResolve_Other(t *testing.T) {
	e := NewEngine()

	res, err := e.ResolveAdd(e.Str(), e.Str(), span)
	require.NoError(t, err)
	assert.Same(t, e.Str(), res)

	res, err = e.ResolveAdd(e.List(e.Int()), e.List(e.Int()), span)
	require.NoError(t, err)
	assert.Same(t, e.List(e.Int()), res)

	res, err = e.ResolveSub(e.Set(e.Str()), e.Set(e.Str()), span)
	require.NoError(t, err)
	assert.Same(t, e.Set(e.Str()), res)

	_, err = e.ResolveMult(e.Str(), e.Int(), span)
	assert.Error(t, err)

	_, err = e.ResolveAdd(e.Bool(), e.Bool(), span)
	assert.Error(t, err)
}

// TestResolve_CompareAndLogical tests boolean-producing operators.
func TestResolve_CompareAndLogical(t *testing.T) {
	e := NewEngine()

	res, err := e.ResolveBinary(OpLt, e.Int(), e.Real(), span)
	require.NoError(t, err)
	assert.Same(t, e.Bool(), res)

	res, err = e.ResolveBinary(OpEq, e.Opt(e.Int()), e.Int(), span)
	require.NoError(t, err)
	assert.Same(t, e.Bool(), res)

	res, err = e.ResolveBinary(OpGt, e.Opt(e.Str()), e.Str(), span)
	require.NoError(t, err)
	assert.Same(t, e.Opt(e.Bool()), res)

	_, err = e.ResolveBinary(OpLt, e.Str(), e.Int(), span)
	assert.Error(t, err)

	res, err = e.ResolveBinary(OpAnd, e.Bool(), e.Bool(), span)
	require.NoError(t, err)
	assert.Same(t, e.Bool(), res)

	_, err = e.ResolveBinary(OpOr, e.Bool(), e.Int(), span)
	assert.Error(t, err)
}

// TestResolveUnary tests unary operators.
func TestResolveUnary(t *testing.T) {
	e := NewEngine()

	res, err := e.ResolveUnary(OpNeg, e.Opt(e.Real()), span)
	require.NoError(t, err)
	assert.Same(t, e.Opt(e.Real()), res)

	res, err = e.ResolveUnary(OpSeqOf, e.List(e.Str()), span)
	require.NoError(t, err)
	assert.Same(t, e.Seq(e.Str()), res)

	res, err = e.ResolveUnary(OpSeqOf, e.Dict(e.Str(), e.Int()), span)
	require.NoError(t, err)
	assert.Equal(t, "<{.key: str, .val: int}>*", res.String())

	res, err = e.ResolveUnary(OpIsKnown, e.Opt(e.Int()), span)
	require.NoError(t, err)
	assert.Same(t, e.Bool(), res)

	_, err = e.ResolveUnary(OpNot, e.Int(), span)
	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Nil(t, te.Rhs)
}
