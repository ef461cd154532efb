package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dosco-labs/relq/internal/codec"
)

func TestAnd_FoldsLiteralTrue(t *testing.T) {
	x := Col("t", "a")
	got := And(x, Lit(codec.Boolean, true))
	require.Same(t, x, got)
}

func TestOr_FoldsLiteralFalse(t *testing.T) {
	x := Col("t", "a")
	got := Or(x, Lit(codec.Boolean, false))
	require.Same(t, x, got)
}

func TestAnd_EmptyIsIdentity(t *testing.T) {
	got := And()
	require.Equal(t, OpLiteral, got.Op)
	require.Equal(t, true, got.Value)
}

func TestNot_ElidesDoubleNegation(t *testing.T) {
	x := Col("t", "a")
	got := Not(Not(x))
	require.Same(t, x, got)
}

func TestInListExpr_RejectsEmpty(t *testing.T) {
	_, err := InListExpr(Col("t", "a"))
	require.Error(t, err)
}

func TestInListExpr_SingletonLowersToEquality(t *testing.T) {
	x := Col("t", "a")
	v := Lit(codec.Integer, int64(1))
	got, err := InListExpr(x, v)
	require.NoError(t, err)
	require.Equal(t, OpEq, got.Op)
	require.Same(t, x, got.Left)
	require.Same(t, v, got.Right)
}

func TestInListExpr_MultiStaysInList(t *testing.T) {
	x := Col("t", "a")
	v1 := Lit(codec.Integer, int64(1))
	v2 := Lit(codec.Integer, int64(2))
	got, err := InListExpr(x, v1, v2)
	require.NoError(t, err)
	require.Equal(t, OpInList, got.Op)
	require.Len(t, got.List, 2)
}

func TestCount_NilArgIsStar(t *testing.T) {
	got := Count(nil)
	require.Equal(t, OpAggregate, got.Op)
	require.Same(t, CountStarSentinel, got.Arg)
}

func TestIsAggregate(t *testing.T) {
	require.True(t, Count(nil).IsAggregate())
	require.True(t, JSONGroupArray(Col("t", "a")).IsAggregate())
	require.False(t, Col("t", "a").IsAggregate())
}

func TestIsAggregate_RecursesThroughSubexpressions(t *testing.T) {
	require.True(t, Add(Count(Col("t", "a")), Lit(codec.Integer, int64(1))).IsAggregate())
	require.False(t, Add(Col("t", "a"), Lit(codec.Integer, int64(1))).IsAggregate())
}
