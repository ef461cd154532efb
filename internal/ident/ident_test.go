package ident

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFreshID_TestModeDeterministic(t *testing.T) {
	g := New()
	g.SetTestMode(true)

	require.Equal(t, "t_id0", g.FreshID("t"))
	require.Equal(t, "t_id1", g.FreshID("t"))
	require.Equal(t, "cte_id2", g.FreshID("cte"))
}

func TestFreshID_ResetCounter(t *testing.T) {
	g := New()
	g.SetTestMode(true)

	g.FreshID("t")
	g.FreshID("t")
	g.ResetCounter()

	require.Equal(t, "t_id0", g.FreshID("t"))
}

func TestFreshID_ProductionModeUnique(t *testing.T) {
	g := New()

	a := g.FreshID("t")
	b := g.FreshID("t")

	require.NotEqual(t, a, b)
	require.Contains(t, a, "t_")
}
