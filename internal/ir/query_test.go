package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dosco-labs/relq/internal/schema"
)

func usersTable(t *testing.T) schema.Table {
	t.Helper()
	tbl, err := schema.Declare("users", schema.Integer("id").Primary(), schema.Text("name"))
	require.NoError(t, err)
	return tbl
}

func TestFrom_StarSelection(t *testing.T) {
	q := From(usersTable(t))
	require.True(t, q.Selection.Star)
	require.Equal(t, SourceBase, q.Source.Kind)
}

func TestWhere_UnknownColumnCaptured(t *testing.T) {
	q := From(usersTable(t)).Where(func(b Bag) *Expr {
		return Eq(b.Col("nope"), Lit(b.Col("nope").Codec, "x"))
	})
	require.Error(t, q.Err())
}

func TestWhere_ComposesWithAnd(t *testing.T) {
	tbl := usersTable(t)
	q := From(tbl).
		Where(func(b Bag) *Expr { return Eq(b.Col("id"), Lit(b.Col("id").Codec, int64(1))) }).
		Where(func(b Bag) *Expr { return Eq(b.Col("name"), Lit(b.Col("name").Codec, "a")) })

	require.NoError(t, q.Err())
	require.Equal(t, OpAnd, q.Where.Op)
	require.Len(t, q.Where.List, 2)
}

func TestHaving_RequiresGroupBy(t *testing.T) {
	q := From(usersTable(t)).Having(func(b Bag) *Expr { return Eq(Col("x", "y"), Lit(b.Col("id").Codec, int64(1))) })
	require.Error(t, q.Err())
}

func TestHaving_AllowedAfterGroupBy(t *testing.T) {
	q := From(usersTable(t)).
		GroupBy(func(b Bag) []*Expr { return []*Expr{b.Col("id")} }).
		Having(func(b Bag) *Expr { return Eq(Count(nil), Lit(b.Col("id").Codec, int64(1))) })
	require.NoError(t, q.Err())
}

func TestWhere_RejectsAggregate(t *testing.T) {
	q := From(usersTable(t)).Where(func(b Bag) *Expr {
		return Eq(Count(nil), Lit(b.Col("id").Codec, int64(1)))
	})
	require.Error(t, q.Err())
}

func TestWhere_RejectsNestedAggregate(t *testing.T) {
	q := From(usersTable(t)).Where(func(b Bag) *Expr {
		return Eq(Add(Count(nil), Lit(b.Col("id").Codec, int64(1))), Lit(b.Col("id").Codec, int64(1)))
	})
	require.Error(t, q.Err())
}

func TestSelect_RejectsAggregateWithoutGroupBy(t *testing.T) {
	q := From(usersTable(t)).Select(func(b Bag) []Projection {
		return []Projection{{Alias: "c", Expr: Count(nil), Codec: b.Col("id").Codec}}
	})
	require.Error(t, q.Err())
}

func TestSelect_AllowsAggregateWithGroupBy(t *testing.T) {
	q := From(usersTable(t)).
		GroupBy(func(b Bag) []*Expr { return []*Expr{b.Col("id")} }).
		Select(func(b Bag) []Projection {
			return []Projection{{Alias: "c", Expr: Count(nil), Codec: b.Col("id").Codec}}
		})
	require.NoError(t, q.Err())
}

func TestOrderBy_RejectsAggregateWithoutGroupBy(t *testing.T) {
	q := From(usersTable(t)).OrderBy(func(b Bag) *Expr { return Count(nil) }, Asc)
	require.Error(t, q.Err())
}

func TestTerminal_PreservesIdentity(t *testing.T) {
	q := From(usersTable(t)).Where(func(b Bag) *Expr { return Eq(b.Col("id"), Lit(b.Col("id").Codec, int64(1))) })
	all := q.All()
	one := q.One()
	require.Equal(t, q.ID(), all.ID())
	require.Equal(t, q.ID(), one.ID())
}

func TestIdentitySurvivesCopyNotChain(t *testing.T) {
	base := From(usersTable(t))
	captured := base // same value, no further chain call
	require.Equal(t, base.ID(), captured.ID())

	chained := base.Where(func(b Bag) *Expr { return Eq(b.Col("id"), Lit(b.Col("id").Codec, int64(1))) })
	require.NotEqual(t, base.ID(), chained.ID())
}

func TestInnerJoin_BagExposesAlias(t *testing.T) {
	users := usersTable(t)
	tasks, err := schema.Declare("tasks", schema.Integer("id").Primary(), schema.Integer("user_id"))
	require.NoError(t, err)

	joined := From(users).InnerJoin(From(tasks), "tk", func(b Bag) *Expr {
		return Eq(b.Col("id"), b.Alias("tk").Col("user_id"))
	})
	require.NoError(t, joined.Err())
	require.Len(t, joined.Joins, 1)
	require.Equal(t, "tk", joined.Joins[0].Alias)
}
