package emit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dosco-labs/relq/internal/ident"
	"github.com/dosco-labs/relq/internal/ir"
	"github.com/dosco-labs/relq/internal/schema"
)

func usersTable(t *testing.T) schema.Table {
	t.Helper()
	tbl, err := schema.Declare("users",
		schema.Integer("id").Primary(),
		schema.Text("name"),
		schema.Integer("age"),
	)
	require.NoError(t, err)
	return tbl
}

func postsTable(t *testing.T) schema.Table {
	t.Helper()
	tbl, err := schema.Declare("posts",
		schema.Integer("id").Primary(),
		schema.Integer("user_id"),
		schema.Text("title"),
	)
	require.NoError(t, err)
	return tbl
}

func newCompiler() *Compiler {
	ids := ident.New()
	ids.SetTestMode(true)
	return NewCompiler(ids)
}

func TestCompile_BaseScanIsDeterministic(t *testing.T) {
	users := usersTable(t)
	q := ir.From(users).All()

	op1, err := newCompiler().Compile(q)
	require.NoError(t, err)
	op2, err := newCompiler().Compile(q)
	require.NoError(t, err)

	require.Equal(t, op1.SQL, op2.SQL)
	require.Contains(t, op1.SQL, `SELECT "t_id0"."id", "t_id0"."name", "t_id0"."age" FROM "users" AS "t_id0"`)
}

func TestCompile_CachesByQueryIdentity(t *testing.T) {
	users := usersTable(t)
	c := newCompiler()

	q := ir.From(users).All()
	op1, err := c.Compile(q)
	require.NoError(t, err)

	q2 := ir.From(users).All()
	op2, err := c.Compile(q2)
	require.NoError(t, err)
	require.NotEqual(t, op1.SQL, op2.SQL, "a distinct Query value must not share op1's cache entry")

	op1Again, err := c.Compile(q)
	require.NoError(t, err)
	require.Equal(t, op1.SQL, op1Again.SQL, "recompiling the same Query value is a cache hit")
	require.Equal(t, op1.Params, op1Again.Params)
	require.Equal(t, op1.Cardinality, op1Again.Cardinality)
}

func TestCompile_WhereBindsExternalParam(t *testing.T) {
	users := usersTable(t)
	q := ir.From(users).
		Where(func(b ir.Bag) *ir.Expr {
			return ir.Eq(b.Col("name"), ir.Ext(b.Col("name").Codec, "name", "ada"))
		}).
		One()

	op, err := newCompiler().Compile(q)
	require.NoError(t, err)
	require.Contains(t, op.SQL, `WHERE ("t_id0"."name" == :name)`)
	require.Equal(t, "ada", op.Params["name"])
}

func TestCompile_InnerJoinAliasesSubquery(t *testing.T) {
	users := usersTable(t)
	posts := postsTable(t)

	userQ := ir.From(users)
	postQ := ir.From(posts)

	q := userQ.InnerJoin(postQ, "p", func(b ir.Bag) *ir.Expr {
		return ir.Eq(b.Col("id"), b.Alias("p").Col("user_id"))
	}).All()

	op, err := newCompiler().Compile(q)
	require.NoError(t, err)
	require.Contains(t, op.SQL, `JOIN (SELECT "t_id2"."id", "t_id2"."user_id", "t_id2"."title" FROM "posts" AS "t_id2") AS "t_id1"`)
	require.Contains(t, op.SQL, `ON ("t_id0"."id" == "t_id1"."user_id")`)
	require.NotContains(t, op.SQL, `AS "p"`, "the caller-supplied alias must never reach the emitted SQL")
}

func TestCompile_InSubqueryForcesCTE(t *testing.T) {
	users := usersTable(t)
	posts := postsTable(t)

	activePosters := ir.From(posts).Select(func(b ir.Bag) []ir.Projection {
		return []ir.Projection{{Alias: "user_id", Expr: b.Col("user_id"), Codec: b.Col("user_id").Codec}}
	})

	q := ir.From(users).
		Where(func(b ir.Bag) *ir.Expr {
			idExpr := b.Col("id")
			return ir.InSubquery(idExpr, activePosters)
		}).
		All()

	op, err := newCompiler().Compile(q)
	require.NoError(t, err)
	require.Contains(t, op.SQL, "WITH cte_id0 AS (")
	require.Contains(t, op.SQL, "IN (SELECT * FROM cte_id0)")
}

func TestCompile_ReferencedTwiceByIdentityForcesCTE(t *testing.T) {
	users := usersTable(t)
	posts := postsTable(t)

	shared := ir.From(posts)

	q := ir.From(users).
		InnerJoin(shared, "p1", func(b ir.Bag) *ir.Expr {
			return ir.Eq(b.Col("id"), b.Alias("p1").Col("user_id"))
		}).
		InnerJoin(shared, "p2", func(b ir.Bag) *ir.Expr {
			return ir.Eq(b.Col("id"), b.Alias("p2").Col("user_id"))
		}).
		All()

	op, err := newCompiler().Compile(q)
	require.NoError(t, err)
	require.Contains(t, op.SQL, "WITH cte_id0 AS (")
	require.Contains(t, op.SQL, `cte_id0 AS "t_id3"`)
	require.Contains(t, op.SQL, `cte_id0 AS "t_id4"`)
	require.NotContains(t, op.SQL, `AS "p1"`)
	require.NotContains(t, op.SQL, `AS "p2"`)
}

func TestFormat_OneClausePerLine(t *testing.T) {
	users := usersTable(t)
	q := ir.From(users).
		Where(func(b ir.Bag) *ir.Expr { return ir.Eq(b.Col("id"), ir.Lit(b.Col("id").Codec, int64(1))) }).
		All()

	op, err := newCompiler().Compile(q)
	require.NoError(t, err)

	formatted := Format(op.SQL)
	lines := 0
	for _, r := range formatted {
		if r == '\n' {
			lines++
		}
	}
	require.GreaterOrEqual(t, lines, 1)
	require.Contains(t, formatted, "\n  WHERE")
}
