package relq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dosco-labs/relq/internal/emit"
	"github.com/dosco-labs/relq/internal/ident"
	"github.com/dosco-labs/relq/internal/schema"
)

// fakeStatement is a scripted Statement: it ignores the prepared SQL
// entirely and just returns whatever rows/result the test wired up,
// keyed by nothing but call order (one query per test keeps this
// simple enough to not need real SQL execution).
type fakeStatement struct {
	rows []Row
	res  RunResult
	err  error
}

func (s *fakeStatement) Run(ctx context.Context, params map[string]any) (RunResult, error) {
	return s.res, s.err
}

func (s *fakeStatement) All(ctx context.Context, params map[string]any) ([]Row, error) {
	return s.rows, s.err
}

func (s *fakeStatement) Get(ctx context.Context, params map[string]any) (Row, error) {
	if len(s.rows) == 0 {
		return nil, s.err
	}
	return s.rows[0], s.err
}

type fakeDriver struct {
	stmt *fakeStatement
}

func (d *fakeDriver) Prepare(ctx context.Context, sql string) (Statement, error) {
	return d.stmt, nil
}

type User struct {
	ID   int64  `relq:"id"`
	Name string `relq:"name"`
	Age  int64  `relq:"age"`
}

func usersTable(t *testing.T) Table[User] {
	t.Helper()
	tbl, err := Declare[User]("users",
		schema.Integer("id").Primary(),
		schema.Text("name"),
		schema.Integer("age"),
	)
	require.NoError(t, err)
	return tbl
}

func newCompiler() *emit.Compiler {
	ids := ident.New()
	ids.SetTestMode(true)
	return emit.NewCompiler(ids)
}

func TestFetchAll_DecodesRows(t *testing.T) {
	users := usersTable(t)
	d := &fakeDriver{stmt: &fakeStatement{rows: []Row{
		{"id": int64(1), "name": "ada", "age": int64(30)},
		{"id": int64(2), "name": "bob", "age": int64(40)},
	}}}

	got, err := From(users).FetchAll(context.Background(), d, newCompiler())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "ada", got[0].Name)
	require.Equal(t, int64(40), got[1].Age)
}

func TestFetchOne_EmptyErrors(t *testing.T) {
	users := usersTable(t)
	d := &fakeDriver{stmt: &fakeStatement{rows: nil}}

	_, err := From(users).FetchOne(context.Background(), d, newCompiler())
	require.Error(t, err)
}

func TestFetchMaybeOne_EmptyIsNil(t *testing.T) {
	users := usersTable(t)
	d := &fakeDriver{stmt: &fakeStatement{rows: nil}}

	got, err := From(users).FetchMaybeOne(context.Background(), d, newCompiler())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestFetchOne_SingleRowDecodes(t *testing.T) {
	users := usersTable(t)
	d := &fakeDriver{stmt: &fakeStatement{rows: []Row{
		{"id": int64(1), "name": "ada", "age": int64(30)},
	}}}

	got, err := From(users).FetchOne(context.Background(), d, newCompiler())
	require.NoError(t, err)
	require.Equal(t, "ada", got.Name)
}

func TestExec_ReturnsDriverResult(t *testing.T) {
	last := int64(7)
	d := &fakeDriver{stmt: &fakeStatement{res: RunResult{Changes: 1, LastInsertRowID: &last}}}

	res, err := Exec(context.Background(), d, Operation{Kind: OpInsert, SQL: "INSERT INTO users ..."})
	require.NoError(t, err)
	require.Equal(t, 1, res.Changes)
	require.Equal(t, int64(7), *res.LastInsertRowID)
}
