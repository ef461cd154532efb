package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dosco-labs/relq/internal/rerr"
)

func TestDeclare_RequiresPrimary(t *testing.T) {
	_, err := Declare("users", Text("name"))
	require.Error(t, err)
	require.Equal(t, rerr.SchemaError, err.(*rerr.Error).Kind)
}

func TestDeclare_NoDuplicateColumns(t *testing.T) {
	_, err := Declare("users", Integer("id").Primary(), Text("id"))
	require.Error(t, err)
}

func TestDeclare_NullablePrimaryRejected(t *testing.T) {
	_, err := Declare("users", Integer("id").Primary().Nullable())
	require.Error(t, err)
}

func TestDeclare_OK(t *testing.T) {
	tbl, err := Declare("users",
		Integer("id").Primary(),
		Text("name"),
		Text("email").Unique(),
		Boolean("active").DefaultSQL("1"),
	)
	require.NoError(t, err)
	require.Equal(t, "users", tbl.Name)

	c, ok := tbl.Column("email")
	require.True(t, ok)
	require.True(t, c.IsUnique)
}

func TestNewSchema_DuplicateTableNames(t *testing.T) {
	u, _ := Declare("users", Integer("id").Primary())
	_, err := NewSchema(u, u)
	require.Error(t, err)
}

func TestDDL_SingleAndCompositePrimary(t *testing.T) {
	users, err := Declare("users", Integer("id").Primary(), Text("name"))
	require.NoError(t, err)

	joins, err := Declare("join_users_tasks",
		Integer("user_id").Primary(),
		Integer("task_id").Primary(),
	)
	require.NoError(t, err)

	s, err := NewSchema(users, joins)
	require.NoError(t, err)

	ddl := s.DDL(DDLOptions{IfNotExists: true})
	require.Len(t, ddl, 2)
	require.Contains(t, ddl[0], `CREATE TABLE IF NOT EXISTS "users"`)
	require.Contains(t, ddl[0], `"id" INTEGER PRIMARY KEY`)
	require.Contains(t, ddl[1], `PRIMARY KEY("user_id", "task_id")`)
}
