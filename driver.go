package relq

import (
	"context"

	"github.com/dosco-labs/relq/internal/plan"
	"github.com/dosco-labs/relq/internal/rerr"
)

// Row is one flat result row: result-column name to primitive value
// (string | number | bool | nil). The core does not assume any
// specific transport (§6).
type Row = map[string]any

// RunResult is what Statement.Run returns for a mutating Operation.
type RunResult struct {
	Changes         int
	LastInsertRowID *int64
}

// Statement is a prepared form of one Operation's SQL, ready to be run
// with different parameter bindings.
type Statement interface {
	// Run executes a mutating statement (CreateTable/Insert/Update/Delete).
	Run(ctx context.Context, params map[string]any) (RunResult, error)
	// All returns every row a query statement produces.
	All(ctx context.Context, params map[string]any) ([]Row, error)
	// Get returns the query statement's first row, or nil.
	Get(ctx context.Context, params map[string]any) (Row, error)
}

// Driver is the minimal surface the core needs from a SQL engine (§6).
// The core never imports a concrete SQLite driver; callers supply one.
type Driver interface {
	Prepare(ctx context.Context, sql string) (Statement, error)
}

// OperationKind tags what an Operation's SQL does.
type OperationKind int

const (
	OpQuery OperationKind = iota
	OpCreateTable
	OpInsert
	OpUpdate
	OpDelete
)

func (k OperationKind) String() string {
	switch k {
	case OpQuery:
		return "Query"
	case OpCreateTable:
		return "CreateTable"
	case OpInsert:
		return "Insert"
	case OpUpdate:
		return "Update"
	case OpDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Operation is the serializable record the core hands a driver (§6).
type Operation struct {
	Kind   OperationKind
	SQL    string
	Params map[string]any
	Plan   plan.Plan
}

// prepareAndRun is the shared first step of every exported Exec/Fetch
// helper: it prepares the operation's SQL on d, wrapping a prepare
// failure as a DriverError per §7's propagation policy. Callers run
// the returned Statement and wrap a failure of that call themselves.
func prepareAndRun(ctx context.Context, d Driver, op Operation) (Statement, error) {
	stmt, err := d.Prepare(ctx, op.SQL)
	if err != nil {
		return nil, rerr.WrapDriver(err, "prepare failed")
	}
	return stmt, nil
}

// Exec runs a mutating Operation (CreateTable/Insert/Update/Delete)
// against d.
func Exec(ctx context.Context, d Driver, op Operation) (RunResult, error) {
	stmt, err := prepareAndRun(ctx, d, op)
	if err != nil {
		return RunResult{}, err
	}
	res, err := stmt.Run(ctx, op.Params)
	if err != nil {
		return RunResult{}, rerr.WrapDriver(err, "run failed")
	}
	return res, nil
}

// FetchRows runs a Query Operation against d and returns its raw rows,
// before result-shaping (§7's C7 is applied by the typed C8 layer).
func FetchRows(ctx context.Context, d Driver, op Operation) ([]Row, error) {
	stmt, err := prepareAndRun(ctx, d, op)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.All(ctx, op.Params)
	if err != nil {
		return nil, rerr.WrapDriver(err, "all failed")
	}
	return rows, nil
}
