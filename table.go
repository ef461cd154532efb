// Package relq is the public query-builder API (C8): a thin,
// strongly-typed surface over internal/schema and internal/ir that
// validates column references against a declared schema and drives
// internal/emit and internal/shape to run a query end to end.
package relq

import (
	"context"

	"github.com/dosco-labs/relq/internal/emit"
	"github.com/dosco-labs/relq/internal/ir"
	"github.com/dosco-labs/relq/internal/schema"
	"github.com/dosco-labs/relq/internal/shape"
)

// Table binds a declared schema.Table to the Go type T its rows
// decode into. T carries no behavior; it only gives FetchAll/FetchOne/
// etc. a destination shape to mapstructure-decode into.
type Table[T any] struct {
	schema schema.Table
}

// Declare wraps schema.Declare, returning a typed Table handle.
func Declare[T any](name string, columns ...schema.Column) (Table[T], error) {
	t, err := schema.Declare(name, columns...)
	if err != nil {
		return Table[T]{}, err
	}
	return Table[T]{schema: t}, nil
}

// Schema exposes the underlying untyped table declaration, e.g. for
// DDL emission via schema.Schema.DDL.
func (t Table[T]) Schema() schema.Table { return t.schema }

// Query is a typed handle onto an internal/ir.Query under
// construction. Every chain method returns a fresh Query, matching
// the immutability of the underlying IR (invariant 4).
type Query[T any] struct {
	q *ir.Query
}

// From starts a base-table scan typed to T.
func From[T any](t Table[T]) Query[T] {
	return Query[T]{q: ir.From(t.schema)}
}

// FromDerived wraps another typed Query as a derived source.
func FromDerived[T any](inner Query[T]) Query[T] {
	return Query[T]{q: ir.FromDerived(inner.q)}
}

// PromoteToCTE explicitly marks q for CTE hoisting regardless of how
// many times it ends up referenced.
func PromoteToCTE[T any](q Query[T]) Query[T] {
	return Query[T]{q: ir.PromoteToCTE(q.q)}
}

// IR exposes the underlying untyped Query, for callers building joins
// across two differently-typed tables (InnerJoin/LeftJoin take the
// joined side's IR, not its Go type, since the joined row shape is
// whatever the ON-clause bag exposes, not T).
func (q Query[T]) IR() *ir.Query { return q.q }

// Err returns the first construction-time error accumulated while
// building q.
func (q Query[T]) Err() error { return q.q.Err() }

// Where composes f's result onto q's existing filter via AND.
func (q Query[T]) Where(f func(ir.Bag) *ir.Expr) Query[T] {
	return Query[T]{q: q.q.Where(f)}
}

// AndFilterEqual is a convenience over Where for equality filters.
func (q Query[T]) AndFilterEqual(values map[string]any) Query[T] {
	return Query[T]{q: q.q.AndFilterEqual(values)}
}

// Select replaces q's selection with f's explicit projection list.
func (q Query[T]) Select(f func(ir.Bag) []ir.Projection) Query[T] {
	return Query[T]{q: q.q.Select(f)}
}

// GroupBy sets q's grouping keys.
func (q Query[T]) GroupBy(f func(ir.Bag) []*ir.Expr) Query[T] {
	return Query[T]{q: q.q.GroupBy(f)}
}

// Having sets q's post-aggregation filter.
func (q Query[T]) Having(f func(ir.Bag) *ir.Expr) Query[T] {
	return Query[T]{q: q.q.Having(f)}
}

// OrderBy appends one ORDER BY key.
func (q Query[T]) OrderBy(f func(ir.Bag) *ir.Expr, dir ir.Direction) Query[T] {
	return Query[T]{q: q.q.OrderBy(f, dir)}
}

// Limit sets LIMIT [OFFSET].
func (q Query[T]) Limit(expr, offset *ir.Expr) Query[T] {
	return Query[T]{q: q.q.Limit(expr, offset)}
}

// InnerJoin appends an inner join against another Query's IR, aliased
// to alias within q's column bag.
func (q Query[T]) InnerJoin(other *ir.Query, alias string, onFn func(ir.Bag) *ir.Expr) Query[T] {
	return Query[T]{q: q.q.InnerJoin(other, alias, onFn)}
}

// LeftJoin appends a left join.
func (q Query[T]) LeftJoin(other *ir.Query, alias string, onFn func(ir.Bag) *ir.Expr) Query[T] {
	return Query[T]{q: q.q.LeftJoin(other, alias, onFn)}
}

// compileAndFetch runs q's IR through c, executes it against d, and
// shapes the rows per the cardinality card, decoding into dst.
func compileAndFetch(ctx context.Context, d Driver, c *emit.Compiler, q *ir.Query, card ir.Cardinality, dst any) error {
	terminal := q.Terminal(card)
	if err := terminal.Err(); err != nil {
		return err
	}
	op, err := c.Compile(terminal)
	if err != nil {
		return err
	}
	rows, err := FetchRows(ctx, d, Operation{Kind: OpQuery, SQL: op.SQL, Params: op.Params})
	if err != nil {
		return err
	}
	shaped, err := shape.Shape(op.Plan, rows, card)
	if err != nil {
		return err
	}
	if shaped == nil {
		return nil
	}
	return shape.Decode(shaped, dst)
}

// FetchAll runs q and decodes every row into a []T.
func (q Query[T]) FetchAll(ctx context.Context, d Driver, c *emit.Compiler) ([]T, error) {
	var out []T
	if err := compileAndFetch(ctx, d, c, q.q, ir.CardAll, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchOne runs q, requiring exactly one row, decoded into a T.
func (q Query[T]) FetchOne(ctx context.Context, d Driver, c *emit.Compiler) (T, error) {
	var out T
	err := compileAndFetch(ctx, d, c, q.q, ir.CardOne, &out)
	return out, err
}

// FetchMaybeOne runs q, allowing zero or one row; returns nil for zero.
func (q Query[T]) FetchMaybeOne(ctx context.Context, d Driver, c *emit.Compiler) (*T, error) {
	var out *T
	if err := compileAndFetch(ctx, d, c, q.q, ir.CardMaybeOne, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchFirst runs q, requiring at least one row, and returns the first.
func (q Query[T]) FetchFirst(ctx context.Context, d Driver, c *emit.Compiler) (T, error) {
	var out T
	err := compileAndFetch(ctx, d, c, q.q, ir.CardFirst, &out)
	return out, err
}

// FetchMaybeFirst runs q and returns the first row, or nil if empty.
func (q Query[T]) FetchMaybeFirst(ctx context.Context, d Driver, c *emit.Compiler) (*T, error) {
	var out *T
	if err := compileAndFetch(ctx, d, c, q.q, ir.CardMaybeFirst, &out); err != nil {
		return nil, err
	}
	return out, nil
}
