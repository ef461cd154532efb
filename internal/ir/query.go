package ir

import (
	"sort"
	"sync/atomic"

	"github.com/dosco-labs/relq/internal/codec"
	"github.com/dosco-labs/relq/internal/rerr"
	"github.com/dosco-labs/relq/internal/schema"
)

var idCounter uint64

// nextID assigns the monotonic per-value identity token the design
// note in spec.md §9 calls for: a value assigned once at construction,
// not a Go pointer, so identity survives a Query being copied into a
// variable and handed to two different builder calls unchanged.
func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

// SourceKind tags a Query's FROM clause.
type SourceKind int

const (
	SourceBase SourceKind = iota
	SourceDerived
)

// Source is a Query's FROM clause: either a named base table or
// another Query used as a derived table.
type Source struct {
	Kind       SourceKind
	Table      string
	BaseSchema schema.Table
	Derived    *Query
}

// JoinKind is inner or left.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
)

// Join is one joined, aliased subquery and its ON predicate.
type Join struct {
	Kind     JoinKind
	Subquery *Query
	Alias    string
	On       *Expr
}

// Direction is ascending or descending order.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// OrderTerm is one ORDER BY key.
type OrderTerm struct {
	Expr      *Expr
	Direction Direction
}

// Projection is one explicit SELECT entry.
type Projection struct {
	Alias string
	Expr  *Expr
	Codec codec.Codec
}

// Selection is either "every column of the base table" or an ordered
// explicit projection list.
type Selection struct {
	Star        bool
	Projections []Projection
}

// LimitClause is LIMIT [OFFSET].
type LimitClause struct {
	Expr   *Expr
	Offset *Expr
}

// Cardinality tags a Query with the terminal shaping rule from §4.5's
// table; it does not itself lower the Query to SQL — emission (C6) is
// a separate step performed by internal/emit.
type Cardinality int

const (
	CardAll Cardinality = iota
	CardOne
	CardMaybeOne
	CardFirst
	CardMaybeFirst
)

// Query is the immutable record from spec.md §3. Every Query-returning
// method produces a fresh value (invariant 4); the same value handed
// to two different builder call sites (e.g. once to InnerJoin, once to
// InSubquery) keeps its id, which is exactly the case CTE promotion
// (invariant 5) keys off of.
type Query struct {
	id uint64

	Source      Source
	Joins       []Join
	Where       *Expr
	HasGroupBy  bool
	GroupBy     []*Expr
	Having      *Expr
	OrderBy     []OrderTerm
	Limit       LimitClause
	Selection   Selection
	Cardinality Cardinality
	PromotedCTE bool

	err error
}

// ID returns the Query's identity token, used by internal/emit's
// collect pass to detect multiply-referenced derived queries.
func (q *Query) ID() uint64 { return q.id }

// Err returns the first construction-time error accumulated while
// building this Query (an unknown column reference, an aggregate where
// invariant 3 forbids one, or Having called without a prior GroupBy),
// or nil.
func (q *Query) Err() error { return q.err }

// From starts a base-table scan: "SELECT * FROM T".
func From(table schema.Table) *Query {
	return &Query{
		id:        nextID(),
		Source:    Source{Kind: SourceBase, Table: table.Name, BaseSchema: table},
		Selection: Selection{Star: true},
	}
}

// FromDerived starts a query whose source is another Query used as a
// derived table.
func FromDerived(inner *Query) *Query {
	return &Query{
		id:        nextID(),
		Source:    Source{Kind: SourceDerived, Derived: inner},
		Selection: Selection{Star: true},
	}
}

// PromoteToCTE explicitly marks a derived Query for CTE hoisting (§4.5
// "explicitly promoted via queryFrom"), independent of reference
// count. It keeps q's identity token, since it is the same derived
// query being marked, not a fork of it.
func PromoteToCTE(q *Query) *Query {
	nq := *q
	nq.PromotedCTE = true
	return &nq
}

func (q *Query) clone() *Query {
	nq := *q
	nq.id = nextID()
	nq.Joins = append([]Join(nil), q.Joins...)
	nq.GroupBy = append([]*Expr(nil), q.GroupBy...)
	nq.OrderBy = append([]OrderTerm(nil), q.OrderBy...)
	nq.Selection.Projections = append([]Projection(nil), q.Selection.Projections...)
	return &nq
}

// BoundColumns returns the Query's output schema: for Star selection,
// the base table's (or derived source's) columns; for an explicit
// selection, the projection aliases and their codecs.
func (q *Query) BoundColumns() map[string]codec.Codec {
	if !q.Selection.Star {
		out := make(map[string]codec.Codec, len(q.Selection.Projections))
		for _, p := range q.Selection.Projections {
			out[p.Alias] = p.Codec
		}
		return out
	}
	switch q.Source.Kind {
	case SourceBase:
		out := make(map[string]codec.Codec, len(q.Source.BaseSchema.Columns))
		for _, c := range q.Source.BaseSchema.Columns {
			out[c.Name] = c.Codec
		}
		return out
	default:
		return q.Source.Derived.BoundColumns()
	}
}

// Bag is the read-only column context (§9 "Closures over column
// bags") passed into every user-supplied builder callable. It exposes
// the query's own table under Col and each join alias introduced so
// far under Alias.
type Bag struct {
	errp    *error
	table   string
	columns map[string]codec.Codec
	aliases map[string]Bag
}

func firstErr(existing, candidate error) error {
	if existing != nil {
		return existing
	}
	return candidate
}

// Col resolves a column against the bag's own table. An unknown name
// raises UnknownColumn, captured lazily and surfaced at Err().
func (b Bag) Col(name string) *Expr {
	if c, ok := b.columns[name]; ok {
		return &Expr{Op: OpColumn, Table: b.table, Column: name, Codec: c}
	}
	*b.errp = firstErr(*b.errp, rerr.New(rerr.UnknownColumn, "unknown column %q on %q", name, b.table))
	return &Expr{Op: OpColumn, Table: b.table, Column: name}
}

// Alias resolves a join alias introduced upstream in the same query.
func (b Bag) Alias(alias string) Bag {
	if sub, ok := b.aliases[alias]; ok {
		return sub
	}
	*b.errp = firstErr(*b.errp, rerr.New(rerr.UnknownColumn, "unknown join alias %q", alias))
	return Bag{errp: b.errp, table: alias, columns: map[string]codec.Codec{}}
}

func (q *Query) bag(errp *error) Bag {
	b := Bag{
		errp:    errp,
		table:   q.BaseRef(),
		columns: q.BoundColumns(),
		aliases: make(map[string]Bag, len(q.Joins)),
	}
	if q.Source.Kind == SourceBase {
		b.columns = make(map[string]codec.Codec, len(q.Source.BaseSchema.Columns))
		for _, c := range q.Source.BaseSchema.Columns {
			b.columns[c.Name] = c.Codec
		}
	}
	for _, j := range q.Joins {
		b.aliases[j.Alias] = Bag{
			errp:    errp,
			table:   j.Alias,
			columns: j.Subquery.BoundColumns(),
		}
	}
	return b
}

// BaseRef is the name a Bag exposes for this Query's own table or
// derived source — the table name for a base scan, or the fixed
// "src" placeholder for a derived source (callers qualify columns of
// a derived source through its BoundColumns, not a user-chosen name).
func (q *Query) BaseRef() string {
	if q.Source.Kind == SourceBase {
		return q.Source.Table
	}
	return "src"
}

// Where composes f's result with any existing filter via AND.
// Invariant 3 forbids aggregates here unconditionally: a row filter
// runs before grouping, so there is no grouped result yet to aggregate
// over.
func (q *Query) Where(f func(Bag) *Expr) *Query {
	nq := q.clone()
	var err error
	newFilter := f(q.bag(&err))
	if newFilter.IsAggregate() {
		err = firstErr(err, rerr.New(rerr.IllegalAggregate, "aggregate expression not allowed in where"))
	}
	nq.Where = And(nq.Where, newFilter)
	nq.err = firstErr(q.err, err)
	return nq
}

// AndFilterEqual is a convenience over Where: an AND of equal(col,
// val) for each entry, visited in sorted key order so that emission
// stays deterministic regardless of Go's randomized map iteration.
func (q *Query) AndFilterEqual(values map[string]any) *Query {
	nq := q.clone()
	var err error
	bag := q.bag(&err)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := []*Expr{nq.Where}
	for _, k := range keys {
		col := bag.Col(k)
		conds = append(conds, Eq(col, Lit(col.Codec, values[k])))
	}
	nq.Where = And(conds...)
	nq.err = firstErr(q.err, err)
	return nq
}

// Select replaces the selection with f's explicit projection list.
// Invariant 3 requires a prior GroupBy for any aggregate projection.
func (q *Query) Select(f func(Bag) []Projection) *Query {
	nq := q.clone()
	var err error
	projs := f(q.bag(&err))
	if !nq.HasGroupBy {
		for _, p := range projs {
			if p.Expr.IsAggregate() {
				err = firstErr(err, rerr.New(rerr.IllegalAggregate, "aggregate projection %q requires a prior groupBy", p.Alias))
				break
			}
		}
	}
	nq.Selection = Selection{Star: false, Projections: projs}
	nq.err = firstErr(q.err, err)
	return nq
}

// GroupBy sets the grouping keys, and marks the query as aggregating
// (invariant 3 is checked against HasGroupBy, not len(GroupBy) > 0, so
// a whole-table aggregate is expressed as GroupBy(func(Bag) []*Expr {
// return nil })).
func (q *Query) GroupBy(f func(Bag) []*Expr) *Query {
	nq := q.clone()
	var err error
	nq.GroupBy = f(q.bag(&err))
	nq.HasGroupBy = true
	nq.err = firstErr(q.err, err)
	return nq
}

// Having sets the post-aggregation filter. Per invariant 2, Having is
// only valid after GroupBy.
func (q *Query) Having(f func(Bag) *Expr) *Query {
	nq := q.clone()
	if !q.HasGroupBy {
		nq.err = firstErr(q.err, rerr.New(rerr.SchemaError, "having requires a prior groupBy"))
		return nq
	}
	var err error
	nq.Having = f(q.bag(&err))
	nq.err = firstErr(q.err, err)
	return nq
}

// OrderBy appends one ORDER BY key. Invariant 3 requires a prior
// GroupBy for an aggregate order key.
func (q *Query) OrderBy(f func(Bag) *Expr, dir Direction) *Query {
	nq := q.clone()
	var err error
	expr := f(q.bag(&err))
	if !nq.HasGroupBy && expr.IsAggregate() {
		err = firstErr(err, rerr.New(rerr.IllegalAggregate, "aggregate orderBy requires a prior groupBy"))
	}
	nq.OrderBy = append(nq.OrderBy, OrderTerm{Expr: expr, Direction: dir})
	nq.err = firstErr(q.err, err)
	return nq
}

// Limit sets LIMIT [OFFSET].
func (q *Query) Limit(expr, offset *Expr) *Query {
	nq := q.clone()
	nq.Limit = LimitClause{Expr: expr, Offset: offset}
	return nq
}

func (q *Query) join(kind JoinKind, other *Query, alias string, onFn func(Bag) *Expr) *Query {
	nq := q.clone()
	nq.Joins = append(nq.Joins, Join{Kind: kind, Subquery: other, Alias: alias})

	var err error
	bag := nq.bag(&err)
	nq.Joins[len(nq.Joins)-1].On = onFn(bag)
	nq.err = firstErr(q.err, err)
	return nq
}

// InnerJoin appends an inner join; onFn receives a bag merged from the
// current columns and the new alias's projections.
func (q *Query) InnerJoin(other *Query, alias string, onFn func(Bag) *Expr) *Query {
	return q.join(JoinInner, other, alias, onFn)
}

// LeftJoin appends a left join.
func (q *Query) LeftJoin(other *Query, alias string, onFn func(Bag) *Expr) *Query {
	return q.join(JoinLeft, other, alias, onFn)
}

// terminal tags q with a Cardinality. Unlike the structural builder
// methods, it keeps q's identity token: it doesn't change the FROM/
// JOIN/WHERE tree, only which terminal shaping rule applies, so a
// caller that holds onto a built Query and re-derives its terminal
// form on every call (e.g. the typed C8 layer's FetchAll) still
// presents internal/emit's Operation cache with the same cache key.
func (q *Query) terminal(c Cardinality) *Query {
	nq := *q
	nq.Cardinality = c
	return &nq
}

// Terminal sets q's cardinality directly, for callers (such as the
// typed C8 layer) that pick a Cardinality value at runtime rather than
// through one of All/One/MaybeOne/First/MaybeFirst.
func (q *Query) Terminal(c Cardinality) *Query { return q.terminal(c) }

// All returns every matching row.
func (q *Query) All() *Query { return q.terminal(CardAll) }

// One requires exactly one row, raising EmptyResult or TooManyResults otherwise.
func (q *Query) One() *Query { return q.terminal(CardOne) }

// MaybeOne yields nil for zero rows, raises TooManyResults for more than one.
func (q *Query) MaybeOne() *Query { return q.terminal(CardMaybeOne) }

// First requires at least one row and returns the first.
func (q *Query) First() *Query { return q.terminal(CardFirst) }

// MaybeFirst never raises; yields nil for zero rows.
func (q *Query) MaybeFirst() *Query { return q.terminal(CardMaybeFirst) }
