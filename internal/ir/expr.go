// Package ir is the query algebra: the expression tree (§2 C4) and
// the query tree (§2 C5) live in one package because they are
// mutually recursive (an Expr's InSubquery holds a *Query, a Query's
// clauses hold *Expr) — the same shape the teacher's qcode package
// uses for its Exp/Select/Join trio.
package ir

import (
	"github.com/dosco-labs/relq/internal/codec"
	"github.com/dosco-labs/relq/internal/rerr"
)

// ExpOp tags the variant an Expr node carries, mirroring qcode.ExpOp's
// single-field-discriminates-a-fixed-struct design (core/internal/qcode/exp.go).
type ExpOp int

const (
	OpNop ExpOp = iota
	OpColumn
	OpLiteral
	OpExternal
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpConcat
	OpNot
	OpIsNull
	OpIsNotNull
	OpNeg
	OpInList
	OpInSubquery
	OpNotInSubquery
	OpAggregate
	OpJSONObject
	OpJSONGroupArray
	OpCase
	OpRaw
)

// AggFn enumerates the supported aggregate functions.
type AggFn int

const (
	AggCount AggFn = iota
	AggSum
	AggAvg
	AggMin
	AggMax
	AggGroupConcat
)

// JSONPair is one key/value entry of a JsonObject constructor.
type JSONPair struct {
	Key   string
	Value *Expr
}

// CaseWhen is one WHEN/THEN arm of a Case expression.
type CaseWhen struct {
	Cond  *Expr
	Value *Expr
}

// Expr is the tagged sum from spec.md §3. Every constructor returns a
// fresh *Expr; nodes are never mutated after construction, matching
// invariant 4 for the Query tree they're embedded in.
type Expr struct {
	Op    ExpOp
	Codec codec.Codec

	// Column
	Table  string
	Column string

	// Literal / External
	Value any
	Label string

	// BinOp / UnaryOp
	Left  *Expr
	Right *Expr

	// InList
	List []*Expr

	// InSubquery / NotInSubquery
	Subquery *Query

	// Aggregate
	AggFn    AggFn
	Distinct bool
	Arg      *Expr

	// JsonObject
	Pairs []JSONPair

	// JsonGroupArray reuses Arg.

	// Case
	Whens []CaseWhen
	Else  *Expr

	// Raw
	RawSQL string
}

// Col references a column of the base table, a join alias introduced
// upstream, or a projection of a referenced derived query (invariant 1
// is enforced when the Expr is attached to a Query, not here).
func Col(table, column string) *Expr {
	return &Expr{Op: OpColumn, Table: table, Column: column}
}

// Lit inlines a literal value of the given codec into the SQL text.
func Lit(c codec.Codec, value any) *Expr {
	return &Expr{Op: OpLiteral, Codec: c, Value: value}
}

// Ext becomes a named external parameter ":label" at emit time,
// binding value under that name in the Operation's params map. An
// empty label means "assign one automatically"; two anonymous
// externals never share a parameter slot even when value is the same
// (§4.4; see DESIGN.md for why External carries a value despite
// spec.md §3's table listing only (codec, label) — the Operation's
// params map has no separate binding step to source the value from).
func Ext(c codec.Codec, label string, value any) *Expr {
	return &Expr{Op: OpExternal, Codec: c, Label: label, Value: value}
}

func binOp(op ExpOp, lhs, rhs *Expr) *Expr {
	return &Expr{Op: op, Left: lhs, Right: rhs}
}

// Eq builds an equality comparison; the emitter (not this builder
// layer) renders SQL IS/IS NOT when either operand is a literal null,
// and "==" otherwise, per §4.4's "polymorphic operators".
func Eq(lhs, rhs *Expr) *Expr {
	return binOp(OpEq, lhs, rhs)
}

func Neq(lhs, rhs *Expr) *Expr { return binOp(OpNeq, lhs, rhs) }
func Lt(lhs, rhs *Expr) *Expr  { return binOp(OpLt, lhs, rhs) }
func Lte(lhs, rhs *Expr) *Expr { return binOp(OpLte, lhs, rhs) }
func Gt(lhs, rhs *Expr) *Expr  { return binOp(OpGt, lhs, rhs) }
func Gte(lhs, rhs *Expr) *Expr { return binOp(OpGte, lhs, rhs) }

// Add, Sub, Mul, Div, Mod build arithmetic nodes. Operand codecs are
// not checked here, by the emitter, or by the typed root package, so
// a non-numeric operand is rendered as given.
func Add(lhs, rhs *Expr) *Expr { return binOp(OpAdd, lhs, rhs) }
func Sub(lhs, rhs *Expr) *Expr { return binOp(OpSub, lhs, rhs) }
func Mul(lhs, rhs *Expr) *Expr { return binOp(OpMul, lhs, rhs) }
func Div(lhs, rhs *Expr) *Expr { return binOp(OpDiv, lhs, rhs) }
func Mod(lhs, rhs *Expr) *Expr { return binOp(OpMod, lhs, rhs) }

// Concat lowers to the SQL "||" operator.
func Concat(lhs, rhs *Expr) *Expr { return binOp(OpConcat, lhs, rhs) }

// And folds away literal-true operands (AND(x, true) = x) and
// collapses an empty/singleton list, per the optional algebraic
// identities in §4.4.
func And(exprs ...*Expr) *Expr {
	return foldBool(OpAnd, true, exprs)
}

// Or folds away literal-false operands (OR(x, false) = x).
func Or(exprs ...*Expr) *Expr {
	return foldBool(OpOr, false, exprs)
}

func foldBool(op ExpOp, identity bool, exprs []*Expr) *Expr {
	var kept []*Expr
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if lit, ok := literalBool(e); ok && lit == identity {
			continue
		}
		kept = append(kept, e)
	}
	switch len(kept) {
	case 0:
		return Lit(codec.Boolean, identity)
	case 1:
		return kept[0]
	default:
		return &Expr{Op: op, List: kept}
	}
}

func literalBool(e *Expr) (bool, bool) {
	if e.Op != OpLiteral {
		return false, false
	}
	b, ok := e.Value.(bool)
	return b, ok
}

// Not elides a double negation: Not(Not(x)) = x.
func Not(arg *Expr) *Expr {
	if arg != nil && arg.Op == OpNot {
		return arg.Arg
	}
	return &Expr{Op: OpNot, Arg: arg}
}

func IsNull(arg *Expr) *Expr    { return &Expr{Op: OpIsNull, Arg: arg} }
func IsNotNull(arg *Expr) *Expr { return &Expr{Op: OpIsNotNull, Arg: arg} }
func Neg(arg *Expr) *Expr       { return &Expr{Op: OpNeg, Arg: arg} }

// InListExpr lowers a single-element list to an equality comparison,
// per §4.4. It errors if list is empty, matching "InList requires a
// non-empty list" in §4.4.
func InListExpr(arg *Expr, list ...*Expr) (*Expr, error) {
	if len(list) == 0 {
		return nil, rerr.New(rerr.SchemaError, "InList requires a non-empty list")
	}
	if len(list) == 1 {
		return Eq(arg, list[0]), nil
	}
	return &Expr{Op: OpInList, Arg: arg, List: list}, nil
}

// InSubquery holds q by identity: if q is referenced elsewhere too
// (by the Query-identity token, not pointer identity — see query.go),
// the emitter promotes it to a CTE (invariant 5).
func InSubquery(arg *Expr, q *Query) *Expr {
	return &Expr{Op: OpInSubquery, Arg: arg, Subquery: q}
}

// NotInSubquery is InSubquery's negated counterpart.
func NotInSubquery(arg *Expr, q *Query) *Expr {
	return &Expr{Op: OpNotInSubquery, Arg: arg, Subquery: q}
}

func aggregate(fn AggFn, arg *Expr, distinct bool) *Expr {
	return &Expr{Op: OpAggregate, AggFn: fn, Arg: arg, Distinct: distinct}
}

// CountStarSentinel marks Count(nil) as COUNT(*).
var CountStarSentinel = &Expr{Op: OpRaw, RawSQL: "*"}

func Count(arg *Expr) *Expr { return aggregate(AggCount, argOrStar(arg), false) }

func CountDistinct(arg *Expr) *Expr { return aggregate(AggCount, argOrStar(arg), true) }

func argOrStar(arg *Expr) *Expr {
	if arg == nil {
		return CountStarSentinel
	}
	return arg
}

func Sum(arg *Expr) *Expr         { return aggregate(AggSum, arg, false) }
func Avg(arg *Expr) *Expr         { return aggregate(AggAvg, arg, false) }
func Min(arg *Expr) *Expr         { return aggregate(AggMin, arg, false) }
func Max(arg *Expr) *Expr         { return aggregate(AggMax, arg, false) }
func GroupConcat(arg *Expr) *Expr { return aggregate(AggGroupConcat, arg, false) }

// JSONObject builds a json_object(...) constructor from ordered
// key/value pairs.
func JSONObject(pairs ...JSONPair) *Expr {
	return &Expr{Op: OpJSONObject, Codec: codec.JSON, Pairs: pairs}
}

// JSONGroupArray is an aggregate that builds json_group_array(...).
func JSONGroupArray(arg *Expr) *Expr {
	return &Expr{Op: OpJSONGroupArray, Codec: codec.JSON, Arg: arg}
}

// Case builds a CASE WHEN ... THEN ... [ELSE ...] END expression.
func Case(whens []CaseWhen, els *Expr) *Expr {
	return &Expr{Op: OpCase, Whens: whens, Else: els}
}

// Raw is an escape hatch opaque to every rewrite the emitter performs.
func Raw(sql string) *Expr {
	return &Expr{Op: OpRaw, RawSQL: sql}
}

// IsAggregate reports whether ex is, or contains anywhere in its
// subtree, an aggregate expression — used to enforce invariant 3
// (aggregates only in selection/having/orderBy of a grouped query).
// The walk does not descend into a Subquery: that is a separate
// Query with its own grouping, not part of ex's own aggregate scope.
func (ex *Expr) IsAggregate() bool {
	if ex == nil {
		return false
	}
	switch ex.Op {
	case OpAggregate, OpJSONGroupArray:
		return true
	}
	if ex.Left.IsAggregate() || ex.Right.IsAggregate() || ex.Arg.IsAggregate() || ex.Else.IsAggregate() {
		return true
	}
	for _, e := range ex.List {
		if e.IsAggregate() {
			return true
		}
	}
	for _, p := range ex.Pairs {
		if p.Value.IsAggregate() {
			return true
		}
	}
	for _, w := range ex.Whens {
		if w.Cond.IsAggregate() || w.Value.IsAggregate() {
			return true
		}
	}
	return false
}
