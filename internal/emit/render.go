package emit

import (
	"bytes"
	"fmt"

	"github.com/dosco-labs/relq/internal/codec"
	"github.com/dosco-labs/relq/internal/ir"
	"github.com/dosco-labs/relq/internal/plan"
	"github.com/dosco-labs/relq/internal/rerr"
	"github.com/dosco-labs/relq/internal/util"
)

// pushAliasScope assigns q's own table reference and each of its join
// aliases a fresh t_<id> token and makes that mapping the active scope
// for rendering q's clauses. The caller-supplied name (BaseRef or a
// join's Alias) stays the Bag's key; only the emitted SQL is rewritten.
func (cc *compileCtx) pushAliasScope(q *ir.Query) {
	scope := map[string]string{
		q.BaseRef(): cc.ids.FreshID("t"),
	}
	for _, j := range q.Joins {
		scope[j.Alias] = cc.ids.FreshID("t")
	}
	cc.aliasStack = append(cc.aliasStack, scope)
}

func (cc *compileCtx) popAliasScope() {
	cc.aliasStack = cc.aliasStack[:len(cc.aliasStack)-1]
}

// resolveAlias rewrites a caller-facing table reference to the fresh
// id active in the innermost rendering scope.
func (cc *compileCtx) resolveAlias(name string) string {
	scope := cc.aliasStack[len(cc.aliasStack)-1]
	if id, ok := scope[name]; ok {
		return id
	}
	return name
}

// renderSelect renders q's own SELECT statement (not its CTE
// preamble, which Compile assembles separately) and, in lock-step,
// the reconstruction plan matching its selection.
func (cc *compileCtx) renderSelect(q *ir.Query) ([]byte, plan.Plan, error) {
	cc.pushAliasScope(q)
	defer cc.popAliasScope()

	var w bytes.Buffer

	cols, resultPlan, err := cc.renderSelection(q)
	if err != nil {
		return nil, plan.Plan{}, err
	}

	w.WriteString("SELECT ")
	w.Write(cols)
	w.WriteString(" FROM ")
	src, err := cc.renderFromSource(q)
	if err != nil {
		return nil, plan.Plan{}, err
	}
	w.Write(src)

	for _, j := range q.Joins {
		joinSQL, err := cc.renderJoin(j)
		if err != nil {
			return nil, plan.Plan{}, err
		}
		w.Write(joinSQL)
	}

	if q.Where != nil {
		w.WriteString(" WHERE ")
		whereSQL, err := cc.renderExpr(q.Where)
		if err != nil {
			return nil, plan.Plan{}, err
		}
		w.Write(whereSQL)
	}

	if q.HasGroupBy {
		w.WriteString(" GROUP BY ")
		if len(q.GroupBy) == 0 {
			w.WriteString("1") // whole-table aggregate: one synthetic group
		} else {
			for i, g := range q.GroupBy {
				if i > 0 {
					w.WriteString(", ")
				}
				gsql, err := cc.renderExpr(g)
				if err != nil {
					return nil, plan.Plan{}, err
				}
				w.Write(gsql)
			}
		}
	}

	if q.Having != nil {
		w.WriteString(" HAVING ")
		hsql, err := cc.renderExpr(q.Having)
		if err != nil {
			return nil, plan.Plan{}, err
		}
		w.Write(hsql)
	}

	if len(q.OrderBy) > 0 {
		w.WriteString(" ORDER BY ")
		for i, o := range q.OrderBy {
			if i > 0 {
				w.WriteString(", ")
			}
			osql, err := cc.renderExpr(o.Expr)
			if err != nil {
				return nil, plan.Plan{}, err
			}
			w.Write(osql)
			if o.Direction == ir.Desc {
				w.WriteString(" DESC")
			} else {
				w.WriteString(" ASC")
			}
		}
	}

	if q.Limit.Expr != nil {
		w.WriteString(" LIMIT ")
		lsql, err := cc.renderExpr(q.Limit.Expr)
		if err != nil {
			return nil, plan.Plan{}, err
		}
		w.Write(lsql)
		if q.Limit.Offset != nil {
			w.WriteString(" OFFSET ")
			osql, err := cc.renderExpr(q.Limit.Offset)
			if err != nil {
				return nil, plan.Plan{}, err
			}
			w.Write(osql)
		}
	}

	return w.Bytes(), resultPlan, nil
}

// renderFromSource renders q's own FROM target: a quoted base table
// name, or a reference to (or inline rendering of) a derived source —
// in both cases aliased to q's fresh t_<id> token (§4.5 "join
// aliasing" applies to the root's own base table too, when joined).
func (cc *compileCtx) renderFromSource(q *ir.Query) ([]byte, error) {
	alias := cc.resolveAlias(q.BaseRef())
	if q.Source.Kind == ir.SourceBase {
		return []byte(quoteIdentifier(q.Source.Table) + " AS " + quoteIdentifier(alias)), nil
	}
	return cc.renderDerivedRef(q.Source.Derived, alias)
}

// renderDerivedRef renders a reference to a derived Query: by CTE
// name if it was hoisted, else inlined as a parenthesized subquery
// aliased to alias.
func (cc *compileCtx) renderDerivedRef(dq *ir.Query, alias string) ([]byte, error) {
	if name, ok := cc.cteName[dq.ID()]; ok {
		return []byte(name + " AS " + quoteIdentifier(alias)), nil
	}
	body, _, err := cc.renderSelect(dq)
	if err != nil {
		return nil, err
	}
	var w bytes.Buffer
	w.WriteString("(")
	w.Write(body)
	w.WriteString(") AS ")
	w.WriteString(quoteIdentifier(alias))
	return w.Bytes(), nil
}

func (cc *compileCtx) renderJoin(j ir.Join) ([]byte, error) {
	var w bytes.Buffer
	if j.Kind == ir.JoinLeft {
		w.WriteString(" LEFT JOIN ")
	} else {
		w.WriteString(" JOIN ")
	}
	ref, err := cc.renderDerivedRef(j.Subquery, cc.resolveAlias(j.Alias))
	if err != nil {
		return nil, err
	}
	w.Write(ref)
	w.WriteString(" ON ")
	onSQL, err := cc.renderExpr(j.On)
	if err != nil {
		return nil, err
	}
	w.Write(onSQL)
	return w.Bytes(), nil
}

// renderSelection renders q's SELECT list and, alongside it, the
// reconstruction plan mirroring its shape (§3 ReconstructionPlan).
func (cc *compileCtx) renderSelection(q *ir.Query) ([]byte, plan.Plan, error) {
	if q.Selection.Star {
		cols := q.BoundColumns()
		var w bytes.Buffer
		var fields []plan.Field
		// Star selection is rendered in the base schema's declared
		// column order so output is deterministic across runs.
		names := starColumnOrder(q)
		alias := cc.resolveAlias(q.BaseRef())
		for i, name := range names {
			if i > 0 {
				w.WriteString(", ")
			}
			w.WriteString(quoteIdentifier(alias))
			w.WriteString(".")
			w.WriteString(quoteIdentifier(name))
			fields = append(fields, plan.Field{Key: name, Plan: plan.NewScalar(name, cols[name])})
		}
		if len(names) == 0 {
			w.WriteString("*")
		}
		return w.Bytes(), plan.NewNestedObject(fields...), nil
	}

	var w bytes.Buffer
	var fields []plan.Field
	for i, p := range q.Selection.Projections {
		if i > 0 {
			w.WriteString(", ")
		}
		esql, err := cc.renderExpr(p.Expr)
		if err != nil {
			return nil, plan.Plan{}, err
		}
		w.Write(esql)
		w.WriteString(" AS ")
		w.WriteString(quoteIdentifier(p.Alias))

		fields = append(fields, plan.Field{Key: p.Alias, Plan: cc.planForProjection(q, p)})
	}
	return w.Bytes(), plan.NewNestedObject(fields...), nil
}

func starColumnOrder(q *ir.Query) []string {
	if q.Source.Kind == ir.SourceBase {
		names := make([]string, len(q.Source.BaseSchema.Columns))
		for i, c := range q.Source.BaseSchema.Columns {
			names[i] = c.Name
		}
		return names
	}
	return starColumnOrder(q.Source.Derived)
}

// planForProjection builds the reconstruction-plan node for one
// projection: a Scalar for an ordinary column/expression, a
// NestedObject/NestedArray for json_object/json_group_array
// projections (§4.7 "JSON-shaped nested results"), wrapped in a
// LeftJoinShape when the projection is built entirely from columns of
// a LEFT-joined alias (§4.7 "left join null shaping").
func (cc *compileCtx) planForProjection(q *ir.Query, p ir.Projection) plan.Plan {
	base := cc.planForExprTop(p.Expr, p.Alias, p.Codec)
	if alias, ok := soleJoinAlias(p.Expr); ok && isLeftJoinAlias(q, alias) {
		return plan.NewLeftJoinShape(base)
	}
	return base
}

// planForExprTop is the entry point for a top-level projected
// expression: it uses the Projection's own declared Codec for the
// Scalar case (rather than re-deriving one from the expression),
// since that is the codec the builder layer validated the output
// against.
func (cc *compileCtx) planForExprTop(e *ir.Expr, resultColumnName string, topCodec codec.Codec) plan.Plan {
	if e != nil && (e.Op == ir.OpJSONObject || e.Op == ir.OpJSONGroupArray) {
		return cc.planForExpr(e, resultColumnName)
	}
	return plan.NewScalar(resultColumnName, topCodec)
}

func (cc *compileCtx) planForExpr(e *ir.Expr, resultColumnName string) plan.Plan {
	if e == nil {
		return plan.NewScalar(resultColumnName, codec.Codec{})
	}
	switch e.Op {
	case ir.OpJSONObject:
		fields := make([]plan.Field, 0, len(e.Pairs))
		for _, pair := range e.Pairs {
			fields = append(fields, plan.Field{Key: pair.Key, Plan: cc.planForExpr(pair.Value, pair.Key)})
		}
		return plan.NewNestedObject(fields...)
	case ir.OpJSONGroupArray:
		return plan.NewNestedArray(resultColumnName, cc.planForExpr(e.Arg, resultColumnName))
	default:
		return plan.NewScalar(resultColumnName, e.Codec)
	}
}

func soleJoinAlias(e *ir.Expr) (string, bool) {
	table, ok := "", false
	var walk func(*ir.Expr) bool
	walk = func(x *ir.Expr) bool {
		if x == nil {
			return true
		}
		switch x.Op {
		case ir.OpColumn:
			if !ok {
				table, ok = x.Table, true
			} else if x.Table != table {
				return false
			}
		case ir.OpJSONObject:
			for _, p := range x.Pairs {
				if !walk(p.Value) {
					return false
				}
			}
		case ir.OpJSONGroupArray:
			return walk(x.Arg)
		default:
			if !walk(x.Left) || !walk(x.Right) || !walk(x.Arg) {
				return false
			}
			for _, it := range x.List {
				if !walk(it) {
					return false
				}
			}
		}
		return true
	}
	if !walk(e) {
		return "", false
	}
	return table, ok
}

func isLeftJoinAlias(q *ir.Query, alias string) bool {
	for _, j := range q.Joins {
		if j.Alias == alias {
			return j.Kind == ir.JoinLeft
		}
	}
	return false
}

// renderExpr lowers e to SQL text, binding any External nodes into
// cc.params in first-encounter order. AND/OR chains are flattened
// iteratively through a util.Stack rather than through Go call-stack
// recursion, so a deeply chained filter (thousands of ANDed terms)
// cannot blow the stack (grounded on the teacher's psql exp.go render
// loop).
func (cc *compileCtx) renderExpr(e *ir.Expr) ([]byte, error) {
	if e == nil {
		return nil, rerr.New(rerr.SchemaError, "cannot render a nil expression")
	}

	switch e.Op {
	case ir.OpColumn:
		return []byte(quoteIdentifier(cc.resolveAlias(e.Table)) + "." + quoteIdentifier(e.Column)), nil

	case ir.OpLiteral:
		return cc.renderLiteral(e)

	case ir.OpExternal:
		return cc.bindExternal(e)

	case ir.OpEq, ir.OpNeq:
		if isLiteralNullExpr(e.Left) || isLiteralNullExpr(e.Right) {
			return cc.renderNullComparison(e)
		}
		return cc.renderBinOp(e, map[ir.ExpOp]string{ir.OpEq: "==", ir.OpNeq: "!="}[e.Op])

	case ir.OpLt:
		return cc.renderBinOp(e, "<")
	case ir.OpLte:
		return cc.renderBinOp(e, "<=")
	case ir.OpGt:
		return cc.renderBinOp(e, ">")
	case ir.OpGte:
		return cc.renderBinOp(e, ">=")
	case ir.OpAdd:
		return cc.renderBinOp(e, "+")
	case ir.OpSub:
		return cc.renderBinOp(e, "-")
	case ir.OpMul:
		return cc.renderBinOp(e, "*")
	case ir.OpDiv:
		return cc.renderBinOp(e, "/")
	case ir.OpMod:
		return cc.renderBinOp(e, "%")
	case ir.OpConcat:
		return cc.renderBinOp(e, "||")

	case ir.OpAnd:
		return cc.renderBoolChain(e, " AND ")
	case ir.OpOr:
		return cc.renderBoolChain(e, " OR ")

	case ir.OpNot:
		inner, err := cc.renderExpr(e.Arg)
		if err != nil {
			return nil, err
		}
		return []byte("NOT (" + string(inner) + ")"), nil

	case ir.OpIsNull:
		inner, err := cc.renderExpr(e.Arg)
		if err != nil {
			return nil, err
		}
		return []byte(string(inner) + " IS NULL"), nil

	case ir.OpIsNotNull:
		inner, err := cc.renderExpr(e.Arg)
		if err != nil {
			return nil, err
		}
		return []byte(string(inner) + " IS NOT NULL"), nil

	case ir.OpNeg:
		inner, err := cc.renderExpr(e.Arg)
		if err != nil {
			return nil, err
		}
		return []byte("-(" + string(inner) + ")"), nil

	case ir.OpInList:
		return cc.renderInList(e, "IN")

	case ir.OpInSubquery:
		return cc.renderInSubquery(e, "IN")
	case ir.OpNotInSubquery:
		return cc.renderInSubquery(e, "NOT IN")

	case ir.OpAggregate:
		return cc.renderAggregate(e)

	case ir.OpJSONObject:
		return cc.renderJSONObject(e)

	case ir.OpJSONGroupArray:
		inner, err := cc.renderExpr(e.Arg)
		if err != nil {
			return nil, err
		}
		return []byte("json_group_array(" + string(inner) + ")"), nil

	case ir.OpCase:
		return cc.renderCase(e)

	case ir.OpRaw:
		return []byte(e.RawSQL), nil

	default:
		return nil, rerr.New(rerr.SchemaError, "unhandled expression operator %d", e.Op)
	}
}

func isLiteralNullExpr(e *ir.Expr) bool {
	return e != nil && e.Op == ir.OpLiteral && e.Value == nil
}

func (cc *compileCtx) renderNullComparison(e *ir.Expr) ([]byte, error) {
	nonNull := e.Left
	if isLiteralNullExpr(nonNull) {
		nonNull = e.Right
	}
	lhs, err := cc.renderExpr(nonNull)
	if err != nil {
		return nil, err
	}
	if e.Op == ir.OpEq {
		return []byte(string(lhs) + " IS NULL"), nil
	}
	return []byte(string(lhs) + " IS NOT NULL"), nil
}

func (cc *compileCtx) renderBinOp(e *ir.Expr, op string) ([]byte, error) {
	lhs, err := cc.renderExpr(e.Left)
	if err != nil {
		return nil, err
	}
	rhs, err := cc.renderExpr(e.Right)
	if err != nil {
		return nil, err
	}
	return []byte("(" + string(lhs) + " " + op + " " + string(rhs) + ")"), nil
}

// renderBoolChain flattens nested same-operator List nodes iteratively
// via an explicit stack before joining, so a chain built by repeated
// And(And(And(...), x), y) nesting renders without deep recursion.
func (cc *compileCtx) renderBoolChain(e *ir.Expr, sep string) ([]byte, error) {
	var flat []*ir.Expr
	var stack util.Stack[*ir.Expr]
	stack.Push(e)
	for stack.Len() > 0 {
		cur := stack.Pop()
		if cur.Op == e.Op {
			for i := 0; i < len(cur.List); i++ {
				stack.Push(cur.List[i])
			}
			continue
		}
		flat = append(flat, cur)
	}
	// flatten reversed the order (LIFO); restore left-to-right.
	for i, j := 0, len(flat)-1; i < j; i, j = i+1, j-1 {
		flat[i], flat[j] = flat[j], flat[i]
	}

	var w bytes.Buffer
	w.WriteString("(")
	for i, term := range flat {
		if i > 0 {
			w.WriteString(sep)
		}
		sql, err := cc.renderExpr(term)
		if err != nil {
			return nil, err
		}
		w.Write(sql)
	}
	w.WriteString(")")
	return w.Bytes(), nil
}

func (cc *compileCtx) renderInList(e *ir.Expr, kw string) ([]byte, error) {
	arg, err := cc.renderExpr(e.Arg)
	if err != nil {
		return nil, err
	}
	var w bytes.Buffer
	w.Write(arg)
	w.WriteString(" ")
	w.WriteString(kw)
	w.WriteString(" (")
	for i, it := range e.List {
		if i > 0 {
			w.WriteString(", ")
		}
		sql, err := cc.renderExpr(it)
		if err != nil {
			return nil, err
		}
		w.Write(sql)
	}
	w.WriteString(")")
	return w.Bytes(), nil
}

func (cc *compileCtx) renderInSubquery(e *ir.Expr, kw string) ([]byte, error) {
	arg, err := cc.renderExpr(e.Arg)
	if err != nil {
		return nil, err
	}
	var w bytes.Buffer
	w.Write(arg)
	w.WriteString(" ")
	w.WriteString(kw)
	w.WriteString(" (")
	if name, ok := cc.cteName[e.Subquery.ID()]; ok {
		w.WriteString("SELECT * FROM ")
		w.WriteString(name)
	} else {
		body, _, err := cc.renderSelect(e.Subquery)
		if err != nil {
			return nil, err
		}
		w.Write(body)
	}
	w.WriteString(")")
	return w.Bytes(), nil
}

var aggFnSQL = map[ir.AggFn]string{
	ir.AggCount:       "COUNT",
	ir.AggSum:         "SUM",
	ir.AggAvg:         "AVG",
	ir.AggMin:         "MIN",
	ir.AggMax:         "MAX",
	ir.AggGroupConcat: "GROUP_CONCAT",
}

func (cc *compileCtx) renderAggregate(e *ir.Expr) ([]byte, error) {
	name, ok := aggFnSQL[e.AggFn]
	if !ok {
		return nil, rerr.New(rerr.IllegalAggregate, "unknown aggregate function %d", e.AggFn)
	}
	arg, err := cc.renderExpr(e.Arg)
	if err != nil {
		return nil, err
	}
	distinct := ""
	if e.Distinct {
		distinct = "DISTINCT "
	}
	return []byte(fmt.Sprintf("%s(%s%s)", name, distinct, string(arg))), nil
}

func (cc *compileCtx) renderJSONObject(e *ir.Expr) ([]byte, error) {
	var w bytes.Buffer
	w.WriteString("json_object(")
	for i, pair := range e.Pairs {
		if i > 0 {
			w.WriteString(", ")
		}
		val, err := cc.renderExpr(pair.Value)
		if err != nil {
			return nil, err
		}
		w.WriteString("'" + pair.Key + "', ")
		w.Write(val)
	}
	w.WriteString(")")
	return w.Bytes(), nil
}

func (cc *compileCtx) renderCase(e *ir.Expr) ([]byte, error) {
	var w bytes.Buffer
	w.WriteString("CASE")
	for _, wh := range e.Whens {
		cond, err := cc.renderExpr(wh.Cond)
		if err != nil {
			return nil, err
		}
		val, err := cc.renderExpr(wh.Value)
		if err != nil {
			return nil, err
		}
		w.WriteString(" WHEN ")
		w.Write(cond)
		w.WriteString(" THEN ")
		w.Write(val)
	}
	if e.Else != nil {
		els, err := cc.renderExpr(e.Else)
		if err != nil {
			return nil, err
		}
		w.WriteString(" ELSE ")
		w.Write(els)
	}
	w.WriteString(" END")
	return w.Bytes(), nil
}

func (cc *compileCtx) renderLiteral(e *ir.Expr) ([]byte, error) {
	if e.Value == nil {
		return []byte("NULL"), nil
	}
	c := e.Codec
	if c.Name == "" {
		c = inferLiteralCodec(e.Value)
	}
	prim, err := c.Serialize(e.Value)
	if err != nil {
		return nil, err
	}
	return []byte(sqlLiteral(prim)), nil
}

func (cc *compileCtx) bindExternal(e *ir.Expr) ([]byte, error) {
	name := e.Label
	if name == "" {
		name = cc.ids.FreshID("p")
	}
	prim, err := e.Codec.Serialize(e.Value)
	if err != nil {
		return nil, err
	}
	if !cc.paramSeen[name] {
		cc.paramSeen[name] = true
		cc.params = append(cc.params, Param{Name: name, Value: prim})
	}
	return []byte(":" + name), nil
}
