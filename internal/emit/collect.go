package emit

import "github.com/dosco-labs/relq/internal/ir"

// collect walks q's body — its FROM source, joins, and every clause's
// expressions — recording, by identity token (ir.Query.ID), how many
// distinct sites reference each derived Query and whether any of them
// is an InSubquery/NotInSubquery predicate (invariant 5: either
// condition alone is enough to force a CTE). cc.order ends up in
// dependency-first (post-order) sequence, so the WITH list can be
// printed in a single left-to-right pass with every CTE a later one
// might reference already defined.
func (cc *compileCtx) collect(q *ir.Query) {
	cc.walkQueryBody(q)
}

func (cc *compileCtx) walkQueryBody(q *ir.Query) {
	if q.Source.Kind == ir.SourceDerived {
		cc.touch(q.Source.Derived, false)
	}
	for _, j := range q.Joins {
		cc.touch(j.Subquery, false)
		cc.walkExpr(j.On)
	}
	cc.walkExpr(q.Where)
	for _, g := range q.GroupBy {
		cc.walkExpr(g)
	}
	cc.walkExpr(q.Having)
	for _, o := range q.OrderBy {
		cc.walkExpr(o.Expr)
	}
	for _, p := range q.Selection.Projections {
		cc.walkExpr(p.Expr)
	}
}

func (cc *compileCtx) touch(dq *ir.Query, viaPredicate bool) {
	if dq == nil {
		return
	}
	cc.refcount[dq.ID()]++
	if viaPredicate {
		cc.viaPredicate[dq.ID()] = true
	}
	if cc.visited[dq.ID()] {
		return
	}
	cc.visited[dq.ID()] = true
	cc.walkQueryBody(dq)
	cc.order = append(cc.order, dq)
}

func (cc *compileCtx) walkExpr(e *ir.Expr) {
	if e == nil {
		return
	}
	switch e.Op {
	case ir.OpInSubquery, ir.OpNotInSubquery:
		cc.touch(e.Subquery, true)
	}
	cc.walkExpr(e.Left)
	cc.walkExpr(e.Right)
	cc.walkExpr(e.Arg)
	cc.walkExpr(e.Else)
	for _, x := range e.List {
		cc.walkExpr(x)
	}
	for _, p := range e.Pairs {
		cc.walkExpr(p.Value)
	}
	for _, w := range e.Whens {
		cc.walkExpr(w.Cond)
		cc.walkExpr(w.Value)
	}
}
