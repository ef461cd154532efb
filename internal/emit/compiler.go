// Package emit is the SQL printer (§2 C6): it walks the Query/Expr IR
// (internal/ir) and lowers it to SQL text, a parameter map, and a
// reconstruction plan, hoisting multiply-referenced derived queries
// into CTEs along the way. It is grounded directly on the teacher's
// core/internal/psql package: a compilerContext wrapping a
// *bytes.Buffer that render methods write into directly.
package emit

import (
	"bytes"
	"strconv"

	"go.uber.org/zap"

	"github.com/dosco-labs/relq/internal/cache"
	"github.com/dosco-labs/relq/internal/ident"
	"github.com/dosco-labs/relq/internal/ir"
	"github.com/dosco-labs/relq/internal/plan"
)

// Param is one bound external, in first-use order.
type Param struct {
	Name  string
	Value any
}

// Operation is the serializable record the core hands back to a
// driver (§6).
type Operation struct {
	SQL         string
	Params      map[string]any
	Plan        plan.Plan
	Cardinality ir.Cardinality
}

// Compiler lowers a Query to an Operation. Besides the id generator it
// holds a compiled-Operation LRU (§5's "if the core caches... an LRU
// keyed by SQL text" possibility, keyed here by the Query's own
// identity token since that's known before compilation produces any
// SQL text) — a single Compiler is still safe to reuse (and to share)
// across goroutines, matching the core's synchronous, value-typed
// concurrency model.
type Compiler struct {
	ids    *ident.Generator
	logger *zap.Logger
	cache  *cache.Cache[Operation]
}

// NewCompiler builds a Compiler backed by the given id generator. Pass
// a Generator in test mode for byte-stable output across runs.
func NewCompiler(ids *ident.Generator) *Compiler {
	opCache, _ := cache.New[Operation](0) // size<=0 always succeeds (teacher's default of 5000)
	return &Compiler{ids: ids, logger: zap.NewNop(), cache: opCache}
}

// WithLogger attaches a diagnostic logger used only for Debug-level
// emission tracing (CTE hoisting decisions) —
// never required for correct operation (SPEC_FULL.md §9).
func (c *Compiler) WithLogger(l *zap.Logger) *Compiler {
	if l == nil {
		l = zap.NewNop()
	}
	nc := *c
	nc.logger = l
	return &nc
}

// cacheKey is q's Operation cache key: its identity token, which the
// ir package guarantees is stable across repeated terminal() calls on
// the same built query (see ir.Query.terminal) and changes whenever a
// structural builder method produces a new Query value.
func cacheKey(q *ir.Query) string {
	return strconv.FormatUint(q.ID(), 10)
}

// compileCtx is the per-Compile working state, mirroring
// psql.compilerContext's role of threading a shared buffer, param
// map, and query reference through every render method.
type compileCtx struct {
	ids    *ident.Generator
	logger *zap.Logger

	params       []Param
	paramSeen    map[string]bool
	refcount     map[uint64]int
	viaPredicate map[uint64]bool
	visited      map[uint64]bool
	order        []*ir.Query
	cteName      map[uint64]string

	// aliasStack holds, per Query currently being rendered, the
	// rewrite from the caller-facing table reference (the base table
	// name, "src" for a derived source, or a join alias) to the fresh
	// t_<id> token actually emitted (§4.5 "join aliasing", §4.6 step
	// 1). renderSelect pushes a fresh scope for each Query it renders
	// and pops it on return, so a nested derived query's own aliases
	// never leak into its parent's.
	aliasStack []map[string]string
}

// Compile lowers q into an Operation. The same Query, compiled twice
// with a Compiler sharing one id Generator's test-mode counter reset
// between calls, produces byte-identical SQL (§4.6 "Stateless"). A hit
// in c.cache skips the collect/render walk entirely.
func (c *Compiler) Compile(q *ir.Query) (Operation, error) {
	if err := q.Err(); err != nil {
		return Operation{}, err
	}

	key := cacheKey(q)
	if c.cache != nil {
		if op, ok := c.cache.Get(key); ok {
			op.Cardinality = q.Cardinality
			return op, nil
		}
	}

	cc := &compileCtx{
		ids:          c.ids,
		logger:       c.logger,
		paramSeen:    make(map[string]bool),
		refcount:     make(map[uint64]int),
		viaPredicate: make(map[uint64]bool),
		visited:      make(map[uint64]bool),
		cteName:      make(map[uint64]string),
	}

	cc.collect(q)
	for _, dq := range cc.order {
		if dq.PromotedCTE || cc.refcount[dq.ID()] >= 2 || cc.viaPredicate[dq.ID()] {
			cc.cteName[dq.ID()] = cc.ids.FreshID("cte")
		}
	}
	if cc.logger.Core().Enabled(zap.DebugLevel) {
		for id, name := range cc.cteName {
			cc.logger.Debug("hoisting derived query to CTE", zap.Uint64("query_id", id), zap.String("cte_name", name))
		}
	}

	var w bytes.Buffer
	if len(cc.cteName) > 0 {
		w.WriteString("WITH ")
		first := true
		for _, dq := range cc.order {
			name, ok := cc.cteName[dq.ID()]
			if !ok {
				continue
			}
			if !first {
				w.WriteString(", ")
			}
			first = false
			w.WriteString(name)
			w.WriteString(" AS (")
			body, _, err := cc.renderSelect(dq)
			if err != nil {
				return Operation{}, err
			}
			w.Write(body)
			w.WriteString(")")
		}
		w.WriteString(" ")
	}

	body, resultPlan, err := cc.renderSelect(q)
	if err != nil {
		return Operation{}, err
	}
	w.Write(body)

	params := make(map[string]any, len(cc.params))
	for _, p := range cc.params {
		params[p.Name] = p.Value
	}

	op := Operation{
		SQL:         w.String(),
		Params:      params,
		Plan:        resultPlan,
		Cardinality: q.Cardinality,
	}
	if c.cache != nil {
		c.cache.Set(key, op)
	}
	return op, nil
}

// quoteIdentifier double-quotes a SQL identifier, matching the
// teacher's schema_ddl.go quoting convention.
func quoteIdentifier(s string) string {
	return `"` + s + `"`
}
