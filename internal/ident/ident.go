// Package ident produces the alias and CTE identifiers the emitter
// stitches onto table and subquery references during lowering.
package ident

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator hands out identifiers unique within its own scope. The
// zero value is ready to use in production mode; call SetTestMode to
// switch a Generator to the deterministic counter used by tests.
type Generator struct {
	testMode uint32
	counter  uint64
}

// New returns a Generator in production mode.
func New() *Generator {
	return &Generator{}
}

// SetTestMode toggles the deterministic counter source. In test mode
// FreshID returns "<prefix>_id<n>" for a shared, monotonically
// increasing n; outside test mode it returns an unguessable xid token.
func (g *Generator) SetTestMode(on bool) {
	if on {
		atomic.StoreUint32(&g.testMode, 1)
	} else {
		atomic.StoreUint32(&g.testMode, 0)
	}
}

// ResetCounter rewinds the deterministic counter to zero. Callers
// using test mode across multiple emissions must serialize access
// around ResetCounter + emission, per the core's concurrency model.
func (g *Generator) ResetCounter() {
	atomic.StoreUint64(&g.counter, 0)
}

// FreshID returns "<prefix>_<token>", unique within the scope of this
// Generator. The generator does not dedupe against caller-supplied
// names; callers mixing user names with generated ids must reserve a
// namespace (this module always uses "t_" and "cte_" prefixes).
func (g *Generator) FreshID(prefix string) string {
	if atomic.LoadUint32(&g.testMode) == 1 {
		n := atomic.AddUint64(&g.counter, 1) - 1
		return fmt.Sprintf("%s_id%d", prefix, n)
	}
	return fmt.Sprintf("%s_%s", prefix, xid.New().String())
}
