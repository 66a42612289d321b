// Package vm executes a compiler.Program against a DynamicContext: the
// context item/position/last triple, the shared document store, and the
// collation/timezone defaults every dynamic-context-dependent built-in
// consults, per spec §2.9/§2.10.
package vm

import (
	"time"

	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/xnode"
)

// DynamicContext is the per-evaluation environment threaded through every
// chunk execution. Two independent evaluations never share one — spec §5's
// concurrency contract is "independent DynamicContext + independent
// document-store handle", which this module honours by never mutating a
// DynamicContext shared across goroutines.
type DynamicContext struct {
	HasContextItem  bool
	ContextItem     sequence.Item
	ContextPosition int
	ContextLast     int

	Store xnode.DocumentStore

	DefaultCollation string
	ImplicitTimezone *time.Location
}

// NewDynamicContext builds a context with no context item bound (the
// top-level "." reference raises XPDY0002 until one is supplied), the
// codepoint collation, and UTC as the implicit timezone.
func NewDynamicContext(store xnode.DocumentStore) *DynamicContext {
	return &DynamicContext{
		Store:            store,
		DefaultCollation: "http://www.w3.org/2005/xpath-functions/collation/codepoint",
		ImplicitTimezone: time.UTC,
	}
}

// WithContextItem returns a copy of dyn with a bound singleton context
// (position 1, last 1), used by a CLI/embedder evaluating an expression
// against one input node.
func (dyn *DynamicContext) WithContextItem(item sequence.Item) *DynamicContext {
	out := *dyn
	out.HasContextItem = true
	out.ContextItem = item
	out.ContextPosition = 1
	out.ContextLast = 1
	return &out
}
