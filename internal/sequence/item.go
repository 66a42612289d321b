// Package sequence implements the Sequence/Item data model: the ordered,
// finite container of items (atomic | node | function) that is XPath's
// principal data type, plus Array, Map, and Function as the composite item
// kinds, per spec §3's data model table.
package sequence

import (
	"github.com/oxhq/morfx/internal/xatomic"
	"github.com/oxhq/morfx/internal/xnode"
)

// ItemKind tags which of the three item variants an Item holds.
type ItemKind int

const (
	ItemAtomic ItemKind = iota
	ItemNode
	ItemFunction
)

// Item is exactly one of Atomic, Node, or Function, per spec §3.
type Item struct {
	Kind     ItemKind
	Atomic   xatomic.Value
	Node     xnode.Node
	Function *Function
}

func NewAtomicItem(v xatomic.Value) Item { return Item{Kind: ItemAtomic, Atomic: v} }
func NewNodeItem(n xnode.Node) Item       { return Item{Kind: ItemNode, Node: n} }
func NewFunctionItem(f *Function) Item    { return Item{Kind: ItemFunction, Function: f} }

// StringValue implements the item-level string-value rule used by fn:string
// and by atomization's node-handling branch.
func (it Item) StringValue() string {
	switch it.Kind {
	case ItemAtomic:
		return it.Atomic.StringValue()
	case ItemNode:
		return it.Node.StringValue()
	default:
		return ""
	}
}
