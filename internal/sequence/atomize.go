package sequence

import (
	"github.com/oxhq/morfx/internal/xatomic"
	"github.com/oxhq/morfx/internal/xerrors"
)

// Atomize converts a sequence into a sequence of atomic values: node items
// contribute their typed value (untyped-atomic, since this reference
// document store carries no schema); atomic items pass through unchanged;
// a function item is an error (FOTY0013) unless it is an array, in which
// case its members are recursively atomized and flattened into the result.
//
// Per spec §9's open question about deeply nested arrays, this uses an
// explicit worklist rather than recursion so that no amount of array
// nesting can overflow the Go call stack.
func Atomize(s Sequence) (Sequence, error) {
	out := make([]Item, 0, s.Len())
	worklist := make([]Item, 0, s.Len())
	items := s.Items()
	for i := len(items) - 1; i >= 0; i-- {
		worklist = append(worklist, items[i])
	}

	for len(worklist) > 0 {
		it := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		switch it.Kind {
		case ItemAtomic:
			out = append(out, it)
		case ItemNode:
			out = append(out, NewAtomicItem(xatomic.NewUntyped(it.Node.TypedValue())))
		case ItemFunction:
			if it.Function == nil || it.Function.Kind != FuncArray {
				return Sequence{}, xerrors.New(xerrors.FOTY0013, "cannot atomize a function item that is not an array")
			}
			members := it.Function.ArrayVal.Members()
			for i := len(members) - 1; i >= 0; i-- {
				memberItems := members[i].Items()
				for j := len(memberItems) - 1; j >= 0; j-- {
					worklist = append(worklist, memberItems[j])
				}
			}
		}
	}
	return Many(out), nil
}
