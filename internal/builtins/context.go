package builtins

import (
	"sort"

	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/statctx"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xatomic"
)

// registerContextFunctions wires fn:position/fn:last (registered for name+
// arity lookup even though lowering short-circuits zero-arity calls to
// either name directly into the enclosing context binding, per spec §9
// Open Question resolution 5) plus the sequence-shaped built-ins: count,
// empty, exists, reverse, subsequence, remove, insert-before,
// distinct-values, deep-equal.
func registerContextFunctions(in *installer) error {
	reg := []struct {
		name  string
		arity int
		kind  statctx.FunctionKind
		impl  NativeFunc
	}{
		{"position", 0, statctx.FuncPosition, func(dyn *vm.DynamicContext, _ *vm.Interpreter, _ []sequence.Sequence) (sequence.Sequence, error) {
			return intItem(int64(dyn.ContextPosition)), nil
		}},
		{"last", 0, statctx.FuncSize, func(dyn *vm.DynamicContext, _ *vm.Interpreter, _ []sequence.Sequence) (sequence.Sequence, error) {
			return intItem(int64(dyn.ContextLast)), nil
		}},
		{"count", 1, statctx.FuncPlain, func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
			return intItem(int64(args[0].Len())), nil
		}},
		{"empty", 1, statctx.FuncPlain, func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
			return boolItem(args[0].IsEmpty()), nil
		}},
		{"exists", 1, statctx.FuncPlain, func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
			return boolItem(!args[0].IsEmpty()), nil
		}},
		{"reverse", 1, statctx.FuncPlain, func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
			items := args[0].Items()
			out := make([]sequence.Item, len(items))
			for i, it := range items {
				out[len(items)-1-i] = it
			}
			return sequence.Many(out), nil
		}},
		{"subsequence", 2, statctx.FuncPlain, fnSubsequence},
		{"subsequence", 3, statctx.FuncPlain, fnSubsequence},
		{"remove", 2, statctx.FuncPlain, func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
			posAtom, err := atom(args[1])
			if err != nil {
				return sequence.Sequence{}, err
			}
			pos := int(posAtom.Integer().Int64())
			items := args[0].Items()
			var out []sequence.Item
			for i, it := range items {
				if i+1 == pos {
					continue
				}
				out = append(out, it)
			}
			return sequence.Many(out), nil
		}},
		{"insert-before", 3, statctx.FuncPlain, func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
			posAtom, err := atom(args[1])
			if err != nil {
				return sequence.Sequence{}, err
			}
			pos := int(posAtom.Integer().Int64())
			items := args[0].Items()
			insert := args[2].Items()
			var out []sequence.Item
			if pos < 1 {
				pos = 1
			}
			for i, it := range items {
				if i+1 == pos {
					out = append(out, insert...)
				}
				out = append(out, it)
			}
			if pos > len(items) {
				out = append(out, insert...)
			}
			return sequence.Many(out), nil
		}},
		{"distinct-values", 1, statctx.FuncPlain, func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
			atomized, err := sequence.Atomize(args[0])
			if err != nil {
				return sequence.Sequence{}, err
			}
			var out []sequence.Item
			for _, it := range atomized.Items() {
				dup := false
				for _, seen := range out {
					eq, err := xatomic.Equal(seen.Atomic, it.Atomic)
					if err == nil && eq {
						dup = true
						break
					}
				}
				if !dup {
					out = append(out, it)
				}
			}
			return sequence.Many(out), nil
		}},
		{"deep-equal", 2, statctx.FuncPlain, func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
			return boolItem(deepEqualSeq(args[0], args[1])), nil
		}},
	}
	for _, r := range reg {
		if err := in.fn(r.name, r.arity, r.kind, r.impl); err != nil {
			return err
		}
	}
	return nil
}

func fnSubsequence(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	startAtom, err := atom(args[1])
	if err != nil {
		return sequence.Sequence{}, err
	}
	items := args[0].Items()
	startIdx := int(roundHalfUp(toFloat64(startAtom)))
	length := len(items) + 1
	if len(args) == 3 {
		lenAtom, err := atom(args[2])
		if err != nil {
			return sequence.Sequence{}, err
		}
		length = startIdx + int(roundHalfUp(toFloat64(lenAtom)))
	}
	var out []sequence.Item
	for i, it := range items {
		pos := i + 1
		if pos >= startIdx && pos < length {
			out = append(out, it)
		}
	}
	return sequence.Many(out), nil
}

func roundHalfUp(f float64) float64 {
	if f >= 0 {
		return float64(int64(f + 0.5))
	}
	return -float64(int64(-f + 0.5))
}

// deepEqualSeq implements fn:deep-equal over whole sequences: equal length,
// pairwise deep-equal items (atomic values compare with NaN-equals-NaN,
// nodes compare by kind/name/string-value, functions are never deep-equal
// except maps/arrays of pairwise deep-equal entries).
func deepEqualSeq(a, b sequence.Sequence) bool {
	ai, bi := a.Items(), b.Items()
	if len(ai) != len(bi) {
		return false
	}
	for i := range ai {
		if !deepEqualItem(ai[i], bi[i]) {
			return false
		}
	}
	return true
}

func deepEqualItem(a, b sequence.Item) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case sequence.ItemAtomic:
		eq, err := xatomic.DeepEqual(a.Atomic, b.Atomic)
		return err == nil && eq
	case sequence.ItemNode:
		if a.Node.Kind() != b.Node.Kind() {
			return false
		}
		if !a.Node.Name().Equal(b.Node.Name()) {
			return false
		}
		return a.Node.StringValue() == b.Node.StringValue()
	case sequence.ItemFunction:
		if a.Function.Kind != b.Function.Kind {
			return false
		}
		switch a.Function.Kind {
		case sequence.FuncArray:
			am, bm := a.Function.ArrayVal.Members(), b.Function.ArrayVal.Members()
			if len(am) != len(bm) {
				return false
			}
			for i := range am {
				if !deepEqualSeq(am[i], bm[i]) {
					return false
				}
			}
			return true
		case sequence.FuncMap:
			ak, bk := a.Function.MapVal.Keys(), b.Function.MapVal.Keys()
			if len(ak) != len(bk) {
				return false
			}
			sort.Slice(ak, func(i, j int) bool { return ak[i].StringValue() < ak[j].StringValue() })
			sort.Slice(bk, func(i, j int) bool { return bk[i].StringValue() < bk[j].StringValue() })
			for i := range ak {
				av, _ := a.Function.MapVal.Get(ak[i])
				bv, ok := b.Function.MapVal.Get(ak[i])
				if !ok || !deepEqualSeq(av, bv) {
					return false
				}
			}
			return true
		}
		return false
	}
	return false
}
