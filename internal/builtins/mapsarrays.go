package builtins

import (
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xerrors"
)

// registerMapArrayFunctions wires map:get/put/keys/merge and
// array:get/put/size/for-each/flatten (spec §4.7's "map:*, array:*" group).
func registerMapArrayFunctions(in *installer) error {
	mapReg := []struct {
		name  string
		arity int
		impl  NativeFunc
	}{
		{"get", 2, mapGet},
		{"put", 3, mapPut},
		{"keys", 1, mapKeys},
		{"merge", 1, mapMerge},
	}
	for _, r := range mapReg {
		if err := in.mapFn(r.name, r.arity, r.impl); err != nil {
			return err
		}
	}
	arrayReg := []struct {
		name  string
		arity int
		impl  NativeFunc
	}{
		{"get", 2, arrayGet},
		{"put", 3, arrayPut},
		{"size", 1, arraySize},
		{"for-each", 2, arrayForEach},
		{"flatten", 1, arrayFlatten},
	}
	for _, r := range arrayReg {
		if err := in.arrayFn(r.name, r.arity, r.impl); err != nil {
			return err
		}
	}
	return nil
}

func requireMap(s sequence.Sequence) (*sequence.Map, error) {
	if s.Len() != 1 {
		return nil, xerrors.New(xerrors.XPTY0004, "expected a single map")
	}
	it, _ := s.At(0)
	if it.Kind != sequence.ItemFunction || it.Function.Kind != sequence.FuncMap {
		return nil, xerrors.New(xerrors.XPTY0004, "expected a map")
	}
	return it.Function.MapVal, nil
}

func requireArray(s sequence.Sequence) (*sequence.Array, error) {
	if s.Len() != 1 {
		return nil, xerrors.New(xerrors.XPTY0004, "expected a single array")
	}
	it, _ := s.At(0)
	if it.Kind != sequence.ItemFunction || it.Function.Kind != sequence.FuncArray {
		return nil, xerrors.New(xerrors.XPTY0004, "expected an array")
	}
	return it.Function.ArrayVal, nil
}

func mapGet(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	m, err := requireMap(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	key, err := atom(args[1])
	if err != nil {
		return sequence.Sequence{}, err
	}
	val, ok := m.Get(key)
	if !ok {
		return sequence.Empty(), nil
	}
	return val, nil
}

func mapPut(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	m, err := requireMap(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	key, err := atom(args[1])
	if err != nil {
		return sequence.Sequence{}, err
	}
	out := m.Put(key, args[2])
	return sequence.One(sequence.NewFunctionItem(sequence.NewMapFunction(out))), nil
}

func mapKeys(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	m, err := requireMap(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	keys := m.Keys()
	items := make([]sequence.Item, len(keys))
	for i, k := range keys {
		items[i] = sequence.NewAtomicItem(k)
	}
	return sequence.Many(items), nil
}

func mapMerge(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	out := sequence.NewEmptyMap()
	for _, it := range args[0].Items() {
		if it.Kind != sequence.ItemFunction || it.Function.Kind != sequence.FuncMap {
			return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "map:merge: expected a sequence of maps")
		}
		out = out.Merge(it.Function.MapVal)
	}
	return sequence.One(sequence.NewFunctionItem(sequence.NewMapFunction(out))), nil
}

func arrayGet(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	a, err := requireArray(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	idx, err := atom(args[1])
	if err != nil {
		return sequence.Sequence{}, err
	}
	return a.Get(int(idx.Integer().Int64()))
}

func arrayPut(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	a, err := requireArray(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	idx, err := atom(args[1])
	if err != nil {
		return sequence.Sequence{}, err
	}
	out, err := a.Put(int(idx.Integer().Int64()), args[2])
	if err != nil {
		return sequence.Sequence{}, err
	}
	return sequence.One(sequence.NewFunctionItem(sequence.NewArrayFunction(out))), nil
}

func arraySize(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	a, err := requireArray(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	return intItem(int64(a.Size())), nil
}

// arrayForEach applies the callback in args[1] to every member of the array
// in args[0], building a new array from the results. It is the one built-in
// that calls back into the interpreter, via the exported
// vm.Interpreter.CallFunction, rather than operating purely on its
// arguments — the reason internal/builtins carries an *vm.Interpreter
// parameter at all.
func arrayForEach(dyn *vm.DynamicContext, interp *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	a, err := requireArray(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	if args[1].Len() != 1 {
		return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "array:for-each: expected a single callback function")
	}
	cb, _ := args[1].At(0)
	if cb.Kind != sequence.ItemFunction {
		return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "array:for-each: second argument is not a function")
	}
	out := make([]sequence.Sequence, a.Size())
	for i, member := range a.Members() {
		result, err := interp.CallFunction(cb, []sequence.Sequence{member}, dyn)
		if err != nil {
			return sequence.Sequence{}, err
		}
		out[i] = result
	}
	return sequence.One(sequence.NewFunctionItem(sequence.NewArrayFunction(sequence.NewArray(out)))), nil
}

func arrayFlatten(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	a, err := requireArray(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	return a.Flatten(), nil
}
