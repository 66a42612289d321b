package vm

import (
	"github.com/oxhq/morfx/internal/compiler"
	"github.com/oxhq/morfx/internal/ir"
	"github.com/oxhq/morfx/internal/parser"
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/span"
	"github.com/oxhq/morfx/internal/statctx"
	"github.com/oxhq/morfx/internal/xatomic"
	"github.com/oxhq/morfx/internal/xerrors"
	"github.com/oxhq/morfx/internal/xnode"
)

// CallFunction invokes a callable item (static, inline, map, or array) with
// args against dyn. Exported so internal/builtins can implement callback-
// taking functions like array:for-each without internal/vm depending on
// internal/builtins.
func (interp *Interpreter) CallFunction(fn sequence.Item, args []sequence.Sequence, dyn *DynamicContext) (sequence.Sequence, error) {
	return interp.call(sequence.One(fn), args, dyn, 0, span.Span{})
}

// requireSingleNode extracts the one node item out of s, the shape every
// axis step's Input (a VarRef bound by the enclosing Iterate to one
// candidate context item) and Root's Operand carry.
func requireSingleNode(s sequence.Sequence) (xnode.Node, error) {
	if s.Len() != 1 {
		return nil, xerrors.New(xerrors.XPTY0004, "expected a single node")
	}
	it, _ := s.At(0)
	if it.Kind != sequence.ItemNode {
		return nil, xerrors.New(xerrors.XPTY0004, "expected a node, got a non-node item")
	}
	return it.Node, nil
}

// evalStep applies step's axis/node-test to the single node carried by
// input, producing the candidate node sequence per spec §4.3's Step op.
// Deduplication/re-sorting is a separate concern applied by the enclosing
// Iterate(Dedup: true), not here.
func evalStep(input sequence.Sequence, step compiler.StepInfo) (sequence.Sequence, error) {
	node, err := requireSingleNode(input)
	if err != nil {
		return sequence.Sequence{}, err
	}
	axis, ok := axisTable[step.Axis]
	if !ok {
		return sequence.Sequence{}, xerrors.Newf(xerrors.XPTY0004, "internal/vm: unmapped axis %v", step.Axis)
	}
	candidates, err := node.Axis(axis)
	if err != nil {
		return sequence.Sequence{}, err
	}
	var out []sequence.Item
	for _, n := range candidates {
		if matchNodeTest(n, step.Test) {
			out = append(out, sequence.NewNodeItem(n))
		}
	}
	return sequence.Many(out), nil
}

// evalRoot resolves the document root containing operand's single node, per
// "/"'s absolute-path lowering (ir.Root): walk the parent axis to the top.
func evalRoot(operand sequence.Sequence) (sequence.Sequence, error) {
	node, err := requireSingleNode(operand)
	if err != nil {
		return sequence.Sequence{}, err
	}
	cur := node
	for {
		parents, err := cur.Axis(xnode.AxisParent)
		if err != nil {
			return sequence.Sequence{}, err
		}
		if len(parents) == 0 {
			break
		}
		cur = parents[0]
	}
	return sequence.One(sequence.NewNodeItem(cur)), nil
}

// evalPredicateTruth implements a `[...]` predicate's truth rule (ir.
// PredicateTruth): a single numeric Value is compared against Position
// (1-based); anything else falls back to effective boolean value.
func evalPredicateTruth(value, position sequence.Sequence) (sequence.Sequence, error) {
	items := value.Items()
	if len(items) == 1 && items[0].Kind == sequence.ItemAtomic && xatomic.IsNumeric(items[0].Atomic.Tag) {
		posAtomic, err := singletonAtomic(position)
		if err != nil {
			return sequence.Sequence{}, err
		}
		cmp, err := xatomic.CompareNumeric(items[0].Atomic, posAtomic)
		if err != nil {
			return sequence.Sequence{}, err
		}
		return sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(cmp == 0))), nil
	}
	ok, err := value.EffectiveBooleanValue()
	if err != nil {
		return sequence.Sequence{}, err
	}
	return sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(ok))), nil
}

// evalCast implements "cast as T(?)": operand is atomized and must reduce
// to zero or one item (zero only if cast.AllowEmpty), then xatomic.Cast
// converts it to the target type, per spec §4.3/§4.5.
func evalCast(operand sequence.Sequence, cast compiler.CastInfo) (sequence.Sequence, error) {
	atomized, err := sequence.Atomize(operand)
	if err != nil {
		return sequence.Sequence{}, err
	}
	if atomized.IsEmpty() {
		if cast.AllowEmpty {
			return sequence.Empty(), nil
		}
		return sequence.Sequence{}, xerrors.New(xerrors.FORG0005, "cast: empty sequence not allowed for this target type")
	}
	if atomized.Len() != 1 {
		return sequence.Sequence{}, xerrors.New(xerrors.FORG0005, "cast: expected a single atomic value")
	}
	target, ok := xatomic.TagByName(cast.Target)
	if !ok {
		return sequence.Sequence{}, xerrors.Newf(xerrors.XPST0003, "unknown cast target type %q", cast.Target)
	}
	it, _ := atomized.At(0)
	out, err := xatomic.Cast(it.Atomic, target)
	if err != nil {
		return sequence.Sequence{}, err
	}
	return sequence.One(sequence.NewAtomicItem(out)), nil
}

// evalMapConstructor pops 2*nArgs stack slots (key1, val1, key2, val2, ...,
// in push order) and builds an XPath map, per OpMapConstructor/§4.3.
func evalMapConstructor(stack *[]sequence.Sequence, nArgs int) (sequence.Sequence, error) {
	entries := popN(stack, nArgs*2)
	keys := make([]xatomic.Value, nArgs)
	values := make([]sequence.Sequence, nArgs)
	for i := 0; i < nArgs; i++ {
		k, err := singletonAtomic(entries[2*i])
		if err != nil {
			return sequence.Sequence{}, err
		}
		keys[i] = k
		values[i] = entries[2*i+1]
	}
	m, err := sequence.NewMap(keys, values)
	if err != nil {
		return sequence.Sequence{}, err
	}
	return sequence.One(sequence.NewFunctionItem(sequence.NewMapFunction(m))), nil
}

// evalArrayConstructor builds an array literal from already-evaluated
// member sequences, per OpArrayConstructor/§4.3: a square constructor keeps
// each member whole; a curly constructor unwraps its single enclosed
// sequence's items into separate one-item members.
func evalArrayConstructor(members []sequence.Sequence, curly bool) (sequence.Sequence, error) {
	if !curly {
		return sequence.One(sequence.NewFunctionItem(sequence.NewArrayFunction(sequence.NewArray(members)))), nil
	}
	if len(members) != 1 {
		return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "internal/vm: curly array constructor takes exactly one operand")
	}
	var out []sequence.Sequence
	for _, it := range members[0].Items() {
		out = append(out, sequence.One(it))
	}
	return sequence.One(sequence.NewFunctionItem(sequence.NewArrayFunction(sequence.NewArray(out)))), nil
}

// matchesSequenceType reports whether operand satisfies the declared
// sequence type (empty-sequence / occurrence-qualified item type), used by
// OpInstanceOf/OpTreat.
func matchesSequenceType(operand sequence.Sequence, typ ir.SequenceTypeDesc) bool {
	if typ.IsEmptySequence {
		return operand.IsEmpty()
	}
	n := operand.Len()
	switch typ.Occurrence {
	case parser.OccOne:
		if n != 1 {
			return false
		}
	case parser.OccOptional:
		if n > 1 {
			return false
		}
	case parser.OccOneOrMore:
		if n < 1 {
			return false
		}
	case parser.OccZeroOrMore:
		// any count
	}
	for _, it := range operand.Items() {
		if !matchesItemType(it, typ.ItemTypeName) {
			return false
		}
	}
	return true
}

// makeStaticClosure builds the callable Function value for a FunctionRef to
// a static function (OpMakeStaticClosure). If the descriptor declares a
// context-kind, the current context item/position/last triple is captured
// now, per spec §4.4 Closures, so the call site may omit that argument.
func (interp *Interpreter) makeStaticClosure(in compiler.Instr, dyn *DynamicContext) (*sequence.Function, error) {
	id := statctx.FunctionID(in.StaticID)
	desc, ok := interp.Prog.Static.ByID(id)
	if !ok {
		return nil, xerrors.Newf(xerrors.XPST0003, "internal/vm: unknown static function id %d", in.StaticID)
	}
	var captures []sequence.Sequence
	switch desc.Kind {
	case statctx.FuncContextFirst, statctx.FuncContextLast, statctx.FuncContextLastOptional:
		if !dyn.HasContextItem {
			if desc.Kind != statctx.FuncContextLastOptional {
				return nil, xerrors.New(xerrors.XPDY0002, "context item is absent").WithSpan(in.Span)
			}
			captures = []sequence.Sequence{sequence.Empty()}
		} else {
			captures = []sequence.Sequence{sequence.One(dyn.ContextItem)}
		}
	}
	return sequence.NewStaticFunction(int(id), in.Arity, captures), nil
}

// call dispatches a callee Function value (static, inline, map, or array)
// with args, per spec §4.4's uniform calling convention.
func (interp *Interpreter) call(calleeSeq sequence.Sequence, args []sequence.Sequence, dyn *DynamicContext, depth int, sp span.Span) (sequence.Sequence, error) {
	if calleeSeq.Len() != 1 {
		return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "expected a single callable item").WithSpan(sp)
	}
	calleeItem, _ := calleeSeq.At(0)
	if calleeItem.Kind != sequence.ItemFunction {
		return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "attempted to call a non-function item").WithSpan(sp)
	}
	fn := calleeItem.Function

	switch fn.Kind {
	case sequence.FuncMap:
		if len(args) != 1 {
			return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "map lookup takes exactly one argument").WithSpan(sp)
		}
		key, err := singletonAtomic(args[0])
		if err != nil {
			return sequence.Sequence{}, err
		}
		val, ok := fn.MapVal.Get(key)
		if !ok {
			return sequence.Empty(), nil
		}
		return val, nil

	case sequence.FuncArray:
		if len(args) != 1 {
			return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "array lookup takes exactly one argument").WithSpan(sp)
		}
		idx, err := singletonAtomic(args[0])
		if err != nil {
			return sequence.Sequence{}, err
		}
		return fn.ArrayVal.Get(int(idx.Integer().Int64()))

	case sequence.FuncInline:
		if depth+1 >= MaxCallDepth {
			return sequence.Sequence{}, xerrors.New(xerrors.StackOverflow, "call frame depth exceeded").WithSpan(sp)
		}
		info := interp.Prog.Functions[fn.InlineID]
		if len(args) != len(info.Params) {
			return sequence.Sequence{}, xerrors.Newf(xerrors.XPTY0004, "function %s expects %d arguments, got %d", info.Name, len(info.Params), len(args)).WithSpan(sp)
		}
		callFr := newFrame()
		for i, p := range info.Params {
			callFr.vars[p] = args[i]
		}
		for i, c := range info.ClosureNames {
			if i < len(fn.Captures) {
				callFr.vars[c] = fn.Captures[i]
			}
		}
		return interp.exec(info.ChunkIdx, callFr, dyn, depth+1)

	case sequence.FuncStatic:
		desc, ok := interp.Prog.Static.ByID(statctx.FunctionID(fn.StaticID))
		if !ok {
			return sequence.Sequence{}, xerrors.Newf(xerrors.XPST0003, "internal/vm: unknown static function id %d", fn.StaticID).WithSpan(sp)
		}
		callArgs := rewriteStaticArgs(desc.Kind, fn.Captures, args)
		out, err := interp.Registry.CallStatic(desc.ID, dyn, interp, callArgs)
		if err != nil {
			return sequence.Sequence{}, xerrors.AttachIfMissing(err, sp)
		}
		return out, nil
	}
	return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "internal/vm: unhandled function kind").WithSpan(sp)
}

// rewriteStaticArgs splices a captured context-item capture (if any) into
// the argument list at the position its function-kind tag implies, per
// spec §4.2/§6's "context-first/last built-ins" argument-rewriting rules.
func rewriteStaticArgs(kind statctx.FunctionKind, captures, args []sequence.Sequence) []sequence.Sequence {
	switch kind {
	case statctx.FuncContextFirst:
		if len(captures) == 1 {
			return append(append([]sequence.Sequence{}, captures[0]), args...)
		}
	case statctx.FuncContextLast, statctx.FuncContextLastOptional:
		if len(captures) == 1 {
			return append(append([]sequence.Sequence{}, args...), captures[0])
		}
	}
	return args
}
