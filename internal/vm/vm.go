// Package vm implements the stack-based interpreter executing a
// compiler.Program: a value stack per Chunk, a flat name-keyed variable
// environment per call frame, and native Go control flow for the nested
// If/Iterate chunks the compiler emits instead of jump offsets, per spec
// §4.4. It never imports internal/builtins; native static-function
// dispatch is delegated to a caller-supplied Registry so the dependency
// only ever points one way (builtins -> vm), avoiding an import cycle.
package vm

import (
	"sort"

	"github.com/oxhq/morfx/internal/compiler"
	"github.com/oxhq/morfx/internal/ir"
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/statctx"
	"github.com/oxhq/morfx/internal/xatomic"
	"github.com/oxhq/morfx/internal/xerrors"
	"github.com/oxhq/morfx/internal/xnode"
)

// MaxCallDepth bounds recursive inline-function invocation, per spec §4.4's
// "frame array (cap 64)"; exceeding it raises xerrors.StackOverflow rather
// than overflowing the Go call stack.
const MaxCallDepth = 64

// Registry resolves a static function's FunctionID to its native
// implementation. internal/builtins implements this; internal/vm only
// depends on the interface, never on the concrete package.
type Registry interface {
	CallStatic(id statctx.FunctionID, dyn *DynamicContext, interp *Interpreter, args []sequence.Sequence) (sequence.Sequence, error)
}

// Interpreter executes one compiler.Program. It is immutable after
// construction and safe to reuse across concurrent evaluations, each with
// its own DynamicContext, per spec §5.
type Interpreter struct {
	Prog     *compiler.Program
	Registry Registry
}

func New(prog *compiler.Program, registry Registry) *Interpreter {
	return &Interpreter{Prog: prog, Registry: registry}
}

// frame is one function activation: a flat, name-keyed variable
// environment. Lowering only ever references a function body's own
// parameters and declared closure names inside that body (internal/ir's
// frame/capture analysis guarantees this), so no parent-scope chain is
// needed — a closure's free variables are captured by value into
// sequence.Function.Captures at the moment the closure is built, not
// looked up live through an enclosing frame.
type frame struct {
	vars map[string]sequence.Sequence
}

func newFrame() *frame { return &frame{vars: make(map[string]sequence.Sequence)} }

// Run evaluates the program's entry point (Functions[0], "$main") against
// dyn.
func Run(prog *compiler.Program, registry Registry, dyn *DynamicContext) (sequence.Sequence, error) {
	interp := New(prog, registry)
	if len(prog.Functions) == 0 {
		return sequence.Empty(), nil
	}
	main := prog.Functions[0]
	return interp.exec(main.ChunkIdx, newFrame(), dyn, 0)
}

// exec runs chunkIdx to completion against fr/dyn, returning the single net
// value its instructions leave on the stack. depth counts function-call
// activations only — If/Iterate bodies execute in the same depth as their
// enclosing chunk, since they are not separate calls.
func (interp *Interpreter) exec(chunkIdx int, fr *frame, dyn *DynamicContext, depth int) (sequence.Sequence, error) {
	chunk := interp.Prog.Chunks[chunkIdx]
	stack := make([]sequence.Sequence, 0, 4)
	push := func(s sequence.Sequence) { stack = append(stack, s) }
	pop := func() sequence.Sequence {
		n := len(stack) - 1
		v := stack[n]
		stack = stack[:n]
		return v
	}

	for _, in := range chunk.Code {
		switch in.Op {
		case compiler.OpConst:
			push(interp.Prog.Consts[in.ConstIdx])

		case compiler.OpLoadVar:
			v, ok := fr.vars[in.Name]
			if !ok {
				return sequence.Sequence{}, xerrors.Newf(xerrors.XPDY0002, "unbound variable $%s", in.Name).WithSpan(in.Span)
			}
			push(v)

		case compiler.OpStoreVar:
			fr.vars[in.Name] = pop()

		case compiler.OpContextItem:
			if !dyn.HasContextItem {
				return sequence.Sequence{}, xerrors.New(xerrors.XPDY0002, "context item is absent").WithSpan(in.Span)
			}
			push(sequence.One(dyn.ContextItem))

		case compiler.OpContextPosition:
			push(sequence.One(sequence.NewAtomicItem(xatomic.NewIntegerInt64(int64(dyn.ContextPosition)))))

		case compiler.OpContextLast:
			push(sequence.One(sequence.NewAtomicItem(xatomic.NewIntegerInt64(int64(dyn.ContextLast)))))

		case compiler.OpBinary:
			right := pop()
			left := pop()
			result, err := evalBinary(in.BinOp, left, right)
			if err != nil {
				return sequence.Sequence{}, xerrors.AttachIfMissing(err, in.Span)
			}
			push(result)

		case compiler.OpUnary:
			operand := pop()
			result, err := evalUnary(in.UnOp, operand)
			if err != nil {
				return sequence.Sequence{}, xerrors.AttachIfMissing(err, in.Span)
			}
			push(result)

		case compiler.OpBuildSequence:
			items := popN(&stack, in.NArgs)
			out := sequence.Empty()
			for _, it := range items {
				out = out.Concat(it)
			}
			push(out)

		case compiler.OpStep:
			input := pop()
			step := interp.Prog.Steps[in.StepIdx]
			result, err := evalStep(input, step)
			if err != nil {
				return sequence.Sequence{}, xerrors.AttachIfMissing(err, in.Span)
			}
			push(result)

		case compiler.OpIterate:
			source := pop()
			result, err := interp.evalIterate(in, source, fr, dyn, depth)
			if err != nil {
				return sequence.Sequence{}, xerrors.AttachIfMissing(err, in.Span)
			}
			push(result)

		case compiler.OpIf:
			cond := pop()
			ebv, err := cond.EffectiveBooleanValue()
			if err != nil {
				return sequence.Sequence{}, xerrors.AttachIfMissing(err, in.Span)
			}
			branch := in.ChunkB
			if ebv {
				branch = in.ChunkA
			}
			result, err := interp.exec(branch, fr, dyn, depth)
			if err != nil {
				return sequence.Sequence{}, err
			}
			push(result)

		case compiler.OpMakeStaticClosure:
			fn, err := interp.makeStaticClosure(in, dyn)
			if err != nil {
				return sequence.Sequence{}, xerrors.AttachIfMissing(err, in.Span)
			}
			push(sequence.One(sequence.NewFunctionItem(fn)))

		case compiler.OpMakeInlineClosure:
			captures := popN(&stack, in.NCaptures)
			fn := sequence.NewInlineFunction(in.FuncIdx, len(interp.Prog.Functions[in.FuncIdx].Params), captures)
			push(sequence.One(sequence.NewFunctionItem(fn)))

		case compiler.OpCall:
			args := popN(&stack, in.NArgs)
			calleeSeq := pop()
			result, err := interp.call(calleeSeq, args, dyn, depth, in.Span)
			if err != nil {
				return sequence.Sequence{}, xerrors.AttachIfMissing(err, in.Span)
			}
			push(result)

		case compiler.OpCast:
			operand := pop()
			cast := interp.Prog.Casts[in.CastIdx]
			result, err := evalCast(operand, cast)
			if err != nil {
				return sequence.Sequence{}, xerrors.AttachIfMissing(err, in.Span)
			}
			push(result)

		case compiler.OpCastable:
			operand := pop()
			cast := interp.Prog.Casts[in.CastIdx]
			_, err := evalCast(operand, cast)
			push(sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(err == nil))))

		case compiler.OpInstanceOf:
			operand := pop()
			typ := interp.Prog.Types[in.TypeIdx]
			push(sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(matchesSequenceType(operand, typ)))))

		case compiler.OpTreat:
			operand := pop()
			typ := interp.Prog.Types[in.TypeIdx]
			if !matchesSequenceType(operand, typ) {
				return sequence.Sequence{}, xerrors.New(xerrors.XPDY0130, "treat as: value does not match declared sequence type").WithSpan(in.Span)
			}
			push(operand)

		case compiler.OpAtomize:
			operand := pop()
			result, err := sequence.Atomize(operand)
			if err != nil {
				return sequence.Sequence{}, xerrors.AttachIfMissing(err, in.Span)
			}
			push(result)

		case compiler.OpRoot:
			operand := pop()
			result, err := evalRoot(operand)
			if err != nil {
				return sequence.Sequence{}, xerrors.AttachIfMissing(err, in.Span)
			}
			push(result)

		case compiler.OpEBV:
			operand := pop()
			ebv, err := operand.EffectiveBooleanValue()
			if err != nil {
				return sequence.Sequence{}, xerrors.AttachIfMissing(err, in.Span)
			}
			push(sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(ebv))))

		case compiler.OpPredicateTruth:
			position := pop()
			value := pop()
			result, err := evalPredicateTruth(value, position)
			if err != nil {
				return sequence.Sequence{}, xerrors.AttachIfMissing(err, in.Span)
			}
			push(result)

		case compiler.OpMapConstructor:
			result, err := evalMapConstructor(&stack, in.NArgs)
			if err != nil {
				return sequence.Sequence{}, xerrors.AttachIfMissing(err, in.Span)
			}
			push(result)

		case compiler.OpArrayConstructor:
			members := popN(&stack, in.NArgs)
			result, err := evalArrayConstructor(members, in.ArrayCurly)
			if err != nil {
				return sequence.Sequence{}, xerrors.AttachIfMissing(err, in.Span)
			}
			push(result)

		default:
			return sequence.Sequence{}, xerrors.Newf(xerrors.XPTY0004, "internal/vm: unhandled opcode %v", in.Op).WithSpan(in.Span)
		}
	}

	if len(stack) != 1 {
		return sequence.Sequence{}, xerrors.Newf(xerrors.XPTY0004, "internal/vm: chunk left %d values on the stack, expected 1", len(stack))
	}
	return stack[0], nil
}

// popN pops the last n entries off *stack, in original push order.
func popN(stack *[]sequence.Sequence, n int) []sequence.Sequence {
	s := *stack
	start := len(s) - n
	out := make([]sequence.Sequence, n)
	copy(out, s[start:])
	*stack = s[:start]
	return out
}

// evalIterate drives the four Iterate shapes over Source's items, binding
// ItemVar/PosVar/LastVar into fr for the duration of each Body evaluation.
func (interp *Interpreter) evalIterate(in compiler.Instr, source sequence.Sequence, fr *frame, dyn *DynamicContext, depth int) (sequence.Sequence, error) {
	n := source.Len()
	switch in.IterKind {
	case ir.IterMap:
		out := sequence.Empty()
		for i := 0; i < n; i++ {
			item, _ := source.At(i)
			bindIterVars(fr, in, item, i+1, n)
			result, err := interp.exec(in.ChunkA, fr, dyn, depth)
			if err != nil {
				return sequence.Sequence{}, err
			}
			out = out.Concat(result)
		}
		if in.Dedup {
			return dedupSortNodes(out)
		}
		return out, nil

	case ir.IterFilter:
		var kept []sequence.Item
		for i := 0; i < n; i++ {
			item, _ := source.At(i)
			bindIterVars(fr, in, item, i+1, n)
			result, err := interp.exec(in.ChunkA, fr, dyn, depth)
			if err != nil {
				return sequence.Sequence{}, err
			}
			ok, err := result.EffectiveBooleanValue()
			if err != nil {
				return sequence.Sequence{}, err
			}
			if ok {
				kept = append(kept, item)
			}
		}
		out := sequence.Many(kept)
		if in.Dedup {
			return dedupSortNodes(out)
		}
		return out, nil

	case ir.IterSome:
		for i := 0; i < n; i++ {
			item, _ := source.At(i)
			bindIterVars(fr, in, item, i+1, n)
			result, err := interp.exec(in.ChunkA, fr, dyn, depth)
			if err != nil {
				return sequence.Sequence{}, err
			}
			ok, err := result.EffectiveBooleanValue()
			if err != nil {
				return sequence.Sequence{}, err
			}
			if ok {
				return sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(true))), nil
			}
		}
		return sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(false))), nil

	case ir.IterEvery:
		for i := 0; i < n; i++ {
			item, _ := source.At(i)
			bindIterVars(fr, in, item, i+1, n)
			result, err := interp.exec(in.ChunkA, fr, dyn, depth)
			if err != nil {
				return sequence.Sequence{}, err
			}
			ok, err := result.EffectiveBooleanValue()
			if err != nil {
				return sequence.Sequence{}, err
			}
			if !ok {
				return sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(false))), nil
			}
		}
		return sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(true))), nil
	}
	return sequence.Sequence{}, xerrors.Newf(xerrors.XPTY0004, "internal/vm: unhandled iterate kind %v", in.IterKind)
}

func bindIterVars(fr *frame, in compiler.Instr, item sequence.Item, pos, last int) {
	if in.ItemVar != "" {
		fr.vars[in.ItemVar] = sequence.One(item)
	}
	if in.PosVar != "" {
		fr.vars[in.PosVar] = sequence.One(sequence.NewAtomicItem(xatomic.NewIntegerInt64(int64(pos))))
	}
	if in.LastVar != "" {
		fr.vars[in.LastVar] = sequence.One(sequence.NewAtomicItem(xatomic.NewIntegerInt64(int64(last))))
	}
}

// dedupSortNodes implements Step's "/"-chaining Deduplicate operator:
// collapse duplicate nodes (by document-order identity) and re-sort by
// document order. Non-node items pass through unchanged and untouched by
// sorting, since Dedup is only ever set on a step-derived Iterate.
func dedupSortNodes(s sequence.Sequence) (sequence.Sequence, error) {
	items := s.Items()
	seen := make(map[xnode.Order]bool, len(items))
	out := make([]sequence.Item, 0, len(items))
	for _, it := range items {
		if it.Kind != sequence.ItemNode {
			out = append(out, it)
			continue
		}
		ord := it.Node.Order()
		if seen[ord] {
			continue
		}
		seen[ord] = true
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != sequence.ItemNode || out[j].Kind != sequence.ItemNode {
			return false
		}
		return out[i].Node.Order().Less(out[j].Node.Order())
	})
	return sequence.Many(out), nil
}
