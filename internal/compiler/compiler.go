// Package compiler translates a lowered internal/ir.Module into a Program:
// one Chunk of typed instructions per function body, plus Program-wide
// constant/step/cast/type pools, per spec §4.3. Control constructs that
// repeat or branch (Iterate, If) compile their sub-blocks into their own
// nested Chunk rather than flat jump offsets — each such Chunk is executed
// by the VM with native Go control flow, which keeps every instruction's
// operands a plain pool index or nested chunk index instead of a
// hand-computed byte offset, the detail most likely to hide an unreviewable
// bug in a VM that is never run before shipping.
package compiler

import (
	"fmt"

	"github.com/oxhq/morfx/internal/ir"
	"github.com/oxhq/morfx/internal/parser"
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/span"
	"github.com/oxhq/morfx/internal/statctx"
	"github.com/oxhq/morfx/internal/xname"
)

// PoolLimit bounds every per-Program pool (constants, steps, casts, types)
// to fit a 16-bit operand, per spec §4.3. The number of chunks is not
// bounded.
const PoolLimit = 1 << 16

type OpCode int

const (
	OpConst OpCode = iota
	OpLoadVar
	OpStoreVar
	OpContextItem
	OpContextPosition
	OpContextLast
	OpBinary
	OpUnary
	OpBuildSequence
	OpStep
	OpIterate
	OpIf
	OpMakeStaticClosure
	OpMakeInlineClosure
	OpCall
	OpCast
	OpCastable
	OpInstanceOf
	OpTreat
	OpAtomize
	OpRoot
	OpEBV
	OpPredicateTruth
	OpMapConstructor
	OpArrayConstructor
)

// Instr is one instruction. Fields are meaningful per Op; kept as a single
// typed struct (not a packed byte encoding) so every operand is named and
// reviewable.
type Instr struct {
	Op   OpCode
	Span span.Span

	ConstIdx int
	Name     string

	BinOp ir.BinOp
	UnOp  ir.UnOp

	ChunkA int // If.Then / Iterate body chunk
	ChunkB int // If.Else chunk

	StepIdx int
	TypeIdx int
	CastIdx int

	NArgs int

	IterKind                 ir.IterKind
	ItemVar, PosVar, LastVar string
	Dedup                    bool

	StaticID   int
	FuncIdx    int
	Arity      int
	NCaptures  int
	ArrayCurly bool
}

type Chunk struct {
	Code []Instr
}

type StepInfo struct {
	Axis parser.Axis
	Test parser.NodeTest
}

type CastInfo struct {
	Target     string
	AllowEmpty bool
}

// FuncInfo is one compiled function: its parameter/closure-name shape and
// the index of its top-level Chunk.
type FuncInfo struct {
	Name         string
	Params       []string
	ClosureNames []string
	ChunkIdx     int
}

// Program is the unit internal/vm executes: the compiled function table plus
// the pools every Chunk's instructions index into.
type Program struct {
	Chunks    []*Chunk
	Functions []FuncInfo
	Consts    []sequence.Sequence
	Steps     []StepInfo
	Casts     []CastInfo
	Types     []ir.SequenceTypeDesc
	Static    *statctx.FunctionTable
}

type compilerState struct {
	prog   *Program
	consts []sequence.Sequence
	steps  []StepInfo
	casts  []CastInfo
	types  []ir.SequenceTypeDesc
}

func (cs *compilerState) addConst(v sequence.Sequence) (int, error) {
	if len(cs.consts) >= PoolLimit {
		return 0, fmt.Errorf("internal/compiler: constant pool exceeded %d entries", PoolLimit)
	}
	cs.consts = append(cs.consts, v)
	return len(cs.consts) - 1, nil
}

func (cs *compilerState) addStep(axis parser.Axis, test parser.NodeTest) (int, error) {
	if len(cs.steps) >= PoolLimit {
		return 0, fmt.Errorf("internal/compiler: step pool exceeded %d entries", PoolLimit)
	}
	cs.steps = append(cs.steps, StepInfo{Axis: axis, Test: test})
	return len(cs.steps) - 1, nil
}

func (cs *compilerState) addCast(target string, allowEmpty bool) (int, error) {
	if len(cs.casts) >= PoolLimit {
		return 0, fmt.Errorf("internal/compiler: cast pool exceeded %d entries", PoolLimit)
	}
	cs.casts = append(cs.casts, CastInfo{Target: target, AllowEmpty: allowEmpty})
	return len(cs.casts) - 1, nil
}

func (cs *compilerState) addType(t ir.SequenceTypeDesc) (int, error) {
	if len(cs.types) >= PoolLimit {
		return 0, fmt.Errorf("internal/compiler: type pool exceeded %d entries", PoolLimit)
	}
	cs.types = append(cs.types, t)
	return len(cs.types) - 1, nil
}

func (cs *compilerState) newChunk() int {
	cs.prog.Chunks = append(cs.prog.Chunks, &Chunk{})
	return len(cs.prog.Chunks) - 1
}

// Compile translates mod into a Program. sc resolves FunctionRef names back
// to a statctx.FunctionID; the returned Program keeps a reference to the
// same FunctionTable so the VM can ask a caller-supplied builtins registry
// for the native implementation by ID without internal/compiler or
// internal/vm importing internal/builtins (which would cycle back through
// the VM's calling-convention types).
func Compile(mod *ir.Module, sc *statctx.StaticContext) (*Program, error) {
	cs := &compilerState{prog: &Program{Static: sc.Functions}}
	cs.prog.Functions = make([]FuncInfo, len(mod.Functions))
	for i, fd := range mod.Functions {
		chunkIdx := cs.newChunk()
		if err := cs.compileInto(chunkIdx, fd.Body); err != nil {
			return nil, err
		}
		cs.prog.Functions[i] = FuncInfo{Name: fd.Name, Params: fd.Params, ClosureNames: fd.ClosureNames, ChunkIdx: chunkIdx}
	}
	cs.prog.Consts = cs.consts
	cs.prog.Steps = cs.steps
	cs.prog.Casts = cs.casts
	cs.prog.Types = cs.types
	return cs.prog, nil
}

func (cs *compilerState) emit(chunkIdx int, in Instr) {
	c := cs.prog.Chunks[chunkIdx]
	c.Code = append(c.Code, in)
}

// compileInto appends the instructions evaluating e to chunkIdx, leaving its
// resulting Sequence as the only net addition to the value stack.
func (cs *compilerState) compileInto(chunkIdx int, e ir.Expr) error {
	sp := ir.Span(e)
	switch n := e.(type) {
	case *ir.Const:
		idx, err := cs.addConst(n.Value)
		if err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpConst, Span: sp, ConstIdx: idx})
		return nil

	case *ir.VarRef:
		cs.emit(chunkIdx, Instr{Op: OpLoadVar, Span: sp, Name: n.Name})
		return nil

	case *ir.ContextItem:
		cs.emit(chunkIdx, Instr{Op: OpContextItem, Span: sp})
		return nil
	case *ir.ContextPosition:
		cs.emit(chunkIdx, Instr{Op: OpContextPosition, Span: sp})
		return nil
	case *ir.ContextLast:
		cs.emit(chunkIdx, Instr{Op: OpContextLast, Span: sp})
		return nil

	case *ir.Let:
		if err := cs.compileInto(chunkIdx, n.RHS); err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpStoreVar, Span: sp, Name: n.Name})
		return cs.compileInto(chunkIdx, n.Body)

	case *ir.If:
		if err := cs.compileInto(chunkIdx, n.Cond); err != nil {
			return err
		}
		thenIdx := cs.newChunk()
		if err := cs.compileInto(thenIdx, n.Then); err != nil {
			return err
		}
		elseIdx := cs.newChunk()
		if err := cs.compileInto(elseIdx, n.Else); err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpIf, Span: sp, ChunkA: thenIdx, ChunkB: elseIdx})
		return nil

	case *ir.Iterate:
		if err := cs.compileInto(chunkIdx, n.Source); err != nil {
			return err
		}
		bodyIdx := cs.newChunk()
		if err := cs.compileInto(bodyIdx, n.Body); err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{
			Op: OpIterate, Span: sp, ChunkA: bodyIdx, IterKind: n.Kind,
			ItemVar: n.ItemVar, PosVar: n.PosVar, LastVar: n.LastVar, Dedup: n.Dedup,
		})
		return nil

	case *ir.BuildSequence:
		for _, it := range n.Items {
			if err := cs.compileInto(chunkIdx, it); err != nil {
				return err
			}
		}
		cs.emit(chunkIdx, Instr{Op: OpBuildSequence, Span: sp, NArgs: len(n.Items)})
		return nil

	case *ir.Step:
		if err := cs.compileInto(chunkIdx, n.Input); err != nil {
			return err
		}
		idx, err := cs.addStep(n.Axis, n.Test)
		if err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpStep, Span: sp, StepIdx: idx})
		return nil

	case *ir.Binary:
		if err := cs.compileInto(chunkIdx, n.Left); err != nil {
			return err
		}
		if err := cs.compileInto(chunkIdx, n.Right); err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpBinary, Span: sp, BinOp: n.Op})
		return nil

	case *ir.Unary:
		if err := cs.compileInto(chunkIdx, n.Operand); err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpUnary, Span: sp, UnOp: n.Op})
		return nil

	case *ir.FunctionCall:
		if err := cs.compileInto(chunkIdx, n.Callee); err != nil {
			return err
		}
		for _, a := range n.Args {
			if err := cs.compileInto(chunkIdx, a); err != nil {
				return err
			}
		}
		cs.emit(chunkIdx, Instr{Op: OpCall, Span: sp, NArgs: len(n.Args)})
		return nil

	case *ir.FunctionRef:
		id, err := resolveStaticID(cs.prog.Static, n)
		if err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpMakeStaticClosure, Span: sp, StaticID: id, Arity: n.Arity})
		return nil

	case *ir.FunctionDef:
		for _, cap := range n.Captures {
			cs.emit(chunkIdx, Instr{Op: OpLoadVar, Span: sp, Name: cap})
		}
		cs.emit(chunkIdx, Instr{Op: OpMakeInlineClosure, Span: sp, FuncIdx: n.Index, NCaptures: len(n.Captures)})
		return nil

	case *ir.Cast:
		if err := cs.compileInto(chunkIdx, n.Operand); err != nil {
			return err
		}
		idx, err := cs.addCast(n.Target, n.AllowEmpty)
		if err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpCast, Span: sp, CastIdx: idx})
		return nil

	case *ir.Castable:
		if err := cs.compileInto(chunkIdx, n.Operand); err != nil {
			return err
		}
		idx, err := cs.addCast(n.Target, n.AllowEmpty)
		if err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpCastable, Span: sp, CastIdx: idx})
		return nil

	case *ir.InstanceOf:
		if err := cs.compileInto(chunkIdx, n.Operand); err != nil {
			return err
		}
		idx, err := cs.addType(n.Type)
		if err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpInstanceOf, Span: sp, TypeIdx: idx})
		return nil

	case *ir.Treat:
		if err := cs.compileInto(chunkIdx, n.Operand); err != nil {
			return err
		}
		idx, err := cs.addType(n.Type)
		if err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpTreat, Span: sp, TypeIdx: idx})
		return nil

	case *ir.Atomize:
		if err := cs.compileInto(chunkIdx, n.Operand); err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpAtomize, Span: sp})
		return nil

	case *ir.Root:
		if err := cs.compileInto(chunkIdx, n.Operand); err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpRoot, Span: sp})
		return nil

	case *ir.EBV:
		if err := cs.compileInto(chunkIdx, n.Operand); err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpEBV, Span: sp})
		return nil

	case *ir.PredicateTruth:
		if err := cs.compileInto(chunkIdx, n.Value); err != nil {
			return err
		}
		if err := cs.compileInto(chunkIdx, n.Position); err != nil {
			return err
		}
		cs.emit(chunkIdx, Instr{Op: OpPredicateTruth, Span: sp})
		return nil

	case *ir.MapConstructor:
		for i := range n.Keys {
			if err := cs.compileInto(chunkIdx, n.Keys[i]); err != nil {
				return err
			}
			if err := cs.compileInto(chunkIdx, n.Values[i]); err != nil {
				return err
			}
		}
		cs.emit(chunkIdx, Instr{Op: OpMapConstructor, Span: sp, NArgs: len(n.Keys)})
		return nil

	case *ir.ArrayConstructor:
		for _, m := range n.Members {
			if err := cs.compileInto(chunkIdx, m); err != nil {
				return err
			}
		}
		cs.emit(chunkIdx, Instr{Op: OpArrayConstructor, Span: sp, NArgs: len(n.Members), ArrayCurly: n.Curly})
		return nil
	}
	return fmt.Errorf("internal/compiler: unhandled IR node %T", e)
}

func resolveStaticID(t *statctx.FunctionTable, ref *ir.FunctionRef) (int, error) {
	if !ref.IsStatic {
		return 0, fmt.Errorf("internal/compiler: inline FunctionRef without IsStatic")
	}
	name := xname.Name{Local: ref.StaticLocal, URI: ref.StaticURI}
	desc, ok := t.Lookup(name, ref.Arity)
	if !ok {
		return 0, fmt.Errorf("internal/compiler: unresolved static function %s#%d", name, ref.Arity)
	}
	return int(desc.ID), nil
}
