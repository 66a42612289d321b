// Package ir implements the intermediate representation that sits between
// the parsed AST and the bytecode compiler, per spec §4.2. Lowering names
// only what needs a stable reference: for/let bindings, the implicit
// item/position/last context of steps and predicates, and closure
// parameters and captures become explicit named bindings. Operator
// operands, function arguments and sequence-constructor items stay nested
// expressions and are not bound to temporaries, so the result is not
// strict administrative normal form. Higher-order constructs (inline
// functions, for/let/quantified/filter/map-step) become closures and an
// explicit iteration node.
package ir

import (
	"github.com/oxhq/morfx/internal/parser"
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/span"
)

// Expr is any IR node. Every node carries the span of its originating AST
// node (or, for a synthetic node with no source representation, the
// enclosing expression's span), per spec §9.
type Expr interface {
	exprSpan() span.Span
}

type base struct{ Sp span.Span }

func (b base) exprSpan() span.Span { return b.Sp }

// Span returns the span an IR node carries.
func Span(e Expr) span.Span { return e.exprSpan() }

// Const is a literal constant, materialised into the owning function's
// constant pool at compile time.
type Const struct {
	base
	Value sequence.Sequence
}

// VarRef names a stack-relative local, a closure variable, or a for/let
// binding — the compiler resolves which at compile time by scope lookup.
type VarRef struct {
	base
	Name string
}

// ContextItem/ContextPosition/ContextLast are the bare "." / position() /
// last() references that resolve against the *dynamic* context because no
// enclosing Iterate supplies a named binding for them (spec §4.2's
// "context-first/last built-ins" injection collapses to this at the
// outermost scope).
type ContextItem struct{ base }
type ContextPosition struct{ base }
type ContextLast struct{ base }

// Let binds Name to the result of RHS (itself composed only of atoms: a
// Const, VarRef, or context leaf, or a one of the composite node kinds
// below whose own operands are atoms) for the remainder of Body.
type Let struct {
	base
	Name string
	RHS  Expr
	Body Expr
}

// If lowers XPath's if(Cond) then Then else Else and also the short-circuit
// "and"/"or" operators (Then/Else rewritten to preserve their semantics).
// Cond is an atom carrying the effective-boolean-value-reduced condition.
type If struct {
	base
	Cond, Then, Else Expr
}

// IterKind distinguishes the four iteration shapes every step/predicate/
// for/quantified construct lowers to (spec §4.2: "each step binds a fresh
// context triple"; "some/every ... short-circuits").
type IterKind int

const (
	IterMap IterKind = iota
	IterFilter
	IterSome
	IterEvery
)

// Iterate evaluates Source to a sequence, then for each item (bound to
// ItemVar, 1-based position bound to PosVar if non-empty, sequence length
// bound to LastVar if non-empty) evaluates Body. IterMap concatenates
// Body's results in order; IterFilter keeps items whose Body's effective
// boolean value is true; IterSome/IterEvery short-circuit on the first
// satisfying/non-satisfying item respectively and evaluate to a boolean.
// Dedup additionally collapses duplicate nodes and re-sorts by document
// order, implementing Step's "/"-chaining per spec §4.3's Deduplicate op.
type Iterate struct {
	base
	Kind                     IterKind
	Source                   Expr
	ItemVar, PosVar, LastVar string
	Body                     Expr
	Dedup                    bool
}

// BuildSequence implements sequence construction (the comma operator and
// the build protocol spec §4.2/§4.3 describe): each Items entry is an atom
// whose value is flattened (empty -> nothing, one -> one item, many ->
// extend) into the result in order.
type BuildSequence struct {
	base
	Items []Expr
}

// Step applies Axis/Test to the single context-item atom Input, producing
// a node sequence (spec §4.3's Step(step-index) opcode).
type Step struct {
	base
	Axis  parser.Axis
	Test  parser.NodeTest
	Input Expr
}

// BinOp enumerates the dyadic operators the compiler emits as a single
// instruction each (arithmetic, value/general comparison, node ordering,
// sequence set operators, range, concat), per spec §4.3.
type BinOp int

const (
	BAdd BinOp = iota
	BSub
	BMul
	BDiv
	BIDiv
	BMod
	BEq
	BNe
	BLt
	BLe
	BGt
	BGe
	BGeneralEq
	BGeneralNe
	BGeneralLt
	BGeneralLe
	BGeneralGt
	BGeneralGe
	BIs
	BPrecedes
	BFollows
	BUnion
	BIntersect
	BExcept
	BRange
)

type Binary struct {
	base
	Op          BinOp
	Left, Right Expr
}

type UnOp int

const (
	UNeg UnOp = iota
	UPos
)

type Unary struct {
	base
	Op      UnOp
	Operand Expr
}

// FunctionCall invokes Callee (an atom: a VarRef bound to a function value,
// or a FunctionRef literal) with Args (atoms), per spec §4.3/§4.4's unified
// Call/CallStatic/CallInline handling.
type FunctionCall struct {
	base
	Callee Expr
	Args   []Expr
}

// FunctionRef is a literal reference to a named function: either a
// registered static function (by qualified name + arity, resolved to a
// statctx.FunctionID at compile time) or one of this Module's own inline
// functions (by index). Evaluating a FunctionRef yields a callable Function
// value; if the referenced static function declares a context-kind, the VM
// captures the current context triple at this point (spec §4.4 Closures).
type FunctionRef struct {
	base
	IsStatic    bool
	StaticURI   string
	StaticLocal string
	Arity       int
	InlineIndex int
}

// FunctionDef constructs a closure value over one of Module.Functions,
// capturing the named free variables from the current environment.
type FunctionDef struct {
	base
	Index    int
	Captures []string
}

// FunctionDefinition is one function body: the Module's entry point (index
// 0, zero parameters) or an inline function introduced by `function(...){}`.
// ClosureNames lists the free variables the lowering pass found referenced
// in Body that are not Params, in the order they must be captured/loaded.
type FunctionDefinition struct {
	Name         string
	Params       []string
	ClosureNames []string
	Body         Expr
	Span         span.Span
}

// Module is the lowered-program unit the compiler consumes: a flat list of
// function bodies with the entry point at index 0, mirroring the
// Program/InlineFunction relationship described in spec §3.
type Module struct {
	Functions []*FunctionDefinition
}

// Cast/Castable/InstanceOf/Treat materialise the type operators, carrying
// the target XSD type name (Cast/Castable) or the full sequence-type
// descriptor (InstanceOf/Treat), per spec §4.2.
type SequenceTypeDesc struct {
	IsEmptySequence bool
	ItemTypeName    string
	Occurrence      parser.Occurrence
}

type Cast struct {
	base
	Operand    Expr
	Target     string
	AllowEmpty bool
}

type Castable struct {
	base
	Operand    Expr
	Target     string
	AllowEmpty bool
}

type InstanceOf struct {
	base
	Operand Expr
	Type    SequenceTypeDesc
}

type Treat struct {
	base
	Operand Expr
	Type    SequenceTypeDesc
}

// Atomize wraps Operand with the atomization operator (spec §4.3 Atomize).
type Atomize struct {
	base
	Operand Expr
}

type MapConstructor struct {
	base
	Keys, Values []Expr
}

// ArrayConstructor builds an array literal. For a square constructor
// ([e1, e2, ...]) each Members entry becomes one array member unchanged
// (its full evaluated sequence). For a curly constructor (array{ e }),
// Members holds the single enclosed expression and Curly is true: the
// evaluated sequence's items are each unwrapped into their own member.
type ArrayConstructor struct {
	base
	Members []Expr
	Curly   bool
}

// Root resolves the document root containing Operand's context node
// (spec §4.2's absolute-path lowering: "/" selects the root of the
// context item's owning document).
type Root struct {
	base
	Operand Expr
}

// EBV computes the effective boolean value of Operand, used by "and"/"or"
// lowering (spec §4.2) where XPath applies EBV to each operand directly,
// as distinct from PredicateTruth's numeric-position special case.
type EBV struct {
	base
	Operand Expr
}

// PredicateTruth implements a `[...]` predicate's truth rule: if Value
// evaluates to a single numeric atomic item, the predicate keeps the
// candidate iff that number equals Position (1-based); otherwise the
// predicate's effective boolean value is used, per XPath's predicate
// semantics.
type PredicateTruth struct {
	base
	Value    Expr
	Position Expr
}

// IsAtom reports whether e is already a valid ANF operand (a Const, VarRef,
// FunctionRef, or context leaf) that needs no further Let-binding.
func IsAtom(e Expr) bool {
	switch e.(type) {
	case *Const, *VarRef, *ContextItem, *ContextPosition, *ContextLast, *FunctionRef:
		return true
	}
	return false
}
