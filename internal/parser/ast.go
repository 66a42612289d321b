package parser

import "github.com/oxhq/morfx/internal/span"

// ExprKind tags every AST node variant. The AST deliberately avoids
// virtual dispatch: lowering (internal/ir) switches on Kind rather than
// invoking a method per node type.
type ExprKind int

const (
	ExprIntegerLit ExprKind = iota
	ExprDecimalLit
	ExprDoubleLit
	ExprStringLit
	ExprVarRef
	ExprContextItem // .
	ExprBinary
	ExprUnary
	ExprPath
	ExprStep
	ExprFilter // postfix predicate(s) on a primary expression
	ExprSequence
	ExprFunctionCall
	ExprNamedFunctionRef // name#arity
	ExprInlineFunction
	ExprArrowCall // E => f(args)
	ExprIf
	ExprFor
	ExprLet
	ExprQuantified
	ExprCast
	ExprCastable
	ExprInstanceOf
	ExprTreat
	ExprMapConstructor
	ExprArrayConstructorSquare
	ExprArrayConstructorCurly
)

// BinaryOp enumerates XPath's binary operators in one flat tag rather than
// a node-per-operator hierarchy.
type BinaryOp int

const (
	OpOr BinaryOp = iota
	OpAnd
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpGeneralEq
	OpGeneralNe
	OpGeneralLt
	OpGeneralLe
	OpGeneralGt
	OpGeneralGe
	OpIs
	OpPrecedes // <<
	OpFollows  // >>
	OpTo
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpIDiv
	OpMod
	OpUnion
	OpIntersect
	OpExcept
	OpConcat // comma is modeled as ExprSequence, not a BinaryOp; kept for completeness
)

type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpPos
)

// Axis mirrors xnode.Axis but is parsed independently so the parser package
// has no dependency on the document-store contract.
type Axis int

const (
	AxisChild Axis = iota
	AxisDescendant
	AxisAttribute
	AxisSelf
	AxisDescendantOrSelf
	AxisFollowingSibling
	AxisFollowing
	AxisParent
	AxisAncestor
	AxisPrecedingSibling
	AxisPreceding
	AxisAncestorOrSelf
	AxisNamespace
)

// KindTestKind is the sum type over XPath's kind-test grammar
// (node()/text()/comment()/processing-instruction()/element()/...).
type KindTestKind int

const (
	KindAny KindTestKind = iota
	KindText
	KindComment
	KindProcessingInstruction
	KindDocument
	KindElement
	KindAttribute
	KindSchemaElement
	KindSchemaAttribute
)

// NodeTest is either a kind test, a QName-equality test, or a wildcard
// test (*, prefix:*, *:local, Q{uri}*).
type NodeTestKind int

const (
	TestKindTest NodeTestKind = iota
	TestName
	TestWildcardAny
	TestWildcardPrefix // prefix:*
	TestWildcardLocal  // *:local
)

type NodeTest struct {
	Which  NodeTestKind
	Kind   KindTestKind
	PIName string // for processing-instruction("target"), optional
	URI    string
	Local  string
	Prefix string
}

// Occurrence mirrors statctx.Occurrence but kept local to avoid an import
// cycle between parser and statctx (statctx depends on nothing parser-ish).
type Occurrence int

const (
	OccOne Occurrence = iota
	OccOptional
	OccZeroOrMore
	OccOneOrMore
)

// SequenceType is the sum type `Empty | Item(ItemType, Occurrence)` used
// by as/instance of/treat as/cast as/castable as.
type SequenceType struct {
	IsEmptySequence bool
	ItemTypeName    string // "xs:integer", "node()", "item()", "element(foo)", ...
	Occurrence      Occurrence
}

// Node is one AST node. Every field is populated according to Kind; this
// mirrors the tagged-struct-with-unused-fields style used throughout the
// value model instead of an interface-per-kind hierarchy.
type Node struct {
	Kind ExprKind
	Span span.Span

	// literals
	IntegerText string
	DecimalText string
	DoubleText  string
	StringText  string

	// ExprVarRef
	VarName string

	// ExprBinary
	BinOp       BinaryOp
	Left, Right *Node

	// ExprUnary
	UnOp     UnaryOp
	Operand  *Node

	// ExprPath: Steps chained by / or //; each entry after the first
	// records whether it was reached via // (descendant-or-self::node())
	Steps      []*Node
	StepSlashSlash []bool // len(Steps)-1 entries; true if preceded by "//"
	Absolute   bool       // path begins at the document root ("/" or "//" prefix)

	// ExprStep
	Axis     Axis
	Test     NodeTest
	Predicates []*Node

	// ExprFilter: Base with postfix predicates/lookups
	Base       *Node
	// Predicates reused

	// ExprSequence
	Items []*Node

	// ExprFunctionCall / ExprNamedFunctionRef
	FuncPrefix string
	FuncLocal  string
	Args       []*Node
	Arity      int

	// ExprInlineFunction
	Params     []Param
	ReturnType *SequenceType
	Body       *Node

	// ExprArrowCall
	Target *Node
	Callee *Node // function ref or inline function

	// ExprIf
	Cond, Then, Else *Node

	// ExprFor / ExprLet / ExprQuantified
	Clauses  []Clause
	Satisfies *Node // ExprQuantified
	ReturnExpr *Node // ExprFor

	// ExprCast/Castable/InstanceOf/Treat
	TargetType *SequenceType
	AllowEmpty bool

	// ExprMapConstructor
	MapKeys   []*Node
	MapValues []*Node

	// ExprArrayConstructor*
	ArrayMembers []*Node
}

type Param struct {
	Name string
	Type *SequenceType
}

// Clause is one for/let binding: `for $x in E` or `let $x := E`.
type Clause struct {
	IsFor bool
	Var   string
	PosVar string // "for $x at $p in E"; empty if absent
	Expr  *Node
}
