// Package statctx implements the static context: registered namespace
// prefixes, declared variable names, declared collations, and the static
// function table (name+arity -> descriptor), per spec §2.5/§3.
package statctx

import (
	"fmt"

	"github.com/oxhq/morfx/internal/xname"
)

// FunctionKind tags the argument-rewriting rule a static function's
// signature implies, per spec §4.2/§6 ("context-first/last built-ins").
type FunctionKind int

const (
	FuncPlain FunctionKind = iota
	FuncContextFirst
	FuncContextLast
	FuncContextLastOptional
	FuncPosition
	FuncSize
	FuncCollationSuffixed
)

// ParamType is a minimal declared-type descriptor for a static function
// parameter/return — an item type name plus an occurrence indicator, used
// for argument coercion and ReturnConvert (spec §4.3/§6).
type Occurrence int

const (
	OccurrenceOne Occurrence = iota
	OccurrenceOptional
	OccurrenceZeroOrMore
	OccurrenceOneOrMore
)

type ParamType struct {
	ItemType   string // e.g. "xs:string", "node()", "item()"
	Occurrence Occurrence
}

// FunctionID is a plain index into the process-global static function
// table, per spec §9's arena-with-indices resolution; CallStatic(id, arity)
// bytecode operands carry this value directly.
type FunctionID int

// FunctionDescriptor is the registered shape of one static function: its
// qualified name, signature, and function-kind tag. The native
// implementation itself is not stored here (circular dependency on
// internal/vm's calling convention types); it is registered in
// internal/builtins's own parallel table keyed by the same FunctionID.
type FunctionDescriptor struct {
	ID         FunctionID
	Name       xname.Name
	Arity      int
	Params     []ParamType
	Return     ParamType
	Kind       FunctionKind
	ErrorCodes []string // declared error codes this function may raise
}

// FunctionTable is the process-lifetime, name+arity-keyed registry of
// static functions, shared by reference across StaticContexts the way the
// teacher's provider registry is process-global (internal/registry).
type FunctionTable struct {
	byKey []*FunctionDescriptor
	index map[funcKey]FunctionID
}

type funcKey struct {
	name  xname.Name
	arity int
}

func NewFunctionTable() *FunctionTable {
	return &FunctionTable{index: make(map[funcKey]FunctionID)}
}

// Register assigns the next FunctionID to d (ignoring any ID already set)
// and indexes it by (name, arity).
func (t *FunctionTable) Register(d FunctionDescriptor) (FunctionID, error) {
	key := funcKey{name: d.Name, arity: d.Arity}
	if _, exists := t.index[key]; exists {
		return 0, fmt.Errorf("static function %s already registered with arity %d", d.Name, d.Arity)
	}
	id := FunctionID(len(t.byKey))
	d.ID = id
	t.byKey = append(t.byKey, &d)
	t.index[key] = id
	return id, nil
}

func (t *FunctionTable) Lookup(name xname.Name, arity int) (*FunctionDescriptor, bool) {
	id, ok := t.index[funcKey{name: name, arity: arity}]
	if !ok {
		return nil, false
	}
	return t.byKey[id], true
}

func (t *FunctionTable) ByID(id FunctionID) (*FunctionDescriptor, bool) {
	if int(id) < 0 || int(id) >= len(t.byKey) {
		return nil, false
	}
	return t.byKey[id], true
}

// StaticContext is the per-compilation static environment: declared
// namespaces, declared variable names (for free-variable/closure analysis
// during IR lowering), a collation registry (by URI), and the shared
// static-function table.
type StaticContext struct {
	Namespaces  *xname.Namespaces
	Variables   map[string]bool // declared variable names, by local name
	Collations  map[string]bool // declared collation URIs
	Functions   *FunctionTable
	DefaultColl string
}

func NewStaticContext(functions *FunctionTable) *StaticContext {
	return &StaticContext{
		Namespaces:  xname.NewNamespaces(),
		Variables:   make(map[string]bool),
		Collations:  map[string]bool{"http://www.w3.org/2005/xpath-functions/collation/codepoint": true},
		Functions:   functions,
		DefaultColl: "http://www.w3.org/2005/xpath-functions/collation/codepoint",
	}
}

func (sc *StaticContext) DeclareVariable(name string) { sc.Variables[name] = true }

func (sc *StaticContext) DeclareCollation(uri string) { sc.Collations[uri] = true }

func (sc *StaticContext) IsCollationKnown(uri string) bool { return sc.Collations[uri] }
