// Package xslt implements the XSLT instruction surface of spec §4.8: a
// minimal but real instruction set (xsl:template, apply-templates,
// call-template, value-of, for-each, if/choose/when/otherwise, element/
// attribute/text, sequence) lowered through the same parser/IR/compiler/VM
// pipeline the bare XPath core already provides.
//
// This package does not parse stylesheet XML. Per SPEC_FULL §4.8, the
// surface-syntax front end (turning <xsl:template> markup into this AST) is
// an external collaborator outside CORE scope; callers (tests, cmd/xpath)
// build a StylesheetAST literal directly, the same way a hand-written XML
// parser's output would look once reduced to this shape.
package xslt

// StylesheetAST is the input to Compile: a flat list of template rules,
// mirroring a stylesheet's top-level xsl:template declarations.
type StylesheetAST struct {
	Templates []*Template
}

// Template is one xsl:template declaration. Match is an XPath pattern (may
// be empty for a name-only template invoked solely via xsl:call-template).
// Priority, when nil, falls back to a flat default priority of 0 for every
// rule (this module does not implement XSLT's default-priority table,
// which grades specificity by node-test shape; see DESIGN.md).
type Template struct {
	Match    string
	Name     string
	Priority *float64
	Mode     string // "" is the default (unnamed) mode; "#all" matches every mode
	Body     []Instruction
}

// Instruction is one xsl:* sequence-constructor instruction.
type Instruction interface{ isInstruction() }

// ApplyTemplates is xsl:apply-templates. Select defaults to "node()"
// (children of the context node) when empty.
type ApplyTemplates struct {
	Select string
	Mode   string
}

// CallTemplate is xsl:call-template. It runs the named template's body
// against the caller's current context item/position/last; this module
// does not implement xsl:param/xsl:with-param (not named in spec §4.8).
type CallTemplate struct {
	Name string
}

// ValueOf is xsl:value-of. Separator defaults to a single space when empty,
// matching XSLT's own default.
type ValueOf struct {
	Select    string
	Separator string
}

// ForEach is xsl:for-each: Body runs once per item Select selects, with
// that item bound as the context item.
type ForEach struct {
	Select string
	Body   []Instruction
}

// If is xsl:if: Body runs only when Test's effective boolean value is true.
type If struct {
	Test string
	Body []Instruction
}

// Choose is xsl:choose/xsl:when/xsl:otherwise.
type Choose struct {
	Whens     []When
	Otherwise []Instruction
}

// When is one xsl:when branch of a Choose.
type When struct {
	Test string
	Body []Instruction
}

// Element is xsl:element: Name is a literal (possibly prefixed) element
// name; no attribute-value-template support (Name is not computed).
// Attribute/text children in Body become attributes/children of the
// constructed element.
type Element struct {
	Name string
	Body []Instruction
}

// Attribute is xsl:attribute. If Select is non-empty its evaluated sequence
// supplies the value (atomized, space-joined); otherwise Body is run and
// its items' string values are concatenated.
type Attribute struct {
	Name   string
	Select string
	Body   []Instruction
}

// Text is xsl:text: a literal text child.
type Text struct {
	Value string
}

// Sequence is xsl:sequence: Select's result is copied straight into the
// output sequence, node or atomic alike.
type Sequence struct {
	Select string
}

func (ApplyTemplates) isInstruction() {}
func (CallTemplate) isInstruction()   {}
func (ValueOf) isInstruction()        {}
func (ForEach) isInstruction()        {}
func (If) isInstruction()             {}
func (Choose) isInstruction()         {}
func (Element) isInstruction()        {}
func (Attribute) isInstruction()      {}
func (Text) isInstruction()           {}
func (Sequence) isInstruction()       {}
