// Package xnode defines the node abstraction and the DocumentStore
// contract: the external collaborator (per spec §1/§6) that owns node
// identities, tree navigation, and string-value computation. The core
// compiler/VM packages depend only on these interfaces, never on a
// concrete tree implementation; internal/docstore is one such
// implementation, kept in this module to exercise the interface in tests.
package xnode

import "github.com/oxhq/morfx/internal/xname"

// Kind is the node kind, matching the XPath/XDM kind-test grammar.
type Kind int

const (
	KindDocument Kind = iota
	KindElement
	KindAttribute
	KindText
	KindComment
	KindProcessingInstruction
	KindNamespace
)

// Axis identifies one of the XPath navigation axes.
type Axis int

const (
	AxisChild Axis = iota
	AxisDescendant
	AxisParent
	AxisAncestor
	AxisFollowing
	AxisPreceding
	AxisFollowingSibling
	AxisPrecedingSibling
	AxisSelf
	AxisAttribute
	AxisDescendantOrSelf
	AxisAncestorOrSelf
	AxisNamespace
)

// Order is a total-order key within one document: (document id, pre-order
// index), per spec's DocumentOrder entity.
type Order struct {
	DocumentID int
	PreIndex   int
}

// Less implements the total order within a single document, and an
// arbitrary-but-stable order across documents by DocumentID, matching the
// "document-id totally orders documents" invariant in spec §3.
func (o Order) Less(other Order) bool {
	if o.DocumentID != other.DocumentID {
		return o.DocumentID < other.DocumentID
	}
	return o.PreIndex < other.PreIndex
}

// Node is an opaque handle into a DocumentStore. The VM and pattern engine
// never hold a concrete tree type, only this interface, so any document
// model that implements it can be substituted.
type Node interface {
	Kind() Kind
	Name() xname.Name // zero Name for text/comment/PI/document
	StringValue() string
	TypedValue() string // untyped-atomic string value before atomization wraps it
	Order() Order
	Axis(axis Axis) ([]Node, error)
	Equal(other Node) bool

	// PITarget/PIData are meaningful only for KindProcessingInstruction.
	PITarget() string
	PIData() string
}

// MutableNode is the subset of Node a result-tree constructor (XSLT's
// xsl:element/xsl:attribute/xsl:text, per spec §4.3 "XML constructors")
// needs in order to build output nodes.
type MutableNode interface {
	Node
	AppendChild(child Node) error
	SetAttribute(name xname.Name, value string) error
}

// DocumentStore is the external collaborator named in spec §1/§6: it owns
// node identities and mutation, and is the only mutable shared resource
// per spec §5. Each DynamicContext holds a shared handle to one store.
type DocumentStore interface {
	// ParseXML parses text into a newly rooted document, registering it
	// with the store and assigning it document-order annotations. Used by
	// the fn:parse-xml and fn:doc built-ins.
	ParseXML(text string) (Node, error)

	// Root returns the document node for a previously registered document
	// by its source URI (used by fn:doc), or (nil, false) if absent.
	Root(uri string) (Node, bool)

	// NewElement/NewText/NewAttribute/NewComment/NewPI construct detached
	// result-tree nodes for XSLT instruction execution; they become part of
	// a document only once appended under a root via AppendChild.
	NewElement(name xname.Name) (MutableNode, error)
	NewText(data string) (Node, error)
	NewAttribute(name xname.Name, value string) (Node, error)
	NewComment(data string) (Node, error)
	NewProcessingInstruction(target, data string) (Node, error)
}
