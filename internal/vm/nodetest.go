package vm

import (
	"strings"

	"github.com/oxhq/morfx/internal/parser"
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/xatomic"
	"github.com/oxhq/morfx/internal/xnode"
)

// axisTable translates the parser's independently-numbered Axis enum to
// xnode.Axis, the two being declared in separate packages precisely so
// internal/parser has no dependency on the document-store contract.
var axisTable = map[parser.Axis]xnode.Axis{
	parser.AxisChild:             xnode.AxisChild,
	parser.AxisDescendant:        xnode.AxisDescendant,
	parser.AxisAttribute:         xnode.AxisAttribute,
	parser.AxisSelf:              xnode.AxisSelf,
	parser.AxisDescendantOrSelf:  xnode.AxisDescendantOrSelf,
	parser.AxisFollowingSibling:  xnode.AxisFollowingSibling,
	parser.AxisFollowing:         xnode.AxisFollowing,
	parser.AxisParent:            xnode.AxisParent,
	parser.AxisAncestor:          xnode.AxisAncestor,
	parser.AxisPrecedingSibling:  xnode.AxisPrecedingSibling,
	parser.AxisPreceding:         xnode.AxisPreceding,
	parser.AxisAncestorOrSelf:    xnode.AxisAncestorOrSelf,
	parser.AxisNamespace:         xnode.AxisNamespace,
}

// matchNodeTest reports whether n satisfies test, per spec §4.1/§4.3's
// kind-test / name-test / wildcard-test sum type.
func matchNodeTest(n xnode.Node, test parser.NodeTest) bool {
	switch test.Which {
	case parser.TestKindTest:
		switch test.Kind {
		case parser.KindAny:
			return true
		case parser.KindText:
			return n.Kind() == xnode.KindText
		case parser.KindComment:
			return n.Kind() == xnode.KindComment
		case parser.KindProcessingInstruction:
			if n.Kind() != xnode.KindProcessingInstruction {
				return false
			}
			return test.PIName == "" || n.PITarget() == test.PIName
		case parser.KindDocument:
			return n.Kind() == xnode.KindDocument
		case parser.KindElement, parser.KindSchemaElement:
			if n.Kind() != xnode.KindElement {
				return false
			}
			return test.Local == "" || (n.Name().Local == test.Local && n.Name().URI == test.URI)
		case parser.KindAttribute, parser.KindSchemaAttribute:
			if n.Kind() != xnode.KindAttribute {
				return false
			}
			return test.Local == "" || (n.Name().Local == test.Local && n.Name().URI == test.URI)
		}
		return false
	case parser.TestName:
		if n.Kind() != xnode.KindElement && n.Kind() != xnode.KindAttribute {
			return false
		}
		return n.Name().Local == test.Local && n.Name().URI == test.URI
	case parser.TestWildcardAny:
		return n.Kind() == xnode.KindElement || n.Kind() == xnode.KindAttribute
	case parser.TestWildcardPrefix:
		if n.Kind() != xnode.KindElement && n.Kind() != xnode.KindAttribute {
			return false
		}
		return n.Name().URI == test.URI
	case parser.TestWildcardLocal:
		if n.Kind() != xnode.KindElement && n.Kind() != xnode.KindAttribute {
			return false
		}
		return n.Name().Local == test.Local
	}
	return false
}

// matchesItemType reports whether item satisfies the sequence-type item
// descriptor named by typeName, per the parser's canonical spellings
// ("item()", "node()", "element()", "xs:integer", "map(*)", "array(*)").
// Derived-integer subsumption (xs:integer accepting xs:int etc.) is the one
// simplification against full XSD type hierarchy support: atomic instance-
// of checks only widen within the integer family, everything else compares
// by exact Tag.
func matchesItemType(it sequence.Item, typeName string) bool {
	switch {
	case typeName == "item()":
		return true
	case typeName == "node()":
		return it.Kind == sequence.ItemNode
	case typeName == "text()":
		return it.Kind == sequence.ItemNode && it.Node.Kind() == xnode.KindText
	case typeName == "comment()":
		return it.Kind == sequence.ItemNode && it.Node.Kind() == xnode.KindComment
	case typeName == "processing-instruction()":
		return it.Kind == sequence.ItemNode && it.Node.Kind() == xnode.KindProcessingInstruction
	case typeName == "document-node()":
		return it.Kind == sequence.ItemNode && it.Node.Kind() == xnode.KindDocument
	case strings.HasPrefix(typeName, "element("):
		return it.Kind == sequence.ItemNode && it.Node.Kind() == xnode.KindElement
	case strings.HasPrefix(typeName, "attribute("):
		return it.Kind == sequence.ItemNode && it.Node.Kind() == xnode.KindAttribute
	case typeName == "map(*)":
		return it.Kind == sequence.ItemFunction && it.Function.Kind == sequence.FuncMap
	case typeName == "array(*)":
		return it.Kind == sequence.ItemFunction && it.Function.Kind == sequence.FuncArray
	case typeName == "function(*)":
		return it.Kind == sequence.ItemFunction
	case typeName == "xs:anyAtomicType":
		return it.Kind == sequence.ItemAtomic
	default:
		if it.Kind != sequence.ItemAtomic {
			return false
		}
		target, ok := xatomic.TagByName(typeName)
		if !ok {
			return false
		}
		if target == it.Atomic.Tag {
			return true
		}
		if xatomic.IsIntegerFamily(target) && xatomic.IsIntegerFamily(it.Atomic.Tag) {
			return target == xatomic.TagInteger
		}
		return false
	}
}
