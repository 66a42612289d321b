// Package docstore is a reference, in-memory implementation of
// xnode.DocumentStore, grounded on moznion-helium's SAX-event tree builder
// (tree.go) and arturoeanton-go-xml's parent/children node struct, adapted
// to this module's Node contract and pre-order document-order indexing. A
// real embedder is expected to swap this for its own XML tree, exactly as
// the teacher's provider.LanguageProvider is swapped per source language.
package docstore

import (
	"encoding/xml"
	"fmt"
	"strings"
	"sync"

	"github.com/oxhq/morfx/internal/xname"
	"github.com/oxhq/morfx/internal/xnode"
)

// node is the concrete in-memory tree node. Kept unexported: all external
// access goes through the xnode.Node / xnode.MutableNode interfaces.
type node struct {
	kind       xnode.Kind
	name       xname.Name
	text       string // text/comment/PI data, or attribute value
	piTarget   string
	parent     *node
	children   []*node
	attrs      []*node
	docID      int
	preIndex   int
	store      *Store
}

func (n *node) Kind() xnode.Kind   { return n.kind }
func (n *node) Name() xname.Name   { return n.name }
func (n *node) Order() xnode.Order { return xnode.Order{DocumentID: n.docID, PreIndex: n.preIndex} }
func (n *node) PITarget() string   { return n.piTarget }
func (n *node) PIData() string     { return n.text }

func (n *node) Equal(other xnode.Node) bool {
	o, ok := other.(*node)
	return ok && o == n
}

// StringValue implements the XDM string-value rule: elements/document
// concatenate all descendant text; everything else is its own text payload.
func (n *node) StringValue() string {
	switch n.kind {
	case xnode.KindElement, xnode.KindDocument:
		var sb strings.Builder
		n.collectText(&sb)
		return sb.String()
	default:
		return n.text
	}
}

func (n *node) collectText(sb *strings.Builder) {
	for _, c := range n.children {
		if c.kind == xnode.KindText {
			sb.WriteString(c.text)
		} else if c.kind == xnode.KindElement {
			c.collectText(sb)
		}
	}
}

// TypedValue is the untyped-atomic value handed to the atomizer; this
// reference store performs no schema validation so it is always the
// string-value, per spec §4.5/§8 property 8.
func (n *node) TypedValue() string { return n.StringValue() }

func (n *node) Axis(axis xnode.Axis) ([]xnode.Node, error) {
	switch axis {
	case xnode.AxisChild:
		return wrapAll(n.children), nil
	case xnode.AxisAttribute:
		return wrapAll(n.attrs), nil
	case xnode.AxisSelf:
		return []xnode.Node{n}, nil
	case xnode.AxisParent:
		if n.parent == nil {
			return nil, nil
		}
		return []xnode.Node{n.parent}, nil
	case xnode.AxisDescendant:
		var out []*node
		n.collectDescendants(&out)
		return wrapAll(out), nil
	case xnode.AxisDescendantOrSelf:
		out := []*node{n}
		n.collectDescendants(&out)
		return wrapAll(out), nil
	case xnode.AxisAncestor:
		var out []*node
		for p := n.parent; p != nil; p = p.parent {
			out = append(out, p)
		}
		return wrapAll(out), nil
	case xnode.AxisAncestorOrSelf:
		out := []*node{n}
		for p := n.parent; p != nil; p = p.parent {
			out = append(out, p)
		}
		return wrapAll(out), nil
	case xnode.AxisFollowingSibling:
		return wrapAll(siblings(n, true)), nil
	case xnode.AxisPrecedingSibling:
		return wrapAll(siblings(n, false)), nil
	case xnode.AxisFollowing:
		return wrapAll(n.store.nodesInOrder(n, true)), nil
	case xnode.AxisPreceding:
		return wrapAll(n.store.nodesInOrder(n, false)), nil
	}
	return nil, fmt.Errorf("unsupported axis %v", axis)
}

func (n *node) collectDescendants(out *[]*node) {
	for _, c := range n.children {
		*out = append(*out, c)
		c.collectDescendants(out)
	}
}

func siblings(n *node, following bool) []*node {
	if n.parent == nil {
		return nil
	}
	idx := -1
	for i, c := range n.parent.children {
		if c == n {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if following {
		return n.parent.children[idx+1:]
	}
	return n.parent.children[:idx]
}

func wrapAll(ns []*node) []xnode.Node {
	out := make([]xnode.Node, len(ns))
	for i, n := range ns {
		out[i] = n
	}
	return out
}

func (n *node) AppendChild(child xnode.Node) error {
	c, ok := child.(*node)
	if !ok {
		return fmt.Errorf("docstore: cannot append a foreign node implementation")
	}
	c.parent = n
	n.children = append(n.children, c)
	n.store.reindex(n.docID)
	return nil
}

func (n *node) SetAttribute(name xname.Name, value string) error {
	attr := &node{kind: xnode.KindAttribute, name: name, text: value, parent: n, docID: n.docID, store: n.store}
	n.attrs = append(n.attrs, attr)
	return nil
}

// Store is the xnode.DocumentStore implementation. Document-order indices
// are recomputed eagerly after each mutation (ParseXML, AppendChild) and
// cached on each node, per spec §5 ("lazily computed when a document is
// added and cached forever" — here they are recomputed at each mutation
// rather than on first use, since the reference store is small and
// in-memory).
type Store struct {
	mu      sync.Mutex
	roots   map[string]*node
	nextDoc int
}

func New() *Store {
	return &Store{roots: make(map[string]*node)}
}

func (s *Store) ParseXML(text string) (xnode.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docID := s.nextDoc
	s.nextDoc++

	root, err := parseInto(strings.NewReader(text), docID, s)
	if err != nil {
		return nil, fmt.Errorf("docstore: parse-xml: %w", err)
	}
	s.roots[fmt.Sprintf("urn:docstore:%d", docID)] = root
	s.reindex(docID)
	return root, nil
}

func (s *Store) Root(uri string) (xnode.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roots[uri]
	if !ok {
		return nil, false
	}
	return r, true
}

func (s *Store) NewElement(name xname.Name) (xnode.MutableNode, error) {
	return &node{kind: xnode.KindElement, name: name, store: s}, nil
}

func (s *Store) NewText(data string) (xnode.Node, error) {
	return &node{kind: xnode.KindText, text: data, store: s}, nil
}

func (s *Store) NewAttribute(name xname.Name, value string) (xnode.Node, error) {
	return &node{kind: xnode.KindAttribute, name: name, text: value, store: s}, nil
}

func (s *Store) NewComment(data string) (xnode.Node, error) {
	return &node{kind: xnode.KindComment, text: data, store: s}, nil
}

func (s *Store) NewProcessingInstruction(target, data string) (xnode.Node, error) {
	return &node{kind: xnode.KindProcessingInstruction, piTarget: target, text: data, store: s}, nil
}

// reindex assigns pre-order indices across the document rooted where docID
// lives, giving every node a stable Order for comparison/sorting.
func (s *Store) reindex(docID int) {
	var root *node
	for _, r := range s.roots {
		if r.docID == docID {
			root = r
			break
		}
	}
	if root == nil {
		return
	}
	idx := 0
	var walk func(n *node)
	walk = func(n *node) {
		n.preIndex = idx
		idx++
		for _, a := range n.attrs {
			a.preIndex = idx
			idx++
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(root)
}

// nodesInOrder returns all nodes in the same document strictly after
// (following=true) or before (following=false) n in document order,
// excluding n's own ancestors/descendants per the XPath following/
// preceding axis definition.
func (s *Store) nodesInOrder(n *node, following bool) []*node {
	var root *node
	for _, r := range s.roots {
		if r.docID == n.docID {
			root = r
			break
		}
	}
	if root == nil {
		return nil
	}
	var all []*node
	var walk func(x *node)
	walk = func(x *node) {
		all = append(all, x)
		for _, c := range x.children {
			walk(c)
		}
	}
	walk(root)

	isAncestorOrSelf := func(candidate, of *node) bool {
		for p := of; p != nil; p = p.parent {
			if p == candidate {
				return true
			}
		}
		return false
	}

	var out []*node
	for _, x := range all {
		if x == n || isAncestorOrSelf(x, n) || isAncestorOrSelf(n, x) {
			continue
		}
		if following && x.preIndex > n.preIndex {
			out = append(out, x)
		}
		if !following && x.preIndex < n.preIndex {
			out = append(out, x)
		}
	}
	return out
}

// parseInto tokenizes XML text via encoding/xml and builds the tree,
// mirroring moznion-helium's StartElement/EndElement/text-accumulation
// tree builder shape but producing this package's own node type.
func parseInto(r *strings.Reader, docID int, s *Store) (*node, error) {
	dec := xml.NewDecoder(r)
	var docRoot *node
	var stack []*node

	push := func(n *node) {
		if len(stack) == 0 {
			docRoot = n
		} else {
			parent := stack[len(stack)-1]
			n.parent = parent
			parent.children = append(parent.children, n)
		}
		stack = append(stack, n)
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{kind: xnode.KindElement, docID: docID, store: s,
				name: xname.Name{Local: t.Name.Local, URI: t.Name.Space}}
			for _, a := range t.Attr {
				n.attrs = append(n.attrs, &node{
					kind: xnode.KindAttribute, docID: docID, store: s,
					name: xname.Name{Local: a.Name.Local, URI: a.Name.Space},
					text: a.Value, parent: n,
				})
			}
			push(n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, &node{
				kind: xnode.KindText, docID: docID, store: s, text: string(t), parent: parent,
			})
		case xml.Comment:
			if len(stack) == 0 {
				continue
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, &node{
				kind: xnode.KindComment, docID: docID, store: s, text: string(t), parent: parent,
			})
		case xml.ProcInst:
			if len(stack) == 0 {
				continue
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, &node{
				kind: xnode.KindProcessingInstruction, docID: docID, store: s,
				piTarget: t.Target, text: string(t.Inst), parent: parent,
			})
		}
	}
	if docRoot == nil {
		return nil, fmt.Errorf("no root element found")
	}
	doc := &node{kind: xnode.KindDocument, docID: docID, store: s, children: []*node{docRoot}}
	docRoot.parent = doc
	return doc, nil
}
