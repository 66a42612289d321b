package builtins

import (
	"strings"

	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/statctx"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xerrors"
	"github.com/oxhq/morfx/internal/xnode"
)

// registerNodeFunctions wires fn:name/local-name/namespace-uri/root/doc/id/
// parse-xml, the functions that reach into the DynamicContext's
// xnode.DocumentStore (spec §4.7's "Node/document" group).
func registerNodeFunctions(in *installer) error {
	reg := []struct {
		name  string
		arity int
		kind  statctx.FunctionKind
		impl  NativeFunc
	}{
		{"name", 0, statctx.FuncContextFirst, fnName},
		{"name", 1, statctx.FuncPlain, fnName},
		{"local-name", 0, statctx.FuncContextFirst, fnLocalName},
		{"local-name", 1, statctx.FuncPlain, fnLocalName},
		{"namespace-uri", 0, statctx.FuncContextFirst, fnNamespaceURI},
		{"namespace-uri", 1, statctx.FuncPlain, fnNamespaceURI},
		{"root", 0, statctx.FuncContextFirst, fnRoot},
		{"root", 1, statctx.FuncPlain, fnRoot},
		{"doc", 1, statctx.FuncPlain, fnDoc},
		{"id", 1, statctx.FuncContextLastOptional, fnID},
		{"id", 2, statctx.FuncPlain, fnID},
		{"parse-xml", 1, statctx.FuncPlain, fnParseXML},
	}
	for _, r := range reg {
		if err := in.fn(r.name, r.arity, r.kind, r.impl); err != nil {
			return err
		}
	}
	return nil
}

func requireNode(s sequence.Sequence) (xnode.Node, error) {
	if s.Len() != 1 {
		return nil, xerrors.New(xerrors.XPTY0004, "expected a single node")
	}
	it, _ := s.At(0)
	if it.Kind != sequence.ItemNode {
		return nil, xerrors.New(xerrors.XPTY0004, "expected a node, got an atomic value")
	}
	return it.Node, nil
}

func fnName(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	if args[0].IsEmpty() {
		return stringItem(""), nil
	}
	n, err := requireNode(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	name := n.Name()
	if name.Local == "" {
		return stringItem(""), nil
	}
	if name.Prefix != "" {
		return stringItem(name.Prefix + ":" + name.Local), nil
	}
	return stringItem(name.Local), nil
}

func fnLocalName(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	if args[0].IsEmpty() {
		return stringItem(""), nil
	}
	n, err := requireNode(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	return stringItem(n.Name().Local), nil
}

func fnNamespaceURI(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	if args[0].IsEmpty() {
		return stringItem(""), nil
	}
	n, err := requireNode(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	return stringItem(n.Name().URI), nil
}

func fnRoot(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	if args[0].IsEmpty() {
		return sequence.Empty(), nil
	}
	n, err := requireNode(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	for {
		parents, err := n.Axis(xnode.AxisParent)
		if err != nil {
			return sequence.Sequence{}, err
		}
		if len(parents) == 0 {
			return sequence.One(sequence.NewNodeItem(n)), nil
		}
		n = parents[0]
	}
}

func fnDoc(dyn *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	uri, err := atomString(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	if dyn.Store == nil {
		return sequence.Sequence{}, xerrors.New(xerrors.FODC0006, "fn:doc: no document store configured")
	}
	root, ok := dyn.Store.Root(uri)
	if !ok {
		return sequence.Sequence{}, xerrors.Newf(xerrors.FODC0006, "fn:doc: document %q not found", uri)
	}
	return sequence.One(sequence.NewNodeItem(root)), nil
}

func fnParseXML(dyn *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	text, err := atomString(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	if dyn.Store == nil {
		return sequence.Sequence{}, xerrors.New(xerrors.FODC0006, "fn:parse-xml: no document store configured")
	}
	root, err := dyn.Store.ParseXML(text)
	if err != nil {
		return sequence.Sequence{}, xerrors.Newf(xerrors.FODC0006, "fn:parse-xml: %v", err)
	}
	return sequence.One(sequence.NewNodeItem(root)), nil
}

// fnID implements fn:id by walking the descendant axis of the target node's
// root (the context item for the one-arg form, or the second argument's
// node for the two-arg form) and collecting elements carrying an "id"
// attribute whose value matches one of the whitespace-separated IDREFS in
// the first argument. There is no separate ID-typed-attribute declaration
// in this model, so "id" is matched by local name, per spec §4.7's note
// that fn:id here is a document-tree search rather than a DTD/schema lookup.
func fnID(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	idsAtomized, err := sequence.Atomize(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	wanted := map[string]bool{}
	for _, it := range idsAtomized.Items() {
		for _, tok := range strings.Fields(it.Atomic.StringValue()) {
			wanted[tok] = true
		}
	}
	var startNode xnode.Node
	if len(args) == 2 {
		startNode, err = requireNode(args[1])
		if err != nil {
			return sequence.Sequence{}, err
		}
	} else {
		startNode, err = requireNode(args[0])
		if err != nil {
			return sequence.Sequence{}, err
		}
	}
	root := startNode
	for {
		parents, err := root.Axis(xnode.AxisParent)
		if err != nil {
			return sequence.Sequence{}, err
		}
		if len(parents) == 0 {
			break
		}
		root = parents[0]
	}
	var out []sequence.Item
	elements, err := root.Axis(xnode.AxisDescendantOrSelf)
	if err != nil {
		return sequence.Sequence{}, err
	}
	for _, el := range elements {
		if el.Kind() != xnode.KindElement {
			continue
		}
		attrs, err := el.Axis(xnode.AxisAttribute)
		if err != nil {
			return sequence.Sequence{}, err
		}
		for _, a := range attrs {
			if a.Name().Local == "id" && wanted[a.StringValue()] {
				out = append(out, sequence.NewNodeItem(el))
				break
			}
		}
	}
	return sequence.Many(out), nil
}
