package xslt

import (
	"strings"

	"github.com/oxhq/morfx/internal/compiler"
	"github.com/oxhq/morfx/internal/pattern"
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xerrors"
	"github.com/oxhq/morfx/internal/xname"
	"github.com/oxhq/morfx/internal/xnode"
)

// runtime carries what every compiled instruction needs to execute: the
// document store to build result nodes with, the static-function registry
// every embedded expression's VM run needs, the named-template table for
// xsl:call-template, and the mode table for apply-templates dispatch.
type runtime struct {
	store    xnode.DocumentStore
	registry vm.Registry
	byName   map[string]*compiledTemplate
	table    *pattern.ModeTable
}

// Run starts a transform with dyn's bound context item as the initial
// node, dispatching it through the default mode exactly as an XSLT
// processor's built-in initial template does ("apply-templates to the
// context node"). It returns the sequence the templates constructed;
// callers that need a single result document append the returned items
// under a root of their own.
func (ss *Stylesheet) Run(dyn *vm.DynamicContext) (sequence.Sequence, error) {
	if !dyn.HasContextItem {
		return sequence.Sequence{}, xerrors.New(xerrors.XPDY0002, "xsl: no context item bound for the initial template")
	}
	rt := &runtime{store: ss.store, registry: ss.registry, byName: ss.byName, table: ss.table}
	it := dyn.ContextItem
	if it.Kind != sequence.ItemNode {
		return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "xsl: initial context item must be a node")
	}
	return rt.applyOne(it.Node, pattern.DefaultMode, dyn)
}

func (rt *runtime) runBody(body []compiledInstr, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	var items []sequence.Item
	for _, instr := range body {
		seq, err := instr.exec(rt, dyn)
		if err != nil {
			return sequence.Sequence{}, err
		}
		items = append(items, seq.Items()...)
	}
	return sequence.Many(items), nil
}

// applyOne dispatches one candidate node through mode's rule table,
// falling back to the built-in template rules (spec-standard behaviour:
// recurse into children for document/element nodes, copy the string value
// for text/attribute nodes, produce nothing for comment/PI nodes) when no
// rule matches.
func (rt *runtime) applyOne(node xnode.Node, mode pattern.ModeId, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	rule, err := rt.table.Dispatch(mode, node)
	if err != nil {
		return sequence.Sequence{}, err
	}
	if rule == nil {
		return rt.builtinTemplateRule(node, mode, dyn)
	}
	ct := rule.Payload.(*compiledTemplate)
	childDyn := dyn.WithContextItem(sequence.NewNodeItem(node))
	return rt.runBody(ct.body, childDyn)
}

func (rt *runtime) builtinTemplateRule(node xnode.Node, mode pattern.ModeId, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	switch node.Kind() {
	case xnode.KindDocument, xnode.KindElement:
		children, err := node.Axis(xnode.AxisChild)
		if err != nil {
			return sequence.Sequence{}, err
		}
		return rt.applyMany(children, mode, dyn)
	case xnode.KindText, xnode.KindAttribute:
		textNode, err := rt.store.NewText(node.StringValue())
		if err != nil {
			return sequence.Sequence{}, err
		}
		return sequence.One(sequence.NewNodeItem(textNode)), nil
	default:
		return sequence.Empty(), nil
	}
}

func (rt *runtime) applyMany(nodes []xnode.Node, mode pattern.ModeId, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	last := len(nodes)
	var out []sequence.Item
	for i, n := range nodes {
		d := dyn.WithContextItem(sequence.NewNodeItem(n))
		d.ContextPosition = i + 1
		d.ContextLast = last
		seq, err := rt.applyOne(n, mode, d)
		if err != nil {
			return sequence.Sequence{}, err
		}
		out = append(out, seq.Items()...)
	}
	return sequence.Many(out), nil
}

// cApplyTemplates is compiled xsl:apply-templates. mode is resolved once at
// compile time (modeRegistry.resolve is not safe to call concurrently,
// and a compiled Stylesheet may be Run from multiple goroutines against
// independent DynamicContexts per spec §5).
type cApplyTemplates struct {
	selectProg *compiler.Program
	mode       pattern.ModeId
}

func (c *cApplyTemplates) exec(rt *runtime, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	selected, err := vm.Run(c.selectProg, rt.registry, dyn)
	if err != nil {
		return sequence.Sequence{}, err
	}
	items := selected.Items()
	nodes := make([]xnode.Node, len(items))
	for i, it := range items {
		if it.Kind != sequence.ItemNode {
			return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "xsl:apply-templates: select must return a sequence of nodes")
		}
		nodes[i] = it.Node
	}
	return rt.applyMany(nodes, c.mode, dyn)
}

// cCallTemplate is compiled xsl:call-template: runs the named template's
// body with the caller's current context item/position/last unchanged.
type cCallTemplate struct {
	name string
}

func (c *cCallTemplate) exec(rt *runtime, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	ct, ok := rt.byName[c.name]
	if !ok {
		return sequence.Sequence{}, xerrors.Newf(xerrors.XPST0003, "xsl:call-template: no template named %q", c.name)
	}
	return rt.runBody(ct.body, dyn)
}

// cValueOf is compiled xsl:value-of.
type cValueOf struct {
	selectProg *compiler.Program
	separator  string
}

func (c *cValueOf) exec(rt *runtime, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	selected, err := vm.Run(c.selectProg, rt.registry, dyn)
	if err != nil {
		return sequence.Sequence{}, err
	}
	text, err := joinStringValues(selected, c.separator)
	if err != nil {
		return sequence.Sequence{}, err
	}
	node, err := rt.store.NewText(text)
	if err != nil {
		return sequence.Sequence{}, err
	}
	return sequence.One(sequence.NewNodeItem(node)), nil
}

func joinStringValues(seq sequence.Sequence, separator string) (string, error) {
	atomized, err := sequence.Atomize(seq)
	if err != nil {
		return "", err
	}
	items := atomized.Items()
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.StringValue()
	}
	return strings.Join(parts, separator), nil
}

// cForEach is compiled xsl:for-each.
type cForEach struct {
	selectProg *compiler.Program
	body       []compiledInstr
}

func (c *cForEach) exec(rt *runtime, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	selected, err := vm.Run(c.selectProg, rt.registry, dyn)
	if err != nil {
		return sequence.Sequence{}, err
	}
	items := selected.Items()
	last := len(items)
	var out []sequence.Item
	for i, it := range items {
		d := dyn.WithContextItem(it)
		d.ContextPosition = i + 1
		d.ContextLast = last
		seq, err := rt.runBody(c.body, d)
		if err != nil {
			return sequence.Sequence{}, err
		}
		out = append(out, seq.Items()...)
	}
	return sequence.Many(out), nil
}

// cIf is compiled xsl:if.
type cIf struct {
	testProg *compiler.Program
	body     []compiledInstr
}

func (c *cIf) exec(rt *runtime, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	result, err := vm.Run(c.testProg, rt.registry, dyn)
	if err != nil {
		return sequence.Sequence{}, err
	}
	ok, err := result.EffectiveBooleanValue()
	if err != nil {
		return sequence.Sequence{}, err
	}
	if !ok {
		return sequence.Empty(), nil
	}
	return rt.runBody(c.body, dyn)
}

// cWhen is one compiled xsl:when branch.
type cWhen struct {
	testProg *compiler.Program
	body     []compiledInstr
}

// cChoose is compiled xsl:choose.
type cChoose struct {
	whens     []cWhen
	otherwise []compiledInstr
}

func (c *cChoose) exec(rt *runtime, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	for _, w := range c.whens {
		result, err := vm.Run(w.testProg, rt.registry, dyn)
		if err != nil {
			return sequence.Sequence{}, err
		}
		ok, err := result.EffectiveBooleanValue()
		if err != nil {
			return sequence.Sequence{}, err
		}
		if ok {
			return rt.runBody(w.body, dyn)
		}
	}
	return rt.runBody(c.otherwise, dyn)
}

// cElement is compiled xsl:element. Attribute items produced by Body
// become attributes of the constructed element (in the order produced);
// any other node or atomic item becomes a child (atomic items are wrapped
// as text, matching a sequence constructor's "each item copied/built in
// turn" semantics).
type cElement struct {
	name xname.Name
	body []compiledInstr
}

func (c *cElement) exec(rt *runtime, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	el, err := rt.store.NewElement(c.name)
	if err != nil {
		return sequence.Sequence{}, err
	}
	content, err := rt.runBody(c.body, dyn)
	if err != nil {
		return sequence.Sequence{}, err
	}
	for _, it := range content.Items() {
		if it.Kind == sequence.ItemNode && it.Node.Kind() == xnode.KindAttribute {
			if err := el.SetAttribute(it.Node.Name(), it.Node.StringValue()); err != nil {
				return sequence.Sequence{}, err
			}
			continue
		}
		child, err := asChildNode(rt, it)
		if err != nil {
			return sequence.Sequence{}, err
		}
		if err := el.AppendChild(child); err != nil {
			return sequence.Sequence{}, err
		}
	}
	return sequence.One(sequence.NewNodeItem(el)), nil
}

func asChildNode(rt *runtime, it sequence.Item) (xnode.Node, error) {
	if it.Kind == sequence.ItemNode {
		return it.Node, nil
	}
	return rt.store.NewText(it.StringValue())
}

// cAttribute is compiled xsl:attribute.
type cAttribute struct {
	name       xname.Name
	selectProg *compiler.Program // nil when the value comes from Body instead
	body       []compiledInstr
}

func (c *cAttribute) exec(rt *runtime, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	var value string
	if c.selectProg != nil {
		selected, err := vm.Run(c.selectProg, rt.registry, dyn)
		if err != nil {
			return sequence.Sequence{}, err
		}
		value, err = joinStringValues(selected, " ")
		if err != nil {
			return sequence.Sequence{}, err
		}
	} else {
		content, err := rt.runBody(c.body, dyn)
		if err != nil {
			return sequence.Sequence{}, err
		}
		var b strings.Builder
		for _, it := range content.Items() {
			b.WriteString(it.StringValue())
		}
		value = b.String()
	}
	node, err := rt.store.NewAttribute(c.name, value)
	if err != nil {
		return sequence.Sequence{}, err
	}
	return sequence.One(sequence.NewNodeItem(node)), nil
}

// cText is compiled xsl:text.
type cText struct {
	value string
}

func (c *cText) exec(rt *runtime, _ *vm.DynamicContext) (sequence.Sequence, error) {
	node, err := rt.store.NewText(c.value)
	if err != nil {
		return sequence.Sequence{}, err
	}
	return sequence.One(sequence.NewNodeItem(node)), nil
}

// cSequence is compiled xsl:sequence: its select result is copied into the
// output sequence verbatim, node or atomic alike.
type cSequence struct {
	selectProg *compiler.Program
}

func (c *cSequence) exec(rt *runtime, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	return vm.Run(c.selectProg, rt.registry, dyn)
}
