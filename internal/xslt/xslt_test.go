package xslt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/morfx/internal/builtins"
	"github.com/oxhq/morfx/internal/docstore"
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/statctx"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xnode"
)

// testEnv bundles the two values every Compile call needs so test bodies
// don't repeat the tuple.
type testEnv struct {
	sc  *statctx.StaticContext
	reg *builtins.Registry
}

func newTestEnv(t *testing.T) (*testEnv, xnode.DocumentStore) {
	t.Helper()
	sc, reg, err := builtins.NewDefaultContext()
	require.NoError(t, err)
	return &testEnv{sc: sc, reg: reg}, docstore.New()
}

func ptrF(f float64) *float64 { return &f }

func child(t *testing.T, n xnode.Node, localName string) xnode.Node {
	t.Helper()
	kids, err := n.Axis(xnode.AxisChild)
	require.NoError(t, err)
	for _, k := range kids {
		if k.Kind() == xnode.KindElement && k.Name().Local == localName {
			return k
		}
	}
	t.Fatalf("no child named %q found", localName)
	return nil
}

func attr(t *testing.T, n xnode.Node, localName string) xnode.Node {
	t.Helper()
	attrs, err := n.Axis(xnode.AxisAttribute)
	require.NoError(t, err)
	for _, a := range attrs {
		if a.Name().Local == localName {
			return a
		}
	}
	t.Fatalf("no attribute named %q found", localName)
	return nil
}

func TestStylesheet_RootTemplateValueOfSeparator(t *testing.T) {
	env, store := newTestEnv(t)
	doc, err := store.ParseXML(`<doc/>`)
	require.NoError(t, err)

	ast := &StylesheetAST{Templates: []*Template{
		{Match: "/", Body: []Instruction{ValueOf{Select: "1 to 4", Separator: "|"}}},
	}}
	ss, err := Compile(ast, env.sc, store, env.reg)
	require.NoError(t, err)

	dyn := vm.NewDynamicContext(store).WithContextItem(sequence.NewNodeItem(doc))
	out, err := ss.Run(dyn)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	it, ok := out.At(0)
	require.True(t, ok)
	require.Equal(t, sequence.ItemNode, it.Kind)
	require.Equal(t, xnode.KindText, it.Node.Kind())
	require.Equal(t, "1|2|3|4", it.Node.StringValue())
}

func TestStylesheet_PatternPriorityDispatch(t *testing.T) {
	env, store := newTestEnv(t)
	doc, err := store.ParseXML(`<root><item/></root>`)
	require.NoError(t, err)

	ast := &StylesheetAST{Templates: []*Template{
		{Match: "/", Body: []Instruction{ApplyTemplates{Select: "root/item"}}},
		{Match: "item", Priority: ptrF(0), Body: []Instruction{Text{Value: "low"}}},
		{Match: "item", Priority: ptrF(1), Body: []Instruction{Text{Value: "high"}}},
	}}
	ss, err := Compile(ast, env.sc, store, env.reg)
	require.NoError(t, err)

	dyn := vm.NewDynamicContext(store).WithContextItem(sequence.NewNodeItem(doc))
	out, err := ss.Run(dyn)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	it, ok := out.At(0)
	require.True(t, ok)
	require.Equal(t, "high", it.Node.StringValue(), "the higher-priority template must win over the lower one")
}

func TestStylesheet_ElementAttributeConstruction(t *testing.T) {
	env, store := newTestEnv(t)
	doc, err := store.ParseXML(`<person id="7">Ada</person>`)
	require.NoError(t, err)

	ast := &StylesheetAST{Templates: []*Template{
		{Match: "person", Body: []Instruction{Element{Name: "output", Body: []Instruction{
			Attribute{Name: "id", Select: "@id"},
			Element{Name: "label", Body: []Instruction{ValueOf{Select: "."}}},
		}}}},
	}}
	ss, err := Compile(ast, env.sc, store, env.reg)
	require.NoError(t, err)

	dyn := vm.NewDynamicContext(store).WithContextItem(sequence.NewNodeItem(doc))
	out, err := ss.Run(dyn)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	it, ok := out.At(0)
	require.True(t, ok)
	output := it.Node
	require.Equal(t, xnode.KindElement, output.Kind())
	require.Equal(t, "output", output.Name().Local)

	idAttr := attr(t, output, "id")
	require.Equal(t, "7", idAttr.StringValue())

	label := child(t, output, "label")
	require.Equal(t, "Ada", label.StringValue())
}

func TestStylesheet_ForEachBindsPositionAndLast(t *testing.T) {
	env, store := newTestEnv(t)
	doc, err := store.ParseXML(`<nums><n>1</n><n>2</n><n>3</n></nums>`)
	require.NoError(t, err)

	ast := &StylesheetAST{Templates: []*Template{
		{Match: "/", Body: []Instruction{ForEach{
			Select: "nums/n",
			Body:   []Instruction{ValueOf{Select: "concat(position(), ':', string(.))"}},
		}}},
	}}
	ss, err := Compile(ast, env.sc, store, env.reg)
	require.NoError(t, err)

	dyn := vm.NewDynamicContext(store).WithContextItem(sequence.NewNodeItem(doc))
	out, err := ss.Run(dyn)
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())
	for i, want := range []string{"1:1", "2:2", "3:3"} {
		it, ok := out.At(i)
		require.True(t, ok)
		require.Equal(t, want, it.Node.StringValue())
	}
}

func TestStylesheet_CallTemplateByName(t *testing.T) {
	env, store := newTestEnv(t)
	doc, err := store.ParseXML(`<doc/>`)
	require.NoError(t, err)

	ast := &StylesheetAST{Templates: []*Template{
		{Match: "/", Body: []Instruction{CallTemplate{Name: "greet"}}},
		{Name: "greet", Body: []Instruction{Text{Value: "hello"}}},
	}}
	ss, err := Compile(ast, env.sc, store, env.reg)
	require.NoError(t, err)

	dyn := vm.NewDynamicContext(store).WithContextItem(sequence.NewNodeItem(doc))
	out, err := ss.Run(dyn)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	it, ok := out.At(0)
	require.True(t, ok)
	require.Equal(t, "hello", it.Node.StringValue())
}

func TestStylesheet_ChooseBranches(t *testing.T) {
	env, store := newTestEnv(t)
	doc, err := store.ParseXML(`<n>5</n>`)
	require.NoError(t, err)

	ast := &StylesheetAST{Templates: []*Template{
		{Match: "/", Body: []Instruction{Choose{
			Whens: []When{
				{Test: "n > 10", Body: []Instruction{Text{Value: "big"}}},
				{Test: "n > 1", Body: []Instruction{Text{Value: "medium"}}},
			},
			Otherwise: []Instruction{Text{Value: "small"}},
		}}},
	}}
	ss, err := Compile(ast, env.sc, store, env.reg)
	require.NoError(t, err)

	dyn := vm.NewDynamicContext(store).WithContextItem(sequence.NewNodeItem(doc))
	out, err := ss.Run(dyn)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	it, ok := out.At(0)
	require.True(t, ok)
	require.Equal(t, "medium", it.Node.StringValue())
}

func TestStylesheet_NoMatchingRuleFallsBackToBuiltin(t *testing.T) {
	env, store := newTestEnv(t)
	doc, err := store.ParseXML(`<a><b>text</b></a>`)
	require.NoError(t, err)

	ast := &StylesheetAST{Templates: []*Template{}}
	ss, err := Compile(ast, env.sc, store, env.reg)
	require.NoError(t, err)

	dyn := vm.NewDynamicContext(store).WithContextItem(sequence.NewNodeItem(doc))
	out, err := ss.Run(dyn)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	it, ok := out.At(0)
	require.True(t, ok)
	require.Equal(t, "text", it.Node.StringValue(), "the built-in template rule must recurse down to the text node")
}
