package pattern

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/morfx/internal/docstore"
	"github.com/oxhq/morfx/internal/xname"
	"github.com/oxhq/morfx/internal/xnode"
)

func parseDoc(t *testing.T, xml string) xnode.Node {
	t.Helper()
	store := docstore.New()
	root, err := store.ParseXML(xml)
	require.NoError(t, err)
	return root
}

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

func TestAnchorMatches(t *testing.T) {
	doc := parseDoc(t, `<book><title lang="en">Go</title></book>`)
	book := child(t, doc, "book")
	title := child(t, book, "title")
	attrs, err := title.Axis(xnode.AxisAttribute)
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	langAttr := attrs[0]

	cases := []struct {
		name   string
		anchor Anchor
		node   xnode.Node
		want   bool
	}{
		{"element name match", Anchor{Kind: AnchorElementName, Name: xname.Name{Local: "title"}}, title, true},
		{"element name mismatch", Anchor{Kind: AnchorElementName, Name: xname.Name{Local: "book"}}, title, false},
		{"element wildcard matches any element", Anchor{Kind: AnchorElementWildcard}, book, true},
		{"element wildcard rejects attribute", Anchor{Kind: AnchorElementWildcard}, langAttr, false},
		{"attribute name match", Anchor{Kind: AnchorAttributeName, Name: xname.Name{Local: "lang"}}, langAttr, true},
		{"attribute wildcard matches any attribute", Anchor{Kind: AnchorAttributeWildcard}, langAttr, true},
		{"kind test matches element kind", Anchor{Kind: AnchorKindTest, NodeKind: xnode.KindElement}, book, true},
		{"any matches everything", Anchor{Kind: AnchorAny}, langAttr, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, c.anchor.Matches(c.node))
		})
	}
}

func TestRuleMatches_AncestorChain(t *testing.T) {
	doc := parseDoc(t, `<library><book><title>Go</title></book><magazine><title>Weekly</title></magazine></library>`)
	library := child(t, doc, "library")
	book := child(t, library, "book")
	bookTitle := child(t, book, "title")
	magazine := child(t, library, "magazine")
	magazineTitle := child(t, magazine, "title")

	rule := &Rule{
		Anchor: Anchor{Kind: AnchorElementName, Name: xname.Name{Local: "title"}},
		AncestorChain: []AncestorStep{
			{Rel: RelParent, Anchor: Anchor{Kind: AnchorElementName, Name: xname.Name{Local: "book"}}},
		},
	}

	ok, err := rule.Matches(bookTitle)
	require.NoError(t, err)
	require.True(t, ok, "title directly under book should match")

	ok, err = rule.Matches(magazineTitle)
	require.NoError(t, err)
	require.False(t, ok, "title under magazine should not match a book/title pattern")
}

func TestRuleMatches_AncestorAxis(t *testing.T) {
	doc := parseDoc(t, `<a><b><c>deep</c></b></a>`)
	a := child(t, doc, "a")
	b := child(t, a, "b")
	c := child(t, b, "c")

	rule := &Rule{
		Anchor: Anchor{Kind: AnchorElementName, Name: xname.Name{Local: "c"}},
		AncestorChain: []AncestorStep{
			{Rel: RelAncestor, Anchor: Anchor{Kind: AnchorElementName, Name: xname.Name{Local: "a"}}},
		},
	}
	ok, err := rule.Matches(c)
	require.NoError(t, err)
	require.True(t, ok, "a//c should match c nested anywhere under a")
}

func TestRuleMatches_Predicate(t *testing.T) {
	doc := parseDoc(t, `<items><item/><item/></items>`)
	items := child(t, doc, "items")
	kids, err := items.Axis(xnode.AxisChild)
	require.NoError(t, err)
	require.Len(t, kids, 2)

	calls := 0
	rule := &Rule{
		Anchor: Anchor{Kind: AnchorElementName, Name: xname.Name{Local: "item"}},
		Predicate: func(candidate xnode.Node) (bool, error) {
			calls++
			return calls == 2, nil // only the second item "matches"
		},
	}
	ok1, err := rule.Matches(kids[0])
	require.NoError(t, err)
	require.False(t, ok1)

	ok2, err := rule.Matches(kids[1])
	require.NoError(t, err)
	require.True(t, ok2)
}

func TestBuildModeTable_PriorityAndDeclOrderSort(t *testing.T) {
	low := &Rule{Priority: 0, DeclOrder: 0}
	high := &Rule{Priority: 1, DeclOrder: 1}
	tieEarlier := &Rule{Priority: 1, DeclOrder: 0}

	mt := BuildModeTable([]*Rule{low, high, tieEarlier})
	got := mt.Rules(DefaultMode)
	require.Equal(t, []*Rule{high, tieEarlier, low}, got)
}

func TestBuildModeTable_AllModesMerge(t *testing.T) {
	named := &Rule{Mode: 7, Priority: 0}
	wildcard := &Rule{AllModes: true, Priority: -1, DeclOrder: 5}

	mt := BuildModeTable([]*Rule{named, wildcard})

	namedModeRules := mt.Rules(ModeId(7))
	require.Equal(t, []*Rule{named, wildcard}, namedModeRules)

	defaultModeRules := mt.Rules(DefaultMode)
	require.Equal(t, []*Rule{wildcard}, defaultModeRules,
		"#all must merge into the default mode even with no directly-declared rule")
}

func TestModeTable_Dispatch_PredicateErrorRecovery(t *testing.T) {
	doc := parseDoc(t, `<x/>`)
	x := child(t, doc, "x")

	failing := &Rule{
		Priority:  1,
		DeclOrder: 1,
		Anchor:    Anchor{Kind: AnchorElementName, Name: xname.Name{Local: "x"}},
		Predicate: func(xnode.Node) (bool, error) { return false, errors.New("boom") },
	}
	fallback := &Rule{
		Priority:  0,
		DeclOrder: 0,
		Anchor:    Anchor{Kind: AnchorElementName, Name: xname.Name{Local: "x"}},
	}

	mt := BuildModeTable([]*Rule{failing, fallback})
	rule, err := mt.Dispatch(DefaultMode, x)
	require.NoError(t, err, "a lower-priority rule matching should swallow the higher-priority rule's predicate error")
	require.Same(t, fallback, rule)

	mtOnlyFailing := BuildModeTable([]*Rule{failing})
	rule, err = mtOnlyFailing.Dispatch(DefaultMode, x)
	require.Nil(t, rule)
	require.Error(t, err, "the predicate error must surface when no rule ultimately matches")
}

func TestModeTable_Dispatch_NoMatch(t *testing.T) {
	doc := parseDoc(t, `<x/>`)
	x := child(t, doc, "x")
	mt := BuildModeTable([]*Rule{{Anchor: Anchor{Kind: AnchorElementName, Name: xname.Name{Local: "y"}}}})
	rule, err := mt.Dispatch(DefaultMode, x)
	require.NoError(t, err)
	require.Nil(t, rule)
}
