package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/morfx/internal/xnode"
)

// TestDescendantAxisIsInDocumentOrder covers spec testable property 4:
// document order is a total order within one document, and the descendant
// axis yields nodes in that order.
func TestDescendantAxisIsInDocumentOrder(t *testing.T) {
	s := New()
	root, err := s.ParseXML(`<a><b><c/></b><d/></a>`)
	require.NoError(t, err)

	descendants, err := root.Axis(xnode.AxisDescendant)
	require.NoError(t, err)
	require.Len(t, descendants, 4)

	for i := 1; i < len(descendants); i++ {
		assert.True(t, descendants[i-1].Order().Less(descendants[i].Order()),
			"descendant axis must be strictly increasing in document order")
	}
}

func TestOrderTotalityAcrossDocuments(t *testing.T) {
	s := New()
	root1, err := s.ParseXML(`<a/>`)
	require.NoError(t, err)
	root2, err := s.ParseXML(`<b/>`)
	require.NoError(t, err)

	o1, o2 := root1.Order(), root2.Order()
	assert.NotEqual(t, o1.DocumentID, o2.DocumentID)
	assert.True(t, o1.Less(o2) || o2.Less(o1), "distinct documents must be totally ordered")
	assert.False(t, o1.Less(o1), "order must be irreflexive")
}

func TestChildAndParentAxesAreInverse(t *testing.T) {
	s := New()
	root, err := s.ParseXML(`<a><b/></a>`)
	require.NoError(t, err)

	children, err := root.Axis(xnode.AxisChild)
	require.NoError(t, err)
	require.Len(t, children, 1)
	child := children[0]

	parents, err := child.Axis(xnode.AxisParent)
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.True(t, parents[0].Equal(root))
}

func TestFollowingSiblingAxisOrder(t *testing.T) {
	s := New()
	root, err := s.ParseXML(`<a><b/><c/><d/></a>`)
	require.NoError(t, err)

	top, err := root.Axis(xnode.AxisChild)
	require.NoError(t, err)
	require.Len(t, top, 1)

	children, err := top[0].Axis(xnode.AxisChild)
	require.NoError(t, err)
	require.Len(t, children, 3)

	following, err := children[0].Axis(xnode.AxisFollowingSibling)
	require.NoError(t, err)
	require.Len(t, following, 2)
	assert.True(t, following[0].Equal(children[1]))
	assert.True(t, following[1].Equal(children[2]))
}

func TestStringValueConcatenatesDescendantText(t *testing.T) {
	s := New()
	root, err := s.ParseXML(`<a>x<b>y</b>z</a>`)
	require.NoError(t, err)
	assert.Equal(t, "xyz", root.StringValue())
}
