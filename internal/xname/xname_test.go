package xname

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameEqualityIgnoresPrefix(t *testing.T) {
	a := Name{Local: "foo", URI: "urn:x", Prefix: "a"}
	b := Name{Local: "foo", URI: "urn:x", Prefix: "b"}
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
}

func TestNameEqualityRequiresMatchingURI(t *testing.T) {
	a := Name{Local: "foo", URI: "urn:x"}
	b := Name{Local: "foo", URI: "urn:y"}
	assert.False(t, a.Equal(b))
}

func TestWildcardMatches(t *testing.T) {
	anyWildcard := Wildcard{Kind: WildcardAny}
	assert.True(t, anyWildcard.Matches(Name{Local: "foo", URI: "urn:x"}))

	localWildcard := Wildcard{Kind: WildcardLocal, URI: "urn:x"}
	assert.True(t, localWildcard.Matches(Name{Local: "foo", URI: "urn:x"}))
	assert.False(t, localWildcard.Matches(Name{Local: "foo", URI: "urn:y"}))

	uriWildcard := Wildcard{Kind: WildcardURI, Local: "foo"}
	assert.True(t, uriWildcard.Matches(Name{Local: "foo", URI: "urn:anything"}))
	assert.False(t, uriWildcard.Matches(Name{Local: "bar", URI: "urn:anything"}))
}

func TestNamespacesDeclareAndResolve(t *testing.T) {
	ns := NewNamespaces()
	uri, ok := ns.Resolve(XMLPrefix)
	require.True(t, ok)
	assert.Equal(t, XMLNamespaceURI, uri)

	require.NoError(t, ns.Declare("x", "urn:x"))
	uri, ok = ns.Resolve("x")
	require.True(t, ok)
	assert.Equal(t, "urn:x", uri)

	_, ok = ns.Resolve("undeclared")
	assert.False(t, ok)
}

func TestNamespacesRejectsRebindingXMLPrefix(t *testing.T) {
	ns := NewNamespaces()
	err := ns.Declare(XMLPrefix, "urn:not-xml")
	assert.Error(t, err)
}
