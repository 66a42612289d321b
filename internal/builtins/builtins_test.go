package builtins_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/morfx/internal/builtins"
	"github.com/oxhq/morfx/internal/docstore"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xpath"
)

func evalString(t *testing.T, expr string) string {
	t.Helper()
	sc, reg, err := builtins.NewDefaultContext()
	require.NoError(t, err)
	store := docstore.New()
	dyn := vm.NewDynamicContext(store)

	seq, err := xpath.Eval(expr, sc, reg, dyn)
	require.NoError(t, err)
	items := seq.Items()
	require.Len(t, items, 1)
	return items[0].StringValue()
}

func TestBuiltinStringFunctions(t *testing.T) {
	cases := []struct {
		name, expr, want string
	}{
		{"concat", `concat("a", "b", "c")`, "abc"},
		{"substring", `substring("hello world", 1, 5)`, "hello"},
		{"upper-case", `upper-case("shout")`, "SHOUT"},
		{"string-length", `string-length("hello")`, "5"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, evalString(t, c.expr))
		})
	}
}

func TestBuiltinContainsPredicate(t *testing.T) {
	assert.Equal(t, "true", evalString(t, `contains("haystack", "stack")`))
	assert.Equal(t, "false", evalString(t, `contains("haystack", "needle")`))
}

func TestBuiltinNumericFunctions(t *testing.T) {
	cases := []struct {
		name, expr, want string
	}{
		{"abs-negative", `abs(-5)`, "5"},
		{"abs-positive", `abs(5)`, "5"},
		{"sum", `sum((1, 2, 3, 4))`, "10"},
		{"sum-empty-with-default", `sum((), 0)`, "0"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, evalString(t, c.expr))
		})
	}
}

func TestBuiltinTokenize(t *testing.T) {
	sc, reg, err := builtins.NewDefaultContext()
	require.NoError(t, err)
	store := docstore.New()
	dyn := vm.NewDynamicContext(store)

	seq, err := xpath.Eval(`tokenize("a,b,c", ",")`, sc, reg, dyn)
	require.NoError(t, err)
	items := seq.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].StringValue())
	assert.Equal(t, "b", items[1].StringValue())
	assert.Equal(t, "c", items[2].StringValue())
}
