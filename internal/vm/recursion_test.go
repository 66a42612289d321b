package vm_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/morfx/internal/builtins"
	"github.com/oxhq/morfx/internal/docstore"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xpath"
)

// yCombinatorFactorial builds a self-applying recursive inline function,
// the only way XPath 3.1 expresses recursion without a named function
// declaration: $f is passed itself as an argument on every call.
const yCombinatorFactorial = `
let $fact := function($f, $n) {
  if ($n le 1) then 1 else $n * $f($f, $n - 1)
}
return $fact($fact, %d)
`

func evalFactorial(t *testing.T, n int) (string, error) {
	t.Helper()
	sc, reg, err := builtins.NewDefaultContext()
	require.NoError(t, err)
	store := docstore.New()
	dyn := vm.NewDynamicContext(store)

	src := fmt.Sprintf(yCombinatorFactorial, n)
	seq, err := xpath.Eval(src, sc, reg, dyn)
	if err != nil {
		return "", err
	}
	items := seq.Items()
	require.Len(t, items, 1)
	return items[0].StringValue(), nil
}

// TestRecursiveCallWithinDepthLimitSucceeds covers spec testable property 6:
// a recursive call chain within the 64-frame bound completes normally.
func TestRecursiveCallWithinDepthLimitSucceeds(t *testing.T) {
	got, err := evalFactorial(t, 10)
	require.NoError(t, err)
	assert.Equal(t, "3628800", got)
}

// TestRecursiveCallBeyondDepthLimitRaisesStackOverflow covers spec testable
// property 7: a recursive call chain beyond vm.MaxCallDepth raises the
// internal StackOverflow error rather than overflowing the Go call stack.
func TestRecursiveCallBeyondDepthLimitRaisesStackOverflow(t *testing.T) {
	_, err := evalFactorial(t, vm.MaxCallDepth+10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "StackOverflow")
}
