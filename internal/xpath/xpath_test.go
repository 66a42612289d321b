package xpath

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/morfx/internal/builtins"
	"github.com/oxhq/morfx/internal/docstore"
	"github.com/oxhq/morfx/internal/vm"
)

func TestEvalArithmetic(t *testing.T) {
	sc, reg, err := builtins.NewDefaultContext()
	require.NoError(t, err)
	store := docstore.New()
	dyn := vm.NewDynamicContext(store)

	seq, err := Eval("1 + 2 * 3", sc, reg, dyn)
	require.NoError(t, err)
	require.Equal(t, 1, seq.Len())
	item, _ := seq.At(0)
	require.Equal(t, "7", item.StringValue())
}

func TestCompileReuseAcrossRuns(t *testing.T) {
	sc, reg, err := builtins.NewDefaultContext()
	require.NoError(t, err)
	store := docstore.New()
	dyn := vm.NewDynamicContext(store)

	prog, err := Compile("for $x in 1 to 3 return $x * $x", sc)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		seq, err := prog.Run(reg, dyn)
		require.NoError(t, err)
		require.Equal(t, 3, seq.Len())
	}
}
