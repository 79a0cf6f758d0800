package framegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegisterKernel_Roundtrip tests registration and lookup.
func TestRegisterKernel_Roundtrip(t *testing.T) {
	RegisterKernel("kernels-test-double", func(_ Context, in []int) ([]int, error) {
		return []int{in[0] * 2}, nil
	})

	k, ok := LookupKernel[int]("kernels-test-double")
	require.True(t, ok)

	out, err := k(testCtx(), []int{8})
	require.NoError(t, err)
	assert.Equal(t, []int{16}, out)
}

// TestLookupKernel_Unregistered tests the miss path.
func TestLookupKernel_Unregistered(t *testing.T) {
	_, ok := LookupKernel[int]("kernels-test-missing")
	assert.False(t, ok)
}

// TestLookupKernel_WrongPayloadType tests that names are shared but typed.
func TestLookupKernel_WrongPayloadType(t *testing.T) {
	RegisterKernel("kernels-test-int-only", Identity[int]())

	_, ok := LookupKernel[string]("kernels-test-int-only")
	assert.False(t, ok)
}

// TestIdentity tests the builtin identity kernel.
func TestIdentity(t *testing.T) {
	out, err := Identity[string]()(testCtx(), []string{"pass"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pass"}, out)
}

// TestNoOp tests the builtin noop kernel.
func TestNoOp(t *testing.T) {
	out, err := NoOp[int]()(testCtx(), []int{1, 2})
	require.NoError(t, err)
	assert.Nil(t, out)
}

// TestRegisterBuiltins tests that builtins resolve through AddOp.
func TestRegisterBuiltins(t *testing.T) {
	RegisterBuiltins[int]()

	g := NewGraph[int]().
		AddNode("seed", constKernel(9)).
		AddOp("pass", "identity").
		AddEdge("seed", 0, "pass", 0)

	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(testCtx(), WithFetch("pass"))
	require.NoError(t, err)
	assert.Equal(t, []int{9}, out["pass"])
}
