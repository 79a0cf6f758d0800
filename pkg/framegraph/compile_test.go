package framegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompile_EmptyGraph tests compiling with no nodes.
func TestCompile_EmptyGraph(t *testing.T) {
	_, err := NewGraph[int]().Compile()
	assert.ErrorIs(t, err, ErrEmptyGraph)
}

// TestCompile_UnknownEdgeEndpoint tests edges referencing missing nodes.
func TestCompile_UnknownEdgeEndpoint(t *testing.T) {
	g := NewGraph[int]().
		AddNode("a", constKernel(1)).
		AddEdge("a", 0, "ghost", 0)

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

// TestCompile_DuplicateInputSlot tests two edges targeting one slot.
func TestCompile_DuplicateInputSlot(t *testing.T) {
	g := NewGraph[int]().
		AddNode("a", constKernel(1)).
		AddNode("b", constKernel(2)).
		AddNode("sum", addKernel).
		AddEdge("a", 0, "sum", 0).
		AddEdge("b", 0, "sum", 0)

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrDuplicateInputSlot)
}

// TestCompile_MissingInputSlot tests non-contiguous input slots.
func TestCompile_MissingInputSlot(t *testing.T) {
	g := NewGraph[int]().
		AddNode("a", constKernel(1)).
		AddNode("sum", addKernel).
		AddEdge("a", 0, "sum", 1)

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrMissingInputSlot)
}

// TestCompile_EnterArity tests that Enter requires exactly one data input.
func TestCompile_EnterArity(t *testing.T) {
	g := NewGraph[int]().
		AddNode("a", constKernel(1)).
		AddEnter("enter", "f")
	// No data edge into the enter.

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrInputArity)
}

// TestCompile_MergeArity tests that Merge requires at least one data input.
func TestCompile_MergeArity(t *testing.T) {
	g := NewGraph[int]().
		AddNode("a", constKernel(1)).
		AddMerge("m").
		AddControlEdge("a", "m")

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrInputArity)
}

// TestCompile_ControlTriggerArity tests that ControlTrigger accepts only
// control edges.
func TestCompile_ControlTriggerArity(t *testing.T) {
	g := NewGraph[int]().
		AddNode("a", constKernel(1)).
		AddControlTrigger("trig").
		AddEdge("a", 0, "trig", 0)

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrInputArity)
}

// TestCompile_SwitchOutputSlot tests that a Switch only produces output
// slots 0 and 1.
func TestCompile_SwitchOutputSlot(t *testing.T) {
	g := NewGraph[int]().
		AddNode("a", constKernel(1)).
		AddSwitch("sw", func(_ Context, v int) (bool, error) {
			return v > 0, nil
		}).
		AddNode("sink", trackKernel("sink", nil)).
		AddEdge("a", 0, "sw", 0).
		AddEdge("sw", 2, "sink", 0)

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrInvalidOutputSlot)
}

// TestCompile_MergeOutputSlot tests that single-output control-flow kinds
// reject data edges from higher source slots.
func TestCompile_MergeOutputSlot(t *testing.T) {
	g := NewGraph[int]().
		AddNode("a", constKernel(1)).
		AddMerge("m").
		AddNode("sink", trackKernel("sink", nil)).
		AddEdge("a", 0, "m", 0).
		AddEdge("m", 1, "sink", 0)

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrInvalidOutputSlot)
}

// TestCompile_ControlTriggerDataOutput tests that a ControlTrigger cannot
// source a data edge.
func TestCompile_ControlTriggerDataOutput(t *testing.T) {
	g := NewGraph[int]().
		AddNode("a", constKernel(1)).
		AddControlTrigger("trig").
		AddNode("sink", trackKernel("sink", nil)).
		AddControlEdge("a", "trig").
		AddEdge("trig", 0, "sink", 0)

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrInvalidOutputSlot)
}

// TestCompile_NoRoots tests a graph where every node has inputs.
func TestCompile_NoRoots(t *testing.T) {
	g := NewGraph[int]().
		AddNode("a", trackKernel("a", nil)).
		AddNode("b", trackKernel("b", nil)).
		AddEdge("a", 0, "b", 0).
		AddEdge("b", 0, "a", 0)

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrNoRoots)
}

// TestCompile_ExitOutsideFrame tests an Exit in the root frame.
func TestCompile_ExitOutsideFrame(t *testing.T) {
	g := NewGraph[int]().
		AddNode("a", constKernel(1)).
		AddExit("exit").
		AddEdge("a", 0, "exit", 0)

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrExitOutsideFrame)
}

// TestCompile_FrameMismatch tests a node reachable under two frames.
func TestCompile_FrameMismatch(t *testing.T) {
	g := NewGraph[int]().
		AddNode("seed", constKernel(0)).
		AddEnter("enter", "f").
		AddNode("inner", trackKernel("inner", nil)).
		AddNode("torn", addKernel).
		AddEdge("seed", 0, "enter", 0).
		AddEdge("enter", 0, "inner", 0).
		// torn consumes from inside the frame and from the root frame.
		AddEdge("inner", 0, "torn", 0).
		AddEdge("seed", 0, "torn", 1)

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrFrameMismatch)
}

// TestCompile_ParallelIterationsMismatch tests disagreeing Enter nodes.
func TestCompile_ParallelIterationsMismatch(t *testing.T) {
	g := NewGraph[int]().
		AddNode("a", constKernel(1)).
		AddNode("b", constKernel(2)).
		AddEnter("e1", "f", WithParallelIterations(2)).
		AddEnter("e2", "f", WithParallelIterations(5)).
		AddNode("sum", addKernel).
		AddEdge("a", 0, "e1", 0).
		AddEdge("b", 0, "e2", 0).
		AddEdge("e1", 0, "sum", 0).
		AddEdge("e2", 0, "sum", 1)

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrParallelIterationsMismatch)
}

// TestCompile_KernelNotFound tests AddOp with an unregistered name.
func TestCompile_KernelNotFound(t *testing.T) {
	g := NewGraph[int]().AddOp("op", "no-such-op")

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrKernelNotFound)
}

// TestCompile_OpResolvedFromRegistry tests registry-backed kernels.
func TestCompile_OpResolvedFromRegistry(t *testing.T) {
	RegisterKernel("compile-test-triple", func(_ Context, in []int) ([]int, error) {
		return []int{in[0] * 3}, nil
	})

	g := NewGraph[int]().
		AddNode("seed", constKernel(5)).
		AddOp("triple", "compile-test-triple").
		AddEdge("seed", 0, "triple", 0)

	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(testCtx(), WithFetch("triple"))
	require.NoError(t, err)
	assert.Equal(t, []int{15}, out["triple"])
}

// TestCompile_MultipleErrorsJoined tests that validation reports all
// problems at once.
func TestCompile_MultipleErrorsJoined(t *testing.T) {
	g := NewGraph[int]().
		AddNode("a", constKernel(1)).
		AddNode("b", constKernel(2)).
		AddNode("sum", addKernel).
		AddMerge("m").
		AddEdge("a", 0, "sum", 0).
		AddEdge("b", 0, "sum", 0).
		AddControlEdge("a", "m")

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrDuplicateInputSlot)
	assert.ErrorIs(t, err, ErrInputArity)
}

// TestCompile_Introspection tests the compiled graph's read API.
func TestCompile_Introspection(t *testing.T) {
	g := NewGraph[int]().
		AddNode("a", constKernel(1)).
		AddNode("b", trackKernel("b", nil)).
		AddNode("c", trackKernel("c", nil)).
		AddEdge("a", 0, "b", 0).
		AddEdge("a", 0, "c", 0)

	compiled, err := g.Compile()
	require.NoError(t, err)

	assert.Equal(t, 3, compiled.NumNodes())
	assert.Equal(t, []string{"a", "b", "c"}, compiled.NodeNames())
	assert.True(t, compiled.HasNode("a"))
	assert.False(t, compiled.HasNode("ghost"))
	assert.Nil(t, compiled.Node("ghost"))
	require.NotNil(t, compiled.Node("b"))
	assert.Equal(t, KindOp, compiled.Node("b").Kind)
	assert.ElementsMatch(t, []string{"b", "c"}, compiled.Successors("a"))
	assert.Nil(t, compiled.Successors("ghost"))

	roots := compiled.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "a", roots[0].Name)
	assert.Equal(t, []string{""}, compiled.FrameNames())
}

// TestCompile_FrameAssignment tests the Enter/Exit frame analysis.
func TestCompile_FrameAssignment(t *testing.T) {
	g := buildCountingLoop(3, nil)
	compiled, err := g.Compile()
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"", "count"}, compiled.FrameNames())
	// The Enter executes in the parent frame; the loop body inside.
	assert.Equal(t, "", compiled.Node("enter").FrameName())
	assert.Equal(t, "count", compiled.Node("head").FrameName())
	assert.Equal(t, "count", compiled.Node("incr").FrameName())
	assert.Equal(t, "count", compiled.Node("exit").FrameName())
	// Switch has two outputs, merge one.
	assert.Equal(t, 2, compiled.Node("more").NumOutputs)
	assert.Equal(t, 1, compiled.Node("head").NumOutputs)
}
