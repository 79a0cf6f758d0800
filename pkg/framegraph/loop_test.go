package framegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/framegraph/pkg/framegraph/journal"
)

// TestLoop_CountsToLimit tests a basic while loop.
func TestLoop_CountsToLimit(t *testing.T) {
	tr := &tracker{}
	g := buildCountingLoop(3, tr)
	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(testCtx(), WithFetch("exit"))
	require.NoError(t, err)
	assert.Equal(t, []int{3}, out["exit"])
	assert.Equal(t, 3, tr.count("incr"))
}

// TestLoop_ZeroIterations tests a loop whose condition is false on entry.
func TestLoop_ZeroIterations(t *testing.T) {
	tr := &tracker{}
	g := buildCountingLoop(0, tr)
	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(testCtx(), WithFetch("exit"))
	require.NoError(t, err)
	assert.Equal(t, []int{0}, out["exit"])
	assert.Equal(t, 0, tr.count("incr"))
}

// TestLoop_ManyIterations tests the iteration ring beyond the default
// parallelism window.
func TestLoop_ManyIterations(t *testing.T) {
	g := buildCountingLoop(100, nil)
	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(testCtx(), WithFetch("exit"))
	require.NoError(t, err)
	assert.Equal(t, []int{100}, out["exit"])
}

// TestLoop_SingleParallelIteration tests the parallelism bound of one,
// which forces every back edge through the deferred-root path.
func TestLoop_SingleParallelIteration(t *testing.T) {
	tr := &tracker{}
	g := buildCountingLoop(5, tr, WithParallelIterations(1))
	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(testCtx(), WithFetch("exit"))
	require.NoError(t, err)
	assert.Equal(t, []int{5}, out["exit"])
	assert.Equal(t, 5, tr.count("incr"))
}

// TestLoop_TwoParallelIterations tests a loop bounded to two concurrent
// iterations.
func TestLoop_TwoParallelIterations(t *testing.T) {
	tr := &tracker{}
	g := buildCountingLoop(10, tr, WithParallelIterations(2))
	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(testCtx(), WithFetch("exit"))
	require.NoError(t, err)
	assert.Equal(t, []int{10}, out["exit"])
	assert.Equal(t, 10, tr.count("incr"))
}

// TestLoop_DeadLoopBranch tests a loop sitting on the untaken side of a
// conditional: its exit fires exactly once, dead, into the enclosing
// frame, and the merge there resolves from the live branch.
func TestLoop_DeadLoopBranch(t *testing.T) {
	tr := &tracker{}
	g := NewGraph[int]().
		AddNode("source", constKernel(7)).
		AddSwitch("sw", func(_ Context, v int) (bool, error) {
			return v > 0, nil
		}).
		// Untaken side: a whole while loop that never runs.
		AddEnter("enter", "skipped").
		AddMerge("head").
		AddSwitch("more", func(_ Context, v int) (bool, error) {
			return v < 3, nil
		}).
		AddNode("body", trackKernel("body", tr)).
		AddNextIteration("next").
		AddExit("exit").
		// Taken side.
		AddNode("keep", trackKernel("keep", tr)).
		AddMerge("join").
		AddNode("after", func(_ Context, in []int) ([]int, error) {
			tr.add("after")
			return []int{in[0]}, nil
		}).
		AddEdge("source", 0, "sw", 0).
		AddEdge("sw", 0, "enter", 0).
		AddEdge("enter", 0, "head", 0).
		AddEdge("head", 0, "more", 0).
		AddEdge("more", 1, "body", 0).
		AddEdge("body", 0, "next", 0).
		AddEdge("next", 0, "head", 1).
		AddEdge("more", 0, "exit", 0).
		AddEdge("sw", 1, "keep", 0).
		AddEdge("exit", 0, "join", 0).
		AddEdge("keep", 0, "join", 1).
		AddEdge("join", 0, "after", 0)

	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(testCtx(), WithFetch("after"))
	require.NoError(t, err)
	assert.Equal(t, []int{7}, out["after"])
	assert.Equal(t, 0, tr.count("body"))
	assert.Equal(t, 1, tr.count("after"))
}

// TestLoop_ExitFeedsDownstream tests that the exit value reaches consumers
// in the enclosing frame exactly once.
func TestLoop_ExitFeedsDownstream(t *testing.T) {
	tr := &tracker{}
	g := buildCountingLoop(4, nil).
		AddNode("report", func(_ Context, in []int) ([]int, error) {
			tr.add("report")
			return []int{in[0] * 10}, nil
		}).
		AddEdge("exit", 0, "report", 0)

	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(testCtx(), WithFetch("report"))
	require.NoError(t, err)
	assert.Equal(t, []int{40}, out["report"])
	assert.Equal(t, 1, tr.count("report"))
}

// TestLoop_InvariantConstant tests a constant Enter replayed into every
// iteration.
func TestLoop_InvariantConstant(t *testing.T) {
	g := NewGraph[int]().
		AddNode("seed", constKernel(0)).
		AddNode("step", constKernel(5)).
		AddEnter("enter", "acc").
		AddEnter("enterStep", "acc", WithConstant()).
		AddMerge("head").
		AddSwitch("more", func(_ Context, v int) (bool, error) {
			return v < 20, nil
		}).
		AddNode("bump", func(_ Context, in []int) ([]int, error) {
			return []int{in[0] + in[1]}, nil
		}).
		AddNextIteration("next").
		AddExit("exit").
		AddEdge("seed", 0, "enter", 0).
		AddEdge("step", 0, "enterStep", 0).
		AddEdge("enter", 0, "head", 0).
		AddEdge("head", 0, "more", 0).
		AddEdge("more", 1, "bump", 0).
		AddEdge("enterStep", 0, "bump", 1).
		AddEdge("more", 0, "exit", 0).
		AddEdge("bump", 0, "next", 0).
		AddEdge("next", 0, "head", 1)

	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(testCtx(), WithFetch("exit"))
	require.NoError(t, err)
	assert.Equal(t, []int{20}, out["exit"])
}

// TestLoop_Nested tests a loop frame created inside another loop frame.
func TestLoop_Nested(t *testing.T) {
	innerRuns := &tracker{}
	g := NewGraph[int]().
		AddNode("seed", constKernel(0)).
		AddEnter("outerEnter", "outer").
		AddMerge("outerHead").
		AddSwitch("outerMore", func(_ Context, v int) (bool, error) {
			return v < 3, nil
		}).
		// Inner loop: climb the current value up to 3 one step at a time.
		AddEnter("innerEnter", "inner").
		AddMerge("innerHead").
		AddSwitch("innerMore", func(_ Context, v int) (bool, error) {
			return v < 3, nil
		}).
		AddNode("innerIncr", func(_ Context, in []int) ([]int, error) {
			innerRuns.add("inner")
			return []int{in[0] + 1}, nil
		}).
		AddNextIteration("innerNext").
		AddExit("innerExit").
		AddNextIteration("outerNext").
		AddExit("outerExit").
		AddEdge("seed", 0, "outerEnter", 0).
		AddEdge("outerEnter", 0, "outerHead", 0).
		AddEdge("outerHead", 0, "outerMore", 0).
		AddEdge("outerMore", 1, "innerEnter", 0).
		AddEdge("innerEnter", 0, "innerHead", 0).
		AddEdge("innerHead", 0, "innerMore", 0).
		AddEdge("innerMore", 1, "innerIncr", 0).
		AddEdge("innerIncr", 0, "innerNext", 0).
		AddEdge("innerNext", 0, "innerHead", 1).
		AddEdge("innerMore", 0, "innerExit", 0).
		AddEdge("innerExit", 0, "outerNext", 0).
		AddEdge("outerNext", 0, "outerHead", 1).
		AddEdge("outerMore", 0, "outerExit", 0)

	compiled, err := g.Compile()
	require.NoError(t, err)

	out, err := compiled.Run(testCtx(), WithFetch("outerExit"))
	require.NoError(t, err)
	assert.Equal(t, []int{3}, out["outerExit"])
	assert.Equal(t, 3, innerRuns.count("inner"))
}

// TestLoop_JournalShowsIterations tests frame and iteration metadata in
// the journal, including the single live exit among the dead ones.
func TestLoop_JournalShowsIterations(t *testing.T) {
	store := journal.NewMemoryStore()
	defer store.Close()

	g := buildCountingLoop(2, nil)
	compiled, err := g.Compile()
	require.NoError(t, err)

	_, err = compiled.Run(testCtx(),
		WithJournal(store),
		WithRunID("loop-journal"),
		WithMaxConcurrency(1))
	require.NoError(t, err)

	recs, err := store.List("loop-journal")
	require.NoError(t, err)

	liveExits, deadExits := 0, 0
	maxIter := int64(0)
	for _, rec := range recs {
		if rec.NodeID == "exit" {
			if rec.Dead {
				deadExits++
			} else {
				liveExits++
			}
		}
		if rec.FrameName == "count" && rec.Iter > maxIter {
			maxIter = rec.Iter
		}
	}
	assert.Equal(t, 1, liveExits)
	assert.GreaterOrEqual(t, deadExits, 1)
	assert.Equal(t, int64(2), maxIter)
}

// TestLoop_ReenteredFrame tests that a frame entered again by a second run
// of the surrounding graph region starts from fresh state. Two sequential
// runs over the same compiled graph must not share frame state.
func TestLoop_ReenteredFrame(t *testing.T) {
	g := buildCountingLoop(3, nil)
	compiled, err := g.Compile()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		out, err := compiled.Run(testCtx(), WithFetch("exit"))
		require.NoError(t, err)
		assert.Equal(t, []int{3}, out["exit"])
	}
}
