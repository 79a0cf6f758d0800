package framegraph

import (
	"fmt"
	"sync"

	"github.com/randalmurphal/framegraph/pkg/framegraph/pending"
)

// iterationState is one execution instance of a frame body. It owns a
// disjoint flat array of input entries and a private copy of the frame's
// pending-count template.
type iterationState[T any] struct {
	iterNum int64

	// inputTensors is indexed by node.inputStart + slot. Written at most
	// once per slot per iteration, cleared by the executor on
	// consumption, freed with the iteration.
	inputTensors []Entry[T]

	counts *pending.Counts

	// outstandingOps counts node activations currently in flight for
	// this iteration; the iteration cannot be cleaned up before it
	// reaches zero.
	outstandingOps int

	// outstandingFrameCount counts live child frames created within this
	// iteration.
	outstandingFrameCount int
}

func newIterationState[T any](info *frameInfo[T], iterNum int64) *iterationState[T] {
	return &iterationState[T]{
		iterNum:      iterNum,
		inputTensors: make([]Entry[T], info.totalInputs),
		counts:       pending.NewCounts(info.layout),
	}
}

// deferredEntry is a node activation postponed until a parallelism slot
// frees up (next_iter_roots) or replayed into every iteration
// (loop invariants).
type deferredEntry[T any] struct {
	item  *NodeItem[T]
	entry Entry[T]
}

// frameState is one dynamic activation of a frame, uniquely identified by
// (parent frame, parent iteration, frame name).
//
// All mutable fields are guarded by mu. Lock discipline: the propagator's
// directory lock may be held while acquiring mu (frame creation); mu is
// never held while acquiring the directory lock or another frame's mu.
type frameState[T any] struct {
	info    *frameInfo[T]
	frameID uint64

	// parentFrame points up the frame tree; it is a back reference, not
	// an owning one. Nil for the root frame.
	parentFrame *frameState[T]
	parentIter  int64

	maxParallelIterations int64

	mu sync.Mutex

	// iterations is a ring of maxParallelIterations+1 slots indexed by
	// iter % len(iterations).
	iterations []*iterationState[T]

	// iterationCount is the highest iteration number started.
	iterationCount int64

	// numOutstandingIterations counts iterations not yet cleaned up.
	numOutstandingIterations int

	// numPendingInputs counts Enter executions this frame still expects.
	numPendingInputs int

	// invValues holds loop-invariant values replayed into every new
	// iteration.
	invValues []deferredEntry[T]

	// nextIterRoots holds NextIteration activations deferred until an
	// iteration slot frees up under the parallelism bound.
	nextIterRoots []deferredEntry[T]

	// deadExits holds Exit nodes that received only dead inputs in the
	// latest iteration; they fire in the parent frame only once the loop
	// is known to have terminated.
	deadExits []*NodeItem[T]
}

func newFrameState[T any](info *frameInfo[T], frameID uint64, parent *frameState[T], parentIter int64) *frameState[T] {
	parallel := info.parallel
	f := &frameState[T]{
		info:                  info,
		frameID:               frameID,
		parentFrame:           parent,
		parentIter:            parentIter,
		maxParallelIterations: int64(parallel),
		iterations:            make([]*iterationState[T], parallel+1),
		numPendingInputs:      info.numEnters,
	}
	f.iterations[0] = newIterationState(info, 0)
	f.numOutstandingIterations = 1
	return f
}

// iterationLocked returns the live iteration state for iter.
// Panics if the iteration was never created or already cleaned up; that
// indicates corrupted accounting, not a runtime condition.
func (f *frameState[T]) iterationLocked(iter int64) *iterationState[T] {
	is := f.iterations[iter%int64(len(f.iterations))]
	if is == nil || is.iterNum != iter {
		panic(fmt.Sprintf("framegraph: no live iteration %d in frame %q", iter, f.info.name))
	}
	return is
}

// activateNodesLocked propagates one node's outputs to its consumers
// within this frame at the given iteration, appending every consumer
// that became ready to ready. The fast path skips merge/control-trigger
// bookkeeping when compile time proved no consumer needs it.
func (f *frameState[T]) activateNodesLocked(item *NodeItem[T], isDead bool, iter int64, outputs []Entry[T], ready *TaggedNodeSeq[T]) {
	if item.anyConsumerMergeOrTrigger {
		f.activateNodesSlowLocked(item, isDead, iter, outputs, ready)
	} else {
		f.activateNodesFastLocked(item, isDead, iter, outputs, ready)
	}
}

// activateNodesFastLocked handles the common case: every consumer is an
// ordinary node, so a single pending decrement per edge suffices.
func (f *frameState[T]) activateNodesFastLocked(item *NodeItem[T], isDead bool, iter int64, outputs []Entry[T], ready *TaggedNodeSeq[T]) {
	is := f.iterationLocked(iter)
	for _, e := range item.outEdges {
		dst := e.dst
		incrementDead := isDead
		if !e.isControl() {
			incrementDead = isDead || outputs[e.srcSlot].Dead
			is.inputTensors[dst.inputStart+e.dstSlot] = outputs[e.srcSlot]
		}
		p, d := is.counts.AdjustForActivation(dst.pendingHandle, incrementDead)
		if p == 0 {
			*ready = append(*ready, TaggedNode[T]{Item: dst, IsDead: d > 0, frame: f, iter: iter})
			is.outstandingOps++
		}
	}
}

// activateNodesSlowLocked additionally handles Merge and ControlTrigger
// consumers. A merge becomes ready on its first live data input once all
// control inputs have arrived, or dead once every data input is dead; a
// control trigger fires regardless and never becomes dead.
func (f *frameState[T]) activateNodesSlowLocked(item *NodeItem[T], isDead bool, iter int64, outputs []Entry[T], ready *TaggedNodeSeq[T]) {
	is := f.iterationLocked(iter)
	for _, e := range item.outEdges {
		dst := e.dst
		h := dst.pendingHandle

		var dstDead, dstReady bool
		needInput := !e.isControl()

		if dst.Kind == KindMerge {
			switch {
			case e.isControl():
				is.counts.DecrementPending(h, 2)
				count := is.counts.Pending(h)
				dstDead = is.counts.DeadCount(h) == dst.NumInputs
				dstReady = count == 0 || (count == 1 && dstDead)
			case !isDead && !outputs[e.srcSlot].Dead:
				// Only the first live input feeds the merge and may
				// trigger it; the low pending bit is set iff no live
				// input has arrived yet.
				count := is.counts.Pending(h)
				is.counts.MarkLive(h)
				dstReady = count == 1
				needInput = count&1 == 1
			default:
				// A dead input. A dead Enter feeding the merge kills it
				// outright; that handles a while loop on the untaken
				// branch of a conditional.
				is.counts.IncrementDeadCount(h)
				dstDead = is.counts.DeadCount(h) == dst.NumInputs || item.Kind == KindEnter
				dstReady = is.counts.Pending(h) == 1 && dstDead
				needInput = false
			}
		} else {
			incrementDead := isDead
			if !e.isControl() {
				incrementDead = isDead || outputs[e.srcSlot].Dead
			}
			p, d := is.counts.AdjustForActivation(h, incrementDead)
			dstDead = d > 0
			dstReady = p == 0
		}

		if dst.Kind == KindControlTrigger {
			dstDead = false
		}

		if needInput {
			slot := e.dstSlot
			if dst.Kind == KindMerge {
				slot = 0
			}
			is.inputTensors[dst.inputStart+slot] = outputs[e.srcSlot]
		}

		if dstReady {
			*ready = append(*ready, TaggedNode[T]{Item: dst, IsDead: dstDead, frame: f, iter: iter})
			is.outstandingOps++
		}
	}
}

// activateDeadExitLocked propagates a known-dead exit from a finished
// child frame into this frame at iter. No entry is written; consumers
// only observe a dead input.
func (f *frameState[T]) activateDeadExitLocked(item *NodeItem[T], iter int64, ready *TaggedNodeSeq[T]) {
	is := f.iterationLocked(iter)
	for _, e := range item.outEdges {
		dst := e.dst
		h := dst.pendingHandle

		var dstDead, dstReady bool
		if dst.Kind == KindMerge {
			if e.isControl() {
				is.counts.DecrementPending(h, 2)
				count := is.counts.Pending(h)
				dstDead = is.counts.DeadCount(h) == dst.NumInputs
				dstReady = count == 0 || (count == 1 && dstDead)
			} else {
				is.counts.IncrementDeadCount(h)
				dstDead = is.counts.DeadCount(h) == dst.NumInputs
				dstReady = is.counts.Pending(h) == 1 && dstDead
			}
		} else {
			p, d := is.counts.AdjustForActivation(h, true)
			dstDead = d > 0
			dstReady = p == 0
		}
		if dst.Kind == KindControlTrigger {
			dstDead = false
		}
		if dstReady {
			*ready = append(*ready, TaggedNode[T]{Item: dst, IsDead: dstDead, frame: f, iter: iter})
			is.outstandingOps++
		}
	}
}

// addLoopInvLocked captures a loop-invariant value and makes it available
// to the current and all future iterations, exactly once per iteration.
func (f *frameState[T]) addLoopInvLocked(item *NodeItem[T], entry Entry[T], ready *TaggedNodeSeq[T]) {
	f.invValues = append(f.invValues, deferredEntry[T]{item: item, entry: entry})

	outputs := []Entry[T]{entry}
	for i := int64(0); i <= f.iterationCount; i++ {
		if f.iterations[i%int64(len(f.iterations))] != nil {
			f.activateNodesLocked(item, entry.Dead, i, outputs, ready)
		}
	}
}

// incrementIterationLocked starts iteration iterationCount+1: allocates
// its state, drains deferred NextIteration activations into it and
// replays the captured loop invariants.
func (f *frameState[T]) incrementIterationLocked(ready *TaggedNodeSeq[T]) {
	f.iterationCount++
	next := f.iterationCount
	slot := next % int64(len(f.iterations))
	if f.iterations[slot] != nil {
		panic(fmt.Sprintf("framegraph: iteration ring slot for %d still occupied in frame %q", next, f.info.name))
	}
	f.iterations[slot] = newIterationState(f.info, next)
	f.numOutstandingIterations++

	// A new iteration supersedes dead exits observed in the previous one.
	f.deadExits = f.deadExits[:0]

	f.activateNextsLocked(next, ready)
	f.activateLoopInvsLocked(next, ready)
}

// activateNextsLocked drains the deferred NextIteration activations into
// iteration iter.
func (f *frameState[T]) activateNextsLocked(iter int64, ready *TaggedNodeSeq[T]) {
	for _, d := range f.nextIterRoots {
		f.activateNodesLocked(d.item, d.entry.Dead, iter, []Entry[T]{d.entry}, ready)
	}
	f.nextIterRoots = f.nextIterRoots[:0]
}

// activateLoopInvsLocked replays every captured loop invariant into
// iteration iter.
func (f *frameState[T]) activateLoopInvsLocked(iter int64, ready *TaggedNodeSeq[T]) {
	for _, d := range f.invValues {
		f.activateNodesLocked(d.item, d.entry.Dead, iter, []Entry[T]{d.entry}, ready)
	}
}

// decrementOutstandingOps records the completion of one node invocation
// in iter and runs iteration cleanup if it was the last. Returns true if
// the whole frame is now done.
func (f *frameState[T]) decrementOutstandingOps(iter int64, ready *TaggedNodeSeq[T]) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decrementOutstandingOpsLocked(iter, ready)
}

func (f *frameState[T]) decrementOutstandingOpsLocked(iter int64, ready *TaggedNodeSeq[T]) bool {
	is := f.iterationLocked(iter)
	is.outstandingOps--
	if is.outstandingOps < 0 {
		panic(fmt.Sprintf("framegraph: outstanding ops went negative in frame %q iter %d", f.info.name, iter))
	}
	if is.outstandingOps > 0 {
		return false
	}
	return f.cleanupIterationsLocked(iter, ready)
}

// isIterationDoneLocked reports whether iter can be cleaned up: no ops in
// flight, no live child frames, and every lower iteration already gone.
// Iteration 0 additionally waits for all Enter executions.
func (f *frameState[T]) isIterationDoneLocked(iter int64) bool {
	is := f.iterations[iter%int64(len(f.iterations))]
	if is == nil || is.iterNum != iter {
		return false
	}
	if is.outstandingOps != 0 || is.outstandingFrameCount != 0 {
		return false
	}
	if iter == 0 {
		return f.numPendingInputs == 0
	}
	prev := f.iterations[(iter-1)%int64(len(f.iterations))]
	return prev == nil || prev.iterNum != iter-1
}

// cleanupIterationsLocked destroys finished iterations in strictly
// increasing order starting at iter, starting a deferred iteration
// whenever a parallelism slot frees up. Returns true if the frame itself
// is now done. Calling it again with no new completions is a no-op.
func (f *frameState[T]) cleanupIterationsLocked(iter int64, ready *TaggedNodeSeq[T]) bool {
	curr := iter
	for curr <= f.iterationCount && f.isIterationDoneLocked(curr) {
		f.iterations[curr%int64(len(f.iterations))] = nil
		f.numOutstandingIterations--
		if f.numOutstandingIterations < 0 {
			panic(fmt.Sprintf("framegraph: outstanding iterations went negative in frame %q", f.info.name))
		}
		curr++
		if len(f.nextIterRoots) > 0 {
			f.incrementIterationLocked(ready)
		}
	}
	return f.isFrameDoneLocked()
}

// isFrameDoneLocked reports whether the frame has no pending Enter
// executions and no live iterations.
func (f *frameState[T]) isFrameDoneLocked() bool {
	return f.numPendingInputs == 0 && f.numOutstandingIterations == 0
}
