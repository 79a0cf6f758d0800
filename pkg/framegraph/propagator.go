package framegraph

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
)

// Propagator tracks the live frames, live iterations and readiness state
// of one execution of a compiled graph. It is created per run and never
// shared across runs; the compiled graph it reads is shared read-only.
//
// The propagator never blocks: every method is a synchronous,
// lock-protected critical section. The executor drives it by calling
// ActivateRoots once, then PropagateOutputs after each node completes.
type Propagator[T any] struct {
	graph *CompiledGraph[T]
	runID string

	// mu guards the frame directory. It is never held while a frame's
	// own mutex is acquired, except on the frame-creation path.
	mu                sync.RWMutex
	outstandingFrames map[uint64]*frameState[T]

	rootFrame *frameState[T]

	doneMu   sync.Mutex
	rootDone bool
}

// NewPropagator creates the per-run propagation state: the root frame and
// its iteration 0. Advanced callers can drive the propagator directly;
// Run() does this internally.
func (cg *CompiledGraph[T]) NewPropagator(runID string) *Propagator[T] {
	root := newFrameState(cg.rootFrame, frameFingerprint(0, 0, ""), nil, 0)
	return &Propagator[T]{
		graph:             cg,
		runID:             runID,
		outstandingFrames: make(map[uint64]*frameState[T]),
		rootFrame:         root,
	}
}

// frameFingerprint hashes a child frame's identity: the parent frame's
// fingerprint, the parent iteration and the frame name.
func frameFingerprint(parentID uint64, parentIter int64, name string) uint64 {
	h := fnv.New64a()
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], parentID)
	binary.LittleEndian.PutUint64(buf[8:], uint64(parentIter))
	h.Write(buf[:])
	h.Write([]byte(name))
	return h.Sum64()
}

// ActivateRoots seeds the very first scheduling round: every root node
// becomes a live activation of the root frame's iteration 0.
func (p *Propagator[T]) ActivateRoots(roots []*NodeItem[T], ready *TaggedNodeSeq[T]) {
	p.rootFrame.mu.Lock()
	defer p.rootFrame.mu.Unlock()
	is := p.rootFrame.iterationLocked(0)
	for _, item := range roots {
		*ready = append(*ready, TaggedNode[T]{Item: item, frame: p.rootFrame, iter: 0})
		is.outstandingOps++
	}
}

// MarkStarted records that the executor dispatched the activation.
// Required for correct dead-input accounting on merge nodes: dead inputs
// arriving after dispatch no longer change the node's deadness.
func (p *Propagator[T]) MarkStarted(t TaggedNode[T]) {
	t.frame.mu.Lock()
	defer t.frame.mu.Unlock()
	t.frame.iterationLocked(t.iter).counts.MarkStarted(t.Item.pendingHandle)
}

// GetInputTensors returns the activation's input entries: a slice aliasing
// the owning iteration's flat array, stable for the iteration's lifetime.
// The executor reads the inputs from it and clears them after the kernel
// has run.
func (p *Propagator[T]) GetInputTensors(t TaggedNode[T]) []Entry[T] {
	t.frame.mu.Lock()
	defer t.frame.mu.Unlock()
	is := t.frame.iterationLocked(t.iter)
	start := t.Item.inputStart
	return is.inputTensors[start : start+t.Item.NumInputs]
}

// GetFrameAndIter returns the frame fingerprint and iteration the
// activation belongs to, for step tracing and debugging.
func (p *Propagator[T]) GetFrameAndIter(t TaggedNode[T]) (uint64, int64) {
	return t.frame.frameID, t.iter
}

// Done reports whether the root frame has been fully cleaned up, i.e. the
// execution ran to quiescence.
func (p *Propagator[T]) Done() bool {
	p.doneMu.Lock()
	defer p.doneMu.Unlock()
	return p.rootDone
}

// PropagateOutputs updates all downstream state for a completed
// activation and appends every node that became ready to ready. outputs
// must hold an entry for every output slot an edge consumes; entries
// beyond those are ignored. The slice contents are consumed
// destructively.
//
// Depending on the node kind this may enter a new child frame, start or
// defer a loop iteration, resolve an exit into the parent frame, or, on
// the common path, activate same-frame consumers. Afterwards the
// originating iteration's outstanding-op count drops; reaching zero
// triggers ordered iteration cleanup, which can cascade into frame
// deletion and recursively into the enclosing frames.
func (p *Propagator[T]) PropagateOutputs(t TaggedNode[T], outputs []Entry[T], ready *TaggedNodeSeq[T]) {
	item := t.Item
	inputFrame, inputIter := t.frame, t.iter
	isFrameDone := false

	switch item.Kind {
	case KindEnter:
		childFrame := p.findOrCreateChildFrame(inputFrame, inputIter, item)
		childFrame.mu.Lock()
		if item.enterConstant {
			childFrame.addLoopInvLocked(item, outputs[0], ready)
		} else {
			childFrame.activateNodesLocked(item, t.IsDead, 0, outputs, ready)
		}
		childFrame.numPendingInputs--
		if childFrame.numPendingInputs < 0 {
			panic(fmt.Sprintf("framegraph: pending inputs went negative in frame %q", childFrame.info.name))
		}
		childFrame.mu.Unlock()
		inputFrame.mu.Lock()
		inputFrame.iterationLocked(inputIter).counts.MarkCompleted(item.pendingHandle)
		isFrameDone = inputFrame.decrementOutstandingOpsLocked(inputIter, ready)
		inputFrame.mu.Unlock()

	case KindExit:
		if t.IsDead {
			inputFrame.mu.Lock()
			inputFrame.iterationLocked(inputIter).counts.MarkCompleted(item.pendingHandle)
			// Remember dead exits from the latest iteration only; they
			// fire in the parent once the loop is known to be over.
			if inputIter == inputFrame.iterationCount {
				inputFrame.deadExits = append(inputFrame.deadExits, item)
			}
			isFrameDone = inputFrame.decrementOutstandingOpsLocked(inputIter, ready)
			inputFrame.mu.Unlock()
		} else {
			parent, parentIter := inputFrame.parentFrame, inputFrame.parentIter
			if parent == nil {
				panic(fmt.Sprintf("framegraph: exit %q from the root frame", item.Name))
			}
			inputFrame.mu.Lock()
			inputFrame.iterationLocked(inputIter).counts.MarkCompleted(item.pendingHandle)
			inputFrame.mu.Unlock()
			parent.mu.Lock()
			parent.activateNodesLocked(item, false, parentIter, outputs, ready)
			parent.mu.Unlock()
			isFrameDone = inputFrame.decrementOutstandingOps(inputIter, ready)
		}

	case KindNextIteration:
		inputFrame.mu.Lock()
		inputFrame.iterationLocked(inputIter).counts.MarkCompleted(item.pendingHandle)
		if t.IsDead {
			// Deadness stops at the loop boundary; the next iteration is
			// never started by a dead back edge.
		} else if inputIter == inputFrame.iterationCount &&
			int64(inputFrame.numOutstandingIterations) == inputFrame.maxParallelIterations {
			// Reached the parallel-iteration bound; defer until an
			// iteration completes.
			inputFrame.nextIterRoots = append(inputFrame.nextIterRoots, deferredEntry[T]{item: item, entry: outputs[0]})
		} else {
			if inputIter == inputFrame.iterationCount {
				inputFrame.incrementIterationLocked(ready)
			}
			inputFrame.activateNodesLocked(item, false, inputIter+1, outputs, ready)
		}
		isFrameDone = inputFrame.decrementOutstandingOpsLocked(inputIter, ready)
		inputFrame.mu.Unlock()

	default:
		// Ordinary, Merge, Switch and ControlTrigger nodes activate
		// consumers in their own frame and iteration.
		inputFrame.mu.Lock()
		inputFrame.iterationLocked(inputIter).counts.MarkCompleted(item.pendingHandle)
		inputFrame.activateNodesLocked(item, t.IsDead, inputIter, outputs, ready)
		isFrameDone = inputFrame.decrementOutstandingOpsLocked(inputIter, ready)
		inputFrame.mu.Unlock()
	}

	if isFrameDone {
		parent, parentIter := inputFrame.parentFrame, inputFrame.parentIter
		p.deleteFrame(inputFrame, ready)
		if parent != nil {
			// The completion of a frame may complete iterations in its
			// parent, so clean up recursively.
			p.cleanupFramesIterations(parent, parentIter, ready)
		}
	}
}

// findOrCreateChildFrame returns the frame activation an Enter node
// targets, creating it (and its iteration 0) on first use and charging
// it to the parent iteration's outstanding-frame count.
func (p *Propagator[T]) findOrCreateChildFrame(parent *frameState[T], parentIter int64, item *NodeItem[T]) *frameState[T] {
	childID := frameFingerprint(parent.frameID, parentIter, item.enterFrame.name)

	p.mu.RLock()
	child, ok := p.outstandingFrames[childID]
	p.mu.RUnlock()
	if ok {
		return child
	}

	// Construct outside the directory lock; a concurrent Enter may win
	// the race, in which case the speculative frame is discarded.
	fresh := newFrameState(item.enterFrame, childID, parent, parentIter)

	p.mu.Lock()
	defer p.mu.Unlock()
	if child, ok = p.outstandingFrames[childID]; ok {
		return child
	}
	parent.mu.Lock()
	parent.iterationLocked(parentIter).outstandingFrameCount++
	parent.mu.Unlock()
	p.outstandingFrames[childID] = fresh
	return fresh
}

// deleteFrame destroys a finished frame: any remaining dead exits fire in
// the parent frame first, then the frame leaves the directory. The frame
// is quiescent here, so its own fields are read without its lock.
func (p *Propagator[T]) deleteFrame(frame *frameState[T], ready *TaggedNodeSeq[T]) {
	if parent := frame.parentFrame; parent != nil {
		parent.mu.Lock()
		for _, item := range frame.deadExits {
			parent.activateDeadExitLocked(item, frame.parentIter, ready)
		}
		parent.mu.Unlock()

		p.mu.Lock()
		delete(p.outstandingFrames, frame.frameID)
		p.mu.Unlock()
		return
	}

	p.doneMu.Lock()
	p.rootDone = true
	p.doneMu.Unlock()
}

// cleanupFramesIterations releases one child-frame reference on
// (frame, iter) and walks completion up the frame tree as far as it
// cascades.
func (p *Propagator[T]) cleanupFramesIterations(frame *frameState[T], iter int64, ready *TaggedNodeSeq[T]) {
	for frame != nil {
		frame.mu.Lock()
		is := frame.iterationLocked(iter)
		is.outstandingFrameCount--
		if is.outstandingFrameCount < 0 {
			panic(fmt.Sprintf("framegraph: outstanding frame count went negative in frame %q iter %d", frame.info.name, iter))
		}
		frameDone := frame.cleanupIterationsLocked(iter, ready)
		frame.mu.Unlock()

		if !frameDone {
			return
		}
		parent, parentIter := frame.parentFrame, frame.parentIter
		p.deleteFrame(frame, ready)
		frame, iter = parent, parentIter
	}
}

// DumpState renders the live frame/iteration tree for diagnostics. The
// format is not stable.
func (p *Propagator[T]) DumpState() string {
	var b strings.Builder
	fmt.Fprintf(&b, "propagator run=%s\n", p.runID)

	p.mu.RLock()
	frames := make([]*frameState[T], 0, len(p.outstandingFrames)+1)
	frames = append(frames, p.rootFrame)
	for _, f := range p.outstandingFrames {
		frames = append(frames, f)
	}
	p.mu.RUnlock()

	sort.Slice(frames, func(i, j int) bool { return frames[i].frameID < frames[j].frameID })

	for _, f := range frames {
		f.mu.Lock()
		name := f.info.name
		if name == "" {
			name = "<root>"
		}
		fmt.Fprintf(&b, "frame %s id=%x pending_inputs=%d outstanding_iters=%d iteration_count=%d\n",
			name, f.frameID, f.numPendingInputs, f.numOutstandingIterations, f.iterationCount)
		for _, is := range f.iterations {
			if is == nil {
				continue
			}
			fmt.Fprintf(&b, "  iter %d ops=%d child_frames=%d\n",
				is.iterNum, is.outstandingOps, is.outstandingFrameCount)
		}
		f.mu.Unlock()
	}
	return b.String()
}
