// Package pending provides per-node input counters for readiness detection.
//
// A Layout is built once at graph compile time, one per frame template. It
// assigns every node in the frame a Handle and records the node's initial
// pending count. Each live iteration of the frame materializes the layout
// into a Counts instance and mutates it as inputs arrive.
//
// Counts is NOT safe for concurrent use; callers serialize access under
// the owning frame's mutex.
package pending

// NodeState is the tri-state execution status of a node within one
// iteration.
type NodeState uint8

const (
	// NotStarted means the node is still waiting for inputs.
	NotStarted NodeState = iota
	// Started means the node has been handed to the executor.
	Started
	// Completed means the node finished and its outputs were propagated.
	Completed
)

// Handle identifies a node's counter slot within a Layout.
// Handles are only meaningful for the Layout that issued them.
type Handle int

// Layout assigns counter slots for the nodes of one frame template.
type Layout struct {
	initial []counter
}

// NewLayout creates an empty layout.
func NewLayout() *Layout {
	return &Layout{}
}

// AddNode reserves a counter slot with the given initial pending count and
// returns its handle.
//
// For merge nodes the caller encodes the count as 1 + 2*numControlEdges:
// the low bit is cleared by the first live data input and each control
// arrival decrements by two, so the counter reaches zero exactly when both
// have happened.
func (l *Layout) AddNode(initialPending int) Handle {
	h := Handle(len(l.initial))
	l.initial = append(l.initial, counter{pending: int32(initialPending)})
	return h
}

// Len returns the number of slots in the layout.
func (l *Layout) Len() int {
	return len(l.initial)
}

// counter is the per-node mutable record.
type counter struct {
	pending int32
	dead    int32
	state   NodeState
}

// Counts is a mutable instantiation of a Layout for one iteration.
type Counts struct {
	counters []counter
}

// NewCounts materializes the layout's initial counters.
func NewCounts(l *Layout) *Counts {
	c := &Counts{counters: make([]counter, len(l.initial))}
	copy(c.counters, l.initial)
	return c
}

// Pending returns the current pending count for h.
func (c *Counts) Pending(h Handle) int {
	return int(c.counters[h].pending)
}

// DeadCount returns the number of dead inputs recorded for h.
func (c *Counts) DeadCount(h Handle) int {
	return int(c.counters[h].dead)
}

// State returns the node's tri-state status.
func (c *Counts) State(h Handle) NodeState {
	return c.counters[h].state
}

// DecrementPending lowers the pending count by delta.
// Used for control-edge arrivals at merge nodes (delta 2).
func (c *Counts) DecrementPending(h Handle, delta int) {
	c.counters[h].pending -= int32(delta)
	if c.counters[h].pending < 0 {
		panic("pending: count went negative")
	}
}

// MarkLive records the arrival of the first live data input at a merge
// node by clearing the low bit of the pending count. Returns true if this
// call was the first live arrival.
func (c *Counts) MarkLive(h Handle) bool {
	ctr := &c.counters[h]
	if ctr.pending&1 == 1 {
		ctr.pending--
		return true
	}
	return false
}

// IncrementDeadCount records a dead input. The count only advances while
// the node has not started; once dispatched, deadness is settled.
func (c *Counts) IncrementDeadCount(h Handle) {
	if c.counters[h].state == NotStarted {
		c.counters[h].dead++
	}
}

// MarkStarted transitions the node to Started.
func (c *Counts) MarkStarted(h Handle) {
	c.counters[h].state = Started
}

// MarkCompleted transitions the node to Completed.
func (c *Counts) MarkCompleted(h Handle) {
	c.counters[h].state = Completed
}

// AdjustForActivation records the arrival of one input for an ordinary
// (non-merge) node: the pending count drops by one and, if incrementDead
// is set and the node has not started, the dead count rises by one.
// Returns the updated pending and dead counts; the node is ready when
// pending reaches zero, and runs dead when dead > 0.
func (c *Counts) AdjustForActivation(h Handle, incrementDead bool) (pending, dead int) {
	ctr := &c.counters[h]
	if incrementDead && ctr.state == NotStarted {
		ctr.dead++
	}
	ctr.pending--
	if ctr.pending < 0 {
		panic("pending: count went negative")
	}
	return int(ctr.pending), int(ctr.dead)
}
