package framegraph

// TaggedNode is a scheduled activation of a node within a specific
// (frame, iteration). It is produced when the node's pending-input count
// reaches zero and consumed exactly once by the executor.
type TaggedNode[T any] struct {
	// Item is the node to execute.
	Item *NodeItem[T]
	// IsDead marks the activation as a deadness signal: the node's
	// kernel is skipped and dead markers are propagated instead.
	IsDead bool

	frame *frameState[T]
	iter  int64
}

// TaggedNodeSeq is an append-friendly sequence of activations, filled by
// the propagator and drained by the executor.
type TaggedNodeSeq[T any] []TaggedNode[T]

// spillThreshold is the consumed-prefix length at which the ready queue
// compacts its backing slice instead of letting it grow.
const spillThreshold = 16384

// readyQueue is an amortized-cost FIFO of tagged nodes. Popping advances
// a front index rather than reslicing; once the consumed prefix exceeds
// spillThreshold the remaining elements are copied down so the slice can
// be reused.
//
// Not safe for concurrent use; the executor guards it with its own mutex.
type readyQueue[T any] struct {
	nodes []TaggedNode[T]
	front int
}

// PushBack appends one activation.
func (q *readyQueue[T]) PushBack(t TaggedNode[T]) {
	q.nodes = append(q.nodes, t)
}

// PushAll appends a sequence of activations.
func (q *readyQueue[T]) PushAll(seq TaggedNodeSeq[T]) {
	q.nodes = append(q.nodes, seq...)
}

// PopFront removes and returns the oldest activation.
// Panics if the queue is empty.
func (q *readyQueue[T]) PopFront() TaggedNode[T] {
	if q.Empty() {
		panic("framegraph: pop from empty ready queue")
	}
	t := q.nodes[q.front]
	q.nodes[q.front] = TaggedNode[T]{}
	q.front++
	if q.front >= spillThreshold {
		n := copy(q.nodes, q.nodes[q.front:])
		q.nodes = q.nodes[:n]
		q.front = 0
	}
	return t
}

// Empty reports whether no activations remain.
func (q *readyQueue[T]) Empty() bool {
	return q.front >= len(q.nodes)
}

// Len returns the number of queued activations.
func (q *readyQueue[T]) Len() int {
	return len(q.nodes) - q.front
}
