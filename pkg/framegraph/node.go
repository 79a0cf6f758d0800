package framegraph

import "github.com/randalmurphal/framegraph/pkg/framegraph/pending"

// NodeKind classifies a node's propagation behavior. The kind is resolved
// once at compile time and dispatched via switch, never by name lookup.
type NodeKind uint8

const (
	// KindOp is an ordinary compute node backed by a Kernel.
	KindOp NodeKind = iota
	// KindEnter carries a value from a parent frame into a child frame.
	KindEnter
	// KindExit carries a value out of a frame back to its parent.
	KindExit
	// KindMerge fires on the first live input among its data inputs.
	KindMerge
	// KindNextIteration advances a loop frame to its next iteration.
	KindNextIteration
	// KindSwitch routes its input to one of two outputs based on a
	// predicate; the untaken output receives a dead marker.
	KindSwitch
	// KindControlTrigger always fires, even on dead inputs, and emits
	// only control signals.
	KindControlTrigger
)

// String returns the kind's name.
func (k NodeKind) String() string {
	switch k {
	case KindOp:
		return "Op"
	case KindEnter:
		return "Enter"
	case KindExit:
		return "Exit"
	case KindMerge:
		return "Merge"
	case KindNextIteration:
		return "NextIteration"
	case KindSwitch:
		return "Switch"
	case KindControlTrigger:
		return "ControlTrigger"
	default:
		return "Unknown"
	}
}

// Kernel is the compute function for ordinary nodes. It receives the
// node's input values in slot order and returns one value per output
// slot.
//
// Kernels run concurrently on worker goroutines; a kernel must not retain
// its input slice past the call.
type Kernel[T any] func(ctx Context, inputs []T) ([]T, error)

// PredicateFunc decides which output a Switch node takes: false routes to
// output 0, true to output 1. The untaken side becomes dead.
type PredicateFunc[T any] func(ctx Context, value T) (bool, error)

// edgeInfo is one outgoing edge of a node. srcSlot is -1 for control
// edges.
type edgeInfo[T any] struct {
	srcSlot int
	dst     *NodeItem[T]
	dstSlot int
}

// isControl reports whether the edge carries only a readiness signal.
func (e edgeInfo[T]) isControl() bool { return e.srcSlot < 0 }

// NodeItem is the immutable compiled form of a graph node. It is shared
// read-only across all concurrent executions; none of its fields change
// after Compile returns.
type NodeItem[T any] struct {
	// ID is the node's dense index in the compiled graph.
	ID int
	// Name is the builder-assigned identifier.
	Name string
	// Kind selects the propagation behavior.
	Kind NodeKind
	// NumInputs is the number of data input slots.
	NumInputs int
	// NumOutputs is the number of data output slots consumed by edges.
	NumOutputs int

	kernel Kernel[T]
	pred   PredicateFunc[T]

	// frame is the enclosing frame template: the frame the node executes
	// in. An Enter executes in its parent frame and targets enterFrame;
	// enterConstant/enterParallel carry the loop attributes declared on
	// the builder.
	frame         *frameInfo[T]
	enterFrame    *frameInfo[T]
	enterConstant bool
	enterParallel int

	inputStart    int
	pendingHandle pending.Handle
	numControlIn  int
	outEdges      []edgeInfo[T]

	// anyConsumerMergeOrTrigger selects the slow activation path.
	anyConsumerMergeOrTrigger bool
}

// FrameName returns the name of the node's enclosing frame; empty for the
// root frame.
func (n *NodeItem[T]) FrameName() string { return n.frame.name }
