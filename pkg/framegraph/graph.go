package framegraph

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultParallelIterations is the number of loop iterations a frame may
// run concurrently when the Enter node does not override it.
const DefaultParallelIterations = 10

// Graph is a mutable builder for creating dataflow graphs.
// Use NewGraph to create a graph, then chain AddNode, AddEdge and the
// control-flow constructors (AddEnter, AddExit, AddMerge,
// AddNextIteration, AddSwitch, AddControlTrigger) to define the dataflow.
//
// Nodes with no data or control inputs are the graph's roots and are
// activated unconditionally at the start of every run.
//
// Graph is NOT thread-safe during building. Construct it from a single
// goroutine, then call Compile() to create an immutable CompiledGraph
// that can be safely shared.
//
// Example:
//
//	graph := framegraph.NewGraph[int]().
//	    AddNode("source", sourceKernel).
//	    AddNode("double", doubleKernel).
//	    AddEdge("source", 0, "double", 0)
//
//	compiled, err := graph.Compile()
type Graph[T any] struct {
	mu    sync.Mutex
	specs map[string]*nodeSpec[T]
	order []string
	edges []edgeSpec
}

// nodeSpec is the builder-side description of one node.
type nodeSpec[T any] struct {
	name     string
	kind     NodeKind
	kernel   Kernel[T]
	opName   string
	pred     PredicateFunc[T]
	frame    string
	constant bool
	parallel int
}

// edgeSpec is the builder-side description of one edge.
// fromSlot is -1 for control edges.
type edgeSpec struct {
	from     string
	fromSlot int
	to       string
	toSlot   int
}

// NewGraph creates a new graph builder for value type T.
// The type parameter T is the payload carried along every data edge.
func NewGraph[T any]() *Graph[T] {
	return &Graph[T]{
		specs: make(map[string]*nodeSpec[T]),
	}
}

// AddNode adds an ordinary compute node backed by fn.
// Returns the graph for method chaining.
//
// Panics if:
//   - id is empty or contains whitespace
//   - fn is nil
//   - id already exists in the graph
func (g *Graph[T]) AddNode(id string, fn Kernel[T]) *Graph[T] {
	if fn == nil {
		panic("framegraph: kernel cannot be nil")
	}
	g.add(&nodeSpec[T]{name: id, kind: KindOp, kernel: fn})
	return g
}

// AddOp adds an ordinary compute node whose kernel is resolved from the
// kernel registry at Compile() time. Compilation fails with
// ErrKernelNotFound if no kernel is registered under opName.
func (g *Graph[T]) AddOp(id, opName string) *Graph[T] {
	if opName == "" {
		panic("framegraph: op name cannot be empty")
	}
	g.add(&nodeSpec[T]{name: id, kind: KindOp, opName: opName})
	return g
}

// EnterOption configures an Enter node.
type EnterOption func(*enterConfig)

type enterConfig struct {
	constant bool
	parallel int
}

// WithConstant marks the Enter as loop-invariant: its value is captured
// once and replayed into every iteration of the frame.
func WithConstant() EnterOption {
	return func(c *enterConfig) { c.constant = true }
}

// WithParallelIterations bounds how many iterations of the entered frame
// may run concurrently. All Enter nodes of one frame must agree on the
// bound. Default: DefaultParallelIterations.
func WithParallelIterations(n int) EnterOption {
	return func(c *enterConfig) {
		if n > 0 {
			c.parallel = n
		}
	}
}

// AddEnter adds an Enter node carrying its single input into the frame
// named frameName. The Enter executes in the parent frame; its consumers
// belong to the entered frame.
//
// Panics if frameName is empty; the empty name is reserved for the root
// frame.
func (g *Graph[T]) AddEnter(id, frameName string, opts ...EnterOption) *Graph[T] {
	if frameName == "" {
		panic("framegraph: enter frame name cannot be empty")
	}
	cfg := enterConfig{parallel: DefaultParallelIterations}
	for _, opt := range opts {
		opt(&cfg)
	}
	g.add(&nodeSpec[T]{
		name:     id,
		kind:     KindEnter,
		frame:    frameName,
		constant: cfg.constant,
		parallel: cfg.parallel,
	})
	return g
}

// AddExit adds an Exit node carrying its single input out of the
// enclosing frame back to the parent frame.
func (g *Graph[T]) AddExit(id string) *Graph[T] {
	g.add(&nodeSpec[T]{name: id, kind: KindExit})
	return g
}

// AddMerge adds a Merge node that fires on the first live input among its
// data inputs and emits that value. It fires dead only once all data
// inputs are dead.
func (g *Graph[T]) AddMerge(id string) *Graph[T] {
	g.add(&nodeSpec[T]{name: id, kind: KindMerge})
	return g
}

// AddNextIteration adds a NextIteration node that forwards its single
// input into the next iteration of the enclosing loop frame.
func (g *Graph[T]) AddNextIteration(id string) *Graph[T] {
	g.add(&nodeSpec[T]{name: id, kind: KindNextIteration})
	return g
}

// AddSwitch adds a Switch node routing its single input to output 0
// (pred false) or output 1 (pred true); the untaken side becomes a dead
// marker.
//
// Panics if pred is nil.
func (g *Graph[T]) AddSwitch(id string, pred PredicateFunc[T]) *Graph[T] {
	if pred == nil {
		panic("framegraph: switch predicate cannot be nil")
	}
	g.add(&nodeSpec[T]{name: id, kind: KindSwitch, pred: pred})
	return g
}

// AddControlTrigger adds a ControlTrigger node. It accepts only control
// edges, executes even when all its inputs are dead, and never propagates
// deadness downstream.
func (g *Graph[T]) AddControlTrigger(id string) *Graph[T] {
	g.add(&nodeSpec[T]{name: id, kind: KindControlTrigger})
	return g
}

// AddEdge adds a data edge from output slot fromSlot of one node to input
// slot toSlot of another. Edge validation happens at Compile() time, so
// edges may be added in any order relative to their endpoints.
//
// Panics if either slot is negative.
func (g *Graph[T]) AddEdge(from string, fromSlot int, to string, toSlot int) *Graph[T] {
	if fromSlot < 0 || toSlot < 0 {
		panic("framegraph: edge slots cannot be negative")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges = append(g.edges, edgeSpec{from: from, fromSlot: fromSlot, to: to, toSlot: toSlot})
	return g
}

// AddControlEdge adds a control edge: a pure readiness signal carrying no
// value. The target cannot run until the source has completed.
func (g *Graph[T]) AddControlEdge(from, to string) *Graph[T] {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges = append(g.edges, edgeSpec{from: from, fromSlot: -1, to: to})
	return g
}

// add validates common node constraints and records the spec.
func (g *Graph[T]) add(spec *nodeSpec[T]) {
	if spec.name == "" {
		panic("framegraph: node ID cannot be empty")
	}
	if strings.ContainsAny(spec.name, " \t\n\r") {
		panic("framegraph: node ID cannot contain whitespace")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.specs[spec.name]; exists {
		panic(fmt.Sprintf("framegraph: duplicate node ID: %s", spec.name))
	}
	g.specs[spec.name] = spec
	g.order = append(g.order, spec.name)
}
