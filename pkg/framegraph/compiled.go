package framegraph

import "github.com/randalmurphal/framegraph/pkg/framegraph/pending"

// frameInfo is the static, per-frame-name layout shared by every
// activation of the frame: its nodes, pending-count template, total
// input-slot count and loop attributes. Built once at compile time.
type frameInfo[T any] struct {
	name     string
	parent   *frameInfo[T]
	parallel int

	nodes       []*NodeItem[T]
	layout      *pending.Layout
	totalInputs int
	// numEnters is the number of Enter executions a fresh frame
	// activation still expects before it can be considered complete.
	numEnters int
}

// CompiledGraph is an immutable, executable dataflow graph created by
// calling Compile() on a Graph builder.
//
// CompiledGraph is thread-safe and can be shared by many concurrent
// Run() calls; each run gets its own Propagator and mutable frame state.
type CompiledGraph[T any] struct {
	nodes     []*NodeItem[T]
	byName    map[string]*NodeItem[T]
	frames    map[string]*frameInfo[T]
	rootFrame *frameInfo[T]
	roots     []*NodeItem[T]
}

// NumNodes returns the number of nodes in the graph.
func (cg *CompiledGraph[T]) NumNodes() int {
	return len(cg.nodes)
}

// NodeNames returns all node identifiers in insertion order.
func (cg *CompiledGraph[T]) NodeNames() []string {
	names := make([]string, len(cg.nodes))
	for i, item := range cg.nodes {
		names[i] = item.Name
	}
	return names
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph[T]) HasNode(id string) bool {
	_, exists := cg.byName[id]
	return exists
}

// Node returns the compiled item for an identifier, or nil if unknown.
func (cg *CompiledGraph[T]) Node(id string) *NodeItem[T] {
	return cg.byName[id]
}

// Roots returns the nodes with no inputs; these are activated
// unconditionally at the start of every run.
func (cg *CompiledGraph[T]) Roots() []*NodeItem[T] {
	return cg.roots
}

// Successors returns the identifiers of nodes reached from id via data
// edges. Returns nil for unknown nodes.
func (cg *CompiledGraph[T]) Successors(id string) []string {
	item, ok := cg.byName[id]
	if !ok {
		return nil
	}
	var out []string
	for _, e := range item.outEdges {
		if !e.isControl() {
			out = append(out, e.dst.Name)
		}
	}
	return out
}

// FrameNames returns the names of all frames, including the root frame's
// empty name.
func (cg *CompiledGraph[T]) FrameNames() []string {
	names := make([]string, 0, len(cg.frames))
	for name := range cg.frames {
		names = append(names, name)
	}
	return names
}
