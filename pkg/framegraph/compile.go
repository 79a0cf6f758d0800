package framegraph

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/framegraph/pkg/framegraph/pending"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Returns an error if validation fails. Multiple errors are joined
// together.
//
// Validation checks (in order):
//  1. Graph is non-empty and all edge endpoints exist
//  2. Input slots are unique and contiguous from 0 per node
//  3. Node kinds have the right data-input arity
//  4. Data edges leave output slots their source kind can produce
//  5. At least one root (zero-input) node exists
//  6. Registry-resolved kernels exist
//  7. The Enter/Exit structure yields a consistent frame assignment
//
// Compilation also builds everything the propagator consumes at run time:
// the per-frame pending-count layouts, flat input-slot offsets, consumer
// edge lists and the root-node list.
func (g *Graph[T]) Compile() (*CompiledGraph[T], error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.order) == 0 {
		return nil, ErrEmptyGraph
	}

	var errs []error

	for _, e := range g.edges {
		if _, ok := g.specs[e.from]; !ok {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrNodeNotFound, e.from))
		}
		if _, ok := g.specs[e.to]; !ok {
			errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrNodeNotFound, e.to))
		}
	}
	if len(errs) > 0 {
		// Later stages index by node name; bail before they can misfire.
		return nil, errors.Join(errs...)
	}

	dataIn := make(map[string][]edgeSpec)
	controlIn := make(map[string]int)
	for _, e := range g.edges {
		if e.fromSlot < 0 {
			controlIn[e.to]++
		} else {
			dataIn[e.to] = append(dataIn[e.to], e)
		}
	}

	errs = append(errs, g.checkSlots(dataIn)...)
	errs = append(errs, g.checkArity(dataIn)...)
	errs = append(errs, g.checkOutputSlots()...)

	var roots []string
	for _, name := range g.order {
		if len(dataIn[name]) == 0 && controlIn[name] == 0 {
			roots = append(roots, name)
		}
	}
	if len(roots) == 0 {
		errs = append(errs, ErrNoRoots)
	}

	// Resolve registry-named kernels.
	for _, name := range g.order {
		spec := g.specs[name]
		if spec.kind == KindOp && spec.kernel == nil {
			k, ok := LookupKernel[T](spec.opName)
			if !ok {
				errs = append(errs, fmt.Errorf("%w: op %q for node '%s'", ErrKernelNotFound, spec.opName, name))
				continue
			}
			spec.kernel = k
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.build(dataIn, controlIn, roots)
}

// checkSlots validates that each node's data input slots are unique and
// contiguous from zero.
func (g *Graph[T]) checkSlots(dataIn map[string][]edgeSpec) []error {
	var errs []error
	for _, name := range g.order {
		edges := dataIn[name]
		seen := make(map[int]bool, len(edges))
		maxSlot := -1
		for _, e := range edges {
			if seen[e.toSlot] {
				errs = append(errs, fmt.Errorf("%w: node '%s' slot %d", ErrDuplicateInputSlot, name, e.toSlot))
			}
			seen[e.toSlot] = true
			if e.toSlot > maxSlot {
				maxSlot = e.toSlot
			}
		}
		for s := 0; s <= maxSlot; s++ {
			if !seen[s] {
				errs = append(errs, fmt.Errorf("%w: node '%s' slot %d", ErrMissingInputSlot, name, s))
			}
		}
	}
	return errs
}

// checkArity validates the data-input count required by each node kind.
func (g *Graph[T]) checkArity(dataIn map[string][]edgeSpec) []error {
	var errs []error
	for _, name := range g.order {
		n := len(dataIn[name])
		var want string
		switch g.specs[name].kind {
		case KindEnter, KindExit, KindNextIteration, KindSwitch:
			if n != 1 {
				want = "exactly 1"
			}
		case KindMerge:
			if n < 1 {
				want = "at least 1"
			}
		case KindControlTrigger:
			if n != 0 {
				want = "no"
			}
		}
		if want != "" {
			errs = append(errs, fmt.Errorf("%w: %s node '%s' requires %s data input(s), has %d",
				ErrInputArity, g.specs[name].kind, name, want, n))
		}
	}
	return errs
}

// checkOutputSlots validates data-edge source slots against the fixed
// output arity of the control-flow kinds: Switch produces slots 0 and 1,
// Enter/Exit/Merge/NextIteration produce slot 0 only, and ControlTrigger
// produces no data output at all. Ordinary ops infer their arity from the
// edges, so nothing is checked for them.
func (g *Graph[T]) checkOutputSlots() []error {
	var errs []error
	for _, e := range g.edges {
		if e.fromSlot < 0 {
			continue
		}
		spec := g.specs[e.from]
		var numOut int
		switch spec.kind {
		case KindSwitch:
			numOut = 2
		case KindEnter, KindExit, KindMerge, KindNextIteration:
			numOut = 1
		case KindControlTrigger:
			numOut = 0
		default:
			continue
		}
		if e.fromSlot >= numOut {
			errs = append(errs, fmt.Errorf("%w: %s node '%s' has no output slot %d",
				ErrInvalidOutputSlot, spec.kind, e.from, e.fromSlot))
		}
	}
	return errs
}

// build constructs the immutable compiled form once validation passed.
func (g *Graph[T]) build(dataIn map[string][]edgeSpec, controlIn map[string]int, rootNames []string) (*CompiledGraph[T], error) {
	items := make([]*NodeItem[T], 0, len(g.order))
	byName := make(map[string]*NodeItem[T], len(g.order))
	for i, name := range g.order {
		spec := g.specs[name]
		item := &NodeItem[T]{
			ID:            i,
			Name:          name,
			Kind:          spec.kind,
			NumInputs:     len(dataIn[name]),
			kernel:        spec.kernel,
			pred:          spec.pred,
			enterConstant: spec.constant,
			enterParallel: spec.parallel,
			numControlIn:  controlIn[name],
		}
		items = append(items, item)
		byName[name] = item
	}

	// Output slot counts: control-flow kinds are fixed, ordinary ops are
	// inferred from the highest referenced output slot.
	for _, item := range items {
		switch item.Kind {
		case KindSwitch:
			item.NumOutputs = 2
		case KindEnter, KindExit, KindMerge, KindNextIteration:
			item.NumOutputs = 1
		case KindControlTrigger:
			item.NumOutputs = 0
		}
	}
	for _, e := range g.edges {
		if e.fromSlot >= 0 {
			src := byName[e.from]
			if e.fromSlot+1 > src.NumOutputs {
				src.NumOutputs = e.fromSlot + 1
			}
		}
	}

	frames, err := g.buildControlFlowInfo(items, byName, rootNames)
	if err != nil {
		return nil, err
	}

	// Per-frame layout: pending-count handles and flat input offsets, in
	// node insertion order so handles are deterministic.
	for _, item := range items {
		fi := item.frame
		initial := item.NumInputs + item.numControlIn
		if item.Kind == KindMerge {
			initial = 1 + 2*item.numControlIn
		}
		item.pendingHandle = fi.layout.AddNode(initial)
		item.inputStart = fi.totalInputs
		fi.totalInputs += item.NumInputs
		fi.nodes = append(fi.nodes, item)
		if item.Kind == KindEnter && item.enterFrame != nil {
			item.enterFrame.numEnters++
		}
	}

	// Consumer edges.
	for _, e := range g.edges {
		src, dst := byName[e.from], byName[e.to]
		src.outEdges = append(src.outEdges, edgeInfo[T]{srcSlot: e.fromSlot, dst: dst, dstSlot: e.toSlot})
		if dst.Kind == KindMerge || dst.Kind == KindControlTrigger {
			src.anyConsumerMergeOrTrigger = true
		}
	}

	roots := make([]*NodeItem[T], 0, len(rootNames))
	for _, name := range rootNames {
		roots = append(roots, byName[name])
	}

	return &CompiledGraph[T]{
		nodes:     items,
		byName:    byName,
		frames:    frames,
		rootFrame: frames[""],
		roots:     roots,
	}, nil
}

// buildControlFlowInfo assigns every node its enclosing frame by walking
// edges breadth-first from the roots. An Enter node belongs to the frame
// of its input; its consumers belong to the frame it enters. An Exit
// belongs to the frame it exits; its consumers rejoin the parent frame.
// Everything else inherits the frame of its inputs. A node reachable
// under two different frames means the Enter/Exit structure is
// malformed.
func (g *Graph[T]) buildControlFlowInfo(items []*NodeItem[T], byName map[string]*NodeItem[T], rootNames []string) (map[string]*frameInfo[T], error) {
	frames := map[string]*frameInfo[T]{
		"": {name: "", parallel: 1, layout: pending.NewLayout()},
	}
	var errs []error

	adjacency := make(map[string][]edgeSpec)
	for _, e := range g.edges {
		adjacency[e.from] = append(adjacency[e.from], e)
	}

	queue := make([]*NodeItem[T], 0, len(rootNames))
	for _, name := range rootNames {
		item := byName[name]
		item.frame = frames[""]
		queue = append(queue, item)
	}

	assign := func(item *NodeItem[T], fi *frameInfo[T]) {
		if item.frame == nil {
			item.frame = fi
			queue = append(queue, item)
		} else if item.frame != fi {
			errs = append(errs, fmt.Errorf("%w: node '%s' reachable in frames '%s' and '%s'",
				ErrFrameMismatch, item.Name, item.frame.name, fi.name))
		}
	}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		srcFrame := curr.frame
		switch curr.Kind {
		case KindEnter:
			name := g.specs[curr.Name].frame
			child, ok := frames[name]
			if !ok {
				child = &frameInfo[T]{
					name:     name,
					parent:   srcFrame,
					parallel: curr.enterParallel,
					layout:   pending.NewLayout(),
				}
				frames[name] = child
			} else {
				if child.parent != srcFrame {
					errs = append(errs, fmt.Errorf("%w: frame '%s' entered from '%s' and '%s'",
						ErrFrameMismatch, child.name, child.parent.name, srcFrame.name))
				}
				if child.parallel != curr.enterParallel {
					errs = append(errs, fmt.Errorf("%w: frame '%s'", ErrParallelIterationsMismatch, child.name))
				}
			}
			curr.enterFrame = child
			srcFrame = child
		case KindExit:
			if srcFrame.parent == nil {
				errs = append(errs, fmt.Errorf("%w: '%s'", ErrExitOutsideFrame, curr.Name))
				continue
			}
			srcFrame = srcFrame.parent
		}

		for _, e := range adjacency[curr.Name] {
			assign(byName[e.to], srcFrame)
		}
	}

	// Unreachable nodes can never execute; warn and park them in the
	// root frame so layout construction stays total.
	for _, item := range items {
		if item.frame == nil {
			slog.Warn("node is unreachable from any root", "node_id", item.Name)
			item.frame = frames[""]
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return frames, nil
}
