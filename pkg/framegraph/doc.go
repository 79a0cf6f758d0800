/*
Package framegraph provides a frame-aware dataflow execution engine for
graphs with loops and conditionals.

# Overview

framegraph is a Go library for building and executing directed dataflow
graphs where every node fires as soon as its inputs arrive. Unlike a
topological-order executor, it supports cyclic structures: loops are
expressed with Enter/Exit/NextIteration nodes that open, iterate and
close dynamic loop frames, and conditionals with Switch/Merge nodes that
route values and propagate dead markers down untaken branches.

The design centers on three pieces:

  - A builder (Graph) with compile-time validation of the Enter/Exit
    frame structure
  - An immutable CompiledGraph shareable across concurrent runs
  - A per-run Propagator tracking frames, iterations, pending counts
    and dead values

Multiple iterations of one loop may run concurrently, bounded by the
frame's parallel-iterations setting.

# Basic Usage

Create a graph with nodes and edges, then compile and run:

	double := func(ctx framegraph.Context, in []int) ([]int, error) {
	    return []int{in[0] * 2}, nil
	}

	g := framegraph.NewGraph[int]()
	g.AddNode("source", func(ctx framegraph.Context, _ []int) ([]int, error) {
	    return []int{21}, nil
	})
	g.AddNode("double", double)
	g.AddEdge("source", 0, "double", 0)

	compiled, err := g.Compile()
	if err != nil {
	    log.Fatal(err)
	}

	ctx := framegraph.NewContext(context.Background())
	out, err := compiled.Run(ctx, framegraph.WithFetch("double"))
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(out["double"][0]) // 42

# Conditionals

A Switch routes its input to one of two outputs based on a predicate;
the untaken side receives a dead marker. A Merge forwards the first live
input it sees:

	g.AddSwitch("branch", func(ctx framegraph.Context, v int) (bool, error) {
	    return v > 0, nil
	})
	g.AddEdge("branch", 0, "negative", 0) // predicate false
	g.AddEdge("branch", 1, "positive", 0) // predicate true
	g.AddMerge("join")
	g.AddEdge("negative", 0, "join", 0)
	g.AddEdge("positive", 0, "join", 1)

Dead markers flow through ordinary nodes without running their kernels,
so the whole untaken branch is skipped at near-zero cost.

# Loops

A loop frame is delimited by Enter and Exit nodes, with a
Merge/Switch/NextIteration cycle driving the iteration:

	g.AddEnter("enter", "while")
	g.AddMerge("head")
	g.AddSwitch("cond", pred)
	g.AddNode("body", bodyKernel)
	g.AddNextIteration("next")
	g.AddExit("exit")

	g.AddEdge("enter", 0, "head", 0)
	g.AddEdge("head", 0, "cond", 0)
	g.AddEdge("cond", 1, "body", 0)  // predicate true: iterate
	g.AddEdge("cond", 0, "exit", 0)  // predicate false: leave
	g.AddEdge("body", 0, "next", 0)
	g.AddEdge("next", 0, "head", 1)

Loop-invariant values entering through a constant Enter (WithConstant)
are delivered to every iteration without being recomputed. Runaway loops are stopped by the node execution budget
(default 100000), configurable with WithMaxNodeExecutions.

# Journaling

Record every completed activation to a persistent journal:

	store, err := journal.NewSQLiteStore("./journal.db")
	defer store.Close()

	out, err := compiled.Run(ctx,
	    framegraph.WithJournal(store),
	    framegraph.WithRunID("run-123"))

	recs, err := store.List("run-123") // activations in completion order

Journal failures are logged and never fail the run.

# Observability

Enable logging, metrics, and tracing:

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := framegraph.NewContext(context.Background(),
	    framegraph.WithLogger(logger))

	out, err := compiled.Run(ctx,
	    framegraph.WithMetrics(true),
	    framegraph.WithTracing(true))

Logs include structured fields: run_id, node_id, frame, iter.
OpenTelemetry metrics: framegraph.node.executions, framegraph.node.latency_ms, etc.
OpenTelemetry tracing: framegraph.run > framegraph.node.{id} spans.

# Error Handling

Errors include context about which activation failed:

	out, err := compiled.Run(ctx)
	var nodeErr *framegraph.NodeError
	if errors.As(err, &nodeErr) {
	    log.Printf("node %s (frame %s, iter %d): %v",
	        nodeErr.NodeID, nodeErr.FrameName, nodeErr.Iter, nodeErr.Err)
	}

Panics in kernels are recovered and converted to PanicError with a stack
trace.

# Thread Safety

  - Graph[T] is NOT safe for concurrent use during construction
  - CompiledGraph[T] IS safe for concurrent use (immutable)
  - Propagator[T] IS safe for concurrent use within its run
  - journal.Store implementations are safe for concurrent use

# Subpackages

  - pending: pending-count bookkeeping shared by all iterations
  - journal: execution journal storage (memory, SQLite)
  - observability: logging, metrics, and tracing helpers
  - registry: generic thread-safe registries
  - config: YAML configuration loading
*/
package framegraph
