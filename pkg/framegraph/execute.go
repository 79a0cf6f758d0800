package framegraph

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/randalmurphal/framegraph/pkg/framegraph/journal"
	"github.com/randalmurphal/framegraph/pkg/framegraph/observability"
)

// Run executes the graph until no activation remains: roots fire first,
// then every node fires as soon as its inputs are ready, with loop frames
// entered, iterated, and torn down as values flow through them.
//
// Nodes execute concurrently on a worker pool (see WithMaxConcurrency).
// Run returns the outputs of the nodes named by WithFetch, keyed by node
// ID, or the first error any kernel produced.
//
// Example:
//
//	out, err := compiled.Run(ctx,
//	    framegraph.WithFetch("result"),
//	    framegraph.WithMaxNodeExecutions(10000))
func (cg *CompiledGraph[T]) Run(ctx Context, opts ...RunOption) (map[string][]T, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	fetchSet := make(map[string]bool, len(cfg.fetches))
	for _, f := range cfg.fetches {
		if !cg.HasNode(f) {
			return nil, fmt.Errorf("%w: '%s'", ErrFetchNotFound, f)
		}
		fetchSet[f] = true
	}

	// Rebase the context on this run's identity and services.
	base, ok := ctx.(*executionContext)
	if !ok {
		base = NewContext(ctx).(*executionContext)
	}
	rebased := *base
	if cfg.runID != "" {
		rebased.runID = cfg.runID
	}
	if cfg.journal != nil {
		rebased.journal = cfg.journal
	}
	runID := rebased.runID

	var metrics observability.MetricsRecorder = observability.NoopMetrics{}
	if cfg.enableMetrics {
		metrics = observability.NewMetricsRecorder()
	}
	var spans observability.SpanManager = observability.NoopSpanManager{}
	if cfg.enableTracing {
		spans = observability.NewSpanManager()
	}

	spanCtx, runSpan := spans.StartRunSpan(rebased.Context, runID)
	rebased.Context = spanCtx

	e := &execution[T]{
		cg:       cg,
		ctx:      &rebased,
		prop:     cg.NewPropagator(runID),
		cfg:      &cfg,
		fetchSet: fetchSet,
		fetched:  make(map[string][]T),
		metrics:  metrics,
		spans:    spans,
	}
	e.cond = sync.NewCond(&e.mu)

	done := observability.TimedOperation()
	observability.LogRunStart(rebased.logger, runID, cg.NumNodes())

	var seed TaggedNodeSeq[T]
	e.prop.ActivateRoots(cg.roots, &seed)
	e.queue.PushAll(seed)

	var wg sync.WaitGroup
	for i := 0; i < cfg.maxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker()
		}()
	}
	wg.Wait()

	durationMs := done()
	metrics.RecordGraphRun(rebased.Context, e.err == nil, time.Duration(durationMs)*time.Millisecond)
	spans.EndSpanWithError(runSpan, e.err)

	if e.err != nil {
		observability.LogRunError(rebased.logger, runID, e.err, durationMs, e.lastNode)
		return nil, e.err
	}
	if !e.prop.Done() {
		err := fmt.Errorf("graph run stalled before completion:\n%s", e.prop.DumpState())
		observability.LogRunError(rebased.logger, runID, err, durationMs, e.lastNode)
		return nil, err
	}

	observability.LogRunComplete(rebased.logger, runID, durationMs, e.executed)
	return e.fetched, nil
}

// execution is the per-run worker-pool state driving one Propagator.
type execution[T any] struct {
	cg   *CompiledGraph[T]
	ctx  *executionContext
	prop *Propagator[T]
	cfg  *runConfig

	// mu guards the ready queue, in-flight count, execution budget and
	// first error. cond wakes idle workers on new work or shutdown.
	mu       sync.Mutex
	cond     *sync.Cond
	queue    readyQueue[T]
	inflight int
	executed int
	err      error
	lastNode string

	fetchSet map[string]bool
	fetchMu  sync.Mutex
	fetched  map[string][]T

	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// worker pops ready activations until the run drains, fails, or exceeds
// its budget.
func (e *execution[T]) worker() {
	for {
		e.mu.Lock()
		for e.queue.Empty() && e.inflight > 0 && e.err == nil {
			e.cond.Wait()
		}
		if e.err != nil || e.queue.Empty() {
			// Drained or aborted; wake the remaining workers so they can
			// observe the same state and exit.
			e.mu.Unlock()
			e.cond.Broadcast()
			return
		}
		t := e.queue.PopFront()
		e.executed++
		if e.executed > e.cfg.maxNodeExecutions {
			e.err = &MaxNodeExecutionsError{Max: e.cfg.maxNodeExecutions, LastNodeID: t.Item.Name}
			e.lastNode = t.Item.Name
			e.mu.Unlock()
			e.cond.Broadcast()
			return
		}
		e.inflight++
		e.mu.Unlock()

		ready, err := e.process(t)

		e.mu.Lock()
		e.inflight--
		if err != nil && e.err == nil {
			e.err = err
			e.lastNode = t.Item.Name
		}
		e.queue.PushAll(ready)
		e.mu.Unlock()
		e.cond.Broadcast()
	}
}

// process runs a single activation: invoke the node, journal the result,
// and propagate its outputs through the frame state.
func (e *execution[T]) process(t TaggedNode[T]) (TaggedNodeSeq[T], error) {
	item := t.Item
	frameName := t.frame.info.name
	iterNum := t.iter

	select {
	case <-e.ctx.Done():
		return nil, &CancellationError{NodeID: item.Name, Cause: e.ctx.Err()}
	default:
	}

	e.prop.MarkStarted(t)
	inputs := e.prop.GetInputTensors(t)

	outputs, durationMs, err := e.invoke(t, inputs)

	e.journalAppend(item.Name, frameName, iterNum, t.IsDead, durationMs, err)

	if err != nil {
		return nil, err
	}

	if e.fetchSet[item.Name] && !t.IsDead {
		vals := make([]T, len(outputs))
		for i, o := range outputs {
			if !o.Dead {
				vals[i] = o.Value
			}
		}
		e.fetchMu.Lock()
		e.fetched[item.Name] = vals
		e.fetchMu.Unlock()
	}

	// Input entries are single-use; release them before propagation so a
	// long-lived iteration does not pin consumed payloads.
	for i := range inputs {
		inputs[i] = Entry[T]{}
	}

	var ready TaggedNodeSeq[T]
	e.prop.PropagateOutputs(t, outputs, &ready)
	return ready, nil
}

// invoke produces an activation's output entries. Dead activations of
// ordinary nodes skip the kernel entirely and emit dead markers; Merge and
// ControlTrigger execute even when dead.
func (e *execution[T]) invoke(t TaggedNode[T], inputs []Entry[T]) ([]Entry[T], float64, error) {
	item := t.Item
	frameName := t.frame.info.name
	iterNum := t.iter
	logger := e.ctx.logger

	if t.IsDead && item.Kind != KindMerge && item.Kind != KindControlTrigger {
		observability.LogNodeDead(logger, item.Name, frameName, iterNum)
		e.metrics.RecordDeadActivation(e.ctx.Context, item.Name)
		return deadEntries[T](item.NumOutputs), 0, nil
	}

	switch item.Kind {
	case KindEnter, KindExit, KindNextIteration:
		return []Entry[T]{inputs[0]}, 0, nil

	case KindMerge:
		if t.IsDead {
			return deadEntries[T](1), 0, nil
		}
		return []Entry[T]{inputs[0]}, 0, nil

	case KindControlTrigger:
		return nil, 0, nil

	case KindSwitch:
		nodeCtx := e.ctx.withNode(item.Name, frameName, iterNum)
		value := inputs[0].Value
		branch, err := item.pred(nodeCtx, value)
		if err != nil {
			serr := &SwitchError{NodeID: item.Name, Err: err}
			observability.LogNodeError(logger, item.Name, frameName, iterNum, serr)
			return nil, 0, &NodeError{NodeID: item.Name, FrameName: frameName, Iter: iterNum, Err: serr}
		}
		outputs := deadEntries[T](2)
		taken := 0
		if branch {
			taken = 1
		}
		outputs[taken] = liveEntry(value)
		return outputs, 0, nil

	default:
		return e.invokeKernel(item, frameName, iterNum, inputs)
	}
}

// invokeKernel runs an ordinary node's kernel with logging, tracing,
// metrics and panic recovery.
func (e *execution[T]) invokeKernel(item *NodeItem[T], frameName string, iterNum int64, inputs []Entry[T]) (outputs []Entry[T], durationMs float64, err error) {
	logger := e.ctx.logger
	nodeCtx := e.ctx.withNode(item.Name, frameName, iterNum)

	spanCtx, span := e.spans.StartNodeSpan(e.ctx.Context, item.Name, frameName, iterNum)
	nodeCtx.Context = spanCtx

	observability.LogNodeStart(logger, item.Name, frameName, iterNum)
	done := observability.TimedOperation()

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{NodeID: item.Name, Value: r, Stack: string(debug.Stack())}
		}
		durationMs = done()
		e.metrics.RecordNodeExecution(e.ctx.Context, item.Name, time.Duration(durationMs)*time.Millisecond, err)
		e.spans.EndSpanWithError(span, err)
		if err != nil {
			observability.LogNodeError(logger, item.Name, frameName, iterNum, err)
		} else {
			observability.LogNodeComplete(logger, item.Name, durationMs)
		}
	}()

	vals := make([]T, len(inputs))
	for i, in := range inputs {
		vals[i] = in.Value
	}

	out, kerr := item.kernel(nodeCtx, vals)
	if kerr != nil {
		err = &NodeError{NodeID: item.Name, FrameName: frameName, Iter: iterNum, Err: kerr}
		return nil, 0, err
	}
	// A kernel must produce every output slot an edge consumes. Extra
	// values beyond the consumed slots are legal; sinks have no out-edges
	// at all, and WithFetch sees everything the kernel returned.
	if len(out) < item.NumOutputs {
		err = &NodeError{
			NodeID: item.Name, FrameName: frameName, Iter: iterNum,
			Err: fmt.Errorf("kernel returned %d outputs, want at least %d", len(out), item.NumOutputs),
		}
		return nil, 0, err
	}

	outputs = make([]Entry[T], len(out))
	for i, v := range out {
		outputs[i] = liveEntry(v)
	}
	return outputs, 0, nil
}

// journalAppend records a completed activation. Journal failures are
// logged, never fatal.
func (e *execution[T]) journalAppend(nodeID, frameName string, iterNum int64, dead bool, durationMs float64, nodeErr error) {
	store := e.ctx.journal
	if store == nil {
		return
	}
	rec := journal.Record{
		RunID:      e.ctx.runID,
		NodeID:     nodeID,
		FrameName:  frameName,
		Iter:       iterNum,
		Dead:       dead,
		DurationMs: durationMs,
	}
	if nodeErr != nil {
		rec.Error = nodeErr.Error()
	}
	_, err := store.Append(rec)
	e.metrics.RecordJournalAppend(e.ctx.Context, nodeID, err)
	if err != nil {
		observability.LogJournalError(e.ctx.logger, nodeID, err)
	}
}
