package framegraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/framegraph/pkg/framegraph/journal"
)

// Context provides execution context to kernels.
// It extends context.Context with framegraph-specific services and metadata.
//
// Context is immutable after creation. The executor creates derived contexts
// for each activation with updated node identity and enriched logger.
type Context interface {
	context.Context

	// Services

	// Logger returns the configured logger, enriched with run and node context.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// Journal returns the execution journal store, or nil if not configured.
	// Kernels should check for nil before using.
	Journal() journal.Store

	// Metadata

	// RunID returns the unique identifier for this execution run.
	// Auto-generated if not configured.
	RunID() string

	// NodeID returns the current node being executed.
	// Empty string before execution starts.
	NodeID() string

	// FrameName returns the loop frame the current activation belongs to.
	// Empty string for the root frame.
	FrameName() string

	// Iter returns the loop iteration of the current activation.
	// Always 0 outside loop frames.
	Iter() int64
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger    *slog.Logger
	journal   journal.Store
	runID     string
	nodeID    string
	frameName string
	iter      int64
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// Journal returns the execution journal store.
func (c *executionContext) Journal() journal.Store {
	return c.journal
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// FrameName returns the current activation's frame name.
func (c *executionContext) FrameName() string {
	return c.frameName
}

// Iter returns the current activation's iteration number.
func (c *executionContext) Iter() int64 {
	return c.iter
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with run_id, node_id, frame, and iter during
// execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		c.logger = logger
	}
}

// WithJournalStore sets the execution journal store for the context.
func WithJournalStore(store journal.Store) ContextOption {
	return func(c *executionContext) {
		c.journal = store
	}
}

// WithContextRunID sets the run identifier for the context.
// If not set, a UUID will be auto-generated.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
// The returned Context wraps the provided context.Context and adds
// framegraph-specific services and metadata.
//
// Example:
//
//	ctx := framegraph.NewContext(context.Background(),
//	    framegraph.WithLogger(myLogger),
//	    framegraph.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// withNode returns a new context with the given activation identity set.
// Used internally by the executor to enrich the context per-activation.
func (c *executionContext) withNode(nodeID, frameName string, iter int64) *executionContext {
	return &executionContext{
		Context:   c.Context,
		logger:    c.logger.With("run_id", c.runID, "node_id", nodeID, "frame", frameName, "iter", iter),
		journal:   c.journal,
		runID:     c.runID,
		nodeID:    nodeID,
		frameName: frameName,
		iter:      iter,
	}
}
