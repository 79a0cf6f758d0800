package framegraph

import (
	"runtime"

	"github.com/randalmurphal/framegraph/pkg/framegraph/config"
	"github.com/randalmurphal/framegraph/pkg/framegraph/journal"
)

// runConfig holds configuration for graph execution.
type runConfig struct {
	maxConcurrency    int
	maxNodeExecutions int
	runID             string
	journal           journal.Store
	fetches           []string
	enableMetrics     bool
	enableTracing     bool
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxConcurrency:    runtime.GOMAXPROCS(0),
		maxNodeExecutions: 100000,
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxConcurrency sets the number of worker goroutines executing ready
// nodes. Default: GOMAXPROCS.
//
// One worker yields fully deterministic scheduling for graphs whose loops
// use a parallel-iterations bound of 1.
func WithMaxConcurrency(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// WithMaxNodeExecutions sets the maximum number of node activations per
// run. Default: 100000.
//
// This prevents infinite loops from hanging forever. If a run exceeds
// this limit, Run returns ErrMaxNodeExecutions.
//
// Example:
//
//	result, err := compiled.Run(ctx, framegraph.WithMaxNodeExecutions(500))
func WithMaxNodeExecutions(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxNodeExecutions = n
		}
	}
}

// WithRunID sets the run identifier used for journaling and logging.
// If not set, the context's run ID is used.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithJournal enables execution journaling to the given store. Every
// completed activation is appended as a journal record. Journal failures
// are logged and do not fail the run.
func WithJournal(store journal.Store) RunOption {
	return func(c *runConfig) {
		c.journal = store
	}
}

// WithFetch names a node whose outputs should be captured and returned
// from Run. May be given multiple times. Fetching an unknown node fails
// compilation of the run with ErrFetchNotFound.
//
// For nodes inside loop frames the captured outputs are those of the last
// live activation.
func WithFetch(nodeIDs ...string) RunOption {
	return func(c *runConfig) {
		c.fetches = append(c.fetches, nodeIDs...)
	}
}

// WithMetrics enables OpenTelemetry metrics for this run.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		c.enableMetrics = enabled
	}
}

// WithTracing enables OpenTelemetry tracing for this run.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.enableTracing = enabled
	}
}

// FromConfig derives run options from a configuration section. Recognized
// keys:
//
//	max_concurrency:     int
//	max_node_executions: int
//	run_id:              string
//	metrics:             bool
//	tracing:             bool
//
// Journal stores hold resources and are wired explicitly with
// WithJournal, not through configuration.
func FromConfig(cfg config.Config) []RunOption {
	var opts []RunOption
	if cfg.Has("max_concurrency") {
		opts = append(opts, WithMaxConcurrency(cfg.Int("max_concurrency", 0)))
	}
	if cfg.Has("max_node_executions") {
		opts = append(opts, WithMaxNodeExecutions(cfg.Int("max_node_executions", 0)))
	}
	if id := cfg.String("run_id", ""); id != "" {
		opts = append(opts, WithRunID(id))
	}
	if cfg.Has("metrics") {
		opts = append(opts, WithMetrics(cfg.Bool("metrics", false)))
	}
	if cfg.Has("tracing") {
		opts = append(opts, WithTracing(cfg.Bool("tracing", false)))
	}
	return opts
}
