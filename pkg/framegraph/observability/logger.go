// Package observability provides production-grade observability features
// for framegraph: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds activation context to a logger.
// Returns a new logger with run_id, node_id, frame, and iter fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "body", "while", 3)
//	enriched.Info("doing work") // includes run_id, node_id, frame, iter
func EnrichLogger(logger *slog.Logger, runID, nodeID, frame string, iter int64) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node_id", nodeID),
		slog.String("frame", frame),
		slog.Int64("iter", iter),
	)
}

// LogRunStart logs the start of a graph run.
func LogRunStart(logger *slog.Logger, runID string, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("graph run starting",
		slog.String("run_id", runID),
		slog.Int("nodes", nodeCount),
	)
}

// LogRunComplete logs successful graph run completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, activations int) {
	if logger == nil {
		return
	}
	logger.Info("graph run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("activations", activations),
	)
}

// LogRunError logs graph run failure.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("graph run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs the start of one node activation.
func LogNodeStart(logger *slog.Logger, nodeID, frame string, iter int64) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
		slog.String("frame", frame),
		slog.Int64("iter", iter),
	)
}

// LogNodeComplete logs successful completion of one node activation.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeDead logs a dead activation: the node's kernel was skipped and
// only dead markers were propagated.
func LogNodeDead(logger *slog.Logger, nodeID, frame string, iter int64) {
	if logger == nil {
		return
	}
	logger.Debug("node dead, kernel skipped",
		slog.String("node_id", nodeID),
		slog.String("frame", frame),
		slog.Int64("iter", iter),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, nodeID, frame string, iter int64, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("frame", frame),
		slog.Int64("iter", iter),
		slog.String("error", err.Error()),
	)
}

// LogJournalError logs a journal append failure (non-fatal).
func LogJournalError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal append failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
