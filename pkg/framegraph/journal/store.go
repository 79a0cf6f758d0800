// Package journal provides persistent execution journals: an append-only
// record of every node activation a run completed, in completion order.
package journal

import (
	"errors"
	"time"
)

// Record is one completed node activation.
type Record struct {
	// RunID identifies the execution run.
	RunID string
	// Seq is the store-assigned position within the run, starting at 1.
	// Zero on input to Append.
	Seq int64
	// NodeID is the node that executed.
	NodeID string
	// FrameName is the loop frame of the activation; empty for the root
	// frame.
	FrameName string
	// Iter is the loop iteration of the activation.
	Iter int64
	// Dead marks an activation that propagated only dead values and ran
	// no kernel.
	Dead bool
	// DurationMs is the kernel execution time. Zero for dead activations.
	DurationMs float64
	// Error holds the kernel error message, empty on success.
	Error string
	// Timestamp is when the activation completed.
	Timestamp time.Time
}

// Store persists execution journals.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append adds a record to a run's journal and returns its assigned
	// sequence number. The record's Seq and Timestamp fields are set by
	// the store.
	Append(rec Record) (int64, error)

	// List returns a run's journal ordered by sequence.
	// Returns an empty slice (not an error) if the run has no records.
	List(runID string) ([]Record, error)

	// DeleteRun removes a run's journal.
	// Returns nil if the run has no records.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for journal operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
