package framegraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph compilation.
var (
	// ErrEmptyGraph indicates Compile() was called on a graph with no nodes.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrNoRoots indicates no node has zero inputs, so nothing can start.
	ErrNoRoots = errors.New("graph has no root nodes")

	// ErrNodeNotFound indicates an edge references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrKernelNotFound indicates AddOp named an unregistered kernel.
	ErrKernelNotFound = errors.New("kernel not registered")

	// ErrDuplicateInputSlot indicates two data edges target the same input slot.
	ErrDuplicateInputSlot = errors.New("duplicate input slot")

	// ErrMissingInputSlot indicates a node's input slots are not contiguous from 0.
	ErrMissingInputSlot = errors.New("missing input slot")

	// ErrInputArity indicates a node has the wrong number of data inputs for its kind.
	ErrInputArity = errors.New("wrong input arity for node kind")

	// ErrInvalidOutputSlot indicates a data edge leaves an output slot its
	// source node kind can never produce.
	ErrInvalidOutputSlot = errors.New("invalid output slot for node kind")

	// ErrFrameMismatch indicates control-flow analysis assigned a node two
	// different frames, i.e. the Enter/Exit structure is malformed.
	ErrFrameMismatch = errors.New("inconsistent frame assignment")

	// ErrExitOutsideFrame indicates an Exit node in the root frame.
	ErrExitOutsideFrame = errors.New("exit node outside any frame")

	// ErrParallelIterationsMismatch indicates the Enter nodes of one frame
	// disagree on the parallel-iterations bound.
	ErrParallelIterationsMismatch = errors.New("enter nodes disagree on parallel iterations")
)

// Sentinel errors for execution.
var (
	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrMaxNodeExecutions indicates a run exceeded the configured node
	// execution budget, usually a loop that never terminates.
	ErrMaxNodeExecutions = errors.New("exceeded maximum node executions")

	// ErrFetchNotFound indicates WithFetch named an unknown node.
	ErrFetchNotFound = errors.New("fetch node not found")
)

// NodeError wraps an error with node context: which node failed and in
// which frame/iteration it was executing.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// FrameName is the enclosing frame; empty for the root frame.
	FrameName string
	// Iter is the iteration the activation belonged to.
	Iter int64
	// Err is the underlying error from the kernel.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.FrameName == "" {
		return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
	}
	return fmt.Sprintf("node %s (frame %s, iter %d): %v", e.NodeID, e.FrameName, e.Iter, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from kernel execution.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError captures the state when execution was cancelled.
type CancellationError struct {
	// NodeID is the node that was about to execute, if any.
	NodeID string
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("run cancelled: %v", e.Cause)
	}
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// SwitchError wraps a predicate failure on a Switch node.
type SwitchError struct {
	// NodeID is the Switch node whose predicate failed.
	NodeID string
	// Err is the error returned by the predicate.
	Err error
}

// Error implements the error interface.
func (e *SwitchError) Error() string {
	return fmt.Sprintf("switch %s predicate: %v", e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *SwitchError) Unwrap() error {
	return e.Err
}

// MaxNodeExecutionsError provides context when the execution budget is
// exceeded.
type MaxNodeExecutionsError struct {
	// Max is the configured budget.
	Max int
	// LastNodeID is the node that would have executed next.
	LastNodeID string
}

// Error implements the error interface.
func (e *MaxNodeExecutionsError) Error() string {
	return fmt.Sprintf("exceeded maximum node executions (%d) at node %s", e.Max, e.LastNodeID)
}

// Unwrap returns ErrMaxNodeExecutions for errors.Is support.
func (e *MaxNodeExecutionsError) Unwrap() error {
	return ErrMaxNodeExecutions
}
