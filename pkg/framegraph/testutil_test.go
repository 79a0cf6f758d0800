package framegraph

import (
	"context"
	"sync"
)

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}

// tracker records kernel executions in completion order.
// Safe for concurrent workers.
type tracker struct {
	mu    sync.Mutex
	names []string
}

func (tr *tracker) add(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.names = append(tr.names, name)
}

func (tr *tracker) seen() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]string, len(tr.names))
	copy(out, tr.names)
	return out
}

func (tr *tracker) count(name string) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	n := 0
	for _, s := range tr.names {
		if s == name {
			n++
		}
	}
	return n
}

// constKernel emits the given values, ignoring inputs.
func constKernel(vals ...int) Kernel[int] {
	return func(_ Context, _ []int) ([]int, error) {
		out := make([]int, len(vals))
		copy(out, vals)
		return out, nil
	}
}

// addKernel sums all inputs into one output.
func addKernel(_ Context, in []int) ([]int, error) {
	sum := 0
	for _, v := range in {
		sum += v
	}
	return []int{sum}, nil
}

// trackKernel forwards its single input and records the execution.
func trackKernel(name string, tr *tracker) Kernel[int] {
	return func(_ Context, in []int) ([]int, error) {
		if tr != nil {
			tr.add(name)
		}
		return []int{in[0]}, nil
	}
}

// failKernel returns the given error.
func failKernel(err error) Kernel[int] {
	return func(_ Context, _ []int) ([]int, error) {
		return nil, err
	}
}

// panicKernel panics with the given value.
func panicKernel(value any) Kernel[int] {
	return func(_ Context, _ []int) ([]int, error) {
		panic(value)
	}
}

// buildCountingLoop builds a while loop that counts from 0 up to limit in
// the frame "count": seed -> enter -> head(merge) -> more(switch) with the
// true side incrementing through a NextIteration back edge and the false
// side exiting. The body kernel is tracked under "incr".
func buildCountingLoop(limit int, tr *tracker, enterOpts ...EnterOption) *Graph[int] {
	return NewGraph[int]().
		AddNode("seed", constKernel(0)).
		AddEnter("enter", "count", enterOpts...).
		AddMerge("head").
		AddSwitch("more", func(_ Context, v int) (bool, error) {
			return v < limit, nil
		}).
		AddNode("incr", func(_ Context, in []int) ([]int, error) {
			if tr != nil {
				tr.add("incr")
			}
			return []int{in[0] + 1}, nil
		}).
		AddNextIteration("next").
		AddExit("exit").
		AddEdge("seed", 0, "enter", 0).
		AddEdge("enter", 0, "head", 0).
		AddEdge("head", 0, "more", 0).
		AddEdge("more", 1, "incr", 0).
		AddEdge("more", 0, "exit", 0).
		AddEdge("incr", 0, "next", 0).
		AddEdge("next", 0, "head", 1)
}
