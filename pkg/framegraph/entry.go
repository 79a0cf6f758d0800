package framegraph

// Entry is a value flowing along one graph edge: either a live value or a
// dead marker signaling that the producing control-flow branch was not
// taken.
//
// Entries are produced by a node's kernel, written into exactly one
// downstream input slot per consumer edge, and cleared by the executor
// once the consumer has run. No two iterations ever share an input slot,
// so entries are never duplicated across concurrent loop iterations.
type Entry[T any] struct {
	// Value is the payload. Undefined when Dead is true.
	Value T

	// Dead marks the entry as a deadness signal rather than a value.
	Dead bool
}

// liveEntry wraps a value in a live entry.
func liveEntry[T any](v T) Entry[T] {
	return Entry[T]{Value: v}
}

// deadEntries returns n dead marker entries.
func deadEntries[T any](n int) []Entry[T] {
	out := make([]Entry[T], n)
	for i := range out {
		out[i].Dead = true
	}
	return out
}
