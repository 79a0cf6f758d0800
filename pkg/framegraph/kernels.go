package framegraph

import "github.com/randalmurphal/framegraph/pkg/framegraph/registry"

// kernels is the global op registry consulted by AddOp at compile time.
// Values are type-erased Kernel[T] for varying T; lookup re-asserts the
// payload type.
var kernels = registry.New[string, any]()

// RegisterKernel makes a kernel available to AddOp under the given op
// name. Registering the same name again overwrites the previous kernel.
//
// Registration is global and usually done from init(). The op name is
// shared across payload types; looking the name up under a different
// payload type fails as if it were unregistered.
func RegisterKernel[T any](name string, k Kernel[T]) {
	kernels.Register(name, k)
}

// LookupKernel returns the kernel registered under name for payload type
// T, or false if no such kernel exists.
func LookupKernel[T any](name string) (Kernel[T], bool) {
	v, ok := kernels.Get(name)
	if !ok {
		return nil, false
	}
	k, ok := v.(Kernel[T])
	return k, ok
}

// Identity returns a kernel that forwards its single input unchanged.
func Identity[T any]() Kernel[T] {
	return func(_ Context, inputs []T) ([]T, error) {
		return []T{inputs[0]}, nil
	}
}

// NoOp returns a kernel that consumes its inputs and produces nothing.
// Useful as a pure synchronization point for control edges.
func NoOp[T any]() Kernel[T] {
	return func(_ Context, _ []T) ([]T, error) {
		return nil, nil
	}
}

// RegisterBuiltins registers the builtin "identity" and "noop" ops for
// payload type T.
func RegisterBuiltins[T any]() {
	RegisterKernel("identity", Identity[T]())
	RegisterKernel("noop", NoOp[T]())
}
