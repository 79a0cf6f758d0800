// Package registry provides a generic thread-safe registry for values indexed by key.
//
// Registry is designed for read-heavy workloads using sync.RWMutex. It supports
// any comparable key type and any value type through Go generics. framegraph
// uses it for the global kernel registry consulted by AddOp at compile time.
//
// # Basic Usage
//
// Create a registry and register values:
//
//	r := registry.New[string, int]()
//	r.Register("one", 1)
//	r.Register("two", 2)
//
//	value, ok := r.Get("one")
//	if ok {
//	    fmt.Println(value) // Output: 1
//	}
//
// # Kernel Catalogs
//
// Registries work well as op catalogs where names resolve to compute
// functions:
//
//	kernels := registry.New[string, framegraph.Kernel[int]]()
//	kernels.Register("double", doubleKernel)
//	kernels.Register("sum", sumKernel)
//
//	// Later, resolve an op by name
//	k, ok := kernels.Get("double")
//	if ok {
//	    outputs, err := k(ctx, inputs)
//	    // use outputs...
//	}
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. The Range method iterates
// over a snapshot of the registry, allowing mutations during iteration without
// affecting the iteration itself:
//
//	r.Range(func(key string, value int) bool {
//	    // Safe to call r.Register() or r.Delete() here
//	    if value < 0 {
//	        r.Delete(key) // Won't affect current iteration
//	    }
//	    return true // continue iteration
//	})
package registry
