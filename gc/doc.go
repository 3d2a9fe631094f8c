// Package gc implements an incremental, non-moving, tri-color mark-and-sweep
// collector for the composite values of a dynamically typed language.
//
// A Collector owns every heap object: tuples, arrays, hash maps, ordered maps
// and childless leaves. The host registers roots explicitly, calls Mark after
// every store of a reference into an existing object, and drives collection
// in bounded slices with Step:
//
//	c := gc.New(gc.DefaultOptions())
//	defer c.Close()
//
//	arr, err := c.AllocArray(4)
//	if err != nil {
//	    return err // errors.ErrOutOfMemory
//	}
//	c.AddToRoot(arr.Value())
//
//	t, _ := c.AllocTuple(2)
//	c.Array(arr).Push(t.Value())
//	c.Mark(t.Value())
//
//	for i := 0; i < 8; i++ {
//	    c.Step()
//	}
//
// # Cycle
//
// Idle, Mark and Sweep repeat in that order. A cycle snapshots the heap list
// when it starts; objects allocated later are linked in front of the snapshot
// and survive the cycle. FullGC runs one whole cycle synchronously, so called
// while idle it frees everything unreachable from the roots. FinishGC only
// completes a cycle that is already running.
//
// # Write barrier
//
// While sweeping, Mark traces the stored object and everything it reaches
// before returning.
//
// # Errors
//
// Allocation failure is returned as an error matching errors.ErrOutOfMemory.
// Misuse (bad arity, stale handles, wrong payload view, re-entering the
// collector from an observer) panics with an *errors.Error.
//
// # Thread Safety
//
// A Collector is NOT thread-safe. Independent collectors may be used from
// different goroutines.
package gc
