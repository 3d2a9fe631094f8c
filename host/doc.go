// Package host exposes a gc.Collector to WebAssembly guests as a wazero host
// module named "gc".
//
//	rt := wazero.NewRuntime(ctx)
//	defer rt.Close(ctx)
//
//	c := gc.NewWithDefaults()
//	if _, err := host.Instantiate(ctx, rt, c); err != nil {
//	    return err
//	}
//	guest, err := rt.Instantiate(ctx, wasmBytes)
//
// A guest imports the functions it needs:
//
//	(import "gc" "alloc_tuple" (func $alloc_tuple (param i32) (result i64)))
//	(import "gc" "tuple_set" (func $tuple_set (param i64 i32 i32 i64)))
//	(import "gc" "add_to_root" (func $add_to_root (param i32 i64)))
//	(import "gc" "step" (func $step))
//
// Values are passed as a tag (0 nil, 1 immediate, 2 reference) followed by a
// 64-bit word. A guest call that runs out of memory or misuses the heap traps;
// the error returned from the call wraps the collector's *errors.Error.
//
// The collector is not thread-safe, so a module must only be called from one
// goroutine at a time.
package host
