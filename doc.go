// Package gcruntime is an incremental tri-color mark-and-sweep heap for the
// composite values of a dynamically typed language runtime.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	gcruntime/           Root package with the raw memory Allocator interface
//	├── value/           Ref handles and the nil/immediate/ref Value discriminant
//	├── heap/            Object headers, storage kinds, payload views, slot arena
//	├── gc/              Collector: allocation, roots, write barrier, incremental cycle
//	├── host/            wazero host module exposing a Collector to WASM guests
//	├── workload/        Seeded mutator and reachability verifier
//	├── errors/          Structured error types for debugging
//	└── cmd/gcsim/       Batch and interactive simulator
//
// # Quick Start
//
//	c := gc.New(gc.Options{
//	    Allocator: gcruntime.NewBudget(1 << 20),
//	    MarkMax:   64,
//	    SweepMax:  64,
//	})
//	defer c.Close()
//
//	root, err := c.AllocHash(8)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c.AddToRoot(root.Value())
//
//	s, _ := c.AllocString(16)
//	c.Hash(root).Put(value.Int(1), s.Value())
//	c.Mark(s.Value())
//
//	c.Step() // one bounded slice of work
//
// # Memory Model
//
// Objects live in Go memory owned by the collector's arena; the Allocator
// only accounts for an estimate of each object's size and may refuse it.
// Freed slots are reused with a new generation, so a handle to a freed
// object never resolves again.
//
// # Thread Safety
//
// A Collector is NOT thread-safe and should be used by a single goroutine.
package gcruntime
