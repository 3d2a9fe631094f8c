// Package workload exercises a gc.Collector with a seeded random mutator and
// checks the heap against an independent reachability walk.
//
//	c := gc.New(opts)
//	m := workload.NewMutator(c, workload.DefaultConfig())
//	m.Run(10000)
//	if err := workload.VerifyFull(c); err != nil {
//	    return err
//	}
//
// The same seed always produces the same sequence of operations.
package workload
