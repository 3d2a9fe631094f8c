package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"golang.org/x/term"

	gcruntime "github.com/wippyai/gc-runtime"
	"github.com/wippyai/gc-runtime/gc"
	"github.com/wippyai/gc-runtime/host"
	"github.com/wippyai/gc-runtime/workload"
)

type config struct {
	wasmFile string
	funcName string
	opts     gc.Options
	work     workload.Config
	budget   uint64
	ops      int
	rounds   int
	dump     bool
}

func main() {
	var (
		markMax     = flag.Int("mark-max", 64, "Gray entries scanned per mark step")
		sweepMax    = flag.Int("sweep-max", 64, "Heap entries visited per sweep step")
		ops         = flag.Int("ops", 10000, "Mutator operations to run")
		rounds      = flag.Int("rounds", 10, "Verify the heap this many times during the run")
		seed        = flag.Uint64("seed", 1, "Mutator seed")
		maxRoots    = flag.Int("roots", 8, "Maximum number of roots the mutator keeps")
		budget      = flag.Uint64("budget", 0, "Memory budget in bytes (0 = unbounded)")
		wasmFile    = flag.String("wasm", "", "Run a core wasm module importing the gc host module instead of the mutator")
		funcName    = flag.String("func", "run", "Function to call with -wasm")
		dump        = flag.Bool("dump", false, "Print the collector state and heap at exit")
		verbose     = flag.Bool("v", false, "Log collector activity to stderr")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()
		gc.SetLogger(log)
		host.SetLogger(log)
	}

	cfg := config{
		wasmFile: *wasmFile,
		funcName: *funcName,
		opts: gc.Options{
			MarkMax:  *markMax,
			SweepMax: *sweepMax,
		},
		budget: *budget,
		ops:    *ops,
		rounds: *rounds,
		dump:   *dump,
	}
	cfg.work = workload.DefaultConfig()
	cfg.work.Seed = *seed
	cfg.work.MaxRoots = *maxRoots

	if err := cfg.opts.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newCollector builds the collector and the allocator it reports usage from.
func newCollector(cfg config) (*gc.Collector, gcruntime.MemorySizer) {
	var mem interface {
		gcruntime.Allocator
		gcruntime.MemorySizer
	}
	if cfg.budget > 0 {
		mem = gcruntime.NewBudget(cfg.budget)
	} else {
		mem = &gcruntime.Unbounded{}
	}
	opts := cfg.opts
	opts.Allocator = mem
	return gc.New(opts), mem
}

func run(cfg config) error {
	c, mem := newCollector(cfg)
	defer c.Close()

	if cfg.wasmFile != "" {
		if err := runGuest(c, cfg.wasmFile, cfg.funcName); err != nil {
			return err
		}
	} else if err := runMutator(c, cfg); err != nil {
		return err
	}

	st := c.Stats()
	fmt.Printf("\nObjects: %d\n", c.Objects())
	fmt.Printf("Memory: %d bytes", mem.Used())
	if mem.Limit() > 0 {
		fmt.Printf(" of %d", mem.Limit())
	}
	fmt.Println()
	fmt.Printf("Cycles: %d (mark steps %d, sweep steps %d, forced sweeps %d)\n",
		st.Cycles, st.MarkSteps, st.SweepSteps, st.ForcedSweeps)
	fmt.Printf("Allocated: %d  Freed: %d  Scanned: %d\n", st.Allocated, st.Freed, st.Scanned)

	if cfg.dump {
		fmt.Println()
		if err := dumpState(c); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
	}
	return nil
}

func runMutator(c *gc.Collector, cfg config) error {
	m := workload.NewMutator(c, cfg.work)

	rounds := max(cfg.rounds, 1)
	per := max(cfg.ops/rounds, 1)
	fmt.Printf("Running %d operations (seed %d, mark-max %d, sweep-max %d)\n",
		per*rounds, cfg.work.Seed, cfg.opts.MarkMax, cfg.opts.SweepMax)

	for i := 0; i < rounds; i++ {
		m.Run(per)
		if err := workload.Verify(c); err != nil {
			return fmt.Errorf("round %d: %w", i+1, err)
		}
	}
	fmt.Printf("Mutator: %s\n", m.Result())

	if err := workload.VerifyFull(c); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	fmt.Println("Verify: ok")
	return nil
}

func runGuest(c *gc.Collector, wasmFile, funcName string) error {
	ctx := context.Background()

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	if _, err := host.Instantiate(ctx, rt, c); err != nil {
		return err
	}

	mod, err := rt.Instantiate(ctx, data)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	defer mod.Close(ctx)

	fn := mod.ExportedFunction(funcName)
	if fn == nil {
		return fmt.Errorf("function %q not exported by %s", funcName, wasmFile)
	}

	fmt.Printf("Calling %s()...\n", funcName)
	results, err := fn.Call(ctx)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}
	fmt.Printf("Result: %v\n", results)
	return nil
}

// dumpState prints the collector state, clipping heap lines to the terminal
// width when stdout is a terminal.
func dumpState(c *gc.Collector) error {
	var b strings.Builder
	if err := c.InspectAll(&b); err != nil {
		return err
	}

	width := 0
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil {
			width = w
		}
	}

	for _, line := range strings.Split(strings.TrimRight(b.String(), "\n"), "\n") {
		if width > 0 && len(line) > width {
			line = line[:width]
		}
		fmt.Println(line)
	}
	return nil
}
