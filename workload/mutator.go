package workload

import (
	stderrors "errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/gc-runtime/errors"
	"github.com/wippyai/gc-runtime/gc"
	"github.com/wippyai/gc-runtime/heap"
	"github.com/wippyai/gc-runtime/value"
)

// Config controls a Mutator.
type Config struct {
	// Logger receives debug output. Nil means no logging.
	Logger *zap.Logger
	// Seed makes a run reproducible.
	Seed uint64
	// MaxRoots caps the root set. New objects that cannot be rooted are
	// stored into reachable containers or dropped.
	MaxRoots int
	// StepEvery runs one collector step after this many operations, on top
	// of the steps chosen at random. Zero disables it.
	StepEvery int
	// WalkDepth bounds the random walk from a root.
	WalkDepth int
}

// DefaultConfig returns the configuration used by gcsim.
func DefaultConfig() Config {
	return Config{
		Seed:      1,
		MaxRoots:  8,
		StepEvery: 4,
		WalkDepth: 4,
	}
}

// Result counts what a Mutator did.
type Result struct {
	Ops         int
	Allocs      int
	Stores      int
	Deletes     int
	Unroots     int
	Steps       int
	OutOfMemory int
}

// String formats the counters on one line.
func (r Result) String() string {
	return fmt.Sprintf("ops=%d allocs=%d stores=%d deletes=%d unroots=%d steps=%d oom=%d",
		r.Ops, r.Allocs, r.Stores, r.Deletes, r.Unroots, r.Steps, r.OutOfMemory)
}

// Mutator drives a collector like a running program would: it allocates,
// stores references between objects it can reach from the roots, drops
// references and roots, and interleaves incremental steps. Every store goes
// through the write barrier.
type Mutator struct {
	c      *gc.Collector
	rng    *rand.Rand
	log    *zap.Logger
	cfg    Config
	result Result
}

// NewMutator creates a mutator for c.
func NewMutator(c *gc.Collector, cfg Config) *Mutator {
	if cfg.MaxRoots <= 0 {
		cfg.MaxRoots = 1
	}
	if cfg.WalkDepth < 0 {
		cfg.WalkDepth = 0
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Mutator{
		c:   c,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		log: log,
		cfg: cfg,
	}
}

// Result returns the counters so far.
func (m *Mutator) Result() Result {
	return m.result
}

// Run performs n operations.
func (m *Mutator) Run(n int) Result {
	for i := 0; i < n; i++ {
		m.Tick()
	}
	return m.result
}

// Tick performs one random operation.
func (m *Mutator) Tick() {
	m.result.Ops++
	switch p := m.rng.IntN(100); {
	case p < 40:
		m.allocate()
	case p < 70:
		m.store()
	case p < 80:
		m.delete()
	case p < 85:
		m.unroot()
	default:
		m.step()
	}
	if m.cfg.StepEvery > 0 && m.result.Ops%m.cfg.StepEvery == 0 {
		m.step()
	}
}

func (m *Mutator) step() {
	m.c.Step()
	m.result.Steps++
}

// allocate creates one object of a random kind and makes it reachable, or
// leaves it as garbage when there is nowhere to put it.
func (m *Mutator) allocate() {
	ref, err := m.alloc()
	if err != nil {
		m.result.OutOfMemory++
		m.log.Debug("allocation failed", zap.Error(err))
		return
	}
	m.result.Allocs++

	if len(m.c.Roots()) < m.cfg.MaxRoots && m.rng.IntN(3) == 0 {
		m.c.AddToRoot(ref.Value())
		return
	}
	if dst, ok := m.container(); ok && m.rng.IntN(4) != 0 {
		m.put(dst, ref.Value())
	}
}

// alloc retries once after a full collection when memory runs out.
func (m *Mutator) alloc() (value.Ref, error) {
	kind := m.rng.IntN(5)
	ref, err := m.allocKind(kind)
	if stderrors.Is(err, errors.ErrOutOfMemory) {
		m.c.FullGC()
		ref, err = m.allocKind(kind)
	}
	return ref, err
}

func (m *Mutator) allocKind(kind int) (value.Ref, error) {
	switch kind {
	case 0:
		return m.c.AllocString(m.rng.IntN(32))
	case 1:
		return m.c.AllocTuple(1 + m.rng.IntN(4))
	case 2:
		return m.c.AllocArray(m.rng.IntN(4))
	case 3:
		return m.c.AllocHash(m.rng.IntN(4))
	default:
		return m.c.AllocTreeMap()
	}
}

// store overwrites a slot of a reachable container with a reachable object,
// an immediate or nil.
func (m *Mutator) store() {
	dst, ok := m.container()
	if !ok {
		return
	}
	var v value.Value
	switch m.rng.IntN(3) {
	case 0:
		if src, ok := m.walk(); ok {
			v = src.Value()
		}
	case 1:
		v = value.Int(int64(m.rng.IntN(1000)))
	}
	m.put(dst, v)
}

func (m *Mutator) put(dst value.Ref, v value.Value) {
	switch kind := m.c.Kind(dst); {
	case kind.IsTuple():
		t := m.c.Tuple(dst)
		t.Set(m.rng.IntN(t.Size()), v)
	case kind == heap.KindArray:
		a := m.c.Array(dst)
		if a.Len() > 0 && m.rng.IntN(2) == 0 {
			a.Set(m.rng.IntN(a.Len()), v)
		} else {
			a.Push(v)
		}
	case kind == heap.KindHash:
		k := m.key(v)
		m.c.Hash(dst).Put(k, v)
		m.c.Mark(k)
	case kind == heap.KindOrderedMap:
		k := m.key(v)
		m.c.OrderedMap(dst).Put(k, v)
		m.c.Mark(k)
	default:
		return
	}
	m.c.Mark(v)
	m.result.Stores++
}

// key picks a small immediate, or occasionally the stored value itself so
// maps also hold references in key position.
func (m *Mutator) key(v value.Value) value.Value {
	if v.IsRef() && m.rng.IntN(4) == 0 {
		return v
	}
	return value.Int(int64(m.rng.IntN(8)))
}

// delete drops an element from a reachable container.
func (m *Mutator) delete() {
	dst, ok := m.container()
	if !ok {
		return
	}
	switch kind := m.c.Kind(dst); {
	case kind.IsTuple():
		t := m.c.Tuple(dst)
		t.Set(m.rng.IntN(t.Size()), value.Nil)
	case kind == heap.KindArray:
		a := m.c.Array(dst)
		if m.rng.IntN(4) == 0 {
			a.Truncate(0)
		} else {
			a.Pop()
		}
	case kind == heap.KindHash:
		m.c.Hash(dst).Delete(value.Int(int64(m.rng.IntN(8))))
	case kind == heap.KindOrderedMap:
		om := m.c.OrderedMap(dst)
		if e, ok := om.Min(); ok {
			om.Delete(e.Key)
		}
	default:
		return
	}
	m.result.Deletes++
}

func (m *Mutator) unroot() {
	roots := m.c.Roots()
	if len(roots) <= 1 {
		return
	}
	m.c.RemoveFromRoot(roots[m.rng.IntN(len(roots))].Value())
	m.result.Unroots++
}

// walk follows random references from a random root.
func (m *Mutator) walk() (value.Ref, bool) {
	roots := m.c.Roots()
	if len(roots) == 0 {
		return 0, false
	}
	ref := roots[m.rng.IntN(len(roots))]
	for depth := m.rng.IntN(m.cfg.WalkDepth + 1); depth > 0; depth-- {
		var kids []value.Ref
		m.c.Children(ref, func(v value.Value) {
			if v.IsRef() {
				kids = append(kids, v.Ref())
			}
		})
		if len(kids) == 0 {
			break
		}
		slices.Sort(kids)
		ref = kids[m.rng.IntN(len(kids))]
	}
	return ref, true
}

// container walks to a reachable object that has slots.
func (m *Mutator) container() (value.Ref, bool) {
	for range 3 {
		ref, ok := m.walk()
		if !ok {
			return 0, false
		}
		if m.c.Kind(ref) != heap.KindLeaf {
			return ref, true
		}
	}
	return 0, false
}
