package gc

import (
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	gcruntime "github.com/wippyai/gc-runtime"
	"github.com/wippyai/gc-runtime/errors"
	"github.com/wippyai/gc-runtime/heap"
	"github.com/wippyai/gc-runtime/value"
)

// Phase is the collector state.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseMark
	PhaseSweep
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseMark:
		return "mark"
	case PhaseSweep:
		return "sweep"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Collector is an incremental tri-color mark-and-sweep heap.
//
// All live objects sit on a singly-linked heap list behind a sentinel that
// is never collected. New objects are linked directly after the sentinel.
// A cycle sweeps the objects that existed when it started (the sentinel's
// successor at that time onwards); objects allocated during the cycle stay
// in front of that range and survive it.
//
// Not safe for concurrent use. Work happens only inside calls the host makes.
type Collector struct {
	opts      Options
	mem       gcruntime.Allocator
	log       *zap.Logger
	arena     *heap.Arena
	roots     map[value.Ref]struct{}
	observers []Observer

	// reblackened holds objects colored black by the barrier during sweep.
	// Some of them are behind the sweep cursor and must be whitened when the
	// cycle ends.
	reblackened []value.Ref
	gray        worklist

	head     value.Ref // sentinel
	boundary value.Ref // first object of the current sweep range
	sweeping value.Ref // next object to sweep
	swept    value.Ref // predecessor of sweeping

	fresh     int // objects linked since the current cycle began
	allocated int
	stats     Stats
	phase     Phase
	paused    bool
	busy      bool
	closed    bool
}

// New creates a collector. It panics if the step budgets are not positive.
func New(opts Options) *Collector {
	if err := opts.Validate(); err != nil {
		panic(err)
	}
	mem := opts.Allocator
	if mem == nil {
		mem = &gcruntime.Unbounded{}
	}
	log := opts.Logger
	if log == nil {
		log = Logger()
	}

	arena := heap.NewArena()
	head, _ := arena.Acquire()

	return &Collector{
		opts:  opts,
		mem:   mem,
		log:   log,
		arena: arena,
		roots: make(map[value.Ref]struct{}),
		head:  head,
	}
}

// NewWithDefaults creates a collector with default options.
func NewWithDefaults() *Collector {
	return New(DefaultOptions())
}

// Close frees every object and returns its memory to the allocator.
// The collector cannot be used afterwards.
func (c *Collector) Close() {
	defer c.enter("Close")()

	c.arena.Each(func(ref value.Ref, obj *heap.Object) bool {
		if ref != c.head {
			c.mem.Free(obj.Size())
		}
		return true
	})
	c.arena.Reset()
	clear(c.roots)
	c.gray.reset()
	c.reblackened = nil
	c.head, c.boundary, c.sweeping, c.swept = 0, 0, 0, 0
	c.fresh = 0
	c.allocated = 0
	c.phase = PhaseIdle
	c.closed = true
}

// enter guards against re-entrance from observers and use after Close.
// Usage: defer c.enter("Op")()
func (c *Collector) enter(op string) func() {
	if c.closed {
		panic(errors.Contract(errors.PhaseRuntime, "%s on closed collector", op))
	}
	if c.busy {
		panic(errors.Reentrant(op))
	}
	c.busy = true
	return func() { c.busy = false }
}

// Options returns the configuration.
func (c *Collector) Options() Options {
	return c.opts
}

// Objects returns the number of live objects.
func (c *Collector) Objects() int {
	return c.allocated
}

// Phase returns the current collector state.
func (c *Collector) Phase() Phase {
	return c.phase
}

// Stats returns work counters.
func (c *Collector) Stats() Stats {
	return c.stats
}

// Paused reports whether Step is suspended.
func (c *Collector) Paused() bool {
	return c.paused
}

// SetPaused suspends or resumes incremental progress. Allocation, the write
// barrier, FinishGC and FullGC keep working while paused.
func (c *Collector) SetPaused(paused bool) {
	if c.paused != paused {
		c.log.Debug("gc pause changed", zap.Bool("paused", paused))
	}
	c.paused = paused
}

// Valid reports whether ref names a live object.
func (c *Collector) Valid(ref value.Ref) bool {
	if ref == c.head {
		return false
	}
	_, ok := c.arena.Get(ref)
	return ok
}

// object resolves a host-supplied handle or panics.
func (c *Collector) object(phase errors.Phase, ref value.Ref) *heap.Object {
	if ref == c.head {
		panic(errors.StaleRef(phase, ref))
	}
	return c.arena.MustGet(phase, ref)
}

// Kind returns the storage kind of a live object.
func (c *Collector) Kind(ref value.Ref) heap.Kind {
	return c.object(errors.PhaseAccess, ref).Kind()
}

// Color returns the stored color of a live object. Gray objects report
// their stored color; see GrayLen for worklist membership.
func (c *Collector) Color(ref value.Ref) heap.Color {
	return c.object(errors.PhaseAccess, ref).Color()
}

// Children calls fn for every slot value of a live object.
func (c *Collector) Children(ref value.Ref, fn func(value.Value)) {
	c.object(errors.PhaseAccess, ref).Children(fn)
}

// Tuple returns the tuple view of ref.
func (c *Collector) Tuple(ref value.Ref) heap.Tuple {
	return c.object(errors.PhaseAccess, ref).AsTuple(ref)
}

// Array returns the array view of ref.
func (c *Collector) Array(ref value.Ref) heap.Array {
	return c.object(errors.PhaseAccess, ref).AsArray(ref)
}

// Hash returns the hash view of ref.
func (c *Collector) Hash(ref value.Ref) heap.Hash {
	return c.object(errors.PhaseAccess, ref).AsHash(ref)
}

// OrderedMap returns the ordered map view of ref.
func (c *Collector) OrderedMap(ref value.Ref) heap.OrderedMap {
	return c.object(errors.PhaseAccess, ref).AsOrderedMap(ref)
}

// Leaf returns the string view of a leaf object.
func (c *Collector) Leaf(ref value.Ref) heap.String {
	return c.object(errors.PhaseAccess, ref).AsString(ref)
}

// Each walks the heap list from newest to oldest until fn returns false.
func (c *Collector) Each(fn func(ref value.Ref, kind heap.Kind, color heap.Color) bool) {
	if c.closed {
		return
	}
	ref := c.arena.MustGet(errors.PhaseRuntime, c.head).Next()
	for ref != 0 {
		obj := c.arena.MustGet(errors.PhaseRuntime, ref)
		if !fn(ref, obj.Kind(), obj.Color()) {
			return
		}
		ref = obj.Next()
	}
}

// Roots returns the registered roots in handle order.
func (c *Collector) Roots() []value.Ref {
	roots := make([]value.Ref, 0, len(c.roots))
	for r := range c.roots {
		roots = append(roots, r)
	}
	slices.Sort(roots)
	return roots
}

// GrayLen returns the number of worklist entries.
func (c *Collector) GrayLen() int {
	return c.gray.len()
}

// AllocString allocates a leaf holding size zero bytes.
func (c *Collector) AllocString(size int) (value.Ref, error) {
	if size < 0 {
		panic(errors.Contract(errors.PhaseAlloc, "negative string size %d", size))
	}
	return c.alloc("AllocString", heap.SizeOfString(size), func(o *heap.Object, sz uint32) {
		o.InitString(size, sz)
	})
}

// AllocTuple allocates a tuple with arity nil slots. Arity must be 1..127.
func (c *Collector) AllocTuple(arity int) (value.Ref, error) {
	if arity < 1 || arity > heap.MaxArity {
		panic(errors.Contract(errors.PhaseAlloc, "tuple arity %d outside 1..%d", arity, heap.MaxArity))
	}
	return c.alloc("AllocTuple", heap.SizeOfTuple(arity), func(o *heap.Object, sz uint32) {
		o.InitTuple(arity, sz)
	})
}

// AllocArray allocates an empty array with the given capacity.
func (c *Collector) AllocArray(capacity int) (value.Ref, error) {
	if capacity < 0 {
		panic(errors.Contract(errors.PhaseAlloc, "negative array capacity %d", capacity))
	}
	return c.alloc("AllocArray", heap.SizeOfArray(capacity), func(o *heap.Object, sz uint32) {
		o.InitArray(capacity, sz)
	})
}

// AllocHash allocates an empty hash with the given capacity hint.
func (c *Collector) AllocHash(capacity int) (value.Ref, error) {
	if capacity < 0 {
		panic(errors.Contract(errors.PhaseAlloc, "negative hash capacity %d", capacity))
	}
	return c.alloc("AllocHash", heap.SizeOfHash(capacity), func(o *heap.Object, sz uint32) {
		o.InitHash(capacity, sz)
	})
}

// AllocTreeMap allocates an empty ordered map.
func (c *Collector) AllocTreeMap() (value.Ref, error) {
	return c.alloc("AllocTreeMap", heap.SizeOfOrderedMap(), func(o *heap.Object, sz uint32) {
		o.InitOrderedMap(sz)
	})
}

// alloc acquires memory, retrying once after a forced sweep slice when the
// collector is sweeping, then links a zeroed object and shapes it. Sizes
// above math.MaxUint32 fail without reaching the allocator.
func (c *Collector) alloc(op string, size uint64, shape func(*heap.Object, uint32)) (value.Ref, error) {
	defer c.enter(op)()

	if size > math.MaxUint32 {
		return 0, c.outOfMemory(size, errors.InvalidInput(errors.PhaseAlloc, "size exceeds 32-bit allocator range"))
	}

	err := c.mem.Alloc(uint32(size))
	if err != nil && c.phase == PhaseSweep {
		c.stats.ForcedSweeps++
		c.log.Warn("memory pressure, forcing sweep slice",
			zap.Uint64("size", size),
			zap.Error(err))
		c.notify(Event{Type: EventForcedSweep, Size: size})
		c.sweepStep()
		err = c.mem.Alloc(uint32(size))
	}
	if err != nil {
		return 0, c.outOfMemory(size, err)
	}

	ref, obj := c.arena.Acquire()
	shape(obj, uint32(size))
	c.link(ref, obj)
	c.allocated++
	c.stats.Allocated++
	c.notify(Event{Type: EventAllocated, Ref: ref, Kind: obj.Kind(), Size: size})
	return ref, nil
}

func (c *Collector) outOfMemory(size uint64, cause error) error {
	c.log.Error("out of memory",
		zap.Uint64("size", size),
		zap.Int("objects", c.allocated),
		zap.Stringer("phase", c.phase),
		zap.Error(cause))
	c.notify(Event{Type: EventOutOfMemory, Size: size})
	return errors.OutOfMemory(size, cause)
}

// link inserts obj right after the sentinel. During a cycle that is in
// front of the sweep range, so when the sweep has not yet kept any object
// the new one becomes the predecessor of the sweep cursor.
func (c *Collector) link(ref value.Ref, obj *heap.Object) {
	sentinel := c.arena.MustGet(errors.PhaseAlloc, c.head)
	obj.SetNext(sentinel.Next())
	sentinel.SetNext(ref)

	if c.phase != PhaseIdle {
		c.fresh++
		if c.swept == c.head {
			c.swept = ref
		}
	}
}
