package gc

import (
	"go.uber.org/zap"

	"github.com/wippyai/gc-runtime/errors"
	"github.com/wippyai/gc-runtime/heap"
	"github.com/wippyai/gc-runtime/value"
)

// Step performs one bounded slice of collector work. It does nothing while
// paused. When idle it starts a new cycle.
func (c *Collector) Step() {
	defer c.enter("Step")()
	if c.paused {
		return
	}

	switch c.phase {
	case PhaseIdle:
		c.initStep()
	case PhaseMark:
		c.markStep()
	case PhaseSweep:
		c.sweepStep()
	}
}

// FinishGC completes the current cycle regardless of pause. It does not
// start a new cycle when idle.
func (c *Collector) FinishGC() {
	defer c.enter("FinishGC")()
	c.finish()
}

// FullGC guarantees one complete mark and sweep pass: it starts a cycle if
// idle, then completes it regardless of pause. Called while idle, every
// object unreachable from the roots is freed before it returns.
func (c *Collector) FullGC() {
	defer c.enter("FullGC")()
	if c.phase == PhaseIdle {
		c.initStep()
	}
	c.finish()
}

func (c *Collector) finish() {
	for c.phase == PhaseMark {
		c.markStep()
	}
	for c.phase == PhaseSweep {
		c.sweepStep()
	}
}

// initStep snapshots the heap list and seeds the worklist with the roots.
func (c *Collector) initStep() {
	if c.gray.len() != 0 {
		panic(errors.Contract(errors.PhaseMark, "cycle started with %d gray entries", c.gray.len()))
	}
	if c.allocated == 0 {
		return
	}

	c.swept = c.head
	c.sweeping = c.arena.MustGet(errors.PhaseMark, c.head).Next()
	c.boundary = c.sweeping
	c.fresh = 0
	for _, r := range c.Roots() {
		c.gray.push(r)
	}
	c.stats.Cycles++
	c.setPhase(PhaseMark)
}

// markStep scans up to MarkMax worklist entries and moves to sweep once the
// worklist is empty.
func (c *Collector) markStep() {
	c.stats.MarkSteps++
	for i := 0; i < c.opts.MarkMax; i++ {
		if c.gray.len() == 0 {
			c.setPhase(PhaseSweep)
			return
		}
		c.propagate()
	}
}

// propagate scans one gray object: blacken it and queue its white children.
func (c *Collector) propagate() {
	ref := c.gray.pop()
	obj := c.arena.MustGet(errors.PhaseMark, ref)
	if obj.Color() == heap.Black {
		return
	}
	obj.SetColor(heap.Black)
	c.stats.Scanned++
	if c.phase == PhaseSweep {
		c.reblackened = append(c.reblackened, ref)
	}
	obj.Children(c.shade)
}

func (c *Collector) shade(v value.Value) {
	if !v.IsRef() {
		return
	}
	child, ok := c.arena.Get(v.Ref())
	if !ok {
		panic(errors.New(errors.PhaseMark, errors.KindStaleRef).
			Ref(v.Ref()).
			Detail("reachable object holds a freed reference").
			Build())
	}
	if child.Color() == heap.White {
		c.gray.push(v.Ref())
	}
}

// sweepStep visits up to SweepMax heap-list entries: black objects survive
// and are whitened for the next cycle, white objects are unlinked and freed.
func (c *Collector) sweepStep() {
	c.stats.SweepSteps++
	for i := 0; i < c.opts.SweepMax; i++ {
		if c.sweeping == 0 {
			c.endCycle()
			return
		}

		obj := c.arena.MustGet(errors.PhaseSweep, c.sweeping)
		next := obj.Next()
		if obj.Color() == heap.Black {
			obj.SetColor(heap.White)
			c.swept = c.sweeping
			c.sweeping = next
			continue
		}

		c.arena.MustGet(errors.PhaseSweep, c.swept).SetNext(next)
		c.free(c.sweeping, obj)
		c.sweeping = next
	}
}

func (c *Collector) free(ref value.Ref, obj *heap.Object) {
	if _, ok := c.roots[ref]; ok {
		panic(errors.Contract(errors.PhaseSweep, "sweeping registered root %s", ref))
	}
	size, kind := obj.Size(), obj.Kind()
	c.arena.Release(ref)
	c.mem.Free(size)
	c.allocated--
	c.stats.Freed++
	c.notify(Event{Type: EventFreed, Ref: ref, Kind: kind, Size: uint64(size)})
}

// endCycle whitens what the sweep loop never visited: objects allocated
// during the cycle and objects the barrier blackened behind the cursor.
func (c *Collector) endCycle() {
	ref := c.arena.MustGet(errors.PhaseSweep, c.head).Next()
	for i := 0; i < c.fresh; i++ {
		obj := c.arena.MustGet(errors.PhaseSweep, ref)
		obj.SetColor(heap.White)
		ref = obj.Next()
	}
	for _, r := range c.reblackened {
		if obj, ok := c.arena.Get(r); ok {
			obj.SetColor(heap.White)
		}
	}
	clear(c.reblackened)
	c.reblackened = c.reblackened[:0]

	c.log.Debug("gc cycle complete",
		zap.Uint64("cycle", c.stats.Cycles),
		zap.Int("objects", c.allocated),
		zap.Int("fresh", c.fresh),
		zap.Uint64("freed_total", c.stats.Freed))

	c.swept, c.sweeping, c.boundary = 0, 0, 0
	c.fresh = 0
	c.setPhase(PhaseIdle)
}

func (c *Collector) setPhase(p Phase) {
	from := c.phase
	c.phase = p
	c.log.Debug("gc phase",
		zap.Stringer("from", from),
		zap.Stringer("to", p),
		zap.Int("objects", c.allocated),
		zap.Int("gray", c.gray.len()))
	c.notify(Event{Type: EventPhase, From: from, To: p})
}
