package gc

import (
	"github.com/wippyai/gc-runtime/errors"
	"github.com/wippyai/gc-runtime/heap"
	"github.com/wippyai/gc-runtime/value"
)

// AddToRoot registers v as a root and marks it. Immediates and nil are
// ignored. Registering the same object twice keeps a single entry.
func (c *Collector) AddToRoot(v value.Value) {
	if !v.IsRef() {
		return
	}
	defer c.enter("AddToRoot")()

	ref := v.Ref()
	c.object(errors.PhaseRoot, ref)
	c.roots[ref] = struct{}{}
	c.mark(ref)
}

// RemoveFromRoot deregisters v. The object becomes collectable by the next
// full cycle unless something else still reaches it.
func (c *Collector) RemoveFromRoot(v value.Value) {
	if !v.IsRef() {
		return
	}
	defer c.enter("RemoveFromRoot")()
	delete(c.roots, v.Ref())
}

// Mark is the write barrier. Call it right after storing v into a slot of
// an existing object.
//
// While marking, a white target is queued. While sweeping, it is queued and
// traced to completion before Mark returns: the sweep cursor may already be
// past objects the target reaches. While idle there is nothing to do; the
// next cycle starts from the roots.
func (c *Collector) Mark(v value.Value) {
	if !v.IsRef() {
		return
	}
	defer c.enter("Mark")()
	c.mark(v.Ref())
}

func (c *Collector) mark(ref value.Ref) {
	obj := c.object(errors.PhaseRoot, ref)
	if obj.Color() != heap.White {
		return
	}
	switch c.phase {
	case PhaseMark:
		c.gray.push(ref)
	case PhaseSweep:
		c.gray.push(ref)
		for c.gray.len() > 0 {
			c.propagate()
		}
	}
}
