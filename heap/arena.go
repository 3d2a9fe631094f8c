package heap

import (
	"math"

	"github.com/wippyai/gc-runtime/errors"
	"github.com/wippyai/gc-runtime/value"
)

// Arena is the slot table backing a heap. Objects are addressed by
// generation-checked Refs; freeing a slot bumps its generation so stale
// handles stop resolving, then puts it on the free list for reuse.
// Slot 0 is reserved so that Ref 0 never resolves.
// Not safe for concurrent use.
type Arena struct {
	slots    []*Object
	freeList []uint32
	live     int
	retired  int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{
		slots:    make([]*Object, 1, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Acquire returns a zeroed object and its handle.
func (a *Arena) Acquire() (value.Ref, *Object) {
	var idx uint32
	if n := len(a.freeList); n > 0 {
		idx = a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, &Object{})
	}

	obj := a.slots[idx]
	obj.live = true
	a.live++
	return value.MakeRef(idx, obj.gen), obj
}

// Get resolves a handle. It fails for the null handle, unknown slots and
// handles issued before the slot was last freed.
func (a *Arena) Get(r value.Ref) (*Object, bool) {
	idx := r.Index()
	if idx == 0 || int(idx) >= len(a.slots) {
		return nil, false
	}
	obj := a.slots[idx]
	if !obj.live || obj.gen != r.Gen() {
		return nil, false
	}
	return obj, true
}

// MustGet resolves a handle or panics with a stale reference error.
func (a *Arena) MustGet(phase errors.Phase, r value.Ref) *Object {
	obj, ok := a.Get(r)
	if !ok {
		panic(errors.StaleRef(phase, r))
	}
	return obj
}

// Release runs the payload destructor and returns the slot to the free list.
// A slot whose generation is exhausted is retired instead; it is never
// handed out again.
func (a *Arena) Release(r value.Ref) {
	obj := a.MustGet(errors.PhaseSweep, r)
	obj.release()
	obj.reset()
	a.live--
	if obj.gen == math.MaxUint32 {
		a.retired++
		return
	}
	obj.gen++
	a.freeList = append(a.freeList, r.Index())
}

// Retired returns the number of slots withdrawn after generation exhaustion.
func (a *Arena) Retired() int { return a.retired }

// Len returns the number of occupied slots.
func (a *Arena) Len() int { return a.live }

// Cap returns the number of slots ever created, occupied or free.
func (a *Arena) Cap() int { return len(a.slots) - 1 }

// Each calls fn for every occupied slot in index order until fn returns false.
func (a *Arena) Each(fn func(value.Ref, *Object) bool) {
	for i := 1; i < len(a.slots); i++ {
		obj := a.slots[i]
		if !obj.live {
			continue
		}
		if !fn(value.MakeRef(uint32(i), obj.gen), obj) {
			return
		}
	}
}

// Reset releases every occupied slot. Slots stay allocated with bumped
// generations so no handle issued before the reset resolves again.
func (a *Arena) Reset() {
	for i := 1; i < len(a.slots); i++ {
		if obj := a.slots[i]; obj.live {
			a.Release(value.MakeRef(uint32(i), obj.gen))
		}
	}
}
