package gcruntime

import (
	"github.com/wippyai/gc-runtime/errors"
)

// Allocator acquires raw memory for heap objects.
// Sizes are estimates of header plus payload; the Go runtime owns the bytes.
type Allocator interface {
	Alloc(size uint32) error
	Free(size uint32)
}

// MemorySizer reports allocator usage.
type MemorySizer interface {
	Used() uint64
	Limit() uint64
}

// Unbounded never refuses an allocation.
type Unbounded struct {
	used uint64
}

func (u *Unbounded) Alloc(size uint32) error {
	u.used += uint64(size)
	return nil
}

func (u *Unbounded) Free(size uint32) {
	u.used -= uint64(size)
}

func (u *Unbounded) Used() uint64 { return u.used }

// Limit returns 0, meaning no limit.
func (u *Unbounded) Limit() uint64 { return 0 }

// Budget refuses allocations that would exceed a fixed byte limit.
// Not safe for concurrent use; a collector owns its allocator.
type Budget struct {
	limit uint64
	used  uint64
}

// NewBudget creates an allocator with the given limit in bytes.
func NewBudget(limit uint64) *Budget {
	return &Budget{limit: limit}
}

func (b *Budget) Alloc(size uint32) error {
	if b.used+uint64(size) > b.limit {
		return errors.Exhausted(uint64(size), b.used, b.limit)
	}
	b.used += uint64(size)
	return nil
}

func (b *Budget) Free(size uint32) {
	if uint64(size) > b.used {
		panic(errors.Contract(errors.PhaseSweep, "free of %d bytes exceeds %d in use", size, b.used))
	}
	b.used -= uint64(size)
}

func (b *Budget) Used() uint64 { return b.used }

func (b *Budget) Limit() uint64 { return b.limit }

// SetLimit changes the limit. Memory already in use is not reclaimed.
func (b *Budget) SetLimit(limit uint64) {
	b.limit = limit
}
