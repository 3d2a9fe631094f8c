package gc

import (
	"github.com/wippyai/gc-runtime/heap"
	"github.com/wippyai/gc-runtime/value"
)

// EventType identifies a collector lifecycle event.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventFreed
	EventPhase
	EventForcedSweep
	EventOutOfMemory
)

func (t EventType) String() string {
	switch t {
	case EventAllocated:
		return "allocated"
	case EventFreed:
		return "freed"
	case EventPhase:
		return "phase"
	case EventForcedSweep:
		return "forced_sweep"
	case EventOutOfMemory:
		return "out_of_memory"
	default:
		return "unknown"
	}
}

// Event describes something the collector did. Ref and Kind are set for
// allocation and free events, From and To for phase changes, Size for
// allocation, free and memory events.
type Event struct {
	Ref  value.Ref
	Size uint64
	Type EventType
	Kind heap.Kind
	From Phase
	To   Phase
}

// Observer receives collector events. Observers run synchronously inside the
// collector and must not call back into it except for read-only accessors.
type Observer interface {
	OnCollectorEvent(Event)
}

// Stats counts collector work since construction.
type Stats struct {
	Cycles       uint64
	MarkSteps    uint64
	SweepSteps   uint64
	ForcedSweeps uint64
	Allocated    uint64
	Freed        uint64
	Scanned      uint64
}

// Subscribe adds an observer for lifecycle events.
func (c *Collector) Subscribe(o Observer) {
	c.observers = append(c.observers, o)
}

// Unsubscribe removes an observer. Observers are matched by ==, so the
// dynamic type must be comparable.
func (c *Collector) Unsubscribe(o Observer) {
	for i, obs := range c.observers {
		if obs == o {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

func (c *Collector) notify(e Event) {
	for _, o := range c.observers {
		o.OnCollectorEvent(e)
	}
}
