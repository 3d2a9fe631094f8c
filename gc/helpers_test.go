package gc

import (
	stderrors "errors"
	"testing"

	"go.uber.org/zap/zaptest"

	gcruntime "github.com/wippyai/gc-runtime"
	"github.com/wippyai/gc-runtime/errors"
	"github.com/wippyai/gc-runtime/heap"
	"github.com/wippyai/gc-runtime/value"
)

func newTestCollector(t *testing.T, markMax, sweepMax int, mem gcruntime.Allocator) *Collector {
	t.Helper()
	c := New(Options{
		Allocator: mem,
		Logger:    zaptest.NewLogger(t),
		MarkMax:   markMax,
		SweepMax:  sweepMax,
	})
	t.Cleanup(func() {
		if !c.closed {
			c.Close()
		}
	})
	return c
}

func mustTuple(t *testing.T, c *Collector, arity int) value.Ref {
	t.Helper()
	ref, err := c.AllocTuple(arity)
	if err != nil {
		t.Fatalf("AllocTuple(%d) failed: %v", arity, err)
	}
	return ref
}

func expectPanicKind(t *testing.T, kind errors.Kind, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("panic value %v is not an error", r)
		}
		var e *errors.Error
		if !stderrors.As(err, &e) || e.Kind != kind {
			t.Fatalf("panic %v, want kind %s", err, kind)
		}
	}()
	fn()
}

// scriptedAllocator fails the next fails calls to Alloc.
type scriptedAllocator struct {
	fails int
	calls int
}

func (s *scriptedAllocator) Alloc(size uint32) error {
	s.calls++
	if s.fails > 0 {
		s.fails--
		return errors.Exhausted(uint64(size), 0, 0)
	}
	return nil
}

func (s *scriptedAllocator) Free(uint32) {}

type recorder struct {
	events []Event
}

func (r *recorder) OnCollectorEvent(e Event) {
	r.events = append(r.events, e)
}

func (r *recorder) count(typ EventType) int {
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func allWhite(t *testing.T, c *Collector) {
	t.Helper()
	c.Each(func(ref value.Ref, kind heap.Kind, color heap.Color) bool {
		if color != heap.White {
			t.Fatalf("%s (%s) is %s while idle", ref, kind, color)
		}
		return true
	})
}
