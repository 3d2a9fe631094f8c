package gc

import (
	"fmt"
	"io"

	"github.com/wippyai/gc-runtime/heap"
	"github.com/wippyai/gc-runtime/value"
)

// The Inspect family dumps collector state for debugging. The format is not
// stable.

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// Inspect writes the collector state: budgets, counters and cursors.
func (c *Collector) Inspect(w io.Writer) error {
	p := &printer{w: w}
	c.inspect(p)
	return p.err
}

// InspectHeap writes every object on the heap list with its color and kind.
func (c *Collector) InspectHeap(w io.Writer) error {
	p := &printer{w: w}
	c.inspectHeap(p)
	return p.err
}

// InspectRoots writes the registered roots.
func (c *Collector) InspectRoots(w io.Writer) error {
	p := &printer{w: w}
	c.inspectRoots(p)
	return p.err
}

// InspectGray writes the worklist from bottom to top.
func (c *Collector) InspectGray(w io.Writer) error {
	p := &printer{w: w}
	c.inspectGray(p)
	return p.err
}

// InspectAll writes all of the above.
func (c *Collector) InspectAll(w io.Writer) error {
	p := &printer{w: w}
	c.inspect(p)
	c.inspectHeap(p)
	c.inspectRoots(p)
	c.inspectGray(p)
	p.printf("\n")
	return p.err
}

func (c *Collector) inspect(p *printer) {
	p.printf("-- state --\n")
	p.printf("mark_max: %d\tsweep_max: %d\tallocated: %d\n", c.opts.MarkMax, c.opts.SweepMax, c.allocated)
	p.printf("registered: %d\tgray: %d\t\tphase: %s\tpaused: %t\n", len(c.roots), c.gray.len(), c.phase, c.paused)
	p.printf("head: %s\n", c.head)
	p.printf("boundary: %s\n", c.boundary)
	p.printf("sweeping: %s\n", c.sweeping)
	p.printf("swept: %s\n", c.swept)
	p.printf("fresh: %d\n", c.fresh)
}

func (c *Collector) inspectHeap(p *printer) {
	p.printf("-- heap --\n")
	c.Each(func(ref value.Ref, kind heap.Kind, color heap.Color) bool {
		p.printf("%s:%s:%s\n", ref, color, kind)
		return p.err == nil
	})
}

func (c *Collector) inspectRoots(p *printer) {
	p.printf("-- registered --\n")
	for _, r := range c.Roots() {
		p.printf("%s:%s\n", r, c.colorOf(r))
	}
}

func (c *Collector) inspectGray(p *printer) {
	p.printf("-- gray --\n")
	for _, r := range c.gray.items {
		p.printf("%s:%s\n", r, c.colorOf(r))
	}
}

func (c *Collector) colorOf(r value.Ref) string {
	obj, ok := c.arena.Get(r)
	if !ok {
		return "stale"
	}
	return obj.Color().String()
}
