package gc

import (
	"github.com/wippyai/gc-runtime/errors"
	"github.com/wippyai/gc-runtime/value"
)

// worklist is the gray set: objects discovered but not yet scanned.
// Duplicates are allowed; scanning skips objects that are already black.
type worklist struct {
	items []value.Ref
}

func (w *worklist) push(r value.Ref) {
	w.items = append(w.items, r)
}

func (w *worklist) pop() value.Ref {
	n := len(w.items)
	if n == 0 {
		panic(errors.Contract(errors.PhaseMark, "pop from empty gray worklist"))
	}
	r := w.items[n-1]
	w.items = w.items[:n-1]
	return r
}

func (w *worklist) len() int { return len(w.items) }

func (w *worklist) reset() { w.items = w.items[:0] }
