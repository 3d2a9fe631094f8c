package workload

import (
	stderrors "errors"

	"github.com/wippyai/gc-runtime/errors"
	"github.com/wippyai/gc-runtime/gc"
	"github.com/wippyai/gc-runtime/heap"
	"github.com/wippyai/gc-runtime/value"
)

// Reachable returns every object reachable from the roots of c. References
// that no longer resolve are returned separately.
func Reachable(c *gc.Collector) (live map[value.Ref]struct{}, dangling []value.Ref) {
	live = make(map[value.Ref]struct{})
	stack := c.Roots()
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := live[ref]; seen {
			continue
		}
		if !c.Valid(ref) {
			dangling = append(dangling, ref)
			continue
		}
		live[ref] = struct{}{}
		c.Children(ref, func(v value.Value) {
			if v.IsRef() {
				stack = append(stack, v.Ref())
			}
		})
	}
	return live, dangling
}

// Verify checks that every object reachable from the roots is still
// allocated and, when the collector is idle, that no object is left black.
func Verify(c *gc.Collector) error {
	var errs []error

	_, dangling := Reachable(c)
	for _, ref := range dangling {
		errs = append(errs, errors.StaleRef(errors.PhaseRuntime, ref))
	}

	if c.Phase() == gc.PhaseIdle {
		c.Each(func(ref value.Ref, kind heap.Kind, color heap.Color) bool {
			if color != heap.White {
				errs = append(errs, errors.New(errors.PhaseRuntime, errors.KindContract).
					Ref(ref).
					Storage(kind).
					Detail("%s between cycles", color).
					Build())
			}
			return true
		})
	}

	return stderrors.Join(errs...)
}

// VerifyFull completes any running cycle, runs a full collection and then
// checks that exactly the reachable objects remain.
func VerifyFull(c *gc.Collector) error {
	c.FinishGC()
	c.FullGC()

	if err := Verify(c); err != nil {
		return err
	}
	live, _ := Reachable(c)
	if c.Objects() != len(live) {
		return errors.Contract(errors.PhaseRuntime,
			"%d objects after full collection, %d reachable", c.Objects(), len(live))
	}
	return nil
}
