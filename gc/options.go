package gc

import (
	"go.uber.org/zap"

	gcruntime "github.com/wippyai/gc-runtime"
	"github.com/wippyai/gc-runtime/errors"
)

// Options configures a Collector.
type Options struct {
	// Allocator acquires raw memory per object. Nil means unbounded.
	Allocator gcruntime.Allocator
	// Logger overrides the package logger for this collector.
	Logger *zap.Logger
	// MarkMax is the number of worklist entries processed per mark step.
	MarkMax int
	// SweepMax is the number of heap-list entries processed per sweep step.
	SweepMax int
}

// DefaultOptions returns default collector configuration.
func DefaultOptions() Options {
	return Options{
		MarkMax:  64,
		SweepMax: 64,
	}
}

// Validate checks the step budgets.
func (o Options) Validate() error {
	if o.MarkMax <= 0 {
		return errors.Contract(errors.PhaseConfig, "MarkMax must be > 0, got %d", o.MarkMax)
	}
	if o.SweepMax <= 0 {
		return errors.Contract(errors.PhaseConfig, "SweepMax must be > 0, got %d", o.SweepMax)
	}
	return nil
}
