package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the collector the error occurred
type Phase string

const (
	PhaseAlloc   Phase = "alloc"   // object allocation
	PhaseMark    Phase = "mark"    // gray worklist tracing
	PhaseSweep   Phase = "sweep"   // reclaiming unreached objects
	PhaseRoot    Phase = "root"    // root registration and write barrier
	PhaseConfig  Phase = "config"  // collector construction
	PhaseAccess  Phase = "access"  // typed payload access
	PhaseHost    Phase = "host"    // WASM host module
	PhaseRuntime Phase = "runtime" // everything else
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfMemory  Kind = "out_of_memory"
	KindContract     Kind = "contract"
	KindInvalidKind  Kind = "invalid_kind"
	KindStaleRef     Kind = "stale_reference"
	KindKindMismatch Kind = "kind_mismatch"
	KindOutOfBounds  Kind = "out_of_bounds"
	KindInvalidInput Kind = "invalid_input"
	KindReentrant    Kind = "reentrant"
)

// ErrOutOfMemory matches every allocation failure via errors.Is.
var ErrOutOfMemory = &Error{Phase: PhaseAlloc, Kind: KindOutOfMemory}

// Error is the structured error type used throughout the collector
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Ref     string
	Storage string
	Detail  string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Ref != "" {
		b.WriteString(" at ")
		b.WriteString(e.Ref)
	}

	if e.Storage != "" {
		b.WriteString(": storage ")
		b.WriteString(e.Storage)
	}

	if e.Detail != "" {
		if e.Storage != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Ref sets the offending object reference
func (b *Builder) Ref(ref fmt.Stringer) *Builder {
	b.err.Ref = ref.String()
	return b
}

// Storage sets the storage kind name
func (b *Builder) Storage(s fmt.Stringer) *Builder {
	b.err.Storage = s.String()
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// OutOfMemory creates an allocation failure error
func OutOfMemory(size uint64, cause error) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindOutOfMemory,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Value:  size,
		Cause:  cause,
	}
}

// Exhausted creates the error an allocator reports when its budget is spent
func Exhausted(size, used, limit uint64) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindOutOfMemory,
		Detail: fmt.Sprintf("budget exhausted: %d bytes requested, %d of %d in use", size, used, limit),
		Value:  size,
	}
}

// Contract creates a contract violation error. Contract violations are
// raised with panic; the heap is no longer trustworthy once one occurs.
func Contract(phase Phase, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindContract,
		Detail: fmt.Sprintf(format, args...),
	}
}

// InvalidKind creates an invalid storage kind error
func InvalidKind(kind int) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindInvalidKind,
		Detail: fmt.Sprintf("storage kind %d is not a valid tag", kind),
		Value:  kind,
	}
}

// StaleRef creates an error for a handle whose slot was freed or never existed
func StaleRef(phase Phase, ref fmt.Stringer) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindStaleRef,
		Ref:    ref.String(),
		Detail: "object was freed or never allocated",
	}
}

// KindMismatch creates an error for projecting an object through the wrong view
func KindMismatch(ref, storage fmt.Stringer, want string) *Error {
	return &Error{
		Phase:   PhaseAccess,
		Kind:    KindKindMismatch,
		Ref:     ref.String(),
		Storage: storage.String(),
		Detail:  fmt.Sprintf("not a %s", want),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Reentrant creates an error for entering the collector while a step runs
func Reentrant(op string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindReentrant,
		Detail: fmt.Sprintf("%s called while a collector step is running", op),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
