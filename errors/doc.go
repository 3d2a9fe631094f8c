// Package errors provides structured error types for the gc-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the offending reference, storage kind and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAccess, errors.KindKindMismatch).
//		Ref(ref).
//		Storage(kind).
//		Detail("not a tuple").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfMemory(size, cause)
//	err := errors.OutOfBounds(errors.PhaseAccess, 10, 5)
//
// Out-of-memory is the only failure returned as a value; match it with
//
//	stderrors.Is(err, errors.ErrOutOfMemory)
//
// Contract violations (invalid storage kinds, stale references, bad step
// budgets) are raised with panic carrying an *Error.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
