package biz

import (
	"errors"
	"fmt"

	"FuseLane/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// ErrInvalidOperation marks a caller error (nil operation, invalid
// arguments) that must never be retried.
var ErrInvalidOperation = errors.New("fuselane: invalid operation")

// ErrBulkheadClosed is returned when executing against a bulkhead that
// has already been closed.
var ErrBulkheadClosed = errors.New("fuselane: bulkhead is closed")

// ValidationError reports an invalid configuration or argument value.
// It is surfaced immediately and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// Is makes validation errors match ErrInvalidOperation so the default
// retry predicate rejects them without a dedicated type check.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidOperation
}

// CircuitOpenError signals that a circuit breaker declined the call.
// It carries the breaker name for diagnostics regardless of whether the
// local or the distributed breaker raised it.
type CircuitOpenError struct {
	Name string
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open", e.Name)
}

// BulkheadRejectedError signals that neither an execution slot nor a
// queue slot was available.
type BulkheadRejectedError struct {
	Name string
}

// Error implements the error interface.
func (e *BulkheadRejectedError) Error() string {
	return fmt.Sprintf("bulkhead %q rejected execution: no capacity available", e.Name)
}

// DegradationRejectedError signals that the current degradation level
// declined to run the operation at all.
type DegradationRejectedError struct {
	Operation string
	Level     model.DegradationLevel
	Priority  int
	Threshold int
}

// Error implements the error interface.
func (e *DegradationRejectedError) Error() string {
	return fmt.Sprintf("operation %q rejected at degradation level %s: priority %d below threshold %d",
		e.Operation, e.Level, e.Priority, e.Threshold)
}

// NoFallbackError signals that the primary operation failed and no
// usable fallback was found at or above the current degradation level.
// The original failure is available via Unwrap as context; the missing
// fallback is the actionable condition.
type NoFallbackError struct {
	Operation string
	Level     model.DegradationLevel
	Cause     error
}

// Error implements the error interface.
func (e *NoFallbackError) Error() string {
	return fmt.Sprintf("no fallback available for operation %q at degradation level %s", e.Operation, e.Level)
}

// Unwrap exposes the original primary (or fallback) failure.
func (e *NoFallbackError) Unwrap() error {
	return e.Cause
}

// IsProtectiveRejection reports whether err is one of the rejection
// signals raised by a policy before the wrapped operation ran, as
// opposed to a failure of the operation itself.
func IsProtectiveRejection(err error) bool {
	var (
		circuitOpen *CircuitOpenError
		bulkhead    *BulkheadRejectedError
		degradation *DegradationRejectedError
		noFallback  *NoFallbackError
	)
	return errors.As(err, &circuitOpen) ||
		errors.As(err, &bulkhead) ||
		errors.As(err, &degradation) ||
		errors.As(err, &noFallback)
}

// ToTransportError maps a policy error onto a coded kratos error for
// the dispatch pipeline boundary. Non-protective errors pass through
// unchanged so callers see the original failure.
func ToTransportError(err error) error {
	if err == nil {
		return nil
	}

	var (
		circuitOpen *CircuitOpenError
		bulkhead    *BulkheadRejectedError
		degradation *DegradationRejectedError
		noFallback  *NoFallbackError
		validation  *ValidationError
	)

	switch {
	case errors.As(err, &circuitOpen):
		return kerrors.New(503, "CIRCUIT_OPEN", circuitOpen.Error())
	case errors.As(err, &bulkhead):
		return kerrors.New(429, "BULKHEAD_REJECTED", bulkhead.Error())
	case errors.As(err, &degradation):
		return kerrors.New(503, "DEGRADATION_REJECTED", degradation.Error())
	case errors.As(err, &noFallback):
		return kerrors.New(503, "NO_FALLBACK_AVAILABLE", noFallback.Error())
	case errors.As(err, &validation):
		return kerrors.New(400, "INVALID_ARGUMENT", validation.Error())
	default:
		return err
	}
}
