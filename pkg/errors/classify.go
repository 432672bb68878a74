// Package errors provides failure classification utilities for retry
// decisions.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureType represents the classified category of an operation error.
type FailureType int

const (
	// FailureUnknown represents an error with no recognizable category.
	FailureUnknown FailureType = iota
	// FailureTimeout represents an exceeded deadline or I/O timeout.
	FailureTimeout
	// FailureConnection represents a broken or refused connection.
	FailureConnection
	// FailureCanceled represents a caller-initiated cancellation.
	FailureCanceled
)

// ClassifiedError wraps an operation error with its failure category.
type ClassifiedError struct {
	Type        FailureType
	OriginalErr error
	Message     string
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.OriginalErr)
}

// Unwrap returns the underlying error for errors.Is and errors.As
// compatibility.
func (e *ClassifiedError) Unwrap() error {
	return e.OriginalErr
}

// Classify buckets an operation error into a failure category.
//
// It recognizes context errors and net errors directly; everything else
// falls back to message inspection for the common connection failure
// patterns:
//   - context.DeadlineExceeded, net.Error timeouts → FailureTimeout
//   - context.Canceled → FailureCanceled
//   - refused/reset/broken-pipe patterns → FailureConnection
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return &ClassifiedError{
			Type:        FailureCanceled,
			OriginalErr: err,
			Message:     "operation canceled",
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{
			Type:        FailureTimeout,
			OriginalErr: err,
			Message:     "deadline exceeded",
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClassifiedError{
			Type:        FailureTimeout,
			OriginalErr: err,
			Message:     "network timeout",
		}
	}

	if isConnectionError(err.Error()) {
		return &ClassifiedError{
			Type:        FailureConnection,
			OriginalErr: err,
			Message:     "connection error",
		}
	}

	return &ClassifiedError{
		Type:        FailureUnknown,
		OriginalErr: err,
		Message:     "unclassified error",
	}
}

// isConnectionError checks if the error message indicates a connection
// problem.
func isConnectionError(errMsg string) bool {
	connectionKeywords := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"timeout",
		"connection lost",
		"can't connect",
		"dial tcp",
	}

	for _, keyword := range connectionKeywords {
		if len(errMsg) > 0 && contains(errMsg, keyword) {
			return true
		}
	}
	return false
}

// contains checks if a string contains a substring (case-insensitive).
func contains(str, substr string) bool {
	for i := 0; i <= len(str)-len(substr); i++ {
		match := true
		for j := 0; j < len(substr); j++ {
			c1 := str[i+j]
			c2 := substr[j]
			if c1 >= 'A' && c1 <= 'Z' {
				c1 += 'a' - 'A'
			}
			if c2 >= 'A' && c2 <= 'Z' {
				c2 += 'a' - 'A'
			}
			if c1 != c2 {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// IsTimeoutError checks if the error is a deadline or I/O timeout.
func IsTimeoutError(err error) bool {
	c := Classify(err)
	return c != nil && c.Type == FailureTimeout
}

// IsConnectionError checks if the error is a connection failure.
func IsConnectionError(err error) bool {
	c := Classify(err)
	return c != nil && c.Type == FailureConnection
}

// IsTransient reports whether the error is worth retrying: timeouts and
// connection failures usually clear on a later attempt.
func IsTransient(err error) bool {
	c := Classify(err)
	if c == nil {
		return false
	}
	return c.Type == FailureTimeout || c.Type == FailureConnection
}
