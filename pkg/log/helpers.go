package log

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// LogHelper extends the Kratos log.Helper with shortcuts for the
// recurring resilience log events.
type LogHelper struct {
	*log.Helper
}

// NewLogHelper creates an extended log helper.
func NewLogHelper(logger log.Logger) *LogHelper {
	return &LogHelper{
		Helper: log.NewHelper(logger),
	}
}

// Rejection records a protective rejection (circuit open, bulkhead
// full, degradation gate).
func (h *LogHelper) Rejection(operation string, err error, kvs ...interface{}) {
	allKvs := append([]interface{}{
		"msg", "operation rejected",
		"operation", operation,
		"error", err,
	}, kvs...)
	h.Warnw(allKvs...)
}

// SlowOperation records an operation that consumed most of its timeout
// budget.
func (h *LogHelper) SlowOperation(operation string, elapsed, timeout time.Duration) {
	h.Warnw("msg", "slow operation detected",
		"operation", operation,
		"elapsed", elapsed,
		"timeout", timeout)
}

// Outcome records a completed dispatch with its duration.
func (h *LogHelper) Outcome(operation string, elapsed time.Duration, err error) {
	if err != nil {
		h.Warnw("msg", "dispatch failed",
			"operation", operation,
			"elapsed", elapsed,
			"error", err)
		return
	}
	h.Infow("msg", "dispatch completed",
		"operation", operation,
		"elapsed", elapsed)
}
