package biz

import "sync/atomic"

// OperationStatistics tracks outcome counters for a single operation
// name. All counters are updated atomically so concurrent recorders
// never lose updates.
type OperationStatistics struct {
	totalAttempts      atomic.Int64
	successful         atomic.Int64
	failed             atomic.Int64
	fallbackExecutions atomic.Int64
}

// NewOperationStatistics creates an empty counter set.
func NewOperationStatistics() *OperationStatistics {
	return &OperationStatistics{}
}

// RecordAttempt increments the attempt counter.
func (s *OperationStatistics) RecordAttempt() {
	s.totalAttempts.Add(1)
}

// RecordSuccess increments the success counter.
func (s *OperationStatistics) RecordSuccess() {
	s.successful.Add(1)
}

// RecordFailure increments the failure counter.
func (s *OperationStatistics) RecordFailure() {
	s.failed.Add(1)
}

// RecordFallback increments the fallback-execution counter.
func (s *OperationStatistics) RecordFallback() {
	s.fallbackExecutions.Add(1)
}

// OperationStatisticsSnapshot is an immutable point-in-time copy of an
// OperationStatistics counter set.
type OperationStatisticsSnapshot struct {
	TotalAttempts        int64 `json:"total_attempts"`
	SuccessfulOperations int64 `json:"successful_operations"`
	FailedOperations     int64 `json:"failed_operations"`
	FallbackExecutions   int64 `json:"fallback_executions"`
}

// Clone returns a point-in-time copy. The snapshot never changes after
// it is taken, even as the original continues recording.
func (s *OperationStatistics) Clone() OperationStatisticsSnapshot {
	return OperationStatisticsSnapshot{
		TotalAttempts:        s.totalAttempts.Load(),
		SuccessfulOperations: s.successful.Load(),
		FailedOperations:     s.failed.Load(),
		FallbackExecutions:   s.fallbackExecutions.Load(),
	}
}
