// Package model holds shared value types exchanged between the policy
// and data layers.
package model

import "time"

// CircuitState represents the circuit breaker state.
// Transitions follow Closed -> Open -> HalfOpen -> {Closed|Open};
// a circuit never moves from Closed directly to HalfOpen.
type CircuitState int

const (
	// CircuitClosed means calls flow through normally.
	CircuitClosed CircuitState = iota
	// CircuitOpen means calls fail immediately until the cooldown elapses.
	CircuitOpen
	// CircuitHalfOpen means a limited number of trial calls are let through.
	CircuitHalfOpen
)

// String returns the string representation of the state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// DistributedCircuitState is the circuit state record persisted in the
// shared cache. It is created on the first open transition, overwritten
// on every transition and removed on reset.
type DistributedCircuitState struct {
	State          CircuitState `json:"state"`
	OpenedAt       time.Time    `json:"opened_at"`
	OpenUntil      time.Time    `json:"open_until"`
	TransitionedAt time.Time    `json:"transitioned_at"`
	InstanceID     string       `json:"instance_id"`
}

// DistributedCircuitMetrics is the rolling outcome record persisted in
// the shared cache alongside the state record. Concurrent writers may
// overwrite each other's increments; the breaker only needs approximate
// counts to evaluate its thresholds.
type DistributedCircuitMetrics struct {
	SuccessCount         int64     `json:"success_count"`
	FailureCount         int64     `json:"failure_count"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	LastSuccessAt        time.Time `json:"last_success_at"`
	LastFailureAt        time.Time `json:"last_failure_at"`
	LastFailureReason    string    `json:"last_failure_reason"`
}

// Total returns the number of recorded outcomes.
func (m *DistributedCircuitMetrics) Total() int64 {
	return m.SuccessCount + m.FailureCount
}

// FailureRate returns the failure ratio over all recorded outcomes,
// or 0 when nothing has been recorded yet.
func (m *DistributedCircuitMetrics) FailureRate() float64 {
	total := m.Total()
	if total == 0 {
		return 0
	}
	return float64(m.FailureCount) / float64(total)
}
