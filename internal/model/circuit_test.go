package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}

func TestDistributedCircuitMetrics_FailureRate(t *testing.T) {
	m := &DistributedCircuitMetrics{}
	assert.Equal(t, 0.0, m.FailureRate())
	assert.Equal(t, int64(0), m.Total())

	m.SuccessCount = 6
	m.FailureCount = 4
	assert.Equal(t, int64(10), m.Total())
	assert.InDelta(t, 0.4, m.FailureRate(), 1e-9)
}
