package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"FuseLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDegradation(t *testing.T, opts DegradationOptions) *GracefulDegradationService {
	t.Helper()
	s, err := NewGracefulDegradationService(opts, log.DefaultLogger)
	require.NoError(t, err)
	return s
}

func TestDegradation_StartsAtNormal(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{})
	assert.Equal(t, model.DegradationNormal, s.CurrentLevel())
}

func TestDegradation_ExecutePrimarySuccess(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{})

	res, err := s.Execute(context.Background(), &DegradationContext{
		OperationName: "get-profile",
		Priority:      50,
		Primary: func(ctx context.Context) (any, error) {
			return "profile", nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "profile", res)

	m := s.GetMetrics()
	assert.Equal(t, int64(1), m.TotalOperations)
	assert.Equal(t, 1.0, m.SuccessRate)
	assert.Equal(t, int64(1), m.Operations["get-profile"].SuccessfulOperations)
}

func TestDegradation_PriorityGateRejectsLowPriority(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{})
	s.SetLevel(model.DegradationMajor, "load shedding")

	calls := 0
	_, err := s.Execute(context.Background(), &DegradationContext{
		OperationName: "recommendations",
		Priority:      10, // Major admits >= 50
		Primary: func(ctx context.Context) (any, error) {
			calls++
			return nil, nil
		},
	})

	var rejected *DegradationRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "recommendations", rejected.Operation)
	assert.Equal(t, model.DegradationMajor, rejected.Level)
	assert.Equal(t, 10, rejected.Priority)
	assert.Equal(t, 50, rejected.Threshold)
	assert.Equal(t, 0, calls)
}

func TestDegradation_CriticalBypassesPriorityGate(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{})
	s.SetLevel(model.DegradationEmergency, "meltdown")

	res, err := s.Execute(context.Background(), &DegradationContext{
		OperationName: "process-payment",
		Priority:      0,
		IsCritical:    true,
		Primary: func(ctx context.Context) (any, error) {
			return "charged", nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "charged", res)
}

func TestDegradation_FallbackSelectionNearestLevel(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{})
	s.SetLevel(model.DegradationModerate, "elevated errors")

	ran := ""
	_, err := s.Execute(context.Background(), &DegradationContext{
		OperationName: "search",
		Priority:      90,
		Primary: func(ctx context.Context) (any, error) {
			return nil, errors.New("index unavailable")
		},
		Fallbacks: map[model.DegradationLevel]func(context.Context) (any, error){
			model.DegradationModerate: func(ctx context.Context) (any, error) {
				ran = "moderate"
				return "cached results", nil
			},
			model.DegradationMajor: func(ctx context.Context) (any, error) {
				ran = "major"
				return "stale results", nil
			},
		},
	})

	require.NoError(t, err)
	// The fallback for the current level wins over more severe ones
	assert.Equal(t, "moderate", ran)

	m := s.GetMetrics()
	assert.Equal(t, int64(1), m.TotalFallbacks)
	assert.Equal(t, int64(1), m.Operations["search"].FallbackExecutions)
}

func TestDegradation_FallbackWalksTowardEmergency(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{})
	s.SetLevel(model.DegradationMinor, "elevated errors")

	_, err := s.Execute(context.Background(), &DegradationContext{
		OperationName: "search",
		Priority:      90,
		Primary: func(ctx context.Context) (any, error) {
			return nil, errors.New("index unavailable")
		},
		Fallbacks: map[model.DegradationLevel]func(context.Context) (any, error){
			// Only a severe-level fallback is registered; the walk finds it
			model.DegradationSevere: func(ctx context.Context) (any, error) {
				return "minimal results", nil
			},
		},
	})

	require.NoError(t, err)
}

func TestDegradation_NoFallbackAvailable(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{})

	cause := errors.New("primary down")
	_, err := s.Execute(context.Background(), &DegradationContext{
		OperationName: "search",
		Priority:      90,
		Primary: func(ctx context.Context) (any, error) {
			return nil, cause
		},
	})

	var noFallback *NoFallbackError
	require.ErrorAs(t, err, &noFallback)
	assert.ErrorIs(t, err, cause)
}

func TestDegradation_CriticalNoFallbackKeepsOriginalError(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{})

	cause := errors.New("payment gateway down")
	_, err := s.Execute(context.Background(), &DegradationContext{
		OperationName: "process-payment",
		Priority:      100,
		IsCritical:    true,
		Primary: func(ctx context.Context) (any, error) {
			return nil, cause
		},
	})

	assert.Same(t, cause, err)
}

func TestDegradation_FailedFallbackReportsNoFallback(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{})

	fallbackErr := errors.New("cache also down")
	_, err := s.Execute(context.Background(), &DegradationContext{
		OperationName: "search",
		Priority:      90,
		Primary: func(ctx context.Context) (any, error) {
			return nil, errors.New("primary down")
		},
		Fallbacks: map[model.DegradationLevel]func(context.Context) (any, error){
			model.DegradationNormal: func(ctx context.Context) (any, error) {
				return nil, fallbackErr
			},
		},
	})

	var noFallback *NoFallbackError
	require.ErrorAs(t, err, &noFallback)
	assert.ErrorIs(t, err, fallbackErr)
}

func TestDegradation_SetLevelSameLevelIsNoOp(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{})
	s.SetLevel(model.DegradationMinor, "first")
	before := s.GetMetrics().LastChangeAt

	s.SetLevel(model.DegradationMinor, "again")
	after := s.GetMetrics()
	assert.Equal(t, before, after.LastChangeAt)
	assert.Equal(t, "first", after.LastChangeReason)
}

func TestDegradation_EvaluateHealthPicksMostSevereBreach(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{MinimumLevelDuration: time.Millisecond})
	time.Sleep(2 * time.Millisecond)

	// Error rate breaches up through Severe (>= 0.50, < 0.70)
	s.UpdateHealthMetrics(model.HealthMetrics{ErrorRate: 0.55, Timestamp: time.Now()})
	s.EvaluateHealth()
	assert.Equal(t, model.DegradationSevere, s.CurrentLevel())
}

func TestDegradation_EvaluateHealthRecoversToNormal(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{MinimumLevelDuration: time.Millisecond})
	s.SetLevel(model.DegradationMajor, "incident")
	time.Sleep(2 * time.Millisecond)

	s.UpdateHealthMetrics(model.HealthMetrics{ErrorRate: 0.01, CPUPercent: 20, MemoryPercent: 30})
	s.EvaluateHealth()
	assert.Equal(t, model.DegradationNormal, s.CurrentLevel())
}

func TestDegradation_EvaluateHealthRateLimited(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{MinimumLevelDuration: time.Hour})

	s.UpdateHealthMetrics(model.HealthMetrics{ErrorRate: 0.9})
	s.EvaluateHealth()
	level := s.CurrentLevel()

	// A second evaluation inside the window must not move the level
	s.UpdateHealthMetrics(model.HealthMetrics{ErrorRate: 0.0})
	s.EvaluateHealth()
	assert.Equal(t, level, s.CurrentLevel())
}

func TestDegradation_TrackedOperationsBounded(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{MaxTrackedOperations: 2})

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Execute(context.Background(), &DegradationContext{
			OperationName: name,
			Priority:      50,
			Primary:       func(ctx context.Context) (any, error) { return nil, nil },
		})
		require.NoError(t, err)
	}

	m := s.GetMetrics()
	assert.Len(t, m.Operations, 2)
	// Totals survive eviction
	assert.Equal(t, int64(3), m.TotalOperations)
}

func TestDegradation_NilPrimary(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{})

	_, err := s.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = s.Execute(context.Background(), &DegradationContext{OperationName: "x"})
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestDegrade_TypedResult(t *testing.T) {
	s := newTestDegradation(t, DegradationOptions{})

	got, err := Degrade[int](context.Background(), s, &DegradationContext{
		OperationName: "orders.total",
		Priority:      100,
		Primary: func(ctx context.Context) (any, error) {
			return 7, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	_, err = Degrade[int](context.Background(), s, &DegradationContext{
		OperationName: "orders.total",
		Priority:      100,
		Primary: func(ctx context.Context) (any, error) {
			return nil, errors.New("primary down")
		},
	})
	var nfe *NoFallbackError
	assert.ErrorAs(t, err, &nfe)
}
