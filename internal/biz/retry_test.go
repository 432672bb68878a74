package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff() *BackoffCalculator {
	return NewBackoffCalculator(BackoffOptions{
		Strategy:  BackoffFixed,
		BaseDelay: time.Millisecond,
	})
}

func TestRetryPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	p := NewRetryPolicy(RetryOptions{
		MaxRetries: 3,
		Backoff:    fastBackoff(),
	}, log.DefaultLogger)

	calls := 0
	res, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient failure")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_ExhaustsRetries(t *testing.T) {
	p := NewRetryPolicy(RetryOptions{
		MaxRetries: 2,
		Backoff:    fastBackoff(),
	}, log.DefaultLogger)

	lastErr := errors.New("still broken")
	calls := 0
	_, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return nil, lastErr
	})

	// MaxRetries + 1 total attempts; the final failure surfaces unchanged
	assert.Equal(t, 3, calls)
	assert.Same(t, lastErr, err)
}

func TestRetryPolicy_NonRetryableFailsImmediately(t *testing.T) {
	p := NewRetryPolicy(RetryOptions{
		MaxRetries: 5,
		Backoff:    fastBackoff(),
	}, log.DefaultLogger)

	calls := 0
	_, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return nil, &ValidationError{Field: "input", Reason: "must not be empty"}
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestRetryPolicy_ProtectiveRejectionsNotRetried(t *testing.T) {
	p := NewRetryPolicy(RetryOptions{
		MaxRetries: 5,
		Backoff:    fastBackoff(),
	}, log.DefaultLogger)

	calls := 0
	_, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return nil, &CircuitOpenError{Name: "payments"}
	})

	assert.Equal(t, 1, calls)
	var open *CircuitOpenError
	assert.ErrorAs(t, err, &open)
}

func TestRetryPolicy_CancellationStopsRetries(t *testing.T) {
	p := NewRetryPolicy(RetryOptions{
		MaxRetries: 5,
		Backoff: NewBackoffCalculator(BackoffOptions{
			Strategy:  BackoffFixed,
			BaseDelay: time.Second,
		}),
	}, log.DefaultLogger)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.Execute(ctx, func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("transient failure")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_NilOperation(t *testing.T) {
	p := NewRetryPolicy(RetryOptions{}, log.DefaultLogger)

	_, err := p.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	err = p.ExecuteVoid(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestRetryPolicy_AttemptTimeoutRetries(t *testing.T) {
	p := NewRetryPolicy(RetryOptions{
		MaxRetries:     2,
		Backoff:        fastBackoff(),
		AttemptTimeout: 20 * time.Millisecond,
	}, log.DefaultLogger)

	calls := 0
	res, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		if calls == 1 {
			// Deadline failures are retryable
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return "recovered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", res)
	assert.Equal(t, 2, calls)
}

func TestRetryPolicy_TimeoutManagerSuppliesDeadline(t *testing.T) {
	tm := NewTimeoutManager(TimeoutManagerOptions{})
	require.NoError(t, tm.RegisterTimeout("op", 20*time.Millisecond))

	p := NewRetryPolicy(RetryOptions{
		MaxRetries: 0,
		Backoff:    fastBackoff(),
		Timeouts:   tm,
	}, log.DefaultLogger)

	err := p.ExecuteVoid(context.Background(), func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(20*time.Millisecond), deadline, 10*time.Millisecond)
		return nil
	}, "op")
	require.NoError(t, err)
}

func TestRetryPolicy_ZeroRetriesConfigured(t *testing.T) {
	for _, maxRetries := range []int{0, -1} {
		p := NewRetryPolicy(RetryOptions{
			MaxRetries: maxRetries,
			Backoff:    fastBackoff(),
		}, log.DefaultLogger)

		calls := 0
		_, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
			calls++
			return nil, errors.New("boom")
		})

		assert.Error(t, err)
		assert.Equal(t, 1, calls, "MaxRetries=%d must yield a single attempt", maxRetries)
	}
}

func TestDefaultShouldRetry(t *testing.T) {
	assert.False(t, DefaultShouldRetry(nil))
	assert.False(t, DefaultShouldRetry(context.Canceled))
	assert.False(t, DefaultShouldRetry(&ValidationError{Field: "x", Reason: "y"}))
	assert.False(t, DefaultShouldRetry(&CircuitOpenError{Name: "x"}))
	assert.False(t, DefaultShouldRetry(&BulkheadRejectedError{Name: "x"}))
	assert.True(t, DefaultShouldRetry(context.DeadlineExceeded))
	assert.True(t, DefaultShouldRetry(errors.New("transient")))
}

func TestTransientOnlyShouldRetry(t *testing.T) {
	assert.True(t, TransientOnlyShouldRetry(context.DeadlineExceeded))
	assert.True(t, TransientOnlyShouldRetry(errors.New("dial tcp 10.0.0.1:6379: connection refused")))
	assert.False(t, TransientOnlyShouldRetry(errors.New("record malformed")))
	assert.False(t, TransientOnlyShouldRetry(context.Canceled))
}

func TestRetry_TypedResult(t *testing.T) {
	p := NewRetryPolicy(RetryOptions{MaxRetries: 2, Backoff: fastBackoff()}, log.DefaultLogger)

	calls := 0
	got, err := Retry(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, context.DeadlineExceeded
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, calls)
}

func TestRetry_TypedZeroOnFailure(t *testing.T) {
	p := NewRetryPolicy(RetryOptions{MaxRetries: 0, Backoff: fastBackoff()}, log.DefaultLogger)

	got, err := Retry(context.Background(), p, func(ctx context.Context) (string, error) {
		return "partial", context.DeadlineExceeded
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "", got)

	_, err = Retry[int](context.Background(), p, nil)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
