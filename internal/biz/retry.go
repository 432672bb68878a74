package biz

import (
	"context"
	"errors"
	"time"

	pkgerrors "FuseLane/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// RetryOptions configures a retry policy.
type RetryOptions struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero disables retries; negative values are treated as zero.
	MaxRetries int

	// Backoff computes the delay before each retry. Default: an
	// exponential calculator with package defaults.
	Backoff *BackoffCalculator

	// MaxDelay caps the delay between attempts regardless of what the
	// calculator returns. Zero leaves the calculator's cap in charge.
	MaxDelay time.Duration

	// ShouldRetry decides whether a failure is worth another attempt.
	// Default: DefaultShouldRetry.
	ShouldRetry func(err error) bool

	// Timeouts, when set together with an operation name, supplies the
	// per-attempt deadline.
	Timeouts *TimeoutManager

	// AttemptTimeout bounds each attempt when no TimeoutManager is
	// consulted. Zero disables the per-attempt deadline.
	AttemptTimeout time.Duration
}

// DefaultShouldRetry treats failures as retryable except cancellation,
// argument/validation errors, and protective rejections such as
// circuit-open or bulkhead-rejected signals. Timeouts are retryable.
func DefaultShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrInvalidOperation) {
		return false
	}

	var (
		circuitOpen *CircuitOpenError
		bulkhead    *BulkheadRejectedError
		degradation *DegradationRejectedError
	)
	if errors.As(err, &circuitOpen) || errors.As(err, &bulkhead) || errors.As(err, &degradation) {
		return false
	}
	return true
}

// TransientOnlyShouldRetry is a stricter predicate for callers that
// only want to retry failures the classifier recognizes as transient:
// timeouts and connection errors.
func TransientOnlyShouldRetry(err error) bool {
	return DefaultShouldRetry(err) && pkgerrors.IsTransient(err)
}

// RetryPolicy retries an operation with backoff delays between
// attempts. The last failure is surfaced unchanged once retries are
// exhausted; nothing is wrapped.
type RetryPolicy struct {
	opts   RetryOptions
	logger *log.Helper
}

// NewRetryPolicy creates a retry policy with defaults applied.
func NewRetryPolicy(opts RetryOptions, logger log.Logger) *RetryPolicy {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff == nil {
		opts.Backoff = NewBackoffCalculator(BackoffOptions{Strategy: BackoffExponential})
	}
	if opts.ShouldRetry == nil {
		opts.ShouldRetry = DefaultShouldRetry
	}

	return &RetryPolicy{
		opts:   opts,
		logger: log.NewHelper(logger),
	}
}

// Execute runs the operation with up to MaxRetries+1 attempts. When an
// operation name is supplied and a TimeoutManager is attached, the
// per-attempt deadline comes from the manager.
func (p *RetryPolicy) Execute(ctx context.Context, op func(context.Context) (any, error), opName ...string) (any, error) {
	if op == nil {
		return nil, &ValidationError{Field: "operation", Reason: "must not be nil"}
	}

	name := ""
	if len(opName) > 0 {
		name = opName[0]
	}

	var lastErr error
	for attempt := 1; attempt <= p.opts.MaxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := p.runAttempt(ctx, op, name)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !p.opts.ShouldRetry(err) {
			return nil, err
		}
		if attempt == p.opts.MaxRetries+1 {
			break
		}

		delay := p.opts.Backoff.CalculateDelay(attempt)
		if p.opts.MaxDelay > 0 && delay > p.opts.MaxDelay {
			delay = p.opts.MaxDelay
		}

		p.logger.Warnw("msg", "operation failed, retrying",
			"operation", name,
			"attempt", attempt,
			"delay", delay,
			"error", err)

		if err := sleepContext(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// Retry runs op through the policy, preserving the caller's result
// type. It exists because methods cannot carry their own type
// parameters.
func Retry[T any](ctx context.Context, p *RetryPolicy, op func(context.Context) (T, error), opName ...string) (T, error) {
	var zero T
	if op == nil {
		return zero, &ValidationError{Field: "operation", Reason: "must not be nil"}
	}
	res, err := p.Execute(ctx, func(ctx context.Context) (any, error) {
		return op(ctx)
	}, opName...)
	if err != nil {
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// ExecuteVoid shares Execute's retry semantics for operations without a
// result.
func (p *RetryPolicy) ExecuteVoid(ctx context.Context, op func(context.Context) error, opName ...string) error {
	if op == nil {
		return &ValidationError{Field: "operation", Reason: "must not be nil"}
	}
	_, err := p.Execute(ctx, func(ctx context.Context) (any, error) {
		return nil, op(ctx)
	}, opName...)
	return err
}

// runAttempt executes a single attempt under its deadline.
func (p *RetryPolicy) runAttempt(ctx context.Context, op func(context.Context) (any, error), name string) (any, error) {
	timeout := p.opts.AttemptTimeout
	if name != "" && p.opts.Timeouts != nil {
		timeout = p.opts.Timeouts.GetTimeout(name)
	}

	if timeout > 0 {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return op(attemptCtx)
	}
	return op(ctx)
}

// sleepContext waits for the delay or for cancellation, whichever comes
// first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
