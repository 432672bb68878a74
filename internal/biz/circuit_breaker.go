package biz

import (
	"context"
	"errors"
	"sync"
	"time"

	"FuseLane/internal/model"
)

// CircuitBreakerOptions configures a local circuit breaker. The options
// are immutable once a breaker is constructed.
type CircuitBreakerOptions struct {
	// Name identifies the breaker in rejection signals and logs.
	Name string

	// FailureThreshold is the number of consecutive failures that opens
	// the circuit. Default: 5.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive trial successes
	// that closes the circuit from half-open. Default: 2.
	SuccessThreshold int

	// OpenDuration is the cooldown before the circuit admits trial
	// calls again. Default: 30s.
	OpenDuration time.Duration

	// OperationTimeout bounds each wrapped call. Zero disables the
	// per-call deadline.
	OperationTimeout time.Duration

	// MaxHalfOpenTests bounds concurrent trial calls in half-open
	// state. Default: 1.
	MaxHalfOpenTests int

	// OnStateChange is invoked after every state transition.
	OnStateChange func(name string, from, to model.CircuitState)

	// IsFailure decides whether an error counts against the breaker.
	// Default: every non-nil error except context cancellation.
	IsFailure func(err error) bool
}

// CircuitBreakerPolicy is a per-process failure-triggered circuit with
// closed/open/half-open states. State transitions are serialized under
// a single mutex.
type CircuitBreakerPolicy struct {
	opts CircuitBreakerOptions

	mu                   sync.Mutex
	state                model.CircuitState
	consecutiveFailures  int
	consecutiveSuccesses int
	halfOpenInFlight     int
	openedAt             time.Time
	totalSuccesses       int64
	totalFailures        int64
}

// NewCircuitBreakerPolicy creates a breaker with defaults applied.
func NewCircuitBreakerPolicy(opts CircuitBreakerOptions) *CircuitBreakerPolicy {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = 2
	}
	if opts.OpenDuration <= 0 {
		opts.OpenDuration = 30 * time.Second
	}
	if opts.MaxHalfOpenTests <= 0 {
		opts.MaxHalfOpenTests = 1
	}
	if opts.IsFailure == nil {
		opts.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}

	return &CircuitBreakerPolicy{
		opts:  opts,
		state: model.CircuitClosed,
	}
}

// Execute runs the operation through the breaker. While the circuit is
// open the call fails immediately with a CircuitOpenError; outcomes of
// admitted calls feed the state machine.
func (p *CircuitBreakerPolicy) Execute(ctx context.Context, op func(context.Context) error) error {
	if op == nil {
		return &ValidationError{Field: "operation", Reason: "must not be nil"}
	}
	if err := p.beforeCall(); err != nil {
		return err
	}

	if p.opts.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.OperationTimeout)
		defer cancel()
	}

	err := op(ctx)
	p.afterCall(err)
	return err
}

// Protect runs op through the breaker, preserving the caller's result
// type.
func Protect[T any](ctx context.Context, p *CircuitBreakerPolicy, op func(context.Context) (T, error)) (T, error) {
	var res T
	if op == nil {
		return res, &ValidationError{Field: "operation", Reason: "must not be nil"}
	}
	err := p.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		res, innerErr = op(ctx)
		return innerErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res, nil
}

// State returns the current state, applying the open -> half-open
// transition when the cooldown has elapsed.
func (p *CircuitBreakerPolicy) State() model.CircuitState {
	p.mu.Lock()
	state, promoted := p.currentStateLocked()
	p.mu.Unlock()

	if promoted {
		p.notify(model.CircuitOpen, model.CircuitHalfOpen)
	}
	return state
}

// Reset forces the circuit closed and zeroes all counters. The state
// change notification fires only if the state actually differed.
func (p *CircuitBreakerPolicy) Reset() {
	p.mu.Lock()
	old := p.state
	p.state = model.CircuitClosed
	p.consecutiveFailures = 0
	p.consecutiveSuccesses = 0
	p.halfOpenInFlight = 0
	p.mu.Unlock()

	if old != model.CircuitClosed {
		p.notify(old, model.CircuitClosed)
	}
}

// CircuitBreakerMetrics is a read-only snapshot of breaker state.
type CircuitBreakerMetrics struct {
	Name                string             `json:"name"`
	State               model.CircuitState `json:"state"`
	ConsecutiveFailures int                `json:"consecutive_failures"`
	TotalSuccesses      int64              `json:"total_successes"`
	TotalFailures       int64              `json:"total_failures"`
	OpenedAt            time.Time          `json:"opened_at,omitempty"`
}

// Metrics returns a point-in-time snapshot.
func (p *CircuitBreakerPolicy) Metrics() CircuitBreakerMetrics {
	p.mu.Lock()
	state, promoted := p.currentStateLocked()
	m := CircuitBreakerMetrics{
		Name:                p.opts.Name,
		State:               state,
		ConsecutiveFailures: p.consecutiveFailures,
		TotalSuccesses:      p.totalSuccesses,
		TotalFailures:       p.totalFailures,
		OpenedAt:            p.openedAt,
	}
	p.mu.Unlock()

	if promoted {
		p.notify(model.CircuitOpen, model.CircuitHalfOpen)
	}
	return m
}

// beforeCall admits or rejects the call and reserves a half-open trial
// slot when applicable.
func (p *CircuitBreakerPolicy) beforeCall() error {
	p.mu.Lock()
	state, promoted := p.currentStateLocked()

	var err error
	switch state {
	case model.CircuitOpen:
		err = &CircuitOpenError{Name: p.opts.Name}
	case model.CircuitHalfOpen:
		if p.halfOpenInFlight >= p.opts.MaxHalfOpenTests {
			err = &CircuitOpenError{Name: p.opts.Name}
		} else {
			p.halfOpenInFlight++
		}
	}
	p.mu.Unlock()

	if promoted {
		p.notify(model.CircuitOpen, model.CircuitHalfOpen)
	}
	return err
}

// afterCall records the outcome and applies state transitions.
func (p *CircuitBreakerPolicy) afterCall(err error) {
	failed := p.opts.IsFailure(err)

	p.mu.Lock()
	old := p.state

	if p.state == model.CircuitHalfOpen && p.halfOpenInFlight > 0 {
		p.halfOpenInFlight--
	}

	if failed {
		p.totalFailures++
		p.consecutiveSuccesses = 0
		switch p.state {
		case model.CircuitClosed:
			p.consecutiveFailures++
			if p.consecutiveFailures >= p.opts.FailureThreshold {
				p.state = model.CircuitOpen
				p.openedAt = time.Now()
			}
		case model.CircuitHalfOpen:
			// A single trial failure reopens the circuit and restarts
			// the open timer.
			p.state = model.CircuitOpen
			p.openedAt = time.Now()
			p.halfOpenInFlight = 0
		}
	} else if err == nil {
		p.totalSuccesses++
		p.consecutiveFailures = 0
		if p.state == model.CircuitHalfOpen {
			p.consecutiveSuccesses++
			if p.consecutiveSuccesses >= p.opts.SuccessThreshold {
				p.state = model.CircuitClosed
				p.consecutiveSuccesses = 0
				p.halfOpenInFlight = 0
			}
		}
	}

	current := p.state
	p.mu.Unlock()

	if old != current {
		p.notify(old, current)
	}
}

// currentStateLocked applies the timed open -> half-open transition and
// reports whether it fired. Callers must hold the mutex and emit the
// notification only after releasing it, so a hook may re-enter the
// breaker.
func (p *CircuitBreakerPolicy) currentStateLocked() (model.CircuitState, bool) {
	if p.state == model.CircuitOpen && time.Since(p.openedAt) >= p.opts.OpenDuration {
		p.state = model.CircuitHalfOpen
		p.halfOpenInFlight = 0
		p.consecutiveSuccesses = 0
		return p.state, true
	}
	return p.state, false
}

func (p *CircuitBreakerPolicy) notify(from, to model.CircuitState) {
	if p.opts.OnStateChange != nil {
		p.opts.OnStateChange(p.opts.Name, from, to)
	}
}
