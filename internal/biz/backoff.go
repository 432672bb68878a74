package biz

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// BackoffStrategy selects the delay progression between retry attempts.
type BackoffStrategy int

const (
	// BackoffFixed waits the base delay on every attempt.
	BackoffFixed BackoffStrategy = iota
	// BackoffLinear waits base * attempt.
	BackoffLinear
	// BackoffExponential waits base * factor^(attempt-1).
	BackoffExponential
	// BackoffFibonacci waits base * fib(attempt).
	BackoffFibonacci
)

// String returns the string representation of the strategy.
func (s BackoffStrategy) String() string {
	switch s {
	case BackoffFixed:
		return "fixed"
	case BackoffLinear:
		return "linear"
	case BackoffExponential:
		return "exponential"
	case BackoffFibonacci:
		return "fibonacci"
	default:
		return "unknown"
	}
}

// JitterMode selects how computed delays are randomized to avoid
// synchronized retry storms.
type JitterMode int

const (
	// JitterNone leaves the computed delay unchanged.
	JitterNone JitterMode = iota
	// JitterFull multiplies the computed delay by a random factor in [0.5, 1.0].
	JitterFull
	// JitterDecorrelated uses a decorrelated recurrence seeded from the
	// previous delay when generating sequences via GenerateDelays.
	// Single CalculateDelay calls behave like JitterFull.
	JitterDecorrelated
)

// BackoffOptions configures a BackoffCalculator.
type BackoffOptions struct {
	// Strategy is the delay progression. Default: BackoffExponential.
	Strategy BackoffStrategy

	// BaseDelay is the starting delay. Default: 100ms.
	BaseDelay time.Duration

	// MaxDelay caps every computed delay. Default: 30s.
	MaxDelay time.Duration

	// Factor is the exponential growth factor. Default: 2.0.
	Factor float64

	// Jitter randomizes the computed delays. Default: JitterNone.
	Jitter JitterMode
}

// BackoffCalculator computes retry delays from an attempt number.
// It is stateless apart from its configuration and random source and is
// safe for concurrent use.
type BackoffCalculator struct {
	opts BackoffOptions

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoffCalculator creates a calculator with defaults applied.
func NewBackoffCalculator(opts BackoffOptions) *BackoffCalculator {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Factor <= 1 {
		opts.Factor = 2.0
	}

	return &BackoffCalculator{
		opts: opts,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CalculateDelay returns the delay before the given attempt.
// Attempts <= 0 return zero; callers needing strict validation wrap this.
func (c *BackoffCalculator) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := c.rawDelay(attempt)

	if c.opts.Jitter != JitterNone {
		// Full/equal jitter: keep at least half the computed delay.
		delay = time.Duration(float64(delay) * (0.5 + 0.5*c.randFloat()))
	}

	return delay
}

// GenerateDelays returns the delays for attempts 1..n. The decorrelated
// jitter recurrence is re-seeded from the base delay at the start of
// every sequence. n <= 0 yields an empty sequence.
func (c *BackoffCalculator) GenerateDelays(n int) []time.Duration {
	if n <= 0 {
		return nil
	}

	delays := make([]time.Duration, 0, n)

	if c.opts.Jitter == JitterDecorrelated {
		// Decorrelated jitter: sleep = min(max, rand(base, prev*3)).
		prev := c.opts.BaseDelay
		for i := 0; i < n; i++ {
			upper := 3 * prev
			if upper < c.opts.BaseDelay {
				upper = c.opts.BaseDelay
			}
			span := float64(upper - c.opts.BaseDelay)
			d := c.opts.BaseDelay + time.Duration(span*c.randFloat())
			if d > c.opts.MaxDelay {
				d = c.opts.MaxDelay
			}
			delays = append(delays, d)
			prev = d
		}
		return delays
	}

	for attempt := 1; attempt <= n; attempt++ {
		delays = append(delays, c.CalculateDelay(attempt))
	}
	return delays
}

// rawDelay computes the strategy delay for an attempt, capped at MaxDelay.
func (c *BackoffCalculator) rawDelay(attempt int) time.Duration {
	base := float64(c.opts.BaseDelay)
	maxDelay := float64(c.opts.MaxDelay)

	var delay float64
	switch c.opts.Strategy {
	case BackoffFixed:
		delay = base
	case BackoffLinear:
		delay = base * float64(attempt)
	case BackoffExponential:
		delay = base * math.Pow(c.opts.Factor, float64(attempt-1))
	case BackoffFibonacci:
		delay = base * float64(fibonacci(attempt))
	default:
		delay = base
	}

	if delay > maxDelay || math.IsInf(delay, 1) || delay < 0 {
		delay = maxDelay
	}

	return time.Duration(delay)
}

func (c *BackoffCalculator) randFloat() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64()
}

// fibonacci returns the n-th Fibonacci number (fib(1) = fib(2) = 1).
// The result is clamped so large attempt numbers cannot overflow; the
// caller caps the delay at MaxDelay anyway.
func fibonacci(n int) uint64 {
	if n <= 0 {
		return 0
	}
	if n > 90 {
		n = 90
	}
	var a, b uint64 = 0, 1
	for i := 1; i < n; i++ {
		a, b = b, a+b
	}
	return b
}
