package biz

import (
	"context"
	"sync"
	"time"
)

// BulkheadOptions configures a bulkhead admission gate.
type BulkheadOptions struct {
	// MaxConcurrency is the number of execution permits. Default: 10.
	MaxConcurrency int

	// MaxQueueLength bounds the FIFO wait queue. Zero disables queueing
	// even when AllowQueueing is set.
	MaxQueueLength int

	// OperationTimeout bounds how long a queued caller waits for a
	// permit. Zero waits until cancellation.
	OperationTimeout time.Duration

	// AllowQueueing admits callers to the wait queue when no permit is
	// immediately available.
	AllowQueueing bool
}

// BulkheadPolicy guards a resource with a bounded number of concurrent
// executions and an optional bounded FIFO wait queue. Calls that find
// both exhausted are rejected immediately.
type BulkheadPolicy struct {
	name string
	opts BulkheadOptions
	sem  chan struct{}
	done chan struct{}

	mu       sync.Mutex
	active   int
	queued   int
	total    int64
	rejected int64
	lastUsed time.Time
	closed   bool
}

// NewBulkheadPolicy creates a bulkhead with defaults applied.
func NewBulkheadPolicy(name string, opts BulkheadOptions) *BulkheadPolicy {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 10
	}
	if opts.MaxQueueLength < 0 {
		opts.MaxQueueLength = 0
	}

	return &BulkheadPolicy{
		name:     name,
		opts:     opts,
		sem:      make(chan struct{}, opts.MaxConcurrency),
		done:     make(chan struct{}),
		lastUsed: time.Now(),
	}
}

// Name returns the bulkhead name.
func (b *BulkheadPolicy) Name() string {
	return b.name
}

// Execute acquires a permit (queueing if configured), runs the
// operation, and releases the permit whether it succeeded, failed, or
// was cancelled.
func (b *BulkheadPolicy) Execute(ctx context.Context, op func(context.Context) error) error {
	if op == nil {
		return &ValidationError{Field: "operation", Reason: "must not be nil"}
	}
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()

	return op(ctx)
}

// acquire obtains a permit or returns a rejection/cancellation error.
func (b *BulkheadPolicy) acquire(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBulkheadClosed
	}
	b.mu.Unlock()

	// Fast path: a permit is free right now.
	select {
	case b.sem <- struct{}{}:
		b.onAcquired()
		return nil
	default:
	}

	if !b.opts.AllowQueueing || b.opts.MaxQueueLength == 0 {
		b.reject()
		return &BulkheadRejectedError{Name: b.name}
	}

	b.mu.Lock()
	if b.queued >= b.opts.MaxQueueLength {
		b.rejected++
		b.mu.Unlock()
		return &BulkheadRejectedError{Name: b.name}
	}
	b.queued++
	b.mu.Unlock()

	var timeoutC <-chan time.Time
	if b.opts.OperationTimeout > 0 {
		timer := time.NewTimer(b.opts.OperationTimeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case b.sem <- struct{}{}:
		b.mu.Lock()
		b.queued--
		closed := b.closed
		b.mu.Unlock()
		if closed {
			// Lost the race with Close; hand the token back.
			select {
			case <-b.sem:
			default:
			}
			return ErrBulkheadClosed
		}
		b.onAcquired()
		return nil
	case <-b.done:
		b.mu.Lock()
		b.queued--
		b.mu.Unlock()
		return ErrBulkheadClosed
	case <-timeoutC:
		// Waited the full operation timeout without a permit; leave the
		// queue and reject.
		b.mu.Lock()
		b.queued--
		b.rejected++
		b.mu.Unlock()
		return &BulkheadRejectedError{Name: b.name}
	case <-ctx.Done():
		b.mu.Lock()
		b.queued--
		b.mu.Unlock()
		return ctx.Err()
	}
}

func (b *BulkheadPolicy) onAcquired() {
	b.mu.Lock()
	b.active++
	b.total++
	b.lastUsed = time.Now()
	b.mu.Unlock()
}

// LastUsed reports when the bulkhead last admitted an execution, or its
// creation time if it never has.
func (b *BulkheadPolicy) LastUsed() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUsed
}

// idle reports whether the bulkhead has no work in flight and has not
// admitted anything since the cutoff.
func (b *BulkheadPolicy) idle(cutoff time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active == 0 && b.queued == 0 && b.lastUsed.Before(cutoff)
}

func (b *BulkheadPolicy) reject() {
	b.mu.Lock()
	b.rejected++
	b.mu.Unlock()
}

func (b *BulkheadPolicy) release() {
	select {
	case <-b.sem:
	default:
	}
	b.mu.Lock()
	if b.active > 0 {
		b.active--
	}
	b.mu.Unlock()
}

// BulkheadMetrics is a read-only snapshot of a bulkhead, never mutated
// after creation.
type BulkheadMetrics struct {
	Name               string `json:"name"`
	MaxConcurrency     int    `json:"max_concurrency"`
	MaxQueueLength     int    `json:"max_queue_length"`
	ActiveExecutions   int    `json:"active_executions"`
	QueuedExecutions   int    `json:"queued_executions"`
	TotalExecutions    int64  `json:"total_executions"`
	RejectedExecutions int64  `json:"rejected_executions"`
	AvailableCapacity  int    `json:"available_capacity"`
}

// GetMetrics returns an atomic snapshot of the bulkhead counters.
func (b *BulkheadPolicy) GetMetrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BulkheadMetrics{
		Name:               b.name,
		MaxConcurrency:     b.opts.MaxConcurrency,
		MaxQueueLength:     b.opts.MaxQueueLength,
		ActiveExecutions:   b.active,
		QueuedExecutions:   b.queued,
		TotalExecutions:    b.total,
		RejectedExecutions: b.rejected,
		AvailableCapacity:  b.opts.MaxConcurrency - b.active,
	}
}

// Close marks the bulkhead closed and unblocks every queued waiter with
// ErrBulkheadClosed. It is idempotent; executions after Close fail with
// ErrBulkheadClosed. Work already in flight runs to completion.
func (b *BulkheadPolicy) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
}
