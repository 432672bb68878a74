package biz

import (
	"context"
	"os"
	"sync"
	"time"

	"FuseLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// CircuitStateRepo persists distributed circuit records in the shared
// cache. Following the layered architecture, the interface is defined
// here and implemented in the data layer. A nil record with a nil error
// means the entry is absent.
type CircuitStateRepo interface {
	LoadState(ctx context.Context, name string) (*model.DistributedCircuitState, error)
	SaveState(ctx context.Context, name string, state *model.DistributedCircuitState) error
	LoadMetrics(ctx context.Context, name string) (*model.DistributedCircuitMetrics, error)
	SaveMetrics(ctx context.Context, name string, metrics *model.DistributedCircuitMetrics) error
	Delete(ctx context.Context, name string) error
}

// DistributedCircuitBreakerOptions configures a cache-coordinated
// circuit breaker.
type DistributedCircuitBreakerOptions struct {
	// Name keys the state and metrics records in the shared cache.
	Name string

	// InstanceID identifies this process in persisted transitions.
	// Default: hostname.
	InstanceID string

	// FailureThreshold is the consecutive-failure count that opens the
	// circuit. Default: 5.
	FailureThreshold int

	// FailureRateThreshold opens the circuit once the failure ratio
	// reaches it and MinimumThroughput samples exist. Default: 0.5.
	FailureRateThreshold float64

	// MinimumThroughput is the sample count required before the failure
	// ratio is evaluated. Default: 10.
	MinimumThroughput int64

	// SuccessThreshold is the consecutive-success count that closes the
	// circuit from half-open. Default: 2.
	SuccessThreshold int

	// OpenDuration is the cooldown before trial calls are admitted
	// again. Default: 30s.
	OpenDuration time.Duration

	// SyncInterval drives the periodic refresh of the locally cached
	// state, independent of call volume. Zero disables the refresher;
	// tests pass a very long interval instead.
	SyncInterval time.Duration
}

// DistributedCircuitBreaker coordinates circuit state across process
// instances through the shared cache. Reads tolerate staleness and
// writes tolerate being overwritten by concurrent instances: two
// instances racing to open the circuit both succeed harmlessly.
// Cache failures degrade to the last locally observed state instead of
// propagating, so cache unavailability never cascades into application
// failures.
type DistributedCircuitBreaker struct {
	opts   DistributedCircuitBreakerOptions
	repo   CircuitStateRepo
	logger *log.Helper

	mu        sync.Mutex
	lastKnown model.CircuitState

	stop     chan struct{}
	stopOnce sync.Once
}

// NewDistributedCircuitBreaker creates a breaker with defaults applied
// and starts the periodic sync when an interval is configured.
func NewDistributedCircuitBreaker(opts DistributedCircuitBreakerOptions, repo CircuitStateRepo, logger log.Logger) *DistributedCircuitBreaker {
	if opts.InstanceID == "" {
		opts.InstanceID, _ = os.Hostname()
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.FailureRateThreshold <= 0 || opts.FailureRateThreshold > 1 {
		opts.FailureRateThreshold = 0.5
	}
	if opts.MinimumThroughput <= 0 {
		opts.MinimumThroughput = 10
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = 2
	}
	if opts.OpenDuration <= 0 {
		opts.OpenDuration = 30 * time.Second
	}

	b := &DistributedCircuitBreaker{
		opts:      opts,
		repo:      repo,
		logger:    log.NewHelper(logger),
		lastKnown: model.CircuitClosed,
		stop:      make(chan struct{}),
	}

	if opts.SyncInterval > 0 {
		go b.syncLoop()
	}

	return b
}

// Name returns the breaker name.
func (b *DistributedCircuitBreaker) Name() string {
	return b.opts.Name
}

// GetState reads the circuit state from the shared cache. On any cache
// failure it returns the last successfully observed state rather than
// propagating the error.
func (b *DistributedCircuitBreaker) GetState(ctx context.Context) model.CircuitState {
	rec, err := b.repo.LoadState(ctx, b.opts.Name)
	if err != nil {
		b.mu.Lock()
		last := b.lastKnown
		b.mu.Unlock()
		b.logger.Warnw("msg", "circuit state read failed, using last known state",
			"breaker", b.opts.Name,
			"last_known", last,
			"error", err)
		return last
	}

	state := model.CircuitClosed
	if rec != nil {
		state = rec.State
		if state == model.CircuitOpen && time.Now().After(rec.OpenUntil) {
			// Cooldown elapsed; the next call runs as a trial.
			state = model.CircuitHalfOpen
			b.persistTransition(ctx, state, rec.OpenedAt)
		}
	}

	b.mu.Lock()
	b.lastKnown = state
	b.mu.Unlock()
	return state
}

// Execute runs the operation when the circuit admits it and records the
// outcome. While the circuit is open the call fails immediately with a
// CircuitOpenError.
func (b *DistributedCircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if op == nil {
		return &ValidationError{Field: "operation", Reason: "must not be nil"}
	}

	if b.GetState(ctx) == model.CircuitOpen {
		return &CircuitOpenError{Name: b.opts.Name}
	}

	err := op(ctx)
	if err != nil {
		b.RecordFailure(ctx, err.Error())
		return err
	}
	b.RecordSuccess(ctx)
	return nil
}

// RecordSuccess performs a read-modify-write on the metrics record and
// closes the circuit once enough consecutive trial successes exist.
// Cache failures are logged and swallowed.
func (b *DistributedCircuitBreaker) RecordSuccess(ctx context.Context) {
	metrics, err := b.repo.LoadMetrics(ctx, b.opts.Name)
	if err != nil {
		b.logger.Warnw("msg", "metrics read failed, skipping success record",
			"breaker", b.opts.Name, "error", err)
		return
	}
	if metrics == nil {
		metrics = &model.DistributedCircuitMetrics{}
	}

	metrics.SuccessCount++
	metrics.ConsecutiveSuccesses++
	metrics.ConsecutiveFailures = 0
	metrics.LastSuccessAt = time.Now()

	if err := b.repo.SaveMetrics(ctx, b.opts.Name, metrics); err != nil {
		b.logger.Warnw("msg", "metrics write failed",
			"breaker", b.opts.Name, "error", err)
	}

	state := b.currentPersistedState(ctx)
	if state == model.CircuitHalfOpen && metrics.ConsecutiveSuccesses >= b.opts.SuccessThreshold {
		b.persistTransition(ctx, model.CircuitClosed, time.Time{})
		b.setLastKnown(model.CircuitClosed)
		b.logger.Infow("msg", "distributed circuit closed after successful trials",
			"breaker", b.opts.Name,
			"consecutive_successes", metrics.ConsecutiveSuccesses)
	}
}

// RecordFailure performs a read-modify-write on the metrics record and
// opens the circuit when either the consecutive-failure threshold or
// the failure-rate threshold is breached. Cache failures are logged and
// swallowed.
func (b *DistributedCircuitBreaker) RecordFailure(ctx context.Context, reason string) {
	metrics, err := b.repo.LoadMetrics(ctx, b.opts.Name)
	if err != nil {
		b.logger.Warnw("msg", "metrics read failed, skipping failure record",
			"breaker", b.opts.Name, "error", err)
		return
	}
	if metrics == nil {
		metrics = &model.DistributedCircuitMetrics{}
	}

	metrics.FailureCount++
	metrics.ConsecutiveFailures++
	metrics.ConsecutiveSuccesses = 0
	metrics.LastFailureAt = time.Now()
	metrics.LastFailureReason = reason

	if err := b.repo.SaveMetrics(ctx, b.opts.Name, metrics); err != nil {
		b.logger.Warnw("msg", "metrics write failed",
			"breaker", b.opts.Name, "error", err)
	}

	state := b.currentPersistedState(ctx)
	shouldOpen := metrics.ConsecutiveFailures >= b.opts.FailureThreshold ||
		(metrics.Total() >= b.opts.MinimumThroughput && metrics.FailureRate() >= b.opts.FailureRateThreshold)

	// Any failure during a half-open trial reopens immediately.
	if state == model.CircuitHalfOpen {
		shouldOpen = true
	}

	if shouldOpen && state != model.CircuitOpen {
		now := time.Now()
		b.persistTransition(ctx, model.CircuitOpen, now)
		b.setLastKnown(model.CircuitOpen)
		b.logger.Warnw("msg", "distributed circuit opened",
			"breaker", b.opts.Name,
			"consecutive_failures", metrics.ConsecutiveFailures,
			"failure_rate", metrics.FailureRate(),
			"reason", reason)
	}
}

// Reset deletes both cache entries. A missing key is treated as
// already-closed.
func (b *DistributedCircuitBreaker) Reset(ctx context.Context) error {
	if err := b.repo.Delete(ctx, b.opts.Name); err != nil {
		return err
	}
	b.setLastKnown(model.CircuitClosed)
	return nil
}

// Metrics returns the persisted metrics record, or an empty record when
// the cache has none or is unavailable.
func (b *DistributedCircuitBreaker) Metrics(ctx context.Context) model.DistributedCircuitMetrics {
	metrics, err := b.repo.LoadMetrics(ctx, b.opts.Name)
	if err != nil || metrics == nil {
		return model.DistributedCircuitMetrics{}
	}
	return *metrics
}

// Close stops the periodic sync. It is idempotent.
func (b *DistributedCircuitBreaker) Close() {
	b.stopOnce.Do(func() {
		close(b.stop)
	})
}

// currentPersistedState reads the state record without the half-open
// promotion applied by GetState. Absent or unreadable records count as
// closed.
func (b *DistributedCircuitBreaker) currentPersistedState(ctx context.Context) model.CircuitState {
	rec, err := b.repo.LoadState(ctx, b.opts.Name)
	if err != nil || rec == nil {
		return b.lastKnownState()
	}
	if rec.State == model.CircuitOpen && time.Now().After(rec.OpenUntil) {
		return model.CircuitHalfOpen
	}
	return rec.State
}

// persistTransition overwrites the state record. The write is last-
// write-wins: a concurrent instance overwriting it is accepted.
func (b *DistributedCircuitBreaker) persistTransition(ctx context.Context, state model.CircuitState, openedAt time.Time) {
	now := time.Now()
	rec := &model.DistributedCircuitState{
		State:          state,
		OpenedAt:       openedAt,
		TransitionedAt: now,
		InstanceID:     b.opts.InstanceID,
	}
	if state == model.CircuitOpen {
		rec.OpenUntil = openedAt.Add(b.opts.OpenDuration)
	}

	if err := b.repo.SaveState(ctx, b.opts.Name, rec); err != nil {
		b.logger.Warnw("msg", "circuit state write failed",
			"breaker", b.opts.Name,
			"state", state,
			"error", err)
	}
}

func (b *DistributedCircuitBreaker) setLastKnown(state model.CircuitState) {
	b.mu.Lock()
	b.lastKnown = state
	b.mu.Unlock()
}

func (b *DistributedCircuitBreaker) lastKnownState() model.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastKnown
}

// syncLoop refreshes the locally cached state on a ticker until Close.
func (b *DistributedCircuitBreaker) syncLoop() {
	ticker := time.NewTicker(b.opts.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			b.GetState(ctx)
			cancel()
		case <-b.stop:
			return
		}
	}
}
