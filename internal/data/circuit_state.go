package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FuseLane/internal/conf"
	"FuseLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// CircuitStateRepo persists distributed circuit records in the shared
// cache. It implements the biz.CircuitStateRepo interface. Records are
// written last-write-wins; the metrics entry carries a retention TTL so
// stale breakers expire on their own.
type CircuitStateRepo struct {
	cache     CacheClient
	retention time.Duration
	logger    *log.Helper
}

// NewCircuitStateRepo creates a new circuit state repository.
func NewCircuitStateRepo(c *conf.Resilience, d *Data, logger log.Logger) *CircuitStateRepo {
	retention := time.Hour
	if c != nil && c.Distributed != nil && c.Distributed.MetricsRetention != nil {
		if dur := c.Distributed.MetricsRetention.AsDuration(); dur > 0 {
			retention = dur
		}
	}

	return &CircuitStateRepo{
		cache:     d.GetCache(),
		retention: retention,
		logger:    log.NewHelper(logger),
	}
}

// LoadState reads the persisted state record. An absent record returns
// (nil, nil): callers treat it as closed.
func (r *CircuitStateRepo) LoadState(ctx context.Context, name string) (*model.DistributedCircuitState, error) {
	var rec model.DistributedCircuitState
	err := r.cache.Get(ctx, circuitStateKey(name), &rec)
	if errors.Is(err, ErrCacheNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load circuit state %q: %w", name, err)
	}
	return &rec, nil
}

// SaveState overwrites the persisted state record.
func (r *CircuitStateRepo) SaveState(ctx context.Context, name string, state *model.DistributedCircuitState) error {
	if err := r.cache.Set(ctx, circuitStateKey(name), state, r.retention); err != nil {
		return fmt.Errorf("failed to save circuit state %q: %w", name, err)
	}

	r.logger.Debugw("msg", "circuit state persisted",
		"breaker", name,
		"state", state.State,
		"instance_id", state.InstanceID)
	return nil
}

// LoadMetrics reads the persisted metrics record. An absent record
// returns (nil, nil): callers initialize zeros.
func (r *CircuitStateRepo) LoadMetrics(ctx context.Context, name string) (*model.DistributedCircuitMetrics, error) {
	var rec model.DistributedCircuitMetrics
	err := r.cache.Get(ctx, circuitMetricsKey(name), &rec)
	if errors.Is(err, ErrCacheNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load circuit metrics %q: %w", name, err)
	}
	return &rec, nil
}

// SaveMetrics overwrites the persisted metrics record, refreshing the
// retention TTL. Concurrent writers may overwrite each other's
// increments; the thresholds only need approximate counts.
func (r *CircuitStateRepo) SaveMetrics(ctx context.Context, name string, metrics *model.DistributedCircuitMetrics) error {
	if err := r.cache.Set(ctx, circuitMetricsKey(name), metrics, r.retention); err != nil {
		return fmt.Errorf("failed to save circuit metrics %q: %w", name, err)
	}
	return nil
}

// Delete removes both records for a breaker name. Missing keys are
// treated as already-closed.
func (r *CircuitStateRepo) Delete(ctx context.Context, name string) error {
	if err := r.cache.Delete(ctx, circuitStateKey(name), circuitMetricsKey(name)); err != nil {
		return fmt.Errorf("failed to delete circuit records %q: %w", name, err)
	}

	r.logger.Infow("msg", "circuit records removed", "breaker", name)
	return nil
}
