package biz

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"FuseLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DegradationLevelConfig holds the admission and auto-adjustment
// thresholds for one degradation level.
type DegradationLevelConfig struct {
	// Name is the human-readable level name.
	Name string

	// PriorityThreshold is the minimum caller priority admitted at this
	// level. Critical operations bypass it.
	PriorityThreshold int

	// ErrorRateThreshold triggers auto-adjustment to this level.
	ErrorRateThreshold float64

	// CPUThreshold triggers auto-adjustment to this level (percent).
	CPUThreshold float64

	// MemoryThreshold triggers auto-adjustment to this level (percent).
	MemoryThreshold float64
}

// DefaultLevelConfigs returns the built-in per-level threshold table.
func DefaultLevelConfigs() map[model.DegradationLevel]DegradationLevelConfig {
	return map[model.DegradationLevel]DegradationLevelConfig{
		model.DegradationNormal:    {Name: "normal", PriorityThreshold: 0, ErrorRateThreshold: 0.05, CPUThreshold: 70, MemoryThreshold: 70},
		model.DegradationMinor:     {Name: "minor", PriorityThreshold: 10, ErrorRateThreshold: 0.10, CPUThreshold: 75, MemoryThreshold: 75},
		model.DegradationModerate:  {Name: "moderate", PriorityThreshold: 25, ErrorRateThreshold: 0.20, CPUThreshold: 80, MemoryThreshold: 80},
		model.DegradationMajor:     {Name: "major", PriorityThreshold: 50, ErrorRateThreshold: 0.35, CPUThreshold: 85, MemoryThreshold: 85},
		model.DegradationSevere:    {Name: "severe", PriorityThreshold: 75, ErrorRateThreshold: 0.50, CPUThreshold: 90, MemoryThreshold: 90},
		model.DegradationEmergency: {Name: "emergency", PriorityThreshold: 90, ErrorRateThreshold: 0.70, CPUThreshold: 95, MemoryThreshold: 95},
	}
}

// DegradationOptions configures the degradation service.
type DegradationOptions struct {
	// Levels overrides the per-level threshold table. Missing levels
	// fall back to DefaultLevelConfigs.
	Levels map[model.DegradationLevel]DegradationLevelConfig

	// MinimumLevelDuration rate-limits auto-adjustment; the level never
	// changes automatically more than once per window. Default: 30s.
	MinimumLevelDuration time.Duration

	// MaxTrackedOperations bounds the per-operation statistics map;
	// the least recently used operation is evicted beyond it.
	// Default: 1024.
	MaxTrackedOperations int
}

// DegradationContext describes one protected call: the primary
// operation, its identity and priority, and the ordered fallback table.
// Primary is required; Fallbacks and Metadata default to empty.
type DegradationContext struct {
	OperationName string
	Priority      int
	IsCritical    bool
	Primary       func(context.Context) (any, error)
	Fallbacks     map[model.DegradationLevel]func(context.Context) (any, error)
	Metadata      map[string]string
}

// GracefulDegradationService tracks a global degradation level, gates
// operations by priority, and walks the fallback table on primary
// failure. One instance is shared per logical system boundary; the
// level is single-owner mutable state behind this service.
type GracefulDegradationService struct {
	opts   DegradationOptions
	logger *log.Helper

	mu             sync.RWMutex
	level          model.DegradationLevel
	lastChangeAt   time.Time
	lastReason     string
	lastAutoAdjust time.Time
	health         model.HealthMetrics

	stats *lru.Cache[string, *OperationStatistics]

	totalOperations atomic.Int64
	totalFallbacks  atomic.Int64
	totalSuccesses  atomic.Int64
}

// NewGracefulDegradationService creates a service starting at Normal.
func NewGracefulDegradationService(opts DegradationOptions, logger log.Logger) (*GracefulDegradationService, error) {
	if opts.MinimumLevelDuration <= 0 {
		opts.MinimumLevelDuration = 30 * time.Second
	}
	if opts.MaxTrackedOperations <= 0 {
		opts.MaxTrackedOperations = 1024
	}

	levels := DefaultLevelConfigs()
	for lvl, cfg := range opts.Levels {
		levels[lvl] = cfg
	}
	opts.Levels = levels

	stats, err := lru.New[string, *OperationStatistics](opts.MaxTrackedOperations)
	if err != nil {
		return nil, err
	}

	return &GracefulDegradationService{
		opts:         opts,
		logger:       log.NewHelper(logger),
		level:        model.DegradationNormal,
		lastChangeAt: time.Now(),
		stats:        stats,
	}, nil
}

// CurrentLevel returns the current degradation level.
func (s *GracefulDegradationService) CurrentLevel() model.DegradationLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.level
}

// SetLevel changes the degradation level. Setting the current level is
// a no-op and leaves the change timestamp untouched.
func (s *GracefulDegradationService) SetLevel(level model.DegradationLevel, reason string) {
	s.mu.Lock()
	if s.level == level {
		s.mu.Unlock()
		return
	}
	old := s.level
	s.level = level
	s.lastChangeAt = time.Now()
	s.lastReason = reason
	s.mu.Unlock()

	s.logger.Infow("msg", "degradation level changed",
		"from", old,
		"to", level,
		"reason", reason)
}

// Execute runs the protected call: record the attempt, apply the
// priority gate, try the primary, and on failure walk the fallback
// table from the current level toward more severe levels.
func (s *GracefulDegradationService) Execute(ctx context.Context, dctx *DegradationContext) (any, error) {
	if dctx == nil || dctx.Primary == nil {
		return nil, &ValidationError{Field: "primary operation", Reason: "must not be nil"}
	}

	stats := s.statsFor(dctx.OperationName)
	stats.RecordAttempt()
	s.totalOperations.Add(1)

	level := s.CurrentLevel()
	threshold := s.levelConfig(level).PriorityThreshold
	if !dctx.IsCritical && dctx.Priority < threshold {
		return nil, &DegradationRejectedError{
			Operation: dctx.OperationName,
			Level:     level,
			Priority:  dctx.Priority,
			Threshold: threshold,
		}
	}

	res, err := dctx.Primary(ctx)
	if err == nil {
		stats.RecordSuccess()
		s.totalSuccesses.Add(1)
		return res, nil
	}
	stats.RecordFailure()

	fallback, ok := s.selectFallback(level, dctx.Fallbacks)
	if !ok {
		if dctx.IsCritical {
			// Critical callers get the original failure unchanged.
			return nil, err
		}
		return nil, &NoFallbackError{Operation: dctx.OperationName, Level: level, Cause: err}
	}

	fres, ferr := fallback(ctx)
	if ferr != nil {
		return nil, &NoFallbackError{Operation: dctx.OperationName, Level: level, Cause: ferr}
	}

	stats.RecordFallback()
	s.totalFallbacks.Add(1)
	return fres, nil
}

// Degrade runs the degradation pipeline, preserving the caller's
// result type. The primary and fallbacks in dctx must all produce T.
func Degrade[T any](ctx context.Context, s *GracefulDegradationService, dctx *DegradationContext) (T, error) {
	var zero T
	res, err := s.Execute(ctx, dctx)
	if err != nil {
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// selectFallback walks levels from the current one toward Emergency and
// returns the first registered fallback.
func (s *GracefulDegradationService) selectFallback(
	level model.DegradationLevel,
	fallbacks map[model.DegradationLevel]func(context.Context) (any, error),
) (func(context.Context) (any, error), bool) {
	for lvl := level; lvl <= model.DegradationEmergency; lvl++ {
		if fb, ok := fallbacks[lvl]; ok && fb != nil {
			return fb, true
		}
	}
	return nil, false
}

// UpdateHealthMetrics stores the latest snapshot from the external
// health source.
func (s *GracefulDegradationService) UpdateHealthMetrics(h model.HealthMetrics) {
	s.mu.Lock()
	s.health = h
	s.mu.Unlock()
}

// EvaluateHealth compares the current health snapshot against each
// level's thresholds and sets the most severe breached level, at most
// once per MinimumLevelDuration.
func (s *GracefulDegradationService) EvaluateHealth() {
	s.mu.Lock()
	if time.Since(s.lastAutoAdjust) < s.opts.MinimumLevelDuration {
		s.mu.Unlock()
		return
	}
	health := s.health
	s.lastAutoAdjust = time.Now()
	s.mu.Unlock()

	target := model.DegradationNormal
	for lvl := model.DegradationMinor; lvl <= model.DegradationEmergency; lvl++ {
		cfg := s.levelConfig(lvl)
		if health.CPUPercent >= cfg.CPUThreshold ||
			health.MemoryPercent >= cfg.MemoryThreshold ||
			health.ErrorRate >= cfg.ErrorRateThreshold {
			target = lvl
		}
	}

	s.SetLevel(target, "auto-adjustment from health metrics")
}

// DegradationMetrics is a read-only snapshot of the degradation
// service.
type DegradationMetrics struct {
	CurrentLevel     model.DegradationLevel                 `json:"current_level"`
	LastChangeAt     time.Time                              `json:"last_change_at"`
	LastChangeReason string                                 `json:"last_change_reason"`
	Operations       map[string]OperationStatisticsSnapshot `json:"operations"`
	Health           model.HealthMetrics                    `json:"health"`
	TotalOperations  int64                                  `json:"total_operations"`
	TotalFallbacks   int64                                  `json:"total_fallbacks"`
	SuccessRate      float64                                `json:"success_rate"`
}

// GetMetrics returns a point-in-time snapshot. The success rate is
// successes over attempts and defaults to 1.0 before any operation has
// run.
func (s *GracefulDegradationService) GetMetrics() DegradationMetrics {
	s.mu.RLock()
	m := DegradationMetrics{
		CurrentLevel:     s.level,
		LastChangeAt:     s.lastChangeAt,
		LastChangeReason: s.lastReason,
		Health:           s.health,
	}
	s.mu.RUnlock()

	ops := make(map[string]OperationStatisticsSnapshot)
	for _, name := range s.stats.Keys() {
		if st, ok := s.stats.Peek(name); ok {
			ops[name] = st.Clone()
		}
	}
	m.Operations = ops

	total := s.totalOperations.Load()
	m.TotalOperations = total
	m.TotalFallbacks = s.totalFallbacks.Load()

	successRate := 1.0
	if total > 0 {
		successRate = float64(s.totalSuccesses.Load()) / float64(total)
	}
	m.SuccessRate = successRate

	return m
}

// statsFor returns the counter set for an operation name, creating it
// on first use. The map is LRU-bounded so long-running processes never
// accumulate unbounded per-operation history.
func (s *GracefulDegradationService) statsFor(name string) *OperationStatistics {
	if st, ok := s.stats.Get(name); ok {
		return st
	}
	st := NewOperationStatistics()
	if existing, ok, _ := s.stats.PeekOrAdd(name, st); ok {
		return existing
	}
	return st
}

func (s *GracefulDegradationService) levelConfig(level model.DegradationLevel) DegradationLevelConfig {
	if cfg, ok := s.opts.Levels[level]; ok {
		return cfg
	}
	return DefaultLevelConfigs()[level]
}
