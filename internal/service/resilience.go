// Package service exposes the engine's metrics and admin surface over
// HTTP.
package service

import (
	"FuseLane/internal/biz"
	"FuseLane/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// ResilienceService backs the HTTP metrics and admin endpoints with
// read-only snapshots from the stateful policies.
type ResilienceService struct {
	degradation *biz.GracefulDegradationService
	bulkheads   *biz.BulkheadManager
	breakers    *biz.TransportCircuitBreakerRegistry
	distributed *biz.DistributedCircuitBreaker
	logger      *log.Helper
}

// NewResilienceService creates the service.
func NewResilienceService(
	degradation *biz.GracefulDegradationService,
	bulkheads *biz.BulkheadManager,
	breakers *biz.TransportCircuitBreakerRegistry,
	distributed *biz.DistributedCircuitBreaker,
	logger log.Logger,
) *ResilienceService {
	return &ResilienceService{
		degradation: degradation,
		bulkheads:   bulkheads,
		breakers:    breakers,
		distributed: distributed,
		logger:      log.NewHelper(logger),
	}
}

// GetDegradationMetrics returns the degradation service snapshot.
func (s *ResilienceService) GetDegradationMetrics(ctx khttp.Context) error {
	return ctx.Result(200, s.degradation.GetMetrics())
}

// GetBulkheadMetrics returns snapshots of every registered bulkhead.
func (s *ResilienceService) GetBulkheadMetrics(ctx khttp.Context) error {
	return ctx.Result(200, s.bulkheads.AllMetrics())
}

// GetBreakerMetrics returns snapshots of every transport circuit
// breaker.
func (s *ResilienceService) GetBreakerMetrics(ctx khttp.Context) error {
	return ctx.Result(200, s.breakers.AllMetrics())
}

// GetDistributedState returns the distributed breaker's state and
// persisted metrics.
func (s *ResilienceService) GetDistributedState(ctx khttp.Context) error {
	reqCtx := ctx.Request().Context()
	return ctx.Result(200, map[string]interface{}{
		"name":    s.distributed.Name(),
		"state":   s.distributed.GetState(reqCtx).String(),
		"metrics": s.distributed.Metrics(reqCtx),
	})
}

type setLevelRequest struct {
	Level  string `json:"level"`
	Reason string `json:"reason"`
}

// SetDegradationLevel changes the global degradation level.
func (s *ResilienceService) SetDegradationLevel(ctx khttp.Context) error {
	var req setLevelRequest
	if err := ctx.Bind(&req); err != nil {
		return kerrors.New(400, "INVALID_ARGUMENT", err.Error())
	}

	level, err := model.ParseDegradationLevel(req.Level)
	if err != nil {
		return kerrors.New(400, "INVALID_ARGUMENT", err.Error())
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual override"
	}
	s.degradation.SetLevel(level, reason)

	return ctx.Result(200, map[string]string{"level": level.String()})
}

// ResetBreakers forces every transport circuit breaker closed.
func (s *ResilienceService) ResetBreakers(ctx khttp.Context) error {
	s.breakers.ResetAll()
	s.logger.Infow("msg", "all transport circuit breakers reset")
	return ctx.Result(200, map[string]string{"status": "reset"})
}

// ResetDistributed removes the distributed breaker's records from the
// shared cache.
func (s *ResilienceService) ResetDistributed(ctx khttp.Context) error {
	if err := s.distributed.Reset(ctx.Request().Context()); err != nil {
		return kerrors.New(500, "RESET_FAILED", err.Error())
	}
	return ctx.Result(200, map[string]string{"status": "reset"})
}
