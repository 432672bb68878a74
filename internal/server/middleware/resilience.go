package middleware

import (
	"context"
	"errors"
	"strconv"
	"time"

	"FuseLane/internal/biz"
	pkglog "FuseLane/pkg/log"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
)

// Callers signal request importance through these headers; requests
// without them get defaultPriority and are shed once the degradation
// level reaches major.
const (
	priorityHeader  = "X-Request-Priority"
	criticalHeader  = "X-Request-Critical"
	defaultPriority = 49
)

// Resilience wraps every inbound dispatch in the degradation gate, a
// per-operation circuit breaker, and a per-operation bulkhead. Breakers
// and bulkheads are created lazily the first time an operation is seen,
// using the configured defaults.
func Resilience(
	degradation *biz.GracefulDegradationService,
	breakers *biz.TransportCircuitBreakerRegistry,
	bulkheads *biz.BulkheadManager,
	timeouts *biz.TimeoutManager,
	logger *pkglog.LogHelper,
) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			operation := "unknown"
			priority := defaultPriority
			critical := false
			if tr, ok := transport.FromServerContext(ctx); ok {
				if tr.Operation() != "" {
					operation = tr.Operation()
				}
				if v := tr.RequestHeader().Get(priorityHeader); v != "" {
					if p, err := strconv.Atoi(v); err == nil {
						priority = p
					}
				}
				critical = tr.RequestHeader().Get(criticalHeader) == "true"
			}

			breaker := breakers.GetOrCreate(operation, nil)
			bulkhead := bulkheads.GetOrCreateBulkhead(operation, nil)

			start := time.Now()
			reply, err := degradation.Execute(ctx, &biz.DegradationContext{
				OperationName: operation,
				Priority:      priority,
				IsCritical:    critical,
				Primary: func(ctx context.Context) (any, error) {
					var out interface{}
					innerErr := breaker.Execute(ctx, func(ctx context.Context) error {
						return bulkhead.Execute(ctx, func(ctx context.Context) error {
							var handlerErr error
							out, handlerErr = handler(ctx, req)
							return handlerErr
						})
					})
					return out, innerErr
				},
			})
			elapsed := time.Since(start)

			// No fallbacks are registered at this boundary, so a failed
			// dispatch comes back as a no-fallback rejection wrapping
			// the handler's own error. Surface the original instead so
			// handlers keep their status codes.
			var nfe *biz.NoFallbackError
			if errors.As(err, &nfe) && nfe.Cause != nil {
				err = nfe.Cause
			}

			if timeouts.IsSlowOperation(operation, elapsed) {
				logger.SlowOperation(operation, elapsed, timeouts.GetTimeout(operation))
			}

			if biz.IsProtectiveRejection(err) {
				logger.Rejection(operation, err)
				return nil, biz.ToTransportError(err)
			}
			return reply, err
		}
	}
}
