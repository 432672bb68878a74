package middleware

import (
	"context"
	"time"

	pkglog "FuseLane/pkg/log"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
)

// Logging records every dispatch with its operation and duration.
func Logging(logger *pkglog.LogHelper) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			operation := "unknown"
			if tr, ok := transport.FromServerContext(ctx); ok && tr.Operation() != "" {
				operation = tr.Operation()
			}

			start := time.Now()
			reply, err := handler(ctx, req)
			logger.Outcome(operation, time.Since(start), err)

			return reply, err
		}
	}
}
