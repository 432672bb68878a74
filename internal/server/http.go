package server

import (
	"FuseLane/internal/biz"
	"FuseLane/internal/conf"
	"FuseLane/internal/server/middleware"
	"FuseLane/internal/service"
	pkglog "FuseLane/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(
	c *conf.Server,
	svc *service.ResilienceService,
	degradation *biz.GracefulDegradationService,
	breakers *biz.TransportCircuitBreakerRegistry,
	bulkheads *biz.BulkheadManager,
	timeouts *biz.TimeoutManager,
	logger log.Logger,
) *http.Server {
	logHelper := pkglog.NewLogHelper(logger)

	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Logging(logHelper),
			middleware.Resilience(degradation, breakers, bulkheads, timeouts, logHelper),
		),
	}
	if c.Http.Network != "" {
		opts = append(opts, http.Network(c.Http.Network))
	}
	if c.Http.Addr != "" {
		opts = append(opts, http.Address(c.Http.Addr))
	}
	if c.Http.Timeout != nil {
		opts = append(opts, http.Timeout(c.Http.Timeout.AsDuration()))
	}
	srv := http.NewServer(opts...)

	r := srv.Route("/")
	r.GET("/metrics/degradation", svc.GetDegradationMetrics)
	r.GET("/metrics/bulkheads", svc.GetBulkheadMetrics)
	r.GET("/metrics/breakers", svc.GetBreakerMetrics)
	r.GET("/metrics/distributed", svc.GetDistributedState)
	r.POST("/admin/degradation/level", svc.SetDegradationLevel)
	r.POST("/admin/breakers/reset", svc.ResetBreakers)
	r.POST("/admin/distributed/reset", svc.ResetDistributed)

	return srv
}
