package main

import (
	"runtime"
	"time"

	"FuseLane/internal/biz"
	"FuseLane/internal/conf"
	"FuseLane/internal/model"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/robfig/cron/v3"
)

const (
	defaultHealthCheckCron = "*/15 * * * * *"
	bulkheadSweepCron      = "0 * * * * *"
)

// newHealthApp assembles the Kratos application and starts the
// scheduled health evaluation. The returned cleanup stops the schedule
// and the distributed breaker's sync loop.
func newHealthApp(
	c *conf.Resilience,
	logger log.Logger,
	hs *http.Server,
	degradation *biz.GracefulDegradationService,
	distributed *biz.DistributedCircuitBreaker,
	bulkheads *biz.BulkheadManager,
) (*kratos.App, func(), error) {
	sched, err := startHealthCron(c, degradation, bulkheads, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if sched != nil {
			<-sched.Stop().Done()
		}
		distributed.Close()
	}

	return newApp(logger, hs), cleanup, nil
}

// startHealthCron schedules the periodic background work: health
// sampling for the degradation service and the idle-bulkhead sweep.
func startHealthCron(c *conf.Resilience, degradation *biz.GracefulDegradationService, bulkheads *biz.BulkheadManager, logger log.Logger) (*cron.Cron, error) {
	helper := log.NewHelper(logger)

	spec := defaultHealthCheckCron
	if c != nil && c.Degradation != nil && c.Degradation.HealthCheckCron != "" {
		spec = c.Degradation.HealthCheckCron
	}

	sched := cron.New(cron.WithSeconds())
	_, err := sched.AddFunc(spec, func() {
		degradation.UpdateHealthMetrics(sampleHealth(degradation))
		degradation.EvaluateHealth()
	})
	if err != nil {
		return nil, err
	}

	idleTTL := 10 * time.Minute
	if c != nil && c.Bulkhead != nil && c.Bulkhead.IdleTtl != nil && c.Bulkhead.IdleTtl.AsDuration() > 0 {
		idleTTL = c.Bulkhead.IdleTtl.AsDuration()
	}
	_, err = sched.AddFunc(bulkheadSweepCron, func() {
		bulkheads.SweepIdle(idleTTL)
	})
	if err != nil {
		return nil, err
	}

	sched.Start()
	helper.Infow("msg", "health evaluation schedule started", "cron", spec)

	return sched, nil
}

// sampleHealth builds a health sample from the Go runtime and the
// degradation service's own counters. CPU load is not sampled in
// process; it stays zero unless pushed in from outside.
func sampleHealth(degradation *biz.GracefulDegradationService) model.HealthMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	memoryPercent := 0.0
	if mem.Sys > 0 {
		memoryPercent = float64(mem.HeapInuse) / float64(mem.Sys) * 100
	}

	snapshot := degradation.GetMetrics()

	return model.HealthMetrics{
		MemoryPercent:     memoryPercent,
		ErrorRate:         1 - snapshot.SuccessRate,
		ActiveConnections: runtime.NumGoroutine(),
		Timestamp:         time.Now(),
	}
}
