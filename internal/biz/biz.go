// Package biz contains the resilience policy layer: backoff, retry,
// timeout, circuit breaking (local and distributed), bulkhead admission
// control, and graceful degradation.
package biz

import (
	"strings"
	"time"

	"FuseLane/internal/conf"
	"FuseLane/internal/data"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"google.golang.org/protobuf/types/known/durationpb"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewTimeoutManagerFromConf,
	NewRetryPolicyFromConf,
	NewBulkheadManagerFromConf,
	NewTransportCircuitBreakerRegistryFromConf,
	NewGracefulDegradationServiceFromConf,
	NewDistributedCircuitBreakerFromConf,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(CircuitStateRepo), new(*data.CircuitStateRepo)),
)

func asDuration(d *durationpb.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return d.AsDuration()
}

// NewTimeoutManagerFromConf builds the timeout manager from bootstrap
// configuration.
func NewTimeoutManagerFromConf(c *conf.Resilience) *TimeoutManager {
	opts := TimeoutManagerOptions{}
	if c != nil && c.Timeout != nil {
		opts = TimeoutManagerOptions{
			Default:            asDuration(c.Timeout.Default),
			Database:           asDuration(c.Timeout.Database),
			HTTP:               asDuration(c.Timeout.Http),
			MessageQueue:       asDuration(c.Timeout.MessageQueue),
			Cache:              asDuration(c.Timeout.Cache),
			SlowThresholdRatio: c.Timeout.SlowRatio,
		}
	}
	return NewTimeoutManager(opts)
}

// NewRetryPolicyFromConf builds the default retry policy from bootstrap
// configuration, sharing the timeout manager for per-attempt deadlines.
func NewRetryPolicyFromConf(c *conf.Resilience, tm *TimeoutManager, logger log.Logger) *RetryPolicy {
	opts := RetryOptions{Timeouts: tm, MaxRetries: 3}
	if c != nil && c.Retry != nil {
		opts.MaxRetries = int(c.Retry.MaxRetries)
		opts.MaxDelay = asDuration(c.Retry.MaxDelay)
		opts.Backoff = NewBackoffCalculator(BackoffOptions{
			Strategy:  parseBackoffStrategy(c.Retry.Strategy),
			BaseDelay: asDuration(c.Retry.BaseDelay),
			MaxDelay:  asDuration(c.Retry.MaxDelay),
			Jitter:    parseJitterMode(c.Retry.Jitter),
		})
	}
	return NewRetryPolicy(opts, logger)
}

// NewBulkheadManagerFromConf builds the bulkhead registry with defaults
// from bootstrap configuration.
func NewBulkheadManagerFromConf(c *conf.Resilience, logger log.Logger) *BulkheadManager {
	defaults := BulkheadOptions{}
	if c != nil && c.Bulkhead != nil {
		defaults = BulkheadOptions{
			MaxConcurrency:   int(c.Bulkhead.MaxConcurrency),
			MaxQueueLength:   int(c.Bulkhead.MaxQueueLength),
			AllowQueueing:    c.Bulkhead.AllowQueueing,
			OperationTimeout: asDuration(c.Bulkhead.OperationTimeout),
		}
	}
	return NewBulkheadManager(defaults, logger)
}

// NewTransportCircuitBreakerRegistryFromConf builds the per-transport
// breaker registry with defaults from bootstrap configuration.
func NewTransportCircuitBreakerRegistryFromConf(c *conf.Resilience, logger log.Logger) *TransportCircuitBreakerRegistry {
	defaults := CircuitBreakerOptions{}
	if c != nil && c.CircuitBreaker != nil {
		defaults = CircuitBreakerOptions{
			FailureThreshold: int(c.CircuitBreaker.FailureThreshold),
			SuccessThreshold: int(c.CircuitBreaker.SuccessThreshold),
			OpenDuration:     asDuration(c.CircuitBreaker.OpenDuration),
			OperationTimeout: asDuration(c.CircuitBreaker.OperationTimeout),
			MaxHalfOpenTests: int(c.CircuitBreaker.MaxHalfOpenTests),
		}
	}
	return NewTransportCircuitBreakerRegistry(defaults, logger)
}

// NewGracefulDegradationServiceFromConf builds the degradation service
// from bootstrap configuration.
func NewGracefulDegradationServiceFromConf(c *conf.Resilience, logger log.Logger) (*GracefulDegradationService, error) {
	opts := DegradationOptions{}
	if c != nil && c.Degradation != nil {
		opts.MinimumLevelDuration = asDuration(c.Degradation.MinimumLevelDuration)
		opts.MaxTrackedOperations = int(c.Degradation.MaxTrackedOperations)
	}
	return NewGracefulDegradationService(opts, logger)
}

// NewDistributedCircuitBreakerFromConf builds the configured
// cache-coordinated breaker.
func NewDistributedCircuitBreakerFromConf(c *conf.Resilience, repo CircuitStateRepo, logger log.Logger) *DistributedCircuitBreaker {
	opts := DistributedCircuitBreakerOptions{}
	if c != nil && c.Distributed != nil {
		opts = DistributedCircuitBreakerOptions{
			Name:                 c.Distributed.Name,
			FailureThreshold:     int(c.Distributed.FailureThreshold),
			FailureRateThreshold: c.Distributed.FailureRateThreshold,
			MinimumThroughput:    c.Distributed.MinimumThroughput,
			SuccessThreshold:     int(c.Distributed.SuccessThreshold),
			OpenDuration:         asDuration(c.Distributed.OpenDuration),
			SyncInterval:         asDuration(c.Distributed.SyncInterval),
		}
	}
	return NewDistributedCircuitBreaker(opts, repo, logger)
}

func parseBackoffStrategy(s string) BackoffStrategy {
	switch strings.ToLower(s) {
	case "fixed":
		return BackoffFixed
	case "linear":
		return BackoffLinear
	case "fibonacci":
		return BackoffFibonacci
	default:
		return BackoffExponential
	}
}

func parseJitterMode(s string) JitterMode {
	switch strings.ToLower(s) {
	case "full":
		return JitterFull
	case "decorrelated":
		return JitterDecorrelated
	default:
		return JitterNone
	}
}
