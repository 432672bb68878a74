// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment
// variables, with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/durationpb"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies
// defaults, and allows overrides from environment variables prefixed
// with FUSELANE_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	// Enable environment variable support with FUSELANE_ prefix
	v.SetEnvPrefix("FUSELANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow well-known bare environment variable names for compatibility
	_ = v.BindEnv("data.redis.addr", "REDIS_ADDR", "FUSELANE_DATA_REDIS_ADDR")
	_ = v.BindEnv("data.redis.password", "REDIS_PASSWORD", "FUSELANE_DATA_REDIS_PASSWORD")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	bc := &Bootstrap{
		Server: &Server{
			Http: &Server_HTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: durationpb.New(v.GetDuration("server.http.timeout")),
			},
		},
		Data: &Data{
			Redis: &Data_Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				Password:     v.GetString("data.redis.password"),
				Db:           v.GetInt32("data.redis.db"),
				ReadTimeout:  durationpb.New(v.GetDuration("data.redis.read_timeout")),
				WriteTimeout: durationpb.New(v.GetDuration("data.redis.write_timeout")),
			},
		},
		Resilience: &Resilience{
			Retry: &Resilience_Retry{
				MaxRetries: v.GetInt32("resilience.retry.max_retries"),
				Strategy:   v.GetString("resilience.retry.strategy"),
				Jitter:     v.GetString("resilience.retry.jitter"),
				BaseDelay:  durationpb.New(v.GetDuration("resilience.retry.base_delay")),
				MaxDelay:   durationpb.New(v.GetDuration("resilience.retry.max_delay")),
			},
			Timeout: &Resilience_Timeout{
				Default:      durationpb.New(v.GetDuration("resilience.timeout.default")),
				Database:     durationpb.New(v.GetDuration("resilience.timeout.database")),
				Http:         durationpb.New(v.GetDuration("resilience.timeout.http")),
				MessageQueue: durationpb.New(v.GetDuration("resilience.timeout.message_queue")),
				Cache:        durationpb.New(v.GetDuration("resilience.timeout.cache")),
				SlowRatio:    v.GetFloat64("resilience.timeout.slow_ratio"),
			},
			CircuitBreaker: &Resilience_CircuitBreaker{
				FailureThreshold: v.GetInt32("resilience.circuit_breaker.failure_threshold"),
				SuccessThreshold: v.GetInt32("resilience.circuit_breaker.success_threshold"),
				OpenDuration:     durationpb.New(v.GetDuration("resilience.circuit_breaker.open_duration")),
				OperationTimeout: durationpb.New(v.GetDuration("resilience.circuit_breaker.operation_timeout")),
				MaxHalfOpenTests: v.GetInt32("resilience.circuit_breaker.max_half_open_tests"),
			},
			Bulkhead: &Resilience_Bulkhead{
				MaxConcurrency:   v.GetInt32("resilience.bulkhead.max_concurrency"),
				MaxQueueLength:   v.GetInt32("resilience.bulkhead.max_queue_length"),
				AllowQueueing:    v.GetBool("resilience.bulkhead.allow_queueing"),
				OperationTimeout: durationpb.New(v.GetDuration("resilience.bulkhead.operation_timeout")),
				IdleTtl:          durationpb.New(v.GetDuration("resilience.bulkhead.idle_ttl")),
			},
			Distributed: &Resilience_Distributed{
				Name:                 v.GetString("resilience.distributed.name"),
				FailureThreshold:     v.GetInt32("resilience.distributed.failure_threshold"),
				FailureRateThreshold: v.GetFloat64("resilience.distributed.failure_rate_threshold"),
				MinimumThroughput:    v.GetInt64("resilience.distributed.minimum_throughput"),
				SuccessThreshold:     v.GetInt32("resilience.distributed.success_threshold"),
				OpenDuration:         durationpb.New(v.GetDuration("resilience.distributed.open_duration")),
				SyncInterval:         durationpb.New(v.GetDuration("resilience.distributed.sync_interval")),
				MetricsRetention:     durationpb.New(v.GetDuration("resilience.distributed.metrics_retention")),
			},
			Degradation: &Resilience_Degradation{
				MinimumLevelDuration: durationpb.New(v.GetDuration("resilience.degradation.minimum_level_duration")),
				MaxTrackedOperations: v.GetInt32("resilience.degradation.max_tracked_operations"),
				HealthCheckCron:      v.GetString("resilience.degradation.health_check_cron"),
			},
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", time.Minute)

	// Data defaults
	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// Resilience defaults
	v.SetDefault("resilience.retry.max_retries", 3)
	v.SetDefault("resilience.retry.strategy", "exponential")
	v.SetDefault("resilience.retry.jitter", "full")
	v.SetDefault("resilience.retry.base_delay", 100*time.Millisecond)
	v.SetDefault("resilience.retry.max_delay", 30*time.Second)

	v.SetDefault("resilience.timeout.default", 30*time.Second)
	v.SetDefault("resilience.timeout.database", 10*time.Second)
	v.SetDefault("resilience.timeout.http", 30*time.Second)
	v.SetDefault("resilience.timeout.message_queue", 15*time.Second)
	v.SetDefault("resilience.timeout.cache", 2*time.Second)
	v.SetDefault("resilience.timeout.slow_ratio", 0.8)

	v.SetDefault("resilience.circuit_breaker.failure_threshold", 5)
	v.SetDefault("resilience.circuit_breaker.success_threshold", 2)
	v.SetDefault("resilience.circuit_breaker.open_duration", 30*time.Second)
	v.SetDefault("resilience.circuit_breaker.max_half_open_tests", 1)

	v.SetDefault("resilience.bulkhead.max_concurrency", 10)
	v.SetDefault("resilience.bulkhead.max_queue_length", 20)
	v.SetDefault("resilience.bulkhead.allow_queueing", true)
	v.SetDefault("resilience.bulkhead.operation_timeout", 5*time.Second)
	v.SetDefault("resilience.bulkhead.idle_ttl", 10*time.Minute)

	v.SetDefault("resilience.distributed.name", "default")
	v.SetDefault("resilience.distributed.failure_threshold", 5)
	v.SetDefault("resilience.distributed.failure_rate_threshold", 0.5)
	v.SetDefault("resilience.distributed.minimum_throughput", 10)
	v.SetDefault("resilience.distributed.success_threshold", 2)
	v.SetDefault("resilience.distributed.open_duration", 30*time.Second)
	v.SetDefault("resilience.distributed.sync_interval", 15*time.Second)
	v.SetDefault("resilience.distributed.metrics_retention", time.Hour)

	v.SetDefault("resilience.degradation.minimum_level_duration", 30*time.Second)
	v.SetDefault("resilience.degradation.max_tracked_operations", 1024)
	v.SetDefault("resilience.degradation.health_check_cron", "*/15 * * * * *")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration fields are present
// and valid. It returns an error listing every violation found.
func Validate(bc *Bootstrap) error {
	var problems []string

	if bc.Data == nil || bc.Data.Redis == nil || bc.Data.Redis.Addr == "" {
		problems = append(problems, "data.redis.addr must not be empty")
	}

	if r := bc.Resilience; r != nil {
		if r.CircuitBreaker != nil && r.CircuitBreaker.FailureThreshold < 0 {
			problems = append(problems, "resilience.circuit_breaker.failure_threshold must not be negative")
		}
		if r.Bulkhead != nil && r.Bulkhead.MaxConcurrency < 0 {
			problems = append(problems, "resilience.bulkhead.max_concurrency must not be negative")
		}
		if r.Distributed != nil && (r.Distributed.FailureRateThreshold < 0 || r.Distributed.FailureRateThreshold > 1) {
			problems = append(problems, "resilience.distributed.failure_rate_threshold must be within [0, 1]")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}

	return nil
}
