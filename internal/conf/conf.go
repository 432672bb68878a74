package conf

import "google.golang.org/protobuf/types/known/durationpb"

// Bootstrap is the root configuration for the FuseLane engine.
type Bootstrap struct {
	Server     *Server
	Data       *Data
	Resilience *Resilience
	Log        *Log
}

// Server holds the transport configuration for the metrics surface.
type Server struct {
	Http *Server_HTTP
}

// Server_HTTP configures the HTTP metrics server.
type Server_HTTP struct {
	Network string
	Addr    string
	Timeout *durationpb.Duration
}

// Data holds the shared-cache configuration.
type Data struct {
	Redis *Data_Redis
}

// Data_Redis configures the Redis client used as the distributed
// coordination cache.
type Data_Redis struct {
	Network      string
	Addr         string
	Password     string
	Db           int32
	ReadTimeout  *durationpb.Duration
	WriteTimeout *durationpb.Duration
}

// Log configures the zap logger.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}

// Resilience holds the policy defaults applied by the factories and
// registries.
type Resilience struct {
	Retry          *Resilience_Retry
	Timeout        *Resilience_Timeout
	CircuitBreaker *Resilience_CircuitBreaker
	Bulkhead       *Resilience_Bulkhead
	Distributed    *Resilience_Distributed
	Degradation    *Resilience_Degradation
}

// Resilience_Retry configures the default retry policy.
type Resilience_Retry struct {
	MaxRetries int32
	Strategy   string
	Jitter     string
	BaseDelay  *durationpb.Duration
	MaxDelay   *durationpb.Duration
}

// Resilience_Timeout configures the timeout manager categories.
type Resilience_Timeout struct {
	Default      *durationpb.Duration
	Database     *durationpb.Duration
	Http         *durationpb.Duration
	MessageQueue *durationpb.Duration
	Cache        *durationpb.Duration
	SlowRatio    float64
}

// Resilience_CircuitBreaker configures the default local breaker.
type Resilience_CircuitBreaker struct {
	FailureThreshold int32
	SuccessThreshold int32
	OpenDuration     *durationpb.Duration
	OperationTimeout *durationpb.Duration
	MaxHalfOpenTests int32
}

// Resilience_Bulkhead configures the default bulkhead.
type Resilience_Bulkhead struct {
	MaxConcurrency   int32
	MaxQueueLength   int32
	AllowQueueing    bool
	OperationTimeout *durationpb.Duration
	IdleTtl          *durationpb.Duration
}

// Resilience_Distributed configures the cache-coordinated breaker.
type Resilience_Distributed struct {
	Name                 string
	FailureThreshold     int32
	FailureRateThreshold float64
	MinimumThroughput    int64
	SuccessThreshold     int32
	OpenDuration         *durationpb.Duration
	SyncInterval         *durationpb.Duration
	MetricsRetention     *durationpb.Duration
}

// Resilience_Degradation configures the degradation service.
type Resilience_Degradation struct {
	MinimumLevelDuration *durationpb.Duration
	MaxTrackedOperations int32
	HealthCheckCron      string
}
