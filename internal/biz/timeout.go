package biz

import (
	"strings"
	"sync"
	"time"
)

// TimeoutManagerOptions holds per-category timeouts resolved by
// operation-name keyword matching.
type TimeoutManagerOptions struct {
	// Default applies when no registration or category matches. Default: 30s.
	Default time.Duration
	// Database applies to database-flavored operation names. Default: 10s.
	Database time.Duration
	// HTTP applies to HTTP/API-flavored operation names. Default: 30s.
	HTTP time.Duration
	// MessageQueue applies to queue-flavored operation names. Default: 15s.
	MessageQueue time.Duration
	// Cache applies to cache-flavored operation names. Default: 2s.
	Cache time.Duration
	// SlowThresholdRatio is the fraction of the timeout after which an
	// operation counts as slow. Default: 0.8.
	SlowThresholdRatio float64
}

// TimeoutManager maps operation names to timeouts via exact
// registration, category keyword matching, or a default. It is safe for
// concurrent use.
type TimeoutManager struct {
	opts TimeoutManagerOptions

	mu         sync.RWMutex
	registered map[string]time.Duration
}

// Keyword tables for category matching, checked against the lowercased
// operation name.
var (
	databaseKeywords = []string{"database", "db", "sql", "query", "insert", "update", "delete"}
	httpKeywords     = []string{"http", "api", "rest", "webhook", "fetch"}
	queueKeywords    = []string{"queue", "mq", "publish", "consume", "dispatch"}
	cacheKeywords    = []string{"cache", "redis", "memcached"}
)

// NewTimeoutManager creates a manager with defaults applied.
func NewTimeoutManager(opts TimeoutManagerOptions) *TimeoutManager {
	if opts.Default <= 0 {
		opts.Default = 30 * time.Second
	}
	if opts.Database <= 0 {
		opts.Database = 10 * time.Second
	}
	if opts.HTTP <= 0 {
		opts.HTTP = 30 * time.Second
	}
	if opts.MessageQueue <= 0 {
		opts.MessageQueue = 15 * time.Second
	}
	if opts.Cache <= 0 {
		opts.Cache = 2 * time.Second
	}
	if opts.SlowThresholdRatio <= 0 || opts.SlowThresholdRatio > 1 {
		opts.SlowThresholdRatio = 0.8
	}

	return &TimeoutManager{
		opts:       opts,
		registered: make(map[string]time.Duration),
	}
}

// RegisterTimeout records an explicit timeout for an operation name,
// overwriting any prior registration. Non-positive durations are
// rejected.
func (m *TimeoutManager) RegisterTimeout(name string, d time.Duration) error {
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if d <= 0 {
		return &ValidationError{Field: "timeout", Reason: "must be positive"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered[name] = d
	return nil
}

// GetTimeout resolves the timeout for an operation name. Exact
// registrations take precedence, then case-insensitive category keyword
// matching, then the default.
func (m *TimeoutManager) GetTimeout(name string) time.Duration {
	m.mu.RLock()
	if d, ok := m.registered[name]; ok {
		m.mu.RUnlock()
		return d
	}
	m.mu.RUnlock()

	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, databaseKeywords):
		return m.opts.Database
	case containsAny(lower, httpKeywords):
		return m.opts.HTTP
	case containsAny(lower, queueKeywords):
		return m.opts.MessageQueue
	case containsAny(lower, cacheKeywords):
		return m.opts.Cache
	default:
		return m.opts.Default
	}
}

// IsSlowOperation reports whether elapsed has reached the slow
// threshold for the operation's timeout. It is a pure predicate and
// never blocks.
func (m *TimeoutManager) IsSlowOperation(name string, elapsed time.Duration) bool {
	timeout := m.GetTimeout(name)
	threshold := time.Duration(float64(timeout) * m.opts.SlowThresholdRatio)
	return elapsed >= threshold
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
