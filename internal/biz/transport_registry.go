package biz

import (
	"strings"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
)

// TransportCircuitBreakerRegistry keeps one local circuit breaker per
// transport name. Lookups are case-insensitive; the first registration
// decides the stored display name.
type TransportCircuitBreakerRegistry struct {
	defaults CircuitBreakerOptions
	logger   *log.Helper

	mu       sync.RWMutex
	breakers map[string]*CircuitBreakerPolicy
}

// NewTransportCircuitBreakerRegistry creates a registry whose breakers
// inherit the given default options unless overridden per call.
func NewTransportCircuitBreakerRegistry(defaults CircuitBreakerOptions, logger log.Logger) *TransportCircuitBreakerRegistry {
	return &TransportCircuitBreakerRegistry{
		defaults: defaults,
		logger:   log.NewHelper(logger),
		breakers: make(map[string]*CircuitBreakerPolicy),
	}
}

// GetOrCreate returns the breaker for a transport name, creating it
// lazily. Concurrent first-access races resolve to a single instance.
// opts, when non-nil, only applies to the breaker being created.
func (r *TransportCircuitBreakerRegistry) GetOrCreate(name string, opts *CircuitBreakerOptions) *CircuitBreakerPolicy {
	key := strings.ToLower(name)

	r.mu.RLock()
	cb, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[key]; ok {
		return cb
	}

	o := r.defaults
	if opts != nil {
		o = *opts
	}
	o.Name = name

	cb = NewCircuitBreakerPolicy(o)
	r.breakers[key] = cb
	r.logger.Infow("msg", "transport circuit breaker created", "transport", name)
	return cb
}

// TryGet returns the breaker for a transport name if one exists.
func (r *TransportCircuitBreakerRegistry) TryGet(name string) (*CircuitBreakerPolicy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.breakers[strings.ToLower(name)]
	return cb, ok
}

// Remove evicts the breaker for a transport name. It reports whether a
// breaker was present.
func (r *TransportCircuitBreakerRegistry) Remove(name string) bool {
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.breakers[key]; !ok {
		return false
	}
	delete(r.breakers, key)
	return true
}

// ResetAll forces every registered breaker closed.
func (r *TransportCircuitBreakerRegistry) ResetAll() {
	r.mu.RLock()
	breakers := make([]*CircuitBreakerPolicy, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.RUnlock()

	for _, cb := range breakers {
		cb.Reset()
	}
}

// AllMetrics returns a snapshot of every registered breaker keyed by
// its lowercased transport name.
func (r *TransportCircuitBreakerRegistry) AllMetrics() map[string]CircuitBreakerMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]CircuitBreakerMetrics, len(r.breakers))
	for key, cb := range r.breakers {
		out[key] = cb.Metrics()
	}
	return out
}
