package biz

import (
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// BulkheadManager is a registry of named bulkheads, one per protected
// resource, created lazily. Names are case-sensitive.
type BulkheadManager struct {
	defaults BulkheadOptions
	logger   *log.Helper

	mu        sync.RWMutex
	bulkheads map[string]*BulkheadPolicy
}

// NewBulkheadManager creates a manager whose bulkheads inherit the
// given default options unless overridden per call.
func NewBulkheadManager(defaults BulkheadOptions, logger log.Logger) *BulkheadManager {
	return &BulkheadManager{
		defaults:  defaults,
		logger:    log.NewHelper(logger),
		bulkheads: make(map[string]*BulkheadPolicy),
	}
}

// GetOrCreateBulkhead returns the bulkhead for a resource name,
// creating it lazily. Under a concurrent first-access race exactly one
// instance is created and returned to all callers. opts, when non-nil,
// only applies to the bulkhead being created.
func (m *BulkheadManager) GetOrCreateBulkhead(name string, opts *BulkheadOptions) *BulkheadPolicy {
	m.mu.RLock()
	bh, ok := m.bulkheads[name]
	m.mu.RUnlock()
	if ok {
		return bh
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if bh, ok := m.bulkheads[name]; ok {
		return bh
	}

	o := m.defaults
	if opts != nil {
		o = *opts
	}

	bh = NewBulkheadPolicy(name, o)
	m.bulkheads[name] = bh
	m.logger.Infow("msg", "bulkhead created",
		"bulkhead", name,
		"max_concurrency", o.MaxConcurrency,
		"max_queue_length", o.MaxQueueLength)
	return bh
}

// TryGetBulkhead returns the bulkhead for a name if one exists.
func (m *BulkheadManager) TryGetBulkhead(name string) (*BulkheadPolicy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bh, ok := m.bulkheads[name]
	return bh, ok
}

// RemoveBulkhead closes and evicts the named bulkhead so a subsequent
// GetOrCreateBulkhead builds a fresh one. It reports whether a bulkhead
// was present.
func (m *BulkheadManager) RemoveBulkhead(name string) bool {
	m.mu.Lock()
	bh, ok := m.bulkheads[name]
	if ok {
		delete(m.bulkheads, name)
	}
	m.mu.Unlock()

	if ok {
		bh.Close()
	}
	return ok
}

// SweepIdle closes and evicts bulkheads that have no work in flight
// and have not admitted an execution for at least maxIdle. It returns
// the number of bulkheads removed. A non-positive maxIdle is a no-op.
func (m *BulkheadManager) SweepIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var evicted []*BulkheadPolicy
	for name, bh := range m.bulkheads {
		if bh.idle(cutoff) {
			delete(m.bulkheads, name)
			evicted = append(evicted, bh)
		}
	}
	m.mu.Unlock()

	for _, bh := range evicted {
		bh.Close()
		m.logger.Infow("msg", "idle bulkhead evicted", "bulkhead", bh.Name())
	}
	return len(evicted)
}

// AllMetrics returns a snapshot of every registered bulkhead.
func (m *BulkheadManager) AllMetrics() map[string]BulkheadMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]BulkheadMetrics, len(m.bulkheads))
	for name, bh := range m.bulkheads {
		out[name] = bh.GetMetrics()
	}
	return out
}

// Shutdown closes every bulkhead and empties the registry.
func (m *BulkheadManager) Shutdown() {
	m.mu.Lock()
	bulkheads := m.bulkheads
	m.bulkheads = make(map[string]*BulkheadPolicy)
	m.mu.Unlock()

	for _, bh := range bulkheads {
		bh.Close()
	}
}
