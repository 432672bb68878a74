package biz

import (
	"context"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *BulkheadManager {
	return NewBulkheadManager(BulkheadOptions{MaxConcurrency: 2}, log.DefaultLogger)
}

func TestBulkheadManager_GetOrCreateReturnsSameInstance(t *testing.T) {
	m := newTestManager()

	a := m.GetOrCreateBulkhead("db", nil)
	b := m.GetOrCreateBulkhead("db", nil)
	assert.Same(t, a, b)
}

func TestBulkheadManager_NamesAreCaseSensitive(t *testing.T) {
	m := newTestManager()

	a := m.GetOrCreateBulkhead("db", nil)
	b := m.GetOrCreateBulkhead("DB", nil)
	assert.NotSame(t, a, b)
}

func TestBulkheadManager_RemoveClosesBulkhead(t *testing.T) {
	m := newTestManager()

	bh := m.GetOrCreateBulkhead("db", nil)
	assert.True(t, m.RemoveBulkhead("db"))
	assert.False(t, m.RemoveBulkhead("db"))

	// The evicted bulkhead no longer admits work
	err := bh.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrBulkheadClosed)

	// A later lookup builds a fresh one
	fresh := m.GetOrCreateBulkhead("db", nil)
	assert.NotSame(t, bh, fresh)
	require.NoError(t, fresh.Execute(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestBulkheadManager_AllMetrics(t *testing.T) {
	m := newTestManager()

	require.NoError(t, m.GetOrCreateBulkhead("db", nil).Execute(context.Background(), func(ctx context.Context) error { return nil }))
	m.GetOrCreateBulkhead("http", &BulkheadOptions{MaxConcurrency: 7})

	metrics := m.AllMetrics()
	require.Len(t, metrics, 2)
	assert.Equal(t, int64(1), metrics["db"].TotalExecutions)
	assert.Equal(t, 7, metrics["http"].MaxConcurrency)
}

func TestBulkheadManager_Shutdown(t *testing.T) {
	m := newTestManager()

	db := m.GetOrCreateBulkhead("db", nil)
	httpBH := m.GetOrCreateBulkhead("http", nil)

	m.Shutdown()

	err := db.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrBulkheadClosed)
	err = httpBH.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrBulkheadClosed)

	assert.Empty(t, m.AllMetrics())
}

func TestBulkheadManager_SweepIdle(t *testing.T) {
	m := newTestManager()

	idle := m.GetOrCreateBulkhead("idle", nil)
	busy := m.GetOrCreateBulkhead("busy", &BulkheadOptions{MaxConcurrency: 1})

	release := make(chan struct{})
	running := make(chan struct{})
	go func() {
		_ = busy.Execute(context.Background(), func(ctx context.Context) error {
			close(running)
			<-release
			return nil
		})
	}()
	<-running

	time.Sleep(20 * time.Millisecond)
	removed := m.SweepIdle(10 * time.Millisecond)
	assert.Equal(t, 1, removed)

	// The idle bulkhead is gone and closed; the busy one survives.
	_, ok := m.TryGetBulkhead("idle")
	assert.False(t, ok)
	_, ok = m.TryGetBulkhead("busy")
	assert.True(t, ok)
	err := idle.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrBulkheadClosed)

	close(release)
}

func TestBulkheadManager_SweepIdleRecentSurvives(t *testing.T) {
	m := newTestManager()

	bh := m.GetOrCreateBulkhead("db", nil)
	require.NoError(t, bh.Execute(context.Background(), func(ctx context.Context) error { return nil }))

	assert.Equal(t, 0, m.SweepIdle(time.Minute))
	assert.Equal(t, 0, m.SweepIdle(0))
	_, ok := m.TryGetBulkhead("db")
	assert.True(t, ok)
}
