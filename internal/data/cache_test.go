package data

import (
	"context"
	"testing"
	"time"

	"FuseLane/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (CacheClient, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewCacheClient(rdb)

	return cache, mr
}

func TestNewCacheClient(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewCacheClient(rdb)
	assert.NotNil(t, cache)
}

func TestCacheGet_Success(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	record := model.DistributedCircuitState{
		State:      model.CircuitOpen,
		OpenedAt:   time.Now().Round(time.Second),
		InstanceID: "host-a",
	}

	key := circuitStateKey("payments")
	err := cache.Set(ctx, key, record, time.Hour)
	require.NoError(t, err)

	var retrieved model.DistributedCircuitState
	err = cache.Get(ctx, key, &retrieved)
	require.NoError(t, err)

	assert.Equal(t, record.State, retrieved.State)
	assert.Equal(t, record.InstanceID, retrieved.InstanceID)
	assert.True(t, record.OpenedAt.Equal(retrieved.OpenedAt))
}

func TestCacheGet_KeyNotFound(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	var retrieved model.DistributedCircuitState
	err := cache.Get(ctx, "nonexistent:key", &retrieved)

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCacheGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	key := circuitStateKey("corrupt")
	_ = mr.Set(key, "invalid json {{{")

	var retrieved model.DistributedCircuitState
	err := cache.Get(ctx, key, &retrieved)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestCacheSet_WithTTL(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	metrics := model.DistributedCircuitMetrics{SuccessCount: 42}

	key := circuitMetricsKey("payments")
	ttl := time.Minute

	err := cache.Set(ctx, key, metrics, ttl)
	require.NoError(t, err)

	currentTTL := mr.TTL(key)
	assert.Greater(t, currentTTL, time.Duration(0))
	assert.LessOrEqual(t, currentTTL, ttl)
}

func TestCacheDelete_Success(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	stateKey := circuitStateKey("orders")
	metricsKey := circuitMetricsKey("orders")
	require.NoError(t, cache.Set(ctx, stateKey, model.DistributedCircuitState{State: model.CircuitOpen}, time.Hour))
	require.NoError(t, cache.Set(ctx, metricsKey, model.DistributedCircuitMetrics{FailureCount: 3}, time.Hour))

	err := cache.Delete(ctx, stateKey, metricsKey)
	require.NoError(t, err)

	assert.False(t, mr.Exists(stateKey))
	assert.False(t, mr.Exists(metricsKey))
}

func TestCacheDelete_NonExistentKey(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	err := cache.Delete(context.Background(), "nonexistent:key")
	assert.NoError(t, err)
}

func TestCacheExists(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	key := circuitStateKey("search")
	require.NoError(t, cache.Set(ctx, key, model.DistributedCircuitState{}, time.Hour))

	exists, err := cache.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = cache.Exists(ctx, "nonexistent:key")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCacheTTLExpiration(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	key := circuitMetricsKey("expiring")
	err := cache.Set(ctx, key, model.DistributedCircuitMetrics{SuccessCount: 1}, 100*time.Millisecond)
	require.NoError(t, err)

	mr.FastForward(200 * time.Millisecond)

	var retrieved model.DistributedCircuitMetrics
	err = cache.Get(ctx, key, &retrieved)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCacheClient_NilRedisClient(t *testing.T) {
	cache := NewCacheClient(nil)
	ctx := context.Background()

	err := cache.Set(ctx, "key", model.DistributedCircuitState{}, time.Hour)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis client is nil")

	var retrieved model.DistributedCircuitState
	err = cache.Get(ctx, "key", &retrieved)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis client is nil")

	err = cache.Delete(ctx, "key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis client is nil")

	exists, err := cache.Exists(ctx, "key")
	assert.Error(t, err)
	assert.False(t, exists)
	assert.Contains(t, err.Error(), "redis client is nil")
}

func TestCircuitKeys(t *testing.T) {
	assert.Equal(t, "fuse:payments:state", circuitStateKey("payments"))
	assert.Equal(t, "fuse:payments:metrics", circuitMetricsKey("payments"))
}
