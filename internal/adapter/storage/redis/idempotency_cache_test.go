package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "submit:producer-123:batch-001"
	value := []byte(`{"id":"abc","status":"PENDING"}`)

	// Get before set => nil
	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result)

	require.NoError(t, cache.Set(ctx, key, value, 24*time.Hour))

	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result)
}

func TestIdempotencyCache_TTLExpiry(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "submit:producer-456:batch-002"
	require.NoError(t, cache.Set(ctx, key, []byte(`{"data":"test"}`), 1*time.Second))

	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result, "expired key should return nil")
}

func TestIdempotencyCache_Reserve(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "submit:producer-789:batch-003:inflight"

	ok, err := cache.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second reservation must fail while the first is held")

	require.NoError(t, cache.Delete(ctx, key))
	ok, err = cache.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	s.FastForward(2 * time.Minute)
	ok, err = cache.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "reservation expires with its ttl")
}

func TestIdempotencyCache_Delete_Missing(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewIdempotencyCache(client)

	assert.NoError(t, cache.Delete(context.Background(), "never-set"))
}

func TestIdempotencyCache_RedisDown(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	s.Close()

	_, err := cache.Get(context.Background(), "k")
	assert.ErrorContains(t, err, "redis idempotency get")

	_, err = cache.Reserve(context.Background(), "k", time.Minute)
	assert.ErrorContains(t, err, "redis idempotency reserve")
}
