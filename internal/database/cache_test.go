package database

import (
	"context"
	"testing"
	"time"

	"github.com/Ayash-Bera/shopassist/backend/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, logrus.New()), mr
}

func TestCache_Embedding_RoundTrip(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	_, err := cache.GetCachedEmbedding(ctx, "ada", "crm tools")
	assert.ErrorIs(t, err, redis.Nil)

	require.NoError(t, cache.CacheEmbedding(ctx, "ada", "crm tools", []float32{0.25, -1, 3}, time.Hour))

	got, err := cache.GetCachedEmbedding(ctx, "ada", "crm tools")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -1, 3}, got)

	_, err = cache.GetCachedEmbedding(ctx, "ada", "  CRM   tools ")
	assert.ErrorIs(t, err, redis.Nil)

	key := EmbeddingCacheKey("ada", "crm tools")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))
}

func TestCache_Embedding_KeyIncludesModel(t *testing.T) {
	assert.NotEqual(t, EmbeddingCacheKey("ada", "crm"), EmbeddingCacheKey("text-embedding-3-small", "crm"))
	assert.NotEqual(t, EmbeddingCacheKey("ada", "Product A"), EmbeddingCacheKey("ada", "product a"))
	assert.NotEqual(t, EmbeddingCacheKey("ada", "crm  tools"), EmbeddingCacheKey("ada", "crm tools"))
}

func TestCache_Expires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.CacheEmbedding(ctx, "ada", "q", []float32{1}, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := cache.GetCachedEmbedding(ctx, "ada", "q")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestCache_SystemHealth(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	snapshot := []models.SystemHealth{{ServiceName: "postgres", Status: "healthy", ResponseTimeMs: 3}}
	require.NoError(t, cache.CacheSystemHealth(ctx, snapshot, time.Minute))

	got, err := cache.GetCachedSystemHealth(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "postgres", got[0].ServiceName)
}

func TestCache_PopularQueries_Invalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.CachePopularQueries(ctx, []models.PopularQuery{{QueryText: "crm", SearchCount: 4}}, time.Minute))
	require.NoError(t, cache.InvalidatePopularQueries(ctx))

	_, err := cache.GetCachedPopularQueries(ctx)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(nil, logrus.New())
	ctx := context.Background()

	assert.False(t, cache.Enabled())
	assert.NoError(t, cache.CacheEmbedding(ctx, "ada", "q", []float32{1}, time.Minute))

	_, err := cache.GetCachedEmbedding(ctx, "ada", "q")
	assert.ErrorIs(t, err, redis.Nil)
}
