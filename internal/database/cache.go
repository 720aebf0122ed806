package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Ayash-Bera/shopassist/backend/internal/models"
	"github.com/Ayash-Bera/shopassist/backend/pkg/utils"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Cache wraps Redis. A Cache with a nil client misses on every read and
// drops every write.
type Cache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewCache(client *redis.Client, logger *logrus.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
	}
}

// Cache key constants
const (
	EmbeddingKey      = "embedding:%s:%s"
	PopularQueriesKey = "popular:queries"
	SystemHealthKey   = "system:health"
)

// EmbeddingCacheKey derives the key for a model and the exact text that gets
// embedded. The provider is case and whitespace sensitive, so the text is not
// normalized.
func EmbeddingCacheKey(model, input string) string {
	return fmt.Sprintf(EmbeddingKey, model, utils.MD5Hash(input))
}

// Enabled reports whether a Redis client is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// CacheEmbedding stores a query embedding.
func (c *Cache) CacheEmbedding(ctx context.Context, model, input string, vector []float32, expiration time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	return c.client.Set(ctx, EmbeddingCacheKey(model, input), data, expiration).Err()
}

// GetCachedEmbedding returns redis.Nil on a miss.
func (c *Cache) GetCachedEmbedding(ctx context.Context, model, input string) ([]float32, error) {
	if !c.Enabled() {
		return nil, redis.Nil
	}
	data, err := c.client.Get(ctx, EmbeddingCacheKey(model, input)).Bytes()
	if err != nil {
		return nil, err
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}
	return vector, nil
}

// CachePopularQueries caches popular queries list
func (c *Cache) CachePopularQueries(ctx context.Context, queries []models.PopularQuery, expiration time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(queries)
	if err != nil {
		return fmt.Errorf("failed to marshal popular queries: %w", err)
	}

	return c.client.Set(ctx, PopularQueriesKey, data, expiration).Err()
}

// GetCachedPopularQueries retrieves cached popular queries
func (c *Cache) GetCachedPopularQueries(ctx context.Context) ([]models.PopularQuery, error) {
	if !c.Enabled() {
		return nil, redis.Nil
	}
	data, err := c.client.Get(ctx, PopularQueriesKey).Result()
	if err != nil {
		return nil, err
	}

	var queries []models.PopularQuery
	err = json.Unmarshal([]byte(data), &queries)
	return queries, err
}

// InvalidatePopularQueries drops the cached list after new counts land.
func (c *Cache) InvalidatePopularQueries(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Del(ctx, PopularQueriesKey).Err()
}

// CacheSystemHealth caches system health status
func (c *Cache) CacheSystemHealth(ctx context.Context, health []models.SystemHealth, expiration time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(health)
	if err != nil {
		return fmt.Errorf("failed to marshal system health: %w", err)
	}

	return c.client.Set(ctx, SystemHealthKey, data, expiration).Err()
}

// GetCachedSystemHealth retrieves cached system health
func (c *Cache) GetCachedSystemHealth(ctx context.Context) ([]models.SystemHealth, error) {
	if !c.Enabled() {
		return nil, redis.Nil
	}
	data, err := c.client.Get(ctx, SystemHealthKey).Result()
	if err != nil {
		return nil, err
	}

	var health []models.SystemHealth
	err = json.Unmarshal([]byte(data), &health)
	return health, err
}

// GetCacheStats reads hit and miss counters from INFO stats.
func (c *Cache) GetCacheStats(ctx context.Context) (map[string]string, error) {
	if !c.Enabled() {
		return nil, ErrRedisDisabled
	}
	info, err := c.client.Info(ctx, "stats").Result()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"keyspace_hits":   extractStat(info, "keyspace_hits"),
		"keyspace_misses": extractStat(info, "keyspace_misses"),
	}, nil
}

func extractStat(info, key string) string {
	for _, line := range strings.Split(info, "\r\n") {
		if strings.HasPrefix(line, key+":") {
			return strings.TrimPrefix(line, key+":")
		}
	}
	return "0"
}
