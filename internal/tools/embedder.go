package tools

import (
	"context"
	"errors"
	"time"

	"github.com/Ayash-Bera/shopassist/backend/internal/database"
	"github.com/Ayash-Bera/shopassist/backend/internal/metrics"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Embedder produces a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// CachedEmbedder consults Redis before calling the embedding provider. Cache
// errors never fail the lookup.
type CachedEmbedder struct {
	next    Embedder
	cache   *database.Cache
	ttl     time.Duration
	metrics *metrics.Recorder
	logger  *logrus.Logger
}

func NewCachedEmbedder(next Embedder, cache *database.Cache, ttl time.Duration, m *metrics.Recorder, logger *logrus.Logger) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, ttl: ttl, metrics: m, logger: logger}
}

func (c *CachedEmbedder) Model() string {
	return c.next.Model()
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.cache.Enabled() {
		return c.next.Embed(ctx, text)
	}

	model := c.next.Model()
	vector, err := c.cache.GetCachedEmbedding(ctx, model, text)
	switch {
	case err == nil && len(vector) > 0:
		c.metrics.CacheHit("embedding")
		return vector, nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.logger.WithError(err).Warn("Embedding cache read failed")
	}
	c.metrics.CacheMiss("embedding")

	vector, err = c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.CacheEmbedding(ctx, model, text, vector, c.ttl); err != nil {
		c.logger.WithError(err).Warn("Embedding cache write failed")
	}
	return vector, nil
}
