package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragops/pkg/cache"
	"github.com/kart-io/ragops/pkg/utils/json"
)

// AnswerCacheConfig configures the answer cache.
type AnswerCacheConfig struct {
	// Enabled toggles the cache. When disabled, Get always misses and Set
	// is a no-op.
	Enabled bool
	// TTL is how long a cached answer stays valid.
	TTL time.Duration
	// KeyPrefix namespaces answer keys in the shared cache backend.
	KeyPrefix string
}

// AnswerCache stores finished query results keyed by request fingerprint.
// Backend failures are logged and treated as misses: the query path must
// stay correct, only slower, when the cache is down.
type AnswerCache struct {
	store  cache.Cache
	config *AnswerCacheConfig
}

// NewAnswerCache creates an answer cache over the given backend.
func NewAnswerCache(store cache.Cache, config *AnswerCacheConfig) *AnswerCache {
	if config == nil {
		config = &AnswerCacheConfig{
			Enabled:   false,
			TTL:       10 * time.Minute,
			KeyPrefix: "rag:",
		}
	}
	return &AnswerCache{
		store:  store,
		config: config,
	}
}

func (c *AnswerCache) key(req *QueryRequest) string {
	return c.config.KeyPrefix + Fingerprint(req)
}

// Get returns the cached result for req, or nil on a miss. A backend error
// is a miss.
func (c *AnswerCache) Get(ctx context.Context, req *QueryRequest) *QueryResult {
	if !c.config.Enabled || c.store == nil {
		return nil
	}

	cacheKey := c.key(req)
	data, ok, err := c.store.Get(ctx, cacheKey)
	if err != nil {
		logger.Warnw("answer cache get failed, treating as miss", "error", err.Error(), "key", cacheKey)
		return nil
	}
	if !ok {
		logger.Debugw("answer cache miss", "key", cacheKey)
		return nil
	}

	var result QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("failed to unmarshal cached answer", "error", err.Error(), "key", cacheKey)
		_ = c.store.Del(ctx, cacheKey)
		return nil
	}

	logger.Infow("answer cache hit", "key", cacheKey, "answer_length", len(result.Answer))
	return &result
}

// Set writes a finished result under req's fingerprint. Failures are logged,
// never surfaced.
func (c *AnswerCache) Set(ctx context.Context, req *QueryRequest, result *QueryResult) {
	if !c.config.Enabled || c.store == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("failed to marshal answer for caching", "error", err.Error())
		return
	}

	cacheKey := c.key(req)
	if err := c.store.Set(ctx, cacheKey, data, c.config.TTL); err != nil {
		logger.Warnw("answer cache set failed", "error", err.Error(), "key", cacheKey)
		return
	}

	logger.Infow("cached answer", "key", cacheKey, "ttl", c.config.TTL)
}

// Clear removes all cached answers and returns how many were deleted.
func (c *AnswerCache) Clear(ctx context.Context) (int, error) {
	if !c.config.Enabled || c.store == nil {
		return 0, nil
	}
	return c.store.Clear(ctx, c.config.KeyPrefix)
}

// Stats reports cache configuration and live entry count.
func (c *AnswerCache) Stats(ctx context.Context) map[string]any {
	if !c.config.Enabled || c.store == nil {
		return map[string]any{"enabled": false}
	}

	stats := map[string]any{
		"enabled":    true,
		"ttl":        c.config.TTL.String(),
		"key_prefix": c.config.KeyPrefix,
	}
	if count, err := c.store.Count(ctx, c.config.KeyPrefix); err == nil {
		stats["key_count"] = count
	}
	return stats
}
