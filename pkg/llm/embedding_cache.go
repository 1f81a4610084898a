package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragops/pkg/cache"
	"github.com/kart-io/ragops/pkg/utils/json"
)

// EmbeddingCacheConfig controls the caching wrapper for embedding calls.
type EmbeddingCacheConfig struct {
	// Enabled toggles caching. When false the wrapper is a pass-through.
	Enabled bool
	// TTL is how long a cached embedding stays valid.
	TTL time.Duration
	// KeyPrefix namespaces embedding keys in the shared cache.
	KeyPrefix string
}

// DefaultEmbeddingCacheConfig returns the default embedding cache settings.
// Embeddings for a fixed model are stable, so the TTL is generous.
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		Enabled:   true,
		TTL:       time.Hour,
		KeyPrefix: "emb:",
	}
}

// CachedEmbeddingProvider wraps an EmbeddingProvider with a read-through
// cache. Cache failures never fail the embedding call; they degrade to a
// provider round trip.
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	cache    cache.Cache
	config   *EmbeddingCacheConfig
}

// NewCachedEmbeddingProvider wraps provider with store. A nil config uses
// DefaultEmbeddingCacheConfig.
func NewCachedEmbeddingProvider(provider EmbeddingProvider, store cache.Cache, config *EmbeddingCacheConfig) *CachedEmbeddingProvider {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	return &CachedEmbeddingProvider{
		provider: provider,
		cache:    store,
		config:   config,
	}
}

// cacheKey derives the key for a text from its SHA-256 digest, so arbitrary
// text never appears in cache keys.
func (c *CachedEmbeddingProvider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.config.KeyPrefix + hex.EncodeToString(sum[:])
}

// lookup returns the cached embedding for text, or nil on any kind of miss.
func (c *CachedEmbeddingProvider) lookup(ctx context.Context, key string) []float32 {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		logger.Warnw("embedding cache get failed, treating as miss", "error", err.Error(), "key", key)
		return nil
	}
	if !ok {
		return nil
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		logger.Warnw("corrupt cached embedding, deleting", "error", err.Error(), "key", key)
		_ = c.cache.Del(ctx, key)
		return nil
	}
	return embedding
}

func (c *CachedEmbeddingProvider) store(ctx context.Context, key string, embedding []float32) {
	data, err := json.Marshal(embedding)
	if err != nil {
		logger.Warnw("failed to marshal embedding for caching", "error", err.Error())
		return
	}
	if err := c.cache.Set(ctx, key, data, c.config.TTL); err != nil {
		logger.Warnw("failed to cache embedding", "error", err.Error(), "key", key)
	}
}

// EmbedSingle embeds one text, consulting the cache first.
func (c *CachedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if !c.config.Enabled || c.cache == nil {
		return c.provider.EmbedSingle(ctx, text)
	}

	key := c.cacheKey(text)
	if embedding := c.lookup(ctx, key); embedding != nil {
		logger.Debugw("embedding cache hit", "text_length", len(text), "key", key)
		return embedding, nil
	}

	logger.Debugw("embedding cache miss", "text_length", len(text), "key", key)
	embedding, err := c.provider.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, embedding)
	return embedding, nil
}

// Embed embeds a batch, serving cached entries and computing only the
// remainder with a single provider call.
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.config.Enabled || c.cache == nil {
		return c.provider.Embed(ctx, texts)
	}

	embeddings := make([][]float32, len(texts))
	var missIndices []int
	var missTexts []string

	for i, text := range texts {
		if embedding := c.lookup(ctx, c.cacheKey(text)); embedding != nil {
			embeddings[i] = embedding
			continue
		}
		missIndices = append(missIndices, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		logger.Debugw("all embeddings served from cache", "total", len(texts))
		return embeddings, nil
	}

	logger.Debugw("embedding cache partial miss", "total", len(texts), "uncached", len(missTexts))
	computed, err := c.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for i, idx := range missIndices {
		embeddings[idx] = computed[i]
		c.store(ctx, c.cacheKey(missTexts[i]), computed[i])
	}

	return embeddings, nil
}

// Name reports the wrapped provider name with a cached suffix.
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name() + "-cached"
}

// ClearCache drops every cached embedding and returns how many were removed.
func (c *CachedEmbeddingProvider) ClearCache(ctx context.Context) (int, error) {
	if !c.config.Enabled || c.cache == nil {
		return 0, nil
	}
	return c.cache.Clear(ctx, c.config.KeyPrefix)
}

// CacheStats reports the live entry count and cache settings.
func (c *CachedEmbeddingProvider) CacheStats(ctx context.Context) (map[string]any, error) {
	if !c.config.Enabled || c.cache == nil {
		return map[string]any{"enabled": false}, nil
	}

	count, err := c.cache.Count(ctx, c.config.KeyPrefix)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"enabled":    true,
		"key_count":  count,
		"ttl":        c.config.TTL.String(),
		"key_prefix": c.config.KeyPrefix,
		"provider":   c.provider.Name(),
	}, nil
}

var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)
