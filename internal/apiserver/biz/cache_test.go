package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragops/pkg/cache"
)

func TestAnswerCacheRoundTrip(t *testing.T) {
	backend := cache.NewMemory(0)
	defer backend.Close()
	c := NewAnswerCache(backend, &AnswerCacheConfig{Enabled: true, TTL: time.Minute, KeyPrefix: "rag:"})

	req := &QueryRequest{Query: "what is raft", K: 3, UseEmbeddings: true}
	assert.Nil(t, c.Get(context.Background(), req))

	c.Set(context.Background(), req, &QueryResult{Answer: "raft elects a leader", SearchMethod: SearchMethodVector})

	got := c.Get(context.Background(), req)
	require.NotNil(t, got)
	assert.Equal(t, "raft elects a leader", got.Answer)

	// A different k is a different entry.
	assert.Nil(t, c.Get(context.Background(), &QueryRequest{Query: "what is raft", K: 4, UseEmbeddings: true}))
}

func TestAnswerCacheExpiry(t *testing.T) {
	backend := cache.NewMemory(0)
	defer backend.Close()
	c := NewAnswerCache(backend, &AnswerCacheConfig{Enabled: true, TTL: 50 * time.Millisecond, KeyPrefix: "rag:"})

	req := &QueryRequest{Query: "q", K: 1}
	c.Set(context.Background(), req, &QueryResult{Answer: "a"})

	time.Sleep(100 * time.Millisecond)
	assert.Nil(t, c.Get(context.Background(), req))
}

func TestAnswerCacheDisabled(t *testing.T) {
	backend := cache.NewMemory(0)
	defer backend.Close()
	c := NewAnswerCache(backend, &AnswerCacheConfig{Enabled: false, TTL: time.Minute, KeyPrefix: "rag:"})

	req := &QueryRequest{Query: "q", K: 1}
	c.Set(context.Background(), req, &QueryResult{Answer: "a"})
	assert.Nil(t, c.Get(context.Background(), req))

	stats := c.Stats(context.Background())
	assert.Equal(t, false, stats["enabled"])
}

func TestAnswerCacheBrokenBackendIsMiss(t *testing.T) {
	c := NewAnswerCache(brokenCache{}, &AnswerCacheConfig{Enabled: true, TTL: time.Minute, KeyPrefix: "rag:"})

	req := &QueryRequest{Query: "q", K: 1}
	c.Set(context.Background(), req, &QueryResult{Answer: "a"})
	assert.Nil(t, c.Get(context.Background(), req))
}

func TestAnswerCacheClearAndStats(t *testing.T) {
	backend := cache.NewMemory(0)
	defer backend.Close()
	c := NewAnswerCache(backend, &AnswerCacheConfig{Enabled: true, TTL: time.Minute, KeyPrefix: "rag:"})

	c.Set(context.Background(), &QueryRequest{Query: "a", K: 1}, &QueryResult{Answer: "1"})
	c.Set(context.Background(), &QueryRequest{Query: "b", K: 1}, &QueryResult{Answer: "2"})

	stats := c.Stats(context.Background())
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, 2, stats["key_count"])

	deleted, err := c.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}
