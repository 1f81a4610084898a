package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragops/internal/apiserver/store"
	"github.com/kart-io/ragops/pkg/errors"
)

func TestRerankReordersByCosine(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"the query":  {1, 0, 0},
		"close text": {1, 0.1, 0},
		"far text":   {0, 1, 0},
	}}
	reranker := NewReranker(embedder)

	// Initial order has the worse match first.
	hits := []*store.ChunkHit{
		hitOfSize("far", "d1", 8, 0.9),
		hitOfSize("close", "d2", 10, 0.1),
	}
	hits[0].Content = "far text"
	hits[1].Content = "close text"

	reranked, err := reranker.Rerank(context.Background(), "the query", hits, 0)

	require.NoError(t, err)
	require.Len(t, reranked, 2)
	assert.Equal(t, "close", reranked[0].ID)
	assert.Equal(t, "far", reranked[1].ID)
	assert.Greater(t, reranked[0].Score, reranked[1].Score)

	// Input order untouched.
	assert.Equal(t, "far", hits[0].ID)
}

func TestRerankTruncatesToK(t *testing.T) {
	reranker := NewReranker(&fakeEmbedder{})
	hits := []*store.ChunkHit{
		hitOfSize("a", "d", 5, 0.3),
		hitOfSize("b", "d", 5, 0.2),
		hitOfSize("c", "d", 5, 0.1),
	}

	reranked, err := reranker.Rerank(context.Background(), "query", hits, 2)

	require.NoError(t, err)
	assert.Len(t, reranked, 2)
}

func TestRerankEmptyInput(t *testing.T) {
	embedder := &fakeEmbedder{}
	reranker := NewReranker(embedder)

	reranked, err := reranker.Rerank(context.Background(), "query", nil, 5)

	require.NoError(t, err)
	assert.Empty(t, reranked)
	assert.Equal(t, 0, embedder.calls, "empty input must not embed anything")
}

func TestRerankEmbeddingFailure(t *testing.T) {
	reranker := NewReranker(&fakeEmbedder{err: fmt.Errorf("down")})
	hits := []*store.ChunkHit{hitOfSize("a", "d", 5, 0.3)}

	_, err := reranker.Rerank(context.Background(), "query", hits, 5)

	assert.True(t, stderrors.Is(err, errors.ErrEmbeddingUnavailable))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, cosine([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Zero(t, cosine([]float32{1, 0}, []float32{1, 0, 0}), "dimension mismatch scores zero")
	assert.Zero(t, cosine(nil, nil))
}
