package biz

import (
	"context"
	"math"
	"sort"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragops/internal/apiserver/store"
	"github.com/kart-io/ragops/pkg/errors"
	"github.com/kart-io/ragops/pkg/llm"
)

// Reranker re-scores retrieved chunks by embedding both the query and each
// chunk's content and ranking on exact cosine similarity. It is a post-filter
// over an existing retrieval, not a retrieval of its own.
type Reranker struct {
	embedProvider llm.EmbeddingProvider
}

// NewReranker creates a reranker instance.
func NewReranker(embedProvider llm.EmbeddingProvider) *Reranker {
	return &Reranker{embedProvider: embedProvider}
}

// Rerank recomputes hit scores against the query and returns the top k in
// the new order. The input slice is not modified.
func (r *Reranker) Rerank(ctx context.Context, query string, hits []*store.ChunkHit, k int) ([]*store.ChunkHit, error) {
	if len(hits) == 0 {
		return hits, nil
	}

	queryEmbedding, err := r.embedProvider.EmbedSingle(ctx, query)
	if err != nil {
		return nil, errors.ErrEmbeddingUnavailable.WithCause(err)
	}

	texts := make([]string, len(hits))
	for i, hit := range hits {
		texts[i] = hit.Content
	}
	embeddings, err := r.embedProvider.Embed(ctx, texts)
	if err != nil {
		return nil, errors.ErrEmbeddingUnavailable.WithCause(err)
	}
	if len(embeddings) != len(hits) {
		return nil, errors.ErrEmbeddingUnavailable.WithMessagef(
			"embedding provider returned %d vectors for %d texts", len(embeddings), len(hits))
	}

	reranked := make([]*store.ChunkHit, len(hits))
	for i, hit := range hits {
		rescored := *hit
		rescored.Score = cosine(queryEmbedding, embeddings[i])
		reranked[i] = &rescored
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})

	if k > 0 && len(reranked) > k {
		reranked = reranked[:k]
	}

	logger.Infow("reranked chunks", "candidates", len(hits), "returned", len(reranked))
	return reranked, nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
