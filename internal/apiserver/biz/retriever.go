package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragops/internal/apiserver/store"
	"github.com/kart-io/ragops/pkg/errors"
	"github.com/kart-io/ragops/pkg/llm"
)

// RetrieverConfig configures chunk retrieval.
type RetrieverConfig struct {
	// TopK is the default number of chunks to retrieve.
	TopK int
	// EmbeddingDim is the expected embedding dimension. Vectors of any other
	// length are rejected as malformed provider output.
	EmbeddingDim int
}

// Retriever turns a query into ranked chunk hits: embed the query, search
// the chunks collection, then apply metadata filters. Keyword variants skip
// the embedding step.
type Retriever struct {
	store         store.SearchStore
	embedProvider llm.EmbeddingProvider
	config        *RetrieverConfig
}

// NewRetriever creates a retriever instance.
func NewRetriever(searchStore store.SearchStore, embedProvider llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	return &Retriever{
		store:         searchStore,
		embedProvider: embedProvider,
		config:        config,
	}
}

// EmbedQuery embeds one query string and validates the vector dimension.
func (r *Retriever) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embedding, err := r.embedProvider.EmbedSingle(ctx, query)
	if err != nil {
		return nil, errors.ErrEmbeddingUnavailable.WithCause(err)
	}
	if r.config.EmbeddingDim > 0 && len(embedding) != r.config.EmbeddingDim {
		return nil, errors.ErrEmbeddingUnavailable.WithMessagef(
			"embedding provider returned dimension %d, want %d", len(embedding), r.config.EmbeddingDim)
	}
	return embedding, nil
}

// Retrieve runs a vector similarity search for the query.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filters map[string]string) ([]*store.ChunkHit, error) {
	embedding, err := r.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := r.store.SearchChunks(ctx, embedding, k)
	if err != nil {
		logger.Warnw("vector search failed", "error", err.Error(), "k", k)
		return nil, errors.ErrRetrievalUnavailable.WithCause(err)
	}

	return filterHits(hits, filters), nil
}

// KeywordChunks runs a keyword-only search over the chunks collection.
func (r *Retriever) KeywordChunks(ctx context.Context, query string, k int, filters map[string]string) ([]*store.ChunkHit, error) {
	hits, err := r.store.KeywordSearchChunks(ctx, query, k)
	if err != nil {
		logger.Warnw("keyword chunk search failed", "error", err.Error(), "k", k)
		return nil, errors.ErrRetrievalUnavailable.WithCause(err)
	}
	return filterHits(hits, filters), nil
}

// KeywordDocuments runs a keyword search over the documents collection.
func (r *Retriever) KeywordDocuments(ctx context.Context, query string, k int) ([]*store.Document, error) {
	docs, err := r.store.KeywordSearchDocuments(ctx, query, k)
	if err != nil {
		logger.Warnw("keyword document search failed", "error", err.Error(), "k", k)
		return nil, errors.ErrRetrievalUnavailable.WithCause(err)
	}
	return docs, nil
}

// filterHits keeps hits whose metadata contains every filter pair. Filtering
// happens after retrieval so every store backend behaves identically.
func filterHits(hits []*store.ChunkHit, filters map[string]string) []*store.ChunkHit {
	if len(filters) == 0 {
		return hits
	}

	filtered := make([]*store.ChunkHit, 0, len(hits))
	for _, hit := range hits {
		if matchesFilters(hit.Metadata, filters) {
			filtered = append(filtered, hit)
		}
	}
	return filtered
}

func matchesFilters(metadata, filters map[string]string) bool {
	for k, want := range filters {
		if metadata[k] != want {
			return false
		}
	}
	return true
}
