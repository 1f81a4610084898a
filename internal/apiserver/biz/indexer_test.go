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

func newTestIndexer(searchStore store.SearchStore, embedder *fakeEmbedder) *Indexer {
	return NewIndexer(searchStore, embedder, &IndexerConfig{
		ChunkSize:    64,
		ChunkOverlap: 8,
		EmbeddingDim: testDim,
		Concurrency:  2,
	})
}

func TestIngestAssignsChunkIDs(t *testing.T) {
	memStore := store.NewMemoryStore()
	indexer := newTestIndexer(memStore, &fakeEmbedder{})
	defer indexer.Close()

	text := "First sentence about storage. Second sentence about indexing. Third sentence about search quality here."
	result, err := indexer.Ingest(context.Background(), []*IngestDocument{{ID: "doc1", Text: text}})

	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsIndexed)
	require.Greater(t, result.ChunksIndexed, 1)

	hits, err := memStore.KeywordSearchChunks(context.Background(), "storage", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "doc1-chunk-0", hits[0].ID)
	assert.Equal(t, "doc1", hits[0].DocumentID)
	assert.Equal(t, result.ChunksIndexed, hits[0].TotalChunks)
}

func TestIngestValidation(t *testing.T) {
	indexer := newTestIndexer(store.NewMemoryStore(), &fakeEmbedder{})
	defer indexer.Close()

	tests := []struct {
		name string
		docs []*IngestDocument
	}{
		{"empty batch", nil},
		{"missing id", []*IngestDocument{{Text: "some text"}}},
		{"missing text", []*IngestDocument{{ID: "doc1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := indexer.Ingest(context.Background(), tt.docs)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrInvalidRequest))
		})
	}
}

func TestIngestEmbeddingFailure(t *testing.T) {
	indexer := newTestIndexer(store.NewMemoryStore(), &fakeEmbedder{err: fmt.Errorf("provider down")})
	defer indexer.Close()

	result, err := indexer.Ingest(context.Background(), []*IngestDocument{{ID: "doc1", Text: "some text"}})

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrIngestFailed))
	require.NotNil(t, result)
	assert.Equal(t, []string{"doc1"}, result.Failed)
	assert.Equal(t, 0, result.DocumentsIndexed)
}

func TestIngestPartialFailureKeepsSuccesses(t *testing.T) {
	memStore := store.NewMemoryStore()
	embedder := &fakeEmbedder{}
	indexer := NewIndexer(memStore, embedder, &IndexerConfig{
		ChunkSize:    64,
		ChunkOverlap: 8,
		EmbeddingDim: testDim,
		// Serial so the failure injection below is deterministic.
		Concurrency: 1,
	})
	defer indexer.Close()

	_, err := indexer.Ingest(context.Background(), []*IngestDocument{{ID: "good", Text: "healthy document text"}})
	require.NoError(t, err)

	embedder.err = fmt.Errorf("provider down")
	result, err := indexer.Ingest(context.Background(), []*IngestDocument{{ID: "bad", Text: "doomed document text"}})
	require.Error(t, err)
	assert.Equal(t, []string{"bad"}, result.Failed)

	stats, err := memStore.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Documents, "earlier successes must survive")
}

func TestIngestReplacesPriorChunks(t *testing.T) {
	memStore := store.NewMemoryStore()
	indexer := newTestIndexer(memStore, &fakeEmbedder{})
	defer indexer.Close()

	_, err := indexer.Ingest(context.Background(), []*IngestDocument{{ID: "doc1", Text: "Original content about alpha. More original content about beta here to force chunks."}})
	require.NoError(t, err)

	_, err = indexer.Ingest(context.Background(), []*IngestDocument{{ID: "doc1", Text: "Replacement content."}})
	require.NoError(t, err)

	stats, err := memStore.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Documents)
	assert.Equal(t, int64(1), stats.Chunks)

	hits, err := memStore.KeywordSearchChunks(context.Background(), "alpha", 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "prior chunks must be replaced atomically")
}

func TestDeleteRequiresID(t *testing.T) {
	indexer := newTestIndexer(store.NewMemoryStore(), &fakeEmbedder{})
	defer indexer.Close()

	err := indexer.Delete(context.Background(), "")
	assert.True(t, stderrors.Is(err, errors.ErrInvalidRequest))
}
