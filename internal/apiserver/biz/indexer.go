package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/kart-io/ragops/internal/apiserver/store"
	"github.com/kart-io/ragops/internal/pkg/textutil"
	"github.com/kart-io/ragops/pkg/errors"
	"github.com/kart-io/ragops/pkg/llm"
)

// IngestDocument is one document submitted for indexing.
type IngestDocument struct {
	// ID is the caller-assigned document identifier.
	ID string `json:"id"`
	// Text is the full document text.
	Text string `json:"text"`
	// Metadata carries opaque key-value pairs preserved on every chunk.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IngestResult summarizes one ingestion batch.
type IngestResult struct {
	// DocumentsIndexed counts documents successfully upserted.
	DocumentsIndexed int `json:"documents_indexed"`
	// ChunksIndexed counts chunks written across all documents.
	ChunksIndexed int `json:"chunks_indexed"`
	// Failed lists document ids that could not be indexed.
	Failed []string `json:"failed,omitempty"`
}

// IndexerConfig configures document ingestion.
type IndexerConfig struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int
	// ChunkOverlap is how many characters consecutive chunks share.
	ChunkOverlap int
	// EmbeddingDim is the expected embedding dimension.
	EmbeddingDim int
	// Concurrency is how many documents are processed in parallel.
	Concurrency int
}

// Indexer chunks, embeds and upserts documents. Documents in one batch are
// processed concurrently through a worker pool; each document is embedded in
// a single batch call and replaces its prior chunks atomically.
type Indexer struct {
	store         store.SearchStore
	embedProvider llm.EmbeddingProvider
	config        *IndexerConfig
	pool          *ants.Pool
}

// NewIndexer creates an indexer instance with its worker pool.
func NewIndexer(searchStore store.SearchStore, embedProvider llm.EmbeddingProvider, config *IndexerConfig) *Indexer {
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		// Pool creation only fails on invalid size. Degrade to inline
		// processing.
		logger.Warnw("worker pool unavailable, ingesting inline", "error", err.Error())
		pool = nil
	}

	return &Indexer{
		store:         searchStore,
		embedProvider: embedProvider,
		config:        config,
		pool:          pool,
	}
}

// Ingest indexes a batch of documents. Documents that fail are reported in
// the result; any failure makes the whole call return ErrIngestFailed while
// successful documents stay indexed.
func (i *Indexer) Ingest(ctx context.Context, docs []*IngestDocument) (*IngestResult, error) {
	if len(docs) == 0 {
		return nil, errors.ErrInvalidRequest.WithMessage("no documents to ingest")
	}
	for _, doc := range docs {
		if doc.ID == "" || doc.Text == "" {
			return nil, errors.ErrInvalidRequest.WithMessage("every document needs an id and text")
		}
	}

	if err := i.store.EnsureCollections(ctx); err != nil {
		return nil, errors.ErrIngestFailed.WithCause(err)
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result IngestResult
		errs   []error
	)

	for _, doc := range docs {
		doc := doc
		task := func() {
			defer wg.Done()
			chunkCount, err := i.ingestOne(ctx, doc)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warnw("document ingestion failed", "document_id", doc.ID, "error", err.Error())
				result.Failed = append(result.Failed, doc.ID)
				errs = append(errs, err)
				return
			}
			result.DocumentsIndexed++
			result.ChunksIndexed += chunkCount
		}

		wg.Add(1)
		if i.pool != nil {
			if err := i.pool.Submit(task); err != nil {
				// Pool rejected the task, run it inline.
				task()
			}
		} else {
			task()
		}
	}
	wg.Wait()

	if len(errs) > 0 {
		return &result, errors.ErrIngestFailed.WithMessagef(
			"%d of %d documents failed", len(result.Failed), len(docs)).WithCause(errs[0])
	}

	logger.Infow("ingestion completed",
		"documents", result.DocumentsIndexed,
		"chunks", result.ChunksIndexed,
	)
	return &result, nil
}

// ingestOne chunks, embeds and upserts a single document.
func (i *Indexer) ingestOne(ctx context.Context, doc *IngestDocument) (int, error) {
	pieces := textutil.Chunk(doc.Text, i.config.ChunkSize, i.config.ChunkOverlap)
	if len(pieces) == 0 {
		return 0, errors.ErrInvalidRequest.WithMessagef("document %s produced no chunks", doc.ID)
	}

	embeddings, err := i.embedProvider.Embed(ctx, pieces)
	if err != nil {
		return 0, errors.ErrEmbeddingUnavailable.WithCause(err)
	}
	if len(embeddings) != len(pieces) {
		return 0, errors.ErrEmbeddingUnavailable.WithMessagef(
			"embedding provider returned %d vectors for %d chunks", len(embeddings), len(pieces))
	}
	for idx, embedding := range embeddings {
		if i.config.EmbeddingDim > 0 && len(embedding) != i.config.EmbeddingDim {
			return 0, errors.ErrEmbeddingUnavailable.WithMessagef(
				"chunk %d embedding has dimension %d, want %d", idx, len(embedding), i.config.EmbeddingDim)
		}
	}

	document := &store.Document{
		ID:         doc.ID,
		Text:       doc.Text,
		Metadata:   doc.Metadata,
		ChunkCount: len(pieces),
		IndexedAt:  time.Now(),
	}
	chunks := make([]*store.Chunk, len(pieces))
	for idx, content := range pieces {
		chunks[idx] = &store.Chunk{
			ID:          fmt.Sprintf("%s-chunk-%d", doc.ID, idx),
			DocumentID:  doc.ID,
			ChunkIndex:  idx,
			TotalChunks: len(pieces),
			Content:     content,
			Embedding:   embeddings[idx],
			Metadata:    doc.Metadata,
		}
	}

	if err := i.store.UpsertDocument(ctx, document, chunks); err != nil {
		return 0, errors.ErrIngestFailed.WithCause(err)
	}

	return len(chunks), nil
}

// Delete removes a document and all of its chunks.
func (i *Indexer) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return errors.ErrInvalidRequest.WithMessage("document id is required")
	}
	if err := i.store.DeleteDocument(ctx, documentID); err != nil {
		return errors.ErrIngestFailed.WithCause(err)
	}
	logger.Infow("document deleted", "document_id", documentID)
	return nil
}

// Close releases the worker pool.
func (i *Indexer) Close() {
	if i.pool != nil {
		i.pool.Release()
	}
}
