// Package store defines the search store boundary: a documents collection
// and a chunks collection with vector and keyword lookup.
package store

import (
	"context"
	"time"
)

// Document is a source document as indexed.
type Document struct {
	// ID is the caller-assigned document identifier.
	ID string `json:"id"`
	// Text is the full document text.
	Text string `json:"text"`
	// Metadata carries arbitrary caller-supplied keys, preserved verbatim.
	Metadata map[string]string `json:"metadata,omitempty"`
	// ChunkCount is how many chunks the document was split into.
	ChunkCount int `json:"chunk_count"`
	// IndexedAt is when the document was last ingested.
	IndexedAt time.Time `json:"indexed_at"`
}

// Chunk is one retrievable window of a document.
type Chunk struct {
	// ID is derived from the document: "{documentID}-chunk-{index}".
	ID string `json:"id"`
	// DocumentID is the owning document.
	DocumentID string `json:"document_id"`
	// ChunkIndex is the zero-based position within the document.
	ChunkIndex int `json:"chunk_index"`
	// TotalChunks is how many chunks the document has.
	TotalChunks int `json:"total_chunks"`
	// Content is the chunk text.
	Content string `json:"content"`
	// Embedding is the chunk vector; nil on read paths that don't need it.
	Embedding []float32 `json:"-"`
	// Metadata is the owning document's metadata.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ChunkHit is a chunk with its retrieval relevance.
type ChunkHit struct {
	Chunk
	// Score is the similarity score, higher is more relevant.
	Score float32 `json:"score"`
}

// Stats reports collection sizes.
type Stats struct {
	Documents int64 `json:"documents"`
	Chunks    int64 `json:"chunks"`
}

// SearchStore is the persistence boundary for documents and chunks.
//
// UpsertDocument replaces any prior version of the document atomically from
// the caller's perspective: previous chunks never mix with new ones.
type SearchStore interface {
	// EnsureCollections creates the documents and chunks collections when
	// missing.
	EnsureCollections(ctx context.Context) error

	// UpsertDocument writes the document and its chunks, removing all chunks
	// of any earlier ingestion of the same document ID first.
	UpsertDocument(ctx context.Context, doc *Document, chunks []*Chunk) error

	// DeleteDocument removes a document and cascades to its chunks.
	DeleteDocument(ctx context.Context, documentID string) error

	// SearchChunks runs a vector similarity search over the chunks
	// collection. An empty result is valid.
	SearchChunks(ctx context.Context, embedding []float32, topK int) ([]*ChunkHit, error)

	// KeywordSearchChunks runs a text match over the chunks collection.
	KeywordSearchChunks(ctx context.Context, query string, topK int) ([]*ChunkHit, error)

	// KeywordSearchDocuments runs a text match over the documents collection.
	KeywordSearchDocuments(ctx context.Context, query string, topK int) ([]*Document, error)

	// Stats returns collection row counts.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
