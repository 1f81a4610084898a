package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process SearchStore used in tests and for local
// development without a Milvus deployment. Vector search is exact cosine
// similarity.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
	chunks    map[string]*Chunk // keyed by chunk ID
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]*Document),
		chunks:    make(map[string]*Chunk),
	}
}

func (s *MemoryStore) EnsureCollections(_ context.Context) error {
	return nil
}

func (s *MemoryStore) UpsertDocument(_ context.Context, doc *Document, chunks []*Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.chunks {
		if c.DocumentID == doc.ID {
			delete(s.chunks, id)
		}
	}

	cp := *doc
	s.documents[doc.ID] = &cp
	for _, chunk := range chunks {
		c := *chunk
		s.chunks[chunk.ID] = &c
	}
	return nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, documentID)
	for id, c := range s.chunks {
		if c.DocumentID == documentID {
			delete(s.chunks, id)
		}
	}
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
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

func (s *MemoryStore) SearchChunks(_ context.Context, embedding []float32, topK int) ([]*ChunkHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]*ChunkHit, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		if chunk.Embedding == nil {
			continue
		}
		hit := &ChunkHit{Chunk: *chunk, Score: cosineSimilarity(embedding, chunk.Embedding)}
		hits = append(hits, hit)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) KeywordSearchChunks(_ context.Context, query string, topK int) ([]*ChunkHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	hits := make([]*ChunkHit, 0)
	for _, chunk := range s.chunks {
		if strings.Contains(strings.ToLower(chunk.Content), needle) {
			hits = append(hits, &ChunkHit{Chunk: *chunk})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) KeywordSearchDocuments(_ context.Context, query string, topK int) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	docs := make([]*Document, 0)
	for _, doc := range s.documents {
		if strings.Contains(strings.ToLower(doc.Text), needle) {
			cp := *doc
			docs = append(docs, &cp)
		}
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

func (s *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Stats{
		Documents: int64(len(s.documents)),
		Chunks:    int64(len(s.chunks)),
	}, nil
}

func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}

var _ SearchStore = (*MemoryStore)(nil)
