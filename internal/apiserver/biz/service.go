package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/ragops/internal/apiserver/metrics"
	"github.com/kart-io/ragops/internal/apiserver/store"
	"github.com/kart-io/ragops/internal/pkg/textutil"
	"github.com/kart-io/ragops/pkg/errors"
	"github.com/kart-io/ragops/pkg/llm"
)

// chunkPreviewChars bounds chunk content in API responses.
const chunkPreviewChars = 300

// SearchMethod values reported in results.
const (
	SearchMethodVector  = "vector"
	SearchMethodKeyword = "keyword"
	SearchMethodRerank  = "rerank"
)

// QueryRequest is a RAG query. Only these fields participate in the cache
// fingerprint.
type QueryRequest struct {
	// Query is the question text.
	Query string `json:"query"`
	// K is the number of chunks to retrieve. Must be positive.
	K int `json:"k"`
	// UseEmbeddings selects vector search; false falls back to keyword
	// search.
	UseEmbeddings bool `json:"use_embeddings"`
	// Filters restricts hits to chunks whose metadata contains every pair.
	Filters map[string]string `json:"filters,omitempty"`
}

// ChunkSummary is one supporting chunk in a response. Content is truncated
// to a preview.
type ChunkSummary struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Content    string            `json:"content"`
	Score      float32           `json:"score"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// QueryResult is the outcome of a RAG query.
type QueryResult struct {
	// Answer is the generated answer text.
	Answer string `json:"answer"`
	// Chunks lists the chunks that backed the answer, most relevant first.
	Chunks []ChunkSummary `json:"chunks"`
	// TotalChunksFound is how many chunks retrieval returned before context
	// assembly.
	TotalChunksFound int `json:"total_chunks_found"`
	// Cached reports whether the answer was served from cache.
	Cached bool `json:"cached"`
	// SearchMethod names the retrieval strategy used.
	SearchMethod string `json:"search_method"`
}

// ChunkSearchResult is a retrieval-only response.
type ChunkSearchResult struct {
	Chunks       []ChunkSummary `json:"chunks"`
	Total        int            `json:"total"`
	SearchMethod string         `json:"search_method"`
}

// DocumentSummary is one document in a direct search response.
type DocumentSummary struct {
	ID         string            `json:"id"`
	Preview    string            `json:"preview"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	ChunkCount int               `json:"chunk_count"`
	IndexedAt  time.Time         `json:"indexed_at"`
}

// DocumentSearchResult is a keyword search over whole documents.
type DocumentSearchResult struct {
	Documents []DocumentSummary `json:"documents"`
	Total     int               `json:"total"`
}

// Service is the business API of the apiserver.
type Service interface {
	// Query answers a question with retrieved context.
	Query(ctx context.Context, req *QueryRequest) (*QueryResult, error)
	// SearchChunks retrieves chunks without generation.
	SearchChunks(ctx context.Context, req *QueryRequest) (*ChunkSearchResult, error)
	// SearchDocuments runs a keyword search over whole documents.
	SearchDocuments(ctx context.Context, query string, k int) (*DocumentSearchResult, error)
	// SearchRerank retrieves chunks and re-scores them by exact cosine
	// similarity.
	SearchRerank(ctx context.Context, req *QueryRequest) (*ChunkSearchResult, error)
	// Ingest indexes a batch of documents.
	Ingest(ctx context.Context, docs []*IngestDocument) (*IngestResult, error)
	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, documentID string) error
	// Chat forwards a conversation to the chat provider unchanged.
	Chat(ctx context.Context, messages []llm.Message) (string, error)
	// Stats reports index counts, cache state and pipeline metrics.
	Stats(ctx context.Context) (map[string]any, error)
	// Probe verifies the embedding provider end to end.
	Probe(ctx context.Context) error
}

// ServiceConfig wires the component configurations together.
type ServiceConfig struct {
	RetrieverConfig   *RetrieverConfig
	GeneratorConfig   *GeneratorConfig
	IndexerConfig     *IndexerConfig
	AnswerCacheConfig *AnswerCacheConfig
}

// ragService composes the indexer, retriever, reranker and generator into
// the full query pipeline.
type ragService struct {
	indexer       *Indexer
	retriever     *Retriever
	generator     *Generator
	reranker      *Reranker
	cache         *AnswerCache
	store         store.SearchStore
	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	metrics       *metrics.Metrics
}

// NewService creates the RAG service.
func NewService(
	searchStore store.SearchStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	answerCache *AnswerCache,
	config *ServiceConfig,
) Service {
	if answerCache == nil {
		answerCache = NewAnswerCache(nil, nil)
	}
	return &ragService{
		indexer:       NewIndexer(searchStore, embedProvider, config.IndexerConfig),
		retriever:     NewRetriever(searchStore, embedProvider, config.RetrieverConfig),
		generator:     NewGenerator(chatProvider, config.GeneratorConfig),
		reranker:      NewReranker(embedProvider),
		cache:         answerCache,
		store:         searchStore,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		metrics:       metrics.Get(),
	}
}

// validateQuery rejects malformed requests before any external call.
func validateQuery(req *QueryRequest) error {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return errors.ErrInvalidRequest.WithMessage("query text is required")
	}
	if req.K <= 0 {
		return errors.ErrInvalidRequest.WithMessage("k must be positive")
	}
	return nil
}

// Query runs the full pipeline: cache check, retrieval, bounded context
// assembly, generation, cache write. A cache hit short-circuits everything
// downstream.
func (s *ragService) Query(ctx context.Context, req *QueryRequest) (*QueryResult, error) {
	if err := validateQuery(req); err != nil {
		s.metrics.RecordQuery(false, err)
		return nil, err
	}

	if cached := s.cache.Get(ctx, req); cached != nil {
		cached.Cached = true
		s.metrics.RecordQuery(true, nil)
		return cached, nil
	}

	method := SearchMethodVector
	retrievalStart := time.Now()
	var (
		hits []*store.ChunkHit
		err  error
	)
	if req.UseEmbeddings {
		hits, err = s.retriever.Retrieve(ctx, req.Query, req.K, req.Filters)
	} else {
		method = SearchMethodKeyword
		hits, err = s.retriever.KeywordChunks(ctx, req.Query, req.K, req.Filters)
	}
	s.metrics.RecordRetrieval(time.Since(retrievalStart), err)
	if err != nil {
		s.metrics.RecordQuery(false, err)
		return nil, err
	}

	llmStart := time.Now()
	resp, included, err := s.generator.GenerateAnswer(ctx, req.Query, hits)
	var promptTokens, completionTokens int
	if resp != nil && resp.TokenUsage != nil {
		promptTokens = resp.TokenUsage.PromptTokens
		completionTokens = resp.TokenUsage.CompletionTokens
	}
	s.metrics.RecordLLMCall(time.Since(llmStart), promptTokens, completionTokens, err)
	if err != nil {
		s.metrics.RecordQuery(false, err)
		return nil, err
	}

	result := &QueryResult{
		Answer:           resp.Content,
		Chunks:           summarizeHits(included),
		TotalChunksFound: len(hits),
		Cached:           false,
		SearchMethod:     method,
	}

	s.cache.Set(ctx, req, result)
	s.metrics.RecordQuery(false, nil)
	return result, nil
}

// SearchChunks retrieves without generating.
func (s *ragService) SearchChunks(ctx context.Context, req *QueryRequest) (*ChunkSearchResult, error) {
	if err := validateQuery(req); err != nil {
		return nil, err
	}

	method := SearchMethodVector
	start := time.Now()
	var (
		hits []*store.ChunkHit
		err  error
	)
	if req.UseEmbeddings {
		hits, err = s.retriever.Retrieve(ctx, req.Query, req.K, req.Filters)
	} else {
		method = SearchMethodKeyword
		hits, err = s.retriever.KeywordChunks(ctx, req.Query, req.K, req.Filters)
	}
	s.metrics.RecordRetrieval(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	return &ChunkSearchResult{
		Chunks:       summarizeHits(hits),
		Total:        len(hits),
		SearchMethod: method,
	}, nil
}

// SearchDocuments runs a keyword search over the documents collection.
func (s *ragService) SearchDocuments(ctx context.Context, query string, k int) (*DocumentSearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.ErrInvalidRequest.WithMessage("query text is required")
	}
	if k <= 0 {
		return nil, errors.ErrInvalidRequest.WithMessage("k must be positive")
	}

	start := time.Now()
	docs, err := s.retriever.KeywordDocuments(ctx, query, k)
	s.metrics.RecordRetrieval(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	summaries := make([]DocumentSummary, len(docs))
	for i, doc := range docs {
		summaries[i] = DocumentSummary{
			ID:         doc.ID,
			Preview:    textutil.Truncate(doc.Text, chunkPreviewChars),
			Metadata:   doc.Metadata,
			ChunkCount: doc.ChunkCount,
			IndexedAt:  doc.IndexedAt,
		}
	}
	return &DocumentSearchResult{Documents: summaries, Total: len(summaries)}, nil
}

// SearchRerank retrieves a wider candidate set and re-scores it by exact
// cosine similarity against the query.
func (s *ragService) SearchRerank(ctx context.Context, req *QueryRequest) (*ChunkSearchResult, error) {
	if err := validateQuery(req); err != nil {
		return nil, err
	}

	// Over-fetch so reranking has candidates to reorder.
	candidateK := req.K * 3

	start := time.Now()
	hits, err := s.retriever.Retrieve(ctx, req.Query, candidateK, req.Filters)
	s.metrics.RecordRetrieval(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	reranked, err := s.reranker.Rerank(ctx, req.Query, hits, req.K)
	if err != nil {
		return nil, err
	}

	return &ChunkSearchResult{
		Chunks:       summarizeHits(reranked),
		Total:        len(reranked),
		SearchMethod: SearchMethodRerank,
	}, nil
}

// Ingest indexes a batch of documents.
func (s *ragService) Ingest(ctx context.Context, docs []*IngestDocument) (*IngestResult, error) {
	result, err := s.indexer.Ingest(ctx, docs)
	if result != nil {
		s.metrics.RecordIngestion(result.DocumentsIndexed, result.ChunksIndexed, err)
	} else {
		s.metrics.RecordIngestion(0, 0, err)
	}
	return result, err
}

// DeleteDocument removes a document and cascades to its chunks.
func (s *ragService) DeleteDocument(ctx context.Context, documentID string) error {
	return s.indexer.Delete(ctx, documentID)
}

// Chat forwards a conversation to the chat provider.
func (s *ragService) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.ErrInvalidRequest.WithMessage("messages are required")
	}

	start := time.Now()
	reply, err := s.chatProvider.Chat(ctx, messages)
	s.metrics.RecordLLMCall(time.Since(start), 0, 0, err)
	if err != nil {
		return "", errors.ErrGenerationUnavailable.WithCause(err)
	}
	return reply, nil
}

// Stats reports index counts, provider names, cache state and metrics.
func (s *ragService) Stats(ctx context.Context) (map[string]any, error) {
	indexStats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, errors.ErrRetrievalUnavailable.WithCause(err)
	}

	return map[string]any{
		"documents":          indexStats.Documents,
		"chunks":             indexStats.Chunks,
		"embedding_provider": s.embedProvider.Name(),
		"chat_provider":      s.chatProvider.Name(),
		"cache":              s.cache.Stats(ctx),
		"metrics":            s.metrics.Stats(),
	}, nil
}

// Probe embeds a fixed string and checks the vector dimension, proving the
// embedding provider is reachable and sane.
func (s *ragService) Probe(ctx context.Context) error {
	_, err := s.retriever.EmbedQuery(ctx, "readiness probe")
	return err
}

// summarizeHits converts chunk hits into response summaries with truncated
// content previews.
func summarizeHits(hits []*store.ChunkHit) []ChunkSummary {
	summaries := make([]ChunkSummary, len(hits))
	for i, hit := range hits {
		summaries[i] = ChunkSummary{
			ID:         hit.ID,
			DocumentID: hit.DocumentID,
			Content:    textutil.Truncate(hit.Content, chunkPreviewChars),
			Score:      hit.Score,
			Metadata:   hit.Metadata,
		}
	}
	return summaries
}

var _ Service = (*ragService)(nil)
