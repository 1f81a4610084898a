package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragops/internal/apiserver/store"
	"github.com/kart-io/ragops/pkg/cache"
	"github.com/kart-io/ragops/pkg/errors"
	"github.com/kart-io/ragops/pkg/llm"
)

const testDim = 3

// fakeEmbedder produces deterministic vectors and records every call.
type fakeEmbedder struct {
	mu      sync.Mutex
	err     error
	calls   int
	vectors map[string][]float32
}

func (f *fakeEmbedder) vec(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	v := make([]float32, testDim)
	for i, r := range text {
		v[i%testDim] += float32(r%13) + 1
	}
	return v
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vec(text)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec(text), nil
}

func (f *fakeEmbedder) Name() string { return "fake-embed" }

// fakeChat replies with a fixed answer and records the last prompt.
type fakeChat struct {
	mu            sync.Mutex
	err           error
	reply         string
	generateCalls int
	chatCalls     int
	lastPrompt    string
	lastSystem    string
	usage         *llm.TokenUsage
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeChat) Generate(_ context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	f.lastPrompt = prompt
	f.lastSystem = systemPrompt
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResponse{Content: f.reply, TokenUsage: f.usage}, nil
}

func (f *fakeChat) Name() string { return "fake-chat" }

// countingStore wraps a SearchStore and counts vector searches.
type countingStore struct {
	store.SearchStore
	mu          sync.Mutex
	searchCalls int
	searchErr   error
}

func (c *countingStore) SearchChunks(ctx context.Context, embedding []float32, topK int) ([]*store.ChunkHit, error) {
	c.mu.Lock()
	c.searchCalls++
	err := c.searchErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.SearchStore.SearchChunks(ctx, embedding, topK)
}

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("backend down")
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return fmt.Errorf("backend down")
}
func (brokenCache) Del(context.Context, string) error        { return fmt.Errorf("backend down") }
func (brokenCache) Clear(context.Context, string) (int, error) { return 0, fmt.Errorf("backend down") }
func (brokenCache) Count(context.Context, string) (int, error) { return 0, fmt.Errorf("backend down") }
func (brokenCache) Close() error                               { return nil }

func newTestService(searchStore store.SearchStore, embedder llm.EmbeddingProvider, chat llm.ChatProvider, backend cache.Cache, answerTTL time.Duration) Service {
	answerCache := NewAnswerCache(backend, &AnswerCacheConfig{
		Enabled:   true,
		TTL:       answerTTL,
		KeyPrefix: "rag:",
	})
	return NewService(searchStore, embedder, chat, answerCache, &ServiceConfig{
		RetrieverConfig: &RetrieverConfig{TopK: 5, EmbeddingDim: testDim},
		GeneratorConfig: &GeneratorConfig{
			SystemPrompt:    "answer from the context",
			MaxContextChars: 6000,
			MaxChunksPerDoc: 2,
		},
		IndexerConfig: &IndexerConfig{
			ChunkSize:    64,
			ChunkOverlap: 8,
			EmbeddingDim: testDim,
			Concurrency:  2,
		},
	})
}

func ingestFixture(t *testing.T, svc Service) {
	t.Helper()
	_, err := svc.Ingest(context.Background(), []*IngestDocument{
		{ID: "raft", Text: "Raft is a consensus algorithm designed to be understandable.", Metadata: map[string]string{"lang": "en"}},
		{ID: "paxos", Text: "Paxos is an older consensus protocol with a reputation for subtlety.", Metadata: map[string]string{"lang": "en"}},
	})
	require.NoError(t, err)
}

func TestQuerySecondCallServedFromCache(t *testing.T) {
	embedder := &fakeEmbedder{}
	chat := &fakeChat{reply: "raft elects a leader"}
	svc := newTestService(store.NewMemoryStore(), embedder, chat, cache.NewMemory(0), time.Minute)
	ingestFixture(t, svc)

	req := &QueryRequest{Query: "how does raft work", K: 3, UseEmbeddings: true}

	first, err := svc.Query(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Query(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, chat.generateCalls, "cache hit must not reach the chat provider")
}

func TestQueryRejectsInvalidRequests(t *testing.T) {
	embedder := &fakeEmbedder{}
	chat := &fakeChat{reply: "unused"}
	svc := newTestService(store.NewMemoryStore(), embedder, chat, cache.NewMemory(0), time.Minute)

	tests := []struct {
		name string
		req  *QueryRequest
	}{
		{"empty query", &QueryRequest{Query: "   ", K: 3}},
		{"zero k", &QueryRequest{Query: "question", K: 0}},
		{"negative k", &QueryRequest{Query: "question", K: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Query(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrInvalidRequest))
		})
	}

	assert.Equal(t, 0, embedder.calls, "validation must fail before any external call")
	assert.Equal(t, 0, chat.generateCalls)
}

func TestQueryZeroHitsStillAnswers(t *testing.T) {
	chat := &fakeChat{reply: "answered without context"}
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{}, chat, cache.NewMemory(0), time.Minute)

	result, err := svc.Query(context.Background(), &QueryRequest{Query: "anything", K: 5, UseEmbeddings: true})

	require.NoError(t, err)
	assert.Equal(t, "answered without context", result.Answer)
	assert.Empty(t, result.Chunks)
	assert.Equal(t, 0, result.TotalChunksFound)
}

func TestQueryEmbeddingFailureIsFailFast(t *testing.T) {
	embedder := &fakeEmbedder{err: fmt.Errorf("connection refused")}
	chat := &fakeChat{reply: "unused"}
	counting := &countingStore{SearchStore: store.NewMemoryStore()}
	svc := newTestService(counting, embedder, chat, cache.NewMemory(0), time.Minute)

	_, err := svc.Query(context.Background(), &QueryRequest{Query: "question", K: 3, UseEmbeddings: true})

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrEmbeddingUnavailable))
	assert.Equal(t, 0, counting.searchCalls, "no search after embedding failure")
	assert.Equal(t, 0, chat.generateCalls, "no generation after embedding failure")
}

func TestQueryRetrievalFailure(t *testing.T) {
	chat := &fakeChat{reply: "unused"}
	counting := &countingStore{
		SearchStore: store.NewMemoryStore(),
		searchErr:   fmt.Errorf("index offline"),
	}
	svc := newTestService(counting, &fakeEmbedder{}, chat, cache.NewMemory(0), time.Minute)

	_, err := svc.Query(context.Background(), &QueryRequest{Query: "question", K: 3, UseEmbeddings: true})

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrRetrievalUnavailable))
	assert.Equal(t, 0, chat.generateCalls, "no generation after retrieval failure")
}

func TestQueryGenerationFailureSurfaced(t *testing.T) {
	chat := &fakeChat{err: fmt.Errorf("model overloaded")}
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{}, chat, cache.NewMemory(0), time.Minute)
	ingestFixture(t, svc)

	_, err := svc.Query(context.Background(), &QueryRequest{Query: "question", K: 3, UseEmbeddings: true})

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrGenerationUnavailable))
}

func TestQueryCacheExpiryTriggersRecomputation(t *testing.T) {
	chat := &fakeChat{reply: "fresh answer"}
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{}, chat, cache.NewMemory(0), 50*time.Millisecond)
	ingestFixture(t, svc)

	req := &QueryRequest{Query: "how does raft work", K: 3, UseEmbeddings: true}

	_, err := svc.Query(context.Background(), req)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	result, err := svc.Query(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, 2, chat.generateCalls, "expired entry must trigger full recomputation")
}

func TestQuerySurvivesBrokenCache(t *testing.T) {
	chat := &fakeChat{reply: "answer despite cache outage"}
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{}, chat, brokenCache{}, time.Minute)
	ingestFixture(t, svc)

	result, err := svc.Query(context.Background(), &QueryRequest{Query: "question", K: 3, UseEmbeddings: true})

	require.NoError(t, err)
	assert.Equal(t, "answer despite cache outage", result.Answer)
	assert.False(t, result.Cached)
}

func TestQueryKeywordMethod(t *testing.T) {
	chat := &fakeChat{reply: "keyword answer"}
	embedder := &fakeEmbedder{}
	svc := newTestService(store.NewMemoryStore(), embedder, chat, cache.NewMemory(0), time.Minute)
	ingestFixture(t, svc)
	embedCallsAfterIngest := embedder.calls

	result, err := svc.Query(context.Background(), &QueryRequest{Query: "consensus", K: 3, UseEmbeddings: false})

	require.NoError(t, err)
	assert.Equal(t, SearchMethodKeyword, result.SearchMethod)
	assert.Equal(t, embedCallsAfterIngest, embedder.calls, "keyword path must not embed the query")
}

func TestQueryChunkPreviewsTruncated(t *testing.T) {
	longText := ""
	for i := 0; i < 30; i++ {
		longText += "This sentence pads the document well past the preview limit. "
	}
	chat := &fakeChat{reply: "ok"}
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{}, chat, cache.NewMemory(0), time.Minute)
	_, err := svc.Ingest(context.Background(), []*IngestDocument{{ID: "long", Text: longText}})
	require.NoError(t, err)

	result, err := svc.Query(context.Background(), &QueryRequest{Query: "pads the document", K: 2, UseEmbeddings: true})
	require.NoError(t, err)
	for _, chunk := range result.Chunks {
		assert.LessOrEqual(t, len(chunk.Content), chunkPreviewChars+len("..."))
	}
}

func TestSearchChunksNoGeneration(t *testing.T) {
	chat := &fakeChat{reply: "unused"}
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{}, chat, cache.NewMemory(0), time.Minute)
	ingestFixture(t, svc)

	result, err := svc.SearchChunks(context.Background(), &QueryRequest{Query: "consensus algorithm", K: 2, UseEmbeddings: true})

	require.NoError(t, err)
	assert.Equal(t, SearchMethodVector, result.SearchMethod)
	assert.NotEmpty(t, result.Chunks)
	assert.Equal(t, 0, chat.generateCalls)
}

func TestSearchDocumentsKeyword(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{}, &fakeChat{reply: "x"}, cache.NewMemory(0), time.Minute)
	ingestFixture(t, svc)

	result, err := svc.SearchDocuments(context.Background(), "reputation for subtlety", 5)

	require.NoError(t, err)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "paxos", result.Documents[0].ID)
}

func TestSearchRerank(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{}, &fakeChat{reply: "x"}, cache.NewMemory(0), time.Minute)
	ingestFixture(t, svc)

	result, err := svc.SearchRerank(context.Background(), &QueryRequest{Query: "consensus", K: 1, UseEmbeddings: true})

	require.NoError(t, err)
	assert.Equal(t, SearchMethodRerank, result.SearchMethod)
	assert.LessOrEqual(t, len(result.Chunks), 1)
}

func TestDeleteDocumentCascades(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{}, &fakeChat{reply: "x"}, cache.NewMemory(0), time.Minute)
	ingestFixture(t, svc)

	require.NoError(t, svc.DeleteDocument(context.Background(), "raft"))

	result, err := svc.SearchChunks(context.Background(), &QueryRequest{Query: "understandable", K: 5, UseEmbeddings: false})
	require.NoError(t, err)
	assert.Empty(t, result.Chunks)
}

func TestChatPassthrough(t *testing.T) {
	chat := &fakeChat{reply: "hello there"}
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{}, chat, cache.NewMemory(0), time.Minute)

	reply, err := svc.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)
	assert.Equal(t, 1, chat.chatCalls)

	_, err = svc.Chat(context.Background(), nil)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidRequest))
}

func TestStatsShape(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{}, &fakeChat{reply: "x"}, cache.NewMemory(0), time.Minute)
	ingestFixture(t, svc)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats["documents"])
	assert.Equal(t, "fake-embed", stats["embedding_provider"])
	assert.Equal(t, "fake-chat", stats["chat_provider"])
	assert.Contains(t, stats, "cache")
	assert.Contains(t, stats, "metrics")
}

func TestProbe(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), &fakeEmbedder{}, &fakeChat{reply: "x"}, cache.NewMemory(0), time.Minute)
	assert.NoError(t, svc.Probe(context.Background()))

	broken := newTestService(store.NewMemoryStore(), &fakeEmbedder{err: fmt.Errorf("down")}, &fakeChat{reply: "x"}, cache.NewMemory(0), time.Minute)
	err := broken.Probe(context.Background())
	assert.True(t, stderrors.Is(err, errors.ErrEmbeddingUnavailable))
}
