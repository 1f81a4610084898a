package biz

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragops/internal/apiserver/store"
)

func hitOfSize(id, docID string, size int, score float32) *store.ChunkHit {
	hit := &store.ChunkHit{Score: score}
	hit.ID = id
	hit.DocumentID = docID
	hit.Content = strings.Repeat("x", size)
	return hit
}

func TestAssembleContextLengthBudget(t *testing.T) {
	hits := []*store.ChunkHit{
		hitOfSize("c0", "d0", 400, 0.9),
		hitOfSize("c1", "d1", 400, 0.8),
		hitOfSize("c2", "d2", 400, 0.7),
	}

	included, contextStr := assembleContext(hits, 0, 900)

	require.Len(t, included, 2)
	assert.Equal(t, "c0", included[0].ID)
	assert.Equal(t, "c1", included[1].ID)
	assert.LessOrEqual(t, len(contextStr), 900)
}

func TestAssembleContextNeverSplitsChunks(t *testing.T) {
	hits := []*store.ChunkHit{
		hitOfSize("c0", "d0", 500, 0.9),
		hitOfSize("c1", "d1", 500, 0.8),
	}

	included, contextStr := assembleContext(hits, 0, 600)

	require.Len(t, included, 1)
	assert.Equal(t, 500, len(contextStr))
}

func TestAssembleContextPerDocumentCap(t *testing.T) {
	hits := []*store.ChunkHit{
		hitOfSize("a0", "docA", 10, 0.9),
		hitOfSize("a1", "docA", 10, 0.8),
		hitOfSize("a2", "docA", 10, 0.7),
		hitOfSize("b0", "docB", 10, 0.6),
	}

	included, _ := assembleContext(hits, 2, 0)

	require.Len(t, included, 3)
	assert.Equal(t, "a0", included[0].ID)
	assert.Equal(t, "a1", included[1].ID)
	assert.Equal(t, "b0", included[2].ID)
}

func TestAssembleContextEmpty(t *testing.T) {
	included, contextStr := assembleContext(nil, 2, 6000)
	assert.Empty(t, included)
	assert.Empty(t, contextStr)
}

func TestGenerateAnswerWithoutContext(t *testing.T) {
	chat := &fakeChat{reply: "model-alone answer"}
	g := NewGenerator(chat, &GeneratorConfig{
		SystemPrompt:    "be helpful",
		MaxContextChars: 6000,
		MaxChunksPerDoc: 2,
	})

	resp, included, err := g.GenerateAnswer(context.Background(), "what is raft", nil)

	require.NoError(t, err)
	assert.Equal(t, "model-alone answer", resp.Content)
	assert.Empty(t, included)
	assert.Equal(t, "Question: what is raft", chat.lastPrompt)
	assert.Equal(t, "be helpful", chat.lastSystem)
}

func TestGenerateAnswerEmbedsContextInPrompt(t *testing.T) {
	chat := &fakeChat{reply: "grounded answer"}
	g := NewGenerator(chat, &GeneratorConfig{MaxContextChars: 6000, MaxChunksPerDoc: 2})

	hits := []*store.ChunkHit{hitOfSize("c0", "d0", 20, 0.9)}
	_, included, err := g.GenerateAnswer(context.Background(), "question", hits)

	require.NoError(t, err)
	require.Len(t, included, 1)
	assert.Contains(t, chat.lastPrompt, "Context:")
	assert.Contains(t, chat.lastPrompt, hits[0].Content)
	assert.Contains(t, chat.lastPrompt, "Question: question")
}
