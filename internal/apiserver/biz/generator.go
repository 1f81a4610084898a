package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragops/internal/apiserver/store"
	"github.com/kart-io/ragops/pkg/errors"
	"github.com/kart-io/ragops/pkg/llm"
)

// GeneratorConfig configures answer generation.
type GeneratorConfig struct {
	// SystemPrompt is the system prompt sent with every generation.
	SystemPrompt string
	// MaxContextChars bounds the assembled context string.
	MaxContextChars int
	// MaxChunksPerDoc caps how many chunks one document contributes.
	MaxChunksPerDoc int
}

// Generator assembles a bounded context from retrieved chunks and asks the
// chat provider for an answer.
type Generator struct {
	chatProvider llm.ChatProvider
	config       *GeneratorConfig
}

// NewGenerator creates a generator instance.
func NewGenerator(chatProvider llm.ChatProvider, config *GeneratorConfig) *Generator {
	return &Generator{
		chatProvider: chatProvider,
		config:       config,
	}
}

// assembleContext selects chunks for the prompt. Hits arrive in descending
// relevance order; each document contributes at most maxPerDoc chunks, and
// the first chunk that would push the context past maxChars cuts the
// selection off. Included chunks are never split.
func assembleContext(hits []*store.ChunkHit, maxPerDoc, maxChars int) ([]*store.ChunkHit, string) {
	var (
		included []*store.ChunkHit
		sb       strings.Builder
		perDoc   = make(map[string]int)
	)

	for _, hit := range hits {
		if maxPerDoc > 0 && perDoc[hit.DocumentID] >= maxPerDoc {
			continue
		}

		addition := len(hit.Content)
		if sb.Len() > 0 {
			addition += len("\n\n")
		}
		if maxChars > 0 && sb.Len()+addition > maxChars {
			break
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(hit.Content)
		perDoc[hit.DocumentID]++
		included = append(included, hit)
	}

	return included, sb.String()
}

// GenerateAnswer produces an answer for the question from the retrieved
// hits. It returns the model response together with the chunks that made it
// into the context. Zero hits still produce a model-alone answer.
func (g *Generator) GenerateAnswer(ctx context.Context, question string, hits []*store.ChunkHit) (*llm.GenerateResponse, []*store.ChunkHit, error) {
	if ctx.Err() != nil {
		return nil, nil, errors.ErrGenerationUnavailable.WithCause(ctx.Err())
	}

	included, contextStr := assembleContext(hits, g.config.MaxChunksPerDoc, g.config.MaxContextChars)

	var prompt string
	if contextStr == "" {
		prompt = fmt.Sprintf("Question: %s", question)
	} else {
		prompt = fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextStr, question)
	}

	resp, err := g.chatProvider.Generate(ctx, prompt, g.config.SystemPrompt)
	if err != nil {
		logger.Errorw("answer generation failed", "error", err.Error())
		return nil, nil, errors.ErrGenerationUnavailable.WithCause(err)
	}

	if resp.TokenUsage != nil {
		logger.Infow("answer generated",
			"answer_length", len(resp.Content),
			"context_chunks", len(included),
			"total_tokens", resp.TokenUsage.TotalTokens,
		)
	} else {
		logger.Infow("answer generated",
			"answer_length", len(resp.Content),
			"context_chunks", len(included),
		)
	}

	return resp, included, nil
}
