package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name string
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (f *fakeProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (f *fakeProvider) Chat(_ context.Context, _ []Message) (string, error) {
	return "reply", nil
}

func (f *fakeProvider) Generate(_ context.Context, _ string, _ string) (*GenerateResponse, error) {
	return &GenerateResponse{Content: "generated"}, nil
}

func (f *fakeProvider) Name() string {
	return f.name
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("no-such-provider", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestRegisterAndNewProvider(t *testing.T) {
	RegisterProvider("test-full", func(_ map[string]any) (Provider, error) {
		return &fakeProvider{name: "test-full"}, nil
	})

	p, err := NewProvider("test-full", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-full", p.Name())

	// Full providers back embedding and chat lookups too.
	ep, err := NewEmbeddingProvider("test-full", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-full", ep.Name())

	cp, err := NewChatProvider("test-full", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-full", cp.Name())
}

func TestDedicatedFactoryWins(t *testing.T) {
	RegisterProvider("test-split", func(_ map[string]any) (Provider, error) {
		return &fakeProvider{name: "full"}, nil
	})
	RegisterEmbeddingProvider("test-split", func(_ map[string]any) (EmbeddingProvider, error) {
		return &fakeProvider{name: "embed-only"}, nil
	})
	RegisterChatProvider("test-split", func(_ map[string]any) (ChatProvider, error) {
		return &fakeProvider{name: "chat-only"}, nil
	})

	ep, err := NewEmbeddingProvider("test-split", nil)
	require.NoError(t, err)
	assert.Equal(t, "embed-only", ep.Name())

	cp, err := NewChatProvider("test-split", nil)
	require.NoError(t, err)
	assert.Equal(t, "chat-only", cp.Name())
}

func TestListProviders(t *testing.T) {
	RegisterProvider("test-list", func(_ map[string]any) (Provider, error) {
		return &fakeProvider{name: "test-list"}, nil
	})

	names := ListProviders()
	assert.Contains(t, names, "test-list")
}
