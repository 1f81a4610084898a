// Package rag provides retrieval pipeline configuration options.
package rag

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragops/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains the retrieval and context-assembly configuration.
type Options struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is how many characters consecutive chunks share.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the default number of chunks retrieved per query.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// DocumentCollection is the vector store collection for documents.
	DocumentCollection string `json:"document-collection" mapstructure:"document-collection"`

	// ChunkCollection is the vector store collection for chunks.
	ChunkCollection string `json:"chunk-collection" mapstructure:"chunk-collection"`

	// MaxContextChars bounds the assembled context passed to the model.
	MaxContextChars int `json:"max-context-chars" mapstructure:"max-context-chars"`

	// MaxChunksPerDoc caps how many chunks one document contributes to the
	// context.
	MaxChunksPerDoc int `json:"max-chunks-per-doc" mapstructure:"max-chunks-per-doc"`

	// SystemPrompt is the system prompt for answer generation.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`
}

// DefaultSystemPrompt instructs the model to ground answers in the retrieved
// context and admit when the context does not contain the answer.
const DefaultSystemPrompt = `You are a helpful assistant that answers questions based on the provided context.
Use the context to answer the question. If the context does not contain the answer, say so.
Cite the source documents when providing information.`

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:          512,
		ChunkOverlap:       50,
		TopK:               5,
		EmbeddingDim:       384,
		DocumentCollection: "documents",
		ChunkCollection:    "chunks",
		MaxContextChars:    6000,
		MaxChunksPerDoc:    2,
		SystemPrompt:       DefaultSystemPrompt,
	}
}

// AddFlags adds flags for retrieval options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.ChunkSize, options.Join(prefixes...)+"rag.chunk-size", o.ChunkSize, "Target chunk length in characters.")
	fs.IntVar(&o.ChunkOverlap, options.Join(prefixes...)+"rag.chunk-overlap", o.ChunkOverlap, "Characters shared between consecutive chunks.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"rag.top-k", o.TopK, "Default number of chunks retrieved per query.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"rag.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.StringVar(&o.DocumentCollection, options.Join(prefixes...)+"rag.document-collection", o.DocumentCollection, "Vector store collection for documents.")
	fs.StringVar(&o.ChunkCollection, options.Join(prefixes...)+"rag.chunk-collection", o.ChunkCollection, "Vector store collection for chunks.")
	fs.IntVar(&o.MaxContextChars, options.Join(prefixes...)+"rag.max-context-chars", o.MaxContextChars, "Maximum assembled context length in characters.")
	fs.IntVar(&o.MaxChunksPerDoc, options.Join(prefixes...)+"rag.max-chunks-per-doc", o.MaxChunksPerDoc, "Maximum chunks one document contributes to the context.")
}

// Validate validates the retrieval options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	if o.MaxContextChars <= 0 {
		errs = append(errs, fmt.Errorf("max-context-chars must be positive"))
	}
	if o.MaxChunksPerDoc <= 0 {
		errs = append(errs, fmt.Errorf("max-chunks-per-doc must be positive"))
	}
	return errs
}

// Complete completes the retrieval options with defaults.
func (o *Options) Complete() error {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	return nil
}
