// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragops/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions configures one model provider (embedding or chat).
type ProviderOptions struct {
	// Provider is the registry name (ollama, openai).
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL is the API root. For OpenAI-compatible gateways point this at
	// the gateway.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey authenticates requests where the provider requires it.
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model is the model name used for this role.
	Model string `json:"model" mapstructure:"model"`

	// Timeout bounds a single provider request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is how many times a failed request is retried.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization is the optional OpenAI organization ID.
	Organization string `json:"organization" mapstructure:"organization"`

	// flagGroup distinguishes embedding vs chat flags; set by the constructors.
	flagGroup string
}

// NewEmbeddingOptions returns defaults for the embedding role.
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Model:      "nomic-embed-text",
		Timeout:    60 * time.Second,
		MaxRetries: 3,
		flagGroup:  "embedding",
	}
}

// NewChatOptions returns defaults for the chat role.
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Model:      "llama3.1:8b",
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		flagGroup:  "chat",
	}
}

// ToConfigMap converts the options into the map the provider factories take.
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"embed_model":  o.Model,
		"chat_model":   o.Model,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
	}
}

// AddFlags adds flags for this provider role to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	group := o.flagGroup
	if group == "" {
		group = "llm"
	}
	prefix := options.Join(prefixes...) + group

	fs.StringVar(&o.Provider, prefix+".provider", o.Provider, "Model provider (ollama, openai).")
	fs.StringVar(&o.BaseURL, prefix+".base-url", o.BaseURL, "Provider API base URL.")
	fs.StringVar(&o.APIKey, prefix+".api-key", o.APIKey, "Provider API key.")
	fs.StringVar(&o.Model, prefix+".model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, prefix+".timeout", o.Timeout, "Provider request timeout.")
	fs.IntVar(&o.MaxRetries, prefix+".max-retries", o.MaxRetries, "Maximum number of retries.")
	fs.StringVar(&o.Organization, prefix+".organization", o.Organization, "Organization ID (optional).")
}

// Complete fills in the API key from the environment when unset.
func (o *ProviderOptions) Complete() error {
	if o.APIKey == "" {
		o.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return nil
}

// Validate validates the provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("base-url is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("api-key is required for openai provider"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	return errs
}
