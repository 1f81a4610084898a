// Package cache provides answer cache configuration options.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragops/pkg/options"
	redisopts "github.com/kart-io/ragops/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

// Options configures the answer and embedding caches.
type Options struct {
	// Enabled toggles caching altogether.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// AnswerTTL is how long a cached answer stays valid.
	AnswerTTL time.Duration `json:"answer-ttl" mapstructure:"answer-ttl"`

	// EmbeddingTTL is how long a cached embedding stays valid.
	EmbeddingTTL time.Duration `json:"embedding-ttl" mapstructure:"embedding-ttl"`

	// KeyPrefix namespaces answer cache keys.
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// UseMemory selects the in-process backend instead of Redis.
	UseMemory bool `json:"use-memory" mapstructure:"use-memory"`

	// Redis holds the Redis connection configuration.
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions creates default cache options.
func NewOptions() *Options {
	return &Options{
		Enabled:      true,
		AnswerTTL:    10 * time.Minute,
		EmbeddingTTL: time.Hour,
		KeyPrefix:    "rag:",
		Redis:        redisopts.NewOptions(),
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, options.Join(prefixes...)+"cache.enabled", o.Enabled, "Enable answer and embedding caching.")
	fs.DurationVar(&o.AnswerTTL, options.Join(prefixes...)+"cache.answer-ttl", o.AnswerTTL, "Cached answer TTL.")
	fs.DurationVar(&o.EmbeddingTTL, options.Join(prefixes...)+"cache.embedding-ttl", o.EmbeddingTTL, "Cached embedding TTL.")
	fs.StringVar(&o.KeyPrefix, options.Join(prefixes...)+"cache.key-prefix", o.KeyPrefix, "Answer cache key prefix.")
	fs.BoolVar(&o.UseMemory, options.Join(prefixes...)+"cache.use-memory", o.UseMemory, "Use the in-process cache backend instead of Redis.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, prefixes...)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Enabled {
		if o.AnswerTTL <= 0 {
			errs = append(errs, fmt.Errorf("cache.answer-ttl must be positive"))
		}
		if o.EmbeddingTTL <= 0 {
			errs = append(errs, fmt.Errorf("cache.embedding-ttl must be positive"))
		}
		if !o.UseMemory && o.Redis != nil {
			errs = append(errs, o.Redis.Validate()...)
		}
	}
	return errs
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return nil
}
