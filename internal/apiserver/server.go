// Package apiserver assembles the RAG API server: store, cache, model
// providers, business service, HTTP transport.
package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/kart-io/version"

	"github.com/kart-io/ragops/internal/apiserver/biz"
	"github.com/kart-io/ragops/internal/apiserver/router"
	"github.com/kart-io/ragops/internal/apiserver/store"
	"github.com/kart-io/ragops/pkg/cache"
	"github.com/kart-io/ragops/pkg/component/milvus"
	"github.com/kart-io/ragops/pkg/llm"
	"github.com/kart-io/ragops/pkg/middleware"
	cacheopts "github.com/kart-io/ragops/pkg/options/cache"
	httpopts "github.com/kart-io/ragops/pkg/options/http"
	llmopts "github.com/kart-io/ragops/pkg/options/llm"
	logopts "github.com/kart-io/ragops/pkg/options/logger"
	milvusopts "github.com/kart-io/ragops/pkg/options/milvus"
	ragopts "github.com/kart-io/ragops/pkg/options/rag"

	// Register LLM providers.
	_ "github.com/kart-io/ragops/pkg/llm/ollama"
	_ "github.com/kart-io/ragops/pkg/llm/openai"
)

// Name is the name of the application.
const Name = "ragops"

// memorySweepInterval is how often the in-process cache evicts expired
// entries.
const memorySweepInterval = time.Minute

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RAGOptions       *ragopts.Options
	CacheOptions     *cacheopts.Options

	// UseMemoryStore selects the in-process store instead of Milvus.
	// Meant for local development and tests.
	UseMemoryStore bool

	ShutdownTimeout time.Duration
}

// Server is the assembled RAG API server.
type Server struct {
	httpSrv         *http.Server
	shutdownTimeout time.Duration
	closers         []func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", version.Get().GitVersion)
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting RAG API server", "version", version.Get().GitVersion)

	var closers []func()

	searchStore, storeClose, err := cfg.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	if storeClose != nil {
		closers = append(closers, storeClose)
	}

	cacheBackend, cacheClose := cfg.buildCacheBackend(ctx)
	if cacheClose != nil {
		closers = append(closers, cacheClose)
	}

	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	if cacheBackend != nil {
		embedProvider = llm.NewCachedEmbeddingProvider(embedProvider, cacheBackend, &llm.EmbeddingCacheConfig{
			Enabled:   cfg.CacheOptions.Enabled,
			TTL:       cfg.CacheOptions.EmbeddingTTL,
			KeyPrefix: "emb:",
		})
	}
	// A nil backend yields a cache that always misses.
	answerCache := biz.NewAnswerCache(cacheBackend, &biz.AnswerCacheConfig{
		Enabled:   cfg.CacheOptions.Enabled && cacheBackend != nil,
		TTL:       cfg.CacheOptions.AnswerTTL,
		KeyPrefix: cfg.CacheOptions.KeyPrefix,
	})

	serviceConfig := &biz.ServiceConfig{
		RetrieverConfig: &biz.RetrieverConfig{
			TopK:         cfg.RAGOptions.TopK,
			EmbeddingDim: cfg.RAGOptions.EmbeddingDim,
		},
		GeneratorConfig: &biz.GeneratorConfig{
			SystemPrompt:    cfg.RAGOptions.SystemPrompt,
			MaxContextChars: cfg.RAGOptions.MaxContextChars,
			MaxChunksPerDoc: cfg.RAGOptions.MaxChunksPerDoc,
		},
		IndexerConfig: &biz.IndexerConfig{
			ChunkSize:    cfg.RAGOptions.ChunkSize,
			ChunkOverlap: cfg.RAGOptions.ChunkOverlap,
			EmbeddingDim: cfg.RAGOptions.EmbeddingDim,
		},
		AnswerCacheConfig: &biz.AnswerCacheConfig{
			Enabled:   cfg.CacheOptions.Enabled,
			TTL:       cfg.CacheOptions.AnswerTTL,
			KeyPrefix: cfg.CacheOptions.KeyPrefix,
		},
	}
	service := biz.NewService(searchStore, embedProvider, chatProvider, answerCache, serviceConfig)
	logger.Infow("RAG service initialized",
		"cache.enabled", cfg.CacheOptions.Enabled,
		"rag.top_k", cfg.RAGOptions.TopK,
		"rag.embedding_dim", cfg.RAGOptions.EmbeddingDim,
	)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
		middleware.Timeout(cfg.HTTPOptions.WriteTimeout),
	)
	router.Register(engine, service, cfg.RAGOptions.TopK)

	httpSrv := &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	logger.Info("RAG API server is ready")
	return &Server{
		httpSrv:         httpSrv,
		shutdownTimeout: cfg.ShutdownTimeout,
		closers:         closers,
	}, nil
}

// buildStore creates the configured search store backend.
func (cfg *Config) buildStore(ctx context.Context) (store.SearchStore, func(), error) {
	if cfg.UseMemoryStore {
		memStore := store.NewMemoryStore()
		logger.Info("In-memory store initialized")
		return memStore, nil, nil
	}

	milvusClient, err := milvus.New(cfg.MilvusOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	milvusStore := store.NewMilvusStore(milvusClient, &store.MilvusConfig{
		DocumentCollection: cfg.RAGOptions.DocumentCollection,
		ChunkCollection:    cfg.RAGOptions.ChunkCollection,
		Dimension:          cfg.RAGOptions.EmbeddingDim,
	})
	if err := milvusStore.EnsureCollections(ctx); err != nil {
		_ = milvusClient.Close(context.Background())
		return nil, nil, fmt.Errorf("failed to ensure collections: %w", err)
	}
	logger.Infow("Milvus store initialized",
		"address", cfg.MilvusOptions.Address,
		"database", cfg.MilvusOptions.Database,
	)
	return milvusStore, func() { _ = milvusClient.Close(context.Background()) }, nil
}

// buildCacheBackend creates the cache backend for answers and embeddings.
// A Redis connection failure degrades to running uncached rather than
// failing startup.
func (cfg *Config) buildCacheBackend(ctx context.Context) (cache.Cache, func()) {
	if !cfg.CacheOptions.Enabled {
		logger.Info("Cache is disabled")
		return nil, nil
	}

	if cfg.CacheOptions.UseMemory {
		mem := cache.NewMemory(memorySweepInterval)
		logger.Info("In-memory cache initialized")
		return mem, func() { _ = mem.Close() }
	}

	client := cfg.CacheOptions.Redis.NewClient()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnw("failed to connect to redis, running uncached", "error", err.Error())
		_ = client.Close()
		return nil, nil
	}
	logger.Infow("Redis cache initialized",
		"host", cfg.CacheOptions.Redis.Host,
		"port", cfg.CacheOptions.Redis.Port,
		"answer_ttl", cfg.CacheOptions.AnswerTTL,
	)
	redisCache := cache.NewRedis(client)
	return redisCache, func() { _ = redisCache.Close() }
}

// Run starts the HTTP server and blocks until a termination signal arrives,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		for i := len(s.closers) - 1; i >= 0; i-- {
			s.closers[i]()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		logger.Infow("Shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Shutting down, context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
