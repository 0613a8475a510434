package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dishfinder/internal/bootstrap"
	"github.com/kailas-cloud/dishfinder/internal/config"
	logpkg "github.com/kailas-cloud/dishfinder/internal/logger"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
	"github.com/kailas-cloud/dishfinder/internal/transport/chat"
	chiTransport "github.com/kailas-cloud/dishfinder/internal/transport/chi"
	analyzeruc "github.com/kailas-cloud/dishfinder/internal/usecase/analyzer"
	cataloguc "github.com/kailas-cloud/dishfinder/internal/usecase/catalog"
	formatteruc "github.com/kailas-cloud/dishfinder/internal/usecase/formatter"
	healthuc "github.com/kailas-cloud/dishfinder/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/dishfinder/internal/usecase/retrieval"
	scoringuc "github.com/kailas-cloud/dishfinder/internal/usecase/scoring"
	searchuc "github.com/kailas-cloud/dishfinder/internal/usecase/search"
	"github.com/kailas-cloud/dishfinder/internal/version"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, "dishfinder-api", cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting dishfinder API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Bool("llm_enabled", cfg.LLM.Enabled),
		zap.String("analyzer", cfg.Analyzer.Strategy),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()
	metrics.RegisterHTTPMetrics()

	ctx := context.Background()

	cache, err := bootstrap.OpenCache(ctx, cfg.Cache)
	if err != nil {
		logger.Fatal("Embedding cache not ready", zap.Error(err))
	}
	// Keep the nil interface when the cache is disabled; a typed nil
	// *redis.Store would look like a live cache to the consumers.
	var (
		cacheStore  bootstrap.CacheStore
		cachePinger healthuc.CachePinger
	)
	if cache != nil {
		defer cache.Close()
		cacheStore = cache
		cachePinger = cache
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	embedders, err := bootstrap.NewEmbedders(
		cfg.Embedding, cacheStore, time.Duration(cfg.Cache.TTLSec)*time.Second, logger,
	)
	if err != nil {
		logger.Fatal("Failed to build embedders", zap.Error(err))
	}
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	index, err := bootstrap.OpenIndex(ctx, cfg.Index, logger)
	if err != nil {
		// The index starts empty; catalog edits and reindexing repopulate it.
		logger.Error("Vector index unusable, serving from an empty index", zap.Error(err))
	}

	gateway := chat.New(chat.Config{
		Enabled:   cfg.LLM.Enabled,
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		Timeout:   time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		MaxTokens: cfg.LLM.MaxTokens,
	}, logger)
	llmTimeout := time.Duration(cfg.LLM.TimeoutSec) * time.Second

	var primary analyzeruc.Strategy
	if cfg.Analyzer.Strategy == config.StrategyModel {
		primary = analyzeruc.NewModelStrategy(gateway, llmTimeout)
	}
	rules := analyzeruc.NewRuleStrategy(analyzeruc.NewAnchorClassifier(embedders.Query))
	analyzer := analyzeruc.New(primary, rules, logger)

	retriever := retrievaluc.New(embedders.Query, index, embedders.Fallback, retrievaluc.Config{
		TopK:            cfg.Search.TopK,
		CandidateFactor: cfg.Search.CandidateFactor,
		ParallelTasks:   cfg.Search.ParallelTasks,
	}, logger)

	var reranker *scoringuc.Reranker
	if cfg.Search.RerankEnabled {
		reranker = scoringuc.NewReranker(gateway, llmTimeout, logger)
	}
	selector := scoringuc.NewSelector(scoringuc.Config{
		Weights:     cfg.Search.Weights,
		RerankLimit: cfg.Search.RerankLimit,
	}, reranker, logger)

	var formatterCaller formatteruc.ModelCaller
	if cfg.Search.FormatterModelEnabled {
		formatterCaller = gateway
	}
	formatter := formatteruc.New(formatterCaller, llmTimeout, logger)

	searchSvc := searchuc.New(analyzer, retriever, selector, formatter, logger)
	catalogSvc := cataloguc.New(index, embedders.Document, embedders.Fallback, logger)

	var llmChecker healthuc.Checker
	if cfg.LLM.Enabled {
		llmChecker = gateway
	}
	healthSvc := healthuc.New(index, embedders.Provider, llmChecker, cachePinger)

	server := chiTransport.NewServer(searchSvc, catalogSvc, index, healthSvc, logger)
	handler := chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr), zap.Int("index_rows", index.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
