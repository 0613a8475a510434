// Package bootstrap assembles the components shared by the server and the
// reindex command: the embedder decorator chain, the cache store and the
// vector index.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dishfinder/internal/config"
	dbRedis "github.com/kailas-cloud/dishfinder/internal/db/redis"
	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
	"github.com/kailas-cloud/dishfinder/internal/repository/embcache"
	"github.com/kailas-cloud/dishfinder/internal/repository/snapshot"
	openaiEmb "github.com/kailas-cloud/dishfinder/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/dishfinder/internal/usecase/embedding"
	"github.com/kailas-cloud/dishfinder/internal/vectorindex"
)

// CacheStore is what the embedding cache needs from the key-value store.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Provider is the base embedding model with its health probe.
type Provider interface {
	domain.Embedder
	domain.HealthChecker
}

// Embedders is the built embedder chain.
type Embedders struct {
	// Document embeds catalog items, Query embeds search phrases.
	Document domain.Embedder
	Query    domain.Embedder
	Provider Provider
	Fallback *embeddinguc.PseudoEmbedder
}

// NewProvider creates the base embedding model.
func NewProvider(cfg config.EmbeddingConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderLocal, "":
		return embeddinguc.NewHashingEmbedder(cfg.Dimensions), nil
	case config.ProviderOpenAI:
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
			Provider:   cfg.Provider,
			Logger:     logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// NewEmbedders assembles the decorator chain:
// provider -> redis cache -> memo -> instrumented -> instruction.
// The instruction is outermost so every cache key includes it. cache may be nil.
func NewEmbedders(
	cfg config.EmbeddingConfig,
	cache CacheStore,
	cacheTTL time.Duration,
	logger *zap.Logger,
) (Embedders, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	base, err := NewProvider(cfg, logger)
	if err != nil {
		return Embedders{}, err
	}

	var chain domain.Embedder = base
	if cache != nil {
		namespace := cfg.Model
		if namespace == "" {
			namespace = fmt.Sprintf("%s-%d", config.ProviderLocal, cfg.Dimensions)
		}
		chain = embcache.New(chain, cache, embcache.Options{
			Namespace: namespace,
			TTL:       cacheTTL,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	if cfg.MemoSize > 0 {
		memo, err := embeddinguc.NewMemoEmbedder(chain, cfg.MemoSize)
		if err != nil {
			return Embedders{}, err
		}
		chain = memo
	}

	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderLocal
	}
	chain = embeddinguc.NewInstrumentedEmbedder(
		chain, provider, cfg.Model, time.Duration(cfg.TimeoutSec)*time.Second, logger,
	)

	return Embedders{
		Document: domain.NewInstructionEmbedder(chain, cfg.DocumentInstruction),
		Query:    domain.NewInstructionEmbedder(chain, cfg.QueryInstruction),
		Provider: base,
		Fallback: embeddinguc.NewPseudoEmbedder(cfg.Dimensions),
	}, nil
}

// OpenCache connects to Redis and waits until it answers. Returns nil, nil
// when the cache is disabled.
func OpenCache(ctx context.Context, cfg config.CacheConfig) (*dbRedis.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache store: %w", err)
	}

	timeout := time.Duration(cfg.ReadinessTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("cache not ready: %w", err)
	}
	return store, nil
}

// OpenIndex loads the persisted snapshot into a concurrency-safe index.
// A missing snapshot is not an error: the index starts empty and reports
// the condition through Status.
func OpenIndex(ctx context.Context, cfg config.IndexConfig, logger *zap.Logger) (*vectorindex.Serialized, error) {
	store := snapshot.New(cfg.Dir, logger)
	ix := vectorindex.NewSerialized(vectorindex.New(store, logger))
	if err := ix.Load(ctx); err != nil && !errors.Is(err, domain.ErrSnapshotUnavailable) {
		return ix, err
	}
	return ix, nil
}
