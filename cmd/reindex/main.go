// Command reindex rebuilds the vector snapshot from a catalog JSON export.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dishfinder/internal/bootstrap"
	"github.com/kailas-cloud/dishfinder/internal/config"
	logpkg "github.com/kailas-cloud/dishfinder/internal/logger"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
	"github.com/kailas-cloud/dishfinder/internal/repository/catalogfile"
	"github.com/kailas-cloud/dishfinder/internal/repository/snapshot"
	cataloguc "github.com/kailas-cloud/dishfinder/internal/usecase/catalog"
	"github.com/kailas-cloud/dishfinder/internal/vectorindex"
	"github.com/kailas-cloud/dishfinder/internal/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		catalogPath string
		indexDir    string
		fresh       bool
	)
	cmd := &cobra.Command{
		Use:           "reindex",
		Short:         "Rebuild the vector snapshot from a catalog JSON export",
		Version:       version.String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			env := config.GetEnv()
			cfg, err := config.Load(env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if catalogPath != "" {
				cfg.Catalog.Path = catalogPath
			}
			if indexDir != "" {
				cfg.Index.Dir = indexDir
			}

			logger, err := logpkg.New(env, "dishfinder-reindex", cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			return run(cfg, fresh, logger)
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog JSON export (default: catalog.path from config)")
	cmd.Flags().StringVar(&indexDir, "index-dir", "", "snapshot directory (default: index.dir from config)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "start from an empty index instead of the current snapshot")
	return cmd
}

func run(cfg config.Config, fresh bool, logger *zap.Logger) error {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := bootstrap.OpenCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	var cacheStore bootstrap.CacheStore
	if cache != nil {
		defer cache.Close()
		cacheStore = cache
	}

	embedders, err := bootstrap.NewEmbedders(
		cfg.Embedding, cacheStore, time.Duration(cfg.Cache.TTLSec)*time.Second, logger,
	)
	if err != nil {
		return err
	}

	var index *vectorindex.Serialized
	if fresh {
		index = vectorindex.NewSerialized(vectorindex.New(snapshot.New(cfg.Index.Dir, logger), logger))
	} else if index, err = bootstrap.OpenIndex(ctx, cfg.Index, logger); err != nil {
		return fmt.Errorf("open index (use --fresh to rebuild from scratch): %w", err)
	}

	logger.Info("Reindexing catalog",
		zap.String("catalog", cfg.Catalog.Path),
		zap.String("index_dir", cfg.Index.Dir),
		zap.Bool("fresh", fresh),
		zap.Int("rows_before", index.Len()),
	)

	svc := cataloguc.New(index, embedders.Document, embedders.Fallback, logger)
	rep, err := svc.ReindexAll(ctx, catalogfile.New(cfg.Catalog.Path))
	if err != nil {
		return err
	}
	for _, e := range rep.Errors {
		logger.Warn("item skipped", zap.String("item_id", e.ID), zap.String("error", e.Err))
	}
	if rep.Indexed == 0 && rep.Total > 0 {
		return fmt.Errorf("no items indexed out of %d", rep.Total)
	}

	stats := index.Stats()
	logger.Info("Reindex finished",
		zap.Int("indexed", rep.Indexed),
		zap.Int("failed", rep.Failed),
		zap.Int("rows", stats.Rows),
		zap.Int("dim", stats.Dim),
		zap.Duration("duration", rep.Duration),
	)
	return nil
}
