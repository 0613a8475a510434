// Package catalog keeps the vector index in step with catalog edits.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/logger"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
)

// ItemError is one failed item of a reindex.
type ItemError struct {
	ID  string `json:"id"`
	Err string `json:"error"`
}

// Report summarizes a full reindex.
type Report struct {
	Total    int           `json:"total"`
	Indexed  int           `json:"indexed"`
	Failed   int           `json:"failed"`
	Errors   []ItemError   `json:"errors,omitempty"`
	Duration time.Duration `json:"-"`
}

// Service embeds catalog items and writes them to the index.
type Service struct {
	index    Index
	embed    domain.Embedder
	fallback Fallback
	logger   *zap.Logger
}

// New creates a catalog service.
func New(index Index, embed domain.Embedder, fallback Fallback, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{index: index, embed: embed, fallback: fallback, logger: log}
}

// Index embeds and upserts one item. Returns true if the id was new.
// An embedding failure is logged and served with the fallback vector.
func (s *Service) Index(ctx context.Context, it domain.Item) (bool, error) {
	it = it.Normalized()
	if it.ID == "" {
		return false, fmt.Errorf("item id is required: %w", domain.ErrInvalidItem)
	}
	if it.Name == "" {
		return false, fmt.Errorf("item %s: name is required: %w", it.ID, domain.ErrInvalidItem)
	}

	text := it.DocumentText()
	vec, err := s.vector(ctx, it.ID, text)
	if err != nil {
		return false, err
	}

	_, existed := s.index.Get(it.ID)
	if err := s.index.Upsert(ctx, it.ID, vec, it); err != nil {
		return false, fmt.Errorf("upsert item %s: %w", it.ID, err)
	}
	return !existed, nil
}

// Delete removes an item from the index.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("item id is required: %w", domain.ErrInvalidItem)
	}
	if err := s.index.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

// ReindexAll upserts every item of src. Per-item failures are counted, not
// returned; the error is reserved for a source that cannot be listed or a
// cancelled context.
func (s *Service) ReindexAll(ctx context.Context, src Source) (Report, error) {
	start := time.Now()
	log := logger.FromContext(ctx, s.logger)

	items, err := src.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list catalog: %w", err)
	}

	rep := Report{Total: len(items)}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			rep.Duration = time.Since(start)
			return rep, fmt.Errorf("reindex interrupted: %w", err)
		}
		if _, err := s.Index(ctx, it); err != nil {
			rep.Failed++
			rep.Errors = append(rep.Errors, ItemError{ID: it.ID, Err: err.Error()})
			log.Warn("failed to index item", zap.String("item_id", it.ID), zap.String("name", it.Name), zap.Error(err))
			continue
		}
		rep.Indexed++
	}
	rep.Duration = time.Since(start)

	log.Info("reindex completed",
		zap.Int("indexed", rep.Indexed),
		zap.Int("failed", rep.Failed),
		zap.Int("total", rep.Total),
		zap.Duration("duration", rep.Duration))
	return rep, nil
}

func (s *Service) vector(ctx context.Context, id, text string) ([]float32, error) {
	res, err := s.embed.Embed(ctx, text)
	if err == nil && len(res.Embedding) > 0 {
		return res.Embedding, nil
	}
	if err == nil {
		err = fmt.Errorf("empty embedding: %w", domain.ErrEmbeddingUnavailable)
	}
	if s.fallback == nil {
		return nil, fmt.Errorf("vectorize item %s: %w", id, err)
	}

	metrics.PipelineFallbacksTotal.WithLabelValues("index_embedding").Inc()
	logger.FromContext(ctx, s.logger).Warn("embedding failed, indexing with pseudo vector",
		zap.String("item_id", id), zap.Error(err))
	return s.fallback.Vector(text), nil
}
