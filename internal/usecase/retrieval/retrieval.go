// Package retrieval runs the per-task nearest-neighbour search.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/logger"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
	"github.com/kailas-cloud/dishfinder/internal/vectorindex"
)

// Searcher is the read side of the vector index.
type Searcher interface {
	Query(vector []float32, k int) []vectorindex.Hit
	Len() int
	Status() error
}

// Fallback produces a deterministic vector when the embedder fails.
type Fallback interface {
	Vector(text string) []float32
}

// Config holds retrieval parameters.
type Config struct {
	TopK            int
	CandidateFactor int
	// ParallelTasks runs the tasks of one request concurrently.
	ParallelTasks bool
}

// Defaults.
const (
	DefaultTopK            = 20
	DefaultCandidateFactor = 3
)

// Engine embeds task phrases and queries the index.
type Engine struct {
	embedder domain.Embedder
	index    Searcher
	fallback Fallback
	cfg      Config
	logger   *zap.Logger
}

// New creates a retrieval engine.
func New(embedder domain.Embedder, index Searcher, fallback Fallback, cfg Config, log *zap.Logger) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.CandidateFactor <= 0 {
		cfg.CandidateFactor = DefaultCandidateFactor
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{embedder: embedder, index: index, fallback: fallback, cfg: cfg, logger: log}
}

// K is the number of candidates fetched per task.
func (e *Engine) K(maxResults int) int {
	return max(e.cfg.TopK, maxResults*e.cfg.CandidateFactor)
}

type taskResult struct {
	items []domain.ScoredItem
	err   error
}

// Retrieve fills run.Results for every task in run.Tasks. It fails only when
// the index could not be loaded and holds nothing; embedding failures are
// recorded on the run and served with the fallback vector.
func (e *Engine) Retrieve(ctx context.Context, run *domain.PipelineRun, maxResults int) error {
	start := time.Now()
	defer func() {
		metrics.PipelineStageDuration.WithLabelValues("retrieve").Observe(time.Since(start).Seconds())
	}()

	if err := e.index.Status(); err != nil && e.index.Len() == 0 {
		return fmt.Errorf("retrieve: %w", err)
	}

	k := e.K(maxResults)
	results := make([]taskResult, len(run.Tasks))

	if e.cfg.ParallelTasks && len(run.Tasks) > 1 {
		var g errgroup.Group
		for i, task := range run.Tasks {
			g.Go(func() error {
				results[i] = e.retrieveTask(ctx, task, k)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, task := range run.Tasks {
			results[i] = e.retrieveTask(ctx, task, k)
		}
	}

	for i, task := range run.Tasks {
		run.Results[task.ID] = results[i].items
		run.AddError(results[i].err)
	}
	return nil
}

func (e *Engine) retrieveTask(ctx context.Context, task domain.SearchTask, k int) taskResult {
	log := logger.FromContext(ctx, e.logger)

	var (
		vec    []float32
		embErr error
	)
	res, err := e.embedder.Embed(ctx, task.SearchPhrase)
	switch {
	case err != nil:
		embErr = fmt.Errorf("task %s: %w", task.ID, err)
	case len(res.Embedding) == 0:
		embErr = fmt.Errorf("task %s: empty embedding: %w", task.ID, domain.ErrEmbeddingUnavailable)
	default:
		vec = res.Embedding
	}
	if embErr != nil {
		metrics.PipelineFallbacksTotal.WithLabelValues("embedding").Inc()
		log.Warn("embedding failed, using pseudo vector",
			zap.String("task_id", task.ID), zap.Error(embErr))
		vec = e.fallback.Vector(task.SearchPhrase)
	}

	hits := e.index.Query(vec, k)
	items := make([]domain.ScoredItem, 0, len(hits))
	for _, h := range hits {
		items = append(items, domain.NewScoredItem(h.Item, h.Score))
	}

	log.Debug("task retrieved",
		zap.String("task_id", task.ID),
		zap.String("search_phrase", task.SearchPhrase),
		zap.Int("k", k),
		zap.Int("hits", len(items)))
	return taskResult{items: items, err: embErr}
}
