// Package search runs the whole query pipeline for one request.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/logger"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
	"github.com/kailas-cloud/dishfinder/internal/usecase/decomposer"
)

// Result limits.
const (
	DefaultMaxResults = 5
	MaxMaxResults     = 50
)

// ErrEmptyQuery is reported in Response.Error for blank input.
var ErrEmptyQuery = errors.New("empty query")

const (
	failureSummary = "Не получилось обработать запрос '%s'. Попробуйте ещё раз чуть позже."
	emptySummary   = "Опишите, какое блюдо вы ищете."
)

// Analyzer extracts the intent. It never fails.
type Analyzer interface {
	Analyze(ctx context.Context, text string) domain.QueryIntent
}

// Retriever fills the run's per-task results.
type Retriever interface {
	Retrieve(ctx context.Context, run *domain.PipelineRun, maxResults int) error
}

// Selector picks the final items.
type Selector interface {
	Select(ctx context.Context, run *domain.PipelineRun, filters domain.Filters, maxResults int) []domain.ScoredItem
}

// Formatter explains the selection. It never fails.
type Formatter interface {
	Format(ctx context.Context, query, miniContext string, items []domain.ScoredItem) domain.Answer
}

// Request is one search call.
type Request struct {
	Text       string         `json:"query"`
	MaxResults int            `json:"max_results,omitempty"`
	Filters    domain.Filters `json:"filters"`
}

// Response is the structured search result. Error is set only on total failure.
type Response struct {
	RunID       string              `json:"run_id"`
	Query       string              `json:"query"`
	ElapsedMS   int64               `json:"elapsed_ms"`
	RankedItems []domain.RankedItem `json:"ranked_items"`
	Intent      domain.QueryIntent  `json:"intent"`
	Answer      domain.Answer       `json:"answer"`
	TasksCount  int                 `json:"tasks_count"`
	Error       string              `json:"error,omitempty"`
}

// Service wires the pipeline stages.
type Service struct {
	analyzer  Analyzer
	retriever Retriever
	selector  Selector
	formatter Formatter
	logger    *zap.Logger
}

// New creates a search service.
func New(a Analyzer, r Retriever, s Selector, f Formatter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{analyzer: a, retriever: r, selector: s, formatter: f, logger: log}
}

// Search never returns a Go error: failures end up in Response.Error with a
// conversational summary.
func (s *Service) Search(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	query := strings.TrimSpace(req.Text)
	run := domain.NewPipelineRun(query)
	ctx = logger.With(ctx, s.logger, zap.String("run_id", run.ID))
	log := logger.FromContext(ctx, s.logger)

	defer func() {
		if r := recover(); r != nil {
			log.Error("search panicked", zap.Any("panic", r), zap.Stack("stack"))
			resp = failed(run, fmt.Errorf("internal error: %v", r))
			metrics.SearchesTotal.WithLabelValues("panic").Inc()
		}
		resp.ElapsedMS = time.Since(start).Milliseconds()
	}()

	if query == "" {
		metrics.SearchesTotal.WithLabelValues("rejected").Inc()
		resp = failed(run, ErrEmptyQuery)
		resp.Answer.Summary = emptySummary
		return resp
	}

	maxResults := req.MaxResults
	switch {
	case maxResults <= 0:
		maxResults = DefaultMaxResults
	case maxResults > MaxMaxResults:
		maxResults = MaxMaxResults
	}

	run.Intent = s.analyzer.Analyze(ctx, query)
	run.Tasks = decomposer.Decompose(run.Intent)
	log.Debug("query decomposed",
		zap.String("type", string(run.Intent.Type)),
		zap.Int("tasks", len(run.Tasks)))

	if err := s.retriever.Retrieve(ctx, run, maxResults); err != nil {
		log.Error("retrieval failed", zap.Error(err))
		metrics.SearchesTotal.WithLabelValues("failed").Inc()
		resp = failed(run, err)
		resp.Intent = run.Intent
		resp.TasksCount = len(run.Tasks)
		return resp
	}

	selected := s.selector.Select(ctx, run, req.Filters, maxResults)
	answer := s.formatter.Format(ctx, query, run.Intent.MiniContext, selected)

	ranked := make([]domain.RankedItem, 0, len(selected))
	for i := range selected {
		ranked = append(ranked, domain.RankedItemFrom(&selected[i]))
	}

	outcome := "ok"
	switch {
	case len(ranked) == 0:
		outcome = "empty"
	case len(run.Errors) > 0:
		outcome = "degraded"
	}
	metrics.SearchesTotal.WithLabelValues(outcome).Inc()
	log.Info("search completed",
		zap.String("query", query),
		zap.Int("results", len(ranked)),
		zap.Int("recovered_errors", len(run.Errors)),
		zap.Duration("elapsed", time.Since(start)))

	return Response{
		RunID:       run.ID,
		Query:       query,
		RankedItems: ranked,
		Intent:      run.Intent,
		Answer:      answer,
		TasksCount:  len(run.Tasks),
	}
}

func failed(run *domain.PipelineRun, err error) Response {
	return Response{
		RunID:       run.ID,
		Query:       run.Query,
		RankedItems: []domain.RankedItem{},
		Answer: domain.Answer{
			Summary:         fmt.Sprintf(failureSummary, run.Query),
			Recommendations: []domain.Recommendation{},
			Fallback:        true,
		},
		Error: err.Error(),
	}
}
