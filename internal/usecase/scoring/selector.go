// Package scoring fuses retrieval signals and selects the final items.
package scoring

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/logger"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
	"github.com/kailas-cloud/dishfinder/internal/textnorm"
)

// DefaultRerankLimit is how many top candidates are sent to the reranker.
const DefaultRerankLimit = 20

// Config holds selection parameters.
type Config struct {
	Weights     domain.Weights
	RerankLimit int
}

// Selector merges task results, scores them and applies the hard filters.
type Selector struct {
	cfg      Config
	reranker *Reranker
	logger   *zap.Logger
}

// NewSelector creates a selector. A nil reranker disables the model rerank.
func NewSelector(cfg Config, reranker *Reranker, log *zap.Logger) *Selector {
	if cfg.Weights == (domain.Weights{}) {
		cfg.Weights = domain.DefaultWeights()
	}
	if cfg.RerankLimit <= 0 {
		cfg.RerankLimit = DefaultRerankLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Selector{cfg: cfg, reranker: reranker, logger: log}
}

// Select fills run.Selected with at most maxResults items and returns it.
func (s *Selector) Select(ctx context.Context, run *domain.PipelineRun, filters domain.Filters, maxResults int) []domain.ScoredItem {
	start := time.Now()
	defer func() {
		metrics.PipelineStageDuration.WithLabelValues("select").Observe(time.Since(start).Seconds())
	}()
	log := logger.FromContext(ctx, s.logger)

	category := strings.TrimSpace(filters.Category)
	if category == "" {
		category = run.Intent.Category
	}

	pool := s.merge(run)
	s.rescore(pool, category)

	if s.reranker != nil && len(pool) > 0 {
		head := pool[:min(s.cfg.RerankLimit, len(pool))]
		if err := s.reranker.Rerank(ctx, run.Query, head); err == nil {
			s.rescore(pool, category)
		}
	}

	f := newHardFilter(run.Intent, filters)
	var (
		selected []domain.ScoredItem
		relaxed  []domain.ScoredItem
		seen     = make(map[string]bool)
	)
	for _, it := range pool {
		switch f.check(it.Item) {
		case verdictPass:
			key := dedupeKey(it.Item)
			if seen[key] {
				continue
			}
			seen[key] = true
			selected = append(selected, it)
		case verdictRelaxable:
			relaxed = append(relaxed, it)
		}
	}
	if len(selected) > maxResults {
		selected = selected[:max(0, maxResults)]
	}

	var backfilled int
	for _, it := range relaxed {
		if len(selected) >= maxResults {
			break
		}
		key := dedupeKey(it.Item)
		if seen[key] {
			continue
		}
		seen[key] = true
		it.Backfilled = true
		selected = append(selected, it)
		backfilled++
	}
	if selected == nil {
		selected = []domain.ScoredItem{}
	}

	log.Debug("items selected",
		zap.Int("candidates", len(pool)),
		zap.Int("selected", len(selected)),
		zap.Int("backfilled", backfilled),
		zap.String("category", category))

	run.Selected = selected
	return selected
}

// merge copies every task's candidates into one pool with lexical scores
// computed against the owning task's phrase.
func (s *Selector) merge(run *domain.PipelineRun) []domain.ScoredItem {
	var pool []domain.ScoredItem
	for _, task := range run.Tasks {
		for _, it := range run.Results[task.ID] {
			it.LexicalScore = Lexical(task.SearchPhrase, it.Item)
			pool = append(pool, it)
		}
	}
	return pool
}

func (s *Selector) rescore(pool []domain.ScoredItem, category string) {
	for i := range pool {
		pool[i].Rescore(s.cfg.Weights, category)
	}
	slices.SortStableFunc(pool, compareRanked)
}

// compareRanked orders by relevance descending, then id ascending. Ids that
// are both integers compare numerically.
func compareRanked(a, b domain.ScoredItem) int {
	if c := cmp.Compare(b.Relevance(), a.Relevance()); c != 0 {
		return c
	}
	return compareIDs(a.ID, b.ID)
}

func compareIDs(a, b string) int {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return cmp.Compare(ai, bi)
	}
	return cmp.Compare(a, b)
}

func dedupeKey(it domain.Item) string {
	if name := textnorm.Fold(it.Name); name != "" {
		return name
	}
	return "#" + it.ID
}

type verdict int

const (
	verdictPass verdict = iota
	// verdictRelaxable fails only the spice tier inferred from the query text.
	verdictRelaxable
	verdictReject
)

type hardFilter struct {
	veganRequired bool
	veganExcluded bool
	spiceRequired bool
	spiceMax      *int
	category      string
}

func newHardFilter(intent domain.QueryIntent, filters domain.Filters) hardFilter {
	f := hardFilter{
		veganRequired: intent.VeganRequired(),
		spiceMax:      filters.SpiceMax,
		category:      strings.ToLower(strings.TrimSpace(filters.Category)),
	}
	// An explicit vegan filter overrides what the text implied.
	if filters.Vegan != nil {
		f.veganRequired = *filters.Vegan
		f.veganExcluded = !*filters.Vegan
	}
	if tier, ok := intent.RequestedSpiceTier(); ok && tier == domain.MaxSpiceTier {
		f.spiceRequired = true
	}
	return f
}

func (f hardFilter) check(it domain.Item) verdict {
	vegan := domain.IsVeganOf(it.IsVegan)
	switch {
	case f.veganRequired && !vegan,
		f.veganExcluded && vegan,
		f.spiceMax != nil && it.SpiceLevel > *f.spiceMax,
		f.category != "" && !strings.Contains(strings.ToLower(it.Category), f.category):
		return verdictReject
	case f.spiceRequired && domain.SpiceTierOf(it.SpiceLevel) != domain.MaxSpiceTier:
		return verdictRelaxable
	default:
		return verdictPass
	}
}
