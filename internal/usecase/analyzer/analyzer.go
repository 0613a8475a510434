// Package analyzer turns raw query text into a structured intent.
package analyzer

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/logger"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
)

// Strategy produces an intent from query text. Implementations are
// interchangeable; nothing downstream may depend on which one ran.
type Strategy interface {
	Name() string
	Analyze(ctx context.Context, text string) (domain.QueryIntent, error)
}

// Analyzer runs the primary strategy and falls back to keyword rules on any error.
type Analyzer struct {
	primary Strategy
	rules   *RuleStrategy
	logger  *zap.Logger
}

// New creates an analyzer. A nil primary means rules only; nil rules means
// keyword rules without embedding anchors.
func New(primary Strategy, rules *RuleStrategy, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	if rules == nil {
		rules = NewRuleStrategy(nil)
	}
	return &Analyzer{primary: primary, rules: rules, logger: log}
}

// Analyze never fails: the worst case is the rule-based intent.
func (a *Analyzer) Analyze(ctx context.Context, text string) domain.QueryIntent {
	log := logger.FromContext(ctx, a.logger)
	start := time.Now()
	defer func() {
		metrics.PipelineStageDuration.WithLabelValues("analyze").Observe(time.Since(start).Seconds())
	}()

	if a.primary != nil {
		intent, err := a.primary.Analyze(ctx, text)
		if err == nil {
			intent = finalize(intent, text)
			log.Debug("query analyzed",
				zap.String("strategy", intent.Source),
				zap.String("type", string(intent.Type)),
				zap.String("search_phrase", intent.SearchPhrase))
			return intent
		}
		metrics.PipelineFallbacksTotal.WithLabelValues("analyzer").Inc()
		log.Warn("primary analysis failed, using rules",
			zap.String("strategy", a.primary.Name()), zap.Error(err))
	}

	intent := finalize(a.rules.analyze(ctx, text), text)
	log.Debug("query analyzed",
		zap.String("strategy", intent.Source),
		zap.String("type", string(intent.Type)),
		zap.String("search_phrase", intent.SearchPhrase))
	return intent
}

// finalize enforces the shape every consumer relies on.
func finalize(intent domain.QueryIntent, text string) domain.QueryIntent {
	if intent.Modifiers == nil {
		intent.Modifiers = map[string]float64{}
	}
	if intent.Type == "" {
		intent.Type = domain.QueryVague
	}
	if strings.TrimSpace(intent.SearchPhrase) == "" {
		intent.SearchPhrase = strings.TrimSpace(text)
	}
	if intent.SearchPhrase == "" {
		intent.SearchPhrase = genericPhrase
	}
	if intent.MiniContext == "" {
		intent.MiniContext = intent.SearchPhrase
	}
	return intent
}
