package analyzer

import (
	"context"
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/logger"
	"github.com/kailas-cloud/dishfinder/internal/textnorm"
)

// genericPhrase is searched when a request has no usable words.
const genericPhrase = "блюдо"

// RuleStrategy is the keyword analysis, optionally backed by embedding
// anchors for requests no keyword explains. It never fails.
type RuleStrategy struct {
	anchors *AnchorClassifier
}

// NewRuleStrategy creates the rule strategy. A nil classifier means keywords only.
func NewRuleStrategy(anchors *AnchorClassifier) *RuleStrategy {
	return &RuleStrategy{anchors: anchors}
}

// Name implements Strategy.
func (*RuleStrategy) Name() string { return "rules" }

// Analyze implements Strategy.
func (r *RuleStrategy) Analyze(ctx context.Context, text string) (domain.QueryIntent, error) {
	return r.analyze(ctx, text), nil
}

func (r *RuleStrategy) analyze(ctx context.Context, text string) domain.QueryIntent {
	folded := textnorm.Fold(strings.ReplaceAll(text, "+", " и "))
	tokens := strings.Fields(folded)
	qt := classify(tokens, text)

	intent := domain.QueryIntent{
		Type:         qt,
		Modifiers:    extractModifiers(folded),
		SearchPhrase: searchPhrase(tokens, folded),
		MiniContext:  miniContext(tokens, qt),
		Source:       r.Name(),
	}

	switch qt {
	case domain.QueryMenu:
		intent.NeedsDecomposition = true
	case domain.QueryComplex:
		intent.Components = splitComponents(tokens, intent.Modifiers)
		intent.NeedsDecomposition = len(intent.Components) > 1
		if !intent.NeedsDecomposition {
			intent.Components = nil
			intent.Category = singleCategory(tokens)
		}
	default:
		intent.Category = singleCategory(tokens)
		if intent.Category == "" && !hasCategoryNoun(tokens) {
			r.applyAnchors(ctx, text, &intent)
		}
	}

	if intent.MiniContext == "" {
		intent.MiniContext = intent.SearchPhrase
	}
	return intent
}

// applyAnchors names the single component of a short or vague request by
// embedding similarity and narrows the category when the kind has one.
// Embedding failures leave the intent as the keywords made it.
func (r *RuleStrategy) applyAnchors(ctx context.Context, text string, intent *domain.QueryIntent) {
	if r.anchors == nil || strings.TrimSpace(text) == "" {
		return
	}
	log := logger.FromContext(ctx, nil)
	m, err := r.anchors.Classify(ctx, text)
	if err != nil {
		log.Debug("anchor classification skipped", zap.Error(err))
		return
	}
	if m.Component == "" {
		return
	}
	log.Debug("anchor classification",
		zap.String("component", m.Component),
		zap.String("category", m.Category),
		zap.Float64("score", m.Score))

	intent.Category = m.Category
	intent.Components = []domain.ComponentSpec{{
		Name:         m.Component,
		SearchPhrase: intent.SearchPhrase,
		Modifiers:    maps.Clone(intent.Modifiers),
		Count:        1,
		Priority:     1,
	}}
}

func hasCategoryNoun(tokens []string) bool {
	return slices.ContainsFunc(tokens, func(t string) bool {
		_, ok := categoryOf(t)
		return ok
	})
}

func searchPhrase(tokens []string, folded string) string {
	content := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if textnorm.IsStopword(t) && t != "без" {
			continue
		}
		content = append(content, t)
	}
	if phrase := strings.Join(content, " "); phrase != "" {
		return phrase
	}
	if folded != "" {
		return folded
	}
	return genericPhrase
}

// singleCategory returns the category when exactly one category noun is present.
func singleCategory(tokens []string) string {
	var found string
	for _, t := range tokens {
		c, ok := categoryOf(t)
		if !ok {
			continue
		}
		if found != "" && found != c {
			return ""
		}
		found = c
	}
	return found
}

// splitComponents cuts the request at "и"/"или"/"+" into components. Words
// after "без" are exclusions and never become components of their own.
func splitComponents(tokens []string, global map[string]float64) []domain.ComponentSpec {
	var (
		segments [][]string
		current  []string
	)
	flush := func() {
		if len(current) > 0 {
			segments = append(segments, current)
			current = nil
		}
	}
	for _, t := range tokens {
		if slices.Contains(splitters, t) {
			flush()
			continue
		}
		current = append(current, t)
	}
	flush()

	specs := make([]domain.ComponentSpec, 0, len(segments))
	for _, seg := range segments {
		phrase := searchPhrase(seg, strings.Join(seg, " "))
		if phrase == genericPhrase || phrase == "без" {
			continue
		}

		name := phrase
		for _, t := range seg {
			if c, ok := categoryOf(t); ok {
				name = c
				break
			}
		}

		mods := maps.Clone(global)
		if mods == nil {
			mods = map[string]float64{}
		}
		// A salad inside a spicy set is not forced to the hottest tier unless asked for directly.
		if name == "салат" && mods[domain.ModSpiciness] > 0.7 && !strings.Contains(phrase, "остр") {
			mods[domain.ModSpiciness] = 0.4
		}

		specs = append(specs, domain.ComponentSpec{
			Name:         name,
			SearchPhrase: phrase,
			Modifiers:    mods,
			Count:        1,
			Priority:     len(specs) + 1,
		})
	}
	return specs
}
