package domain

import (
	"math"
	"strings"
)

// CategoryPenalty multiplies the fused score of an item outside the requested category.
const CategoryPenalty = 0.75

// Weights are the fusion coefficients. They should sum to 1 for the fused
// score to stay calibrated; this is not checked at runtime.
type Weights struct {
	Vector  float64 `yaml:"vector" json:"vector"`
	Lexical float64 `yaml:"lexical" json:"lexical"`
	Rerank  float64 `yaml:"rerank" json:"rerank"`
}

// DefaultWeights returns 0.6/0.3/0.1.
func DefaultWeights() Weights {
	return Weights{Vector: 0.6, Lexical: 0.3, Rerank: 0.1}
}

// NormScore keeps x when it is already in [0,1] and squashes it with a logistic otherwise.
func NormScore(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	if x >= 0 && x <= 1 {
		return x
	}
	return 1 / (1 + math.Exp(-x))
}

// ScoredItem is an Item with its retrieval signals.
// The fused relevance is only ever produced by Rescore.
type ScoredItem struct {
	Item
	VectorScore  float64
	LexicalScore float64
	RerankScore  float64
	// Backfilled marks items added after hard filtering came up short.
	Backfilled bool

	relevance float64
}

// NewScoredItem creates a candidate from a vector hit.
func NewScoredItem(it Item, vectorScore float64) ScoredItem {
	s := ScoredItem{Item: it, VectorScore: vectorScore}
	s.Rescore(DefaultWeights(), "")
	return s
}

// Relevance returns the fused score in [0,1].
func (s *ScoredItem) Relevance() float64 { return s.relevance }

// Rescore recomputes relevance from the three signals, applying the category
// penalty when requestedCategory is set and not contained in the item's category.
func (s *ScoredItem) Rescore(w Weights, requestedCategory string) float64 {
	score := w.Vector*NormScore(s.VectorScore) +
		w.Lexical*NormScore(s.LexicalScore) +
		w.Rerank*NormScore(s.RerankScore)

	if requestedCategory != "" && !strings.Contains(
		strings.ToLower(s.Category), strings.ToLower(requestedCategory),
	) {
		score *= CategoryPenalty
	}

	s.relevance = clamp01(score)
	return s.relevance
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
