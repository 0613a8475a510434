package embedding

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/dishfinder/internal/domain"
)

// PseudoEmbedder produces a stable pseudo-random unit vector per text. It is
// the last-resort vector when the real provider fails, so retrieval still
// returns something deterministic for the same input.
type PseudoEmbedder struct {
	dim int
}

// NewPseudoEmbedder creates a fallback embedder of width dim (DefaultDimensions when dim <= 0).
func NewPseudoEmbedder(dim int) *PseudoEmbedder {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &PseudoEmbedder{dim: dim}
}

// Vector returns the unit vector for text.
func (p *PseudoEmbedder) Vector(text string) []float32 {
	seed := xxhash.Sum64String(text)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // not for security

	raw := make([]float64, p.dim)
	var sum float64
	for i := range raw {
		raw[i] = rng.NormFloat64()
		sum += raw[i] * raw[i]
	}
	n := math.Sqrt(sum)

	out := make([]float32, p.dim)
	for i, v := range raw {
		out[i] = float32(v / n)
	}
	return out
}

// Embed implements domain.Embedder and never fails.
func (p *PseudoEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: p.Vector(text)}, nil
}
