package embedding

import (
	"context"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
	"github.com/kailas-cloud/dishfinder/internal/textnorm"
)

// DefaultDimensions is the width of the local model's vectors.
const DefaultDimensions = 384

const (
	tokenWeight   = 1.0
	stemWeight    = 0.7
	trigramWeight = 0.35
)

// HashingEmbedder is the local embedding model: signed feature hashing of
// folded tokens, their stems and character trigrams into a fixed number of
// buckets, L2 normalized. Identical input always yields the identical vector.
type HashingEmbedder struct {
	dim int
}

// NewHashingEmbedder creates a local embedder of width dim (DefaultDimensions when dim <= 0).
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &HashingEmbedder{dim: dim}
}

// Dimensions returns the vector width.
func (h *HashingEmbedder) Dimensions() int { return h.dim }

// Embed implements domain.Embedder. It never fails; text without content
// tokens yields the zero vector.
func (h *HashingEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()

	vec := make([]float64, h.dim)
	tokens := textnorm.ContentTokens(text)
	for _, tok := range tokens {
		h.add(vec, "w:"+tok, tokenWeight)
		if stem := textnorm.Stem(tok); stem != tok {
			h.add(vec, "s:"+stem, stemWeight)
		}
		padded := []rune("#" + tok + "#")
		for i := 0; i+3 <= len(padded); i++ {
			h.add(vec, "t:"+string(padded[i:i+3]), trigramWeight)
		}
	}

	out := make([]float32, h.dim)
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum > 0 {
		n := math.Sqrt(sum)
		for i, v := range vec {
			out[i] = float32(v / n)
		}
	}

	metrics.ObserveEmbedding("local", "hashing", metrics.EmbedOK, time.Since(start), len(tokens))

	return domain.EmbeddingResult{
		Embedding:    out,
		PromptTokens: len(tokens),
		TotalTokens:  len(tokens),
	}, nil
}

// HealthCheck always succeeds for the in-process model.
func (h *HashingEmbedder) HealthCheck(context.Context) error { return nil }

func (h *HashingEmbedder) add(vec []float64, feature string, weight float64) {
	sum := xxhash.Sum64String(feature)
	bucket := sum % uint64(h.dim) //nolint:gosec // dim is positive
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}
