package embedding

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
)

// MemoEmbedder keeps the most recent embeddings in process memory.
// Repeated queries ("борщ", "том ям") skip the provider entirely.
type MemoEmbedder struct {
	inner domain.Embedder
	cache *lru.Cache[string, []float32]
}

// NewMemoEmbedder wraps inner with an LRU of size entries.
func NewMemoEmbedder(inner domain.Embedder, size int) (*MemoEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding memo: %w", err)
	}
	return &MemoEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns a remembered vector or delegates and remembers the result.
// Callers get their own copy of the vector.
func (m *MemoEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	vec, ok := m.cache.Get(text)
	metrics.CacheLookup("memo", ok)
	if ok {
		return domain.EmbeddingResult{Embedding: slices.Clone(vec)}, nil
	}

	res, err := m.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("memo embed: %w", err)
	}
	m.cache.Add(text, slices.Clone(res.Embedding))
	return res, nil
}

// Len returns the number of remembered texts.
func (m *MemoEmbedder) Len() int { return m.cache.Len() }
