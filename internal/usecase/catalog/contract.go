package catalog

import (
	"context"

	"github.com/kailas-cloud/dishfinder/internal/domain"
)

// Index is the write side of the vector index.
type Index interface {
	Upsert(ctx context.Context, id string, vector []float32, item domain.Item) error
	Delete(ctx context.Context, id string) error
	Get(id string) (domain.Item, bool)
}

// Source lists the whole catalog.
type Source interface {
	List(ctx context.Context) ([]domain.Item, error)
}

// Fallback produces a deterministic vector when the embedder fails.
type Fallback interface {
	Vector(text string) []float32
}
