package health

import "context"

// IndexStatus reports the vector index state.
type IndexStatus interface {
	Status() error
	Len() int
}

// Checker is any dependency with a health probe (embedding provider, language model gateway).
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger checks the embedding cache store.
type CachePinger interface {
	Ping(ctx context.Context) error
}
