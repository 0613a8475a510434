package vectorindex

import (
	"context"
	"sync"

	"github.com/kailas-cloud/dishfinder/internal/domain"
)

// Serialized guards an Index for concurrent callers: queries share a read
// lock, mutations and loads take the write lock.
type Serialized struct {
	mu sync.RWMutex
	ix *Index
}

// NewSerialized wraps ix.
func NewSerialized(ix *Index) *Serialized {
	return &Serialized{ix: ix}
}

func (s *Serialized) Upsert(ctx context.Context, id string, vector []float32, item domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ix.Upsert(ctx, id, vector, item)
}

func (s *Serialized) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ix.Delete(ctx, id)
}

func (s *Serialized) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ix.Load(ctx)
}

func (s *Serialized) Query(vector []float32, k int) []Hit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ix.Query(vector, k)
}

func (s *Serialized) Get(id string) (domain.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ix.Get(id)
}

func (s *Serialized) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ix.Len()
}

func (s *Serialized) Status() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ix.Status()
}

func (s *Serialized) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ix.Stats()
}
