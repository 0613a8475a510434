// Package vectorindex is a flat, exact cosine-similarity index over item
// embeddings with write-through persistence.
package vectorindex

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
	"github.com/kailas-cloud/dishfinder/internal/repository/snapshot"
)

// Persister stores and restores the whole index.
type Persister interface {
	Save(ctx context.Context, snap domain.VectorSnapshot) error
	Load(ctx context.Context) (domain.VectorSnapshot, snapshot.Report, error)
}

// Hit is one query result.
type Hit struct {
	ID    string
	Score float64
	Item  domain.Item
}

// Stats is a point-in-time summary of the index.
type Stats struct {
	Rows   int    `json:"rows"`
	Dim    int    `json:"dim"`
	Status string `json:"status"`
}

// Index holds ids in insertion order, one row per id, and the id's metadata.
// It has no internal locking: at most one writer at a time, and no reads
// concurrent with a write. Wrap it in Serialized when callers are concurrent.
type Index struct {
	ids   []string
	pos   map[string]int
	rows  [][]float32
	norms []float64
	items []domain.Item
	dim   int

	store  Persister
	status error
	logger *zap.Logger
}

// New creates an empty index. store may be nil for a purely in-memory index.
func New(store Persister, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		pos:    make(map[string]int),
		store:  store,
		logger: logger,
	}
}

// Len returns the number of rows.
func (ix *Index) Len() int { return len(ix.ids) }

// Dim returns the row width, 0 for an index that never held a vector.
func (ix *Index) Dim() int { return ix.dim }

// Status returns the last unrecoverable load or persist error, nil when healthy.
func (ix *Index) Status() error { return ix.status }

// Stats summarizes the index for the stats endpoint and health checks.
func (ix *Index) Stats() Stats {
	st := Stats{Rows: ix.Len(), Dim: ix.dim, Status: "ok"}
	if ix.status != nil {
		st.Status = ix.status.Error()
	}
	return st
}

// Get returns the stored metadata for id.
func (ix *Index) Get(id string) (domain.Item, bool) {
	i, ok := ix.pos[id]
	if !ok {
		return domain.Item{}, false
	}
	return ix.items[i], true
}

// Upsert inserts id or replaces its row and metadata in place. A vector of a
// different width is reconciled by zero padding the narrower side.
func (ix *Index) Upsert(ctx context.Context, id string, vector []float32, item domain.Item) error {
	if id == "" {
		return fmt.Errorf("upsert: empty id: %w", domain.ErrInvalidItem)
	}
	if len(vector) == 0 {
		return fmt.Errorf("upsert %s: empty vector: %w", id, domain.ErrInvalidItem)
	}

	switch {
	case len(vector) > ix.dim:
		if ix.dim > 0 {
			ix.logger.Warn("widening index",
				zap.Int("from", ix.dim), zap.Int("to", len(vector)))
		}
		ix.widen(len(vector))
	case len(vector) < ix.dim:
		ix.logger.Debug("padding vector",
			zap.String("id", id), zap.Int("width", len(vector)), zap.Int("dim", ix.dim))
	}

	row := make([]float32, ix.dim)
	copy(row, vector)
	item = item.Normalized()
	item.ID = id

	if i, ok := ix.pos[id]; ok {
		ix.rows[i] = row
		ix.norms[i] = norm(row)
		ix.items[i] = item
	} else {
		ix.pos[id] = len(ix.ids)
		ix.ids = append(ix.ids, id)
		ix.rows = append(ix.rows, row)
		ix.norms = append(ix.norms, norm(row))
		ix.items = append(ix.items, item)
	}
	metrics.IndexRows.Set(float64(ix.Len()))

	return ix.persist(ctx)
}

// Delete removes id, its row and its metadata.
func (ix *Index) Delete(ctx context.Context, id string) error {
	i, ok := ix.pos[id]
	if !ok {
		return fmt.Errorf("delete %s: %w", id, domain.ErrItemNotFound)
	}

	ix.ids = slices.Delete(ix.ids, i, i+1)
	ix.rows = slices.Delete(ix.rows, i, i+1)
	ix.norms = slices.Delete(ix.norms, i, i+1)
	ix.items = slices.Delete(ix.items, i, i+1)
	delete(ix.pos, id)
	for j := i; j < len(ix.ids); j++ {
		ix.pos[ix.ids[j]] = j
	}
	metrics.IndexRows.Set(float64(ix.Len()))

	return ix.persist(ctx)
}

// Query returns up to k hits by cosine similarity, best first. Equal scores
// keep insertion order. A query narrower than the index is treated as zero
// padded; extra query components beyond the index width contribute only to
// the query norm.
func (ix *Index) Query(vector []float32, k int) []Hit {
	if k <= 0 || len(ix.ids) == 0 || len(vector) == 0 {
		return []Hit{}
	}

	qn := norm(vector)
	width := min(len(vector), ix.dim)

	hits := make([]Hit, len(ix.ids))
	for i, row := range ix.rows {
		var score float64
		if qn > 0 && ix.norms[i] > 0 {
			var dot float64
			for j := range width {
				dot += float64(vector[j]) * float64(row[j])
			}
			score = dot / (qn * ix.norms[i])
		}
		hits[i] = Hit{ID: ix.ids[i], Score: score, Item: ix.items[i]}
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

// Load replaces the in-memory state with the persisted snapshot. Repairs are
// logged and counted. When nothing can be read the index stays empty, Status
// reports the error and the error is returned.
func (ix *Index) Load(ctx context.Context) error {
	if ix.store == nil {
		return nil
	}

	snap, rep, err := ix.store.Load(ctx)
	if err != nil {
		ix.reset()
		ix.status = err
		if errors.Is(err, domain.ErrSnapshotUnavailable) {
			ix.logger.Warn("vector snapshot unavailable, starting empty", zap.Error(err))
		} else {
			ix.logger.Error("load vector snapshot", zap.Error(err))
		}
		return fmt.Errorf("load index: %w", err)
	}
	if rep.Repaired {
		metrics.IndexRepairsTotal.Inc()
		ix.logger.Warn("vector index repaired on load",
			zap.Int("matrix_rows", rep.MatrixRows),
			zap.Int("meta_items", rep.MetaItems),
			zap.Int("kept", rep.Kept))
	}

	ix.reset()
	ix.dim = snap.Dim
	for i, item := range snap.Items {
		if _, dup := ix.pos[item.ID]; dup || item.ID == "" {
			ix.logger.Warn("skipping duplicate or empty id in snapshot", zap.String("id", item.ID))
			continue
		}
		row := make([]float32, ix.dim)
		copy(row, snap.Vectors[i])
		ix.pos[item.ID] = len(ix.ids)
		ix.ids = append(ix.ids, item.ID)
		ix.rows = append(ix.rows, row)
		ix.norms = append(ix.norms, norm(row))
		ix.items = append(ix.items, item)
	}
	ix.status = nil
	metrics.IndexRows.Set(float64(ix.Len()))

	ix.logger.Info("vector index loaded", zap.Int("rows", ix.Len()), zap.Int("dim", ix.dim))
	return nil
}

// Snapshot copies the current state.
func (ix *Index) Snapshot() domain.VectorSnapshot {
	snap := domain.VectorSnapshot{
		Dim:     ix.dim,
		Vectors: make([][]float32, len(ix.rows)),
		Items:   slices.Clone(ix.items),
	}
	for i, row := range ix.rows {
		snap.Vectors[i] = slices.Clone(row)
	}
	return snap
}

func (ix *Index) persist(ctx context.Context) error {
	if ix.store == nil {
		return nil
	}
	if err := ix.store.Save(ctx, ix.Snapshot()); err != nil {
		metrics.IndexPersistErrorsTotal.Inc()
		ix.status = err
		return fmt.Errorf("persist index: %w", err)
	}
	ix.status = nil
	return nil
}

func (ix *Index) widen(dim int) {
	for i, row := range ix.rows {
		wide := make([]float32, dim)
		copy(wide, row)
		ix.rows[i] = wide
	}
	ix.dim = dim
}

func (ix *Index) reset() {
	ix.ids = nil
	ix.rows = nil
	ix.norms = nil
	ix.items = nil
	ix.dim = 0
	ix.pos = make(map[string]int)
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}
