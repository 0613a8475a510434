package snapshot

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/dishfinder/internal/domain"
)

func sampleSnapshot() domain.VectorSnapshot {
	return domain.VectorSnapshot{
		Dim: 3,
		Vectors: [][]float32{
			{1, 0, 0},
			{0, 0.5, -0.25},
		},
		Items: []domain.Item{
			{ID: "1", Name: "Том Ям", Category: "Супы", Price: 450, SpiceLevel: 2, IsVegan: 1,
				Ingredients: []string{"лемонграсс"}, Tags: []string{}},
			{ID: "2", Name: "Борщ", Category: "Супы", Price: 300, SpiceLevel: 1,
				Ingredients: []string{}, Tags: []string{"классика"}},
		},
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := New(t.TempDir(), nil)
	want := sampleSnapshot()

	if err := s.Save(context.Background(), want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, rep, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Repaired {
		t.Errorf("expected clean load, got %+v", rep)
	}
	if got.Dim != 3 || got.Len() != 2 {
		t.Fatalf("expected 2 rows of width 3, got %d of %d", got.Len(), got.Dim)
	}
	if got.Vectors[1][2] != -0.25 {
		t.Errorf("expected -0.25, got %v", got.Vectors[1][2])
	}
	if got.Items[0].Name != "Том Ям" || got.Items[1].Tags[0] != "классика" {
		t.Errorf("metadata mismatch: %+v", got.Items)
	}
}

func TestLoad_NothingOnDisk(t *testing.T) {
	s := New(t.TempDir(), nil)
	_, _, err := s.Load(context.Background())
	if !errors.Is(err, domain.ErrSnapshotUnavailable) {
		t.Fatalf("expected ErrSnapshotUnavailable, got %v", err)
	}
}

func TestLoad_MetaLongerThanMatrix(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	snap := sampleSnapshot()
	if err := s.Save(context.Background(), snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Rewrite meta with an extra item the matrix does not have.
	doc := metaDocument{Version: 1, Dim: 3, Items: append(snap.Items, domain.Item{ID: "3", Name: "Хачапури"})}
	data, _ := json.Marshal(doc)
	if err := os.WriteFile(filepath.Join(dir, MetaFile), data, 0o600); err != nil {
		t.Fatal(err)
	}

	got, rep, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rep.Repaired || rep.Kept != 2 || rep.MetaItems != 3 {
		t.Errorf("unexpected report: %+v", rep)
	}
	if got.Len() != 2 || len(got.Vectors) != 2 {
		t.Errorf("expected truncation to 2 rows, got %d/%d", got.Len(), len(got.Vectors))
	}
}

func TestLoad_ShortMatrixBody(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	if err := s.Save(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(dir, MatrixFile)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	// Cut the last row in half.
	if err := os.Truncate(path, info.Size()-6); err != nil {
		t.Fatal(err)
	}

	got, rep, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rep.Repaired || got.Len() != 1 || got.Items[0].ID != "1" {
		t.Errorf("expected one surviving row, got %d (report %+v)", got.Len(), rep)
	}
}

// writeHeader writes a matrix file whose header claims rows×dim, followed by body.
func writeHeader(t *testing.T, dir string, rows, dim uint32, body []byte) {
	t.Helper()
	buf := make([]byte, headerSize, headerSize+len(body))
	copy(buf, magic)
	binary.LittleEndian.PutUint32(buf[4:8], formatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], rows)
	binary.LittleEndian.PutUint32(buf[12:16], dim)
	buf = append(buf, body...)
	if err := os.WriteFile(filepath.Join(dir, MatrixFile), buf, 0o600); err != nil {
		t.Fatal(err)
	}
}

func writeMeta(t *testing.T, dir string, items []domain.Item) {
	t.Helper()
	data, err := json.Marshal(metaDocument{Version: formatVersion, Dim: 2, Items: items})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetaFile), data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_HeaderOverstatesRows(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		wantRows int
	}{
		{name: "no body", wantRows: 0},
		{name: "one row", body: []byte{0, 0, 0x80, 0x3f, 0, 0, 0, 0}, wantRows: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeHeader(t, dir, math.MaxUint32, 2, tt.body)
			writeMeta(t, dir, []domain.Item{{ID: "1", Name: "Борщ"}, {ID: "2", Name: "Том Ям"}})

			got, rep, err := New(dir, nil).Load(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Len() != tt.wantRows || rep.MatrixRows != tt.wantRows || !rep.Repaired {
				t.Errorf("got %d rows (report %+v), want %d", got.Len(), rep, tt.wantRows)
			}
		})
	}
}

func TestLoad_HeaderWidthTooLarge(t *testing.T) {
	dir := t.TempDir()
	writeHeader(t, dir, 1, math.MaxUint32, nil)
	writeMeta(t, dir, nil)

	_, _, err := New(dir, nil).Load(context.Background())
	if !errors.Is(err, domain.ErrSnapshotUnavailable) {
		t.Fatalf("expected ErrSnapshotUnavailable, got %v", err)
	}
}

func TestLoad_MissingMatrixKeepsNothing(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	if err := s.Save(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, MatrixFile)); err != nil {
		t.Fatal(err)
	}

	got, rep, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Len() != 0 || !rep.Repaired {
		t.Errorf("expected empty repaired snapshot, got %d rows (%+v)", got.Len(), rep)
	}
	if got.Dim != 3 {
		t.Errorf("expected dim from meta, got %d", got.Dim)
	}
}

func TestLoad_CorruptMatrix(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, MatrixFile), []byte("NOPE0000000000000000"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, _, err := New(dir, nil).Load(context.Background())
	if !errors.Is(err, domain.ErrSnapshotUnavailable) {
		t.Fatalf("expected ErrSnapshotUnavailable, got %v", err)
	}
}

func TestSave_RejectsMismatchedRows(t *testing.T) {
	snap := sampleSnapshot()
	snap.Vectors = snap.Vectors[:1]
	err := New(t.TempDir(), nil).Save(context.Background(), snap)
	if !errors.Is(err, domain.ErrIndexInconsistent) {
		t.Fatalf("expected ErrIndexInconsistent, got %v", err)
	}
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := New(dir, nil).Save(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected exactly two files, got %v", names)
	}
}
