// Package snapshot persists the vector index as two co-located files:
// a dense float32 matrix (embeddings.bin) and a metadata document (meta.json).
package snapshot

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dishfinder/internal/domain"
)

// File names inside the snapshot directory.
const (
	MatrixFile = "embeddings.bin"
	MetaFile   = "meta.json"
)

const (
	magic         = "DFVX"
	formatVersion = 1
	headerSize    = 16 // magic + version + rows + cols
	maxDim        = 1 << 16
)

// Report describes what Load had to repair.
type Report struct {
	MatrixRows int
	MetaItems  int
	Kept       int
	// Repaired is set when rows were dropped to reach a consistent prefix.
	Repaired bool
}

type metaDocument struct {
	Version int           `json:"version"`
	Dim     int           `json:"dim"`
	Items   []domain.Item `json:"items"`
}

// Store reads and writes snapshots in one directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// New creates a snapshot store rooted at dir.
func New(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string { return s.dir }

// Save writes both artifacts, each atomically. The matrix goes first so a crash
// between the two renames leaves extra rows, which Load truncates away.
func (s *Store) Save(_ context.Context, snap domain.VectorSnapshot) error {
	if len(snap.Vectors) != len(snap.Items) {
		return fmt.Errorf("save snapshot: %d rows for %d items: %w",
			len(snap.Vectors), len(snap.Items), domain.ErrIndexInconsistent)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	if err := writeAtomic(filepath.Join(s.dir, MatrixFile), func(w io.Writer) error {
		return encodeMatrix(w, snap.Dim, snap.Vectors)
	}); err != nil {
		return fmt.Errorf("write matrix: %w", err)
	}

	if err := writeAtomic(filepath.Join(s.dir, MetaFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		return enc.Encode(metaDocument{Version: formatVersion, Dim: snap.Dim, Items: snap.Items})
	}); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

// Load reads the snapshot. When both files are missing it returns
// domain.ErrSnapshotUnavailable. A row/metadata count mismatch or a short
// matrix body is repaired by truncating to the common prefix.
func (s *Store) Load(_ context.Context) (domain.VectorSnapshot, Report, error) {
	matrixPath := filepath.Join(s.dir, MatrixFile)
	metaPath := filepath.Join(s.dir, MetaFile)

	dim, rows, matrixErr := readMatrix(matrixPath)
	items, metaDim, metaErr := readMeta(metaPath)

	matrixMissing := errors.Is(matrixErr, fs.ErrNotExist)
	metaMissing := errors.Is(metaErr, fs.ErrNotExist)
	if matrixMissing && metaMissing {
		return domain.VectorSnapshot{}, Report{}, fmt.Errorf("no snapshot in %s: %w", s.dir, domain.ErrSnapshotUnavailable)
	}
	if matrixErr != nil && !matrixMissing {
		return domain.VectorSnapshot{}, Report{}, fmt.Errorf("read matrix: %w: %w", domain.ErrSnapshotUnavailable, matrixErr)
	}
	if metaErr != nil && !metaMissing {
		return domain.VectorSnapshot{}, Report{}, fmt.Errorf("read meta: %w: %w", domain.ErrSnapshotUnavailable, metaErr)
	}

	if dim == 0 {
		dim = metaDim
	}
	if metaDim != 0 && metaDim != dim {
		s.logger.Warn("snapshot dimension mismatch, trusting matrix",
			zap.Int("matrix_dim", dim), zap.Int("meta_dim", metaDim))
	}

	rep := Report{MatrixRows: len(rows), MetaItems: len(items)}
	n := min(len(rows), len(items))
	rep.Kept = n
	if n != len(rows) || n != len(items) {
		rep.Repaired = true
		s.logger.Warn("snapshot inconsistent, truncated to common prefix",
			zap.Int("matrix_rows", len(rows)),
			zap.Int("meta_items", len(items)),
			zap.Int("kept", n),
			zap.Error(domain.ErrIndexInconsistent))
	}

	snap := domain.VectorSnapshot{
		Dim:     dim,
		Vectors: rows[:n],
		Items:   make([]domain.Item, n),
	}
	for i := range n {
		snap.Items[i] = items[i].Normalized()
	}
	return snap, rep, nil
}

func encodeMatrix(w io.Writer, dim int, rows [][]float32) error {
	var hdr [headerSize]byte
	copy(hdr[:4], magic)
	binary.LittleEndian.PutUint32(hdr[4:8], formatVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(rows))) //nolint:gosec // row count fits uint32
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(dim))      //nolint:gosec // width fits uint32
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("header: %w", err)
	}

	buf := make([]byte, 4*dim)
	for i, row := range rows {
		if len(row) != dim {
			return fmt.Errorf("row %d has width %d, want %d: %w", i, len(row), dim, domain.ErrIndexInconsistent)
		}
		for j, v := range row {
			binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// readMatrix returns the complete rows present in the file. A body shorter
// than the header promises yields fewer rows, not an error. The header is
// never trusted for allocation beyond what the file actually holds.
func readMatrix(path string) (int, [][]float32, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from configured snapshot dir
	if err != nil {
		return 0, nil, err //nolint:wrapcheck // caller inspects fs.ErrNotExist
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, nil, fmt.Errorf("stat: %w", err)
	}

	r := bufio.NewReader(f)
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, fmt.Errorf("header: %w", err)
	}
	if string(hdr[:4]) != magic {
		return 0, nil, fmt.Errorf("bad magic %q", hdr[:4])
	}
	if v := binary.LittleEndian.Uint32(hdr[4:8]); v != formatVersion {
		return 0, nil, fmt.Errorf("unsupported version %d", v)
	}
	declared := int(binary.LittleEndian.Uint32(hdr[8:12]))
	dim := int(binary.LittleEndian.Uint32(hdr[12:16]))
	if dim == 0 {
		return 0, nil, nil
	}
	if dim > maxDim {
		return 0, nil, fmt.Errorf("width %d exceeds limit %d", dim, maxDim)
	}
	body := max(info.Size()-headerSize, 0)
	if fits := int(body / int64(4*dim)); declared > fits {
		declared = fits
	}

	rows := make([][]float32, 0, declared)
	buf := make([]byte, 4*dim)
	for range declared {
		if _, err := io.ReadFull(r, buf); err != nil {
			break
		}
		row := make([]float32, dim)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		rows = append(rows, row)
	}
	return dim, rows, nil
}

func readMeta(path string) ([]domain.Item, int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from configured snapshot dir
	if err != nil {
		return nil, 0, err //nolint:wrapcheck // caller inspects fs.ErrNotExist
	}
	var doc metaDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("decode: %w", err)
	}
	return doc.Items, doc.Dim, nil
}

// writeAtomic writes through a temp file in the target directory and renames it into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
