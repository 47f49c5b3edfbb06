package storage

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FlatIndex is an exhaustive nearest-neighbor index using squared L2
// distance, the same metric a flat L2 index returns in the reference
// backends. Exhaustive scan is fine at this scale: one video yields
// hundreds of sampled frames, not millions.
type FlatIndex struct {
	Dim     int
	Vectors [][]float32
}

// Add appends vectors, fixing the dimension on first insert.
func (ix *FlatIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if ix.Dim == 0 {
			ix.Dim = len(v)
		}
		if len(v) != ix.Dim {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(v), ix.Dim)
		}
		ix.Vectors = append(ix.Vectors, v)
	}
	return nil
}

// Search returns the k nearest vectors by squared L2 distance,
// ascending, ties broken by ordinal.
func (ix *FlatIndex) Search(query []float32, k int) []IndexHit {
	hits := make([]IndexHit, 0, len(ix.Vectors))
	for i, v := range ix.Vectors {
		hits = append(hits, IndexHit{Ordinal: i, Distance: squaredL2(query, v)})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

func squaredL2(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Save persists the index to path (temp file + rename).
func (ix *FlatIndex) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(ix); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode index: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadFlatIndex reads an index previously written by Save.
func LoadFlatIndex(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ix FlatIndex
	if err := gob.NewDecoder(f).Decode(&ix); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", path, err)
	}
	return &ix, nil
}

// FileIndexBackend persists one FlatIndex per name under dir,
// reloadable by name across process restarts.
type FileIndexBackend struct {
	dir string
}

func NewFileIndexBackend(dir string) *FileIndexBackend {
	return &FileIndexBackend{dir: dir}
}

func (b *FileIndexBackend) path(name string) string {
	return filepath.Join(b.dir, sanitizeName(name)+".index")
}

func (b *FileIndexBackend) Replace(_ context.Context, name string, vectors [][]float32) error {
	ix := &FlatIndex{}
	if err := ix.Add(vectors); err != nil {
		return err
	}
	return ix.Save(b.path(name))
}

func (b *FileIndexBackend) Search(_ context.Context, name string, vector []float32, k int) ([]IndexHit, error) {
	ix, err := LoadFlatIndex(b.path(name))
	if os.IsNotExist(err) {
		return nil, ErrCollectionMissing
	}
	if err != nil {
		return nil, err
	}
	return ix.Search(vector, k), nil
}

func (b *FileIndexBackend) Has(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(b.path(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (b *FileIndexBackend) Drop(_ context.Context, name string) error {
	err := os.Remove(b.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// sanitizeName keeps collection names filesystem- and backend-safe.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}
