package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// LocalDocBackend keeps each document collection as a JSON file under
// dir. Query ranks by cosine distance, matching the hosted document
// store it stands in for. Suitable for single-process deployments and
// tests; the pgvector backend covers shared deployments.
type LocalDocBackend struct {
	dir string
}

func NewLocalDocBackend(dir string) *LocalDocBackend {
	return &LocalDocBackend{dir: dir}
}

func (b *LocalDocBackend) path(name string) string {
	return filepath.Join(b.dir, sanitizeName(name)+".docs.json")
}

func (b *LocalDocBackend) Replace(_ context.Context, name string, docs []Document) error {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return err
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshal collection %s: %w", name, err)
	}
	tmp := b.path(name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, b.path(name))
}

func (b *LocalDocBackend) load(name string) ([]Document, error) {
	data, err := os.ReadFile(b.path(name))
	if os.IsNotExist(err) {
		return nil, ErrCollectionMissing
	}
	if err != nil {
		return nil, err
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", name, err)
	}
	return docs, nil
}

func (b *LocalDocBackend) Query(_ context.Context, name string, vector []float32, k int, filter map[string]any) ([]DocHit, error) {
	docs, err := b.load(name)
	if err != nil {
		return nil, err
	}
	hits := make([]DocHit, 0, len(docs))
	for _, d := range docs {
		if !matchesFilter(d.Metadata, filter) {
			continue
		}
		hits = append(hits, DocHit{
			Ordinal:  d.Ordinal,
			Text:     d.Text,
			Distance: cosineDistance(vector, d.Vector),
			Metadata: d.Metadata,
		})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (b *LocalDocBackend) All(_ context.Context, name string, filter map[string]any) ([]DocHit, error) {
	docs, err := b.load(name)
	if err != nil {
		return nil, err
	}
	hits := make([]DocHit, 0, len(docs))
	for _, d := range docs {
		if !matchesFilter(d.Metadata, filter) {
			continue
		}
		hits = append(hits, DocHit{Ordinal: d.Ordinal, Text: d.Text, Metadata: d.Metadata})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Ordinal < hits[b].Ordinal })
	return hits, nil
}

func (b *LocalDocBackend) Has(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(b.path(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (b *LocalDocBackend) Drop(_ context.Context, name string) error {
	err := os.Remove(b.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// matchesFilter is metadata equality over every filter key. JSON
// round-trips numbers to float64, so numeric comparisons coerce both
// sides.
func matchesFilter(meta, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := meta[key]
		if !ok {
			return false
		}
		if !looseEqual(got, want) {
			return false
		}
	}
	return true
}

func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// cosineDistance is 1 - cosine similarity; zero vectors are treated as
// maximally distant.
func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
