package storage

import (
	"context"
	"errors"
)

// ErrCollectionMissing is returned by backends when a named collection
// or index has never been written. The store adapter maps it to a
// NotIndexedError naming the video and modality.
var ErrCollectionMissing = errors.New("collection does not exist")

// IndexHit is one nearest-neighbor result from a vector index.
// Ordinal is the position in the stored vector sequence, which by the
// store's ordinal-consistency rule identifies Frame[Ordinal].
type IndexHit struct {
	Ordinal  int
	Distance float64
}

// IndexBackend is a flat nearest-neighbor vector index over named,
// persisted collections (L2 distance, lower is better).
type IndexBackend interface {
	// Replace atomically overwrites the named index with the given
	// vectors; any prior index of the same name is dropped first.
	Replace(ctx context.Context, name string, vectors [][]float32) error
	Search(ctx context.Context, name string, vector []float32, k int) ([]IndexHit, error)
	Has(ctx context.Context, name string) (bool, error)
	Drop(ctx context.Context, name string) error
}

// Document is one entry of a document collection: text, its embedding,
// and arbitrary metadata rendered to the caller with each hit.
type Document struct {
	Ordinal  int            `json:"ordinal"`
	Text     string         `json:"text"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata"`
}

// DocHit is one similarity result from a document collection.
type DocHit struct {
	Ordinal  int
	Text     string
	Distance float64
	Metadata map[string]any
}

// DocBackend is a document store with named collections and
// metadata-filtered similarity query (cosine distance, lower is
// better).
type DocBackend interface {
	Replace(ctx context.Context, name string, docs []Document) error
	Query(ctx context.Context, name string, vector []float32, k int, filter map[string]any) ([]DocHit, error)
	// All returns every document matching the filter in ordinal order.
	All(ctx context.Context, name string, filter map[string]any) ([]DocHit, error)
	Has(ctx context.Context, name string) (bool, error)
	Drop(ctx context.Context, name string) error
}
