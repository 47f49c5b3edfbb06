package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusIndexBackend stores visual frame embeddings in Milvus, one
// collection per video. The ordinal is an explicit primary key so a
// search result maps straight back to the frame manifest position.
type MilvusIndexBackend struct {
	mc  client.Client
	dim int
}

// NewMilvusIndexBackend connects using the given address plus the
// MILVUS_USERNAME / MILVUS_PASSWORD / MILVUS_API_KEY environment
// variables (the API key form is what Zilliz Cloud uses).
func NewMilvusIndexBackend(ctx context.Context, addr string, dim int) (*MilvusIndexBackend, error) {
	mc, err := client.NewClient(ctx, client.Config{
		Address:  addr,
		Username: os.Getenv("MILVUS_USERNAME"),
		Password: os.Getenv("MILVUS_PASSWORD"),
		APIKey:   os.Getenv("MILVUS_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	return &MilvusIndexBackend{mc: mc, dim: dim}, nil
}

func (b *MilvusIndexBackend) Close() error {
	return b.mc.Close()
}

// Replace drops any previous collection of the same name and writes
// the vectors fresh, so re-ingesting a video cannot leave stale
// embeddings behind.
func (b *MilvusIndexBackend) Replace(ctx context.Context, name string, vectors [][]float32) error {
	coll := sanitizeName(name)
	has, err := b.mc.HasCollection(ctx, coll)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if has {
		if err := b.mc.DropCollection(ctx, coll); err != nil {
			return fmt.Errorf("drop collection: %w", err)
		}
	}

	schema := entity.NewSchema()
	schema.WithField(entity.NewField().WithName("ordinal").WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
	schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(b.dim)))
	if err := b.mc.CreateCollection(ctx, schema, int32(1)); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	if len(vectors) > 0 {
		ordinals := make([]int64, len(vectors))
		for i := range vectors {
			ordinals[i] = int64(i)
		}
		_, err = b.mc.Insert(ctx, coll, "",
			entity.NewColumnInt64("ordinal", ordinals),
			entity.NewColumnFloatVector("vector", b.dim, vectors),
		)
		if err != nil {
			return fmt.Errorf("insert vectors: %w", err)
		}
	}

	idx, err := entity.NewIndexFlat(entity.L2)
	if err != nil {
		return fmt.Errorf("new flat index: %w", err)
	}
	if err := b.mc.CreateIndex(ctx, coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := b.mc.Flush(ctx, coll, false); err != nil {
		return fmt.Errorf("flush collection: %w", err)
	}
	return b.mc.LoadCollection(ctx, coll, false)
}

func (b *MilvusIndexBackend) Search(ctx context.Context, name string, vector []float32, k int) ([]IndexHit, error) {
	coll := sanitizeName(name)
	has, err := b.mc.HasCollection(ctx, coll)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !has {
		return nil, ErrCollectionMissing
	}
	if k <= 0 {
		k = 5
	}
	sp, err := entity.NewIndexFlatSearchParam()
	if err != nil {
		return nil, fmt.Errorf("search params: %w", err)
	}
	res, err := b.mc.Search(ctx, coll, []string{}, "", []string{"ordinal"},
		[]entity.Vector{entity.FloatVector(vector)}, "vector", entity.L2, k, sp)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	var hits []IndexHit
	for _, r := range res {
		var ords *entity.ColumnInt64
		for _, c := range r.Fields {
			if col, ok := c.(*entity.ColumnInt64); ok && col.Name() == "ordinal" {
				ords = col
			}
		}
		if ords == nil {
			continue
		}
		data := ords.Data()
		for i := 0; i < r.ResultCount && i < len(data) && i < len(r.Scores); i++ {
			hits = append(hits, IndexHit{Ordinal: int(data[i]), Distance: float64(r.Scores[i])})
		}
	}
	return hits, nil
}

func (b *MilvusIndexBackend) Has(ctx context.Context, name string) (bool, error) {
	return b.mc.HasCollection(ctx, sanitizeName(name))
}

func (b *MilvusIndexBackend) Drop(ctx context.Context, name string) error {
	coll := sanitizeName(name)
	has, err := b.mc.HasCollection(ctx, coll)
	if err != nil || !has {
		return err
	}
	return b.mc.DropCollection(ctx, coll)
}
