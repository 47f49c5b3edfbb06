package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// PgVectorDocBackend keeps document collections in a single Postgres
// table with a pgvector embedding column. Similarity uses the cosine
// distance operator, matching the local backend's metric.
type PgVectorDocBackend struct {
	pool *pgxpool.Pool
	dim  int
}

func NewPgVectorDocBackend(ctx context.Context, dbURL string, dim int) (*PgVectorDocBackend, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	b := &PgVectorDocBackend{pool: pool, dim: dim}
	if err := b.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *PgVectorDocBackend) ensureSchema(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("enable pgvector extension: %w", err)
	}
	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS documents (
			collection VARCHAR(255) NOT NULL,
			ordinal INTEGER NOT NULL,
			text TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d),
			PRIMARY KEY (collection, ordinal)
		);`, b.dim)
	if _, err := b.pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	if _, err := b.pool.Exec(ctx,
		"CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents (collection);"); err != nil {
		return fmt.Errorf("create collection index: %w", err)
	}
	return nil
}

func (b *PgVectorDocBackend) Close() {
	b.pool.Close()
}

func (b *PgVectorDocBackend) Replace(ctx context.Context, name string, docs []Document) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM documents WHERE collection = $1", name); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	for _, d := range docs {
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO documents (collection, ordinal, text, metadata, embedding)
			VALUES ($1, $2, $3, $4, $5)`,
			name, d.Ordinal, d.Text, meta, pgvector.NewVector(d.Vector))
		if err != nil {
			return fmt.Errorf("insert document %d: %w", d.Ordinal, err)
		}
	}
	return tx.Commit(ctx)
}

func (b *PgVectorDocBackend) Query(ctx context.Context, name string, vector []float32, k int, filter map[string]any) ([]DocHit, error) {
	has, err := b.Has(ctx, name)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, ErrCollectionMissing
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}
	if k <= 0 {
		k = 5
	}
	rows, err := b.pool.Query(ctx, `
		SELECT ordinal, text, metadata, embedding <=> $2 AS distance
		FROM documents
		WHERE collection = $1 AND metadata @> $3
		ORDER BY embedding <=> $2, ordinal
		LIMIT $4`,
		name, pgvector.NewVector(vector), filterJSON, k)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanDocHits(rows)
}

func (b *PgVectorDocBackend) All(ctx context.Context, name string, filter map[string]any) ([]DocHit, error) {
	has, err := b.Has(ctx, name)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, ErrCollectionMissing
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}
	rows, err := b.pool.Query(ctx, `
		SELECT ordinal, text, metadata, 0.0 AS distance
		FROM documents
		WHERE collection = $1 AND metadata @> $2
		ORDER BY ordinal`,
		name, filterJSON)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanDocHits(rows)
}

func scanDocHits(rows pgx.Rows) ([]DocHit, error) {
	var hits []DocHit
	for rows.Next() {
		var h DocHit
		var meta []byte
		if err := rows.Scan(&h.Ordinal, &h.Text, &meta, &h.Distance); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &h.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (b *PgVectorDocBackend) Has(ctx context.Context, name string) (bool, error) {
	var count int
	err := b.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM documents WHERE collection = $1", name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count collection: %w", err)
	}
	return count > 0, nil
}

func (b *PgVectorDocBackend) Drop(ctx context.Context, name string) error {
	_, err := b.pool.Exec(ctx, "DELETE FROM documents WHERE collection = $1", name)
	return err
}
