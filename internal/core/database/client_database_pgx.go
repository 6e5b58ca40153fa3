package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/models"
)

var _ core.VectorStore = (*PgVectorStore)(nil)

// PgVectorStore keeps a named collection in Postgres and ranks by cosine distance.
type PgVectorStore struct {
	db         *sql.DB
	collection string
	dim        int
}

func NewPgVectorStore(ctx context.Context, databaseURL, collection string, dim int) (*PgVectorStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be > 0, got %d", dim)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, dim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &PgVectorStore{db: db, collection: collection, dim: dim}, nil
}

func (c *PgVectorStore) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Add upserts entries in a single transaction.
func (c *PgVectorStore) Add(ctx context.Context, entries []models.CollectionEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Embedding) != c.dim {
			return fmt.Errorf("%w: %s has %d, want %d", core.ErrDimension, e.ID, len(e.Embedding), c.dim)
		}
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO collection_entries (collection, id, text, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, id) DO UPDATE
		SET text = EXCLUDED.text, embedding = EXCLUDED.embedding
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range entries {
		e := &entries[i]
		if _, err := stmt.ExecContext(ctx, c.collection, e.ID, e.Text, pgvector.NewVector(e.Embedding)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (c *PgVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM collection_entries WHERE collection = $1`, c.collection).Scan(&n)
	return n, err
}

// Query returns the k entries closest to embedding, nearest first.
func (c *PgVectorStore) Query(ctx context.Context, embedding []float32, k int) ([]models.QueryResult, error) {
	if k <= 0 {
		return []models.QueryResult{}, nil
	}
	if len(embedding) != c.dim {
		return nil, fmt.Errorf("%w: query has %d, want %d", core.ErrDimension, len(embedding), c.dim)
	}

	const q = `
		SELECT id, text, embedding, embedding <=> $2 AS distance
		FROM collection_entries
		WHERE collection = $1
		ORDER BY distance, id
		LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, q, c.collection, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.QueryResult{}
	for rows.Next() {
		var (
			r   models.QueryResult
			emb pgvector.Vector
		)
		if err := rows.Scan(&r.Entry.ID, &r.Entry.Text, &emb, &r.Distance); err != nil {
			return nil, err
		}
		r.Entry.Embedding = emb.Slice()
		out = append(out, r)
	}
	return out, rows.Err()
}
