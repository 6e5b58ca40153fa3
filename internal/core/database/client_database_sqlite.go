package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/models"
)

var _ core.VectorStore = (*SQLiteStore)(nil)

// SQLiteStore keeps named collections in a single SQLite file under a data directory.
// Queries are brute force over the collection.
type SQLiteStore struct {
	mu         sync.RWMutex
	db         *sql.DB
	collection string
	dim        int
}

// NewSQLiteStore opens (or creates) dataPath/collections.db. dim 0 disables the dimension check.
func NewSQLiteStore(dataPath, collection string, dim int) (*SQLiteStore, error) {
	if dataPath == "" {
		dataPath = "./data"
	}
	if collection == "" {
		return nil, fmt.Errorf("collection name is empty")
	}
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataPath, "collections.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, collection: collection, dim: dim}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS collection_entries (
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		text       TEXT NOT NULL,
		embedding  TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);
	`)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Add overwrites entries by id; the whole batch commits or none of it does.
func (s *SQLiteStore) Add(ctx context.Context, entries []models.CollectionEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if err := s.checkDim(e.ID, e.Embedding); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO collection_entries (collection, id, text, embedding)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		embeddingJSON, err := json.Marshal(e.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, s.collection, e.ID, e.Text, string(embeddingJSON)); err != nil {
			return fmt.Errorf("inserting %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM collection_entries WHERE collection = ?`, s.collection).Scan(&n)
	return n, err
}

// Query ranks every entry of the collection by cosine distance and returns at most k, nearest first.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, k int) ([]models.QueryResult, error) {
	if k <= 0 {
		return []models.QueryResult{}, nil
	}
	if err := s.checkDim("query", embedding); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, embedding FROM collection_entries WHERE collection = ?
	`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	results := []models.QueryResult{}
	for rows.Next() {
		var (
			e             models.CollectionEntry
			embeddingJSON string
		)
		if err := rows.Scan(&e.ID, &e.Text, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &e.Embedding); err != nil {
			return nil, fmt.Errorf("decoding embedding of %s: %w", e.ID, err)
		}
		results = append(results, models.QueryResult{Entry: e, Distance: cosineDistance(embedding, e.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Entry.ID < results[j].Entry.ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *SQLiteStore) checkDim(id string, v []float32) error {
	if s.dim > 0 && len(v) != s.dim {
		return fmt.Errorf("%w: %s has %d, want %d", core.ErrDimension, id, len(v), s.dim)
	}
	return nil
}

// cosineDistance is 1 - cosine similarity; a zero vector is at distance 1 from everything.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
