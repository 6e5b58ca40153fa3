package core

import (
	"context"

	"github.com/markdave123-py/ragchat/internal/models"
)

// VectorStore persists collection entries and answers nearest-neighbour queries.
// It abstracts SQLite/pgvector so higher layers never depend on a specific DB.
type VectorStore interface {
	// Add is idempotent per id: re-adding an id overwrites it.
	Add(ctx context.Context, entries []models.CollectionEntry) error
	Count(ctx context.Context) (int, error)
	// Query returns at most k entries, nearest first. An empty store yields an empty result.
	Query(ctx context.Context, embedding []float32, k int) ([]models.QueryResult, error)
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, key string) ([]byte, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
