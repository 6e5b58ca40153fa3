package db

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/markdave123-py/ragchat/internal/config"
	"github.com/markdave123-py/ragchat/internal/core"
)

// NewVectorStore opens the backend selected by VECTOR_BACKEND.
func NewVectorStore(ctx context.Context, cfg *config.Config) (core.VectorStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vector store configuration is nil")
	}

	switch cfg.VectorBackend {
	case "", "sqlite":
		s, err := NewSQLiteStore(cfg.VectorPath, cfg.Collection, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		log.Infof("vector store: sqlite collection %q at %s", cfg.Collection, cfg.VectorPath)
		return s, nil
	case "pgvector":
		s, err := NewPgVectorStore(ctx, cfg.DatabaseURL, cfg.Collection, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		log.Infof("vector store: pgvector collection %q", cfg.Collection)
		return s, nil
	}
	return nil, fmt.Errorf("unknown VECTOR_BACKEND %q", cfg.VectorBackend)
}
