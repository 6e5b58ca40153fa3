package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/markdave123-py/ragchat/internal/core"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// EnsureBootstrapped creates the schema on first use and checks that an existing
// schema was created for the same embedding dimension.
func EnsureBootstrapped(ctx context.Context, db *sql.DB, dim int) error {

	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := db.QueryRowContext(ctxBoot, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'ragchat_meta'
		)`).
		Scan(&exists)
	if err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}

	if !exists {
		return runBootstrap(ctxBoot, db, dim)
	}

	var storedDim int
	err = db.QueryRowContext(ctxBoot, `SELECT embed_dim FROM ragchat_meta WHERE version = 1`).Scan(&storedDim)
	if err == sql.ErrNoRows {
		return runBootstrap(ctxBoot, db, dim)
	}
	if err != nil {
		return fmt.Errorf("meta version check failed: %w", err)
	}
	if err := checkSchemaDim(storedDim, dim); err != nil {
		return err
	}

	log.Debug("pgvector: schema already bootstrapped")
	return nil
}

func checkSchemaDim(stored, configured int) error {
	if stored != configured {
		return fmt.Errorf("%w: schema built for %d, configured %d", core.ErrDimension, stored, configured)
	}
	return nil
}

// bootstrapScript renders initdb.sql for an embedding dimension.
func bootstrapScript(dim int) (string, error) {
	if dim <= 0 {
		return "", fmt.Errorf("embedding dimension must be > 0, got %d", dim)
	}
	sqlBytes, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return "", fmt.Errorf("read initdb.sql: %w", err)
	}
	return strings.ReplaceAll(string(sqlBytes), "{{dim}}", strconv.Itoa(dim)), nil
}

func runBootstrap(ctx context.Context, db *sql.DB, dim int) error {
	script, err := bootstrapScript(dim)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	log.Infof("pgvector: bootstrapped schema (dim %d)", dim)
	return nil
}
