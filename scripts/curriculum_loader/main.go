// Command curriculum_loader copies the YAML curriculum into the
// curriculum_documents table in one transaction, so the server can run with
// POLYBOT_CURRICULUM_SOURCE=database.
//
// Run it from the repository root: go run ./scripts/curriculum_loader
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"polybot/internal/curriculum"
	"polybot/internal/database"
	"polybot/internal/logging"
)

func main() {
	dir := flag.String("dir", "", "curriculum directory (modules/*.yaml, scenarios.yaml); default is the built-in course")
	flag.Parse()

	logger, err := logging.New("info", "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), *dir, logger); err != nil {
		logger.Fatal("load failed, changes rolled back", zap.Error(err))
	}
}

func run(ctx context.Context, dir string, logger *zap.Logger) error {
	start := time.Now()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return errors.New("DATABASE_URL is not set")
	}

	catalog, err := loadCatalog(dir)
	if err != nil {
		return err
	}

	db, err := database.Connect(ctx, dbURL, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	n, err := load(ctx, db, catalog)
	if err != nil {
		return err
	}
	logger.Info("curriculum loaded", zap.Int("documents", n), zap.Duration("took", time.Since(start)))
	return nil
}

func loadCatalog(dir string) (*curriculum.Catalog, error) {
	if dir == "" {
		return curriculum.Embedded()
	}
	return curriculum.LoadFS(os.DirFS(dir))
}

// load writes every document of c inside a single transaction.
func load(ctx context.Context, db *database.DB, c *curriculum.Catalog) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := curriculum.Export(c, func(kind, id string, body []byte) error {
		return db.PutDocument(ctx, tx, kind, id, body)
	})
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
