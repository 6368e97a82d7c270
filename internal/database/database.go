package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver for local runs and tests
)

// Dialect selects the SQL flavour for the few statements that differ.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DB wraps the connection pool together with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Retry settings for the initial ping. The database container usually
// starts slower than the server.
var (
	MaxRetries = 10
	RetryDelay = 3 * time.Second
)

// ParseDSN maps a DATABASE_URL to a driver name, dialect and driver source.
//
//	postgres://... or postgresql://...  -> pgx
//	sqlite:path                         -> sqlite, "path"
//	file:...                            -> sqlite, unchanged
func ParseDSN(dsn string) (driver string, dialect Dialect, source string, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", Postgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return "sqlite", SQLite, strings.TrimPrefix(dsn, "sqlite:"), nil
	case strings.HasPrefix(dsn, "file:"):
		return "sqlite", SQLite, dsn, nil
	case dsn == "":
		return "", "", "", fmt.Errorf("DATABASE_URL is empty")
	default:
		return "", "", "", fmt.Errorf("unsupported DATABASE_URL scheme: %q", dsn)
	}
}

// Connect opens the pool and pings it until the server answers or the
// retries run out.
func Connect(ctx context.Context, dsn string, log *zap.Logger) (*DB, error) {
	driver, dialect, source, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	// sql.Open only prepares the pool; the first Ping dials.
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection (driver error): %w", err)
	}
	if dialect == SQLite {
		// One writer at a time; also keeps in-memory databases on a single connection.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply sqlite pragma: %w", err)
		}
	}

	var pingErr error
	for i := 1; i <= MaxRetries; i++ {
		pingErr = db.PingContext(ctx)
		if pingErr == nil {
			return &DB{DB: db, Dialect: dialect}, nil
		}

		log.Warn("database not ready, retrying",
			zap.Int("attempt", i),
			zap.Int("max_attempts", MaxRetries),
			zap.Duration("delay", RetryDelay),
			zap.Error(pingErr))

		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(RetryDelay):
		}
	}

	db.Close()
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", MaxRetries, pingErr)
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// Rebind rewrites $N placeholders to SQLite's ?N form. Postgres queries are
// returned unchanged.
func (db *DB) Rebind(query string) string {
	if db.Dialect != SQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?$1")
}

// greatest is the two-argument maximum function of the dialect.
func (db *DB) greatest() string {
	if db.Dialect == SQLite {
		return "MAX"
	}
	return "GREATEST"
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS curriculum_documents (
		kind       TEXT NOT NULL,
		id         TEXT NOT NULL,
		body       TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (kind, id)
	)`,
	`CREATE TABLE IF NOT EXISTS lesson_progress (
		user_id      TEXT NOT NULL,
		lesson_id    TEXT NOT NULL,
		mastery      DOUBLE PRECISION NOT NULL DEFAULT 0,
		xp           INTEGER NOT NULL DEFAULT 0,
		completed_at TEXT NOT NULL,
		PRIMARY KEY (user_id, lesson_id)
	)`,
}

// Migrate creates the tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
