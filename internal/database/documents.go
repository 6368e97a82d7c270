package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoDocument is returned when a curriculum document does not exist.
var ErrNoDocument = errors.New("document not found")

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Document returns the JSON body stored under (kind, id).
func (db *DB) Document(ctx context.Context, kind, id string) ([]byte, error) {
	var body string
	err := db.QueryRowContext(ctx,
		db.Rebind("SELECT body FROM curriculum_documents WHERE kind = $1 AND id = $2"),
		kind, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %q: %w", kind, id, ErrNoDocument)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s %q: %w", kind, id, err)
	}
	return []byte(body), nil
}

// PutDocument inserts or replaces a curriculum document. Pass a *sql.Tx as
// ex to make it part of a transaction.
func (db *DB) PutDocument(ctx context.Context, ex Execer, kind, id string, body []byte) error {
	if ex == nil {
		ex = db.DB
	}
	_, err := ex.ExecContext(ctx, db.Rebind(`
		INSERT INTO curriculum_documents (kind, id, body, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind, id)
		DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at`),
		kind, id, string(body), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert %s %q: %w", kind, id, err)
	}
	return nil
}
