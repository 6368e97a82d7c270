package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := Connect(context.Background(), "file:"+name+"?mode=memory&cache=shared", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		driver  string
		dialect Dialect
		source  string
		wantErr bool
	}{
		{"postgres://u:p@localhost:5432/polybot", "pgx", Postgres, "postgres://u:p@localhost:5432/polybot", false},
		{"postgresql://localhost/polybot", "pgx", Postgres, "postgresql://localhost/polybot", false},
		{"sqlite:polybot.db", "sqlite", SQLite, "polybot.db", false},
		{"file:test.db?cache=shared", "sqlite", SQLite, "file:test.db?cache=shared", false},
		{"", "", "", "", true},
		{"mysql://localhost", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			driver, dialect, source, err := ParseDSN(tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.driver, driver)
			assert.Equal(t, tt.dialect, dialect)
			assert.Equal(t, tt.source, source)
		})
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT x FROM t WHERE a = $1 AND b = $2"

	pg := &DB{Dialect: Postgres}
	assert.Equal(t, q, pg.Rebind(q))

	lite := &DB{Dialect: SQLite}
	assert.Equal(t, "SELECT x FROM t WHERE a = ?1 AND b = ?2", lite.Rebind(q))
}

func TestDocuments_PutAndGet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Document(ctx, "boss", "A1.1")
	assert.True(t, errors.Is(err, ErrNoDocument))

	require.NoError(t, db.PutDocument(ctx, nil, "boss", "A1.1", []byte(`{"v":1}`)))
	require.NoError(t, db.PutDocument(ctx, nil, "boss", "A1.1", []byte(`{"v":2}`)))

	body, err := db.Document(ctx, "boss", "A1.1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(body))
}

func TestDocuments_InTransaction(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, db.PutDocument(ctx, tx, "scenario", "cafe_order", []byte(`{}`)))
	require.NoError(t, tx.Rollback())

	_, err = db.Document(ctx, "scenario", "cafe_order")
	assert.True(t, errors.Is(err, ErrNoDocument))
}

func TestSaveLessonCompletion_TakesMaximum(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p, err := db.SaveLessonCompletion(ctx, "u1", "A1.1.BOSS", 0.6, 50)
	require.NoError(t, err)
	assert.Equal(t, 0.6, p.Mastery)
	assert.Equal(t, 50, p.XP)

	p, err = db.SaveLessonCompletion(ctx, "u1", "A1.1.BOSS", 0.4, 80)
	require.NoError(t, err)
	assert.Equal(t, 0.6, p.Mastery, "lower mastery must not overwrite")
	assert.Equal(t, 80, p.XP)

	p, err = db.SaveLessonCompletion(ctx, "u1", "A1.1.BOSS", 0.9, 10)
	require.NoError(t, err)
	assert.Equal(t, 0.9, p.Mastery)
	assert.Equal(t, 80, p.XP)
}

func TestLessonProgress_ListsPerUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.SaveLessonCompletion(ctx, "u1", "A1.2.1", 1, 10)
	require.NoError(t, err)
	_, err = db.SaveLessonCompletion(ctx, "u1", "A1.1.1", 1, 10)
	require.NoError(t, err)
	_, err = db.SaveLessonCompletion(ctx, "u2", "A1.1.1", 1, 10)
	require.NoError(t, err)

	rows, err := db.LessonProgress(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A1.1.1", rows[0].LessonID)
	assert.Equal(t, "A1.2.1", rows[1].LessonID)

	rows, err = db.LessonProgress(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
