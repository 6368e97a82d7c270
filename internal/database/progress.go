package database

import (
	"context"
	"fmt"
	"time"

	"polybot/internal/models"
)

// SaveLessonCompletion records a finished lesson. Mastery and XP only ever
// go up: a replay with a lower score keeps the stored maximum, which makes
// the call idempotent.
func (db *DB) SaveLessonCompletion(ctx context.Context, userID, lessonID string, mastery float64, xp int) (*models.LessonProgress, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	fn := db.greatest()

	stmt := fmt.Sprintf(`
		INSERT INTO lesson_progress (user_id, lesson_id, mastery, xp, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, lesson_id)
		DO UPDATE SET
			mastery = %[1]s(lesson_progress.mastery, EXCLUDED.mastery),
			xp = %[1]s(lesson_progress.xp, EXCLUDED.xp),
			completed_at = EXCLUDED.completed_at`, fn)

	if _, err := db.ExecContext(ctx, db.Rebind(stmt), userID, lessonID, mastery, xp, now); err != nil {
		return nil, fmt.Errorf("save completion for user %s, lesson %s: %w", userID, lessonID, err)
	}

	var p models.LessonProgress
	err := db.QueryRowContext(ctx,
		db.Rebind("SELECT user_id, lesson_id, mastery, xp, completed_at FROM lesson_progress WHERE user_id = $1 AND lesson_id = $2"),
		userID, lessonID,
	).Scan(&p.UserID, &p.LessonID, &p.Mastery, &p.XP, &p.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("read back completion: %w", err)
	}
	return &p, nil
}

// LessonProgress lists every completed lesson of a user ordered by lesson id.
func (db *DB) LessonProgress(ctx context.Context, userID string) ([]models.LessonProgress, error) {
	rows, err := db.QueryContext(ctx,
		db.Rebind("SELECT user_id, lesson_id, mastery, xp, completed_at FROM lesson_progress WHERE user_id = $1 ORDER BY lesson_id"),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	out := []models.LessonProgress{}
	for rows.Next() {
		var p models.LessonProgress
		if err := rows.Scan(&p.UserID, &p.LessonID, &p.Mastery, &p.XP, &p.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
