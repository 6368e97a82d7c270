package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"polybot/internal/models"
)

// CompleteLesson records a finished lesson for userID. The store keeps the
// best mastery and XP seen so far.
func (s *Service) CompleteLesson(ctx context.Context, userID string, req models.LessonCompleteRequest) (*models.LessonProgress, error) {
	if s.progress == nil {
		return nil, ErrProgressUnavailable
	}
	lessonID := strings.ToUpper(strings.TrimSpace(req.LessonID))
	switch {
	case lessonID == "":
		return nil, fmt.Errorf("%w: lesson_id is required", ErrInvalidInput)
	case req.Mastery < 0 || req.Mastery > 1:
		return nil, fmt.Errorf("%w: mastery must be between 0 and 1", ErrInvalidInput)
	case req.XP < 0:
		return nil, fmt.Errorf("%w: xp must not be negative", ErrInvalidInput)
	}

	p, err := s.progress.SaveLessonCompletion(ctx, userID, lessonID, req.Mastery, req.XP)
	if err != nil {
		return nil, err
	}
	s.logger.Info("lesson completed",
		zap.String("user_id", userID),
		zap.String("lesson_id", lessonID),
		zap.Float64("mastery", p.Mastery),
		zap.Int("xp", p.XP),
	)
	return p, nil
}

// Progress lists the completed lessons of userID.
func (s *Service) Progress(ctx context.Context, userID string) ([]models.LessonProgress, error) {
	if s.progress == nil {
		return nil, ErrProgressUnavailable
	}
	return s.progress.LessonProgress(ctx, userID)
}
