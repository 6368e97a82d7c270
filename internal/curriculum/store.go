// Package curriculum serves the read-only A1 course content: boss
// exercises, tutor lessons and practice scenarios.
package curriculum

import (
	"context"
	"errors"

	"polybot/internal/models"
)

// ErrNotFound is returned for unknown module, lesson or scenario ids.
var ErrNotFound = errors.New("curriculum: not found")

// KnownModules is the ordered list of module tags the course defines.
var KnownModules = []string{
	"A1.1", "A1.2", "A1.3", "A1.4", "A1.5",
	"A1.6", "A1.7", "A1.8", "A1.9", "A1.10",
}

// Store is the narrow read interface the engines depend on.
type Store interface {
	BossExercise(ctx context.Context, moduleID string) (*models.BossExercise, error)
	Lesson(ctx context.Context, lessonID string) (*models.Lesson, error)
	Scenario(ctx context.Context, scenarioID string) (*models.Scenario, error)
	ModuleIDs() []string
}

// Document kinds used by the SQL-backed store.
const (
	KindBoss     = "boss"
	KindLesson   = "lesson"
	KindScenario = "scenario"
)
