package curriculum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"polybot/internal/database"
	"polybot/internal/models"
)

// DocumentSource reads raw JSON documents by kind and id.
type DocumentSource interface {
	Document(ctx context.Context, kind, id string) ([]byte, error)
}

// SQLStore serves curriculum documents loaded by scripts/curriculum_loader.
// Decoded documents are cached for the life of the process.
type SQLStore struct {
	src   DocumentSource
	cache sync.Map // kind+"/"+id -> any
}

// NewSQLStore wraps a document source.
func NewSQLStore(src DocumentSource) *SQLStore {
	return &SQLStore{src: src}
}

func (s *SQLStore) BossExercise(ctx context.Context, moduleID string) (*models.BossExercise, error) {
	var ex models.BossExercise
	v, err := s.load(ctx, KindBoss, moduleID, &ex)
	if err != nil {
		return nil, err
	}
	return v.(*models.BossExercise), nil
}

func (s *SQLStore) Lesson(ctx context.Context, lessonID string) (*models.Lesson, error) {
	var l models.Lesson
	v, err := s.load(ctx, KindLesson, strings.ToUpper(strings.TrimSpace(lessonID)), &l)
	if err != nil {
		return nil, err
	}
	return v.(*models.Lesson), nil
}

func (s *SQLStore) Scenario(ctx context.Context, scenarioID string) (*models.Scenario, error) {
	var sc models.Scenario
	v, err := s.load(ctx, KindScenario, scenarioID, &sc)
	if err != nil {
		return nil, err
	}
	return v.(*models.Scenario), nil
}

func (s *SQLStore) ModuleIDs() []string {
	return KnownModules
}

func (s *SQLStore) load(ctx context.Context, kind, id string, into any) (any, error) {
	key := kind + "/" + id
	if v, ok := s.cache.Load(key); ok {
		return v, nil
	}

	body, err := s.src.Document(ctx, kind, id)
	if errors.Is(err, database.ErrNoDocument) {
		return nil, fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, into); err != nil {
		return nil, fmt.Errorf("decode %s %q: %w", kind, id, err)
	}
	if ex, ok := into.(*models.BossExercise); ok {
		if err := Validate(ex); err != nil {
			return nil, err
		}
	}

	v, _ := s.cache.LoadOrStore(key, into)
	return v, nil
}

// Export writes every document of the catalog through put. It is used by
// the loader script and by tests.
func Export(c *Catalog, put func(kind, id string, body []byte) error) (int, error) {
	n := 0
	write := func(kind, id string, v any) error {
		body, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s %q: %w", kind, id, err)
		}
		if err := put(kind, id, body); err != nil {
			return err
		}
		n++
		return nil
	}

	for _, b := range c.Bosses() {
		if err := write(KindBoss, b.ModuleID, b); err != nil {
			return n, err
		}
	}
	for _, l := range c.Lessons() {
		if err := write(KindLesson, strings.ToUpper(l.LessonID), l); err != nil {
			return n, err
		}
	}
	for _, sc := range c.Scenarios() {
		if err := write(KindScenario, sc.ScenarioID, sc); err != nil {
			return n, err
		}
	}
	return n, nil
}
