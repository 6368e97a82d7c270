package curriculum

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"polybot/internal/models"
)

//go:embed data
var embedded embed.FS

// ModuleFile is the on-disk shape of one module YAML file.
type ModuleFile struct {
	ModuleID string               `yaml:"module_id"`
	Title    string               `yaml:"title"`
	Lessons  []models.Lesson      `yaml:"lessons"`
	Boss     *models.BossExercise `yaml:"boss,omitempty"`
}

// Catalog is an in-memory Store parsed from YAML files.
type Catalog struct {
	modules   []string
	bosses    map[string]*models.BossExercise
	lessons   map[string]*models.Lesson
	scenarios map[string]*models.Scenario
}

var (
	embeddedOnce    sync.Once
	embeddedCatalog *Catalog
	embeddedErr     error
)

// Embedded returns the catalog compiled into the binary. It is parsed once.
func Embedded() (*Catalog, error) {
	embeddedOnce.Do(func() {
		sub, err := fs.Sub(embedded, "data")
		if err != nil {
			embeddedErr = err
			return
		}
		embeddedCatalog, embeddedErr = LoadFS(sub)
	})
	return embeddedCatalog, embeddedErr
}

// LoadFS parses modules/*.yaml and scenarios.yaml from fsys.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{
		modules:   KnownModules,
		bosses:    make(map[string]*models.BossExercise),
		lessons:   make(map[string]*models.Lesson),
		scenarios: make(map[string]*models.Scenario),
	}

	files, err := fs.Glob(fsys, "modules/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list module files: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var mf ModuleFile
		if err := yaml.Unmarshal(raw, &mf); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path.Base(name), err)
		}
		if err := c.addModule(&mf); err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(name), err)
		}
	}

	raw, err := fs.ReadFile(fsys, "scenarios.yaml")
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	var scenarios []models.Scenario
	if err := yaml.Unmarshal(raw, &scenarios); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	for i := range scenarios {
		s := scenarios[i]
		if s.ScenarioID == "" {
			return nil, fmt.Errorf("scenario %d has no scenario_id", i)
		}
		c.scenarios[s.ScenarioID] = &s
	}

	return c, nil
}

func (c *Catalog) addModule(mf *ModuleFile) error {
	if mf.ModuleID == "" {
		return fmt.Errorf("missing module_id")
	}
	for i := range mf.Lessons {
		l := mf.Lessons[i]
		l.ModuleID = mf.ModuleID
		c.lessons[strings.ToUpper(l.LessonID)] = &l
	}
	if mf.Boss != nil {
		mf.Boss.ModuleID = mf.ModuleID
		if err := Validate(mf.Boss); err != nil {
			return err
		}
		c.bosses[mf.ModuleID] = mf.Boss
	}
	return nil
}

func (c *Catalog) BossExercise(_ context.Context, moduleID string) (*models.BossExercise, error) {
	b, ok := c.bosses[moduleID]
	if !ok {
		return nil, fmt.Errorf("boss exercise %q: %w", moduleID, ErrNotFound)
	}
	return b, nil
}

func (c *Catalog) Lesson(_ context.Context, lessonID string) (*models.Lesson, error) {
	l, ok := c.lessons[strings.ToUpper(strings.TrimSpace(lessonID))]
	if !ok {
		return nil, fmt.Errorf("lesson %q: %w", lessonID, ErrNotFound)
	}
	return l, nil
}

func (c *Catalog) Scenario(_ context.Context, scenarioID string) (*models.Scenario, error) {
	s, ok := c.scenarios[scenarioID]
	if !ok {
		return nil, fmt.Errorf("scenario %q: %w", scenarioID, ErrNotFound)
	}
	return s, nil
}

func (c *Catalog) ModuleIDs() []string {
	return c.modules
}

// Bosses returns every boss exercise ordered by module.
func (c *Catalog) Bosses() []*models.BossExercise {
	out := make([]*models.BossExercise, 0, len(c.bosses))
	for _, id := range c.modules {
		if b, ok := c.bosses[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

// Lessons returns every tutor lesson ordered by id.
func (c *Catalog) Lessons() []*models.Lesson {
	out := make([]*models.Lesson, 0, len(c.lessons))
	for _, l := range c.lessons {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessonID < out[j].LessonID })
	return out
}

// Scenarios returns every practice scenario ordered by id.
func (c *Catalog) Scenarios() []*models.Scenario {
	out := make([]*models.Scenario, 0, len(c.scenarios))
	for _, s := range c.scenarios {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScenarioID < out[j].ScenarioID })
	return out
}
