// Package chat wires the curriculum, prompts, LLM, goal check and speech
// adapters into the request flows served over HTTP.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"polybot/internal/boss"
	"polybot/internal/curriculum"
	"polybot/internal/goalcheck"
	"polybot/internal/llm"
	"polybot/internal/models"
	"polybot/internal/prompt"
	"polybot/internal/speech"
	"polybot/internal/workers"
)

var (
	ErrUnknownScenario     = errors.New("unknown scenario")
	ErrNotReady            = errors.New("models are still loading")
	ErrProgressUnavailable = errors.New("lesson progress storage is not configured")
	ErrInvalidInput        = errors.New("invalid input")
	ErrSpeechSynthesis     = errors.New("text-to-speech failed")
)

// WarmingUpText is returned by every LLM flow until Warm has finished.
const WarmingUpText = "Sto ancora preparando la lezione, un momento..."

// Adapters are the process-wide model clients, built once by Warm.
type Adapters struct {
	LLM llm.Provider
	STT speech.Transcriber
	TTS speech.Synthesizer
}

// ProgressStore persists lesson completions. *database.DB implements it.
type ProgressStore interface {
	SaveLessonCompletion(ctx context.Context, userID, lessonID string, mastery float64, xp int) (*models.LessonProgress, error)
	LessonProgress(ctx context.Context, userID string) ([]models.LessonProgress, error)
}

type Service struct {
	store    curriculum.Store
	composer *prompt.Composer
	boss     *boss.Engine
	progress ProgressStore
	pool     *workers.Pool
	logger   *zap.Logger

	adapters atomic.Pointer[Adapters]
	goals    atomic.Pointer[goalcheck.Classifier]
}

// Options configures a Service. Progress and Pool may be nil.
type Options struct {
	Store    curriculum.Store
	Composer *prompt.Composer
	Progress ProgressStore
	Pool     *workers.Pool
	Logger   *zap.Logger
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    opts.Store,
		composer: opts.Composer,
		boss:     boss.NewEngine(opts.Store, logger),
		progress: opts.Progress,
		pool:     opts.Pool,
		logger:   logger.Named("chat"),
	}
}

// Warm builds the adapters with load and marks the service ready. It is
// meant to run in the background at start-up.
func (s *Service) Warm(ctx context.Context, load func(ctx context.Context) (*Adapters, error)) error {
	start := time.Now()
	a, err := load(ctx)
	if err != nil {
		return fmt.Errorf("warm up: %w", err)
	}
	s.SetAdapters(a)
	s.logger.Info("models ready",
		zap.String("llm", a.LLM.ModelID()),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// SetAdapters installs ready adapters directly.
func (s *Service) SetAdapters(a *Adapters) {
	s.goals.Store(goalcheck.New(a.LLM, s.logger))
	s.adapters.Store(a)
}

// Ready reports whether Warm has completed.
func (s *Service) Ready() bool { return s.adapters.Load() != nil }

// ModelID returns the active LLM model, or "" before warm-up.
func (s *Service) ModelID() string {
	if a := s.adapters.Load(); a != nil {
		return a.LLM.ModelID()
	}
	return ""
}

// Close releases the adapters.
func (s *Service) Close() error {
	a := s.adapters.Swap(nil)
	if a == nil {
		return nil
	}
	var errs []error
	if a.STT != nil {
		errs = append(errs, a.STT.Close())
	}
	if a.TTS != nil {
		errs = append(errs, a.TTS.Close())
	}
	return errors.Join(errs...)
}

// generate runs one LLM call with fixed parameters.
func (s *Service) generate(ctx context.Context, a *Adapters, purpose string, p params, system string, msgs []llm.Message) (string, error) {
	resp, err := a.LLM.Generate(llm.WithPurpose(ctx, purpose), llm.Request{
		System:      system,
		Messages:    msgs,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		TopP:        p.topP,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// onPool runs fn in a worker slot when a pool is configured.
func (s *Service) onPool(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return s.pool.Do(ctx, fn)
}
