// Command audio_generator pre-synthesizes an MP3 for every scripted boss
// line and scenario greeting of the embedded curriculum.
//
// Run it from the repository root: go run ./scripts/audio_generator
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"polybot/internal/curriculum"
	"polybot/internal/logging"
	"polybot/internal/speech"
	"polybot/internal/workers"
)

const (
	maxWorkers = 10
	// Google allows 1000 requests per minute on the free tier; stay a bit under.
	requestsPerSecond = 14
)

// job is one line to speak and where to put it.
type job struct {
	Text string
	Path string
}

func main() {
	outputDir := flag.String("out", "media", "output directory")
	lang := flag.String("lang", "it", "voice language")
	flag.Parse()

	logger, err := logging.New("info", "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Fatal("load .env", zap.Error(err))
	}

	catalog, err := curriculum.Embedded()
	if err != nil {
		logger.Fatal("load curriculum", zap.Error(err))
	}

	jobs := pending(collectJobs(catalog, *outputDir))
	if len(jobs) == 0 {
		logger.Info("every line already has audio")
		return
	}
	logger.Info("lines to synthesize", zap.Int("count", len(jobs)))

	// Credentials come from GOOGLE_APPLICATION_CREDENTIALS.
	ctx := context.Background()
	tts, err := speech.NewGoogle(ctx)
	if err != nil {
		logger.Fatal("create TTS client", zap.Error(err))
	}
	defer tts.Close()

	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	done, err := generate(ctx, tts, limiter, jobs, *lang, logger)
	logger.Info("generation finished", zap.Int64("written", done), zap.Int("planned", len(jobs)))
	if err != nil {
		logger.Fatal("generation failed", zap.Error(err))
	}
}

// collectJobs lists every boss ai_message as <module>/<round>_<turn>.mp3
// and every scenario greeting as scenarios/<id>.mp3.
func collectJobs(c *curriculum.Catalog, outputDir string) []job {
	var jobs []job
	for _, b := range c.Bosses() {
		for _, r := range b.ConversationFlow {
			for _, t := range r.Turns {
				if t.AIMessage == "" {
					continue
				}
				jobs = append(jobs, job{
					Text: t.AIMessage,
					Path: filepath.Join(outputDir, b.ModuleID, fmt.Sprintf("%d_%d.mp3", r.Round, t.Turn)),
				})
			}
		}
	}
	for _, sc := range c.Scenarios() {
		if sc.InitialGreeting == "" {
			continue
		}
		jobs = append(jobs, job{
			Text: sc.InitialGreeting,
			Path: filepath.Join(outputDir, "scenarios", sc.ScenarioID+".mp3"),
		})
	}
	return jobs
}

// pending drops jobs whose file already exists.
func pending(jobs []job) []job {
	out := jobs[:0:0]
	for _, j := range jobs {
		if _, err := os.Stat(j.Path); err == nil {
			continue
		}
		out = append(out, j)
	}
	return out
}

// generate synthesizes jobs with a fixed number of workers sharing one
// rate limiter. A failed line is logged and skipped; the first write error
// stops the run.
func generate(ctx context.Context, tts speech.Synthesizer, limiter *rate.Limiter, jobs []job, lang string, logger *zap.Logger) (int64, error) {
	var written atomic.Int64
	err := workers.Each(ctx, maxWorkers, jobs, func(ctx context.Context, j job) error {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		audio, err := tts.Synthesize(ctx, j.Text, lang)
		if err != nil {
			logger.Warn("synthesis failed", zap.String("path", j.Path), zap.Error(err))
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(j.Path), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(j.Path), err)
		}
		if err := os.WriteFile(j.Path, audio, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", j.Path, err)
		}
		written.Add(1)
		logger.Debug("written", zap.String("path", j.Path))
		return nil
	})
	return written.Load(), err
}
