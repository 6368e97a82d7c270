// Package config reads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"polybot/internal/llm"
	"polybot/internal/prompt"
	"polybot/internal/speech"
)

const (
	SourceEmbedded = "embedded"
	SourceDatabase = "database"
)

// Config is everything the server needs at start-up.
type Config struct {
	Addr             string
	DatabaseURL      string
	CurriculumSource string
	JWTSecret        string
	Workers          int

	LogLevel  string
	LogFormat string

	LLM    llm.Config
	Speech speech.Config
}

// Load reads .env when present, then the process environment. Variables
// already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset keys.
func FromEnv(getenv func(string) string) (Config, error) {
	e := env{getenv: getenv}

	cfg := Config{
		Addr:             e.str("POLYBOT_ADDR", ":8080"),
		DatabaseURL:      e.str("DATABASE_URL", ""),
		CurriculumSource: strings.ToLower(e.str("POLYBOT_CURRICULUM_SOURCE", SourceEmbedded)),
		JWTSecret:        e.str("POLYBOT_JWT_SECRET", ""),
		Workers:          e.integer("POLYBOT_WORKERS", 1),
		LogLevel:         e.str("POLYBOT_LOG_LEVEL", "info"),
		LogFormat:        e.str("POLYBOT_LOG_FORMAT", "json"),
	}

	l := llm.DefaultConfig()
	l.Provider = strings.ToLower(e.str("POLYBOT_LLM_PROVIDER", l.Provider))
	l.OpenAI.APIKey = e.str("POLYBOT_OPENAI_API_KEY", "")
	l.OpenAI.Model = e.str("POLYBOT_OPENAI_MODEL", l.OpenAI.Model)
	l.OpenAI.BaseURL = e.str("POLYBOT_OPENAI_BASE_URL", "")
	l.Local.BaseURL = e.str("POLYBOT_LOCAL_BASE_URL", l.Local.BaseURL)
	l.Local.Model = e.str("POLYBOT_LOCAL_MODEL", l.Local.Model)
	l.Local.Template = strings.ToLower(e.str("POLYBOT_LOCAL_TEMPLATE", l.Local.Template))
	l.Anthropic.APIKey = e.str("POLYBOT_ANTHROPIC_API_KEY", "")
	l.Anthropic.Model = e.str("POLYBOT_ANTHROPIC_MODEL", l.Anthropic.Model)
	l.Gemini.APIKey = e.str("POLYBOT_GEMINI_API_KEY", "")
	l.Gemini.Model = e.str("POLYBOT_GEMINI_MODEL", l.Gemini.Model)
	l.Timeout = e.duration("POLYBOT_LLM_TIMEOUT", l.Timeout)
	cfg.LLM = l

	cfg.Speech = speech.Config{
		STTProvider:   strings.ToLower(e.str("POLYBOT_STT_PROVIDER", "openai")),
		STTModel:      e.str("POLYBOT_STT_MODEL", "whisper-1"),
		TTSProvider:   strings.ToLower(e.str("POLYBOT_TTS_PROVIDER", "google")),
		OpenAIAPIKey:  l.OpenAI.APIKey,
		OpenAIBaseURL: l.OpenAI.BaseURL,
		ReleaseSTT:    e.boolean("POLYBOT_RELEASE_STT", false),
	}

	if err := e.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown providers, missing keys and inconsistent
// storage settings.
func (c Config) Validate() error {
	var errs []error
	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.LLM.Provider == "local" {
		if _, err := prompt.TemplateByName(c.LLM.Local.Template); err != nil {
			errs = append(errs, fmt.Errorf("POLYBOT_LOCAL_TEMPLATE: %w", err))
		}
	}

	switch c.Speech.STTProvider {
	case "openai":
		if c.Speech.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("POLYBOT_OPENAI_API_KEY is required for openai speech-to-text"))
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown STT provider: %q", c.Speech.STTProvider))
	}
	switch c.Speech.TTSProvider {
	case "openai":
		if c.Speech.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("POLYBOT_OPENAI_API_KEY is required for openai text-to-speech"))
		}
	case "google", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown TTS provider: %q", c.Speech.TTSProvider))
	}

	switch c.CurriculumSource {
	case SourceEmbedded:
	case SourceDatabase:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when POLYBOT_CURRICULUM_SOURCE=database"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown curriculum source: %q", c.CurriculumSource))
	}

	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("POLYBOT_WORKERS must be at least 1, got %d", c.Workers))
	}
	return errors.Join(errs...)
}

// env collects parse errors so every bad variable is reported at once.
type env struct {
	getenv func(string) string
	errs   []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *env) boolean(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *env) err() error { return errors.Join(e.errs...) }
