package llm

import (
	"context"
	"fmt"
	"time"

	"polybot/internal/workers"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which LLM provider to use.
	// Values: "openai", "local", "anthropic", "gemini", "mock"
	Provider string

	OpenAI    OpenAIConfig
	Local     LocalConfig
	Anthropic AnthropicConfig
	Gemini    GeminiConfig
	Retry     RetryConfig

	// Timeout is the maximum duration for a single LLM request
	// (including retries). Default: 30s.
	Timeout time.Duration
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: "gpt-4o-mini"
	BaseURL string // Optional. Override for compatible APIs.
}

// LocalConfig points at an OpenAI-compatible completion server (llama.cpp,
// vLLM) that receives the chat-template-rendered prompt verbatim.
type LocalConfig struct {
	BaseURL  string // Default: "http://localhost:8000/v1"
	Model    string // Default: "gemma-2-2b-it"
	Template string // "gemma", "llama3" or "chatml"
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string // Default: "claude-haiku"
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string
	Model  string // Default: "gemini-flash"
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: "openai",
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Local: LocalConfig{
			BaseURL:  "http://localhost:8000/v1",
			Model:    "gemma-2-2b-it",
			Template: "gemma",
		},
		Anthropic: AnthropicConfig{
			Model: "claude-haiku",
		},
		Gemini: GeminiConfig{
			Model: "gemini-flash",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 30 * time.Second,
	}
}

// Validate checks that the selected provider has its required settings.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("POLYBOT_OPENAI_API_KEY is required for the openai provider")
		}
	case "local":
		if c.Local.BaseURL == "" {
			return fmt.Errorf("POLYBOT_LOCAL_BASE_URL is required for the local provider")
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("POLYBOT_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("POLYBOT_GEMINI_API_KEY is required for the gemini provider")
		}
	case "mock":
		// No API key needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}

// New builds the configured provider wrapped with retries and the overall
// timeout. tmpl is only used by the local provider; pool may be nil.
func New(ctx context.Context, cfg Config, tmpl ChatTemplate, pool *workers.Pool) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "openai":
		p, err = NewOpenAIProvider(cfg.OpenAI)
	case "local":
		p, err = NewCompletionProvider(cfg.Local, tmpl)
	case "anthropic":
		p, err = NewAnthropicProvider(cfg.Anthropic)
	case "gemini":
		p, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if pool != nil {
		p = WithPool(p, pool)
	}
	return WithTimeout(WithRetry(p, cfg.Retry), cfg.Timeout), nil
}
