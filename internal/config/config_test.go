package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(lookup(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, SourceEmbedded, cfg.CurriculumSource)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.OpenAI.Model)
	assert.Equal(t, "gemma", cfg.LLM.Local.Template)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "whisper-1", cfg.Speech.STTModel)
	assert.Equal(t, "google", cfg.Speech.TTSProvider)
	assert.False(t, cfg.Speech.ReleaseSTT)

	// No OpenAI key: the default providers are not usable.
	assert.Error(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"POLYBOT_ADDR":           "127.0.0.1:9000",
		"POLYBOT_LLM_PROVIDER":   "LOCAL",
		"POLYBOT_LOCAL_TEMPLATE": "llama3",
		"POLYBOT_OPENAI_API_KEY": "sk-test",
		"POLYBOT_WORKERS":        "4",
		"POLYBOT_RELEASE_STT":    "true",
		"POLYBOT_LLM_TIMEOUT":    "5s",
		"POLYBOT_TTS_PROVIDER":   "openai",
	}))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "local", cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Local.Template)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.Speech.ReleaseSTT)
	assert.Equal(t, "sk-test", cfg.Speech.OpenAIAPIKey)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_ReportsEveryBadValue(t *testing.T) {
	_, err := FromEnv(lookup(map[string]string{
		"POLYBOT_WORKERS":     "many",
		"POLYBOT_LLM_TIMEOUT": "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLYBOT_WORKERS")
	assert.Contains(t, err.Error(), "POLYBOT_LLM_TIMEOUT")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := FromEnv(lookup(map[string]string{
			"POLYBOT_LLM_PROVIDER": "mock",
			"POLYBOT_STT_PROVIDER": "mock",
			"POLYBOT_TTS_PROVIDER": "mock",
		}))
		require.NoError(t, err)
		return cfg
	}
	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown llm", func(c *Config) { c.LLM.Provider = "eliza" }, "unknown LLM provider"},
		{"bad template", func(c *Config) { c.LLM.Provider = "local"; c.LLM.Local.Template = "alpaca" }, "POLYBOT_LOCAL_TEMPLATE"},
		{"unknown stt", func(c *Config) { c.Speech.STTProvider = "vosk" }, "unknown STT provider"},
		{"openai tts without key", func(c *Config) { c.Speech.TTSProvider = "openai" }, "text-to-speech"},
		{"database source without url", func(c *Config) { c.CurriculumSource = SourceDatabase }, "DATABASE_URL"},
		{"unknown source", func(c *Config) { c.CurriculumSource = "s3" }, "curriculum source"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "POLYBOT_WORKERS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
