// Package speech wraps the speech-to-text and text-to-speech services used
// by the voice practice flow.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyTranscript is returned when the audio contained no usable speech.
var ErrEmptyTranscript = errors.New("could not transcribe audio")

// Transcript is the result of speech recognition.
type Transcript struct {
	Text       string
	Confidence float64 // 0..1
	Language   string
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename, lang string) (*Transcript, error)
	Close() error
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
	ContentType() string
	Close() error
}

// Config selects and configures the speech providers.
type Config struct {
	STTProvider string // "openai" or "mock"
	STTModel    string
	TTSProvider string // "google", "openai" or "mock"

	OpenAIAPIKey  string
	OpenAIBaseURL string

	// ReleaseSTT drops the transcriber after every call; it is rebuilt on
	// the next request.
	ReleaseSTT bool
}

// NewTranscriber builds the configured transcriber behind a lazy holder.
// Nothing is dialed until the first call.
func NewTranscriber(cfg Config) (*Lazy, error) {
	var open func(context.Context) (Transcriber, error)
	switch cfg.STTProvider {
	case "openai", "":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai API key is required for speech-to-text")
		}
		open = func(context.Context) (Transcriber, error) {
			return NewWhisper(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.STTModel), nil
		}
	case "mock":
		open = func(context.Context) (Transcriber, error) {
			return &MockTranscriber{Result: Transcript{Text: "Buongiorno, un caffè per favore.", Confidence: 0.9}}, nil
		}
	default:
		return nil, fmt.Errorf("unknown STT provider: %q", cfg.STTProvider)
	}
	return NewLazy(open, cfg.ReleaseSTT), nil
}

// NewSynthesizer builds the configured synthesizer.
func NewSynthesizer(ctx context.Context, cfg Config) (Synthesizer, error) {
	switch cfg.TTSProvider {
	case "google", "":
		return NewGoogle(ctx)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai API key is required for text-to-speech")
		}
		return NewOpenAISpeech(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), nil
	case "mock":
		return &MockSynthesizer{Audio: []byte("ID3mock")}, nil
	default:
		return nil, fmt.Errorf("unknown TTS provider: %q", cfg.TTSProvider)
	}
}

// LanguageCode expands a bare language ("it", "Italian") to the BCP-47
// code the speech services expect.
func LanguageCode(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	switch l {
	case "", "it", "italian", "italiano":
		return "it-IT"
	case "en", "english":
		return "en-US"
	case "es", "spanish":
		return "es-ES"
	case "fr", "french":
		return "fr-FR"
	case "de", "german":
		return "de-DE"
	}
	if strings.Contains(lang, "-") {
		return lang
	}
	return l
}
