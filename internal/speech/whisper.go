package speech

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Whisper transcribes through the OpenAI audio API.
type Whisper struct {
	client *openai.Client
	model  string
}

func NewWhisper(apiKey, baseURL, model string) *Whisper {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &Whisper{client: openai.NewClientWithConfig(config), model: model}
}

func (w *Whisper) Transcribe(ctx context.Context, audio io.Reader, filename, lang string) (*Transcript, error) {
	if filename == "" {
		filename = "audio.webm"
	}
	// Whisper wants ISO-639-1.
	code, _, _ := strings.Cut(LanguageCode(lang), "-")

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: filename,
		Reader:   audio,
		Language: code,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, ErrEmptyTranscript
	}

	return &Transcript{
		Text:       text,
		Confidence: confidence(resp),
		Language:   resp.Language,
	}, nil
}

func (w *Whisper) Close() error { return nil }

// confidence is exp of the mean segment log-probability.
func confidence(resp openai.AudioResponse) float64 {
	if len(resp.Segments) == 0 {
		return 0
	}
	var sum float64
	for _, s := range resp.Segments {
		sum += s.AvgLogprob
	}
	c := math.Exp(sum / float64(len(resp.Segments)))
	return math.Max(0, math.Min(1, c))
}
