package speech

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAISpeech synthesizes MP3 through the OpenAI speech endpoint.
type OpenAISpeech struct {
	client *openai.Client
}

func NewOpenAISpeech(apiKey, baseURL string) *OpenAISpeech {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAISpeech{client: openai.NewClientWithConfig(config)}
}

// Synthesize ignores lang; the model picks the language from the text.
func (o *OpenAISpeech) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          openai.VoiceNova,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}
	return audio, nil
}

func (o *OpenAISpeech) ContentType() string { return "audio/mpeg" }

func (o *OpenAISpeech) Close() error { return nil }
