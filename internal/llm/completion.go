package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ChatTemplate renders a system prompt and a conversation into the raw
// prompt format an instruction-tuned model was trained on.
type ChatTemplate interface {
	Render(system string, msgs []Message) string
	EndOfTurn() string
}

// CompletionProvider talks to a locally served model through the plain
// completions endpoint. The chat template is applied here rather than by
// the server, and the template's end-of-turn marker is always a stop
// sequence so the model cannot run on into the learner's next turn.
type CompletionProvider struct {
	client *openai.Client
	model  string
	tmpl   ChatTemplate
}

// NewCompletionProvider creates a provider for an OpenAI-compatible
// completion server such as vLLM or llama.cpp.
func NewCompletionProvider(cfg LocalConfig, tmpl ChatTemplate) (*CompletionProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("local base URL is required")
	}
	if tmpl == nil {
		return nil, fmt.Errorf("local provider needs a chat template")
	}

	// Local servers accept any key.
	config := openai.DefaultConfig("local")
	config.BaseURL = cfg.BaseURL

	return &CompletionProvider{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		tmpl:   tmpl,
	}, nil
}

func (p *CompletionProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	stop := append([]string{p.tmpl.EndOfTurn()}, req.Stop...)

	resp, err := p.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       p.model,
		Prompt:      p.tmpl.Render(req.System, req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
		Stop:        stop,
	})
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("no choices in completion response")}
	}

	choice := resp.Choices[0]
	text := choice.Text
	// Some servers echo the stop marker back.
	if i := strings.Index(text, p.tmpl.EndOfTurn()); i >= 0 {
		text = text[:i]
	}

	reason := "end"
	switch choice.FinishReason {
	case "length":
		reason = "max_tokens"
	case "stop":
		reason = "stop_sequence"
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}

	return &Response{
		Text: strings.TrimSpace(text),
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Model:      model,
		StopReason: reason,
	}, nil
}

func (p *CompletionProvider) ModelID() string {
	return p.model
}
