package prompt

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"polybot/internal/llm"
)

var (
	errEmptyMessage = errors.New("empty message")
	errRoleOrder    = errors.New("roles must alternate")
)

// Template is an instruction-tuned model's chat format. It satisfies
// llm.ChatTemplate so the local completion provider can render with it.
type Template struct {
	Name string

	endOfTurn   string
	alternating bool
	render      func(b *strings.Builder, system string, msgs []llm.Message)
}

var templates = map[string]*Template{
	"gemma": {
		Name:        "gemma",
		endOfTurn:   "<end_of_turn>",
		alternating: true,
		render:      renderGemma,
	},
	"llama3": {
		Name:      "llama3",
		endOfTurn: "<|eot_id|>",
		render:    renderLlama3,
	},
	"chatml": {
		Name:      "chatml",
		endOfTurn: "<|im_end|>",
		render:    renderChatML,
	},
}

// TemplateByName returns a registered chat template.
func TemplateByName(name string) (*Template, error) {
	t, ok := templates[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown chat template %q (have %s)", name, strings.Join(TemplateNames(), ", "))
	}
	return t, nil
}

// TemplateNames lists the registered templates in sorted order.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for n := range templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EndOfTurn is the token that closes a turn; generation stops on it.
func (t *Template) EndOfTurn() string { return t.endOfTurn }

// Render produces the raw prompt, ending with an open assistant turn.
func (t *Template) Render(system string, msgs []llm.Message) string {
	var b strings.Builder
	t.render(&b, system, msgs)
	return b.String()
}

// accept reports whether m may follow prev in this template.
func (t *Template) accept(prev *llm.Message, m llm.Message) error {
	if strings.TrimSpace(m.Content) == "" {
		return errEmptyMessage
	}
	if t.alternating && prev != nil && prev.Role == m.Role {
		return errRoleOrder
	}
	return nil
}

// Gemma has no system role; the instructions ride in the first user turn.
func renderGemma(b *strings.Builder, system string, msgs []llm.Message) {
	pending := strings.TrimSpace(system)
	for _, m := range msgs {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
			if pending != "" {
				fmt.Fprintf(b, "<start_of_turn>user\n%s<end_of_turn>\n", pending)
				pending = ""
			}
		}
		content := m.Content
		if role == "user" && pending != "" {
			content = pending + "\n\n" + content
			pending = ""
		}
		fmt.Fprintf(b, "<start_of_turn>%s\n%s<end_of_turn>\n", role, content)
	}
	if pending != "" {
		fmt.Fprintf(b, "<start_of_turn>user\n%s<end_of_turn>\n", pending)
	}
	b.WriteString("<start_of_turn>model\n")
}

func renderLlama3(b *strings.Builder, system string, msgs []llm.Message) {
	if system != "" {
		fmt.Fprintf(b, "<|start_header_id|>system<|end_header_id|>\n\n%s<|eot_id|>", system)
	}
	for _, m := range msgs {
		fmt.Fprintf(b, "<|start_header_id|>%s<|end_header_id|>\n\n%s<|eot_id|>", m.Role, m.Content)
	}
	b.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
}

func renderChatML(b *strings.Builder, system string, msgs []llm.Message) {
	if system != "" {
		fmt.Fprintf(b, "<|im_start|>system\n%s<|im_end|>\n", system)
	}
	for _, m := range msgs {
		fmt.Fprintf(b, "<|im_start|>%s\n%s<|im_end|>\n", m.Role, m.Content)
	}
	b.WriteString("<|im_start|>assistant\n")
}
