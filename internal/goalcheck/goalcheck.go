// Package goalcheck decides whether a free-form practice conversation has
// reached its winning condition.
package goalcheck

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"polybot/internal/llm"
	"polybot/internal/models"
	"polybot/internal/prompt"
)

const (
	historyWindow = 12
	maxTokens     = 160
	temperature   = 0.1

	// Used when a COMPLETE verdict comes without a usable closing line.
	closingReply = "Perfetto, grazie! Arrivederci!"
)

// Source records which parser layer produced a verdict.
type Source int

const (
	Default Source = iota
	Parsed
	Rescued
)

func (s Source) String() string {
	switch s {
	case Parsed:
		return "parsed"
	case Rescued:
		return "rescued"
	default:
		return "default"
	}
}

// Verdict is a goal-check result tagged with how it was obtained.
type Verdict struct {
	models.GoalCheckResult
	Source Source
}

// Complete reports whether the scene is over.
func (v Verdict) Complete() bool { return v.SceneStatus == models.SceneComplete }

type Classifier struct {
	llm    llm.Provider
	logger *zap.Logger
}

func New(p llm.Provider, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{llm: p, logger: logger.Named("goalcheck")}
}

// CheckGoal asks the model whether the conversation satisfies
// winningCondition. It never fails: provider errors and unusable output
// come back as an ACTIVE verdict.
func (c *Classifier) CheckGoal(ctx context.Context, history []models.ChatMessage, winningCondition, targetLang string) Verdict {
	resp, err := c.llm.Generate(llm.WithPurpose(ctx, "goal-check"), llm.Request{
		System:      BuildPrompt(history, winningCondition, targetLang),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "Return the JSON object now."}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		c.logger.Warn("goal check failed", zap.Error(err))
		return Verdict{GoalCheckResult: models.GoalCheckResult{
			Thought:     fmt.Sprintf("error: %v", err),
			SceneStatus: models.SceneActive,
			Reply:       "...",
		}}
	}

	v := Parse(resp.Text, history)
	if v.Source != Parsed {
		c.logger.Warn("goal check output was not valid JSON",
			zap.Stringer("source", v.Source),
			zap.String("status", v.SceneStatus),
			zap.String("raw", truncate(resp.Text, 200)),
		)
	}
	return v
}

// BuildPrompt renders the adjudication prompt over the most recent
// messages of history.
func BuildPrompt(history []models.ChatMessage, winningCondition, targetLang string) string {
	target := prompt.LanguageName(targetLang)
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	var b strings.Builder
	b.WriteString("You are the stage manager of a language-practice role-play. Decide whether the learner has completed the scene.\n\n")
	b.WriteString("Completion criteria (ALL must be met):\n")
	for i, c := range criteria(winningCondition) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	b.WriteString("\nConversation:\n")
	for _, m := range history {
		who := "Character"
		if m.IsUser() {
			who = "Learner"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, strings.TrimSpace(m.Body()))
	}
	b.WriteString("\nRespond with a single JSON object and nothing else, with exactly these keys:\n")
	b.WriteString(`{"thought": "<one short sentence of reasoning in English>", "scene_status": "ACTIVE" or "COMPLETE", "reply": "<the character's next line>"}` + "\n")
	fmt.Fprintf(&b, "scene_status is COMPLETE only if every criterion is met. reply must be written in %s; when COMPLETE it is a natural closing line.", target)
	return b.String()
}

// criteria splits a winning condition into its clauses: semicolons, new
// lines and commas outside parentheses separate them, and a leading "and"
// is dropped.
func criteria(cond string) []string {
	var (
		out   []string
		cur   strings.Builder
		depth int
	)
	flush := func() {
		c := strings.TrimSpace(cur.String())
		c = strings.TrimSpace(strings.TrimPrefix(c, "and "))
		c = strings.TrimLeft(c, "-*• ")
		if c != "" {
			out = append(out, c)
		}
		cur.Reset()
	}
	for _, r := range cond {
		switch {
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
		case depth == 0 && (r == ';' || r == '\n' || r == ','):
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	if len(out) == 0 {
		return []string{strings.TrimSpace(cond)}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
