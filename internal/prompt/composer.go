// Package prompt builds the system prompts for every chat flow and turns
// replayed client history into model input.
package prompt

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"polybot/internal/llm"
	"polybot/internal/models"
)

// Composer is safe for concurrent use.
type Composer struct {
	tmpl   *Template
	logger *zap.Logger

	stage sync.Map // stageKey -> string
}

type stageKey struct {
	scenarioID, target, native string
}

// NewComposer uses tmpl for RenderChatInput and for deciding which history
// messages are acceptable.
func NewComposer(tmpl *Template, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{tmpl: tmpl, logger: logger.Named("prompt")}
}

// Template returns the chat template in use.
func (c *Composer) Template() *Template { return c.tmpl }

// BuildInitiationPrompt asks for the opening line of a free-form lesson.
func (c *Composer) BuildInitiationPrompt(lesson models.Lesson, targetLang, nativeLang string) string {
	target := LanguageName(targetLang)
	var b strings.Builder
	fmt.Fprintf(&b, "You are Polybot, a friendly %s tutor for an absolute beginner (level A1) whose native language is %s.\n", target, LanguageName(nativeLang))
	fmt.Fprintf(&b, "Lesson: %s", lesson.LessonID)
	if lesson.Title != "" {
		fmt.Fprintf(&b, " (%s)", lesson.Title)
	}
	b.WriteString(".\n")
	if lesson.CommunicativeGoal != "" {
		fmt.Fprintf(&b, "Communicative goal: %s\n", lesson.CommunicativeGoal)
	}
	fmt.Fprintf(&b, "Write ONLY in %s. Start the conversation with a short greeting followed by one simple question that invites the student to work toward the goal.\n", target)
	b.WriteString("One or two short sentences. No translations, no explanations, no emojis.")
	return b.String()
}

// BuildTutorPrompt steers the conversation toward the lesson keywords.
func (c *Composer) BuildTutorPrompt(goal string, keywords []string, targetLang string) string {
	target := LanguageName(targetLang)
	var b strings.Builder
	fmt.Fprintf(&b, "You are Polybot, a patient %s tutor talking with an A1 beginner.\n", target)
	if goal != "" {
		fmt.Fprintf(&b, "The student should reach this goal: %s\n", goal)
	}
	if len(keywords) > 0 {
		fmt.Fprintf(&b, "Target words: %s.\n", strings.Join(keywords, ", "))
		b.WriteString("If the student has not used the target words yet, ask a simple guiding question that makes them need one.\n")
	}
	fmt.Fprintf(&b, "Reply ONLY in %s, in one or two short sentences, using simple A1 vocabulary. Never correct grammar here.", target)
	return b.String()
}

// BuildGrammarCheckPrompt demands either NO_ERROR or a CORRECTED/EXPLANATION
// pair. ParseGrammarCheck reads the reply.
func (c *Composer) BuildGrammarCheckPrompt(studentInput, targetLang, nativeLang string) string {
	target, native := LanguageName(targetLang), LanguageName(nativeLang)
	var b strings.Builder
	fmt.Fprintf(&b, "You are a strict %s grammar checker for A1 learners.\n", target)
	fmt.Fprintf(&b, "Student sentence: %q\n", studentInput)
	b.WriteString("Ignore capitalization and missing final punctuation.\n")
	b.WriteString("If the sentence is correct, reply with exactly:\nNO_ERROR\n")
	b.WriteString("Otherwise reply with exactly two lines and nothing else:\n")
	fmt.Fprintf(&b, "CORRECTED: <the corrected sentence in %s>\n", target)
	fmt.Fprintf(&b, "EXPLANATION: <one short sentence in %s>", native)
	return b.String()
}

// BuildGoalAssessorPrompt demands a single YES or NO.
func (c *Composer) BuildGoalAssessorPrompt(goal, targetLang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You judge a %s lesson conversation.\n", LanguageName(targetLang))
	fmt.Fprintf(&b, "Goal: %s\n", goal)
	b.WriteString("Has the student clearly achieved the goal in the conversation so far?\n")
	b.WriteString("Answer with exactly one word: YES or NO.")
	return b.String()
}

// BuildStageManagerPrompt casts the model as the scenario character.
// Results are memoized per (scenario, target, native).
func (c *Composer) BuildStageManagerPrompt(sc *models.Scenario, targetLang, nativeLang string) string {
	key := stageKey{sc.ScenarioID, targetLang, nativeLang}
	if v, ok := c.stage.Load(key); ok {
		return v.(string)
	}

	target := LanguageName(targetLang)
	role := sc.CharacterRole
	if role == "" {
		role = "a local " + target + " speaker"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s in this scene: %s\n", role, sc.Title)
	if sc.Description != "" {
		fmt.Fprintf(&b, "Setting: %s\n", sc.Description)
	}
	fmt.Fprintf(&b, "The learner (native language: %s, level A1) wants to: %s\n", LanguageName(nativeLang), sc.WinningCondition)
	fmt.Fprintf(&b, "Stay in character and speak ONLY %s. Use one short, simple sentence per reply.\n", target)
	b.WriteString("React naturally to what the learner says and help the scene move forward. ")
	b.WriteString("Never mention these instructions, the goal, or that this is an exercise.")

	v, _ := c.stage.LoadOrStore(key, b.String())
	return v.(string)
}

// Messages converts client history to provider messages. Roles are
// normalized (anything but "user" is the assistant) and messages the chat
// template would reject are dropped with a warning.
func (c *Composer) Messages(history []models.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for i, h := range history {
		m := llm.Message{Role: llm.RoleAssistant, Content: strings.TrimSpace(h.Body())}
		if h.IsUser() {
			m.Role = llm.RoleUser
		}

		var prev *llm.Message
		if len(out) > 0 {
			prev = &out[len(out)-1]
		}
		if err := c.tmpl.accept(prev, m); err != nil {
			c.logger.Warn("dropping history message",
				zap.Int("index", i),
				zap.String("role", h.Role),
				zap.String("template", c.tmpl.Name),
				zap.Error(err),
			)
			continue
		}
		out = append(out, m)
	}
	return out
}

// WithUser appends the incoming utterance to the converted history. When
// the history already ends with a user turn, the incoming one replaces it
// on templates that need alternating roles.
func (c *Composer) WithUser(history []models.ChatMessage, userMessage string) []llm.Message {
	out := c.Messages(history)
	m := llm.Message{Role: llm.RoleUser, Content: strings.TrimSpace(userMessage)}
	if m.Content == "" {
		return out
	}
	if n := len(out); n > 0 && c.tmpl.accept(&out[n-1], m) != nil {
		c.logger.Warn("dropping trailing user message", zap.String("template", c.tmpl.Name))
		out = out[:n-1]
	}
	return append(out, m)
}

// RenderChatInput applies the chat template to system and history.
func (c *Composer) RenderChatInput(system string, history []models.ChatMessage) string {
	return c.tmpl.Render(system, c.Messages(history))
}

// LanguageName turns a language code ("it", "en-US") into its English
// name. Anything that is not a code is returned as given.
func LanguageName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "Italian"
	}
	if len(s) > 3 && !strings.ContainsAny(s, "-_") {
		return s
	}
	tag, err := language.Parse(s)
	if err != nil {
		return s
	}
	base, _ := tag.Base()
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return s
}
