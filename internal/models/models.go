package models

import "strings"

// --- Curriculum ---

// TurnDescriptor is one scripted exchange inside a boss round.
type TurnDescriptor struct {
	Turn            int      `json:"turn" yaml:"turn"`
	AIMessage       string   `json:"ai_message" yaml:"ai_message"`
	UserRequirement string   `json:"user_requirement" yaml:"user_requirement"`
	RequiredWords   []string `json:"required_words" yaml:"required_words"`

	// RequiresAll overrides the AND/OR detection from UserRequirement when set.
	RequiresAll *bool `json:"requires_all,omitempty" yaml:"requires_all,omitempty"`

	Hints            []string `json:"hints,omitempty" yaml:"hints,omitempty"`
	InvalidResponses []string `json:"invalid_responses,omitempty" yaml:"invalid_responses,omitempty"`
}

// Round groups the four turns of one scripted conversation.
type Round struct {
	Round            int              `json:"round" yaml:"round"`
	RoundName        string           `json:"round_name" yaml:"round_name"`
	RoundDescription string           `json:"round_description" yaml:"round_description"`
	Turns            []TurnDescriptor `json:"turns" yaml:"turns"`
}

// Opener returns the AI line that starts the round.
func (r *Round) Opener() string {
	if len(r.Turns) == 0 {
		return ""
	}
	return r.Turns[0].AIMessage
}

// BossExercise is the capstone dialogue of a module.
type BossExercise struct {
	ModuleID         string  `json:"module_id" yaml:"module_id"`
	Title            string  `json:"title" yaml:"title"`
	Description      string  `json:"description" yaml:"description"`
	ConversationFlow []Round `json:"conversation_flow" yaml:"conversation_flow"`

	// Round2Markers are lowercase substrings that identify the round-2 opener
	// once the client has cleared its history.
	Round2Markers []string `json:"round2_markers,omitempty" yaml:"round2_markers,omitempty"`
}

// Round returns the round with the given 1-based number, or nil.
func (b *BossExercise) Round(n int) *Round {
	for i := range b.ConversationFlow {
		if b.ConversationFlow[i].Round == n {
			return &b.ConversationFlow[i]
		}
	}
	return nil
}

// Lesson describes a free-form tutor lesson.
type Lesson struct {
	LessonID          string   `json:"lesson_id" yaml:"lesson_id"`
	ModuleID          string   `json:"module_id" yaml:"module_id"`
	Title             string   `json:"title" yaml:"title"`
	CommunicativeGoal string   `json:"communicative_goal" yaml:"communicative_goal"`
	Explanation       string   `json:"explanation" yaml:"explanation"`
	TargetKeywords    []string `json:"target_keywords" yaml:"target_keywords"`
}

// Scenario is a free-form practice role-play.
type Scenario struct {
	ScenarioID          string `json:"scenario_id" yaml:"scenario_id"`
	Title               string `json:"title" yaml:"title"`
	Description         string `json:"description" yaml:"description"`
	CharacterRole       string `json:"character_role" yaml:"character_role"`
	WinningCondition    string `json:"winning_condition" yaml:"winning_condition"`
	UserGoalDescription string `json:"user_goal_description" yaml:"user_goal_description"`
	InitialGreeting     string `json:"initial_greeting,omitempty" yaml:"initial_greeting,omitempty"`
}

// --- Conversation ---

const (
	RoleUser      = "user"
	RolePolybot   = "polybot"
	RoleAssistant = "assistant"
)

// ChatMessage is one replayed history entry. Clients send either text or content.
type ChatMessage struct {
	Role    string `json:"role"`
	Text    string `json:"text,omitempty"`
	Content string `json:"content,omitempty"`
}

// Body returns whichever of text/content is set.
func (m ChatMessage) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Content
}

// IsUser reports whether the message came from the student.
func (m ChatMessage) IsUser() bool {
	return strings.EqualFold(strings.TrimSpace(m.Role), RoleUser)
}

// NormalizedRole maps every non-user role to assistant.
func (m ChatMessage) NormalizedRole() string {
	if m.IsUser() {
		return RoleUser
	}
	return RoleAssistant
}

// CountUserMessages returns how many history entries were written by the student.
func CountUserMessages(history []ChatMessage) int {
	n := 0
	for _, m := range history {
		if m.IsUser() {
			n++
		}
	}
	return n
}

// --- Statuses ---

const (
	StatusContinue      = "CONTINUE"
	StatusGoalAchieved  = "GOAL_ACHIEVED"
	StatusError         = "ERROR"
	StatusRoundComplete = "ROUND_COMPLETE"

	SceneActive   = "ACTIVE"
	SceneComplete = "COMPLETE"
)

// --- Results ---

// ValidationResult is the outcome of checking one boss utterance.
type ValidationResult struct {
	Valid        bool     `json:"valid"`
	UsedWords    []string `json:"used_words"`
	MissingWords []string `json:"missing_words"`
	RequiresAll  bool     `json:"requires_all"`
}

// MistakeRecord is attached to an invalid boss turn so the client can aggregate feedback.
type MistakeRecord struct {
	Round           int      `json:"round"`
	Turn            int      `json:"turn"`
	UserMessage     string   `json:"user_message"`
	RequiredWords   []string `json:"required_words"`
	MissingWords    []string `json:"missing_words"`
	UserRequirement string   `json:"user_requirement"`
}

// CorrectionData is the parsed grammar-check output of the tutor flow.
type CorrectionData struct {
	Original    string `json:"original"`
	Corrected   string `json:"corrected"`
	Explanation string `json:"explanation"`
}

// GoalCheckResult is the classifier verdict for a practice conversation.
type GoalCheckResult struct {
	Thought     string `json:"thought"`
	SceneStatus string `json:"scene_status"`
	Reply       string `json:"reply"`
}

// LessonProgress is the stored completion state of one lesson for one user.
type LessonProgress struct {
	UserID      string  `json:"user_id"`
	LessonID    string  `json:"lesson_id"`
	Mastery     float64 `json:"mastery"`
	XP          int     `json:"xp"`
	CompletedAt string  `json:"completed_at"`
}
