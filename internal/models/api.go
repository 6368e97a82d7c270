package models

// InitiateRequest starts a lesson conversation.
type InitiateRequest struct {
	TargetLanguage string `json:"target_language"`
	NativeLanguage string `json:"native_language"`
	Level          string `json:"level"`
	LessonID       string `json:"lesson_id"`
}

// InitiateResponse carries the first line of a lesson.
type InitiateResponse struct {
	Text              string `json:"text"`
	Explanation       string `json:"explanation"`
	Sender            string `json:"sender"`
	CommunicativeGoal string `json:"communicative_goal"`
}

// TutorRequest is shared by the free-form tutor and the boss endpoints.
type TutorRequest struct {
	UserMessage    string        `json:"user_message"`
	ChatHistory    []ChatMessage `json:"chat_history"`
	TargetLanguage string        `json:"target_language"`
	NativeLanguage string        `json:"native_language"`
	Level          string        `json:"level"`
	LessonID       string        `json:"lesson_id"`
}

// TutorResponse is the free-form tutor reply.
type TutorResponse struct {
	Text           string          `json:"text"`
	Status         string          `json:"status"`
	CorrectionData *CorrectionData `json:"correction_data,omitempty"`
}

// BossResponse is the scripted boss reply. Position fields are always present.
type BossResponse struct {
	Text              string          `json:"text"`
	Status            string          `json:"status"`
	CorrectionData    *CorrectionData `json:"correction_data"`
	TurnNumber        int             `json:"turn_number"`
	RoundNumber       int             `json:"round_number"`
	RoundComplete     bool            `json:"round_complete"`
	HadMistake        bool            `json:"had_mistake"`
	MistakeInfo       *MistakeRecord  `json:"mistake_info,omitempty"`
	AllRoundsComplete *bool           `json:"all_rounds_complete,omitempty"`
	NextRound         *int            `json:"next_round,omitempty"`
}

// BossCheckRequest asks for an explicit validation of one utterance.
type BossCheckRequest struct {
	UserMessage         string        `json:"user_message"`
	TurnNumber          int           `json:"turn_number"`
	ConversationHistory []ChatMessage `json:"conversation_history"`
	LessonID            string        `json:"lesson_id"`
	TargetLanguage      string        `json:"target_language"`
	NativeLanguage      string        `json:"native_language"`
}

// BossCheckResponse is the explicit validation verdict.
type BossCheckResponse struct {
	Valid     bool     `json:"valid"`
	Feedback  string   `json:"feedback"`
	NextTurn  int      `json:"next_turn"`
	Completed bool     `json:"completed"`
	UsedWords []string `json:"used_words"`
}

// PracticeInitiateRequest begins a practice scenario.
type PracticeInitiateRequest struct {
	ScenarioID     string `json:"scenario_id"`
	TargetLanguage string `json:"target_language"`
	NativeLanguage string `json:"native_language"`
}

// PracticeInitiateResponse opens a practice scenario.
type PracticeInitiateResponse struct {
	Text                string `json:"text"`
	SceneStatus         string `json:"scene_status"`
	ScenarioID          string `json:"scenario_id"`
	WinningCondition    string `json:"winning_condition"`
	UserGoalDescription string `json:"user_goal_description"`
}

// PracticeChatRequest is one practice text turn.
type PracticeChatRequest struct {
	ScenarioID          string        `json:"scenario_id"`
	UserMessage         string        `json:"user_message"`
	ConversationHistory []ChatMessage `json:"conversation_history"`
	TargetLanguage      string        `json:"target_language"`
	NativeLanguage      string        `json:"native_language"`
}

// PracticeChatResponse is the practice text reply.
type PracticeChatResponse struct {
	Reply       string `json:"reply"`
	SceneStatus string `json:"scene_status"`
	Thought     string `json:"thought"`
}

// PracticeVoiceResult is the practice voice outcome before it is written as audio + headers.
type PracticeVoiceResult struct {
	Audio       []byte
	ContentType string
	Transcript  string
	Confidence  float64
	PracticeChatResponse
}

// LessonCompleteRequest records a finished lesson.
type LessonCompleteRequest struct {
	LessonID string  `json:"lesson_id"`
	Mastery  float64 `json:"mastery"`
	XP       int     `json:"xp"`
}
