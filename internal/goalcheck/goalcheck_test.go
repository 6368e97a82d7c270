package goalcheck

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polybot/internal/llm"
	"polybot/internal/models"
)

func msg(role, text string) models.ChatMessage {
	return models.ChatMessage{Role: role, Text: text}
}

// cafeHistory ends with a farewell right after the total was given.
func cafeHistory() []models.ChatMessage {
	return []models.ChatMessage{
		msg("polybot", "Buongiorno! Cosa le preparo?"),
		msg("user", "Un cappuccino e un cornetto, per favore."),
		msg("polybot", "Certo. Al tavolo o al banco?"),
		msg("user", "Al banco."),
		msg("polybot", "Ecco a lei. Sono in totale 2.50 euro."),
		msg("user", "Grazie, arrivederci"),
	}
}

func TestParse_Layers(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		status string
		reply  string
		source Source
	}{
		{
			name:   "clean object",
			raw:    `{"thought":"ordered and paid","scene_status":"COMPLETE","reply":"Grazie a lei!"}`,
			status: models.SceneComplete, reply: "Grazie a lei!", source: Parsed,
		},
		{
			name:   "keys in another order with chatter and a fence",
			raw:    "Sure!\n```json\n{\"reply\": \"Altro?\", \"scene_status\": \"ACTIVE\", \"thought\": \"no price yet {still}\"}\n```",
			status: models.SceneActive, reply: "Altro?", source: Parsed,
		},
		{
			name:   "second object is the real one",
			raw:    `{"note": 1} then {"thought":"x","reply":"Ciao!","scene_status":"complete"}`,
			status: models.SceneComplete, reply: "Ciao!", source: Parsed,
		},
		{
			name:   "status only",
			raw:    `{"scene_status": "COMPLETE"}`,
			status: models.SceneComplete, reply: closingReply, source: Parsed,
		},
		{
			name:   "cut off by token limit",
			raw:    `{"thought": "all done", "scene_status": "ACTIVE", "reply": "Vuole anche`,
			status: models.SceneActive, reply: "...", source: Parsed,
		},
		{
			name:   "loose keys",
			raw:    `{"Status": "COMPLETE", "Response": "A presto!"}`,
			status: models.SceneComplete, reply: "A presto!", source: Parsed,
		},
		{
			name:   "unknown status becomes active",
			raw:    `{"thought":"?","scene_status":"WINNING","reply":"Prego"}`,
			status: models.SceneActive, reply: "Prego", source: Parsed,
		},
		{
			name:   "completion keyword rescue",
			raw:    `The learner has achieved every goal of the scene.`,
			status: models.SceneComplete, reply: closingReply, source: Rescued,
		},
		{
			name:   "negated keyword is not a rescue",
			raw:    `The scene is not complete yet.`,
			status: models.SceneActive, reply: "...", source: Default,
		},
		{
			name:   "garbage",
			raw:    `¯\_(ツ)_/¯`,
			status: models.SceneActive, reply: "...", source: Default,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Parse(tt.raw, nil)
			assert.Equal(t, tt.status, v.SceneStatus)
			assert.Equal(t, tt.reply, v.Reply)
			assert.Equal(t, tt.source, v.Source, v.Source.String())
		})
	}
}

func TestParse_ContextRescue(t *testing.T) {
	v := Parse("I believe the customer is leaving now", cafeHistory())
	assert.Equal(t, models.SceneComplete, v.SceneStatus)
	assert.Equal(t, Rescued, v.Source)
	assert.True(t, v.Complete())

	short := cafeHistory()[2:]
	v = Parse("I believe the customer is leaving now", short)
	assert.Equal(t, models.SceneActive, v.SceneStatus, "needs at least six messages")

	noPrice := cafeHistory()
	noPrice[4] = msg("polybot", "Ecco a lei.")
	v = Parse("I believe the customer is leaving now", noPrice)
	assert.Equal(t, models.SceneActive, v.SceneStatus)
}

func TestParse_StatusAlwaysValid(t *testing.T) {
	inputs := []string{
		"", "{", "}", "{}", `{"scene_status": 5}`, `{"scene_status": null}`, `[]`, `"COMPLETE"`,
		`{"thought":1,"scene_status":"COMPLETE","reply":2}`, strings.Repeat("{", 50),
	}
	for _, in := range inputs {
		v := Parse(in, cafeHistory())
		assert.Contains(t, []string{models.SceneActive, models.SceneComplete}, v.SceneStatus, in)
		assert.NotEmpty(t, v.Reply, in)
	}
}

// Malformed output, farewell after the total, long enough history.
func TestCheckGoal_HeuristicRescueOnMalformedOutput(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: "thought: they paid?? scene_status maybe"})
	c := New(mock, nil)

	v := c.CheckGoal(context.Background(), cafeHistory(),
		"The customer has ordered at least one item, said whether they sit or stand, and has been told the total price in euro.", "it")
	assert.Equal(t, models.SceneComplete, v.SceneStatus)
	assert.Equal(t, Rescued, v.Source)

	req := mock.LastCall()
	assert.Equal(t, maxTokens, req.MaxTokens)
	assert.InDelta(t, 0.1, req.Temperature, 1e-9)
	assert.Contains(t, req.System, "Grazie, arrivederci")
}

func TestCheckGoal_ProviderErrorIsSafe(t *testing.T) {
	c := New(llm.NewMockProvider(llm.MockResponse{Err: errors.New("connection reset")}), nil)
	v := c.CheckGoal(context.Background(), cafeHistory(), "anything", "it")
	assert.Equal(t, models.SceneActive, v.SceneStatus)
	assert.Equal(t, "...", v.Reply)
	assert.Contains(t, v.Thought, "connection reset")
	assert.Equal(t, Default, v.Source)
}

func TestBuildPrompt_WindowAndCriteria(t *testing.T) {
	var history []models.ChatMessage
	for i := range 20 {
		role := "user"
		if i%2 == 0 {
			role = "polybot"
		}
		history = append(history, msg(role, "m"+string(rune('a'+i))))
	}
	p := BuildPrompt(history, "The customer has ordered, said where they sit (table, counter), and paid", "it")

	assert.NotContains(t, p, "Character: ma\n")
	assert.NotContains(t, p, "Learner: mh\n")
	assert.Contains(t, p, "Character: mi\n")
	assert.Contains(t, p, "Learner: mt\n")

	assert.Contains(t, p, "1. The customer has ordered\n")
	assert.Contains(t, p, "2. said where they sit (table, counter)\n")
	assert.Contains(t, p, "3. paid\n")
	assert.Contains(t, p, "written in Italian")
	assert.Contains(t, p, `"scene_status"`)
}

func TestCriteria_SingleClause(t *testing.T) {
	require.Equal(t, []string{"Order a coffee"}, criteria("Order a coffee"))
	require.Equal(t, []string{""}, criteria("  "))
}
