package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"polybot/internal/llm"
	"polybot/internal/models"
)

func newComposer(t *testing.T, name string) (*Composer, *observer.ObservedLogs) {
	t.Helper()
	tmpl, err := TemplateByName(name)
	require.NoError(t, err)
	core, logs := observer.New(zapcore.WarnLevel)
	return NewComposer(tmpl, zap.New(core)), logs
}

func TestTemplateByName(t *testing.T) {
	for _, name := range []string{"gemma", "Llama3", " chatml "} {
		tmpl, err := TemplateByName(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, tmpl.EndOfTurn())
	}
	_, err := TemplateByName("alpaca")
	assert.Error(t, err)
	assert.Equal(t, []string{"chatml", "gemma", "llama3"}, TemplateNames())
}

func TestRender_Gemma(t *testing.T) {
	tmpl, _ := TemplateByName("gemma")

	got := tmpl.Render("Be brief.", []llm.Message{
		{Role: llm.RoleAssistant, Content: "Ciao!"},
		{Role: llm.RoleUser, Content: "Ciao!"},
	})
	want := "<start_of_turn>user\nBe brief.<end_of_turn>\n" +
		"<start_of_turn>model\nCiao!<end_of_turn>\n" +
		"<start_of_turn>user\nCiao!<end_of_turn>\n" +
		"<start_of_turn>model\n"
	assert.Equal(t, want, got)

	got = tmpl.Render("Be brief.", []llm.Message{{Role: llm.RoleUser, Content: "Buongiorno"}})
	assert.Equal(t, "<start_of_turn>user\nBe brief.\n\nBuongiorno<end_of_turn>\n<start_of_turn>model\n", got)

	got = tmpl.Render("Only system.", nil)
	assert.Equal(t, "<start_of_turn>user\nOnly system.<end_of_turn>\n<start_of_turn>model\n", got)
}

func TestRender_ChatMLAndLlama3(t *testing.T) {
	msgs := []llm.Message{{Role: llm.RoleUser, Content: "Ciao"}}

	chatml, _ := TemplateByName("chatml")
	assert.Equal(t,
		"<|im_start|>system\nS<|im_end|>\n<|im_start|>user\nCiao<|im_end|>\n<|im_start|>assistant\n",
		chatml.Render("S", msgs))

	llama, _ := TemplateByName("llama3")
	out := llama.Render("S", msgs)
	assert.True(t, strings.HasPrefix(out, "<|start_header_id|>system<|end_header_id|>\n\nS<|eot_id|>"))
	assert.True(t, strings.HasSuffix(out, "<|start_header_id|>assistant<|end_header_id|>\n\n"))
}

func TestMessages_NormalizesRoles(t *testing.T) {
	c, logs := newComposer(t, "chatml")
	msgs := c.Messages([]models.ChatMessage{
		{Role: "polybot", Text: "Ciao!"},
		{Role: "USER", Content: "Ciao"},
		{Role: "assistant", Content: "Come stai?"},
		{Role: "narrator", Text: "Bene"},
	})
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleAssistant, msgs[0].Role)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, "Ciao", msgs[1].Content)
	assert.Equal(t, llm.RoleAssistant, msgs[3].Role)
	assert.Zero(t, logs.Len())
}

func TestMessages_DropsRejectedWithWarning(t *testing.T) {
	c, logs := newComposer(t, "gemma")
	msgs := c.Messages([]models.ChatMessage{
		{Role: "polybot", Text: "Ciao!"},
		{Role: "user", Text: "   "},
		{Role: "polybot", Text: "Ci sei?"},
		{Role: "user", Text: "Sì"},
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, "Ciao!", msgs[0].Content)
	assert.Equal(t, "Sì", msgs[1].Content)
	assert.Equal(t, 2, logs.FilterMessage("dropping history message").Len())
}

func TestWithUser_IncomingMessageWins(t *testing.T) {
	c, _ := newComposer(t, "gemma")
	msgs := c.WithUser([]models.ChatMessage{
		{Role: "polybot", Text: "Ciao!"},
		{Role: "user", Text: "old"},
	}, "nuovo")
	require.Len(t, msgs, 2)
	assert.Equal(t, "nuovo", msgs[1].Content)

	msgs = c.WithUser(nil, "  ")
	assert.Empty(t, msgs)
}

func TestRenderChatInput(t *testing.T) {
	c, _ := newComposer(t, "chatml")
	out := c.RenderChatInput("S", []models.ChatMessage{{Role: "polybot", Text: "Ciao!"}})
	assert.Equal(t, "<|im_start|>system\nS<|im_end|>\n<|im_start|>assistant\nCiao!<|im_end|>\n<|im_start|>assistant\n", out)
}

func TestStageManagerPrompt_Memoized(t *testing.T) {
	c, _ := newComposer(t, "gemma")
	sc := &models.Scenario{
		ScenarioID:       "cafe_order",
		Title:            "Al bar",
		CharacterRole:    "a barista in Rome",
		WinningCondition: "Order a coffee and pay",
	}

	first := c.BuildStageManagerPrompt(sc, "it", "en")
	assert.Contains(t, first, "a barista in Rome")
	assert.Contains(t, first, "Order a coffee and pay")
	assert.Contains(t, first, "ONLY Italian")

	sc.WinningCondition = "changed"
	assert.Equal(t, first, c.BuildStageManagerPrompt(sc, "it", "en"), "cached by scenario and languages")
	assert.NotEqual(t, first, c.BuildStageManagerPrompt(sc, "it", "de"))
}

func TestBuilders_AreDeterministic(t *testing.T) {
	c, _ := newComposer(t, "gemma")
	lesson := models.Lesson{LessonID: "A1.1.2", Title: "Come stai?", CommunicativeGoal: "Ask how someone is"}

	a := c.BuildInitiationPrompt(lesson, "it", "en")
	assert.Equal(t, a, c.BuildInitiationPrompt(lesson, "it", "en"))
	assert.Contains(t, a, "ONLY in Italian")
	assert.Contains(t, a, "Ask how someone is")

	tutor := c.BuildTutorPrompt("Ask how someone is", []string{"come stai", "bene"}, "Italian")
	assert.Contains(t, tutor, "come stai, bene")

	grammar := c.BuildGrammarCheckPrompt("io sono bene", "it", "en")
	assert.Contains(t, grammar, "NO_ERROR")
	assert.Contains(t, grammar, "CORRECTED:")
	assert.Contains(t, grammar, "EXPLANATION:")
	assert.Contains(t, grammar, `"io sono bene"`)

	assessor := c.BuildGoalAssessorPrompt("Ask how someone is", "it")
	assert.Contains(t, assessor, "YES or NO")
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "Italian", LanguageName("it"))
	assert.Equal(t, "Italian", LanguageName("it-IT"))
	assert.Equal(t, "English", LanguageName("en"))
	assert.Equal(t, "Italian", LanguageName("Italian"))
	assert.Equal(t, "Italian", LanguageName(""))
}

func TestParseGrammarCheck(t *testing.T) {
	assert.Nil(t, ParseGrammarCheck("io sto bene", "NO_ERROR"))
	assert.Nil(t, ParseGrammarCheck("io sto bene", "no_error."))
	assert.Nil(t, ParseGrammarCheck("io sto bene", "Looks fine to me"))

	cd := ParseGrammarCheck("io sono bene", "CORRECTED: Io sto bene\nEXPLANATION: Use stare for how you feel.")
	require.NotNil(t, cd)
	assert.Equal(t, "io sono bene", cd.Original)
	assert.Equal(t, "Io sto bene", cd.Corrected)
	assert.Equal(t, "Use stare for how you feel.", cd.Explanation)

	cd = ParseGrammarCheck("ciao", "**CORRECTED:** Ciao!\n")
	require.NotNil(t, cd)
	assert.Equal(t, "Ciao!", cd.Corrected)
	assert.Empty(t, cd.Explanation)

	assert.Nil(t, ParseGrammarCheck("Ciao!", "CORRECTED: ciao!"), "same sentence is not a correction")
}

func TestParseYesNo(t *testing.T) {
	assert.True(t, ParseYesNo("YES"))
	assert.True(t, ParseYesNo(" yes."))
	assert.True(t, ParseYesNo("**Yes** the goal"))
	assert.False(t, ParseYesNo("NO"))
	assert.False(t, ParseYesNo(""))
	assert.False(t, ParseYesNo("Yesterday"))
}
