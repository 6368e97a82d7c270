// Package boss drives the scripted two-round boss dialogues. It never calls
// the LLM: every AI line comes from the curriculum and the position in the
// dialogue is rebuilt from the history the client replays on each request.
package boss

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"polybot/internal/curriculum"
	"polybot/internal/models"
	"polybot/internal/validator"
)

const (
	// FallbackReply is served when the module's script is missing or broken.
	FallbackReply = "Scusa, non ho capito bene. Possiamo riprovare?"

	roundOneDone = "Bravissimo! Hai finito il primo round. Adesso proviamo una conversazione formale."
	allDone      = "Complimenti! Hai completato tutta la conversazione. Ottimo lavoro!"
)

type Engine struct {
	store  curriculum.Store
	logger *zap.Logger
}

func NewEngine(store curriculum.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger.Named("boss")}
}

// exercise loads the boss script for lessonID, or nil when it is missing.
func (e *Engine) exercise(ctx context.Context, lessonID string) *models.BossExercise {
	moduleID := curriculum.ModuleForLesson(lessonID, e.store.ModuleIDs())
	ex, err := e.store.BossExercise(ctx, moduleID)
	if err != nil {
		e.logger.Warn("boss exercise unavailable",
			zap.String("lesson_id", lessonID),
			zap.String("module_id", moduleID),
			zap.Error(err),
		)
		return nil
	}
	return ex
}

// scriptAt finds the round and turn for pos. A nil turn means the script
// cannot be used.
func (e *Engine) scriptAt(ex *models.BossExercise, pos Position) (*models.Round, *models.TurnDescriptor) {
	if ex == nil {
		return nil, nil
	}
	round := ex.Round(pos.Round)
	if round == nil {
		e.logger.Warn("round missing from script", zap.String("module_id", ex.ModuleID), zap.Int("round", pos.Round))
		return nil, nil
	}
	turn := turnAt(round, pos.TurnInRound)
	if turn == nil || len(turn.RequiredWords) == 0 {
		e.logger.Warn("turn missing from script",
			zap.String("module_id", ex.ModuleID),
			zap.Int("round", pos.Round),
			zap.Int("turn", pos.TurnInRound),
		)
		return round, nil
	}
	return round, turn
}

// Respond validates the utterance and always advances to the next
// scripted line; mistakes are reported, never blocking.
func (e *Engine) Respond(ctx context.Context, req models.TutorRequest) models.BossResponse {
	ex := e.exercise(ctx, req.LessonID)
	pos := Reconstruct(req.ChatHistory, Markers(ex))
	round, turn := e.scriptAt(ex, pos)

	resp := models.BossResponse{
		TurnNumber:  pos.CurrentTurn + 1,
		RoundNumber: pos.Round,
	}
	if turn == nil {
		resp.Text = FallbackReply
		resp.Status = models.StatusContinue
		return resp
	}

	res := validator.CheckTurn(req.UserMessage, turn)
	if !res.Valid {
		resp.HadMistake = true
		resp.MistakeInfo = &models.MistakeRecord{
			Round:           pos.Round,
			Turn:            pos.TurnInRound,
			UserMessage:     req.UserMessage,
			RequiredWords:   turn.RequiredWords,
			MissingWords:    res.MissingWords,
			UserRequirement: turn.UserRequirement,
		}
	}

	if pos.TurnInRound < turnsPerRound {
		next := turnAt(round, pos.TurnInRound+1)
		if next == nil || next.AIMessage == "" {
			resp.Text = FallbackReply
		} else {
			resp.Text = next.AIMessage
		}
		resp.Status = models.StatusContinue
		return resp
	}

	resp.Status = models.StatusRoundComplete
	resp.RoundComplete = true
	if pos.Round < lastRound {
		nextRound := pos.Round + 1
		resp.Text = roundOneDone
		resp.AllRoundsComplete = boolPtr(false)
		resp.NextRound = &nextRound
	} else {
		resp.Text = allDone
		resp.AllRoundsComplete = boolPtr(true)
	}
	return resp
}

// Check validates one utterance for the explicit check endpoint. Unlike
// Respond, it only moves to the next turn when the answer is valid. A
// positive turn_number in the request overrides the turn derived from
// history.
func (e *Engine) Check(ctx context.Context, req models.BossCheckRequest) models.BossCheckResponse {
	ex := e.exercise(ctx, req.LessonID)
	pos := Reconstruct(req.ConversationHistory, Markers(ex))
	if req.TurnNumber > 0 {
		pos = positionForTurn(req.TurnNumber, pos.Round2Detected)
	}
	_, turn := e.scriptAt(ex, pos)

	if turn == nil {
		// Nothing to judge against; let the learner move on.
		return models.BossCheckResponse{
			Valid:     true,
			NextTurn:  pos.CurrentTurn + 1,
			UsedWords: []string{},
		}
	}

	res := validator.CheckTurn(req.UserMessage, turn)
	out := models.BossCheckResponse{
		Valid:     res.Valid,
		UsedWords: res.UsedWords,
		NextTurn:  pos.CurrentTurn,
	}
	if res.Valid {
		out.Feedback = "Perfetto!"
		out.NextTurn = pos.CurrentTurn + 1
		out.Completed = pos.TurnInRound == turnsPerRound
	} else {
		out.Feedback = fmt.Sprintf("%s. Try using: %s", strings.TrimRight(turn.UserRequirement, ". "), strings.Join(res.MissingWords, ", "))
	}
	return out
}

// turnAt finds a turn by its 1-based number, falling back to position.
func turnAt(r *models.Round, n int) *models.TurnDescriptor {
	for i := range r.Turns {
		if r.Turns[i].Turn == n {
			return &r.Turns[i]
		}
	}
	if n >= 1 && n <= len(r.Turns) {
		return &r.Turns[n-1]
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }
