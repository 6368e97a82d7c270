package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"polybot/internal/curriculum"
	"polybot/internal/llm"
	"polybot/internal/models"
	"polybot/internal/speech"
)

// minHistoryForGoalCheck is the incoming history length from which a text
// turn is adjudicated; the opening exchange never completes a scene.
const minHistoryForGoalCheck = 2

// PracticeInitiate opens a practice scenario with the character's greeting.
func (s *Service) PracticeInitiate(ctx context.Context, req models.PracticeInitiateRequest) (*models.PracticeInitiateResponse, error) {
	sc, err := s.scenario(ctx, req.ScenarioID)
	if err != nil {
		return nil, err
	}

	resp := &models.PracticeInitiateResponse{
		SceneStatus:         models.SceneActive,
		ScenarioID:          sc.ScenarioID,
		WinningCondition:    sc.WinningCondition,
		UserGoalDescription: sc.UserGoalDescription,
		Text:                sc.InitialGreeting,
	}
	if resp.Text != "" {
		return resp, nil
	}

	a := s.adapters.Load()
	if a == nil {
		resp.Text = practiceGreeting
		return resp, nil
	}
	text, err := s.generate(ctx, a, "practice-initiate", characterParams,
		s.composer.BuildStageManagerPrompt(sc, req.TargetLanguage, req.NativeLanguage),
		[]llm.Message{{Role: llm.RoleUser, Content: "Greet the customer."}})
	if err != nil {
		s.logger.Warn("practice greeting failed", zap.String("scenario_id", sc.ScenarioID), zap.Error(err))
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minGeneratedRunes {
		text = practiceGreeting
	}
	resp.Text = text
	return resp, nil
}

// PracticeText runs one text turn: the character replies, then the goal
// classifier decides whether the scene is over.
func (s *Service) PracticeText(ctx context.Context, req models.PracticeChatRequest) (*models.PracticeChatResponse, error) {
	sc, err := s.scenario(ctx, req.ScenarioID)
	if err != nil {
		return nil, err
	}
	a := s.adapters.Load()
	if a == nil {
		return &models.PracticeChatResponse{
			Reply:       WarmingUpText,
			SceneStatus: models.SceneActive,
			Thought:     "warming up",
		}, nil
	}
	return s.practiceTurn(ctx, a, sc, req), nil
}

func (s *Service) practiceTurn(ctx context.Context, a *Adapters, sc *models.Scenario, req models.PracticeChatRequest) *models.PracticeChatResponse {
	msgs := s.composer.WithUser(req.ConversationHistory, req.UserMessage)
	reply, err := s.generate(ctx, a, "character", characterParams,
		s.composer.BuildStageManagerPrompt(sc, req.TargetLanguage, req.NativeLanguage), msgs)
	if err != nil {
		s.logger.Error("character reply failed", zap.String("scenario_id", sc.ScenarioID), zap.Error(err))
		return &models.PracticeChatResponse{
			Reply:       characterErrorReply,
			SceneStatus: models.SceneActive,
			Thought:     fmt.Sprintf("error: %v", err),
		}
	}
	if utf8.RuneCountInString(strings.TrimSpace(reply)) < minGeneratedRunes {
		reply = characterErrorReply
	}

	resp := &models.PracticeChatResponse{Reply: reply, SceneStatus: models.SceneActive}
	if len(req.ConversationHistory) < minHistoryForGoalCheck {
		return resp
	}

	history := make([]models.ChatMessage, 0, len(req.ConversationHistory)+2)
	history = append(history, req.ConversationHistory...)
	history = append(history,
		models.ChatMessage{Role: models.RoleUser, Text: req.UserMessage},
		models.ChatMessage{Role: models.RoleAssistant, Text: reply},
	)

	goals := s.goals.Load()
	v := goals.CheckGoal(ctx, history, sc.WinningCondition, req.TargetLanguage)
	resp.Thought = v.Thought
	if v.Complete() {
		resp.SceneStatus = models.SceneComplete
		if v.Reply != "" && v.Reply != "..." {
			resp.Reply = v.Reply
		}
		s.logger.Info("scene complete",
			zap.String("scenario_id", sc.ScenarioID),
			zap.Stringer("source", v.Source),
		)
	}
	return resp
}

// PracticeVoice transcribes the student's audio, runs the text turn and
// speaks the reply. Unlike the text flow it fails with ErrNotReady before
// warm-up so the handler can answer with JSON instead of audio.
func (s *Service) PracticeVoice(ctx context.Context, req models.PracticeChatRequest, audio io.Reader, filename string) (*models.PracticeVoiceResult, error) {
	sc, err := s.scenario(ctx, req.ScenarioID)
	if err != nil {
		return nil, err
	}
	a := s.adapters.Load()
	if a == nil {
		return nil, ErrNotReady
	}

	// The reader belongs to the request; buffer it so the worker slot is
	// held only while the model runs.
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio: %v", ErrInvalidInput, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrInvalidInput)
	}

	var tr *speech.Transcript
	err = s.onPool(ctx, func(ctx context.Context) error {
		var err error
		tr, err = a.STT.Transcribe(ctx, bytes.NewReader(data), filename, req.TargetLanguage)
		return err
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(tr.Text) == "" {
		return nil, speech.ErrEmptyTranscript
	}
	s.logger.Debug("transcribed",
		zap.String("scenario_id", sc.ScenarioID),
		zap.Int("runes", utf8.RuneCountInString(tr.Text)),
		zap.Float64("confidence", tr.Confidence),
	)

	req.UserMessage = tr.Text
	turn := s.practiceTurn(ctx, a, sc, req)

	var out []byte
	err = s.onPool(ctx, func(ctx context.Context) error {
		var err error
		out, err = a.TTS.Synthesize(ctx, turn.Reply, req.TargetLanguage)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpeechSynthesis, err)
	}

	return &models.PracticeVoiceResult{
		Audio:                out,
		ContentType:          a.TTS.ContentType(),
		Transcript:           tr.Text,
		Confidence:           tr.Confidence,
		PracticeChatResponse: *turn,
	}, nil
}

func (s *Service) scenario(ctx context.Context, id string) (*models.Scenario, error) {
	sc, err := s.store.Scenario(ctx, id)
	if errors.Is(err, curriculum.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load scenario %q: %w", id, err)
	}
	return sc, nil
}
