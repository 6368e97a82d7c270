package chat

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"polybot/internal/boss"
	"polybot/internal/curriculum"
	"polybot/internal/llm"
	"polybot/internal/models"
	"polybot/internal/prompt"
)

const senderPolybot = "polybot"

// Initiate opens a lesson. Boss lessons start with the scripted round-1
// opener and never touch the LLM; tutor lessons get a short generated
// greeting.
func (s *Service) Initiate(ctx context.Context, req models.InitiateRequest) models.InitiateResponse {
	if curriculum.IsBossLesson(req.LessonID) {
		return s.initiateBoss(ctx, req)
	}

	lesson := s.lesson(ctx, req.LessonID)
	resp := models.InitiateResponse{
		Sender:            senderPolybot,
		Explanation:       lesson.Explanation,
		CommunicativeGoal: lesson.CommunicativeGoal,
	}

	a := s.adapters.Load()
	if a == nil {
		resp.Text = WarmingUpText
		return resp
	}

	system := s.composer.BuildInitiationPrompt(lesson, req.TargetLanguage, req.NativeLanguage)
	text, err := s.generate(ctx, a, "initiate", initiateParams, system,
		[]llm.Message{{Role: llm.RoleUser, Content: "Start the conversation."}})
	if err != nil {
		s.logger.Warn("initiation failed, using fallback greeting", zap.String("lesson_id", req.LessonID), zap.Error(err))
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minGeneratedRunes {
		text = fallbackGreeting
	}
	resp.Text = text
	return resp
}

func (s *Service) initiateBoss(ctx context.Context, req models.InitiateRequest) models.InitiateResponse {
	resp := models.InitiateResponse{Sender: senderPolybot, Text: boss.FallbackReply}

	moduleID := curriculum.ModuleForLesson(req.LessonID, s.store.ModuleIDs())
	ex, err := s.store.BossExercise(ctx, moduleID)
	if err != nil {
		s.logger.Warn("boss exercise unavailable", zap.String("module_id", moduleID), zap.Error(err))
		return resp
	}
	if r := ex.Round(1); r != nil && r.Opener() != "" {
		resp.Text = r.Opener()
		resp.Explanation = r.RoundDescription
	}
	resp.CommunicativeGoal = ex.Description
	return resp
}

// Tutor runs the free-form tutor turn: goal assessment, grammar check,
// then the next guiding line, strictly in that order.
func (s *Service) Tutor(ctx context.Context, req models.TutorRequest) models.TutorResponse {
	a := s.adapters.Load()
	if a == nil {
		return models.TutorResponse{Text: WarmingUpText, Status: models.StatusContinue}
	}

	lesson := s.lesson(ctx, req.LessonID)
	goal := lesson.CommunicativeGoal
	msgs := s.composer.WithUser(req.ChatHistory, req.UserMessage)

	if goal != "" {
		verdict, err := s.generate(ctx, a, "goal-assess", assessParams,
			s.composer.BuildGoalAssessorPrompt(goal, req.TargetLanguage), msgs)
		switch {
		case err != nil:
			s.logger.Warn("goal assessment failed", zap.Error(err))
		case prompt.ParseYesNo(verdict):
			return models.TutorResponse{Text: goalAchievedReply, Status: models.StatusGoalAchieved}
		}
	}

	var correction *models.CorrectionData
	if strings.TrimSpace(req.UserMessage) != "" {
		out, err := s.generate(ctx, a, "grammar-check", grammarParams,
			s.composer.BuildGrammarCheckPrompt(req.UserMessage, req.TargetLanguage, req.NativeLanguage),
			[]llm.Message{{Role: llm.RoleUser, Content: req.UserMessage}})
		if err != nil {
			s.logger.Warn("grammar check failed", zap.Error(err))
		} else {
			correction = prompt.ParseGrammarCheck(req.UserMessage, out)
		}
	}

	text, err := s.generate(ctx, a, "tutor", tutorParams,
		s.composer.BuildTutorPrompt(goal, lesson.TargetKeywords, req.TargetLanguage), msgs)
	if err != nil {
		s.logger.Error("tutor generation failed", zap.String("lesson_id", req.LessonID), zap.Error(err))
		return models.TutorResponse{Text: tutorErrorReply, Status: models.StatusError, CorrectionData: correction}
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minGeneratedRunes {
		text = tutorEmptyReply
	}
	return models.TutorResponse{Text: text, Status: models.StatusContinue, CorrectionData: correction}
}

// Boss delegates to the scripted engine. It works before warm-up.
func (s *Service) Boss(ctx context.Context, req models.TutorRequest) models.BossResponse {
	return s.boss.Respond(ctx, req)
}

// BossCheck validates one utterance without advancing on mistakes.
func (s *Service) BossCheck(ctx context.Context, req models.BossCheckRequest) models.BossCheckResponse {
	return s.boss.Check(ctx, req)
}

// lesson looks up a tutor lesson; unknown ids get a bare lesson so the
// flow can continue with generic prompts.
func (s *Service) lesson(ctx context.Context, lessonID string) models.Lesson {
	l, err := s.store.Lesson(ctx, lessonID)
	if err != nil {
		if !errors.Is(err, curriculum.ErrNotFound) {
			s.logger.Warn("lesson lookup failed", zap.String("lesson_id", lessonID), zap.Error(err))
		}
		return models.Lesson{
			LessonID: lessonID,
			ModuleID: curriculum.ModuleForLesson(lessonID, s.store.ModuleIDs()),
		}
	}
	return *l
}
