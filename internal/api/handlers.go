// Package api exposes the chat flows over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"polybot/internal/chat"
	"polybot/internal/models"
	"polybot/internal/speech"
)

// ApiHandler serves every route on top of one chat service.
type ApiHandler struct {
	Chat   *chat.Service
	Config Config
	logger *zap.Logger
}

// NewApiHandler creates a handler for svc.
func NewApiHandler(svc *chat.Service, cfg Config, logger *zap.Logger) *ApiHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApiHandler{Chat: svc, Config: cfg.withDefaults(), logger: logger.Named("api")}
}

func (h *ApiHandler) InitiateLesson(w http.ResponseWriter, r *http.Request) {
	var req models.InitiateRequest
	if !h.decode(w, r, &req) {
		return
	}
	respondWithJSON(w, http.StatusOK, h.Chat.Initiate(r.Context(), req))
}

func (h *ApiHandler) Tutor(w http.ResponseWriter, r *http.Request) {
	var req models.TutorRequest
	if !h.decode(w, r, &req) {
		return
	}
	respondWithJSON(w, http.StatusOK, h.Chat.Tutor(r.Context(), req))
}

func (h *ApiHandler) Boss(w http.ResponseWriter, r *http.Request) {
	var req models.TutorRequest
	if !h.decode(w, r, &req) {
		return
	}
	respondWithJSON(w, http.StatusOK, h.Chat.Boss(r.Context(), req))
}

func (h *ApiHandler) BossCheck(w http.ResponseWriter, r *http.Request) {
	var req models.BossCheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	respondWithJSON(w, http.StatusOK, h.Chat.BossCheck(r.Context(), req))
}

func (h *ApiHandler) PracticeInitiate(w http.ResponseWriter, r *http.Request) {
	var req models.PracticeInitiateRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.Chat.PracticeInitiate(r.Context(), req)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *ApiHandler) PracticeText(w http.ResponseWriter, r *http.Request) {
	var req models.PracticeChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.Chat.PracticeText(r.Context(), req)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *ApiHandler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token (no user ID)")
		return
	}
	var req models.LessonCompleteRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.Chat.CompleteLesson(r.Context(), userID, req)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *ApiHandler) LessonProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token (no user ID)")
		return
	}
	rows, err := h.Chat.Progress(r.Context(), userID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rows)
}

// Health reports whether the models have finished loading. It always
// answers 200 so load balancers keep routing boss traffic during warm-up.
func (h *ApiHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !h.Chat.Ready() {
		status = "warming_up"
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":    status,
		"llm_model": h.Chat.ModelID(),
	})
}

// decode reads a JSON body into v and answers 400 on failure.
func (h *ApiHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Debug("bad request body", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

// respondWithServiceError maps chat errors to HTTP statuses.
func (h *ApiHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := zap.String("request_id", RequestID(r.Context()))
	switch {
	case errors.Is(err, chat.ErrUnknownScenario):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, speech.ErrEmptyTranscript):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrProgressUnavailable):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, chat.ErrSpeechSynthesis):
		h.logger.Error("speech synthesis failed", reqID, zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, context.Canceled):
		// The client is gone; nobody reads the body.
		h.logger.Debug("request canceled", reqID)
	default:
		h.logger.Error("request failed", reqID, zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		code = http.StatusInternalServerError
		response = []byte(`{"error":"Failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
