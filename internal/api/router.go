package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter registers every route of h.
func NewRouter(h *ApiHandler, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := mux.NewRouter()
	r.Use(RequestLogger(logger))

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	r.HandleFunc("/tutor", h.Tutor).Methods(http.MethodPost)
	r.HandleFunc("/tutor/initiate", h.InitiateLesson).Methods(http.MethodPost)
	r.HandleFunc("/tutor/boss", h.Boss).Methods(http.MethodPost)
	r.HandleFunc("/boss/check", h.BossCheck).Methods(http.MethodPost)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/practice/initiate", h.PracticeInitiate).Methods(http.MethodPost)
	apiRouter.HandleFunc("/practice/text-chat", h.PracticeText).Methods(http.MethodPost)
	apiRouter.HandleFunc("/practice/voice-chat", h.PracticeVoice).Methods(http.MethodPost)

	s := apiRouter.PathPrefix("/lessons").Subrouter()
	s.Use(AuthMiddleware(h.Config.JWTSecret))
	s.HandleFunc("/complete", h.CompleteLesson).Methods(http.MethodPost)
	s.HandleFunc("/progress", h.LessonProgress).Methods(http.MethodGet)

	return r
}
