package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"polybot/internal/chat"
	"polybot/internal/models"
)

const (
	HeaderTranscript  = "X-Polybot-Transcript"
	HeaderReplyText   = "X-Polybot-Reply-Text"
	HeaderSceneStatus = "X-Polybot-Scene-Status"
	HeaderThought     = "X-Polybot-Thought"
	HeaderConfidence  = "X-Polybot-Confidence"

	// maxHeaderBytes caps every X-Polybot-* value.
	maxHeaderBytes = 4096

	multipartMemory = 8 << 20
)

// PracticeVoice accepts a multipart upload with an "audio" file and the
// practice form fields, and answers with the spoken reply. Text results
// travel in X-Polybot-* headers.
func (h *ApiHandler) PracticeVoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, fh, err := r.FormFile("audio")
	if errors.Is(err, http.ErrMissingFile) {
		file, fh, err = r.FormFile("file")
	}
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Audio file required")
		return
	}
	defer file.Close()

	req := models.PracticeChatRequest{
		ScenarioID:     r.FormValue("scenario_id"),
		TargetLanguage: r.FormValue("target_language"),
		NativeLanguage: r.FormValue("native_language"),
	}
	if raw := strings.TrimSpace(r.FormValue("conversation_history")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.ConversationHistory); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid conversation_history")
			return
		}
	}

	res, err := h.Chat.PracticeVoice(r.Context(), req, file, fh.Filename)
	if errors.Is(err, chat.ErrNotReady) {
		respondWithJSON(w, http.StatusOK, models.PracticeChatResponse{
			Reply:       chat.WarmingUpText,
			SceneStatus: models.SceneActive,
			Thought:     "warming up",
		})
		return
	}
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	hdr := w.Header()
	hdr.Set(HeaderTranscript, headerValue(res.Transcript))
	hdr.Set(HeaderReplyText, headerValue(res.Reply))
	hdr.Set(HeaderSceneStatus, res.SceneStatus)
	hdr.Set(HeaderThought, headerValue(res.Thought))
	hdr.Set(HeaderConfidence, fmt.Sprintf("%.2f", res.Confidence))
	hdr.Set("Content-Type", res.ContentType)
	hdr.Set("Content-Length", strconv.Itoa(len(res.Audio)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Audio); err != nil {
		h.logger.Debug("write audio", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
	}
}

// headerValue makes s safe for a header line: NFC, no control characters,
// at most maxHeaderBytes without splitting a rune.
func headerValue(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if len(s) <= maxHeaderBytes {
		return s
	}
	cut := maxHeaderBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
