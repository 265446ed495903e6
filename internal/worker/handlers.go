package worker

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	db "github.com/stepcapture/stepcapture/internal/db/gorm"
	"github.com/stepcapture/stepcapture/internal/engine"
	"github.com/stepcapture/stepcapture/internal/normalize"
)

// analyzeRequest is one screenshot's vision-analysis payload.
type analyzeRequest struct {
	OwnerID      string                 `json:"owner_id"`
	Application  string                 `json:"application"`
	ScreenWidth  float64                `json:"screen_width"`
	ScreenHeight float64                `json:"screen_height"`
	Elements     []normalize.RawElement `json:"elements"`
}

// answerRequest resolves one training question.
type answerRequest struct {
	AnswerText string `json:"answer_text"`
	Metadata   string `json:"metadata,omitempty"`
}

func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OwnerID == "" || req.Application == "" {
		writeError(w, http.StatusBadRequest, "owner_id and application are required")
		return
	}

	result, err := s.engine.AnalyzeScreenshot(r.Context(), engine.AnalyzeParams{
		OwnerID:      req.OwnerID,
		Application:  req.Application,
		ScreenshotID: chi.URLParam(r, "screenshotID"),
		ScreenWidth:  req.ScreenWidth,
		ScreenHeight: req.ScreenHeight,
		Elements:     req.Elements,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	screenshotID := chi.URLParam(r, "screenshotID")

	annotations, err := s.engine.Annotations(r.Context(), screenshotID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"screenshot_id": screenshotID,
		"annotations":   annotations,
	})
}

func (s *Service) handleQuestions(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner query parameter is required")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	questions, err := s.engine.PendingQuestions(r.Context(), ownerID, limit)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"owner":     ownerID,
		"questions": questions,
	})
}

func (s *Service) handleAnswer(w http.ResponseWriter, r *http.Request) {
	questionID, err := strconv.ParseInt(chi.URLParam(r, "questionID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AnswerText == "" {
		writeError(w, http.StatusBadRequest, "answer_text is required")
		return
	}

	pattern, err := s.engine.IntegrateAnswer(r.Context(), questionID, req.AnswerText, req.Metadata)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"question_id": questionID,
		"pattern":     pattern,
	})
}

func (s *Service) handleSkip(w http.ResponseWriter, r *http.Request) {
	questionID, err := strconv.ParseInt(chi.URLParam(r, "questionID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return
	}

	if err := s.engine.SkipQuestion(r.Context(), questionID); err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"question_id": questionID,
		"status":      "skipped",
	})
}

func (s *Service) handleDeactivatePattern(w http.ResponseWriter, r *http.Request) {
	patternID, err := strconv.ParseInt(chi.URLParam(r, "patternID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pattern id")
		return
	}

	if err := s.engine.DeactivatePattern(r.Context(), patternID); err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pattern_id": patternID,
		"is_active":  false,
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":         status,
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"engine":         s.engine.Metrics().Snapshot(),
	})
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeEngineError maps engine and store errors to HTTP status codes.
func (s *Service) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrOrphanedAnswer):
		writeError(w, http.StatusConflict, "question already answered or skipped")
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, engine.ErrStoreUnavailable):
		log.Error().Err(err).Msg("Pattern store unavailable")
		writeError(w, http.StatusServiceUnavailable, "pattern store unavailable, retry the batch")
	default:
		log.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
