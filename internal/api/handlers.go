package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/synermind/synermind/internal/models"
)

type chatRequest struct {
	Message string `json:"message"`
}

type moodRequest struct {
	Mood      models.Mood `json:"mood"`
	Intensity int         `json:"intensity"`
	Note      string      `json:"note,omitempty"`
}

type feedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user := s.authenticate(w, r)
	if user == nil {
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultRequestTimeout)
	defer cancel()

	result, err := s.dispatcher.HandleMessage(ctx, user, req.Message)
	if err != nil {
		if errors.Is(err, models.ErrEmptyMessage) || errors.Is(err, models.ErrMessageTooLong) {
			slog.Warn("Server.chatHandler: invalid message", "error", err, "user_id", user.ID)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.chatHandler: turn failed", "error", err, "user_id", user.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to generate a reply"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) moodsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.moodsHandler: processing moods request", "method", r.Method, "path", r.URL.Path)
	switch r.Method {
	case http.MethodPost:
		s.logMood(w, r)
	case http.MethodGet:
		s.listMoods(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// logMood records a manual mood entry, as opposed to the observations the
// dispatcher extracts from chat messages.
func (s *Server) logMood(w http.ResponseWriter, r *http.Request) {
	user := s.authenticate(w, r)
	if user == nil {
		return
	}
	var req moodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.logMood: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	log := models.MoodLog{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Mood:      req.Mood,
		Intensity: req.Intensity,
		Note:      req.Note,
		CreatedAt: s.now(),
	}
	if err := log.Validate(); err != nil {
		slog.Warn("Server.logMood: validation failed", "error", err, "user_id", user.ID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err := s.st.AddMoodLog(log); err != nil {
		slog.Error("Server.logMood: failed to store mood log", "error", err, "user_id", user.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store mood log"))
		return
	}
	slog.Info("Server.logMood: mood logged", "user_id", user.ID, "mood", log.Mood, "intensity", log.Intensity)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Mood logged", log))
}

func (s *Server) listMoods(w http.ResponseWriter, r *http.Request) {
	user := s.authenticate(w, r)
	if user == nil {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit parameter"))
			return
		}
		limit = parsed
	}
	logs, err := s.st.ListMoodLogs(user.ID, limit)
	if err != nil {
		slog.Error("Server.listMoods: failed to fetch mood logs", "error", err, "user_id", user.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch mood logs"))
		return
	}
	slog.Debug("Server.listMoods: mood logs fetched", "user_id", user.ID, "count", len(logs))
	writeJSONResponse(w, http.StatusOK, models.Success(logs))
}

func (s *Server) feedbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.feedbackHandler: processing feedback request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user := s.authenticate(w, r)
	if user == nil {
		return
	}
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.feedbackHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	fb := models.Feedback{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: s.now(),
	}
	if err := fb.Validate(); err != nil {
		slog.Warn("Server.feedbackHandler: validation failed", "error", err, "user_id", user.ID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err := s.st.AddFeedback(fb); err != nil {
		slog.Error("Server.feedbackHandler: failed to store feedback", "error", err, "user_id", user.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store feedback"))
		return
	}
	slog.Info("Server.feedbackHandler: feedback recorded", "user_id", user.ID, "rating", fb.Rating)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Feedback recorded", nil))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.metricsHandler: processing metrics request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user := s.authenticate(w, r)
	if user == nil {
		return
	}
	metrics, err := s.st.GetUserMetrics(user.ID)
	if err != nil {
		slog.Error("Server.metricsHandler: failed to compute metrics", "error", err, "user_id", user.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute metrics"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(metrics))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "ok"}))
}
