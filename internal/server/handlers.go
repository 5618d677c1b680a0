package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/lukaszraczylo/genius-loci/internal/chat"
	"github.com/lukaszraczylo/genius-loci/internal/session"
)

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   status,
		"version":  s.version,
		"uptime":   time.Since(s.startTime).String(),
		"sessions": s.manager.Store().Len(),
	})
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"version": s.version})
}

type chatRequest struct {
	SessionID    string  `json:"session_id"`
	UserID       int64   `json:"user_id"`
	Content      string  `json:"content"`
	ImageURL     string  `json:"image_url"`
	GPSLongitude float64 `json:"gps_longitude"`
	GPSLatitude  float64 `json:"gps_latitude"`
}

// handleSpiritChat streams one conversation turn as Server-Sent Events:
// a metadata frame, content frames as the model produces them, and a
// terminal end (or error) frame.
func (s *Service) handleSpiritChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID <= 0 || req.Content == "" {
		writeError(w, http.StatusBadRequest, "user_id and content are required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// New sessions get a scene description from the attached photo; an
	// unusable image just means the spirit starts without one.
	sceneHint := ""
	if req.SessionID == "" && req.ImageURL != "" {
		hint, err := s.vision.Describe(r.Context(), req.ImageURL)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Scene description failed, starting without one")
		} else {
			sceneHint = hint
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	events := s.coordinator.HandleTurn(r.Context(), chat.TurnRequest{
		SessionID:    req.SessionID,
		UserID:       req.UserID,
		Content:      req.Content,
		SceneHint:    sceneHint,
		GPSLongitude: req.GPSLongitude,
		GPSLatitude:  req.GPSLatitude,
	})
	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to marshal chat event")
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

func (s *Service) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	info, err := s.manager.Status(sessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read session")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
	UserID    int64  `json:"user_id"`
}

func (s *Service) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req endSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "session_id and user_id are required")
		return
	}

	res, err := s.manager.End(r.Context(), req.SessionID, req.UserID)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
		return
	case errors.Is(err, session.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "session belongs to another user")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to end session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversation_turns": res.TurnCount,
		"archived":           res.Archived,
	})
}
