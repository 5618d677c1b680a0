package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/lukaszraczylo/genius-loci/internal/note"
	"github.com/lukaszraczylo/genius-loci/pkg/models"
)

type createNoteRequest struct {
	NoteID       int64             `json:"note_id"`
	UserID       int64             `json:"user_id"`
	Content      string            `json:"content"`
	ImageURLs    []string          `json:"image_urls"`
	GPSLongitude float64           `json:"gps_longitude"`
	GPSLatitude  float64           `json:"gps_latitude"`
	Status       models.NoteStatus `json:"status"`
}

func (s *Service) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	imageURLs := ""
	if len(req.ImageURLs) > 0 {
		encoded, err := json.Marshal(req.ImageURLs)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid image_urls")
			return
		}
		imageURLs = string(encoded)
	}

	// An existing note_id turns the request into an update of that note.
	if req.NoteID > 0 {
		s.updateNote(w, r, &req, imageURLs)
		return
	}

	n := &models.PlaceNote{
		UserID:       req.UserID,
		Content:      req.Content,
		ImageURLs:    imageURLs,
		GPSLongitude: req.GPSLongitude,
		GPSLatitude:  req.GPSLatitude,
		Status:       req.Status,
	}
	if req.Content != "" {
		n.Emotion = s.emotions.Analyze(r.Context(), req.Content)
	}

	created, err := s.notes.Create(r.Context(), n)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("Failed to create note")
		writeError(w, http.StatusInternalServerError, "failed to create note")
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Service) updateNote(w http.ResponseWriter, r *http.Request, req *createNoteRequest, imageURLs string) {
	updates := map[string]interface{}{
		"content":    req.Content,
		"image_urls": imageURLs,
		"note_type":  note.Classify(req.Content, imageURLs),
	}
	if req.Status != 0 {
		updates["status"] = req.Status
	}
	if req.Content != "" {
		updates["emotion"] = s.emotions.Analyze(r.Context(), req.Content)
	}

	updated, err := s.notes.Update(r.Context(), req.NoteID, req.UserID, updates)
	if err != nil {
		s.logger.Error().Err(err).Int64("note_id", req.NoteID).Msg("Failed to update note")
		writeError(w, http.StatusInternalServerError, "failed to update note")
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Service) handleGetNote(w http.ResponseWriter, r *http.Request) {
	noteID, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	n, err := s.notes.GetByID(r.Context(), noteID)
	if err != nil {
		s.logger.Error().Err(err).Int64("note_id", noteID).Msg("Failed to load note")
		writeError(w, http.StatusInternalServerError, "failed to load note")
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Service) handleNearbyNotes(w http.ResponseWriter, r *http.Request) {
	longitude, err1 := strconv.ParseFloat(r.URL.Query().Get("longitude"), 64)
	latitude, err2 := strconv.ParseFloat(r.URL.Query().Get("latitude"), 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "longitude and latitude are required")
		return
	}
	radiusKm := queryFloat(r, "radius_km", 1)
	limit := queryInt(r, "limit", 20)

	var status *models.NoteStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		st := models.NoteStatus(v)
		status = &st
	}

	notes, err := s.notes.Nearby(r.Context(), longitude, latitude, radiusKm, limit, status)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("Nearby query failed")
		writeError(w, http.StatusInternalServerError, "failed to query notes")
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Service) handleTopNotes(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)

	var userID *int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		userID = &v
	}

	notes, err := s.notes.Top(r.Context(), limit, userID)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("Top query failed")
		writeError(w, http.StatusInternalServerError, "failed to query notes")
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Service) handleNoteRecords(w http.ResponseWriter, r *http.Request) {
	noteID, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}
	limit := queryInt(r, "limit", 20)

	records, err := s.archives.History(r.Context(), noteID, limit)
	if err != nil {
		s.logger.Error().Err(err).Int64("note_id", noteID).Msg("Failed to load records")
		writeError(w, http.StatusInternalServerError, "failed to load records")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Service) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	noteID, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	deleted, err := s.notes.Delete(r.Context(), noteID, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("note_id", noteID).Msg("Failed to delete note")
		writeError(w, http.StatusInternalServerError, "failed to delete note")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func isValidationError(err error) bool {
	return errors.Is(err, note.ErrInvalidCoordinates) ||
		errors.Is(err, note.ErrInvalidRadius) ||
		errors.Is(err, note.ErrInvalidLimit) ||
		errors.Is(err, note.ErrEmptyNote)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}
