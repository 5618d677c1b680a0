// Package note provides place-note storage and geo queries for genius-loci.
package note

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	gormdb "github.com/lukaszraczylo/genius-loci/internal/db/gorm"
	"github.com/lukaszraczylo/genius-loci/pkg/models"
)

// Validation errors surfaced to API callers as bad requests.
var (
	ErrInvalidCoordinates = errors.New("coordinates out of range")
	ErrInvalidRadius      = errors.New("radius must be in (0, 100] km")
	ErrInvalidLimit       = errors.New("limit must be in (0, 100]")
	ErrEmptyNote          = errors.New("note must have content or images")
)

// Store provides note-related database operations.
type Store struct {
	store *gormdb.Store
}

// NewStore creates a new note store.
func NewStore(store *gormdb.Store) *Store {
	return &Store{store: store}
}

// ValidateCoordinates checks longitude/latitude ranges.
func ValidateCoordinates(longitude, latitude float64) error {
	if longitude < -180 || longitude > 180 || latitude < -90 || latitude > 90 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Create inserts a new note. Content classification (text/image/mixed) is
// derived from the populated fields.
func (s *Store) Create(ctx context.Context, n *models.PlaceNote) (*models.PlaceNote, error) {
	if err := ValidateCoordinates(n.GPSLongitude, n.GPSLatitude); err != nil {
		return nil, err
	}
	if n.Content == "" && n.ImageURLs == "" {
		return nil, ErrEmptyNote
	}

	n.NoteType = Classify(n.Content, n.ImageURLs)
	if n.Status == 0 {
		n.Status = models.NoteStatusPublic
	}
	if n.Emotion == "" {
		n.Emotion = models.EmotionUnknown
	}
	n.IsValid = 1

	if err := s.store.DB.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	log.Debug().Int64("noteId", n.ID).Int64("userId", n.UserID).Msg("Created place note")
	return n, nil
}

// Update modifies an existing note after an ownership check. Returns nil when
// the note does not exist or does not belong to the user.
func (s *Store) Update(ctx context.Context, noteID, userID int64, updates map[string]interface{}) (*models.PlaceNote, error) {
	existing, err := s.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.UserID != userID {
		return nil, nil
	}

	if err := s.store.DB.WithContext(ctx).Model(existing).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update note %d: %w", noteID, err)
	}
	return s.GetByID(ctx, noteID)
}

// GetByID retrieves a valid note by ID. Returns nil when not found.
func (s *Store) GetByID(ctx context.Context, noteID int64) (*models.PlaceNote, error) {
	var n models.PlaceNote
	err := s.store.DB.WithContext(ctx).
		Where("id = ? AND is_valid = 1", noteID).
		First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note %d: %w", noteID, err)
	}
	return &n, nil
}

// Nearby returns valid notes within radiusKm of the given point, closest
// first. A bounding-box prefilter keeps the scan cheap; exact distances come
// from the haversine formula.
func (s *Store) Nearby(ctx context.Context, longitude, latitude, radiusKm float64, limit int, status *models.NoteStatus) ([]*models.PlaceNote, error) {
	if err := ValidateCoordinates(longitude, latitude); err != nil {
		return nil, err
	}
	if radiusKm <= 0 || radiusKm > 100 {
		return nil, ErrInvalidRadius
	}
	if limit <= 0 || limit > 100 {
		return nil, ErrInvalidLimit
	}

	minLon, maxLon, minLat, maxLat := boundingBox(longitude, latitude, radiusKm)

	query := s.store.DB.WithContext(ctx).
		Where("is_valid = 1").
		Where("gps_longitude BETWEEN ? AND ?", minLon, maxLon).
		Where("gps_latitude BETWEEN ? AND ?", minLat, maxLat)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var candidates []*models.PlaceNote
	if err := query.Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("nearby query: %w", err)
	}

	notes := candidates[:0]
	for _, n := range candidates {
		d := haversineMeters(longitude, latitude, n.GPSLongitude, n.GPSLatitude)
		if d <= radiusKm*1000 {
			n.DistanceMeters = d
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].DistanceMeters < notes[j].DistanceMeters
	})
	if len(notes) > limit {
		notes = notes[:limit]
	}
	return notes, nil
}

// Top returns the highest-weighted public notes, optionally scoped to a user.
func (s *Store) Top(ctx context.Context, limit int, userID *int64) ([]*models.PlaceNote, error) {
	if limit <= 0 || limit > 100 {
		return nil, ErrInvalidLimit
	}

	query := s.store.DB.WithContext(ctx).
		Where("is_valid = 1 AND status = ?", models.NoteStatusPublic)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	var notes []*models.PlaceNote
	err := query.Order("weight_score DESC").Limit(limit).Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("top query: %w", err)
	}
	return notes, nil
}

// Delete soft-deletes a note after an ownership check. Returns false when the
// note does not exist or does not belong to the user.
func (s *Store) Delete(ctx context.Context, noteID, userID int64) (bool, error) {
	result := s.store.DB.WithContext(ctx).
		Model(&models.PlaceNote{}).
		Where("id = ? AND user_id = ? AND is_valid = 1", noteID, userID).
		Update("is_valid", 0)
	if result.Error != nil {
		return false, fmt.Errorf("delete note %d: %w", noteID, result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	log.Debug().Int64("noteId", noteID).Msg("Soft-deleted place note")
	return true, nil
}

// Classify derives the note type from which content fields are populated.
func Classify(content, imageURLs string) models.NoteType {
	switch {
	case content != "" && imageURLs != "":
		return models.NoteTypeMixed
	case imageURLs != "":
		return models.NoteTypeImage
	default:
		return models.NoteTypeText
	}
}
