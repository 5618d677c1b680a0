// Package note provides place-note storage and geo queries for genius-loci.
package note

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/logger"

	gormdb "github.com/lukaszraczylo/genius-loci/internal/db/gorm"
	"github.com/lukaszraczylo/genius-loci/pkg/models"
)

// StoreSuite is a test suite for note store operations.
type StoreSuite struct {
	suite.Suite
	tempDir string
	db      *gormdb.Store
	store   *Store
	ctx     context.Context
}

func (s *StoreSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "note-test-*")
	s.Require().NoError(err)

	s.db, err = gormdb.NewStore(gormdb.Config{
		Path:     filepath.Join(s.tempDir, "test.db"),
		LogLevel: logger.Silent,
	})
	s.Require().NoError(err)

	s.store = NewStore(s.db)
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	s.db.Close()
	os.RemoveAll(s.tempDir)
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) createNote(userID int64, content string, lon, lat float64) *models.PlaceNote {
	n, err := s.store.Create(s.ctx, &models.PlaceNote{
		UserID:       userID,
		Content:      content,
		GPSLongitude: lon,
		GPSLatitude:  lat,
	})
	s.Require().NoError(err)
	s.Require().NotZero(n.ID)
	return n
}

// TestCreateAndGet tests note creation and retrieval.
func (s *StoreSuite) TestCreateAndGet() {
	n := s.createNote(1, "lovely weather", 120.15507, 30.27408)

	s.Equal(models.NoteTypeText, n.NoteType)
	s.Equal(models.NoteStatusPublic, n.Status)
	s.Equal(models.EmotionUnknown, n.Emotion)
	s.NotEmpty(n.CreatedAt)

	got, err := s.store.GetByID(s.ctx, n.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("lovely weather", got.Content)
}

// TestCreateValidation tests coordinate and content validation.
func (s *StoreSuite) TestCreateValidation() {
	_, err := s.store.Create(s.ctx, &models.PlaceNote{
		UserID: 1, Content: "x", GPSLongitude: 200, GPSLatitude: 0,
	})
	s.ErrorIs(err, ErrInvalidCoordinates)

	_, err = s.store.Create(s.ctx, &models.PlaceNote{
		UserID: 1, GPSLongitude: 0, GPSLatitude: 0,
	})
	s.ErrorIs(err, ErrEmptyNote)
}

// TestClassify tests note type derivation.
func (s *StoreSuite) TestClassify() {
	n, err := s.store.Create(s.ctx, &models.PlaceNote{
		UserID: 1, Content: "x", ImageURLs: "https://example.com/a.jpg",
		GPSLongitude: 1, GPSLatitude: 1,
	})
	s.Require().NoError(err)
	s.Equal(models.NoteTypeMixed, n.NoteType)

	n, err = s.store.Create(s.ctx, &models.PlaceNote{
		UserID: 1, ImageURLs: "https://example.com/a.jpg",
		GPSLongitude: 1, GPSLatitude: 1,
	})
	s.Require().NoError(err)
	s.Equal(models.NoteTypeImage, n.NoteType)
}

// TestUpdateOwnership tests that only the owner can update a note.
func (s *StoreSuite) TestUpdateOwnership() {
	n := s.createNote(1, "original", 10, 10)

	updated, err := s.store.Update(s.ctx, n.ID, 2, map[string]interface{}{"content": "hacked"})
	s.NoError(err)
	s.Nil(updated)

	updated, err = s.store.Update(s.ctx, n.ID, 1, map[string]interface{}{"content": "edited"})
	s.Require().NoError(err)
	s.Require().NotNil(updated)
	s.Equal("edited", updated.Content)
}

// TestNearby tests the geo query ordering and radius filtering.
func (s *StoreSuite) TestNearby() {
	center := s.createNote(1, "at the cafe", 120.15507, 30.27408)
	near := s.createNote(1, "across the street", 120.15600, 30.27408) // ~90m east
	s.createNote(1, "another city", 121.47370, 31.23040)              // ~170km away

	notes, err := s.store.Nearby(s.ctx, 120.15507, 30.27408, 1.0, 20, nil)
	s.Require().NoError(err)
	s.Require().Len(notes, 2)
	s.Equal(center.ID, notes[0].ID)
	s.Equal(near.ID, notes[1].ID)
	s.Less(notes[0].DistanceMeters, notes[1].DistanceMeters)
	s.InDelta(90, notes[1].DistanceMeters, 15)
}

// TestNearbyValidation tests parameter validation on geo queries.
func (s *StoreSuite) TestNearbyValidation() {
	_, err := s.store.Nearby(s.ctx, 0, 0, 0, 20, nil)
	s.ErrorIs(err, ErrInvalidRadius)

	_, err = s.store.Nearby(s.ctx, 0, 0, 200, 20, nil)
	s.ErrorIs(err, ErrInvalidRadius)

	_, err = s.store.Nearby(s.ctx, 0, 0, 1, 0, nil)
	s.ErrorIs(err, ErrInvalidLimit)

	_, err = s.store.Nearby(s.ctx, 500, 0, 1, 20, nil)
	s.ErrorIs(err, ErrInvalidCoordinates)
}

// TestTop tests weight ordering and user scoping.
func (s *StoreSuite) TestTop() {
	low := s.createNote(1, "low", 1, 1)
	high := s.createNote(2, "high", 2, 2)
	_, err := s.store.Update(s.ctx, high.ID, 2, map[string]interface{}{"weight_score": 95.5})
	s.Require().NoError(err)

	notes, err := s.store.Top(s.ctx, 20, nil)
	s.Require().NoError(err)
	s.Require().Len(notes, 2)
	s.Equal(high.ID, notes[0].ID)

	userID := int64(1)
	notes, err = s.store.Top(s.ctx, 20, &userID)
	s.Require().NoError(err)
	s.Require().Len(notes, 1)
	s.Equal(low.ID, notes[0].ID)
}

// TestDelete tests soft deletion and ownership.
func (s *StoreSuite) TestDelete() {
	n := s.createNote(1, "to delete", 1, 1)

	ok, err := s.store.Delete(s.ctx, n.ID, 2)
	s.NoError(err)
	s.False(ok)

	ok, err = s.store.Delete(s.ctx, n.ID, 1)
	s.NoError(err)
	s.True(ok)

	got, err := s.store.GetByID(s.ctx, n.ID)
	s.NoError(err)
	s.Nil(got)

	// Idempotent: deleting again reports not found.
	ok, err = s.store.Delete(s.ctx, n.ID, 1)
	s.NoError(err)
	s.False(ok)
}
