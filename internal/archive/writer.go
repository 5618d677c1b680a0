// Package archive persists conversation summaries as spirit records
// attached to place notes.
package archive

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	gormdb "github.com/lukaszraczylo/genius-loci/internal/db/gorm"
	"github.com/lukaszraczylo/genius-loci/internal/session"
	"github.com/lukaszraczylo/genius-loci/pkg/models"
)

// Writer stores archive records. It satisfies session.Archiver.
type Writer struct {
	store  *gormdb.Store
	logger zerolog.Logger
}

func NewWriter(store *gormdb.Store, logger zerolog.Logger) *Writer {
	return &Writer{
		store:  store,
		logger: logger.With().Str("component", "archive").Logger(),
	}
}

// Write persists one conversation summary. When the request carries no note
// ID a private place note is minted at the session's coordinates with the
// summary as its content; later archives of the same conversation attach
// their records to that note. Note mint and record insert happen in one
// transaction.
func (w *Writer) Write(ctx context.Context, req session.ArchiveRequest) (int64, error) {
	noteID := req.PlaceNoteID
	err := w.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if noteID == 0 {
			note := &models.PlaceNote{
				UserID:       req.UserID,
				NoteType:     models.NoteTypeText,
				Content:      req.Summary,
				GPSLongitude: req.GPSLongitude,
				GPSLatitude:  req.GPSLatitude,
				Status:       models.NoteStatusPrivate,
				Emotion:      models.EmotionUnknown,
				IsValid:      1,
			}
			if err := tx.Create(note).Error; err != nil {
				return fmt.Errorf("failed to mint place note: %w", err)
			}
			noteID = note.ID
		}

		record := &models.SpiritRecord{
			PlaceNoteID: noteID,
			UserID:      req.UserID,
			RecordType:  models.RecordTypeConversationSummary,
			Result: models.ArchivePayload{
				Summary:   req.Summary,
				Turns:     req.TurnCount,
				SessionID: req.SessionID,
			},
			IsEffective: 1,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to write spirit record: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	w.logger.Debug().
		Int64("note_id", noteID).
		Str("session_id", req.SessionID).
		Int("turns", req.TurnCount).
		Msg("Conversation archived")
	return noteID, nil
}

// History returns the archive records attached to a note, newest first.
func (w *Writer) History(ctx context.Context, noteID int64, limit int) ([]models.SpiritRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var records []models.SpiritRecord
	err := w.store.DB.WithContext(ctx).
		Where("place_note_id = ? AND is_effective = 1", noteID).
		Order("processed_at_epoch DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load archive history: %w", err)
	}
	return records, nil
}
