package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/logger"

	gormdb "github.com/lukaszraczylo/genius-loci/internal/db/gorm"
	"github.com/lukaszraczylo/genius-loci/internal/session"
	"github.com/lukaszraczylo/genius-loci/pkg/models"
)

type WriterSuite struct {
	suite.Suite
	tempDir string
	db      *gormdb.Store
	writer  *Writer
	ctx     context.Context
}

func (s *WriterSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "loci-archive-test-*")
	s.Require().NoError(err)

	s.db, err = gormdb.NewStore(gormdb.Config{
		Path:     filepath.Join(s.tempDir, "test.db"),
		LogLevel: logger.Silent,
	})
	s.Require().NoError(err)

	s.writer = NewWriter(s.db, zerolog.Nop())
	s.ctx = context.Background()
}

func (s *WriterSuite) TearDownTest() {
	s.db.Close()
	os.RemoveAll(s.tempDir)
}

func TestWriterSuite(t *testing.T) {
	suite.Run(t, new(WriterSuite))
}

func (s *WriterSuite) TestWriteMintsNote() {
	noteID, err := s.writer.Write(s.ctx, session.ArchiveRequest{
		UserID:       42,
		SessionID:    "sess-1",
		Summary:      "they talked about the tide",
		TurnCount:    100,
		GPSLongitude: 120.15,
		GPSLatitude:  30.27,
	})
	s.Require().NoError(err)
	s.Greater(noteID, int64(0))

	var note models.PlaceNote
	s.Require().NoError(s.db.DB.First(&note, noteID).Error)
	s.Equal(int64(42), note.UserID)
	s.Equal("they talked about the tide", note.Content)
	s.Equal(models.NoteStatusPrivate, note.Status)
	s.Equal(models.NoteTypeText, note.NoteType)
	s.InDelta(120.15, note.GPSLongitude, 1e-9)
	s.Equal(1, note.IsValid)

	var record models.SpiritRecord
	s.Require().NoError(s.db.DB.Where("place_note_id = ?", noteID).First(&record).Error)
	s.Equal(models.RecordTypeConversationSummary, record.RecordType)
	s.Equal("they talked about the tide", record.Result.Summary)
	s.Equal(100, record.Result.Turns)
	s.Equal("sess-1", record.Result.SessionID)
	s.NotZero(record.ProcessedAtEpoch)
}

func (s *WriterSuite) TestWriteReusesNote() {
	first, err := s.writer.Write(s.ctx, session.ArchiveRequest{
		UserID:    1,
		SessionID: "sess-1",
		Summary:   "part one",
		TurnCount: 100,
	})
	s.Require().NoError(err)

	second, err := s.writer.Write(s.ctx, session.ArchiveRequest{
		PlaceNoteID: first,
		UserID:      1,
		SessionID:   "sess-2",
		Summary:     "part two",
		TurnCount:   100,
	})
	s.Require().NoError(err)
	s.Equal(first, second)

	// One note, two records.
	var noteCount, recordCount int64
	s.db.DB.Model(&models.PlaceNote{}).Count(&noteCount)
	s.db.DB.Model(&models.SpiritRecord{}).Where("place_note_id = ?", first).Count(&recordCount)
	s.Equal(int64(1), noteCount)
	s.Equal(int64(2), recordCount)
}

func (s *WriterSuite) TestHistoryNewestFirst() {
	noteID, err := s.writer.Write(s.ctx, session.ArchiveRequest{
		UserID:    1,
		SessionID: "sess-1",
		Summary:   "first",
		TurnCount: 100,
	})
	s.Require().NoError(err)

	_, err = s.writer.Write(s.ctx, session.ArchiveRequest{
		PlaceNoteID: noteID,
		UserID:      1,
		SessionID:   "sess-2",
		Summary:     "second",
		TurnCount:   40,
	})
	s.Require().NoError(err)

	records, err := s.writer.History(s.ctx, noteID, 10)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.GreaterOrEqual(records[0].ProcessedAtEpoch, records[1].ProcessedAtEpoch)
}
