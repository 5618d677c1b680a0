package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
)

// RecordType identifies what kind of processing produced a spirit record.
type RecordType int

const (
	// RecordTypeConversationSummary marks a record produced by archiving a
	// conversation session (rollover, explicit end, or timeout sweep).
	RecordTypeConversationSummary RecordType = 5
)

// ArchivePayload is the JSON body of a conversation-summary record.
type ArchivePayload struct {
	Summary   string `json:"summary"`
	Turns     int    `json:"turns"`
	SessionID string `json:"session_id"`
}

// Value implements driver.Valuer, serializing the payload to JSON text.
func (p ArchivePayload) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner, deserializing JSON text into the payload.
func (p *ArchivePayload) Scan(value interface{}) error {
	if value == nil {
		*p = ArchivePayload{}
		return nil
	}
	switch v := value.(type) {
	case string:
		return json.Unmarshal([]byte(v), p)
	case []byte:
		return json.Unmarshal(v, p)
	default:
		return fmt.Errorf("unsupported type for ArchivePayload: %T", value)
	}
}

// SpiritRecord is one persisted archival record of a spirit conversation,
// linked to the place note that anchors the conversation. One note accrues
// many records as a long conversation rolls over.
type SpiritRecord struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	PlaceNoteID int64          `gorm:"index;not null" json:"place_note_id"`
	UserID      int64          `gorm:"index;not null" json:"user_id"`
	RecordType  RecordType     `gorm:"not null;default:5" json:"record_type"`
	Result      ArchivePayload `gorm:"type:text" json:"result"`
	IsEffective int            `gorm:"default:1;index" json:"is_effective"`

	ProcessedAt      string `gorm:"not null" json:"processed_at"`
	ProcessedAtEpoch int64  `gorm:"index:idx_records_processed,sort:desc;not null" json:"processed_at_epoch"`
}

func (SpiritRecord) TableName() string { return "spirit_records" }

// BeforeCreate hook to ensure timestamps are set.
func (r *SpiritRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ProcessedAtEpoch == 0 {
		now := time.Now()
		r.ProcessedAtEpoch = now.UnixMilli()
		r.ProcessedAt = now.Format(time.RFC3339)
	}
	return nil
}
