// Package models contains domain models for genius-loci.
package models

import (
	"time"

	"gorm.io/gorm"
)

// NoteType classifies the content of a place note.
type NoteType int

const (
	NoteTypeText  NoteType = 1
	NoteTypeImage NoteType = 2
	NoteTypeMixed NoteType = 3
)

// NoteStatus controls note visibility.
type NoteStatus int

const (
	NoteStatusPublic  NoteStatus = 1
	NoteStatusPrivate NoteStatus = 2
)

// Emotion is one of the five normalized emotions attached to a note.
type Emotion string

const (
	EmotionSad        Emotion = "sad"
	EmotionHappy      Emotion = "happy"
	EmotionCalm       Emotion = "calm"
	EmotionMysterious Emotion = "mysterious"
	EmotionAngry      Emotion = "angry"
	EmotionUnknown    Emotion = "unknown"
)

// Emotions lists the five emotions a note can be classified into.
var Emotions = []Emotion{EmotionSad, EmotionHappy, EmotionCalm, EmotionMysterious, EmotionAngry}

// PlaceNote is a geolocated note owned by a user. Spirit conversation
// archives attach to one of these; a note minted by archival carries the
// conversation's summary as its content.
type PlaceNote struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64      `gorm:"index;not null" json:"user_id"`
	NoteType     NoteType   `gorm:"not null;default:1" json:"note_type"`
	Content      string     `gorm:"type:text" json:"content"`
	ImageURLs    string     `gorm:"type:text" json:"image_urls,omitempty"`
	GPSLongitude float64    `gorm:"index:idx_notes_location,priority:1;not null" json:"gps_longitude"`
	GPSLatitude  float64    `gorm:"index:idx_notes_location,priority:2;not null" json:"gps_latitude"`
	Status       NoteStatus `gorm:"not null;default:1;index" json:"status"`
	Emotion      Emotion    `gorm:"type:text;default:'unknown'" json:"emotion"`
	WeightScore  float64    `gorm:"type:real;default:0;index:idx_notes_weight,sort:desc" json:"weight_score"`
	IsValid      int        `gorm:"default:1;index" json:"is_valid"`

	CreatedAt      string `gorm:"not null" json:"created_at"`
	CreatedAtEpoch int64  `gorm:"not null" json:"created_at_epoch"`
	UpdatedAt      string `gorm:"not null" json:"updated_at"`
	UpdatedAtEpoch int64  `gorm:"not null" json:"updated_at_epoch"`

	// Populated by nearby queries, never stored.
	DistanceMeters float64 `gorm:"-" json:"distance_meters,omitempty"`
}

func (PlaceNote) TableName() string { return "place_notes" }

// BeforeCreate hook to ensure timestamps are set.
func (n *PlaceNote) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if n.CreatedAtEpoch == 0 {
		n.CreatedAtEpoch = now.UnixMilli()
		n.CreatedAt = now.Format(time.RFC3339)
	}
	n.UpdatedAtEpoch = now.UnixMilli()
	n.UpdatedAt = now.Format(time.RFC3339)
	return nil
}

// BeforeUpdate hook to keep the update timestamp current.
func (n *PlaceNote) BeforeUpdate(tx *gorm.DB) error {
	now := time.Now()
	n.UpdatedAtEpoch = now.UnixMilli()
	n.UpdatedAt = now.Format(time.RFC3339)
	return nil
}
