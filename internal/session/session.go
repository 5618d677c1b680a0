// Package session provides the in-memory conversation session registry and
// its lifecycle management for genius-loci.
//
// Sessions live only in this process. Every mutation of a session happens
// under that session's lock; the background sweep only touches sessions it
// can acquire without blocking. A session leaves the registry through one of
// three triggers: turn-count rollover, explicit termination, or the
// inactivity sweep.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Status is the lifecycle state of a session. Archived is terminal; a
// rolled-over successor is a distinct session.
type Status string

const (
	StatusActive   Status = "active"
	StatusEnding   Status = "ending"
	StatusArchived Status = "archived"
)

// ChatSession is one active conversation with a place spirit.
type ChatSession struct {
	ID           string
	UserID       int64
	PlaceNoteID  int64 // 0 until the first archival mints a note
	SceneContext string
	// InheritedSummary carries the archived predecessor's summary across a
	// rollover so the successor keeps conversational continuity.
	InheritedSummary string
	GPSLongitude     float64
	GPSLatitude      float64

	Transcript     []Message // append-only while the session lives
	TurnCount      int
	CreatedAt      time.Time
	LastActivityAt time.Time
	Status         Status
}

// NewSession creates an active session with a fresh ID.
func NewSession(userID int64, sceneContext string, longitude, latitude float64) *ChatSession {
	now := time.Now()
	return &ChatSession{
		ID:             uuid.NewString(),
		UserID:         userID,
		SceneContext:   sceneContext,
		GPSLongitude:   longitude,
		GPSLatitude:    latitude,
		CreatedAt:      now,
		LastActivityAt: now,
		Status:         StatusActive,
	}
}

// LastExchanges returns the transcript suffix covering up to n exchanges
// (2n messages). The returned slice aliases the transcript; callers must
// hold the session's lock or copy.
func (s *ChatSession) LastExchanges(n int) []Message {
	if n <= 0 {
		return nil
	}
	limit := 2 * n
	if len(s.Transcript) <= limit {
		return s.Transcript
	}
	return s.Transcript[len(s.Transcript)-limit:]
}
