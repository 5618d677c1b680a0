package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Summarizer condenses a transcript into a short summary for archival and
// rollover continuation.
type Summarizer interface {
	Summarize(ctx context.Context, transcript []Message) (string, error)
}

// ArchiveRequest carries everything needed to persist one conversation
// archive record.
type ArchiveRequest struct {
	PlaceNoteID  int64 // 0 when no note has been minted for this conversation yet
	UserID       int64
	SessionID    string
	Summary      string
	TurnCount    int
	GPSLongitude float64
	GPSLatitude  float64
}

// Archiver persists an archive record, minting a place note first when the
// request carries no note ID. It returns the note ID the record was attached
// to.
type Archiver interface {
	Write(ctx context.Context, req ArchiveRequest) (int64, error)
}

// Config tunes the lifecycle rules.
type Config struct {
	AutoArchiveTurns int           // turn count that triggers rollover
	SeedExchanges    int           // exchanges carried into a successor
	SessionTimeout   time.Duration // inactivity window before eviction
	SweepInterval    time.Duration
}

func (c *Config) applyDefaults() {
	if c.AutoArchiveTurns <= 0 {
		c.AutoArchiveTurns = 100
	}
	if c.SeedExchanges <= 0 {
		c.SeedExchanges = 10
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
}

// Manager owns the registry and applies the three archival triggers:
// rollover at the turn threshold, explicit end, and the inactivity sweep.
type Manager struct {
	store      *Store
	summarizer Summarizer
	archiver   Archiver
	cfg        Config
	logger     zerolog.Logger
}

func NewManager(store *Store, summarizer Summarizer, archiver Archiver, cfg Config, logger zerolog.Logger) *Manager {
	cfg.applyDefaults()
	return &Manager{
		store:      store,
		summarizer: summarizer,
		archiver:   archiver,
		cfg:        cfg,
		logger:     logger.With().Str("component", "session-manager").Logger(),
	}
}

// Store exposes the underlying registry for lock-scoped access.
func (m *Manager) Store() *Store { return m.store }

// Threshold reports the configured rollover turn count.
func (m *Manager) Threshold() int { return m.cfg.AutoArchiveTurns }

// StartSession registers a new active session.
func (m *Manager) StartSession(userID int64, sceneContext string, longitude, latitude float64) *ChatSession {
	sess := NewSession(userID, sceneContext, longitude, latitude)
	m.store.Insert(sess)
	sessionsCreated.Add(context.Background(), 1)
	m.logger.Debug().Str("session_id", sess.ID).Int64("user_id", userID).Msg("Session created")
	return sess
}

// TurnOutcome reports how a completed turn left the session. When
// RolledOver is set the caller must continue with SessionID, which names the
// successor; PreviousID is the archived predecessor.
type TurnOutcome struct {
	SessionID  string
	RolledOver bool
	PreviousID string
}

// CompleteTurn applies end-of-turn lifecycle rules to sess. It must be
// called while holding the session's lock (inside Store.WithLock); it never
// re-acquires it. When the turn count has reached the threshold the session
// is archived and replaced by a successor seeded with the summary and the
// most recent exchanges.
func (m *Manager) CompleteTurn(ctx context.Context, sess *ChatSession) TurnOutcome {
	turnsCompleted.Add(ctx, 1)
	if sess.TurnCount < m.cfg.AutoArchiveTurns {
		return TurnOutcome{SessionID: sess.ID}
	}

	summary, archived := m.archive(ctx, sess, triggerRollover)

	successor := NewSession(sess.UserID, sess.SceneContext, sess.GPSLongitude, sess.GPSLatitude)
	successor.PlaceNoteID = sess.PlaceNoteID
	successor.InheritedSummary = summary
	seed := sess.LastExchanges(m.cfg.SeedExchanges)
	successor.Transcript = append([]Message(nil), seed...)
	m.store.Insert(successor)

	sess.Status = StatusArchived
	m.store.Remove(sess.ID)

	m.logger.Info().
		Str("session_id", sess.ID).
		Str("successor_id", successor.ID).
		Int("turns", sess.TurnCount).
		Bool("archived", archived).
		Msg("Session rolled over")

	return TurnOutcome{SessionID: successor.ID, RolledOver: true, PreviousID: sess.ID}
}

// EndResult is what an explicit termination reports back to the caller.
type EndResult struct {
	TurnCount int
	Archived  bool
}

// End terminates a session on behalf of userID. Ownership is checked under
// the session's lock; a mismatched user gets ErrPermissionDenied and the
// session is left untouched. Sessions with no completed turns are removed
// without archiving.
func (m *Manager) End(ctx context.Context, sessionID string, userID int64) (EndResult, error) {
	var res EndResult
	err := m.store.WithLock(sessionID, func(sess *ChatSession) error {
		if sess.UserID != userID {
			return ErrPermissionDenied
		}
		sess.Status = StatusEnding
		res.TurnCount = sess.TurnCount
		if sess.TurnCount > 0 {
			_, res.Archived = m.archive(ctx, sess, triggerEnd)
		}
		sess.Status = StatusArchived
		m.store.Remove(sess.ID)
		m.logger.Info().
			Str("session_id", sess.ID).
			Int("turns", res.TurnCount).
			Bool("archived", res.Archived).
			Msg("Session ended")
		return nil
	})
	return res, err
}

// StatusInfo is the read-only view of a live session.
type StatusInfo struct {
	SessionID            string    `json:"session_id"`
	TurnCount            int       `json:"conversation_turns"`
	PlaceNoteID          int64     `json:"bubble_id"`
	AutoArchiveThreshold int       `json:"auto_archive_threshold"`
	LastActivityAt       time.Time `json:"last_activity_at"`
}

// Status reports turn progress for a live session. Reading status is not
// activity; it never touches LastActivityAt.
func (m *Manager) Status(sessionID string) (StatusInfo, error) {
	snap, err := m.store.Snapshot(sessionID)
	if err != nil {
		return StatusInfo{}, err
	}
	return StatusInfo{
		SessionID:            snap.ID,
		TurnCount:            snap.TurnCount,
		PlaceNoteID:          snap.PlaceNoteID,
		AutoArchiveThreshold: m.cfg.AutoArchiveTurns,
		LastActivityAt:       snap.LastActivityAt,
	}, nil
}

// RunSweep evicts inactive sessions on a ticker until ctx is cancelled.
func (m *Manager) RunSweep(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	m.logger.Info().Dur("interval", m.cfg.SweepInterval).Msg("Session sweep started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Session sweep stopped")
			return
		case <-ticker.C:
			m.SweepOnce(ctx)
		}
	}
}

// SweepOnce scans the registry once and evicts sessions idle longer than the
// timeout. Sessions whose lock is held (a turn in flight) are skipped and
// reconsidered on the next pass; an in-flight turn refreshes the activity
// timestamp anyway. Returns the number of sessions evicted.
func (m *Manager) SweepOnce(ctx context.Context) int {
	evicted := 0
	for _, id := range m.store.IDs() {
		_, err := m.store.TryWithLock(id, func(sess *ChatSession) error {
			if time.Since(sess.LastActivityAt) <= m.cfg.SessionTimeout {
				return nil
			}
			sess.Status = StatusEnding
			archived := false
			if sess.TurnCount > 0 {
				_, archived = m.archive(ctx, sess, triggerTimeout)
			}
			sess.Status = StatusArchived
			m.store.Remove(id)
			evicted++
			m.logger.Info().
				Str("session_id", id).
				Int("turns", sess.TurnCount).
				Bool("archived", archived).
				Msg("Session evicted after inactivity")
			return nil
		})
		if err != nil && err != ErrSessionNotFound {
			m.logger.Warn().Err(err).Str("session_id", id).Msg("Sweep failed for session")
		}
	}
	return evicted
}

// archive summarizes the transcript and persists an archive record. Both
// steps are best-effort: a failure is logged, the trigger's lifecycle action
// still proceeds, and the second return reports whether a record was
// written. On success the minted (or reused) note ID is stored back on the
// session so later archivals of the same conversation attach to it.
func (m *Manager) archive(ctx context.Context, sess *ChatSession, trigger string) (string, bool) {
	summary, err := m.summarizer.Summarize(ctx, sess.Transcript)
	if err != nil {
		m.logger.Error().Err(err).Str("session_id", sess.ID).Str("trigger", trigger).
			Msg("Summarization failed, skipping archive")
		return "", false
	}

	noteID, err := m.archiver.Write(ctx, ArchiveRequest{
		PlaceNoteID:  sess.PlaceNoteID,
		UserID:       sess.UserID,
		SessionID:    sess.ID,
		Summary:      summary,
		TurnCount:    sess.TurnCount,
		GPSLongitude: sess.GPSLongitude,
		GPSLatitude:  sess.GPSLatitude,
	})
	if err != nil {
		m.logger.Error().Err(err).Str("session_id", sess.ID).Str("trigger", trigger).
			Msg("Archive write failed")
		return summary, false
	}

	sess.PlaceNoteID = noteID
	recordArchived(ctx, trigger)
	return summary, true
}
