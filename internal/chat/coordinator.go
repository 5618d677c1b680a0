package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lukaszraczylo/genius-loci/internal/llm"
	"github.com/lukaszraczylo/genius-loci/internal/session"
)

// Event types emitted over a turn's stream.
const (
	EventMetadata = "metadata"
	EventContent  = "content"
	EventEnd      = "end"
	EventError    = "error"
)

// Event is one frame of a streamed turn. A turn always opens with a
// metadata event naming the session and closes with either an end event
// (carrying the session ID to continue with, which differs from the opening
// one after a rollover) or an error event.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Streamer is the streaming completion surface the coordinator needs,
// satisfied by *llm.Client.
type Streamer interface {
	StreamComplete(ctx context.Context, system string, messages []llm.Message) (<-chan llm.Fragment, error)
}

// TurnRequest describes one incoming chat turn. An empty SessionID starts a
// new session; SceneHint and coordinates only matter in that case.
type TurnRequest struct {
	SessionID    string
	UserID       int64
	Content      string
	SceneHint    string
	GPSLongitude float64
	GPSLatitude  float64
}

// Coordinator drives a chat turn end to end: session resolution, model
// streaming, transcript commit, and lifecycle handoff to the manager.
type Coordinator struct {
	manager          *session.Manager
	streamer         Streamer
	contextExchanges int // recent exchanges sent with each completion request
	logger           zerolog.Logger
}

func NewCoordinator(manager *session.Manager, streamer Streamer, contextExchanges int, logger zerolog.Logger) *Coordinator {
	if contextExchanges <= 0 {
		contextExchanges = 10
	}
	return &Coordinator{
		manager:          manager,
		streamer:         streamer,
		contextExchanges: contextExchanges,
		logger:           logger.With().Str("component", "chat").Logger(),
	}
}

// HandleTurn runs the turn in a goroutine and returns its event stream. The
// channel is closed when the turn finishes, fails, or ctx is cancelled.
//
// The session's lock is held for the whole turn, so a second request for the
// same session waits for this one to finish rather than interleaving. If ctx
// is cancelled mid-stream the turn is discarded whole: no transcript append,
// no turn-count change, no lifecycle action.
func (c *Coordinator) HandleTurn(ctx context.Context, req TurnRequest) <-chan Event {
	events := make(chan Event, 8)
	go func() {
		defer close(events)
		c.runTurn(ctx, req, events)
	}()
	return events
}

func (c *Coordinator) runTurn(ctx context.Context, req TurnRequest, events chan<- Event) {
	sessionID := req.SessionID
	if sessionID == "" {
		sess := c.manager.StartSession(req.UserID, req.SceneHint, req.GPSLongitude, req.GPSLatitude)
		sessionID = sess.ID
	}

	err := c.manager.Store().WithLock(sessionID, func(sess *session.ChatSession) error {
		if sess.UserID != req.UserID {
			return session.ErrPermissionDenied
		}
		if !c.emit(ctx, events, Event{Type: EventMetadata, SessionID: sess.ID}) {
			return ctx.Err()
		}

		system := spiritSystemPrompt(sess.SceneContext, sess.InheritedSummary)
		messages := buildMessages(sess.LastExchanges(c.contextExchanges), req.Content)

		fragments, err := c.streamer.StreamComplete(ctx, system, messages)
		if err != nil {
			return err
		}

		var reply strings.Builder
		for frag := range fragments {
			if frag.Err != nil {
				return frag.Err
			}
			reply.WriteString(frag.Text)
			if !c.emit(ctx, events, Event{Type: EventContent, SessionID: sess.ID, Content: frag.Text}) {
				return ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		sess.Transcript = append(sess.Transcript,
			session.Message{Role: session.RoleUser, Content: req.Content},
			session.Message{Role: session.RoleAssistant, Content: reply.String()},
		)
		sess.TurnCount++
		sess.LastActivityAt = time.Now()

		out := c.manager.CompleteTurn(ctx, sess)
		c.emit(ctx, events, Event{Type: EventEnd, SessionID: out.SessionID})
		return nil
	})
	if err == nil {
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.logger.Debug().Str("session_id", sessionID).Msg("Turn aborted by caller, discarded")
		return
	}
	c.logger.Error().Err(err).Str("session_id", sessionID).Msg("Turn failed")
	c.emit(ctx, events, Event{Type: EventError, SessionID: sessionID, Message: errorMessage(err)})
}

// emit sends an event unless ctx is already done. Reports whether the event
// was delivered.
func (c *Coordinator) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// buildMessages converts the transcript plus the incoming user message into
// the model's message list.
func buildMessages(transcript []session.Message, userContent string) []llm.Message {
	messages := make([]llm.Message, 0, len(transcript)+1)
	for _, msg := range transcript {
		role := llm.RoleUser
		if msg.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: msg.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: userContent})
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, session.ErrPermissionDenied):
		return "session belongs to another user"
	default:
		return "the spirit fell silent, please try again"
	}
}
