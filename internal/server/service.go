// Package server provides the HTTP service for genius-loci.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lukaszraczylo/genius-loci/internal/archive"
	"github.com/lukaszraczylo/genius-loci/internal/chat"
	"github.com/lukaszraczylo/genius-loci/internal/config"
	gormdb "github.com/lukaszraczylo/genius-loci/internal/db/gorm"
	"github.com/lukaszraczylo/genius-loci/internal/emotion"
	"github.com/lukaszraczylo/genius-loci/internal/note"
	"github.com/lukaszraczylo/genius-loci/internal/session"
	"github.com/lukaszraczylo/genius-loci/internal/vision"
)

// Service is the HTTP front of genius-loci: spirit chat streaming, session
// lifecycle endpoints, and place-note CRUD.
type Service struct {
	version     string
	config      *config.Config
	store       *gormdb.Store
	notes       *note.Store
	archives    *archive.Writer
	manager     *session.Manager
	coordinator *chat.Coordinator
	vision      *vision.Client
	emotions    *emotion.Analyzer

	router     chi.Router
	httpServer *http.Server
	ready      atomic.Bool
	startTime  time.Time
	logger     zerolog.Logger
}

// Options carries the collaborators a Service needs.
type Options struct {
	Version     string
	Config      *config.Config
	Store       *gormdb.Store
	Notes       *note.Store
	Archives    *archive.Writer
	Manager     *session.Manager
	Coordinator *chat.Coordinator
	Vision      *vision.Client
	Emotions    *emotion.Analyzer
	Logger      zerolog.Logger
}

// New assembles the service and its routes. Call Start to begin serving.
func New(opts Options) *Service {
	svc := &Service{
		version:     opts.Version,
		config:      opts.Config,
		store:       opts.Store,
		notes:       opts.Notes,
		archives:    opts.Archives,
		manager:     opts.Manager,
		coordinator: opts.Coordinator,
		vision:      opts.Vision,
		emotions:    opts.Emotions,
		router:      chi.NewRouter(),
		startTime:   time.Now(),
		logger:      opts.Logger.With().Str("component", "server").Logger(),
	}
	svc.setupRoutes()
	return svc
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/ready", s.handleReady)
	s.router.Get("/api/version", s.handleVersion)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireReady)

		r.Route("/spirit", func(r chi.Router) {
			r.Post("/chat", s.handleSpiritChat)
			r.Get("/session/{sessionID}", s.handleSessionStatus)
			r.Post("/end-session", s.handleEndSession)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Post("/", s.handleCreateNote)
			r.Get("/nearby", s.handleNearbyNotes)
			r.Get("/top", s.handleTopNotes)
			r.Get("/{noteID}", s.handleGetNote)
			r.Get("/{noteID}/records", s.handleNoteRecords)
			r.Delete("/{noteID}", s.handleDeleteNote)
		})
	})
}

// Router exposes the handler tree, mainly for tests.
func (s *Service) Router() http.Handler { return s.router }

// MarkReady flips the readiness gate open.
func (s *Service) MarkReady() { s.ready.Store(true) }

// Start serves HTTP until ctx is cancelled, then drains connections.
func (s *Service) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Int("port", s.config.Port).Msg("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	s.ready.Store(true)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}

// requireReady rejects requests until startup has finished.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, http.StatusServiceUnavailable, "service is starting")
			return
		}
		next.ServeHTTP(w, r)
	})
}
