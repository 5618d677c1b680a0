// Command loci runs the genius-loci service: a place-spirit chat daemon with
// progressive conversation archival and geolocated place notes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lukaszraczylo/genius-loci/internal/archive"
	"github.com/lukaszraczylo/genius-loci/internal/chat"
	"github.com/lukaszraczylo/genius-loci/internal/config"
	gormdb "github.com/lukaszraczylo/genius-loci/internal/db/gorm"
	"github.com/lukaszraczylo/genius-loci/internal/emotion"
	"github.com/lukaszraczylo/genius-loci/internal/llm"
	"github.com/lukaszraczylo/genius-loci/internal/note"
	"github.com/lukaszraczylo/genius-loci/internal/server"
	"github.com/lukaszraczylo/genius-loci/internal/session"
	"github.com/lukaszraczylo/genius-loci/internal/vision"
	"github.com/lukaszraczylo/genius-loci/internal/watcher"
)

var version = "dev"

func main() {
	var (
		port    = flag.Int("port", 0, "HTTP listen port (overrides config)")
		debug   = flag.Bool("debug", false, "enable debug logging")
		showVer = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Println(version)
		return
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	if err := run(logger, *port); err != nil {
		logger.Fatal().Err(err).Msg("Service failed")
	}
}

func run(logger zerolog.Logger, portOverride int) error {
	if err := config.EnsureAll(); err != nil {
		return fmt.Errorf("failed to prepare data directory: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if portOverride > 0 {
		cfg.Port = portOverride
	}
	config.Set(cfg)

	store, err := gormdb.NewStore(gormdb.Config{
		Driver:   cfg.Database.Driver,
		Path:     cfg.Database.Path,
		DSN:      cfg.Database.DSN,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	llmClient := llm.NewClient(llm.Options{
		Model:       cfg.Model.Name,
		BaseURL:     cfg.Model.BaseURL,
		APIKey:      cfg.Model.APIKey,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
		TopP:        cfg.Model.TopP,
	})
	visionClient := vision.NewClient(cfg.Vision.Model, cfg.Vision.BaseURL, cfg.Vision.APIKey)

	summarizer, err := chat.NewSummarizer(llmClient, chat.SummaryConfig{
		MaxTokens:    cfg.Summary.MaxTokens,
		Temperature:  cfg.Summary.Temperature,
		BudgetTokens: cfg.Summary.BudgetTokens,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to build summarizer: %w", err)
	}

	archiveWriter := archive.NewWriter(store, logger)
	manager := session.NewManager(session.NewStore(), summarizer, archiveWriter, session.Config{
		AutoArchiveTurns: cfg.Session.AutoArchiveTurns,
		SeedExchanges:    cfg.Session.SeedExchanges,
		SessionTimeout:   cfg.SessionTimeout(),
		SweepInterval:    cfg.SweepInterval(),
	}, logger)

	svc := server.New(server.Options{
		Version:     version,
		Config:      cfg,
		Store:       store,
		Notes:       note.NewStore(store),
		Archives:    archiveWriter,
		Manager:     manager,
		Coordinator: chat.NewCoordinator(manager, llmClient, cfg.Session.ContextExchanges, logger),
		Vision:      visionClient,
		Emotions:    emotion.NewAnalyzer(llmClient),
		Logger:      logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Recreate the schema if someone deletes the database file out from
	// under us.
	if cfg.Database.Driver == "" || cfg.Database.Driver == "sqlite" {
		dbWatcher, err := watcher.New(cfg.Database.Path, func() {
			if err := store.Recreate(); err != nil {
				logger.Error().Err(err).Msg("Failed to recreate database after deletion")
			}
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Database watcher unavailable")
		} else {
			if err := dbWatcher.Start(); err != nil {
				logger.Warn().Err(err).Msg("Failed to start database watcher")
			}
			defer dbWatcher.Stop()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Start(gctx) })
	g.Go(func() error {
		manager.RunSweep(gctx)
		return nil
	})

	logger.Info().Str("version", version).Msg("genius-loci started")
	return g.Wait()
}
