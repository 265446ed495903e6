// Package main provides the stepcapture worker entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/stepcapture/stepcapture/internal/config"
	db "github.com/stepcapture/stepcapture/internal/db/gorm"
	"github.com/stepcapture/stepcapture/internal/engine"
	"github.com/stepcapture/stepcapture/internal/watcher"
	"github.com/stepcapture/stepcapture/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	dbPath := flag.String("db", "", "SQLite database path (default: ~/.stepcapture/stepcapture.db)")
	port := flag.Int("port", 0, "HTTP port (default: from settings)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load settings, using defaults")
		cfg = config.Default()
	}
	if *port != 0 {
		cfg.WorkerPort = *port
	}

	path := config.DBPath()
	if *dbPath != "" {
		path = *dbPath
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		cancel()
	}()

	store, err := db.NewStore(db.Config{
		Path:     path,
		MaxConns: cfg.MaxConns,
		LogLevel: logger.Silent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open pattern store")
	}
	defer store.Close()

	eng := engine.New(cfg, store)
	svc := worker.NewService(Version, cfg, store, eng)

	// Settings edits restart the worker via the supervisor; matching tunables
	// are read at batch start, so a restart is the simplest consistency model.
	startSettingsWatcher(cancel)

	log.Info().Str("db", path).Str("version", Version).Msg("Starting stepcapture worker")
	if err := svc.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Worker error")
	}
}

// startSettingsWatcher exits the serve loop when settings change.
func startSettingsWatcher(cancel context.CancelFunc) {
	w, err := watcher.New(config.SettingsPath(), func() {
		log.Info().Msg("Settings changed, restarting worker")
		config.Reset()
		cancel()
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create settings watcher")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start settings watcher")
	}
}
