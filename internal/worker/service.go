// Package worker provides the HTTP service for stepcapture.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/stepcapture/stepcapture/internal/config"
	db "github.com/stepcapture/stepcapture/internal/db/gorm"
	"github.com/stepcapture/stepcapture/internal/engine"
)

// Service is the HTTP worker wrapping the engine.
type Service struct {
	version   string
	config    *config.Config
	store     *db.Store
	engine    *engine.Engine
	router    *chi.Mux
	ready     atomic.Bool
	startTime time.Time
}

// NewService creates the worker service and registers its routes.
func NewService(version string, cfg *config.Config, store *db.Store, eng *engine.Engine) *Service {
	svc := &Service{
		version:   version,
		config:    cfg,
		store:     store,
		engine:    eng,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}
	svc.setupRoutes()
	return svc
}

// setupRoutes registers all HTTP routes.
func (s *Service) setupRoutes() {
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/screenshots/{screenshotID}/analysis", s.handleAnalyze)
		r.Get("/screenshots/{screenshotID}/annotations", s.handleAnnotations)

		r.Get("/questions", s.handleQuestions)
		r.Post("/questions/{questionID}/answer", s.handleAnswer)
		r.Post("/questions/{questionID}/skip", s.handleSkip)

		r.Post("/patterns/{patternID}/deactivate", s.handleDeactivatePattern)
	})
}

// Router exposes the mux for tests.
func (s *Service) Router() http.Handler {
	return s.router
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.WorkerPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.config.WorkerPort).Str("version", s.version).Msg("Worker listening")
		s.ready.Store(true)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
