// Package server is the composition root: it wires the store, services,
// handlers, middleware and routes, and runs the HTTP server.
//
// Route structure:
//
//	GET    /health                  → liveness and database reachability
//	GET    /metrics                 → Prometheus exposition (path configurable)
//	GET    /api/milestones          → list the caller's milestones
//	GET    /api/milestones/today    → milestones whose anniversary is today
//	POST   /api/milestones          → create (from memory or standalone)
//	PUT    /api/milestones/{id}     → update celebration_date / reminder_enabled
//	DELETE /api/milestones/{id}     → delete
//
// Everything under /api requires a Bearer token.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/keepsake/internal/anniversary"
	"github.com/sakif/keepsake/internal/auth"
	"github.com/sakif/keepsake/internal/config"
	"github.com/sakif/keepsake/internal/handler"
	"github.com/sakif/keepsake/internal/metrics"
	"github.com/sakif/keepsake/internal/middleware"
	"github.com/sakif/keepsake/internal/repository"
	"github.com/sakif/keepsake/internal/service"
)

// Server owns the store: Start closes it on the way out.
type Server struct {
	router  *chi.Mux
	config  config.Config
	store   repository.Store
	metrics *metrics.Collector
	version string
	logger  *slog.Logger
}

// New wires the dependency chain:
//
//	store → MilestoneService → MilestoneHandler → routes
//
// collector may be nil, in which case no metrics are recorded or exposed.
func New(cfg config.Config, store repository.Store, collector *metrics.Collector, version string, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		store:   store,
		metrics: collector,
		version: version,
		logger:  logger,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes configures middleware and handlers.
//
// Middleware order matters:
//  1. RequestID, so every later log line can carry it
//  2. RealIP
//  3. Logger and Metrics, outside Recoverer so a recovered panic is still
//     seen as a 500
//  4. Recoverer
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.Issuer, s.config.Auth.Audience)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	s.router.Use(chimiddleware.Recoverer)

	health := handler.NewHealthHandler(s.store, s.version, s.logger)
	s.router.Get("/health", health.HandleHealth)

	if s.metrics != nil && s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, s.metrics.Handler())
	}

	// A nil *metrics.Collector must not reach the service as a non-nil
	// Recorder interface.
	var recorder service.Recorder
	if s.metrics != nil {
		recorder = s.metrics
	}

	calc := anniversary.NewCalculator(s.config.Location())
	milestoneService := service.NewMilestoneService(s.store, s.store, calc, time.Now, recorder, s.logger)
	milestoneHandler := handler.NewMilestoneHandler(milestoneService, s.config.IsProduction(), s.logger)

	s.router.Route("/api/milestones", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens, s.logger))
		milestoneHandler.Register(r)
	})

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to the configured shutdown timeout and closes the store.
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("env", s.config.Env),
			slog.String("database", s.config.Database.Driver),
			slog.String("version", s.version),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
