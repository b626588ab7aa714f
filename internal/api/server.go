// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the camera agents over HTTP.
//
// The server holds at most one registry reference per backend: POST open
// acquires it and POST close releases it. Every other camera route works on
// the agent held for that backend.
package api

import (
	"context"
	"net/http"
	"slices"
	"sync"

	"github.com/ManuGH/camagent/internal/api/middleware"
	"github.com/ManuGH/camagent/internal/camera/agent"
	"github.com/ManuGH/camagent/internal/camera/executor"
	"github.com/ManuGH/camagent/internal/faultlog"
	"github.com/ManuGH/camagent/internal/health"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// FaultLister reads the fault journal.
type FaultLister interface {
	List(ctx context.Context, q faultlog.Query) ([]faultlog.Entry, error)
}

// Config holds the HTTP surface settings.
type Config struct {
	// RateLimit caps control requests per client per minute; 0 disables it.
	RateLimit int
	// TracingService enables otelhttp spans under that service name.
	TracingService string
	AccessLog      bool
	// DefaultIndex is the camera opened when the request names none.
	DefaultIndex int
}

// Deps are the collaborators the server drives.
type Deps struct {
	Registry *agent.Registry
	Health   *health.Manager
	// Faults may be nil when the journal is disabled.
	Faults FaultLister
	Logger zerolog.Logger
}

// Server is the HTTP front of the camera registry.
type Server struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	// callbacks runs every agent callback requested over HTTP.
	callbacks *executor.Loop

	mu   sync.Mutex
	held map[string]*agent.Agent

	router chi.Router
}

// New builds the server and its routes.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With().Str("component", "api").Logger(),
		held:   make(map[string]*agent.Agent),
	}
	s.callbacks = executor.NewLoop("api-callbacks", executor.WithPanicHandler(func(name string, recovered any) {
		s.logger.Error().Str("executor", name).Interface("panic", recovered).Msg("camera callback panicked")
	}))
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases every backend the server still holds and stops the
// callback executor.
func (s *Server) Close() {
	s.mu.Lock()
	held := s.held
	s.held = make(map[string]*agent.Agent)
	s.mu.Unlock()

	for backend := range held {
		if err := s.deps.Registry.Release(backend); err != nil {
			s.logger.Warn().Err(err).Str("backend", backend).Msg("release on shutdown failed")
		}
	}
	s.callbacks.Stop()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	middleware.ApplyStack(r, middleware.StackConfig{
		EnableMetrics:  true,
		EnableLogging:  s.cfg.AccessLog,
		TracingService: s.cfg.TracingService,
	})

	if s.deps.Health != nil {
		r.Get("/healthz", s.deps.Health.ServeHealth)
		r.Get("/readyz", s.deps.Health.ServeReady)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/cameras", s.handleListCameras)
		r.Get("/faults", s.handleListFaults)

		r.Route("/cameras/{backend}", func(r chi.Router) {
			r.Get("/", s.handleGetCamera)
			r.Get("/settings", s.handleGetSettings)

			r.Group(func(r chi.Router) {
				r.Use(middleware.ControlRateLimit(s.cfg.RateLimit))
				r.Post("/open", s.handleOpen)
				r.Post("/reconnect", s.handleReconnect)
				r.Post("/close", s.handleClose)
				r.Post("/settings", s.handleApplySettings)
				r.Post("/preview/start", s.handleStartPreview)
				r.Post("/preview/stop", s.handleStopPreview)
				r.Post("/focus", s.handleAutoFocus)
				r.Post("/focus/cancel", s.handleCancelAutoFocus)
				r.Post("/capture", s.handleCapture)
				r.Post("/unlock", s.handleUnlock)
				r.Post("/lock", s.handleLock)
			})
		})
	})
	return r
}

// acquire returns the held agent for backend, taking a registry reference
// the first time.
func (s *Server) acquire(backend string) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.held[backend]; ok {
		return a, nil
	}
	a, err := s.deps.Registry.Acquire(backend)
	if err != nil {
		return nil, err
	}
	s.held[backend] = a
	return a, nil
}

// heldAgent returns the agent a previous open acquired.
func (s *Server) heldAgent(backend string) (*agent.Agent, error) {
	s.mu.Lock()
	a, ok := s.held[backend]
	s.mu.Unlock()
	if ok {
		return a, nil
	}
	if !s.known(backend) {
		return nil, agent.ErrUnknownBackend
	}
	return nil, errNotAcquired
}

// release drops the server's reference; the last reference closes the agent.
func (s *Server) release(backend string) error {
	s.mu.Lock()
	_, ok := s.held[backend]
	delete(s.held, backend)
	s.mu.Unlock()
	if !ok {
		return errNotAcquired
	}
	return s.deps.Registry.Release(backend)
}

func (s *Server) known(backend string) bool {
	return slices.Contains(s.deps.Registry.Backends(), backend)
}

func (s *Server) isHeld(backend string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.held[backend]
	return ok
}
