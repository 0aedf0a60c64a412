// Package api provides the HTTP server for dmflow.
//
// It exposes RESTful endpoints for message processing, agent configuration,
// and follower inspection, plus health and Prometheus metrics endpoints and
// the inbound Twilio webhook.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/creatoros/dmflow/internal/agents"
	"github.com/creatoros/dmflow/internal/engine"
	"github.com/creatoros/dmflow/internal/store"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string
	TwilioWebhook http.HandlerFunc // mounted at /webhooks/twilio when set
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithTwilioWebhook mounts the Twilio inbound webhook handler.
func WithTwilioWebhook(h http.HandlerFunc) Option {
	return func(o *Opts) { o.TwilioWebhook = h }
}

// Server is the dmflow HTTP API server.
type Server struct {
	engine  *engine.Engine
	agents  *agents.Registry
	store   store.FollowerStore
	httpSrv *http.Server
	opts    Opts
}

// NewServer creates an API server around the engine and its collaborators.
func NewServer(eng *engine.Engine, reg *agents.Registry, st store.FollowerStore, opts ...Option) (*Server, error) {
	if eng == nil {
		return nil, errors.New("api: engine is required")
	}
	if reg == nil {
		return nil, errors.New("api: agent registry is required")
	}
	if st == nil {
		return nil, errors.New("api: follower store is required")
	}

	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{engine: eng, agents: reg, store: st, opts: cfg}
	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	r.Use(metricsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if s.opts.TwilioWebhook != nil {
		r.Post("/webhooks/twilio", s.opts.TwilioWebhook)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/messages", s.handleProcessMessage)

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", s.handleListAgents)
			r.Post("/", s.handleRegisterAgent)
			r.Get("/{agentID}", s.handleGetAgent)
			r.Post("/{agentID}/pause", s.handlePauseAgent)
			r.Post("/{agentID}/resume", s.handleResumeAgent)
			r.Get("/{agentID}/followers", s.handleListFollowers)
			r.Get("/{agentID}/followers/{followerID}", s.handleGetFollower)
		})
	})
	return r
}

// Start runs the HTTP server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Server.Start: listening", "addr", s.opts.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Server.Shutdown: stopping HTTP server")
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the configured router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}
