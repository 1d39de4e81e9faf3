// Package server exposes the connection engine over a local HTTP control
// API: connection state, the merged session list, and a server-sent event
// feed mirroring the internal bus.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/opencode-ai/opencode-remote/internal/config"
	"github.com/opencode-ai/opencode-remote/internal/event"
	"github.com/opencode-ai/opencode-remote/internal/registry"
	"github.com/opencode-ai/opencode-remote/internal/state"
	"github.com/opencode-ai/opencode-remote/internal/supervisor"
)

// Config holds control API configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default control API configuration. WriteTimeout
// stays zero so the SSE feed is never cut off by the server.
func DefaultConfig() *Config {
	return &Config{
		Port:        7654,
		EnableCORS:  true,
		ReadTimeout: 30 * time.Second,
	}
}

// Server is the HTTP control API over a running supervisor.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server

	sup     *supervisor.Supervisor
	store   *state.Store
	reg     *registry.Registry
	bus     *event.Bus
	servers *config.Store
}

// New creates a Server wired to the given engine components.
func New(cfg *Config, sup *supervisor.Supervisor, store *state.Store, reg *registry.Registry, bus *event.Bus, servers *config.Store) *Server {
	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		sup:     sup,
		store:   store,
		reg:     reg,
		bus:     bus,
		servers: servers,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the chi router, used by tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
