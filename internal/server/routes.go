package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all control API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.health)
	r.Get("/state", s.getState)
	r.Get("/sessions", s.listSessions)

	r.Route("/servers", func(r chi.Router) {
		r.Get("/", s.listServers)

		r.Route("/{serverID}", func(r chi.Router) {
			r.Post("/connect", s.connectServer)
			r.Post("/disconnect", s.disconnectServer)
			r.Get("/sessions", s.listServerSessions)
			r.Get("/providers", s.listServerProviders)
		})
	})

	r.Post("/disconnect-all", s.disconnectAll)

	// Event streaming (SSE)
	r.Get("/event", s.events)
}
