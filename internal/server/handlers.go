package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/opencode-remote/internal/config"
	"github.com/opencode-ai/opencode-remote/internal/supervisor"
	"github.com/opencode-ai/opencode-remote/pkg/types"
)

// stateResponse is the /state payload: the connection snapshot plus the
// per-server session counts.
type stateResponse struct {
	Connected  []string       `json:"connected"`
	Connecting []string       `json:"connecting"`
	Sessions   map[string]int `json:"sessions"`
}

// serverInfo is one entry of the /servers payload. Credentials never leave
// the process.
type serverInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	URL       string `json:"url"`
	Connected bool   `json:"connected"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"servers": len(s.reg.Snapshot().Connected),
	})
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	snap := s.reg.Snapshot()
	counts := make(map[string]int)
	for id, sessions := range s.store.Sessions() {
		counts[id] = len(sessions)
	}
	writeJSON(w, http.StatusOK, stateResponse{
		Connected:  snap.Connected,
		Connecting: snap.Connecting,
		Sessions:   counts,
	})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Sessions())
}

func (s *Server) listServerSessions(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverID")
	sessions := s.store.SessionsFor(serverID)
	if sessions == nil {
		sessions = []types.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) listServerProviders(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverID")
	if cfg, err := s.servers.Resolve(serverID); err == nil {
		serverID = cfg.ID
	}
	providers, err := s.sup.Providers(r.Context(), serverID)
	if err != nil {
		if errors.Is(err, supervisor.ErrNotConnected) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, ErrCodeUpstreamError, err.Error())
		return
	}
	if providers == nil {
		providers = []types.Provider{}
	}
	writeJSON(w, http.StatusOK, providers)
}

func (s *Server) listServers(w http.ResponseWriter, r *http.Request) {
	configs, err := s.servers.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	infos := make([]serverInfo, 0, len(configs))
	for _, cfg := range configs {
		infos = append(infos, serverInfo{
			ID:        cfg.ID,
			Name:      cfg.Name,
			URL:       cfg.URL,
			Connected: s.sup.IsConnected(cfg.ID),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) connectServer(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.servers.Resolve(chi.URLParam(r, "serverID"))
	if err != nil {
		if errors.Is(err, config.ErrServerNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if err := s.sup.Connect(cfg); err != nil {
		writeError(w, http.StatusBadGateway, ErrCodeUpstreamError, err.Error())
		return
	}
	writeSuccess(w)
}

func (s *Server) disconnectServer(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverID")
	// Resolve lets clients use a name or URL, but a raw id that is not in
	// the persisted list anymore must still disconnect.
	if cfg, err := s.servers.Resolve(serverID); err == nil {
		serverID = cfg.ID
	}
	s.sup.Disconnect(serverID)
	writeSuccess(w)
}

func (s *Server) disconnectAll(w http.ResponseWriter, r *http.Request) {
	s.sup.DisconnectAll()
	writeSuccess(w)
}
