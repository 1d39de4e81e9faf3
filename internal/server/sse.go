package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opencode-ai/opencode-remote/internal/event"
	"github.com/opencode-ai/opencode-remote/internal/logging"
	"github.com/opencode-ai/opencode-remote/pkg/types"
)

// FeedEvent is the wire shape of one SSE payload.
type FeedEvent struct {
	Type       event.Type `json:"type"`
	ServerID   string     `json:"serverID,omitempty"`
	Properties any        `json:"properties"`
}

// sessionsSnapshot is the replay payload sent to a fresh SSE subscriber;
// live sessions.changed events carry only the server id.
type sessionsSnapshot struct {
	ServerID string          `json:"serverID"`
	Sessions []types.Session `json:"sessions"`
}

const (
	// SSEHeartbeatInterval is the interval for SSE heartbeats.
	SSEHeartbeatInterval = 30 * time.Second
)

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	rc := http.NewResponseController(w)

	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	return &sseWriter{w: w, flusher: flusher, rc: rc}, nil
}

// writeEvent writes one SSE event and flushes it out immediately.
func (s *sseWriter) writeEvent(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, jsonData)
	if err != nil {
		return err
	}

	// ResponseController flushes through middleware wrappers; fall back to
	// the plain Flusher when it cannot.
	if flushErr := s.rc.Flush(); flushErr != nil {
		s.flusher.Flush()
	}

	return nil
}

// writeHeartbeat writes an SSE heartbeat comment.
func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// events streams the internal bus to a control API client. The current
// connection snapshot and session list are sent first, so a late
// subscriber starts from present state instead of an empty screen.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	// Replay current state before any live event.
	snap := s.reg.Snapshot()
	if err := sse.writeEvent("message", FeedEvent{
		Type: event.ConnectionChanged,
		Properties: event.ConnectionChangedData{
			Connected:  snap.Connected,
			Connecting: snap.Connecting,
		},
	}); err != nil {
		return
	}
	for serverID, sessions := range s.store.Sessions() {
		if err := sse.writeEvent("message", FeedEvent{
			Type:       event.SessionsChanged,
			ServerID:   serverID,
			Properties: sessionsSnapshot{ServerID: serverID, Sessions: sessions},
		}); err != nil {
			return
		}
	}

	// Small buffer keeps latency low; a stalled client drops events rather
	// than backing up the bus.
	events := make(chan event.Event, 10)
	unsub := s.bus.SubscribeAll(func(e event.Event) {
		select {
		case events <- e:
		default:
			logging.Warn().
				Str("eventType", string(e.Type)).
				Msg("SSE event dropped: channel full")
		}
	})
	defer unsub()

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			data := FeedEvent{
				Type:       e.Type,
				ServerID:   e.ServerID,
				Properties: e.Data,
			}
			if err := sse.writeEvent("message", data); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}
