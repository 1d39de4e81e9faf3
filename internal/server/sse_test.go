package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opencode-ai/opencode-remote/pkg/types"
)

func TestNewSSEWriter(t *testing.T) {
	w := httptest.NewRecorder()
	sse, err := newSSEWriter(w)
	if err != nil {
		t.Fatalf("newSSEWriter failed: %v", err)
	}
	if sse == nil {
		t.Fatal("SSE writer should not be nil")
	}
}

type noFlushWriter struct{}

func (n *noFlushWriter) Header() http.Header       { return http.Header{} }
func (n *noFlushWriter) Write([]byte) (int, error) { return 0, nil }
func (n *noFlushWriter) WriteHeader(int)           {}

func TestNewSSEWriter_NoFlusher(t *testing.T) {
	if _, err := newSSEWriter(&noFlushWriter{}); err == nil {
		t.Error("expected error for writer without Flusher")
	}
}

func TestSSEWriter_WriteEvent(t *testing.T) {
	w := httptest.NewRecorder()
	sse, _ := newSSEWriter(w)

	if err := sse.writeEvent("message", map[string]string{"hello": "world"}); err != nil {
		t.Fatalf("writeEvent failed: %v", err)
	}

	body := w.Body.String()
	if !strings.HasPrefix(body, "event: message\n") {
		t.Errorf("missing event line: %q", body)
	}
	if !strings.Contains(body, `data: {"hello":"world"}`) {
		t.Errorf("missing data line: %q", body)
	}
	if !strings.HasSuffix(body, "\n\n") {
		t.Errorf("event not terminated by blank line: %q", body)
	}
}

func TestSSEWriter_Heartbeat(t *testing.T) {
	w := httptest.NewRecorder()
	sse, _ := newSSEWriter(w)

	sse.writeHeartbeat()
	if got := w.Body.String(); got != ": heartbeat\n\n" {
		t.Errorf("unexpected heartbeat: %q", got)
	}
}

func TestEvents_ReplaysCurrentState(t *testing.T) {
	ts := newTestServer(t)
	ts.reg.SetConnected("srv_1")
	ts.store.SetSessions("srv_1", []types.Session{{ID: "ses_a", Title: "fix build"}})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/event", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		ts.srv.Router().ServeHTTP(w, req)
		close(done)
	}()

	// Give the handler a moment to write the replay, then hang up.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after disconnect")
	}

	body := w.Body.String()
	if !strings.Contains(body, "connection.changed") {
		t.Errorf("replay missing connection snapshot: %q", body)
	}
	if !strings.Contains(body, "srv_1") {
		t.Errorf("replay missing server id: %q", body)
	}
	if !strings.Contains(body, "ses_a") {
		t.Errorf("replay missing session list: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}
}
