package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencode-ai/opencode-remote/internal/config"
	"github.com/opencode-ai/opencode-remote/internal/event"
	"github.com/opencode-ai/opencode-remote/internal/registry"
	"github.com/opencode-ai/opencode-remote/internal/state"
	"github.com/opencode-ai/opencode-remote/internal/supervisor"
	"github.com/opencode-ai/opencode-remote/pkg/types"
)

// stubConn is a minimal upstream connection whose stream stays open until
// cancelled.
type stubConn struct {
	healthErr error
	providers []types.Provider
}

func (c *stubConn) Health(ctx context.Context) error { return c.healthErr }

func (c *stubConn) ListProjects(ctx context.Context) ([]types.Project, error) {
	return nil, nil
}

func (c *stubConn) ListSessions(ctx context.Context, directory string) ([]types.Session, error) {
	return nil, nil
}

func (c *stubConn) ListProviders(ctx context.Context) ([]types.Provider, error) {
	return c.providers, nil
}

func (c *stubConn) OpenStream(ctx context.Context) (<-chan event.Event, <-chan error) {
	events := make(chan event.Event)
	errs := make(chan error)
	go func() {
		<-ctx.Done()
		close(events)
		close(errs)
	}()
	return events, errs
}

type testServer struct {
	srv     *Server
	store   *state.Store
	reg     *registry.Registry
	sup     *supervisor.Supervisor
	servers *config.Store
	conn    *stubConn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	store := state.NewStore(bus)
	reg := registry.New(bus)
	servers := config.NewStore(filepath.Join(t.TempDir(), "servers.jsonc"))

	conn := &stubConn{}
	sup := supervisor.New(supervisor.Options{
		Dialer:   func(config.ServerConfig) supervisor.Conn { return conn },
		Settings: config.StaticSettings{Notifications: true},
		Store:    store,
		Registry: reg,
	})
	t.Cleanup(sup.Close)

	srv := New(DefaultConfig(), sup, store, reg, bus, servers)
	return &testServer{srv: srv, store: store, reg: reg, sup: sup, servers: servers, conn: conn}
}

func (ts *testServer) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestGetState_Empty(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/state")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp stateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(resp.Connected) != 0 || len(resp.Connecting) != 0 {
		t.Errorf("expected empty state, got %+v", resp)
	}
}

func TestListSessions(t *testing.T) {
	ts := newTestServer(t)
	ts.store.SetSessions("srv_1", []types.Session{{ID: "ses_a", Title: "fix build"}})

	w := ts.do(t, http.MethodGet, "/sessions")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string][]types.Session
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(resp["srv_1"]) != 1 || resp["srv_1"][0].ID != "ses_a" {
		t.Errorf("unexpected sessions payload: %+v", resp)
	}
}

func TestListServerSessions_UnknownServer(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/servers/srv_none/sessions")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("expected empty array, got %q", got)
	}
}

func TestConnect_UnknownServer(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/servers/srv_none/connect")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestConnectAndDisconnect(t *testing.T) {
	ts := newTestServer(t)
	cfg, err := ts.servers.Add(config.ServerConfig{URL: "http://pixel.local:4096", Name: "pixel"})
	if err != nil {
		t.Fatalf("add server: %v", err)
	}

	w := ts.do(t, http.MethodPost, "/servers/"+cfg.ID+"/connect")
	if w.Code != http.StatusOK {
		t.Fatalf("connect: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	snap := ts.reg.Snapshot()
	if snap.Empty() {
		t.Fatal("expected server tracked after connect")
	}

	w = ts.do(t, http.MethodPost, "/servers/"+cfg.ID+"/disconnect")
	if w.Code != http.StatusOK {
		t.Fatalf("disconnect: expected 200, got %d", w.Code)
	}
	if !ts.reg.Snapshot().Empty() {
		t.Error("expected registry empty after disconnect")
	}
}

func TestConnect_ByName(t *testing.T) {
	ts := newTestServer(t)
	if _, err := ts.servers.Add(config.ServerConfig{URL: "http://pixel.local:4096", Name: "pixel"}); err != nil {
		t.Fatalf("add server: %v", err)
	}

	w := ts.do(t, http.MethodPost, "/servers/pixel/connect")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDisconnectAll(t *testing.T) {
	ts := newTestServer(t)
	cfg, err := ts.servers.Add(config.ServerConfig{URL: "http://pixel.local:4096"})
	if err != nil {
		t.Fatalf("add server: %v", err)
	}
	if w := ts.do(t, http.MethodPost, "/servers/"+cfg.ID+"/connect"); w.Code != http.StatusOK {
		t.Fatalf("connect: expected 200, got %d", w.Code)
	}

	w := ts.do(t, http.MethodPost, "/disconnect-all")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !ts.reg.Snapshot().Empty() {
		t.Error("expected registry empty after disconnect-all")
	}
}

func TestListServerProviders(t *testing.T) {
	ts := newTestServer(t)
	ts.conn.providers = []types.Provider{{ID: "anthropic", Name: "Anthropic", Models: []string{"claude"}}}
	cfg, err := ts.servers.Add(config.ServerConfig{URL: "http://pixel.local:4096", Name: "pixel"})
	if err != nil {
		t.Fatalf("add server: %v", err)
	}
	if w := ts.do(t, http.MethodPost, "/servers/"+cfg.ID+"/connect"); w.Code != http.StatusOK {
		t.Fatalf("connect: expected 200, got %d", w.Code)
	}

	w := ts.do(t, http.MethodGet, "/servers/pixel/providers")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var providers []types.Provider
	if err := json.Unmarshal(w.Body.Bytes(), &providers); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(providers) != 1 || providers[0].ID != "anthropic" {
		t.Fatalf("unexpected providers payload: %+v", providers)
	}
}

func TestListServerProviders_NotConnected(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/servers/srv_none/providers")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListServers(t *testing.T) {
	ts := newTestServer(t)
	if _, err := ts.servers.Add(config.ServerConfig{URL: "http://pixel.local:4096", Name: "pixel", Password: "hunter2"}); err != nil {
		t.Fatalf("add server: %v", err)
	}

	w := ts.do(t, http.MethodGet, "/servers/")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var infos []serverInfo
	if err := json.Unmarshal(w.Body.Bytes(), &infos); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "pixel" {
		t.Fatalf("unexpected servers payload: %+v", infos)
	}
	if infos[0].Connected {
		t.Error("server should not be connected yet")
	}
	// Credentials must not appear anywhere in the payload.
	if strings.Contains(w.Body.String(), "hunter2") {
		t.Error("password leaked in /servers response")
	}
}
