// Package supervisor owns one supervised background task per connected
// server: it preloads sessions over REST, consumes the event stream,
// reconnects with exponential backoff and keeps the connection registry
// and session store consistent.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opencode-ai/opencode-remote/internal/config"
	"github.com/opencode-ai/opencode-remote/internal/event"
	"github.com/opencode-ai/opencode-remote/internal/logging"
	"github.com/opencode-ai/opencode-remote/internal/notify"
	"github.com/opencode-ai/opencode-remote/internal/registry"
	"github.com/opencode-ai/opencode-remote/internal/state"
	"github.com/opencode-ai/opencode-remote/internal/wakelock"
	"github.com/opencode-ai/opencode-remote/pkg/types"
)

// ErrNotConnected is returned by Providers for an untracked server id.
var ErrNotConnected = errors.New("server not connected")

// Conn is the per-server handle a supervisor task works with: the REST
// calls used for the health check, preload and provider listing, and the
// stream opener.
type Conn interface {
	Health(ctx context.Context) error
	ListProjects(ctx context.Context) ([]types.Project, error)
	ListSessions(ctx context.Context, directory string) ([]types.Session, error)
	ListProviders(ctx context.Context) ([]types.Provider, error)
	OpenStream(ctx context.Context) (<-chan event.Event, <-chan error)
}

// Dialer builds a connection handle from a server config.
type Dialer func(cfg config.ServerConfig) Conn

// Options configures a Supervisor. Dialer, Store and Registry are
// required; the rest default to reasonable no-op implementations.
type Options struct {
	Dialer   Dialer
	Settings config.Settings
	Store    *state.Store
	Registry *registry.Registry
	Notifier notify.Notifier
	WakeLock wakelock.Lock

	// HealthTimeout bounds the synchronous pre-connect health check.
	HealthTimeout time.Duration
}

// connState is the bookkeeping for one tracked server. Entries are stored
// by value and replaced, not mutated, when the connected flag flips.
type connState struct {
	config    config.ServerConfig
	conn      Conn
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// Supervisor manages the set of live server connections. All public
// methods are safe for concurrent use. Connect and Disconnect for the
// same server id are serialized end to end by a per-id operation lock,
// so a disconnect still waiting for its task can never erase the state
// of a connection re-established for the same id.
type Supervisor struct {
	mu      sync.Mutex
	entries map[string]connState

	// ops holds one operation lock per server id, guarded by mu. Locks
	// are created on first use and never removed; the set of ids a
	// process ever connects to is small.
	ops map[string]*sync.Mutex

	// lockHeld tracks whether the wake lock is currently acquired,
	// guarded by mu. Acquire and Release are called under mu so the
	// transitions strictly alternate even when connects and disconnects
	// for different ids overlap.
	lockHeld bool

	parent       context.Context
	cancelParent context.CancelFunc

	// idle receives a value whenever the last tracked server is removed.
	idle chan struct{}

	dialer        Dialer
	settings      config.Settings
	store         *state.Store
	reg           *registry.Registry
	notifier      notify.Notifier
	lock          wakelock.Lock
	healthTimeout time.Duration

	// sleep is the backoff wait, replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Supervisor. Its per-server tasks run under a single parent
// context cancelled by DisconnectAll; each task has its own child context
// so one server's failure or teardown never affects another's.
func New(opts Options) *Supervisor {
	if opts.Settings == nil {
		opts.Settings = config.StaticSettings{Notifications: true}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.LogNotifier{}
	}
	if opts.WakeLock == nil {
		opts.WakeLock = &wakelock.LogLock{}
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		entries:       make(map[string]connState),
		ops:           make(map[string]*sync.Mutex),
		parent:        ctx,
		cancelParent:  cancel,
		idle:          make(chan struct{}, 1),
		dialer:        opts.Dialer,
		settings:      opts.Settings,
		store:         opts.Store,
		reg:           opts.Registry,
		notifier:      opts.Notifier,
		lock:          opts.WakeLock,
		healthTimeout: opts.HealthTimeout,
		sleep:         sleepCtx,
	}
}

// Registry returns the observable connection registry.
func (s *Supervisor) Registry() *registry.Registry {
	return s.reg
}

// Done returns a channel that receives a value each time the last tracked
// server is removed. Hosts that stop on idle wait on it.
func (s *Supervisor) Done() <-chan struct{} {
	return s.idle
}

// signalIdle records an all-servers-gone transition without blocking.
func (s *Supervisor) signalIdle() {
	select {
	case s.idle <- struct{}{}:
	default:
	}
}

// opLock returns the operation lock for a server id, creating it on
// first use.
func (s *Supervisor) opLock(serverID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[serverID]
	if !ok {
		op = &sync.Mutex{}
		s.ops[serverID] = op
	}
	return op
}

// Connect starts supervising a server. Calling it again for an already
// tracked server id is a no-op. The server is health-checked first; a
// failing probe is returned to the caller and no background task starts.
// A Connect overlapping a Disconnect for the same id blocks until the
// disconnect has fully torn the old connection down.
func (s *Supervisor) Connect(cfg config.ServerConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("server config has no id")
	}

	op := s.opLock(cfg.ID)
	op.Lock()
	defer op.Unlock()

	if s.tracked(cfg.ID) {
		return nil
	}

	conn := s.dialer(cfg)

	healthCtx, cancelHealth := context.WithTimeout(s.parent, s.healthTimeout)
	err := conn.Health(healthCtx)
	cancelHealth()
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.DisplayName(), err)
	}

	s.mu.Lock()
	taskCtx, cancel := context.WithCancel(s.parent)
	entry := connState{
		config: cfg,
		conn:   conn,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.entries[cfg.ID] = entry
	if !s.lockHeld {
		s.lockHeld = true
		s.lock.Acquire()
	}
	s.mu.Unlock()

	s.reg.SetConnecting(cfg.ID)

	logging.Info().Str("serverID", cfg.ID).Str("server", cfg.DisplayName()).Msg("connecting")
	go s.run(taskCtx, cfg, conn, entry.done)
	return nil
}

// Disconnect stops supervising one server, cancels its task, waits for it
// to terminate and purges its sessions. Unknown ids are ignored.
func (s *Supervisor) Disconnect(serverID string) {
	op := s.opLock(serverID)
	op.Lock()
	defer op.Unlock()

	s.mu.Lock()
	entry, ok := s.entries[serverID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.entries, serverID)
	s.mu.Unlock()

	entry.cancel()
	<-entry.done

	s.reg.Remove(serverID)
	s.store.ClearForServer(serverID)

	// Whether this was the last server is decided only after the task
	// has terminated: a connect for another id may have landed while we
	// were waiting, in which case the wake lock stays held.
	s.mu.Lock()
	if len(s.entries) == 0 && s.lockHeld {
		s.lockHeld = false
		s.lock.Release()
		s.signalIdle()
	}
	s.mu.Unlock()

	logging.Info().Str("serverID", serverID).Msg("disconnected")
}

// DisconnectAll disconnects every tracked server, waiting for each task
// to terminate. The wake lock is released and the idle signal fired by
// the disconnect that removes the last entry.
func (s *Supervisor) DisconnectAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Disconnect(id)
	}
	if len(ids) > 0 {
		logging.Info().Int("count", len(ids)).Msg("disconnected all servers")
	}
}

// Providers lists the model providers of a tracked server over its live
// connection.
func (s *Supervisor) Providers(ctx context.Context, serverID string) ([]types.Provider, error) {
	s.mu.Lock()
	entry, ok := s.entries[serverID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", serverID, ErrNotConnected)
	}
	return entry.conn.ListProviders(ctx)
}

// Close tears everything down, including the parent scope. The supervisor
// cannot be reused afterwards.
func (s *Supervisor) Close() {
	s.DisconnectAll()
	s.cancelParent()
}

// IsConnected reports whether a server's stream is actively flowing. Ids
// never passed to Connect are simply not connected.
func (s *Supervisor) IsConnected(serverID string) bool {
	return s.reg.IsConnected(serverID)
}

// tracked reports whether a server still has a ConnectionState entry.
func (s *Supervisor) tracked(serverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[serverID]
	return ok
}

// setConnected flips a tracked server's connected flag, replacing the
// entry, and moves the id between the registry sets. Returns false when
// the server was untracked (concurrent disconnect).
func (s *Supervisor) setConnected(serverID string, connected bool) bool {
	s.mu.Lock()
	entry, ok := s.entries[serverID]
	if !ok || entry.connected == connected {
		s.mu.Unlock()
		return ok
	}
	entry.connected = connected
	s.entries[serverID] = entry
	s.mu.Unlock()

	if connected {
		s.reg.SetConnected(serverID)
	} else {
		s.reg.SetConnecting(serverID)
	}
	return true
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
