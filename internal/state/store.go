// Package state holds the consolidated session model built from server
// streams: the event reducer of the remote-control core.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/opencode-ai/opencode-remote/internal/event"
	"github.com/opencode-ai/opencode-remote/internal/logging"
	"github.com/opencode-ai/opencode-remote/pkg/types"
)

// Store is a multi-server session registry. All mutable state is
// partitioned by server id; events from one server can never touch
// another server's sessions. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*types.Session

	bus *event.Bus
	now func() int64
}

// NewStore creates an empty store. Updates are announced on bus when it is
// non-nil.
func NewStore(bus *event.Bus) *Store {
	return &Store{
		sessions: make(map[string]map[string]*types.Session),
		bus:      bus,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

// forServer returns the mutable session map for a server, creating it on
// first use. Callers must hold the write lock.
func (s *Store) forServer(serverID string) map[string]*types.Session {
	m, ok := s.sessions[serverID]
	if !ok {
		m = make(map[string]*types.Session)
		s.sessions[serverID] = m
	}
	return m
}

// SetSessions merges a bulk session listing into one server's registry.
// Existing entries are upserted by id; sessions absent from the list are
// kept, because preload runs once per project directory and is additive.
func (s *Store) SetSessions(serverID string, sessions []types.Session) {
	if serverID == "" {
		return
	}
	s.mu.Lock()
	m := s.forServer(serverID)
	for _, incoming := range sessions {
		session := incoming
		if existing, ok := m[session.ID]; ok && session.Status == "" {
			session.Status = existing.Status
		}
		if session.Status == "" {
			session.Status = types.StatusIdle
		}
		m[session.ID] = &session
	}
	s.mu.Unlock()

	s.changed(serverID)
}

// ProcessEvent folds one stream event into the originating server's
// registry. Events without a server tag are dropped.
func (s *Store) ProcessEvent(ev event.Event) {
	if ev.ServerID == "" {
		return
	}

	s.mu.Lock()
	mutated := s.apply(ev)
	s.mu.Unlock()

	if mutated {
		s.changed(ev.ServerID)
	}
}

// apply performs the per-variant mutation. Callers must hold the write lock.
func (s *Store) apply(ev event.Event) bool {
	m := s.forServer(ev.ServerID)

	switch data := ev.Data.(type) {
	case event.SessionCreatedData:
		return s.upsert(m, data.Info)
	case event.SessionUpdatedData:
		return s.upsert(m, data.Info)

	case event.SessionDeletedData:
		if data.Info == nil {
			return false
		}
		if _, ok := m[data.Info.ID]; !ok {
			return false
		}
		delete(m, data.Info.ID)
		return true

	case event.SessionIdleData:
		return s.setStatus(m, data.SessionID, types.StatusIdle)

	case event.SessionErrorData:
		// Session-scoped errors mean the server is retrying that session.
		return s.setStatus(m, data.SessionID, types.StatusRetry)

	case event.MessageUpdatedData:
		return s.touch(m, data.SessionID, types.StatusBusy)
	case event.MessagePartUpdatedData:
		return s.touch(m, data.SessionID, types.StatusBusy)

	case event.UnknownData:
		// Generic merge: the session was active enough to emit something.
		return s.touch(m, data.SessionID, "")
	}

	return false
}

// upsert inserts or refreshes a session, preserving a derived status the
// incoming snapshot does not carry.
func (s *Store) upsert(m map[string]*types.Session, info *types.Session) bool {
	if info == nil || info.ID == "" {
		return false
	}
	session := *info
	if existing, ok := m[session.ID]; ok && session.Status == "" {
		session.Status = existing.Status
	}
	if session.Status == "" {
		session.Status = types.StatusIdle
	}
	m[session.ID] = &session
	return true
}

// setStatus updates a known session's status.
func (s *Store) setStatus(m map[string]*types.Session, sessionID string, status types.SessionStatus) bool {
	session, ok := m[sessionID]
	if !ok || session.Status == status {
		return false
	}
	session.Status = status
	session.Time.Updated = s.now()
	return true
}

// touch refreshes a session's update time and optionally its status.
func (s *Store) touch(m map[string]*types.Session, sessionID string, status types.SessionStatus) bool {
	session, ok := m[sessionID]
	if !ok {
		return false
	}
	if status != "" {
		session.Status = status
	}
	session.Time.Updated = s.now()
	return true
}

// ClearForServer drops every session tracked for a server, so stale data
// cannot be displayed as live after a disconnect.
func (s *Store) ClearForServer(serverID string) {
	s.mu.Lock()
	_, had := s.sessions[serverID]
	delete(s.sessions, serverID)
	s.mu.Unlock()

	if had {
		s.changed(serverID)
	}
}

// Sessions returns a copy of every server's sessions, most recently
// updated first within each server.
func (s *Store) Sessions() map[string][]types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]types.Session, len(s.sessions))
	for serverID := range s.sessions {
		out[serverID] = s.listLocked(serverID)
	}
	return out
}

// SessionsFor returns a copy of one server's sessions, most recently
// updated first.
func (s *Store) SessionsFor(serverID string) []types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(serverID)
}

func (s *Store) listLocked(serverID string) []types.Session {
	m := s.sessions[serverID]
	if len(m) == 0 {
		return nil
	}
	list := make([]types.Session, 0, len(m))
	for _, session := range m {
		list = append(list, *session)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Time.Updated != list[j].Time.Updated {
			return list[i].Time.Updated > list[j].Time.Updated
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Get returns one session by server and id.
func (s *Store) Get(serverID, sessionID string) (types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[serverID][sessionID]
	if !ok {
		return types.Session{}, false
	}
	return *session, true
}

// IsChild reports whether a session is a sub-agent session. Unknown
// sessions are not children; callers treat them as top-level.
func (s *Store) IsChild(serverID, sessionID string) bool {
	session, ok := s.Get(serverID, sessionID)
	return ok && session.IsChild()
}

// changed announces a registry mutation for one server.
func (s *Store) changed(serverID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Event{
		Type:     event.SessionsChanged,
		ServerID: serverID,
		Data:     event.SessionsChangedData{ServerID: serverID},
	})
	logging.Debug().Str("serverID", serverID).Msg("session registry changed")
}
