package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/opencode-remote/internal/event"
	"github.com/opencode-ai/opencode-remote/pkg/types"
)

func newTestStore() *Store {
	s := NewStore(nil)
	var tick int64
	s.now = func() int64 { tick++; return tick }
	return s
}

func session(id, title string) types.Session {
	return types.Session{ID: id, Title: title, Directory: "/work"}
}

func TestSetSessionsMergesAdditively(t *testing.T) {
	s := newTestStore()

	s.SetSessions("a", []types.Session{session("s1", "one"), session("s2", "two")})
	s.SetSessions("a", []types.Session{session("s3", "three")})

	got := s.SessionsFor("a")
	require.Len(t, got, 3, "bulk preload must merge, not replace")

	s.SetSessions("a", []types.Session{session("s1", "renamed")})
	updated, ok := s.Get("a", "s1")
	require.True(t, ok)
	assert.Equal(t, "renamed", updated.Title)
	assert.Len(t, s.SessionsFor("a"), 3)
}

func TestSetSessionsPreservesDerivedStatus(t *testing.T) {
	s := newTestStore()
	s.SetSessions("a", []types.Session{session("s1", "one")})
	s.ProcessEvent(event.Event{ServerID: "a", Data: event.MessageUpdatedData{SessionID: "s1"}})

	busy, _ := s.Get("a", "s1")
	require.Equal(t, types.StatusBusy, busy.Status)

	// Re-listing the session must not reset its busy status.
	s.SetSessions("a", []types.Session{session("s1", "one")})
	after, _ := s.Get("a", "s1")
	assert.Equal(t, types.StatusBusy, after.Status)
}

func TestProcessEventLifecycle(t *testing.T) {
	s := newTestStore()
	info := session("s1", "created")

	s.ProcessEvent(event.Event{ServerID: "a", Data: event.SessionCreatedData{Info: &info}})
	created, ok := s.Get("a", "s1")
	require.True(t, ok)
	assert.Equal(t, types.StatusIdle, created.Status)

	renamed := session("s1", "renamed")
	s.ProcessEvent(event.Event{ServerID: "a", Data: event.SessionUpdatedData{Info: &renamed}})
	got, _ := s.Get("a", "s1")
	assert.Equal(t, "renamed", got.Title)

	s.ProcessEvent(event.Event{ServerID: "a", Data: event.MessagePartUpdatedData{SessionID: "s1"}})
	got, _ = s.Get("a", "s1")
	assert.Equal(t, types.StatusBusy, got.Status)

	s.ProcessEvent(event.Event{ServerID: "a", Data: event.SessionIdleData{SessionID: "s1"}})
	got, _ = s.Get("a", "s1")
	assert.Equal(t, types.StatusIdle, got.Status)

	s.ProcessEvent(event.Event{ServerID: "a", Data: event.SessionErrorData{SessionID: "s1", Error: "ProviderAuthError"}})
	got, _ = s.Get("a", "s1")
	assert.Equal(t, types.StatusRetry, got.Status)

	s.ProcessEvent(event.Event{ServerID: "a", Data: event.SessionDeletedData{Info: &renamed}})
	_, ok = s.Get("a", "s1")
	assert.False(t, ok)
}

func TestProcessEventUnknownSessionIgnored(t *testing.T) {
	s := newTestStore()
	s.ProcessEvent(event.Event{ServerID: "a", Data: event.SessionIdleData{SessionID: "ghost"}})
	assert.Empty(t, s.SessionsFor("a"))
}

func TestProcessEventWithoutServerDropped(t *testing.T) {
	s := newTestStore()
	info := session("s1", "one")
	s.ProcessEvent(event.Event{Data: event.SessionCreatedData{Info: &info}})
	assert.Empty(t, s.Sessions())
}

func TestServerIsolation(t *testing.T) {
	s := newTestStore()
	s.SetSessions("a", []types.Session{session("s1", "on-a")})
	s.SetSessions("b", []types.Session{session("s1", "on-b")})

	// Same session id on two servers stays independent.
	s.ProcessEvent(event.Event{ServerID: "a", Data: event.MessageUpdatedData{SessionID: "s1"}})

	onA, _ := s.Get("a", "s1")
	onB, _ := s.Get("b", "s1")
	assert.Equal(t, types.StatusBusy, onA.Status)
	assert.Equal(t, types.StatusIdle, onB.Status)

	deleted := session("s1", "on-a")
	s.ProcessEvent(event.Event{ServerID: "a", Data: event.SessionDeletedData{Info: &deleted}})
	assert.Empty(t, s.SessionsFor("a"))
	assert.Len(t, s.SessionsFor("b"), 1)
}

func TestClearForServer(t *testing.T) {
	s := newTestStore()
	s.SetSessions("a", []types.Session{session("s1", "one"), session("s2", "two")})
	s.SetSessions("b", []types.Session{session("s3", "three")})

	s.ClearForServer("a")

	assert.Empty(t, s.SessionsFor("a"))
	assert.Len(t, s.SessionsFor("b"), 1)
}

func TestSessionsOrderedByRecency(t *testing.T) {
	s := newTestStore()
	s.SetSessions("a", []types.Session{session("s1", "one"), session("s2", "two")})

	s.ProcessEvent(event.Event{ServerID: "a", Data: event.MessageUpdatedData{SessionID: "s1"}})
	s.ProcessEvent(event.Event{ServerID: "a", Data: event.MessageUpdatedData{SessionID: "s2"}})

	got := s.SessionsFor("a")
	require.Len(t, got, 2)
	assert.Equal(t, "s2", got[0].ID)
	assert.Equal(t, "s1", got[1].ID)
}

func TestUnknownEventTouchesSession(t *testing.T) {
	s := newTestStore()
	s.SetSessions("a", []types.Session{session("s1", "one")})
	before, _ := s.Get("a", "s1")

	s.ProcessEvent(event.Event{ServerID: "a", Data: event.UnknownData{RawType: "todo.updated", SessionID: "s1"}})

	after, _ := s.Get("a", "s1")
	assert.Greater(t, after.Time.Updated, before.Time.Updated)
	assert.Equal(t, before.Status, after.Status, "unknown events must not change status")
}

func TestIsChild(t *testing.T) {
	s := newTestStore()
	parent := "s1"
	child := types.Session{ID: "s2", ParentID: &parent}
	s.SetSessions("a", []types.Session{session("s1", "parent"), child})

	assert.False(t, s.IsChild("a", "s1"))
	assert.True(t, s.IsChild("a", "s2"))
	assert.False(t, s.IsChild("a", "missing"))
}

func TestChangedPublishesOnBus(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	done := make(chan event.Event, 1)
	bus.Subscribe(event.SessionsChanged, func(e event.Event) {
		select {
		case done <- e:
		default:
		}
	})

	s := NewStore(bus)
	s.SetSessions("a", []types.Session{session("s1", "one")})

	select {
	case got := <-done:
		assert.Equal(t, "a", got.ServerID)
	case <-time.After(time.Second):
		t.Fatal("no sessions.changed event published")
	}
}
