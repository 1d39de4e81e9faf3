package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/opencode-remote/internal/event"
)

func TestPhaseTransitionsAreExclusive(t *testing.T) {
	r := New(nil)

	r.SetConnecting("s1")
	assert.True(t, r.IsConnecting("s1"))
	assert.False(t, r.IsConnected("s1"))

	r.SetConnected("s1")
	assert.True(t, r.IsConnected("s1"))
	assert.False(t, r.IsConnecting("s1"))

	r.SetConnecting("s1")
	snap := r.Snapshot()
	assert.Equal(t, []string{"s1"}, snap.Connecting)
	assert.Empty(t, snap.Connected)
}

func TestUntrackedServerAbsent(t *testing.T) {
	r := New(nil)
	assert.False(t, r.IsConnected("never"))
	assert.False(t, r.IsConnecting("never"))
	assert.True(t, r.Snapshot().Empty())
}

func TestRemove(t *testing.T) {
	r := New(nil)
	r.SetConnecting("s1")
	r.SetConnected("s2")

	r.Remove("s1")
	r.Remove("s2")

	snap := r.Snapshot()
	assert.True(t, snap.Empty())
}

func TestSnapshotSorted(t *testing.T) {
	r := New(nil)
	r.SetConnected("b")
	r.SetConnected("a")
	r.SetConnecting("d")
	r.SetConnecting("c")

	snap := r.Snapshot()
	assert.Equal(t, []string{"a", "b"}, snap.Connected)
	assert.Equal(t, []string{"c", "d"}, snap.Connecting)
}

func TestWatchReplaysCurrentState(t *testing.T) {
	r := New(nil)
	r.SetConnected("s1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := r.Watch(ctx)
	select {
	case snap := <-ch:
		assert.Equal(t, []string{"s1"}, snap.Connected)
	case <-time.After(time.Second):
		t.Fatal("late subscriber did not receive current snapshot")
	}
}

func TestWatchReceivesTransitions(t *testing.T) {
	r := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := r.Watch(ctx)
	<-ch // initial empty snapshot

	r.SetConnecting("s1")

	select {
	case snap := <-ch:
		assert.Equal(t, []string{"s1"}, snap.Connecting)
	case <-time.After(time.Second):
		t.Fatal("watcher did not receive transition")
	}
}

func TestSlowWatcherKeepsLatest(t *testing.T) {
	r := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := r.Watch(ctx)
	// Do not drain: force the buffer to overflow through several updates.
	r.SetConnecting("s1")
	r.SetConnected("s1")
	r.SetConnecting("s2")

	var last Snapshot
	deadline := time.After(time.Second)
drain:
	for {
		select {
		case snap := <-ch:
			last = snap
		case <-deadline:
			t.Fatal("no snapshots received")
		default:
			break drain
		}
	}

	require.Equal(t, []string{"s1"}, last.Connected)
	require.Equal(t, []string{"s2"}, last.Connecting)
}

func TestBusMirrorsTransitionsInOrder(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var got []event.ConnectionChangedData
	unsub := bus.SubscribeAll(func(ev event.Event) {
		if ev.Type != event.ConnectionChanged {
			return
		}
		mu.Lock()
		got = append(got, ev.Data.(event.ConnectionChangedData))
		mu.Unlock()
	})
	defer unsub()

	r := New(bus)
	r.SetConnecting("s1")
	r.SetConnected("s1")
	r.Remove("s1")

	// Mirroring is synchronous: every transition is on the bus, in the
	// order it happened, by the time the mutator returns.
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"s1"}, got[0].Connecting)
	assert.Equal(t, []string{"s1"}, got[1].Connected)
	assert.Empty(t, got[2].Connected)
	assert.Empty(t, got[2].Connecting)
}

func TestWatchStopsOnCancel(t *testing.T) {
	r := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch := r.Watch(ctx)
	<-ch
	cancel()

	// Give the cleanup goroutine a moment, then ensure updates no longer
	// reach the watcher channel beyond what was already buffered.
	time.Sleep(50 * time.Millisecond)
	r.SetConnected("s1")

	select {
	case _, ok := <-ch:
		// A buffered value may still arrive; the channel is simply unused.
		_ = ok
	default:
	}
}
