// Package registry exposes the supervisor's live connection state as
// observable connected/connecting sets. Consumers get read-only snapshots;
// only the supervisor mutates.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/opencode-ai/opencode-remote/internal/event"
)

// Snapshot is the current connection state. A server id appears in at most
// one of the two sets; ids absent from both are not tracked at all.
type Snapshot struct {
	Connected  []string `json:"connected"`
	Connecting []string `json:"connecting"`
}

// Empty reports whether no server is tracked.
func (s Snapshot) Empty() bool {
	return len(s.Connected) == 0 && len(s.Connecting) == 0
}

// Registry tracks per-server connection phase and fans snapshots out to
// watchers. Late subscribers receive the current snapshot first, not just
// future deltas.
type Registry struct {
	mu         sync.RWMutex
	connected  map[string]struct{}
	connecting map[string]struct{}
	watchers   map[uint64]chan Snapshot
	nextID     uint64

	bus *event.Bus
}

// New creates an empty registry. Transitions are additionally announced on
// bus when it is non-nil.
func New(bus *event.Bus) *Registry {
	return &Registry{
		connected:  make(map[string]struct{}),
		connecting: make(map[string]struct{}),
		watchers:   make(map[uint64]chan Snapshot),
		bus:        bus,
	}
}

// SetConnecting marks a server as attempting/reattempting a connection.
func (r *Registry) SetConnecting(serverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connected, serverID)
	r.connecting[serverID] = struct{}{}
	r.notifyLocked()
}

// SetConnected marks a server's stream as actively flowing events.
func (r *Registry) SetConnected(serverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connecting, serverID)
	r.connected[serverID] = struct{}{}
	r.notifyLocked()
}

// Remove untracks a server entirely.
func (r *Registry) Remove(serverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connected, serverID)
	delete(r.connecting, serverID)
	r.notifyLocked()
}

// IsConnected reports whether a server's stream is currently flowing.
func (r *Registry) IsConnected(serverID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connected[serverID]
	return ok
}

// IsConnecting reports whether a server has a pending/reconnecting attempt.
func (r *Registry) IsConnecting(serverID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connecting[serverID]
	return ok
}

// Snapshot returns the current sets.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() Snapshot {
	snap := Snapshot{
		Connected:  make([]string, 0, len(r.connected)),
		Connecting: make([]string, 0, len(r.connecting)),
	}
	for id := range r.connected {
		snap.Connected = append(snap.Connected, id)
	}
	for id := range r.connecting {
		snap.Connecting = append(snap.Connecting, id)
	}
	sort.Strings(snap.Connected)
	sort.Strings(snap.Connecting)
	return snap
}

// Watch returns a channel that first delivers the current snapshot and then
// every subsequent transition until ctx is done. Slow watchers only ever
// lose intermediate snapshots, never the latest one.
func (r *Registry) Watch(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.watchers[id] = ch
	ch <- r.snapshotLocked()
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.watchers, id)
		r.mu.Unlock()
	}()

	return ch
}

// notifyLocked pushes the current snapshot to every watcher, keeping only
// the latest value for watchers that are not keeping up, and mirrors it
// onto the bus. It runs under the write lock and publishes synchronously,
// so bus subscribers see snapshots in the order the transitions happened.
// Subscribers must not call back into the registry.
func (r *Registry) notifyLocked() {
	snap := r.snapshotLocked()
	for _, ch := range r.watchers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}

	if r.bus != nil {
		r.bus.PublishSync(event.Event{
			Type: event.ConnectionChanged,
			Data: event.ConnectionChangedData{
				Connected:  snap.Connected,
				Connecting: snap.Connecting,
			},
		})
	}
}
