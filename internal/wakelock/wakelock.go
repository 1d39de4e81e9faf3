// Package wakelock abstracts the keep-awake resource held while any server
// connection is tracked. On-device hosts plug in a real lock; the default
// implementation only records the transition.
package wakelock

import (
	"sync"

	"github.com/opencode-ai/opencode-remote/internal/logging"
)

// Lock is acquired when the first server is registered and released when
// the last one is removed. Implementations must tolerate repeated calls;
// the supervisor guarantees acquire/release alternation.
type Lock interface {
	Acquire()
	Release()
}

// LogLock is the default Lock: it just logs transitions.
type LogLock struct {
	mu   sync.Mutex
	held bool
}

// Acquire implements Lock.
func (l *LogLock) Acquire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return
	}
	l.held = true
	logging.Debug().Msg("wake lock acquired")
}

// Release implements Lock.
func (l *LogLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return
	}
	l.held = false
	logging.Debug().Msg("wake lock released")
}
