// Package notify delivers user-facing alerts derived from stream events.
// Presentation is the consumer's concern; the daemon publishes notification
// events on the bus so attached UIs can render them, and logs them locally.
package notify

import (
	"github.com/opencode-ai/opencode-remote/internal/event"
	"github.com/opencode-ai/opencode-remote/internal/logging"
)

// Notifier receives notification-worthy occurrences. Implementations must
// not block; they are called on the stream-consuming goroutine.
type Notifier interface {
	Notify(n event.NotificationData)
}

// Func adapts a function to the Notifier interface.
type Func func(n event.NotificationData)

// Notify implements Notifier.
func (f Func) Notify(n event.NotificationData) {
	f(n)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(n event.NotificationData) {
	logging.Info().
		Str("serverID", n.ServerID).
		Str("sessionID", n.SessionID).
		Str("kind", n.Kind).
		Str("title", n.Title).
		Msg("notification")
}

// BusNotifier publishes notifications on the event bus so control API
// subscribers receive them.
type BusNotifier struct {
	Bus *event.Bus
}

// Notify implements Notifier.
func (b BusNotifier) Notify(n event.NotificationData) {
	b.Bus.Publish(event.Event{Type: event.Notification, ServerID: n.ServerID, Data: n})
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(n event.NotificationData) {
	for _, notifier := range m {
		notifier.Notify(n)
	}
}
