// Package stream opens the long-lived event stream of one OpenCode server
// and normalizes its server-sent events into the domain event union.
package stream

import (
	"context"

	opencode "github.com/sst/opencode-sdk-go"

	"github.com/opencode-ai/opencode-remote/internal/api"
	"github.com/opencode-ai/opencode-remote/internal/config"
	"github.com/opencode-ai/opencode-remote/internal/event"
)

// Conn bundles the REST client and stream opener for one server.
type Conn struct {
	*api.Connection
}

// Dial builds a connection handle for the given server config.
func Dial(cfg config.ServerConfig) *Conn {
	return &Conn{Connection: api.NewConnection(cfg)}
}

// OpenStream starts one connection attempt against the server's event
// endpoint. The returned event channel closes when the server ends the
// stream or ctx is cancelled; the error channel delivers at most one
// terminal error and then closes. Each call opens a fresh transport;
// reconnecting is the caller's responsibility.
func (c *Conn) OpenStream(ctx context.Context) (<-chan event.Event, <-chan error) {
	events := make(chan event.Event)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		stream := c.SDK().Event.ListStreaming(ctx, opencode.EventListParams{})
		defer stream.Close()

		for stream.Next() {
			ev, ok := Normalize(stream.Current(), c.ServerID())
			if !ok {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}

		// Cancellation is not an error; the caller asked us to stop.
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			errs <- err
		}
	}()

	return events, errs
}
