// Package event defines the domain events consumed from OpenCode servers
// and an in-process pub/sub bus, built on watermill, used to fan them out
// to observers such as the control API's SSE subscribers.
//
// Every event carries the id of the server whose stream produced it. The
// reducer and notification logic rely on that tag to keep per-server state
// strictly partitioned.
package event
