// Package types defines the domain model shared across the remote-control
// core: sessions, projects and providers as reported by OpenCode servers.
package types

// SessionStatus describes what a session is currently doing.
type SessionStatus string

const (
	StatusIdle  SessionStatus = "idle"
	StatusBusy  SessionStatus = "busy"
	StatusRetry SessionStatus = "retry"
)

// Session represents a conversation tracked by one server.
// SDK compatible: matches the OpenAPI Session schema, plus the derived
// Status field maintained by the reducer.
type Session struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"projectID,omitempty"`
	Directory string         `json:"directory"`
	ParentID  *string        `json:"parentID,omitempty"`
	Title     string         `json:"title"`
	Version   string         `json:"version,omitempty"`
	Summary   SessionSummary `json:"summary"`
	Time      SessionTime    `json:"time"`
	Status    SessionStatus  `json:"status"`
}

// IsChild reports whether the session is a sub-agent session spawned by
// another session. Child sessions never produce user-facing notifications.
func (s Session) IsChild() bool {
	return s.ParentID != nil && *s.ParentID != ""
}

// SessionSummary contains statistics about code changes in a session.
type SessionSummary struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Files     int `json:"files"`
}

// SessionTime contains timestamps for a session, in unix milliseconds.
type SessionTime struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}
