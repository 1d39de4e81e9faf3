package event

import (
	"github.com/opencode-ai/opencode-remote/pkg/types"
)

// Type represents the type of event.
type Type string

// Event types normalized from server streams, plus the locally produced
// types the core publishes for its observers.
const (
	// Stream-originated events.
	ServerConnected     Type = "server.connected"
	SessionCreated      Type = "session.created"
	SessionUpdated      Type = "session.updated"
	SessionDeleted      Type = "session.deleted"
	SessionIdle         Type = "session.idle"
	SessionError        Type = "session.error"
	PermissionRequested Type = "permission.requested"
	QuestionAsked       Type = "question.asked"
	MessageUpdated      Type = "message.updated"
	MessagePartUpdated  Type = "message.part.updated"
	MessageRemoved      Type = "message.removed"
	FileEdited          Type = "file.edited"
	Unknown             Type = "unknown"

	// Locally produced events.
	ConnectionChanged Type = "connection.changed"
	SessionsChanged   Type = "sessions.changed"
	Notification      Type = "notification"
)

// Event is one occurrence flowing through the system. ServerID identifies
// the server whose stream produced it; locally produced events leave it
// empty unless they concern a single server.
type Event struct {
	Type     Type   `json:"type"`
	ServerID string `json:"serverID,omitempty"`
	Data     any    `json:"properties,omitempty"`
}

// SessionCreatedData carries a newly created session.
type SessionCreatedData struct {
	Info *types.Session `json:"info"`
}

// SessionUpdatedData carries the updated session snapshot.
type SessionUpdatedData struct {
	Info *types.Session `json:"info"`
}

// SessionDeletedData carries the deleted session.
type SessionDeletedData struct {
	Info *types.Session `json:"info"`
}

// SessionIdleData signals that a session's agent finished responding.
type SessionIdleData struct {
	SessionID string `json:"sessionID"`
}

// SessionErrorData carries a session-level error. SessionID may be empty
// when the server reports an error not tied to a session.
type SessionErrorData struct {
	SessionID string `json:"sessionID,omitempty"`
	Error     string `json:"error"`
}

// PermissionRequestedData carries a pending permission request.
type PermissionRequestedData struct {
	Permission types.Permission `json:"permission"`
}

// QuestionAskedData carries questions an agent posed to the user.
type QuestionAskedData struct {
	SessionID string           `json:"sessionID"`
	Questions []types.Question `json:"questions"`
}

// MessageUpdatedData signals message creation or mutation in a session.
type MessageUpdatedData struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	Role      string `json:"role,omitempty"`
}

// MessagePartUpdatedData signals streaming output inside a message.
type MessagePartUpdatedData struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID,omitempty"`
	PartID    string `json:"partID,omitempty"`
	PartType  string `json:"partType,omitempty"`
}

// MessageRemovedData signals message removal.
type MessageRemovedData struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
}

// FileEditedData signals a file edit performed by an agent.
type FileEditedData struct {
	File string `json:"file"`
}

// UnknownData preserves stream events the normalizer does not specifically
// handle. They are forwarded for generic merge and never notified.
type UnknownData struct {
	RawType   string `json:"rawType"`
	SessionID string `json:"sessionID,omitempty"`
	Raw       string `json:"raw,omitempty"`
}

// ConnectionChangedData mirrors the connection registry after a transition.
type ConnectionChangedData struct {
	Connected  []string `json:"connected"`
	Connecting []string `json:"connecting"`
}

// SessionsChangedData signals that a server's session registry changed.
type SessionsChangedData struct {
	ServerID string `json:"serverID"`
}

// NotificationData is a user-facing alert derived from a stream event.
type NotificationData struct {
	ServerID  string `json:"serverID"`
	SessionID string `json:"sessionID,omitempty"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
}

// SessionID returns the session an event concerns, or "" when it is not
// tied to a single session.
func (e Event) SessionID() string {
	switch data := e.Data.(type) {
	case SessionCreatedData:
		if data.Info != nil {
			return data.Info.ID
		}
	case SessionUpdatedData:
		if data.Info != nil {
			return data.Info.ID
		}
	case SessionDeletedData:
		if data.Info != nil {
			return data.Info.ID
		}
	case SessionIdleData:
		return data.SessionID
	case SessionErrorData:
		return data.SessionID
	case PermissionRequestedData:
		return data.Permission.SessionID
	case QuestionAskedData:
		return data.SessionID
	case MessageUpdatedData:
		return data.SessionID
	case MessagePartUpdatedData:
		return data.SessionID
	case MessageRemovedData:
		return data.SessionID
	case UnknownData:
		return data.SessionID
	case NotificationData:
		return data.SessionID
	}
	return ""
}
