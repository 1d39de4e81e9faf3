package types

// Provider describes a model provider configured on a server.
type Provider struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Models []string `json:"models,omitempty"`
}

// Permission describes a pending permission request raised by a session.
type Permission struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionID"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Pattern   []string       `json:"pattern,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Question is a single question posed by an agent to the user.
type Question struct {
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}
