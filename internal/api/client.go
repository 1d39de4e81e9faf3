// Package api wraps the OpenCode SDK behind the small typed surface the
// supervisor needs: a health probe and the preload listing calls. All SDK
// types stay inside this package and internal/stream; the rest of the tree
// works on pkg/types.
package api

import (
	"context"
	"encoding/base64"
	"fmt"

	opencode "github.com/sst/opencode-sdk-go"
	"github.com/sst/opencode-sdk-go/option"
	"github.com/tidwall/gjson"

	"github.com/opencode-ai/opencode-remote/internal/config"
	"github.com/opencode-ai/opencode-remote/pkg/types"
)

// Client is the REST surface the supervisor consumes during preload and
// the pre-connect health check. Failures surface as plain errors; the
// supervisor decides what is recoverable.
type Client interface {
	Health(ctx context.Context) error
	ListProjects(ctx context.Context) ([]types.Project, error)
	ListSessions(ctx context.Context, directory string) ([]types.Session, error)
	ListProviders(ctx context.Context) ([]types.Provider, error)
}

// Connection is a reusable handle bound to one server's base URL and
// credentials. It implements Client over the OpenCode SDK.
type Connection struct {
	serverID string
	sdk      *opencode.Client
}

// NewConnection builds a handle for the given server. Credentials are sent
// as HTTP basic auth when a username is configured.
func NewConnection(cfg config.ServerConfig) *Connection {
	opts := []option.RequestOption{option.WithBaseURL(cfg.URL)}
	if cfg.Username != "" {
		token := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		opts = append(opts, option.WithHeader("authorization", "Basic "+token))
	}
	return &Connection{serverID: cfg.ID, sdk: opencode.NewClient(opts...)}
}

// ServerID returns the id of the server this handle is bound to.
func (c *Connection) ServerID() string {
	return c.serverID
}

// SDK exposes the underlying SDK client for the stream opener.
func (c *Connection) SDK() *opencode.Client {
	return c.sdk
}

// Health probes the server with a session list, the same cheap request the
// pack's CLI uses as its reachability check.
func (c *Connection) Health(ctx context.Context) error {
	if _, err := c.sdk.Session.List(ctx, opencode.SessionListParams{}); err != nil {
		return fmt.Errorf("server not responding: %w", err)
	}
	return nil
}

// ListProjects enumerates the server's projects.
func (c *Connection) ListProjects(ctx context.Context) ([]types.Project, error) {
	res, err := c.sdk.Project.List(ctx, opencode.ProjectListParams{})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	projects := make([]types.Project, 0, len(*res))
	for _, p := range *res {
		projects = append(projects, types.Project{
			ID:       p.ID,
			Worktree: p.Worktree,
			VCS:      string(p.Vcs),
			Time: types.ProjectTime{
				Created: int64(p.Time.Created),
			},
		})
	}
	return projects, nil
}

// ListSessions lists the sessions of one project directory. An empty
// directory lists the server's default project.
func (c *Connection) ListSessions(ctx context.Context, directory string) ([]types.Session, error) {
	params := opencode.SessionListParams{}
	if directory != "" {
		params.Directory = opencode.F(directory)
	}
	res, err := c.sdk.Session.List(ctx, params)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	sessions := make([]types.Session, 0, len(*res))
	for _, s := range *res {
		sessions = append(sessions, ConvertSession(s))
	}
	return sessions, nil
}

// ListProviders returns the model providers configured on the server.
func (c *Connection) ListProviders(ctx context.Context) ([]types.Provider, error) {
	res, err := c.sdk.App.Providers(ctx, opencode.AppProvidersParams{})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	providers := make([]types.Provider, 0, len(res.Providers))
	for _, p := range res.Providers {
		provider := types.Provider{ID: p.ID, Name: p.Name}
		for modelID := range p.Models {
			provider.Models = append(provider.Models, modelID)
		}
		providers = append(providers, provider)
	}
	return providers, nil
}

// ConvertSession maps an SDK session onto the domain model. Change-summary
// counts are read from the raw payload because older servers omit them.
func ConvertSession(s opencode.Session) types.Session {
	session := types.Session{
		ID:        s.ID,
		ProjectID: s.ProjectID,
		Directory: s.Directory,
		Title:     s.Title,
		Version:   s.Version,
		Time: types.SessionTime{
			Created: int64(s.Time.Created),
			Updated: int64(s.Time.Updated),
		},
		Status: types.StatusIdle,
	}
	if s.ParentID != "" {
		parent := s.ParentID
		session.ParentID = &parent
	}

	raw := s.JSON.RawJSON()
	if summary := gjson.Get(raw, "summary"); summary.Exists() {
		session.Summary = types.SessionSummary{
			Additions: int(summary.Get("additions").Int()),
			Deletions: int(summary.Get("deletions").Int()),
			Files:     int(summary.Get("files").Int()),
		}
	}
	return session
}
