package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ServerConfig identifies one OpenCode backend the daemon can connect to.
// It is immutable from the core's perspective; edits go through the Store.
type ServerConfig struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	Name        string `json:"name,omitempty"`
	AutoConnect bool   `json:"autoConnect,omitempty"`
}

// DisplayName returns the user-facing name for the server.
func (s ServerConfig) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

// ErrServerNotFound is returned when no server matches an id or name.
var ErrServerNotFound = errors.New("server not found")

// serversFile is the on-disk shape of the server list.
type serversFile struct {
	Servers []ServerConfig `json:"servers"`
}

// Store manages the persisted server list.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the given file. An OPENCODE_REMOTE_SERVERS
// environment variable overrides the path.
func NewStore(path string) *Store {
	if env := os.Getenv("OPENCODE_REMOTE_SERVERS"); env != "" {
		path = env
	}
	return &Store{path: path}
}

// List returns all configured servers. A missing file yields an empty list.
func (s *Store) List() ([]ServerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]ServerConfig, error) {
	data, err := readJSONC(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var file serversFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return file.Servers, nil
}

func (s *Store) save(servers []ServerConfig) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(serversFile{Servers: servers}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Add registers a new server, minting a stable id, and returns it.
func (s *Store) Add(cfg ServerConfig) (ServerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	servers, err := s.load()
	if err != nil {
		return ServerConfig{}, err
	}
	if cfg.URL == "" {
		return ServerConfig{}, errors.New("server url is required")
	}
	if cfg.ID == "" {
		cfg.ID = generateServerID()
	}
	for _, existing := range servers {
		if existing.ID == cfg.ID {
			return ServerConfig{}, fmt.Errorf("server %s already exists", cfg.ID)
		}
	}
	servers = append(servers, cfg)
	if err := s.save(servers); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// Remove deletes a server by id.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	servers, err := s.load()
	if err != nil {
		return err
	}
	for i, existing := range servers {
		if existing.ID == id {
			return s.save(append(servers[:i], servers[i+1:]...))
		}
	}
	return fmt.Errorf("%w: %s", ErrServerNotFound, id)
}

// Resolve finds a server by id, name or URL.
func (s *Store) Resolve(key string) (ServerConfig, error) {
	servers, err := s.List()
	if err != nil {
		return ServerConfig{}, err
	}
	for _, cfg := range servers {
		if cfg.ID == key || cfg.URL == key {
			return cfg, nil
		}
		if cfg.Name != "" && strings.EqualFold(cfg.Name, key) {
			return cfg, nil
		}
	}
	return ServerConfig{}, fmt.Errorf("%w: %s", ErrServerNotFound, key)
}

// generateServerID mints a ULID-based server id.
func generateServerID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return "srv_" + strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String())
}
