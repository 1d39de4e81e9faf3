package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/opencode-ai/opencode-remote/internal/logging"
)

// ReconnectMode selects how aggressively dropped connections are retried.
type ReconnectMode string

const (
	ModeAggressive   ReconnectMode = "aggressive"
	ModeNormal       ReconnectMode = "normal"
	ModeConservative ReconnectMode = "conservative"
)

// MaxDelayForMode returns the backoff ceiling for a reconnect mode.
// Unrecognized modes fall back to normal.
func MaxDelayForMode(mode ReconnectMode) time.Duration {
	switch mode {
	case ModeAggressive:
		return 5 * time.Second
	case ModeConservative:
		return 60 * time.Second
	default:
		return 30 * time.Second
	}
}

// Settings supplies the user preferences the supervisor consults while
// running. ReconnectMaxDelay is called fresh on every backoff computation
// so a mode change takes effect mid-backoff.
type Settings interface {
	ReconnectMaxDelay() time.Duration
	NotificationsEnabled() bool
}

// settingsFile is the on-disk shape of settings.jsonc.
type settingsFile struct {
	ReconnectMode ReconnectMode `json:"reconnectMode,omitempty"`
	Notifications *bool         `json:"notifications,omitempty"`
}

// FileSettings is a Settings implementation backed by a watched JSONC file.
type FileSettings struct {
	path string

	mu      sync.RWMutex
	current settingsFile
}

// NewFileSettings loads settings from path. A missing file yields defaults
// (normal mode, notifications on). An OPENCODE_REMOTE_SETTINGS environment
// variable overrides the path.
func NewFileSettings(path string) *FileSettings {
	if env := os.Getenv("OPENCODE_REMOTE_SETTINGS"); env != "" {
		path = env
	}
	fs := &FileSettings{path: path}
	fs.reload()
	return fs
}

// reload re-parses the settings file into the in-memory snapshot.
func (f *FileSettings) reload() {
	data, err := readJSONC(f.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn().Err(err).Str("path", f.path).Msg("settings read failed")
		}
		return
	}
	var parsed settingsFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		logging.Warn().Err(err).Str("path", f.path).Msg("settings parse failed")
		return
	}
	f.mu.Lock()
	f.current = parsed
	f.mu.Unlock()
}

// Watch reloads settings whenever the file changes, until ctx is done.
func (f *FileSettings) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the parent directory so create/rename of the file is seen.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name == f.path && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					f.reload()
					logging.Debug().Str("path", f.path).Msg("settings reloaded")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn().Err(err).Msg("settings watcher error")
			}
		}
	}()
	return nil
}

// ReconnectMaxDelay implements Settings.
func (f *FileSettings) ReconnectMaxDelay() time.Duration {
	if env := os.Getenv("OPENCODE_REMOTE_RECONNECT_MODE"); env != "" {
		return MaxDelayForMode(ReconnectMode(strings.ToLower(env)))
	}
	f.mu.RLock()
	mode := f.current.ReconnectMode
	f.mu.RUnlock()
	return MaxDelayForMode(mode)
}

// NotificationsEnabled implements Settings.
func (f *FileSettings) NotificationsEnabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current.Notifications == nil || *f.current.Notifications
}

// StaticSettings is a fixed Settings value, used as a default and in tests.
type StaticSettings struct {
	MaxDelay      time.Duration
	Notifications bool
}

// ReconnectMaxDelay implements Settings.
func (s StaticSettings) ReconnectMaxDelay() time.Duration {
	if s.MaxDelay <= 0 {
		return MaxDelayForMode(ModeNormal)
	}
	return s.MaxDelay
}

// NotificationsEnabled implements Settings.
func (s StaticSettings) NotificationsEnabled() bool {
	return s.Notifications
}
