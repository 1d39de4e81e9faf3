// Package config provides server list and settings management for the
// remote-control daemon.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths contains the standard paths for opencode-remote data.
type Paths struct {
	Data   string // ~/.local/share/opencode-remote
	Config string // ~/.config/opencode-remote
	State  string // ~/.local/state/opencode-remote
}

// GetPaths returns the standard paths for opencode-remote data.
func GetPaths() *Paths {
	return &Paths{
		Data:   filepath.Join(getEnvOrDefault("XDG_DATA_HOME", defaultDataHome()), "opencode-remote"),
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "opencode-remote"),
		State:  filepath.Join(getEnvOrDefault("XDG_STATE_HOME", defaultStateHome()), "opencode-remote"),
	}
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config, p.State} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// ServersPath returns the path to the server list file.
func (p *Paths) ServersPath() string {
	return filepath.Join(p.Config, "servers.jsonc")
}

// SettingsPath returns the path to the settings file.
func (p *Paths) SettingsPath() string {
	return filepath.Join(p.Config, "settings.jsonc")
}

// LogDir returns the directory for daemon log files.
func (p *Paths) LogDir() string {
	return filepath.Join(p.State, "logs")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultDataHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share")
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

func defaultStateHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "state")
}
