// Package config provides configuration loading for the gwt terminal runtime.
//
// Configuration is loaded from:
// 1. <user_data>/config.json (file)
// 2. Environment variables (override file values)
//
// Environment variables:
//   - GWT_DATA_DIR: overrides the user-data root
//   - GWT_IPC_SOCKET_NAME: overrides the IPC socket file name
//   - GWT_STATUS_POLL_MS: overrides the status-watcher tick interval
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all configuration for the terminal runtime.
type Config struct {
	// DataDir is the user-data root. Scrollback logs live at
	// DataDir/terminals/<pane_id>.log, the IPC socket at
	// DataDir/<IPCSocketName>.
	DataDir string `json:"data_dir"`

	// ScrollbackMaxLines is an advisory soft cap surfaced to UI layers; the
	// log itself is unbounded.
	ScrollbackMaxLines int `json:"scrollback_max_lines"`

	// StatusPollIntervalMS is the status-watcher tick interval.
	StatusPollIntervalMS int `json:"status_poll_interval_ms"`

	// IPCSocketName is the file name (not path) of the IPC broker socket.
	IPCSocketName string `json:"ipc_socket_name"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		DataDir:              filepath.Join(homeDir, ".gwt"),
		ScrollbackMaxLines:   1_000_000,
		StatusPollIntervalMS: 250,
		IPCSocketName:        "gwt.sock",
	}
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".gwt", "config.json"), nil
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file: %w", err)
		}
	}

	if dir := os.Getenv("GWT_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if name := os.Getenv("GWT_IPC_SOCKET_NAME"); name != "" {
		cfg.IPCSocketName = name
	}
	if ms := os.Getenv("GWT_STATUS_POLL_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 {
			cfg.StatusPollIntervalMS = v
		}
	}

	return cfg, nil
}

// Save writes configuration to the config file.
func (c *Config) Save() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}

	return nil
}

// SocketPath returns the absolute path to the IPC broker socket. An empty
// IPCSocketName falls back to the default "gwt.sock".
func (c *Config) SocketPath() string {
	name := c.IPCSocketName
	if name == "" {
		name = "gwt.sock"
	}
	return filepath.Join(c.DataDir, name)
}

// TerminalsDir returns the directory holding per-pane scrollback logs.
func (c *Config) TerminalsDir() string {
	return filepath.Join(c.DataDir, "terminals")
}
