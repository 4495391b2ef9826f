package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads configuration from the standard config path.
// Search order:
//  1. $XDG_CONFIG_HOME/sysmon-agent/config.toml
//  2. ~/.config/sysmon-agent/config.toml
//
// If no file exists, returns DefaultConfig().
func Load() (*Config, error) {
	paths := configSearchPaths()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	return DefaultConfig(), nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader reads configuration from an io.Reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the default configuration with sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(xdgDataHome(home), "sysmon-agent")

	return &Config{
		General: General{
			PollInterval:  Duration{15 * time.Second},
			FetchTimeout:  Duration{10 * time.Second},
			ShutdownGrace: Duration{5 * time.Second},
			LogLevel:      "info",
			StateFile:     filepath.Join(dataDir, "state.json"),
		},
		Sources: []Source{
			{Type: "disk_use", Arg: "/"},
			{Type: "memory"},
			{Type: "swap"},
			{Type: "processor_use"},
			{Type: "load"},
		},
		History: History{
			Enabled:   true,
			Path:      filepath.Join(dataDir, "history.db"),
			Retention: Duration{7 * 24 * time.Hour},
		},
		API: API{
			Enabled:    true,
			ListenAddr: "127.0.0.1:8797",
		},
	}
}

// Validate checks cross-field constraints the TOML decoder cannot.
func (c *Config) Validate() error {
	if c.General.PollInterval.Duration <= 0 {
		return fmt.Errorf("general.poll_interval must be positive")
	}
	if c.General.FetchTimeout.Duration <= 0 {
		return fmt.Errorf("general.fetch_timeout must be positive")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	for i, s := range c.Sources {
		if s.Type == "" {
			return fmt.Errorf("sources[%d]: type is required", i)
		}
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	if c.API.Enabled && c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr is required when the API is enabled")
	}
	return nil
}

// applyEnvOverrides checks environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SYSMON_LOG_LEVEL"); v != "" {
		cfg.General.LogLevel = v
	}
	if v := os.Getenv("SYSMON_API_ADDR"); v != "" {
		cfg.API.ListenAddr = v
	}
	if v := os.Getenv("SYSMON_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("SYSMON_STATE_FILE"); v != "" {
		cfg.General.StateFile = v
	}
}

// configSearchPaths returns the ordered list of config file paths to try.
func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	var paths []string

	xdg := xdgConfigHome(home)
	paths = append(paths, filepath.Join(xdg, "sysmon-agent", "config.toml"))

	// If XDG_CONFIG_HOME was explicitly set, also try the fallback default.
	defaultXDG := filepath.Join(home, ".config")
	if xdg != defaultXDG {
		paths = append(paths, filepath.Join(defaultXDG, "sysmon-agent", "config.toml"))
	}

	return paths
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

// xdgDataHome returns XDG_DATA_HOME or ~/.local/share as fallback.
func xdgDataHome(home string) string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".local", "share")
}
