package config

// Config is the root configuration for the agent.
type Config struct {
	General General  `toml:"general"`
	Sources []Source `toml:"sources"`
	History History  `toml:"history"`
	API     API      `toml:"api"`
}

// General holds agent-wide settings.
type General struct {
	// PollInterval is how often the coordinator runs a poll cycle.
	PollInterval Duration `toml:"poll_interval"`
	// FetchTimeout bounds each individual source fetch within a cycle.
	FetchTimeout Duration `toml:"fetch_timeout"`
	// ShutdownGrace is how long to wait for in-flight work on shutdown.
	ShutdownGrace Duration `toml:"shutdown_grace"`
	LogLevel      string   `toml:"log_level"`
	// StateFile is where the last readings snapshot is persisted.
	StateFile string `toml:"state_file"`
}

// Source declares one monitored source.
//
//	[[sources]]
//	type = "disk_use"
//	arg = "/"
//
// Parameterized types (disk_use, network_io, network_address) require an
// arg; the process type takes its watch list in args; all other types
// take neither.
type Source struct {
	Type string   `toml:"type"`
	Arg  string   `toml:"arg"`
	Args []string `toml:"args"`
	// Interval optionally slows this source below the global poll
	// interval. Zero means poll every cycle.
	Interval Duration `toml:"interval"`
}

// History configures the SQLite publication store.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	// Retention is how long published readings are kept before pruning.
	Retention Duration `toml:"retention"`
}

// API configures the read-only HTTP API.
type API struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}
