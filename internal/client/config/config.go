package config

import "time"

// Config holds runtime settings for the listvault CLI.
//
// Fields:
//   - ServerAddr: base URL of the backend HTTP service.
//   - ProbeInterval: how often the client probes server reachability.
//   - DatabasePath: location of the local SQLite file.
type Config struct {
	ServerAddr    string
	ProbeInterval time.Duration
	DatabasePath  string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "http://127.0.0.1:8080"
	c.ProbeInterval = 3 * time.Second
	c.DatabasePath = "listvault.db"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
