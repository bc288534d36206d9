// internal/config/config.go
package config

import (
	"os"
	"time"
)

// Config collects every environment-tunable knob of the server. Values are
// read once at startup; `godotenv/autoload` in main fills the environment
// from a .env file when present.
type Config struct {
	Host      string // bind host, 0.0.0.0 binds all interfaces
	Port      string
	StaticDir string // browser client assets served at /

	StaleWindow   time.Duration // participant eviction threshold
	SweepInterval time.Duration // liveness sweeper period
}

// Load reads the environment and applies defaults matching the reference
// deployment (15s staleness, 5s sweep).
func Load() Config {
	cfg := Config{
		Host:          envOr("HOST", "0.0.0.0"),
		Port:          envOr("PORT", "3000"),
		StaticDir:     envOr("STATIC_DIR", "client"),
		StaleWindow:   durationOr("STALE_WINDOW", 15*time.Second),
		SweepInterval: durationOr("SWEEP_INTERVAL", 5*time.Second),
	}
	return cfg
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
