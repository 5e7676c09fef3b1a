// Package config defines the runtime configuration for rdb: where the
// debugger listens, how far it scans for a free port, and which CLI
// mode the binary runs in.
package config

import (
	"time"

	ncerr "rdb/internal/errors"
)

// Config holds every tuneable for the debugger and the rdb binary.
type Config struct {
	// ── Session ──────────────────────────────────────────────────────
	Host          string
	Port          int // first candidate port
	Window        int // number of candidates scanned
	Skew          int // offset added to Port before scanning
	RedirectStdio bool

	// ── CLI ──────────────────────────────────────────────────────────
	Listen     bool          // -l: run the demo host program
	ZeroIO     bool          // -z: probe the window and exit
	Every      int           // demo: break every N iterations
	Iterations int           // demo: stop after N iterations (0 = forever)
	Interval   time.Duration // demo: pause between iterations
	Timeout    time.Duration // attach/probe dial timeout

	// ── Output ───────────────────────────────────────────────────────
	Verbose    int
	ConfigFile string
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		Window:   DefaultWindow,
		Skew:     DefaultSkew,
		Every:    DefaultEvery,
		Interval: DefaultInterval,
		Timeout:  DefaultConnTimeout,
	}
}

// FirstPort is the first candidate the allocator tries.
func (c *Config) FirstPort() int { return c.Port + c.Skew }

// LastPort is the last candidate the allocator tries.
func (c *Config) LastPort() int { return c.FirstPort() + c.Window - 1 }

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &ncerr.ConfigError{
			Field:   "host",
			Message: "bind host is required",
			Hint:    "use -H 127.0.0.1 to accept local peers only",
		}
	}
	if c.Port < 0 || c.Port > 65535 {
		return &ncerr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "must be in 0-65535",
		}
	}
	if c.Window < 1 {
		return &ncerr.ConfigError{
			Field:   "window",
			Value:   c.Window,
			Message: "at least one candidate port is required",
			Hint:    "the default window is 100 ports",
		}
	}
	if c.Listen && c.ZeroIO {
		return &ncerr.ConfigError{
			Field:   "z",
			Message: "demo mode and probe mode are mutually exclusive",
		}
	}
	if c.Every < 1 {
		return &ncerr.ConfigError{
			Field:   "every",
			Value:   c.Every,
			Message: "must be at least 1",
		}
	}
	if c.Iterations < 0 {
		return &ncerr.ConfigError{
			Field:   "iterations",
			Value:   c.Iterations,
			Message: "must not be negative",
			Hint:    "use 0 to run until interrupted",
		}
	}
	if c.Timeout < 0 {
		return &ncerr.ConfigError{
			Field:   "wait",
			Value:   c.Timeout,
			Message: "must not be negative",
		}
	}
	return nil
}
