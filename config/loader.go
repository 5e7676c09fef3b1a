package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. YAML config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the RDB_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only set env
// vars override the existing value; "0" and negative skews are honoured.
// Unparseable values are ignored.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("RDB_HOST"); v != "" {
		cfg.Host = v
	}
	if v, ok := envInt("RDB_PORT"); ok {
		cfg.Port = v
	}
	if v, ok := envInt("RDB_PORT_WINDOW"); ok {
		cfg.Window = v
	}
	if v, ok := envInt("RDB_PORT_SKEW"); ok {
		cfg.Skew = v
	}
	if v, ok := envBool("RDB_REDIRECT_STDIO"); ok {
		cfg.RedirectStdio = v
	}

	// Demo / attach
	if v, ok := envInt("RDB_EVERY"); ok {
		cfg.Every = v
	}
	if v, ok := envInt("RDB_ITERATIONS"); ok {
		cfg.Iterations = v
	}
	if v, ok := envInt("RDB_TIMEOUT"); ok {
		cfg.Timeout = secondsDuration(v)
	}

	// Output
	if v, ok := envInt("RDB_VERBOSE"); ok && v > 0 {
		cfg.Verbose = v
	}
	if v := os.Getenv("RDB_CONFIG"); v != "" {
		cfg.ConfigFile = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false, false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	}
	return false, false
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
