package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML layout.  Pointer fields distinguish an
// absent key from an explicit zero.
type fileConfig struct {
	Host          *string        `yaml:"host"`
	Port          *int           `yaml:"port"`
	Window        *int           `yaml:"window"`
	Skew          *int           `yaml:"skew"`
	RedirectStdio *bool          `yaml:"redirect_stdio"`
	Verbose       *int           `yaml:"verbose"`
	Every         *int           `yaml:"every"`
	Iterations    *int           `yaml:"iterations"`
	Interval      *time.Duration `yaml:"interval"`
	Timeout       *time.Duration `yaml:"timeout"`
}

// LoadFile overlays the YAML file at path onto cfg.  Unknown keys are
// rejected so typos do not silently fall back to defaults.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return decode(data, path, cfg)
}

func decode(data []byte, name string, cfg *Config) error {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", name, err)
	}

	set(&cfg.Host, fc.Host)
	set(&cfg.Port, fc.Port)
	set(&cfg.Window, fc.Window)
	set(&cfg.Skew, fc.Skew)
	set(&cfg.RedirectStdio, fc.RedirectStdio)
	set(&cfg.Verbose, fc.Verbose)
	set(&cfg.Every, fc.Every)
	set(&cfg.Iterations, fc.Iterations)
	set(&cfg.Interval, fc.Interval)
	set(&cfg.Timeout, fc.Timeout)
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Load builds a Config from defaults, the YAML file named by path (or
// $RDB_CONFIG when path is empty), and the environment, in that order.
// The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("RDB_CONFIG")
	}
	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}
	LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
