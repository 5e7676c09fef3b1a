package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rdb.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
host: 0.0.0.0
port: 9100
window: 20
skew: 0
redirect_stdio: true
interval: 250ms
`)
	cfg := Default()
	cfg.Skew = 4
	if err := LoadFile(path, cfg); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Host != "0.0.0.0" || cfg.Port != 9100 || cfg.Window != 20 {
		t.Errorf("got %+v", cfg)
	}
	if cfg.Skew != 0 {
		t.Errorf("explicit zero skew should apply, got %d", cfg.Skew)
	}
	if !cfg.RedirectStdio {
		t.Error("RedirectStdio should be true")
	}
	if cfg.Interval != 250*time.Millisecond {
		t.Errorf("Interval = %v", cfg.Interval)
	}
	if cfg.Every != DefaultEvery {
		t.Errorf("absent key changed Every to %d", cfg.Every)
	}
}

func TestLoadFile_Empty(t *testing.T) {
	cfg := Default()
	if err := LoadFile(writeFile(t, ""), cfg); err != nil {
		t.Fatalf("empty file: %v", err)
	}
	if *cfg != *Default() {
		t.Errorf("empty file changed config: %+v", cfg)
	}
}

func TestLoadFile_UnknownKey(t *testing.T) {
	err := LoadFile(writeFile(t, "prot: 80\n"), Default())
	if err == nil || !strings.Contains(err.Error(), "prot") {
		t.Errorf("expected unknown-key error, got %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), Default()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "port: 9100\nwindow: 20\n")
	t.Setenv("RDB_PORT", "9200")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9200 {
		t.Errorf("env should beat file: Port = %d", cfg.Port)
	}
	if cfg.Window != 20 {
		t.Errorf("file should beat defaults: Window = %d", cfg.Window)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q", cfg.ConfigFile)
	}
}

func TestLoad_EnvConfigPath(t *testing.T) {
	path := writeFile(t, "window: 7\n")
	t.Setenv("RDB_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Window != 7 {
		t.Errorf("Window = %d, want 7", cfg.Window)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("RDB_PORT_WINDOW", "0")
	if _, err := Load(""); err == nil {
		t.Error("expected validation error")
	}
}
