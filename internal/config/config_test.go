package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
	"butterfly/internal/layout"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %s, want :8080", cfg.Server.Addr)
	}
	if cfg.Layout.Initial != layout.DefaultParams() {
		t.Errorf("Layout.Initial = %+v, want defaults", cfg.Layout.Initial)
	}
	if cfg.Layout.Expanded != layout.ExpandedParams() {
		t.Errorf("Layout.Expanded = %+v, want expanded defaults", cfg.Layout.Expanded)
	}
	if cfg.Layout.RestageDelay.Duration() != time.Second {
		t.Errorf("Layout.RestageDelay = %s, want 1s", cfg.Layout.RestageDelay.Duration())
	}
	if cfg.Viewport.WidthFactor != 1.08 || cfg.Viewport.HeightFactor != 1.12 {
		t.Errorf("Viewport factors = %v/%v, want 1.08/1.12", cfg.Viewport.WidthFactor, cfg.Viewport.HeightFactor)
	}
	if cfg.Render.ClearOnHoverOut {
		t.Error("Render.ClearOnHoverOut should default to false")
	}
	if cfg.Render.Drift.DX != 0 || cfg.Render.Drift.DY != 0 {
		t.Errorf("Render.Drift = %+v, want zero", cfg.Render.Drift)
	}
	if cfg.Direction() != domain.DirectionFuture {
		t.Errorf("Direction() = %s, want f", cfg.Direction())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"shrinking viewport", func(c *Config) { c.Viewport.WidthFactor = 0.5 }},
		{"bad direction", func(c *Config) { c.Expansion.Direction = "sideways" }},
		{"friction above one", func(c *Config) { c.Layout.Expanded.Friction = 1.5 }},
		{"negative rate", func(c *Config) { c.Remote.Rate = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  addr: ":9090"
layout:
  expanded:
    charge: -2500
  tick_interval: 50ms
render:
  clear_on_hover_out: true
  drift:
    dx: 22
    dy: 33
expansion:
  direction: past
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %s, want :9090", cfg.Server.Addr)
	}
	if cfg.Layout.Expanded.Charge != -2500 {
		t.Errorf("Layout.Expanded.Charge = %v, want -2500", cfg.Layout.Expanded.Charge)
	}
	if cfg.Layout.Expanded.Friction != layout.DefaultParams().Friction {
		t.Errorf("Layout.Expanded.Friction = %v, want filled default", cfg.Layout.Expanded.Friction)
	}
	if cfg.Layout.TickInterval.Duration() != 50*time.Millisecond {
		t.Errorf("Layout.TickInterval = %s, want 50ms", cfg.Layout.TickInterval.Duration())
	}
	if !cfg.Render.ClearOnHoverOut {
		t.Error("Render.ClearOnHoverOut should be true")
	}
	if cfg.Render.Drift.DX != 22 || cfg.Render.Drift.DY != 33 {
		t.Errorf("Render.Drift = %+v, want {22 33}", cfg.Render.Drift)
	}
	if cfg.Direction() != domain.DirectionPast {
		t.Errorf("Direction() = %s, want p", cfg.Direction())
	}
	if cfg.Remote.BaseURL == "" {
		t.Error("Remote.BaseURL should be defaulted")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("viewport:\n  height_factor: 0.9\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadFromPath(path); err == nil {
		t.Error("LoadFromPath() should reject a shrinking viewport")
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Remote.BaseURL = "http://related.example/api"
	cfg.Catalog.Watch = true

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, path, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if path != configPath {
		t.Errorf("path = %s, want %s", path, configPath)
	}
	if loaded.Remote.BaseURL != "http://related.example/api" {
		t.Errorf("Remote.BaseURL = %s", loaded.Remote.BaseURL)
	}
	if !loaded.Catalog.Watch {
		t.Error("Catalog.Watch should survive a round trip")
	}
	if loaded.Remote.Timeout != cfg.Remote.Timeout {
		t.Errorf("Remote.Timeout = %s, want %s", loaded.Remote.Timeout.Duration(), cfg.Remote.Timeout.Duration())
	}
}

func TestFindConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	t.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	found, err := FindConfigPath("")
	if err != nil {
		t.Fatalf("FindConfigPath() error: %v", err)
	}
	if filepath.Base(found) != ConfigFileName {
		t.Errorf("FindConfigPath() = %q, want the working directory file", found)
	}

	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")

	// Environment path doesn't exist, should fall back
	found, err = FindConfigPath("")
	if err != nil || found == "" {
		t.Errorf("FindConfigPath() = %q, %v; should fall back when env path doesn't exist", found, err)
	}
}

func TestFindConfigPathExplicit(t *testing.T) {
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, "env.yaml")
	flagPath := filepath.Join(tmpDir, "flag.yaml")
	for _, p := range []string{envPath, flagPath} {
		if err := DefaultConfig().Save(p); err != nil {
			t.Fatalf("Save(%s) error: %v", p, err)
		}
	}
	t.Setenv(EnvConfigPath, envPath)

	found, err := FindConfigPath(flagPath)
	if err != nil {
		t.Fatalf("FindConfigPath() error: %v", err)
	}
	if found != flagPath {
		t.Errorf("FindConfigPath() = %q, want flag path %q", found, flagPath)
	}

	found, err = FindConfigPath("")
	if err != nil {
		t.Fatalf("FindConfigPath() error: %v", err)
	}
	if found != envPath {
		t.Errorf("FindConfigPath() = %q, want env path %q", found, envPath)
	}

	missing := filepath.Join(tmpDir, "missing.yaml")
	if _, err := FindConfigPath(missing); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("FindConfigPath(missing) error = %v, want ErrConfigNotFound", err)
	}
	if _, _, err := Load(missing); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrConfigNotFound", err)
	}
}

func TestSearchPathsOrder(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/env.yaml")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	got := SearchPaths()
	want := []string{
		"/tmp/env.yaml",
		ConfigFileName,
		filepath.Join("/xdg", ConfigDirName, "config.yaml"),
		filepath.Join("/etc", ConfigDirName, "config.yaml"),
	}
	if len(got) != len(want) {
		t.Fatalf("SearchPaths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SearchPaths()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)

	if d.Duration() != 5*time.Minute {
		t.Errorf("Duration() = %s, want 5m", d.Duration())
	}

	marshaled, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error: %v", err)
	}
	if marshaled != "5m0s" {
		t.Errorf("MarshalYAML() = %v, want 5m0s", marshaled)
	}
}
