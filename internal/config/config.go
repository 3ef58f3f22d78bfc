// Package config provides configuration management for butterfly.
//
// Config file locations (priority order):
//  1. --config (must exist)
//  2. $BUTTERFLY_CONFIG
//  3. ./butterfly.yaml
//  4. $XDG_CONFIG_HOME/butterfly/config.yaml, or ~/.config/butterfly/config.yaml
//  5. /etc/butterfly/config.yaml
//
// Missing values are filled from DefaultConfig; command-line flags override
// file values after loading.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
	"butterfly/internal/layout"
	"butterfly/internal/viewport"
)

// Load resolves the config file with FindConfigPath and loads it. Without
// an explicit path and with no file found it returns defaults.
func Load(explicit string) (*Config, string, error) {
	path, err := FindConfigPath(explicit)
	if err != nil {
		return nil, explicit, err
	}
	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, errors.Wrap(err, "read config")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, errors.Wrap(err, "parse config")
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return errors.Wrap(err, "create config dir")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Server.MaxSessions == 0 {
		c.Server.MaxSessions = 256
	}
	if c.Server.SessionIdle == 0 {
		c.Server.SessionIdle = Duration(30 * time.Minute)
	}

	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = "http://localhost:8080/catalog"
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = Duration(15 * time.Second)
	}
	if c.Remote.Burst == 0 {
		c.Remote.Burst = 5
	}
	b := &c.Remote.Breaker
	if b.MaxRequests == 0 {
		b.MaxRequests = 3
	}
	if b.Interval == 0 {
		b.Interval = Duration(30 * time.Second)
	}
	if b.Timeout == 0 {
		b.Timeout = Duration(20 * time.Second)
	}
	if b.FailureThreshold == 0 {
		b.FailureThreshold = 0.6
	}
	if b.MinRequests == 0 {
		b.MinRequests = 5
	}

	if c.Layout.Initial == (layout.Params{}) {
		c.Layout.Initial = layout.DefaultParams()
	}
	if c.Layout.Expanded == (layout.Params{}) {
		c.Layout.Expanded = layout.ExpandedParams()
	}
	c.Layout.Initial = c.Layout.Initial.WithDefaults()
	c.Layout.Expanded = c.Layout.Expanded.WithDefaults()
	if c.Layout.TickInterval == 0 {
		c.Layout.TickInterval = Duration(30 * time.Millisecond)
	}
	if c.Layout.RestageDelay == 0 {
		c.Layout.RestageDelay = Duration(time.Second)
	}

	if c.Viewport.Width == 0 {
		c.Viewport.Width = 1280
	}
	if c.Viewport.Height == 0 {
		c.Viewport.Height = 800
	}
	if c.Viewport.WidthFactor == 0 {
		c.Viewport.WidthFactor = viewport.DefaultWidthFactor
	}
	if c.Viewport.HeightFactor == 0 {
		c.Viewport.HeightFactor = viewport.DefaultHeightFactor
	}

	if c.Expansion.Direction == "" {
		c.Expansion.Direction = string(domain.DirectionFuture)
	}
	if c.Expansion.Timeout == 0 {
		c.Expansion.Timeout = Duration(15 * time.Second)
	}

	if c.Catalog.DBPath == "" {
		c.Catalog.DBPath = ":memory:"
	}
	if c.Catalog.ArticleURL == "" {
		c.Catalog.ArticleURL = "https://www.theguardian.com"
	}
	if c.Catalog.RandomYear == 0 {
		c.Catalog.RandomYear = 2012
	}
	if c.Catalog.Debounce == 0 {
		c.Catalog.Debounce = Duration(500 * time.Millisecond)
	}
}

// Validate rejects settings no component can run with
func (c *Config) Validate() error {
	if c.Viewport.WidthFactor < 1 || c.Viewport.HeightFactor < 1 {
		return errors.WithHint(
			errors.Newf("viewport growth factors %.2f/%.2f shrink the surface", c.Viewport.WidthFactor, c.Viewport.HeightFactor),
			"width_factor and height_factor must be >= 1")
	}
	if _, err := domain.ParseDirection(c.Expansion.Direction); err != nil {
		return errors.WithHint(err, "expansion.direction must be f or p")
	}
	if c.Layout.Initial.Friction > 1 || c.Layout.Expanded.Friction > 1 {
		return errors.New("layout friction must be within 0..1")
	}
	if c.Remote.Rate < 0 {
		return errors.New("remote.rate must not be negative")
	}
	return nil
}

// Direction returns the parsed expansion direction
func (c *Config) Direction() domain.Direction {
	d, err := domain.ParseDirection(c.Expansion.Direction)
	if err != nil {
		return domain.DirectionFuture
	}
	return d
}
