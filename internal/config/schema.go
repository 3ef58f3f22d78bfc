package config

import (
	"time"

	"butterfly/internal/layout"
	"butterfly/internal/scene"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Remote    RemoteConfig    `yaml:"remote"`
	Layout    LayoutConfig    `yaml:"layout"`
	Viewport  ViewportConfig  `yaml:"viewport"`
	Render    RenderConfig    `yaml:"render"`
	Expansion ExpansionConfig `yaml:"expansion"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// LogConfig selects log output
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	MaxSessions     int      `yaml:"max_sessions"`
	SessionIdle     Duration `yaml:"session_idle"` // Sessions without clients or intents for this long are closed
}

// RemoteConfig points at the related-articles service
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout Duration      `yaml:"timeout"`
	Rate    float64       `yaml:"rate"` // Requests per second, 0 = unlimited
	Burst   int           `yaml:"burst"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the remote circuit breaker
type BreakerConfig struct {
	MaxRequests      uint32   `yaml:"max_requests"`
	Interval         Duration `yaml:"interval"`
	Timeout          Duration `yaml:"timeout"`
	FailureThreshold float64  `yaml:"failure_threshold"`
	MinRequests      uint32   `yaml:"min_requests"`
}

// LayoutConfig holds the staged force parameters
type LayoutConfig struct {
	Initial      layout.Params `yaml:"initial"`
	Expanded     layout.Params `yaml:"expanded"`
	TickInterval Duration      `yaml:"tick_interval"`
	RestageDelay Duration      `yaml:"restage_delay"` // Delay before Expanded params apply after the first click
	Seed         uint64        `yaml:"seed"`          // 0 picks a random seed per session
}

// ViewportConfig sizes the drawing surface
type ViewportConfig struct {
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	WidthFactor  float64 `yaml:"width_factor"`
	HeightFactor float64 `yaml:"height_factor"`
}

// RenderConfig holds presentation policy
type RenderConfig struct {
	ClearOnHoverOut bool         `yaml:"clear_on_hover_out"`
	Drift           scene.Offset `yaml:"drift"` // Per-pass scene shift, zero disables
}

// ExpansionConfig controls remote fetches
type ExpansionConfig struct {
	Direction string   `yaml:"direction"` // f or p
	Timeout   Duration `yaml:"timeout"`
}

// CatalogConfig configures the bundled reference catalog
type CatalogConfig struct {
	DBPath     string   `yaml:"db_path"`
	Source     string   `yaml:"source"`      // YAML article file
	Watch      bool     `yaml:"watch"`       // Reload when Source changes
	ArticleURL string   `yaml:"article_url"` // Prefix for article links
	Debounce   Duration `yaml:"debounce"`
	RandomYear int      `yaml:"random_year"` // Year random seeds are drawn from
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
