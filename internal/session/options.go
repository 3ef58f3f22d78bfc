package session

import (
	"time"

	"butterfly/internal/config"
	"butterfly/internal/domain"
	"butterfly/internal/expansion"
	"butterfly/internal/layout"
	"butterfly/internal/scene"
	"butterfly/internal/viewport"
)

// Options configure every session created by a Manager
type Options struct {
	Initial      layout.Params
	Expanded     layout.Params
	TickInterval time.Duration
	RestageDelay time.Duration
	Seed         uint64 // 0 derives a seed from the clock

	WindowWidth  float64
	WindowHeight float64
	WidthFactor  float64
	HeightFactor float64

	ClearOnHoverOut bool
	Drift           scene.Offset

	Direction    domain.Direction
	FetchTimeout time.Duration
}

// DefaultOptions mirrors config.DefaultConfig
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// OptionsFromConfig maps the file configuration onto session options
func OptionsFromConfig(c *config.Config) Options {
	return Options{
		Initial:         c.Layout.Initial,
		Expanded:        c.Layout.Expanded,
		TickInterval:    c.Layout.TickInterval.Duration(),
		RestageDelay:    c.Layout.RestageDelay.Duration(),
		Seed:            c.Layout.Seed,
		WindowWidth:     c.Viewport.Width,
		WindowHeight:    c.Viewport.Height,
		WidthFactor:     c.Viewport.WidthFactor,
		HeightFactor:    c.Viewport.HeightFactor,
		ClearOnHoverOut: c.Render.ClearOnHoverOut,
		Drift:           c.Render.Drift,
		Direction:       c.Direction(),
		FetchTimeout:    c.Expansion.Timeout.Duration(),
	}
}

func (o Options) withDefaults() Options {
	if o.Initial == (layout.Params{}) {
		o.Initial = layout.DefaultParams()
	}
	if o.Expanded == (layout.Params{}) {
		o.Expanded = layout.ExpandedParams()
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 30 * time.Millisecond
	}
	if o.RestageDelay < 0 {
		o.RestageDelay = 0
	}
	if o.WindowWidth <= 0 {
		o.WindowWidth = 1280
	}
	if o.WindowHeight <= 0 {
		o.WindowHeight = 800
	}
	if o.WidthFactor == 0 {
		o.WidthFactor = viewport.DefaultWidthFactor
	}
	if o.HeightFactor == 0 {
		o.HeightFactor = viewport.DefaultHeightFactor
	}
	if o.Direction == "" {
		o.Direction = domain.DirectionFuture
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = expansion.DefaultTimeout
	}
	return o
}
