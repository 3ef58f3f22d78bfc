// Package viewport sizes the drawing surface as the graph grows.
package viewport

import "butterfly/internal/errors"

// Default growth factors applied per structural pass
const (
	DefaultWidthFactor  = 1.08
	DefaultHeightFactor = 1.12

	// InitialScale is applied to the window size at construction
	InitialScale = 1.01
)

// Size is a width/height pair in scene units
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport grows monotonically. It never shrinks.
type Viewport struct {
	size           Size
	widthFactor    float64
	heightFactor   float64
	structuralRuns int
}

// New sizes a viewport from the window dimensions. Factors below 1 would
// shrink the surface and are rejected.
func New(windowWidth, windowHeight, widthFactor, heightFactor float64) (*Viewport, error) {
	if windowWidth <= 0 || windowHeight <= 0 {
		return nil, errors.Newf("viewport window must be positive, got %.0fx%.0f", windowWidth, windowHeight)
	}
	if widthFactor < 1 || heightFactor < 1 {
		return nil, errors.Newf("viewport growth factors must be >= 1, got %.2f/%.2f", widthFactor, heightFactor)
	}
	return &Viewport{
		size:         Size{Width: windowWidth * InitialScale, Height: windowHeight * InitialScale},
		widthFactor:  widthFactor,
		heightFactor: heightFactor,
	}, nil
}

// Grow applies one structural pass and returns the new size
func (v *Viewport) Grow() Size {
	v.size.Width *= v.widthFactor
	v.size.Height *= v.heightFactor
	v.structuralRuns++
	return v.size
}

// Size returns the current size
func (v *Viewport) Size() Size {
	return v.size
}

// Passes returns how many times Grow has run
func (v *Viewport) Passes() int {
	return v.structuralRuns
}
