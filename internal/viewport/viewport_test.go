package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		w, h    float64
		fw, fh  float64
		wantErr bool
	}{
		{"defaults", 1000, 800, DefaultWidthFactor, DefaultHeightFactor, false},
		{"no growth", 1000, 800, 1, 1, false},
		{"shrinking width", 1000, 800, 0.9, 1.1, true},
		{"shrinking height", 1000, 800, 1.1, 0.5, true},
		{"empty window", 0, 800, 1, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.w, tt.h, tt.fw, tt.fh)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGrow(t *testing.T) {
	v, err := New(1000, 500, DefaultWidthFactor, DefaultHeightFactor)
	require.NoError(t, err)
	assert.InDelta(t, 1010, v.Size().Width, 1e-9)
	assert.InDelta(t, 505, v.Size().Height, 1e-9)

	prev := v.Size()
	for i := 0; i < 5; i++ {
		s := v.Grow()
		assert.GreaterOrEqual(t, s.Width, prev.Width)
		assert.GreaterOrEqual(t, s.Height, prev.Height)
		prev = s
	}
	assert.Equal(t, 5, v.Passes())

	first, _ := New(1000, 500, DefaultWidthFactor, DefaultHeightFactor)
	s := first.Grow()
	assert.InDelta(t, 1010*1.08, s.Width, 1e-9)
	assert.InDelta(t, 505*1.12, s.Height, 1e-9)
}
