package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortHeadline(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "Budget passes", "Budget passes"},
		{"exact", strings.Repeat("x", 30), strings.Repeat("x", 30)},
		{"long", strings.Repeat("x", 31), strings.Repeat("x", 30) + "..."},
		{"multibyte", strings.Repeat("é", 35), strings.Repeat("é", 30) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortHeadline(tt.in))
		})
	}
}

func TestDisplayFieldsLabel(t *testing.T) {
	assert.Equal(t, "short", DisplayFields{Headline: strings.Repeat("y", 40), HeadlineShort: "short"}.Label())
	assert.Equal(t, strings.Repeat("y", 30)+"...", DisplayFields{Headline: strings.Repeat("y", 40)}.Label())
}

func TestDisplayFieldsVersion(t *testing.T) {
	assert.Equal(t, DisplayFieldsVersion, DisplayFields{}.Normalize().Version)
	assert.NoError(t, DisplayFields{}.Normalize().Validate())
	assert.Error(t, DisplayFields{Version: 99}.Validate())
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"f": DirectionFuture, "future": DirectionFuture, "P": DirectionPast} {
		got, err := ParseDirection(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDirection("sideways")
	assert.Error(t, err)
}
