package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"WARN", "warn"},
		{"warning", "warn"},
		{"error", "error"},
		{"", "info"},
		{"bogus", "info"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in).String(), "parseLevel(%q)", tt.in)
	}
}

func TestInitializeReplacesNop(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	require.NoError(t, Initialize(true, "error"))
	assert.NotNil(t, Logger)
	assert.False(t, Logger.Desugar().Core().Enabled(zap.InfoLevel))
	assert.True(t, Logger.Desugar().Core().Enabled(zap.ErrorLevel))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	l := zap.NewExample().Sugar()
	assert.Same(t, l, OrNop(l))
}
