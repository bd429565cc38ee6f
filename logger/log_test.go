package logger

import (
	"context"
	"log/slog"
	"testing"

	"cloud.google.com/go/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity(t *testing.T) {
	tests := []struct {
		level    slog.Level
		expected logging.Severity
	}{
		{level: slog.LevelDebug, expected: logging.Debug},
		{level: slog.LevelInfo, expected: logging.Info},
		{level: slog.LevelWarn, expected: logging.Warning},
		{level: slog.LevelError, expected: logging.Error},
		{level: slog.LevelError + 4, expected: logging.Error},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, severity(tt.level))
		})
	}
}

func TestProjectIDFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "support-test")
	assert.Equal(t, "support-test", ProjectID(context.Background()))
}

func TestCloudHandlerWithAttrs(t *testing.T) {
	h := &cloudHandler{level: slog.LevelInfo}
	withAttrs, ok := h.WithAttrs([]slog.Attr{slog.String("tool", "roles")}).(*cloudHandler)
	require.True(t, ok)
	assert.Len(t, withAttrs.attrs, 1)
	assert.Empty(t, h.attrs)
	assert.False(t, withAttrs.Enabled(context.Background(), slog.LevelDebug))
}
