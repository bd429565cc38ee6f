package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudLoggingHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCloudLoggingHandlerWithWriter(&buf, slog.LevelInfo))

	logger.Debug("hidden")
	logger.With(slog.String("userID", "u1")).Warn("slow backend", slog.Int("attempt", 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARNING", entry["severity"])
	assert.Equal(t, "slow backend", entry["message"])
	assert.Equal(t, "u1", entry["userID"])
	assert.EqualValues(t, 2, entry["attempt"])
}

func TestWithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCloudLoggingHandlerWithWriter(&buf, slog.LevelDebug)).WithGroup("chat")

	logger.Info("sent", slog.String("conversationID", "c1"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "c1", entry["chat.conversationID"])
}

func TestWithTrace(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		project  string
		expected string
	}{
		{name: "no header", header: "", project: "p", expected: ""},
		{name: "no project", header: "abc/1;o=1", project: "", expected: ""},
		{name: "with span", header: "abc/1;o=1", project: "p", expected: "projects/p/traces/abc"},
		{name: "trace only", header: "abc", project: "p", expected: "projects/p/traces/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{Header: http.Header{}}
			if tt.header != "" {
				r.Header.Set(traceHeader, tt.header)
			}
			ctx := WithTrace(context.Background(), r, tt.project)
			assert.Equal(t, tt.expected, getTraceID(ctx))
		})
	}
}

func TestLoggerFromContext(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, LoggerFromContext(ctx))
	assert.NotNil(t, LoggerFromContext(context.Background()))
}
