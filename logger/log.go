package logger

import (
	"context"
	"log/slog"
	"os"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/logging"
	"github.com/klipach/supportchat/log"
)

// New returns a logger for command line tools. When a GCP project is
// discoverable the entries go to Cloud Logging under name, otherwise they
// are written to stdout in the same structured format the functions use.
// The returned close func flushes buffered entries.
func New(ctx context.Context, name string) (*slog.Logger, func() error) {
	projectID := ProjectID(ctx)
	if projectID == "" {
		return slog.New(log.NewCloudLoggingHandler()), func() error { return nil }
	}
	client, err := logging.NewClient(ctx, projectID)
	if err != nil {
		fallback := slog.New(log.NewCloudLoggingHandler())
		fallback.Warn("cloud logging unavailable", slog.String(log.ErrorMsgLogField, err.Error()))
		return fallback, func() error { return nil }
	}
	return slog.New(&cloudHandler{logger: client.Logger(name), level: slog.LevelInfo}), client.Close
}

// ProjectID resolves the project from GOOGLE_CLOUD_PROJECT or the metadata server.
func ProjectID(ctx context.Context) string {
	if id := os.Getenv("GOOGLE_CLOUD_PROJECT"); id != "" {
		return id
	}
	if !metadata.OnGCE() {
		return ""
	}
	id, err := metadata.ProjectIDWithContext(ctx)
	if err != nil {
		return ""
	}
	return id
}

type cloudHandler struct {
	logger *logging.Logger
	level  slog.Level
	attrs  []slog.Attr
}

func (h *cloudHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

func (h *cloudHandler) Handle(_ context.Context, r slog.Record) error {
	payload := map[string]any{"message": r.Message}
	for _, a := range h.attrs {
		payload[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		payload[a.Key] = a.Value.Resolve().Any()
		return true
	})
	h.logger.Log(logging.Entry{
		Timestamp: r.Time,
		Severity:  severity(r.Level),
		Payload:   payload,
	})
	return nil
}

func (h *cloudHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *cloudHandler) WithGroup(_ string) slog.Handler {
	return h
}

func severity(l slog.Level) logging.Severity {
	switch {
	case l >= slog.LevelError:
		return logging.Error
	case l >= slog.LevelWarn:
		return logging.Warning
	case l >= slog.LevelInfo:
		return logging.Info
	default:
		return logging.Debug
	}
}
