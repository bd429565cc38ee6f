package log

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	traceHeader   = "X-Cloud-Trace-Context"
	traceLogField = "logging.googleapis.com/trace"
)

type (
	ctxKey   struct{}
	traceKey struct{}
)

// CloudLoggingHandler is a slog.Handler that writes Google Cloud structured log entries.
type CloudLoggingHandler struct {
	out   io.Writer
	mu    *sync.Mutex
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewCloudLoggingHandler creates a handler writing to stdout at debug level.
func NewCloudLoggingHandler() *CloudLoggingHandler {
	return NewCloudLoggingHandlerWithWriter(os.Stdout, slog.LevelDebug)
}

func NewCloudLoggingHandlerWithWriter(out io.Writer, level slog.Leveler) *CloudLoggingHandler {
	return &CloudLoggingHandler{out: out, mu: &sync.Mutex{}, level: level}
}

// Handle processes log records.
func (h *CloudLoggingHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := map[string]any{
		"severity": severity(r.Level),
		"time":     r.Time.Format(time.RFC3339Nano),
		"message":  r.Message,
	}
	if r.Time.IsZero() {
		entry["time"] = time.Now().Format(time.RFC3339Nano)
	}

	if traceID := getTraceID(ctx); traceID != "" {
		entry[traceLogField] = traceID
	}

	for _, attr := range h.attrs {
		entry[attr.Key] = attr.Value.Resolve().Any()
	}
	r.Attrs(func(attr slog.Attr) bool {
		entry[h.key(attr.Key)] = attr.Value.Resolve().Any()
		return true
	})

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(append(jsonData, '\n'))
	return err
}

func (h *CloudLoggingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// WithAttrs returns a new handler with additional attributes.
func (h *CloudLoggingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	for _, a := range attrs {
		newAttrs = append(newAttrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	clone := *h
	clone.attrs = newAttrs
	return &clone
}

// WithGroup prefixes subsequent keys with the group name.
func (h *CloudLoggingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = h.key(name)
	return &clone
}

func (h *CloudLoggingHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

// Cloud Logging expects WARNING rather than slog's WARN.
func severity(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARNING"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func getTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	traceID, _ := ctx.Value(traceKey{}).(string)
	return traceID
}

// WithTrace stores the trace from the X-Cloud-Trace-Context header in ctx,
// formatted as projects/<project>/traces/<id>.
func WithTrace(ctx context.Context, r *http.Request, projectID string) context.Context {
	header := r.Header.Get(traceHeader)
	if header == "" || projectID == "" {
		return ctx
	}
	traceID, _, _ := strings.Cut(header, "/")
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, traceKey{}, fmt.Sprintf("projects/%s/traces/%s", projectID, traceID))
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.New(NewCloudLoggingHandler())
}
