package supportchat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/klipach/supportchat/auth"
	"github.com/klipach/supportchat/chat"
	"github.com/klipach/supportchat/contract"
	"github.com/klipach/supportchat/log"
	"github.com/klipach/supportchat/view"
)

const maxBodyBytes = 64 << 10

var (
	errMethodNotAllowed = errors.New("method not allowed")
	errBadRequest       = errors.New("bad request")
	errAdminOnly        = errors.New("admin role required")
	errNoStreaming      = errors.New("streaming unsupported")
	errSuggestDisabled  = errors.New("reply suggestions are not configured")
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		authErr     *auth.Error
		tooLargeErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &tooLargeErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, chat.ErrForbidden), errors.Is(err, errAdminOnly):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrInvalidConversationID),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMessageTooLong),
		errors.Is(err, view.ErrNoConversation),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrMessageRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errSuggestDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and answers with its status. Server errors are not
// echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := log.LoggerFromContext(r.Context())
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.Int("status", status), slog.String(log.ErrorMsgLogField, msg))
		msg = http.StatusText(status)
	} else {
		logger.Info("request rejected", slog.Int("status", status), slog.String(log.ErrorMsgLogField, msg))
	}
	if status == http.StatusUnauthorized {
		msg = http.StatusText(status)
	}
	writeJSON(w, r, status, contract.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.LoggerFromContext(r.Context()).Error("error while encoding response", slog.String(log.ErrorMsgLogField, err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
