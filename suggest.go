package supportchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"text/template"
	"time"
	_ "time/tzdata"

	"github.com/klipach/supportchat/chat"
	"github.com/klipach/supportchat/contract"
	"github.com/klipach/supportchat/filter"
	"github.com/klipach/supportchat/log"
	"github.com/klipach/supportchat/role"
	"github.com/tmc/langchaingo/llms"
)

const (
	suggestPromptFile = "prompts/suggest.tmpl"
	suggestMaxTokens  = 1000

	bodyLogField     = "body"
	timezoneLogField = "timezone"
)

// loggingRoundTripper logs outgoing model requests.
type loggingRoundTripper struct {
	rt http.RoundTripper
}

func (lrt *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	logger := log.LoggerFromContext(req.Context())
	var bodyBytes []byte
	if req.Body != nil {
		bodyBytes, _ = io.ReadAll(req.Body)
	}
	// reset req.Body so it can be read downstream
	req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	logger.Debug("openAI request",
		slog.String("url", req.URL.String()),
		slog.String(bodyLogField, string(bodyBytes)),
	)
	return lrt.rt.RoundTrip(req)
}

// streamingFunc writes filtered chunks as SSE data lines.
func streamingFunc(w io.Writer, flusher http.Flusher, chain filter.Chain) func(ctx context.Context, chunk []byte) error {
	return func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		return writeSuggestion(w, flusher, chain.ProcessChunk(ctx, string(chunk)))
	}
}

func writeSuggestion(w io.Writer, flusher http.Flusher, text string) error {
	if text == "" {
		return nil
	}
	jsonData, err := json.Marshal(contract.SuggestResponse{Response: text})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

type suggestPrompt struct {
	LocalTime    string
	Offset       string
	CustomerName string
	MessageCount int
}

func buildSuggestPrompt(conv *contract.Conversation, loc *time.Location, now time.Time) (string, error) {
	prompt, err := template.New("suggest.tmpl").ParseFiles(suggestPromptFile)
	if err != nil {
		return "", fmt.Errorf("parse prompt: %w", err)
	}
	local := now.In(loc)
	var sb strings.Builder
	err = prompt.Execute(&sb, suggestPrompt{
		LocalTime:    local.Format(time.RFC1123Z),
		Offset:       local.Format("-07:00"),
		CustomerName: chat.OwnerName(conv),
		MessageCount: len(conv.Messages),
	})
	if err != nil {
		return "", fmt.Errorf("execute prompt: %w", err)
	}
	return sb.String(), nil
}

// Suggest streams a drafted admin reply for a conversation. The draft is not
// stored; the admin sends it with Send.
func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	c, r, ok := s.authenticate(w, r, http.MethodPost)
	if !ok {
		return
	}
	if c.role != role.Admin {
		writeError(w, r, errAdminOnly)
		return
	}
	if s.model == nil {
		writeError(w, r, errSuggestDisabled)
		return
	}

	var req contract.SuggestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := chat.Target(c.identity, c.role, req.ConversationID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger := c.logger.With(
		slog.String(log.ConversationIDLogField, id),
		slog.String(timezoneLogField, req.Timezone),
	)
	ctx := log.WithLogger(c.ctx, logger)

	loc, err := time.LoadLocation(req.Timezone)
	if err != nil {
		logger.Warn("error while loading location", slog.String(log.ErrorMsgLogField, err.Error()))
		loc = time.UTC
	}

	conv, err := s.chat.GetConversation(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	system, err := buildSuggestPrompt(conv, loc, time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, errNoStreaming)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	chain := filter.Chain{
		&filter.LinkFilter{},
		&filter.PlaceholderFilter{Values: map[string]string{
			"customer": chat.OwnerName(conv),
			"agent":    chat.SenderName(c.identity, c.role),
		}},
	}
	messages := append(
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, system)},
		chat.History(conv)...,
	)
	resp, err := s.model.GenerateContent(ctx, messages,
		llms.WithStreamingFunc(streamingFunc(w, flusher, chain)),
		llms.WithMaxTokens(suggestMaxTokens),
	)
	if err != nil {
		logger.Error("error while generating suggestion", slog.String(log.ErrorMsgLogField, err.Error()))
		if _, werr := fmt.Fprintf(w, "event: error\ndata: {\"error\":%q}\n\n", http.StatusText(http.StatusBadGateway)); werr == nil {
			flusher.Flush()
		}
		return
	}
	if err := writeSuggestion(w, flusher, chain.ProcessChunk(ctx, "")); err != nil {
		logger.Info("error while writing suggestion", slog.String(log.ErrorMsgLogField, err.Error()))
		return
	}

	if len(resp.Choices) > 0 {
		logger.Info("suggestion generated", slog.Int("length", len(resp.Choices[0].Content)))
	} else {
		logger.Error("no openAI response")
	}
}
