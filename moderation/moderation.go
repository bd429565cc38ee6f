// Package moderation screens chat messages with the OpenAI moderation API.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/klipach/supportchat/log"
	openai "github.com/sashabaranov/go-openai"
)

const defaultModel = openai.ModerationTextLatest

type Moderator struct {
	client *openai.Client
	model  string
}

func New(apiKey string) *Moderator {
	return NewWithConfig(openai.DefaultConfig(apiKey))
}

func NewWithConfig(cfg openai.ClientConfig) *Moderator {
	return &Moderator{client: openai.NewClientWithConfig(cfg), model: defaultModel}
}

// Flagged reports whether any moderation category matched text.
func (m *Moderator) Flagged(ctx context.Context, text string) (bool, error) {
	resp, err := m.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: m.model,
	})
	if err != nil {
		return false, fmt.Errorf("moderation request: %w", err)
	}
	if len(resp.Results) == 0 {
		return false, errors.New("moderation returned no results")
	}
	result := resp.Results[0]
	if result.Flagged {
		log.LoggerFromContext(ctx).Info("message flagged",
			slog.Bool("harassment", result.Categories.Harassment),
			slog.Bool("hate", result.Categories.Hate),
			slog.Bool("sexual", result.Categories.Sexual),
			slog.Bool("violence", result.Categories.Violence),
		)
	}
	return result.Flagged, nil
}
