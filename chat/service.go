package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/klipach/supportchat/auth"
	"github.com/klipach/supportchat/contract"
	"github.com/klipach/supportchat/log"
)

const defaultMaxMessageLength = 4000

type Service struct {
	backend   Backend
	moderator Moderator
	retry     RetryPolicy
	maxLength int
	now       func() time.Time
	newID     func() string
}

type Option func(*Service)

func WithModerator(m Moderator) Option {
	return func(s *Service) {
		s.moderator = m
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Service) {
		if p.Attempts < 1 {
			p.Attempts = 1
		}
		s.retry = p
	}
}

func WithMaxMessageLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLength = n
		}
	}
}

// WithClock replaces the clock used to stamp message times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(backend Backend, opts ...Option) *Service {
	s := &Service{
		backend:   backend,
		retry:     DefaultRetryPolicy(),
		maxLength: defaultMaxMessageLength,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureConversation creates the conversation keyed by userID if it is
// missing and returns its current state. Existing messages are never touched.
func (s *Service) EnsureConversation(ctx context.Context, userID string) (*contract.Conversation, error) {
	if err := ValidateConversationID(userID); err != nil {
		return nil, err
	}
	logger := log.LoggerFromContext(ctx).With(slog.String(log.ConversationIDLogField, userID))

	err := s.withRetry(ctx, "create conversation", func(ctx context.Context) error {
		return s.backend.CreateConversation(ctx, userID)
	})
	switch {
	case err == nil:
		logger.Info("conversation created")
	case errors.Is(err, ErrConversationExists):
	default:
		return nil, &WriteError{ConversationID: userID, Err: err}
	}
	return s.GetConversation(ctx, userID)
}

func (s *Service) GetConversation(ctx context.Context, id string) (*contract.Conversation, error) {
	if err := ValidateConversationID(id); err != nil {
		return nil, err
	}
	var conv *contract.Conversation
	err := s.withRetry(ctx, "get conversation", func(ctx context.Context) error {
		var err error
		conv, err = s.backend.Conversation(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
		}
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	conv.ID = id
	return conv, nil
}

// AppendMessage validates text, stamps it with an id and the service clock,
// and appends it to the conversation in one additive write that also
// refreshes lastMessageTimestamp with the backend's time.
func (s *Service) AppendMessage(ctx context.Context, conversationID string, sender auth.Identity, text string) (contract.Message, error) {
	if err := ValidateConversationID(conversationID); err != nil {
		return contract.Message{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return contract.Message{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > s.maxLength {
		return contract.Message{}, fmt.Errorf("%w: limit is %d characters", ErrMessageTooLong, s.maxLength)
	}
	logger := log.LoggerFromContext(ctx).With(
		slog.String(log.ConversationIDLogField, conversationID),
		slog.String(log.UserIDLogField, sender.ID),
	)

	if s.moderator != nil {
		flagged, err := s.moderator.Flagged(ctx, text)
		if err != nil {
			logger.Warn("moderation unavailable, message allowed", slog.String(log.ErrorMsgLogField, err.Error()))
		} else if flagged {
			logger.Info("message rejected by moderation")
			return contract.Message{}, ErrMessageRejected
		}
	}

	now := s.now().UTC()
	msg := contract.Message{
		ID:         s.newID(),
		SenderID:   sender.ID,
		SenderName: sender.DisplayName,
		Text:       text,
		Time:       &now,
	}

	// array-union of an element that is already present is a no-op, so a
	// retried append never duplicates the message.
	err := s.withRetry(ctx, "append message", func(ctx context.Context) error {
		return s.backend.AppendMessage(ctx, conversationID, msg)
	})
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			return contract.Message{}, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
		}
		logger.Error("append message failed", slog.String(log.ErrorMsgLogField, err.Error()))
		return contract.Message{}, &WriteError{ConversationID: conversationID, Err: err}
	}
	logger.Info("message appended", slog.String(log.MessageIDLogField, msg.ID))
	return msg, nil
}

// ListConversations fetches every conversation once, most recent activity first.
func (s *Service) ListConversations(ctx context.Context) ([]contract.ConversationSummary, error) {
	var convs []*contract.Conversation
	err := s.withRetry(ctx, "list conversations", func(ctx context.Context) error {
		var err error
		convs, err = s.backend.Conversations(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return Summarize(convs), nil
}
