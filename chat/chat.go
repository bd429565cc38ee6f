// Package chat maps users to their conversation documents and keeps
// transcripts in sync with the document store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/klipach/supportchat/contract"
)

var (
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrConversationExists    = errors.New("conversation already exists")
	ErrInvalidConversationID = errors.New("invalid conversation id")
	ErrEmptyMessage          = errors.New("message text is empty")
	ErrMessageTooLong        = errors.New("message text is too long")
	ErrMessageRejected       = errors.New("message rejected by moderation")
	ErrForbidden             = errors.New("conversation not accessible")
)

// Backend is the document store a Service runs on.
//
// AppendMessage must be an additive merge at the store: concurrent appends
// from different writers all survive.
type Backend interface {
	// CreateConversation creates an empty conversation, or returns
	// ErrConversationExists without touching the existing document.
	CreateConversation(ctx context.Context, id string) error
	Conversation(ctx context.Context, id string) (*contract.Conversation, error)
	// AppendMessage adds msg to the messages array and sets
	// lastMessageTimestamp to the store's current time in one write.
	AppendMessage(ctx context.Context, id string, msg contract.Message) error
	Conversations(ctx context.Context) ([]*contract.Conversation, error)
	WatchConversation(ctx context.Context, id string) SnapshotIterator
}

// SnapshotIterator yields the current state of one conversation document,
// then one state per change. Next returns (nil, nil) while the document does
// not exist. Cancelling the watch context unblocks Next.
type SnapshotIterator interface {
	Next() (*contract.Conversation, error)
	Stop()
}

// Moderator screens message text before it is stored.
type Moderator interface {
	Flagged(ctx context.Context, text string) (bool, error)
}

// WriteError is returned when a conversation write fails at the backend.
type WriteError struct {
	ConversationID string
	Err            error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write conversation %s: %v", e.ConversationID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// SubscriptionError is delivered when a live listener fails.
type SubscriptionError struct {
	ConversationID string
	Err            error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription to conversation %s: %v", e.ConversationID, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// ValidateConversationID rejects ids that can't name a document, including
// the __name__ form Firestore reserves.
func ValidateConversationID(id string) error {
	reserved := len(id) >= 4 && strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__")
	if id == "" || strings.Contains(id, "/") || id == "." || id == ".." || len(id) > 1500 || reserved {
		return fmt.Errorf("%w: %q", ErrInvalidConversationID, id)
	}
	return nil
}
