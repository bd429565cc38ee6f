package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/klipach/supportchat/contract"
	"github.com/klipach/supportchat/log"
)

// Snapshot is one delivery of a live subscription. Conversation is nil when
// the document does not exist; Err is set once, on the final delivery of a
// failed listener.
type Snapshot struct {
	ConversationID string
	Conversation   *contract.Conversation
	Err            error
}

func (s Snapshot) Exists() bool {
	return s.Conversation != nil
}

type SnapshotFunc func(Snapshot)

// Subscription is a live listener on one conversation.
type Subscription struct {
	conversationID string
	cancel         context.CancelFunc
	once           sync.Once
	done           chan struct{}

	// mu serializes deliveries with Unsubscribe.
	mu      sync.Mutex
	stopped bool
}

// Subscribe registers fn for conversationID. fn is called with the current
// state, then once per change, on a goroutine owned by the subscription.
// Deliveries are sequential. The listener lives until Unsubscribe is called,
// ctx is done, or the backend reports an error.
func (s *Service) Subscribe(ctx context.Context, conversationID string, fn SnapshotFunc) (*Subscription, error) {
	if err := ValidateConversationID(conversationID); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.New("subscribe: nil snapshot func")
	}
	watchCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		conversationID: conversationID,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	it := s.backend.WatchConversation(watchCtx, conversationID)
	go sub.run(watchCtx, it, fn)
	return sub, nil
}

func (sub *Subscription) run(ctx context.Context, it SnapshotIterator, fn SnapshotFunc) {
	defer close(sub.done)
	defer it.Stop()
	logger := log.LoggerFromContext(ctx).With(slog.String(log.ConversationIDLogField, sub.conversationID))

	for {
		conv, err := it.Next()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Error("conversation listener failed", slog.String(log.ErrorMsgLogField, err.Error()))
			sub.deliver(fn, Snapshot{
				ConversationID: sub.conversationID,
				Err:            &SubscriptionError{ConversationID: sub.conversationID, Err: err},
			})
			return
		}
		if conv != nil {
			conv.ID = sub.conversationID
		}
		if !sub.deliver(fn, Snapshot{ConversationID: sub.conversationID, Conversation: conv}) {
			return
		}
	}
}

func (sub *Subscription) deliver(fn SnapshotFunc, snap Snapshot) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.stopped {
		return false
	}
	fn(snap)
	return true
}

// Unsubscribe cancels the listener. Once it returns the snapshot func is
// never called again. Extra calls are no-ops. It must not be called from
// inside the snapshot func.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.cancel()
		sub.mu.Lock()
		sub.stopped = true
		sub.mu.Unlock()
	})
}

func (sub *Subscription) ConversationID() string {
	return sub.conversationID
}

// Done is closed when the listener goroutine has exited.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}
