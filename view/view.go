// Package view holds the per-subscriber chat view: which conversation is on
// screen, its latest snapshot, and the compose field.
package view

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/klipach/supportchat/auth"
	"github.com/klipach/supportchat/chat"
	"github.com/klipach/supportchat/contract"
	"github.com/klipach/supportchat/log"
	"github.com/klipach/supportchat/role"
)

var (
	ErrClosed         = errors.New("view closed")
	ErrNoConversation = errors.New("no conversation selected")
)

type Kind string

const (
	AdminView Kind = "admin"
	UserView  Kind = "user"
)

// KindFor picks the view for a resolved role.
func KindFor(r role.Role) Kind {
	if r == role.Admin {
		return AdminView
	}
	return UserView
}

type State int

const (
	Idle State = iota
	Loading
	Populated
	Failed
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Populated:
		return "populated"
	case Failed:
		return "failed"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// Frame is what the view shows after a transition. In the Failed state
// Conversation is the last good snapshot, if any.
type Frame struct {
	ConversationID string
	State          State
	Conversation   *contract.Conversation
	Err            error
}

type Subscriber interface {
	Subscribe(ctx context.Context, conversationID string, fn chat.SnapshotFunc) (*chat.Subscription, error)
}

type Sender interface {
	AppendMessage(ctx context.Context, conversationID string, sender auth.Identity, text string) (contract.Message, error)
}

type Service interface {
	Subscriber
	Sender
}

type View struct {
	viewer  auth.Identity
	role    role.Role
	service Service

	// selectMu serializes Select and Close; sub is guarded by it.
	selectMu sync.Mutex
	sub      *chat.Subscription

	mu             sync.Mutex
	generation     int
	state          State
	conversationID string
	conv           *contract.Conversation
	err            error
	compose        string
	frames         chan Frame
}

func New(viewer auth.Identity, r role.Role, service Service) *View {
	return &View{
		viewer:  viewer,
		role:    r,
		service: service,
		frames:  make(chan Frame, 1),
	}
}

func (v *View) Kind() Kind {
	return KindFor(v.role)
}

// Open shows the viewer's default conversation: their own for users.
// Admins have no default and must Select one.
func (v *View) Open(ctx context.Context) error {
	id, err := chat.Target(v.viewer, v.role, "")
	if err != nil {
		return err
	}
	return v.Select(ctx, id)
}

// Select switches the view to conversationID. The previous subscription is
// cancelled before the new one starts, and frames from it are discarded.
func (v *View) Select(ctx context.Context, conversationID string) error {
	id, err := chat.Target(v.viewer, v.role, conversationID)
	if err != nil {
		return err
	}

	v.selectMu.Lock()
	defer v.selectMu.Unlock()

	v.mu.Lock()
	if v.state == Terminated {
		v.mu.Unlock()
		return ErrClosed
	}
	v.mu.Unlock()

	if v.sub != nil {
		v.sub.Unsubscribe()
		v.sub = nil
	}

	v.mu.Lock()
	v.generation++
	generation := v.generation
	v.conversationID = id
	v.conv = nil
	v.err = nil
	v.state = Loading
	v.publishLocked()
	v.mu.Unlock()

	log.LoggerFromContext(ctx).Debug("view selected conversation",
		slog.String(log.ConversationIDLogField, id),
		slog.String(log.RoleLogField, string(v.role)),
	)

	sub, err := v.service.Subscribe(ctx, id, func(s chat.Snapshot) {
		v.onSnapshot(generation, s)
	})
	if err != nil {
		v.mu.Lock()
		if v.generation == generation {
			v.state = Failed
			v.err = err
			v.publishLocked()
		}
		v.mu.Unlock()
		return err
	}
	v.sub = sub
	return nil
}

func (v *View) onSnapshot(generation int, s chat.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if generation != v.generation || v.state == Terminated {
		return
	}
	if s.Err != nil {
		v.state = Failed
		v.err = s.Err
	} else {
		v.state = Populated
		v.conv = s.Conversation
		v.err = nil
	}
	v.publishLocked()
}

// publishLocked replaces any unread frame with the current one.
func (v *View) publishLocked() {
	f := v.frameLocked()
	select {
	case v.frames <- f:
		return
	default:
	}
	select {
	case <-v.frames:
	default:
	}
	v.frames <- f
}

func (v *View) frameLocked() Frame {
	return Frame{
		ConversationID: v.conversationID,
		State:          v.state,
		Conversation:   v.conv.Clone(),
		Err:            v.err,
	}
}

// Updates delivers the latest frame. Unread frames are overwritten by newer
// ones. The channel is closed after the Terminated frame.
func (v *View) Updates() <-chan Frame {
	return v.frames
}

func (v *View) Current() Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frameLocked()
}

func (v *View) SetCompose(text string) {
	v.mu.Lock()
	v.compose = text
	v.mu.Unlock()
}

func (v *View) Compose() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.compose
}

// Send appends the compose text to the selected conversation. The compose
// field is cleared only when the write succeeds; the message itself appears
// with the next snapshot.
func (v *View) Send(ctx context.Context) (contract.Message, error) {
	v.mu.Lock()
	text, id, state := v.compose, v.conversationID, v.state
	v.mu.Unlock()

	switch {
	case state == Terminated:
		return contract.Message{}, ErrClosed
	case id == "":
		return contract.Message{}, ErrNoConversation
	case strings.TrimSpace(text) == "":
		return contract.Message{}, chat.ErrEmptyMessage
	}

	sender := v.viewer
	sender.DisplayName = chat.SenderName(v.viewer, v.role)
	msg, err := v.service.AppendMessage(ctx, id, sender, text)
	if err != nil {
		return contract.Message{}, err
	}

	v.mu.Lock()
	if v.compose == text {
		v.compose = ""
	}
	v.mu.Unlock()
	return msg, nil
}

// Close cancels the subscription and terminates the view. It is safe to
// call more than once.
func (v *View) Close() {
	v.selectMu.Lock()
	defer v.selectMu.Unlock()

	if v.sub != nil {
		v.sub.Unsubscribe()
		v.sub = nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == Terminated {
		return
	}
	v.generation++
	v.state = Terminated
	v.err = nil
	v.publishLocked()
	close(v.frames)
}
