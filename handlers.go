package supportchat

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/klipach/supportchat/chat"
	"github.com/klipach/supportchat/contract"
	"github.com/klipach/supportchat/log"
	"github.com/klipach/supportchat/render"
	"github.com/klipach/supportchat/role"
	"github.com/klipach/supportchat/view"
)

const conversationIDParam = "conversation_id"

// ownsConversation is true for a user addressing their own conversation,
// which is created on first access.
func ownsConversation(c *caller, id string) bool {
	return c.role != role.Admin && id == c.identity.ID
}

// conversationFor loads id, creating it when it is the caller's own.
// Admins naming an unknown id get ErrConversationNotFound.
func (s *Server) conversationFor(c *caller, id string) (*contract.Conversation, error) {
	if ownsConversation(c, id) {
		return s.chat.EnsureConversation(c.ctx, id)
	}
	return s.chat.GetConversation(c.ctx, id)
}

// Session reports who the caller is and which view to show. A user's
// conversation is created on first visit.
func (s *Server) Session(w http.ResponseWriter, r *http.Request) {
	c, r, ok := s.authenticate(w, r, http.MethodGet)
	if !ok {
		return
	}
	resp := contract.SessionResponse{
		Identity: contract.IdentityView{
			ID:          c.identity.ID,
			DisplayName: c.identity.DisplayName,
			PhotoURL:    c.identity.PhotoURL,
		},
		Role: string(c.role),
		View: string(view.KindFor(c.role)),
	}
	if c.role == role.User {
		conv, err := s.chat.EnsureConversation(c.ctx, c.identity.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.ConversationID = conv.ID
	}
	c.logger.Info("session started")
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) Conversation(w http.ResponseWriter, r *http.Request) {
	c, r, ok := s.authenticate(w, r, http.MethodGet)
	if !ok {
		return
	}
	id, err := chat.Target(c.identity, c.role, r.URL.Query().Get(conversationIDParam))
	if err != nil {
		writeError(w, r, err)
		return
	}
	conv, err := s.conversationFor(c, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, contract.NewConversationView(id, conv))
}

// Send appends a message. Users always write to their own conversation.
func (s *Server) Send(w http.ResponseWriter, r *http.Request) {
	c, r, ok := s.authenticate(w, r, http.MethodPost)
	if !ok {
		return
	}
	var req contract.SendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := chat.Target(c.identity, c.role, req.ConversationID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sender := c.identity
	sender.DisplayName = chat.SenderName(c.identity, c.role)
	msg, err := s.chat.AppendMessage(c.ctx, id, sender, req.Text)
	if errors.Is(err, chat.ErrConversationNotFound) && ownsConversation(c, id) {
		if _, err = s.chat.EnsureConversation(c.ctx, id); err == nil {
			msg, err = s.chat.AppendMessage(c.ctx, id, sender, req.Text)
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, contract.NewMessageView(msg))
}

// Subscribe streams the selected conversation as server-sent events: a
// "snapshot" event per change and a final "error" event if the listener
// fails. The subscription ends when the client goes away.
func (s *Server) Subscribe(w http.ResponseWriter, r *http.Request) {
	c, r, ok := s.authenticate(w, r, http.MethodGet)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, errNoStreaming)
		return
	}

	id, err := chat.Target(c.identity, c.role, r.URL.Query().Get(conversationIDParam))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ownsConversation(c, id) {
		if _, err := s.chat.EnsureConversation(c.ctx, id); err != nil {
			writeError(w, r, err)
			return
		}
	}

	v := view.New(c.identity, c.role, s.chat)
	defer v.Close()
	if err := v.Select(c.ctx, id); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-c.ctx.Done():
			c.logger.Debug("subscriber disconnected")
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case f, ok := <-v.Updates():
			if !ok {
				return
			}
			event, payload := frameEvent(f)
			if event == "" {
				continue
			}
			if err := writeEvent(w, event, payload); err != nil {
				c.logger.Info("error while writing event", slog.String(log.ErrorMsgLogField, err.Error()))
				return
			}
			flusher.Flush()
			if f.State == view.Failed {
				return
			}
		}
	}
}

func frameEvent(f view.Frame) (string, contract.SnapshotEvent) {
	ev := contract.SnapshotEvent{State: f.State.String()}
	switch f.State {
	case view.Populated:
		ev.Conversation = contract.NewConversationView(f.ConversationID, f.Conversation)
		return "snapshot", ev
	case view.Failed:
		if f.Conversation != nil {
			ev.Conversation = contract.NewConversationView(f.ConversationID, f.Conversation)
		}
		if f.Err != nil {
			ev.Error = f.Err.Error()
		}
		return "error", ev
	}
	return "", ev
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// Conversations lists every conversation for the admin view.
func (s *Server) Conversations(w http.ResponseWriter, r *http.Request) {
	c, r, ok := s.authenticate(w, r, http.MethodGet)
	if !ok {
		return
	}
	if c.role != role.Admin {
		writeError(w, r, errAdminOnly)
		return
	}
	list, err := s.chat.ListConversations(c.ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, contract.ConversationsResponse{Conversations: list})
}

func (s *Server) Transcript(w http.ResponseWriter, r *http.Request) {
	c, r, ok := s.authenticate(w, r, http.MethodGet)
	if !ok {
		return
	}
	id, err := chat.Target(c.identity, c.role, r.URL.Query().Get(conversationIDParam))
	if err != nil {
		writeError(w, r, err)
		return
	}
	conv, err := s.conversationFor(c, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := render.Transcript(conv, c.identity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// SignOut revokes the caller's refresh tokens.
func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	c, r, ok := s.authenticate(w, r, http.MethodPost)
	if !ok {
		return
	}
	if err := s.auth.SignOut(c.ctx, c.identity.ID); err != nil {
		// the caller was authenticated; a failed revoke is a server error
		writeError(w, r, fmt.Errorf("sign out: %v", err))
		return
	}
	c.logger.Info("signed out")
	w.WriteHeader(http.StatusNoContent)
}
