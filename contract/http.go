package contract

import "time"

type SendRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

type SuggestRequest struct {
	ConversationID string `json:"conversation_id"`
	Timezone       string `json:"timezone"`
}

type SuggestResponse struct {
	Response string `json:"response"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type IdentityView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

type SessionResponse struct {
	Identity       IdentityView `json:"identity"`
	Role           string       `json:"role"`
	View           string       `json:"view"`
	ConversationID string       `json:"conversationId,omitempty"`
}

// MessageView is the wire form of a message; Pending mirrors a null time.
type MessageView struct {
	ID         string     `json:"id,omitempty"`
	SenderID   string     `json:"senderId"`
	SenderName string     `json:"senderName"`
	Text       string     `json:"text"`
	Time       *time.Time `json:"time"`
	Pending    bool       `json:"pending"`
}

type ConversationView struct {
	ID                   string        `json:"id"`
	Exists               bool          `json:"exists"`
	Messages             []MessageView `json:"messages"`
	LastMessageTimestamp *time.Time    `json:"lastMessageTimestamp"`
}

type ConversationSummary struct {
	ID                   string     `json:"id"`
	OwnerName            string     `json:"ownerName,omitempty"`
	MessageCount         int        `json:"messageCount"`
	LastMessage          string     `json:"lastMessage,omitempty"`
	LastMessageTimestamp *time.Time `json:"lastMessageTimestamp"`
}

type ConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
}

// SnapshotEvent is the payload of a "snapshot" SSE event.
type SnapshotEvent struct {
	State        string            `json:"state"`
	Conversation *ConversationView `json:"conversation,omitempty"`
	Error        string            `json:"error,omitempty"`
}

func NewMessageView(m Message) MessageView {
	return MessageView{
		ID:         m.ID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Text:       m.Text,
		Time:       m.Time,
		Pending:    m.Pending(),
	}
}

// NewConversationView converts a conversation document; nil means it does not exist.
func NewConversationView(id string, c *Conversation) *ConversationView {
	v := &ConversationView{ID: id, Messages: []MessageView{}}
	if c == nil {
		return v
	}
	v.Exists = true
	v.LastMessageTimestamp = c.LastMessageTimestamp
	for _, m := range c.Messages {
		v.Messages = append(v.Messages, NewMessageView(m))
	}
	return v
}
