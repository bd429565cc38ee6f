package contract

import "time"

const (
	ConversationsCollection = "conversations"
	RolesCollection         = "roles"

	MessagesField             = "messages"
	LastMessageTimestampField = "lastMessageTimestamp"
	RoleField                 = "role"
)

// Conversation is the per-user transcript document, keyed by the owner's uid.
type Conversation struct {
	ID                   string     `firestore:"-" json:"id"`
	Messages             []Message  `firestore:"messages" json:"messages"`
	LastMessageTimestamp *time.Time `firestore:"lastMessageTimestamp" json:"lastMessageTimestamp"`
}

// Message is one transcript entry. A nil Time means the message is still pending.
type Message struct {
	ID         string     `firestore:"id,omitempty" json:"id,omitempty"`
	SenderID   string     `firestore:"senderId" json:"senderId"`
	SenderName string     `firestore:"senderName" json:"senderName"`
	Text       string     `firestore:"text" json:"text"`
	Time       *time.Time `firestore:"time" json:"time"`
}

func (m Message) Pending() bool {
	return m.Time == nil
}

type RoleRecord struct {
	UserID string `firestore:"-" json:"userId"`
	Role   string `firestore:"role" json:"role"`
}

// Clone returns a deep copy so callers can't mutate shared snapshot state.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := &Conversation{ID: c.ID}
	if c.LastMessageTimestamp != nil {
		ts := *c.LastMessageTimestamp
		out.LastMessageTimestamp = &ts
	}
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		if m.Time != nil {
			t := *m.Time
			m.Time = &t
		}
		out.Messages[i] = m
	}
	return out
}
