package chat

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/klipach/supportchat/contract"
)

const previewLength = 80

// Summarize projects conversations for the admin list, ordered by
// lastMessageTimestamp descending. Conversations without activity go last;
// ties are broken by id.
func Summarize(convs []*contract.Conversation) []contract.ConversationSummary {
	out := make([]contract.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		if c == nil {
			continue
		}
		sum := contract.ConversationSummary{
			ID:                   c.ID,
			MessageCount:         len(c.Messages),
			LastMessageTimestamp: c.LastMessageTimestamp,
			OwnerName:            OwnerName(c),
		}
		if n := len(c.Messages); n > 0 {
			sum.LastMessage = preview(c.Messages[n-1].Text)
		}
		out = append(out, sum)
	}
	slices.SortStableFunc(out, func(a, b contract.ConversationSummary) int {
		switch {
		case a.LastMessageTimestamp == nil && b.LastMessageTimestamp == nil:
		case a.LastMessageTimestamp == nil:
			return 1
		case b.LastMessageTimestamp == nil:
			return -1
		default:
			if c := b.LastMessageTimestamp.Compare(*a.LastMessageTimestamp); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// OwnerName is the display name the conversation owner last used, or "".
func OwnerName(c *contract.Conversation) string {
	if c == nil {
		return ""
	}
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if m := c.Messages[i]; m.SenderID == c.ID && m.SenderName != "" {
			return m.SenderName
		}
	}
	return ""
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewLength-1]) + "…"
}
