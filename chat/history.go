package chat

import (
	"github.com/klipach/supportchat/contract"
	"github.com/tmc/langchaingo/llms"
)

// History turns a transcript into LLM chat history. Messages from the
// conversation owner are human turns; everything else was written by an
// agent and becomes an AI turn.
func History(conv *contract.Conversation) []llms.MessageContent {
	var history []llms.MessageContent
	if conv == nil {
		return history
	}
	for _, m := range conv.Messages {
		if m.Text == "" {
			continue
		}
		if m.SenderID == conv.ID {
			history = append(history, llms.TextParts(llms.ChatMessageTypeHuman, m.Text))
		} else {
			history = append(history, llms.TextParts(llms.ChatMessageTypeAI, m.Text))
		}
	}
	return history
}
