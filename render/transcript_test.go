package render

import (
	"strings"
	"testing"
	"time"

	"github.com/klipach/supportchat/auth"
	"github.com/klipach/supportchat/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript(t *testing.T) {
	sent := time.Date(2024, 10, 6, 15, 45, 0, 0, time.UTC)
	conv := &contract.Conversation{
		ID: "U1",
		Messages: []contract.Message{
			{ID: "m1", SenderID: "U1", SenderName: "Ulla", Text: "hello **there**", Time: &sent},
			{ID: "m2", SenderID: "A1", SenderName: "<b>Admin</b>", Text: "on my way"},
		},
	}

	out, err := Transcript(conv, auth.Identity{ID: "U1"})
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, `data-conversation="U1"`)
	assert.Contains(t, html, `class="message own"`)
	assert.Contains(t, html, "<strong>there</strong>")
	assert.Contains(t, html, `<time datetime="2024-10-06T15:45:00Z">Sun, 06 Oct 2024 15:45:00 UTC</time>`)
	assert.Contains(t, html, `class="message pending"`)
	assert.Contains(t, html, `<span class="status">pending</span>`)
	assert.Contains(t, html, "&lt;b&gt;Admin&lt;/b&gt;")
}

func TestTranscriptEmpty(t *testing.T) {
	for _, conv := range []*contract.Conversation{nil, {ID: "U1"}} {
		out, err := Transcript(conv, auth.Identity{})
		require.NoError(t, err)
		assert.Contains(t, string(out), "No messages yet.")
	}
}

func TestMarkdownSanitizes(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		contains string
		excludes string
	}{
		{name: "script", text: "hi <script>alert(1)</script>", excludes: "<script>"},
		{name: "event handler", text: `<img src="x.png" onerror="alert(1)">`, excludes: "onerror"},
		{name: "emphasis", text: "*soon*", contains: "<em>soon</em>"},
		{name: "link", text: "[docs](https://example.com)", contains: `href="https://example.com"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(Markdown(tt.text))
			if tt.contains != "" {
				assert.Contains(t, got, tt.contains)
			}
			if tt.excludes != "" {
				assert.False(t, strings.Contains(got, tt.excludes), got)
			}
		})
	}
}
