// Package render turns a conversation into an HTML transcript.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/klipach/supportchat/auth"
	"github.com/klipach/supportchat/contract"
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

const transcriptTemplate = `<article class="transcript" data-conversation="{{.ID}}">
{{- range .Messages}}
<section class="message{{if .Own}} own{{end}}{{if .Pending}} pending{{end}}" data-sender="{{.SenderID}}">
<header><span class="sender">{{.SenderName}}</span> {{if .Pending}}<span class="status">pending</span>{{else}}<time datetime="{{.Datetime}}">{{.Display}}</time>{{end}}</header>
<div class="text">{{.HTML}}</div>
</section>
{{- else}}
<p class="empty">No messages yet.</p>
{{- end}}
</article>
`

var (
	tmpl   = template.Must(template.New("transcript").Parse(transcriptTemplate))
	policy = bluemonday.UGCPolicy()
)

type message struct {
	SenderID   string
	SenderName string
	Own        bool
	Pending    bool
	Datetime   string
	Display    string
	HTML       template.HTML
}

// Transcript renders conv as seen by viewer. Message text is Markdown and is
// sanitized after rendering.
func Transcript(conv *contract.Conversation, viewer auth.Identity) ([]byte, error) {
	data := struct {
		ID       string
		Messages []message
	}{}
	if conv != nil {
		data.ID = conv.ID
		for _, m := range conv.Messages {
			data.Messages = append(data.Messages, newMessage(m, viewer))
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render transcript: %w", err)
	}
	return buf.Bytes(), nil
}

func newMessage(m contract.Message, viewer auth.Identity) message {
	out := message{
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Own:        viewer.ID != "" && m.SenderID == viewer.ID,
		Pending:    m.Pending(),
		HTML:       Markdown(m.Text),
	}
	if !out.Pending {
		t := m.Time.UTC()
		out.Datetime = t.Format(time.RFC3339)
		out.Display = t.Format(time.RFC1123)
	}
	return out
}

// Markdown renders text and strips anything the UGC policy does not allow.
func Markdown(text string) template.HTML {
	unsafe := blackfriday.Run([]byte(text))
	return template.HTML(policy.SanitizeBytes(unsafe))
}
