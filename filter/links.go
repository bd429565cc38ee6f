package filter

import (
	"context"
	"regexp"
	"strings"
)

const linkText = "${1}"

var markdownLinkRegex = regexp.MustCompile(`\(?\[([^\]]*)\]\([^)]*\)\)?`)

// LinkFilter reduces Markdown links to their text. Drafts keep the wording
// but never carry a URL the model made up.
type LinkFilter struct {
	buffer    string
	buffering bool
}

func (lf *LinkFilter) ProcessChunk(_ context.Context, chunk string) string {
	if chunk == "" { // end of stream
		lf.buffering = false
		ret := lf.buffer
		lf.buffer = ""
		return markdownLinkRegex.ReplaceAllString(ret, linkText)
	}
	if markdownLinkRegex.MatchString(chunk) {
		lf.buffering = false
		ret := lf.buffer + chunk
		lf.buffer = ""
		return markdownLinkRegex.ReplaceAllString(ret, linkText)
	}
	if strings.Contains(chunk, "[") {
		if lf.buffering { // a second [ starts a new candidate
			ret := lf.buffer
			lf.buffer = chunk
			return ret
		}
		lf.buffering = true
		lf.buffer += chunk
		return ""
	}
	if strings.Contains(chunk, "]") && !strings.Contains(chunk, "](") { // brackets only
		lf.buffering = false
		ret := lf.buffer
		lf.buffer = ""
		return ret + chunk
	}
	if strings.Contains(chunk, ")") && lf.buffering {
		ret := markdownLinkRegex.ReplaceAllString(lf.buffer+chunk, linkText)
		lf.buffering = false
		lf.buffer = ""
		return ret
	}
	if lf.buffering {
		lf.buffer += chunk
		return ""
	}
	return chunk
}
