package filter

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/klipach/supportchat/log"
)

const maxPlaceholderLength = 32

var placeholderRegex = regexp.MustCompile(`\{([A-Za-z_]+)\}`)

// PlaceholderFilter replaces {name} tokens with Values[name]. Unknown
// placeholders are left as they are.
type PlaceholderFilter struct {
	Values map[string]string
	buffer string
}

func (pf *PlaceholderFilter) ProcessChunk(ctx context.Context, chunk string) string {
	if chunk == "" { // end of stream
		ret := pf.buffer
		pf.buffer = ""
		return pf.replace(ctx, ret)
	}
	text := pf.buffer + chunk
	pf.buffer = ""
	// hold back an unterminated placeholder until its closing brace arrives
	if i := strings.LastIndex(text, "{"); i >= 0 && !strings.Contains(text[i:], "}") && len(text)-i <= maxPlaceholderLength {
		pf.buffer = text[i:]
		text = text[:i]
	}
	return pf.replace(ctx, text)
}

func (pf *PlaceholderFilter) replace(ctx context.Context, text string) string {
	return placeholderRegex.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.ToLower(match[1 : len(match)-1])
		if v, ok := pf.Values[name]; ok {
			return v
		}
		log.LoggerFromContext(ctx).Info("unknown placeholder", slog.String("placeholder", match))
		return match
	})
}
