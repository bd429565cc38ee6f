// Package filter rewrites streamed model output chunk by chunk. Filters
// buffer text that may still turn into a match; an empty chunk marks the end
// of the stream and flushes whatever is held back.
package filter

import "context"

type Filter interface {
	ProcessChunk(ctx context.Context, chunk string) string
}

// Chain runs chunks through each filter in order.
type Chain []Filter

func (c Chain) ProcessChunk(ctx context.Context, chunk string) string {
	if chunk == "" {
		return c.flush(ctx)
	}
	for _, f := range c {
		chunk = f.ProcessChunk(ctx, chunk)
		if chunk == "" {
			return ""
		}
	}
	return chunk
}

func (c Chain) flush(ctx context.Context) string {
	var out string
	for _, f := range c {
		if out != "" {
			out = f.ProcessChunk(ctx, out)
		}
		out += f.ProcessChunk(ctx, "")
	}
	return out
}
