package stream

import (
	"context"
	"io"
	"time"

	"github.com/northbeam/quotecache/internal/quote"
)

// RunQuotes drives one /api/stream/quotes subscription: periodic refresh,
// content-diff suppression, 30s keep-alive, same as RunData but over a
// quote.Group instead of a Payload delta.
func RunQuotes(ctx context.Context, w io.Writer, flush func(), symbols []string, ext bool, svc *quote.Service, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	lastSig := ""
	lastFrameAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			group, err := svc.Get(ctx, symbols, ext)
			if err != nil {
				maybeKeepalive(w, flush, &lastFrameAt)
				continue
			}
			sig := quoteGroupSignature(group.Quotes)
			if sig != lastSig {
				WriteData(w, group)
				flush()
				lastSig = sig
				lastFrameAt = time.Now()
				continue
			}
			maybeKeepalive(w, flush, &lastFrameAt)
		}
	}
}
