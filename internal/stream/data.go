package stream

import (
	"context"
	"io"
	"time"

	"github.com/northbeam/quotecache/internal/builder"
	"github.com/northbeam/quotecache/internal/cache"
	"github.com/northbeam/quotecache/internal/delta"
	"github.com/northbeam/quotecache/internal/hotset"
	"github.com/northbeam/quotecache/internal/market"
	"github.com/northbeam/quotecache/internal/obs"
)

// DataDeps bundles the collaborators a data subscription needs, all owned
// by the caller (httpapi) and shared across every subscription.
type DataDeps struct {
	Cache        *cache.Cache
	Builder      *builder.Builder
	Tracker      *hotset.Tracker[market.Key]
	TTLFor       func(timeframe string) time.Duration
	TickFor      func(timeframe string) time.Duration
	BuildFactory builder.BuildFuncFactory
	Metrics      *obs.Metrics
}

// RunData drives one /api/stream/data subscription until ctx is canceled
// (process shutdown or client disconnect, whichever the caller wires up).
// flush is called after every write so the transport pushes bytes
// immediately rather than buffering.
func RunData(ctx context.Context, w io.Writer, flush func(), key market.Key, since int64, deps DataDeps) {
	tick := deps.TickFor(key.Timeframe)
	ttl := deps.TTLFor(key.Timeframe)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	watermark := since
	lastSig := ""
	lastFrameAt := time.Now()
	failing := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deps.Tracker.Touch(key)

			payload, err := fetchPayload(ctx, deps, key, ttl)
			if err != nil {
				if !failing {
					WriteData(w, errorFrame{Error: err.Error(), Symbol: key.Symbol, Timeframe: key.Timeframe, Ext: key.Ext})
					flush()
					failing = true
				}
				maybeKeepalive(w, flush, &lastFrameAt)
				continue
			}
			failing = false

			d := delta.Project(payload, watermark)
			if deltaHasEntries(d) {
				sig := deltaSignature(d)
				if sig != lastSig {
					WriteData(w, d)
					flush()
					lastSig = sig
					lastFrameAt = time.Now()
					if d.LatestTime > watermark {
						watermark = d.LatestTime
					}
					continue
				}
			}
			maybeKeepalive(w, flush, &lastFrameAt)
		}
	}
}

func fetchPayload(ctx context.Context, deps DataDeps, key market.Key, ttl time.Duration) (market.Payload, error) {
	if payload, _, ok := deps.Cache.Peek(key); ok && deps.Cache.Fresh(key, ttl) {
		return payload, nil
	}
	buildCtx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()
	return deps.Builder.Get(buildCtx, key, ttl, deps.BuildFactory(key))
}

func maybeKeepalive(w io.Writer, flush func(), lastFrameAt *time.Time) {
	if time.Since(*lastFrameAt) >= keepAliveInterval*time.Second {
		WriteKeepalive(w)
		flush()
		*lastFrameAt = time.Now()
	}
}
