// Package builder coalesces concurrent payload builds for the same cache
// key and falls back to stale data rather than erroring whenever any prior
// payload exists. Grounded on the teacher's use of mutex-guarded shared
// state around slow operations (internal/net/circuit.Breaker.Call), but the
// coalescing itself is golang.org/x/sync/singleflight — the idiomatic
// Go primitive for "exactly one in-flight call per key", which the teacher
// does not carry but the rest of the retrieved pack (via x/sync) supports.
package builder

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/northbeam/quotecache/internal/apierr"
	"github.com/northbeam/quotecache/internal/cache"
	"github.com/northbeam/quotecache/internal/market"
	"github.com/northbeam/quotecache/internal/obs"
)

// BuildFunc performs the actual transform pipeline for a key. It is
// supplied by the caller so this package stays independent of upstream and
// transform.
type BuildFunc func(ctx context.Context) (market.Payload, error)

// BuildFuncFactory produces the BuildFunc for a given key, letting a single
// long-lived collaborator (a hot-key refresher, a stream subscription) build
// whichever key it is currently handling without knowing how to construct
// BuildFuncs itself.
type BuildFuncFactory func(key market.Key) BuildFunc

// Builder coalesces concurrent builds via singleflight and bounds how long
// a waiter blocks before falling back to whatever the cache already holds.
type Builder struct {
	cache      *cache.Cache
	group      singleflight.Group
	waitBudget time.Duration
	metrics    *obs.Metrics

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// New builds a Builder backed by c, bounding waiter blocking to waitBudget
// (spec default ~12s).
func New(c *cache.Cache, waitBudget time.Duration, metrics *obs.Metrics) *Builder {
	return &Builder{
		cache:      c,
		waitBudget: waitBudget,
		metrics:    metrics,
		inflight:   make(map[string]struct{}),
	}
}

// Get returns the fresh cached payload for key if one exists; otherwise it
// claims (or joins) an in-flight build and waits up to the builder's wait
// budget. Waiters that time out, and callers whose build failed, fall back
// to any stale payload rather than erroring; TemporaryUnavailable is
// returned only when no payload has ever been cached for key. A key whose
// last build failed within the cooldown window is served straight from
// whatever stale payload exists, without attempting another build, so a
// failing upstream cannot be hammered on every foreground read.
func (b *Builder) Get(ctx context.Context, key market.Key, ttl time.Duration, build BuildFunc) (market.Payload, error) {
	if b.cache.Fresh(key, ttl) {
		payload, _, _ := b.cache.Peek(key)
		return payload, nil
	}

	if b.cache.InCooldown(key) {
		if payload, _, ok := b.cache.Peek(key); ok {
			return payload, nil
		}
	}

	keyStr := key.String()
	b.claim(keyStr)

	ch := b.group.DoChan(keyStr, func() (interface{}, error) {
		defer b.release(keyStr)

		payload, err := build(context.Background())
		if err != nil {
			b.cache.MarkFailure(key)
			if b.metrics != nil {
				b.metrics.BuildFailures.WithLabelValues(key.Timeframe).Inc()
			}
			return nil, err
		}
		b.cache.Set(key, payload)
		return payload, nil
	})

	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(market.Payload), nil
		}
		return b.fallback(key, res.Err)
	case <-time.After(b.waitBudget):
		return b.fallback(key, nil)
	case <-ctx.Done():
		return market.Payload{}, ctx.Err()
	}
}

func (b *Builder) claim(keyStr string) {
	b.inflightMu.Lock()
	defer b.inflightMu.Unlock()
	if _, already := b.inflight[keyStr]; already {
		return
	}
	b.inflight[keyStr] = struct{}{}
	if b.metrics != nil {
		b.metrics.BuildsInFlight.Inc()
	}
}

func (b *Builder) release(keyStr string) {
	b.inflightMu.Lock()
	defer b.inflightMu.Unlock()
	if _, ok := b.inflight[keyStr]; !ok {
		return
	}
	delete(b.inflight, keyStr)
	if b.metrics != nil {
		b.metrics.BuildsInFlight.Dec()
	}
}

// fallback returns any cached payload for key regardless of freshness. When
// none exists, a typed build error other than UpstreamFailure (e.g.
// NotFound) is surfaced as-is; upstream failures, untyped errors, and a
// plain wait timeout all become TemporaryUnavailable, wrapping the build
// error when there is one.
func (b *Builder) fallback(key market.Key, buildErr error) (market.Payload, error) {
	if payload, _, ok := b.cache.Peek(key); ok {
		return payload, nil
	}
	if e, ok := apierr.As(buildErr); ok && e.Kind != apierr.KindUpstreamFailure {
		return market.Payload{}, buildErr
	}
	return market.Payload{}, apierr.Wrap(apierr.KindTemporaryUnavailable, "no cached payload available for "+key.String(), buildErr)
}
