// Package httpapi is the request surface: gorilla/mux routing, middleware,
// and the handlers that parse inputs, drive the cache/builder/stream core,
// and shape responses. Grounded on the teacher's
// internal/interfaces/http/server.go (router setup, middleware chain,
// graceful start/shutdown), generalized from its read-only
// candidates/explain/regime routes to this spec's data/delta/stream/quote
// contracts.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/northbeam/quotecache/internal/builder"
	"github.com/northbeam/quotecache/internal/cache"
	"github.com/northbeam/quotecache/internal/config"
	"github.com/northbeam/quotecache/internal/hotset"
	"github.com/northbeam/quotecache/internal/market"
	"github.com/northbeam/quotecache/internal/obs"
	"github.com/northbeam/quotecache/internal/quote"
	"github.com/northbeam/quotecache/internal/ratelimit"
	"github.com/northbeam/quotecache/internal/symbol"
	"github.com/northbeam/quotecache/internal/transform"
	"github.com/northbeam/quotecache/internal/upstream"
)

// Core wires together every component from the cache/stream core and
// exposes the handler methods the router binds to routes.
type Core struct {
	cfg          config.Config
	log          zerolog.Logger
	metrics      *obs.Metrics
	registry     *prometheus.Registry
	upstream     *upstream.Client
	cache        *cache.Cache
	builder      *builder.Builder
	tracker      *hotset.Tracker[market.Key]
	quoteTracker *hotset.Tracker[string]
	quotes       *quote.Service
	limiter      *ratelimit.Limiter
	search       *searchCache

	startedAt time.Time

	// stopCtx is the process-wide shutdown context handed to StartBackground.
	// Stream handlers merge it with their own request context so an open
	// subscription ends at shutdown rather than only on client disconnect.
	stopCtx context.Context
}

// NewCore builds a fully wired Core from cfg. registry backs the
// /api/metrics endpoint and must be the same registry metrics was
// registered against.
func NewCore(cfg config.Config, log zerolog.Logger, metrics *obs.Metrics, registry *prometheus.Registry) *Core {
	provider := upstream.NewHTTPProvider(cfg.UpstreamURL, &http.Client{})
	uc := upstream.NewClient(provider, cfg.Upstream, log, metrics)
	c := cache.New(cfg.Cache.CooldownWindow, metrics)
	b := builder.New(c, cfg.Cache.BuildWaitBudget, metrics)

	return &Core{
		cfg:          cfg,
		log:          log,
		metrics:      metrics,
		registry:     registry,
		upstream:     uc,
		cache:        c,
		builder:      b,
		tracker:      hotset.New[market.Key](cfg.Cache.HotWindow),
		quoteTracker: hotset.New[string](cfg.Cache.HotWindow),
		quotes:       quote.New(uc, config.QuoteTTL),
		limiter:      ratelimit.New(cfg.RateLimit, metrics),
		search:       newSearchCache(5 * time.Minute),
		startedAt:    time.Now(),
		stopCtx:      context.Background(),
	}
}

// buildFactory produces the BuildFunc for a payload cache key, shared by
// foreground reads, the single-flight builder, and the hot-key refresher.
func (c *Core) buildFactory(key market.Key) builder.BuildFunc {
	tf := config.Lookup(key.Timeframe)
	return func(ctx context.Context) (market.Payload, error) {
		meta := c.upstream.Metadata(ctx, key.Symbol)
		is24x7 := symbol.Is24x7(key.Symbol, meta)
		return transform.Build(ctx, c.upstream, key.Symbol, tf, key.Ext, is24x7)
	}
}

func ttlForTimeframe(name string) time.Duration {
	return config.Lookup(name).TTL
}

func tickForTimeframe(name string) time.Duration {
	return config.Lookup(name).StreamTick
}

// refreshPayload is the hot-key refresher's RefreshFunc for the payload
// cache: a no-op when the entry is already fresh, otherwise the same build
// path a foreground read would take.
func (c *Core) refreshPayload(ctx context.Context, key market.Key) error {
	ttl := ttlForTimeframe(key.Timeframe)
	if c.cache.Fresh(key, ttl) {
		return nil
	}
	_, err := c.builder.Get(ctx, key, ttl, c.buildFactory(key))
	return err
}

// refreshQuoteGroup is the hot-key refresher's RefreshFunc for quote
// groups: key is whatever quote.GroupKey produced when a request last
// touched this group, recovered back into its (symbols, ext) pair.
func (c *Core) refreshQuoteGroup(ctx context.Context, key string) error {
	symbols, ext := quote.ParseGroupKey(key)
	if len(symbols) == 0 {
		return nil
	}
	if c.quotes.IsFresh(symbols, ext) {
		return nil
	}
	_, err := c.quotes.Get(ctx, symbols, ext)
	return err
}

// StartBackground launches the hot-key refreshers for the payload cache and
// for quote groups, and records ctx as the process-wide stop signal so
// stream handlers can merge it into their own subscription contexts. It
// runs until ctx is canceled.
func (c *Core) StartBackground(ctx context.Context) {
	c.stopCtx = ctx

	dataRefresher := hotset.NewRefresher(
		c.tracker, c.cfg.Cache.RefreshTick, c.cfg.Cache.BuildWaitBudget,
		c.refreshPayload, c.log,
	)
	go dataRefresher.Run(ctx)

	quoteRefresher := hotset.NewRefresher(
		c.quoteTracker, c.cfg.Cache.RefreshTick, config.QuoteTTL,
		c.refreshQuoteGroup, c.log,
	)
	go quoteRefresher.Run(ctx)
}

// StreamContext derives a context for one stream subscription that ends
// when either the request itself ends (client disconnect) or the
// process-wide stop context fires (graceful shutdown), whichever is first.
func (c *Core) StreamContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := c.stopCtx
	go func() {
		select {
		case <-stop.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// getPayload is the shared path behind get_payload/get_delta/prewarm: peek
// fresh cache, else single-flight build with stale-on-failure fallback.
func (c *Core) getPayload(ctx context.Context, key market.Key) (market.Payload, bool, error) {
	ttl := ttlForTimeframe(key.Timeframe)
	wasFresh := c.cache.Fresh(key, ttl)
	c.tracker.Touch(key)

	buildCtx, cancel := context.WithTimeout(ctx, c.cfg.Cache.BuildWaitBudget)
	defer cancel()
	payload, err := c.builder.Get(buildCtx, key, ttl, c.buildFactory(key))
	return payload, wasFresh, err
}

// Warm forces a payload build for key, the same path Prewarm drives per
// symbol, exposed for the standalone warm command.
func (c *Core) Warm(ctx context.Context, key market.Key) error {
	_, _, err := c.getPayload(ctx, key)
	return err
}
