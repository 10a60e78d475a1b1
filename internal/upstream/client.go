package upstream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/northbeam/quotecache/internal/apierr"
	"github.com/northbeam/quotecache/internal/config"
	"github.com/northbeam/quotecache/internal/market"
	"github.com/northbeam/quotecache/internal/obs"
)

// Client composes a Provider with bounded retries, a global throttle, and a
// circuit breaker — the same layering the teacher applies around its venue
// adapters via internal/net/ratelimit and internal/net/circuit, except the
// breaker here is the ecosystem github.com/sony/gobreaker rather than a
// hand-rolled state machine, and the throttle is golang.org/x/time/rate
// rather than a bespoke token bucket.
type Client struct {
	provider Provider
	cfg      config.UpstreamConfig
	throttle *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	log      zerolog.Logger
	metrics  *obs.Metrics

	metaMu    sync.RWMutex
	metaCache map[string]metaEntry
}

type metaEntry struct {
	meta     market.Metadata
	cachedAt time.Time
}

// NewClient builds a Client around provider using cfg's retry/timeout/
// throttle/breaker parameters.
func NewClient(provider Provider, cfg config.UpstreamConfig, logger zerolog.Logger, metrics *obs.Metrics) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("upstream breaker state change")
		},
	})

	c := &Client{
		provider:  provider,
		cfg:       cfg,
		throttle:  rate.NewLimiter(rate.Limit(cfg.ThrottleRPS), cfg.ThrottleBurst),
		breaker:   breaker,
		log:       logger,
		metrics:   metrics,
		metaCache: make(map[string]metaEntry),
	}
	if metrics != nil {
		metrics.BreakerState.WithLabelValues("upstream").Set(breakerStateValue(breaker.State()))
	}
	return c
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// Download performs up to cfg.MaxAttempts tries of provider.Download,
// backing off linearly between attempts, bounding every attempt by
// cfg.AttemptTimeout, and gating every attempt behind the global throttle
// and circuit breaker. It raises apierr.KindUpstreamFailure only when every
// attempt failed; an empty-but-successful frame is returned as-is.
func (c *Client) Download(ctx context.Context, symbol, period, interval string, includePrepost bool) (market.RawFrame, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.throttle.Wait(ctx); err != nil {
			return market.RawFrame{}, apierr.Wrap(apierr.KindUpstreamFailure, "throttle wait canceled", err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.provider.Download(attemptCtx, symbol, period, interval, includePrepost)
		})
		cancel()
		if c.metrics != nil {
			c.metrics.BreakerState.WithLabelValues("upstream").Set(breakerStateValue(c.breaker.State()))
		}

		if err == nil {
			return result.(market.RawFrame), nil
		}

		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) {
			// No point burning remaining attempts while the breaker is open.
			break
		}
		if attempt < c.cfg.MaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * c.cfg.BackoffPerTry):
			case <-ctx.Done():
				return market.RawFrame{}, apierr.Wrap(apierr.KindUpstreamFailure, "context canceled during backoff", ctx.Err())
			}
		}
	}

	return market.RawFrame{}, apierr.Wrap(apierr.KindUpstreamFailure, "all download retries exhausted for "+symbol, lastErr)
}

// Metadata returns cached metadata when present and within cfg.MetadataTTL,
// otherwise fetches fresh metadata. Upstream failures surface as a
// zero-value Metadata (the Provider contract already tolerates them), so
// Metadata itself never returns an error.
func (c *Client) Metadata(ctx context.Context, symbol string) market.Metadata {
	c.metaMu.RLock()
	entry, ok := c.metaCache[symbol]
	c.metaMu.RUnlock()
	if ok && time.Since(entry.cachedAt) < c.cfg.MetadataTTL {
		return entry.meta
	}

	meta, err := c.provider.Metadata(ctx, symbol)
	if err != nil {
		c.log.Debug().Str("symbol", symbol).Err(err).Msg("metadata fetch failed, serving blank")
		meta = market.Metadata{}
	}

	c.metaMu.Lock()
	c.metaCache[symbol] = metaEntry{meta: meta, cachedAt: time.Now()}
	c.metaMu.Unlock()

	return meta
}
