// Package ratelimit implements the fixed-minute-window request budget from
// spec.md §4.9: per (client, route-class) counters that roll at each minute
// boundary, with a boosted allowance for requests the cache can already
// answer fresh. Grounded on the teacher's internal/net/ratelimit.Limiter —
// same mutex-guarded map-of-counters shape — but the accounting itself
// (fixed minute windows, fresh-cache boost, reap-by-age) is this spec's, not
// the teacher's token-bucket semantics.
package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"github.com/northbeam/quotecache/internal/config"
	"github.com/northbeam/quotecache/internal/obs"
)

type bucket struct {
	windowStart int64
	count       int
}

// Result is what a caller needs to answer a request and to populate the
// X-RateLimit-* response headers.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter int
}

// Limiter tracks per-(client, class[, :fresh], minute) counters.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	cfg      config.RateLimitConfig
	metrics  *obs.Metrics
}

// New builds a Limiter from cfg.
func New(cfg config.RateLimitConfig, metrics *obs.Metrics) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		cfg:     cfg,
		metrics: metrics,
	}
}

// Allow charges one request against clientID's bucket for class, applying
// the fresh-cache boosted limit (and a distinct bucket key) when fresh is
// true so boosted traffic never touches the base budget.
func (l *Limiter) Allow(clientID string, class config.RouteClass, fresh bool) Result {
	now := time.Now()
	minute := now.Unix() / 60

	base, freshMul := l.classParams(class)
	limit := base
	suffix := ""
	if fresh {
		limit = base * freshMul
		suffix = ":fresh"
	}

	bucketKey := clientID + "|" + string(class) + suffix + "|" + strconv.FormatInt(minute, 10)

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buckets) > l.cfg.BucketSoftLimit {
		l.reap(minute)
	}

	b, ok := l.buckets[bucketKey]
	if !ok {
		b = &bucket{windowStart: minute}
		l.buckets[bucketKey] = b
	}

	if b.count >= limit {
		if l.metrics != nil {
			l.metrics.RateLimitReject.WithLabelValues(string(class)).Inc()
		}
		return Result{Allowed: false, Limit: limit, Remaining: 0, RetryAfter: 60}
	}

	b.count++
	return Result{Allowed: true, Limit: limit, Remaining: limit - b.count}
}

func (l *Limiter) classParams(class config.RouteClass) (base, freshMul int) {
	switch class {
	case config.RouteClassChartData:
		return l.cfg.ChartDataRPM, l.cfg.ChartDataFreshMul
	default:
		return l.cfg.GeneralRPM, l.cfg.GeneralFreshMul
	}
}

// reap discards buckets more than two windows old. Called only once the
// table has grown past the configured soft limit.
func (l *Limiter) reap(currentMinute int64) {
	for k, b := range l.buckets {
		if currentMinute-b.windowStart > 2 {
			delete(l.buckets, k)
		}
	}
}
