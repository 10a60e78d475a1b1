package config

import (
	"strings"
	"time"
)

// Timeframe is one of the discrete bar durations the service serves.
type Timeframe struct {
	Name string

	// UpstreamPeriod/UpstreamInterval are the (period, interval) pair passed
	// to the upstream client's download call.
	UpstreamPeriod   string
	UpstreamInterval string

	// FallbackPeriod is re-tried when the primary download returns fewer
	// than MinBars rows. Empty means no fallback exists.
	FallbackPeriod string

	MinBars int

	TTL        time.Duration
	StreamTick time.Duration

	// Intraday timeframes are eligible for outlier suppression and session
	// splitting; daily/weekly bars are not.
	Intraday bool
}

// timeframes is the static table keyed by lowercase name. Unknown names fall
// back to the 5m entry, per spec.md §3.
var timeframes = map[string]Timeframe{
	"1m": {
		Name: "1m", UpstreamPeriod: "1d", UpstreamInterval: "1m",
		FallbackPeriod: "5d", MinBars: 30,
		TTL: 20 * time.Second, StreamTick: 3 * time.Second, Intraday: true,
	},
	"5m": {
		Name: "5m", UpstreamPeriod: "5d", UpstreamInterval: "5m",
		FallbackPeriod: "1mo", MinBars: 50,
		TTL: 30 * time.Second, StreamTick: 5 * time.Second, Intraday: true,
	},
	"15m": {
		Name: "15m", UpstreamPeriod: "1mo", UpstreamInterval: "15m",
		FallbackPeriod: "3mo", MinBars: 50,
		TTL: 60 * time.Second, StreamTick: 8 * time.Second, Intraday: true,
	},
	"30m": {
		Name: "30m", UpstreamPeriod: "3mo", UpstreamInterval: "30m",
		FallbackPeriod: "6mo", MinBars: 50,
		TTL: 90 * time.Second, StreamTick: 12 * time.Second, Intraday: true,
	},
	"1h": {
		Name: "1h", UpstreamPeriod: "6mo", UpstreamInterval: "1h",
		FallbackPeriod: "1y", MinBars: 50,
		TTL: 120 * time.Second, StreamTick: 15 * time.Second, Intraday: true,
	},
	"4h": {
		Name: "4h", UpstreamPeriod: "6mo", UpstreamInterval: "1h",
		FallbackPeriod: "1y", MinBars: 50,
		TTL: 300 * time.Second, StreamTick: 30 * time.Second, Intraday: true,
	},
	"1d": {
		Name: "1d", UpstreamPeriod: "2y", UpstreamInterval: "1d",
		FallbackPeriod: "5y", MinBars: 100,
		TTL: 900 * time.Second, StreamTick: 30 * time.Second, Intraday: false,
	},
	"1w": {
		Name: "1w", UpstreamPeriod: "10y", UpstreamInterval: "1wk",
		MinBars: 50,
		TTL:     3600 * time.Second, StreamTick: 45 * time.Second, Intraday: false,
	},
}

const defaultTimeframeName = "5m"

// DefaultTTL is used for unknown/unlisted cache keys (e.g. quote groups get
// their own constant below; this one backstops anything else).
const DefaultTTL = 60 * time.Second

// QuoteTTL is the short freshness window for lightweight quote payloads.
const QuoteTTL = 15 * time.Second

// Lookup resolves a (possibly unknown, possibly mixed-case) timeframe name
// to its table entry, defaulting to 5m per spec.md §3.
func Lookup(name string) Timeframe {
	if tf, ok := timeframes[strings.ToLower(name)]; ok {
		return tf
	}
	return timeframes[defaultTimeframeName]
}

// Known reports whether name (already lowercased) names a table entry.
func Known(name string) bool {
	_, ok := timeframes[name]
	return ok
}

// All returns every configured timeframe, for prewarm/refresh sweeps that
// need to enumerate the table.
func All() []Timeframe {
	out := make([]Timeframe, 0, len(timeframes))
	for _, tf := range timeframes {
		out = append(out, tf)
	}
	return out
}
