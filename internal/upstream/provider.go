// Package upstream talks to the rate-limited, occasionally flaky quote
// provider. It exposes bounded-retry downloads of raw OHLCV and of symbol
// metadata; every failure mode is reported as a typed apierr.Error so
// callers never have to sniff strings. Grounded on the teacher's
// infrastructure/providers/kraken.go HTTP-call shape, generalized from a
// single exchange adapter to a provider-agnostic interface per
// internal/provider/registry.go's seam.
package upstream

import (
	"context"

	"github.com/northbeam/quotecache/internal/market"
)

// Provider is the minimal surface a concrete upstream integration must
// implement. A single HTTP-backed implementation ships; the interface exists
// so a second provider could be registered without touching the transform
// pipeline or the builder, mirroring internal/providers/runtime's
// provider-keyed configuration tables.
type Provider interface {
	// Download fetches one symbol's raw OHLCV at the given upstream
	// (period, interval). It must return an empty RawFrame rather than an
	// error when the upstream legitimately has nothing to offer.
	Download(ctx context.Context, symbol, period, interval string, includePrepost bool) (market.RawFrame, error)

	// Metadata fetches exchange/quote-type/name/currency/prev-close for a
	// single symbol. Implementations tolerate upstream errors by returning
	// blank fields rather than propagating.
	Metadata(ctx context.Context, symbol string) (market.Metadata, error)
}
