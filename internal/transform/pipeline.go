// Package transform turns a raw upstream OHLCV frame into the canonical
// Payload the cache stores: column reduction, intraday outlier suppression,
// 4h resampling, session splitting, extended-hours outlier suppression,
// indicator computation, and quote derivation. Grounded on the teacher's
// internal/domain/scoring pipelines for the "stage functions composed by one
// orchestrator" shape, though the individual stages here are specific to
// this spec and have no direct teacher analogue.
package transform

import (
	"context"

	"github.com/northbeam/quotecache/internal/apierr"
	"github.com/northbeam/quotecache/internal/config"
	"github.com/northbeam/quotecache/internal/market"
)

// Downloader is the subset of upstream.Client the pipeline depends on. The
// narrow interface keeps this package free of any network/retry concern.
type Downloader interface {
	Download(ctx context.Context, symbol, period, interval string, includePrepost bool) (market.RawFrame, error)
}

// Build runs the full transform pipeline for one (symbol, timeframe, ext)
// request. is24x7 marks the symbol as session-less (crypto/futures); such
// symbols never get session-split ext candles regardless of the ext flag.
func Build(ctx context.Context, dl Downloader, symbol string, tf config.Timeframe, ext, is24x7 bool) (market.Payload, error) {
	raw, err := dl.Download(ctx, symbol, tf.UpstreamPeriod, tf.UpstreamInterval, ext)
	if err != nil {
		return market.Payload{}, err
	}

	bars := raw.Bars
	if len(bars) < tf.MinBars && tf.FallbackPeriod != "" {
		fb, err := dl.Download(ctx, symbol, tf.FallbackPeriod, tf.UpstreamInterval, ext)
		if err != nil {
			return market.Payload{}, err
		}
		if len(fb.Bars) == 0 && ext {
			fb, err = dl.Download(ctx, symbol, tf.FallbackPeriod, tf.UpstreamInterval, false)
			if err != nil {
				return market.Payload{}, err
			}
		}
		if len(fb.Bars) > 0 {
			bars = fb.Bars
		}
	}

	bars = sortAndDedup(bars)
	if len(bars) == 0 {
		return market.Payload{}, apierr.New(apierr.KindNotFound, "no data for "+symbol+" "+tf.Name)
	}

	sessionBound := !is24x7
	if tf.Intraday && sessionBound {
		bars = suppressIntradayOutliers(bars)
	}

	if tf.Name == "4h" {
		bars = resampleToFourHour(bars)
	}

	extEffective := ext && tf.Intraday && sessionBound && tf.Name != "4h"

	rth := bars
	extBars := []market.Candle{}
	if extEffective {
		rth, extBars = splitSessions(bars)
		extBars = suppressExtOutliers(extBars, rth)
	}

	return market.Payload{
		Symbol:       symbol,
		Timeframe:    tf.Name,
		ExtEffective: extEffective,
		Candles:      rth,
		ExtCandles:   extBars,
		Indicators:   computeIndicators(rth),
		Volume:       volumeBars(rth),
	}, nil
}
