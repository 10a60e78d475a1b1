// Package delta projects the suffix of a cached Payload at or after a
// client-supplied watermark. It is pure, stateless data manipulation with no
// direct teacher analogue — the closest shape in the teacher's codebase is
// the column-projection helper in infrastructure/providers/kraken.go, which
// this package generalizes from "slice to one symbol" to "slice to a time
// watermark across every series."
package delta

import "github.com/northbeam/quotecache/internal/market"

// Project filters every series in p to entries with time >= since and
// reports the maximum time observed across all of them (0 if none).
func Project(p market.Payload, since int64) market.Delta {
	candles := filterCandles(p.Candles, since)
	extCandles := filterCandles(p.ExtCandles, since)
	volume := filterVolume(p.Volume, since)
	indicators := market.Indicators{
		SMA20:  filterPoints(p.Indicators.SMA20, since),
		SMA50:  filterPoints(p.Indicators.SMA50, since),
		SMA200: filterPoints(p.Indicators.SMA200, since),
		EMA12:  filterPoints(p.Indicators.EMA12, since),
		EMA26:  filterPoints(p.Indicators.EMA26, since),
		RSI14:  filterPoints(p.Indicators.RSI14, since),
		VWAP:   filterPoints(p.Indicators.VWAP, since),
	}

	latest := maxCandleTime(candles)
	if t := maxCandleTime(extCandles); t > latest {
		latest = t
	}
	if t := maxVolumeTime(volume); t > latest {
		latest = t
	}
	for _, series := range [][]market.IndicatorPoint{
		indicators.SMA20, indicators.SMA50, indicators.SMA200,
		indicators.EMA12, indicators.EMA26, indicators.RSI14, indicators.VWAP,
	} {
		if t := maxPointTime(series); t > latest {
			latest = t
		}
	}

	return market.Delta{
		Symbol:     p.Symbol,
		Timeframe:  p.Timeframe,
		Ext:        p.ExtEffective,
		IsDelta:    true,
		Since:      since,
		LatestTime: latest,
		Candles:    candles,
		ExtCandles: extCandles,
		Indicators: indicators,
		Volume:     volume,
	}
}

func filterCandles(in []market.Candle, since int64) []market.Candle {
	out := make([]market.Candle, 0, len(in))
	for _, c := range in {
		if c.Time >= since {
			out = append(out, c)
		}
	}
	return out
}

func filterVolume(in []market.VolumeBar, since int64) []market.VolumeBar {
	out := make([]market.VolumeBar, 0, len(in))
	for _, v := range in {
		if v.Time >= since {
			out = append(out, v)
		}
	}
	return out
}

func filterPoints(in []market.IndicatorPoint, since int64) []market.IndicatorPoint {
	out := make([]market.IndicatorPoint, 0, len(in))
	for _, p := range in {
		if p.Time >= since {
			out = append(out, p)
		}
	}
	return out
}

func maxCandleTime(cs []market.Candle) int64 {
	var max int64
	for _, c := range cs {
		if c.Time > max {
			max = c.Time
		}
	}
	return max
}

func maxVolumeTime(vs []market.VolumeBar) int64 {
	var max int64
	for _, v := range vs {
		if v.Time > max {
			max = v.Time
		}
	}
	return max
}

func maxPointTime(ps []market.IndicatorPoint) int64 {
	var max int64
	for _, p := range ps {
		if p.Time > max {
			max = p.Time
		}
	}
	return max
}
