package stream

import (
	"encoding/json"

	"github.com/northbeam/quotecache/internal/market"
)

const signatureTail = 3

// deltaSignature builds a compact, comparable signature from the tail
// entries of every series in d plus its latest_time, so the engine can
// suppress ticks where nothing actually changed.
func deltaSignature(d market.Delta) string {
	tail := struct {
		Latest     int64
		Candles    []market.Candle
		ExtCandles []market.Candle
		Volume     []market.VolumeBar
		Indicators [][]market.IndicatorPoint
	}{
		Latest:     d.LatestTime,
		Candles:    tailCandles(d.Candles),
		ExtCandles: tailCandles(d.ExtCandles),
		Volume:     tailVolume(d.Volume),
		Indicators: [][]market.IndicatorPoint{
			tailPoints(d.Indicators.SMA20), tailPoints(d.Indicators.SMA50), tailPoints(d.Indicators.SMA200),
			tailPoints(d.Indicators.EMA12), tailPoints(d.Indicators.EMA26), tailPoints(d.Indicators.RSI14),
			tailPoints(d.Indicators.VWAP),
		},
	}
	b, _ := json.Marshal(tail)
	return string(b)
}

func tailPoints(ps []market.IndicatorPoint) []market.IndicatorPoint {
	if len(ps) <= signatureTail {
		return ps
	}
	return ps[len(ps)-signatureTail:]
}

func tailCandles(cs []market.Candle) []market.Candle {
	if len(cs) <= signatureTail {
		return cs
	}
	return cs[len(cs)-signatureTail:]
}

func tailVolume(vs []market.VolumeBar) []market.VolumeBar {
	if len(vs) <= signatureTail {
		return vs
	}
	return vs[len(vs)-signatureTail:]
}

func deltaHasEntries(d market.Delta) bool {
	return len(d.Candles) > 0 || len(d.ExtCandles) > 0 || len(d.Volume) > 0 ||
		len(d.Indicators.SMA20) > 0 || len(d.Indicators.SMA50) > 0 || len(d.Indicators.SMA200) > 0 ||
		len(d.Indicators.EMA12) > 0 || len(d.Indicators.EMA26) > 0 || len(d.Indicators.RSI14) > 0 ||
		len(d.Indicators.VWAP) > 0
}

// quoteGroupSignature is the analogous signature for a quote group.
func quoteGroupSignature(quotes map[string]market.Quote) string {
	b, _ := json.Marshal(quotes)
	return string(b)
}
