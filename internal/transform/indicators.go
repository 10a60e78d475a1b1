package transform

import "github.com/northbeam/quotecache/internal/market"

// sma computes the simple moving average over n closes. Bars before the
// window fills have no value and are omitted, per spec: leading warm-up is
// absent, never zero-padded.
func sma(candles []market.Candle, n int) []market.IndicatorPoint {
	if n <= 0 || len(candles) < n {
		return nil
	}
	out := make([]market.IndicatorPoint, 0, len(candles)-n+1)
	var sum float64
	for i, c := range candles {
		sum += c.Close
		if i >= n {
			sum -= candles[i-n].Close
		}
		if i >= n-1 {
			out = append(out, market.IndicatorPoint{Time: c.Time, Value: sum / float64(n)})
		}
	}
	return out
}

// ema computes a span-adjusted exponential moving average seeded by the
// first close, emitting a value for every bar.
func ema(candles []market.Candle, span int) []market.IndicatorPoint {
	if span <= 0 || len(candles) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1)
	out := make([]market.IndicatorPoint, 0, len(candles))
	value := candles[0].Close
	out = append(out, market.IndicatorPoint{Time: candles[0].Time, Value: value})
	for _, c := range candles[1:] {
		value = alpha*c.Close + (1-alpha)*value
		out = append(out, market.IndicatorPoint{Time: c.Time, Value: value})
	}
	return out
}

const rsiPeriod = 14

// rsi computes Wilder-style RSI: a simple average of the first rsiPeriod
// gains/losses seeds the series, then each subsequent value is smoothed by
// the Wilder recurrence. The first rsiPeriod bars have no value.
func rsi(candles []market.Candle) []market.IndicatorPoint {
	if len(candles) <= rsiPeriod {
		return nil
	}

	var gainSum, lossSum float64
	for i := 1; i <= rsiPeriod; i++ {
		delta := candles[i].Close - candles[i-1].Close
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum += -delta
		}
	}
	avgGain := gainSum / rsiPeriod
	avgLoss := lossSum / rsiPeriod

	out := make([]market.IndicatorPoint, 0, len(candles)-rsiPeriod)
	out = append(out, market.IndicatorPoint{Time: candles[rsiPeriod].Time, Value: rsiFromAverages(avgGain, avgLoss)})

	for i := rsiPeriod + 1; i < len(candles); i++ {
		delta := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(rsiPeriod-1) + gain) / rsiPeriod
		avgLoss = (avgLoss*(rsiPeriod-1) + loss) / rsiPeriod
		out = append(out, market.IndicatorPoint{Time: candles[i].Time, Value: rsiFromAverages(avgGain, avgLoss)})
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// vwap computes cumulative (typical price × volume) / cumulative volume.
// Bars with zero volume are treated as missing: they neither move the
// cumulative sums nor get their own point if no volume has accumulated yet.
func vwap(candles []market.Candle) []market.IndicatorPoint {
	out := make([]market.IndicatorPoint, 0, len(candles))
	var cumPV, cumVol float64
	for _, c := range candles {
		if c.Volume > 0 {
			typical := (c.High + c.Low + c.Close) / 3
			cumPV += typical * c.Volume
			cumVol += c.Volume
		}
		if cumVol > 0 {
			out = append(out, market.IndicatorPoint{Time: c.Time, Value: cumPV / cumVol})
		}
	}
	return out
}

// volumeBars mirrors candles' time grid with an up/down color hint derived
// from each bar's own open/close relationship.
func volumeBars(candles []market.Candle) []market.VolumeBar {
	out := make([]market.VolumeBar, 0, len(candles))
	for _, c := range candles {
		hint := "down"
		if c.Close >= c.Open {
			hint = "up"
		}
		out = append(out, market.VolumeBar{Time: c.Time, Value: c.Volume, ColorHint: hint})
	}
	return out
}

func computeIndicators(candles []market.Candle) market.Indicators {
	return market.Indicators{
		SMA20:  sma(candles, 20),
		SMA50:  sma(candles, 50),
		SMA200: sma(candles, 200),
		EMA12:  ema(candles, 12),
		EMA26:  ema(candles, 26),
		RSI14:  rsi(candles),
		VWAP:   vwap(candles),
	}
}
