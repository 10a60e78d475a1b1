package transform

import (
	"math"
	"sort"

	"github.com/northbeam/quotecache/internal/market"
)

// sortAndDedup orders bars ascending by time and, when two bars share a
// timestamp, keeps the later occurrence — mirroring the teacher's preference
// for "last write wins" when upstream responses overlap on a re-download.
func sortAndDedup(bars []market.Candle) []market.Candle {
	if len(bars) == 0 {
		return bars
	}
	sorted := make([]market.Candle, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	out := sorted[:0:0]
	for i, c := range sorted {
		if i+1 < len(sorted) && sorted[i+1].Time == c.Time {
			continue // a later bar with the same timestamp supersedes this one
		}
		out = append(out, c)
	}
	return out
}

const (
	outlierDeviationThreshold = 0.35
	outlierRangeThreshold     = 0.03
	outlierConfirmThreshold   = 0.12
	outlierWindow             = 48
)

// suppressIntradayOutliers drops single-bar bad prints from an intraday,
// session-bound series: a bar is dropped only when it deviates sharply from
// its rolling-median baseline, shows an abnormally wide range, and the
// following bar snaps back rather than confirming the move.
func suppressIntradayOutliers(bars []market.Candle) []market.Candle {
	if len(bars) < 2 {
		return bars
	}

	drop := make([]bool, len(bars))
	for i, c := range bars {
		baseline := rollingMedianClose(bars, i)
		if baseline == 0 {
			continue
		}
		deviation := math.Abs(c.Close-baseline) / baseline
		rangePct := (c.High - c.Low) / baseline
		if deviation <= outlierDeviationThreshold || rangePct <= outlierRangeThreshold {
			continue
		}

		confirmed := false
		if i+1 < len(bars) && c.Close != 0 {
			next := bars[i+1].Close
			if math.Abs(next-c.Close)/c.Close <= outlierConfirmThreshold {
				confirmed = true
			}
		}
		if !confirmed {
			drop[i] = true
		}
	}

	out := make([]market.Candle, 0, len(bars))
	for i, c := range bars {
		if !drop[i] {
			out = append(out, c)
		}
	}
	return out
}

// rollingMedianClose returns the median close over up to outlierWindow bars
// strictly preceding index i, expanding the window during warm-up. Index 0
// has no preceding data and returns 0 (suppression is skipped for it).
func rollingMedianClose(bars []market.Candle, i int) float64 {
	if i == 0 {
		return 0
	}
	start := i - outlierWindow
	if start < 0 {
		start = 0
	}
	window := make([]float64, 0, i-start)
	for _, c := range bars[start:i] {
		window = append(window, c.Close)
	}
	return median(window)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func interquartileRange(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	q1 := percentile(sorted, 0.25)
	q3 := percentile(sorted, 0.75)
	return q3 - q1
}

// percentile takes a pre-sorted slice and interpolates linearly, the common
// "type 7" quantile estimator.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
