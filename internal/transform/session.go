package transform

import (
	"time"

	"github.com/northbeam/quotecache/internal/market"
)

// eastern is loaded once; US equity session boundaries are always computed
// against it, even for symbols metadata places on another exchange — a
// deliberate simplification the spec calls out explicitly.
var eastern = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}

// inRTH reports whether the bar at unix epoch-seconds t falls within
// 09:30–16:00 ET inclusive of both boundary minutes.
func inRTH(t int64) bool {
	et := time.Unix(t, 0).In(eastern)
	h, m := et.Hour(), et.Minute()
	afterOpen := h > 9 || (h == 9 && m >= 30)
	beforeClose := h < 16 || (h == 16 && m == 0)
	return afterOpen && beforeClose
}

// splitSessions partitions an intraday series into RTH and extended-hours
// bars. Each bar goes to exactly one side by inRTH, so no ext bar can share
// a timestamp with an RTH bar and no separate overlap check is made.
func splitSessions(bars []market.Candle) (rth, ext []market.Candle) {
	rth = make([]market.Candle, 0, len(bars))
	ext = make([]market.Candle, 0, len(bars))
	for _, c := range bars {
		if inRTH(c.Time) {
			rth = append(rth, c)
			continue
		}
		ext = append(ext, c)
	}
	return rth, ext
}

const (
	extIQRMultiplier  = 4.0
	extMedianFallback = 4.0
	extPctThreshold   = 0.015
	extVolumeFraction = 0.10
	extReferenceWindow = 200
)

// suppressExtOutliers keeps an extended-hours bar only when its range is
// within the reference distribution built from the trailing RTH bars, or its
// volume is large enough to be credible on its own.
func suppressExtOutliers(ext, rth []market.Candle) []market.Candle {
	if len(ext) == 0 || len(rth) == 0 {
		return ext
	}

	window := rth
	if len(window) > extReferenceWindow {
		window = window[len(window)-extReferenceWindow:]
	}

	ranges := make([]float64, len(window))
	volumes := make([]float64, len(window))
	for i, c := range window {
		ranges[i] = c.High - c.Low
		volumes[i] = c.Volume
	}

	medianRange := median(ranges)
	iqr := interquartileRange(ranges)
	base := medianRange + extIQRMultiplier*iqr
	if iqr <= 0 {
		base = medianRange * extMedianFallback
	}

	lastRTHClose := window[len(window)-1].Close
	pctBound := extPctThreshold * lastRTHClose
	bound := base
	if pctBound > bound {
		bound = pctBound
	}

	refVolumeMedian := median(volumes)

	out := make([]market.Candle, 0, len(ext))
	for _, c := range ext {
		barRange := c.High - c.Low
		if barRange <= bound || c.Volume > extVolumeFraction*refVolumeMedian {
			out = append(out, c)
		}
	}
	return out
}
