package transform

import (
	"math"
	"time"

	"github.com/northbeam/quotecache/internal/market"
)

const sparkTail = 30

// DeriveQuote builds a lightweight Quote from a raw 1-minute intraday frame
// and cached metadata. Session classification always follows the latest
// bar, never an earlier extended-hours bar, per spec.
func DeriveQuote(symbol string, frame market.RawFrame, meta market.Metadata, includePrepost bool) market.Quote {
	bars := sortAndDedup(frame.Bars)
	if len(bars) == 0 {
		return market.Quote{Symbol: symbol, Exchange: meta.Exchange, Name: meta.Name, Currency: meta.Currency}
	}

	spark := sparkline(bars)
	latest := bars[len(bars)-1]

	session := market.SessionRTH
	latestIsExt := false
	if includePrepost {
		session, latestIsExt = classifySession(latest.Time)
	}

	rthPrice := latestRTHClose(bars)
	if rthPrice == 0 {
		if meta.PrevClose != 0 {
			rthPrice = meta.PrevClose
		} else {
			rthPrice = latest.Close
		}
	}

	var extPrice float64
	if latestIsExt {
		extPrice = latest.Close
	}

	displayPrice := rthPrice
	if includePrepost && extPrice != 0 {
		displayPrice = extPrice
	}

	base := meta.PrevClose
	if math.Abs(meta.PrevClose-displayPrice) <= 1e-9 {
		base = previousSessionClose(bars, displayPrice)
	}

	change := displayPrice - base
	changePct := 0.0
	if base != 0 {
		changePct = change / base * 100
	}

	q := market.Quote{
		Symbol:       symbol,
		Price:        displayPrice,
		Change:       change,
		ChangePct:    changePct,
		Spark:        spark,
		Exchange:     meta.Exchange,
		Name:         meta.Name,
		Currency:     meta.Currency,
		Session:      session,
		LastTs:       latest.Time,
		RTHPrice:     rthPrice,
		RTHChange:    rthPrice - base,
	}
	if base != 0 {
		q.RTHChangePct = (rthPrice - base) / base * 100
	}
	if latestIsExt {
		q.ExtPrice = extPrice
		q.ExtChange = extPrice - rthPrice
		if rthPrice != 0 {
			q.ExtChangePct = (extPrice - rthPrice) / rthPrice * 100
		}
	}
	return q
}

func sparkline(bars []market.Candle) []float64 {
	start := 0
	if len(bars) > sparkTail {
		start = len(bars) - sparkTail
	}
	out := make([]float64, 0, len(bars)-start)
	for _, c := range bars[start:] {
		out = append(out, c.Close)
	}
	return out
}

// classifySession reports the session of a single timestamp and whether it
// is extended (pre- or post-market) rather than RTH.
func classifySession(t int64) (market.Session, bool) {
	if inRTH(t) {
		return market.SessionRTH, false
	}
	et := time.Unix(t, 0).In(eastern)
	h, m := et.Hour(), et.Minute()
	if h < 9 || (h == 9 && m < 30) {
		return market.SessionPre, true
	}
	return market.SessionPost, true
}

func latestRTHClose(bars []market.Candle) float64 {
	for i := len(bars) - 1; i >= 0; i-- {
		if inRTH(bars[i].Time) {
			return bars[i].Close
		}
	}
	return 0
}

// previousSessionClose approximates "the previous session's close" as the
// close immediately preceding the most recent bar, falling back to the
// display price itself when there is no earlier bar.
func previousSessionClose(bars []market.Candle, fallback float64) float64 {
	if len(bars) < 2 {
		return fallback
	}
	return bars[len(bars)-2].Close
}
