// Package market holds the wire-level data types shared by every layer of
// the cache/stream core: candles, indicator series, volume bars, the
// assembled Payload, and the lightweight Quote. Nothing in this package
// talks to the network, the cache, or the clock — it is pure data.
package market

// Candle is one OHLCV bar. Time is epoch seconds.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// IndicatorPoint is one sample of a derived indicator series.
type IndicatorPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// VolumeBar mirrors a Candle's time grid with a signed color hint so chart
// clients can paint up/down volume without recomputing it.
type VolumeBar struct {
	Time      int64   `json:"time"`
	Value     float64 `json:"value"`
	ColorHint string  `json:"color_hint"` // "up" or "down"
}

// Indicators bundles every derived series keyed by name.
type Indicators struct {
	SMA20  []IndicatorPoint `json:"sma20,omitempty"`
	SMA50  []IndicatorPoint `json:"sma50,omitempty"`
	SMA200 []IndicatorPoint `json:"sma200,omitempty"`
	EMA12  []IndicatorPoint `json:"ema12,omitempty"`
	EMA26  []IndicatorPoint `json:"ema26,omitempty"`
	RSI14  []IndicatorPoint `json:"rsi14,omitempty"`
	VWAP   []IndicatorPoint `json:"vwap,omitempty"`
}

// Payload is the canonical server-side snapshot for one (symbol, timeframe,
// ext) key. A build replaces the cache entry atomically; readers never see a
// partially-updated Payload.
type Payload struct {
	Symbol      string     `json:"symbol"`
	Timeframe   string     `json:"timeframe"`
	ExtEffective bool      `json:"ext"`
	Candles     []Candle   `json:"candles"`
	ExtCandles  []Candle   `json:"ext_candles"`
	Indicators  Indicators `json:"indicators"`
	Volume      []VolumeBar `json:"volume"`
	BuiltAt     int64      `json:"-"`
}

// Delta is the suffix of a Payload whose entries have time >= Since.
type Delta struct {
	Symbol     string     `json:"symbol"`
	Timeframe  string     `json:"timeframe"`
	Ext        bool       `json:"ext"`
	IsDelta    bool       `json:"delta"`
	Since      int64      `json:"since"`
	LatestTime int64      `json:"latest_time"`
	Candles    []Candle   `json:"candles"`
	ExtCandles []Candle   `json:"ext_candles"`
	Indicators Indicators `json:"indicators"`
	Volume     []VolumeBar `json:"volume"`
}

// Session classifies the bar a Quote was derived from.
type Session string

const (
	SessionRTH  Session = "rth"
	SessionPre  Session = "pre"
	SessionPost Session = "post"
)

// Quote is the lightweight last-price view used by watchlists and tickers.
type Quote struct {
	Symbol       string    `json:"symbol"`
	Price        float64   `json:"price"`
	Change       float64   `json:"change"`
	ChangePct    float64   `json:"change_pct"`
	Spark        []float64 `json:"spark"`
	Exchange     string    `json:"exchange"`
	Name         string    `json:"name"`
	Currency     string    `json:"currency"`
	Session      Session   `json:"session"`
	LastTs       int64     `json:"last_ts"`
	RTHPrice     float64   `json:"rth_price"`
	ExtPrice     float64   `json:"ext_price,omitempty"`
	ExtChange    float64   `json:"ext_change,omitempty"`
	ExtChangePct float64   `json:"ext_change_pct,omitempty"`
	RTHChange    float64   `json:"rth_change"`
	RTHChangePct float64   `json:"rth_change_pct"`
}

// Metadata is upstream-supplied instrument metadata, cached with a long TTL.
type Metadata struct {
	Exchange  string
	QuoteType string
	Name      string
	Currency  string
	PrevClose float64
}

// RawFrame is the unprocessed OHLCV series returned by the upstream client.
type RawFrame struct {
	Symbol string
	Bars   []Candle
}

// Key identifies one cached payload: a symbol, a timeframe, and whether
// extended-hours splitting was requested.
type Key struct {
	Symbol    string
	Timeframe string
	Ext       bool
}

// String renders the key the way cache keys and log fields want it.
func (k Key) String() string {
	if k.Ext {
		return k.Symbol + ":" + k.Timeframe + ":ext"
	}
	return k.Symbol + ":" + k.Timeframe
}
