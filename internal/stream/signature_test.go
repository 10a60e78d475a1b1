package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/northbeam/quotecache/internal/market"
)

func TestDeltaSignature_StableForIdenticalTails(t *testing.T) {
	d1 := market.Delta{LatestTime: 100, Candles: []market.Candle{{Time: 100, Close: 1}}}
	d2 := market.Delta{LatestTime: 100, Candles: []market.Candle{{Time: 100, Close: 1}}}
	assert.Equal(t, deltaSignature(d1), deltaSignature(d2))
}

func TestDeltaSignature_ChangesWithNewData(t *testing.T) {
	d1 := market.Delta{LatestTime: 100, Candles: []market.Candle{{Time: 100, Close: 1}}}
	d2 := market.Delta{LatestTime: 200, Candles: []market.Candle{{Time: 200, Close: 2}}}
	assert.NotEqual(t, deltaSignature(d1), deltaSignature(d2))
}

func TestDeltaSignature_OnlyConsidersTailEntries(t *testing.T) {
	long := make([]market.Candle, 10)
	for i := range long {
		long[i] = market.Candle{Time: int64(i), Close: float64(i)}
	}
	changedHead := make([]market.Candle, len(long))
	copy(changedHead, long)
	changedHead[0].Close = 999 // outside the tail window

	d1 := market.Delta{Candles: long}
	d2 := market.Delta{Candles: changedHead}
	assert.Equal(t, deltaSignature(d1), deltaSignature(d2))
}

func TestDeltaHasEntries(t *testing.T) {
	assert.False(t, deltaHasEntries(market.Delta{}))
	assert.True(t, deltaHasEntries(market.Delta{Candles: []market.Candle{{Time: 1}}}))
	assert.True(t, deltaHasEntries(market.Delta{Indicators: market.Indicators{RSI14: []market.IndicatorPoint{{Time: 1}}}}))
}

func TestQuoteGroupSignature_ChangesWithPrice(t *testing.T) {
	g1 := map[string]market.Quote{"AAPL": {Price: 100}}
	g2 := map[string]market.Quote{"AAPL": {Price: 101}}
	assert.NotEqual(t, quoteGroupSignature(g1), quoteGroupSignature(g2))
}
