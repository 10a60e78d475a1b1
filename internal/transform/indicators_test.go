package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northbeam/quotecache/internal/market"
)

func seriesOfCloses(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{Time: int64(i * 60), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: float64(i + 1)}
	}
	return out
}

func TestSMA_OmitsWarmup(t *testing.T) {
	candles := seriesOfCloses(1, 2, 3, 4, 5)
	out := sma(candles, 3)
	require.Len(t, out, 3)
	assert.Equal(t, 2.0, out[0].Value) // avg(1,2,3)
	assert.Equal(t, 3.0, out[1].Value) // avg(2,3,4)
	assert.Equal(t, 4.0, out[2].Value) // avg(3,4,5)
}

func TestSMA_TooFewBarsReturnsNil(t *testing.T) {
	assert.Nil(t, sma(seriesOfCloses(1, 2), 5))
}

func TestEMA_SeededByFirstClose(t *testing.T) {
	candles := seriesOfCloses(10, 20, 20)
	out := ema(candles, 2)
	require.Len(t, out, 3)
	assert.Equal(t, 10.0, out[0].Value)
	assert.NotEqual(t, 10.0, out[1].Value)
}

func TestRSI_FirstPointAfterWarmup(t *testing.T) {
	closes := make([]float64, 0, 20)
	price := 100.0
	for i := 0; i < 20; i++ {
		price += 1
		closes = append(closes, price)
	}
	candles := seriesOfCloses(closes...)
	out := rsi(candles)
	require.Len(t, out, len(candles)-rsiPeriod)
	// A strictly rising series should have every average loss at zero.
	assert.Equal(t, 100.0, out[0].Value)
}

func TestRSI_TooShortReturnsNil(t *testing.T) {
	assert.Nil(t, rsi(seriesOfCloses(1, 2, 3)))
}

func TestVWAP_SkipsZeroVolumeBars(t *testing.T) {
	candles := []market.Candle{
		{Time: 0, Open: 10, High: 10, Low: 10, Close: 10, Volume: 0},
		{Time: 60, Open: 10, High: 12, Low: 10, Close: 11, Volume: 100},
	}
	out := vwap(candles)
	require.Len(t, out, 1)
	assert.Equal(t, int64(60), out[0].Time)
}

func TestVolumeBars_ColorHint(t *testing.T) {
	candles := []market.Candle{
		{Time: 0, Open: 10, Close: 9, Volume: 5},  // down
		{Time: 60, Open: 10, Close: 10, Volume: 5}, // equal closes up
	}
	out := volumeBars(candles)
	require.Len(t, out, 2)
	assert.Equal(t, "down", out[0].ColorHint)
	assert.Equal(t, "up", out[1].ColorHint)
}

func TestComputeIndicators_BundlesAllSeries(t *testing.T) {
	candles := seriesOfCloses(1, 2, 3, 4, 5, 6)
	ind := computeIndicators(candles)
	assert.NotNil(t, ind.EMA12)
	assert.NotNil(t, ind.VWAP)
	assert.Nil(t, ind.SMA200) // far too short a series for a 200-bar window
}
