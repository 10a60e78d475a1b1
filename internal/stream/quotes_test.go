package stream

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/northbeam/quotecache/internal/market"
	"github.com/northbeam/quotecache/internal/quote"
)

type stubQuoteProvider struct{}

func (stubQuoteProvider) Download(ctx context.Context, symbol, period, interval string, includePrepost bool) (market.RawFrame, error) {
	return market.RawFrame{Symbol: symbol, Bars: []market.Candle{{Time: 1, Close: 10, Volume: 1}}}, nil
}

func (stubQuoteProvider) Metadata(ctx context.Context, symbol string) market.Metadata {
	return market.Metadata{Name: symbol}
}

func TestRunQuotes_EmitsOnceThenSuppressesUnchangedTicks(t *testing.T) {
	svc := quote.New(stubQuoteProvider{}, time.Hour)

	var buf bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	RunQuotes(ctx, &buf, func() {}, []string{"AAPL"}, false, svc, 5*time.Millisecond)

	frames := strings.Count(buf.String(), "data: ")
	assert.Equal(t, 1, frames, "an unchanging quote group should only emit once across many ticks")
}
