package upstream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northbeam/quotecache/internal/apierr"
	"github.com/northbeam/quotecache/internal/config"
	"github.com/northbeam/quotecache/internal/market"
)

type stubProvider struct {
	attempts    int32
	failCount   int32
	metaErr     error
	downloadErr error
}

func (s *stubProvider) Download(ctx context.Context, symbol, period, interval string, includePrepost bool) (market.RawFrame, error) {
	n := atomic.AddInt32(&s.attempts, 1)
	if n <= s.failCount {
		return market.RawFrame{}, errors.New("transient failure")
	}
	return market.RawFrame{Symbol: symbol, Bars: []market.Candle{{Time: 1, Close: 10}}}, nil
}

func (s *stubProvider) Metadata(ctx context.Context, symbol string) (market.Metadata, error) {
	if s.metaErr != nil {
		return market.Metadata{}, s.metaErr
	}
	return market.Metadata{Name: symbol}, nil
}

func testUpstreamConfig() config.UpstreamConfig {
	return config.UpstreamConfig{
		MaxAttempts:     3,
		AttemptTimeout:  time.Second,
		BackoffPerTry:   time.Millisecond,
		ThrottleRPS:     1000,
		ThrottleBurst:   1000,
		MetadataTTL:     time.Minute,
		BreakerFailures: 100,
		BreakerOpenFor:  time.Second,
	}
}

func TestClient_Download_RetriesThenSucceeds(t *testing.T) {
	p := &stubProvider{failCount: 2}
	c := NewClient(p, testUpstreamConfig(), zerolog.Nop(), nil)

	frame, err := c.Download(context.Background(), "EX", "1d", "1m", false)
	require.NoError(t, err)
	assert.Equal(t, "EX", frame.Symbol)
	assert.Equal(t, int32(3), atomic.LoadInt32(&p.attempts))
}

func TestClient_Download_ExhaustsRetriesAndWrapsError(t *testing.T) {
	p := &stubProvider{failCount: 100}
	cfg := testUpstreamConfig()
	c := NewClient(p, cfg, zerolog.Nop(), nil)

	_, err := c.Download(context.Background(), "EX", "1d", "1m", false)
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindUpstreamFailure, apiErr.Kind)
	assert.Equal(t, int32(cfg.MaxAttempts), atomic.LoadInt32(&p.attempts))
}

func TestClient_Metadata_ToleratesProviderErrors(t *testing.T) {
	p := &stubProvider{metaErr: errors.New("not found")}
	c := NewClient(p, testUpstreamConfig(), zerolog.Nop(), nil)

	meta := c.Metadata(context.Background(), "EX")
	assert.Equal(t, market.Metadata{}, meta, "a metadata failure should surface as a blank value, never an error")
}

func TestClient_Metadata_CachesWithinTTL(t *testing.T) {
	p := &stubProvider{}
	c := NewClient(p, testUpstreamConfig(), zerolog.Nop(), nil)

	first := c.Metadata(context.Background(), "EX")
	p.metaErr = errors.New("now broken")
	second := c.Metadata(context.Background(), "EX")

	assert.Equal(t, first, second, "a cached metadata entry should be served without re-fetching within its TTL")
}

func TestBreakerStateValue(t *testing.T) {
	assert.Equal(t, 0.0, breakerStateValue(gobreaker.StateClosed))
	assert.Equal(t, 1.0, breakerStateValue(gobreaker.StateHalfOpen))
	assert.Equal(t, 2.0, breakerStateValue(gobreaker.StateOpen))
}
