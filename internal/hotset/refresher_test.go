package hotset

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/northbeam/quotecache/internal/builder"
	"github.com/northbeam/quotecache/internal/cache"
	"github.com/northbeam/quotecache/internal/market"
)

func TestRefresher_RefreshesHotKeysOnTick(t *testing.T) {
	c := cache.New(time.Minute, nil)
	b := builder.New(c, time.Second, nil)
	tr := New[market.Key](time.Minute)

	key := market.Key{Symbol: "EX", Timeframe: "5m"}
	tr.Touch(key)

	var builds int32
	refreshOne := func(ctx context.Context, k market.Key) error {
		if c.Fresh(k, time.Millisecond) {
			return nil
		}
		build := func(ctx context.Context) (market.Payload, error) {
			atomic.AddInt32(&builds, 1)
			return market.Payload{Symbol: k.Symbol}, nil
		}
		_, err := b.Get(ctx, k, time.Millisecond, build)
		return err
	}

	r := NewRefresher(tr, 5*time.Millisecond, time.Second, refreshOne, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	assert.GreaterOrEqual(t, atomic.LoadInt32(&builds), int32(1))
}

func TestRefresher_SkipsKeysThatAreStillFresh(t *testing.T) {
	c := cache.New(time.Minute, nil)
	b := builder.New(c, time.Second, nil)
	tr := New[market.Key](time.Minute)

	key := market.Key{Symbol: "EX", Timeframe: "5m"}
	c.Set(key, market.Payload{Symbol: "EX"})
	tr.Touch(key)

	var builds int32
	refreshOne := func(ctx context.Context, k market.Key) error {
		if c.Fresh(k, time.Hour) {
			return nil
		}
		build := func(ctx context.Context) (market.Payload, error) {
			atomic.AddInt32(&builds, 1)
			return market.Payload{Symbol: k.Symbol}, nil
		}
		_, err := b.Get(ctx, k, time.Hour, build)
		return err
	}

	r := NewRefresher(tr, 5*time.Millisecond, time.Second, refreshOne, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	assert.Zero(t, atomic.LoadInt32(&builds), "a fresh key should never be rebuilt in the background")
}

func TestRefresher_SupportsStringKeys(t *testing.T) {
	tr := New[string](time.Minute)
	tr.Touch("AAPL,MSFT")

	var calls int32
	refreshOne := func(ctx context.Context, key string) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}

	r := NewRefresher(tr, 5*time.Millisecond, time.Second, refreshOne, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}
