package hotset

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RefreshFunc rebuilds whatever key identifies — a payload cache entry, a
// quote group, anything with its own freshness/build logic — and reports
// only whether the attempt failed, for logging. The closure owns deciding
// whether a rebuild is even necessary (e.g. skip if already fresh).
type RefreshFunc[K comparable] func(ctx context.Context, key K) error

// Refresher is the single periodic task that keeps hot keys warm. Spec §4.6
// and §9 are explicit that this is one task scanning a table, not one
// goroutine per key, so upstream load stays bounded regardless of how many
// keys are hot. Generic over K so the same scanning loop drives both the
// payload-cache refresher and the quote-group refresher.
type Refresher[K comparable] struct {
	tracker      *Tracker[K]
	tick         time.Duration
	buildTimeout time.Duration
	refreshOne   RefreshFunc[K]
	log          zerolog.Logger
}

// NewRefresher builds a Refresher. buildTimeout bounds each individual key's
// background rebuild; tick is the scan interval (spec default 5s).
func NewRefresher[K comparable](tracker *Tracker[K], tick, buildTimeout time.Duration, refreshOne RefreshFunc[K], log zerolog.Logger) *Refresher[K] {
	return &Refresher[K]{
		tracker:      tracker,
		tick:         tick,
		buildTimeout: buildTimeout,
		refreshOne:   refreshOne,
		log:          log,
	}
}

// Run scans the hot-key table every tick until ctx is canceled.
func (r *Refresher[K]) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshOnce(ctx)
		}
	}
}

func (r *Refresher[K]) refreshOnce(context.Context) {
	for _, key := range r.tracker.Hot() {
		r.refreshKey(key)
	}
}

func (r *Refresher[K]) refreshKey(key K) {
	ctx, cancel := context.WithTimeout(context.Background(), r.buildTimeout)
	defer cancel()

	if err := r.refreshOne(ctx, key); err != nil {
		r.log.Debug().Interface("key", key).Err(err).Msg("hot-key refresh did not complete")
	}
}
