// Package quote computes and caches lightweight quote groups: a
// sorted-symbol-list cache key, a short freshness window, and a stale flag
// when only an expired group is available. Grounded on the same
// single-flight-plus-cache shape as internal/builder, specialized to a
// value type (a map of quotes) the payload cache was never meant to hold.
package quote

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/northbeam/quotecache/internal/apierr"
	"github.com/northbeam/quotecache/internal/market"
	"github.com/northbeam/quotecache/internal/symbol"
	"github.com/northbeam/quotecache/internal/transform"
)

// Provider is the subset of upstream.Client a quote build needs.
type Provider interface {
	Download(ctx context.Context, symbol, period, interval string, includePrepost bool) (market.RawFrame, error)
	Metadata(ctx context.Context, symbol string) market.Metadata
}

// Group is the response shape for a batch of quotes.
type Group struct {
	Quotes map[string]market.Quote
	Stale  bool
}

type groupEntry struct {
	group   Group
	builtAt time.Time
}

// Service derives and caches quote groups.
type Service struct {
	provider Provider
	ttl      time.Duration

	mu      sync.RWMutex
	entries map[string]groupEntry
	group   singleflight.Group
}

// New builds a Service backed by provider with the given group TTL (spec
// default 15s).
func New(provider Provider, ttl time.Duration) *Service {
	return &Service{
		provider: provider,
		ttl:      ttl,
		entries:  make(map[string]groupEntry),
	}
}

// GroupKey dedupes symbols preserving first occurrence, sorts them for a
// stable cache key, and caps the batch at 50 per spec.md §6.
func GroupKey(symbols []string, ext bool) (string, []string) {
	seen := make(map[string]struct{}, len(symbols))
	deduped := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		deduped = append(deduped, s)
		if len(deduped) == 50 {
			break
		}
	}

	sortedKey := make([]string, len(deduped))
	copy(sortedKey, deduped)
	sort.Strings(sortedKey)

	key := strings.Join(sortedKey, ",")
	if ext {
		key += "|ext"
	}
	return key, deduped
}

// ParseGroupKey recovers the (symbols, ext) pair a GroupKey key was built
// from, so a hot-key refresher that only stored the key string can rebuild
// the group it names.
func ParseGroupKey(key string) ([]string, bool) {
	ext := strings.HasSuffix(key, "|ext")
	if ext {
		key = strings.TrimSuffix(key, "|ext")
	}
	if key == "" {
		return nil, ext
	}
	return strings.Split(key, ","), ext
}

// Get returns the quote group for symbols, building it if the cached group
// is stale. A live refresh that yields nothing falls back to any expired
// entry with Stale set; only when no group has ever been cached for this key
// is the build's error (UpstreamFailure) returned.
func (s *Service) Get(ctx context.Context, symbols []string, ext bool) (Group, error) {
	key, deduped := GroupKey(symbols, ext)
	if len(deduped) == 0 {
		return Group{Quotes: map[string]market.Quote{}}, nil
	}

	if fresh, ok := s.fresh(key); ok {
		return fresh, nil
	}

	resultCh := s.group.DoChan(key, func() (interface{}, error) {
		quotes := s.buildGroup(ctx, deduped, ext)
		if len(quotes) == 0 {
			return nil, apierr.New(apierr.KindUpstreamFailure, "no quotes could be derived for "+key)
		}
		group := Group{Quotes: quotes, Stale: false}
		s.mu.Lock()
		s.entries[key] = groupEntry{group: group, builtAt: time.Now()}
		s.mu.Unlock()
		return group, nil
	})

	select {
	case res := <-resultCh:
		if res.Err == nil {
			return res.Val.(Group), nil
		}
		return s.stale(key, res.Err)
	case <-ctx.Done():
		return Group{}, ctx.Err()
	}
}

// IsFresh reports whether the quote group for (symbols, ext) is already
// cached within the freshness window, without building it — used to decide
// whether a request qualifies for the rate-limit fresh-cache boost.
func (s *Service) IsFresh(symbols []string, ext bool) bool {
	key, deduped := GroupKey(symbols, ext)
	if len(deduped) == 0 {
		return false
	}
	_, ok := s.fresh(key)
	return ok
}

func (s *Service) fresh(key string) (Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || time.Since(e.builtAt) > s.ttl {
		return Group{}, false
	}
	return e.group, true
}

func (s *Service) stale(key string, buildErr error) (Group, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		stale := e.group
		stale.Stale = true
		return stale, nil
	}
	return Group{}, buildErr
}

func (s *Service) buildGroup(ctx context.Context, symbols []string, ext bool) map[string]market.Quote {
	quotes := make(map[string]market.Quote, len(symbols))
	for _, raw := range symbols {
		canon, err := symbol.Canonicalize(raw)
		if err != nil {
			continue
		}
		meta := s.provider.Metadata(ctx, canon)
		frame, err := s.provider.Download(ctx, canon, "1d", "1m", ext)
		if err != nil {
			continue
		}
		quotes[canon] = transform.DeriveQuote(canon, frame, meta, ext)
	}
	return quotes
}
