package httpapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/northbeam/quotecache/internal/apierr"
	"github.com/northbeam/quotecache/internal/config"
	"github.com/northbeam/quotecache/internal/market"
	"github.com/northbeam/quotecache/internal/symbol"
)

type searchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Type     string `json:"type"`
}

type searchEntry struct {
	results []searchResult
	builtAt time.Time
}

// searchCache is a short-TTL cache in front of a thin symbol lookup. Full
// fuzzy autocomplete is an external collaborator outside the core's scope;
// this only resolves a query that is itself already a plausible symbol.
type searchCache struct {
	mu      sync.Mutex
	entries map[string]searchEntry
	ttl     time.Duration
}

func newSearchCache(ttl time.Duration) *searchCache {
	return &searchCache{entries: make(map[string]searchEntry), ttl: ttl}
}

func (s *searchCache) get(query string) ([]searchResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[query]
	if !ok || time.Since(e.builtAt) > s.ttl {
		return nil, false
	}
	return e.results, true
}

func (s *searchCache) set(query string, results []searchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[query] = searchEntry{results: results, builtAt: time.Now()}
}

func (c *Core) Symbols(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))

	_, cachedFresh := c.search.get(query)
	res := c.limiter.Allow(clientID(r), config.RouteClassGeneral, cachedFresh)
	setRateLimitHeaders(w, res.Limit, res.Remaining)
	if !res.Allowed {
		w.Header().Set("Retry-After", "60")
		writeError(w, apierr.New(apierr.KindRateLimited, "general rate limit exceeded"))
		return
	}

	if query == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"query": query, "results": []searchResult{}})
		return
	}

	if cached, ok := c.search.get(query); ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"query": query, "results": cached})
		return
	}

	canon, err := symbol.Canonicalize(query)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"query": query, "error": "search_failed"})
		return
	}

	meta := c.upstream.Metadata(r.Context(), canon)
	results := []searchResult{}
	if meta.Name != "" || meta.Exchange != "" {
		results = append(results, searchResult{
			Symbol:   canon,
			Name:     meta.Name,
			Exchange: meta.Exchange,
			Type:     meta.QuoteType,
		})
	}
	c.search.set(query, results)
	writeJSON(w, http.StatusOK, map[string]interface{}{"query": query, "results": results})
}

func (c *Core) Prewarm(w http.ResponseWriter, r *http.Request) {
	res := c.limiter.Allow(clientID(r), config.RouteClassGeneral, false)
	setRateLimitHeaders(w, res.Limit, res.Remaining)
	if !res.Allowed {
		w.Header().Set("Retry-After", "60")
		writeError(w, apierr.New(apierr.KindRateLimited, "general rate limit exceeded"))
		return
	}

	raw := parseSymbolsCSV(r.URL.Query().Get("symbols"), maxPrewarmSymbols)
	tf := parseTimeframe(r.URL.Query().Get("tf"))
	ext := parseExt(r.URL.Query().Get("ext"))

	warmed := 0
	failed := []string{}
	for _, s := range raw {
		canon, err := symbol.Canonicalize(s)
		if err != nil {
			failed = append(failed, s)
			continue
		}
		key := market.Key{Symbol: canon, Timeframe: tf, Ext: ext}
		if _, _, err := c.getPayload(r.Context(), key); err != nil {
			failed = append(failed, canon)
			continue
		}
		warmed++
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"warmed":  warmed,
		"symbols": raw,
		"failed":  failed,
		"tf":      tf,
		"ext":     ext,
	})
}

// News delegates to an external collaborator that is not part of this
// core; the route exists only so clients have a stable contract to call.
func (c *Core) News(w http.ResponseWriter, r *http.Request) {
	writeError(w, apierr.New(apierr.KindNotFound, "news is served by an external collaborator, not this core"))
}

func (c *Core) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
