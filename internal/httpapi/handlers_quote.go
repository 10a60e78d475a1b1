package httpapi

import (
	"net/http"
	"time"

	"github.com/northbeam/quotecache/internal/apierr"
	"github.com/northbeam/quotecache/internal/config"
	"github.com/northbeam/quotecache/internal/quote"
	"github.com/northbeam/quotecache/internal/stream"
)

// quoteStreamTick is the poll interval for /api/stream/quotes. Quotes have
// no per-timeframe tick table of their own, so this mirrors the shortest
// general-purpose tick in config.Timeframe (the 1m chart tick).
const quoteStreamTick = 3 * time.Second

func (c *Core) quotesParams(r *http.Request) ([]string, bool) {
	symbols := parseSymbolsCSV(r.URL.Query().Get("symbols"), maxQuoteSymbols)
	ext := parseExt(r.URL.Query().Get("ext"))
	return symbols, ext
}

func (c *Core) Quotes(w http.ResponseWriter, r *http.Request) {
	symbols, ext := c.quotesParams(r)

	fresh := c.quotes.IsFresh(symbols, ext)
	res := c.limiter.Allow(clientID(r), config.RouteClassGeneral, fresh)
	setRateLimitHeaders(w, res.Limit, res.Remaining)
	if !res.Allowed {
		w.Header().Set("Retry-After", "60")
		writeError(w, apierr.New(apierr.KindRateLimited, "general rate limit exceeded"))
		return
	}

	if key, deduped := quote.GroupKey(symbols, ext); len(deduped) > 0 {
		c.quoteTracker.Touch(key)
	}

	group, err := c.quotes.Get(r.Context(), symbols, ext)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quotes": group.Quotes,
		"stale":  group.Stale,
	})
}

func (c *Core) StreamQuotes(w http.ResponseWriter, r *http.Request) {
	symbols, ext := c.quotesParams(r)

	fresh := c.quotes.IsFresh(symbols, ext)
	res := c.limiter.Allow(clientID(r), config.RouteClassGeneral, fresh)
	setRateLimitHeaders(w, res.Limit, res.Remaining)
	if !res.Allowed {
		w.Header().Set("Retry-After", "60")
		writeError(w, apierr.New(apierr.KindRateLimited, "general rate limit exceeded"))
		return
	}

	if key, deduped := quote.GroupKey(symbols, ext); len(deduped) > 0 {
		c.quoteTracker.Touch(key)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	fw := flushWriter{ResponseWriter: w, flusher: flusher}

	ctx, cancel := c.StreamContext(r)
	defer cancel()
	stream.RunQuotes(ctx, fw, fw.Flush, symbols, ext, c.quotes, quoteStreamTick)
}
