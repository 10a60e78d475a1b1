package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/northbeam/quotecache/internal/apierr"
	"github.com/northbeam/quotecache/internal/config"
	"github.com/northbeam/quotecache/internal/delta"
	"github.com/northbeam/quotecache/internal/market"
	"github.com/northbeam/quotecache/internal/stream"
)

func (c *Core) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "ok",
		"ts":                 time.Now().Unix(),
		"auth_enabled":       false,
		"rate_limit_enabled": true,
	})
}

// dataKey parses and validates the (symbol, tf, ext) triple shared by the
// data, delta, and stream-data routes.
func (c *Core) dataKey(r *http.Request) (market.Key, error) {
	raw := mux.Vars(r)["symbol"]
	canon, err := normalizeSymbol(raw)
	if err != nil {
		return market.Key{}, err
	}
	tf := parseTimeframe(r.URL.Query().Get("tf"))
	ext := parseExt(r.URL.Query().Get("ext"))
	return market.Key{Symbol: canon, Timeframe: tf, Ext: ext}, nil
}

func (c *Core) checkChartDataLimit(w http.ResponseWriter, r *http.Request, key market.Key) bool {
	fresh := c.cache.Fresh(key, ttlForTimeframe(key.Timeframe))
	res := c.limiter.Allow(clientID(r), config.RouteClassChartData, fresh)
	setRateLimitHeaders(w, res.Limit, res.Remaining)
	if !res.Allowed {
		w.Header().Set("Retry-After", "60")
		writeError(w, apierr.New(apierr.KindRateLimited, "chart-data rate limit exceeded"))
		return false
	}
	return true
}

func (c *Core) Data(w http.ResponseWriter, r *http.Request) {
	key, err := c.dataKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !c.checkChartDataLimit(w, r, key) {
		return
	}

	payload, _, err := c.getPayload(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (c *Core) DataDelta(w http.ResponseWriter, r *http.Request) {
	key, err := c.dataKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !c.checkChartDataLimit(w, r, key) {
		return
	}
	since := parseSince(r.URL.Query().Get("since"))

	payload, _, err := c.getPayload(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, delta.Project(payload, since))
}

type flushWriter struct {
	http.ResponseWriter
	flusher http.Flusher
}

func (f flushWriter) Flush() {
	if f.flusher != nil {
		f.flusher.Flush()
	}
}

func (c *Core) StreamData(w http.ResponseWriter, r *http.Request) {
	key, err := c.dataKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !c.checkChartDataLimit(w, r, key) {
		return
	}
	since := parseSince(r.URL.Query().Get("since"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	fw := flushWriter{ResponseWriter: w, flusher: flusher}

	deps := stream.DataDeps{
		Cache:        c.cache,
		Builder:      c.builder,
		Tracker:      c.tracker,
		TTLFor:       ttlForTimeframe,
		TickFor:      tickForTimeframe,
		BuildFactory: c.buildFactory,
		Metrics:      c.metrics,
	}
	ctx, cancel := c.StreamContext(r)
	defer cancel()
	stream.RunData(ctx, fw, fw.Flush, key, since, deps)
}
