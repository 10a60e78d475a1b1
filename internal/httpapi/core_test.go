package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northbeam/quotecache/internal/config"
	"github.com/northbeam/quotecache/internal/obs"
)

// fakeUpstream serves enough daily bars to clear config.Lookup("1d").MinBars
// and a fixed metadata response, echoing the requested symbol back into the
// chart fixture's meta block so the provider's per-symbol projection never
// filters the bars out.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/v8/finance/chart/"):
			symbol := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			w.Write([]byte(dailyChartFixture(symbol, 120)))
		case strings.Contains(r.URL.Path, "/v10/finance/quoteSummary/"):
			w.Write([]byte(`{"quoteSummary":{"result":[{"price":{"exchangeName":"NMS","quoteType":"EQUITY","shortName":"Example Inc.","currency":"USD","regularMarketPreviousClose":10}}]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)
	return upstream
}

// newTestServer wires a full Core/Server pair against fakeUpstream, the way
// the teacher's golden_test.go stands up a fake venue server rather than
// mocking at the interface boundary.
func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	upstream := fakeUpstream(t)

	cfg := config.Default()
	cfg.UpstreamURL = upstream.URL
	cfg.Cache.BuildWaitBudget = time.Second

	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)
	core := NewCore(cfg, zerolog.Nop(), metrics, registry)
	server := NewServer(cfg, core, zerolog.Nop())
	return server, upstream
}

// newTestServerWithRateLimit is newTestServer with the chart-data RPM
// dropped to chartDataRPM so a test can exhaust it deterministically.
func newTestServerWithRateLimit(t *testing.T, chartDataRPM int) (*Server, *httptest.Server) {
	t.Helper()
	upstream := fakeUpstream(t)

	cfg := config.Default()
	cfg.UpstreamURL = upstream.URL
	cfg.Cache.BuildWaitBudget = time.Second
	cfg.RateLimit.ChartDataRPM = chartDataRPM

	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)
	core := NewCore(cfg, zerolog.Nop(), metrics, registry)
	server := NewServer(cfg, core, zerolog.Nop())
	return server, upstream
}

// newTestServerWithGeneralRateLimit is newTestServer with the general RPM
// dropped to generalRPM so a test can exhaust it deterministically against
// the general-class routes (quotes, stream/quotes, symbols, prewarm).
func newTestServerWithGeneralRateLimit(t *testing.T, generalRPM int) (*Server, *httptest.Server) {
	t.Helper()
	upstream := fakeUpstream(t)

	cfg := config.Default()
	cfg.UpstreamURL = upstream.URL
	cfg.Cache.BuildWaitBudget = time.Second
	cfg.RateLimit.GeneralRPM = generalRPM

	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)
	core := NewCore(cfg, zerolog.Nop(), metrics, registry)
	server := NewServer(cfg, core, zerolog.Nop())
	return server, upstream
}

func dailyChartFixture(symbol string, n int) string {
	timestamps := make([]string, n)
	closes := make([]string, n)
	for i := 0; i < n; i++ {
		timestamps[i] = fmt.Sprintf("%d", int64(i)*86400)
		closes[i] = fmt.Sprintf("%.2f", 10.0+float64(i)*0.1)
	}
	return fmt.Sprintf(`{
  "chart": {
    "result": [{
      "meta": {"symbol": %q},
      "timestamp": [%s],
      "indicators": {"quote": [{
        "open": [%s], "high": [%s], "low": [%s], "close": [%s], "volume": [%s]
      }]}
    }]
  }
}`, symbol, strings.Join(timestamps, ","), strings.Join(closes, ","), strings.Join(closes, ","), strings.Join(closes, ","), strings.Join(closes, ","), constantVolumes(n))
}

func constantVolumes(n int) string {
	vols := make([]string, n)
	for i := range vols {
		vols[i] = "1000"
	}
	return strings.Join(vols, ",")
}

func doRequest(t *testing.T, server *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	return w
}

func TestHealth_ReturnsOK(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(t, server, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestData_BuildsAndReturnsPayload(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(t, server, http.MethodGet, "/api/data/AAPL?tf=1d")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"symbol":"AAPL"`)
}

func TestData_InvalidSymbolIsBadRequest(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(t, server, http.MethodGet, "/api/data/%21%21%21?tf=1d")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDataDelta_FutureSinceYieldsEmptyDelta(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(t, server, http.MethodGet, "/api/data_delta/AAPL?tf=1d&since=99999999999")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"latest_time":0`)
}

func TestSymbols_EmptyQueryShortCircuits(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(t, server, http.MethodGet, "/api/symbols")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"results":[]`)
}

func TestSymbols_ResolvesViaMetadata(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(t, server, http.MethodGet, "/api/symbols?query=aapl")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Example Inc.")
}

func TestPrewarm_WarmsEveryRequestedSymbol(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(t, server, http.MethodGet, "/api/prewarm?symbols=AAPL,MSFT&tf=1d")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"warmed":2`)
}

func TestNews_IsNotImplementedStub(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(t, server, http.MethodGet, "/api/news")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetrics_ExposesRegisteredCollectors(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(t, server, http.MethodGet, "/api/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "quotecache_cache_hits_total")
}

func TestQuotes_EmptySymbolsReturnsEmptyGroup(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(t, server, http.MethodGet, "/api/quotes")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"quotes":{}`)
}

func TestData_RateLimitRejectsOnceBaseBudgetExhausted(t *testing.T) {
	server, _ := newTestServerWithRateLimit(t, 1)

	// Two distinct, both-uncached symbols share one client's base bucket
	// (the bucket key carries no symbol), so the second cache-miss request
	// exhausts the budget the first one consumed.
	first := doRequest(t, server, http.MethodGet, "/api/data/AAPL?tf=1d")
	require.Equal(t, http.StatusOK, first.Code)

	second := doRequest(t, server, http.MethodGet, "/api/data/MSFT?tf=1d")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestSymbols_RateLimitRejectsOnceGeneralBudgetExhausted(t *testing.T) {
	server, _ := newTestServerWithGeneralRateLimit(t, 1)

	first := doRequest(t, server, http.MethodGet, "/api/symbols?query=aapl")
	require.Equal(t, http.StatusOK, first.Code)

	second := doRequest(t, server, http.MethodGet, "/api/symbols?query=msft")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestPrewarm_RateLimitRejectsOnceGeneralBudgetExhausted(t *testing.T) {
	server, _ := newTestServerWithGeneralRateLimit(t, 1)

	first := doRequest(t, server, http.MethodGet, "/api/prewarm?symbols=AAPL&tf=1d")
	require.Equal(t, http.StatusOK, first.Code)

	second := doRequest(t, server, http.MethodGet, "/api/prewarm?symbols=MSFT&tf=1d")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

// TestStreamQuotes_RateLimitRejectsOnceGeneralBudgetExhausted uses an
// already-canceled context on the allowed request so its SSE loop exits
// immediately rather than blocking the test, the same trick
// TestStreamData_SetsSSEHeaders uses.
func TestStreamQuotes_RateLimitRejectsOnceGeneralBudgetExhausted(t *testing.T) {
	server, _ := newTestServerWithGeneralRateLimit(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	first := httptest.NewRequest(http.MethodGet, "/api/stream/quotes?symbols=AAPL", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, first)
	require.Equal(t, http.StatusOK, w.Code)

	second := doRequest(t, server, http.MethodGet, "/api/stream/quotes?symbols=MSFT")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestQuotes_BuildsGroupForSymbols(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(t, server, http.MethodGet, "/api/quotes?symbols=AAPL")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"AAPL"`)
}

func TestQuotes_TouchesQuoteHotTracker(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(t, server, http.MethodGet, "/api/quotes?symbols=AAPL,MSFT")
	require.Equal(t, http.StatusOK, w.Code)

	hot := server.core.quoteTracker.Hot()
	require.Len(t, hot, 1)
	assert.Equal(t, "AAPL,MSFT", hot[0])
}

// TestCore_StreamContext_CancelsOnProcessStopSignal exercises the shutdown
// merge directly: a stream context derived from a live request must end the
// moment the process-wide stop context fires, not only on client
// disconnect.
func TestCore_StreamContext_CancelsOnProcessStopSignal(t *testing.T) {
	server, _ := newTestServer(t)

	stopCtx, stop := context.WithCancel(context.Background())
	server.core.StartBackground(stopCtx)

	req := httptest.NewRequest(http.MethodGet, "/api/stream/data/AAPL?tf=1d", nil)
	streamCtx, cancel := server.core.StreamContext(req)
	defer cancel()

	select {
	case <-streamCtx.Done():
		t.Fatal("stream context canceled before the stop signal fired")
	default:
	}

	stop()

	select {
	case <-streamCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("stream context did not cancel after the process stop signal fired")
	}
}

// TestStreamData_SetsSSEHeaders uses an already-canceled request context so
// RunData's select exits on its first iteration; the subscription loop
// itself is exercised with bounded live contexts in internal/stream's own
// tests, not duplicated here.
func TestStreamData_SetsSSEHeaders(t *testing.T) {
	server, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/stream/data/AAPL?tf=1d", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
}
