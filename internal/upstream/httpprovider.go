package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/northbeam/quotecache/internal/market"
)

// HTTPProvider is the concrete, keyless HTTP implementation of Provider. It
// is deliberately simple: one GET per download, one GET per metadata fetch.
// Retry, timeout, throttling, and circuit-breaking all live one layer up in
// Client, matching the teacher's separation between a bare venue adapter
// (infrastructure/providers/kraken.go) and the composed rate-limited/
// circuit-broken call path above it (internal/net/circuit,
// internal/net/ratelimit).
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider builds a provider pointed at baseURL using httpClient for
// transport. Per-attempt timeouts come from the request context Client
// passes in, not from httpClient.
func NewHTTPProvider(baseURL string, httpClient *http.Client) *HTTPProvider {
	return &HTTPProvider{baseURL: baseURL, client: httpClient}
}

// wideChartResponse models the upstream's chart endpoint, which can legally
// echo back bars keyed by more than one symbol (e.g. a related-pair batch);
// callers must project down to the symbol they asked for.
type wideChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol string `json:"symbol"`
			} `json:"meta"`
			Timestamps []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// Download fetches one symbol's raw OHLCV at (period, interval). An upstream
// HTTP or transport error is returned verbatim to the caller (the retry
// layer in Client decides whether to try again); a well-formed but empty
// response is a valid, non-error RawFrame.
func (p *HTTPProvider) Download(ctx context.Context, symbol, period, interval string, includePrepost bool) (market.RawFrame, error) {
	q := url.Values{}
	q.Set("range", period)
	q.Set("interval", interval)
	q.Set("includePrePost", strconv.FormatBool(includePrepost))

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return market.RawFrame{}, fmt.Errorf("build download request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return market.RawFrame{}, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return market.RawFrame{}, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return market.RawFrame{}, fmt.Errorf("read download response: %w", err)
	}

	var wide wideChartResponse
	if err := json.Unmarshal(body, &wide); err != nil {
		return market.RawFrame{}, fmt.Errorf("decode download response: %w", err)
	}

	return projectSymbol(wide, symbol), nil
}

// projectSymbol reduces a possibly-wide chart response to the bars that
// belong to symbol. An empty projection is a valid, empty RawFrame.
func projectSymbol(wide wideChartResponse, symbol string) market.RawFrame {
	for _, result := range wide.Chart.Result {
		if result.Meta.Symbol != "" && result.Meta.Symbol != symbol {
			continue
		}
		if len(result.Indicators.Quote) == 0 {
			continue
		}
		q := result.Indicators.Quote[0]
		n := len(result.Timestamps)
		bars := make([]market.Candle, 0, n)
		for i := 0; i < n; i++ {
			if i >= len(q.Close) {
				break
			}
			bars = append(bars, market.Candle{
				Time:   result.Timestamps[i],
				Open:   valueAt(q.Open, i),
				High:   valueAt(q.High, i),
				Low:    valueAt(q.Low, i),
				Close:  valueAt(q.Close, i),
				Volume: valueAt(q.Volume, i),
			})
		}
		return market.RawFrame{Symbol: symbol, Bars: bars}
	}
	return market.RawFrame{Symbol: symbol}
}

func valueAt(xs []float64, i int) float64 {
	if i < 0 || i >= len(xs) {
		return 0
	}
	return xs[i]
}

type metadataResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				Exchange         string  `json:"exchangeName"`
				QuoteType        string  `json:"quoteType"`
				ShortName        string  `json:"shortName"`
				Currency         string  `json:"currency"`
				RegularMarketPrev float64 `json:"regularMarketPreviousClose"`
			} `json:"price"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

// Metadata fetches exchange/quote-type/name/currency/prev-close. Upstream
// errors are tolerated by returning a zero-value Metadata rather than
// propagating, per spec.md §4.2.
func (p *HTTPProvider) Metadata(ctx context.Context, symbol string) (market.Metadata, error) {
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=price", p.baseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return market.Metadata{}, nil
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return market.Metadata{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return market.Metadata{}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return market.Metadata{}, nil
	}

	var parsed metadataResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return market.Metadata{}, nil
	}
	if len(parsed.QuoteSummary.Result) == 0 {
		return market.Metadata{}, nil
	}

	price := parsed.QuoteSummary.Result[0].Price
	return market.Metadata{
		Exchange:  price.Exchange,
		QuoteType: price.QuoteType,
		Name:      price.ShortName,
		Currency:  price.Currency,
		PrevClose: price.RegularMarketPrev,
	}, nil
}
