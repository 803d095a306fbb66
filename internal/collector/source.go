package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"StochSentinel/internal/model"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var (
	// ErrSourceUnavailable is returned when the exchange cannot be reached or answers garbage.
	ErrSourceUnavailable = errors.New("data source unavailable")
	// ErrNoData means the source returned no candles for a symbol.
	ErrNoData = errors.New("no candle data")
)

// Source defines the exchange data needed by the screener.
type Source interface {
	// ListSymbols returns the tradable universe.
	ListSymbols(ctx context.Context) ([]string, error)
	// FetchCandles returns up to limit most recent candles, oldest first.
	// An empty result means the symbol has no data.
	FetchCandles(ctx context.Context, symbol string, tf model.Timeframe, limit int) ([]model.Candle, error)
	Name() string
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

// readBody executes req and returns the body of a 200 response.
// Transport failures and non-200 statuses are reported as ErrSourceUnavailable.
func readBody(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrSourceUnavailable, resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// parseNumber reads a price field that exchanges send either as a JSON string or number.
func parseNumber(r gjson.Result) (float64, error) {
	if !r.Exists() {
		return 0, errors.New("missing numeric field")
	}
	d, err := decimal.NewFromString(r.String())
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", r.String(), err)
	}
	return d.InexactFloat64(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
