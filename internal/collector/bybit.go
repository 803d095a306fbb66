package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"StochSentinel/internal/model"

	"github.com/tidwall/gjson"
)

const (
	// DefaultBybitURL is the public Bybit v5 API endpoint.
	DefaultBybitURL = "https://api.bybit.com"
	// CategoryLinear selects USDT perpetual contracts.
	CategoryLinear = "linear"

	bybitMaxKlineLimit = 1000
	maxBybitPages      = 100
)

var bybitIntervals = map[model.Timeframe]string{
	model.Timeframe5m:  "5",
	model.Timeframe15m: "15",
	model.Timeframe1h:  "60",
	model.Timeframe4h:  "240",
	model.Timeframe1d:  "D",
}

// BybitSource implements Source using the Bybit v5 market endpoints.
type BybitSource struct {
	BaseURL  string
	Category string
	Client   *http.Client
}

// NewBybitSource creates a new source with optional proxy support.
func NewBybitSource(baseURL, category, proxyURL string) *BybitSource {
	if baseURL == "" {
		baseURL = DefaultBybitURL
	}
	if category == "" {
		category = CategoryLinear
	}
	return &BybitSource{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Category: category,
		Client:   newHTTPClient(proxyURL),
	}
}

func (s *BybitSource) Name() string { return "bybit" }

// get performs a public GET and unwraps the v5 envelope, returning the result object.
func (s *BybitSource) get(ctx context.Context, endpoint string, params url.Values) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("User-Agent", "StochSentinel/1.0")
	body, err := readBody(s.Client, req)
	if err != nil {
		return gjson.Result{}, err
	}
	env := gjson.ParseBytes(body)
	if code := env.Get("retCode").Int(); code != 0 {
		return gjson.Result{}, fmt.Errorf("%w: bybit retCode %d: %s", ErrSourceUnavailable, code, env.Get("retMsg").String())
	}
	return env.Get("result"), nil
}

// ListSymbols pages through instruments-info and keeps contracts in Trading status.
// Paging stops when a cursor repeats or after maxBybitPages pages.
func (s *BybitSource) ListSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	cursor := ""
	seen := map[string]bool{}
	for page := 0; page < maxBybitPages; page++ {
		params := url.Values{}
		params.Set("category", s.Category)
		params.Set("limit", "1000")
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		result, err := s.get(ctx, "/v5/market/instruments-info", params)
		if err != nil {
			return nil, fmt.Errorf("bybit instruments: %w", err)
		}
		result.Get("list").ForEach(func(_, inst gjson.Result) bool {
			if status := inst.Get("status").String(); status != "" && status != "Trading" {
				return true
			}
			if sym := inst.Get("symbol").String(); sym != "" {
				symbols = append(symbols, sym)
			}
			return true
		})
		seen[cursor] = true
		cursor = result.Get("nextPageCursor").String()
		if cursor == "" || seen[cursor] {
			return symbols, nil
		}
	}
	return symbols, nil
}

// FetchCandles returns klines oldest first; Bybit lists them newest first.
func (s *BybitSource) FetchCandles(ctx context.Context, symbol string, tf model.Timeframe, limit int) ([]model.Candle, error) {
	interval, ok := bybitIntervals[tf]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", tf)
	}
	if limit <= 0 || limit > bybitMaxKlineLimit {
		limit = bybitMaxKlineLimit
	}
	params := url.Values{}
	params.Set("category", s.Category)
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	result, err := s.get(ctx, "/v5/market/kline", params)
	if err != nil {
		return nil, fmt.Errorf("bybit kline %s: %w", symbol, err)
	}
	rows := result.Get("list").Array()
	bars := make([]model.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		bar, err := decodeBybitKline(rows[i])
		if err != nil {
			return nil, fmt.Errorf("bybit kline %s: %w", symbol, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// decodeBybitKline reads [start, open, high, low, close, volume, turnover].
func decodeBybitKline(row gjson.Result) (model.Candle, error) {
	fields := row.Array()
	if len(fields) < 6 {
		return model.Candle{}, fmt.Errorf("kline row has %d fields", len(fields))
	}
	start, err := strconv.ParseInt(fields[0].String(), 10, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("kline start: %w", err)
	}
	values := make([]float64, 5)
	for i := range values {
		if values[i], err = parseNumber(fields[i+1]); err != nil {
			return model.Candle{}, err
		}
	}
	return model.Candle{
		Time:   time.UnixMilli(start),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
