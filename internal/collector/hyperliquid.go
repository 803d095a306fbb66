package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"StochSentinel/internal/model"

	"github.com/tidwall/gjson"
)

// DefaultHyperliquidURL is the public Hyperliquid API endpoint.
const DefaultHyperliquidURL = "https://api.hyperliquid.xyz"

// HyperliquidSource implements Source using the Hyperliquid /info endpoint.
type HyperliquidSource struct {
	BaseURL string
	Client  *http.Client
	now     func() time.Time
}

// NewHyperliquidSource creates a new source with optional proxy support.
func NewHyperliquidSource(baseURL, proxyURL string) *HyperliquidSource {
	if baseURL == "" {
		baseURL = DefaultHyperliquidURL
	}
	return &HyperliquidSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  newHTTPClient(proxyURL),
		now:     time.Now,
	}
}

func (s *HyperliquidSource) Name() string { return "hyperliquid" }

func (s *HyperliquidSource) info(ctx context.Context, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/info", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return readBody(s.Client, req)
}

// ListSymbols returns every perpetual in the exchange universe, skipping delisted ones.
func (s *HyperliquidSource) ListSymbols(ctx context.Context) ([]string, error) {
	body, err := s.info(ctx, map[string]string{"type": "meta"})
	if err != nil {
		return nil, fmt.Errorf("hyperliquid meta: %w", err)
	}
	universe := gjson.GetBytes(body, "universe")
	if !universe.IsArray() {
		return nil, fmt.Errorf("%w: hyperliquid meta: missing universe", ErrSourceUnavailable)
	}
	var symbols []string
	universe.ForEach(func(_, asset gjson.Result) bool {
		if asset.Get("isDelisted").Bool() {
			return true
		}
		if name := asset.Get("name").String(); name != "" {
			symbols = append(symbols, name)
		}
		return true
	})
	return symbols, nil
}

// FetchCandles requests a candle snapshot wide enough to hold limit bars.
func (s *HyperliquidSource) FetchCandles(ctx context.Context, symbol string, tf model.Timeframe, limit int) ([]model.Candle, error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("unsupported timeframe %q", tf)
	}
	end := s.now()
	start := end.Add(-time.Duration(limit) * tf.Duration())
	payload := map[string]any{
		"type": "candleSnapshot",
		"req": map[string]any{
			"coin":      symbol,
			"interval":  tf.String(),
			"startTime": start.UnixMilli(),
			"endTime":   end.UnixMilli(),
		},
	}
	body, err := s.info(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid candles %s: %w", symbol, err)
	}
	result := gjson.ParseBytes(body)
	if !result.IsArray() {
		return nil, fmt.Errorf("%w: hyperliquid candles %s: unexpected payload", ErrSourceUnavailable, symbol)
	}

	var (
		bars     []model.Candle
		parseErr error
	)
	result.ForEach(func(_, c gjson.Result) bool {
		bar, err := decodeHyperliquidCandle(c)
		if err != nil {
			parseErr = fmt.Errorf("hyperliquid candles %s: %w", symbol, err)
			return false
		}
		bars = append(bars, bar)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func decodeHyperliquidCandle(c gjson.Result) (model.Candle, error) {
	var (
		bar model.Candle
		err error
	)
	bar.Time = time.UnixMilli(c.Get("t").Int())
	fields := []struct {
		key string
		dst *float64
	}{
		{"o", &bar.Open}, {"h", &bar.High}, {"l", &bar.Low}, {"c", &bar.Close}, {"v", &bar.Volume},
	}
	for _, f := range fields {
		if *f.dst, err = parseNumber(c.Get(f.key)); err != nil {
			return model.Candle{}, fmt.Errorf("field %s: %w", f.key, err)
		}
	}
	return bar, nil
}
