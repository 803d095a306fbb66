package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"StochSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHyperliquid_ListSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/info", r.URL.Path)
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "meta", payload["type"])
		io.WriteString(w, `{"universe":[{"name":"BTC","szDecimals":5},{"name":"OLD","isDelisted":true},{"name":"ETH"}]}`)
	}))
	defer srv.Close()

	src := NewHyperliquidSource(srv.URL, "")
	symbols, err := src.ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH"}, symbols)
}

func TestHyperliquid_FetchCandles(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Type string `json:"type"`
			Req  struct {
				Coin      string `json:"coin"`
				Interval  string `json:"interval"`
				StartTime int64  `json:"startTime"`
				EndTime   int64  `json:"endTime"`
			} `json:"req"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "candleSnapshot", payload.Type)
		assert.Equal(t, "BTC", payload.Req.Coin)
		assert.Equal(t, "1h", payload.Req.Interval)
		assert.Equal(t, now.UnixMilli(), payload.Req.EndTime)
		assert.Equal(t, now.Add(-2*time.Hour).UnixMilli(), payload.Req.StartTime)
		io.WriteString(w, `[
			{"t":1699996400000,"o":"3.0","h":"3.5","l":"2.5","c":"3.2","v":"10","n":4},
			{"t":1699992800000,"o":"2.0","h":"2.5","l":"1.5","c":"2.2","v":"20","n":4},
			{"t":1699989200000,"o":"1.0","h":"1.5","l":"0.5","c":"1.2","v":"30","n":4}
		]`)
	}))
	defer srv.Close()

	src := NewHyperliquidSource(srv.URL, "")
	src.now = func() time.Time { return now }

	bars, err := src.FetchCandles(context.Background(), "BTC", model.Timeframe1h, 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 2.2, bars[0].Close)
	assert.Equal(t, 3.2, bars[1].Close)
	assert.Equal(t, 10.0, bars[1].Volume)
	assert.True(t, bars[0].Time.Before(bars[1].Time))
}

func TestHyperliquid_EmptyAndErrors(t *testing.T) {
	status := http.StatusOK
	body := `[]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	defer srv.Close()
	src := NewHyperliquidSource(srv.URL, "")

	bars, err := src.FetchCandles(context.Background(), "NEW", model.Timeframe5m, 100)
	require.NoError(t, err)
	assert.Empty(t, bars)

	status, body = http.StatusInternalServerError, `internal error`
	_, err = src.FetchCandles(context.Background(), "NEW", model.Timeframe5m, 100)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	_, err = src.ListSymbols(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	status, body = http.StatusOK, `{"universe":"nope"}`
	_, err = src.ListSymbols(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	status, body = http.StatusOK, `[{"t":1,"o":"x","h":"1","l":"1","c":"1","v":"1"}]`
	_, err = src.FetchCandles(context.Background(), "NEW", model.Timeframe5m, 100)
	assert.Error(t, err)
}

func TestBybit_ListSymbolsPaging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/instruments-info", r.URL.Path)
		assert.Equal(t, "linear", r.URL.Query().Get("category"))
		if r.URL.Query().Get("cursor") == "" {
			io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
				{"symbol":"BTCUSDT","status":"Trading"},{"symbol":"OLDUSDT","status":"Closed"}],
				"nextPageCursor":"page2"}}`)
			return
		}
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"ETHUSDT","status":"Trading"}],"nextPageCursor":""}}`)
	}))
	defer srv.Close()

	symbols, err := NewBybitSource(srv.URL, "", "").ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, symbols)
}

func TestBybit_ListSymbolsRepeatedCursor(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"BTCUSDT","status":"Trading"}],"nextPageCursor":"stuck"}}`)
	}))
	defer srv.Close()

	symbols, err := NewBybitSource(srv.URL, "", "").ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())
	assert.Contains(t, symbols, "BTCUSDT")
}

func TestBybit_ListSymbolsPageLimit(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		fmt.Fprintf(w, `{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"S%dUSDT","status":"Trading"}],"nextPageCursor":"c%d"}}`, n, n)
	}))
	defer srv.Close()

	symbols, err := NewBybitSource(srv.URL, "", "").ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(maxBybitPages), requests.Load())
	assert.Len(t, symbols, maxBybitPages)
}

func TestBybit_FetchCandlesReversesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v5/market/kline", r.URL.Path)
		assert.Equal(t, "240", q.Get("interval"))
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, "50", q.Get("limit"))
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
			["1700003600000","2","3","1","2.5","100","250"],
			["1700000000000","1","2","0.5","1.5","200","300"]]}}`)
	}))
	defer srv.Close()

	bars, err := NewBybitSource(srv.URL, "", "").FetchCandles(context.Background(), "BTCUSDT", model.Timeframe4h, 50)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.5, bars[0].Close)
	assert.Equal(t, 2.5, bars[1].Close)
	assert.Equal(t, time.UnixMilli(1700000000000), bars[0].Time)
}

func TestBybit_RetCodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"retCode":10001,"retMsg":"params error","result":{}}`)
	}))
	defer srv.Close()

	_, err := NewBybitSource(srv.URL, "", "").FetchCandles(context.Background(), "NOPE", model.Timeframe1h, 10)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "params error")

	_, err = NewBybitSource(srv.URL, "", "").FetchCandles(context.Background(), "NOPE", model.Timeframe("2h"), 10)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrSourceUnavailable))
}

type memoryCache struct {
	data    map[string][]string
	loadErr error
	stores  int
	lastTTL time.Duration
}

func (m *memoryCache) Load(_ context.Context, key string) ([]string, bool, error) {
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryCache) Store(_ context.Context, key string, symbols []string, ttl time.Duration) error {
	m.stores++
	m.lastTTL = ttl
	m.data[key] = symbols
	return nil
}

type listCounter struct {
	StaticSource
	calls int
}

func (l *listCounter) ListSymbols(ctx context.Context) ([]string, error) {
	l.calls++
	return l.StaticSource.ListSymbols(ctx)
}

func TestCachedSource(t *testing.T) {
	inner := &listCounter{StaticSource: StaticSource{Symbols: []string{"BTC", "ETH"}}}
	cache := &memoryCache{data: map[string][]string{}}
	src := NewCachedSource(inner, cache, time.Minute, nil)

	for i := 0; i < 3; i++ {
		symbols, err := src.ListSymbols(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"BTC", "ETH"}, symbols)
	}
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, cache.stores)
	assert.Equal(t, time.Minute, cache.lastTTL)
	assert.Contains(t, cache.data, "universe:static")

	cache.loadErr = errors.New("redis down")
	_, err := src.ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	inner.ListErr = errors.New("boom")
	_, err = src.ListSymbols(context.Background())
	assert.Error(t, err)
}
