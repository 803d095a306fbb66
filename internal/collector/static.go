package collector

import (
	"context"
	"math"
	"time"

	"StochSentinel/internal/model"
)

// StaticSource serves fixed data for development and testing.
type StaticSource struct {
	Symbols []string
	Candles map[string][]model.Candle
	// Errors makes FetchCandles fail for the given symbols.
	Errors  map[string]error
	ListErr error
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) ListSymbols(_ context.Context) ([]string, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	return append([]string(nil), s.Symbols...), nil
}

func (s *StaticSource) FetchCandles(_ context.Context, symbol string, _ model.Timeframe, limit int) ([]model.Candle, error) {
	if err := s.Errors[symbol]; err != nil {
		return nil, err
	}
	bars := s.Candles[symbol]
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// NewDemoSource returns a StaticSource whose symbols cover each classification:
// a steady rally, a steady decline and a ranging market.
func NewDemoSource(tf model.Timeframe, count int) *StaticSource {
	step := tf.Duration()
	if step == 0 {
		step = time.Hour
	}
	end := time.Now().Truncate(step)
	pullback := count / 3

	rally := make([]float64, count)
	decline := make([]float64, count)
	ranging := make([]float64, count)
	for i := 0; i < count; i++ {
		// Counter-move for the first third so the RSI range is not flat.
		trend := float64(i)
		if i < pullback {
			trend = float64(2*pullback - i)
		}
		rally[i] = 100 + trend
		decline[i] = 500 - trend
		ranging[i] = 250 + 10*math.Sin(float64(i)*0.35)
	}

	return &StaticSource{
		Symbols: []string{"DEMO-RALLY", "DEMO-DECLINE", "DEMO-RANGE"},
		Candles: map[string][]model.Candle{
			"DEMO-RALLY":   GenerateCandles(rally, end, step),
			"DEMO-DECLINE": GenerateCandles(decline, end, step),
			"DEMO-RANGE":   GenerateCandles(ranging, end, step),
		},
	}
}

// GenerateCandles wraps closes into candles ending at end, one per step.
func GenerateCandles(closes []float64, end time.Time, step time.Duration) []model.Candle {
	bars := make([]model.Candle, len(closes))
	for i, p := range closes {
		bars[i] = model.Candle{
			Time:   end.Add(-time.Duration(len(closes)-1-i) * step),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
