package calculator

import (
	"errors"
	"math"
)

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// SMASeries returns the simple moving average at every position of values.
// A position is NaN until window values are available, or when any value in
// its window is NaN.
func SMASeries(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		if avg, err := CalculateSMA(values[i-window+1:i+1], window); err == nil {
			out[i] = avg
		}
	}
	return out
}

// RollingMinMax returns the trailing min and max of values over window.
// NaN propagates the same way as in SMASeries.
func RollingMinMax(values []float64, window int) (mins, maxs []float64) {
	mins = nanSlice(len(values))
	maxs = nanSlice(len(values))
	if window <= 0 {
		return mins, maxs
	}
	for i := window - 1; i < len(values); i++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		valid := true
		for _, v := range values[i-window+1 : i+1] {
			if math.IsNaN(v) {
				valid = false
				break
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if valid {
			mins[i] = lo
			maxs[i] = hi
		}
	}
	return mins, maxs
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
