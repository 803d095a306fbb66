package calculator

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInsufficientData means the series is too short for a defined K and D.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrFlatRSI means the RSI range collapsed to zero inside the smoothing span.
	ErrFlatRSI = fmt.Errorf("%w: flat rsi window", ErrInsufficientData)
)

// StochRSIParams configures the Stochastic RSI computation.
type StochRSIParams struct {
	Period  int
	SmoothK int
	SmoothD int
}

// DefaultStochRSIParams returns the 14/3/3 configuration.
func DefaultStochRSIParams() StochRSIParams {
	return StochRSIParams{Period: 14, SmoothK: 3, SmoothD: 3}
}

func (p StochRSIParams) Validate() error {
	if p.Period <= 0 || p.SmoothK <= 0 || p.SmoothD <= 0 {
		return fmt.Errorf("stoch rsi params must be positive, got %d/%d/%d", p.Period, p.SmoothK, p.SmoothD)
	}
	return nil
}

// MinBars is the shortest series for which both K and D can be defined.
func (p StochRSIParams) MinBars() int {
	return 2*p.Period + p.SmoothK + p.SmoothD - 3
}

// StochRSI returns the most recent K and D values of the Stochastic RSI of closes.
// Values are percentages in [0,100] and are not rounded.
func StochRSI(closes []float64, p StochRSIParams) (k, d float64, err error) {
	if err := p.Validate(); err != nil {
		return 0, 0, err
	}
	if len(closes) < 2*p.Period {
		return 0, 0, fmt.Errorf("%w: have %d closes, need at least %d", ErrInsufficientData, len(closes), 2*p.Period)
	}

	rsi, err := RSISeries(closes, p.Period)
	if err != nil {
		return 0, 0, err
	}
	raw, flat := rawStochRSI(rsi, p.Period)
	kSeries := SMASeries(raw, p.SmoothK)
	dSeries := SMASeries(kSeries, p.SmoothD)

	n := len(closes)
	k, d = kSeries[n-1], dSeries[n-1]
	if math.IsNaN(k) || math.IsNaN(d) {
		span := p.SmoothK + p.SmoothD - 1
		for i := max(0, n-span); i < n; i++ {
			if flat[i] {
				return 0, 0, ErrFlatRSI
			}
		}
		return 0, 0, fmt.Errorf("%w: have %d closes, need %d for K/D smoothing", ErrInsufficientData, n, p.MinBars())
	}
	return k, d, nil
}

// rawStochRSI normalizes each RSI value into its trailing period range.
// flat marks positions where the range is zero; those stay NaN.
func rawStochRSI(rsi []float64, period int) (raw []float64, flat []bool) {
	mins, maxs := RollingMinMax(rsi, period)
	raw = nanSlice(len(rsi))
	flat = make([]bool, len(rsi))
	for i := range rsi {
		if math.IsNaN(mins[i]) || math.IsNaN(rsi[i]) {
			continue
		}
		spread := maxs[i] - mins[i]
		if spread == 0 {
			flat[i] = true
			continue
		}
		raw[i] = (rsi[i] - mins[i]) / spread * 100
	}
	return raw, flat
}
