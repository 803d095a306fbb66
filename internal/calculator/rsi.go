package calculator

import (
	"errors"
)

// RSISeries computes the Wilder-smoothed RSI at every position of closes.
// Averages are exponential with alpha = 1/period and start from zero at index 0,
// where the change is taken as 0. The first defined value is at index period-1.
// Earlier positions are NaN.
func RSISeries(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	out := nanSlice(len(closes))
	if len(closes) < period {
		return out, nil
	}

	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64
	for i := range closes {
		if i > 0 {
			gain, loss := 0.0, 0.0
			change := closes[i] - closes[i-1]
			if change > 0 {
				gain = change
			} else {
				loss = -change
			}
			avgGain = (1-alpha)*avgGain + alpha*gain
			avgLoss = (1-alpha)*avgLoss + alpha*loss
		}
		if i >= period-1 {
			out[i] = rsiFromAverages(avgGain, avgLoss)
		}
	}
	return out, nil
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}
