package calculator

import (
	"errors"
	"math"
	"testing"
)

const floatDelta = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < floatDelta
}

func rampCloses(start float64, steps ...float64) []float64 {
	closes := []float64{start}
	for _, s := range steps {
		closes = append(closes, closes[len(closes)-1]+s)
	}
	return closes
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func waveCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)*0.35) + float64(i)*0.1
	}
	return closes
}

func TestCalculateSMA(t *testing.T) {
	got, err := CalculateSMA([]float64{1, 2, 3, 4}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, 3.5) {
		t.Errorf("expected 3.5, got %f", got)
	}
	if _, err := CalculateSMA([]float64{1}, 2); err == nil {
		t.Error("expected error for short input")
	}
	if _, err := CalculateSMA([]float64{1}, 0); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestSMASeries_NaNPropagation(t *testing.T) {
	got := SMASeries([]float64{math.NaN(), 2, 4, 6}, 2)
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Errorf("expected leading NaNs, got %v", got)
	}
	if !almostEqual(got[2], 3) || !almostEqual(got[3], 5) {
		t.Errorf("unexpected averages: %v", got)
	}
}

func TestRollingMinMax(t *testing.T) {
	mins, maxs := RollingMinMax([]float64{3, 1, 4, 1, 5}, 3)
	wantMin := []float64{math.NaN(), math.NaN(), 1, 1, 1}
	wantMax := []float64{math.NaN(), math.NaN(), 4, 4, 5}
	for i := range wantMin {
		if math.IsNaN(wantMin[i]) {
			if !math.IsNaN(mins[i]) || !math.IsNaN(maxs[i]) {
				t.Errorf("index %d: expected NaN, got %f/%f", i, mins[i], maxs[i])
			}
			continue
		}
		if mins[i] != wantMin[i] || maxs[i] != wantMax[i] {
			t.Errorf("index %d: expected %f/%f, got %f/%f", i, wantMin[i], wantMax[i], mins[i], maxs[i])
		}
	}
}

func TestRSISeries_HandComputed(t *testing.T) {
	rsi, err := RSISeries([]float64{10, 11, 10}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(rsi[0]) {
		t.Errorf("expected undefined RSI before index period-1, got %v", rsi)
	}
	// Averages start from zero: gain 0.5/loss 0 at index 1, then 0.25/0.5.
	if rsi[1] != 100 {
		t.Errorf("expected RSI 100 at index 1, got %f", rsi[1])
	}
	if !almostEqual(rsi[2], 100.0/3) {
		t.Errorf("expected RSI 33.33, got %f", rsi[2])
	}

	rsi, _ = RSISeries([]float64{1, 2, 3}, 2)
	if rsi[2] != 100 {
		t.Errorf("expected RSI 100 with no losses, got %f", rsi[2])
	}

	rsi, _ = RSISeries([]float64{1}, 2)
	if !math.IsNaN(rsi[0]) {
		t.Errorf("expected undefined RSI for a series shorter than the period, got %v", rsi)
	}

	if _, err := RSISeries([]float64{1, 2, 3}, 0); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestRSISeries_ReferenceValues(t *testing.T) {
	rsi, err := RSISeries(waveCloses(31), 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(rsi[12]) {
		t.Errorf("expected undefined RSI at index 12, got %f", rsi[12])
	}
	if math.Abs(rsi[13]-23.9911778473561) > 1e-6 {
		t.Errorf("index 13: expected 23.991178, got %f", rsi[13])
	}
	if math.Abs(rsi[14]-24.59494316698145) > 1e-6 {
		t.Errorf("index 14: expected 24.594943, got %f", rsi[14])
	}
}

func TestStochRSI_ReferenceValues(t *testing.T) {
	tests := []struct {
		n    int
		k, d float64
	}{
		{31, 9.553392091121196, 27.615980623227557},
		{40, 93.76943945664885, 78.65858497967255},
		{60, 99.78677700729395, 98.28127799322236},
		{100, 53.40230387196292, 70.45142859191773},
	}
	for _, tt := range tests {
		k, d, err := StochRSI(waveCloses(tt.n), DefaultStochRSIParams())
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", tt.n, err)
		}
		if math.Abs(k-tt.k) > 1e-6 || math.Abs(d-tt.d) > 1e-6 {
			t.Errorf("n=%d: expected K=%f D=%f, got K=%f D=%f", tt.n, tt.k, tt.d, k, d)
		}
	}
}

func TestStochRSI_ShortSeries(t *testing.T) {
	p := DefaultStochRSIParams()
	for _, n := range []int{0, 1, 14, 27} {
		_, _, err := StochRSI(waveCloses(n), p)
		if !errors.Is(err, ErrInsufficientData) {
			t.Errorf("n=%d: expected ErrInsufficientData, got %v", n, err)
		}
		if errors.Is(err, ErrFlatRSI) {
			t.Errorf("n=%d: short series must not be reported as flat", n)
		}
	}
}

func TestStochRSI_TwoPeriodsNotEnoughForSmoothing(t *testing.T) {
	if got := DefaultStochRSIParams().MinBars(); got != 31 {
		t.Fatalf("expected MinBars 31, got %d", got)
	}
	for _, n := range []int{28, 30} {
		_, _, err := StochRSI(waveCloses(n), DefaultStochRSIParams())
		if !errors.Is(err, ErrInsufficientData) {
			t.Fatalf("n=%d: expected ErrInsufficientData, got %v", n, err)
		}
	}
	if _, _, err := StochRSI(waveCloses(DefaultStochRSIParams().MinBars()), DefaultStochRSIParams()); err != nil {
		t.Fatalf("expected defined K/D at MinBars, got %v", err)
	}
}

func TestStochRSI_IdenticalClosesAreFlat(t *testing.T) {
	_, _, err := StochRSI(repeat(42, 28), DefaultStochRSIParams())
	if !errors.Is(err, ErrFlatRSI) {
		t.Fatalf("expected ErrFlatRSI, got %v", err)
	}
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatal("flat RSI must be reported as insufficient data")
	}
}

func TestStochRSI_MonotonicIncreaseIsFlat(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	rsi, _ := RSISeries(closes, 14)
	raw, flat := rawStochRSI(rsi, 14)
	for i := 26; i < len(closes); i++ {
		if !flat[i] || !math.IsNaN(raw[i]) {
			t.Fatalf("index %d: expected flat undefined raw value, got %f", i, raw[i])
		}
	}

	_, _, err := StochRSI(closes, DefaultStochRSIParams())
	if !errors.Is(err, ErrFlatRSI) {
		t.Fatalf("expected ErrFlatRSI, got %v", err)
	}
}

func TestStochRSI_PinnedAtZero(t *testing.T) {
	steps := append(repeat(1, 30), repeat(-1, 20)...)
	k, d, err := StochRSI(rampCloses(100, steps...), DefaultStochRSIParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != 0 || d != 0 {
		t.Errorf("expected K=0 D=0 after a steady decline, got K=%f D=%f", k, d)
	}
}

func TestStochRSI_PinnedAtHundred(t *testing.T) {
	steps := append(repeat(-1, 30), repeat(1, 20)...)
	k, d, err := StochRSI(rampCloses(130, steps...), DefaultStochRSIParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != 100 || d != 100 {
		t.Errorf("expected K=100 D=100 after a steady rally, got K=%f D=%f", k, d)
	}
}

func TestStochRSI_Bounded(t *testing.T) {
	for _, n := range []int{31, 50, 100, 250} {
		k, d, err := StochRSI(waveCloses(n), DefaultStochRSIParams())
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if k < 0 || k > 100 || d < 0 || d > 100 {
			t.Errorf("n=%d: K/D out of range: %f/%f", n, k, d)
		}
	}
}

func TestStochRSI_InvalidParams(t *testing.T) {
	_, _, err := StochRSI(waveCloses(100), StochRSIParams{Period: 14, SmoothK: 0, SmoothD: 3})
	if err == nil {
		t.Fatal("expected error for zero smoothing window")
	}
	if errors.Is(err, ErrInsufficientData) {
		t.Error("parameter errors must not look like insufficient data")
	}
}

func TestStochRSI_Stateless(t *testing.T) {
	closes := waveCloses(100)
	k1, d1, _ := StochRSI(closes, DefaultStochRSIParams())
	k2, d2, _ := StochRSI(closes, DefaultStochRSIParams())
	if k1 != k2 || d1 != d2 {
		t.Errorf("repeated calls differ: %f/%f vs %f/%f", k1, d1, k2, d2)
	}
}
