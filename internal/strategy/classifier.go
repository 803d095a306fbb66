package strategy

import (
	"fmt"

	"StochSentinel/internal/model"
)

// Thresholds are the inclusive StochRSI bounds for the extreme buckets.
// Both K and D must pass for a symbol to qualify.
type Thresholds struct {
	OversoldK   float64
	OversoldD   float64
	OverboughtK float64
	OverboughtD float64
}

// DefaultThresholds only flags indicators pinned at the 0 or 100 extreme.
func DefaultThresholds() Thresholds {
	return Thresholds{
		OversoldK:   0.10,
		OversoldD:   0.00,
		OverboughtK: 99.90,
		OverboughtD: 100.00,
	}
}

// Validate rejects threshold sets where a snapshot could be both oversold and overbought.
func (t Thresholds) Validate() error {
	if t.OversoldK >= t.OverboughtK {
		return fmt.Errorf("oversold K threshold %.2f must be below overbought K threshold %.2f", t.OversoldK, t.OverboughtK)
	}
	if t.OversoldD >= t.OverboughtD {
		return fmt.Errorf("oversold D threshold %.2f must be below overbought D threshold %.2f", t.OversoldD, t.OverboughtD)
	}
	return nil
}

func (t Thresholds) IsOversold(s model.Snapshot) bool {
	return s.K <= t.OversoldK && s.D <= t.OversoldD
}

func (t Thresholds) IsOverbought(s model.Snapshot) bool {
	return s.K >= t.OverboughtK && s.D >= t.OverboughtD
}

// Classify partitions snapshots into oversold, overbought and neutral,
// keeping the input order inside each bucket.
func Classify(snapshots []model.Snapshot, t Thresholds) model.Classification {
	var c model.Classification
	for _, s := range snapshots {
		switch {
		case t.IsOversold(s):
			c.Oversold = append(c.Oversold, s)
		case t.IsOverbought(s):
			c.Overbought = append(c.Overbought, s)
		default:
			c.Neutral = append(c.Neutral, s)
		}
	}
	return c
}
