package model

import "time"

// Snapshot is the per-symbol indicator reading of one cycle.
// K and D are percentages in [0,100], rounded to two decimals.
type Snapshot struct {
	Symbol string
	K      float64
	D      float64
	Close  float64
	At     time.Time
}

// Classification partitions a cycle's snapshots by extreme.
type Classification struct {
	Oversold   []Snapshot
	Overbought []Snapshot
	Neutral    []Snapshot
}

// HasExtremes reports whether any snapshot is oversold or overbought.
func (c Classification) HasExtremes() bool {
	return len(c.Oversold) > 0 || len(c.Overbought) > 0
}

// Total is the number of classified snapshots.
func (c Classification) Total() int {
	return len(c.Oversold) + len(c.Overbought) + len(c.Neutral)
}

// CycleReport summarizes one screening cycle.
type CycleReport struct {
	ID             string
	Source         string
	Timeframe      Timeframe
	StartedAt      time.Time
	FinishedAt     time.Time
	Universe       int
	Scanned        int
	Skipped        int
	Classification Classification
	Alert          string
	AlertSent      bool
	DeliveryErr    error
	Err            error
}

// Duration is the wall time the cycle took.
func (r *CycleReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
