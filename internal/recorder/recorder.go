package recorder

import "StochSentinel/internal/model"

// Recorder keeps a journal of screening cycles: when they ran, how many pairs
// were scanned and which pairs were alerted. Indicator values are not stored.
type Recorder interface {
	RecordCycle(report *model.CycleReport) error
	Close() error
}
