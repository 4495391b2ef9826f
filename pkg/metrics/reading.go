package metrics

import "time"

// SourceState tracks the health of one source across poll cycles.
type SourceState string

const (
	// StateUninitialized means the source has never been polled.
	StateUninitialized SourceState = "uninitialized"

	// StateHealthy means the most recent fetch succeeded.
	StateHealthy SourceState = "healthy"

	// StateDegraded means the most recent fetch failed; Data retains the
	// last successful value when one exists.
	StateDegraded SourceState = "degraded"
)

// Reading is the latest known result for one source. When
// LastUpdateSuccess is false, Data holds the last successfully fetched
// value (stale-but-present) and is nil only if the source has never
// succeeded.
//
// Readings marshal to JSON with the payload's kind alongside the data
// so they can be decoded back to concrete Value types; see json.go.
type Reading struct {
	SourceID          string
	Data              Value
	LastUpdateSuccess bool
	Timestamp         time.Time
	State             SourceState
	Err               string
}

// Next returns the state that follows s given the outcome of a fetch.
func (s SourceState) Next(success bool) SourceState {
	if success {
		return StateHealthy
	}
	return StateDegraded
}
