package circuitbreaker

import (
	"time"

	"github.com/voxguard/transcription-guard/internal/loadsampler"
)

// CallerStatus is a read-only view of one caller's circuit.
type CallerStatus struct {
	State            string    `json:"state"`
	CurrentDepth     int       `json:"current_depth"`
	DynamicThreshold int       `json:"dynamic_threshold"`
	ErrorCount       int       `json:"error_count"`
	LastTripTime     time.Time `json:"last_trip_time,omitzero"`
	TripReason       string    `json:"trip_reason,omitempty"`
	HistoryLength    int       `json:"history_length"`
}

// Status snapshots every tracked caller plus the latest load samples.
type Status struct {
	Callers     map[string]CallerStatus `json:"callers"`
	LoadSamples []loadsampler.Sample    `json:"load_samples"`
}

// StackView renders a caller's recent frames and recurrence patterns
// for operational tooling.
type StackView struct {
	Caller           string         `json:"caller"`
	State            string         `json:"state"`
	CurrentDepth     int            `json:"current_depth"`
	DynamicThreshold int            `json:"dynamic_threshold"`
	Frames           []CallFrame    `json:"frames"`
	PatternCounts    map[string]int `json:"pattern_counts"`
}

// Status returns a point-in-time snapshot of all circuits.
func (b *Breaker) Status() Status {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	status := Status{
		Callers:     make(map[string]CallerStatus, len(b.callers)),
		LoadSamples: append([]loadsampler.Sample(nil), b.samples...),
	}

	for callerID, st := range b.callers {
		status.Callers[callerID] = CallerStatus{
			State:            b.stateOf(st).String(),
			CurrentDepth:     st.currentDepth,
			DynamicThreshold: st.dynamicThreshold,
			ErrorCount:       st.errorCount,
			LastTripTime:     st.lastTripTime,
			TripReason:       st.tripReason,
			HistoryLength:    len(st.history),
		}
	}

	return status
}

// CallStackVisualization returns the recent frames per caller, newest
// last, with copied slices so callers cannot alias breaker state.
func (b *Breaker) CallStackVisualization() []StackView {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	views := make([]StackView, 0, len(b.callers))
	for callerID, st := range b.callers {
		patterns := make(map[string]int, len(st.patternCounts))
		for sig, count := range st.patternCounts {
			patterns[sig] = count
		}

		views = append(views, StackView{
			Caller:           callerID,
			State:            b.stateOf(st).String(),
			CurrentDepth:     st.currentDepth,
			DynamicThreshold: st.dynamicThreshold,
			Frames:           append([]CallFrame(nil), st.history...),
			PatternCounts:    patterns,
		})
	}

	return views
}

func (b *Breaker) stateOf(st *callerState) State {
	if st.isOpen {
		return StateOpen
	}
	return StateClosed
}
