package loadsampler

import (
	"time"
)

// Sample is a point-in-time view of host load. AvgResponseMs is not an
// OS metric; the circuit breaker fills it in from its own observed
// call durations before feeding the sample to the threshold formula.
type Sample struct {
	MemoryBytes   uint64    `json:"memory_bytes"`
	CPULoadPct    float64   `json:"cpu_load_pct"`
	AvgResponseMs float64   `json:"avg_response_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// Sampler provides the latest load sample. Implementations must be
// safe for concurrent use and must never block the request path.
type Sampler interface {
	Sample() Sample
}
