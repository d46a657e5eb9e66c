package loadsampler

import (
	"sync"
	"time"
)

// Static serves a fixed sample. It exists so the dynamic-threshold
// formula can be exercised with synthetic load instead of OS metrics,
// and as the sampler for hosts that opt out of system polling.
type Static struct {
	mutex  sync.RWMutex
	sample Sample
}

func NewStatic(sample Sample) *Static {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	return &Static{sample: sample}
}

func (s *Static) Sample() Sample {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.sample
}

// Set replaces the served sample.
func (s *Static) Set(sample Sample) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	s.sample = sample
}
