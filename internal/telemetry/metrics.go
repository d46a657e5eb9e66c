package telemetry

import (
	"sync"
	"time"
)

type Metrics struct {
	mutex       sync.RWMutex
	allowed     map[string]int64
	duplicates  map[string]int64
	throttled   map[string]int64
	trips       map[string]int64
	resets      map[string]int64
	lastTrip    map[string]time.Time
	lastTripWhy map[string]string
	startTime   time.Time
}

type Snapshot struct {
	TotalAllowed int64                    `json:"total_allowed"`
	TotalBlocked int64                    `json:"total_blocked"`
	Uptime       time.Duration            `json:"uptime"`
	Callers      map[string]CallerMetrics `json:"callers"`
}

type CallerMetrics struct {
	Allowed        int64     `json:"allowed"`
	Duplicates     int64     `json:"duplicates"`
	Throttled      int64     `json:"throttled"`
	Trips          int64     `json:"trips"`
	Resets         int64     `json:"resets"`
	LastTrip       time.Time `json:"last_trip,omitzero"`
	LastTripReason string    `json:"last_trip_reason,omitempty"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		allowed:     make(map[string]int64),
		duplicates:  make(map[string]int64),
		throttled:   make(map[string]int64),
		trips:       make(map[string]int64),
		resets:      make(map[string]int64),
		lastTrip:    make(map[string]time.Time),
		lastTripWhy: make(map[string]string),
		startTime:   time.Now(),
	}
}

func (m *Metrics) RecordAllowed(caller string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.allowed[caller]++
}

func (m *Metrics) RecordDuplicate(caller string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.duplicates[caller]++
}

func (m *Metrics) RecordThrottled(caller string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.throttled[caller]++
}

func (m *Metrics) RecordTrip(caller, reason string, at time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.trips[caller]++
	m.lastTrip[caller] = at
	m.lastTripWhy[caller] = reason
}

func (m *Metrics) RecordReset(caller string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.resets[caller]++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:  time.Since(m.startTime),
		Callers: make(map[string]CallerMetrics),
	}

	allCallers := make(map[string]bool)
	for caller := range m.allowed {
		allCallers[caller] = true
	}
	for caller := range m.duplicates {
		allCallers[caller] = true
	}
	for caller := range m.throttled {
		allCallers[caller] = true
	}
	for caller := range m.trips {
		allCallers[caller] = true
	}
	for caller := range m.resets {
		allCallers[caller] = true
	}

	for caller := range allCallers {
		snap.TotalAllowed += m.allowed[caller]
		snap.TotalBlocked += m.duplicates[caller] + m.throttled[caller]

		snap.Callers[caller] = CallerMetrics{
			Allowed:        m.allowed[caller],
			Duplicates:     m.duplicates[caller],
			Throttled:      m.throttled[caller],
			Trips:          m.trips[caller],
			Resets:         m.resets[caller],
			LastTrip:       m.lastTrip[caller],
			LastTripReason: m.lastTripWhy[caller],
		}
	}

	return snap
}
