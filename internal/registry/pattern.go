package registry

import (
	"time"
)

const maxIntervals = 20

type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// pattern tracks request frequency for one caller identity. Invariant:
// isThrottled implies cooldownUntil is set and in the future; a pattern
// becomes eligible for deletion only when it is not throttled and has
// gone stale past the cleanup age.
type pattern struct {
	hash            string // most recent content hash, diagnostics only
	occurrenceCount int
	intervals       []time.Duration
	firstSeen       time.Time
	lastSeen        time.Time
	averageInterval time.Duration
	isThrottled     bool
	cooldownUntil   time.Time
	recent          []time.Time
}

func newPattern() *pattern {
	return &pattern{}
}

// observe records an allowed request at the given instant.
func (p *pattern) observe(now time.Time, hash string) {
	if p.firstSeen.IsZero() {
		p.firstSeen = now
	}

	if !p.lastSeen.IsZero() {
		p.intervals = append(p.intervals, now.Sub(p.lastSeen))
		if len(p.intervals) > maxIntervals {
			p.intervals = p.intervals[1:]
		}

		var sum time.Duration
		for _, interval := range p.intervals {
			sum += interval
		}
		p.averageInterval = sum / time.Duration(len(p.intervals))
	}

	p.hash = hash
	p.lastSeen = now
	p.occurrenceCount++
	p.recent = append(p.recent, now)
}

// pruneRecent drops window timestamps older than the frequency window.
func (p *pattern) pruneRecent(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)

	firstLive := len(p.recent)
	for i, ts := range p.recent {
		if ts.After(cutoff) {
			firstLive = i
			break
		}
	}
	if firstLive > 0 {
		p.recent = append(p.recent[:0], p.recent[firstLive:]...)
	}
}

// riskLevel classifies the pattern for operational analysis. A pattern
// with fewer than two sightings has no interval data and cannot rank
// above its occurrence tier.
func (p *pattern) riskLevel() RiskLevel {
	hasInterval := len(p.intervals) > 0

	switch {
	case p.occurrenceCount > 20 || (hasInterval && p.averageInterval < time.Second):
		return RiskHigh
	case p.occurrenceCount > 10 || (hasInterval && p.averageInterval < 2*time.Second):
		return RiskMedium
	default:
		return RiskLow
	}
}
