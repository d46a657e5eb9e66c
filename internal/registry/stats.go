package registry

import (
	"sort"
	"time"
)

// Statistics is a read-only summary of registry occupancy.
type Statistics struct {
	TotalRecords      int           `json:"total_records"`
	TotalPatterns     int           `json:"total_patterns"`
	ThrottledPatterns int           `json:"throttled_patterns"`
	TotalOccurrences  int64         `json:"total_occurrences"`
	OldestRecordAge   time.Duration `json:"oldest_record_age"`
}

// PatternReport is one pattern's analysis entry.
type PatternReport struct {
	Key             string        `json:"key"`
	Hash            string        `json:"hash"`
	OccurrenceCount int           `json:"occurrence_count"`
	AverageInterval time.Duration `json:"average_interval"`
	IsThrottled     bool          `json:"is_throttled"`
	CooldownUntil   time.Time     `json:"cooldown_until,omitzero"`
	RiskLevel       RiskLevel     `json:"risk_level"`
}

// Statistics returns a point-in-time occupancy summary.
func (r *Registry) Statistics() Statistics {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	now := time.Now()
	stats := Statistics{
		TotalRecords:  len(r.records),
		TotalPatterns: len(r.patterns),
	}

	for _, rec := range r.records {
		stats.TotalOccurrences += int64(rec.occurrenceCount)
		if age := now.Sub(rec.firstSeen); age > stats.OldestRecordAge {
			stats.OldestRecordAge = age
		}
	}

	for _, pat := range r.patterns {
		if pat.isThrottled && now.Before(pat.cooldownUntil) {
			stats.ThrottledPatterns++
		}
	}

	return stats
}

// PatternAnalysis reports every tracked pattern with its risk level,
// highest risk first, then by occurrence count.
func (r *Registry) PatternAnalysis() []PatternReport {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	reports := make([]PatternReport, 0, len(r.patterns))
	for key, pat := range r.patterns {
		reports = append(reports, PatternReport{
			Key:             key,
			Hash:            pat.hash,
			OccurrenceCount: pat.occurrenceCount,
			AverageInterval: pat.averageInterval,
			IsThrottled:     pat.isThrottled,
			CooldownUntil:   pat.cooldownUntil,
			RiskLevel:       pat.riskLevel(),
		})
	}

	rank := map[RiskLevel]int{RiskHigh: 0, RiskMedium: 1, RiskLow: 2}
	sort.Slice(reports, func(i, j int) bool {
		if rank[reports[i].RiskLevel] != rank[reports[j].RiskLevel] {
			return rank[reports[i].RiskLevel] < rank[reports[j].RiskLevel]
		}
		return reports[i].OccurrenceCount > reports[j].OccurrenceCount
	})

	return reports
}
