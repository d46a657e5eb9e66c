package registry

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// staleAgeMultiplier scales the frequency window into the age beyond
// which records and patterns are considered stale.
const staleAgeMultiplier = 3

// StartCleanup runs the periodic maintenance loop until the context is
// cancelled or the registry is disposed.
func (r *Registry) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.opts.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("Registry cleanup stopped")
				return
			case <-r.stopCh:
				r.logger.Info("Registry cleanup stopped")
				return
			case <-ticker.C:
				r.cleanup()
			}
		}
	}()
}

// cleanup snapshots stale keys under a read lock, then deletes them
// under the write lock with a re-check, so the sweep never starves
// request-path callers.
func (r *Registry) cleanup() {
	now := time.Now()
	staleAge := staleAgeMultiplier * r.opts.WindowSize

	r.mutex.RLock()
	staleRecords := make([]string, 0)
	for key, rec := range r.records {
		if now.Sub(rec.lastSeen) > staleAge {
			staleRecords = append(staleRecords, key)
		}
	}

	stalePatterns := make([]string, 0)
	for key, pat := range r.patterns {
		// Throttled patterns survive until cooldown naturally expires.
		if pat.isThrottled && now.Before(pat.cooldownUntil) {
			continue
		}
		if now.Sub(pat.lastSeen) > staleAge {
			stalePatterns = append(stalePatterns, key)
		}
	}
	r.mutex.RUnlock()

	if len(staleRecords) == 0 && len(stalePatterns) == 0 {
		r.enforceSizeCap()
		return
	}

	r.mutex.Lock()
	removed := 0
	for _, key := range staleRecords {
		if rec, exists := r.records[key]; exists && now.Sub(rec.lastSeen) > staleAge {
			delete(r.records, key)
			removed++
		}
	}
	for _, key := range stalePatterns {
		pat, exists := r.patterns[key]
		if !exists {
			continue
		}
		if pat.isThrottled && now.Before(pat.cooldownUntil) {
			continue
		}
		if now.Sub(pat.lastSeen) > staleAge {
			delete(r.patterns, key)
			removed++
		}
	}
	r.mutex.Unlock()

	if removed > 0 {
		r.logger.Debug("Registry cleanup removed stale entries",
			slog.Int("removed", removed))
	}

	r.enforceSizeCap()
}

// enforceSizeCap evicts the oldest records, oldest first, so
// MaxRegistrySize is a hard bound rather than a soft target.
func (r *Registry) enforceSizeCap() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	excess := len(r.records) - r.opts.MaxRegistrySize
	if excess <= 0 {
		return
	}

	type aged struct {
		key      string
		lastSeen time.Time
	}

	candidates := make([]aged, 0, len(r.records))
	for key, rec := range r.records {
		candidates = append(candidates, aged{key: key, lastSeen: rec.lastSeen})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastSeen.Before(candidates[j].lastSeen)
	})

	evicted := 0
	for _, candidate := range candidates {
		if evicted >= excess {
			break
		}
		delete(r.records, candidate.key)
		evicted++
	}

	r.logger.Debug("Registry size cap enforced",
		slog.Int("evicted", evicted),
		slog.Int("remaining", len(r.records)))
}

// removeStaleLocked is the eager variant triggered from the request
// path when the registry outgrows the cleanup threshold. Caller must
// hold the write lock.
func (r *Registry) removeStaleLocked(now time.Time) {
	staleAge := staleAgeMultiplier * r.opts.WindowSize

	for key, rec := range r.records {
		if now.Sub(rec.lastSeen) > staleAge {
			delete(r.records, key)
		}
	}

	for key, pat := range r.patterns {
		if pat.isThrottled && now.Before(pat.cooldownUntil) {
			continue
		}
		if now.Sub(pat.lastSeen) > staleAge {
			delete(r.patterns, key)
		}
	}
}
