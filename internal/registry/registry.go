package registry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxguard/transcription-guard/internal/fingerprint"
	"github.com/voxguard/transcription-guard/internal/telemetry"
)

type Options struct {
	MaxRequestsPerWindow   int
	WindowSize             time.Duration
	CooldownPeriod         time.Duration
	DuplicateWindow        time.Duration
	CleanupInterval        time.Duration
	MaxRegistrySize        int
	MemoryCleanupThreshold int
}

// Result is the registry's admission decision. Rejections are values,
// never errors; internal faults fail closed with a reason string.
type Result struct {
	Allowed     bool   `json:"allowed"`
	IsDuplicate bool   `json:"is_duplicate"`
	IsThrottled bool   `json:"is_throttled"`
	RequestID   string `json:"request_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// record tracks one distinct content hash. Records merge on repeat
// sightings, they are never duplicated for the same hash.
type record struct {
	id              string
	contentHash     string
	callerID        string
	firstSeen       time.Time
	lastSeen        time.Time
	occurrenceCount int
	sourceID        string
	payloadLength   int
}

// Registry owns duplicate records and frequency patterns. A single
// RWMutex guards both maps; all operations are in-memory and bounded.
type Registry struct {
	mutex     sync.RWMutex
	records   map[string]*record
	patterns  map[string]*pattern
	opts      Options
	logger    *slog.Logger
	collector *telemetry.Collector
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewRegistry(opts Options, collector *telemetry.Collector, logger *slog.Logger) *Registry {
	return &Registry{
		records:   make(map[string]*record),
		patterns:  make(map[string]*pattern),
		opts:      opts,
		logger:    logger,
		collector: collector,
		stopCh:    make(chan struct{}),
	}
}

// Register runs the admission sequence for a payload: fingerprint,
// duplicate check, throttle check, then record. Duplicates are checked
// before throttling so a blocked duplicate never counts toward the
// frequency window.
func (r *Registry) Register(payload []byte, meta fingerprint.Metadata, callerID string) Result {
	hash, err := fingerprint.Fingerprint(payload, meta)
	if err != nil {
		r.logger.Warn("Fingerprinting failed",
			slog.String("caller", callerID),
			slog.String("error", err.Error()))
		return Result{
			Allowed: false,
			Reason:  fmt.Sprintf("registration failed: %v", err),
		}
	}

	now := time.Now()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := recordKey(hash, callerID)
	if rec, exists := r.records[key]; exists && now.Sub(rec.lastSeen) <= r.opts.DuplicateWindow {
		rec.lastSeen = now
		rec.occurrenceCount++

		r.collector.Emit(telemetry.Event{
			Type:      telemetry.EventDuplicate,
			Timestamp: now,
			Caller:    callerID,
			Reason:    "duplicate payload within " + r.opts.DuplicateWindow.String(),
		})

		return Result{
			Allowed:     false,
			IsDuplicate: true,
			Reason:      "duplicate payload within " + r.opts.DuplicateWindow.String(),
		}
	}

	pat := r.ensurePattern(callerID)

	if pat.isThrottled {
		if now.Before(pat.cooldownUntil) {
			r.collector.Emit(telemetry.Event{
				Type:      telemetry.EventThrottled,
				Timestamp: now,
				Caller:    callerID,
				Reason:    "cooldown active",
			})

			return Result{
				Allowed:     false,
				IsThrottled: true,
				Reason:      fmt.Sprintf("cooldown active until %s", pat.cooldownUntil.Format(time.RFC3339)),
			}
		}
		pat.isThrottled = false
		pat.cooldownUntil = time.Time{}
	}

	pat.pruneRecent(now, r.opts.WindowSize)
	if len(pat.recent) >= r.opts.MaxRequestsPerWindow {
		pat.isThrottled = true
		pat.cooldownUntil = now.Add(r.opts.CooldownPeriod)

		reason := fmt.Sprintf("%d requests within %s exceeded limit %d",
			len(pat.recent), r.opts.WindowSize, r.opts.MaxRequestsPerWindow)

		r.logger.Warn("Caller throttled",
			slog.String("caller", callerID),
			slog.String("reason", reason))

		r.collector.Emit(telemetry.Event{
			Type:      telemetry.EventThrottled,
			Timestamp: now,
			Caller:    callerID,
			Reason:    reason,
		})

		return Result{
			Allowed:     false,
			IsThrottled: true,
			Reason:      reason,
		}
	}

	rec, exists := r.records[key]
	if !exists {
		rec = &record{
			id:          uuid.NewString(),
			contentHash: hash,
			callerID:    callerID,
			firstSeen:   now,
			sourceID:    meta.SourceID,
		}
		r.records[key] = rec
	}
	rec.lastSeen = now
	rec.occurrenceCount++
	rec.payloadLength = len(payload)

	pat.observe(now, hash)

	if len(r.records) > r.opts.MemoryCleanupThreshold {
		r.removeStaleLocked(now)
	}

	r.collector.Emit(telemetry.Event{
		Type:      telemetry.EventAllowed,
		Timestamp: now,
		Caller:    callerID,
	})

	return Result{
		Allowed:   true,
		RequestID: rec.id,
	}
}

// IsDuplicate reports whether the hash was last seen within the
// duplicate window for this caller. Pure query; mutates nothing.
func (r *Registry) IsDuplicate(hash, callerID string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	rec, exists := r.records[recordKey(hash, callerID)]
	return exists && time.Since(rec.lastSeen) <= r.opts.DuplicateWindow
}

// IsThrottled reports whether the caller's pattern is inside an active
// cooldown. Pure query; mutates nothing.
func (r *Registry) IsThrottled(hash, callerID string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	pat, exists := r.patterns[patternKey(callerID)]
	return exists && pat.isThrottled && time.Now().Before(pat.cooldownUntil)
}

// Dispose stops background cleanup and clears all state.
func (r *Registry) Dispose() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.records = make(map[string]*record)
	r.patterns = make(map[string]*pattern)
}

func (r *Registry) ensurePattern(callerID string) *pattern {
	key := patternKey(callerID)
	pat, exists := r.patterns[key]
	if exists {
		return pat
	}

	pat = newPattern()
	r.patterns[key] = pat
	return pat
}

func recordKey(hash, callerID string) string {
	if callerID == "" {
		return hash
	}
	return hash + "|" + callerID
}

// patternKey scopes frequency counting to the caller identity; callers
// without one share a single pattern.
func patternKey(callerID string) string {
	if callerID == "" {
		return "global"
	}
	return callerID
}
