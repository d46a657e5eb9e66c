package circuitbreaker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxguard/transcription-guard/internal/loadsampler"
	"github.com/voxguard/transcription-guard/internal/telemetry"
)

type State int

const (
	StateClosed State = iota // Normal operation, depth tracked
	StateOpen                // Blocking requests until reset timeout
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

type Options struct {
	BaseMaxCallDepth int
	MinCallDepth     int
	MaxCallDepth     int
	MaxErrors        int
	ResetTimeout     time.Duration
	RapidCallLimit   int
}

// callerState holds the per-caller depth, error and history bookkeeping.
// Created lazily on first check; cleared on reset, never destroyed.
type callerState struct {
	currentDepth     int
	dynamicThreshold int
	isOpen           bool
	lastTripTime     time.Time
	tripReason       string
	errorCount       int
	history          []CallFrame
	patternCounts    map[string]int
	samples          []loadsampler.Sample
	inFlight         []time.Time
	ewmaResponse     time.Duration
	hasEWMA          bool
}

const ewmaAlpha = 0.2

// Breaker is a per-caller circuit breaker with a load-adjusted depth
// threshold. One coarse lock guards the caller map; all operations are
// in-memory and bounded by the trimmed history sizes.
type Breaker struct {
	mutex     sync.Mutex
	callers   map[string]*callerState
	sampler   loadsampler.Sampler
	samples   []loadsampler.Sample
	opts      Options
	logger    *slog.Logger
	collector *telemetry.Collector
}

func NewBreaker(opts Options, sampler loadsampler.Sampler, collector *telemetry.Collector, logger *slog.Logger) *Breaker {
	return &Breaker{
		callers:   make(map[string]*callerState),
		sampler:   sampler,
		opts:      opts,
		logger:    logger,
		collector: collector,
	}
}

// Check admits or rejects a call for the given caller identity. An open
// circuit past its reset timeout closes before the call is evaluated.
// Every admitted call must be paired with Complete.
func (b *Breaker) Check(callerID string, args ...string) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	st := b.ensure(callerID)
	now := time.Now()

	if st.isOpen {
		if now.Sub(st.lastTripTime) < b.opts.ResetTimeout {
			return false
		}
		b.close(callerID, st, "reset timeout elapsed")
	}

	sample := b.sampler.Sample()
	if sample.AvgResponseMs == 0 {
		sample.AvgResponseMs = float64(st.avgResponse().Milliseconds())
	}
	b.recordSample(st, sample)

	st.dynamicThreshold = computeThreshold(b.opts, sample)
	st.currentDepth++
	st.inFlight = append(st.inFlight, now)

	frame := newFrame(now, st.currentDepth, callerID, args, st.dynamicThreshold)
	st.history = append(st.history, frame)
	st.trimHistory(now)
	st.patternCounts[frame.CallPath]++

	b.logSeverity(callerID, frame)

	if st.currentDepth > st.dynamicThreshold {
		b.trip(callerID, st, now, fmt.Sprintf(
			"call depth %d exceeded dynamic threshold %d", st.currentDepth, st.dynamicThreshold))
		return false
	}

	if st.rapidCalls(now) > b.opts.RapidCallLimit {
		b.trip(callerID, st, now, fmt.Sprintf(
			"more than %d calls within %s", b.opts.RapidCallLimit, rapidCallWindow))
		return false
	}

	return true
}

// Complete releases one unit of depth for the caller and records the
// call duration. Callers must invoke it on success and failure paths,
// typically via defer, or depth leaks upward until the breaker trips.
func (b *Breaker) Complete(callerID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	st, exists := b.callers[callerID]
	if !exists {
		return
	}

	now := time.Now()

	if st.currentDepth > 0 {
		st.currentDepth--
	}

	if n := len(st.inFlight); n > 0 {
		started := st.inFlight[n-1]
		st.inFlight = st.inFlight[:n-1]
		st.recordResponse(now.Sub(started))
	}

	st.trimHistory(now)
}

// ReportError records a downstream failure. Stack-exhaustion errors
// trip the circuit immediately; other errors trip it once the count
// reaches the configured ceiling.
func (b *Breaker) ReportError(callerID string, err error) {
	if err == nil {
		return
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	st := b.ensure(callerID)
	now := time.Now()

	if IsStackExhaustion(err) {
		b.trip(callerID, st, now, "stack exhaustion: "+err.Error())
		return
	}

	st.errorCount++
	if st.errorCount >= b.opts.MaxErrors {
		b.trip(callerID, st, now, fmt.Sprintf(
			"error count reached %d: %s", st.errorCount, err.Error()))
	}
}

// Reset forces the caller's circuit closed and clears its state.
func (b *Breaker) Reset(callerID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if st, exists := b.callers[callerID]; exists {
		b.close(callerID, st, "manual reset")
	}
}

// ResetAll force-closes every tracked caller.
func (b *Breaker) ResetAll() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for callerID, st := range b.callers {
		b.close(callerID, st, "manual reset")
	}
}

// State reports the caller's current circuit state.
func (b *Breaker) State(callerID string) State {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	st, exists := b.callers[callerID]
	if !exists || !st.isOpen {
		return StateClosed
	}
	return StateOpen
}

func (b *Breaker) ensure(callerID string) *callerState {
	st, exists := b.callers[callerID]
	if exists {
		return st
	}

	st = &callerState{
		dynamicThreshold: b.opts.BaseMaxCallDepth,
		patternCounts:    make(map[string]int),
	}
	b.callers[callerID] = st
	return st
}

// trip opens the circuit. Depth resets to zero so a later close starts
// from a clean slate. Caller must hold the lock.
func (b *Breaker) trip(callerID string, st *callerState, now time.Time, reason string) {
	st.isOpen = true
	st.lastTripTime = now
	st.tripReason = reason
	st.currentDepth = 0
	st.inFlight = nil

	b.logger.Error("Circuit tripped",
		slog.String("caller", callerID),
		slog.String("reason", reason))

	b.collector.Emit(telemetry.Event{
		Type:      telemetry.EventCircuitTripped,
		Timestamp: now,
		Caller:    callerID,
		Reason:    reason,
	})
}

// close returns the circuit to normal operation and clears the
// caller's bookkeeping. Caller must hold the lock.
func (b *Breaker) close(callerID string, st *callerState, reason string) {
	wasOpen := st.isOpen

	st.isOpen = false
	st.currentDepth = 0
	st.errorCount = 0
	st.tripReason = ""
	st.history = nil
	st.inFlight = nil
	st.patternCounts = make(map[string]int)

	if wasOpen {
		b.logger.Info("Circuit reset",
			slog.String("caller", callerID),
			slog.String("reason", reason))

		b.collector.Emit(telemetry.Event{
			Type:      telemetry.EventCircuitReset,
			Timestamp: time.Now(),
			Caller:    callerID,
			Reason:    reason,
		})
	}
}

func (b *Breaker) recordSample(st *callerState, sample loadsampler.Sample) {
	b.samples = append(b.samples, sample)
	if len(b.samples) > maxSamples {
		b.samples = b.samples[1:]
	}

	st.samples = append(st.samples, sample)
	if len(st.samples) > maxSamples {
		st.samples = st.samples[1:]
	}
}

func (b *Breaker) logSeverity(callerID string, frame CallFrame) {
	switch frame.Severity {
	case SeverityCritical:
		b.logger.Error("Call depth critical",
			slog.String("caller", callerID),
			slog.Int("depth", frame.Depth))
	case SeverityHigh:
		b.logger.Warn("Call depth high",
			slog.String("caller", callerID),
			slog.Int("depth", frame.Depth))
	case SeverityElevated:
		b.logger.Debug("Call depth elevated",
			slog.String("caller", callerID),
			slog.Int("depth", frame.Depth))
	}
}

func (st *callerState) recordResponse(duration time.Duration) {
	if !st.hasEWMA {
		st.ewmaResponse = duration
		st.hasEWMA = true
		return
	}
	//ewma = (1 - α) * ewma + α * latest
	st.ewmaResponse = time.Duration((1-ewmaAlpha)*float64(st.ewmaResponse) + ewmaAlpha*float64(duration))
}

func (st *callerState) avgResponse() time.Duration {
	if !st.hasEWMA {
		return 0
	}
	return st.ewmaResponse
}
