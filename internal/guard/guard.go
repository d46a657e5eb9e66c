package guard

import (
	"log/slog"

	"github.com/voxguard/transcription-guard/internal/circuitbreaker"
	"github.com/voxguard/transcription-guard/internal/fingerprint"
	"github.com/voxguard/transcription-guard/internal/registry"
)

// Decision is the guard's structured admission result. Rejections are
// expected and frequent; they are returned as values, never as errors.
type Decision struct {
	Allowed       bool   `json:"allowed"`
	IsDuplicate   bool   `json:"is_duplicate"`
	IsThrottled   bool   `json:"is_throttled"`
	IsCircuitOpen bool   `json:"is_circuit_open"`
	Reason        string `json:"reason,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
}

// Guard composes the circuit breaker and the request registry into the
// single admission entry point callers use.
type Guard struct {
	breaker  *circuitbreaker.Breaker
	registry *registry.Registry
	logger   *slog.Logger
}

func New(breaker *circuitbreaker.Breaker, reg *registry.Registry, logger *slog.Logger) *Guard {
	return &Guard{
		breaker:  breaker,
		registry: reg,
		logger:   logger,
	}
}

// Check runs the admission sequence: circuit breaker first, then the
// registry when a payload is present. A circuit-open rejection means
// the call never entered the breaker and needs no Complete. Any other
// outcome, including a registry rejection, did enter the breaker, so
// the caller must pair it with Complete (use Run for that bracket).
func (g *Guard) Check(callerID string, payload []byte, meta fingerprint.Metadata, args ...string) Decision {
	if !g.breaker.Check(callerID, args...) {
		return Decision{
			IsCircuitOpen: true,
			Reason:        "circuit open for caller " + callerID,
		}
	}

	if len(payload) == 0 {
		return Decision{Allowed: true}
	}

	result := g.registry.Register(payload, meta, callerID)
	return Decision{
		Allowed:     result.Allowed,
		IsDuplicate: result.IsDuplicate,
		IsThrottled: result.IsThrottled,
		Reason:      result.Reason,
		RequestID:   result.RequestID,
	}
}

// Complete releases the breaker slot acquired by a non-circuit-open Check.
func (g *Guard) Complete(callerID string) {
	g.breaker.Complete(callerID)
}

// ReportError forwards a downstream failure to the breaker.
func (g *Guard) ReportError(callerID string, err error) {
	g.breaker.ReportError(callerID, err)
}

// Run brackets a protected operation with Check and Complete so depth
// can never leak on error paths. fn runs only when admission succeeds;
// its error is reported to the breaker and returned unchanged.
func (g *Guard) Run(callerID string, payload []byte, meta fingerprint.Metadata, fn func() error) (Decision, error) {
	decision := g.Check(callerID, payload, meta)

	if decision.IsCircuitOpen {
		return decision, nil
	}

	defer g.Complete(callerID)

	if !decision.Allowed {
		return decision, nil
	}

	err := fn()
	if err != nil {
		g.ReportError(callerID, err)
	}
	return decision, err
}

// Reset force-closes one caller's circuit.
func (g *Guard) Reset(callerID string) {
	g.breaker.Reset(callerID)
}

// ResetAll force-closes every circuit.
func (g *Guard) ResetAll() {
	g.breaker.ResetAll()
}

// Dispose stops the registry's background cleanup and clears its state.
func (g *Guard) Dispose() {
	g.registry.Dispose()
}
