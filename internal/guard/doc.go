// Package guard composes the circuit breaker and the request registry
// into a single admission-control entry point.
//
// The protection boundary is explicit at the call site:
//
//	decision := g.Check("transcribeAudio", payload, meta)
//	if !decision.IsCircuitOpen {
//	    defer g.Complete("transcribeAudio")
//	}
//	if decision.Allowed {
//	    // Forward to the transcription pipeline...
//	}
//
// or, with the scoped-release helper:
//
//	decision, err := g.Run("transcribeAudio", payload, meta, func() error {
//	    return forward(payload)
//	})
package guard
