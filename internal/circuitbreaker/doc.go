// Package circuitbreaker implements a per-caller circuit breaker with a
// load-adjusted call-depth threshold.
//
// Each caller identity has two states:
//
//   - CLOSED: Normal operation, calls proceed, depth tracked
//   - OPEN: Calls rejected until the reset timeout elapses
//
// A circuit trips when a caller's in-flight depth exceeds the dynamic
// threshold, when calls arrive faster than the rapid-call limit, when
// the error count reaches its ceiling, or immediately on a
// stack-exhaustion error. The threshold is recomputed on every check
// from the latest load sample, so the breaker tightens automatically as
// the host degrades.
//
// Usage:
//
//	breaker := circuitbreaker.NewBreaker(opts, sampler, collector, logger)
//	if breaker.Check("transcribeAudio") {
//	    defer breaker.Complete("transcribeAudio")
//	    // Make the protected call...
//	    if err != nil {
//	        breaker.ReportError("transcribeAudio", err)
//	    }
//	}
package circuitbreaker
