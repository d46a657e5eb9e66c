// Package telemetry collects protection-lifecycle events from the guard.
//
// It uses a channel-based event pipeline to asynchronously aggregate:
//   - Admission outcomes per caller (allowed, duplicate, throttled)
//   - Circuit trips with their reasons and timestamps
//   - Circuit resets (automatic and manual)
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the admission path. Events are sent via buffered channels with
// non-blocking semantics; when the buffer is full events are dropped rather
// than stalling a caller.
//
// Example usage:
//
//	collector := telemetry.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(telemetry.Event{
//		Type:   telemetry.EventCircuitTripped,
//		Caller: "transcribeAudio",
//		Reason: "call depth 18 exceeded dynamic threshold 15",
//	})
//
//	snapshot := collector.Snapshot()
//
// Shutdown drains any queued events so late trips are not lost.
package telemetry
