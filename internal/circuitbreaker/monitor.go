package circuitbreaker

import (
	"context"
	"log/slog"
	"time"
)

// StartMonitor runs the circuit-state monitor: it closes open circuits
// whose reset timeout elapsed with no further calls and trims stale
// history. The sweep snapshots caller IDs first and re-locks per caller
// so it never holds the lock across the whole pass.
func (b *Breaker) StartMonitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				b.logger.Info("Circuit monitor stopped")
				return
			case <-ticker.C:
				b.sweep()
			}
		}
	}()
}

func (b *Breaker) sweep() {
	b.mutex.Lock()
	callerIDs := make([]string, 0, len(b.callers))
	for callerID := range b.callers {
		callerIDs = append(callerIDs, callerID)
	}
	b.mutex.Unlock()

	now := time.Now()

	for _, callerID := range callerIDs {
		b.mutex.Lock()
		st, exists := b.callers[callerID]
		if !exists {
			b.mutex.Unlock()
			continue
		}

		if st.isOpen && now.Sub(st.lastTripTime) >= b.opts.ResetTimeout {
			b.close(callerID, st, "reset timeout elapsed")
		} else if st.isOpen {
			b.logger.Warn("Circuit still open",
				slog.String("caller", callerID),
				slog.String("reason", st.tripReason),
				slog.Duration("open_for", now.Sub(st.lastTripTime)))
		}

		st.trimHistory(now)
		b.mutex.Unlock()
	}
}
