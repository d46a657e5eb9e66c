package circuitbreaker

import (
	"fmt"
	"strings"
	"time"
)

const (
	historyRetention = 10 * time.Second
	maxHistoryFrames = 200
	rapidCallWindow  = time.Second
	maxSamples       = 100
	maxArgLen        = 64
	maxArgsTotal     = 256
)

type Severity string

const (
	SeverityNormal   Severity = "normal"   // below 50% of threshold
	SeverityElevated Severity = "elevated" // 50-70%
	SeverityHigh     Severity = "high"     // 70-90%
	SeverityCritical Severity = "critical" // 90% and above
)

// CallFrame is one entry in a caller's bounded history, used for
// rapid-call detection and diagnostics.
type CallFrame struct {
	Timestamp time.Time `json:"timestamp"`
	Depth     int       `json:"depth"`
	Args      string    `json:"args,omitempty"`
	CallPath  string    `json:"call_path"`
	Severity  Severity  `json:"severity"`
}

func newFrame(now time.Time, depth int, callerID string, args []string, threshold int) CallFrame {
	sanitized := sanitizeArgs(args)
	return CallFrame{
		Timestamp: now,
		Depth:     depth,
		Args:      sanitized,
		CallPath:  fmt.Sprintf("%s@%d", callerID, depth),
		Severity:  classifySeverity(depth, threshold),
	}
}

// classifySeverity tiers the depth against 50/70/90% of the dynamic
// threshold. Diagnostic only; admission is decided by the threshold itself.
func classifySeverity(depth, threshold int) Severity {
	if threshold <= 0 {
		return SeverityCritical
	}

	ratio := float64(depth) / float64(threshold)
	switch {
	case ratio >= 0.9:
		return SeverityCritical
	case ratio >= 0.7:
		return SeverityHigh
	case ratio >= 0.5:
		return SeverityElevated
	default:
		return SeverityNormal
	}
}

func sanitizeArgs(args []string) string {
	if len(args) == 0 {
		return ""
	}

	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if len(arg) > maxArgLen {
			arg = arg[:maxArgLen] + "..."
		}
		parts = append(parts, arg)
	}

	joined := strings.Join(parts, ",")
	if len(joined) > maxArgsTotal {
		joined = joined[:maxArgsTotal] + "..."
	}
	return joined
}

// trimHistory drops frames older than the retention window and caps the
// slice so a hot caller cannot grow it without bound.
func (st *callerState) trimHistory(now time.Time) {
	cutoff := now.Add(-historyRetention)

	firstLive := len(st.history)
	for i, frame := range st.history {
		if frame.Timestamp.After(cutoff) {
			firstLive = i
			break
		}
	}
	if firstLive > 0 {
		st.history = append(st.history[:0], st.history[firstLive:]...)
	}

	if len(st.history) > maxHistoryFrames {
		st.history = append(st.history[:0], st.history[len(st.history)-maxHistoryFrames:]...)
	}
}

// rapidCalls counts history frames inside the rapid-call window.
func (st *callerState) rapidCalls(now time.Time) int {
	cutoff := now.Add(-rapidCallWindow)

	count := 0
	for i := len(st.history) - 1; i >= 0; i-- {
		if !st.history[i].Timestamp.After(cutoff) {
			break
		}
		count++
	}
	return count
}
