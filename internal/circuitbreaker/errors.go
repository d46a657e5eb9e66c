package circuitbreaker

import (
	"errors"
	"strings"
)

// ErrDepthExceeded is the sentinel callers report when their own
// recursion guard fires. It trips the circuit immediately, bypassing
// the error-count ceiling.
var ErrDepthExceeded = errors.New("call depth exceeded")

// IsStackExhaustion reports whether an error signals stack-depth
// exhaustion. The sentinel is the supported mechanism; the message
// patterns catch errors surfacing from foreign layers.
func IsStackExhaustion(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrDepthExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "stack overflow") ||
		strings.Contains(msg, "maximum call") ||
		strings.Contains(msg, "goroutine stack exceeds")
}
