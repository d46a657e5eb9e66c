package circuitbreaker

import (
	"github.com/voxguard/transcription-guard/internal/loadsampler"
)

// Load watermarks for the threshold formula. Approximations of host
// pressure; only their directional effect on the threshold is contractual.
const (
	memoryHighWaterBytes = 500 << 20
	memoryLowWaterBytes  = 100 << 20
	cpuHighPct           = 80.0
	slowResponseMs       = 3000.0

	memoryPressureFactor  = 0.7
	memoryHeadroomFactor  = 1.2
	cpuPressureFactor     = 0.8
	latencyPressureFactor = 0.6
)

// computeThreshold derives the depth ceiling from the latest load
// sample. Factors combine multiplicatively in a fixed order (memory,
// cpu, latency) and the result clamps to [MinCallDepth, MaxCallDepth].
// Re-derived on every check so the breaker tightens as the host degrades.
func computeThreshold(opts Options, sample loadsampler.Sample) int {
	threshold := float64(opts.BaseMaxCallDepth)

	if sample.MemoryBytes > memoryHighWaterBytes {
		threshold *= memoryPressureFactor
	} else if sample.MemoryBytes > 0 && sample.MemoryBytes < memoryLowWaterBytes {
		threshold *= memoryHeadroomFactor
	}

	if sample.CPULoadPct > cpuHighPct {
		threshold *= cpuPressureFactor
	}

	if sample.AvgResponseMs > slowResponseMs {
		threshold *= latencyPressureFactor
	}

	result := int(threshold)
	if result < opts.MinCallDepth {
		return opts.MinCallDepth
	}
	if result > opts.MaxCallDepth {
		return opts.MaxCallDepth
	}
	return result
}
