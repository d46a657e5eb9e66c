package guard

import (
	"github.com/voxguard/transcription-guard/internal/circuitbreaker"
	"github.com/voxguard/transcription-guard/internal/registry"
)

// ProtectionStatus combines both components' snapshots for the
// operational query surface.
type ProtectionStatus struct {
	Breaker  circuitbreaker.Status `json:"breaker"`
	Registry registry.Statistics   `json:"registry"`
}

func (g *Guard) ProtectionStatus() ProtectionStatus {
	return ProtectionStatus{
		Breaker:  g.breaker.Status(),
		Registry: g.registry.Statistics(),
	}
}

func (g *Guard) Statistics() registry.Statistics {
	return g.registry.Statistics()
}

func (g *Guard) PatternAnalysis() []registry.PatternReport {
	return g.registry.PatternAnalysis()
}

func (g *Guard) CallStackVisualization() []circuitbreaker.StackView {
	return g.breaker.CallStackVisualization()
}
