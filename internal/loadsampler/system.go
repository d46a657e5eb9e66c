package loadsampler

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// System polls the process's resident memory and host CPU usage on a
// fixed interval and caches the latest sample in an atomic, so reads
// from the request path never touch the OS.
type System struct {
	current  atomic.Value // Sample
	proc     *process.Process
	interval time.Duration
	logger   *slog.Logger
}

func NewSystem(interval time.Duration, logger *slog.Logger) *System {
	s := &System{
		interval: interval,
		logger:   logger,
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("process handle unavailable, memory sampling disabled",
			slog.String("error", err.Error()))
	} else {
		s.proc = proc
	}

	s.current.Store(Sample{Timestamp: time.Now()})
	return s
}

// Start launches the polling loop. An initial sample is taken before
// the first tick so early threshold computations see real values.
func (s *System) Start(ctx context.Context) {
	s.poll()
	go s.run(ctx)
}

// Sample returns the most recently cached load sample.
func (s *System) Sample() Sample {
	return s.current.Load().(Sample)
}

func (s *System) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Load sampler stopped")
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *System) poll() {
	sample := s.current.Load().(Sample)
	sample.Timestamp = time.Now()

	if s.proc != nil {
		if mi, err := s.proc.MemoryInfo(); err == nil {
			sample.MemoryBytes = mi.RSS
		} else {
			s.logger.Debug("memory sampling failed", slog.String("error", err.Error()))
		}
	}

	// Percent with zero interval compares against the previous call,
	// so each tick reports usage over the last polling window.
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		sample.CPULoadPct = pcts[0]
	} else if err != nil {
		s.logger.Debug("cpu sampling failed", slog.String("error", err.Error()))
	}

	s.current.Store(sample)
}
