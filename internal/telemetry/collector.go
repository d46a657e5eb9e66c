package telemetry

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventCircuitTripped EventType = "circuit_tripped"
	EventCircuitReset   EventType = "circuit_reset"
	EventDuplicate      EventType = "duplicate_blocked"
	EventThrottled      EventType = "request_throttled"
	EventAllowed        EventType = "request_allowed"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Caller    string
	Reason    string
}

type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// Emit sends an event without blocking; events are dropped when the
// buffer is full so the request path never stalls on telemetry.
// Safe to call on a nil collector.
func (c *Collector) Emit(event Event) {
	if c == nil {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Telemetry collector started")
	defer c.logger.Info("Telemetry collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventAllowed:
		c.metrics.RecordAllowed(event.Caller)

	case EventDuplicate:
		c.metrics.RecordDuplicate(event.Caller)

	case EventThrottled:
		c.metrics.RecordThrottled(event.Caller)

	case EventCircuitTripped:
		c.metrics.RecordTrip(event.Caller, event.Reason, event.Timestamp)

	case EventCircuitReset:
		c.metrics.RecordReset(event.Caller)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
