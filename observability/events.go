package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"sentechain/core/events"
)

type eventMetrics struct {
	committed *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			committed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sente",
				Subsystem: "events",
				Name:      "committed_total",
				Help:      "Count of committed ledger events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.committed)
	})
	return eventRegistry
}

// RecordEvent increments the committed counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		normalized = "unknown"
	}
	m.committed.WithLabelValues(normalized).Inc()
}

// EventCounter is an events.Emitter that counts every emitted event by type.
// Records are unwrapped so the inner event type is counted.
type EventCounter struct{}

// Emit implements events.Emitter.
func (EventCounter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	if rec, ok := evt.(events.Record); ok && rec.Event != nil {
		Events().RecordEvent(rec.Event.Type)
		return
	}
	Events().RecordEvent(evt.EventType())
}
