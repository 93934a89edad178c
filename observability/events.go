package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"tranchepool/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured engine events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of engine events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Emitter returns an events.Emitter that counts every emitted event. Wrap it
// around another emitter with events.Tee when the events are also consumed
// elsewhere.
func (m *eventMetrics) Emitter() events.Emitter {
	return events.EmitterFunc(func(evt events.Event) {
		evtType := strings.TrimSpace(evt.Type)
		if evtType == "" {
			evtType = "unknown"
		}
		m.emitted.WithLabelValues(evtType).Inc()
	})
}
