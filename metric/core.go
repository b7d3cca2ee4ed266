package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains platform-level metrics shared across components.
// Engine-specific metrics (module counts, operation latencies) are
// registered by the engine itself through the registrar interface.
type Metrics struct {
	// EngineStarted reports whether the patch engine is currently started.
	EngineStarted prometheus.Gauge

	// BackendConnected reports backend adapter connectivity
	// (1=connected/ready, 0=not). The engine sets it when the backend
	// context is acquired and clears it at shutdown; the NATS bridge also
	// tracks connection loss and recovery.
	BackendConnected prometheus.Gauge

	// BackendCommands counts commands handed to the backend, by op.
	BackendCommands *prometheus.CounterVec

	// ErrorsTotal counts errors by component and class.
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		EngineStarted: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "audiograph",
				Subsystem: "engine",
				Name:      "started",
				Help:      "Engine started state (0=stopped, 1=started)",
			},
		),

		BackendConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "audiograph",
				Subsystem: "backend",
				Name:      "connected",
				Help:      "Backend adapter connectivity (0=down, 1=ready)",
			},
		),

		BackendCommands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "audiograph",
				Subsystem: "backend",
				Name:      "commands_total",
				Help:      "Total commands handed to the backend adapter",
			},
			[]string{"op"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "audiograph",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "class"},
		),
	}
}

// RecordEngineStarted updates the engine started gauge.
func (c *Metrics) RecordEngineStarted(started bool) {
	value := 0.0
	if started {
		value = 1.0
	}
	c.EngineStarted.Set(value)
}

// RecordBackendConnected updates backend connectivity status.
func (c *Metrics) RecordBackendConnected(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.BackendConnected.Set(value)
}

// RecordBackendCommand increments the backend command counter for an op.
func (c *Metrics) RecordBackendCommand(op string) {
	c.BackendCommands.WithLabelValues(op).Inc()
}

// RecordError increments the error counter.
func (c *Metrics) RecordError(component, class string) {
	c.ErrorsTotal.WithLabelValues(component, class).Inc()
}
