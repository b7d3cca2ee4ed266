package patchengine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/audiograph/errors"
	"github.com/c360/audiograph/metric"
)

// engineMetrics holds Prometheus metrics for patch engine operations.
type engineMetrics struct {
	core *metric.Metrics

	// Module table operations
	adds     *prometheus.CounterVec // By status (success/failure)
	updates  *prometheus.CounterVec // By status
	removes  prometheus.Counter
	connects *prometheus.CounterVec // By status

	// Lifecycle operations
	starts *prometheus.CounterVec // By status
	stops  *prometheus.CounterVec // By status

	// Operation latency
	startDuration prometheus.Histogram
	stopDuration  prometheus.Histogram

	// State metrics
	liveModules       prometheus.Gauge
	handleRecreations prometheus.Counter
}

// newEngineMetrics creates and registers patch engine metrics with the provided registry.
func newEngineMetrics(registry *metric.MetricsRegistry) (*engineMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &engineMetrics{
		core: registry.CoreMetrics(),

		adds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audiograph",
			Subsystem: "engine",
			Name:      "module_adds_total",
			Help:      "Total number of addModule operations",
		}, []string{"status"}),

		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audiograph",
			Subsystem: "engine",
			Name:      "module_updates_total",
			Help:      "Total number of updateModule operations",
		}, []string{"status"}),

		removes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "audiograph",
			Subsystem: "engine",
			Name:      "module_removes_total",
			Help:      "Total number of removeModule operations",
		}),

		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audiograph",
			Subsystem: "engine",
			Name:      "connects_total",
			Help:      "Total number of connect operations",
		}, []string{"status"}),

		starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audiograph",
			Subsystem: "engine",
			Name:      "starts_total",
			Help:      "Total number of engine start operations",
		}, []string{"status"}),

		stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audiograph",
			Subsystem: "engine",
			Name:      "stops_total",
			Help:      "Total number of engine stop operations",
		}, []string{"status"}),

		startDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "audiograph",
			Subsystem: "engine",
			Name:      "start_duration_seconds",
			Help:      "Engine start operation duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),

		stopDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "audiograph",
			Subsystem: "engine",
			Name:      "stop_duration_seconds",
			Help:      "Engine stop operation duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),

		liveModules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "audiograph",
			Subsystem: "engine",
			Name:      "modules_live",
			Help:      "Current number of live modules",
		}),

		handleRecreations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "audiograph",
			Subsystem: "engine",
			Name:      "handle_recreations_total",
			Help:      "Total number of single-fire handles replaced after stop",
		}),
	}

	if err := registry.RegisterCounterVec("engine", "module_adds", m.adds); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("engine", "module_updates", m.updates); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("engine", "module_removes", m.removes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("engine", "connects", m.connects); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("engine", "starts", m.starts); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("engine", "stops", m.stops); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("engine", "start_duration", m.startDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("engine", "stop_duration", m.stopDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("engine", "modules_live", m.liveModules); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("engine", "handle_recreations", m.handleRecreations); err != nil {
		return nil, err
	}

	return m, nil
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// recordAdd records an addModule operation.
func (m *engineMetrics) recordAdd(success bool) {
	if m == nil {
		return
	}
	m.adds.WithLabelValues(status(success)).Inc()
}

// recordUpdate records an updateModule operation.
func (m *engineMetrics) recordUpdate(success bool) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(status(success)).Inc()
}

// recordRemove records a removeModule operation.
func (m *engineMetrics) recordRemove() {
	if m == nil {
		return
	}
	m.removes.Inc()
}

// recordConnect records a connect operation.
func (m *engineMetrics) recordConnect(success bool) {
	if m == nil {
		return
	}
	m.connects.WithLabelValues(status(success)).Inc()
}

// recordStart records an engine start operation.
func (m *engineMetrics) recordStart(success bool, duration float64) {
	if m == nil {
		return
	}
	m.starts.WithLabelValues(status(success)).Inc()
	m.startDuration.Observe(duration)
}

// recordStop records an engine stop operation.
func (m *engineMetrics) recordStop(success bool, duration float64) {
	if m == nil {
		return
	}
	m.stops.WithLabelValues(status(success)).Inc()
	m.stopDuration.Observe(duration)
}

// recordRecreation records a single-fire handle replacement.
func (m *engineMetrics) recordRecreation() {
	if m == nil {
		return
	}
	m.handleRecreations.Inc()
}

// setLiveModules sets the live module gauge.
func (m *engineMetrics) setLiveModules(count float64) {
	if m == nil {
		return
	}
	m.liveModules.Set(count)
}

// recordEngineStarted mirrors engine started state onto the core gauge.
func (m *engineMetrics) recordEngineStarted(started bool) {
	if m == nil {
		return
	}
	m.core.RecordEngineStarted(started)
}

// recordBackendConnected mirrors backend connectivity onto the core gauge.
func (m *engineMetrics) recordBackendConnected(connected bool) {
	if m == nil {
		return
	}
	m.core.RecordBackendConnected(connected)
}

// recordBackendCommand counts one command handed to the backend.
func (m *engineMetrics) recordBackendCommand(op string) {
	if m == nil {
		return
	}
	m.core.RecordBackendCommand(op)
}

// recordError counts an engine error under its classification.
func (m *engineMetrics) recordError(err error) {
	if m == nil || err == nil {
		return
	}
	m.core.RecordError("engine", errors.Classify(err).String())
}
