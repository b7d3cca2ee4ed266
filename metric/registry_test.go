package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistryRegistersCore(t *testing.T) {
	r := NewMetricsRegistry()
	require.NotNil(t, r.CoreMetrics())

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["audiograph_engine_started"])
	assert.True(t, names["audiograph_backend_connected"])
	assert.True(t, names["go_goroutines"], "Go runtime collectors registered")
}

func TestRegisterRejectsDuplicateKey(t *testing.T) {
	r := NewMetricsRegistry()

	c1 := prometheus.NewCounter(prometheus.CounterOpts{Name: "patch_ops_a_total"})
	c2 := prometheus.NewCounter(prometheus.CounterOpts{Name: "patch_ops_b_total"})

	require.NoError(t, r.RegisterCounter("engine", "ops", c1))
	require.Error(t, r.RegisterCounter("engine", "ops", c2))
}

func TestUnregister(t *testing.T) {
	r := NewMetricsRegistry()

	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "patch_modules_live"})
	require.NoError(t, r.RegisterGauge("engine", "modules_live", g))

	assert.True(t, r.Unregister("engine", "modules_live"))
	assert.False(t, r.Unregister("engine", "modules_live"))

	// The key is free again after unregistration
	require.NoError(t, r.RegisterGauge("engine", "modules_live", g))
}

func TestCoreMetricRecorders(t *testing.T) {
	r := NewMetricsRegistry()
	m := r.CoreMetrics()

	m.RecordEngineStarted(true)
	m.RecordBackendConnected(true)
	m.RecordBackendCommand("create")
	m.RecordError("engine", "invalid")

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
