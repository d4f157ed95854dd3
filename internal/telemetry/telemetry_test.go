package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestObserveDispatchIncrementsByOpAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveDispatch(1, "setRate", true)
	c.ObserveDispatch(1, "setRate", true)
	c.ObserveDispatch(1, "setRate", false)

	require.Equal(t, float64(2), counterValue(t, c.dispatchTotal.WithLabelValues("setRate", "success")))
	require.Equal(t, float64(1), counterValue(t, c.dispatchTotal.WithLabelValues("setRate", "failure")))
}

func TestObserveReconcileSplitsByTransition(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveReconcile(1, true)
	c.ObserveReconcile(1, false)
	c.ObserveReconcile(1, false)

	require.Equal(t, float64(1), counterValue(t, c.reconcileTotal.WithLabelValues("true")))
	require.Equal(t, float64(2), counterValue(t, c.reconcileTotal.WithLabelValues("false")))
}

func TestObserveCapacityExhaustedByResource(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveCapacityExhausted("registry")
	c.ObserveCapacityExhausted("registry")
	c.ObserveCapacityExhausted("requestTable")

	require.Equal(t, float64(2), counterValue(t, c.capacityExhaustedTotal.WithLabelValues("registry")))
	require.Equal(t, float64(1), counterValue(t, c.capacityExhaustedTotal.WithLabelValues("requestTable")))
}

func TestObserveInfeasibleRequestIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveInfeasibleRequest(7)
	c.ObserveInfeasibleRequest(7)

	require.Equal(t, float64(2), counterValue(t, c.infeasibleRejected))
}

func TestSensorGaugesTrackLatestValuePerHandle(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetSensorRate(5, 100)
	c.SetSensorRate(5, 150)
	c.SetSensorLatency(5, 20)

	require.Equal(t, float64(150), gaugeValue(t, c.sensorRate.WithLabelValues("5")))
	require.Equal(t, float64(20), gaugeValue(t, c.sensorLatency.WithLabelValues("5")))
}

func TestDropSensorRemovesGaugeSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetSensorRate(9, 42)
	c.DropSensor(9)

	require.Equal(t, float64(0), gaugeValue(t, c.sensorRate.WithLabelValues("9")))
}
