// Package telemetry exposes the manager's operational counters and gauges
// to Prometheus, the way a production daemon built from this pack would:
// marmos91-dittofs registers its own domain counters on a prometheus.Registry
// and serves them through promhttp.Handler, and cmd/sensormgrd follows the
// same shape. Collector implements sensormgr.Observer directly, so it can
// be handed to Manager.SetStateObserver (via the dispatch/reconcile path)
// without an adapter layer.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sensorhub/sensormgr"
)

// Collector registers and updates the Prometheus series for one manager
// instance.
type Collector struct {
	dispatchTotal          *prometheus.CounterVec
	reconcileTotal         *prometheus.CounterVec
	capacityExhaustedTotal *prometheus.CounterVec
	infeasibleRejected     prometheus.Counter

	sensorRate    *prometheus.GaugeVec
	sensorLatency *prometheus.GaugeVec
}

// NewCollector builds a Collector and registers its series on reg. Passing
// prometheus.NewRegistry() (rather than the global DefaultRegisterer) keeps
// repeated test construction from panicking on duplicate registration.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensormgr",
			Name:      "dispatch_calls_total",
			Help:      "Driver operations dispatched, by operation and outcome.",
		}, []string{"op", "result"}),
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensormgr",
			Name:      "reconcile_calls_total",
			Help:      "Reconcile invocations and handled completion events, split by whether a state transition occurred.",
		}, []string{"transitioned"}),
		capacityExhaustedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensormgr",
			Name:      "capacity_exhausted_total",
			Help:      "Bounded-pool allocation failures, by resource.",
		}, []string{"resource"}),
		infeasibleRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensormgr",
			Name:      "infeasible_requests_total",
			Help:      "Requests or amends rejected because aggregation was infeasible.",
		}),
		sensorRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sensormgr",
			Name:      "sensor_rate",
			Help:      "Current aggregated hardware rate, by sensor handle.",
		}, []string{"handle"}),
		sensorLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sensormgr",
			Name:      "sensor_latency",
			Help:      "Current aggregated hardware latency, by sensor handle.",
		}, []string{"handle"}),
	}

	reg.MustRegister(
		c.dispatchTotal,
		c.reconcileTotal,
		c.capacityExhaustedTotal,
		c.infeasibleRejected,
		c.sensorRate,
		c.sensorLatency,
	)
	return c
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// ObserveDispatch implements sensormgr.Observer.
func (c *Collector) ObserveDispatch(_ uint32, op string, success bool) {
	c.dispatchTotal.WithLabelValues(op, resultLabel(success)).Inc()
}

// ObserveReconcile implements sensormgr.Observer.
func (c *Collector) ObserveReconcile(_ uint32, transitioned bool) {
	c.reconcileTotal.WithLabelValues(boolLabel(transitioned)).Inc()
}

// ObserveCapacityExhausted implements sensormgr.Observer.
func (c *Collector) ObserveCapacityExhausted(resource string) {
	c.capacityExhaustedTotal.WithLabelValues(resource).Inc()
}

// ObserveInfeasibleRequest implements sensormgr.Observer.
func (c *Collector) ObserveInfeasibleRequest(uint32) {
	c.infeasibleRejected.Inc()
}

// SetSensorRate records the current aggregated hardware rate for handle.
// Not part of sensormgr.Observer, since Manager never imports this package
// (it would cycle back through sensormgr); instead cmd/sensormgrd polls
// Manager.CurRate/CurLatency per registered sensor and pushes the values
// here, the same poll-and-push shape as the teacher's queue-depth gauge
// sitting alongside its own Observer interface.
func (c *Collector) SetSensorRate(handle uint32, rate float64) {
	c.sensorRate.WithLabelValues(handleLabel(handle)).Set(rate)
}

// SetSensorLatency records the current aggregated hardware latency for handle.
func (c *Collector) SetSensorLatency(handle uint32, latency float64) {
	c.sensorLatency.WithLabelValues(handleLabel(handle)).Set(latency)
}

// DropSensor removes handle's gauges, called on unregister so stale series
// don't linger in /metrics.
func (c *Collector) DropSensor(handle uint32) {
	c.sensorRate.DeleteLabelValues(handleLabel(handle))
	c.sensorLatency.DeleteLabelValues(handleLabel(handle))
}

func handleLabel(handle uint32) string {
	return strconv.FormatUint(uint64(handle), 10)
}

var _ sensormgr.Observer = (*Collector)(nil)
