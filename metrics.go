package sensormgr

import (
	"sync/atomic"
	"time"
)

// Metrics tracks the manager's operational statistics: dispatcher call
// outcomes, state-machine reconcile activity, and resource exhaustion.
// Grounded on the teacher's atomic-counter Metrics (metrics.go), narrowed
// from per-I/O-op counters to the sensor manager's own call surface.
type Metrics struct {
	DispatchCalls    atomic.Uint64 // total driver operations dispatched
	DispatchFailures atomic.Uint64 // dispatcher calls that returned false

	ReconcileCalls       atomic.Uint64 // total Reconcile invocations
	ReconcileTransitions atomic.Uint64 // Reconcile calls that changed state

	CapacityExhausted  atomic.Uint64 // registry/request-table/event-pool full
	InfeasibleRejected atomic.Uint64 // requests rejected as IMPOSSIBLE

	StartTime atomic.Int64 // manager start timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordDispatch records the outcome of one dispatcher call.
func (m *Metrics) RecordDispatch(success bool) {
	m.DispatchCalls.Add(1)
	if !success {
		m.DispatchFailures.Add(1)
	}
}

// RecordReconcile records one Reconcile invocation and whether it issued a
// state transition.
func (m *Metrics) RecordReconcile(transitioned bool) {
	m.ReconcileCalls.Add(1)
	if transitioned {
		m.ReconcileTransitions.Add(1)
	}
}

// RecordCapacityExhausted records a failed allocation against a bounded pool.
func (m *Metrics) RecordCapacityExhausted() {
	m.CapacityExhausted.Add(1)
}

// RecordInfeasibleRejection records a request or amend rejected because
// aggregation returned IMPOSSIBLE.
func (m *Metrics) RecordInfeasibleRejection() {
	m.InfeasibleRejected.Add(1)
}

// MetricsSnapshot is a point-in-time view of Metrics.
type MetricsSnapshot struct {
	DispatchCalls        uint64
	DispatchFailures     uint64
	ReconcileCalls       uint64
	ReconcileTransitions uint64
	CapacityExhausted    uint64
	InfeasibleRejected   uint64
	UptimeNs             uint64
	DispatchErrorRate    float64
}

// Snapshot returns a point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		DispatchCalls:        m.DispatchCalls.Load(),
		DispatchFailures:     m.DispatchFailures.Load(),
		ReconcileCalls:       m.ReconcileCalls.Load(),
		ReconcileTransitions: m.ReconcileTransitions.Load(),
		CapacityExhausted:    m.CapacityExhausted.Load(),
		InfeasibleRejected:   m.InfeasibleRejected.Load(),
		UptimeNs:             uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}
	if snap.DispatchCalls > 0 {
		snap.DispatchErrorRate = float64(snap.DispatchFailures) / float64(snap.DispatchCalls) * 100.0
	}
	return snap
}

// Reset resets all metrics counters. Useful for testing.
func (m *Metrics) Reset() {
	m.DispatchCalls.Store(0)
	m.DispatchFailures.Store(0)
	m.ReconcileCalls.Store(0)
	m.ReconcileTransitions.Store(0)
	m.CapacityExhausted.Store(0)
	m.InfeasibleRejected.Store(0)
	m.StartTime.Store(time.Now().UnixNano())
}

// Observer allows pluggable collection of manager events, the same
// pattern as the teacher's I/O Observer but over dispatch/reconcile/
// capacity events instead of read/write/discard/flush.
type Observer interface {
	// ObserveDispatch is called after every dispatcher call.
	ObserveDispatch(handle uint32, op string, success bool)

	// ObserveReconcile is called after every Reconcile invocation and after
	// every completion event the manager handles for a live sensor.
	ObserveReconcile(handle uint32, transitioned bool)

	// ObserveCapacityExhausted is called when a bounded pool allocation fails.
	ObserveCapacityExhausted(resource string)

	// ObserveInfeasibleRequest is called when aggregation rejects a request
	// or amend as IMPOSSIBLE.
	ObserveInfeasibleRequest(handle uint32)
}

// NoOpObserver is a no-op implementation of Observer, the manager's default.
type NoOpObserver struct{}

func (NoOpObserver) ObserveDispatch(uint32, string, bool) {}
func (NoOpObserver) ObserveReconcile(uint32, bool)        {}
func (NoOpObserver) ObserveCapacityExhausted(string)      {}
func (NoOpObserver) ObserveInfeasibleRequest(uint32)      {}

// MetricsObserver implements Observer using the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveDispatch(_ uint32, _ string, success bool) {
	o.metrics.RecordDispatch(success)
}

func (o *MetricsObserver) ObserveReconcile(_ uint32, transitioned bool) {
	o.metrics.RecordReconcile(transitioned)
}

func (o *MetricsObserver) ObserveCapacityExhausted(string) {
	o.metrics.RecordCapacityExhausted()
}

func (o *MetricsObserver) ObserveInfeasibleRequest(uint32) {
	o.metrics.RecordInfeasibleRejection()
}

// Compile-time interface checks.
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
