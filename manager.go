package sensormgr

import (
	"sync"

	"github.com/google/uuid"

	"github.com/sensorhub/sensormgr/internal/aggregate"
	"github.com/sensorhub/sensormgr/internal/constants"
	"github.com/sensorhub/sensormgr/internal/dispatch"
	"github.com/sensorhub/sensormgr/internal/events"
	"github.com/sensorhub/sensormgr/internal/logging"
	"github.com/sensorhub/sensormgr/internal/registry"
	"github.com/sensorhub/sensormgr/internal/requests"
	"github.com/sensorhub/sensormgr/internal/slab"
	"github.com/sensorhub/sensormgr/internal/statemachine"
)

// Manager is the in-process arbiter between client subscribers and a fixed
// population of sensors: it owns the registry, the client request table,
// and the single-threaded reconcile path that drives each sensor's state
// machine toward the aggregate target its live requests describe.
//
// All state-mutating calls (Request/Amend/Release/TriggerOndemand/Flush/
// SignalInternalEvt) are serialized by eventMu, modeling the "single
// cooperative execution context" the state machine assumes (spec.md §5);
// Register/Unregister remain lock-free, touching only the registry's
// atomic slot bitset.
type Manager struct {
	eventMu sync.Mutex

	registry   *registry.Registry
	requests   *requests.Table
	eventPool  *slab.Arena[events.Record]
	dispatcher *dispatch.Dispatcher
	scheduler  events.Scheduler

	log      logging.Interface
	observer Observer
}

// NewManager constructs a Manager from cfg, rejecting it up front if
// invalid. scheduler is the out-of-scope external event/defer runtime that
// SignalInternalEvt defers completion handling onto. A nil log falls back
// to a standard logger (logging.NewLogger(nil): info level, stderr);
// callers may supply one built from cfg.LogBackend (see cmd/sensormgrd).
func NewManager(cfg Config, scheduler events.Scheduler, log logging.Interface) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logging.NewLogger(nil)
	}

	pool := slab.NewArena[events.Record](cfg.MaxInternalEvents)
	m := &Manager{
		registry:  registry.New(cfg.MaxRegisteredSensors),
		requests:  requests.New(cfg.MaxClientSensorRecords),
		eventPool: pool,
		scheduler: scheduler,
		log:       log,
		observer:  NoOpObserver{},
	}
	m.dispatcher = dispatch.New(pool, dispatch.WithResultObserver(m.observeDispatch))
	return m, nil
}

func (m *Manager) observeDispatch(code dispatch.EventCode, success bool) {
	m.observer.ObserveDispatch(0, code.String(), success)
}

// SetStateObserver installs obs as the manager's Observer, replacing the
// default no-op. Not part of spec.md's public API; added so a caller (the
// Prometheus telemetry collector, or an alerting layer) can watch dispatch
// calls, reconcile transitions, and capacity exhaustion without changing
// the state machine's driver-facing contract (see SPEC_FULL.md, firmware-
// upload-failure notification).
func (m *Manager) SetStateObserver(obs Observer) {
	if obs == nil {
		obs = NoOpObserver{}
	}
	m.observer = obs
}

// RegisterInProc registers a sensor driven by a synchronous in-process ops
// table, returning its handle or 0 if info fails validation or the slot
// table is full.
func (m *Manager) RegisterInProc(info registry.Info, ops dispatch.Ops) uint32 {
	if !m.validateInfo(info) {
		return 0
	}
	h := m.registry.Register(info, dispatch.InProc(ops))
	if h == 0 {
		m.observer.ObserveCapacityExhausted("registry")
	}
	return h
}

// RegisterOutOfProc registers a sensor reached as an out-of-process task,
// addressed by taskID over sink, returning its handle or 0 if info fails
// validation or the slot table is full.
func (m *Manager) RegisterOutOfProc(info registry.Info, taskID uuid.UUID, sink dispatch.TaskSink) uint32 {
	if !m.validateInfo(info) {
		return 0
	}
	h := m.registry.Register(info, dispatch.OutOfProc(taskID, sink))
	if h == 0 {
		m.observer.ObserveCapacityExhausted("registry")
	}
	return h
}

// validateInfo checks info against the shared validator (required Name and
// Type, a non-empty strictly ascending SupportedRates list of positive
// rates), logging and rejecting registration on failure rather than
// installing a malformed slot (SPEC_FULL.md §3).
func (m *Manager) validateInfo(info registry.Info) bool {
	if err := configValidator.Struct(info); err != nil {
		m.log.Warn("sensor registration rejected: invalid info", "name", info.Name, "error", err)
		return false
	}
	return true
}

// Unregister retracts handle, returning false if it is not currently live.
func (m *Manager) Unregister(handle uint32) bool {
	return m.registry.Unregister(handle)
}

// ListSensors returns the handles of every currently live sensor, in slot
// order. Supplemented query (spec.md has no catalog-listing operation).
func (m *Manager) ListSensors() []uint32 {
	var handles []uint32
	m.registry.Each(func(h uint32, _ *registry.Record) {
		handles = append(handles, h)
	})
	return handles
}

// SensorInfo returns handle's immutable descriptor. Supplemented query.
func (m *Manager) SensorInfo(handle uint32) (registry.Info, bool) {
	rec := m.registry.FindByHandle(handle)
	if rec == nil {
		return registry.Info{}, false
	}
	return rec.Info, true
}

// Request registers clientID's interest in handle at rate/latency. Returns
// false if handle is unknown, the request table is full, or the resulting
// aggregated rate would be infeasible (spec.md §4.6). A duplicate
// (handle, clientID) is not rejected: a second record is appended rather
// than merged (spec.md §9 open question, resolved as "stacks" —
// see DESIGN.md).
func (m *Manager) Request(clientID, handle uint32, rate constants.Rate, latency constants.Latency) bool {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	rec := m.registry.FindByHandle(handle)
	if rec == nil {
		return false
	}

	existing := m.ratesForSensor(handle)
	if _, ok := aggregate.CalcHwRate(rec.Info.SupportedRates, existing, rate, constants.RateOff); !ok {
		m.observer.ObserveInfeasibleRequest(handle)
		return false
	}

	if !m.requests.Add(handle, clientID, rate, latency) {
		m.observer.ObserveCapacityExhausted("requestTable")
		return false
	}

	m.reconcileSensor(rec, handle)
	return true
}

// Amend updates clientID's existing request for handle to newRate/
// newLatency. Returns false if there is no existing (handle, clientID)
// record, or the resulting aggregated rate would be infeasible.
func (m *Manager) Amend(clientID, handle uint32, newRate constants.Rate, newLatency constants.Latency) bool {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	rec := m.registry.FindByHandle(handle)
	if rec == nil {
		return false
	}

	oldRate, _, ok := m.requests.Get(handle, clientID)
	if !ok {
		return false
	}

	existing := m.ratesForSensor(handle)
	if _, ok := aggregate.CalcHwRate(rec.Info.SupportedRates, existing, newRate, oldRate); !ok {
		m.observer.ObserveInfeasibleRequest(handle)
		return false
	}

	if !m.requests.Amend(handle, clientID, newRate, newLatency) {
		return false
	}

	m.reconcileSensor(rec, handle)
	return true
}

// Release removes clientID's request for handle and reconciles. A client
// with no existing request is a no-op that returns false.
func (m *Manager) Release(clientID, handle uint32) bool {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	if !m.requests.Delete(handle, clientID) {
		return false
	}

	if rec := m.registry.FindByHandle(handle); rec != nil {
		m.reconcileSensor(rec, handle)
	}
	return true
}

// CountRequests reports how many live records match (handle, clientID).
// Supplemented query surfacing the stacking semantics of Request (spec.md
// §9 open question) so a caller can detect it if it cares to.
func (m *Manager) CountRequests(handle, clientID uint32) int {
	return m.requests.Count(handle, clientID)
}

// TriggerOndemand dispatches triggerOndemand() for handle, requiring that
// clientID currently holds a request against it.
func (m *Manager) TriggerOndemand(clientID, handle uint32) bool {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	rec := m.registry.FindByHandle(handle)
	if rec == nil {
		return false
	}
	if _, _, ok := m.requests.Get(handle, clientID); !ok {
		return false
	}
	return m.dispatcher.TriggerOndemand(rec.CallInfo)
}

// Flush dispatches flush() for handle. No client ownership check.
func (m *Manager) Flush(handle uint32) bool {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	rec := m.registry.FindByHandle(handle)
	if rec == nil {
		return false
	}
	return m.dispatcher.Flush(rec.CallInfo)
}

// CurRate returns handle's current hardware rate, or RateOff if handle is
// unknown.
func (m *Manager) CurRate(handle uint32) constants.Rate {
	rec := m.registry.FindByHandle(handle)
	if rec == nil {
		return constants.RateOff
	}
	return rec.State.Rate()
}

// CurLatency returns handle's current hardware latency, or LatencyInvalid
// if handle is unknown.
func (m *Manager) CurLatency(handle uint32) constants.Latency {
	rec := m.registry.FindByHandle(handle)
	if rec == nil {
		return constants.LatencyInvalid
	}
	return rec.State.Latency()
}

// SignalInternalEvt is the driver-side entry point for an asynchronous
// completion: it allocates an internal-event record, fills it, and defers
// the matching completion handler onto the scheduler. Returns false if the
// event pool is exhausted or the scheduler refuses the deferral (spec.md
// §4.6, §9 — Kind is a closed typed enum, so there is no bounds check to
// omit).
func (m *Manager) SignalInternalEvt(handle uint32, kind events.Kind, on bool, rate constants.Rate, latency constants.Latency) bool {
	idx, slot, ok := m.eventPool.Alloc()
	if !ok {
		m.observer.ObserveCapacityExhausted("eventPool")
		return false
	}
	slot.Handle = handle
	slot.Kind = kind
	slot.On = on
	slot.Rate = rate
	slot.Latency = latency

	accepted := m.scheduler.Defer(func() {
		m.handleCompletion(*slot)
		m.eventPool.Free(idx)
	})
	if !accepted {
		m.eventPool.Free(idx)
		return false
	}
	return true
}

func (m *Manager) handleCompletion(rec events.Record) {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	sensor := m.registry.FindByHandle(rec.Handle)
	if sensor == nil {
		return // late event for a retracted sensor
	}

	before := sensor.State
	defer func() { m.observer.ObserveReconcile(rec.Handle, sensor.State != before) }()

	switch rec.Kind {
	case events.KindPowerChanged:
		statemachine.HandlePowerChanged(sensor, m.dispatcher, rec.On)
	case events.KindFirmwareChanged:
		statemachine.HandleFirmwareChanged(sensor, m.dispatcher, rec.On, rec.Rate, rec.Latency, func() (constants.Rate, constants.Latency) {
			return m.aggregatedTarget(sensor, rec.Handle)
		})
	case events.KindRateChanged:
		statemachine.HandleRateChanged(sensor, rec.Rate, rec.Latency)
	default:
		m.log.Warn("ignoring completion with unknown kind", "handle", rec.Handle)
	}
}

func (m *Manager) ratesForSensor(handle uint32) []constants.Rate {
	var out []constants.Rate
	m.requests.EachForSensor(handle, func(rec *requests.Record) {
		out = append(out, rec.Rate())
	})
	return out
}

func (m *Manager) latenciesForSensor(handle uint32) []constants.Latency {
	var out []constants.Latency
	m.requests.EachForSensor(handle, func(rec *requests.Record) {
		out = append(out, rec.Latency())
	})
	return out
}

func (m *Manager) aggregatedTarget(rec *registry.Record, handle uint32) (constants.Rate, constants.Latency) {
	rates := m.ratesForSensor(handle)
	latencies := m.latenciesForSensor(handle)
	hwRate, ok := aggregate.CalcHwRate(rec.Info.SupportedRates, rates, constants.RateOff, constants.RateOff)
	if !ok {
		// The request/amend path already rejected anything that would make
		// this infeasible; a mismatch here means the request set changed
		// underneath us in a way that can't happen under eventMu.
		m.log.Error("aggregation became infeasible after admission", "handle", handle)
		return constants.RateOff, constants.LatencyInvalid
	}
	return hwRate, aggregate.CalcHwLatency(latencies)
}

func (m *Manager) reconcileSensor(rec *registry.Record, handle uint32) {
	hwRate, hwLatency := m.aggregatedTarget(rec, handle)
	before := rec.State
	statemachine.Reconcile(rec, m.dispatcher, hwRate, hwLatency)
	m.observer.ObserveReconcile(handle, rec.State != before)
}
