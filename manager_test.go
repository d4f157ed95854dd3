package sensormgr

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorhub/sensormgr/internal/constants"
	"github.com/sensorhub/sensormgr/internal/dispatch"
	"github.com/sensorhub/sensormgr/internal/events"
	"github.com/sensorhub/sensormgr/internal/registry"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	m, err := NewManager(cfg, NewFakeScheduler(), nil)
	require.NoError(t, err)
	return m
}

func registerAccel(t *testing.T, m *Manager, ops *MockOps) uint32 {
	t.Helper()
	h := m.RegisterInProc(registry.Info{
		Name:           "accel0",
		Type:           "accel",
		SupportedRates: []constants.Rate{10, 50, 100},
	}, ops)
	require.NotZero(t, h)
	return h
}

// S1 - cold start, single client, supported rate.
func TestScenarioColdStartSingleClient(t *testing.T) {
	m := newTestManager(t)
	ops := NewMockOps()
	h := registerAccel(t, m, ops)

	require.True(t, m.Request(1, h, 40, constants.LatencyInvalid))
	assert.Equal(t, constants.RateOff, m.CurRate(h)) // still powering on

	require.True(t, m.SignalInternalEvt(h, events.KindPowerChanged, true, 0, 0))
	assert.Equal(t, 1, ops.FirmwareUploadCalls())

	require.True(t, m.SignalInternalEvt(h, events.KindFirmwareChanged, true, 50, constants.LatencyInvalid))
	assert.Equal(t, constants.Rate(50), m.CurRate(h))
}

// S2 - unsupported rate.
func TestScenarioUnsupportedRateRejected(t *testing.T) {
	m := newTestManager(t)
	ops := NewMockOps()
	h := registerAccel(t, m, ops)

	assert.False(t, m.Request(1, h, 200, constants.LatencyInvalid))
	assert.Equal(t, constants.RateOff, m.CurRate(h))
	assert.Empty(t, ops.PowerCalls())
}

// S3 - two clients, aggregation.
func TestScenarioTwoClientAggregation(t *testing.T) {
	m := newTestManager(t)
	ops := NewMockOps()
	h := registerAccel(t, m, ops)

	require.True(t, m.Request(1, h, 10, constants.LatencyInvalid))
	require.True(t, m.SignalInternalEvt(h, events.KindPowerChanged, true, 0, 0))
	require.True(t, m.SignalInternalEvt(h, events.KindFirmwareChanged, true, 10, constants.LatencyInvalid))
	require.Equal(t, constants.Rate(10), m.CurRate(h))

	require.True(t, m.Request(2, h, 50, constants.LatencyInvalid))
	require.True(t, m.SignalInternalEvt(h, events.KindRateChanged, false, 50, constants.LatencyInvalid))
	assert.Equal(t, constants.Rate(50), m.CurRate(h))

	require.True(t, m.Release(2, h))
	require.True(t, m.SignalInternalEvt(h, events.KindRateChanged, false, 10, constants.LatencyInvalid))
	assert.Equal(t, constants.Rate(10), m.CurRate(h))
	assert.Equal(t, []constants.Rate{50, 10}, ops.RateCalls())
}

// S4 - amend during power-on.
func TestScenarioAmendDuringPowerOn(t *testing.T) {
	m := newTestManager(t)
	ops := NewMockOps()
	h := registerAccel(t, m, ops)

	require.True(t, m.Request(1, h, 10, constants.LatencyInvalid))
	require.True(t, m.Amend(1, h, 50, constants.LatencyInvalid))
	assert.Empty(t, ops.RateCalls(), "amend while powering on must not dispatch yet")

	require.True(t, m.SignalInternalEvt(h, events.KindPowerChanged, true, 0, 0))
	require.True(t, m.SignalInternalEvt(h, events.KindFirmwareChanged, true, 10, constants.LatencyInvalid))
	assert.Equal(t, []constants.Rate{50}, ops.RateCalls())
}

// S5 - flip during power-off.
func TestScenarioFlipDuringPowerOff(t *testing.T) {
	m := newTestManager(t)
	ops := NewMockOps()
	h := registerAccel(t, m, ops)

	require.True(t, m.Request(1, h, 10, constants.LatencyInvalid))
	require.True(t, m.SignalInternalEvt(h, events.KindPowerChanged, true, 0, 0))
	require.True(t, m.SignalInternalEvt(h, events.KindFirmwareChanged, true, 10, constants.LatencyInvalid))
	require.Equal(t, constants.Rate(10), m.CurRate(h))

	require.True(t, m.Release(1, h)) // -> powering-off
	require.True(t, m.Request(2, h, 10, constants.LatencyInvalid)) // flips to powering-on before completion

	// The stale power-off completion arrives; the handler observes
	// powering-on and re-issues power(true) rather than settling at off.
	require.True(t, m.SignalInternalEvt(h, events.KindPowerChanged, false, 0, 0))
	assert.Equal(t, []bool{true, false, true}, ops.PowerCalls())
}

// S6 - on-demand coexists with continuous, then continuous goes away.
func TestScenarioOnDemandSurvivesReleaseOfContinuous(t *testing.T) {
	m := newTestManager(t)
	ops := NewMockOps()
	h := registerAccel(t, m, ops)

	require.True(t, m.Request(1, h, constants.RateOnDemand, constants.LatencyInvalid))
	require.True(t, m.Request(2, h, 10, constants.LatencyInvalid))
	require.True(t, m.SignalInternalEvt(h, events.KindPowerChanged, true, 0, 0))
	require.True(t, m.SignalInternalEvt(h, events.KindFirmwareChanged, true, 10, constants.LatencyInvalid))
	require.Equal(t, constants.Rate(10), m.CurRate(h))

	require.True(t, m.Release(2, h))
	require.True(t, m.SignalInternalEvt(h, events.KindRateChanged, false, constants.RateOnDemand, constants.LatencyInvalid))

	assert.Equal(t, constants.RateOnDemand, m.CurRate(h), "on-demand is still a workload, sensor stays powered")
	assert.Empty(t, ops.PowerCalls()[1:], "no power-off should be issued while on-demand remains")
}

func TestRequestUnknownHandleReturnsFalse(t *testing.T) {
	m := newTestManager(t)
	assert.False(t, m.Request(1, 999, 10, constants.LatencyInvalid))
}

func TestAmendWithoutExistingRequestReturnsFalse(t *testing.T) {
	m := newTestManager(t)
	ops := NewMockOps()
	h := registerAccel(t, m, ops)
	assert.False(t, m.Amend(1, h, 10, constants.LatencyInvalid))
}

// Invariant 7: request followed by release by the same client is a no-op
// on the request set.
func TestRequestThenReleaseIsNoOpOnRequestSet(t *testing.T) {
	m := newTestManager(t)
	ops := NewMockOps()
	h := registerAccel(t, m, ops)

	require.True(t, m.Request(1, h, 10, constants.LatencyInvalid))
	require.True(t, m.Release(1, h))
	assert.Equal(t, 0, m.CountRequests(h, 1))
}

// Duplicate (handle, clientID) stacks rather than replaces (spec.md §9,
// resolved as "stacks" — see DESIGN.md).
func TestDuplicateRequestStacksRatherThanReplaces(t *testing.T) {
	m := newTestManager(t)
	ops := NewMockOps()
	h := registerAccel(t, m, ops)

	require.True(t, m.Request(1, h, 10, constants.LatencyInvalid))
	require.True(t, m.Request(1, h, 10, constants.LatencyInvalid))
	assert.Equal(t, 2, m.CountRequests(h, 1))
}

func TestTriggerOndemandRequiresExistingRequest(t *testing.T) {
	m := newTestManager(t)
	ops := NewMockOps()
	h := registerAccel(t, m, ops)

	assert.False(t, m.TriggerOndemand(1, h))

	require.True(t, m.Request(1, h, constants.RateOnDemand, constants.LatencyInvalid))
	assert.True(t, m.TriggerOndemand(1, h))
	assert.Equal(t, 1, ops.TriggerCalls())
}

func TestFlushHasNoClientOwnershipCheck(t *testing.T) {
	m := newTestManager(t)
	ops := NewMockOps()
	h := registerAccel(t, m, ops)

	assert.True(t, m.Flush(h))
	assert.Equal(t, 1, ops.FlushCalls())
}

func TestFirmwareFailureForcesPowerOffAndIsObservable(t *testing.T) {
	m := newTestManager(t)
	ops := NewMockOps()
	h := registerAccel(t, m, ops)

	var transitions []string
	m.SetStateObserver(&recordingObserver{onReconcile: func(handle uint32, transitioned bool) {
		if handle == h && transitioned {
			transitions = append(transitions, "transition")
		}
	}})

	require.True(t, m.Request(1, h, 10, constants.LatencyInvalid))
	require.True(t, m.SignalInternalEvt(h, events.KindPowerChanged, true, 0, 0))
	transitions = nil // only the firmware-failure transition counts below
	require.True(t, m.SignalInternalEvt(h, events.KindFirmwareChanged, false, 0, constants.LatencyInvalid))

	assert.Equal(t, constants.RateOff, m.CurRate(h))
	assert.NotEmpty(t, transitions)
}

func TestCapacityExhaustedObservedWhenRegistryFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRegisteredSensors = 1
	m, err := NewManager(cfg, NewFakeScheduler(), nil)
	require.NoError(t, err)

	var exhausted []string
	m.SetStateObserver(&recordingObserver{onCapacity: func(resource string) {
		exhausted = append(exhausted, resource)
	}})

	ops1, ops2 := NewMockOps(), NewMockOps()
	require.NotZero(t, registerAccel(t, m, ops1))
	h2 := m.RegisterInProc(registry.Info{Name: "x", Type: "accel", SupportedRates: []constants.Rate{10}}, ops2)
	assert.Zero(t, h2)
	assert.Equal(t, []string{"registry"}, exhausted)
}

func TestRegisterRejectsEmptySupportedRates(t *testing.T) {
	m := newTestManager(t)
	h := m.RegisterInProc(registry.Info{Name: "bad", Type: "accel"}, NewMockOps())
	assert.Zero(t, h)
}

func TestRegisterRejectsDescendingSupportedRates(t *testing.T) {
	m := newTestManager(t)
	h := m.RegisterInProc(registry.Info{
		Name:           "bad",
		Type:           "accel",
		SupportedRates: []constants.Rate{100, 50, 10},
	}, NewMockOps())
	assert.Zero(t, h)
}

func TestRegisterRejectsNonPositiveSupportedRate(t *testing.T) {
	m := newTestManager(t)
	h := m.RegisterInProc(registry.Info{
		Name:           "bad",
		Type:           "accel",
		SupportedRates: []constants.Rate{0, 10},
	}, NewMockOps())
	assert.Zero(t, h)
}

func TestRegisterRejectsMissingName(t *testing.T) {
	m := newTestManager(t)
	h := m.RegisterInProc(registry.Info{
		Type:           "accel",
		SupportedRates: []constants.Rate{10, 50},
	}, NewMockOps())
	assert.Zero(t, h)
}

func TestUnregisterUnknownHandleReturnsFalse(t *testing.T) {
	m := newTestManager(t)
	assert.False(t, m.Unregister(999))
}

func TestListSensorsAndSensorInfo(t *testing.T) {
	m := newTestManager(t)
	ops := NewMockOps()
	h := registerAccel(t, m, ops)

	handles := m.ListSensors()
	assert.Equal(t, []uint32{h}, handles)

	info, ok := m.SensorInfo(h)
	require.True(t, ok)
	assert.Equal(t, registry.SensorType("accel"), info.Type)

	_, ok = m.SensorInfo(999)
	assert.False(t, ok)
}

func TestOutOfProcRequestDispatchesPowerViaSink(t *testing.T) {
	m := newTestManager(t)
	sink := NewMockTaskSink()
	taskID := uuid.New()

	h := m.RegisterOutOfProc(registry.Info{
		Name:           "remote-accel",
		Type:           "accel",
		SupportedRates: []constants.Rate{10, 50},
	}, taskID, sink)
	require.NotZero(t, h)

	require.True(t, m.Request(1, h, 10, constants.LatencyInvalid))
	codes := sink.Calls()
	require.NotEmpty(t, codes)
	assert.Equal(t, dispatch.EventPower, codes[0])
}

// recordingObserver adapts test closures to the Observer interface.
type recordingObserver struct {
	onDispatch   func(handle uint32, op string, success bool)
	onReconcile  func(handle uint32, transitioned bool)
	onCapacity   func(resource string)
	onInfeasible func(handle uint32)
}

func (o *recordingObserver) ObserveDispatch(handle uint32, op string, success bool) {
	if o.onDispatch != nil {
		o.onDispatch(handle, op, success)
	}
}

func (o *recordingObserver) ObserveReconcile(handle uint32, transitioned bool) {
	if o.onReconcile != nil {
		o.onReconcile(handle, transitioned)
	}
}

func (o *recordingObserver) ObserveCapacityExhausted(resource string) {
	if o.onCapacity != nil {
		o.onCapacity(resource)
	}
}

func (o *recordingObserver) ObserveInfeasibleRequest(handle uint32) {
	if o.onInfeasible != nil {
		o.onInfeasible(handle)
	}
}

var _ Observer = (*recordingObserver)(nil)
