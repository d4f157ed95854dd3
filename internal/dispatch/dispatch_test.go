package dispatch

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sensorhub/sensormgr/internal/constants"
	"github.com/sensorhub/sensormgr/internal/slab"
)

// mockOps is a testify/mock double for the in-process Ops table.
type mockOps struct {
	mock.Mock
}

func (m *mockOps) Power(on bool) bool {
	return m.Called(on).Bool(0)
}

func (m *mockOps) FirmwareUpload() bool {
	return m.Called().Bool(0)
}

func (m *mockOps) SetRate(rate constants.Rate, latency constants.Latency) bool {
	return m.Called(rate, latency).Bool(0)
}

func (m *mockOps) Flush() bool {
	return m.Called().Bool(0)
}

func (m *mockOps) TriggerOndemand() bool {
	return m.Called().Bool(0)
}

// mockSink is a testify/mock double for the out-of-process TaskSink.
type mockSink struct {
	mock.Mock
}

func (m *mockSink) Enqueue(taskID uuid.UUID, code EventCode, payload *Payload, release func()) bool {
	return m.Called(taskID, code, payload, release).Bool(0)
}

func TestInProcDispatchCallsOps(t *testing.T) {
	ops := new(mockOps)
	ops.On("Power", true).Return(true)
	ops.On("FirmwareUpload").Return(true)
	ops.On("SetRate", constants.Rate(50), constants.LatencyInvalid).Return(true)
	ops.On("Flush").Return(true)
	ops.On("TriggerOndemand").Return(true)

	ci := InProc(ops)
	d := New(slab.NewArena[Payload](4))

	require.True(t, d.Power(ci, true))
	require.True(t, d.FirmwareUpload(ci))
	require.True(t, d.SetRate(ci, 50, constants.LatencyInvalid))
	require.True(t, d.Flush(ci))
	require.True(t, d.TriggerOndemand(ci))

	ops.AssertExpectations(t)
	ops.AssertNumberOfCalls(t, "Power", 1)
	ops.AssertNumberOfCalls(t, "SetRate", 1)
}

func TestInProcDispatchPropagatesFailure(t *testing.T) {
	ops := new(mockOps)
	ops.On("Power", true).Return(false)
	ops.On("SetRate", constants.Rate(50), constants.LatencyInvalid).Return(false)

	ci := InProc(ops)
	d := New(slab.NewArena[Payload](4))

	assert.False(t, d.Power(ci, true))
	assert.False(t, d.SetRate(ci, 50, constants.LatencyInvalid))
	ops.AssertExpectations(t)
}

func TestOutOfProcDispatchEnqueues(t *testing.T) {
	sink := new(mockSink)
	taskID := uuid.New()
	sink.On("Enqueue", taskID, EventPower, mock.MatchedBy(func(p *Payload) bool { return p.On }), mock.Anything).Return(true)
	sink.On("Enqueue", taskID, EventSetRate, mock.MatchedBy(func(p *Payload) bool {
		return p.Rate == constants.Rate(42) && p.Latency == constants.LatencyInvalid
	}), mock.Anything).Return(true)

	ci := OutOfProc(taskID, sink)
	d := New(slab.NewArena[Payload](4))

	require.True(t, d.Power(ci, true))
	require.True(t, d.SetRate(ci, 42, constants.LatencyInvalid))
	sink.AssertExpectations(t)
}

func TestOutOfProcSetRateReleasesPoolSlotOnEnqueueFailure(t *testing.T) {
	sink := new(mockSink)
	sink.On("Enqueue", mock.Anything, EventSetRate, mock.Anything, mock.Anything).Return(false)

	ci := OutOfProc(uuid.New(), sink)
	pool := slab.NewArena[Payload](1)
	d := New(pool)

	ok := d.SetRate(ci, 10, constants.LatencyInvalid)
	assert.False(t, ok)

	// pool slot must have been released back, so a fresh Alloc succeeds.
	_, _, allocOK := pool.Alloc()
	assert.True(t, allocOK, "pool slot should be released after enqueue failure")
	sink.AssertExpectations(t)
}

func TestOutOfProcSetRateFailsWhenPoolExhausted(t *testing.T) {
	sink := new(mockSink)
	ci := OutOfProc(uuid.New(), sink)
	pool := slab.NewArena[Payload](1)
	_, _, _ = pool.Alloc() // exhaust the single slot
	d := New(pool)

	assert.False(t, d.SetRate(ci, 10, constants.LatencyInvalid))
	sink.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResultObserverSeesEveryDispatchOutcome(t *testing.T) {
	ops := new(mockOps)
	ops.On("Power", true).Return(false)
	ops.On("Flush").Return(false)
	ci := InProc(ops)

	var codes []EventCode
	var results []bool
	d := New(slab.NewArena[Payload](4), WithResultObserver(func(code EventCode, success bool) {
		codes = append(codes, code)
		results = append(results, success)
	}))

	d.Power(ci, true)
	d.Flush(ci)

	assert.Equal(t, []EventCode{EventPower, EventFlush}, codes)
	assert.Equal(t, []bool{false, false}, results)
	ops.AssertExpectations(t)
}

func TestNilOpsInProcDispatchFails(t *testing.T) {
	ci := InProc(nil)
	d := New(slab.NewArena[Payload](4))

	assert.False(t, d.Power(ci, true))
	assert.False(t, d.FirmwareUpload(ci))
	assert.False(t, d.Flush(ci))
	assert.False(t, d.TriggerOndemand(ci))
	assert.False(t, d.SetRate(ci, 10, constants.LatencyInvalid))
}
