package sensormgr

import (
	"sync"

	"github.com/google/uuid"

	"github.com/sensorhub/sensormgr/internal/constants"
	"github.com/sensorhub/sensormgr/internal/dispatch"
)

// MockOps is an in-process dispatch.Ops double that records every call and
// returns configurable, per-operation outcomes. Grounded on the teacher's
// MockBackend: a mutex-guarded call-count recorder satisfying the same
// interface production code depends on.
type MockOps struct {
	mu sync.Mutex

	PowerOK   bool
	FWOK      bool
	RateOK    bool
	FlushOK   bool
	TriggerOK bool

	powerCalls   []bool
	fwCalls      int
	rateCalls    []rateCall
	flushCalls   int
	triggerCalls int
}

type rateCall struct {
	rate    constants.Rate
	latency constants.Latency
}

// NewMockOps returns a MockOps with every operation configured to succeed.
func NewMockOps() *MockOps {
	return &MockOps{PowerOK: true, FWOK: true, RateOK: true, FlushOK: true, TriggerOK: true}
}

func (m *MockOps) Power(on bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.powerCalls = append(m.powerCalls, on)
	return m.PowerOK
}

func (m *MockOps) FirmwareUpload() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fwCalls++
	return m.FWOK
}

func (m *MockOps) SetRate(rate constants.Rate, latency constants.Latency) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateCalls = append(m.rateCalls, rateCall{rate, latency})
	return m.RateOK
}

func (m *MockOps) Flush() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushCalls++
	return m.FlushOK
}

func (m *MockOps) TriggerOndemand() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggerCalls++
	return m.TriggerOK
}

// PowerCalls returns the on/off bit passed to every Power call, in order.
func (m *MockOps) PowerCalls() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.powerCalls...)
}

// RateCalls returns the rate passed to every SetRate call, in order.
func (m *MockOps) RateCalls() []constants.Rate {
	m.mu.Lock()
	defer m.mu.Unlock()
	rates := make([]constants.Rate, len(m.rateCalls))
	for i, c := range m.rateCalls {
		rates[i] = c.rate
	}
	return rates
}

// FirmwareUploadCalls returns how many times FirmwareUpload was called.
func (m *MockOps) FirmwareUploadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fwCalls
}

// FlushCalls returns how many times Flush was called.
func (m *MockOps) FlushCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushCalls
}

// TriggerCalls returns how many times TriggerOndemand was called.
func (m *MockOps) TriggerCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggerCalls
}

// MockTaskSink is an out-of-process dispatch.TaskSink double: it records
// every enqueued operation and its payload, and releases the payload
// synchronously, the same way a real synchronous transport would.
type MockTaskSink struct {
	mu sync.Mutex

	EnqueueOK bool

	calls []sinkCall
}

type sinkCall struct {
	taskID  uuid.UUID
	code    dispatch.EventCode
	payload dispatch.Payload
}

// NewMockTaskSink returns a MockTaskSink configured to accept every enqueue.
func NewMockTaskSink() *MockTaskSink {
	return &MockTaskSink{EnqueueOK: true}
}

func (s *MockTaskSink) Enqueue(taskID uuid.UUID, code dispatch.EventCode, payload *dispatch.Payload, release func()) bool {
	s.mu.Lock()
	s.calls = append(s.calls, sinkCall{taskID: taskID, code: code, payload: *payload})
	s.mu.Unlock()
	release()
	return s.EnqueueOK
}

// Calls returns the event codes enqueued, in order.
func (s *MockTaskSink) Calls() []dispatch.EventCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]dispatch.EventCode, len(s.calls))
	for i, c := range s.calls {
		codes[i] = c.code
	}
	return codes
}

// LastPayload returns the payload of the most recent enqueue.
func (s *MockTaskSink) LastPayload() (dispatch.Payload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return dispatch.Payload{}, false
	}
	return s.calls[len(s.calls)-1].payload, true
}

// FakeScheduler is a synchronous stand-in for the out-of-scope external
// event/defer runtime: by default it runs every deferred function
// immediately, inline, on the caller's goroutine, so tests can drive
// SignalInternalEvt without a real scheduler. Setting Accept to false
// simulates a runtime that has stopped accepting deferrals.
type FakeScheduler struct {
	mu     sync.Mutex
	Accept bool
	runs   int
}

// NewFakeScheduler returns a FakeScheduler that accepts every deferral.
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{Accept: true}
}

func (s *FakeScheduler) Defer(fn func()) bool {
	s.mu.Lock()
	if !s.Accept {
		s.mu.Unlock()
		return false
	}
	s.runs++
	s.mu.Unlock()

	fn()
	return true
}

// Runs returns how many deferred functions have been accepted and run.
func (s *FakeScheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Compile-time interface checks.
var (
	_ dispatch.Ops      = (*MockOps)(nil)
	_ dispatch.TaskSink = (*MockTaskSink)(nil)
)
