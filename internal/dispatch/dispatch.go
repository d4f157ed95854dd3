// Package dispatch invokes a sensor driver's operations uniformly whether
// the driver is reachable as an in-process operations table or as an
// out-of-process task recipient, per the registration layer's tagged
// callInfo design note. Grounded on the teacher's backend.Device ops-table
// shape (backend.go), generalized to a sum type instead of a bit-tagged
// pointer.
package dispatch

import (
	"github.com/google/uuid"

	"github.com/sensorhub/sensormgr/internal/constants"
	"github.com/sensorhub/sensormgr/internal/events"
)

// Ops is the synchronous, in-process driver operations table. Every method
// returns whether the operation was accepted; completion is reported later,
// out of band, via a signalInternalEvt-style callback.
type Ops interface {
	Power(on bool) bool
	FirmwareUpload() bool
	SetRate(rate constants.Rate, latency constants.Latency) bool
	Flush() bool
	TriggerOndemand() bool
}

// EventCode identifies the private event code sent to an out-of-process
// task recipient.
type EventCode int

const (
	EventPower EventCode = iota
	EventFirmwareUpload
	EventSetRate
	EventFlush
	EventTrigger
)

func (c EventCode) String() string {
	switch c {
	case EventPower:
		return "APP_SENSOR_POWER"
	case EventFirmwareUpload:
		return "APP_SENSOR_FW_UPLD"
	case EventSetRate:
		return "APP_SENSOR_SET_RATE"
	case EventFlush:
		return "APP_SENSOR_FLUSH"
	case EventTrigger:
		return "APP_SENSOR_TRIGGER"
	default:
		return "APP_SENSOR_UNKNOWN"
	}
}

// Payload carries the operation-specific argument for an out-of-process
// dispatch. Only the fields relevant to the EventCode are meaningful. It is
// the same record type as the manager's completion events, since both are
// drawn from the shared internal-event pool (spec.md §5).
type Payload = events.Record

// TaskSink is the out-of-process transport contract: enqueue a private
// event addressed to taskID. release is called once the sink no longer
// needs payload (immediately for a synchronous transport, or after the
// message is handed off for an asynchronous one); the caller must not
// touch payload after calling Enqueue.
type TaskSink interface {
	Enqueue(taskID uuid.UUID, code EventCode, payload *Payload, release func()) bool
}

// kind discriminates CallInfo's two variants.
type kind int

const (
	kindInProc kind = iota
	kindOutOfProc
)

// CallInfo is the tagged reference identifying a driver as either an
// in-process operations table or an out-of-process task recipient,
// replacing the source's low-bit-tagged pointer with an explicit sum type
// (spec.md Design Notes, "Tagged driver reference").
type CallInfo struct {
	kind   kind
	ops    Ops
	sink   TaskSink
	taskID uuid.UUID
}

// InProc builds a CallInfo wrapping a synchronous in-process ops table.
func InProc(ops Ops) CallInfo {
	return CallInfo{kind: kindInProc, ops: ops}
}

// OutOfProc builds a CallInfo addressing an out-of-process task via sink.
func OutOfProc(taskID uuid.UUID, sink TaskSink) CallInfo {
	return CallInfo{kind: kindOutOfProc, sink: sink, taskID: taskID}
}

// IsOutOfProc reports whether this CallInfo addresses an out-of-process task.
func (c CallInfo) IsOutOfProc() bool { return c.kind == kindOutOfProc }

// EventPool is the bounded allocator setRate dispatch draws out-of-process
// payloads from; satisfied by *slab.Arena[Payload].
type EventPool interface {
	Alloc() (idx int, slot *Payload, ok bool)
	Free(idx int)
}

// Dispatcher invokes driver operations uniformly across both CallInfo
// variants. pool backs out-of-process setRate payload allocation; it is
// shared with the manager's completion-event pool (spec.md §5, "Bounded
// resources").
type Dispatcher struct {
	pool     EventPool
	onResult func(code EventCode, success bool)
}

// Option configures optional Dispatcher behavior.
type Option func(*Dispatcher)

// WithResultObserver registers fn to be called with the outcome of every
// dispatched operation, letting a caller (e.g. telemetry) observe dispatch
// activity without statemachine.Reconcile needing to know about it.
func WithResultObserver(fn func(code EventCode, success bool)) Option {
	return func(d *Dispatcher) { d.onResult = fn }
}

// New builds a Dispatcher drawing out-of-process setRate payloads from pool.
func New(pool EventPool, opts ...Option) *Dispatcher {
	d := &Dispatcher{pool: pool}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) report(code EventCode, success bool) bool {
	if d.onResult != nil {
		d.onResult(code, success)
	}
	return success
}

func (d *Dispatcher) simple(c CallInfo, code EventCode, fn func(Ops) bool) bool {
	if !c.IsOutOfProc() {
		if c.ops == nil {
			return d.report(code, false)
		}
		return d.report(code, fn(c.ops))
	}
	return d.report(code, c.sink.Enqueue(c.taskID, code, &Payload{}, func() {}))
}

// Power dispatches power(on).
func (d *Dispatcher) Power(c CallInfo, on bool) bool {
	if !c.IsOutOfProc() {
		if c.ops == nil {
			return d.report(EventPower, false)
		}
		return d.report(EventPower, c.ops.Power(on))
	}
	return d.report(EventPower, c.sink.Enqueue(c.taskID, EventPower, &Payload{On: on}, func() {}))
}

// FirmwareUpload dispatches firmwareUpload().
func (d *Dispatcher) FirmwareUpload(c CallInfo) bool {
	return d.simple(c, EventFirmwareUpload, Ops.FirmwareUpload)
}

// Flush dispatches flush().
func (d *Dispatcher) Flush(c CallInfo) bool {
	return d.simple(c, EventFlush, Ops.Flush)
}

// TriggerOndemand dispatches triggerOndemand().
func (d *Dispatcher) TriggerOndemand(c CallInfo) bool {
	return d.simple(c, EventTrigger, Ops.TriggerOndemand)
}

// SetRate dispatches setRate(rate, latency). In the out-of-process case the
// payload is allocated from the shared internal-event pool; if enqueue
// fails the allocation is released immediately rather than leaked (spec.md
// §4.2).
func (d *Dispatcher) SetRate(c CallInfo, rate constants.Rate, latency constants.Latency) bool {
	if !c.IsOutOfProc() {
		if c.ops == nil {
			return d.report(EventSetRate, false)
		}
		return d.report(EventSetRate, c.ops.SetRate(rate, latency))
	}

	idx, slot, ok := d.pool.Alloc()
	if !ok {
		return d.report(EventSetRate, false)
	}
	slot.Rate = rate
	slot.Latency = latency

	released := false
	release := func() {
		if !released {
			released = true
			d.pool.Free(idx)
		}
	}

	if !c.sink.Enqueue(c.taskID, EventSetRate, slot, release) {
		release()
		return d.report(EventSetRate, false)
	}
	return d.report(EventSetRate, true)
}
