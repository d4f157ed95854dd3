// Package events defines the internal completion-event record and the
// external event/defer runtime contract the manager depends on but does
// not implement (spec.md §1, "out of scope... the underlying event/defer
// runtime"). Kind is a closed, typed enum rather than the source's
// unchecked dispatch-table index (spec.md §9 open question,
// "signalInternalEvt indexes a dispatch table... with no bounds check"):
// an invalid Kind is simply a value the manager's completion switch never
// matches, so there is no bounds check to forget.
package events

import "github.com/sensorhub/sensormgr/internal/constants"

// Kind identifies which completion event a Record carries.
type Kind int

const (
	// KindPowerChanged reports a POWER_STATE_CHG completion; On carries the
	// on/off bit.
	KindPowerChanged Kind = iota
	// KindFirmwareChanged reports an FW_STATE_CHG completion; Rate/Latency
	// carry the resulting values on success, ignored on failure (On carries
	// the success flag).
	KindFirmwareChanged
	// KindRateChanged reports a RATE_CHG completion; Rate/Latency carry the
	// new values unconditionally.
	KindRateChanged
)

func (k Kind) String() string {
	switch k {
	case KindPowerChanged:
		return "POWER_STATE_CHG"
	case KindFirmwareChanged:
		return "FW_STATE_CHG"
	case KindRateChanged:
		return "RATE_CHG"
	default:
		return "UNKNOWN_EVENT"
	}
}

// Record is the shared internal-event record: the manager's completion
// events and the dispatcher's out-of-process setRate payloads are drawn
// from the same bounded pool (spec.md §5, "Bounded resources"), so they
// share one record shape. Handle and Kind are meaningful for completion
// events; On/Rate/Latency carry either a completion's payload or a setRate
// dispatch's payload depending on the caller.
type Record struct {
	Handle  uint32
	Kind    Kind
	On      bool
	Rate    constants.Rate
	Latency constants.Latency
}

// Scheduler is the out-of-scope external event/defer runtime: a callable
// that schedules fn to run later, serialized onto the manager's single
// execution context. Returns false if the runtime could not accept fn
// (e.g. its own queue is full), mirroring signalInternalEvt's "failures in
// deferral are reported to the caller" contract.
type Scheduler interface {
	Defer(fn func()) bool
}
