// Package sensorstate defines the sensor runtime state as a typed sum type,
// replacing the source's overloading of a single rate field with in-band
// sentinel values (spec.md Design Notes, "State pseudo-rates as sum type").
// It is a leaf package: both the registry (which stores a State per slot)
// and the statemachine (which transitions it) depend on it, so it must not
// depend on either.
package sensorstate

import "github.com/sensorhub/sensormgr/internal/constants"

// Phase is one leg of the sensor's power/firmware/rate lifecycle.
type Phase int

const (
	Off Phase = iota
	PoweringOn
	FwUploading
	PoweringOff
	Active
)

func (p Phase) String() string {
	switch p {
	case Off:
		return "off"
	case PoweringOn:
		return "powering-on"
	case FwUploading:
		return "fw-uploading"
	case PoweringOff:
		return "powering-off"
	case Active:
		return "active"
	default:
		return "unknown-phase"
	}
}

// State is a sensor's current runtime state. Rate and Latency are only
// meaningful when Phase is Active; every other phase reports RateOff and
// LatencyInvalid through Rate()/Latency() so a caller only interested in
// "what rate is the hardware running at" never has to special-case a
// transitional phase.
type State struct {
	Phase   Phase
	rate    constants.Rate
	latency constants.Latency
}

// OffState returns the initial / fully-powered-down state.
func OffState() State {
	return State{Phase: Off, rate: constants.RateOff, latency: constants.LatencyInvalid}
}

// PoweringOnState returns the state entered while waiting for a power-on
// completion.
func PoweringOnState() State {
	return State{Phase: PoweringOn, rate: constants.RateOff, latency: constants.LatencyInvalid}
}

// FwUploadingState returns the state entered after a power-on completion,
// while firmware is being pushed.
func FwUploadingState() State {
	return State{Phase: FwUploading, rate: constants.RateOff, latency: constants.LatencyInvalid}
}

// PoweringOffState returns the state entered while waiting for a power-off
// completion.
func PoweringOffState() State {
	return State{Phase: PoweringOff, rate: constants.RateOff, latency: constants.LatencyInvalid}
}

// ActiveState returns the state for a sensor running at rate/latency.
func ActiveState(rate constants.Rate, latency constants.Latency) State {
	return State{Phase: Active, rate: rate, latency: latency}
}

// Rate reports the sensor's observable hardware rate: the active rate when
// Phase is Active, RateOff otherwise.
func (s State) Rate() constants.Rate {
	if s.Phase == Active {
		return s.rate
	}
	return constants.RateOff
}

// Latency reports the sensor's observable batching latency: the active
// latency when Phase is Active, LatencyInvalid otherwise.
func (s State) Latency() constants.Latency {
	if s.Phase == Active {
		return s.latency
	}
	return constants.LatencyInvalid
}

// IsOff reports whether the sensor is fully powered down.
func (s State) IsOff() bool { return s.Phase == Off }
