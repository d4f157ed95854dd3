// Package statemachine drives a single sensor through
// off -> powering-on -> fw-uploading -> active -> powering-off, reconciling
// with the aggregated target after every client-side change and every
// asynchronous driver completion event (spec.md §4.5). Reconcile is the
// one entry point; it is non-blocking and issues at most one dispatcher
// call per invocation, matching the teacher's handleCompletion switch in
// internal/queue/runner.go generalized from a single queue's tag states to
// a per-sensor power/firmware/rate lifecycle.
package statemachine

import (
	"github.com/sensorhub/sensormgr/internal/constants"
	"github.com/sensorhub/sensormgr/internal/dispatch"
	"github.com/sensorhub/sensormgr/internal/registry"
	"github.com/sensorhub/sensormgr/internal/sensorstate"
)

// Reconcile compares rec's current state to (targetRate, targetLatency) and
// issues at most one driver operation to close the gap. It never blocks:
// immediate driver failures are absorbed and retried on the next Reconcile.
func Reconcile(rec *registry.Record, d *dispatch.Dispatcher, targetRate constants.Rate, targetLatency constants.Latency) {
	cur := rec.State

	switch {
	case cur.Rate() == targetRate && cur.Latency() == targetLatency:
		// already at target

	case cur.IsOff():
		if d.Power(rec.CallInfo, true) {
			rec.State = sensorstate.PoweringOnState()
		}

	case cur.Phase == sensorstate.PoweringOff:
		// short-circuit: the outstanding power-off completion, when it
		// arrives, will observe PoweringOn and re-issue power(true).
		rec.State = sensorstate.PoweringOnState()

	case cur.Phase == sensorstate.PoweringOn || cur.Phase == sensorstate.FwUploading:
		// deferred: re-reconciled when the in-flight completion arrives

	case targetRate != constants.RateOff || targetLatency != constants.LatencyInvalid:
		d.SetRate(rec.CallInfo, targetRate, targetLatency)

	default:
		if d.Power(rec.CallInfo, false) {
			rec.State = sensorstate.PoweringOffState()
		}
	}
}

// Target is the aggregated (rate, latency) pair a completion handler
// recomputes before re-reconciling, supplied by the caller (the manager)
// since computing it requires scanning the request table, which this
// package does not have access to.
type Target func() (rate constants.Rate, latency constants.Latency)

// HandlePowerChanged processes a POWER_STATE_CHG completion (spec.md §4.5).
func HandlePowerChanged(rec *registry.Record, d *dispatch.Dispatcher, on bool) {
	switch rec.State.Phase {
	case sensorstate.PoweringOn:
		if on {
			rec.State = sensorstate.FwUploadingState()
			d.FirmwareUpload(rec.CallInfo)
		} else {
			// spurious off while trying to come up
			d.Power(rec.CallInfo, true)
		}
	case sensorstate.PoweringOff:
		if !on {
			rec.State = sensorstate.OffState()
		} else {
			// spurious on while trying to shut down
			d.Power(rec.CallInfo, false)
		}
	default:
		// late or duplicate event
	}
}

// HandleFirmwareChanged processes an FW_STATE_CHG completion. target is
// invoked (only on the success path while FwUploading) to recompute the
// aggregated target that may have changed during the upload.
func HandleFirmwareChanged(rec *registry.Record, d *dispatch.Dispatcher, ok bool, rate constants.Rate, latency constants.Latency, target Target) {
	if !ok {
		rec.State = sensorstate.PoweringOffState()
		d.Power(rec.CallInfo, false)
		return
	}

	switch rec.State.Phase {
	case sensorstate.FwUploading:
		rec.State = sensorstate.ActiveState(rate, latency)
		newRate, newLatency := target()
		Reconcile(rec, d, newRate, newLatency)
	case sensorstate.PoweringOff:
		d.Power(rec.CallInfo, false)
	default:
		// ignore
	}
}

// HandleRateChanged processes a RATE_CHG completion: unconditionally
// records the reported rate/latency as current.
func HandleRateChanged(rec *registry.Record, rate constants.Rate, latency constants.Latency) {
	rec.State = sensorstate.ActiveState(rate, latency)
}
