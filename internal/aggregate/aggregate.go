// Package aggregate computes the hardware rate and latency that satisfy
// every outstanding client request for a sensor (spec.md §4.4). These are
// pure functions over a snapshot of request values; the caller (the root
// manager) is responsible for gathering that snapshot from the request
// table and for driving the resulting target through the state machine's
// Reconcile.
package aggregate

import "github.com/sensorhub/sensormgr/internal/constants"

// CalcHwRate computes the minimum hardware rate that satisfies existing,
// a snapshot of a sensor's live request rates, plus one hypothetical
// additional request extraRate (used to pre-validate a new or amended
// subscription before it is committed to the request table).
//
// removedRate, if not RateOff, causes the first existing entry equal to it
// to be skipped — used when amending a client's own request so its old
// contribution does not double-count alongside the new one.
//
// Returns ok=false if the aggregated ordinary rate exceeds every rate in
// supportedRates (spec.md: IMPOSSIBLE is a return value, never a stored
// state).
func CalcHwRate(supportedRates []constants.Rate, existing []constants.Rate, extraRate, removedRate constants.Rate) (constants.Rate, bool) {
	skip := removedRate
	var (
		any         bool
		sawOrdinary bool
		sawOnChange bool
		maxOrdinary constants.Rate
	)

	consider := func(rate constants.Rate) {
		if skip != constants.RateOff && rate == skip {
			skip = constants.RateOff
			return
		}
		switch {
		case rate == constants.RateOnDemand:
			any = true
		case rate == constants.RateOnChange:
			any = true
			sawOnChange = true
		case rate > constants.RateOff:
			any = true
			sawOrdinary = true
			if rate > maxOrdinary {
				maxOrdinary = rate
			}
		}
	}

	for _, r := range existing {
		consider(r)
	}
	consider(extraRate)

	if !sawOrdinary {
		if !any {
			return constants.RateOff, true
		}
		if sawOnChange {
			return constants.RateOnChange, true
		}
		return constants.RateOnDemand, true
	}

	for _, sr := range supportedRates {
		if sr >= maxOrdinary {
			return sr, true
		}
	}
	return constants.RateOff, false
}

// CalcHwLatency returns the minimum latency across a sensor's live request
// latencies, ignoring entries that are LatencyInvalid (unspecified), or
// LatencyInvalid if none remain.
func CalcHwLatency(latencies []constants.Latency) constants.Latency {
	best := constants.LatencyInvalid
	for _, l := range latencies {
		if l == constants.LatencyInvalid {
			continue
		}
		if best == constants.LatencyInvalid || l < best {
			best = l
		}
	}
	return best
}
