package sensormgr

import "github.com/sensorhub/sensormgr/internal/constants"

// Rate is a hardware sample rate, or one of the reserved pseudo-rates
// RateOff, RateOnDemand, RateOnChange. Aliased from internal/constants so
// every internal package (registry, aggregate, statemachine, requests,
// dispatch) shares the identical type without importing this root package.
type Rate = constants.Rate

// Latency is a maximum batching delay. LatencyInvalid means "not batching /
// no meaningful value".
type Latency = constants.Latency

// Reserved rate and latency sentinels (spec.md glossary).
const (
	RateOff         = constants.RateOff
	RateOnDemand    = constants.RateOnDemand
	RateOnChange    = constants.RateOnChange
	LatencyInvalid  = constants.LatencyInvalid
)

// Re-exported capacity defaults, overridable via Config.
const (
	DefaultMaxRegisteredSensors   = constants.DefaultMaxRegisteredSensors
	DefaultMaxClientSensorRecords = constants.DefaultMaxClientSensorRecords
	DefaultMaxInternalEvents      = constants.DefaultMaxInternalEvents
)
