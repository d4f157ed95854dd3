package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sensorhub/sensormgr/internal/constants"
)

var supported = []constants.Rate{10, 50, 100}

func TestCalcHwRateNoRequestsReturnsOff(t *testing.T) {
	rate, ok := CalcHwRate(supported, nil, constants.RateOff, constants.RateOff)
	assert.True(t, ok)
	assert.Equal(t, constants.RateOff, rate)
}

func TestCalcHwRateOnDemandOnly(t *testing.T) {
	rate, ok := CalcHwRate(supported, nil, constants.RateOnDemand, constants.RateOff)
	assert.True(t, ok)
	assert.Equal(t, constants.RateOnDemand, rate)
}

func TestCalcHwRateOnChangeWinsOverOnDemand(t *testing.T) {
	existing := []constants.Rate{constants.RateOnDemand}
	rate, ok := CalcHwRate(supported, existing, constants.RateOnChange, constants.RateOff)
	assert.True(t, ok)
	assert.Equal(t, constants.RateOnChange, rate)
}

func TestCalcHwRatePicksSmallestSupportedAtOrAboveMax(t *testing.T) {
	rate, ok := CalcHwRate(supported, nil, 40, constants.RateOff)
	assert.True(t, ok)
	assert.Equal(t, constants.Rate(50), rate)
}

func TestCalcHwRateExactMatch(t *testing.T) {
	rate, ok := CalcHwRate(supported, nil, 50, constants.RateOff)
	assert.True(t, ok)
	assert.Equal(t, constants.Rate(50), rate)
}

func TestCalcHwRateImpossibleAboveAllSupported(t *testing.T) {
	_, ok := CalcHwRate(supported, nil, 200, constants.RateOff)
	assert.False(t, ok)
}

func TestCalcHwRateAggregatesMultipleExistingRequests(t *testing.T) {
	existing := []constants.Rate{10, 50}
	rate, ok := CalcHwRate(supported, existing, constants.RateOff, constants.RateOff)
	assert.True(t, ok)
	assert.Equal(t, constants.Rate(50), rate)
}

func TestCalcHwRateRemovedRateSkippedOnce(t *testing.T) {
	// client amends its own 50 -> 10; its old 50 contribution must not
	// double count against another client's live 10.
	existing := []constants.Rate{10, 50}
	rate, ok := CalcHwRate(supported, existing, 10, 50)
	assert.True(t, ok)
	assert.Equal(t, constants.Rate(10), rate)
}

func TestCalcHwRateRemovedRateOnlySkipsFirstOccurrence(t *testing.T) {
	existing := []constants.Rate{10, 10}
	rate, ok := CalcHwRate(supported, existing, constants.RateOff, 10)
	assert.True(t, ok)
	assert.Equal(t, constants.Rate(10), rate, "second 10 still contributes")
}

func TestCalcHwLatencyNoRequestsReturnsInvalid(t *testing.T) {
	assert.Equal(t, constants.LatencyInvalid, CalcHwLatency(nil))
}

func TestCalcHwLatencyIgnoresInvalidEntries(t *testing.T) {
	latencies := []constants.Latency{constants.LatencyInvalid, 20, constants.LatencyInvalid, 5}
	assert.Equal(t, constants.Latency(5), CalcHwLatency(latencies))
}

func TestCalcHwLatencyMinimumWins(t *testing.T) {
	latencies := []constants.Latency{30, 10, 20}
	assert.Equal(t, constants.Latency(10), CalcHwLatency(latencies))
}
