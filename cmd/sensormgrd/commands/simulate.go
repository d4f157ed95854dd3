package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sensorhub/sensormgr"
	"github.com/sensorhub/sensormgr/internal/constants"
	"github.com/sensorhub/sensormgr/internal/events"
	"github.com/sensorhub/sensormgr/internal/registry"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a scripted two-client request/release sequence against an in-memory sensor and print the resulting rates",
	RunE:  runSimulate,
}

// runSimulate drives the cold-start, aggregation, and release scenarios
// from spec.md's worked examples end to end against a mocked driver, the
// same role the teacher's standalone example binaries played for its
// block backend before this tree's sensor-domain rework.
func runSimulate(cmd *cobra.Command, _ []string) error {
	m, err := sensormgr.NewManager(sensormgr.DefaultConfig(), sensormgr.NewFakeScheduler(), nil)
	if err != nil {
		return err
	}

	ops := sensormgr.NewMockOps()
	handle := m.RegisterInProc(registry.Info{
		Name:           "demo-accel",
		Type:           "accel",
		SupportedRates: []constants.Rate{10, 50, 100},
	}, ops)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "registered demo-accel, handle=%d\n", handle)

	m.Request(1, handle, 10, constants.LatencyInvalid)
	fmt.Fprintf(out, "client 1 requested rate 10, cur rate=%s (still powering on)\n", m.CurRate(handle))

	m.SignalInternalEvt(handle, events.KindPowerChanged, true, 0, 0)
	m.SignalInternalEvt(handle, events.KindFirmwareChanged, true, 10, constants.LatencyInvalid)
	fmt.Fprintf(out, "power and firmware completed, cur rate=%s\n", m.CurRate(handle))

	m.Request(2, handle, 50, constants.LatencyInvalid)
	m.SignalInternalEvt(handle, events.KindRateChanged, false, 50, constants.LatencyInvalid)
	fmt.Fprintf(out, "client 2 requested rate 50, aggregated cur rate=%s\n", m.CurRate(handle))

	m.Release(2, handle)
	m.SignalInternalEvt(handle, events.KindRateChanged, false, 10, constants.LatencyInvalid)
	fmt.Fprintf(out, "client 2 released, aggregated cur rate=%s\n", m.CurRate(handle))

	fmt.Fprintf(out, "dispatched power calls: %v\n", ops.PowerCalls())
	fmt.Fprintf(out, "dispatched rate calls: %v\n", ops.RateCalls())
	return nil
}
