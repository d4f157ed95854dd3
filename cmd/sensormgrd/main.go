// Command sensormgrd is the sensor-hub arbiter daemon: it wires a
// sensormgr.Manager to a Prometheus metrics endpoint and, optionally, an
// MQTT transport for out-of-process drivers.
package main

import (
	"fmt"
	"os"

	"github.com/sensorhub/sensormgr/cmd/sensormgrd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
