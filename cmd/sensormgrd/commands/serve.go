package commands

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sensorhub/sensormgr"
	"github.com/sensorhub/sensormgr/internal/daemonconfig"
	"github.com/sensorhub/sensormgr/internal/events"
	"github.com/sensorhub/sensormgr/internal/logging"
	"github.com/sensorhub/sensormgr/internal/telemetry"
	"github.com/sensorhub/sensormgr/internal/transport/mqtt"
)

func newTaskID() uuid.UUID { return uuid.New() }

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the arbiter daemon, serving /metrics and dispatching to configured sensors",
	RunE:  runServe,
}

func buildLogger(backend sensormgr.LogBackend) logging.Interface {
	if backend == sensormgr.LogBackendZap {
		return logging.NewZapLogger()
	}
	return logging.NewLogger(nil)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := daemonconfig.Load(cfgFile)
	if err != nil {
		return err
	}

	log := buildLogger(cfg.Manager.LogBackend)

	// The external event/defer runtime that drives asynchronous driver
	// completions is out of scope (spec.md §1); NewFakeScheduler's
	// synchronous Defer is the same pragmatic stand-in the test suite
	// uses, just running in the daemon process instead of a test binary.
	m, err := sensormgr.NewManager(cfg.Manager, sensormgr.NewFakeScheduler(), log)
	if err != nil {
		return fmt.Errorf("sensormgrd: building manager: %w", err)
	}

	reg := prometheus.NewRegistry()
	collector := telemetry.NewCollector(reg)
	m.SetStateObserver(collector)

	var sink *mqtt.Sink
	if cfg.MQTT.Enabled {
		sink, err = mqtt.NewSink(cfg.MQTT.MQTTTransportConfig(), log)
		if err != nil {
			return fmt.Errorf("sensormgrd: connecting mqtt sink: %w", err)
		}
		defer sink.Close()
	}

	for _, spec := range cfg.Sensors {
		info := spec.RegistryInfo()
		var handle uint32
		if sink != nil {
			taskID := newTaskID()
			handle = m.RegisterOutOfProc(info, taskID, sink)
			if handle != 0 {
				h := handle
				err := sink.SubscribeCompletions(taskID, func(rec events.Record) {
					m.SignalInternalEvt(h, rec.Kind, rec.On, rec.Rate, rec.Latency)
				})
				if err != nil {
					log.Warn("subscribe completions failed", "sensor", spec.Name, "error", err)
				}
			}
		} else {
			handle = m.RegisterInProc(info, sensormgr.NewMockOps())
		}
		if handle == 0 {
			log.Warn("sensor registration rejected, invalid info or capacity exhausted", "sensor", spec.Name)
			continue
		}
		log.Info("sensor registered", "sensor", spec.Name, "handle", handle, "type", spec.Type)
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			log.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics endpoint failed", "error", err)
			}
		}()
		defer server.Close()
	}

	gaugeDone := make(chan struct{})
	defer close(gaugeDone)
	go pollGauges(m, collector, gaugeDone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	log.Info("sensormgrd running, press ctrl-c to stop")
	<-sigCh
	log.Info("shutdown signal received")
	return nil
}

// pollGauges periodically pushes each registered sensor's current rate and
// latency into collector's gauges. Manager has no push path of its own into
// internal/telemetry (importing it would cycle back through sensormgr), so
// the daemon bridges the two by polling, dropping stale series for sensors
// that have since been unregistered.
func pollGauges(m *sensormgr.Manager, collector *telemetry.Collector, done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	known := map[uint32]bool{}
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			seen := map[uint32]bool{}
			for _, h := range m.ListSensors() {
				seen[h] = true
				known[h] = true
				collector.SetSensorRate(h, float64(m.CurRate(h)))
				collector.SetSensorLatency(h, float64(m.CurLatency(h)))
			}
			for h := range known {
				if !seen[h] {
					collector.DropSensor(h)
					delete(known, h)
				}
			}
		}
	}
}
