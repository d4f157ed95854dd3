// Package daemonconfig loads the fleet-level configuration for
// cmd/sensormgrd: capacity knobs, the logging backend, the sensor
// population to register at startup, and the optional MQTT transport for
// out-of-process drivers. Grounded on the viper-based layered config
// loading in phamhoa2416-logistics-quality-monitor's internal/config
// package (file plus environment override), adapted from flat env-var keys
// to a nested YAML document since a sensor fleet is naturally a list.
package daemonconfig

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/sensorhub/sensormgr"
	"github.com/sensorhub/sensormgr/internal/constants"
	"github.com/sensorhub/sensormgr/internal/registry"
	"github.com/sensorhub/sensormgr/internal/transport/mqtt"
)

// SensorSpec describes one sensor to register at daemon startup.
type SensorSpec struct {
	Name           string
	Type           string
	SupportedRates []int
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// MQTTConfig controls the optional out-of-process transport. When Enabled
// is false no MQTT sink is constructed and every sensor registers
// in-process.
type MQTTConfig struct {
	Enabled        bool
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	KeepAliveSecs  int
	ConnectTimeout int
}

// Config is the daemon's complete startup configuration.
type Config struct {
	Manager sensormgr.Config
	Sensors []SensorSpec
	Metrics MetricsConfig
	MQTT    MQTTConfig
}

// Load reads configuration from SENSORMGR_-prefixed environment variables,
// the file at path (if non-empty), and finally built-in defaults, in that
// order of precedence (viper's own order: AutomaticEnv overrides the config
// file, which overrides SetDefault values).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SENSORMGR")
	v.AutomaticEnv()

	v.SetDefault("manager.maxregisteredsensors", constants.DefaultMaxRegisteredSensors)
	v.SetDefault("manager.maxclientsensorrecords", constants.DefaultMaxClientSensorRecords)
	v.SetDefault("manager.maxinternalevents", constants.DefaultMaxInternalEvents)
	v.SetDefault("manager.logbackend", string(sensormgr.LogBackendStandard))
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.topicprefix", "sensormgr/sensors")
	v.SetDefault("mqtt.keepalivesecs", 30)
	v.SetDefault("mqtt.connecttimeout", 10)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("daemonconfig: reading %s: %w", path, err)
		}
	}

	cfg := &Config{
		Manager: sensormgr.Config{
			MaxRegisteredSensors:   v.GetInt("manager.maxregisteredsensors"),
			MaxClientSensorRecords: v.GetInt("manager.maxclientsensorrecords"),
			MaxInternalEvents:      v.GetInt("manager.maxinternalevents"),
			LogBackend:             sensormgr.LogBackend(v.GetString("manager.logbackend")),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Addr:    v.GetString("metrics.addr"),
		},
		MQTT: MQTTConfig{
			Enabled:        v.GetBool("mqtt.enabled"),
			Broker:         v.GetString("mqtt.broker"),
			ClientID:       v.GetString("mqtt.clientid"),
			Username:       v.GetString("mqtt.username"),
			Password:       v.GetString("mqtt.password"),
			TopicPrefix:    v.GetString("mqtt.topicprefix"),
			KeepAliveSecs:  v.GetInt("mqtt.keepalivesecs"),
			ConnectTimeout: v.GetInt("mqtt.connecttimeout"),
		},
	}

	var sensors []struct {
		Name           string
		Type           string
		SupportedRates []int
	}
	if err := v.UnmarshalKey("sensors", &sensors); err != nil {
		return nil, fmt.Errorf("daemonconfig: parsing sensors: %w", err)
	}
	for _, s := range sensors {
		cfg.Sensors = append(cfg.Sensors, SensorSpec{
			Name:           s.Name,
			Type:           s.Type,
			SupportedRates: s.SupportedRates,
		})
	}

	if err := cfg.Manager.Validate(); err != nil {
		return nil, fmt.Errorf("daemonconfig: %w", err)
	}
	return cfg, nil
}

// RegistryInfo converts s into the descriptor Manager.RegisterInProc or
// RegisterOutOfProc expects.
func (s SensorSpec) RegistryInfo() registry.Info {
	rates := make([]constants.Rate, len(s.SupportedRates))
	for i, r := range s.SupportedRates {
		rates[i] = constants.Rate(r)
	}
	return registry.Info{
		Name:           s.Name,
		Type:           registry.SensorType(s.Type),
		SupportedRates: rates,
	}
}

// MQTTTransportConfig converts c into the connection options mqtt.NewSink
// expects.
func (c MQTTConfig) MQTTTransportConfig() mqtt.Config {
	cfg := mqtt.DefaultConfig()
	cfg.Broker = c.Broker
	cfg.ClientID = c.ClientID
	cfg.Username = c.Username
	cfg.Password = c.Password
	cfg.TopicPrefix = c.TopicPrefix
	cfg.KeepAlive = time.Duration(c.KeepAliveSecs) * time.Second
	cfg.ConnectTimeout = time.Duration(c.ConnectTimeout) * time.Second
	return cfg
}
