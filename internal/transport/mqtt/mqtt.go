// Package mqtt implements the out-of-process dispatch.TaskSink contract
// over MQTT, giving the "out-of-process task identifier" half of the
// dispatcher (spec.md §4.1/§4.2) concrete transport substance. Grounded on
// the paho client wrapper in pkg/mqtt/client.go from the pack's MQTT-
// ingesting sensor sibling, generalized from telemetry ingestion to
// command dispatch plus completion-event subscription.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sensorhub/sensormgr/internal/constants"
	"github.com/sensorhub/sensormgr/internal/dispatch"
	"github.com/sensorhub/sensormgr/internal/events"
	"github.com/sensorhub/sensormgr/internal/logging"
)

// Config carries the broker connection parameters for a Sink.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	CleanSession   bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	AutoReconnect  bool
	TopicPrefix    string // e.g. "sensormgr/sensors"
	QoS            byte
}

// DefaultConfig returns a Config with conservative broker defaults; Broker
// and TopicPrefix still need to be set by the caller.
func DefaultConfig() Config {
	return Config{
		CleanSession:   true,
		KeepAlive:      30 * time.Second,
		ConnectTimeout: 10 * time.Second,
		AutoReconnect:  true,
		TopicPrefix:    "sensormgr/sensors",
		QoS:            1,
	}
}

// Sink is an out-of-process dispatch.TaskSink backed by an MQTT broker.
// Every dispatched operation is published as a command message on
// "<prefix>/<taskID>/cmd"; completion events arrive as messages on
// "<prefix>/<taskID>/completion" and are decoded back into events.Record.
type Sink struct {
	client paho.Client
	cfg    Config
	log    logging.Interface
}

// NewSink constructs a Sink and connects it to the broker described by cfg.
func NewSink(cfg Config, log logging.Interface) (*Sink, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(cfg.CleanSession)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(cfg.AutoReconnect)

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	})
	opts.SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
		log.Info("mqtt reconnecting")
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}

	return &Sink{client: client, cfg: cfg, log: log}, nil
}

// commandMessage is the wire shape of a dispatched operation.
type commandMessage struct {
	Code    string `json:"code"`
	On      bool   `json:"on,omitempty"`
	Rate    int32  `json:"rate,omitempty"`
	Latency int32  `json:"latency,omitempty"`
}

// completionMessage is the wire shape of a driver completion event.
type completionMessage struct {
	Handle  uint32 `json:"handle"`
	Kind    string `json:"kind"`
	On      bool   `json:"on,omitempty"`
	Rate    int32  `json:"rate,omitempty"`
	Latency int32  `json:"latency,omitempty"`
}

func (s *Sink) commandTopic(taskID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/cmd", s.cfg.TopicPrefix, taskID.String())
}

func (s *Sink) completionTopic(taskID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/completion", s.cfg.TopicPrefix, taskID.String())
}

// Enqueue implements dispatch.TaskSink, publishing payload as a command
// message addressed to taskID. release runs unconditionally once the
// publish attempt completes, since paho's synchronous token.Wait() means
// payload is no longer needed by the time Enqueue returns either way.
func (s *Sink) Enqueue(taskID uuid.UUID, code dispatch.EventCode, payload *dispatch.Payload, release func()) bool {
	defer release()

	msg := commandMessage{
		Code:    code.String(),
		On:      payload.On,
		Rate:    int32(payload.Rate),
		Latency: int32(payload.Latency),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("mqtt: marshal command failed", "error", err)
		return false
	}

	token := s.client.Publish(s.commandTopic(taskID), s.cfg.QoS, false, body)
	token.Wait()
	if err := token.Error(); err != nil {
		s.log.Warn("mqtt: publish command failed", "error", err, "task_id", taskID.String())
		return false
	}
	return true
}

// SubscribeCompletions subscribes to taskID's completion topic, decoding
// each message into an events.Record and handing it to onEvent. onEvent
// plays the role of the external event/defer runtime's delivery into
// signalInternalEvt.
func (s *Sink) SubscribeCompletions(taskID uuid.UUID, onEvent func(events.Record)) error {
	handler := func(_ paho.Client, m paho.Message) {
		var cm completionMessage
		if err := json.Unmarshal(m.Payload(), &cm); err != nil {
			s.log.Error("mqtt: decode completion failed", "error", err)
			return
		}
		onEvent(events.Record{
			Handle:  cm.Handle,
			Kind:    parseKind(cm.Kind),
			On:      cm.On,
			Rate:    constants.Rate(cm.Rate),
			Latency: constants.Latency(cm.Latency),
		})
	}

	token := s.client.Subscribe(s.completionTopic(taskID), s.cfg.QoS, handler)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe to completions for %s: %w", taskID, err)
	}
	return nil
}

func parseKind(name string) events.Kind {
	switch name {
	case "POWER_STATE_CHG":
		return events.KindPowerChanged
	case "FW_STATE_CHG":
		return events.KindFirmwareChanged
	case "RATE_CHG":
		return events.KindRateChanged
	default:
		return events.Kind(-1)
	}
}

// Close disconnects the underlying MQTT client, waiting up to 250ms for
// in-flight work to drain.
func (s *Sink) Close() {
	s.client.Disconnect(250)
}

var _ dispatch.TaskSink = (*Sink)(nil)
