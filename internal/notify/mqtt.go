package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/halo-guard/internal/config"
	"github.com/oshokin/halo-guard/internal/domain/session"
)

// mqttQuiesce is how long Disconnect waits for in-flight work, in milliseconds.
const mqttQuiesce = 250

// errMQTTConnectTimeout is returned when the broker does not answer in time.
var errMQTTConnectTimeout = errors.New("mqtt connect timed out")

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes each event as JSON to a broker topic.
type MQTT struct {
	// client is the broker connection.
	client publisher
	// topic receives the events.
	topic string
	// qos is the publish quality of service.
	qos byte
}

// NewMQTT connects to the broker described by cfg.
func NewMQTT(cfg config.MQTT, timeout time.Duration) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(timeout)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}

	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("broker %s: %w", cfg.Broker, errMQTTConnectTimeout)
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", cfg.Broker, err)
	}

	return newMQTT(client, cfg.Topic, cfg.QoS), nil
}

// newMQTT wires an existing publisher.
func newMQTT(client publisher, topic string, qos byte) *MQTT {
	return &MQTT{
		client: client,
		topic:  topic,
		qos:    qos,
	}
}

// Notify implements session.Sink.
func (m *MQTT) Notify(ctx context.Context, event session.TamperEvent) error {
	payload, err := EncodeJSON(event)
	if err != nil {
		return err
	}

	token := m.client.Publish(m.topic, m.qos, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", m.topic, ctx.Err())
	}

	if err = token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}

	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.client.Disconnect(mqttQuiesce)
}
