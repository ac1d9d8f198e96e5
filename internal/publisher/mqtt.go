package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"atmeex_cloud/internal/config"
	"atmeex_cloud/internal/logger"
	"atmeex_cloud/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	publishQoS     = 1
	connectTimeout = 10 * time.Second
)

// publishClient is the part of mqtt.Client the publisher needs.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes climate states as retained JSON messages under <prefix>/<entity_id>/state.
type MQTT struct {
	cli    publishClient
	prefix string
	log    *logger.Logger
}

// NewMQTT connects to the configured broker.
func NewMQTT(cfg config.MQTTConfig, log *logger.Logger) (*MQTT, error) {
	if log == nil {
		log = logger.NewNop()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(mqtt.Client) { log.Infow("mqtt_connected", "broker", cfg.Broker) }
	opts.OnConnectionLost = func(_ mqtt.Client, err error) { log.Warnw("mqtt_connection_lost", "err", err) }

	cli := mqtt.NewClient(opts)
	t := cli.Connect()
	if !t.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", cfg.Broker)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	return newMQTT(cli, cfg.TopicPrefix, log), nil
}

func newMQTT(cli publishClient, prefix string, log *logger.Logger) *MQTT {
	if log == nil {
		log = logger.NewNop()
	}
	return &MQTT{cli: cli, prefix: strings.Trim(prefix, "/"), log: log}
}

// brokerURL accepts host:port or a full URL with a mqtt/tcp/ssl/ws scheme.
func brokerURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "mqtt://"):
		return "tcp://" + strings.TrimPrefix(raw, "mqtt://")
	case strings.HasPrefix(raw, "mqtts://"):
		return "ssl://" + strings.TrimPrefix(raw, "mqtts://")
	case strings.Contains(raw, "://"):
		return raw
	default:
		return "tcp://" + raw
	}
}

func (p *MQTT) Topic(entityID string) string {
	if p.prefix == "" {
		return entityID + "/state"
	}
	return p.prefix + "/" + entityID + "/state"
}

// PublishState sends the state and waits for the broker ack or ctx.
func (p *MQTT) PublishState(ctx context.Context, state models.ClimateState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	topic := p.Topic(state.EntityID)
	t := p.cli.Publish(topic, publishQoS, true, payload)

	select {
	case <-t.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.log.Debugw("mqtt_state_published", "topic", topic)
	return nil
}

func (p *MQTT) Close() {
	p.cli.Disconnect(250)
}
