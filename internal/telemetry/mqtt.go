package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"airwatch/internal/types"
)

// DefaultMQTTTopic is used when no topic is configured. {device} is replaced
// with the device name.
const DefaultMQTTTopic = "airwatch/{device}/telemetry"

// mqttPublisher is the subset of mqtt.Client used by MQTTSink.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTClientConfig holds broker connection settings.
type MQTTClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Logger   *slog.Logger
}

// NewMQTTClient connects to the broker with auto-reconnect enabled.
func NewMQTTClient(cfg MQTTClientConfig) (mqtt.Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(UploadTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("MQTT connection established", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "broker", cfg.Broker, "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(UploadTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}
	return client, nil
}

// MQTTSink publishes readings as JSON with QoS 1. A publish counts as
// delivered once the broker acknowledges it.
type MQTTSink struct {
	client  mqttPublisher
	topic   string
	device  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewMQTTSink creates an MQTTSink for device on topic.
func NewMQTTSink(client mqttPublisher, topic, device string, logger *slog.Logger) *MQTTSink {
	if topic == "" {
		topic = DefaultMQTTTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTSink{
		client:  client,
		topic:   strings.ReplaceAll(topic, "{device}", device),
		device:  device,
		timeout: UploadTimeout,
		logger:  logger,
	}
}

// Upload implements Sink.
func (s *MQTTSink) Upload(ctx context.Context, r types.Reading) error {
	payload, err := encodePayload(s.device, r)
	if err != nil {
		return err
	}

	token := s.client.Publish(s.topic, 1, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return transportFailure("MQTT publish was not acknowledged in time", nil).
			WithDetails(map[string]any{"topic": s.topic})
	}
	if err := token.Error(); err != nil {
		return transportFailure("MQTT publish failed", err).
			WithDetails(map[string]any{"topic": s.topic})
	}

	types.LoggerFromContext(ctx, s.logger).InfoContext(ctx, "telemetry uploaded",
		"sink", SinkMQTT,
		"topic", s.topic,
	)
	return nil
}
