package push

import (
	"circle-hub/domain"
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	qos                   = byte(1) // at least once
	defaultPublishTimeout = 3 * time.Second
)

type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Topic     string
}

// MQTTNotifier publishes notifications to the topic the push gateway subscribes to.
type MQTTNotifier struct {
	client mqtt.Client
	topic  string
	log    *slog.Logger
}

func NewMQTTNotifier(config MQTTConfig, log *slog.Logger) *MQTTNotifier {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)
	// A unique client id lets several hubs share the broker
	opts.SetClientID(fmt.Sprintf("%s-%s", config.ClientID, uuid.New().String()[:8]))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("MQTT connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Info("MQTT connected", "broker", config.BrokerURL)
	})
	return newMQTTNotifier(mqtt.NewClient(opts), config.Topic, log)
}

func newMQTTNotifier(client mqtt.Client, topic string, log *slog.Logger) *MQTTNotifier {
	return &MQTTNotifier{client: client, topic: topic, log: log}
}

// Connect waits for the first connection to the broker; reconnections are automatic afterwards.
func (n *MQTTNotifier) Connect(timeout time.Duration) error {
	token := n.client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connect timeout after %s", timeout)
	}
	return token.Error()
}

func (n *MQTTNotifier) Notify(ctx context.Context, tokens []string, alert domain.EmergencyAlert) error {
	data, err := NewNotification(tokens, alert).Marshal()
	if err != nil {
		return err
	}

	timeout := defaultPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	token := n.client.Publish(n.topic, qos, false, data)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt publish timeout on %s", n.topic)
	}
	if err = token.Error(); err != nil {
		return fmt.Errorf("mqtt publish on %s: %w", n.topic, err)
	}
	n.log.Debug("Push notification published", "alert_id", alert.ID, "topic", n.topic, "devices", len(tokens))
	return nil
}

func (n *MQTTNotifier) Disconnect() {
	n.client.Disconnect(250)
}
