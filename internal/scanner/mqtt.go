package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultMQTTTopic matches every gateway publishing under beacons/<gateway>/adv.
const DefaultMQTTTopic = "beacons/+/adv"

// Subscriber is the part of *mqttclient.Client the MQTT source needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTT receives advertisements forwarded by BLE gateways. A message carries
// one JSON advertisement or a JSON array of them.
type MQTT struct {
	client  Subscriber
	topic   string
	handler Handler

	mu      sync.Mutex
	running bool
}

// NewMQTT creates a source subscribing to topic (DefaultMQTTTopic when empty).
func NewMQTT(client Subscriber, topic string, h Handler) *MQTT {
	if topic == "" {
		topic = DefaultMQTTTopic
	}
	return &MQTT{client: client, topic: topic, handler: h}
}

func (m *MQTT) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	if err := m.client.Subscribe(m.topic, 0, m.onMessage); err != nil {
		return fmt.Errorf("subscribe %s: %w", m.topic, err)
	}
	m.running = true
	logf("mqtt source subscribed to %s", m.topic)
	return nil
}

func (m *MQTT) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	if err := m.client.Unsubscribe(m.topic); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", m.topic, err)
	}
	logf("mqtt source unsubscribed from %s", m.topic)
	return nil
}

func (m *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	gateway := GatewayFromTopic(msg.Topic())
	payload := bytes.TrimSpace(msg.Payload())

	var items []json.RawMessage
	if bytes.HasPrefix(payload, []byte("[")) {
		if err := json.Unmarshal(payload, &items); err != nil {
			logf("mqtt: bad batch from gateway %q: %v", gateway, err)
			return
		}
	} else {
		items = []json.RawMessage{payload}
	}

	for _, item := range items {
		d, err := DecodeJSON(item)
		if err != nil {
			logf("mqtt: gateway %q: %v", gateway, err)
			continue
		}
		m.handler(d)
	}
}

// GatewayFromTopic extracts <gateway> from beacons/<gateway>/adv style
// topics, or returns the topic unchanged.
func GatewayFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 3 {
		return parts[len(parts)-2]
	}
	return topic
}
