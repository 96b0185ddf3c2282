// Package mqttclient is a thin wrapper over the paho MQTT client with the
// connection defaults used by beaconradar.
package mqttclient

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	// ConnectTimeout bounds the initial connect. Zero waits for the retry
	// loop indefinitely.
	ConnectTimeout time.Duration
}

type Client struct {
	raw mqtt.Client
}

// ClientOptions builds the paho options for opts.
func ClientOptions(opts Options) *mqtt.ClientOptions {
	o := mqtt.NewClientOptions()
	o.AddBroker(opts.BrokerURL)
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "beaconradar-" + uuid.NewString()[:8]
	}
	o.SetClientID(clientID)
	if opts.Username != "" {
		o.SetUsername(opts.Username)
		o.SetPassword(opts.Password)
	}
	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(2 * time.Second)
	return o
}

// New connects to the broker.
func New(opts Options) (*Client, error) {
	if opts.BrokerURL == "" {
		return nil, fmt.Errorf("mqtt: broker url is required")
	}
	c := mqtt.NewClient(ClientOptions(opts))

	token := c.Connect()
	if opts.ConnectTimeout > 0 {
		if !token.WaitTimeout(opts.ConnectTimeout) {
			c.Disconnect(0)
			return nil, fmt.Errorf("mqtt: connect to %s timed out after %s", opts.BrokerURL, opts.ConnectTimeout)
		}
	} else {
		token.Wait()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", opts.BrokerURL, err)
	}
	return &Client{raw: c}, nil
}

func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	token := c.raw.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

func (c *Client) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	token := c.raw.Subscribe(topic, qos, handler)
	token.Wait()
	return token.Error()
}

func (c *Client) Unsubscribe(topics ...string) error {
	token := c.raw.Unsubscribe(topics...)
	token.Wait()
	return token.Error()
}

func (c *Client) Close() {
	c.raw.Disconnect(250)
}

func (c *Client) String() string {
	return "MQTTClient"
}
