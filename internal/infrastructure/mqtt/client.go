package mqtt

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/netpanel/internal/infrastructure/config"
)

// Connection timing constants.
const (
	// defaultConnectTimeout is the maximum wait for the initial connection.
	defaultConnectTimeout = 10 * time.Second

	// publishTimeout is the maximum wait for a publish acknowledgement.
	publishTimeout = 5 * time.Second

	// maxReconnectInterval caps the paho auto-reconnect backoff.
	maxReconnectInterval = 60 * time.Second
)

// Client is a publish-only MQTT client for status samples.
//
// netpanel publishes each collected router status sample so that
// home-automation consumers can react to connectivity changes; nothing is
// subscribed. A Last Will marks the service offline when the connection
// drops uncleanly.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	connected bool
	mu        sync.RWMutex
}

// statusTopic returns the service availability topic used for the Last
// Will and the online announcement.
func statusTopic(prefix string) string {
	return prefix + "/service/status"
}

// Connect establishes a connection to the MQTT broker.
//
// It configures broker address and credentials from config, a Last Will
// publishing "offline" on the service status topic, and paho's
// auto-reconnect with capped backoff, then waits for the initial
// connection and announces "online".
func Connect(cfg config.MQTTConfig) (*Client, error) {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(maxReconnectInterval).
		SetCleanSession(true).
		SetWill(statusTopic(cfg.TopicPrefix), "offline", byte(cfg.QoS), true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	c := &Client{cfg: cfg}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, _ error) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect callback runs asynchronously; mark connected here so
	// IsConnected() is immediately accurate.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	// Best-effort online announcement; a failure here is not fatal.
	_ = c.Publish(statusTopic(cfg.TopicPrefix), []byte("online"), true) //nolint:errcheck // LWT covers the offline case

	return c, nil
}

// Publish sends a payload to a topic at the configured QoS.
func (c *Client) Publish(topic string, payload []byte, retain bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: publish to %s timed out", ErrPublishFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// Close publishes the offline status and disconnects gracefully.
func (c *Client) Close() {
	if c.client == nil {
		return
	}
	_ = c.Publish(statusTopic(c.cfg.TopicPrefix), []byte("offline"), true) //nolint:errcheck // Best effort on shutdown

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.client.Disconnect(uint(publishTimeout.Milliseconds())) // #nosec G115 -- constant is small and positive
}
