package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/edgelink-core/internal/infrastructure/config"
)

// Logger is the logging surface used for handler failures.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives one message. Returned errors are logged.
//
// Handlers run on paho's delivery goroutine and should not block.
type MessageHandler func(topic string, payload []byte) error

// Options are the hooks fixed at connect time.
type Options struct {
	// Version is announced in the retained system status.
	Version string

	Logger       Logger
	OnConnect    func()
	OnDisconnect func(err error)
}

// Client is the EdgeLink MQTT bus connection.
//
// Subscriptions are restored after every reconnect, and the core announces
// itself on the system status topic with a retained online message backed
// by a Last Will. All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	opts   Options

	connected atomic.Bool

	mu            sync.Mutex
	subscriptions map[string]subscription
}

type subscription struct {
	qos     byte
	handler pahomqtt.MessageHandler
}

// Connect dials the broker described by cfg and waits for the first
// connection.
func Connect(cfg config.MQTTConfig, opts Options) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		opts:          opts,
		subscriptions: make(map[string]subscription),
	}

	po := buildClientOptions(cfg)
	configureLWT(po, cfg.Broker.ClientID, opts.Version)
	po.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })

	c.client = pahomqtt.NewClient(po)
	if err := wait(c.client.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		c.client.Disconnect(0)
		return nil, err
	}

	// The paho connect handler runs asynchronously.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) handleConnect() {
	c.connected.Store(true)

	c.mu.Lock()
	for topic, sub := range c.subscriptions {
		c.client.Subscribe(topic, sub.qos, sub.handler)
	}
	c.mu.Unlock()

	c.client.Publish(Topics{}.SystemStatus(), c.qos(), true, c.status("online", ""))

	if c.opts.OnConnect != nil {
		c.opts.OnConnect()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connected.Store(false)
	if c.opts.OnDisconnect != nil {
		c.opts.OnDisconnect(err)
	}
}

// Close publishes a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.client.Publish(Topics{}.SystemStatus(), c.qos(), true,
			c.status("offline", "graceful_shutdown")).WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected when the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	if c == nil || c.client == nil {
		return false
	}
	return c.connected.Load() && c.client.IsConnected()
}

func (c *Client) qos() byte {
	return byte(c.cfg.QoS) // #nosec G115 -- QoS validated 0..2
}

func (c *Client) status(state, reason string) []byte {
	return buildStatusPayload(c.cfg.Broker.ClientID, c.opts.Version, state, reason)
}

// wait blocks on a paho token and maps timeouts and failures onto kind.
func wait(token pahomqtt.Token, timeout time.Duration, kind error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", kind, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}

// deliver invokes handler, logging returned errors and recovered panics.
func deliver(logger Logger, handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Error("MQTT handler panic recovered", "topic", topic, "panic", r)
		}
	}()

	if err := handler(topic, payload); err != nil && logger != nil {
		logger.Warn("MQTT handler returned error", "topic", topic, "error", err)
	}
}
