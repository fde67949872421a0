package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/config"
)

// Logger is the logging surface the client needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler is the callback signature for received messages.
//
// paho runs handlers on its own goroutines; a slow handler delays later
// deliveries. A returned error is logged and counted, nothing more.
type MessageHandler func(topic string, payload []byte) error

// Stats counts client traffic since Connect.
type Stats struct {
	Connected     bool   `json:"connected"`
	Connects      uint64 `json:"connects"`
	Received      uint64 `json:"received"`
	HandlerErrors uint64 `json:"handler_errors"`
	Published     uint64 `json:"published"`
	PublishErrors uint64 `json:"publish_errors"`
	Subscriptions int    `json:"subscriptions"`
}

// Client is the bridge's single broker connection.
//
// It receives gateway advertisements and publishes current readings and
// the bridge's retained status. Subscriptions are remembered and replayed
// after every reconnect, since the session is clean.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	paho        pahomqtt.Client
	cfg         config.MQTTConfig
	clientID    string
	statusTopic string

	connected atomic.Bool

	subMu sync.RWMutex
	subs  map[string]subscription

	hookMu       sync.RWMutex
	logger       Logger
	onConnect    func()
	onDisconnect func(err error)

	connects      atomic.Uint64
	received      atomic.Uint64
	handlerErrors atomic.Uint64
	published     atomic.Uint64
	publishErrors atomic.Uint64
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect opens the broker connection.
//
// It performs the following setup:
//  1. Picks the client id, adding a random suffix if configured
//  2. Builds paho options (broker URL, credentials, TLS, backoff)
//  3. Registers the offline will on the status topic
//  4. Waits up to 10s for the first connection
//
// The retained online status is published by the connect hook, so it is
// repeated after each reconnect.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed wrapping the cause
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:         cfg,
		clientID:    effectiveClientID(cfg),
		statusTopic: Topics{}.Status(cfg.Broker.ClientID),
		subs:        make(map[string]subscription),
		logger:      noopLogger{},
	}

	opts := buildClientOptions(cfg, c.clientID)
	configureLWT(opts, c.statusTopic, c.clientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connectionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.connectionDown(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log().Info("reconnecting to MQTT broker", "client_id", c.clientID)
	})

	c.paho = pahomqtt.NewClient(opts)
	token := c.paho.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		// Stops paho's background connect retries
		c.paho.Disconnect(0)
		return nil, fmt.Errorf("%w: no answer from %s:%d within %v",
			ErrConnectionFailed, cfg.Broker.Host, cfg.Broker.Port, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		c.paho.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect hook runs asynchronously
	c.connected.Store(true)
	return c, nil
}

// connectionUp runs on the first connect and on every reconnect.
func (c *Client) connectionUp() {
	c.connected.Store(true)
	c.connects.Add(1)

	c.resubscribe()
	c.paho.Publish(c.statusTopic, c.statusQoS(), true, onlinePayload(c.clientID))

	c.hookMu.RLock()
	hook := c.onConnect
	c.hookMu.RUnlock()
	if hook != nil {
		hook()
	}
}

func (c *Client) connectionDown(err error) {
	c.connected.Store(false)
	c.log().Warn("MQTT connection lost", "error", err)

	c.hookMu.RLock()
	hook := c.onDisconnect
	c.hookMu.RUnlock()
	if hook != nil {
		hook(err)
	}
}

// resubscribe replays every remembered subscription. Failures are only
// logged; the next reconnect tries again.
func (c *Client) resubscribe() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for filter, sub := range c.subs {
		token := c.paho.Subscribe(filter, sub.qos, c.deliver(sub.handler))
		go func(filter string) {
			if err := await(token, ErrSubscribeFailed); err != nil {
				c.log().Error("MQTT resubscribe failed", "filter", filter, "error", err)
			}
		}(filter)
	}
}

func (c *Client) statusQoS() byte {
	return byte(c.cfg.QoS) // #nosec G115 -- validated 0..2 by config
}

// Close publishes the graceful offline status and disconnects.
// Safe to call on a Client that never connected.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.paho.Publish(c.statusTopic, c.statusQoS(), true, offlinePayload(c.clientID))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	if c.paho == nil {
		return false
	}
	return c.connected.Load() && c.paho.IsConnected()
}

// ClientID returns the id presented to the broker, including any random suffix.
func (c *Client) ClientID() string {
	return c.clientID
}

// StatusTopic returns the retained online/offline topic.
func (c *Client) StatusTopic() string {
	return c.statusTopic
}

// Stats returns the traffic counters.
func (c *Client) Stats() Stats {
	return Stats{
		Connected:     c.IsConnected(),
		Connects:      c.connects.Load(),
		Received:      c.received.Load(),
		HandlerErrors: c.handlerErrors.Load(),
		Published:     c.published.Load(),
		PublishErrors: c.publishErrors.Load(),
		Subscriptions: c.SubscriptionCount(),
	}
}

// SetOnConnect sets a callback run on connect and on every reconnect.
func (c *Client) SetOnConnect(hook func()) {
	c.hookMu.Lock()
	c.onConnect = hook
	c.hookMu.Unlock()
}

// SetOnDisconnect sets a callback run when the connection drops.
func (c *Client) SetOnDisconnect(hook func(err error)) {
	c.hookMu.Lock()
	c.onDisconnect = hook
	c.hookMu.Unlock()
}

// SetLogger sets the logger for connection events and handler failures.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.hookMu.Lock()
	c.logger = logger
	c.hookMu.Unlock()
}

func (c *Client) log() Logger {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	if c.logger == nil {
		return noopLogger{}
	}
	return c.logger
}

// deliver adapts a MessageHandler to paho. A panicking handler is logged
// and does not take the paho router down with it.
func (c *Client) deliver(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.received.Add(1)
		defer func() {
			if r := recover(); r != nil {
				c.handlerErrors.Add(1)
				c.log().Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.handlerErrors.Add(1)
			c.log().Warn("MQTT handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}

// await waits for token and wraps a failure or timeout in sentinel.
func await(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
