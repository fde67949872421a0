package gateway

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/ruuvi-bridge/internal/ruuvi"
)

// Subscriber is the MQTT surface the bridge needs.
// This interface is satisfied by *mqtt.Client.
type Subscriber interface {
	// Subscribe registers a handler for a topic filter.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// Unsubscribe removes the subscription for a topic filter.
	Unsubscribe(topic string) error
}

// Decoder turns one advertisement into registry state.
// This interface is satisfied by *device.Registry.
type Decoder interface {
	DecodeAndApply(payload string, rssi int) error
}

// Logger defines the logging interface used by the bridge.
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

// Stats is a snapshot of the ingest counters.
type Stats struct {
	// Received counts every message delivered on the subscription.
	Received uint64 `json:"received"`

	// Decoded counts advertisements applied to the registry.
	Decoded uint64 `json:"decoded"`

	// Rejected counts messages that could not be parsed or decoded.
	Rejected uint64 `json:"rejected"`

	// Ignored counts gateway status topics, single-level topics, the
	// bridge's own topics and messages without data.
	Ignored uint64 `json:"ignored"`
}

// Options holds configuration for creating a bridge.
type Options struct {
	// Subscriber is the MQTT client.
	Subscriber Subscriber

	// Decoder receives every advertisement.
	Decoder Decoder

	// Topic is the subscription filter, e.g. "ruuvi/#".
	Topic string

	// QoS is the subscription QoS level.
	QoS byte

	// Ignore lists filters for topics the bridge publishes itself. With a
	// broad subscription such as "#" they would otherwise come back as
	// rejected advertisements.
	Ignore []string

	// Logger is optional.
	Logger Logger
}

// Bridge feeds advertisements relayed by Ruuvi gateways over MQTT into the
// device registry.
//
// Thread Safety: All methods are safe for concurrent use. HandleMessage is
// called from paho's goroutines.
type Bridge struct {
	sub     Subscriber
	decoder Decoder
	topic   string
	qos     byte
	ignore  []string
	logger  Logger

	received atomic.Uint64
	decoded  atomic.Uint64
	rejected atomic.Uint64
	ignored  atomic.Uint64

	mu      sync.Mutex
	started bool
}

// New creates a bridge. Call Start to subscribe.
func New(opts Options) (*Bridge, error) {
	if opts.Subscriber == nil {
		return nil, fmt.Errorf("MQTT subscriber is required")
	}
	if opts.Decoder == nil {
		return nil, fmt.Errorf("decoder is required")
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("subscription topic is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Bridge{
		sub:     opts.Subscriber,
		decoder: opts.Decoder,
		topic:   opts.Topic,
		qos:     opts.QoS,
		ignore:  opts.Ignore,
		logger:  logger,
	}, nil
}

// Start subscribes to the gateway topic.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return ErrAlreadyStarted
	}
	if err := b.sub.Subscribe(b.topic, b.qos, b.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.topic, err)
	}
	b.started = true

	b.logger.Info("gateway bridge started", "topic", b.topic, "qos", b.qos)
	return nil
}

// Stop unsubscribes from the gateway topic. Calling Stop on a bridge that
// is not running is a no-op.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}
	b.started = false

	if err := b.sub.Unsubscribe(b.topic); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", b.topic, err)
	}
	b.logger.Info("gateway bridge stopped", "stats", b.Stats())
	return nil
}

// skip reports whether topic cannot carry an advertisement.
func (b *Bridge) skip(topic string) bool {
	if !strings.Contains(topic, "/") || (mqtt.Topics{}).IsGatewayStatus(topic) {
		return true
	}
	for _, filter := range b.ignore {
		if mqtt.MatchFilter(filter, topic) {
			return true
		}
	}
	return false
}

// HandleMessage processes one MQTT message.
//
// Gateway status topics and topics with a single level carry no
// advertisement and are skipped. Problems with individual messages are
// logged and counted; HandleMessage only returns an error it could not
// account for, so the MQTT client never logs routine rejects twice.
func (b *Bridge) HandleMessage(topic string, payload []byte) error {
	b.received.Add(1)

	if b.skip(topic) {
		b.ignored.Add(1)
		return nil
	}

	msg, err := ParseMessage(payload)
	switch {
	case errors.Is(err, ErrMissingData):
		b.ignored.Add(1)
		b.logger.Debug("gateway message without data", "topic", topic)
		return nil
	case err != nil:
		b.rejected.Add(1)
		b.logger.Warn("invalid gateway message",
			"topic", topic,
			"payload", string(payload),
			"error", err,
		)
		return nil
	}

	if err := b.decoder.DecodeAndApply(msg.Data, msg.RSSI); err != nil {
		b.rejected.Add(1)
		var decodeErr *ruuvi.DecodeError
		if errors.As(err, &decodeErr) {
			// Other BLE beacons share the gateway topic.
			log := b.logger.Warn
			if errors.Is(err, ruuvi.ErrUnsupportedFormat) {
				log = b.logger.Debug
			}
			log("advertisement rejected",
				"topic", topic,
				"gateway", msg.GatewayMAC,
				"payload", decodeErr.Payload,
				"error", decodeErr.Err,
			)
			return nil
		}
		return fmt.Errorf("applying advertisement from %s: %w", topic, err)
	}

	b.decoded.Add(1)
	return nil
}

// Stats returns the ingest counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Received: b.received.Load(),
		Decoded:  b.decoded.Load(),
		Rejected: b.rejected.Load(),
		Ignored:  b.ignored.Load(),
	}
}

// Topic returns the subscription filter.
func (b *Bridge) Topic() string {
	return b.topic
}
