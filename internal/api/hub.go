package api

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/ruuvi-bridge/internal/device"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/ruuvi-bridge/internal/publisher"
)

// ChannelReadingUpdated carries one device snapshot each time its current
// reading changes.
const ChannelReadingUpdated = publisher.EventReadingUpdated

// SnapshotSource supplies the state replayed to a client when it
// subscribes to ChannelReadingUpdated.
// This interface is satisfied by *device.Registry.
type SnapshotSource interface {
	Snapshots() []device.Snapshot
}

// HubStats counts websocket traffic since start.
type HubStats struct {
	Clients int    `json:"connected_clients"`
	Sent    uint64 `json:"events_sent"`
	Dropped uint64 `json:"events_dropped"`
}

// Hub fans events out to websocket clients.
//
// A client only receives the channels it subscribed to, optionally narrowed
// to a set of devices. A client whose send buffer is full misses the event;
// the hub never blocks on a slow browser.
//
// Hub satisfies the publisher's event sink.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	source  SnapshotSource

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// SetSource enables the replay of current state on subscribe.
func (h *Hub) SetSource(src SnapshotSource) {
	h.mu.Lock()
	h.source = src
	h.mu.Unlock()
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
	}
}

// Broadcast sends an event to every client subscribed to channel.
// For device snapshots the client's device filter applies as well.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeEvent(channel, payload)
	if err != nil {
		h.logger.Error("failed to encode websocket event", "channel", channel, "error", err)
		return
	}

	snap, isSnapshot := payload.(device.Snapshot)

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if isSnapshot && !c.wants(channel, snap) {
			continue
		}
		if !isSnapshot && !c.subscribed(channel) {
			continue
		}
		if c.enqueue(data) {
			delivered++
			h.sent.Add(1)
		} else {
			h.dropped.Add(1)
		}
	}
	if delivered > 0 {
		h.logger.Debug("websocket event sent", "channel", channel, "recipients", delivered)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the client count and event counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Clients: h.ClientCount(),
		Sent:    h.sent.Load(),
		Dropped: h.dropped.Load(),
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// remove forgets c and closes its send queue. Safe to call twice.
func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.shutdown()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// replay queues the current snapshots c asked for, so a fresh page does
// not wait for the next change of every device.
func (h *Hub) replay(c *wsClient) {
	h.mu.RLock()
	src := h.source
	h.mu.RUnlock()
	if src == nil {
		return
	}

	for _, snap := range src.Snapshots() {
		if !c.wants(ChannelReadingUpdated, snap) {
			continue
		}
		data, err := encodeEvent(ChannelReadingUpdated, snap)
		if err != nil {
			continue
		}
		if !c.enqueue(data) {
			h.dropped.Add(1)
			return
		}
		h.sent.Add(1)
	}
}

func encodeEvent(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}
