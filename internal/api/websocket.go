package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/ruuvi-bridge/internal/device"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ruuvi-bridge/internal/ruuvi"
)

// Message types of the websocket protocol.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	// wsQueueSize is the number of outbound frames buffered per client.
	wsQueueSize = 256

	wsDefaultMaxMessageSize = 8192
	wsDefaultPingInterval   = 30 * time.Second
	wsDefaultPongTimeout    = 10 * time.Second
)

// WSMessage is one frame sent to a client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe requests.
//
// Devices narrows device events to the listed labels or addresses. Empty
// means every device.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
	Devices  []string `json:"devices,omitempty"`
}

// wsRequest is one frame received from a client.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsLimits are the keepalive settings with defaults applied.
type wsLimits struct {
	maxMessageSize int64
	pingInterval   time.Duration
	pongWait       time.Duration
}

func limitsFrom(cfg config.WebSocketConfig) wsLimits {
	l := wsLimits{
		maxMessageSize: int64(cfg.MaxMessageSize),
		pingInterval:   time.Duration(cfg.PingInterval) * time.Second,
		pongWait:       time.Duration(cfg.PongTimeout) * time.Second,
	}
	if l.maxMessageSize <= 0 {
		l.maxMessageSize = wsDefaultMaxMessageSize
	}
	if l.pingInterval <= 0 {
		l.pingInterval = wsDefaultPingInterval
	}
	if l.pongWait <= 0 {
		l.pongWait = wsDefaultPongTimeout
	}
	return l
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is an unauthenticated LAN service; dashboards may be served
	// from any origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebSocket upgrades the request and attaches the client to the hub.
//
// Nothing is sent until the client subscribes:
//
//	{"type":"subscribe","id":"1","payload":{"channels":["reading.updated"],"devices":["Kitchen"]}}
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := &wsClient{
		hub:    s.hub,
		conn:   conn,
		limits: limitsFrom(s.hub.cfg),
		queue:  make(chan []byte, wsQueueSize),
		subs:   make(map[string]map[string]struct{}),
	}
	s.hub.add(c)

	go c.writeLoop()
	go c.readLoop()
}

// wsClient is one websocket connection.
//
// queue is closed exactly once, by shutdown, and only while holding mu for
// writing; enqueue holds mu for reading, so it never sends on a closed
// channel.
type wsClient struct {
	hub    *Hub
	conn   *websocket.Conn
	limits wsLimits

	mu     sync.RWMutex
	queue  chan []byte
	closed bool

	// subs maps channel to device filter. An empty filter matches all.
	subs map[string]map[string]struct{}
}

// enqueue queues data without blocking. It reports false when the client
// is gone or its queue is full.
func (c *wsClient) enqueue(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.queue <- data:
		return true
	default:
		return false
	}
}

// shutdown closes the queue, which makes writeLoop say goodbye and close
// the connection.
func (c *wsClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.queue)
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[channel]
	return ok
}

// wants reports whether snap on channel passes the client's filter.
func (c *wsClient) wants(channel string, snap device.Snapshot) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	filter, ok := c.subs[channel]
	if !ok {
		return false
	}
	if len(filter) == 0 {
		return true
	}
	if _, ok := filter[snap.Label]; ok {
		return true
	}
	_, ok = filter[snap.Address.String()]
	return ok
}

func (c *wsClient) readLoop() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close() //nolint:errcheck // already leaving
	}()

	deadline := c.limits.pingInterval + c.limits.pongWait
	c.conn.SetReadLimit(c.limits.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(deadline)) //nolint:errcheck // surfaces on read
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any frame counts as alive
		_ = c.conn.SetReadDeadline(time.Now().Add(deadline)) //nolint:errcheck // surfaces on read
		c.handle(data)
	}
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(c.limits.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // already leaving
	}()

	for {
		select {
		case data, ok := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.limits.pongWait)) //nolint:errcheck // surfaces on write
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck // best effort goodbye
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.limits.pongWait)) //nolint:errcheck // surfaces on write
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle dispatches one client request.
func (c *wsClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch req.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &sub) != nil || len(sub.Channels) == 0 {
			c.reply(req.ID, WSTypeError, map[string]string{"message": "payload needs a channels list"})
			return
		}
		if req.Type == WSTypeSubscribe {
			c.subscribe(req.ID, sub)
		} else {
			c.unsubscribe(req.ID, sub)
		}
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, map[string]string{"message": "unknown message type: " + req.Type})
	}
}

func (c *wsClient) subscribe(id string, sub WSSubscribePayload) {
	// Addresses are stored in canonical form so any spelling matches.
	// Anything that does not parse is taken as a label.
	filter := make(map[string]struct{}, len(sub.Devices))
	for _, d := range sub.Devices {
		if addr, err := ruuvi.ParseAddress(d); err == nil {
			d = addr.String()
		}
		filter[d] = struct{}{}
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.subs[ch] = filter
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket client subscribed", "channels", sub.Channels, "devices", sub.Devices)
	c.reply(id, WSTypeResponse, map[string]any{"subscribed": sub.Channels})

	for _, ch := range sub.Channels {
		if ch == ChannelReadingUpdated {
			c.hub.replay(c)
			break
		}
	}
}

func (c *wsClient) unsubscribe(id string, sub WSSubscribePayload) {
	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.subs, ch)
	}
	c.mu.Unlock()

	c.reply(id, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
}

func (c *wsClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}
