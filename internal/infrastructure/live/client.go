package live

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/config"
)

// Transport names accepted in grafana.transport.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// Default timeouts for Grafana Live operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPushTimeout    = 5 * time.Second

	// pushPath is Grafana's line protocol ingestion endpoint.
	pushPath = "/api/live/push/"

	// healthPath answers 200 on a running Grafana without authentication.
	healthPath = "/api/health"
)

// Client pushes line protocol frames to a Grafana Live stream.
//
// With the http transport every Push is one POST. With the websocket
// transport a single connection is kept open and every Push is one text
// frame; a broken connection is dropped and redialled by the next Push.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	transport  string
	pushURL    string
	wsURL      string
	healthURL  string
	header     http.Header
	timeout    time.Duration
	httpClient *http.Client
	dialer     *websocket.Dialer

	// conn is the open websocket, nil when not dialled.
	conn   *websocket.Conn
	connMu sync.Mutex

	connected bool
	mu        sync.RWMutex
}

// Connect prepares a Grafana Live client and verifies the server.
//
// It performs the following:
//  1. Validates config (disabled returns ErrDisabled)
//  2. Derives the push and websocket URLs from grafana.url and push_id
//  3. Checks that Grafana answers on /api/health
//  4. For the websocket transport, dials the push stream
//
// Parameters:
//   - ctx: Context for cancellation of the initial checks
//   - cfg: Grafana configuration from config.yaml
//
// Returns:
//   - *Client: Client ready for Push
//   - error: If the integration is disabled or Grafana cannot be reached
func Connect(ctx context.Context, cfg config.GrafanaConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	c, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := c.HealthCheck(connectCtx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if c.transport == TransportWebSocket {
		c.connMu.Lock()
		_, err := c.dialLocked(connectCtx)
		c.connMu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
	}

	return c, nil
}

func newClient(cfg config.GrafanaConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing grafana url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("grafana url scheme %q must be http or https", base.Scheme)
	}

	push := *base
	push.Path = base.Path + pushPath + url.PathEscape(cfg.PushID)

	ws := push
	ws.Scheme = "ws"
	if base.Scheme == "https" {
		ws.Scheme = "wss"
	}

	health := *base
	health.Path = base.Path + healthPath

	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultPushTimeout
	}

	var tlsConfig *tls.Config
	if !cfg.VerifyTLS {
		// #nosec G402 -- opt-in for self-signed Grafana on the local network
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.Token)

	transport := cfg.Transport
	if transport == "" {
		transport = TransportHTTP
	}

	return &Client{
		transport: transport,
		pushURL:   push.String(),
		wsURL:     ws.String(),
		healthURL: health.String(),
		header:    header,
		timeout:   timeout,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{TLSClientConfig: tlsConfig, Proxy: http.ProxyFromEnvironment},
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
			TLSClientConfig:  tlsConfig,
			Proxy:            http.ProxyFromEnvironment,
		},
		connected: true,
	}, nil
}

// Push sends lines of line protocol as a single frame.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - lines: Line protocol lines without trailing newlines
//
// Returns:
//   - error: ErrPushFailed wrapping the cause, or ErrNotConnected after Close
func (c *Client) Push(ctx context.Context, lines []string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if len(lines) == 0 {
		return nil
	}
	body := strings.Join(lines, "\n")

	if c.transport == TransportWebSocket {
		return c.pushWebSocket(ctx, body)
	}
	return c.pushHTTP(ctx, body)
}

func (c *Client) pushHTTP(ctx context.Context, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pushURL, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	defer resp.Body.Close()
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: HTTP %d", ErrPushFailed, resp.StatusCode)
	}
	return nil
}

func (c *Client) pushWebSocket(ctx context.Context, body string) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	conn, err := c.dialLocked(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline) //nolint:errcheck // surfaces on the write

	if err := conn.WriteMessage(websocket.TextMessage, []byte(body)); err != nil {
		conn.Close() //nolint:errcheck // dropping a broken connection
		c.conn = nil
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	return nil
}

// dialLocked returns the open websocket, dialling a new one if needed.
// The caller must hold connMu.
func (c *Client) dialLocked(ctx context.Context) (*websocket.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL, c.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialling %s: HTTP %d: %w", c.wsURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialling %s: %w", c.wsURL, err)
	}
	c.conn = conn
	go c.readLoop(conn)
	return conn, nil
}

// readLoop discards anything the server sends so control frames are
// processed, and forgets the connection once it fails.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			conn.Close() //nolint:errcheck // already failed
			c.connMu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.connMu.Unlock()
			return
		}
	}
}

// HealthCheck verifies Grafana is reachable.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return fmt.Errorf("grafana health check: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("grafana health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("grafana health check: status %d", resp.StatusCode)
	}
	return nil
}

// IsConnected reports whether the client is usable (not closed).
func (c *Client) IsConnected() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Transport returns the configured transport name.
func (c *Client) Transport() string {
	return c.transport
}

// Close sends a close frame on an open websocket and marks the client closed.
// Safe to call on a nil Client.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)) //nolint:errcheck // best effort
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("closing grafana live websocket: %w", err)
	}
	return nil
}
