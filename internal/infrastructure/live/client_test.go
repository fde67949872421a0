package live

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/config"
)

// fakeGrafana records pushes made over HTTP and websocket.
type fakeGrafana struct {
	mu         sync.Mutex
	bodies     []string
	auth       []string
	pushStatus int
	healthy    bool
	received   chan string
}

func newFakeGrafana(t *testing.T) (*fakeGrafana, *httptest.Server) {
	t.Helper()
	fg := &fakeGrafana{pushStatus: http.StatusOK, healthy: true, received: make(chan string, 16)}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		fg.mu.Lock()
		healthy := fg.healthy
		fg.mu.Unlock()
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/live/push/", func(w http.ResponseWriter, r *http.Request) {
		fg.mu.Lock()
		fg.auth = append(fg.auth, r.Header.Get("Authorization"))
		status := fg.pushStatus
		fg.mu.Unlock()

		if websocket.IsWebSocketUpgrade(r) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				fg.record(r.URL.Path + " " + string(msg))
			}
		}

		body, _ := io.ReadAll(r.Body)
		fg.record(r.URL.Path + " " + string(body))
		w.WriteHeader(status)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fg, srv
}

func (fg *fakeGrafana) record(s string) {
	fg.mu.Lock()
	fg.bodies = append(fg.bodies, s)
	fg.mu.Unlock()
	fg.received <- s
}

func (fg *fakeGrafana) setPushStatus(code int) {
	fg.mu.Lock()
	fg.pushStatus = code
	fg.mu.Unlock()
}

func (fg *fakeGrafana) lastAuth() string {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	if len(fg.auth) == 0 {
		return ""
	}
	return fg.auth[len(fg.auth)-1]
}

func (fg *fakeGrafana) wait(t *testing.T) string {
	t.Helper()
	select {
	case s := <-fg.received:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push")
		return ""
	}
}

func testConfig(url, transport string) config.GrafanaConfig {
	return config.GrafanaConfig{
		Enabled:     true,
		URL:         url,
		Token:       "glsa_test",
		PushID:      "ruuvi",
		Transport:   transport,
		Measurement: "Temp",
		VerifyTLS:   true,
		Timeout:     2,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1", TransportHTTP)
	cfg.Enabled = false

	if _, err := Connect(context.Background(), cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Failures(t *testing.T) {
	fg, srv := newFakeGrafana(t)
	fg.healthy = false

	tests := []struct {
		name string
		url  string
	}{
		{name: "unhealthy server", url: srv.URL},
		{name: "bad scheme", url: "ftp://grafana.local"},
		{name: "unreachable", url: "http://127.0.0.1:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Connect(context.Background(), testConfig(tt.url, TransportHTTP))
			if !errors.Is(err, ErrConnectionFailed) {
				t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
			}
		})
	}
}

func TestNewClient_URLs(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantPush string
		wantWS   string
		wantHlth string
	}{
		{
			name:     "plain http",
			url:      "http://grafana.lan:3000",
			wantPush: "http://grafana.lan:3000/api/live/push/ruuvi",
			wantWS:   "ws://grafana.lan:3000/api/live/push/ruuvi",
			wantHlth: "http://grafana.lan:3000/api/health",
		},
		{
			name:     "https with sub path and trailing slash",
			url:      "https://example.com/grafana/",
			wantPush: "https://example.com/grafana/api/live/push/ruuvi",
			wantWS:   "wss://example.com/grafana/api/live/push/ruuvi",
			wantHlth: "https://example.com/grafana/api/health",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := newClient(testConfig(tt.url, ""))
			if err != nil {
				t.Fatalf("newClient() error = %v", err)
			}
			if c.pushURL != tt.wantPush {
				t.Errorf("pushURL = %q, want %q", c.pushURL, tt.wantPush)
			}
			if c.wsURL != tt.wantWS {
				t.Errorf("wsURL = %q, want %q", c.wsURL, tt.wantWS)
			}
			if c.healthURL != tt.wantHlth {
				t.Errorf("healthURL = %q, want %q", c.healthURL, tt.wantHlth)
			}
			if c.Transport() != TransportHTTP {
				t.Errorf("Transport() = %q, want default %q", c.Transport(), TransportHTTP)
			}
		})
	}
}

func TestPush_HTTP(t *testing.T) {
	fg, srv := newFakeGrafana(t)

	c, err := Connect(context.Background(), testConfig(srv.URL, TransportHTTP))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	lines := []string{
		"Temp,source=ruuvibridge Kitchen.temp=21.5 1",
		"Temp,source=ruuvibridge Garage.temp=4 1",
	}
	if err := c.Push(context.Background(), lines); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	got := fg.wait(t)
	want := "/api/live/push/ruuvi " + strings.Join(lines, "\n")
	if got != want {
		t.Errorf("pushed %q, want %q", got, want)
	}
	if auth := fg.lastAuth(); auth != "Bearer glsa_test" {
		t.Errorf("Authorization = %q, want Bearer glsa_test", auth)
	}
}

func TestPush_HTTPStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "no content", status: http.StatusNoContent},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fg, srv := newFakeGrafana(t)
			c, err := Connect(context.Background(), testConfig(srv.URL, TransportHTTP))
			if err != nil {
				t.Fatalf("Connect() error = %v", err)
			}
			defer c.Close()

			fg.setPushStatus(tt.status)
			err = c.Push(context.Background(), []string{"Temp,source=ruuvibridge a=1 1"})
			if tt.wantErr {
				if !errors.Is(err, ErrPushFailed) {
					t.Errorf("Push() error = %v, want ErrPushFailed", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Push() error = %v", err)
			}
		})
	}
}

func TestPush_Empty(t *testing.T) {
	fg, srv := newFakeGrafana(t)
	c, err := Connect(context.Background(), testConfig(srv.URL, TransportHTTP))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if err := c.Push(context.Background(), nil); err != nil {
		t.Errorf("Push(nil) error = %v", err)
	}
	fg.mu.Lock()
	defer fg.mu.Unlock()
	if len(fg.bodies) != 0 {
		t.Errorf("empty push sent %d requests", len(fg.bodies))
	}
}

func TestPush_WebSocket(t *testing.T) {
	fg, srv := newFakeGrafana(t)

	c, err := Connect(context.Background(), testConfig(srv.URL, TransportWebSocket))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	for _, line := range []string{"Temp,source=ruuvibridge a=1 1", "Temp,source=ruuvibridge a=2 2"} {
		if err := c.Push(context.Background(), []string{line}); err != nil {
			t.Fatalf("Push() error = %v", err)
		}
		if got := fg.wait(t); got != "/api/live/push/ruuvi "+line {
			t.Errorf("frame = %q, want %q", got, line)
		}
	}
	if auth := fg.lastAuth(); auth != "Bearer glsa_test" {
		t.Errorf("Authorization = %q, want Bearer glsa_test", auth)
	}
}

func TestPush_WebSocketRedial(t *testing.T) {
	fg, srv := newFakeGrafana(t)

	c, err := Connect(context.Background(), testConfig(srv.URL, TransportWebSocket))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	// Drop the open socket; the next push must dial again.
	c.connMu.Lock()
	c.conn.Close()
	c.conn = nil
	c.connMu.Unlock()

	if err := c.Push(context.Background(), []string{"Temp,source=ruuvibridge a=3 3"}); err != nil {
		t.Fatalf("Push() after drop error = %v", err)
	}
	if got := fg.wait(t); !strings.HasSuffix(got, "a=3 3") {
		t.Errorf("frame = %q", got)
	}
}

func TestClose(t *testing.T) {
	_, srv := newFakeGrafana(t)

	c, err := Connect(context.Background(), testConfig(srv.URL, TransportWebSocket))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := c.Push(context.Background(), []string{"x"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Push() after Close() error = %v, want ErrNotConnected", err)
	}

	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestFormatLine(t *testing.T) {
	got := FormatLine("Temp", map[string]any{
		"Kitchen.temp":     21.5,
		"Kitchen.U":        2.95,
		"Kitchen.Humidity": 41.0,
	}, time.Unix(1700000000, 0))

	want := "Temp,source=ruuvibridge Kitchen.Humidity=41,Kitchen.U=2.95,Kitchen.temp=21.5 1700000000000000000"
	if got != want {
		t.Errorf("FormatLine() = %q, want %q", got, want)
	}
}
