package gateway

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/ruuvi-bridge/internal/device"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/ruuvi-bridge/internal/ruuvi"
)

// A RAWv2 frame for F0:66:1B:4D:46:21 as relayed by a Ruuvi gateway.
const gatewayFrame = "0201061BFF9904050F0853DAC3C80010FFE00418B196940D3EF0661B4D4621"

// MockSubscriber implements Subscriber for testing.
type MockSubscriber struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	qos          map[string]byte
	unsubscribed []string
	subErr       error
}

func NewMockSubscriber() *MockSubscriber {
	return &MockSubscriber{
		handlers: make(map[string]mqtt.MessageHandler),
		qos:      make(map[string]byte),
	}
}

func (m *MockSubscriber) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subErr != nil {
		return m.subErr
	}
	m.handlers[topic] = handler
	m.qos[topic] = qos
	return nil
}

func (m *MockSubscriber) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

// SimulateMessage delivers a message to the first subscription whose
// filter matches topic.
func (m *MockSubscriber) SimulateMessage(topic string, payload []byte) error {
	m.mu.Lock()
	var handler mqtt.MessageHandler
	for filter, h := range m.handlers {
		if mqtt.MatchFilter(filter, topic) {
			handler = h
			break
		}
	}
	m.mu.Unlock()
	if handler == nil {
		return nil
	}
	return handler(topic, payload)
}

// recordingDecoder implements Decoder and records what it was given.
type recordingDecoder struct {
	mu       sync.Mutex
	payloads []string
	rssi     []int
	err      error
}

func (d *recordingDecoder) DecodeAndApply(payload string, rssi int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.payloads = append(d.payloads, payload)
	d.rssi = append(d.rssi, rssi)
	return nil
}

func newTestBridge(t *testing.T, dec Decoder) (*Bridge, *MockSubscriber) {
	t.Helper()
	sub := NewMockSubscriber()
	b, err := New(Options{Subscriber: sub, Decoder: dec, Topic: "ruuvi/#", QoS: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return b, sub
}

func TestNew_Validation(t *testing.T) {
	sub := NewMockSubscriber()
	dec := &recordingDecoder{}

	tests := []struct {
		name string
		opts Options
	}{
		{name: "missing subscriber", opts: Options{Decoder: dec, Topic: "ruuvi/#"}},
		{name: "missing decoder", opts: Options{Subscriber: sub, Topic: "ruuvi/#"}},
		{name: "missing topic", opts: Options{Subscriber: sub, Decoder: dec}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestBridge_StartStop(t *testing.T) {
	b, sub := newTestBridge(t, &recordingDecoder{})

	if sub.qos["ruuvi/#"] != 1 {
		t.Errorf("subscribed with QoS %d, want 1", sub.qos["ruuvi/#"])
	}
	if err := b.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := b.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if len(sub.unsubscribed) != 1 || sub.unsubscribed[0] != "ruuvi/#" {
		t.Errorf("unsubscribed = %v, want [ruuvi/#]", sub.unsubscribed)
	}
}

func TestBridge_StartSubscribeError(t *testing.T) {
	sub := NewMockSubscriber()
	sub.subErr = mqtt.ErrNotConnected

	b, err := New(Options{Subscriber: sub, Decoder: &recordingDecoder{}, Topic: "ruuvi/#"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Start(); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
}

func TestBridge_HandleMessage(t *testing.T) {
	tests := []struct {
		name        string
		topic       string
		payload     string
		wantPayload string
		wantRSSI    int
		wantStats   Stats
	}{
		{
			name:        "advertisement with rssi",
			topic:       "ruuvi/C8:25:2D:8E:9C:2C/F0:66:1B:4D:46:21",
			payload:     `{"gw_mac":"C8:25:2D:8E:9C:2C","rssi":-62,"aoa":[],"gwts":1700000000,"ts":1700000000,"data":"` + gatewayFrame + `","coords":""}`,
			wantPayload: gatewayFrame,
			wantRSSI:    -62,
			wantStats:   Stats{Received: 1, Decoded: 1},
		},
		{
			name:        "missing rssi means zero",
			topic:       "ruuvi/gw/F0661B4D4621",
			payload:     `{"data":"` + gatewayFrame + `"}`,
			wantPayload: gatewayFrame,
			wantStats:   Stats{Received: 1, Decoded: 1},
		},
		{
			name:      "gateway status topic",
			topic:     "ruuvi/C8:25:2D:8E:9C:2C/gw_status",
			payload:   `{"state":"online"}`,
			wantStats: Stats{Received: 1, Ignored: 1},
		},
		{
			name:      "single level topic",
			topic:     "ruuvi",
			payload:   `{"data":"` + gatewayFrame + `"}`,
			wantStats: Stats{Received: 1, Ignored: 1},
		},
		{
			name:      "missing data",
			topic:     "ruuvi/gw/F0661B4D4621",
			payload:   `{"rssi":-70}`,
			wantStats: Stats{Received: 1, Ignored: 1},
		},
		{
			name:      "not json",
			topic:     "ruuvi/gw/F0661B4D4621",
			payload:   `online`,
			wantStats: Stats{Received: 1, Rejected: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := &recordingDecoder{}
			b, _ := newTestBridge(t, dec)

			if err := b.HandleMessage(tt.topic, []byte(tt.payload)); err != nil {
				t.Fatalf("HandleMessage() error = %v", err)
			}

			if got := b.Stats(); got != tt.wantStats {
				t.Errorf("Stats() = %+v, want %+v", got, tt.wantStats)
			}
			if tt.wantPayload == "" {
				if len(dec.payloads) != 0 {
					t.Errorf("decoder called with %v, want no calls", dec.payloads)
				}
				return
			}
			if len(dec.payloads) != 1 || dec.payloads[0] != tt.wantPayload {
				t.Fatalf("decoder payloads = %v, want [%s]", dec.payloads, tt.wantPayload)
			}
			if dec.rssi[0] != tt.wantRSSI {
				t.Errorf("rssi = %d, want %d", dec.rssi[0], tt.wantRSSI)
			}
		})
	}
}

func TestBridge_DecodeRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "unsupported format", payload: strings.Replace(gatewayFrame, "FF990405", "FF990403", 1)},
		{name: "odd length", payload: gatewayFrame[:len(gatewayFrame)-1]},
		{name: "truncated", payload: gatewayFrame[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := device.NewRegistry(nil)
			b, sub := newTestBridge(t, reg)

			err := sub.SimulateMessage("ruuvi/gw/F0661B4D4621", []byte(`{"rssi":-50,"data":"`+tt.payload+`"}`))
			if err != nil {
				t.Fatalf("HandleMessage() error = %v, want rejects to be absorbed", err)
			}
			if got := b.Stats(); got.Rejected != 1 || got.Decoded != 0 {
				t.Errorf("Stats() = %+v, want one reject", got)
			}
			if reg.Count() != 0 {
				t.Errorf("registry has %d records after reject, want 0", reg.Count())
			}
		})
	}
}

func TestBridge_IgnoresOwnTopics(t *testing.T) {
	dec := &recordingDecoder{}
	sub := NewMockSubscriber()
	b, err := New(Options{
		Subscriber: sub,
		Decoder:    dec,
		Topic:      "#",
		Ignore:     []string{"ruuvibridge/status/bridge-1", "sensors/ruuvi/#"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	body := []byte(`{"rssi":-50,"data":"` + gatewayFrame + `"}`)
	for _, topic := range []string{"ruuvibridge/status/bridge-1", "sensors/ruuvi/Kitchen", "ruuvi/gw/F0661B4D4621"} {
		if err := sub.SimulateMessage(topic, body); err != nil {
			t.Fatalf("HandleMessage(%s) error = %v", topic, err)
		}
	}

	if got := b.Stats(); got.Received != 3 || got.Ignored != 2 || got.Decoded != 1 {
		t.Errorf("Stats() = %+v, want 2 ignored and 1 decoded", got)
	}
	if len(dec.payloads) != 1 {
		t.Errorf("decoder saw %d payloads, want 1", len(dec.payloads))
	}
}

func TestBridge_UnexpectedDecoderError(t *testing.T) {
	dec := &recordingDecoder{err: errors.New("registry closed")}
	b, _ := newTestBridge(t, dec)

	err := b.HandleMessage("ruuvi/gw/F0661B4D4621", []byte(`{"data":"`+gatewayFrame+`"}`))
	if err == nil {
		t.Fatal("HandleMessage() error = nil, want decoder error")
	}
	if got := b.Stats(); got.Rejected != 1 {
		t.Errorf("Stats().Rejected = %d, want 1", got.Rejected)
	}
}

func TestBridge_FeedsRegistry(t *testing.T) {
	names := device.NewNameTable()
	if err := names.AddMapping("F0:66:1B:4D:46:21", "Kitchen"); err != nil {
		t.Fatalf("AddMapping() error = %v", err)
	}
	reg := device.NewRegistry(names)
	_, sub := newTestBridge(t, reg)

	payload := []byte(`{"gw_mac":"C8:25:2D:8E:9C:2C","rssi":-71,"data":"` + gatewayFrame + `"}`)
	if err := sub.SimulateMessage("ruuvi/C8:25:2D:8E:9C:2C/F0:66:1B:4D:46:21", payload); err != nil {
		t.Fatalf("SimulateMessage() error = %v", err)
	}

	addr, err := ruuvi.ParseAddress("F0661B4D4621")
	if err != nil {
		t.Fatalf("ParseAddress() error = %v", err)
	}
	snap, err := reg.Snapshot(addr)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Label != "Kitchen" {
		t.Errorf("Label = %q, want Kitchen", snap.Label)
	}
	if snap.Current.RSSIDBm != -71 {
		t.Errorf("Current.RSSIDBm = %d, want -71", snap.Current.RSSIDBm)
	}
	if snap.Raw != gatewayFrame {
		t.Errorf("Raw = %q, want the gateway frame", snap.Raw)
	}
}

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"gw_mac":"C8:25:2D:8E:9C:2C","rssi":-40,"data":"AB"}`))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if msg.GatewayMAC != "C8:25:2D:8E:9C:2C" || msg.RSSI != -40 || msg.Data != "AB" {
		t.Errorf("ParseMessage() = %+v", msg)
	}

	if _, err := ParseMessage([]byte(`[1,2]`)); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("array payload error = %v, want ErrInvalidMessage", err)
	}
	if _, err := ParseMessage([]byte(`{"data":""}`)); !errors.Is(err, ErrMissingData) {
		t.Errorf("empty data error = %v, want ErrMissingData", err)
	}
}
