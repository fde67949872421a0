package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{name: "Status", got: Topics{}.Status("ruuvibridge"), expected: "ruuvibridge/status/ruuvibridge"},
		{name: "Republish", got: Topics{}.Republish("sensors/ruuvi", "Kitchen"), expected: "sensors/ruuvi/Kitchen"},
		{name: "Republish trailing slash", got: Topics{}.Republish("sensors/ruuvi/", "Kitchen"), expected: "sensors/ruuvi/Kitchen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestIsGatewayStatus(t *testing.T) {
	tests := []struct {
		topic string
		want  bool
	}{
		{topic: "ruuvi/C8:25:2D:8E:9C:2C/gw_status", want: true},
		{topic: "ruuvi/C8:25:2D:8E:9C:2C/F0:66:1B:4D:46:21", want: false},
		{topic: "gw_status", want: false},
		{topic: "ruuvi/gw_status/extra", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			if got := (Topics{}).IsGatewayStatus(tt.topic); got != tt.want {
				t.Errorf("IsGatewayStatus(%q) = %v, want %v", tt.topic, got, tt.want)
			}
		})
	}
}

func TestMatchFilter(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{filter: "ruuvi/#", topic: "ruuvi/gw1/F0661B4D4621", want: true},
		{filter: "ruuvi/#", topic: "ruuvi", want: true},
		{filter: "ruuvi/+", topic: "ruuvi/gw1", want: true},
		{filter: "ruuvi/+", topic: "ruuvi/gw1/F0661B4D4621", want: false},
		{filter: "ruuvi/+/data", topic: "ruuvi/gw1/data", want: true},
		{filter: "ruuvi/+/data", topic: "ruuvi/gw1/status", want: false},
		{filter: "ruuvi/gw1", topic: "ruuvi/gw1", want: true},
		{filter: "ruuvi/gw1", topic: "ruuvi/gw2", want: false},
		{filter: "sensors/#", topic: "ruuvi/gw1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.filter+" "+tt.topic, func(t *testing.T) {
			if got := MatchFilter(tt.filter, tt.topic); got != tt.want {
				t.Errorf("MatchFilter(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
			}
		})
	}
}
