package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefixBridge is the base for topics owned by the bridge itself.
const TopicPrefixBridge = "ruuvibridge"

// gatewayStatusLevel is the last topic level Ruuvi gateways use for their
// own health messages. Those carry no advertisement.
const gatewayStatusLevel = "gw_status"

// Topics provides builders for the topics the bridge publishes to.
// Using these helpers keeps topic naming in one place.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.Status("ruuvibridge")
//	// Returns: "ruuvibridge/status/ruuvibridge"
type Topics struct{}

// Status returns the retained online/offline topic for a bridge instance.
// The base client id is used so a unique id suffix does not leave stale
// retained topics behind.
//
// Example: ruuvibridge/status/ruuvibridge
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefixBridge, clientID)
}

// Republish returns the current-reading topic for one device.
//
// Example: sensors/ruuvi/Kitchen
func (Topics) Republish(prefix, label string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + label
}

// IsGatewayStatus reports whether topic is a gateway health topic.
//
// Example: ruuvi/C8:25:2D:8E:9C:2C/gw_status
func (Topics) IsGatewayStatus(topic string) bool {
	return LastLevel(topic) == gatewayStatusLevel
}

// LastLevel returns the final level of a topic, or "" for a topic with a
// single level.
func LastLevel(topic string) string {
	i := strings.LastIndexByte(topic, '/')
	if i < 0 {
		return ""
	}
	return topic[i+1:]
}

// MatchFilter reports whether topic matches the subscription filter,
// honouring the "+" and "#" wildcards.
//
// Example: MatchFilter("ruuvi/+/#", "ruuvi/gw1/F0661B4D4621") == true
func MatchFilter(filter, topic string) bool {
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")

	for i, level := range fl {
		if level == "#" {
			return true
		}
		if i >= len(tl) {
			return false
		}
		if level != "+" && level != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}
