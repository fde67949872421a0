package gateway

import (
	"encoding/json"
	"fmt"
)

// Message is one advertisement relayed by a Ruuvi gateway.
// Topic: <mqtt.topic base>/<gateway mac>/<sensor mac>
//
// Only Data and RSSI feed the registry; GatewayMAC is kept for debug logs.
type Message struct {
	// GatewayMAC is the relaying gateway's own address.
	GatewayMAC string `json:"gw_mac,omitempty"`

	// RSSI is the received signal strength in dBm. Absent means 0.
	RSSI int `json:"rssi"`

	// Data is the raw advertisement as hex text.
	Data string `json:"data"`
}

// ParseMessage decodes a gateway payload.
//
// Returns:
//   - Message: The decoded message
//   - error: ErrInvalidMessage if the payload is not a JSON object,
//     ErrMissingData if it has no non-empty data field
func ParseMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.Data == "" {
		return msg, ErrMissingData
	}
	return msg, nil
}
