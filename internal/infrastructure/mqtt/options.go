package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	keepAlive             = 60 * time.Second

	// defaultDisconnectQuiesce is in milliseconds, as paho's Disconnect expects.
	defaultDisconnectQuiesce = 1000

	maxQoS = 2

	// clientIDSuffixLen is how many uuid characters UniqueClientID appends.
	clientIDSuffixLen = 8
)

// effectiveClientID returns the id presented to the broker. Brokers drop
// the older of two sessions sharing an id, so a second bridge instance
// against the same broker needs broker.unique_client_id.
func effectiveClientID(cfg config.MQTTConfig) string {
	if !cfg.Broker.UniqueClientID {
		return cfg.Broker.ClientID
	}
	return cfg.Broker.ClientID + "-" + uuid.NewString()[:clientIDSuffixLen]
}

// buildClientOptions translates the mqtt section into paho options.
//
// The session is clean: gateways publish continuously, so nothing queued
// while the bridge was away is worth replaying. paho retries both the
// first connection and later reconnects, backing off from
// reconnect.initial_delay up to reconnect.max_delay.
func buildClientOptions(cfg config.MQTTConfig, clientID string) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// statusMessage is the retained body on the status topic.
type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusPayload(status, clientID, reason string) []byte {
	//nolint:errchkjson // a struct of strings cannot fail to marshal
	data, _ := json.Marshal(statusMessage{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return data
}

func onlinePayload(clientID string) []byte {
	return statusPayload("online", clientID, "")
}

func offlinePayload(clientID string) []byte {
	return statusPayload("offline", clientID, "graceful_shutdown")
}

// configureLWT registers the will the broker publishes, retained at QoS 1,
// when the bridge vanishes without disconnecting.
func configureLWT(opts *pahomqtt.ClientOptions, topic, clientID string) {
	opts.SetBinaryWill(topic, statusPayload("offline", clientID, "unexpected_disconnect"), 1, true)
}
