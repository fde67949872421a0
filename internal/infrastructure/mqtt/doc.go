// Package mqtt is the bridge's connection to the MQTT broker.
//
// One Client carries both directions of the bridge's broker traffic. It
// reconnects on its own, replays its subscriptions after a reconnect, and
// keeps a retained online/offline status with a will for crashes. Stats
// counts received and published messages for the diagnostics API.
//
// # Architecture
//
// Ruuvi gateways publish every advertisement they hear to the broker. The
// bridge subscribes to those topics and, optionally, publishes a compact
// current reading per device back to the same broker.
//
//	Ruuvi Gateway ─▶ MQTT Broker ─▶ ruuvibridge ─▶ MQTT Broker (republish)
//
// The bridge announces itself on a retained status topic:
//
//	ruuvibridge/status/<client_id>  {"status":"online",...}
//
// Enable broker.tls whenever the broker is not on the local host; the
// username and password are otherwise sent in clear.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(cfg.MQTT.Topic, 1, bridge.HandleMessage)
//
//	topic := mqtt.Topics{}.Republish("sensors/ruuvi", "Kitchen")
//	client.Publish(topic, body, 1, true)
package mqtt
