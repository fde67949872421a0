// Package gateway bridges Ruuvi gateway MQTT traffic into the device registry.
//
// A Ruuvi gateway relays every BLE advertisement it hears as a JSON message
// on <base>/<gateway mac>/<sensor mac>:
//
//	{"gw_mac":"C8:25:2D:8E:9C:2C","rssi":-62,"data":"0201061BFF990405..."}
//
// The bridge subscribes to the configured filter, hands the data field and
// RSSI to the registry, and counts what it received, decoded, rejected and
// ignored. Gateway health messages on .../gw_status are skipped.
//
// Usage:
//
//	bridge, err := gateway.New(gateway.Options{
//	    Subscriber: mqttClient,
//	    Decoder:    registry,
//	    Topic:      cfg.MQTT.Topic,
//	    QoS:        byte(cfg.MQTT.QoS),
//	    Logger:     log,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := bridge.Start(); err != nil {
//	    return err
//	}
//	defer bridge.Stop()
package gateway
