// Package publisher drains the device registry to the bridge's outputs.
//
// Two loops share the registry:
//
//   - Every poll interval the dirty aggregates are flushed and written to
//     InfluxDB as one point per device (Temp, Humidity, BattVoltage).
//   - Every republish interval the changed current readings are published
//     to MQTT under <prefix>/<label>, broadcast to websocket clients, and
//     Grafana Live gets one frame with every device's aggregate.
//
// In dry-run mode nothing is sent. Each payload is printed instead and Run
// returns after the requested number of flush cycles.
package publisher
