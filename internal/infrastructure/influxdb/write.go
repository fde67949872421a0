package influxdb

import (
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/config"
)

// Layout names the measurement and the tag key that identify a device's
// aggregated readings, e.g. Temp,Device=Kitchen.
type Layout struct {
	Measurement string
	TagName     string
}

// LayoutFrom extracts the point layout from the InfluxDB config.
func LayoutFrom(cfg config.InfluxDBConfig) Layout {
	return Layout{Measurement: cfg.Measurement, TagName: cfg.TagName}
}

// Point builds the point for one device.
//
// Parameters:
//   - label: Device label, stored as the layout's tag value
//   - fields: Field values (e.g. Temp, Humidity, BattVoltage)
//   - t: Point timestamp
//
// Example:
//
//	p := layout.Point("Kitchen", map[string]any{"Temp": 21.5}, time.Now())
//	// Temp,Device=Kitchen Temp=21.5 1700000000000000000
func (l Layout) Point(label string, fields map[string]any, t time.Time) *write.Point {
	return write.NewPoint(l.Measurement, map[string]string{l.TagName: label}, fields, t)
}

// LineProtocol renders a point as a single line of line protocol with
// nanosecond precision and no trailing newline.
func LineProtocol(p *write.Point) string {
	return strings.TrimSuffix(write.PointToLineProtocol(p, time.Nanosecond), "\n")
}

// WriteReading writes one device's aggregated fields using the configured layout.
//
// The write is non-blocking; call Flush to send the batch at the end of a
// poll cycle.
//
// Example:
//
//	client.WriteReading("Kitchen", map[string]any{"Temp": 21.5, "Humidity": 40.0}, time.Now())
func (c *Client) WriteReading(label string, fields map[string]any, t time.Time) {
	c.WritePoint(c.layout.Point(label, fields, t))
}

// WritePoint writes a prepared point.
func (c *Client) WritePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

// Layout returns the configured point layout.
func (c *Client) Layout() Layout {
	return c.layout
}
