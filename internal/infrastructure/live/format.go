package live

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/influxdb"
)

// SourceTag is attached to every pushed line. Grafana's line protocol
// parser requires at least one tag.
const (
	SourceTagKey   = "source"
	SourceTagValue = "ruuvibridge"
)

// FormatLine renders one frame line for a Grafana Live push, e.g.
//
//	Temp,source=ruuvibridge Kitchen.U=2.95,Kitchen.temp=21.5 1700000000000000000
func FormatLine(measurement string, fields map[string]any, t time.Time) string {
	p := write.NewPoint(measurement, map[string]string{SourceTagKey: SourceTagValue}, fields, t)
	return influxdb.LineProtocol(p)
}
