package device

import (
	"time"

	"github.com/nerrad567/ruuvi-bridge/internal/ruuvi"
)

// Aggregate is the since-last-flush summary of a device's samples.
//
// Temperature is a recency-weighted filter: the first sample after a flush
// seeds it, every later sample moves it halfway towards the new value.
// Humidity is the running maximum. Battery and RSSI carry the last value.
type Aggregate struct {
	// TemperatureC is only meaningful when HasTemperature is true.
	TemperatureC float64 `json:"temperature_c"`

	// HasTemperature is false until the first sample after creation or
	// after a flush.
	HasTemperature bool `json:"has_temperature"`

	HumidityPct       float64 `json:"humidity_pct"`
	BatteryMilliVolts int     `json:"battery_mv"`
	RSSIDBm           int     `json:"rssi_dbm"`
}

// fold merges one new sample into the aggregate.
func (a *Aggregate) fold(r ruuvi.Reading) {
	if a.HasTemperature {
		a.TemperatureC = (a.TemperatureC + r.TemperatureC) / 2 //nolint:mnd // halving filter
	} else {
		a.TemperatureC = r.TemperatureC
		a.HasTemperature = true
	}
	if r.HumidityPct > a.HumidityPct {
		a.HumidityPct = r.HumidityPct
	}
	a.BatteryMilliVolts = r.BatteryMilliVolts
	a.RSSIDBm = r.RSSIDBm
}

// reset clears the fields that restart on every flush. Battery and RSSI
// keep their last value.
func (a *Aggregate) reset() {
	a.TemperatureC = 0
	a.HasTemperature = false
	a.HumidityPct = 0
}

// Snapshot is a read-only copy of one device record.
type Snapshot struct {
	Address ruuvi.Address `json:"address"`

	// Label is the mapped name, or the 12-digit hex address when the device
	// has no mapping.
	Label string `json:"label"`

	// Named reports whether Label came from the name table.
	Named bool `json:"named"`

	// Raw is the last advertisement received, as hex text.
	Raw string `json:"raw"`

	Current       ruuvi.Reading `json:"current"`
	LastPublished ruuvi.Reading `json:"last_published"`
	Aggregate     Aggregate     `json:"aggregate"`

	Dirty       bool   `json:"dirty"`
	UpdateCount uint64 `json:"update_count"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Mapping binds a hardware address to a human-readable name.
type Mapping struct {
	Address   ruuvi.Address `json:"address"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at,omitzero"`
}
