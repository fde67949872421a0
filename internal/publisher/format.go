package publisher

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/nerrad567/ruuvi-bridge/internal/device"
	"github.com/nerrad567/ruuvi-bridge/internal/ruuvi"
)

// Aggregate point field names.
const (
	FieldTemp        = "Temp"
	FieldHumidity    = "Humidity"
	FieldBattVoltage = "BattVoltage"
)

// Grafana Live field suffixes, appended to the device label.
const (
	liveFieldTemp     = ".temp"
	liveFieldVoltage  = ".U"
	liveFieldHumidity = ".Humidity"
)

const milliVoltsPerVolt = 1000

// round returns v rounded to the given number of decimals.
func round(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}

func volts(milliVolts int) float64 {
	return float64(milliVolts) / milliVoltsPerVolt
}

// AggregateFields returns the time-series fields for one flushed device.
// ok is false when the aggregate has no temperature, in which case the
// device is not written.
func AggregateFields(agg device.Aggregate) (fields map[string]any, ok bool) {
	if !agg.HasTemperature {
		return nil, false
	}
	return map[string]any{
		FieldTemp:        round(agg.TemperatureC, 1),
		FieldBattVoltage: round(volts(agg.BatteryMilliVolts), 2), //nolint:mnd // centivolts
		FieldHumidity:    round(agg.HumidityPct, 1),
	}, true
}

// LiveFields returns the Grafana Live fields for every snapshot that has a
// temperature, keyed "<label>.temp", "<label>.U" and "<label>.Humidity".
func LiveFields(snaps []device.Snapshot) map[string]any {
	fields := make(map[string]any, len(snaps)*3) //nolint:mnd // three fields per device
	for _, s := range snaps {
		if !s.Aggregate.HasTemperature {
			continue
		}
		fields[s.Label+liveFieldTemp] = round(s.Aggregate.TemperatureC, 1)
		fields[s.Label+liveFieldVoltage] = round(volts(s.Aggregate.BatteryMilliVolts), 2) //nolint:mnd // centivolts
		fields[s.Label+liveFieldHumidity] = round(s.Aggregate.HumidityPct, 1)
	}
	return fields
}

// CurrentBody renders the republish payload for one device, e.g.
//
//	{"name":"Temp.Kitchen","Temp":21.50,"Humidity":41.0,"BattVoltage":2.95,"Pressure":100012}
//
// The measurement prefix is left out of "name" when measurement is empty.
// Fixed decimals are part of the format consumers parse, so the body is
// built by hand rather than with json.Marshal.
func CurrentBody(measurement, label string, r ruuvi.Reading) []byte {
	name := label
	if measurement != "" {
		name = measurement + "." + label
	}
	quoted, err := json.Marshal(name)
	if err != nil {
		quoted = []byte(`""`)
	}

	return fmt.Appendf(nil, `{"name":%s,"Temp":%.2f,"Humidity":%.1f,"BattVoltage":%.2f,"Pressure":%d}`,
		quoted, r.TemperatureC, r.HumidityPct, volts(r.BatteryMilliVolts), r.PressurePa)
}
