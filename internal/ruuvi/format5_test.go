package ruuvi

import (
	"fmt"
	"testing"
)

// rawv2Fields holds the wire values of a format 5 frame.
type rawv2Fields struct {
	temp     int16
	humidity uint16
	pressure uint16
	power    uint16
	movement uint8
	sequence uint16
	mac      uint64
}

// frame encodes the fields as a complete advertisement.
func (f rawv2Fields) frame() string {
	return fmt.Sprintf("0201061BFF990405%04X%04X%04X%04X%04X%04X%04X%02X%04X%012X",
		uint16(f.temp), f.humidity, f.pressure,
		0x0010, 0xFFE0, 0x0418, // acceleration Y, X, Z
		f.power, f.movement, f.sequence, f.mac)
}

func TestDecodeRAWv2_Sentinels(t *testing.T) {
	tests := []struct {
		name     string
		fields   rawv2Fields
		wantPres int
		wantMove int
		wantTx   int
		wantBatt int
	}{
		{
			name:     "pressure not available",
			fields:   rawv2Fields{pressure: 0xFFFF, power: 0xAF16, movement: 1},
			wantPres: 0,
			wantMove: 1,
			wantTx:   4,
			wantBatt: 3000,
		},
		{
			name:     "movement not available",
			fields:   rawv2Fields{pressure: 0, power: 0xAF16, movement: 0xFF},
			wantPres: 50000,
			wantMove: 0,
			wantTx:   4,
			wantBatt: 3000,
		},
		{
			name:     "tx power not available",
			fields:   rawv2Fields{pressure: 1, power: 0xAF1F, movement: 254},
			wantPres: 50001,
			wantMove: 254,
			wantTx:   0,
			wantBatt: 3000,
		},
		{
			name:     "minimum tx power and battery",
			fields:   rawv2Fields{pressure: 0xFFFE, power: 0x0000},
			wantPres: 115534,
			wantTx:   -40,
			wantBatt: 1600,
		},
		{
			name:     "maximum battery, +20 dBm",
			fields:   rawv2Fields{power: 0xFFFE},
			wantPres: 50000,
			wantTx:   20,
			wantBatt: 3647,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv, err := Decode(tt.fields.frame())
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			r := adv.Reading
			if r.PressurePa != tt.wantPres {
				t.Errorf("PressurePa = %d, want %d", r.PressurePa, tt.wantPres)
			}
			if r.MovementCounter != tt.wantMove {
				t.Errorf("MovementCounter = %d, want %d", r.MovementCounter, tt.wantMove)
			}
			if r.TxPowerDBm != tt.wantTx {
				t.Errorf("TxPowerDBm = %d, want %d", r.TxPowerDBm, tt.wantTx)
			}
			if r.BatteryMilliVolts != tt.wantBatt {
				t.Errorf("BatteryMilliVolts = %d, want %d", r.BatteryMilliVolts, tt.wantBatt)
			}
		})
	}
}

// Negative temperatures use true two's complement: 0x8000 is the most
// negative value the field can carry.
func TestDecodeRAWv2_SignedTemperature(t *testing.T) {
	tests := []struct {
		raw  int16
		want float64
	}{
		{raw: 0, want: 0},
		{raw: 1, want: 0.005},
		{raw: -1, want: -0.005},
		{raw: -200, want: -1.0},
		{raw: -32768, want: -163.84},
		{raw: 32767, want: 163.835},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%#04x", uint16(tt.raw)), func(t *testing.T) {
			adv, err := Decode(rawv2Fields{temp: tt.raw}.frame())
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !approxEqual(adv.Reading.TemperatureC, tt.want) {
				t.Errorf("TemperatureC = %v, want %v", adv.Reading.TemperatureC, tt.want)
			}
		})
	}
}

// Every wire value decodes back to exactly its scaled physical value.
func TestDecodeRAWv2_RoundTrip(t *testing.T) {
	samples := []rawv2Fields{
		{temp: 800, humidity: 5000, pressure: 400, power: 0xAF16, movement: 5, sequence: 1, mac: 0xAABBCCDDEEFF},
		{temp: -4000, humidity: 40000, pressure: 51325, power: 0x8C4E, movement: 0, sequence: 65535, mac: 0x000000000001},
		{temp: 32767, humidity: 0, pressure: 0, power: 0x0001, movement: 200, sequence: 0, mac: 0xFFFFFFFFFFFF},
		{temp: -32768, humidity: 65534, pressure: 65534, power: 0x7FE0, movement: 254, sequence: 12345, mac: 0xC2B5F0A1D3E4},
	}

	for i, f := range samples {
		t.Run(fmt.Sprintf("sample %d", i), func(t *testing.T) {
			adv, err := Decode(f.frame())
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			r := adv.Reading

			if !approxEqual(r.TemperatureC, float64(f.temp)*rawv2TempStep) {
				t.Errorf("TemperatureC = %v, want %v", r.TemperatureC, float64(f.temp)*rawv2TempStep)
			}
			if !approxEqual(r.HumidityPct, float64(f.humidity)*rawv2HumidityStep) {
				t.Errorf("HumidityPct = %v, want %v", r.HumidityPct, float64(f.humidity)*rawv2HumidityStep)
			}
			if r.PressurePa != int(f.pressure)+rawv2PressureOffset {
				t.Errorf("PressurePa = %d, want %d", r.PressurePa, int(f.pressure)+rawv2PressureOffset)
			}
			if r.BatteryMilliVolts != int(f.power>>5)+rawv2BatteryOffset {
				t.Errorf("BatteryMilliVolts = %d, want %d", r.BatteryMilliVolts, int(f.power>>5)+rawv2BatteryOffset)
			}
			if want := -40 + 2*int(f.power&0x1F); r.TxPowerDBm != want {
				t.Errorf("TxPowerDBm = %d, want %d", r.TxPowerDBm, want)
			}
			if r.MovementCounter != int(f.movement) {
				t.Errorf("MovementCounter = %d, want %d", r.MovementCounter, f.movement)
			}
			if r.MeasurementSequence != f.sequence {
				t.Errorf("MeasurementSequence = %d, want %d", r.MeasurementSequence, f.sequence)
			}
			if uint64(adv.Address) != f.mac {
				t.Errorf("Address = %s, want %012X", adv.Address, f.mac)
			}
		})
	}
}
