package ruuvi

// Format 5 (RAWv2) scaling and sentinel constants.
const (
	// rawv2TempStep is the temperature resolution in °C per LSB.
	rawv2TempStep = 0.005

	// rawv2HumidityStep is the humidity resolution in % per LSB.
	rawv2HumidityStep = 0.0025

	// rawv2PressureOffset is added to the raw pressure to get Pa.
	rawv2PressureOffset = 50000

	// rawv2PressureInvalid marks a missing pressure reading.
	rawv2PressureInvalid = 0xFFFF

	// rawv2BatteryOffset is added to the 11-bit battery field to get mV.
	rawv2BatteryOffset = 1600

	// rawv2BatteryShift drops the tx power bits from the power info field.
	rawv2BatteryShift = 5

	// rawv2TxPowerMask selects the tx power bits of the power info field.
	rawv2TxPowerMask = 0x1F

	// rawv2TxPowerMin is the tx power in dBm for a raw value of 0.
	rawv2TxPowerMin = -40

	// rawv2TxPowerStep is the tx power resolution in dBm per LSB.
	rawv2TxPowerStep = 2

	// rawv2MovementInvalid marks a missing movement counter.
	rawv2MovementInvalid = 0xFF

	// rawv2AccelAxes is the number of acceleration fields (Y, X, Z).
	rawv2AccelAxes = 3

	// rawv2AddressBytes is the width of the trailing MAC address.
	rawv2AddressBytes = 6
)

// decodeRAWv2 decodes the 23 data bytes of format 5.
//
//	Offset  Width  Field
//	0       2      temperature, signed, 0.005 °C
//	2       2      humidity, 0.0025 %
//	4       2      pressure, Pa - 50000 (0xFFFF = n/a)
//	6       6      acceleration Y, X, Z (ignored)
//	12      2      battery (11 bits, mV - 1600) | tx power (5 bits)
//	14      1      movement counter (0xFF = n/a)
//	15      2      measurement sequence
//	17      6      MAC address
func decodeRAWv2(c *Cursor) (Address, Reading, error) {
	var r Reading

	temp, err := c.Int(2, true)
	if err != nil {
		return 0, Reading{}, err
	}
	r.TemperatureC = float64(temp) * rawv2TempStep

	humidity, err := c.Int(2, false)
	if err != nil {
		return 0, Reading{}, err
	}
	r.HumidityPct = float64(humidity) * rawv2HumidityStep

	pressure, err := c.Int(2, false)
	if err != nil {
		return 0, Reading{}, err
	}
	if pressure != rawv2PressureInvalid {
		r.PressurePa = int(pressure) + rawv2PressureOffset
	}

	for i := 0; i < rawv2AccelAxes; i++ {
		if err := c.Skip(2); err != nil {
			return 0, Reading{}, err
		}
	}

	power, err := c.Int(2, false)
	if err != nil {
		return 0, Reading{}, err
	}
	r.BatteryMilliVolts = int(power>>rawv2BatteryShift) + rawv2BatteryOffset
	if tx := int(power & rawv2TxPowerMask); tx != rawv2TxPowerMask {
		r.TxPowerDBm = rawv2TxPowerMin + tx*rawv2TxPowerStep
	}

	movement, err := c.Int(1, false)
	if err != nil {
		return 0, Reading{}, err
	}
	if movement != rawv2MovementInvalid {
		r.MovementCounter = int(movement)
	}

	seq, err := c.Int(2, false)
	if err != nil {
		return 0, Reading{}, err
	}
	r.MeasurementSequence = uint16(seq) //nolint:gosec // 2-byte field

	mac, err := c.Int(rawv2AddressBytes, false)
	if err != nil {
		return 0, Reading{}, err
	}

	return Address(mac), r, nil
}
