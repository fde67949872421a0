package ruuvi

import "fmt"

// Envelope constants.
const (
	// adTypeManufacturerData is the AD type of the vendor payload.
	adTypeManufacturerData = 0xFF

	// companyIDRuuvi is the company identifier field as it appears on the
	// wire (0x0499 little-endian).
	companyIDRuuvi = 0x9904

	// envelopeHeaderBytes is the part of the declared payload length taken
	// by AD type (1), company id (2) and format (1).
	envelopeHeaderBytes = 4
)

// Format identifies a Ruuvi sensor data format.
type Format byte

// Known data formats.
const (
	// FormatRAWv2 is data format 5.
	FormatRAWv2 Format = 5
)

// formatSpec describes one decodable data format.
type formatSpec struct {
	// payloadLength is the declared manufacturer payload length,
	// counted from the AD type byte.
	payloadLength int

	decode func(c *Cursor) (Address, Reading, error)
}

// formats maps each supported format to its expected length and decoder.
var formats = map[Format]formatSpec{
	FormatRAWv2: {payloadLength: 27, decode: decodeRAWv2},
}

// Reading holds one sensor sample in physical units.
type Reading struct {
	TemperatureC        float64 `json:"temperature_c"`
	HumidityPct         float64 `json:"humidity_pct"`
	PressurePa          int     `json:"pressure_pa"`
	BatteryMilliVolts   int     `json:"battery_mv"`
	TxPowerDBm          int     `json:"tx_power_dbm"`
	MovementCounter     int     `json:"movement_counter"`
	MeasurementSequence uint16  `json:"measurement_sequence"`

	// RSSIDBm is the received signal strength reported by the gateway.
	// It is not part of the advertisement and is zero after Decode.
	RSSIDBm int `json:"rssi_dbm"`
}

// Advertisement is a decoded Ruuvi advertisement.
type Advertisement struct {
	Format  Format
	Address Address
	Reading Reading
}

// Decode validates a Ruuvi advertisement envelope and decodes its payload.
//
// The envelope checks are applied in wire order:
//  1. The digit count must be even
//  2. The first AD structure (flags) is skipped
//  3. The AD type must be Manufacturer Specific Data (0xFF)
//  4. The company identifier must be Ruuvi's
//  5. The format byte selects a decoder; its expected length must match the
//     declared payload length
//
// Parameters:
//   - payload: Raw advertisement as hex digit pairs, no prefix or separators
//
// Returns:
//   - Advertisement: The decoded frame
//   - error: A *DecodeError wrapping ErrMalformedEnvelope,
//     ErrUnsupportedFormat or ErrTruncatedField
func Decode(payload string) (Advertisement, error) {
	adv, err := decode(payload)
	if err != nil {
		return Advertisement{}, &DecodeError{Payload: payload, Err: err}
	}
	return adv, nil
}

func decode(payload string) (Advertisement, error) {
	if len(payload)%digitsPerByte != 0 {
		return Advertisement{}, fmt.Errorf("%w: odd digit count %d", ErrMalformedEnvelope, len(payload))
	}

	c := NewCursor(payload)

	flagsLen, err := c.Int(1, false)
	if err != nil {
		return Advertisement{}, err
	}
	if err := c.Skip(int(flagsLen)); err != nil {
		return Advertisement{}, err
	}

	declared, err := c.Int(1, false)
	if err != nil {
		return Advertisement{}, err
	}

	adType, err := c.Int(1, false)
	if err != nil {
		return Advertisement{}, err
	}
	if adType != adTypeManufacturerData {
		return Advertisement{}, fmt.Errorf("%w: AD type 0x%02X, want 0x%02X",
			ErrMalformedEnvelope, adType, adTypeManufacturerData)
	}

	company, err := c.Int(2, false) //nolint:mnd // company id width
	if err != nil {
		return Advertisement{}, err
	}
	if company != companyIDRuuvi {
		return Advertisement{}, fmt.Errorf("%w: company id 0x%04X, want 0x%04X",
			ErrMalformedEnvelope, company, companyIDRuuvi)
	}

	raw, err := c.Int(1, false)
	if err != nil {
		return Advertisement{}, err
	}
	format := Format(raw)
	layout, ok := formats[format]
	if !ok {
		return Advertisement{}, fmt.Errorf("%w: format %d", ErrUnsupportedFormat, raw)
	}
	if int(declared) != layout.payloadLength {
		return Advertisement{}, fmt.Errorf("%w: declared payload length %d, format %d expects %d",
			ErrMalformedEnvelope, declared, format, layout.payloadLength)
	}
	if need := layout.fieldBytes() * digitsPerByte; c.Remaining() < need {
		return Advertisement{}, fmt.Errorf("%w: format %d needs %d bytes after byte %d, have %d digits",
			ErrTruncatedField, format, layout.fieldBytes(), c.Offset(), c.Remaining())
	}

	addr, reading, err := layout.decode(c)
	if err != nil {
		return Advertisement{}, fmt.Errorf("format %d: %w", format, err)
	}

	return Advertisement{Format: format, Address: addr, Reading: reading}, nil
}

// ExpectedPayloadLength returns the declared manufacturer payload length for
// a format, or false if the format is not supported.
func ExpectedPayloadLength(f Format) (int, bool) {
	layout, ok := formats[f]
	return layout.payloadLength, ok
}

// fieldBytes returns the number of format-specific bytes following the
// format byte.
func (s formatSpec) fieldBytes() int {
	return s.payloadLength - envelopeHeaderBytes
}
