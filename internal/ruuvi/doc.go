// Package ruuvi decodes Ruuvi tag Bluetooth advertisements relayed as hex text.
//
// A BLE-to-MQTT gateway forwards every advertisement it hears as a string of
// hex digit pairs. This package validates the advertisement envelope, isolates
// the manufacturer-specific payload and decodes the sensor data format inside
// it into physical units.
//
// # Frame Layout
//
//	02 01 06              flags AD structure (skipped)
//	1B                    manufacturer payload length
//	FF                    AD type: Manufacturer Specific Data
//	99 04                 company identifier (Ruuvi Innovations)
//	05                    data format
//	...                   23 bytes of format 5 fields
//
// # Data Formats
//
// Only format 5 (RAWv2) is decoded. Expected manufacturer payload lengths are
// kept per format so that a new format needs a table entry and a decoder, not
// a change to the envelope parser.
//
// # Usage
//
//	adv, err := ruuvi.Decode("0201061BFF990405...")
//	if err != nil {
//	    var de *ruuvi.DecodeError
//	    errors.As(err, &de) // de.Payload holds the rejected frame
//	    return err
//	}
//	fmt.Println(adv.Address, adv.Reading.TemperatureC)
//
// # Thread Safety
//
// Decoding is pure and allocation-light. All functions are safe for
// concurrent use.
//
// # References
//
//   - https://github.com/ruuvi/ruuvi-sensor-protocols/blob/master/dataformat_05.md
package ruuvi
