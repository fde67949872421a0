package ruuvi

import (
	"errors"
	"fmt"
)

// Decode errors. Use errors.Is() to classify a rejected frame.
var (
	// ErrMalformedEnvelope is returned for odd-length input, non-hex digits,
	// a wrong declared payload length, a wrong AD type or a wrong company id.
	ErrMalformedEnvelope = errors.New("ruuvi: malformed advertisement envelope")

	// ErrUnsupportedFormat is returned when the data format byte names a
	// format this package cannot decode.
	ErrUnsupportedFormat = errors.New("ruuvi: unsupported data format")

	// ErrTruncatedField is returned when the frame ends before a field.
	ErrTruncatedField = errors.New("ruuvi: truncated field")

	// ErrInvalidAddress is returned when a hardware address cannot be parsed.
	ErrInvalidAddress = errors.New("ruuvi: invalid hardware address")
)

// DecodeError wraps a decode failure with the raw frame that caused it.
type DecodeError struct {
	// Payload is the hex text exactly as received.
	Payload string

	// Err is the underlying error; it wraps one of the sentinel errors.
	Err error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v (payload %q)", e.Err, e.Payload)
}

// Unwrap lets errors.Is match the sentinel errors.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
