package ruuvi

import "fmt"

const (
	// digitsPerByte is the number of hex digits encoding one byte.
	digitsPerByte = 2

	// bitsPerByte is used to size signed fields.
	bitsPerByte = 8

	// maxFieldBytes bounds field widths so the result fits in an int64.
	maxFieldBytes = 7
)

// Cursor reads fixed-width big-endian fields from a hex string.
//
// Each read consumes byteWidth*2 digits. A read that would run past the end
// of the string fails with ErrTruncatedField and leaves the cursor where it
// was, so a short frame is never mistaken for a frame of zeros.
type Cursor struct {
	src string
	pos int
}

// NewCursor returns a Cursor positioned at the first digit of src.
func NewCursor(src string) *Cursor {
	return &Cursor{src: src}
}

// Remaining returns the number of unread hex digits.
func (c *Cursor) Remaining() int {
	return len(c.src) - c.pos
}

// Offset returns the byte offset of the next field.
func (c *Cursor) Offset() int {
	return c.pos / digitsPerByte
}

// Int decodes the next byteWidth bytes as a big-endian integer.
//
// When signed is true the value is reinterpreted as two's complement over
// byteWidth*8 bits: a value with the top bit set becomes value - 2^bits.
//
// Parameters:
//   - byteWidth: Field width in bytes (1-7)
//   - signed: Whether to sign-extend the result
//
// Returns:
//   - int64: The decoded value
//   - error: ErrTruncatedField if fewer than byteWidth*2 digits remain,
//     ErrMalformedEnvelope if a digit is not hex
func (c *Cursor) Int(byteWidth int, signed bool) (int64, error) {
	if byteWidth < 1 || byteWidth > maxFieldBytes {
		return 0, fmt.Errorf("ruuvi: field width %d out of range", byteWidth)
	}
	digits := byteWidth * digitsPerByte
	if c.Remaining() < digits {
		return 0, fmt.Errorf("%w: need %d digits at byte %d, have %d",
			ErrTruncatedField, digits, c.Offset(), c.Remaining())
	}

	var v uint64
	for i := 0; i < digits; i++ {
		n, ok := nibble(c.src[c.pos+i])
		if !ok {
			return 0, fmt.Errorf("%w: invalid hex digit %q at position %d",
				ErrMalformedEnvelope, c.src[c.pos+i], c.pos+i)
		}
		v = v<<4 | uint64(n)
	}
	c.pos += digits

	if signed {
		bits := uint(byteWidth * bitsPerByte)
		if v&(1<<(bits-1)) != 0 {
			return int64(v) - int64(1)<<bits, nil
		}
	}
	return int64(v), nil
}

// Skip advances past byteWidth bytes without decoding them.
func (c *Cursor) Skip(byteWidth int) error {
	digits := byteWidth * digitsPerByte
	if c.Remaining() < digits {
		return fmt.Errorf("%w: cannot skip %d bytes at byte %d, have %d digits",
			ErrTruncatedField, byteWidth, c.Offset(), c.Remaining())
	}
	c.pos += digits
	return nil
}

// nibble converts one hex digit to its value.
func nibble(ch byte) (byte, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return ch - '0', true
	case ch >= 'a' && ch <= 'f':
		return ch - 'a' + 10, true //nolint:mnd // hex digit offset
	case ch >= 'A' && ch <= 'F':
		return ch - 'A' + 10, true //nolint:mnd // hex digit offset
	default:
		return 0, false
	}
}
