package ruuvi

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// addressDigits is the number of hex digits in a 48-bit address.
	addressDigits = 12

	// addressMask keeps the low 48 bits.
	addressMask = 1<<48 - 1
)

// Address is a 48-bit Bluetooth hardware address.
type Address uint64

// String returns the address as 12 uppercase hex digits without separators,
// e.g. "AABBCCDDEEFF".
func (a Address) String() string {
	return fmt.Sprintf("%012X", uint64(a)&addressMask)
}

// Colon returns the address in the usual colon-separated form,
// e.g. "AA:BB:CC:DD:EE:FF".
func (a Address) Colon() string {
	s := a.String()
	var b strings.Builder
	for i := 0; i < addressDigits; i += digitsPerByte {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(s[i : i+digitsPerByte])
	}
	return b.String()
}

// ParseAddress parses a hardware address written as hex digits with optional
// ':' separators. Case is ignored.
//
// Examples of accepted input: "AABBCCDDEEFF", "aa:bb:cc:dd:ee:ff".
func ParseAddress(text string) (Address, error) {
	digits := strings.ReplaceAll(strings.TrimSpace(text), ":", "")
	if len(digits) != addressDigits {
		return 0, fmt.Errorf("%w: %q has %d hex digits, want %d",
			ErrInvalidAddress, text, len(digits), addressDigits)
	}
	v, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, text, err)
	}
	return Address(v), nil
}

// MarshalText encodes the address in its String form, so JSON and YAML
// carry "AABBCCDDEEFF" rather than a number.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts any form ParseAddress accepts.
func (a *Address) UnmarshalText(text []byte) error {
	v, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
