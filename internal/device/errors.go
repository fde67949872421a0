package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDuplicateMapping) {
//	    // log and continue with the next mapping
//	}
//
// None of them is fatal: a rejected mapping leaves the table unchanged.
var (
	// ErrDuplicateMapping is returned when a label or an address is already
	// present in the name table.
	ErrDuplicateMapping = errors.New("device: duplicate name mapping")

	// ErrInvalidMapping is returned when a mapping has an empty label or an
	// address that cannot be parsed.
	ErrInvalidMapping = errors.New("device: invalid name mapping")

	// ErrDeviceNotFound is returned when no record exists for an address.
	ErrDeviceNotFound = errors.New("device: not found")
)
