package gateway

import "errors"

// Domain errors for the gateway bridge package.
var (
	// ErrInvalidMessage is returned when a gateway payload is not a JSON object.
	ErrInvalidMessage = errors.New("gateway: invalid message")

	// ErrMissingData is returned when a gateway message has no advertisement.
	ErrMissingData = errors.New("gateway: message has no data field")

	// ErrAlreadyStarted is returned by Start on a running bridge.
	ErrAlreadyStarted = errors.New("gateway: bridge already started")
)
