package live

import "errors"

// Sentinel errors for Grafana Live operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, live.ErrDisabled) {
//	    // Run without live dashboards
//	}
var (
	// ErrNotConnected indicates the client has been closed.
	ErrNotConnected = errors.New("live: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("live: connection failed")

	// ErrPushFailed indicates a push was rejected or could not be delivered.
	ErrPushFailed = errors.New("live: push failed")

	// ErrDisabled indicates Grafana Live integration is disabled in config.
	ErrDisabled = errors.New("live: disabled in configuration")
)
