package influxdb

import "errors"

// Errors returned by Connect and HealthCheck, or passed to the
// SetOnError callback. Match them with errors.Is; ErrDisabled is the
// signal to run without the aggregate sink.
var (
	ErrDisabled         = errors.New("influxdb: disabled in configuration")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrNotConnected     = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps batch failures reported asynchronously by the
	// write API.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
