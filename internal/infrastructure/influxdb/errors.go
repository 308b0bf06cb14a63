package influxdb

import "errors"

// Domain-specific errors for InfluxDB operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDisabled is returned by Connect when influxdb is disabled in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed is returned when the initial connection fails.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned when writing on a closed client.
	ErrNotConnected = errors.New("influxdb: client not connected")

	// ErrInvalidPoint is returned for a point without measurement or fields.
	ErrInvalidPoint = errors.New("influxdb: point requires a measurement and at least one field")
)
