package influxdb

import "errors"

// Telemetry is best effort: none of these stop the cabinet. Connect
// failures are fatal only at startup when the section is enabled.
var (
	ErrDisabled         = errors.New("influxdb: disabled in configuration")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrNotConnected     = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps batch failures delivered to the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
