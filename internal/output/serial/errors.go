package serial

import "errors"

// Domain errors for the serial package.
var (
	// ErrNoPortName is returned when no port name is configured.
	ErrNoPortName = errors.New("serial: no port name configured")

	// ErrPortNotFound is returned when the configured device does not exist.
	ErrPortNotFound = errors.New("serial: port not found")

	// ErrTimeout is returned when a read does not complete in time.
	ErrTimeout = errors.New("serial: read timed out")

	// ErrUnsupported is returned on platforms without serial support.
	ErrUnsupported = errors.New("serial: not supported on this platform")

	// ErrInvalidSettings is returned for unsupported line settings.
	ErrInvalidSettings = errors.New("serial: invalid line settings")
)
