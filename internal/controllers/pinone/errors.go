package pinone

import "errors"

// Domain errors for the PinOne backend.
var (
	// ErrNoPort is returned when no COM port is configured.
	ErrNoPort = errors.New("pinone: no COM port configured")

	// ErrPortClosed is returned when the proxy reports the port closed after
	// CONNECT.
	ErrPortClosed = errors.New("pinone: proxy did not open the port")

	// ErrWrongPort is returned when the proxy serves a different port.
	ErrWrongPort = errors.New("pinone: proxy serves a different port")
)
