package strip

import "errors"

// Domain errors for the strip protocol.
var (
	// ErrHandshakeFailed is returned when no handshake reply arrived after
	// every attempt.
	ErrHandshakeFailed = errors.New("strip: handshake failed")

	// ErrBadAck is returned when the device replies with something other than 'A'.
	ErrBadAck = errors.New("strip: unexpected acknowledgement")

	// ErrNoAck is returned when the device does not reply in time.
	ErrNoAck = errors.New("strip: no acknowledgement")

	// ErrStripTooLong is returned when a configured strip exceeds the device limit.
	ErrStripTooLong = errors.New("strip: strip longer than device supports")

	// ErrLayoutTooLarge is returned when the start position of the last
	// strip does not fit the 16-bit position field of 'R' and 'Q' frames.
	ErrLayoutTooLarge = errors.New("strip: strip positions exceed 65535")

	// ErrNoLeds is returned when no strip has a non-zero LED count.
	ErrNoLeds = errors.New("strip: no LEDs configured")

	// ErrNotOpen is returned when transmitting without an open port.
	ErrNotOpen = errors.New("strip: port not open")

	// ErrInvalidRLE is returned by DecodeRLE for malformed input.
	ErrInvalidRLE = errors.New("strip: invalid run-length data")
)
