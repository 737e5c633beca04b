package ledwiz

import "errors"

// Domain errors for the LedWiz backend.
var (
	// ErrInvalidUnit is returned for unit numbers outside 1..16.
	ErrInvalidUnit = errors.New("ledwiz: unit must be 1..16")

	// ErrDeviceNotFound is returned when no hidraw node matches the unit.
	ErrDeviceNotFound = errors.New("ledwiz: device not found")

	// ErrNotOpen is returned when the device is used before connecting.
	ErrNotOpen = errors.New("ledwiz: device not open")

	// ErrShortWrite is returned when a report is not written completely.
	ErrShortWrite = errors.New("ledwiz: short report write")
)
