package serialbus

import "errors"

// Domain errors for the serial bus backend.
var (
	// ErrInvalidUnits is returned when Units is outside 1..16.
	ErrInvalidUnits = errors.New("serialbus: units must be 1..16")

	// ErrInvalidOutputs is returned when OutputsPerUnit is outside 1..64.
	ErrInvalidOutputs = errors.New("serialbus: outputs per unit must be 1..64")

	// ErrNotOpen is returned when the port is used before connecting.
	ErrNotOpen = errors.New("serialbus: port not open")
)
