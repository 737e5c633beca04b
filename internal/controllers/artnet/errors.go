package artnet

import "errors"

// Domain errors for the Art-Net engine.
var (
	// ErrEngineClosed is returned when sending on an engine that was closed.
	ErrEngineClosed = errors.New("artnet: engine closed")

	// ErrNoEngine is returned when a controller is created without an engine.
	ErrNoEngine = errors.New("artnet: no engine")

	// ErrInvalidUniverse is returned for universes outside 0..32767.
	ErrInvalidUniverse = errors.New("artnet: invalid universe")

	// ErrInvalidAddress is returned when the destination cannot be resolved.
	ErrInvalidAddress = errors.New("artnet: invalid address")
)
