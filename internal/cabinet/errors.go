package cabinet

import "errors"

// Domain errors for cabinet assembly and layer ingress.
var (
	// ErrUnknownControllerType is returned for an unsupported controller type.
	ErrUnknownControllerType = errors.New("cabinet: unknown controller type")

	// ErrUnknownToyType is returned for an unsupported toy type.
	ErrUnknownToyType = errors.New("cabinet: unknown toy type")

	// ErrUnknownController is returned when a toy references a missing controller.
	ErrUnknownController = errors.New("cabinet: unknown controller")

	// ErrUnresolvedGroup is returned when group members cannot be resolved,
	// e.g. because groups reference each other in a cycle.
	ErrUnresolvedGroup = errors.New("cabinet: unresolved group members")

	// ErrInvalidTransform is returned for out-of-range toy transform settings.
	ErrInvalidTransform = errors.New("cabinet: invalid toy transform")

	// ErrNoBroker is returned when an mqtt controller is configured without
	// an MQTT client.
	ErrNoBroker = errors.New("cabinet: mqtt controller needs an MQTT client")

	// ErrInvalidLayerWrite is returned for a layer payload that sets nothing
	// or does not fit the toy.
	ErrInvalidLayerWrite = errors.New("cabinet: invalid layer write")

	// ErrFinished is returned by operations on a finished cabinet.
	ErrFinished = errors.New("cabinet: finished")
)
