package mqttout

import "errors"

// Domain errors for the MQTT output controller.
var (
	// ErrInvalidOutputs is returned when the output count is outside 1..MaxOutputs.
	ErrInvalidOutputs = errors.New("mqttout: invalid output count")

	// ErrInvalidQoS is returned for a QoS other than 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqttout: invalid QoS")

	// ErrBrokerDown is returned when the broker session is not up.
	ErrBrokerDown = errors.New("mqttout: broker not connected")
)
