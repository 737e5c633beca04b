package mqtt

import (
	"fmt"
)

// maxPayloadSize caps a single message. The largest frame, a 10-strip
// ledstrip controller, is far below it.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic.
//
// QoS 0 publishes that are not retained are fire-and-forget: they are handed
// to paho and Publish returns without waiting, so output frames never stall
// the tick loop. Everything else waits up to defaultPublishTimeout for the
// broker's acknowledgement.
//
// Parameters:
//   - topic: Concrete topic, no wildcards
//   - payload: Message body, at most maxPayloadSize bytes
//   - qos: Delivery guarantee (0, 1, or 2)
//   - retained: Whether the broker keeps the message for late subscribers
//
// Returns:
//   - error: nil once handed off (QoS 0) or acknowledged, ErrNotConnected
//     while offline, or a wrapped ErrPublishFailed
//
// Example:
//
//	topic := mqtt.Topics{}.Output("backbox")
//	err := client.Publish(topic, frame, 0, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %w: %d bytes exceeds %d", ErrPublishFailed, ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	c.published.Add(1)
	if qos == 0 && !retained {
		return nil
	}
	return waitToken(token, ErrPublishFailed, topic)
}

// PublishString publishes a string payload.
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes a retained message with the configured QoS.
// Controller state uses it so late subscribers see the current state.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
