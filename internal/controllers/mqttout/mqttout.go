package mqttout

import (
	"context"
	"fmt"

	"github.com/nerrad567/feedback-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/feedback-core/internal/output/controller"
)

// MaxOutputs bounds the frame size.
const MaxOutputs = 4096

// Publisher is the subset of the MQTT client the controller uses.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Config holds the MQTT output settings.
type Config struct {
	Name    string
	Outputs int
	QoS     int
}

// Controller publishes output frames to MQTT.
type Controller struct {
	cfg   Config
	pub   Publisher
	topic string
}

var _ controller.Backend = (*Controller)(nil)

// New creates a backend publishing through pub.
func New(cfg Config, pub Publisher) *Controller {
	return &Controller{cfg: cfg, pub: pub, topic: mqtt.Topics{}.Output(cfg.Name)}
}

// Name returns the controller name.
func (c *Controller) Name() string { return c.cfg.Name }

// Topic returns the topic frames are published to.
func (c *Controller) Topic() string { return c.topic }

// NumberOfConfiguredOutputs returns the configured output count.
func (c *Controller) NumberOfConfiguredOutputs() int { return c.cfg.Outputs }

// VerifySettings checks the output count and QoS.
func (c *Controller) VerifySettings() error {
	if c.cfg.Outputs < 1 || c.cfg.Outputs > MaxOutputs {
		return controller.NewError(controller.KindConfiguration, c.cfg.Name, "verify settings",
			fmt.Errorf("%w: %d", ErrInvalidOutputs, c.cfg.Outputs))
	}
	if c.cfg.QoS < 0 || c.cfg.QoS > 2 {
		return controller.NewError(controller.KindConfiguration, c.cfg.Name, "verify settings",
			fmt.Errorf("%w: %d", ErrInvalidQoS, c.cfg.QoS))
	}
	if c.pub == nil {
		return controller.NewError(controller.KindConfiguration, c.cfg.Name, "verify settings", ErrBrokerDown)
	}
	return nil
}

// ConnectToController succeeds once the broker session is up. The paho
// client reconnects on its own, so a later Connect retry picks it up.
func (c *Controller) ConnectToController(context.Context) error {
	if !c.pub.IsConnected() {
		return controller.NewError(controller.KindConnection, c.cfg.Name, "connect", ErrBrokerDown)
	}
	return nil
}

// DisconnectFromController publishes an all-off frame, best effort.
func (c *Controller) DisconnectFromController() error {
	if !c.pub.IsConnected() {
		return nil
	}
	if err := c.pub.Publish(c.topic, make([]byte, c.cfg.Outputs), byte(c.cfg.QoS), false); err != nil {
		return controller.NewError(controller.KindTransient, c.cfg.Name, "disconnect", err)
	}
	return nil
}

// UpdateOutputs publishes values as one message.
func (c *Controller) UpdateOutputs(_ context.Context, values []byte) error {
	if len(values) != c.cfg.Outputs {
		return controller.NewError(controller.KindProtocol, c.cfg.Name, "update outputs",
			fmt.Errorf("%w: got %d want %d", controller.ErrOutputCount, len(values), c.cfg.Outputs))
	}
	if err := c.pub.Publish(c.topic, values, byte(c.cfg.QoS), false); err != nil {
		return controller.NewError(controller.KindTransient, c.cfg.Name, "publish", err)
	}
	return nil
}
