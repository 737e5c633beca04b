package artnet

import (
	"context"
	"fmt"

	"github.com/nerrad567/feedback-core/internal/output/controller"
)

// Config holds the settings of one Art-Net universe.
type Config struct {
	Name     string
	Universe int

	// Address is the destination host. Empty means limited broadcast.
	Address string
}

// Controller is an output controller backend for one DMX universe.
type Controller struct {
	cfg    Config
	engine *Engine
	zero   []byte
}

var (
	_ controller.Backend  = (*Controller)(nil)
	_ controller.Disabler = (*Controller)(nil)
)

// NewController creates a backend that sends through engine.
func NewController(cfg Config, engine *Engine) *Controller {
	return &Controller{cfg: cfg, engine: engine, zero: make([]byte, UniverseSize)}
}

// Name returns the controller name.
func (c *Controller) Name() string { return c.cfg.Name }

// Universe returns the configured universe.
func (c *Controller) Universe() int { return c.cfg.Universe }

// NumberOfConfiguredOutputs is one full universe.
func (c *Controller) NumberOfConfiguredOutputs() int { return UniverseSize }

// VerifySettings checks the engine and universe.
func (c *Controller) VerifySettings() error {
	if c.engine == nil {
		return controller.NewError(controller.KindConfiguration, c.cfg.Name, "verify settings", ErrNoEngine)
	}
	if c.cfg.Universe < 0 || c.cfg.Universe > MaxUniverse {
		return controller.NewError(controller.KindConfiguration, c.cfg.Name, "verify settings",
			fmt.Errorf("%w: %d", ErrInvalidUniverse, c.cfg.Universe))
	}
	return nil
}

// ConnectToController opens the shared socket and sends an all-zero frame.
func (c *Controller) ConnectToController(_ context.Context) error {
	if err := c.engine.Open(); err != nil {
		return controller.NewError(controller.KindConnection, c.cfg.Name, "open socket", err)
	}
	if err := c.engine.SendDMX(c.cfg.Address, c.cfg.Universe, c.zero); err != nil {
		return controller.NewError(controller.KindConnection, c.cfg.Name, "announce", err)
	}
	return nil
}

// DisconnectFromController sends a best-effort all-zero frame. Errors are
// swallowed.
func (c *Controller) DisconnectFromController() error {
	if c.engine != nil {
		_ = c.engine.SendDMX(c.cfg.Address, c.cfg.Universe, c.zero)
	}
	return nil
}

// Disabled reports whether the shared engine has stopped sending.
func (c *Controller) Disabled() bool {
	return c.engine != nil && c.engine.Disabled()
}

// UpdateOutputs sends the universe. It fails with controller.ErrDisabled once
// the engine has tripped.
func (c *Controller) UpdateOutputs(_ context.Context, values []byte) error {
	if c.engine.Disabled() {
		return controller.NewError(controller.KindTransient, c.cfg.Name, "send dmx", controller.ErrDisabled)
	}
	if err := c.engine.SendDMX(c.cfg.Address, c.cfg.Universe, values); err != nil {
		return controller.NewError(controller.KindTransient, c.cfg.Name, "send dmx", err)
	}
	return nil
}
