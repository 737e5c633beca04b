package serialbus

import (
	"bytes"
	"context"
	"fmt"

	"github.com/nerrad567/feedback-core/internal/output/controller"
	"github.com/nerrad567/feedback-core/internal/output/serial"
)

// Bus limits.
const (
	MaxUnits          = 16
	MaxOutputsPerUnit = 64

	frameStart byte = 0xFF
	maxValue   byte = 0xFE
)

// Config holds the bus settings.
type Config struct {
	Name   string
	Serial serial.Config

	// Units is the number of boards on the bus, addressed 0..Units-1.
	Units int

	// OutputsPerUnit is the number of outputs on each board.
	OutputsPerUnit int
}

// Controller is the serial bus backend.
type Controller struct {
	cfg  Config
	open serial.Opener
	port serial.Port
	sent [][]byte
	buf  []byte
}

var _ controller.Backend = (*Controller)(nil)

// New creates a backend for cfg.
func New(cfg Config) *Controller {
	cfg.Serial = cfg.Serial.WithDefaults()
	return &Controller{cfg: cfg, open: serial.Open}
}

// SetOpener replaces the serial opener.
func (c *Controller) SetOpener(open serial.Opener) { c.open = open }

// Name returns the controller name.
func (c *Controller) Name() string { return c.cfg.Name }

// NumberOfConfiguredOutputs is Units × OutputsPerUnit.
func (c *Controller) NumberOfConfiguredOutputs() int {
	return c.cfg.Units * c.cfg.OutputsPerUnit
}

// VerifySettings checks the line settings and bus geometry.
func (c *Controller) VerifySettings() error {
	var err error
	switch {
	case c.cfg.Units < 1 || c.cfg.Units > MaxUnits:
		err = fmt.Errorf("%w: %d", ErrInvalidUnits, c.cfg.Units)
	case c.cfg.OutputsPerUnit < 1 || c.cfg.OutputsPerUnit > MaxOutputsPerUnit:
		err = fmt.Errorf("%w: %d", ErrInvalidOutputs, c.cfg.OutputsPerUnit)
	default:
		err = c.cfg.Serial.Validate()
	}
	if err != nil {
		return controller.NewError(controller.KindConfiguration, c.cfg.Name, "verify settings", err)
	}
	return nil
}

// ConnectToController opens the port. The first update sends every unit.
func (c *Controller) ConnectToController(_ context.Context) error {
	if c.port != nil {
		return nil
	}
	port, err := c.open(c.cfg.Serial)
	if err != nil {
		return controller.NewError(controller.KindConnection, c.cfg.Name, "open "+c.cfg.Serial.Name, err)
	}
	c.port = port
	c.sent = make([][]byte, c.cfg.Units)
	return nil
}

// DisconnectFromController closes the port.
func (c *Controller) DisconnectFromController() error {
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	c.sent = nil
	if err != nil {
		return controller.NewError(controller.KindConnection, c.cfg.Name, "close", err)
	}
	return nil
}

// UpdateOutputs writes one frame per changed unit.
func (c *Controller) UpdateOutputs(_ context.Context, values []byte) error {
	if c.port == nil {
		return controller.NewError(controller.KindConnection, c.cfg.Name, "update outputs", ErrNotOpen)
	}
	if len(values) != c.NumberOfConfiguredOutputs() {
		return controller.NewError(controller.KindProtocol, c.cfg.Name, "update outputs",
			fmt.Errorf("%w: got %d want %d", controller.ErrOutputCount, len(values), c.NumberOfConfiguredOutputs()))
	}

	n := c.cfg.OutputsPerUnit
	for unit := range c.cfg.Units {
		data := values[unit*n : (unit+1)*n]
		if c.sent[unit] != nil && bytes.Equal(data, c.sent[unit]) {
			continue
		}
		c.buf = Frame(c.buf[:0], unit, data)
		if _, err := c.port.Write(c.buf); err != nil {
			c.sent[unit] = nil
			return controller.NewError(controller.KindTransient, c.cfg.Name, fmt.Sprintf("write unit %d", unit), err)
		}
		c.sent[unit] = append(c.sent[unit][:0], data...)
	}
	return nil
}

// Frame appends the frame for one unit to dst.
func Frame(dst []byte, unit int, values []byte) []byte {
	dst = append(dst, frameStart, byte(unit), byte(len(values)))
	for _, v := range values {
		dst = append(dst, min(v, maxValue))
	}
	return dst
}
