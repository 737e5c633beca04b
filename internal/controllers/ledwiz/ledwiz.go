package ledwiz

import (
	"context"
	"fmt"
	"io"

	"github.com/nerrad567/feedback-core/internal/output/controller"
)

// Outputs is the number of channels on one board.
const Outputs = 32

// Report constants.
const (
	reportSize    = 8
	sbaCommand    = 64
	maxBrightness = 48
	pbaGroups     = Outputs / reportSize

	// DefaultPulseSpeed is used when PulseSpeed is unset or out of range.
	DefaultPulseSpeed = 2
	minPulseSpeed     = 1
	maxPulseSpeed     = 7
)

// Opener opens the device of a unit.
type Opener func(unit int) (io.WriteCloser, error)

// Config holds the settings of one LedWiz.
type Config struct {
	Name string

	// Unit is the board number 1..16.
	Unit int

	// PulseSpeed is 1..7. Default: 2.
	PulseSpeed int
}

// Logger defines the logging interface used by the LedWiz backend.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Controller is the LedWiz backend.
type Controller struct {
	cfg      Config
	open     Opener
	dev      io.WriteCloser
	logger   Logger
	warnings []string

	synced bool
	sba    [4]byte
	pba    [Outputs]byte
	buf    [1 + reportSize]byte
}

var _ controller.Backend = (*Controller)(nil)

// New creates a backend for cfg using the system hidraw devices. An unset
// PulseSpeed takes the default; an out-of-range one takes the default and is
// reported by SetLogger.
func New(cfg Config) *Controller {
	var warnings []string
	switch {
	case cfg.PulseSpeed == 0:
		cfg.PulseSpeed = DefaultPulseSpeed
	case cfg.PulseSpeed < minPulseSpeed || cfg.PulseSpeed > maxPulseSpeed:
		warnings = append(warnings, fmt.Sprintf("pulse_speed %d outside %d..%d, using %d",
			cfg.PulseSpeed, minPulseSpeed, maxPulseSpeed, DefaultPulseSpeed))
		cfg.PulseSpeed = DefaultPulseSpeed
	}
	return &Controller{
		cfg:      cfg,
		open:     Enumerator{}.Open,
		logger:   noopLogger{},
		warnings: warnings,
	}
}

// SetLogger sets the logger and reports any settings that were replaced by
// defaults.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
	for _, w := range c.warnings {
		logger.Warn("ledwiz setting replaced", "controller", c.cfg.Name, "detail", w)
	}
}

// PulseSpeed returns the pulse speed sent in SBA reports.
func (c *Controller) PulseSpeed() int { return c.cfg.PulseSpeed }

// SetOpener replaces the device opener.
func (c *Controller) SetOpener(open Opener) { c.open = open }

// Name returns the controller name.
func (c *Controller) Name() string { return c.cfg.Name }

// NumberOfConfiguredOutputs is fixed at 32.
func (c *Controller) NumberOfConfiguredOutputs() int { return Outputs }

// VerifySettings checks the unit number.
func (c *Controller) VerifySettings() error {
	if c.cfg.Unit < 1 || c.cfg.Unit > MaxUnits {
		return controller.NewError(controller.KindConfiguration, c.cfg.Name, "verify settings",
			fmt.Errorf("%w: %d", ErrInvalidUnit, c.cfg.Unit))
	}
	return nil
}

// ConnectToController opens the device and switches every output off.
func (c *Controller) ConnectToController(_ context.Context) error {
	if c.dev != nil {
		return nil
	}
	dev, err := c.open(c.cfg.Unit)
	if err != nil {
		return controller.NewError(controller.KindConnection, c.cfg.Name, "open", err)
	}
	c.dev = dev
	c.synced = false
	if err := c.send(make([]byte, Outputs)); err != nil {
		_ = c.close()
		return controller.NewError(controller.KindConnection, c.cfg.Name, "all off", err)
	}
	c.logger.Info("ledwiz connected", "controller", c.cfg.Name, "unit", c.cfg.Unit, "pulse_speed", c.cfg.PulseSpeed)
	return nil
}

// DisconnectFromController switches every output off and closes the device.
func (c *Controller) DisconnectFromController() error {
	if c.dev == nil {
		return nil
	}
	_ = c.send(make([]byte, Outputs))
	if err := c.close(); err != nil {
		return controller.NewError(controller.KindConnection, c.cfg.Name, "close", err)
	}
	return nil
}

// UpdateOutputs sends the reports whose content changed.
func (c *Controller) UpdateOutputs(_ context.Context, values []byte) error {
	if len(values) != Outputs {
		return controller.NewError(controller.KindProtocol, c.cfg.Name, "update outputs",
			fmt.Errorf("%w: got %d want %d", controller.ErrOutputCount, len(values), Outputs))
	}
	if c.dev == nil {
		return controller.NewError(controller.KindConnection, c.cfg.Name, "update outputs", ErrNotOpen)
	}
	if err := c.send(values); err != nil {
		return controller.NewError(controller.KindTransient, c.cfg.Name, "write report", err)
	}
	return nil
}

func (c *Controller) send(values []byte) error {
	sba, pba := Encode(values)

	last := -1
	for g := range pbaGroups {
		if !c.synced || pbaGroup(pba, g) != pbaGroup(c.pba, g) {
			last = g
		}
	}
	if c.synced && sba == c.sba && last < 0 {
		return nil
	}

	// A failed write leaves the device state unknown.
	c.synced = false

	if err := c.report(sbaCommand, sba[0], sba[1], sba[2], sba[3], byte(c.cfg.PulseSpeed), 0, 0); err != nil {
		return err
	}
	for g := 0; g <= last; g++ {
		p := pbaGroup(pba, g)
		if err := c.report(p[0], p[1], p[2], p[3], p[4], p[5], p[6], p[7]); err != nil {
			return err
		}
	}

	c.sba, c.pba, c.synced = sba, pba, true
	return nil
}

// report writes one 8-byte report behind report ID 0.
func (c *Controller) report(b ...byte) error {
	c.buf[0] = 0
	copy(c.buf[1:], b)
	n, err := c.dev.Write(c.buf[:])
	if err != nil {
		return err
	}
	if n != len(c.buf) {
		return fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(c.buf))
	}
	return nil
}

func (c *Controller) close() error {
	err := c.dev.Close()
	c.dev = nil
	c.synced = false
	return err
}

func pbaGroup(pba [Outputs]byte, g int) [reportSize]byte {
	var out [reportSize]byte
	copy(out[:], pba[g*reportSize:(g+1)*reportSize])
	return out
}

// Encode converts 32 output values into the SBA on/off bits and PBA
// brightness levels. A value is on when non-zero; its brightness is scaled
// from 1..255 to 1..48.
func Encode(values []byte) (sba [4]byte, pba [Outputs]byte) {
	for i := 0; i < Outputs && i < len(values); i++ {
		v := values[i]
		if v == 0 {
			continue
		}
		sba[i/8] |= 1 << (i % 8)
		pba[i] = byte(max(1, (int(v)*maxBrightness+127)/255))
	}
	return sba, pba
}
