package strip

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/feedback-core/internal/output/controller"
	"github.com/nerrad567/feedback-core/internal/output/serial"
)

const (
	// handshakeAttempts is the number of pings before giving up.
	handshakeAttempts = 20

	// postFlushDelay is the fixed wait after flushing a freshly opened port.
	postFlushDelay = 500 * time.Millisecond

	// selfTestTimeout bounds the wait for the 'T' acknowledgement.
	selfTestTimeout = 2 * time.Second
)

// Logger defines the logging interface used by the strip controller.
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

// Controller is a strip controller backend.
//
// Thread Safety:
// Controller methods are called by controller.Controller, which serialises
// them; Controller itself holds no lock.
type Controller struct {
	cfg        Config
	opts       Options
	compressed bool
	open       serial.Opener
	logger     Logger
	warnings   []string

	// postFlush is the fixed wait after the initial flush.
	postFlush time.Duration

	port    serial.Port
	maxLeds int
	// sent holds the last acknowledged data per strip (compressed variant).
	sent [MaxStrips][]byte
}

var _ controller.Backend = (*Controller)(nil)

// New creates a plain strip controller.
func New(cfg Config) *Controller {
	c := &Controller{
		cfg:       cfg,
		open:      serial.Open,
		logger:    noopLogger{},
		postFlush: postFlushDelay,
	}
	c.warnings = c.cfg.normalize()
	return c
}

// NewCompressed creates a strip controller with the compressed-variant options.
func NewCompressed(cfg Config, opts Options) *Controller {
	c := New(cfg)
	c.opts = opts
	c.compressed = true
	return c
}

// SetLogger sets the logger and reports any settings that were replaced by
// defaults.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
	for _, w := range c.warnings {
		logger.Warn("strip controller setting replaced", "controller", c.cfg.Name, "detail", w)
	}
}

// SetOpener replaces the port opener.
func (c *Controller) SetOpener(open serial.Opener) {
	c.open = open
}

// Name returns the controller name.
func (c *Controller) Name() string { return c.cfg.Name }

// Settings returns the normalised configuration.
func (c *Controller) Settings() Config { return c.cfg }

// MaxLedsPerChannel returns the limit reported by the device at connect.
func (c *Controller) MaxLedsPerChannel() int { return c.maxLeds }

// NumberOfConfiguredOutputs returns three channels per configured LED.
func (c *Controller) NumberOfConfiguredOutputs() int {
	return c.cfg.totalLeds() * 3
}

// VerifySettings checks the port name and the LED configuration.
func (c *Controller) VerifySettings() error {
	if err := c.cfg.Serial.Validate(); err != nil {
		return controller.NewError(controller.KindConfiguration, c.cfg.Name, "verify settings", err)
	}
	if c.cfg.totalLeds() == 0 {
		return controller.NewError(controller.KindConfiguration, c.cfg.Name, "verify settings", ErrNoLeds)
	}
	if err := c.cfg.checkLayout(); err != nil {
		return controller.NewError(controller.KindConfiguration, c.cfg.Name, "verify settings", err)
	}
	return nil
}

// ConnectToController opens the port, performs the handshake and programs
// the channel layout.
func (c *Controller) ConnectToController(ctx context.Context) error {
	if c.port != nil {
		c.closePort()
	}

	port, err := c.open(c.cfg.Serial)
	if err != nil {
		return controller.NewError(controller.KindConnection, c.cfg.Name, "open "+c.cfg.Serial.Name, err)
	}
	c.port = port

	if err := c.setup(ctx); err != nil {
		c.closePort()
		return err
	}

	c.logger.Info("strip controller connected",
		"controller", c.cfg.Name,
		"port", c.cfg.Serial.Name,
		"max_leds_per_channel", c.maxLeds,
		"channel_length", c.cfg.channelLength(),
	)
	return nil
}

func (c *Controller) setup(ctx context.Context) error {
	if err := wait(ctx, c.cfg.OpenSettle); err != nil {
		return c.connErr("open settle", err)
	}
	if err := c.port.Flush(); err != nil {
		return c.connErr("flush", err)
	}
	if err := wait(ctx, c.postFlush); err != nil {
		return c.connErr("open settle", err)
	}

	if err := c.handshake(ctx); err != nil {
		return err
	}

	if err := c.queryMaxLeds(); err != nil {
		return err
	}
	for i, n := range c.cfg.Leds {
		if n > c.maxLeds {
			return controller.NewError(controller.KindConnection, c.cfg.Name, "check strip lengths",
				fmt.Errorf("%w: strip %d has %d LEDs, device supports %d", ErrStripTooLong, i+1, n, c.maxLeds))
		}
	}
	if err := c.cfg.checkLayout(); err != nil {
		return controller.NewError(controller.KindConfiguration, c.cfg.Name, "check strip layout", err)
	}

	if err := c.command(lengthFrame(c.cfg.channelLength()), "L (set channel length)"); err != nil {
		return err
	}
	if err := c.command([]byte{cmdClear}, "C (clear)"); err != nil {
		return err
	}

	if c.opts.SendPerLedstripLength {
		total := c.cfg.activeChannels()
		for i := 0; i < total; i++ {
			op := fmt.Sprintf("Z (resize strip %d)", i+1)
			if err := c.command(resizeFrame(i, total, c.cfg.Leds[i]), op); err != nil {
				return err
			}
		}
	}

	if c.opts.TestOnConnect {
		if err := c.writeAll([]byte{cmdSelfTest}, "T (self test)"); err != nil {
			return err
		}
		if err := c.expectAck("T (self test)", selfTestTimeout); err != nil {
			return err
		}
	}

	for i := range c.sent {
		c.sent[i] = nil
	}
	return nil
}

// handshake pings the device until it answers 'A' or 'N'.
func (c *Controller) handshake(ctx context.Context) error {
	zeros := make([]byte, resyncLength)
	reply := make([]byte, 1)

	for attempt := 1; attempt <= handshakeAttempts; attempt++ {
		if _, err := c.port.Write([]byte{ping}); err != nil {
			return c.connErr("handshake", err)
		}
		if err := wait(ctx, c.cfg.HandshakeStart); err != nil {
			return c.connErr("handshake", err)
		}

		n, err := c.port.Available()
		if err != nil {
			return c.connErr("handshake", err)
		}
		if n > 0 {
			if err := serial.ReadFull(c.port, reply, c.cfg.ReadTimeout); err == nil {
				if reply[0] == ack || reply[0] == nak {
					c.logger.Debug("strip handshake complete", "controller", c.cfg.Name, "attempt", attempt)
					return serial.Drain(c.port)
				}
			}
		}

		c.logger.Debug("strip handshake attempt failed", "controller", c.cfg.Name, "attempt", attempt)
		if _, err := c.port.Write(zeros); err != nil {
			return c.connErr("handshake resync", err)
		}
		if err := wait(ctx, c.cfg.HandshakeEnd); err != nil {
			return c.connErr("handshake", err)
		}
		if err := serial.Drain(c.port); err != nil {
			return c.connErr("handshake", err)
		}
	}

	return controller.NewError(controller.KindConnection, c.cfg.Name, "handshake",
		fmt.Errorf("%w after %d attempts", ErrHandshakeFailed, handshakeAttempts))
}

func (c *Controller) queryMaxLeds() error {
	const op = "M (query max LEDs)"
	if err := c.writeAll([]byte{cmdMaxLeds}, op); err != nil {
		return err
	}
	reply := make([]byte, 3)
	if err := serial.ReadFull(c.port, reply, c.cfg.ReadTimeout); err != nil {
		return controller.NewError(controller.KindProtocol, c.cfg.Name, op, fmt.Errorf("%w: %w", ErrNoAck, err))
	}
	if reply[2] != ack {
		return controller.NewError(controller.KindProtocol, c.cfg.Name, op,
			fmt.Errorf("%w: expected 'A' got 0x%02X", ErrBadAck, reply[2]))
	}
	c.maxLeds = int(reply[0])<<8 | int(reply[1])
	return nil
}

// DisconnectFromController closes the port.
func (c *Controller) DisconnectFromController() error {
	c.closePort()
	return nil
}

func (c *Controller) closePort() {
	if c.port == nil {
		return
	}
	if err := c.port.Close(); err != nil {
		c.logger.Warn("strip port close failed", "controller", c.cfg.Name, "error", err)
	}
	c.port = nil
}

// UpdateOutputs sends one frame per configured strip and latches the output.
func (c *Controller) UpdateOutputs(_ context.Context, values []byte) error {
	if c.port == nil {
		return controller.NewError(controller.KindConnection, c.cfg.Name, "update", ErrNotOpen)
	}
	if len(values) != c.NumberOfConfiguredOutputs() {
		return controller.NewError(controller.KindConfiguration, c.cfg.Name, "update",
			fmt.Errorf("%w: got %d want %d", controller.ErrOutputCount, len(values), c.NumberOfConfiguredOutputs()))
	}

	channelLength := c.cfg.channelLength()
	offset := 0
	for i, count := range c.cfg.Leds {
		if count == 0 {
			continue
		}
		data := values[offset : offset+count*3]
		offset += count * 3

		if c.compressed && c.sent[i] != nil && bytes.Equal(c.sent[i], data) {
			continue
		}

		frame := stripFrame(i*channelLength, count, data, c.compressed && c.opts.UseCompression)
		op := fmt.Sprintf("%c (strip %d)", frame[0], i+1)
		if err := c.command(frame, op); err != nil {
			c.forgetSent()
			return err
		}
		if c.compressed {
			c.sent[i] = append(c.sent[i][:0], data...)
		}
	}

	if err := c.command([]byte{cmdOutput}, "O (output)"); err != nil {
		c.forgetSent()
		return err
	}
	return nil
}

func (c *Controller) forgetSent() {
	for i := range c.sent {
		c.sent[i] = nil
	}
}

// command writes frame and waits for a single 'A'.
func (c *Controller) command(frame []byte, op string) error {
	if err := c.writeAll(frame, op); err != nil {
		return err
	}
	return c.expectAck(op, c.cfg.ReadTimeout)
}

func (c *Controller) writeAll(frame []byte, op string) error {
	if _, err := c.port.Write(frame); err != nil {
		return controller.NewError(controller.KindProtocol, c.cfg.Name, op, err)
	}
	return nil
}

func (c *Controller) expectAck(op string, timeout time.Duration) error {
	reply := make([]byte, 1)
	if err := serial.ReadFull(c.port, reply, timeout); err != nil {
		return controller.NewError(controller.KindProtocol, c.cfg.Name, op, fmt.Errorf("%w: %w", ErrNoAck, err))
	}
	if reply[0] != ack {
		return controller.NewError(controller.KindProtocol, c.cfg.Name, op,
			fmt.Errorf("%w: expected 'A' got %q", ErrBadAck, reply[0]))
	}
	return nil
}

func (c *Controller) connErr(op string, err error) error {
	return controller.NewError(controller.KindConnection, c.cfg.Name, op, err)
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
