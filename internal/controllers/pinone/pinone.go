package pinone

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/feedback-core/internal/output/controller"
)

// Outputs is the number of channels on a PinOne board.
const Outputs = 63

// Frame layout.
const (
	frameStart   byte = 0xFE
	frameCommand byte = 0x01
	maxValue     byte = 0xFD
	frameSize         = 2 + Outputs
)

// Proxy is the subset of the COM-port proxy client the backend uses.
type Proxy interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Write(ctx context.Context, data []byte) error
	Check(ctx context.Context) (bool, error)
	GetComPort(ctx context.Context) (string, error)
}

// Config holds the PinOne settings.
type Config struct {
	Name string

	// Port is the serial port served by the proxy, e.g. /dev/ttyACM0.
	Port string
}

// Controller is the PinOne backend.
type Controller struct {
	cfg   Config
	proxy Proxy
	frame [frameSize]byte
}

var _ controller.Backend = (*Controller)(nil)

// New creates a backend that talks through proxy.
func New(cfg Config, proxy Proxy) *Controller {
	return &Controller{cfg: cfg, proxy: proxy}
}

// Name returns the controller name.
func (c *Controller) Name() string { return c.cfg.Name }

// NumberOfConfiguredOutputs is fixed at 63.
func (c *Controller) NumberOfConfiguredOutputs() int { return Outputs }

// VerifySettings checks that a port is configured.
func (c *Controller) VerifySettings() error {
	if strings.TrimSpace(c.cfg.Port) == "" {
		return controller.NewError(controller.KindConfiguration, c.cfg.Name, "verify settings", ErrNoPort)
	}
	return nil
}

// ConnectToController asks the proxy to open the port and confirms it did.
func (c *Controller) ConnectToController(ctx context.Context) error {
	if err := c.proxy.Connect(ctx); err != nil {
		return controller.Classify(controller.KindConnection, c.cfg.Name, "proxy connect", err)
	}

	open, err := c.proxy.Check(ctx)
	if err != nil {
		return controller.Classify(controller.KindConnection, c.cfg.Name, "proxy check", err)
	}
	if !open {
		return controller.NewError(controller.KindConnection, c.cfg.Name, "proxy check", ErrPortClosed)
	}

	served, err := c.proxy.GetComPort(ctx)
	if err != nil {
		return controller.Classify(controller.KindConnection, c.cfg.Name, "proxy comport", err)
	}
	if served != c.cfg.Port {
		return controller.NewError(controller.KindConfiguration, c.cfg.Name, "proxy comport",
			fmt.Errorf("%w: %q, want %q", ErrWrongPort, served, c.cfg.Port))
	}
	return nil
}

// DisconnectFromController asks the proxy to close the port.
func (c *Controller) DisconnectFromController() error {
	if err := c.proxy.Disconnect(context.Background()); err != nil {
		return controller.Classify(controller.KindIPC, c.cfg.Name, "proxy disconnect", err)
	}
	return nil
}

// UpdateOutputs writes one frame of 63 values.
func (c *Controller) UpdateOutputs(ctx context.Context, values []byte) error {
	if len(values) != Outputs {
		return controller.NewError(controller.KindProtocol, c.cfg.Name, "update outputs",
			fmt.Errorf("%w: got %d want %d", controller.ErrOutputCount, len(values), Outputs))
	}
	if err := c.proxy.Write(ctx, Frame(c.frame[:0:frameSize], values)); err != nil {
		return controller.Classify(controller.KindProtocol, c.cfg.Name, "proxy write", err)
	}
	return nil
}

// Frame appends the wire frame for values to dst. Values above 253 are
// clamped.
func Frame(dst, values []byte) []byte {
	dst = append(dst, frameStart, frameCommand)
	for _, v := range values {
		dst = append(dst, min(v, maxValue))
	}
	return dst
}
