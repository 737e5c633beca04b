package serial

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Parity is the parity mode of a serial line.
type Parity string

// Parity modes.
const (
	ParityNone Parity = "none"
	ParityOdd  Parity = "odd"
	ParityEven Parity = "even"
)

// Default line settings.
const (
	DefaultBaud     = 115200
	DefaultDataBits = 8
	DefaultStopBits = 1
)

// Config holds serial line settings.
type Config struct {
	// Name is the device path, e.g. /dev/ttyACM0.
	Name string

	// Baud is the line speed. Default: 115200.
	Baud int

	// Parity is none, odd or even. Default: none.
	Parity Parity

	// DataBits is 7 or 8. Default: 8.
	DataBits int

	// StopBits is 1 or 2. Default: 1.
	StopBits int

	// DTR asserts the DTR line after opening.
	DTR bool

	// ReadTimeout bounds each read. Zero blocks until data arrives.
	ReadTimeout time.Duration
}

// WithDefaults returns a copy with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Baud <= 0 {
		c.Baud = DefaultBaud
	}
	if c.Parity == "" {
		c.Parity = ParityNone
	}
	if c.DataBits == 0 {
		c.DataBits = DefaultDataBits
	}
	if c.StopBits == 0 {
		c.StopBits = DefaultStopBits
	}
	return c
}

// Validate checks the line settings.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrNoPortName
	}
	switch c.Parity {
	case ParityNone, ParityOdd, ParityEven, "":
	default:
		return fmt.Errorf("%w: parity %q", ErrInvalidSettings, c.Parity)
	}
	if c.DataBits != 0 && c.DataBits != 7 && c.DataBits != 8 {
		return fmt.Errorf("%w: %d data bits", ErrInvalidSettings, c.DataBits)
	}
	if c.StopBits != 0 && c.StopBits != 1 && c.StopBits != 2 {
		return fmt.Errorf("%w: %d stop bits", ErrInvalidSettings, c.StopBits)
	}
	return nil
}

// Port is an open serial port.
type Port interface {
	io.ReadWriter

	// Flush discards both the input and the output queue.
	Flush() error

	// Available returns the number of bytes waiting in the input queue.
	Available() (int, error)

	// SetReadTimeout changes the per-read timeout.
	SetReadTimeout(d time.Duration) error

	Close() error
}

// Opener opens a port. Controllers take an Opener so tests can script devices.
type Opener func(cfg Config) (Port, error)

// ReadFull reads exactly len(buf) bytes or fails with ErrTimeout once timeout
// has elapsed. A zero timeout performs a single blocking pass.
func ReadFull(p Port, buf []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	got := 0
	for got < len(buf) {
		n, err := p.Read(buf[got:])
		got += n
		if got == len(buf) {
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: got %d of %d bytes", ErrTimeout, got, len(buf))
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	return nil
}

// Drain reads and discards whatever is waiting in the input queue.
func Drain(p Port) error {
	n, err := p.Available()
	if err != nil || n == 0 {
		return err
	}
	buf := make([]byte, n)
	_, err = io.ReadFull(p, buf)
	return err
}

// ListPorts returns the candidate serial device paths on this host.
func ListPorts() []string {
	var out []string
	for _, pattern := range []string{"/dev/ttyACM*", "/dev/ttyUSB*", "/dev/ttyS*", "/dev/cu.usb*"} {
		matches, _ := filepath.Glob(pattern)
		out = append(out, matches...)
	}
	sort.Strings(out)
	return out
}
