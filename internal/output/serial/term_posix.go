//go:build linux || darwin

package serial

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pkg/term"
	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// Open opens and configures the port described by cfg.
func Open(cfg Config) (Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	if _, err := os.Stat(cfg.Name); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrPortNotFound, cfg.Name)
	}

	t, err := term.Open(cfg.Name, term.Speed(cfg.Baud), term.RawMode, term.ReadTimeout(cfg.ReadTimeout))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Name, err)
	}

	if err := setLine(cfg); err != nil {
		_ = t.Close()
		return nil, err
	}

	if err := t.SetDTR(cfg.DTR); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("setting DTR on %s: %w", cfg.Name, err)
	}

	return t, nil
}

// setLine applies parity, data bits and stop bits. The attributes belong to
// the tty, so a second descriptor on the same device is enough.
func setLine(cfg Config) error {
	f, err := os.OpenFile(cfg.Name, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("opening %s for line settings: %w", cfg.Name, err)
	}
	defer f.Close()

	var attr unix.Termios
	if err := termios.Tcgetattr(f.Fd(), &attr); err != nil {
		return fmt.Errorf("reading line settings of %s: %w", cfg.Name, err)
	}

	attr.Cflag &^= unix.PARENB | unix.PARODD | unix.CSTOPB | unix.CSIZE
	switch cfg.Parity {
	case ParityOdd:
		attr.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		attr.Cflag |= unix.PARENB
	}
	if cfg.DataBits == 7 {
		attr.Cflag |= unix.CS7
	} else {
		attr.Cflag |= unix.CS8
	}
	if cfg.StopBits == 2 {
		attr.Cflag |= unix.CSTOPB
	}

	if err := termios.Tcsetattr(f.Fd(), termios.TCSANOW, &attr); err != nil {
		return fmt.Errorf("writing line settings of %s: %w", cfg.Name, err)
	}
	return nil
}
