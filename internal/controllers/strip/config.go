package strip

import (
	"fmt"
	"time"

	"github.com/nerrad567/feedback-core/internal/output/serial"
)

// MaxStrips is the number of strip channels a controller supports.
const MaxStrips = 10

// Default timing.
const (
	DefaultReadTimeout    = 200 * time.Millisecond
	DefaultOpenSettle     = 300 * time.Millisecond
	DefaultHandshakeStart = 20 * time.Millisecond
	DefaultHandshakeEnd   = 50 * time.Millisecond

	minReadTimeout = time.Millisecond
	maxReadTimeout = 5 * time.Second
	maxDelay       = 5 * time.Second
)

// Config holds the settings of one strip controller.
type Config struct {
	// Name identifies the controller in logs and status.
	Name string

	// Serial holds the port name and line settings. ReadTimeout is taken
	// from the ReadTimeout field below.
	Serial serial.Config

	// ReadTimeout bounds every acknowledgement read. Default: 200 ms,
	// valid range 1 ms .. 5 s.
	ReadTimeout time.Duration

	// OpenSettle is the wait after opening the port. Default: 300 ms.
	OpenSettle time.Duration

	// HandshakeStart is the wait between a handshake ping and checking for
	// a reply. Default: 20 ms.
	HandshakeStart time.Duration

	// HandshakeEnd is the wait after a failed handshake attempt. Default: 50 ms.
	HandshakeEnd time.Duration

	// Leds is the LED count per strip channel. Zero disables a channel.
	Leds [MaxStrips]int
}

// Options are the compressed-variant switches.
type Options struct {
	// SendPerLedstripLength programs every strip length with 'Z' on connect.
	SendPerLedstripLength bool

	// TestOnConnect runs the device self-test with 'T' on connect.
	TestOnConnect bool

	// UseCompression sends 'Q' frames when they are smaller than 'R' frames.
	UseCompression bool
}

// normalize replaces out-of-range settings by their defaults and returns a
// warning for each replacement.
func (c *Config) normalize() []string {
	var warnings []string

	c.ReadTimeout, warnings = clampDuration("read_timeout", c.ReadTimeout, DefaultReadTimeout,
		minReadTimeout, maxReadTimeout, warnings)
	c.OpenSettle, warnings = clampDuration("open_settle", c.OpenSettle, DefaultOpenSettle, 0, maxDelay, warnings)
	c.HandshakeStart, warnings = clampDuration("handshake_start", c.HandshakeStart, DefaultHandshakeStart,
		0, maxDelay, warnings)
	c.HandshakeEnd, warnings = clampDuration("handshake_end", c.HandshakeEnd, DefaultHandshakeEnd, 0, maxDelay, warnings)

	for i, n := range c.Leds {
		if n < 0 || n > 0xFFFF {
			warnings = append(warnings, fmt.Sprintf("leds of strip %d out of range (%d), using 0", i+1, n))
			c.Leds[i] = 0
		}
	}

	c.Serial = c.Serial.WithDefaults()
	c.Serial.ReadTimeout = c.ReadTimeout
	return warnings
}

// clampDuration keeps d when it is set and in range; a zero d silently takes
// def, an out-of-range d takes def with a warning.
func clampDuration(name string, d, def, lo, hi time.Duration, warnings []string) (time.Duration, []string) {
	if d == 0 {
		return def, warnings
	}
	if d < lo || d > hi {
		return def, append(warnings, fmt.Sprintf("%s %v out of range [%v, %v], using %v", name, d, lo, hi, def))
	}
	return d, warnings
}

// totalLeds returns the LED count across every strip.
func (c *Config) totalLeds() int {
	total := 0
	for _, n := range c.Leds {
		total += n
	}
	return total
}

// channelLength is the per-channel length programmed with 'L': the longest
// configured strip.
func (c *Config) channelLength() int {
	longest := 0
	for _, n := range c.Leds {
		if n > longest {
			longest = n
		}
	}
	return longest
}

// checkLayout verifies that every strip's start position fits a frame's
// 16-bit position field.
func (c *Config) checkLayout() error {
	active := c.activeChannels()
	if active == 0 {
		return nil
	}
	if last := (active - 1) * c.channelLength(); last > maxField {
		return fmt.Errorf("%w: strip %d starts at %d with channel length %d",
			ErrLayoutTooLarge, active, last, c.channelLength())
	}
	return nil
}

// activeChannels is the number of channels up to the last configured strip.
func (c *Config) activeChannels() int {
	last := 0
	for i, n := range c.Leds {
		if n > 0 {
			last = i + 1
		}
	}
	return last
}
