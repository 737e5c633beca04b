package controller

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"
)

// Backend is the raw device I/O implemented by every hardware driver.
type Backend interface {
	// Name returns the configured device name.
	Name() string

	// VerifySettings validates the configuration without touching hardware.
	VerifySettings() error

	// ConnectToController opens the device and performs any handshake.
	ConnectToController(ctx context.Context) error

	// DisconnectFromController releases the device. It must be safe to call
	// on a backend that never connected.
	DisconnectFromController() error

	// UpdateOutputs transmits a full output array of
	// NumberOfConfiguredOutputs bytes.
	UpdateOutputs(ctx context.Context, values []byte) error

	// NumberOfConfiguredOutputs is the required length of every array passed
	// to UpdateOutputs.
	NumberOfConfiguredOutputs() int
}

// Disabler is implemented by backends that can switch themselves off after
// repeated failures. Frames for a disabled backend are dropped.
type Disabler interface {
	Disabled() bool
}

// State is the lifecycle state of a controller.
type State int

// Lifecycle states.
const (
	StateUninitialized State = iota
	StateVerifying
	StateConnected
	StateUpdating
	StateDisconnected
	StateFinished
)

var stateNames = [...]string{"uninitialized", "verifying", "connected", "updating", "disconnected", "finished"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Stats holds operational statistics of one controller.
type Stats struct {
	Name            string        `json:"name"`
	State           string        `json:"state"`
	Outputs         int           `json:"outputs"`
	FramesSent      uint64        `json:"frames_sent"`
	BytesSent       uint64        `json:"bytes_sent"`
	FramesSkipped   uint64        `json:"frames_skipped"`
	FramesDropped   uint64        `json:"frames_dropped"`
	Disabled        bool          `json:"disabled"`
	UpdateFailures  uint64        `json:"update_failures"`
	Connects        uint64        `json:"connects"`
	ConnectFailures uint64        `json:"connect_failures"`
	LastError       string        `json:"last_error,omitempty"`
	LastUpdate      time.Time     `json:"last_update"`
	LastLatency     time.Duration `json:"last_latency_ns"`
}

// Logger defines the logging interface used by the controller.
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

// FrameFunc is invoked after every transmitted frame with a copy of the data.
type FrameFunc func(name string, values []byte)

// Controller drives one Backend through its lifecycle and diffs its outputs.
type Controller struct {
	backend Backend
	name    string
	logger  Logger

	stageMu sync.Mutex
	staging []byte

	mu       sync.Mutex
	state    State
	lastSent []byte
	stats    Stats
	onFrame  FrameFunc
}

// New wraps backend in a controller.
func New(backend Backend) *Controller {
	n := backend.NumberOfConfiguredOutputs()
	if n < 0 {
		n = 0
	}
	return &Controller{
		backend: backend,
		name:    backend.Name(),
		logger:  noopLogger{},
		staging: make([]byte, n),
	}
}

// SetLogger sets the logger.
func (c *Controller) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// SetOnFrame registers fn to be called after every transmitted frame.
func (c *Controller) SetOnFrame(fn FrameFunc) {
	c.mu.Lock()
	c.onFrame = fn
	c.mu.Unlock()
}

// Name returns the device name.
func (c *Controller) Name() string { return c.name }

// Backend returns the wrapped backend.
func (c *Controller) Backend() Backend { return c.backend }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether updates are currently transmitted.
func (c *Controller) IsConnected() bool {
	s := c.State()
	return s == StateConnected || s == StateUpdating
}

// NumberOfOutputs returns the size of the staging buffer.
func (c *Controller) NumberOfOutputs() int {
	c.stageMu.Lock()
	defer c.stageMu.Unlock()
	return len(c.staging)
}

// SetValue stages v for channel. Out-of-range channels are ignored.
func (c *Controller) SetValue(channel int, v byte) {
	c.stageMu.Lock()
	if channel >= 0 && channel < len(c.staging) {
		c.staging[channel] = v
	}
	c.stageMu.Unlock()
}

// Values returns a copy of the staged output array.
func (c *Controller) Values() []byte {
	c.stageMu.Lock()
	defer c.stageMu.Unlock()
	return append([]byte(nil), c.staging...)
}

// ClearValues zeroes the staging buffer.
func (c *Controller) ClearValues() {
	c.stageMu.Lock()
	clear(c.staging)
	c.stageMu.Unlock()
}

// Init verifies the settings and connects.
//
// A failure leaves the controller disconnected and is returned for logging;
// it is not fatal to the caller.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateFinished {
		c.mu.Unlock()
		return NewError(KindConfiguration, c.name, "init", ErrFinished)
	}
	c.state = StateVerifying
	if err := c.backend.VerifySettings(); err != nil {
		c.state = StateDisconnected
		c.recordError(err)
		c.mu.Unlock()
		c.logger.Warn("controller settings invalid, staying disconnected", "controller", c.name, "error", err)
		return Classify(KindConfiguration, c.name, "verify settings", err)
	}
	c.resizeStaging(c.backend.NumberOfConfiguredOutputs())
	c.mu.Unlock()

	return c.Connect(ctx)
}

// Connect connects to the device. Calling Connect on a connected controller is
// a no-op.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateFinished:
		return NewError(KindConfiguration, c.name, "connect", ErrFinished)
	case StateConnected, StateUpdating:
		return nil
	}

	if err := c.backend.ConnectToController(ctx); err != nil {
		c.state = StateDisconnected
		c.stats.ConnectFailures++
		c.recordError(err)
		c.logger.Warn("controller connect failed", "controller", c.name, "error", err)
		return Classify(KindConnection, c.name, "connect", err)
	}

	c.state = StateConnected
	c.lastSent = nil
	c.stats.Connects++
	c.logger.Info("controller connected", "controller", c.name, "outputs", len(c.staging))
	return nil
}

// Update transmits the staged outputs if they differ from the last frame.
// It is a no-op while the controller is not connected.
func (c *Controller) Update(ctx context.Context) error {
	c.mu.Lock()

	if c.state != StateConnected {
		c.mu.Unlock()
		return nil
	}

	if c.backendDisabled() {
		c.stats.FramesDropped++
		c.mu.Unlock()
		return nil
	}

	frame := c.Values()
	if c.lastSent != nil && bytes.Equal(frame, c.lastSent) {
		c.stats.FramesSkipped++
		c.mu.Unlock()
		return nil
	}

	c.state = StateUpdating
	start := time.Now()
	err := c.backend.UpdateOutputs(ctx, frame)
	c.lastSent = frame
	if c.state == StateUpdating {
		c.state = StateConnected
	}

	c.stats.LastUpdate = start
	c.stats.LastLatency = time.Since(start)
	if err != nil {
		c.stats.UpdateFailures++
		c.recordError(err)
		c.mu.Unlock()
		return Classify(KindProtocol, c.name, "update outputs", err)
	}

	c.stats.FramesSent++
	c.stats.BytesSent += uint64(len(frame))
	onFrame := c.onFrame
	c.mu.Unlock()

	if onFrame != nil {
		onFrame(c.name, append([]byte(nil), frame...))
	}
	return nil
}

// Disconnect releases the device. The controller may be connected again later.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnectLocked()
}

func (c *Controller) disconnectLocked() error {
	if c.state == StateFinished {
		return nil
	}
	err := c.backend.DisconnectFromController()
	c.state = StateDisconnected
	c.lastSent = nil
	if err != nil {
		c.recordError(err)
		c.logger.Warn("controller disconnect failed", "controller", c.name, "error", err)
		return Classify(KindConnection, c.name, "disconnect", err)
	}
	c.logger.Info("controller disconnected", "controller", c.name)
	return nil
}

// Finish disconnects and marks the controller as finished.
func (c *Controller) Finish() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateFinished {
		return nil
	}
	err := c.disconnectLocked()
	c.state = StateFinished
	return err
}

// Stats returns a snapshot of the controller statistics.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Name = c.name
	s.State = c.state.String()
	s.Outputs = c.NumberOfOutputs()
	s.Disabled = c.backendDisabled()
	return s
}

func (c *Controller) backendDisabled() bool {
	d, ok := c.backend.(Disabler)
	return ok && d.Disabled()
}

func (c *Controller) recordError(err error) {
	c.stats.LastError = err.Error()
}

func (c *Controller) resizeStaging(n int) {
	if n < 0 {
		n = 0
	}
	c.stageMu.Lock()
	if len(c.staging) != n {
		c.staging = make([]byte, n)
	}
	c.stageMu.Unlock()
}
