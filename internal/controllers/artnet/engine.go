package artnet

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/feedback-core/internal/output/controller"
)

const (
	// FailureThreshold is the number of consecutive failures tolerated.
	// Failure FailureThreshold+1 disables the engine.
	FailureThreshold = 10

	// writeTimeout bounds a single send.
	writeTimeout = 100 * time.Millisecond
)

// PacketConn is the part of net.PacketConn the engine uses.
type PacketConn interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Logger defines the logging interface used by the engine.
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

// EngineStats holds engine statistics.
type EngineStats struct {
	PacketsSent         uint64 `json:"packets_sent"`
	SendFailures        uint64 `json:"send_failures"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	Disabled            bool   `json:"disabled"`
}

// Engine owns the Art-Net UDP socket.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	listen func() (PacketConn, error)
	logger Logger

	mu       sync.Mutex
	conn     PacketConn
	addrs    map[string]net.Addr
	failures int
	disabled bool
	closed   bool
	stats    EngineStats
}

// NewEngine creates an engine that opens a UDP socket on first use.
func NewEngine() *Engine {
	return NewEngineWithListener(func() (PacketConn, error) {
		return net.ListenPacket("udp4", ":0")
	})
}

// NewEngineWithListener creates an engine with a custom socket factory.
func NewEngineWithListener(listen func() (PacketConn, error)) *Engine {
	return &Engine{
		listen: listen,
		logger: noopLogger{},
		addrs:  make(map[string]net.Addr),
	}
}

// SetLogger sets the logger.
func (e *Engine) SetLogger(logger Logger) {
	e.mu.Lock()
	e.logger = logger
	e.mu.Unlock()
}

// Open creates the socket if it is not open yet.
func (e *Engine) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openLocked()
}

func (e *Engine) openLocked() error {
	if e.closed {
		return ErrEngineClosed
	}
	if e.conn != nil || e.disabled {
		return nil
	}
	conn, err := e.listen()
	if err != nil {
		return fmt.Errorf("artnet: opening socket: %w", err)
	}
	e.conn = conn
	e.logger.Info("artnet socket opened")
	return nil
}

// Disabled reports whether the circuit breaker has tripped.
func (e *Engine) Disabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disabled
}

// Stats returns engine statistics.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.ConsecutiveFailures = e.failures
	s.Disabled = e.disabled
	return s
}

// SendDMX sends one universe to address. An empty address or
// BroadcastAddress selects limited broadcast. Once the engine is disabled
// SendDMX returns nil without sending.
func (e *Engine) SendDMX(address string, universe int, data []byte) error {
	if universe < 0 || universe > MaxUniverse {
		return fmt.Errorf("%w: %d", ErrInvalidUniverse, universe)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disabled {
		return nil
	}
	if err := e.openLocked(); err != nil {
		return err
	}

	addr, err := e.resolveLocked(address)
	if err != nil {
		return err
	}

	packet := BuildPacket(universe, data)
	err = e.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err == nil {
		_, err = e.conn.WriteTo(packet, addr)
	}
	if err != nil {
		return e.failLocked(address, universe, err)
	}

	e.failures = 0
	e.stats.PacketsSent++
	return nil
}

func (e *Engine) failLocked(address string, universe int, err error) error {
	e.failures++
	e.stats.SendFailures++

	if e.failures <= FailureThreshold {
		e.logger.Warn("artnet send failed",
			"address", address,
			"universe", universe,
			"consecutive_failures", e.failures,
			"error", err,
		)
		return fmt.Errorf("artnet: sending universe %d to %q: %w", universe, address, err)
	}

	e.disabled = true
	if e.conn != nil {
		_ = e.conn.Close()
		e.conn = nil
	}
	e.logger.Error("artnet disabled after consecutive send failures",
		"failures", e.failures,
		"error", err,
	)
	return fmt.Errorf("artnet: %w after %d consecutive failures: %w", controller.ErrDisabled, e.failures, err)
}

func (e *Engine) resolveLocked(address string) (net.Addr, error) {
	if address == "" {
		address = BroadcastAddress
	}
	if a, ok := e.addrs[address]; ok {
		return a, nil
	}
	a, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(address, strconv.Itoa(Port)))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, address, err)
	}
	e.addrs[address] = a
	return a, nil
}

// Close releases the socket. Later sends fail with ErrEngineClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}
