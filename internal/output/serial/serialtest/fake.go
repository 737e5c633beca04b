// Package serialtest provides a scripted in-memory serial port for protocol
// tests.
package serialtest

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/nerrad567/feedback-core/internal/output/serial"
)

// ErrClosed is returned by I/O on a closed port.
var ErrClosed = errors.New("serialtest: port closed")

// Responder computes the device reply for one Write call.
type Responder func(written []byte) []byte

// Port is an in-memory serial.Port. Every Write is recorded and passed to the
// responder; its reply is queued as pending input. Reads on an empty queue
// return io.EOF like a real port whose read timeout expired.
type Port struct {
	mu       sync.Mutex
	respond  Responder
	input    bytes.Buffer
	writes   [][]byte
	closed   bool
	flushes  int
	timeout  time.Duration
	writeErr error
	cfg      serial.Config
}

// New creates a port that answers writes with respond. A nil responder never
// replies.
func New(respond Responder) *Port {
	return &Port{respond: respond}
}

// Opener returns a serial.Opener that hands out p and records the config.
func (p *Port) Opener() serial.Opener {
	return func(cfg serial.Config) (serial.Port, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.cfg = cfg
		p.closed = false
		return p, nil
	}
}

// Config returns the configuration the port was opened with.
func (p *Port) Config() serial.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// SetResponder replaces the responder.
func (p *Port) SetResponder(r Responder) {
	p.mu.Lock()
	p.respond = r
	p.mu.Unlock()
}

// FailWrites makes every following Write return err.
func (p *Port) FailWrites(err error) {
	p.mu.Lock()
	p.writeErr = err
	p.mu.Unlock()
}

// Feed queues unsolicited input.
func (p *Port) Feed(b []byte) {
	p.mu.Lock()
	p.input.Write(b)
	p.mu.Unlock()
}

// Read implements io.Reader.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	if p.input.Len() == 0 {
		return 0, io.EOF
	}
	return p.input.Read(b)
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.writes = append(p.writes, append([]byte(nil), b...))
	if p.respond != nil {
		p.input.Write(p.respond(b))
	}
	return len(b), nil
}

// Flush discards pending input.
func (p *Port) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input.Reset()
	p.flushes++
	return nil
}

// Available returns the number of pending input bytes.
func (p *Port) Available() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input.Len(), nil
}

// SetReadTimeout records the timeout.
func (p *Port) SetReadTimeout(d time.Duration) error {
	p.mu.Lock()
	p.timeout = d
	p.mu.Unlock()
	return nil
}

// Close marks the port closed.
func (p *Port) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Closed reports whether Close was called since the last open.
func (p *Port) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Writes returns a copy of every Write call in order.
func (p *Port) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	for i, w := range p.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Written returns every written byte concatenated.
func (p *Port) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Join(p.writes, nil)
}

// Reset forgets recorded writes.
func (p *Port) Reset() {
	p.mu.Lock()
	p.writes = nil
	p.mu.Unlock()
}

// Flushes returns the number of Flush calls.
func (p *Port) Flushes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushes
}
