package comproxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/feedback-core/internal/output/serial"
)

// ServerState is the state of the proxy server loop.
type ServerState int

// Server states.
const (
	StateIdle ServerState = iota
	StateAwaitClient
	StateServing
	StateStopped
)

var serverStateNames = [...]string{"idle", "await_client", "serving", "stopped"}

func (s ServerState) String() string {
	if s < 0 || int(s) >= len(serverStateNames) {
		return fmt.Sprintf("ServerState(%d)", int(s))
	}
	return serverStateNames[s]
}

// Default server timing.
const (
	defaultReadLineTimeout = time.Second
	defaultStopGrace       = 50 * time.Millisecond
)

// ServerConfig holds the proxy server settings.
type ServerConfig struct {
	// SocketPath is the unix socket to listen on.
	// Default: DefaultSocketPath(Serial.Name).
	SocketPath string

	// Serial is the port owned by the server.
	Serial serial.Config

	// ReadLineTimeout bounds a READLINE request. Default: 1 s.
	ReadLineTimeout time.Duration

	// StopGrace is the pause Stop allows an in-flight request before closing
	// the session. Default: 50 ms.
	StopGrace time.Duration
}

// ServerStats holds server statistics.
type ServerStats struct {
	State    string `json:"state"`
	Sessions uint64 `json:"sessions"`
	Requests uint64 `json:"requests"`
	Errors   uint64 `json:"errors"`
	PortOpen bool   `json:"port_open"`
}

// Server owns a serial port and serves one client at a time.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Server struct {
	cfg    ServerConfig
	open   serial.Opener
	logger Logger

	mu       sync.Mutex
	state    ServerState
	listener net.Listener
	conn     net.Conn
	port     serial.Port
	stopping bool
	done     chan struct{}

	sessions atomic.Uint64
	requests atomic.Uint64
	failures atomic.Uint64
}

// NewServer creates a proxy server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.SocketPath == "" {
		cfg.SocketPath = DefaultSocketPath(cfg.Serial.Name)
	}
	if cfg.ReadLineTimeout <= 0 {
		cfg.ReadLineTimeout = defaultReadLineTimeout
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	return &Server{
		cfg:    cfg,
		open:   serial.Open,
		logger: noopLogger{},
		state:  StateIdle,
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger.
func (s *Server) SetLogger(logger Logger) { s.logger = logger }

// SetOpener replaces the serial port opener.
func (s *Server) SetOpener(open serial.Opener) { s.open = open }

// SocketPath returns the listening socket path.
func (s *Server) SocketPath() string { return s.cfg.SocketPath }

// State returns the current server state.
func (s *Server) State() ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the serve loop has exited.
func (s *Server) Done() <-chan struct{} { return s.done }

// Stats returns server statistics.
func (s *Server) Stats() ServerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ServerStats{
		State:    s.state.String(),
		Sessions: s.sessions.Load(),
		Requests: s.requests.Load(),
		Errors:   s.failures.Load(),
		PortOpen: s.port != nil,
	}
}

// Listen binds the socket. A stale socket file left by a crashed server is
// removed first.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return ErrServerStopped
	}
	if s.listener != nil {
		return nil
	}

	if err := removeStaleSocket(s.cfg.SocketPath); err != nil {
		return err
	}
	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("comproxy: listening on %s: %w", s.cfg.SocketPath, err)
	}
	s.listener = ln
	return nil
}

// removeStaleSocket deletes path if nothing is listening on it.
func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil //nolint:nilerr // nothing to remove
	}
	conn, err := net.DialTimeout("unix", path, 100*time.Millisecond)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("comproxy: %s already in use", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("comproxy: removing stale socket %s: %w", path, err)
	}
	return nil
}

// Start binds the socket and runs the serve loop in a new goroutine.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	go func() {
		if err := s.Serve(ctx); err != nil {
			s.logger.Error("comproxy server stopped with error", "port", s.cfg.Serial.Name, "error", err)
		}
	}()
	return nil
}

// Serve runs the accept loop until STOP_SERVER, Stop or ctx cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	defer s.shutdown()

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			s.interrupt()
		case <-stopWatch:
		}
	}()

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	s.logger.Info("comproxy server listening", "socket", s.cfg.SocketPath, "port", s.cfg.Serial.Name)

	for {
		s.setState(StateAwaitClient)
		conn, err := ln.Accept()
		if err != nil {
			if s.isStopping() || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("comproxy: accept: %w", err)
		}

		s.mu.Lock()
		if s.stopping {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.conn = conn
		s.state = StateServing
		s.mu.Unlock()

		s.sessions.Add(1)
		stop := s.serveSession(conn)
		_ = conn.Close()

		s.mu.Lock()
		s.conn = nil
		s.state = StateIdle
		s.mu.Unlock()

		if stop {
			s.logger.Info("comproxy server stop requested", "port", s.cfg.Serial.Name)
			return nil
		}
	}
}

// Stop ends the serve loop after a short grace period for an in-flight
// request and waits for it to exit.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	serving := s.state == StateServing
	listening := s.listener != nil
	s.stopping = true
	s.mu.Unlock()

	if !listening {
		s.shutdown()
		return nil
	}
	if serving {
		time.Sleep(s.cfg.StopGrace)
	}
	s.interrupt()
	<-s.done
	return nil
}

func (s *Server) interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopping = true
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.closePortLocked()
	s.state = StateStopped
	close(s.done)
}

func (s *Server) setState(st ServerState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Server) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

// serveSession handles requests from one client. It returns true when the
// client asked the server to stop.
func (s *Server) serveSession(conn net.Conn) bool {
	r := bufio.NewReaderSize(conn, 4096)
	for {
		line, err := readLine(r)
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.isStopping() {
				s.logger.Debug("comproxy session ended", "port", s.cfg.Serial.Name, "error", err)
			}
			return false
		}
		s.requests.Add(1)

		req, err := ParseRequest(line)
		if err != nil {
			s.failures.Add(1)
			if werr := writeLine(conn, errorReply(err)); werr != nil {
				return false
			}
			continue
		}

		switch req.Cmd {
		case CmdDisconnect:
			s.closePort()
			return false
		case CmdStopServer:
			s.closePort()
			s.mu.Lock()
			s.stopping = true
			s.mu.Unlock()
			return true
		}

		reply, err := s.handle(req)
		if err != nil {
			s.failures.Add(1)
			s.logger.Warn("comproxy request failed", "port", s.cfg.Serial.Name, "command", req.Cmd, "error", err)
			reply = errorReply(err)
		}
		if err := writeLine(conn, reply); err != nil {
			return false
		}
	}
}

func (s *Server) handle(req Request) (string, error) {
	switch req.Cmd {
	case CmdConnect:
		if err := s.openPort(); err != nil {
			return "", err
		}
		return ReplyOK, nil
	case CmdWrite:
		port, err := s.currentPort()
		if err != nil {
			return "", err
		}
		if _, err := port.Write(req.Payload); err != nil {
			return "", fmt.Errorf("writing %s: %w", s.cfg.Serial.Name, err)
		}
		return ReplyOK, nil
	case CmdReadLine:
		port, err := s.currentPort()
		if err != nil {
			return "", err
		}
		return readSerialLine(port, s.cfg.ReadLineTimeout)
	case CmdCheck:
		s.mu.Lock()
		open := s.port != nil
		s.mu.Unlock()
		if open {
			return ReplyTrue, nil
		}
		return ReplyFalse, nil
	case CmdComPort:
		return s.cfg.Serial.Name, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, req.Cmd)
	}
}

func (s *Server) openPort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return nil
	}
	port, err := s.open(s.cfg.Serial)
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.cfg.Serial.Name, err)
	}
	s.port = port
	s.logger.Info("comproxy serial port opened", "port", s.cfg.Serial.Name)
	return nil
}

func (s *Server) currentPort() (serial.Port, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil, ErrPortNotOpen
	}
	return s.port, nil
}

func (s *Server) closePort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closePortLocked()
}

func (s *Server) closePortLocked() {
	if s.port == nil {
		return
	}
	if err := s.port.Close(); err != nil {
		s.logger.Warn("comproxy serial port close failed", "port", s.cfg.Serial.Name, "error", err)
	}
	s.port = nil
	s.logger.Info("comproxy serial port closed", "port", s.cfg.Serial.Name)
}

// readSerialLine reads bytes until '\n' and returns the line without its
// line terminator.
func readSerialLine(port serial.Port, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	var sb strings.Builder
	b := make([]byte, 1)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", fmt.Errorf("reading line: %w", serial.ErrTimeout)
		}
		if err := serial.ReadFull(port, b, remaining); err != nil {
			return "", fmt.Errorf("reading line: %w", err)
		}
		if b[0] == '\n' {
			return strings.TrimRight(sb.String(), "\r"), nil
		}
		if sb.Len() >= maxLineLength {
			return "", ErrLineTooLong
		}
		sb.WriteByte(b[0])
	}
}

// readLine reads one protocol line without its terminator.
func readLine(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return "", err
		}
		sb.Write(chunk)
		if sb.Len() > maxLineLength {
			return "", ErrLineTooLong
		}
		if !isPrefix {
			return sb.String(), nil
		}
	}
}

func writeLine(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+"\n")
	return err
}
