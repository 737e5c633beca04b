package comproxy

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/feedback-core/internal/output/serial"
	"github.com/nerrad567/feedback-core/internal/process"
)

// defaultStartTimeout bounds waiting for a spawned server's socket.
const defaultStartTimeout = 5 * time.Second

// InProcessSpawner runs the proxy server in a goroutine of this process.
type InProcessSpawner struct {
	ctx    context.Context //nolint:containedctx // server lifetime, not a request
	cfg    ServerConfig
	open   serial.Opener
	logger Logger

	mu     sync.Mutex
	server *Server
	spawns int
}

var _ Spawner = (*InProcessSpawner)(nil)

// NewInProcessSpawner creates a spawner whose servers live until ctx is done
// or Close is called.
func NewInProcessSpawner(ctx context.Context, cfg ServerConfig) *InProcessSpawner {
	return &InProcessSpawner{ctx: ctx, cfg: cfg, open: serial.Open, logger: noopLogger{}}
}

// SetOpener replaces the serial opener handed to spawned servers.
func (p *InProcessSpawner) SetOpener(open serial.Opener) { p.open = open }

// SetLogger sets the logger handed to spawned servers.
func (p *InProcessSpawner) SetLogger(logger Logger) { p.logger = logger }

// Spawn starts a server unless one is already running.
func (p *InProcessSpawner) Spawn(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.server != nil && p.server.State() != StateStopped {
		return nil
	}

	srv := NewServer(p.cfg)
	srv.SetOpener(p.open)
	srv.SetLogger(p.logger)
	if err := srv.Start(p.ctx); err != nil {
		return err
	}
	p.server = srv
	p.spawns++
	p.logger.Info("comproxy server spawned in process", "socket", srv.SocketPath(), "spawns", p.spawns)
	return nil
}

// Server returns the current server, or nil.
func (p *InProcessSpawner) Server() *Server {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.server
}

// Spawns returns how many servers were started.
func (p *InProcessSpawner) Spawns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spawns
}

// Close stops the current server.
func (p *InProcessSpawner) Close() error {
	p.mu.Lock()
	srv := p.server
	p.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Stop()
}

// ProcessConfig describes how to run the comproxy binary.
type ProcessConfig struct {
	// Binary is the path of the comproxy executable.
	Binary string

	// Server is passed to the binary as command-line flags.
	Server ServerConfig

	// StartTimeout bounds waiting for the socket. Default: 5 s.
	StartTimeout time.Duration
}

// ProcessSpawner runs the proxy server as a separate process.
type ProcessSpawner struct {
	ctx     context.Context //nolint:containedctx // process lifetime, not a request
	cfg     ProcessConfig
	manager *process.Manager
	logger  Logger
}

var _ Spawner = (*ProcessSpawner)(nil)

// NewProcessSpawner creates a spawner that starts cfg.Binary. The child
// process is killed when ctx is done.
func NewProcessSpawner(ctx context.Context, cfg ProcessConfig) *ProcessSpawner {
	if cfg.Server.SocketPath == "" {
		cfg.Server.SocketPath = DefaultSocketPath(cfg.Server.Serial.Name)
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = defaultStartTimeout
	}

	socket := cfg.Server.SocketPath
	mgr := process.NewManager(process.Config{
		Name:             "comproxy " + cfg.Server.Serial.Name,
		Binary:           cfg.Binary,
		Args:             ServerArgs(cfg.Server),
		RestartOnFailure: false,
		GracefulTimeout:  2 * time.Second,
		HealthCheckFunc: func(ctx context.Context) error {
			return checkSocket(ctx, socket)
		},
		HealthCheckInterval: 10 * time.Second,
	})
	return &ProcessSpawner{ctx: ctx, cfg: cfg, manager: mgr, logger: noopLogger{}}
}

// SetLogger sets the logger for the spawner and its process manager.
func (p *ProcessSpawner) SetLogger(logger Logger) {
	p.logger = logger
	p.manager.SetLogger(logger)
}

// Manager returns the underlying process manager.
func (p *ProcessSpawner) Manager() *process.Manager { return p.manager }

// Spawn starts the binary if it is not running and waits for its socket.
func (p *ProcessSpawner) Spawn(ctx context.Context) error {
	if !p.manager.IsRunning() {
		if err := p.manager.Start(p.ctx); err != nil && !errors.Is(err, process.ErrAlreadyRunning) {
			return fmt.Errorf("comproxy: starting %s: %w", p.cfg.Binary, err)
		}
		p.logger.Info("comproxy server process started", "socket", p.cfg.Server.SocketPath, "pid", p.manager.PID())
	}
	return waitForSocket(ctx, p.cfg.Server.SocketPath, p.cfg.StartTimeout)
}

// Close stops the child process.
func (p *ProcessSpawner) Close() error {
	return p.manager.Stop()
}

// waitForSocket polls until path accepts connections or timeout expires.
func waitForSocket(ctx context.Context, path string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := checkSocket(ctx, path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("comproxy: waiting for %s: %w", path, ctx.Err())
		case <-ticker.C:
		}
	}
}

// checkSocket checks that something accepts connections on path. The check
// connection is closed without a request, which the server treats as an
// ended session.
func checkSocket(ctx context.Context, path string) error {
	d := net.Dialer{Timeout: 200 * time.Millisecond}
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return err
	}
	return conn.Close()
}

// ServerArgs renders cfg as comproxy command-line flags.
func ServerArgs(cfg ServerConfig) []string {
	args := []string{
		"-socket", cfg.SocketPath,
		"-port", cfg.Serial.Name,
	}
	if cfg.Serial.Baud > 0 {
		args = append(args, "-baud", strconv.Itoa(cfg.Serial.Baud))
	}
	if cfg.Serial.Parity != "" {
		args = append(args, "-parity", string(cfg.Serial.Parity))
	}
	if cfg.Serial.DataBits > 0 {
		args = append(args, "-databits", strconv.Itoa(cfg.Serial.DataBits))
	}
	if cfg.Serial.StopBits > 0 {
		args = append(args, "-stopbits", strconv.Itoa(cfg.Serial.StopBits))
	}
	if cfg.Serial.DTR {
		args = append(args, "-dtr")
	}
	if cfg.ReadLineTimeout > 0 {
		args = append(args, "-readline-timeout", cfg.ReadLineTimeout.String())
	}
	return args
}

// ParseServerArgs parses flags produced by ServerArgs.
func ParseServerArgs(args []string) (ServerConfig, error) {
	fs := flag.NewFlagSet("comproxy", flag.ContinueOnError)
	var (
		cfg    ServerConfig
		parity string
	)
	fs.StringVar(&cfg.SocketPath, "socket", "", "unix socket path")
	fs.StringVar(&cfg.Serial.Name, "port", "", "serial port device")
	fs.IntVar(&cfg.Serial.Baud, "baud", serial.DefaultBaud, "baud rate")
	fs.StringVar(&parity, "parity", string(serial.ParityNone), "parity: none, odd or even")
	fs.IntVar(&cfg.Serial.DataBits, "databits", serial.DefaultDataBits, "data bits")
	fs.IntVar(&cfg.Serial.StopBits, "stopbits", serial.DefaultStopBits, "stop bits")
	fs.BoolVar(&cfg.Serial.DTR, "dtr", false, "assert DTR")
	fs.DurationVar(&cfg.ReadLineTimeout, "readline-timeout", defaultReadLineTimeout, "READLINE timeout")

	if err := fs.Parse(args); err != nil {
		return ServerConfig{}, err
	}
	cfg.Serial.Parity = serial.Parity(parity)
	if err := cfg.Serial.Validate(); err != nil {
		return ServerConfig{}, err
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = DefaultSocketPath(cfg.Serial.Name)
	}
	return cfg, nil
}
